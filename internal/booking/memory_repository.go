package booking

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryRepository is an in-process Repository used by tests. It enforces the
// same uniqueness rule as the Postgres schema: at most one non-cancelled
// booking per (date, slot, room).
type MemoryRepository struct {
	mu           sync.Mutex
	appointments map[uuid.UUID]*Appointment
	caseForms    map[uuid.UUID]*CaseForm
	events       []EventLog
	insertOrder  []uuid.UUID
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		appointments: make(map[uuid.UUID]*Appointment),
		caseForms:    make(map[uuid.UUID]*CaseForm),
	}
}

func (r *MemoryRepository) bookedRoomsLocked(date, timeSlot string) []int {
	var rooms []int
	for _, a := range r.appointments {
		if a.Date == date && a.TimeSlot == timeSlot && a.Status != StatusCancelled {
			rooms = append(rooms, a.Room)
		}
	}
	sort.Ints(rooms)
	return rooms
}

func (r *MemoryRepository) BookedRooms(ctx context.Context, date, timeSlot string) ([]int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.bookedRoomsLocked(date, timeSlot), nil
}

func (r *MemoryRepository) CreateAppointment(ctx context.Context, appt *Appointment, form *CaseForm) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, room := range r.bookedRoomsLocked(appt.Date, appt.TimeSlot) {
		if room == appt.Room {
			return nil, ErrRoomTaken
		}
	}

	now := time.Now()
	created := *appt
	created.ID = uuid.New()
	created.CreatedAt = now
	created.UpdatedAt = now

	if form != nil {
		f := *form
		f.ID = uuid.New()
		f.AppointmentID = created.ID
		f.CreatedAt = now
		r.caseForms[f.ID] = &f
		created.CaseFormID = &f.ID
	}

	r.appointments[created.ID] = &created
	r.insertOrder = append(r.insertOrder, created.ID)

	out := created
	return &out, nil
}

func (r *MemoryRepository) GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.appointments[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	out := *a
	return &out, nil
}

func (r *MemoryRepository) GetCaseFormByID(ctx context.Context, id uuid.UUID) (*CaseForm, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	f, ok := r.caseForms[id]
	if !ok {
		return nil, ErrCaseFormNotFound
	}
	out := *f
	return &out, nil
}

func (r *MemoryRepository) ListAppointments(ctx context.Context) ([]Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	// Newest first
	result := make([]Appointment, 0, len(r.insertOrder))
	for i := len(r.insertOrder) - 1; i >= 0; i-- {
		result = append(result, *r.appointments[r.insertOrder[i]])
	}
	return result, nil
}

func (r *MemoryRepository) ListByDate(ctx context.Context, date string) ([]Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var result []Appointment
	for _, id := range r.insertOrder {
		a := r.appointments[id]
		if a.Date == date && a.Status != StatusCancelled {
			result = append(result, *a)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].TimeSlot != result[j].TimeSlot {
			return result[i].TimeSlot < result[j].TimeSlot
		}
		return result[i].Room < result[j].Room
	})
	return result, nil
}

func (r *MemoryRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status Status) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.appointments[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}

	if a.Status == StatusCancelled && status != StatusCancelled {
		for _, room := range r.bookedRoomsLocked(a.Date, a.TimeSlot) {
			if room == a.Room {
				return nil, ErrRoomTaken
			}
		}
	}

	if a.Status != status {
		a.Status = status
		a.UpdatedAt = time.Now()
	}
	out := *a
	return &out, nil
}

func (r *MemoryRepository) FindPendingForDate(ctx context.Context, date string) ([]Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var result []Appointment
	for _, id := range r.insertOrder {
		a := r.appointments[id]
		if a.Date == date && a.Status == StatusPending {
			result = append(result, *a)
		}
	}
	return result, nil
}

func (r *MemoryRepository) HasEvent(ctx context.Context, appointmentID uuid.UUID, eventType string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, ev := range r.events {
		if ev.AppointmentID != nil && *ev.AppointmentID == appointmentID && ev.EventType == eventType {
			return true, nil
		}
	}
	return false, nil
}

func (r *MemoryRepository) InsertEvent(ctx context.Context, ev EventLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	ev.ID = int64(len(r.events) + 1)
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = time.Now()
	}
	r.events = append(r.events, ev)
	return nil
}

// Events returns a copy of the recorded event log, oldest first.
func (r *MemoryRepository) Events() []EventLog {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]EventLog, len(r.events))
	copy(out, r.events)
	return out
}

// DecodeEventPayload is a small helper for tests inspecting event payloads.
func DecodeEventPayload(ev EventLog) (map[string]any, error) {
	var m map[string]any
	if len(ev.Payload) == 0 {
		return m, nil
	}
	if err := json.Unmarshal(ev.Payload, &m); err != nil {
		return nil, fmt.Errorf("decode event payload: %w", err)
	}
	return m, nil
}
