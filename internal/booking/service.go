package booking

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/naminath/opd-booking/internal/config"
	redisclient "github.com/naminath/opd-booking/internal/redis"
)

const (
	EventAppointmentCreated = "APPOINTMENT_CREATED"
	EventStatusChanged      = "STATUS_CHANGED"
	EventReminderLogged     = "REMINDER_LOGGED"
)

var (
	ErrMissingField    = errors.New("required field missing")
	ErrInvalidDate     = errors.New("date must be YYYY-MM-DD")
	ErrInvalidTimeSlot = errors.New("time is not a bookable slot")
	ErrInvalidRoom     = errors.New("room must be between 1 and 5")
	ErrSlotFull        = errors.New("this slot is full, please select another time")
	ErrEmptyCaseForm   = errors.New("case form was requested but contains no answers")
	ErrInvalidStatus   = errors.New("invalid status")
	ErrSlotBeingBooked = errors.New("slot is currently being booked, please retry")
)

type CreateAppointmentInput struct {
	Name            string
	Phone           string
	Email           *string
	Date            string
	TimeSlot        string
	Room            *int // nil lets the service assign the lowest free room
	CaseDescription *string
	FillCaseForm    bool
	CaseForm        *CaseFormPayload
}

type Service struct {
	repo   Repository
	locker redisclient.Locker
	cfg    config.Config
}

func NewService(repo Repository, locker redisclient.Locker, cfg config.Config) *Service {
	return &Service{
		repo:   repo,
		locker: locker,
		cfg:    cfg,
	}
}

func (s *Service) storeCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.cfg.StoreTimeout)
}

// availableRooms returns {1..RoomCount} minus booked, ascending.
func availableRooms(booked []int) []int {
	taken := make(map[int]bool, len(booked))
	for _, room := range booked {
		taken[room] = true
	}
	var free []int
	for room := 1; room <= RoomCount; room++ {
		if !taken[room] {
			free = append(free, room)
		}
	}
	return free
}

// CheckCapacity reports how many rooms are committed at (date, timeSlot) and
// which remain free. Purely observational: the answer can be stale by the
// time a booking commits, which is why CreateAppointment re-checks under the
// slot lock.
func (s *Service) CheckCapacity(ctx context.Context, date, timeSlot string) (*SlotAvailability, error) {
	if !ValidDate(date) {
		return nil, ErrInvalidDate
	}
	if !ValidTimeSlot(timeSlot) {
		return nil, ErrInvalidTimeSlot
	}

	ctx, cancel := s.storeCtx(ctx)
	defer cancel()

	booked, err := s.repo.BookedRooms(ctx, date, timeSlot)
	if err != nil {
		return nil, fmt.Errorf("booked rooms: %w", err)
	}

	return &SlotAvailability{
		Date:           date,
		TimeSlot:       timeSlot,
		BookedCount:    len(booked),
		AvailableRooms: availableRooms(booked),
	}, nil
}

// CreateAppointment validates the booking input, re-checks capacity inside a
// per-slot distributed lock, and persists the appointment together with its
// optional case form in one transaction.
func (s *Service) CreateAppointment(ctx context.Context, in CreateAppointmentInput) (*AppointmentDetail, error) {
	if err := validateCreateInput(in); err != nil {
		return nil, err
	}

	var form *CaseForm
	if in.FillCaseForm {
		if in.CaseForm == nil || in.CaseForm.IsEmpty() {
			return nil, ErrEmptyCaseForm
		}
		form = &CaseForm{Payload: *in.CaseForm}
	}

	var created *Appointment

	err := s.locker.WithSlotLock(ctx, in.Date, in.TimeSlot, func(lockCtx context.Context) error {
		booked, err := s.repo.BookedRooms(lockCtx, in.Date, in.TimeSlot)
		if err != nil {
			return fmt.Errorf("re-check capacity: %w", err)
		}
		if len(booked) >= RoomCount {
			return ErrSlotFull
		}

		free := availableRooms(booked)
		room := free[0]
		if in.Room != nil {
			room = *in.Room
			taken := true
			for _, f := range free {
				if f == room {
					taken = false
					break
				}
			}
			if taken {
				return ErrRoomTaken
			}
		}

		appt := &Appointment{
			Name:            in.Name,
			Phone:           in.Phone,
			Email:           in.Email,
			Date:            in.Date,
			TimeSlot:        in.TimeSlot,
			Room:            room,
			CaseDescription: in.CaseDescription,
			Status:          StatusPending,
		}

		created, err = s.repo.CreateAppointment(lockCtx, appt, form)
		if err != nil {
			return fmt.Errorf("create appointment: %w", err)
		}

		s.logEvent(lockCtx, created.ID, EventAppointmentCreated, map[string]any{
			"date": created.Date,
			"time": created.TimeSlot,
			"room": created.Room,
		})

		return nil
	})

	if err != nil {
		if errors.Is(err, redisclient.ErrLockNotAcquired) {
			return nil, ErrSlotBeingBooked
		}
		return nil, err
	}

	return s.resolve(ctx, created)
}

func validateCreateInput(in CreateAppointmentInput) error {
	switch {
	case in.Name == "":
		return fmt.Errorf("%w: name", ErrMissingField)
	case in.Phone == "":
		return fmt.Errorf("%w: phoneNo", ErrMissingField)
	case in.Date == "":
		return fmt.Errorf("%w: selectedDate", ErrMissingField)
	case in.TimeSlot == "":
		return fmt.Errorf("%w: selectedTime", ErrMissingField)
	}
	if !ValidDate(in.Date) {
		return ErrInvalidDate
	}
	if !ValidTimeSlot(in.TimeSlot) {
		return ErrInvalidTimeSlot
	}
	if in.Room != nil && !ValidRoom(*in.Room) {
		return ErrInvalidRoom
	}
	return nil
}

// FindAlternatives suggests same-day slots with residual capacity near a full
// slot, nearest first, alternating earlier and later. It never returns the
// requested slot itself.
func (s *Service) FindAlternatives(ctx context.Context, date, timeSlot string) ([]SlotAvailability, error) {
	if !ValidDate(date) {
		return nil, ErrInvalidDate
	}
	idx := SlotIndex(timeSlot)
	if idx < 0 {
		return nil, ErrInvalidTimeSlot
	}

	var alternatives []SlotAvailability
	for i := 1; i <= AlternativeRadius && len(alternatives) < MaxAlternatives; i++ {
		for _, candidate := range []int{idx - i, idx + i} {
			if candidate < 0 || candidate >= len(timeSlots) {
				continue
			}
			if len(alternatives) >= MaxAlternatives {
				break
			}
			avail, err := s.CheckCapacity(ctx, date, timeSlots[candidate])
			if err != nil {
				return nil, err
			}
			if len(avail.AvailableRooms) > 0 {
				alternatives = append(alternatives, *avail)
			}
		}
	}
	return alternatives, nil
}

// UpdateStatus is the administrative transition. Any status in the known set
// is accepted, including moving a cancelled booking back to confirmed;
// setting the current status again is a no-op.
func (s *Service) UpdateStatus(ctx context.Context, id uuid.UUID, status Status) (*AppointmentDetail, error) {
	if !ValidStatus(status) {
		return nil, ErrInvalidStatus
	}

	ctx, cancel := s.storeCtx(ctx)
	defer cancel()

	before, err := s.repo.GetAppointmentByID(ctx, id)
	if err != nil {
		return nil, err
	}

	updated, err := s.repo.UpdateStatus(ctx, id, status)
	if err != nil {
		return nil, err
	}

	if before.Status != updated.Status {
		s.logEvent(ctx, updated.ID, EventStatusChanged, map[string]any{
			"from": string(before.Status),
			"to":   string(updated.Status),
		})
	}

	return s.resolve(ctx, updated)
}

// GetAppointment retrieves an appointment with its case form resolved.
func (s *Service) GetAppointment(ctx context.Context, id uuid.UUID) (*AppointmentDetail, error) {
	ctx, cancel := s.storeCtx(ctx)
	defer cancel()

	appt, err := s.repo.GetAppointmentByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.resolve(ctx, appt)
}

// ListAppointments returns every appointment, newest first.
func (s *Service) ListAppointments(ctx context.Context) ([]AppointmentDetail, error) {
	ctx, cancel := s.storeCtx(ctx)
	defer cancel()

	appts, err := s.repo.ListAppointments(ctx)
	if err != nil {
		return nil, fmt.Errorf("list appointments: %w", err)
	}
	return s.resolveAll(ctx, appts)
}

// ListByDate returns the non-cancelled appointments for one calendar date.
func (s *Service) ListByDate(ctx context.Context, date string) ([]AppointmentDetail, error) {
	if !ValidDate(date) {
		return nil, ErrInvalidDate
	}

	ctx, cancel := s.storeCtx(ctx)
	defer cancel()

	appts, err := s.repo.ListByDate(ctx, date)
	if err != nil {
		return nil, fmt.Errorf("list by date: %w", err)
	}
	return s.resolveAll(ctx, appts)
}

// RecordUpcomingReminders logs one reminder event for each still-pending
// appointment scheduled for the day after now. Called periodically by the
// reminder worker; safe to run repeatedly.
func (s *Service) RecordUpcomingReminders(ctx context.Context, now time.Time) error {
	date := now.Add(24 * time.Hour).Format("2006-01-02")

	pending, err := s.repo.FindPendingForDate(ctx, date)
	if err != nil {
		return fmt.Errorf("find pending for %s: %w", date, err)
	}

	for _, appt := range pending {
		seen, err := s.repo.HasEvent(ctx, appt.ID, EventReminderLogged)
		if err != nil {
			log.Printf("reminder check failed for appointment %s: %v", appt.ID, err)
			continue
		}
		if seen {
			continue
		}
		s.logEvent(ctx, appt.ID, EventReminderLogged, map[string]any{
			"date": appt.Date,
			"time": appt.TimeSlot,
		})
	}

	return nil
}

func (s *Service) resolve(ctx context.Context, appt *Appointment) (*AppointmentDetail, error) {
	detail := &AppointmentDetail{Appointment: *appt}
	if appt.CaseFormID != nil {
		form, err := s.repo.GetCaseFormByID(ctx, *appt.CaseFormID)
		if err != nil {
			return nil, fmt.Errorf("resolve case form: %w", err)
		}
		detail.CaseForm = form
	}
	return detail, nil
}

func (s *Service) resolveAll(ctx context.Context, appts []Appointment) ([]AppointmentDetail, error) {
	details := make([]AppointmentDetail, 0, len(appts))
	for i := range appts {
		d, err := s.resolve(ctx, &appts[i])
		if err != nil {
			return nil, err
		}
		details = append(details, *d)
	}
	return details, nil
}

func (s *Service) logEvent(ctx context.Context, appointmentID uuid.UUID, eventType string, payload map[string]any) {
	data, err := json.Marshal(payload)
	if err != nil {
		log.Printf("failed to marshal event payload for %s: %v", eventType, err)
		data = nil
	}

	apptID := appointmentID

	ev := EventLog{
		EventType:     eventType,
		AppointmentID: &apptID,
		Payload:       data,
		CreatedAt:     time.Now(),
	}

	if err := s.repo.InsertEvent(ctx, ev); err != nil {
		log.Printf("failed to insert event log %s for appointment %s: %v", eventType, appointmentID, err)
	}
}
