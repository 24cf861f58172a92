package booking

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var (
	ErrAppointmentNotFound = errors.New("appointment not found")
	ErrCaseFormNotFound    = errors.New("case form not found")

	// ErrRoomTaken means the (date, slot, room) triple already has an active
	// booking. The unique index reports this even when two requests race past
	// the capacity check.
	ErrRoomTaken = errors.New("room already booked for this slot")
)

// Repository contains all DB interactions needed by the service.
type Repository interface {
	// BookedRooms returns the room numbers with a non-cancelled booking at
	// (date, timeSlot), in ascending order.
	BookedRooms(ctx context.Context, date, timeSlot string) ([]int, error)

	// CreateAppointment persists appt, and form when non-nil, atomically:
	// either both rows land and the appointment's case_form_id points at the
	// form, or neither row exists.
	CreateAppointment(ctx context.Context, appt *Appointment, form *CaseForm) (*Appointment, error)

	GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	GetCaseFormByID(ctx context.Context, id uuid.UUID) (*CaseForm, error)
	ListAppointments(ctx context.Context) ([]Appointment, error)
	ListByDate(ctx context.Context, date string) ([]Appointment, error)

	UpdateStatus(ctx context.Context, id uuid.UUID, status Status) (*Appointment, error)

	// Reminder worker
	FindPendingForDate(ctx context.Context, date string) ([]Appointment, error)
	HasEvent(ctx context.Context, appointmentID uuid.UUID, eventType string) (bool, error)

	InsertEvent(ctx context.Context, ev EventLog) error
}
