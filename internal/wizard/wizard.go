// Package wizard models the multi-step booking flow as an explicit state
// machine. Each step application is a pure transformation of the session;
// persistence and capacity checks stay at the API layer.
package wizard

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/naminath/opd-booking/internal/booking"
)

type Step string

const (
	StepDateTime     Step = "date_time"
	StepAlternatives Step = "alternatives"
	StepRoom         Step = "room"
	StepPersonalInfo Step = "personal_info"
	StepCaseForm     Step = "case_form"
	StepConfirm      Step = "confirm"
	StepDone         Step = "done"
)

type InputKind string

const (
	InputSelectSlot        InputKind = "select_slot"
	InputChooseAlternative InputKind = "choose_alternative"
	InputSelectRoom        InputKind = "select_room"
	InputPersonalInfo      InputKind = "personal_info"
	InputCaseForm          InputKind = "case_form"
	InputConfirm           InputKind = "confirm"
	InputBack              InputKind = "back"
)

var (
	ErrInvalidTransition = errors.New("input not valid for current step")
	ErrIncompleteInput   = errors.New("input is missing required fields")
)

// Draft accumulates the booking across steps; it maps directly onto
// booking.CreateAppointmentInput once the wizard reaches the confirm step.
type Draft struct {
	Date            string                   `json:"date,omitempty"`
	TimeSlot        string                   `json:"timeSlot,omitempty"`
	Room            *int                     `json:"room,omitempty"`
	Name            string                   `json:"name,omitempty"`
	Phone           string                   `json:"phone,omitempty"`
	Email           *string                  `json:"email,omitempty"`
	CaseDescription *string                  `json:"caseDescription,omitempty"`
	FillCaseForm    bool                     `json:"fillCaseForm,omitempty"`
	CaseForm        *booking.CaseFormPayload `json:"caseForm,omitempty"`
}

type Session struct {
	ID        uuid.UUID `json:"id"`
	Step      Step      `json:"step"`
	Draft     Draft     `json:"draft"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Input is one step submission. Which fields matter depends on Kind.
type Input struct {
	Kind InputKind

	// select_slot / choose_alternative
	Date     string
	TimeSlot string
	// SlotFull is computed by the caller from the capacity checker; a full
	// slot routes the session to the alternatives step instead of room
	// selection.
	SlotFull bool

	// select_room; nil lets the server assign a room at commit time
	Room *int

	// personal_info
	Name            string
	Phone           string
	Email           *string
	CaseDescription *string

	// case_form
	FillCaseForm bool
	CaseForm     *booking.CaseFormPayload
}

func NewSession() Session {
	now := time.Now()
	return Session{
		ID:        uuid.New(),
		Step:      StepDateTime,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Apply computes the next session state for one input. It never mutates s.
func Apply(s Session, in Input) (Session, error) {
	next := s

	if in.Kind == InputBack {
		prev, err := previousStep(s.Step)
		if err != nil {
			return s, err
		}
		next.Step = prev
		next.UpdatedAt = time.Now()
		return next, nil
	}

	switch s.Step {
	case StepDateTime:
		if in.Kind != InputSelectSlot {
			return s, ErrInvalidTransition
		}
		if in.Date == "" || in.TimeSlot == "" {
			return s, fmt.Errorf("%w: date and time", ErrIncompleteInput)
		}
		next.Draft.Date = in.Date
		next.Draft.TimeSlot = in.TimeSlot
		if in.SlotFull {
			next.Step = StepAlternatives
		} else {
			next.Step = StepRoom
		}

	case StepAlternatives:
		if in.Kind != InputChooseAlternative {
			return s, ErrInvalidTransition
		}
		if in.Date == "" || in.TimeSlot == "" {
			return s, fmt.Errorf("%w: date and time", ErrIncompleteInput)
		}
		next.Draft.Date = in.Date
		next.Draft.TimeSlot = in.TimeSlot
		next.Step = StepRoom

	case StepRoom:
		if in.Kind != InputSelectRoom {
			return s, ErrInvalidTransition
		}
		next.Draft.Room = in.Room
		next.Step = StepPersonalInfo

	case StepPersonalInfo:
		if in.Kind != InputPersonalInfo {
			return s, ErrInvalidTransition
		}
		if in.Name == "" || in.Phone == "" {
			return s, fmt.Errorf("%w: name and phone", ErrIncompleteInput)
		}
		next.Draft.Name = in.Name
		next.Draft.Phone = in.Phone
		next.Draft.Email = in.Email
		next.Draft.CaseDescription = in.CaseDescription
		next.Step = StepCaseForm

	case StepCaseForm:
		if in.Kind != InputCaseForm {
			return s, ErrInvalidTransition
		}
		next.Draft.FillCaseForm = in.FillCaseForm
		next.Draft.CaseForm = in.CaseForm
		next.Step = StepConfirm

	case StepConfirm:
		if in.Kind != InputConfirm {
			return s, ErrInvalidTransition
		}
		next.Step = StepDone

	default:
		return s, ErrInvalidTransition
	}

	next.UpdatedAt = time.Now()
	return next, nil
}

// ReturnToAlternatives sends a session back to the alternatives step, used
// when the commit itself hits a full slot.
func ReturnToAlternatives(s Session) Session {
	s.Step = StepAlternatives
	s.UpdatedAt = time.Now()
	return s
}

func previousStep(s Step) (Step, error) {
	switch s {
	case StepAlternatives, StepRoom:
		return StepDateTime, nil
	case StepPersonalInfo:
		return StepRoom, nil
	case StepCaseForm:
		return StepPersonalInfo, nil
	case StepConfirm:
		return StepCaseForm, nil
	}
	return s, ErrInvalidTransition
}

// BookingInput converts a completed draft into the allocator's input.
func (d Draft) BookingInput() booking.CreateAppointmentInput {
	return booking.CreateAppointmentInput{
		Name:            d.Name,
		Phone:           d.Phone,
		Email:           d.Email,
		Date:            d.Date,
		TimeSlot:        d.TimeSlot,
		Room:            d.Room,
		CaseDescription: d.CaseDescription,
		FillCaseForm:    d.FillCaseForm,
		CaseForm:        d.CaseForm,
	}
}
