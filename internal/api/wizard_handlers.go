package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/naminath/opd-booking/internal/booking"
	"github.com/naminath/opd-booking/internal/wizard"
)

type WizardAdvanceRequest struct {
	Kind            string                   `json:"kind"`
	SelectedDate    string                   `json:"selectedDate,omitempty"`
	SelectedTime    string                   `json:"selectedTime,omitempty"`
	SelectedOPD     *int                     `json:"selectedOPD,omitempty"`
	Name            string                   `json:"name,omitempty"`
	PhoneNo         string                   `json:"phoneNo,omitempty"`
	Email           *string                  `json:"email,omitempty"`
	CaseDescription *string                  `json:"caseDescription,omitempty"`
	FillCaseForm    bool                     `json:"fillCaseForm,omitempty"`
	CaseForm        *booking.CaseFormPayload `json:"caseForm,omitempty"`
}

type WizardSessionResponse struct {
	ID             uuid.UUID                 `json:"id"`
	Step           wizard.Step               `json:"step"`
	Draft          wizard.Draft              `json:"draft"`
	SuggestedSlots []AlternativeSlotResponse `json:"suggestedSlots,omitempty"`
	Appointment    *AppointmentResponse      `json:"appointment,omitempty"`
}

func startWizardHandler(store wizard.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session := wizard.NewSession()
		if err := store.Save(r.Context(), session); err != nil {
			log.Printf("wizard save failed request_id=%s: %v", GetRequestID(r.Context()), err)
			writeError(w, http.StatusInternalServerError, "internal server error")
			return
		}

		writeJSON(w, http.StatusCreated, WizardSessionResponse{
			ID:    session.ID,
			Step:  session.Step,
			Draft: session.Draft,
		}, "Booking session started")
	}
}

func getWizardHandler(store wizard.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid session ID")
			return
		}

		session, err := store.Load(r.Context(), id)
		if err != nil {
			handleWizardError(w, r, err)
			return
		}

		writeJSON(w, http.StatusOK, WizardSessionResponse{
			ID:    session.ID,
			Step:  session.Step,
			Draft: session.Draft,
		}, "Booking session fetched")
	}
}

// advanceWizardHandler applies one step submission. Slot selections are
// checked against current capacity so a full slot routes the session to the
// alternatives step with suggestions attached; confirming commits the booking
// through the allocator and, on a lost race, falls back the same way.
func advanceWizardHandler(store wizard.Store, svc *booking.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid session ID")
			return
		}

		session, err := store.Load(r.Context(), id)
		if err != nil {
			handleWizardError(w, r, err)
			return
		}

		var req WizardAdvanceRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "could not parse JSON body")
			return
		}

		input := wizard.Input{
			Kind:            wizard.InputKind(req.Kind),
			Date:            req.SelectedDate,
			TimeSlot:        req.SelectedTime,
			Room:            req.SelectedOPD,
			Name:            req.Name,
			Phone:           req.PhoneNo,
			Email:           req.Email,
			CaseDescription: req.CaseDescription,
			FillCaseForm:    req.FillCaseForm,
			CaseForm:        req.CaseForm,
		}

		if input.Kind == wizard.InputSelectSlot {
			avail, err := svc.CheckCapacity(r.Context(), input.Date, input.TimeSlot)
			if err != nil {
				handleBookingError(w, r, err)
				return
			}
			input.SlotFull = len(avail.AvailableRooms) == 0
		}

		next, err := wizard.Apply(session, input)
		if err != nil {
			handleWizardError(w, r, err)
			return
		}

		resp := WizardSessionResponse{
			ID:    next.ID,
			Step:  next.Step,
			Draft: next.Draft,
		}

		if next.Step == wizard.StepDone {
			detail, err := svc.CreateAppointment(r.Context(), next.Draft.BookingInput())
			if err != nil {
				if errors.Is(err, booking.ErrSlotFull) || errors.Is(err, booking.ErrRoomTaken) {
					// Lost the slot between selection and commit.
					next = wizard.ReturnToAlternatives(session)
					resp.Step = next.Step
					resp.SuggestedSlots = suggestAlternatives(r, svc, next.Draft.Date, next.Draft.TimeSlot)
					if err := store.Save(r.Context(), next); err != nil {
						log.Printf("wizard save failed request_id=%s: %v", GetRequestID(r.Context()), err)
					}
					writeJSON(w, http.StatusConflict, resp, "Slot filled up, please pick an alternative")
					return
				}
				handleBookingError(w, r, err)
				return
			}

			if err := store.Delete(r.Context(), next.ID); err != nil {
				log.Printf("wizard delete failed request_id=%s: %v", GetRequestID(r.Context()), err)
			}

			apptResp := toAppointmentResponse(detail)
			resp.Appointment = &apptResp
			writeJSON(w, http.StatusCreated, resp, "Appointment created successfully")
			return
		}

		if next.Step == wizard.StepAlternatives {
			resp.SuggestedSlots = suggestAlternatives(r, svc, next.Draft.Date, next.Draft.TimeSlot)
		}

		if err := store.Save(r.Context(), next); err != nil {
			log.Printf("wizard save failed request_id=%s: %v", GetRequestID(r.Context()), err)
			writeError(w, http.StatusInternalServerError, "internal server error")
			return
		}

		writeJSON(w, http.StatusOK, resp, "Booking session advanced")
	}
}

func suggestAlternatives(r *http.Request, svc *booking.Service, date, timeSlot string) []AlternativeSlotResponse {
	alts, err := svc.FindAlternatives(r.Context(), date, timeSlot)
	if err != nil {
		log.Printf("alternative lookup failed request_id=%s: %v", GetRequestID(r.Context()), err)
		return nil
	}

	out := make([]AlternativeSlotResponse, 0, len(alts))
	for _, a := range alts {
		out = append(out, AlternativeSlotResponse{
			Date:          a.Date,
			Time:          a.TimeSlot,
			AvailableOPDs: len(a.AvailableRooms),
		})
	}
	return out
}

func handleWizardError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, wizard.ErrSessionNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, wizard.ErrInvalidTransition),
		errors.Is(err, wizard.ErrIncompleteInput):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		log.Printf("wizard error request_id=%s: %v", GetRequestID(r.Context()), err)
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}
