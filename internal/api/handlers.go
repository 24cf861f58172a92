package api

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/naminath/opd-booking/internal/booking"
)

func createAppointmentHandler(svc *booking.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateAppointmentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "could not parse JSON body")
			return
		}

		detail, err := svc.CreateAppointment(r.Context(), req.toInput())
		if err != nil {
			handleBookingError(w, r, err)
			return
		}

		writeJSON(w, http.StatusCreated, toAppointmentResponse(detail), "Appointment created successfully")
	}
}

func getAppointmentHandler(svc *booking.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid appointment ID")
			return
		}

		detail, err := svc.GetAppointment(r.Context(), id)
		if err != nil {
			handleBookingError(w, r, err)
			return
		}

		writeJSON(w, http.StatusOK, toAppointmentResponse(detail), "Appointment fetched successfully")
	}
}

func listAppointmentsHandler(svc *booking.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		details, err := svc.ListAppointments(r.Context())
		if err != nil {
			handleBookingError(w, r, err)
			return
		}

		writeJSON(w, http.StatusOK, toAppointmentResponses(details), "All appointments fetched successfully")
	}
}

func listAppointmentsByDateHandler(svc *booking.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		date := chi.URLParam(r, "date")

		details, err := svc.ListByDate(r.Context(), date)
		if err != nil {
			handleBookingError(w, r, err)
			return
		}

		writeJSON(w, http.StatusOK, toAppointmentResponses(details), "Appointments for "+date+" fetched successfully")
	}
}

func updateStatusHandler(svc *booking.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid appointment ID")
			return
		}

		var req UpdateStatusRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "could not parse JSON body")
			return
		}

		detail, err := svc.UpdateStatus(r.Context(), id, booking.Status(req.Status))
		if err != nil {
			handleBookingError(w, r, err)
			return
		}

		writeJSON(w, http.StatusOK, toAppointmentResponse(detail), "Appointment status updated successfully")
	}
}

func checkAvailabilityHandler(svc *booking.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		date := r.URL.Query().Get("date")
		timeSlot := r.URL.Query().Get("time")

		avail, err := svc.CheckCapacity(r.Context(), date, timeSlot)
		if err != nil {
			handleBookingError(w, r, err)
			return
		}

		writeJSON(w, http.StatusOK, AvailabilityResponse{
			Date:          avail.Date,
			Time:          avail.TimeSlot,
			BookedCount:   avail.BookedCount,
			AvailableOPDs: avail.AvailableRooms,
		}, "Availability fetched successfully")
	}
}

func findAlternativesHandler(svc *booking.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		date := r.URL.Query().Get("date")
		timeSlot := r.URL.Query().Get("time")

		alts, err := svc.FindAlternatives(r.Context(), date, timeSlot)
		if err != nil {
			handleBookingError(w, r, err)
			return
		}

		out := make([]AlternativeSlotResponse, 0, len(alts))
		for _, a := range alts {
			out = append(out, AlternativeSlotResponse{
				Date:          a.Date,
				Time:          a.TimeSlot,
				AvailableOPDs: len(a.AvailableRooms),
			})
		}

		writeJSON(w, http.StatusOK, out, "Alternative slots fetched successfully")
	}
}

func listSlotsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, booking.TimeSlots(), "Time slots fetched successfully")
	}
}

func handleBookingError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, booking.ErrMissingField),
		errors.Is(err, booking.ErrInvalidDate),
		errors.Is(err, booking.ErrInvalidTimeSlot),
		errors.Is(err, booking.ErrInvalidRoom),
		errors.Is(err, booking.ErrEmptyCaseForm),
		errors.Is(err, booking.ErrInvalidStatus),
		errors.Is(err, booking.ErrSlotFull):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, booking.ErrRoomTaken),
		errors.Is(err, booking.ErrSlotBeingBooked):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, booking.ErrAppointmentNotFound),
		errors.Is(err, booking.ErrCaseFormNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusGatewayTimeout, "upstream timeout, please retry")
	default:
		log.Printf("internal error request_id=%s: %v", GetRequestID(r.Context()), err)
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}
