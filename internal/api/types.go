package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/naminath/opd-booking/internal/booking"
)

// Envelope is the response shape every endpoint uses; errors carry a nil Data.
type Envelope struct {
	StatusCode int    `json:"statusCode"`
	Data       any    `json:"data"`
	Message    string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, data any, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(Envelope{
		StatusCode: status,
		Data:       data,
		Message:    message,
	})
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, nil, message)
}

type CreateAppointmentRequest struct {
	Name            string                   `json:"name"`
	PhoneNo         string                   `json:"phoneNo"`
	Email           *string                  `json:"email,omitempty"`
	SelectedDate    string                   `json:"selectedDate"`
	SelectedTime    string                   `json:"selectedTime"`
	SelectedOPD     *int                     `json:"selectedOPD,omitempty"`
	CaseDescription *string                  `json:"caseDescription,omitempty"`
	FillCaseForm    bool                     `json:"fillCaseForm,omitempty"`
	CaseForm        *booking.CaseFormPayload `json:"caseForm,omitempty"`
}

func (r CreateAppointmentRequest) toInput() booking.CreateAppointmentInput {
	return booking.CreateAppointmentInput{
		Name:            r.Name,
		Phone:           r.PhoneNo,
		Email:           r.Email,
		Date:            r.SelectedDate,
		TimeSlot:        r.SelectedTime,
		Room:            r.SelectedOPD,
		CaseDescription: r.CaseDescription,
		FillCaseForm:    r.FillCaseForm,
		CaseForm:        r.CaseForm,
	}
}

type CaseFormResponse struct {
	ID            uuid.UUID               `json:"id"`
	AppointmentID uuid.UUID               `json:"appointmentId"`
	Payload       booking.CaseFormPayload `json:"payload"`
	CreatedAt     time.Time               `json:"createdAt"`
}

type AppointmentResponse struct {
	ID              uuid.UUID         `json:"id"`
	Name            string            `json:"name"`
	PhoneNo         string            `json:"phoneNo"`
	Email           *string           `json:"email,omitempty"`
	SelectedDate    string            `json:"selectedDate"`
	SelectedTime    string            `json:"selectedTime"`
	SelectedOPD     int               `json:"selectedOPD"`
	CaseDescription *string           `json:"caseDescription,omitempty"`
	FillCaseForm    bool              `json:"fillCaseForm"`
	CaseFormID      *uuid.UUID        `json:"caseFormId,omitempty"`
	CaseForm        *CaseFormResponse `json:"caseForm,omitempty"`
	Status          string            `json:"status"`
	CreatedAt       time.Time         `json:"createdAt"`
	UpdatedAt       time.Time         `json:"updatedAt"`
}

func toAppointmentResponse(d *booking.AppointmentDetail) AppointmentResponse {
	resp := AppointmentResponse{
		ID:              d.ID,
		Name:            d.Name,
		PhoneNo:         d.Phone,
		Email:           d.Email,
		SelectedDate:    d.Date,
		SelectedTime:    d.TimeSlot,
		SelectedOPD:     d.Room,
		CaseDescription: d.CaseDescription,
		FillCaseForm:    d.CaseFormID != nil,
		CaseFormID:      d.CaseFormID,
		Status:          string(d.Status),
		CreatedAt:       d.CreatedAt,
		UpdatedAt:       d.UpdatedAt,
	}
	if d.CaseForm != nil {
		resp.CaseForm = &CaseFormResponse{
			ID:            d.CaseForm.ID,
			AppointmentID: d.CaseForm.AppointmentID,
			Payload:       d.CaseForm.Payload,
			CreatedAt:     d.CaseForm.CreatedAt,
		}
	}
	return resp
}

func toAppointmentResponses(details []booking.AppointmentDetail) []AppointmentResponse {
	out := make([]AppointmentResponse, 0, len(details))
	for i := range details {
		out = append(out, toAppointmentResponse(&details[i]))
	}
	return out
}

type AvailabilityResponse struct {
	Date          string `json:"date"`
	Time          string `json:"time"`
	BookedCount   int    `json:"bookedCount"`
	AvailableOPDs []int  `json:"availableOPDs"`
}

type AlternativeSlotResponse struct {
	Date          string `json:"date"`
	Time          string `json:"time"`
	AvailableOPDs int    `json:"availableOPDs"`
}

type UpdateStatusRequest struct {
	Status string `json:"status"`
}

type RegisterRequest struct {
	FullName string `json:"fullName"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type AdminResponse struct {
	ID       uuid.UUID `json:"id"`
	FullName string    `json:"fullName"`
	Email    string    `json:"email"`
}

type AuthResponse struct {
	Admin AdminResponse `json:"admin"`
	Token string        `json:"token"`
}
