package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/naminath/opd-booking/internal/auth"
)

func registerHandler(svc *auth.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req RegisterRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "could not parse JSON body")
			return
		}

		admin, token, err := svc.Register(r.Context(), req.FullName, req.Email, req.Password)
		if err != nil {
			handleAuthError(w, r, err)
			return
		}

		writeJSON(w, http.StatusCreated, AuthResponse{
			Admin: AdminResponse{ID: admin.ID, FullName: admin.FullName, Email: admin.Email},
			Token: token,
		}, "Admin registered")
	}
}

func loginHandler(svc *auth.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req LoginRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "could not parse JSON body")
			return
		}

		admin, token, err := svc.Login(r.Context(), req.Email, req.Password)
		if err != nil {
			handleAuthError(w, r, err)
			return
		}

		writeJSON(w, http.StatusOK, AuthResponse{
			Admin: AdminResponse{ID: admin.ID, FullName: admin.FullName, Email: admin.Email},
			Token: token,
		}, "Logged in")
	}
}

func handleAuthError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, auth.ErrMissingCredentials):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, auth.ErrEmailTaken):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, auth.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, err.Error())
	default:
		log.Printf("auth error request_id=%s: %v", GetRequestID(r.Context()), err)
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}
