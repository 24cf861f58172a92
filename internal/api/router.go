package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/naminath/opd-booking/internal/auth"
	"github.com/naminath/opd-booking/internal/booking"
	"github.com/naminath/opd-booking/internal/wizard"
)

type RouterConfig struct {
	Booking     *booking.Service
	Auth        *auth.Service
	TokenIssuer *auth.TokenIssuer
	WizardStore wizard.Store
	PgPool      *pgxpool.Pool
	Redis       *redis.Client
	Env         string
	Version     string
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	// Apply middleware
	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware)

	// Health endpoints
	health := NewHealthHandler(cfg.PgPool, cfg.Redis, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)

	r.Route("/api/v1", func(r chi.Router) {
		// Public booking surface
		r.Post("/appointments", createAppointmentHandler(cfg.Booking))
		r.Get("/appointments/{id}", getAppointmentHandler(cfg.Booking))
		r.Get("/appointments/date/{date}", listAppointmentsByDateHandler(cfg.Booking))
		r.Get("/availability", checkAvailabilityHandler(cfg.Booking))
		r.Get("/availability/alternatives", findAlternativesHandler(cfg.Booking))
		r.Get("/slots", listSlotsHandler())

		// Booking wizard sessions
		r.Post("/wizard", startWizardHandler(cfg.WizardStore))
		r.Get("/wizard/{id}", getWizardHandler(cfg.WizardStore))
		r.Post("/wizard/{id}/advance", advanceWizardHandler(cfg.WizardStore, cfg.Booking))

		// Admin identity
		r.Post("/auth/register", registerHandler(cfg.Auth))
		r.Post("/auth/login", loginHandler(cfg.Auth))

		// Admin dashboard
		r.Group(func(r chi.Router) {
			r.Use(RequireAdmin(cfg.TokenIssuer))
			r.Get("/appointments", listAppointmentsHandler(cfg.Booking))
			r.Patch("/appointments/{id}/status", updateStatusHandler(cfg.Booking))
		})
	})

	return r
}
