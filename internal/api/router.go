package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/shopslot/booking-service/internal/booking"
	"github.com/shopslot/booking-service/internal/hold"
)

type RouterConfig struct {
	Bookings *booking.Service
	Holds    *hold.Manager
	PgPool   *pgxpool.Pool
	Redis    *redis.Client
	Env      string
	Version  string
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

	// Reservation (hold) endpoints
	r.Post("/reservations", createReservationHandler(cfg.Bookings, cfg.Holds))
	r.Get("/reservations", listReservationsHandler(cfg.Holds))
	r.Post("/reservations/{id}/confirm", confirmReservationHandler(cfg.Holds))
	r.Delete("/reservations/{id}", releaseReservationHandler(cfg.Holds))

	// Appointment endpoints
	r.Post("/appointments", requestAppointmentHandler(cfg.Bookings))
	r.Get("/appointments", listAppointmentsHandler(cfg.Bookings))
	r.Get("/appointments/{id}", getAppointmentHandler(cfg.Bookings))
	r.Get("/appointments/{id}/actions", appointmentActionsHandler(cfg.Bookings))
	r.Post("/appointments/{id}/status", updateStatusHandler(cfg.Bookings))

	return r
}
