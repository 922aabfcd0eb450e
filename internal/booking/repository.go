package booking

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/shopslot/booking-service/internal/availability"
)

var (
	ErrAppointmentNotFound = errors.New("appointment not found")
	ErrProviderNotFound    = errors.New("provider not found")
	ErrClientNotFound      = errors.New("client not found")
	ErrServiceNotFound     = errors.New("service not found")
	ErrInvalidTransition   = errors.New("invalid status transition")
	ErrSlotAlreadyBooked   = errors.New("slot already has a booked appointment")
	ErrSlotBeingBooked     = errors.New("slot is currently being booked, please retry")
)

// Repository contains all DB interactions needed by the service.
type Repository interface {
	GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	CreateAppointment(ctx context.Context, appt *Appointment) (*Appointment, error)
	UpdateAppointment(ctx context.Context, appt *Appointment) (*Appointment, error)

	// For durable conflict checks at booking time
	ListBookedForProviderDate(ctx context.Context, providerID uuid.UUID, date string) ([]Appointment, error)

	ListAppointmentsByClient(ctx context.Context, clientID uuid.UUID, limit, offset int) ([]Appointment, error)
	ListAppointmentsByProvider(ctx context.Context, providerID uuid.UUID, limit, offset int) ([]Appointment, error)

	// Weekly availability, read-only from this side
	GetProviderSchedule(ctx context.Context, providerID uuid.UUID) (*availability.WeeklySchedule, error)

	// Post-commit notification records
	InsertNotification(ctx context.Context, n Notification) error
}
