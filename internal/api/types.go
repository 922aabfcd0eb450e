package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/shopslot/booking-service/internal/booking"
)

type CreateReservationRequest struct {
	ProviderID      string `json:"provider_id"`
	ShopID          string `json:"shop_id"`
	ClientID        string `json:"client_id"`
	ServiceID       string `json:"service_id"`
	Date            string `json:"date"`
	Time            string `json:"time"`
	DurationMinutes int    `json:"duration_minutes"`
}

type ReservationResponse struct {
	ID              uuid.UUID `json:"id"`
	ProviderID      uuid.UUID `json:"provider_id"`
	ShopID          uuid.UUID `json:"shop_id"`
	ClientID        uuid.UUID `json:"client_id"`
	ServiceID       uuid.UUID `json:"service_id"`
	Date            string    `json:"date"`
	Time            string    `json:"time"`
	DurationMinutes int       `json:"duration_minutes"`
	Status          string    `json:"status"`
	ExpiresAt       time.Time `json:"expires_at"`
}

type ConfirmReservationRequest struct {
	ActorID       string  `json:"actor_id"`
	TotalAmount   float64 `json:"total_amount"`
	ServiceAmount float64 `json:"service_amount"`
	TipAmount     float64 `json:"tip_amount"`
	PaymentMethod string  `json:"payment_method"`
}

type RequestAppointmentRequest struct {
	ProviderID      string `json:"provider_id"`
	ShopID          string `json:"shop_id"`
	ClientID        string `json:"client_id"`
	ServiceID       string `json:"service_id"`
	Date            string `json:"date"`
	Time            string `json:"time"`
	DurationMinutes int    `json:"duration_minutes"`
}

type UpdateStatusRequest struct {
	Action    string `json:"action"`
	NewStatus string `json:"new_status"`
	Reason    string `json:"reason,omitempty"`
	ActorID   string `json:"actor_id"`
	ActorRole string `json:"actor_role"`
}

type AppointmentResponse struct {
	ID                 uuid.UUID               `json:"id"`
	ProviderID         uuid.UUID               `json:"provider_id"`
	ClientID           uuid.UUID               `json:"client_id"`
	ServiceID          uuid.UUID               `json:"service_id"`
	ShopID             uuid.UUID               `json:"shop_id"`
	Date               string                  `json:"date"`
	Time               string                  `json:"time"`
	DurationMinutes    int                     `json:"duration_minutes"`
	Status             string                  `json:"status"`
	StatusHistory      []booking.StatusChange  `json:"status_history"`
	CancellationReason string                  `json:"cancellation_reason,omitempty"`
	NoShowReason       string                  `json:"no_show_reason,omitempty"`
	RescheduleReason   string                  `json:"reschedule_reason,omitempty"`
	Payment            *booking.PaymentDetails `json:"payment,omitempty"`
	CreatedAt          time.Time               `json:"created_at"`
	UpdatedAt          time.Time               `json:"updated_at"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func toAppointmentResponse(a *booking.Appointment) AppointmentResponse {
	return AppointmentResponse{
		ID:                 a.ID,
		ProviderID:         a.ProviderID,
		ClientID:           a.ClientID,
		ServiceID:          a.ServiceID,
		ShopID:             a.ShopID,
		Date:               a.Date,
		Time:               a.StartTime,
		DurationMinutes:    a.DurationMinutes,
		Status:             string(a.Status),
		StatusHistory:      a.StatusHistory,
		CancellationReason: a.CancellationReason,
		NoShowReason:       a.NoShowReason,
		RescheduleReason:   a.RescheduleReason,
		Payment:            a.Payment,
		CreatedAt:          a.CreatedAt,
		UpdatedAt:          a.UpdatedAt,
	}
}
