package booking

import (
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusRequested   Status = "requested"
	StatusConfirmed   Status = "confirmed"
	StatusInProgress  Status = "in-progress"
	StatusCompleted   Status = "completed"
	StatusCancelled   Status = "cancelled"
	StatusNoShow      Status = "no-show"
	StatusRescheduled Status = "rescheduled"
)

// IsTerminal reports whether no further transition is permitted.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusCancelled, StatusNoShow, StatusRescheduled:
		return true
	}
	return false
}

// Valid reports whether s is one of the seven defined statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusRequested, StatusConfirmed, StatusInProgress,
		StatusCompleted, StatusCancelled, StatusNoShow, StatusRescheduled:
		return true
	}
	return false
}

type Role string

const (
	RoleClient   Role = "client"
	RoleProvider Role = "provider"
	RoleOwner    Role = "owner"
)

func (r Role) Valid() bool {
	switch r {
	case RoleClient, RoleProvider, RoleOwner:
		return true
	}
	return false
}

// Actor is the authenticated user performing a status change. The role
// is supplied by the auth layer and trusted as given.
type Actor struct {
	ID   uuid.UUID
	Role Role
}

// StatusChange is one entry of an appointment's append-only history.
// Entries are never mutated after write.
type StatusChange struct {
	Status    Status    `json:"status"`
	ActorID   uuid.UUID `json:"actor_id"`
	ActorRole Role      `json:"actor_role"`
	Reason    string    `json:"reason,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// PaymentDetails is the breakdown captured at booking confirmation.
// Carried as data only; no processor integration.
type PaymentDetails struct {
	TotalAmount   float64 `json:"total_amount"`
	ServiceAmount float64 `json:"service_amount"`
	TipAmount     float64 `json:"tip_amount"`
	PaymentMethod string  `json:"payment_method"`
}

type Appointment struct {
	ID                 uuid.UUID
	ProviderID         uuid.UUID
	ClientID           uuid.UUID
	ServiceID          uuid.UUID
	ShopID             uuid.UUID
	Date               string // "2006-01-02"
	StartTime          string // "15:04"
	DurationMinutes    int
	Status             Status
	StatusHistory      []StatusChange
	CancellationReason string
	NoShowReason       string
	RescheduleReason   string
	Payment            *PaymentDetails
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// Notification is the record queued for the counter-party after a
// status mutation commits.
type Notification struct {
	ID            int64
	AppointmentID uuid.UUID
	RecipientRole Role
	EventType     string
	Payload       []byte
	CreatedAt     time.Time
}
