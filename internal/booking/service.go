package booking

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/shopslot/booking-service/internal/availability"
	redisclient "github.com/shopslot/booking-service/internal/redis"
)

const (
	EventAppointmentRequested = "APPOINTMENT_REQUESTED"
	EventAppointmentBooked    = "APPOINTMENT_BOOKED"
	EventStatusChanged        = "APPOINTMENT_STATUS_CHANGED"
)

var ErrOutsideAvailability = errors.New("requested slot is outside provider availability")

// BookingParams identifies the slot and parties for a new appointment.
type BookingParams struct {
	ProviderID      uuid.UUID
	ClientID        uuid.UUID
	ServiceID       uuid.UUID
	ShopID          uuid.UUID
	Date            string
	StartTime       string
	DurationMinutes int
}

// SlotKey is the provider+date+time composite used for slot locks.
func (p BookingParams) SlotKey() string {
	return fmt.Sprintf("%s:%s:%s", p.ProviderID, p.Date, p.StartTime)
}

type Service struct {
	repo   Repository
	locker redisclient.Locker
	now    func() time.Time
}

func NewService(repo Repository, locker redisclient.Locker, now func() time.Time) *Service {
	if now == nil {
		now = time.Now
	}
	return &Service{
		repo:   repo,
		locker: locker,
		now:    now,
	}
}

// RequestAppointment creates an appointment in requested status. This
// is the no-payment flow; the provider confirms (or declines) later
// through UpdateStatus. Instant-book flows go through the hold manager
// and land in confirmed via CreateBookedAppointment instead.
func (s *Service) RequestAppointment(ctx context.Context, params BookingParams, actor Actor) (*Appointment, error) {
	schedule, err := s.repo.GetProviderSchedule(ctx, params.ProviderID)
	if err != nil {
		return nil, fmt.Errorf("load provider schedule: %w", err)
	}

	within, err := availability.WindowWithin(*schedule, params.Date, params.StartTime, params.DurationMinutes)
	if err != nil {
		return nil, fmt.Errorf("check availability: %w", err)
	}
	if !within {
		return nil, ErrOutsideAvailability
	}

	appt, err := s.createAppointment(ctx, params, StatusRequested, nil, actor)
	if err != nil {
		return nil, err
	}

	s.notify(ctx, appt, RoleProvider, EventAppointmentRequested, map[string]any{
		"date":       appt.Date,
		"start_time": appt.StartTime,
	})

	return appt, nil
}

// CreateBookedAppointment creates an appointment directly in confirmed
// status carrying the payment breakdown. Called by the hold manager
// when a reservation is confirmed; availability was already validated
// at reserve time.
func (s *Service) CreateBookedAppointment(ctx context.Context, params BookingParams, payment PaymentDetails, actor Actor) (*Appointment, error) {
	appt, err := s.createAppointment(ctx, params, StatusConfirmed, &payment, actor)
	if err != nil {
		return nil, err
	}

	s.notify(ctx, appt, RoleProvider, EventAppointmentBooked, map[string]any{
		"date":       appt.Date,
		"start_time": appt.StartTime,
		"total":      payment.TotalAmount,
	})

	return appt, nil
}

// createAppointment performs the durable double-book check and insert
// under a per-slot Redis lock so that concurrent requests for the same
// slot cannot both create an appointment.
func (s *Service) createAppointment(ctx context.Context, params BookingParams, initial Status, payment *PaymentDetails, actor Actor) (*Appointment, error) {
	var created *Appointment

	err := s.locker.WithSlotLock(ctx, params.SlotKey(), func(lockCtx context.Context) error {
		conflict, err := s.hasBookedConflict(lockCtx, params)
		if err != nil {
			return fmt.Errorf("check booked conflict: %w", err)
		}
		if conflict {
			return ErrSlotAlreadyBooked
		}

		now := s.now()
		appt := &Appointment{
			ID:              uuid.New(),
			ProviderID:      params.ProviderID,
			ClientID:        params.ClientID,
			ServiceID:       params.ServiceID,
			ShopID:          params.ShopID,
			Date:            params.Date,
			StartTime:       params.StartTime,
			DurationMinutes: params.DurationMinutes,
			Status:          initial,
			StatusHistory: []StatusChange{{
				Status:    initial,
				ActorID:   actor.ID,
				ActorRole: actor.Role,
				Timestamp: now,
			}},
			Payment:   payment,
			CreatedAt: now,
			UpdatedAt: now,
		}

		created, err = s.repo.CreateAppointment(lockCtx, appt)
		if err != nil {
			return fmt.Errorf("create appointment: %w", err)
		}
		return nil
	})

	if err != nil {
		if errors.Is(err, redisclient.ErrLockNotAcquired) {
			return nil, ErrSlotBeingBooked
		}
		return nil, err
	}

	return created, nil
}

func (s *Service) hasBookedConflict(ctx context.Context, params BookingParams) (bool, error) {
	start, err := availability.ParseClock(params.StartTime)
	if err != nil {
		return false, err
	}
	end := start + params.DurationMinutes

	booked, err := s.repo.ListBookedForProviderDate(ctx, params.ProviderID, params.Date)
	if err != nil {
		return false, err
	}

	for _, b := range booked {
		bStart, err := availability.ParseClock(b.StartTime)
		if err != nil {
			return false, fmt.Errorf("stored appointment %s: %w", b.ID, err)
		}
		if availability.Overlaps(start, end, bStart, bStart+b.DurationMinutes) {
			return true, nil
		}
	}
	return false, nil
}

// UpdateStatus is the single choke point that mutates an appointment's
// status. The requested action must appear in the state machine's legal
// set for the current status and actor role, with a matching target; a
// required reason must be non-empty. History is append-only.
func (s *Service) UpdateStatus(ctx context.Context, id uuid.UUID, actionName string, newStatus Status, reason string, actor Actor) (*Appointment, error) {
	appt, err := s.repo.GetAppointmentByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load appointment: %w", err)
	}

	action, ok := FindAction(appt.Status, actor.Role, actionName)
	if !ok {
		return nil, fmt.Errorf("%w: action %q not permitted for %s as %s",
			ErrInvalidTransition, actionName, appt.Status, actor.Role)
	}
	if action.Target != newStatus {
		return nil, fmt.Errorf("%w: action %q targets %s, not %s",
			ErrInvalidTransition, actionName, action.Target, newStatus)
	}

	reason = strings.TrimSpace(reason)
	if action.RequiresReason && reason == "" {
		return nil, fmt.Errorf("%w: action %q requires a reason", ErrInvalidTransition, actionName)
	}

	now := s.now()
	appt.StatusHistory = append(appt.StatusHistory, StatusChange{
		Status:    newStatus,
		ActorID:   actor.ID,
		ActorRole: actor.Role,
		Reason:    reason,
		Timestamp: now,
	})
	appt.Status = newStatus
	appt.UpdatedAt = now

	switch newStatus {
	case StatusCancelled:
		appt.CancellationReason = reason
	case StatusNoShow:
		appt.NoShowReason = reason
	case StatusRescheduled:
		appt.RescheduleReason = reason
	}

	updated, err := s.repo.UpdateAppointment(ctx, appt)
	if err != nil {
		return nil, fmt.Errorf("update appointment: %w", err)
	}

	// Notify the counter-party only after the mutation committed.
	recipient := RoleProvider
	if actor.Role != RoleClient {
		recipient = RoleClient
	}
	s.notify(ctx, updated, recipient, EventStatusChanged, map[string]any{
		"action": actionName,
		"status": string(newStatus),
		"reason": reason,
	})

	return updated, nil
}

// AvailableActionsFor returns the legal transitions for an existing
// appointment, resolving its current status first.
func (s *Service) AvailableActionsFor(ctx context.Context, id uuid.UUID, role Role) ([]Action, error) {
	appt, err := s.repo.GetAppointmentByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load appointment: %w", err)
	}
	return AvailableActions(appt.Status, role), nil
}

// ProviderSchedule exposes the provider's weekly availability to the
// reserve path.
func (s *Service) ProviderSchedule(ctx context.Context, providerID uuid.UUID) (*availability.WeeklySchedule, error) {
	schedule, err := s.repo.GetProviderSchedule(ctx, providerID)
	if err != nil {
		return nil, fmt.Errorf("load provider schedule: %w", err)
	}
	return schedule, nil
}

func (s *Service) GetAppointment(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	appt, err := s.repo.GetAppointmentByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get appointment: %w", err)
	}
	return appt, nil
}

func (s *Service) ListByClient(ctx context.Context, clientID uuid.UUID, limit, offset int) ([]Appointment, error) {
	limit, offset = clampPage(limit, offset)
	appts, err := s.repo.ListAppointmentsByClient(ctx, clientID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list appointments by client: %w", err)
	}
	return appts, nil
}

func (s *Service) ListByProvider(ctx context.Context, providerID uuid.UUID, limit, offset int) ([]Appointment, error) {
	limit, offset = clampPage(limit, offset)
	appts, err := s.repo.ListAppointmentsByProvider(ctx, providerID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list appointments by provider: %w", err)
	}
	return appts, nil
}

func clampPage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = 20 // default
	}
	if limit > 100 {
		limit = 100 // max
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

func (s *Service) notify(ctx context.Context, appt *Appointment, recipient Role, eventType string, payload map[string]any) {
	data, err := json.Marshal(payload)
	if err != nil {
		log.Printf("failed to marshal notification payload for %s: %v", eventType, err)
		data = nil
	}

	n := Notification{
		AppointmentID: appt.ID,
		RecipientRole: recipient,
		EventType:     eventType,
		Payload:       data,
		CreatedAt:     s.now(),
	}

	if err := s.repo.InsertNotification(ctx, n); err != nil {
		log.Printf("failed to insert notification %s for appointment %s: %v", eventType, appt.ID, err)
	}
}
