// Package hold implements the short-lived slot reservation mechanism:
// a reservation claims a provider time slot for a fixed window while
// payment is in progress, blocking competing reservations until it is
// confirmed, released, or expired. Holds are process-local and not
// persisted; a restart drops them and the slots become bookable again.
package hold

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/shopslot/booking-service/internal/availability"
	"github.com/shopslot/booking-service/internal/booking"
)

var (
	ErrOutsideAvailability = errors.New("requested slot is outside provider availability")
	ErrSlotAlreadyHeld     = errors.New("slot is already held by an active reservation")
	ErrReservationNotFound = errors.New("reservation not found")
	ErrReservationExpired  = errors.New("reservation hold has expired")
)

// DefaultTTL is how long a hold blocks competing reservations. Fixed,
// independent of service duration.
const DefaultTTL = 5 * time.Minute

type Status string

const (
	StatusActive    Status = "active"
	StatusConfirmed Status = "confirmed"
	StatusReleased  Status = "released"
	StatusExpired   Status = "expired"
)

type Reservation struct {
	ID              uuid.UUID
	ProviderID      uuid.UUID
	ShopID          uuid.UUID
	ClientID        uuid.UUID
	ServiceID       uuid.UUID
	Date            string
	StartTime       string
	DurationMinutes int
	Status          Status
	ExpiresAt       time.Time
	CreatedAt       time.Time

	startMin int
	endMin   int
}

// AppointmentCreator converts a confirmed reservation into a durable
// appointment. Implemented by booking.Service.
type AppointmentCreator interface {
	CreateBookedAppointment(ctx context.Context, params booking.BookingParams, payment booking.PaymentDetails, actor booking.Actor) (*booking.Appointment, error)
}

// Manager owns the in-memory active-reservation set. It is explicitly
// constructed so tests can run isolated instances with a fake clock.
// The mutex makes the check-then-insert atomic: the first caller wins
// and later overlapping callers see the hold.
type Manager struct {
	creator AppointmentCreator
	ttl     time.Duration
	now     func() time.Time

	mu    sync.Mutex
	slots map[string]map[uuid.UUID]*Reservation // provider+date -> active holds
	byID  map[uuid.UUID]*Reservation
}

func NewManager(creator AppointmentCreator, ttl time.Duration, now func() time.Time) *Manager {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if now == nil {
		now = time.Now
	}
	return &Manager{
		creator: creator,
		ttl:     ttl,
		now:     now,
		slots:   make(map[string]map[uuid.UUID]*Reservation),
		byID:    make(map[uuid.UUID]*Reservation),
	}
}

func dayKey(providerID uuid.UUID, date string) string {
	return providerID.String() + "|" + date
}

// Reserve validates the requested window against the provider's weekly
// schedule and the active holds for that provider and date, then
// creates a hold expiring after the fixed TTL. Expired-but-unswept
// holds do not block. Nothing is partially reserved on failure.
func (m *Manager) Reserve(ctx context.Context, params booking.BookingParams, schedule availability.WeeklySchedule) (*Reservation, error) {
	within, err := availability.WindowWithin(schedule, params.Date, params.StartTime, params.DurationMinutes)
	if err != nil {
		return nil, fmt.Errorf("check availability: %w", err)
	}
	if !within {
		return nil, ErrOutsideAvailability
	}

	startMin, err := availability.ParseClock(params.StartTime)
	if err != nil {
		return nil, err
	}
	endMin := startMin + params.DurationMinutes

	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	key := dayKey(params.ProviderID, params.Date)

	for _, r := range m.slots[key] {
		if !now.Before(r.ExpiresAt) {
			m.expireLocked(r)
			continue
		}
		if availability.Overlaps(startMin, endMin, r.startMin, r.endMin) {
			return nil, ErrSlotAlreadyHeld
		}
	}

	res := &Reservation{
		ID:              uuid.New(),
		ProviderID:      params.ProviderID,
		ShopID:          params.ShopID,
		ClientID:        params.ClientID,
		ServiceID:       params.ServiceID,
		Date:            params.Date,
		StartTime:       params.StartTime,
		DurationMinutes: params.DurationMinutes,
		Status:          StatusActive,
		ExpiresAt:       now.Add(m.ttl),
		CreatedAt:       now,
		startMin:        startMin,
		endMin:          endMin,
	}

	if m.slots[key] == nil {
		m.slots[key] = make(map[uuid.UUID]*Reservation)
	}
	m.slots[key][res.ID] = res
	m.byID[res.ID] = res

	out := *res
	return &out, nil
}

// Confirm converts an active, unexpired reservation into a confirmed
// appointment carrying the payment breakdown. The hold stays active
// while the durable write is in flight, so a persistence failure
// leaves the slot claimed and the caller may retry the confirm.
func (m *Manager) Confirm(ctx context.Context, id uuid.UUID, payment booking.PaymentDetails, actor booking.Actor) (*booking.Appointment, error) {
	m.mu.Lock()
	res, ok := m.byID[id]
	if !ok || res.Status != StatusActive {
		m.mu.Unlock()
		return nil, ErrReservationNotFound
	}
	if !m.now().Before(res.ExpiresAt) {
		m.expireLocked(res)
		m.mu.Unlock()
		return nil, ErrReservationExpired
	}
	params := booking.BookingParams{
		ProviderID:      res.ProviderID,
		ClientID:        res.ClientID,
		ServiceID:       res.ServiceID,
		ShopID:          res.ShopID,
		Date:            res.Date,
		StartTime:       res.StartTime,
		DurationMinutes: res.DurationMinutes,
	}
	m.mu.Unlock()

	appt, err := m.creator.CreateBookedAppointment(ctx, params, payment, actor)
	if err != nil {
		return nil, fmt.Errorf("persist booked appointment: %w", err)
	}

	m.mu.Lock()
	res.Status = StatusConfirmed
	m.removeLocked(res)
	m.mu.Unlock()

	return appt, nil
}

// Release drops an active hold without creating an appointment.
// Returns false when the reservation is absent or already terminal.
func (m *Manager) Release(id uuid.UUID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	res, ok := m.byID[id]
	if !ok || res.Status != StatusActive {
		return false
	}
	if !m.now().Before(res.ExpiresAt) {
		m.expireLocked(res)
		return false
	}

	res.Status = StatusReleased
	m.removeLocked(res)
	return true
}

// Active returns a snapshot of the unexpired active holds. Reading the
// snapshot never mutates expiry state; entries past their deadline are
// simply filtered out and left for the sweep.
func (m *Manager) Active() []Reservation {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	var out []Reservation
	for _, r := range m.byID {
		if r.Status != StatusActive || !now.Before(r.ExpiresAt) {
			continue
		}
		out = append(out, *r)
	}
	return out
}

// Sweep removes active holds past their deadline, marking them expired.
// Returns the number of holds removed. Bounds memory growth; the hot
// paths already treat expired entries as not active.
func (m *Manager) Sweep() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	swept := 0
	for _, r := range m.byID {
		if r.Status == StatusActive && !now.Before(r.ExpiresAt) {
			m.expireLocked(r)
			swept++
		}
	}
	return swept
}

// expireLocked and removeLocked require m.mu held.

func (m *Manager) expireLocked(r *Reservation) {
	r.Status = StatusExpired
	m.removeLocked(r)
}

func (m *Manager) removeLocked(r *Reservation) {
	key := dayKey(r.ProviderID, r.Date)
	if day := m.slots[key]; day != nil {
		delete(day, r.ID)
		if len(day) == 0 {
			delete(m.slots, key)
		}
	}
	delete(m.byID, r.ID)
}
