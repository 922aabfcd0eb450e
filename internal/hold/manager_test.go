package hold

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shopslot/booking-service/internal/availability"
	"github.com/shopslot/booking-service/internal/booking"
)

// fakeClock is advanced manually so expiry is deterministic.
type fakeClock struct {
	current time.Time
}

func (c *fakeClock) Now() time.Time { return c.current }

func (c *fakeClock) Advance(d time.Duration) { c.current = c.current.Add(d) }

// fakeCreator records the params it was called with and can be told to
// fail, standing in for the booking service's durable write.
type fakeCreator struct {
	err     error
	created []booking.BookingParams
	payment booking.PaymentDetails
}

func (f *fakeCreator) CreateBookedAppointment(ctx context.Context, params booking.BookingParams, payment booking.PaymentDetails, actor booking.Actor) (*booking.Appointment, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.created = append(f.created, params)
	f.payment = payment
	return &booking.Appointment{
		ID:              uuid.New(),
		ProviderID:      params.ProviderID,
		ClientID:        params.ClientID,
		ServiceID:       params.ServiceID,
		ShopID:          params.ShopID,
		Date:            params.Date,
		StartTime:       params.StartTime,
		DurationMinutes: params.DurationMinutes,
		Status:          booking.StatusConfirmed,
		Payment:         &payment,
	}, nil
}

func newTestManager() (*Manager, *fakeClock, *fakeCreator) {
	clock := &fakeClock{current: time.Date(2025, 1, 9, 12, 0, 0, 0, time.UTC)}
	creator := &fakeCreator{}
	return NewManager(creator, DefaultTTL, clock.Now), clock, creator
}

func fridaySchedule() availability.WeeklySchedule {
	return availability.WeeklySchedule{
		Friday: availability.DaySchedule{
			Enabled:   true,
			Intervals: []availability.Interval{{Start: "09:00", End: "17:00"}},
		},
	}
}

func slotParams(providerID uuid.UUID, start string, duration int) booking.BookingParams {
	return booking.BookingParams{
		ProviderID:      providerID,
		ClientID:        uuid.New(),
		ServiceID:       uuid.New(),
		ShopID:          uuid.New(),
		Date:            "2025-01-10", // a Friday
		StartTime:       start,
		DurationMinutes: duration,
	}
}

func TestReserve_Success(t *testing.T) {
	m, clock, _ := newTestManager()
	providerID := uuid.New()

	res, err := m.Reserve(context.Background(), slotParams(providerID, "10:00", 60), fridaySchedule())
	require.NoError(t, err)

	assert.Equal(t, StatusActive, res.Status)
	assert.Equal(t, clock.Now().Add(DefaultTTL), res.ExpiresAt)
	assert.Len(t, m.Active(), 1)
}

func TestReserve_OutsideAvailability(t *testing.T) {
	m, _, _ := newTestManager()
	providerID := uuid.New()

	// Saturday is disabled.
	params := slotParams(providerID, "10:00", 60)
	params.Date = "2025-01-11"

	_, err := m.Reserve(context.Background(), params, fridaySchedule())
	assert.ErrorIs(t, err, ErrOutsideAvailability)
	assert.Empty(t, m.Active())

	// Runs past closing.
	params = slotParams(providerID, "16:30", 60)
	_, err = m.Reserve(context.Background(), params, fridaySchedule())
	assert.ErrorIs(t, err, ErrOutsideAvailability)
}

func TestReserve_OverlapRejected(t *testing.T) {
	m, _, _ := newTestManager()
	providerID := uuid.New()
	schedule := fridaySchedule()

	_, err := m.Reserve(context.Background(), slotParams(providerID, "10:00", 60), schedule)
	require.NoError(t, err)

	// Partial overlap: 10:30 for 30 minutes falls inside 10:00-11:00.
	_, err = m.Reserve(context.Background(), slotParams(providerID, "10:30", 30), schedule)
	assert.ErrorIs(t, err, ErrSlotAlreadyHeld)

	// Boundary adjacent: 11:00 starts exactly when the hold ends.
	_, err = m.Reserve(context.Background(), slotParams(providerID, "11:00", 30), schedule)
	assert.NoError(t, err)
}

func TestReserve_DifferentProvidersDoNotConflict(t *testing.T) {
	m, _, _ := newTestManager()
	schedule := fridaySchedule()

	_, err := m.Reserve(context.Background(), slotParams(uuid.New(), "10:00", 60), schedule)
	require.NoError(t, err)

	_, err = m.Reserve(context.Background(), slotParams(uuid.New(), "10:00", 60), schedule)
	assert.NoError(t, err)
}

func TestConfirm_CreatesAppointmentAndReleasesHold(t *testing.T) {
	m, _, creator := newTestManager()
	providerID := uuid.New()
	schedule := fridaySchedule()

	res, err := m.Reserve(context.Background(), slotParams(providerID, "10:00", 60), schedule)
	require.NoError(t, err)

	payment := booking.PaymentDetails{TotalAmount: 50, ServiceAmount: 45, TipAmount: 5, PaymentMethod: "card"}
	actor := booking.Actor{ID: res.ClientID, Role: booking.RoleClient}

	appt, err := m.Confirm(context.Background(), res.ID, payment, actor)
	require.NoError(t, err)

	assert.Equal(t, booking.StatusConfirmed, appt.Status)
	assert.Equal(t, payment, creator.payment)
	assert.Empty(t, m.Active(), "confirm must remove the hold")

	// Confirming again finds nothing.
	_, err = m.Confirm(context.Background(), res.ID, payment, actor)
	assert.ErrorIs(t, err, ErrReservationNotFound)
}

func TestConfirm_Expired(t *testing.T) {
	m, clock, _ := newTestManager()
	providerID := uuid.New()
	schedule := fridaySchedule()

	res, err := m.Reserve(context.Background(), slotParams(providerID, "10:00", 60), schedule)
	require.NoError(t, err)

	clock.Advance(DefaultTTL + time.Millisecond)

	_, err = m.Confirm(context.Background(), res.ID, booking.PaymentDetails{}, booking.Actor{})
	assert.ErrorIs(t, err, ErrReservationExpired)

	// The expired hold no longer blocks the slot.
	_, err = m.Reserve(context.Background(), slotParams(providerID, "10:00", 60), schedule)
	assert.NoError(t, err)
}

func TestConfirm_PersistenceFailureKeepsHold(t *testing.T) {
	m, _, creator := newTestManager()
	providerID := uuid.New()
	schedule := fridaySchedule()

	res, err := m.Reserve(context.Background(), slotParams(providerID, "10:00", 60), schedule)
	require.NoError(t, err)

	creator.err = errors.New("store unavailable")
	_, err = m.Confirm(context.Background(), res.ID, booking.PaymentDetails{}, booking.Actor{})
	assert.Error(t, err)
	assert.Len(t, m.Active(), 1, "hold must survive a failed durable write")

	// Retry once the store recovers.
	creator.err = nil
	_, err = m.Confirm(context.Background(), res.ID, booking.PaymentDetails{}, booking.Actor{})
	assert.NoError(t, err)
	assert.Empty(t, m.Active())
}

func TestRelease(t *testing.T) {
	m, _, _ := newTestManager()
	providerID := uuid.New()
	schedule := fridaySchedule()

	res, err := m.Reserve(context.Background(), slotParams(providerID, "10:00", 60), schedule)
	require.NoError(t, err)

	assert.True(t, m.Release(res.ID))
	assert.Empty(t, m.Active())
	assert.False(t, m.Release(res.ID), "second release must report not active")

	// Slot is bookable again.
	_, err = m.Reserve(context.Background(), slotParams(providerID, "10:00", 60), schedule)
	assert.NoError(t, err)
}

func TestRelease_UnknownID(t *testing.T) {
	m, _, _ := newTestManager()
	assert.False(t, m.Release(uuid.New()))
}

func TestActive_DoesNotSweep(t *testing.T) {
	m, clock, _ := newTestManager()
	schedule := fridaySchedule()

	_, err := m.Reserve(context.Background(), slotParams(uuid.New(), "10:00", 60), schedule)
	require.NoError(t, err)

	clock.Advance(DefaultTTL + time.Second)

	// Reading the snapshot filters the expired hold but leaves it for
	// the sweep.
	assert.Empty(t, m.Active())
	assert.Equal(t, 1, m.Sweep())
	assert.Equal(t, 0, m.Sweep())
}

func TestSweep_RemovesOnlyExpired(t *testing.T) {
	m, clock, _ := newTestManager()
	schedule := fridaySchedule()

	_, err := m.Reserve(context.Background(), slotParams(uuid.New(), "10:00", 60), schedule)
	require.NoError(t, err)

	clock.Advance(3 * time.Minute)

	fresh, err := m.Reserve(context.Background(), slotParams(uuid.New(), "10:00", 60), schedule)
	require.NoError(t, err)

	clock.Advance(2*time.Minute + time.Second) // first hold past TTL, second not

	assert.Equal(t, 1, m.Sweep())

	active := m.Active()
	require.Len(t, active, 1)
	assert.Equal(t, fresh.ID, active[0].ID)
}

// End to end: reserve, conflict, confirm with payment.
func TestBookingScenario(t *testing.T) {
	m, _, creator := newTestManager()
	providerID := uuid.New()
	schedule := fridaySchedule()

	params := slotParams(providerID, "10:00", 60)
	res, err := m.Reserve(context.Background(), params, schedule)
	require.NoError(t, err)

	_, err = m.Reserve(context.Background(), slotParams(providerID, "10:00", 60), schedule)
	assert.ErrorIs(t, err, ErrSlotAlreadyHeld)

	payment := booking.PaymentDetails{TotalAmount: 50, ServiceAmount: 45, TipAmount: 5, PaymentMethod: "card"}
	appt, err := m.Confirm(context.Background(), res.ID, payment, booking.Actor{ID: params.ClientID, Role: booking.RoleClient})
	require.NoError(t, err)

	assert.NotEqual(t, uuid.Nil, appt.ID)
	assert.Equal(t, booking.StatusConfirmed, appt.Status)
	require.Len(t, creator.created, 1)
	assert.Equal(t, params.ProviderID, creator.created[0].ProviderID)
	assert.Equal(t, "10:00", creator.created[0].StartTime)
}
