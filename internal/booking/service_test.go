package booking

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/shopslot/booking-service/internal/availability"
)

// Mock repository

type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Appointment), args.Error(1)
}

func (m *MockRepository) CreateAppointment(ctx context.Context, a *Appointment) (*Appointment, error) {
	args := m.Called(ctx, a)
	if err := args.Error(1); err != nil {
		return nil, err
	}
	if args.Get(0) == nil {
		// Echo the input, simulating the INSERT ... RETURNING round trip.
		return a, nil
	}
	return args.Get(0).(*Appointment), nil
}

func (m *MockRepository) UpdateAppointment(ctx context.Context, a *Appointment) (*Appointment, error) {
	args := m.Called(ctx, a)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Appointment), args.Error(1)
}

func (m *MockRepository) ListBookedForProviderDate(ctx context.Context, providerID uuid.UUID, date string) ([]Appointment, error) {
	args := m.Called(ctx, providerID, date)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]Appointment), args.Error(1)
}

func (m *MockRepository) ListAppointmentsByClient(ctx context.Context, clientID uuid.UUID, limit, offset int) ([]Appointment, error) {
	args := m.Called(ctx, clientID, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]Appointment), args.Error(1)
}

func (m *MockRepository) ListAppointmentsByProvider(ctx context.Context, providerID uuid.UUID, limit, offset int) ([]Appointment, error) {
	args := m.Called(ctx, providerID, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]Appointment), args.Error(1)
}

func (m *MockRepository) GetProviderSchedule(ctx context.Context, providerID uuid.UUID) (*availability.WeeklySchedule, error) {
	args := m.Called(ctx, providerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*availability.WeeklySchedule), args.Error(1)
}

func (m *MockRepository) InsertNotification(ctx context.Context, n Notification) error {
	args := m.Called(ctx, n)
	return args.Error(0)
}

// passthroughLocker runs the critical section inline, standing in for
// the Redis slot lock.
type passthroughLocker struct{}

func (passthroughLocker) WithSlotLock(ctx context.Context, slotKey string, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

// Fixtures

var fixedNow = time.Date(2025, 1, 9, 12, 0, 0, 0, time.UTC)

func newTestService(repo Repository) *Service {
	return NewService(repo, passthroughLocker{}, func() time.Time { return fixedNow })
}

func openSchedule() *availability.WeeklySchedule {
	day := availability.DaySchedule{
		Enabled:   true,
		Intervals: []availability.Interval{{Start: "09:00", End: "17:00"}},
	}
	return &availability.WeeklySchedule{
		Monday: day, Tuesday: day, Wednesday: day, Thursday: day, Friday: day,
	}
}

func testParams() BookingParams {
	return BookingParams{
		ProviderID:      uuid.New(),
		ClientID:        uuid.New(),
		ServiceID:       uuid.New(),
		ShopID:          uuid.New(),
		Date:            "2025-01-10",
		StartTime:       "10:00",
		DurationMinutes: 60,
	}
}

func confirmedAppointment(provider, client uuid.UUID) *Appointment {
	return &Appointment{
		ID:              uuid.New(),
		ProviderID:      provider,
		ClientID:        client,
		ServiceID:       uuid.New(),
		ShopID:          uuid.New(),
		Date:            "2025-01-10",
		StartTime:       "10:00",
		DurationMinutes: 60,
		Status:          StatusConfirmed,
		StatusHistory: []StatusChange{{
			Status:    StatusConfirmed,
			ActorID:   client,
			ActorRole: RoleClient,
			Timestamp: fixedNow.Add(-time.Hour),
		}},
	}
}

// Tests

func TestRequestAppointment_CreatesRequested(t *testing.T) {
	repo := new(MockRepository)
	svc := newTestService(repo)
	params := testParams()

	repo.On("GetProviderSchedule", mock.Anything, params.ProviderID).Return(openSchedule(), nil)
	repo.On("ListBookedForProviderDate", mock.Anything, params.ProviderID, params.Date).Return([]Appointment{}, nil)
	repo.On("CreateAppointment", mock.Anything, mock.AnythingOfType("*booking.Appointment")).Return(nil, nil)
	repo.On("InsertNotification", mock.Anything, mock.AnythingOfType("booking.Notification")).Return(nil)

	actor := Actor{ID: params.ClientID, Role: RoleClient}
	appt, err := svc.RequestAppointment(context.Background(), params, actor)

	assert.NoError(t, err)
	assert.Equal(t, StatusRequested, appt.Status)
	assert.Len(t, appt.StatusHistory, 1)
	assert.Equal(t, StatusRequested, appt.StatusHistory[0].Status)
	assert.Nil(t, appt.Payment)

	repo.AssertCalled(t, "InsertNotification", mock.Anything, mock.MatchedBy(func(n Notification) bool {
		return n.EventType == EventAppointmentRequested && n.RecipientRole == RoleProvider
	}))
}

func TestRequestAppointment_OutsideAvailability(t *testing.T) {
	repo := new(MockRepository)
	svc := newTestService(repo)
	params := testParams()
	params.Date = "2025-01-11" // Saturday, disabled in the fixture

	repo.On("GetProviderSchedule", mock.Anything, params.ProviderID).Return(openSchedule(), nil)

	_, err := svc.RequestAppointment(context.Background(), params, Actor{ID: params.ClientID, Role: RoleClient})

	assert.ErrorIs(t, err, ErrOutsideAvailability)
	repo.AssertNotCalled(t, "CreateAppointment", mock.Anything, mock.Anything)
}

func TestRequestAppointment_SlotAlreadyBooked(t *testing.T) {
	repo := new(MockRepository)
	svc := newTestService(repo)
	params := testParams()

	existing := confirmedAppointment(params.ProviderID, uuid.New())
	existing.StartTime = "10:30"
	existing.DurationMinutes = 30

	repo.On("GetProviderSchedule", mock.Anything, params.ProviderID).Return(openSchedule(), nil)
	repo.On("ListBookedForProviderDate", mock.Anything, params.ProviderID, params.Date).Return([]Appointment{*existing}, nil)

	_, err := svc.RequestAppointment(context.Background(), params, Actor{ID: params.ClientID, Role: RoleClient})

	assert.ErrorIs(t, err, ErrSlotAlreadyBooked)
	repo.AssertNotCalled(t, "CreateAppointment", mock.Anything, mock.Anything)
}

func TestCreateBookedAppointment_CreatesConfirmedWithPayment(t *testing.T) {
	repo := new(MockRepository)
	svc := newTestService(repo)
	params := testParams()
	payment := PaymentDetails{TotalAmount: 50, ServiceAmount: 45, TipAmount: 5, PaymentMethod: "card"}

	repo.On("ListBookedForProviderDate", mock.Anything, params.ProviderID, params.Date).Return([]Appointment{}, nil)
	repo.On("CreateAppointment", mock.Anything, mock.AnythingOfType("*booking.Appointment")).Return(nil, nil)
	repo.On("InsertNotification", mock.Anything, mock.AnythingOfType("booking.Notification")).Return(nil)

	appt, err := svc.CreateBookedAppointment(context.Background(), params, payment, Actor{ID: params.ClientID, Role: RoleClient})

	assert.NoError(t, err)
	assert.Equal(t, StatusConfirmed, appt.Status)
	assert.NotNil(t, appt.Payment)
	assert.Equal(t, 50.0, appt.Payment.TotalAmount)
	assert.Len(t, appt.StatusHistory, 1)
}

func TestUpdateStatus_ProviderConfirms(t *testing.T) {
	repo := new(MockRepository)
	svc := newTestService(repo)

	providerID := uuid.New()
	appt := confirmedAppointment(providerID, uuid.New())
	appt.Status = StatusRequested
	appt.StatusHistory = []StatusChange{{Status: StatusRequested, Timestamp: fixedNow.Add(-time.Hour)}}

	repo.On("GetAppointmentByID", mock.Anything, appt.ID).Return(appt, nil)
	repo.On("UpdateAppointment", mock.Anything, appt).Return(appt, nil)
	repo.On("InsertNotification", mock.Anything, mock.AnythingOfType("booking.Notification")).Return(nil)

	actor := Actor{ID: providerID, Role: RoleProvider}
	updated, err := svc.UpdateStatus(context.Background(), appt.ID, ActionConfirm, StatusConfirmed, "", actor)

	assert.NoError(t, err)
	assert.Equal(t, StatusConfirmed, updated.Status)
	assert.Len(t, updated.StatusHistory, 2)
	assert.Equal(t, StatusConfirmed, updated.StatusHistory[1].Status)
	assert.Equal(t, providerID, updated.StatusHistory[1].ActorID)

	// Notification goes to the counter-party after the commit.
	repo.AssertCalled(t, "InsertNotification", mock.Anything, mock.MatchedBy(func(n Notification) bool {
		return n.RecipientRole == RoleClient && n.EventType == EventStatusChanged
	}))
}

func TestUpdateStatus_NoShowRequiresReason(t *testing.T) {
	repo := new(MockRepository)
	svc := newTestService(repo)

	providerID := uuid.New()
	appt := confirmedAppointment(providerID, uuid.New())

	repo.On("GetAppointmentByID", mock.Anything, appt.ID).Return(appt, nil)

	actor := Actor{ID: providerID, Role: RoleProvider}

	_, err := svc.UpdateStatus(context.Background(), appt.ID, ActionMarkNoShow, StatusNoShow, "  ", actor)
	assert.ErrorIs(t, err, ErrInvalidTransition)
	repo.AssertNotCalled(t, "UpdateAppointment", mock.Anything, mock.Anything)

	repo.On("UpdateAppointment", mock.Anything, appt).Return(appt, nil)
	repo.On("InsertNotification", mock.Anything, mock.AnythingOfType("booking.Notification")).Return(nil)

	updated, err := svc.UpdateStatus(context.Background(), appt.ID, ActionMarkNoShow, StatusNoShow, "client never arrived", actor)
	assert.NoError(t, err)
	assert.Equal(t, StatusNoShow, updated.Status)
	assert.Equal(t, "client never arrived", updated.NoShowReason)
}

func TestUpdateStatus_ClientCannotStart(t *testing.T) {
	repo := new(MockRepository)
	svc := newTestService(repo)

	clientID := uuid.New()
	appt := confirmedAppointment(uuid.New(), clientID)

	repo.On("GetAppointmentByID", mock.Anything, appt.ID).Return(appt, nil)

	_, err := svc.UpdateStatus(context.Background(), appt.ID, ActionStart, StatusInProgress, "", Actor{ID: clientID, Role: RoleClient})

	assert.ErrorIs(t, err, ErrInvalidTransition)
	repo.AssertNotCalled(t, "UpdateAppointment", mock.Anything, mock.Anything)
}

func TestUpdateStatus_TargetMismatchRejected(t *testing.T) {
	repo := new(MockRepository)
	svc := newTestService(repo)

	providerID := uuid.New()
	appt := confirmedAppointment(providerID, uuid.New())

	repo.On("GetAppointmentByID", mock.Anything, appt.ID).Return(appt, nil)

	// "start" targets in-progress, not completed.
	_, err := svc.UpdateStatus(context.Background(), appt.ID, ActionStart, StatusCompleted, "", Actor{ID: providerID, Role: RoleProvider})

	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestUpdateStatus_NotFound(t *testing.T) {
	repo := new(MockRepository)
	svc := newTestService(repo)

	id := uuid.New()
	repo.On("GetAppointmentByID", mock.Anything, id).Return(nil, ErrAppointmentNotFound)

	_, err := svc.UpdateStatus(context.Background(), id, ActionCancel, StatusCancelled, "", Actor{ID: uuid.New(), Role: RoleClient})

	assert.ErrorIs(t, err, ErrAppointmentNotFound)
}

func TestUpdateStatus_HistoryIsAppendOnly(t *testing.T) {
	repo := new(MockRepository)
	svc := newTestService(repo)

	providerID := uuid.New()
	appt := confirmedAppointment(providerID, uuid.New())
	appt.Status = StatusRequested
	appt.StatusHistory = []StatusChange{{Status: StatusRequested, Timestamp: fixedNow.Add(-time.Hour)}}
	firstEntry := appt.StatusHistory[0]

	repo.On("GetAppointmentByID", mock.Anything, appt.ID).Return(appt, nil)
	repo.On("UpdateAppointment", mock.Anything, appt).Return(appt, nil)
	repo.On("InsertNotification", mock.Anything, mock.AnythingOfType("booking.Notification")).Return(nil)

	actor := Actor{ID: providerID, Role: RoleProvider}

	steps := []struct {
		action string
		target Status
	}{
		{ActionConfirm, StatusConfirmed},
		{ActionStart, StatusInProgress},
		{ActionComplete, StatusCompleted},
	}

	for _, step := range steps {
		_, err := svc.UpdateStatus(context.Background(), appt.ID, step.action, step.target, "", actor)
		assert.NoError(t, err)
	}

	assert.Len(t, appt.StatusHistory, 1+len(steps))
	assert.Equal(t, firstEntry, appt.StatusHistory[0], "prior entries must not change")
	assert.Equal(t, StatusCompleted, appt.StatusHistory[len(appt.StatusHistory)-1].Status)

	// Terminal now; nothing further is legal for any role.
	for _, role := range allRoles {
		assert.Empty(t, AvailableActions(appt.Status, role))
	}
}

func TestUpdateStatus_CancelFromConfirmedSetsReason(t *testing.T) {
	repo := new(MockRepository)
	svc := newTestService(repo)

	providerID := uuid.New()
	appt := confirmedAppointment(providerID, uuid.New())

	repo.On("GetAppointmentByID", mock.Anything, appt.ID).Return(appt, nil)
	repo.On("UpdateAppointment", mock.Anything, appt).Return(appt, nil)
	repo.On("InsertNotification", mock.Anything, mock.AnythingOfType("booking.Notification")).Return(nil)

	updated, err := svc.UpdateStatus(context.Background(), appt.ID, ActionCancel, StatusCancelled, "equipment failure", Actor{ID: providerID, Role: RoleProvider})

	assert.NoError(t, err)
	assert.Equal(t, StatusCancelled, updated.Status)
	assert.Equal(t, "equipment failure", updated.CancellationReason)
}
