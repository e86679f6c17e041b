package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"simpkl/internal/availability"
	"simpkl/internal/database"
	"simpkl/internal/events"
	"simpkl/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockRepo struct {
	mock.Mock
}

func (m *mockRepo) FetchApproved(ctx context.Context, group string) ([]availability.StoredRecord, error) {
	args := m.Called(ctx, group)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]availability.StoredRecord), args.Error(1)
}
func (m *mockRepo) GetBooking(ctx context.Context, id int64) (*models.Booking, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Booking), args.Error(1)
}
func (m *mockRepo) CreateBookingWithLock(ctx context.Context, b *models.Booking, quota int) error {
	return m.Called(ctx, b, quota).Error(0)
}
func (m *mockRepo) UpdateBookingStatusWithVersion(ctx context.Context, id, v int64, s string) error {
	return m.Called(ctx, id, v, s).Error(0)
}
func (m *mockRepo) GetBookingsByDateRange(ctx context.Context, s, e time.Time) ([]*models.Booking, error) {
	args := m.Called(ctx, s, e)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Booking), args.Error(1)
}
func (m *mockRepo) GetBookingsByGroup(ctx context.Context, g, s string) ([]*models.Booking, error) {
	args := m.Called(ctx, g, s)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Booking), args.Error(1)
}
func (m *mockRepo) GetApplicantBookings(ctx context.Context, email string) ([]*models.Booking, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Booking), args.Error(1)
}
func (m *mockRepo) GetDailyBookings(ctx context.Context, s, e time.Time) (map[string][]*models.Booking, error) {
	args := m.Called(ctx, s, e)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string][]*models.Booking), args.Error(1)
}
func (m *mockRepo) SetGroups(groups []models.ResourceGroup) { m.Called(groups) }
func (m *mockRepo) GetGroups() []models.ResourceGroup {
	args := m.Called()
	if args.Get(0) == nil {
		return nil
	}
	return args.Get(0).([]models.ResourceGroup)
}
func (m *mockRepo) GetGroupByName(name string) (models.ResourceGroup, bool) {
	args := m.Called(name)
	return args.Get(0).(models.ResourceGroup), args.Bool(1)
}

type mockEventBus struct {
	mock.Mock
}

func (m *mockEventBus) PublishJSON(et string, p interface{}) error { return m.Called(et, p).Error(0) }

type mockWorker struct {
	mock.Mock
}

func (m *mockWorker) EnqueueTask(ctx context.Context, tt string, bid int64, b *models.Booking, s string) error {
	return m.Called(ctx, tt, bid, b, s).Error(0)
}

type mockCache struct {
	mock.Mock
}

func (m *mockCache) GetBlockedDates(ctx context.Context, g string) ([]string, bool, error) {
	args := m.Called(ctx, g)
	if args.Get(0) == nil {
		return nil, args.Bool(1), args.Error(2)
	}
	return args.Get(0).([]string), args.Bool(1), args.Error(2)
}
func (m *mockCache) SetBlockedDates(ctx context.Context, g string, d []string, ttl time.Duration) error {
	return m.Called(ctx, g, d, ttl).Error(0)
}
func (m *mockCache) InvalidateBlockedDates(ctx context.Context, g string) error {
	return m.Called(ctx, g).Error(0)
}
func (m *mockCache) CheckRateLimit(ctx context.Context, k string, l int, w time.Duration) (bool, error) {
	args := m.Called(ctx, k, l, w)
	return args.Bool(0), args.Error(1)
}

func newService(repo *mockRepo, bus *mockEventBus, worker *mockWorker, cache *mockCache, quotas availability.QuotaTable) *BookingService {
	logger := zerolog.Nop()
	engine := availability.NewEngine(repo, quotas, &logger)
	opts := BookingServiceOptions{
		MaxAdvanceDays:    365,
		BlockedWindowDays: 90,
		SubmissionLimit:   5,
		SubmissionWindow:  time.Minute,
	}
	if cache == nil {
		return NewBookingService(repo, engine, bus, worker, nil, opts, &logger)
	}
	return NewBookingService(repo, engine, bus, worker, cache, opts, &logger)
}

func pendingBooking(group string, start time.Time, duration string) *models.Booking {
	return &models.Booking{
		ApplicantName:  "Budi Santoso",
		ApplicantEmail: "budi@example.ac.id",
		ResourceGroup:  group,
		StartDate:      start,
		DurationDays:   duration,
	}
}

func TestSubmitBooking(t *testing.T) {
	ctx := context.Background()
	start := time.Now().AddDate(0, 0, 7)
	labA := models.ResourceGroup{Name: "LabA", Type: models.ResourceInternship, IsActive: true}

	t.Run("happy path", func(t *testing.T) {
		repo := new(mockRepo)
		bus := new(mockEventBus)
		worker := new(mockWorker)
		cache := new(mockCache)
		svc := newService(repo, bus, worker, cache, availability.QuotaTable{Default: 5})

		booking := pendingBooking("LabA", start, "30")
		repo.On("GetGroupByName", "LabA").Return(labA, true).Once()
		cache.On("CheckRateLimit", ctx, "budi@example.ac.id", 5, time.Minute).Return(true, nil).Once()
		repo.On("FetchApproved", ctx, "LabA").Return([]availability.StoredRecord(nil), nil).Once()
		repo.On("CreateBookingWithLock", ctx, booking, 5).Return(nil).Once()
		bus.On("PublishJSON", events.EventBookingSubmitted, mock.Anything).Return(nil).Once()
		worker.On("EnqueueTask", ctx, "upsert", int64(0), mock.Anything, "").Return(nil).Once()

		err := svc.SubmitBooking(ctx, booking)
		require.NoError(t, err)
		assert.Equal(t, models.ResourceInternship, booking.ResourceType)
		repo.AssertExpectations(t)
		bus.AssertExpectations(t)
		worker.AssertExpectations(t)
	})

	t.Run("unknown group", func(t *testing.T) {
		repo := new(mockRepo)
		svc := newService(repo, new(mockEventBus), new(mockWorker), nil, availability.QuotaTable{Default: 5})

		repo.On("GetGroupByName", "Nope").Return(models.ResourceGroup{}, false).Once()

		err := svc.SubmitBooking(ctx, pendingBooking("Nope", start, "30"))
		require.ErrorIs(t, err, database.ErrUnknownGroup)
	})

	t.Run("inactive group", func(t *testing.T) {
		repo := new(mockRepo)
		svc := newService(repo, new(mockEventBus), new(mockWorker), nil, availability.QuotaTable{Default: 5})

		repo.On("GetGroupByName", "Old").Return(models.ResourceGroup{Name: "Old"}, true).Once()

		err := svc.SubmitBooking(ctx, pendingBooking("Old", start, "30"))
		require.ErrorIs(t, err, database.ErrUnknownGroup)
	})

	t.Run("past date", func(t *testing.T) {
		repo := new(mockRepo)
		svc := newService(repo, new(mockEventBus), new(mockWorker), nil, availability.QuotaTable{Default: 5})

		repo.On("GetGroupByName", "LabA").Return(labA, true).Once()

		err := svc.SubmitBooking(ctx, pendingBooking("LabA", time.Now().AddDate(0, 0, -2), "30"))
		require.ErrorIs(t, err, database.ErrPastDate)
	})

	t.Run("invalid duration", func(t *testing.T) {
		repo := new(mockRepo)
		svc := newService(repo, new(mockEventBus), new(mockWorker), nil, availability.QuotaTable{Default: 5})

		repo.On("GetGroupByName", "LabA").Return(labA, true).Twice()

		err := svc.SubmitBooking(ctx, pendingBooking("LabA", start, "abc"))
		require.ErrorIs(t, err, database.ErrInvalidDuration)

		err = svc.SubmitBooking(ctx, pendingBooking("LabA", start, "-5"))
		require.ErrorIs(t, err, database.ErrInvalidDuration)
	})

	t.Run("blocked range names the first conflict", func(t *testing.T) {
		repo := new(mockRepo)
		svc := newService(repo, new(mockEventBus), new(mockWorker), nil, availability.QuotaTable{Default: 1})

		startKey := availability.DayKey(start)
		repo.On("GetGroupByName", "LabA").Return(labA, true).Once()
		repo.On("FetchApproved", ctx, "LabA").Return([]availability.StoredRecord{
			{StartDate: startKey, DurationDays: "1"},
		}, nil).Once()

		err := svc.SubmitBooking(ctx, pendingBooking("LabA", start, "30"))
		require.ErrorIs(t, err, database.ErrNotAvailable)

		var conflict *ConflictError
		require.ErrorAs(t, err, &conflict)
		assert.Equal(t, "LabA", conflict.Group)
		assert.Equal(t, startKey, conflict.BlockedDate)
	})

	t.Run("rate limited", func(t *testing.T) {
		repo := new(mockRepo)
		cache := new(mockCache)
		svc := newService(repo, new(mockEventBus), new(mockWorker), cache, availability.QuotaTable{Default: 5})

		repo.On("GetGroupByName", "LabA").Return(labA, true).Once()
		cache.On("CheckRateLimit", ctx, "budi@example.ac.id", 5, time.Minute).Return(false, nil).Once()

		err := svc.SubmitBooking(ctx, pendingBooking("LabA", start, "30"))
		require.ErrorIs(t, err, ErrRateLimited)
	})

	t.Run("store failure surfaces as error", func(t *testing.T) {
		repo := new(mockRepo)
		svc := newService(repo, new(mockEventBus), new(mockWorker), nil, availability.QuotaTable{Default: 5})

		repo.On("GetGroupByName", "LabA").Return(labA, true).Once()
		repo.On("FetchApproved", ctx, "LabA").Return(nil, errors.New("store unreachable")).Once()

		err := svc.SubmitBooking(ctx, pendingBooking("LabA", start, "30"))
		require.Error(t, err)
		assert.NotErrorIs(t, err, database.ErrNotAvailable)
	})
}

func TestDecisions(t *testing.T) {
	ctx := context.Background()

	t.Run("approve publishes and invalidates cache", func(t *testing.T) {
		repo := new(mockRepo)
		bus := new(mockEventBus)
		worker := new(mockWorker)
		cache := new(mockCache)
		svc := newService(repo, bus, worker, cache, availability.QuotaTable{Default: 5})

		booking := &models.Booking{ID: 9, ResourceGroup: "LabA", Status: models.StatusApproved, DurationDays: "30"}
		repo.On("UpdateBookingStatusWithVersion", ctx, int64(9), int64(1), models.StatusApproved).Return(nil).Once()
		repo.On("GetBooking", ctx, int64(9)).Return(booking, nil).Once()
		cache.On("InvalidateBlockedDates", ctx, "LabA").Return(nil).Once()
		bus.On("PublishJSON", events.EventBookingApproved, mock.Anything).Return(nil).Once()
		worker.On("EnqueueTask", ctx, "update_status", int64(9), mock.Anything, models.StatusApproved).Return(nil).Once()

		err := svc.ApproveBooking(ctx, 9, 1, 100)
		require.NoError(t, err)
		repo.AssertExpectations(t)
		cache.AssertExpectations(t)
	})

	t.Run("stale version propagates", func(t *testing.T) {
		repo := new(mockRepo)
		svc := newService(repo, new(mockEventBus), new(mockWorker), nil, availability.QuotaTable{Default: 5})

		repo.On("UpdateBookingStatusWithVersion", ctx, int64(9), int64(1), models.StatusRejected).
			Return(database.ErrConcurrentModification).Once()

		err := svc.RejectBooking(ctx, 9, 1, 100)
		require.ErrorIs(t, err, database.ErrConcurrentModification)
	})
}

func TestBlockedDatesCaching(t *testing.T) {
	ctx := context.Background()
	today, err := availability.ParseDayKey(availability.DayKey(time.Now()))
	require.NoError(t, err)

	t.Run("default window served from cache", func(t *testing.T) {
		repo := new(mockRepo)
		cache := new(mockCache)
		svc := newService(repo, new(mockEventBus), new(mockWorker), cache, availability.QuotaTable{Default: 5})

		cache.On("GetBlockedDates", ctx, "LabA").Return([]string{"2025-03-10"}, true, nil).Once()

		dates, err := svc.BlockedDates(ctx, "LabA", today, 90)
		require.NoError(t, err)
		assert.Equal(t, []string{"2025-03-10"}, dates)
		repo.AssertNotCalled(t, "FetchApproved", mock.Anything, mock.Anything)
	})

	t.Run("cache miss computes and stores", func(t *testing.T) {
		repo := new(mockRepo)
		cache := new(mockCache)
		svc := newService(repo, new(mockEventBus), new(mockWorker), cache, availability.QuotaTable{Default: 1})

		key := availability.DayKey(today)
		cache.On("GetBlockedDates", ctx, "LabA").Return(nil, false, nil).Once()
		repo.On("FetchApproved", ctx, "LabA").Return([]availability.StoredRecord{
			{StartDate: key, DurationDays: "1"},
		}, nil).Once()
		cache.On("SetBlockedDates", ctx, "LabA", []string{key}, mock.Anything).Return(nil).Once()

		dates, err := svc.BlockedDates(ctx, "LabA", today, 90)
		require.NoError(t, err)
		assert.Equal(t, []string{key}, dates)
		cache.AssertExpectations(t)
	})

	t.Run("explicit window bypasses cache", func(t *testing.T) {
		repo := new(mockRepo)
		cache := new(mockCache)
		svc := newService(repo, new(mockEventBus), new(mockWorker), cache, availability.QuotaTable{Default: 5})

		repo.On("FetchApproved", ctx, "LabA").Return([]availability.StoredRecord(nil), nil).Once()

		_, err := svc.BlockedDates(ctx, "LabA", today, 14)
		require.NoError(t, err)
		cache.AssertNotCalled(t, "GetBlockedDates", mock.Anything, mock.Anything)
	})
}

func TestGroupService(t *testing.T) {
	repo := new(mockRepo)
	quotas := availability.QuotaTable{Default: 5, Groups: map[string]int{"Umum": 10}}
	svc := NewGroupService(repo, quotas)

	repo.On("GetGroups").Return([]models.ResourceGroup{
		{Name: "LabA", IsActive: true},
		{Name: "Closed", IsActive: false},
	}).Once()

	active := svc.ActiveGroups()
	require.Len(t, active, 1)
	assert.Equal(t, "LabA", active[0].Name)

	assert.Equal(t, 10, svc.Quota("Umum"))
	assert.Equal(t, 5, svc.Quota("LabA"))
}

func TestBookingListings(t *testing.T) {
	ctx := context.Background()
	repo := new(mockRepo)
	svc := newService(repo, new(mockEventBus), new(mockWorker), nil, availability.QuotaTable{Default: 5})

	byGroup := []*models.Booking{{ID: 1, ResourceGroup: "LabA"}}
	repo.On("GetBookingsByGroup", ctx, "LabA", models.StatusApproved).Return(byGroup, nil).Once()

	got, err := svc.GetBookingsByGroup(ctx, "LabA", models.StatusApproved)
	require.NoError(t, err)
	assert.Equal(t, byGroup, got)

	byEmail := []*models.Booking{{ID: 2}}
	repo.On("GetApplicantBookings", ctx, "budi@example.ac.id").Return(byEmail, nil).Once()

	got, err = svc.GetApplicantBookings(ctx, "budi@example.ac.id")
	require.NoError(t, err)
	assert.Equal(t, byEmail, got)

	repo.AssertExpectations(t)
}
