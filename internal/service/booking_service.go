package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"simpkl/internal/availability"
	"simpkl/internal/database"
	"simpkl/internal/domain"
	"simpkl/internal/events"
	"simpkl/internal/models"

	"github.com/rs/zerolog"
)

// ErrRateLimited is returned when an applicant exceeds the submission
// window limit.
var ErrRateLimited = errors.New("too many submissions, try again later")

// ConflictError reports the earliest day in a candidate range that is
// already at quota.
type ConflictError struct {
	Group       string
	BlockedDate string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("group %s is fully booked on %s", e.Group, e.BlockedDate)
}

func (e *ConflictError) Unwrap() error { return database.ErrNotAvailable }

type BookingService struct {
	repo              domain.Repository
	engine            *availability.Engine
	eventBus          domain.EventPublisher
	syncWorker        domain.SyncWorker
	cache             domain.Cache
	maxAdvanceDays    int
	blockedWindowDays int
	submissionLimit   int
	submissionWindow  time.Duration
	logger            *zerolog.Logger
}

type BookingServiceOptions struct {
	MaxAdvanceDays    int
	BlockedWindowDays int
	SubmissionLimit   int
	SubmissionWindow  time.Duration
}

func NewBookingService(
	repo domain.Repository,
	engine *availability.Engine,
	eventBus domain.EventPublisher,
	syncWorker domain.SyncWorker,
	cache domain.Cache,
	opts BookingServiceOptions,
	logger *zerolog.Logger,
) *BookingService {
	if opts.MaxAdvanceDays <= 0 {
		opts.MaxAdvanceDays = 365
	}
	if opts.BlockedWindowDays <= 0 {
		opts.BlockedWindowDays = models.DefaultBlockedWindowDays
	}
	return &BookingService{
		repo:              repo,
		engine:            engine,
		eventBus:          eventBus,
		syncWorker:        syncWorker,
		cache:             cache,
		maxAdvanceDays:    opts.MaxAdvanceDays,
		blockedWindowDays: opts.BlockedWindowDays,
		submissionLimit:   opts.SubmissionLimit,
		submissionWindow:  opts.SubmissionWindow,
		logger:            logger,
	}
}

// ValidateBookingDate rejects ranges starting in the past or beyond the
// booking horizon. The availability engine itself only reasons about
// occupancy math, not about "now".
func (s *BookingService) ValidateBookingDate(start time.Time) error {
	today, _ := availability.ParseDayKey(availability.DayKey(time.Now()))
	if start.Before(today) {
		return database.ErrPastDate
	}
	if start.After(today.AddDate(0, 0, s.maxAdvanceDays)) {
		return database.ErrDateTooFar
	}
	return nil
}

func (s *BookingService) CheckAvailability(ctx context.Context, group string, start time.Time, durationDays int) (availability.Result, error) {
	return s.engine.CheckAvailability(ctx, group, start, durationDays)
}

// BlockedDates returns the full days for a group in a window. The
// default window is served through the cache; explicit windows always
// hit the record store.
func (s *BookingService) BlockedDates(ctx context.Context, group string, start time.Time, windowDays int) ([]string, error) {
	cacheable := s.cache != nil &&
		windowDays == s.blockedWindowDays &&
		availability.DayKey(start) == availability.DayKey(time.Now())

	if cacheable {
		if dates, hit, err := s.cache.GetBlockedDates(ctx, group); err == nil && hit {
			return dates, nil
		}
	}

	dates, err := s.engine.BlockedDates(ctx, group, start, windowDays)
	if err != nil {
		return nil, err
	}

	if cacheable {
		ttl := time.Duration(models.BlockedDatesCacheTTLSeconds) * time.Second
		if err := s.cache.SetBlockedDates(ctx, group, dates, ttl); err != nil {
			s.logger.Warn().Err(err).Str("group", group).Msg("cache blocked dates failed")
		}
	}

	return dates, nil
}

// SubmitBooking validates the candidate, checks availability against
// approved occupancy and inserts the booking as pending. Pending rows do
// not reserve capacity; the admin decision is the second gate.
func (s *BookingService) SubmitBooking(ctx context.Context, booking *models.Booking) error {
	group, ok := s.repo.GetGroupByName(booking.ResourceGroup)
	if !ok || !group.IsActive {
		return database.ErrUnknownGroup
	}
	booking.ResourceType = group.Type

	if err := s.ValidateBookingDate(booking.StartDate); err != nil {
		return err
	}

	durationDays, err := strconv.Atoi(strings.TrimSpace(booking.DurationDays))
	if err != nil || durationDays <= 0 {
		return database.ErrInvalidDuration
	}

	if s.cache != nil && s.submissionLimit > 0 {
		allowed, err := s.cache.CheckRateLimit(ctx, booking.ApplicantEmail, s.submissionLimit, s.submissionWindow)
		if err != nil {
			s.logger.Warn().Err(err).Msg("submission rate limit check failed, allowing")
		} else if !allowed {
			return ErrRateLimited
		}
	}

	res, err := s.engine.CheckAvailability(ctx, booking.ResourceGroup, booking.StartDate, durationDays)
	if err != nil {
		return err
	}
	if !res.Available {
		return &ConflictError{Group: booking.ResourceGroup, BlockedDate: res.BlockedDate}
	}

	if err := s.repo.CreateBookingWithLock(ctx, booking, s.engine.Quota(booking.ResourceGroup)); err != nil {
		return err
	}

	s.publishEvent(events.EventBookingSubmitted, *booking, "applicant", 0)
	s.enqueueSync(ctx, *booking, "upsert")

	return nil
}

// ApproveBooking transitions a pending booking to approved. From that
// moment its day range counts toward occupancy for every later check.
func (s *BookingService) ApproveBooking(ctx context.Context, id, version, adminID int64) error {
	return s.decide(ctx, id, version, adminID, models.StatusApproved, events.EventBookingApproved)
}

// RejectBooking transitions a pending booking to rejected.
func (s *BookingService) RejectBooking(ctx context.Context, id, version, adminID int64) error {
	return s.decide(ctx, id, version, adminID, models.StatusRejected, events.EventBookingRejected)
}

func (s *BookingService) decide(ctx context.Context, id, version, adminID int64, status, eventType string) error {
	if err := s.repo.UpdateBookingStatusWithVersion(ctx, id, version, status); err != nil {
		return err
	}

	booking, err := s.repo.GetBooking(ctx, id)
	if err != nil {
		s.logger.Error().Err(err).Int64("booking_id", id).Msg("load booking after status change")
		return nil
	}

	if s.cache != nil {
		if err := s.cache.InvalidateBlockedDates(ctx, booking.ResourceGroup); err != nil {
			s.logger.Warn().Err(err).Str("group", booking.ResourceGroup).Msg("invalidate blocked dates failed")
		}
	}

	s.publishEvent(eventType, *booking, "admin", adminID)
	s.enqueueSync(ctx, *booking, "update_status")

	return nil
}

func (s *BookingService) GetBooking(ctx context.Context, id int64) (*models.Booking, error) {
	return s.repo.GetBooking(ctx, id)
}

func (s *BookingService) GetBookingsByGroup(ctx context.Context, group, status string) ([]*models.Booking, error) {
	return s.repo.GetBookingsByGroup(ctx, group, status)
}

func (s *BookingService) GetApplicantBookings(ctx context.Context, email string) ([]*models.Booking, error) {
	return s.repo.GetApplicantBookings(ctx, email)
}

func (s *BookingService) GetBookingsByDateRange(ctx context.Context, start, end time.Time) ([]*models.Booking, error) {
	return s.repo.GetBookingsByDateRange(ctx, start, end)
}

func (s *BookingService) GetDailyBookings(ctx context.Context, start, end time.Time) (map[string][]*models.Booking, error) {
	return s.repo.GetDailyBookings(ctx, start, end)
}

func (s *BookingService) publishEvent(eventType string, booking models.Booking, changedBy string, changedByID int64) {
	if s.eventBus == nil {
		return
	}

	payload := events.BookingEventPayload{
		BookingID:     booking.ID,
		ApplicantName: booking.ApplicantName,
		ResourceGroup: booking.ResourceGroup,
		ResourceType:  booking.ResourceType,
		StartDate:     booking.StartDate,
		DurationDays:  booking.DurationDays,
		Status:        booking.Status,
		Comment:       booking.Comment,
		ChangedBy:     changedBy,
		ChangedByID:   changedByID,
	}

	if err := s.eventBus.PublishJSON(eventType, payload); err != nil {
		s.logger.Error().Err(err).Str("event_type", eventType).Int64("booking_id", booking.ID).Msg("publish event error")
	}
}

func (s *BookingService) enqueueSync(ctx context.Context, booking models.Booking, taskType string) {
	if s.syncWorker == nil {
		return
	}

	var status string
	if taskType == "update_status" {
		status = booking.Status
	}

	if err := s.syncWorker.EnqueueTask(ctx, taskType, booking.ID, &booking, status); err != nil {
		s.logger.Error().Err(err).Int64("booking_id", booking.ID).Str("task", taskType).Msg("sync enqueue error")
	}
}
