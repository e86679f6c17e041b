package domain

import (
	"context"
	"time"

	"simpkl/internal/availability"
	"simpkl/internal/models"
)

type Repository interface {
	FetchApproved(ctx context.Context, group string) ([]availability.StoredRecord, error)
	GetBooking(ctx context.Context, id int64) (*models.Booking, error)
	CreateBookingWithLock(ctx context.Context, booking *models.Booking, quota int) error
	UpdateBookingStatusWithVersion(ctx context.Context, id int64, version int64, status string) error
	GetBookingsByDateRange(ctx context.Context, start, end time.Time) ([]*models.Booking, error)
	GetBookingsByGroup(ctx context.Context, group, status string) ([]*models.Booking, error)
	GetApplicantBookings(ctx context.Context, email string) ([]*models.Booking, error)
	GetDailyBookings(ctx context.Context, start, end time.Time) (map[string][]*models.Booking, error)
	SetGroups(groups []models.ResourceGroup)
	GetGroups() []models.ResourceGroup
	GetGroupByName(name string) (models.ResourceGroup, bool)
}

type EventPublisher interface {
	PublishJSON(eventType string, payload interface{}) error
}

type SyncWorker interface {
	EnqueueTask(ctx context.Context, taskType string, bookingID int64, booking *models.Booking, status string) error
}

// Cache holds short-lived blocked-date sets and submission rate counters.
type Cache interface {
	GetBlockedDates(ctx context.Context, group string) ([]string, bool, error)
	SetBlockedDates(ctx context.Context, group string, dates []string, ttl time.Duration) error
	InvalidateBlockedDates(ctx context.Context, group string) error
	CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

type SheetsWriter interface {
	UpsertBooking(ctx context.Context, booking *models.Booking) error
	UpdateBookingStatus(ctx context.Context, bookingID int64, status string) error
}

type BookingService interface {
	ValidateBookingDate(start time.Time) error
	CheckAvailability(ctx context.Context, group string, start time.Time, durationDays int) (availability.Result, error)
	BlockedDates(ctx context.Context, group string, start time.Time, windowDays int) ([]string, error)
	SubmitBooking(ctx context.Context, booking *models.Booking) error
	ApproveBooking(ctx context.Context, id, version, adminID int64) error
	RejectBooking(ctx context.Context, id, version, adminID int64) error
	GetBooking(ctx context.Context, id int64) (*models.Booking, error)
	GetBookingsByDateRange(ctx context.Context, start, end time.Time) ([]*models.Booking, error)
	GetBookingsByGroup(ctx context.Context, group, status string) ([]*models.Booking, error)
	GetApplicantBookings(ctx context.Context, email string) ([]*models.Booking, error)
	GetDailyBookings(ctx context.Context, start, end time.Time) (map[string][]*models.Booking, error)
}

// SyncTaskStore exposes the spreadsheet sync queue for inspection.
type SyncTaskStore interface {
	GetFailedSyncTasks(ctx context.Context) ([]models.SyncTask, error)
}

type GroupService interface {
	ActiveGroups() []models.ResourceGroup
	GroupByName(name string) (models.ResourceGroup, bool)
	Quota(name string) int
}
