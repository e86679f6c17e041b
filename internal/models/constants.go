package models

const (
	StatusPending  = "pending"
	StatusApproved = "approved"
	StatusRejected = "rejected"
)

const (
	ResourceInternship = "internship"
	ResourceRoom       = "room"
	ResourceEquipment  = "equipment"
	ResourceVehicle    = "vehicle"
)

const (
	// DefaultQuota applies to groups with no explicit quota entry.
	DefaultQuota = 5

	// DefaultBlockedWindowDays is the calendar window rendered by the UI.
	DefaultBlockedWindowDays = 90

	// DefaultExportRangeMonthsBefore/After bound the default export period.
	DefaultExportRangeMonthsBefore = 1
	DefaultExportRangeMonthsAfter  = 2

	// WorkerQueueSize is the in-memory sync queue capacity.
	WorkerQueueSize = 1000

	// RateLimitSubmissions caps booking submissions per applicant window.
	RateLimitSubmissions = 5

	// RateLimitWindowSeconds is the submission rate-limit window.
	RateLimitWindowSeconds = 60

	// BlockedDatesCacheTTLSeconds is the redis TTL for blocked-date sets.
	BlockedDatesCacheTTLSeconds = 5 * 60
)

// InternshipDurations are the selectable internship period lengths in days.
var InternshipDurations = []int{30, 60, 90, 120, 150, 180}
