package models

import "time"

// SyncTask is one unit of work for the spreadsheet mirror, persisted in
// sync_queue so tasks survive restarts.
type SyncTask struct {
	ID          int64
	TaskType    string // upsert, update_status
	BookingID   int64
	Payload     string
	Status      string // pending, retry, completed, failed
	RetryCount  int
	LastError   string
	CreatedAt   time.Time
	ProcessedAt *time.Time
	NextRetryAt *time.Time
}
