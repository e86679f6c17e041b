package worker

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"simpkl/internal/database"
	"simpkl/internal/models"

	"github.com/rs/zerolog"
)

func TestProcessTaskSuccess(t *testing.T) {
	db := newTestDB(t)
	sheets := &fakeSheets{}
	w := NewSyncWorker(db, sheets, nil, RetryPolicy{}, nil)

	booking := &models.Booking{
		ID:             1,
		ApplicantName:  "Budi",
		ApplicantEmail: "budi@example.ac.id",
		ResourceGroup:  "LabA",
		StartDate:      time.Now(),
		DurationDays:   "30",
		Status:         models.StatusPending,
	}

	ctx := context.Background()
	if err := w.EnqueueTask(ctx, TaskUpsert, booking.ID, booking, ""); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	task, ok := w.tryLocalQueue()
	if !ok {
		t.Fatalf("expected task in local queue")
	}
	w.processTask(ctx, &task)

	status, retryCount, nextRetry := loadTaskStatus(t, db, task.ID)
	if status != "completed" {
		t.Fatalf("expected status=completed, got %s", status)
	}
	if retryCount != 0 {
		t.Fatalf("expected retry_count=0, got %d", retryCount)
	}
	if nextRetry.Valid {
		t.Fatalf("expected next_retry_at NULL on success")
	}
	if sheets.upsertCalls != 1 {
		t.Fatalf("expected upsert call, got %d", sheets.upsertCalls)
	}
}

func TestProcessTaskRetry(t *testing.T) {
	db := newTestDB(t)
	sheets := &fakeSheets{err: errors.New("boom")}
	w := NewSyncWorker(db, sheets, nil, RetryPolicy{MaxRetries: 3, InitialDelay: time.Second}, nil)

	ctx := context.Background()
	booking := &models.Booking{ID: 2, ApplicantName: "Budi", ResourceGroup: "LabA", StartDate: time.Now(), DurationDays: "30"}
	if err := w.EnqueueTask(ctx, TaskUpsert, booking.ID, booking, ""); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	task, ok := w.tryLocalQueue()
	if !ok {
		t.Fatalf("expected task in local queue")
	}
	w.processTask(ctx, &task)

	status, retryCount, nextRetry := loadTaskStatus(t, db, task.ID)
	if status != "retry" {
		t.Fatalf("expected status=retry, got %s", status)
	}
	if retryCount != 1 {
		t.Fatalf("expected retry_count=1, got %d", retryCount)
	}
	if !nextRetry.Valid || nextRetry.Time.Before(time.Now()) {
		t.Fatalf("expected next_retry_at in future, got %v", nextRetry)
	}
}

func TestProcessTaskFail(t *testing.T) {
	db := newTestDB(t)
	sheets := &fakeSheets{err: errors.New("fatal")}
	w := NewSyncWorker(db, sheets, nil, RetryPolicy{MaxRetries: 1}, nil)

	ctx := context.Background()
	booking := &models.Booking{ID: 3, ApplicantName: "Budi", ResourceGroup: "LabA", StartDate: time.Now(), DurationDays: "30"}
	_ = w.EnqueueTask(ctx, TaskUpsert, booking.ID, booking, "")
	task, _ := w.tryLocalQueue()
	w.processTask(ctx, &task)

	status, _, _ := loadTaskStatus(t, db, task.ID)
	if status != "failed" {
		t.Fatalf("expected status=failed, got %s", status)
	}
}

func TestApplyTask(t *testing.T) {
	db := newTestDB(t)
	sheets := &fakeSheets{}
	w := NewSyncWorker(db, sheets, nil, RetryPolicy{MaxRetries: 3}, nil)

	ctx := context.Background()

	t.Run("Upsert", func(t *testing.T) {
		if err := w.apply(ctx, TaskUpsert, taskPayload{Booking: &models.Booking{ID: 1}}); err != nil {
			t.Fatalf("apply: %v", err)
		}
		if sheets.upsertCalls != 1 {
			t.Fatalf("expected 1 upsert call, got %d", sheets.upsertCalls)
		}
	})

	t.Run("UpdateStatus", func(t *testing.T) {
		if err := w.apply(ctx, TaskUpdateStatus, taskPayload{BookingID: 123, Status: models.StatusApproved}); err != nil {
			t.Fatalf("apply: %v", err)
		}
		if sheets.statusCalls != 1 {
			t.Fatalf("expected 1 status call, got %d", sheets.statusCalls)
		}
	})

	t.Run("MissingPayload", func(t *testing.T) {
		if err := w.apply(ctx, TaskUpsert, taskPayload{}); err == nil {
			t.Fatalf("expected error for missing booking payload")
		}
		if err := w.apply(ctx, TaskUpdateStatus, taskPayload{BookingID: 1}); err == nil {
			t.Fatalf("expected error for missing status")
		}
	})

	t.Run("UnknownType", func(t *testing.T) {
		if err := w.apply(ctx, "compact", taskPayload{BookingID: 1}); err == nil {
			t.Fatalf("expected error for unknown task type")
		}
	})
}

func TestEnqueueTaskValidation(t *testing.T) {
	db := newTestDB(t)
	w := NewSyncWorker(db, &fakeSheets{}, nil, RetryPolicy{}, nil)

	ctx := context.Background()

	if err := w.EnqueueTask(ctx, "", 1, nil, ""); err == nil {
		t.Fatalf("expected error for empty task type")
	}
	if err := w.EnqueueTask(ctx, TaskUpsert, 0, nil, ""); err == nil {
		t.Fatalf("expected error for missing booking id")
	}

	// Booking ID may come from the booking itself.
	if err := w.EnqueueTask(ctx, TaskUpsert, 0, &models.Booking{ID: 7}, ""); err != nil {
		t.Fatalf("enqueue with booking-only id: %v", err)
	}
}

func TestRetryPolicyNextDelay(t *testing.T) {
	policy := RetryPolicy{InitialDelay: time.Second, BackoffFactor: 2, MaxDelay: 5 * time.Second}

	if d := policy.NextDelay(1); d != time.Second {
		t.Fatalf("attempt1 expected 1s, got %s", d)
	}
	if d := policy.NextDelay(2); d != 2*time.Second {
		t.Fatalf("attempt2 expected 2s, got %s", d)
	}
	if d := policy.NextDelay(5); d != 5*time.Second {
		t.Fatalf("attempt5 expected capped 5s, got %s", d)
	}
	if d := (RetryPolicy{}).NextDelay(0); d != time.Second {
		t.Fatalf("zero policy expected 1s default, got %s", d)
	}
}

// Helpers

type fakeSheets struct {
	err         error
	upsertCalls int
	statusCalls int
}

func (f *fakeSheets) UpsertBooking(_ context.Context, _ *models.Booking) error {
	f.upsertCalls++
	return f.err
}

func (f *fakeSheets) UpdateBookingStatus(_ context.Context, _ int64, _ string) error {
	f.statusCalls++
	return f.err
}

func newTestDB(t *testing.T) *database.DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "worker.db")
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	db, err := database.NewDB(path, &logger)
	if err != nil {
		t.Fatalf("new db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func loadTaskStatus(t *testing.T, db *database.DB, id int64) (status string, retryCount int, nextRetry sql.NullTime) {
	t.Helper()
	row := db.QueryRowContext(context.Background(), `SELECT status, retry_count, next_retry_at FROM sync_queue WHERE id = ?`, id)
	if err := row.Scan(&status, &retryCount, &nextRetry); err != nil {
		t.Fatalf("scan task: %v", err)
	}
	return status, retryCount, nextRetry
}
