package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"simpkl/internal/availability"
	"simpkl/internal/models"
)

const bookingColumns = `id, applicant_name, applicant_email, phone, institution,
                 resource_group, resource_type, start_date, duration_days,
                 status, comment, created_at, updated_at, version`

// FetchApproved returns the raw day ranges of approved bookings in a
// group. The status filter happens at read time, so an admin decision is
// visible to the very next availability check.
func (db *DB) FetchApproved(ctx context.Context, group string) ([]availability.StoredRecord, error) {
	query := `SELECT start_date, duration_days FROM bookings WHERE resource_group = ? AND status = ?`
	rows, err := db.QueryContext(ctx, query, group, models.StatusApproved)
	if err != nil {
		return nil, fmt.Errorf("fetch approved bookings: %w", err)
	}
	defer rows.Close()

	var records []availability.StoredRecord
	for rows.Next() {
		var rec availability.StoredRecord
		if err := rows.Scan(&rec.StartDate, &rec.DurationDays); err != nil {
			return nil, fmt.Errorf("scan approved booking: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate approved bookings: %w", err)
	}
	return records, nil
}

// CreateBookingWithLock inserts a pending booking after re-checking the
// candidate range against approved occupancy inside the same transaction.
// Pending rows still do not reserve capacity; the transactional re-check
// only narrows the submit-time window, it does not close it.
func (db *DB) CreateBookingWithLock(ctx context.Context, booking *models.Booking, quota int) error {
	durationDays, err := strconv.Atoi(strings.TrimSpace(booking.DurationDays))
	if err != nil || durationDays <= 0 {
		return ErrInvalidDuration
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	rows, err := tx.QueryContext(ctx,
		`SELECT start_date, duration_days FROM bookings WHERE resource_group = ? AND status = ?`,
		booking.ResourceGroup, models.StatusApproved)
	if err != nil {
		return fmt.Errorf("fetch approved bookings in tx: %w", err)
	}

	var records []availability.StoredRecord
	for rows.Next() {
		var rec availability.StoredRecord
		if err := rows.Scan(&rec.StartDate, &rec.DurationDays); err != nil {
			rows.Close()
			return fmt.Errorf("scan approved booking in tx: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return fmt.Errorf("iterate approved bookings in tx: %w", err)
	}
	rows.Close()

	tally := availability.Tally(records)
	res := availability.Check(tally, quota, booking.StartDate, durationDays)
	if !res.Available {
		return fmt.Errorf("%w: %s", ErrNotAvailable, res.BlockedDate)
	}

	now := time.Now()
	result, err := tx.ExecContext(ctx,
		`INSERT INTO bookings (
            applicant_name, applicant_email, phone, institution,
            resource_group, resource_type, start_date, duration_days,
            status, comment, created_at, updated_at, version
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		booking.ApplicantName,
		booking.ApplicantEmail,
		booking.Phone,
		booking.Institution,
		booking.ResourceGroup,
		booking.ResourceType,
		availability.DayKey(booking.StartDate),
		strconv.Itoa(durationDays),
		models.StatusPending,
		booking.Comment,
		now,
		now,
		1,
	)
	if err != nil {
		return fmt.Errorf("insert booking in tx: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("last insert id in tx: %w", err)
	}
	booking.ID = id
	booking.Status = models.StatusPending
	booking.DurationDays = strconv.Itoa(durationDays)
	booking.CreatedAt = now
	booking.UpdatedAt = now
	booking.Version = 1

	return tx.Commit()
}

func (db *DB) GetBooking(ctx context.Context, id int64) (*models.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE id = ?`
	booking, err := scanBooking(db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get booking %d: %w", id, err)
	}
	return booking, nil
}

// UpdateBookingStatusWithVersion flips the approval state. The version
// guard rejects decisions made against a stale view of the row.
func (db *DB) UpdateBookingStatusWithVersion(ctx context.Context, id, fromVersion int64, status string) error {
	query := `UPDATE bookings SET status = ?, version = version + 1, updated_at = ? WHERE id = ? AND version = ?`
	result, err := db.ExecContext(ctx, query, status, time.Now(), id, fromVersion)
	if err != nil {
		return fmt.Errorf("update booking status: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrConcurrentModification
	}
	return nil
}

func (db *DB) GetBookingsByDateRange(ctx context.Context, start, end time.Time) ([]*models.Booking, error) {
	query := `SELECT ` + bookingColumns + `
              FROM bookings WHERE start_date >= ? AND start_date <= ?
              ORDER BY start_date ASC, created_at ASC`
	return db.queryBookings(ctx, query, availability.DayKey(start), availability.DayKey(end))
}

// GetBookingsByGroup lists a group's bookings, optionally filtered by
// status. Empty status means all.
func (db *DB) GetBookingsByGroup(ctx context.Context, group, status string) ([]*models.Booking, error) {
	if status == "" {
		query := `SELECT ` + bookingColumns + ` FROM bookings WHERE resource_group = ? ORDER BY start_date ASC`
		return db.queryBookings(ctx, query, group)
	}
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE resource_group = ? AND status = ? ORDER BY start_date ASC`
	return db.queryBookings(ctx, query, group, status)
}

func (db *DB) GetApplicantBookings(ctx context.Context, email string) ([]*models.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE applicant_email = ? ORDER BY created_at DESC`
	return db.queryBookings(ctx, query, email)
}

// GetDailyBookings maps every day key in [start, end] to the bookings
// covering it. Multi-day bookings appear under each covered day; rows
// with an unparseable duration fall back to their start day only.
// A booking starting before the window can still cover days inside it,
// and duration is stored as text, so only the upper bound is pushed
// into SQL; the lower bound is applied after expansion.
func (db *DB) GetDailyBookings(ctx context.Context, start, end time.Time) (map[string][]*models.Booking, error) {
	query := `SELECT ` + bookingColumns + `
              FROM bookings WHERE start_date <= ?
              ORDER BY start_date ASC, created_at ASC`
	bookings, err := db.queryBookings(ctx, query, availability.DayKey(end))
	if err != nil {
		return nil, err
	}

	from := availability.DayKey(start)
	to := availability.DayKey(end)
	daily := make(map[string][]*models.Booking)
	for _, b := range bookings {
		days, err := strconv.Atoi(b.DurationDays)
		if err != nil || days <= 0 {
			days = 1
		}
		for _, key := range availability.ExpandRange(b.StartDate, days) {
			if key > to {
				break
			}
			if key < from {
				continue
			}
			daily[key] = append(daily[key], b)
		}
	}
	return daily, nil
}

func (db *DB) queryBookings(ctx context.Context, query string, args ...any) ([]*models.Booking, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query bookings: %w", err)
	}
	defer rows.Close()

	var bookings []*models.Booking
	for rows.Next() {
		booking, err := scanBooking(rows)
		if err != nil {
			return nil, fmt.Errorf("scan booking: %w", err)
		}
		bookings = append(bookings, booking)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate bookings: %w", err)
	}
	return bookings, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBooking(row rowScanner) (*models.Booking, error) {
	b := &models.Booking{}
	var startDate string
	err := row.Scan(
		&b.ID, &b.ApplicantName, &b.ApplicantEmail, &b.Phone, &b.Institution,
		&b.ResourceGroup, &b.ResourceType, &startDate, &b.DurationDays,
		&b.Status, &b.Comment, &b.CreatedAt, &b.UpdatedAt, &b.Version,
	)
	if err != nil {
		return nil, err
	}

	b.StartDate, err = availability.ParseDayKey(startDate)
	if err != nil {
		// Keep the row readable even when the stored date is junk; the
		// availability engine skips it separately.
		b.StartDate = time.Time{}
	}
	return b, nil
}
