package availability

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// StoredRecord is one approved booking row as fetched from the record
// store. Fields are kept raw: rows imported from the legacy datastore may
// carry unparseable dates or durations, and those must be skipped rather
// than abort the whole computation.
type StoredRecord struct {
	StartDate    string
	DurationDays string
}

// Result is the verdict for a candidate range. BlockedDate is set only
// when Available is false and names the earliest conflicting day key.
type Result struct {
	Available   bool   `json:"available"`
	BlockedDate string `json:"blocked_date,omitempty"`
}

// Source fetches approved bookings for a resource group. Only approved
// rows count toward occupancy; the filter happens at read time so status
// changes take effect on the next check.
type Source interface {
	FetchApproved(ctx context.Context, group string) ([]StoredRecord, error)
}

// Engine answers whether a candidate date range fits under a group's
// per-day quota. It is stateless between calls and safe for concurrent
// use; each check performs one bulk read and computes in memory.
type Engine struct {
	source Source
	quotas QuotaTable
	logger zerolog.Logger
}

func NewEngine(source Source, quotas QuotaTable, logger *zerolog.Logger) *Engine {
	l := zerolog.Nop()
	if logger != nil {
		l = *logger
	}
	return &Engine{source: source, quotas: quotas, logger: l}
}

// Quota exposes the effective quota for a group.
func (e *Engine) Quota(group string) int {
	return e.quotas.For(group)
}

// CheckAvailability reports whether [start, start+durationDays) can be
// booked in group without any covered day reaching the quota. A store
// failure is returned as an error, never as a Blocked result.
func (e *Engine) CheckAvailability(ctx context.Context, group string, start time.Time, durationDays int) (Result, error) {
	records, err := e.source.FetchApproved(ctx, group)
	if err != nil {
		return Result{}, fmt.Errorf("fetch approved bookings for group %q: %w", group, err)
	}

	tally := e.tally(group, records)
	return Check(tally, e.quotas.For(group), start, durationDays), nil
}

// BlockedDates returns every day key in [start, start+windowDays) whose
// approved occupancy already meets or exceeds the group quota. Calendar
// UIs use this to pre-mark full dates.
func (e *Engine) BlockedDates(ctx context.Context, group string, start time.Time, windowDays int) ([]string, error) {
	records, err := e.source.FetchApproved(ctx, group)
	if err != nil {
		return nil, fmt.Errorf("fetch approved bookings for group %q: %w", group, err)
	}

	tally := e.tally(group, records)
	return BlockedDates(tally, e.quotas.For(group), start, windowDays), nil
}

func (e *Engine) tally(group string, records []StoredRecord) map[string]int {
	tally := make(map[string]int)
	for _, rec := range records {
		keys, ok := expandStored(rec)
		if !ok {
			e.logger.Warn().
				Str("group", group).
				Str("start_date", rec.StartDate).
				Str("duration_days", rec.DurationDays).
				Msg("skipping malformed booking record")
			continue
		}
		for _, key := range keys {
			tally[key]++
		}
	}
	return tally
}

// expandStored parses a stored record into its covered day keys. Records
// with an unparseable start date or a non-positive or non-numeric duration
// contribute nothing.
func expandStored(rec StoredRecord) ([]string, bool) {
	start, err := ParseDayKey(strings.TrimSpace(rec.StartDate))
	if err != nil {
		return nil, false
	}
	days, err := strconv.Atoi(strings.TrimSpace(rec.DurationDays))
	if err != nil || days <= 0 {
		return nil, false
	}
	return ExpandRange(start, days), true
}

// Tally accumulates per-day occupancy counts from stored records,
// skipping malformed rows. Exposed for callers that already hold a
// record snapshot.
func Tally(records []StoredRecord) map[string]int {
	tally := make(map[string]int)
	for _, rec := range records {
		keys, ok := expandStored(rec)
		if !ok {
			continue
		}
		for _, key := range keys {
			tally[key]++
		}
	}
	return tally
}

// Check walks the candidate range in chronological order and blocks on
// the first day whose count has reached the quota. Quota is a hard
// ceiling: a day exactly at quota blocks. A non-positive duration means
// there is nothing to check.
func Check(tally map[string]int, quota int, start time.Time, durationDays int) Result {
	for _, key := range ExpandRange(start, durationDays) {
		if tally[key] >= quota {
			return Result{Available: false, BlockedDate: key}
		}
	}
	return Result{Available: true}
}

// BlockedDates filters the window to days at or over quota, sorted
// chronologically. Day keys sort lexicographically in date order.
func BlockedDates(tally map[string]int, quota int, start time.Time, windowDays int) []string {
	var blocked []string
	for _, key := range ExpandRange(start, windowDays) {
		if tally[key] >= quota {
			blocked = append(blocked, key)
		}
	}
	sort.Strings(blocked)
	return blocked
}
