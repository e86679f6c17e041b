package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"simpkl/internal/availability"
	"simpkl/internal/database"
	"simpkl/internal/metrics"
	"simpkl/internal/models"
	"simpkl/internal/service"

	"github.com/go-playground/validator/v10"
)

type createBookingRequest struct {
	ApplicantName  string `json:"applicant_name" validate:"required,min=2,max=120"`
	ApplicantEmail string `json:"applicant_email" validate:"required,email"`
	Phone          string `json:"phone" validate:"omitempty,max=32"`
	Institution    string `json:"institution" validate:"omitempty,max=200"`
	ResourceGroup  string `json:"resource_group" validate:"required"`
	StartDate      string `json:"start_date" validate:"required"`
	DurationDays   string `json:"duration_days" validate:"required"`
	Comment        string `json:"comment" validate:"omitempty,max=500"`
}

type decisionRequest struct {
	Version int64 `json:"version" validate:"required,min=1"`
	AdminID int64 `json:"admin_id" validate:"required"`
}

func (s *HTTPServer) handleAvailabilityCheck(w http.ResponseWriter, r *http.Request) {
	group := strings.TrimSpace(r.URL.Query().Get("group"))
	if group == "" {
		writeError(w, http.StatusBadRequest, "group is required")
		return
	}

	start, err := parseDateParam(r, "date")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	duration := 1
	if raw := strings.TrimSpace(r.URL.Query().Get("duration")); raw != "" {
		duration, err = strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid duration")
			return
		}
	}

	res, err := s.bookings.CheckAvailability(r.Context(), group, start, duration)
	if err != nil {
		metrics.IncAvailabilityCheck(group, "error")
		writeError(w, http.StatusServiceUnavailable, "could not verify availability")
		return
	}

	outcome := "available"
	if !res.Available {
		outcome = "blocked"
	}
	metrics.IncAvailabilityCheck(group, outcome)

	writeJSON(w, http.StatusOK, res)
}

func (s *HTTPServer) handleBlockedDates(w http.ResponseWriter, r *http.Request) {
	group := strings.TrimSpace(r.URL.Query().Get("group"))
	if group == "" {
		writeError(w, http.StatusBadRequest, "group is required")
		return
	}

	start := time.Now()
	if raw := strings.TrimSpace(r.URL.Query().Get("date")); raw != "" {
		parsed, err := parseDateParam(r, "date")
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		start = parsed
	}

	days := models.DefaultBlockedWindowDays
	if raw := strings.TrimSpace(r.URL.Query().Get("days")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			writeError(w, http.StatusBadRequest, "invalid days")
			return
		}
		days = parsed
	}

	dates, err := s.bookings.BlockedDates(r.Context(), group, start, days)
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, "could not load blocked dates")
		return
	}
	if dates == nil {
		dates = []string{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"group": group,
		"dates": dates,
	})
}

func (s *HTTPServer) handleSubmitBooking(w http.ResponseWriter, r *http.Request) {
	var req createBookingRequest
	if !s.decodeAndValidate(w, r, &req) {
		return
	}

	start, err := availability.ParseDayKey(req.StartDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid start_date; expected YYYY-MM-DD")
		return
	}

	booking := &models.Booking{
		ApplicantName:  req.ApplicantName,
		ApplicantEmail: req.ApplicantEmail,
		Phone:          req.Phone,
		Institution:    req.Institution,
		ResourceGroup:  req.ResourceGroup,
		StartDate:      start,
		DurationDays:   req.DurationDays,
		Comment:        req.Comment,
	}

	if err := s.bookings.SubmitBooking(r.Context(), booking); err != nil {
		s.writeBookingError(w, err)
		return
	}

	metrics.IncBookingTransition(models.StatusPending)
	writeJSON(w, http.StatusCreated, booking)
}

func (s *HTTPServer) handleListBookings(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	if group := strings.TrimSpace(q.Get("group")); group != "" {
		status := strings.TrimSpace(q.Get("status"))
		if status != "" && status != models.StatusPending && status != models.StatusApproved && status != models.StatusRejected {
			writeError(w, http.StatusBadRequest, "invalid status")
			return
		}
		bookings, err := s.bookings.GetBookingsByGroup(r.Context(), group, status)
		s.writeBookingList(w, bookings, err)
		return
	}

	if email := strings.TrimSpace(q.Get("email")); email != "" {
		bookings, err := s.bookings.GetApplicantBookings(r.Context(), email)
		s.writeBookingList(w, bookings, err)
		return
	}

	from, err := parseDateParam(r, "from")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	to, err := parseDateParam(r, "to")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if to.Before(from) {
		writeError(w, http.StatusBadRequest, "to must not precede from")
		return
	}

	bookings, err := s.bookings.GetBookingsByDateRange(r.Context(), from, to)
	s.writeBookingList(w, bookings, err)
}

func (s *HTTPServer) writeBookingList(w http.ResponseWriter, bookings []*models.Booking, err error) {
	if err != nil {
		writeError(w, http.StatusInternalServerError, "could not load bookings")
		return
	}
	if bookings == nil {
		bookings = []*models.Booking{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"bookings": bookings})
}

func (s *HTTPServer) handleGetBooking(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid booking id")
		return
	}

	booking, err := s.bookings.GetBooking(r.Context(), id)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			writeError(w, http.StatusNotFound, "booking not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "could not load booking")
		return
	}

	writeJSON(w, http.StatusOK, booking)
}

func (s *HTTPServer) handleApprove(w http.ResponseWriter, r *http.Request) {
	s.handleDecision(w, r, models.StatusApproved, s.bookings.ApproveBooking)
}

func (s *HTTPServer) handleReject(w http.ResponseWriter, r *http.Request) {
	s.handleDecision(w, r, models.StatusRejected, s.bookings.RejectBooking)
}

func (s *HTTPServer) handleDecision(
	w http.ResponseWriter,
	r *http.Request,
	status string,
	decide func(ctx context.Context, id, version, adminID int64) error,
) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid booking id")
		return
	}

	var req decisionRequest
	if !s.decodeAndValidate(w, r, &req) {
		return
	}

	if err := decide(r.Context(), id, req.Version, req.AdminID); err != nil {
		s.writeBookingError(w, err)
		return
	}

	metrics.IncBookingTransition(status)
	writeJSON(w, http.StatusOK, map[string]any{"id": id, "status": status})
}

func (s *HTTPServer) handleGroups(w http.ResponseWriter, r *http.Request) {
	groups := s.groups.ActiveGroups()

	type groupResponse struct {
		Name  string `json:"name"`
		Type  string `json:"type"`
		Quota int    `json:"quota"`
	}

	out := make([]groupResponse, 0, len(groups))
	for _, g := range groups {
		out = append(out, groupResponse{Name: g.Name, Type: g.Type, Quota: s.groups.Quota(g.Name)})
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"groups":               out,
		"internship_durations": models.InternshipDurations,
	})
}

func (s *HTTPServer) handleExport(w http.ResponseWriter, r *http.Request) {
	if s.exporter == nil {
		writeError(w, http.StatusNotImplemented, "export is not configured")
		return
	}

	from, err := parseDateParam(r, "from")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	to, err := parseDateParam(r, "to")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if to.Before(from) {
		writeError(w, http.StatusBadRequest, "to must not precede from")
		return
	}

	daily, err := s.bookings.GetDailyBookings(r.Context(), from, to)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "could not load bookings")
		return
	}

	quotas := availability.QuotaTable{Groups: map[string]int{}}
	groups := s.groups.ActiveGroups()
	for _, g := range groups {
		quotas.Groups[g.Name] = s.groups.Quota(g.Name)
	}

	f, err := s.exporter.BuildSchedule(from, to, groups, daily, quotas)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "could not build export")
		return
	}
	defer f.Close()

	fileName := fmt.Sprintf("jadwal_%s_to_%s.xlsx",
		from.Format("2006-01-02"), to.Format("2006-01-02"))
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", fileName))
	if _, err := f.WriteTo(w); err != nil {
		s.logger.Error().Err(err).Msg("write export response")
	}
}

// handleFailedSyncTasks lists dead-lettered spreadsheet sync tasks so an
// admin can see which bookings never reached the mirror.
func (s *HTTPServer) handleFailedSyncTasks(w http.ResponseWriter, r *http.Request) {
	if s.syncTasks == nil {
		writeError(w, http.StatusNotImplemented, "sync queue is not configured")
		return
	}

	tasks, err := s.syncTasks.GetFailedSyncTasks(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "could not load failed sync tasks")
		return
	}
	if tasks == nil {
		tasks = []models.SyncTask{}
	}

	writeJSON(w, http.StatusOK, map[string]any{"tasks": tasks})
}

func (s *HTTPServer) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *HTTPServer) decodeAndValidate(w http.ResponseWriter, r *http.Request, dst any) bool {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}

	if err := s.validate.Struct(dst); err != nil {
		writeError(w, http.StatusBadRequest, validationMessage(err))
		return false
	}
	return true
}

func (s *HTTPServer) writeBookingError(w http.ResponseWriter, err error) {
	var conflict *service.ConflictError

	switch {
	case errors.As(err, &conflict):
		writeError(w, http.StatusConflict, conflict.Error())
	case errors.Is(err, database.ErrNotAvailable):
		writeError(w, http.StatusConflict, "requested range is not available")
	case errors.Is(err, database.ErrConcurrentModification):
		writeError(w, http.StatusConflict, "booking was modified concurrently, reload and retry")
	case errors.Is(err, service.ErrRateLimited):
		writeError(w, http.StatusTooManyRequests, err.Error())
	case errors.Is(err, database.ErrUnknownGroup):
		writeError(w, http.StatusNotFound, "unknown resource group")
	case errors.Is(err, database.ErrNotFound):
		writeError(w, http.StatusNotFound, "booking not found")
	case errors.Is(err, database.ErrPastDate),
		errors.Is(err, database.ErrDateTooFar),
		errors.Is(err, database.ErrInvalidDuration):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		writeError(w, http.StatusServiceUnavailable, "could not verify availability")
	}
}

func parseDateParam(r *http.Request, name string) (time.Time, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return time.Time{}, fmt.Errorf("%s is required", name)
	}
	t, err := availability.ParseDayKey(raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid %s; expected YYYY-MM-DD", name)
	}
	return t, nil
}

func validationMessage(err error) string {
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		fields := make([]string, 0, len(fieldErrs))
		for _, fe := range fieldErrs {
			fields = append(fields, strings.ToLower(fe.Field()))
		}
		return "invalid fields: " + strings.Join(fields, ", ")
	}
	return "validation failed"
}
