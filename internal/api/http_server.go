package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"simpkl/internal/config"
	"simpkl/internal/domain"
	"simpkl/internal/export"
	"simpkl/internal/logging"
	"simpkl/internal/metrics"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
)

// HTTPServer exposes the booking and availability API.
type HTTPServer struct {
	cfg       config.HTTPConfig
	bookings  domain.BookingService
	groups    domain.GroupService
	exporter  *export.Exporter
	syncTasks domain.SyncTaskStore
	validate  *validator.Validate
	logger    zerolog.Logger
	server    *http.Server
	auth      *HTTPAuth
}

func NewHTTPServer(
	cfg *config.Config,
	bookings domain.BookingService,
	groups domain.GroupService,
	exporter *export.Exporter,
	syncTasks domain.SyncTaskStore,
	logger *zerolog.Logger,
) *HTTPServer {
	base := zerolog.Nop()
	if logger != nil {
		base = logger.With().Str("component", "http").Logger()
	}

	srv := &HTTPServer{
		cfg:       cfg.HTTP,
		bookings:  bookings,
		groups:    groups,
		exporter:  exporter,
		syncTasks: syncTasks,
		validate:  validator.New(),
		logger:    base,
	}
	srv.auth = NewHTTPAuth(cfg.Auth, cfg.RateLimit)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/availability/check", srv.handleAvailabilityCheck)
	mux.HandleFunc("GET /api/v1/availability/blocked", srv.handleBlockedDates)
	mux.HandleFunc("POST /api/v1/bookings", srv.handleSubmitBooking)
	mux.HandleFunc("GET /api/v1/bookings", srv.handleListBookings)
	mux.HandleFunc("GET /api/v1/bookings/{id}", srv.handleGetBooking)
	mux.HandleFunc("POST /api/v1/bookings/{id}/approve", srv.handleApprove)
	mux.HandleFunc("POST /api/v1/bookings/{id}/reject", srv.handleReject)
	mux.HandleFunc("GET /api/v1/groups", srv.handleGroups)
	mux.HandleFunc("GET /api/v1/export", srv.handleExport)
	mux.HandleFunc("GET /api/v1/admin/sync/failed", srv.handleFailedSyncTasks)
	mux.HandleFunc("GET /healthz", srv.handleHealth)

	handler := srv.loggingMiddleware(srv.auth.Wrap(mux))

	srv.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      30 * time.Second,
	}

	return srv
}

// Handler exposes the full middleware chain.
func (s *HTTPServer) Handler() http.Handler {
	return s.server.Handler
}

func (s *HTTPServer) Start() error {
	if s.server == nil {
		return fmt.Errorf("http server is not initialized")
	}
	s.logger.Info().Str("addr", s.server.Addr).Msg("http api listening")
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *HTTPServer) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *HTTPServer) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		requestID := logging.RequestID(r)
		w.Header().Set(logging.RequestIDHeader, requestID)

		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(recorder, r)

		metrics.IncHTTP(r.URL.Path, strconv.Itoa(recorder.status))
		s.logger.Info().
			Str("request_id", requestID).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", recorder.status).
			Dur("duration", time.Since(start)).
			Msg("http request")
	})
}

func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, map[string]string{"error": message})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
