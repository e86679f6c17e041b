package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"simpkl/internal/api"
	"simpkl/internal/availability"
	"simpkl/internal/config"
	"simpkl/internal/database"
	"simpkl/internal/domain"
	"simpkl/internal/events"
	"simpkl/internal/export"
	"simpkl/internal/google"
	"simpkl/internal/logging"
	"simpkl/internal/metrics"
	"simpkl/internal/notify"
	"simpkl/internal/repository"
	"simpkl/internal/service"
	"simpkl/internal/worker"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("fatal error: %v", err)
	}
}

func run() error {
	cfg, logger, closer, err := loadConfigAndLogger()
	if err != nil {
		return err
	}
	if closer != nil {
		defer closer.Close()
	}

	if err := prepareDirectories(cfg); err != nil {
		return err
	}

	db, err := initDatabase(cfg, logger)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	metrics.Register()

	redisClient, cache := initCache(ctx, cfg, logger)
	if redisClient != nil {
		defer redisClient.Close()
	}

	eventBus := events.NewEventBus()

	sheetsService := initGoogleSheets(ctx, cfg, logger)

	var syncWorker domain.SyncWorker
	if sheetsService != nil {
		w := worker.NewSyncWorker(db, sheetsService, redisClient, worker.RetryPolicy{}, logger)
		go w.Start(ctx)
		syncWorker = w
	}

	initTelegramNotifier(cfg, eventBus, logger)

	quotas := cfg.QuotaTable()
	engine := availability.NewEngine(db, quotas, logger)

	bookingService := service.NewBookingService(db, engine, eventBus, syncWorker, cache, service.BookingServiceOptions{
		MaxAdvanceDays:    cfg.Booking.MaxAdvanceDays,
		BlockedWindowDays: cfg.Booking.BlockedWindowDays,
		SubmissionLimit:   cfg.Booking.SubmissionLimit,
		SubmissionWindow:  time.Duration(cfg.Booking.SubmissionWindowSeconds) * time.Second,
	}, logger)
	groupService := service.NewGroupService(db, quotas)
	exporter := export.NewExporter(cfg.Exports.Path, logger)

	if cfg.Monitoring.PrometheusEnabled {
		startMetricsServer(cfg.Monitoring.PrometheusPort, logger)
	}

	if cfg.Backup.Enabled {
		backupService := database.NewBackupService(cfg.Database.Path, cfg.Backup, logger)
		go backupService.Start(ctx)
	}

	httpServer := api.NewHTTPServer(cfg, bookingService, groupService, exporter, db, logger)
	go func() {
		if err := httpServer.Start(); err != nil {
			logger.Error().Err(err).Msg("http server error")
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http shutdown error")
	}

	logger.Info().Msg("shutdown complete")
	return nil
}

func loadConfigAndLogger() (*config.Config, *zerolog.Logger, io.Closer, error) {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "configs/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, nil, err
	}

	logger, closer, err := logging.New(cfg.Logging, cfg.App)
	if err != nil {
		return nil, nil, nil, err
	}

	return cfg, logger, closer, nil
}

func prepareDirectories(cfg *config.Config) error {
	if cfg.Database.Path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(cfg.Database.Path), 0o755); err != nil {
			return fmt.Errorf("create database directory: %w", err)
		}
	}
	if cfg.Exports.Path != "" {
		if err := os.MkdirAll(cfg.Exports.Path, 0o755); err != nil {
			return fmt.Errorf("create export directory: %w", err)
		}
	}
	return nil
}

func initDatabase(cfg *config.Config, logger *zerolog.Logger) (*database.DB, error) {
	db, err := database.NewDB(cfg.Database.Path, logger)
	if err != nil {
		return nil, fmt.Errorf("init database: %w", err)
	}
	db.SetGroups(cfg.Groups)
	return db, nil
}

func initCache(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) (*redis.Client, domain.Cache) {
	memory := repository.NewMemoryCache()
	if cfg.Redis.Address == "" {
		return nil, memory
	}

	client := repository.NewRedisClient(cfg.Redis)
	if err := repository.Ping(ctx, client); err != nil {
		logger.Warn().Err(err).Msg("redis unavailable, starting on memory cache")
	}
	return client, repository.NewFailoverCache(repository.NewRedisCache(client), memory, logger)
}

func initGoogleSheets(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) *google.SheetsService {
	if !cfg.Google.Enabled {
		return nil
	}

	sheetsService, err := google.NewSheetsService(cfg.Google.CredentialsFile, cfg.Google.BookingsSpreadsheetID)
	if err != nil {
		logger.Error().Err(err).Msg("google sheets init failed, mirror disabled")
		return nil
	}
	if err := sheetsService.TestConnection(ctx); err != nil {
		logger.Error().Err(err).Msg("google sheets connection test failed, mirror disabled")
		return nil
	}

	event := logger.Info()
	if email, err := google.ServiceAccountEmail(cfg.Google.CredentialsFile); err == nil {
		// The spreadsheet must be shared with this account.
		event = event.Str("service_account", email)
	}
	event.Msg("google sheets mirror enabled")
	return sheetsService
}

func initTelegramNotifier(cfg *config.Config, bus *events.EventBus, logger *zerolog.Logger) {
	if !cfg.Telegram.Enabled {
		return
	}

	sender, err := notify.NewBotSender(cfg.Telegram.BotToken)
	if err != nil {
		logger.Error().Err(err).Msg("telegram init failed, notifications disabled")
		return
	}

	notifier := notify.NewTelegramNotifier(sender, cfg.Telegram.AdminChatIDs, logger)
	notifier.SubscribeTo(bus)
	logger.Info().Int("admins", len(cfg.Telegram.AdminChatIDs)).Msg("telegram notifications enabled")
}

func startMetricsServer(port int, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Info().Str("addr", srv.Addr).Msg("metrics listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("metrics server error")
		}
	}()
}
