package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"riad/internal/api"
	"riad/internal/config"
	"riad/internal/database"
	"riad/internal/domain"
	"riad/internal/events"
	"riad/internal/export"
	"riad/internal/logging"
	"riad/internal/metrics"
	"riad/internal/models"
	"riad/internal/notify"
	"riad/internal/pricing"
	"riad/internal/repository"
	"riad/internal/retry"
	"riad/internal/service"
	"riad/internal/worker"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v2"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	cfg, logger, closer, err := loadConfigAndLogger()
	if err != nil {
		return err
	}
	if closer != nil {
		defer (func() { _ = closer.Close() })()
	}

	if err := prepareDirectories(cfg, &logger); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := initDatabase(ctx, cfg, &logger)
	if err != nil {
		return err
	}
	defer db.Close()

	redisClient := initRedis(ctx, cfg, &logger)
	if redisClient != nil {
		defer redisClient.Close()
	}

	eventBus := events.NewEventBus()
	eventBus.OnError(func(ev *events.Event, err error) {
		logger.Error().Err(err).Str("event", ev.Type).Msg("event handler failed")
	})
	events.NewAuditLogger(&logger).Attach(eventBus)

	notificationWorker, err := initNotifications(cfg, redisClient, &logger)
	if err != nil {
		return err
	}
	notificationWorker.Attach(eventBus)
	go notificationWorker.Start(ctx)

	if cfg.Backup.Enabled {
		backupService := database.NewBackupService(db, cfg.Backup, &logger)
		go backupService.Start(ctx)
	}

	// Инициализация бизнес-сервисов
	calc := pricing.NewCalculator(cfg.Booking.DepositPercent, cfg.Booking.DepositMinimum)
	policy := service.NewCancellationPolicy(cfg.Booking.GracePeriodDays, cfg.Booking.PenaltyPercent, cfg.Booking.PenaltyBasis)
	ledger := service.NewPaymentLedger(db, eventBus, &logger)
	reservations := service.NewReservationService(db, ledger, policy, calc, eventBus, &logger)
	wizard := service.NewWizardService(
		initWizardStore(redisClient, &logger), db, calc, reservations,
		time.Duration(cfg.Booking.WizardTTLMinutes)*time.Minute, &logger,
	)

	httpServer := api.NewHTTPServer(&cfg.API, api.Services{
		Wizard:       wizard,
		Reservations: reservations,
		Ledger:       ledger,
		Rooms:        db,
		Exporter:     export.NewExporter(db, cfg.Exports.Path, &logger),
	}, readinessChecks(db, redisClient), &logger)

	startMetrics(ctx, cfg, &logger)

	return startServer(ctx, httpServer, cfg, &logger)
}

func loadConfigAndLogger() (*config.Config, zerolog.Logger, io.Closer, error) {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "configs/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, zerolog.Logger{}, nil, fmt.Errorf("load config: %w", err)
	}

	baseLogger, closer, err := logging.New(cfg.Logging, cfg.App)
	if err != nil {
		return nil, zerolog.Logger{}, nil, fmt.Errorf("init logger: %w", err)
	}
	logger := logging.Component(baseLogger, "api-main")

	return cfg, *logger, closer, nil
}

func prepareDirectories(cfg *config.Config, logger *zerolog.Logger) error {
	if err := os.MkdirAll(cfg.Exports.Path, 0o755); err != nil {
		logger.Error().Err(err).Msg("Ошибка создания директории для экспорта")
		return err
	}
	return nil
}

// catalogFile is the layout of the room catalog YAML.
type catalogFile struct {
	RoomTypes []*models.RoomType `yaml:"room_types"`
	Rooms     []*models.Room     `yaml:"rooms"`
}

func loadCatalog(path string, logger *zerolog.Logger) (*catalogFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		logger.Error().Err(err).Str("catalog_path", path).Msg("read catalog")
		return nil, err
	}

	var catalog catalogFile
	if err := yaml.Unmarshal(data, &catalog); err != nil {
		logger.Error().Err(err).Str("catalog_path", path).Msg("parse catalog")
		return nil, err
	}

	if err := config.ValidateCatalog(catalog.RoomTypes, catalog.Rooms); err != nil {
		logger.Error().Err(err).Msg("catalog validation failed")
		return nil, err
	}
	return &catalog, nil
}

func initDatabase(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) (*database.DB, error) {
	db, err := database.NewDB(cfg.Database.Path, logger)
	if err != nil {
		logger.Error().Err(err).Str("db_path", cfg.Database.Path).Msg("init database")
		return nil, err
	}
	db.SetLockRetries(cfg.Booking.LockRetries)

	catalogPath := os.Getenv("CATALOG_PATH")
	if catalogPath == "" {
		catalogPath = cfg.CatalogPath
	}
	if catalogPath == "" {
		catalogPath = filepath.Join("configs", "catalog.yaml")
	}

	catalog, err := loadCatalog(catalogPath, logger)
	if err != nil {
		db.Close()
		return nil, err
	}
	if err := db.SyncCatalog(ctx, catalog.RoomTypes, catalog.Rooms); err != nil {
		logger.Error().Err(err).Msg("Ошибка синхронизации каталога номеров")
		db.Close()
		return nil, err
	}
	logger.Info().Int("room_types", len(catalog.RoomTypes)).Int("rooms", len(catalog.Rooms)).Msg("catalog synced")
	return db, nil
}

func initRedis(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) *redis.Client {
	if cfg.Redis.Address == "" {
		return nil
	}

	redisClient := repository.NewRedisClient(cfg.Redis)
	if err := repository.Ping(ctx, redisClient); err != nil {
		// клиент оставляем: failover-хранилище само вернется к Redis
		logger.Warn().Err(err).Msg("Redis unavailable, wizard sessions fall back to memory")
	} else {
		logger.Info().Str("addr", cfg.Redis.Address).Msg("redis connected")
	}
	return redisClient
}

func initWizardStore(redisClient *redis.Client, logger *zerolog.Logger) domain.WizardStore {
	fallback := repository.NewMemoryWizardStore()
	if redisClient == nil {
		return fallback
	}
	return repository.NewFailoverWizardStore(repository.NewRedisWizardStore(redisClient), fallback, logger)
}

func initNotifications(cfg *config.Config, redisClient *redis.Client, logger *zerolog.Logger) (*worker.NotificationWorker, error) {
	var notifier domain.Notifier
	if cfg.Notifications.TelegramToken != "" && cfg.Notifications.ChatID != 0 {
		tg, err := notify.NewTelegramNotifier(cfg.Notifications.TelegramToken, cfg.Notifications.ChatID, cfg.Notifications.Debug)
		if err != nil {
			logger.Error().Err(err).Msg("Ошибка создания Telegram-уведомлений")
			return nil, err
		}
		notifier = tg
		logger.Info().Int64("chat_id", cfg.Notifications.ChatID).Msg("telegram notifications enabled")
	} else {
		notifier = notify.NewLogNotifier(logger)
	}

	policy := retry.Policy{MaxRetries: cfg.Notifications.MaxRetries}
	return worker.NewNotificationWorker(notifier, redisClient, policy, cfg.Notifications.QueueSize, logger), nil
}

func readinessChecks(db *database.DB, redisClient *redis.Client) []api.ReadinessCheck {
	checks := []api.ReadinessCheck{{Name: "database", Check: db.PingContext}}
	if redisClient != nil {
		checks = append(checks, api.ReadinessCheck{Name: "redis", Check: func(ctx context.Context) error {
			return repository.Ping(ctx, redisClient)
		}})
	}
	return checks
}

func startMetrics(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) {
	metrics.Register()
	if !cfg.Monitoring.PrometheusEnabled {
		return
	}
	go startMetricsServer(ctx, cfg.Monitoring.PrometheusPort, logger)
}

func startServer(ctx context.Context, httpServer *api.HTTPServer, cfg *config.Config, logger *zerolog.Logger) error {
	if !cfg.API.HTTP.Enabled {
		logger.Warn().Msg("HTTP API is disabled in config, nothing to serve")
		<-ctx.Done()
		return nil
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- httpServer.Start()
	}()

	logger.Info().Int("http_port", cfg.API.HTTP.Port).Msg("API server started")

	select {
	case <-ctx.Done():
		logger.Info().Msg("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			logger.Error().Err(err).Msg("http server stopped")
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("http shutdown")
	}

	logger.Info().Msg("API server stopped")
	return nil
}

func startMetricsServer(ctx context.Context, port int, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error().Err(err).Msg("metrics server error")
	}
}
