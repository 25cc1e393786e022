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
	"strings"
	"syscall"
	"time"

	"clothingrental/internal/api"
	"clothingrental/internal/config"
	"clothingrental/internal/database"
	"clothingrental/internal/domain"
	"clothingrental/internal/events"
	"clothingrental/internal/google"
	"clothingrental/internal/logging"
	"clothingrental/internal/metrics"
	"clothingrental/internal/models"
	"clothingrental/internal/notify"
	"clothingrental/internal/repository"
	"clothingrental/internal/service"
	"clothingrental/internal/store"
	"clothingrental/internal/worker"

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

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	redisClient := initRedis(ctx, cfg, &logger)
	if redisClient != nil {
		defer redisClient.Close()
	}

	kv, closeKV, err := initStorage(ctx, cfg, redisClient, &logger)
	if err != nil {
		return err
	}
	defer closeKV()

	st := store.New(kv, logging.Component(&logger, "store"))
	bus := events.NewEventBus()
	bus.SubscribeAll(func(e *events.Event) error {
		metrics.IncEvent(e.Type)
		return nil
	})

	catalog := service.NewCatalogService(st, bus, logging.Component(&logger, "catalog"))
	bookings := service.NewBookingService(st, bus, logging.Component(&logger, "bookings"))
	auth, err := service.NewAuthService(st, bus, cfg.Auth.AdminEmail, cfg.Auth.Password, logging.Component(&logger, "auth"))
	if err != nil {
		return fmt.Errorf("init auth: %w", err)
	}
	if err := auth.EnsureDefaultAdmin(ctx); err != nil {
		return fmt.Errorf("ensure default admin: %w", err)
	}

	if err := seedCatalog(ctx, cfg, st, &logger); err != nil {
		logger.Warn().Err(err).Msg("catalog seed skipped")
	}

	retry, err := worker.RetryPolicyFromConfig(cfg.Sync)
	if err != nil {
		return fmt.Errorf("sync config: %w", err)
	}
	if sheetsService := initGoogleSheets(ctx, cfg, st, &logger); sheetsService != nil {
		syncWorker := worker.NewSyncWorker(sheetsService, redisClient, retry, logging.Component(&logger, "sync"))
		bus.Subscribe(events.EventBookingCreated, syncWorker.HandleEvent)
		bus.Subscribe(events.EventBookingStatusChanged, syncWorker.HandleEvent)
		go syncWorker.Start(ctx)
	}

	initTelegram(ctx, cfg, bus, bookings, &logger)

	if sqliteKV, ok := unwrapSQLite(kv); ok && cfg.Backup.Enabled {
		backup := database.NewBackupService(sqliteKV.Path(), cfg.Backup, logging.Component(&logger, "backup"))
		go backup.Start(ctx)
	}

	startMetrics(ctx, cfg, &logger)

	httpServer := api.NewHTTPServer(&cfg.API, catalog, bookings, auth, kv, &logger)

	var grpcServer *api.GRPCServer
	if cfg.API.GRPC.Enabled {
		grpcServer, err = api.NewGRPCServer(&cfg.API, kv, &logger)
		if err != nil {
			logger.Error().Err(err).Msg("create grpc server")
			return err
		}
		go grpcServer.WatchBackend(ctx, 15*time.Second)
	}

	return startServers(ctx, grpcServer, httpServer, cfg, &logger)
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
	logger := baseLogger.With().Str("component", "api-main").Logger()

	return cfg, logger, closer, nil
}

func initRedis(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) *redis.Client {
	if cfg.Redis.Address == "" {
		return nil
	}

	redisClient := repository.NewRedisClient(cfg.Redis)
	if err := repository.Ping(ctx, redisClient); err != nil {
		if cfg.Storage.Backend == config.BackendRedis && cfg.Storage.Failover {
			// FailoverKV обслужит запросы из памяти, пока Redis недоступен
			logger.Warn().Err(err).Msg("redis connection failed, starting on failover storage")
			return redisClient
		}
		logger.Warn().Err(err).Msg("redis connection failed, continuing without redis")
		_ = repository.Close(redisClient)
		return nil
	}

	logger.Info().Str("addr", cfg.Redis.Address).Msg("redis connected")
	return redisClient
}

// initStorage opens the configured KV backend, optionally behind a memory failover.
func initStorage(ctx context.Context, cfg *config.Config, redisClient *redis.Client, logger *zerolog.Logger) (domain.KVStore, func(), error) {
	var (
		primary domain.KVStore
		closeFn = func() {}
	)

	switch cfg.Storage.Backend {
	case config.BackendMemory:
		primary = repository.NewMemoryKV()
	case config.BackendSQLite:
		kv, err := database.NewSQLiteKV(cfg.Database.Path, logging.Component(logger, "sqlite"))
		if err != nil {
			logger.Error().Err(err).Str("db_path", cfg.Database.Path).Msg("init database")
			return nil, nil, err
		}
		primary = kv
		closeFn = func() { _ = kv.Close() }
	case config.BackendPostgres:
		kv, err := database.NewPostgresKV(ctx, cfg.Database.Postgres, logging.Component(logger, "postgres"))
		if err != nil {
			logger.Error().Err(err).Msg("init postgres")
			return nil, nil, err
		}
		primary = kv
		closeFn = kv.Close
	case config.BackendRedis:
		if redisClient == nil {
			return nil, nil, errors.New("redis backend selected but redis is unavailable")
		}
		primary = repository.NewRedisKV(redisClient, cfg.Redis.KeyPrefix)
	default:
		return nil, nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}

	logger.Info().Str("backend", cfg.Storage.Backend).Bool("failover", cfg.Storage.Failover).Msg("storage ready")
	if cfg.Storage.Failover && cfg.Storage.Backend != config.BackendMemory {
		return repository.NewFailoverKV(primary, repository.NewMemoryKV(), logging.Component(logger, "failover")), closeFn, nil
	}
	return primary, closeFn, nil
}

func unwrapSQLite(kv domain.KVStore) (*database.SQLiteKV, bool) {
	sqliteKV, ok := kv.(*database.SQLiteKV)
	return sqliteKV, ok
}

// seedCatalog loads items.yaml into an empty catalog.
func seedCatalog(ctx context.Context, cfg *config.Config, st *store.Store, logger *zerolog.Logger) error {
	itemsPath := os.Getenv("ITEMS_PATH")
	if itemsPath == "" {
		itemsPath = cfg.Catalog.SeedPath
	}
	if itemsPath == "" {
		return nil
	}

	existing, err := st.ListItems(ctx)
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		return nil
	}

	items, err := loadItems(itemsPath)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	for _, item := range items {
		if strings.TrimSpace(item.ID) == "" {
			item.ID = st.NewItemID()
		}
		if item.AdminStatus == "" {
			item.AdminStatus = models.AdminStatusAvailable
		}
		if item.CreatedAt.IsZero() {
			item.CreatedAt = now
		}
		if err := st.UpsertItem(ctx, item); err != nil {
			return fmt.Errorf("seed item %s: %w", item.Code, err)
		}
	}
	logger.Info().Int("count", len(items)).Str("items_path", itemsPath).Msg("catalog seeded")
	return nil
}

func loadItems(itemsPath string) ([]models.Item, error) {
	itemsData, err := os.ReadFile(itemsPath)
	if err != nil {
		return nil, fmt.Errorf("read items: %w", err)
	}

	var itemsConfig struct {
		Items []models.Item `yaml:"items"`
	}
	if err := yaml.Unmarshal(itemsData, &itemsConfig); err != nil {
		return nil, fmt.Errorf("parse items: %w", err)
	}
	return itemsConfig.Items, nil
}

func initGoogleSheets(ctx context.Context, cfg *config.Config, st *store.Store, logger *zerolog.Logger) *google.SheetsService {
	if cfg.Google.CredentialsFile == "" || cfg.Google.BookingsSpreadsheetID == "" {
		return nil
	}

	sheetsService, err := google.NewSheetsService(ctx, cfg.Google.CredentialsFile, cfg.Google.BookingsSpreadsheetID)
	if err != nil {
		logger.Warn().Err(err).Msg("google sheets init failed, continuing without sheets")
		return nil
	}
	if err := sheetsService.TestConnection(ctx); err != nil {
		logger.Warn().Err(err).Msg("google sheets unreachable, continuing without sheets")
		return nil
	}

	// полная выгрузка при старте, дальше лист обновляется по событиям
	all, err := st.ListBookings(ctx)
	if err == nil {
		err = sheetsService.ReplaceBookings(ctx, all)
	}
	if err != nil {
		logger.Warn().Err(err).Msg("initial sheets sync failed")
	} else if err := sheetsService.WarmUpCache(ctx); err != nil {
		logger.Warn().Err(err).Msg("sheets cache warm-up failed")
	}

	logger.Info().Msg("google sheets connected")
	return sheetsService
}

func initTelegram(ctx context.Context, cfg *config.Config, bus *events.EventBus, bookings notify.BookingLister, logger *zerolog.Logger) {
	if cfg.Telegram.BotToken == "" || len(cfg.Telegram.AdminChatIDs) == 0 {
		return
	}

	bot, err := notify.NewBotSender(cfg.Telegram.BotToken, cfg.Telegram.Debug)
	if err != nil {
		logger.Warn().Err(err).Msg("telegram init failed, notifications disabled")
		return
	}

	notifier := notify.NewTelegramNotifier(bot, cfg.Telegram.AdminChatIDs, logging.Component(logger, "telegram"))
	// отправка не должна задерживать HTTP-запрос
	async := func(e *events.Event) error {
		go func() { _ = notifier.HandleEvent(e) }()
		return nil
	}
	bus.Subscribe(events.EventBookingCreated, async)
	bus.Subscribe(events.EventBookingStatusChanged, async)

	hour, err := notify.ParseReminderTime(cfg.Telegram.ReminderTime)
	if err != nil {
		logger.Warn().Err(err).Msg("pickup reminders disabled")
	} else {
		go notifier.StartReminders(ctx, bookings, hour)
	}
	logger.Info().Int("chats", len(cfg.Telegram.AdminChatIDs)).Msg("telegram notifications enabled")
}

func startMetrics(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) {
	if !cfg.Monitoring.PrometheusEnabled {
		return
	}

	metrics.Register()
	port := cfg.Monitoring.PrometheusPort
	if port == 0 {
		port = 9090
	}
	go startMetricsServer(ctx, port, logger)
}

func startServers(
	ctx context.Context,
	grpcServer *api.GRPCServer,
	httpServer *api.HTTPServer,
	cfg *config.Config,
	logger *zerolog.Logger,
) error {
	if grpcServer != nil {
		go func() {
			if err := grpcServer.Serve(); err != nil {
				logger.Error().Err(err).Msg("grpc server stopped")
			}
		}()
	}

	go func() {
		if err := httpServer.Start(); err != nil {
			logger.Error().Err(err).Msg("http server stopped")
		}
	}()

	logger.Info().Int("http_port", cfg.API.HTTP.Port).Bool("grpc", grpcServer != nil).Msg("API server started")

	<-ctx.Done()
	logger.Info().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if grpcServer != nil {
		grpcServer.Shutdown(shutdownCtx)
	}
	_ = httpServer.Shutdown(shutdownCtx)

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
