package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/almoxarifado/almoxarifado/cmd/almoxarifado/cli"
	"github.com/almoxarifado/almoxarifado/internal/app"
	"github.com/almoxarifado/almoxarifado/internal/audit"
	"github.com/almoxarifado/almoxarifado/internal/budgets"
	"github.com/almoxarifado/almoxarifado/internal/catalog"
	"github.com/almoxarifado/almoxarifado/internal/inventory"
	"github.com/almoxarifado/almoxarifado/internal/locations"
	"github.com/almoxarifado/almoxarifado/internal/notifications"
	"github.com/almoxarifado/almoxarifado/internal/observability"
	"github.com/almoxarifado/almoxarifado/internal/platform/cache"
	"github.com/almoxarifado/almoxarifado/internal/platform/db"
	"github.com/almoxarifado/almoxarifado/internal/platform/events"
	"github.com/almoxarifado/almoxarifado/internal/platform/lock"
	"github.com/almoxarifado/almoxarifado/internal/platform/storage"
	"github.com/almoxarifado/almoxarifado/internal/reports"
	"github.com/almoxarifado/almoxarifado/internal/shared"
	"github.com/almoxarifado/almoxarifado/internal/suppliers"
	"github.com/almoxarifado/almoxarifado/jobs"
)

type redisPinger struct{ client *redis.Client }

func (p redisPinger) Ping(ctx context.Context) error { return p.client.Ping(ctx).Err() }

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}
	logger := app.NewLogger(cfg)

	if len(os.Args) > 2 && os.Args[1] == "jobs" {
		jobsCLI := cli.NewJobsCLI(cfg.RedisAddr)
		defer func() { _ = jobsCLI.Close() }()
		if err := jobsCLI.Run(ctx, os.Args[2:], os.Stdout); err != nil {
			logger.Error("jobs command", slog.Any("error", err))
			os.Exit(1)
		}
		return
	}

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	var locker lock.Locker = lock.NewLocalLocker()
	if cfg.LockBackend == app.LockBackendRedis {
		locker = lock.NewRedisLocker(redisClient, cfg.LockTTL, 0)
	}

	metrics := observability.NewMetrics()
	auditLogger := shared.NewAuditLogger(pool)

	var images catalog.ImageStore
	if cfg.S3Bucket != "" {
		store, err := storage.NewS3ImageStore(ctx, storage.Options{
			Bucket:    cfg.S3Bucket,
			Region:    cfg.S3Region,
			Endpoint:  cfg.S3Endpoint,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
		})
		if err != nil {
			logger.Error("init image storage", slog.Any("error", err))
			os.Exit(1)
		}
		images = store
	} else {
		logger.Warn("S3_BUCKET not set, item image upload disabled")
	}

	reportCache := reports.NewCache(redisClient, cfg.ReportCacheTTL)
	jobClient := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() { _ = jobClient.Close() }()

	publishers := []events.Named{
		{Name: "reports-cache", Publisher: reports.NewInvalidator(reportCache)},
		{Name: "redis", Publisher: events.NewRedisPublisher(redisClient, events.Channel)},
		{Name: "notification-email", Publisher: jobs.NewNotificationEnqueuer(jobClient)},
	}
	if len(cfg.KafkaBrokers) > 0 {
		kafkaPublisher := events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
		defer func() {
			if err := kafkaPublisher.Close(); err != nil {
				logger.Warn("kafka close", slog.Any("error", err))
			}
		}()
		publishers = append(publishers, events.Named{Name: "kafka", Publisher: kafkaPublisher})
	}

	locationService := locations.NewService(locations.NewRepository(pool), auditLogger, logger)
	catalogService := catalog.NewService(catalog.NewRepository(pool), locker, catalog.ServiceConfig{
		Images:      images,
		Audit:       auditLogger,
		LockTimeout: cfg.LockTimeout,
	}, logger)
	inventoryService := inventory.NewService(inventory.NewRepository(pool, cfg.LockTimeout), locker, inventory.ServiceConfig{
		Audit:          auditLogger,
		Idempotency:    shared.NewIdempotencyStore(pool),
		Publisher:      events.NewFanout(logger, publishers...),
		Metrics:        inventory.NewMetrics(metrics.Registerer()),
		LockTimeout:    cfg.LockTimeout,
		PublishTimeout: cfg.PublishTimeout,
	}, logger)
	notificationService := notifications.NewService(notifications.NewRepository(pool))
	supplierService := suppliers.NewService(suppliers.NewRepository(pool))
	budgetService := budgets.NewService(budgets.NewRepository(pool), catalogService, supplierService, logger)
	reportService := reports.NewService(reports.NewRepository(pool), reportCache)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() { _ = inspector.Close() }()

	router := app.NewRouter(app.RouterParams{
		Logger:  logger,
		Config:  cfg,
		Metrics: metrics,
		Ready: map[string]app.Pinger{
			"postgres": pool,
			"redis":    redisPinger{client: redisClient},
		},
		LocationsHandler:     locations.NewHandler(logger, locationService),
		CatalogHandler:       catalog.NewHandler(logger, catalogService),
		InventoryHandler:     inventory.NewHandler(logger, inventoryService),
		NotificationsHandler: notifications.NewHandler(logger, notificationService),
		SuppliersHandler:     suppliers.NewHandler(logger, supplierService),
		BudgetsHandler:       budgets.NewHandler(logger, budgetService),
		ReportsHandler:       reports.NewHandler(logger, reportService),
		AuditHandler:         audit.NewHandler(logger, audit.NewService(audit.NewRepository(pool))),
		JobHandler:           jobs.NewHandler(inspector, logger),
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("http server listening", slog.String("addr", cfg.AppAddr), slog.String("lock_backend", cfg.LockBackend))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
	if err := inventoryService.Wait(shutdownCtx); err != nil {
		logger.Warn("pending stock events dropped", slog.Any("error", err))
	}
}
