package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/almoxarifado/almoxarifado/internal/app"
	"github.com/almoxarifado/almoxarifado/internal/inventory"
	jobmetrics "github.com/almoxarifado/almoxarifado/internal/jobs"
	"github.com/almoxarifado/almoxarifado/internal/platform/cache"
	"github.com/almoxarifado/almoxarifado/internal/platform/db"
	"github.com/almoxarifado/almoxarifado/internal/platform/lock"
	"github.com/almoxarifado/almoxarifado/internal/shared"
	"github.com/almoxarifado/almoxarifado/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
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
	defer func() { _ = redisClient.Close() }()

	// Repairs must exclude API writers, so the worker always shares the Redis lock.
	locker := lock.NewRedisLocker(redisClient, cfg.LockTTL, 0)
	if cfg.LockBackend != app.LockBackendRedis {
		logger.Warn("LOCK_BACKEND is local; ledger repair cannot exclude API writers, running report-only")
		cfg.ReconcileRepair = false
	}

	metrics := jobmetrics.NewMetrics(nil)
	inventoryService := inventory.NewService(inventory.NewRepository(pool, cfg.LockTimeout), locker, inventory.ServiceConfig{
		LockTimeout: cfg.LockTimeout,
	}, logger)

	var mailer jobs.Mailer
	if m, err := jobs.NewSMTPMailer(jobs.SMTPConfig{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		User:     cfg.SMTPUser,
		Password: cfg.SMTPPassword,
		From:     cfg.SMTPFrom,
	}); err != nil {
		logger.Warn("smtp mailer disabled", slog.Any("error", err))
	} else {
		mailer = m
	}

	emailJob := jobs.NewNotificationEmailJob(mailer, cfg.NotifyEmailTo, logger, metrics)
	reconcileJob := jobs.NewLedgerReconcileJob(inventoryService, logger, metrics)
	cleanupJob := jobs.NewIdempotencyCleanupJob(shared.NewIdempotencyStore(pool), logger, metrics)

	reconcileTask, err := jobs.NewLedgerReconcileTask(cfg.ReconcileRepair)
	if err != nil {
		logger.Error("build reconcile task", slog.Any("error", err))
		os.Exit(1)
	}
	cleanupTask, err := jobs.NewIdempotencyCleanupTask(jobs.DefaultIdempotencyRetention)
	if err != nil {
		logger.Error("build cleanup task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskNotificationEmail, Handler: emailJob.Handle},
			{Type: jobs.TaskLedgerReconcile, Handler: reconcileJob.Handle},
			{Type: jobs.TaskIdempotencyCleanup, Handler: cleanupJob.Handle},
		},
		Cron: []jobs.CronRegistration{
			{Spec: cfg.ReconcileCron, Task: reconcileTask},
			{Spec: cfg.CleanupCron, Task: cleanupTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
