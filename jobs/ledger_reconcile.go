package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/almoxarifado/almoxarifado/internal/inventory"
	jobmetrics "github.com/almoxarifado/almoxarifado/internal/jobs"
)

// Reconciler is the slice of the inventory service the job drives.
type Reconciler interface {
	Reconcile(ctx context.Context, repair bool) (inventory.ReconcileReport, error)
}

// LedgerReconcileJob compares stock rows with the movement log.
type LedgerReconcileJob struct {
	Reconciler Reconciler
	Logger     *slog.Logger
	Metrics    *jobmetrics.Metrics
}

// NewLedgerReconcileJob constructs the handler.
func NewLedgerReconcileJob(reconciler Reconciler, logger *slog.Logger, metrics *jobmetrics.Metrics) *LedgerReconcileJob {
	return &LedgerReconcileJob{Reconciler: reconciler, Logger: logger, Metrics: metrics}
}

// Handle processes TaskLedgerReconcile tasks.
func (j *LedgerReconcileJob) Handle(ctx context.Context, t *asynq.Task) (err error) {
	if j == nil || j.Reconciler == nil {
		return errors.New("ledger reconcile: handler not configured")
	}
	var payload LedgerReconcilePayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return fmt.Errorf("ledger reconcile payload: %v: %w", err, asynq.SkipRetry)
		}
	}
	tracker := j.Metrics.Track(TaskLedgerReconcile)
	defer func() { err = tracker.End(err) }()

	logger := j.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With(slog.Bool("repair", payload.Repair))
	start := time.Now()

	report, err := j.Reconciler.Reconcile(ctx, payload.Repair)
	if err != nil {
		logger.Error("ledger reconcile failed", slog.Any("error", err))
		return err
	}
	j.Metrics.AddDrift("stock", len(report.StockDrift))
	j.Metrics.AddDrift("status", len(report.StatusDrift))
	for _, d := range report.StockDrift {
		logger.Warn("stock drift",
			slog.Int64("item_id", d.ItemID),
			slog.Int64("location_id", d.LocationID),
			slog.Int64("recorded", d.Recorded),
			slog.Int64("replayed", d.Replayed))
	}
	logger.Info("ledger reconcile completed",
		slog.Int("stock_drift", len(report.StockDrift)),
		slog.Int("status_drift", len(report.StatusDrift)),
		slog.Int("repaired", report.Repaired),
		slog.Int("failed", report.Failed),
		slog.Duration("duration", time.Since(start)))
	if report.Failed > 0 {
		return fmt.Errorf("ledger reconcile: %d items could not be repaired", report.Failed)
	}
	return nil
}
