// Package inventory implements the stock ledger and the movement processor.
package inventory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/almoxarifado/almoxarifado/internal/notifications"
	"github.com/almoxarifado/almoxarifado/internal/platform/lock"
	"github.com/almoxarifado/almoxarifado/internal/shared"
	"github.com/almoxarifado/almoxarifado/internal/status"
)

// RepositoryPort abstracts repository usage for service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetItem(ctx context.Context, itemID int64) (ItemState, error)
	GetStock(ctx context.Context, itemID, locationID int64) (int64, error)
	GetAggregate(ctx context.Context, itemID int64) (int64, error)
	ListItemStock(ctx context.Context, itemID int64) ([]StockEntry, error)
	ListMovements(ctx context.Context, filter MovementFilter) ([]Movement, int, error)
	FindDrift(ctx context.Context) ([]Drift, error)
	ItemAggregates(ctx context.Context) ([]ItemAggregate, error)
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// IdempotencyPort claims request keys so a retried request is applied once.
type IdempotencyPort interface {
	CheckAndInsert(ctx context.Context, key, module string) error
	Delete(ctx context.Context, key, module string) error
}

const idempotencyModule = "inventory.movement"

// ServiceConfig groups optional collaborators and settings.
type ServiceConfig struct {
	Audit          AuditPort
	Idempotency    IdempotencyPort
	Publisher      EventPublisher
	Metrics        *Metrics
	LockTimeout    time.Duration
	PublishTimeout time.Duration
}

// Service coordinates stock reads and movements.
type Service struct {
	repo           RepositoryPort
	locker         lock.Locker
	engine         notifications.Engine
	audit          AuditPort
	idempotency    IdempotencyPort
	publisher      EventPublisher
	metrics        *Metrics
	lockTimeout    time.Duration
	publishTimeout time.Duration
	logger         *slog.Logger
	inflight       sync.WaitGroup
}

// NewService builds Service.
func NewService(repo RepositoryPort, locker lock.Locker, cfg ServiceConfig, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.LockTimeout <= 0 {
		cfg.LockTimeout = 5 * time.Second
	}
	if cfg.PublishTimeout <= 0 {
		cfg.PublishTimeout = 10 * time.Second
	}
	return &Service{
		repo:           repo,
		locker:         locker,
		engine:         notifications.NewEngine(),
		audit:          cfg.Audit,
		idempotency:    cfg.Idempotency,
		publisher:      cfg.Publisher,
		metrics:        cfg.Metrics,
		lockTimeout:    cfg.LockTimeout,
		publishTimeout: cfg.PublishTimeout,
		logger:         logger,
	}
}

// GetStock returns the quantity of an item at a location, 0 when none is held.
func (s *Service) GetStock(ctx context.Context, itemID, locationID int64) (int64, error) {
	if itemID <= 0 || locationID <= 0 {
		return 0, fmt.Errorf("item and location ids must be positive: %w", shared.ErrValidation)
	}
	return s.repo.GetStock(ctx, itemID, locationID)
}

// GetAggregate returns the item's total across all locations, 0 when none is held.
func (s *Service) GetAggregate(ctx context.Context, itemID int64) (int64, error) {
	if itemID <= 0 {
		return 0, fmt.Errorf("item id must be positive: %w", shared.ErrValidation)
	}
	return s.repo.GetAggregate(ctx, itemID)
}

// ListItemStock returns the per-location breakdown of an item. The aggregate
// and status are computed from the same rows.
func (s *Service) ListItemStock(ctx context.Context, itemID int64) (ItemStock, error) {
	if itemID <= 0 {
		return ItemStock{}, fmt.Errorf("item id must be positive: %w", shared.ErrValidation)
	}
	item, err := s.repo.GetItem(ctx, itemID)
	if err != nil {
		return ItemStock{}, err
	}
	entries, err := s.repo.ListItemStock(ctx, itemID)
	if err != nil {
		return ItemStock{}, err
	}
	var total int64
	for _, e := range entries {
		total += e.Quantity
	}
	if entries == nil {
		entries = []StockEntry{}
	}
	return ItemStock{
		ItemID:       item.ID,
		Name:         item.Name,
		MinimumStock: item.MinimumStock,
		Aggregate:    total,
		Status:       status.Derive(total, item.MinimumStock),
		Locations:    entries,
	}, nil
}

// ListMovements reads the append-only movement log, newest first.
func (s *Service) ListMovements(ctx context.Context, filter MovementFilter) ([]Movement, int, error) {
	if filter.Type != "" && !filter.Type.Valid() {
		return nil, 0, fmt.Errorf("movement type %q: %w", filter.Type, shared.ErrValidation)
	}
	if !filter.From.IsZero() && !filter.To.IsZero() && filter.To.Before(filter.From) {
		return nil, 0, fmt.Errorf("to before from: %w", shared.ErrValidation)
	}
	filter.Page, filter.Limit = shared.NormalizePage(filter.Page, filter.Limit)
	return s.repo.ListMovements(ctx, filter)
}

// ProcessMovement applies one entry or exit. The movement row, the stock row,
// the item status and at most one notification are written in a single
// transaction under the item lock; nothing is written on failure or when ctx
// ends before commit. Subscribers are notified after the lock is released.
func (s *Service) ProcessMovement(ctx context.Context, req MovementRequest) (MovementResult, error) {
	req.Actor = strings.TrimSpace(req.Actor)
	req.Note = strings.TrimSpace(req.Note)
	if err := req.Validate(); err != nil {
		s.metrics.observeMovement(req.Type, err)
		return MovementResult{}, err
	}

	claimed := false
	if req.IdempotencyKey != "" && s.idempotency != nil {
		if err := s.idempotency.CheckAndInsert(ctx, req.IdempotencyKey, idempotencyModule); err != nil {
			s.metrics.observeMovement(req.Type, err)
			return MovementResult{}, err
		}
		claimed = true
	}

	result, event, err := s.applyLocked(ctx, req)
	s.metrics.observeMovement(req.Type, err)
	if err != nil {
		if claimed {
			if derr := s.idempotency.Delete(context.WithoutCancel(ctx), req.IdempotencyKey, idempotencyModule); derr != nil {
				s.logger.Warn("release idempotency key failed", slog.String("key", req.IdempotencyKey), slog.Any("error", derr))
			}
		}
		return MovementResult{}, err
	}

	if result.Notification != nil {
		s.metrics.observeNotification(result.Notification.Status)
	}
	s.recordAudit(ctx, req, result)
	s.publish(event)
	return result, nil
}

func (s *Service) applyLocked(ctx context.Context, req MovementRequest) (MovementResult, StockEvent, error) {
	release, err := s.acquire(ctx, req.ItemID)
	if err != nil {
		return MovementResult{}, StockEvent{}, err
	}
	defer release()

	var (
		result MovementResult
		event  StockEvent
	)
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		item, err := tx.GetItemForUpdate(ctx, req.ItemID)
		if err != nil {
			return err
		}
		if !item.Active {
			return fmt.Errorf("item %d is inactive: %w", item.ID, shared.ErrNotFound)
		}
		loc, err := tx.GetLocation(ctx, req.LocationID)
		if err != nil {
			return err
		}
		if !loc.Active {
			return fmt.Errorf("location %d: %w", loc.ID, shared.ErrInactiveLocation)
		}

		before, err := tx.Aggregate(ctx, item.ID)
		if err != nil {
			return err
		}
		previous := status.Derive(before, item.MinimumStock)

		qtyBefore, qtyAfter, err := applyDelta(ctx, tx, item.ID, loc.ID, req.Type.Delta(req.Quantity))
		if err != nil {
			return err
		}
		mv, err := tx.InsertMovement(ctx, Movement{
			Type:           req.Type,
			ItemID:         item.ID,
			LocationID:     loc.ID,
			Quantity:       req.Quantity,
			QuantityBefore: qtyBefore,
			QuantityAfter:  qtyAfter,
			Actor:          req.Actor,
			Note:           req.Note,
		})
		if err != nil {
			return err
		}

		// Re-read so a write to another location of this item is never missed.
		after, err := tx.Aggregate(ctx, item.ID)
		if err != nil {
			return err
		}
		current := status.Derive(after, item.MinimumStock)
		if current != item.Status {
			if err := tx.SetItemStatus(ctx, item.ID, current); err != nil {
				return err
			}
		}

		result = MovementResult{
			Movement:         mv,
			LocationQuantity: qtyAfter,
			Aggregate:        after,
			PreviousStatus:   previous,
			Status:           current,
		}
		n, emit := s.engine.Evaluate(notifications.Transition{
			ItemID:   item.ID,
			ItemName: item.Name,
			Owner:    item.Owner,
			Previous: previous,
			Current:  current,
			Quantity: after,
		})
		if emit {
			stored, err := tx.InsertNotification(ctx, n)
			if err != nil {
				return err
			}
			result.Notification = &stored
		}
		event = StockEvent{
			Type:             EventMovementApplied,
			Movement:         mv,
			ItemName:         item.Name,
			Owner:            item.Owner,
			LocationQuantity: qtyAfter,
			Aggregate:        after,
			PreviousStatus:   previous,
			Status:           current,
			Notification:     result.Notification,
		}
		return nil
	})
	if err != nil {
		return MovementResult{}, StockEvent{}, err
	}
	event.OccurredAt = time.Now().UTC()
	return result, event, nil
}

// applyDelta is the only writer of stock rows. It refuses to go below zero.
func applyDelta(ctx context.Context, tx TxRepository, itemID, locationID, delta int64) (int64, int64, error) {
	current, err := tx.GetStockForUpdate(ctx, itemID, locationID)
	if err != nil {
		return 0, 0, err
	}
	next := current + delta
	if next < 0 {
		return 0, 0, fmt.Errorf("location %d holds %d, requested %d: %w", locationID, current, -delta, shared.ErrInsufficientStock)
	}
	if err := tx.PutStock(ctx, StockEntry{ItemID: itemID, LocationID: locationID, Quantity: next}); err != nil {
		return 0, 0, err
	}
	return current, next, nil
}

func (s *Service) acquire(ctx context.Context, itemID int64) (func(), error) {
	start := time.Now()
	lockCtx, cancel := context.WithTimeout(ctx, s.lockTimeout)
	defer cancel()
	release, err := s.locker.Acquire(lockCtx, shared.ItemLockKey(itemID))
	s.metrics.observeLockWait(time.Since(start))
	return release, err
}

// Reconcile compares the stock rows and stored statuses with what the
// movement log implies. With repair set, drifted items are rebuilt from the
// log under their lock.
func (s *Service) Reconcile(ctx context.Context, repair bool) (ReconcileReport, error) {
	report := ReconcileReport{CheckedAt: time.Now().UTC()}
	drifts, err := s.repo.FindDrift(ctx)
	if err != nil {
		return report, fmt.Errorf("find stock drift: %w", err)
	}
	aggregates, err := s.repo.ItemAggregates(ctx)
	if err != nil {
		return report, fmt.Errorf("load item aggregates: %w", err)
	}
	report.StockDrift = drifts
	for _, a := range aggregates {
		if a.Stored != status.Derive(a.Aggregate, a.MinimumStock) {
			report.StatusDrift = append(report.StatusDrift, a)
		}
	}
	if !repair {
		return report, nil
	}

	items := make(map[int64]struct{})
	for _, d := range report.StockDrift {
		items[d.ItemID] = struct{}{}
	}
	for _, a := range report.StatusDrift {
		items[a.ItemID] = struct{}{}
	}
	ids := make([]int64, 0, len(items))
	for id := range items {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		if err := s.repairItem(ctx, id); err != nil {
			report.Failed++
			s.logger.Error("ledger repair failed", slog.Int64("item_id", id), slog.Any("error", err))
			continue
		}
		report.Repaired++
	}
	return report, nil
}

func (s *Service) repairItem(ctx context.Context, itemID int64) error {
	release, err := s.acquire(ctx, itemID)
	if err != nil {
		return err
	}
	defer release()
	return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		item, err := tx.GetItemForUpdate(ctx, itemID)
		if err != nil {
			return err
		}
		replayed, err := tx.ReplayStock(ctx, itemID)
		if err != nil {
			return err
		}
		recorded, err := tx.RecordedStock(ctx, itemID)
		if err != nil {
			return err
		}
		for loc := range recorded {
			if _, ok := replayed[loc]; !ok {
				replayed[loc] = 0
			}
		}
		var total int64
		for loc, qty := range replayed {
			if qty < 0 {
				return fmt.Errorf("movement log for item %d at location %d replays to %d", itemID, loc, qty)
			}
			total += qty
			if recorded[loc] == qty {
				continue
			}
			if err := tx.PutStock(ctx, StockEntry{ItemID: itemID, LocationID: loc, Quantity: qty}); err != nil {
				return err
			}
		}
		if derived := status.Derive(total, item.MinimumStock); derived != item.Status {
			return tx.SetItemStatus(ctx, itemID, derived)
		}
		return nil
	})
}

// Wait blocks until in-flight event publishing finishes or ctx ends.
func (s *Service) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.inflight.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Service) publish(evt StockEvent) {
	if s.publisher == nil {
		return
	}
	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()
		ctx, cancel := context.WithTimeout(context.Background(), s.publishTimeout)
		defer cancel()
		if err := s.publisher.Publish(ctx, evt); err != nil {
			s.logger.Warn("publish stock event failed",
				slog.Int64("movement_id", evt.Movement.ID),
				slog.Int64("item_id", evt.Movement.ItemID),
				slog.Any("error", err))
		}
	}()
}

func (s *Service) recordAudit(ctx context.Context, req MovementRequest, result MovementResult) {
	if s.audit == nil {
		return
	}
	err := s.audit.Record(context.WithoutCancel(ctx), shared.AuditLog{
		Actor:    req.Actor,
		Action:   "inventory:" + strings.ToLower(string(req.Type)),
		Entity:   "movement",
		EntityID: strconv.FormatInt(result.Movement.ID, 10),
		Meta: map[string]any{
			"item_id":     req.ItemID,
			"location_id": req.LocationID,
			"quantity":    req.Quantity,
			"status":      result.Status,
		},
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		s.logger.Warn("audit record failed", slog.Int64("movement_id", result.Movement.ID), slog.Any("error", err))
	}
}
