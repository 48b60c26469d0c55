package inventory

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/almoxarifado/almoxarifado/internal/platform/lock"
	"github.com/almoxarifado/almoxarifado/internal/shared"
	"github.com/almoxarifado/almoxarifado/internal/status"
)

const (
	itemID = int64(1)
	locA   = int64(10)
	locB   = int64(20)
	locOff = int64(30)
)

func newFixture() *memoryRepo {
	repo := newMemoryRepo()
	repo.addItem(itemID, "Parafuso", 5)
	repo.addLocation(locA, true)
	repo.addLocation(locB, true)
	repo.addLocation(locOff, false)
	return repo
}

func newTestService(repo *memoryRepo, cfg ServiceConfig) *Service {
	if cfg.LockTimeout == 0 {
		cfg.LockTimeout = time.Second
	}
	return NewService(repo, lock.NewLocalLocker(), cfg, nil)
}

func entry(qty int64, loc int64) MovementRequest {
	return MovementRequest{Type: MovementEntry, ItemID: itemID, LocationID: loc, Quantity: qty, Actor: "ana"}
}

func exit(qty int64, loc int64) MovementRequest {
	return MovementRequest{Type: MovementExit, ItemID: itemID, LocationID: loc, Quantity: qty, Actor: "ana"}
}

func TestStatusTransitionsEmitOneNotificationEach(t *testing.T) {
	repo := newFixture()
	svc := newTestService(repo, ServiceConfig{})
	ctx := context.Background()

	res, err := svc.ProcessMovement(ctx, entry(10, locA))
	require.NoError(t, err)
	require.Equal(t, int64(10), res.Aggregate)
	require.Equal(t, int64(10), res.LocationQuantity)
	require.Equal(t, status.Unavailable, res.PreviousStatus)
	require.Equal(t, status.InStock, res.Status)
	require.NotNil(t, res.Notification)
	require.Equal(t, "Parafuso está em estoque (10 unidades)", res.Notification.Message)
	require.Equal(t, "ana", res.Notification.Owner)

	res, err = svc.ProcessMovement(ctx, exit(8, locA))
	require.NoError(t, err)
	require.Equal(t, int64(2), res.Aggregate)
	require.Equal(t, status.LowStock, res.Status)
	require.Equal(t, "Parafuso está com estoque baixo (2 unidades)", res.Notification.Message)
	require.Equal(t, int64(10), res.Movement.QuantityBefore)
	require.Equal(t, int64(2), res.Movement.QuantityAfter)

	res, err = svc.ProcessMovement(ctx, exit(2, locA))
	require.NoError(t, err)
	require.Equal(t, int64(0), res.Aggregate)
	require.Equal(t, status.Unavailable, res.Status)
	require.Equal(t, "Parafuso está indisponível (0 unidades)", res.Notification.Message)

	require.Len(t, repo.notifications, 3)
	require.Len(t, repo.movements, 3)
	require.Equal(t, status.Unavailable, repo.items[itemID].Status)
}

func TestRejectedExitLeavesEverythingUnchanged(t *testing.T) {
	repo := newFixture()
	svc := newTestService(repo, ServiceConfig{})
	ctx := context.Background()

	_, err := svc.ProcessMovement(ctx, entry(2, locA))
	require.NoError(t, err)
	stock, agg, moves, notes := repo.snapshot(itemID, locA)

	_, err = svc.ProcessMovement(ctx, exit(100, locA))
	require.ErrorIs(t, err, shared.ErrInsufficientStock)

	gotStock, gotAgg, gotMoves, gotNotes := repo.snapshot(itemID, locA)
	require.Equal(t, stock, gotStock)
	require.Equal(t, int64(2), gotStock)
	require.Equal(t, agg, gotAgg)
	require.Equal(t, moves, gotMoves)
	require.Equal(t, notes, gotNotes)
}

func TestExitIsValidatedPerLocation(t *testing.T) {
	repo := newFixture()
	svc := newTestService(repo, ServiceConfig{})
	ctx := context.Background()

	_, err := svc.ProcessMovement(ctx, entry(10, locA))
	require.NoError(t, err)
	_, err = svc.ProcessMovement(ctx, entry(1, locB))
	require.NoError(t, err)

	_, err = svc.ProcessMovement(ctx, exit(5, locB))
	require.ErrorIs(t, err, shared.ErrInsufficientStock)
}

func TestConsecutiveEntriesAccumulate(t *testing.T) {
	repo := newFixture()
	svc := newTestService(repo, ServiceConfig{})
	ctx := context.Background()

	_, err := svc.ProcessMovement(ctx, entry(3, locA))
	require.NoError(t, err)
	res, err := svc.ProcessMovement(ctx, entry(2, locA))
	require.NoError(t, err)

	require.Equal(t, int64(5), res.LocationQuantity)
	require.Equal(t, int64(5), res.Aggregate)
	require.Len(t, repo.movements, 2)

	qty, err := svc.GetStock(ctx, itemID, locA)
	require.NoError(t, err)
	require.Equal(t, int64(5), qty)
	total, err := svc.GetAggregate(ctx, itemID)
	require.NoError(t, err)
	require.Equal(t, int64(5), total)
}

func TestSameClassMovementEmitsNothing(t *testing.T) {
	repo := newFixture()
	svc := newTestService(repo, ServiceConfig{})
	ctx := context.Background()

	_, err := svc.ProcessMovement(ctx, entry(4, locA))
	require.NoError(t, err)
	res, err := svc.ProcessMovement(ctx, exit(2, locA))
	require.NoError(t, err)
	require.Equal(t, status.LowStock, res.PreviousStatus)
	require.Equal(t, status.LowStock, res.Status)
	require.Nil(t, res.Notification)
	require.Len(t, repo.notifications, 1)
}

func TestConcurrentExitsOnlyOneSucceeds(t *testing.T) {
	repo := newFixture()
	svc := newTestService(repo, ServiceConfig{})
	ctx := context.Background()

	_, err := svc.ProcessMovement(ctx, entry(10, locA))
	require.NoError(t, err)

	var (
		wg      sync.WaitGroup
		start   = make(chan struct{})
		results = make([]error, 2)
	)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			_, results[i] = svc.ProcessMovement(ctx, exit(6, locA))
		}(i)
	}
	close(start)
	wg.Wait()

	var ok, insufficient int
	for _, err := range results {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, shared.ErrInsufficientStock):
			insufficient++
		}
	}
	require.Equal(t, 1, ok)
	require.Equal(t, 1, insufficient)

	stock, _, moves, _ := repo.snapshot(itemID, locA)
	require.Equal(t, int64(4), stock)
	require.Equal(t, 2, moves)
}

func TestConcurrentMovementsKeepInvariants(t *testing.T) {
	repo := newFixture()
	svc := newTestService(repo, ServiceConfig{LockTimeout: 10 * time.Second})
	ctx := context.Background()

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			loc := locA
			if g%2 == 1 {
				loc = locB
			}
			for i := 0; i < 25; i++ {
				req := entry(int64(1+(g+i)%4), loc)
				if (g+i)%3 == 0 {
					req = exit(int64(1+i%5), loc)
				}
				_, err := svc.ProcessMovement(ctx, req)
				if err != nil && !errors.Is(err, shared.ErrInsufficientStock) {
					assert.NoError(t, err)
					return
				}
			}
		}(g)
	}
	wg.Wait()

	repo.mu.Lock()
	defer repo.mu.Unlock()

	var sum int64
	for k, v := range repo.stock {
		require.GreaterOrEqual(t, v, int64(0), "stock at %v", k)
		sum += v
	}
	require.Equal(t, repo.aggregate(itemID), sum)
	require.Equal(t, status.Derive(sum, 5), repo.items[itemID].Status)

	moves := append([]Movement(nil), repo.movements...)
	sort.Slice(moves, func(i, j int) bool { return moves[i].ID < moves[j].ID })
	var (
		running     int64
		prev        = status.Unavailable
		transitions int
	)
	for _, m := range moves {
		running += m.Type.Delta(m.Quantity)
		cur := status.Derive(running, 5)
		if cur != prev {
			transitions++
		}
		prev = cur
	}
	require.Equal(t, sum, running)
	require.Equal(t, transitions, len(repo.notifications))
}

func TestStatusUsesAggregateAcrossLocations(t *testing.T) {
	repo := newFixture()
	svc := newTestService(repo, ServiceConfig{})
	ctx := context.Background()

	_, err := svc.ProcessMovement(ctx, entry(4, locA))
	require.NoError(t, err)
	res, err := svc.ProcessMovement(ctx, entry(4, locB))
	require.NoError(t, err)
	require.Equal(t, int64(8), res.Aggregate)
	require.Equal(t, int64(4), res.LocationQuantity)
	require.Equal(t, status.InStock, res.Status)
	require.Equal(t, "Parafuso está em estoque (8 unidades)", res.Notification.Message)
}

func TestProcessMovementRejectsInvalidInput(t *testing.T) {
	repo := newFixture()
	repo.addItem(2, "Inativo", 0)
	it := repo.items[2]
	it.Active = false
	repo.items[2] = it
	svc := newTestService(repo, ServiceConfig{})
	ctx := context.Background()

	cases := []struct {
		name string
		req  MovementRequest
		want error
	}{
		{"zero quantity", entry(0, locA), shared.ErrValidation},
		{"above max", entry(MaxQuantity+1, locA), shared.ErrValidation},
		{"bad type", MovementRequest{Type: "MOVE", ItemID: itemID, LocationID: locA, Quantity: 1, Actor: "ana"}, shared.ErrValidation},
		{"missing actor", MovementRequest{Type: MovementEntry, ItemID: itemID, LocationID: locA, Quantity: 1}, shared.ErrMissingActor},
		{"unknown item", MovementRequest{Type: MovementEntry, ItemID: 99, LocationID: locA, Quantity: 1, Actor: "ana"}, shared.ErrNotFound},
		{"inactive item", MovementRequest{Type: MovementEntry, ItemID: 2, LocationID: locA, Quantity: 1, Actor: "ana"}, shared.ErrNotFound},
		{"unknown location", entry(1, 99), shared.ErrNotFound},
		{"inactive location", entry(1, locOff), shared.ErrInactiveLocation},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.ProcessMovement(ctx, tc.req)
			require.ErrorIs(t, err, tc.want)
		})
	}
	require.Empty(t, repo.movements)
	require.Empty(t, repo.stock)

	_, err := svc.ProcessMovement(ctx, entry(MaxQuantity, locA))
	require.NoError(t, err)
}

func TestBusyWhenItemLockIsHeld(t *testing.T) {
	repo := newFixture()
	locker := lock.NewLocalLocker()
	svc := NewService(repo, locker, ServiceConfig{LockTimeout: 20 * time.Millisecond}, nil)

	release, err := locker.Acquire(context.Background(), shared.ItemLockKey(itemID))
	require.NoError(t, err)
	defer release()

	_, err = svc.ProcessMovement(context.Background(), entry(1, locA))
	require.ErrorIs(t, err, shared.ErrBusy)
	require.Empty(t, repo.movements)
}

func TestCancellationBeforeCommitIsNoop(t *testing.T) {
	repo := newFixture()
	svc := newTestService(repo, ServiceConfig{})
	ctx, cancel := context.WithCancel(context.Background())
	repo.onInsert = cancel

	_, err := svc.ProcessMovement(ctx, entry(5, locA))
	require.ErrorIs(t, err, context.Canceled)
	require.NotErrorIs(t, err, shared.ErrBusy)

	stock, agg, moves, notes := repo.snapshot(itemID, locA)
	require.Zero(t, stock)
	require.Zero(t, agg)
	require.Zero(t, moves)
	require.Zero(t, notes)
	require.Equal(t, status.Unavailable, repo.items[itemID].Status)
}

func TestFailureInsideTransactionRollsBackAll(t *testing.T) {
	repo := newFixture()
	repo.failOn = "InsertNotification"
	svc := newTestService(repo, ServiceConfig{})

	_, err := svc.ProcessMovement(context.Background(), entry(10, locA))
	require.Error(t, err)

	stock, agg, moves, notes := repo.snapshot(itemID, locA)
	require.Zero(t, stock)
	require.Zero(t, agg)
	require.Zero(t, moves)
	require.Zero(t, notes)
	require.Equal(t, status.Unavailable, repo.items[itemID].Status)
}

func TestPublisherRunsAfterCommitAndCannotFailMovement(t *testing.T) {
	repo := newFixture()
	pub := &recordingPublisher{err: errors.New("broker down")}
	svc := newTestService(repo, ServiceConfig{Publisher: pub})
	ctx := context.Background()

	res, err := svc.ProcessMovement(ctx, entry(10, locA))
	require.NoError(t, err)
	require.NoError(t, svc.Wait(ctx))

	require.Equal(t, 1, pub.count())
	evt := pub.events[0]
	require.Equal(t, EventMovementApplied, evt.Type)
	require.Equal(t, res.Movement.ID, evt.Movement.ID)
	require.True(t, evt.StatusChanged())
	require.NotNil(t, evt.Notification)
	require.Equal(t, "Parafuso", evt.ItemName)

	_, err = svc.ProcessMovement(ctx, exit(100, locA))
	require.Error(t, err)
	require.NoError(t, svc.Wait(ctx))
	require.Equal(t, 1, pub.count())
}

func TestIdempotencyKeyAppliesOnce(t *testing.T) {
	repo := newFixture()
	idem := &memoryIdempotency{}
	svc := newTestService(repo, ServiceConfig{Idempotency: idem})
	ctx := context.Background()

	req := entry(3, locA)
	req.IdempotencyKey = "req-1"
	_, err := svc.ProcessMovement(ctx, req)
	require.NoError(t, err)
	replay, err := svc.ProcessMovement(ctx, req)
	require.ErrorIs(t, err, shared.ErrIdempotencyConflict)
	require.ErrorIs(t, err, shared.ErrDuplicate)
	require.Zero(t, replay)
	require.Len(t, repo.movements, 1)
	require.Equal(t, int64(3), repo.stock[stockKey{item: itemID, location: locA}])

	bad := exit(50, locA)
	bad.IdempotencyKey = "req-2"
	_, err = svc.ProcessMovement(ctx, bad)
	require.ErrorIs(t, err, shared.ErrInsufficientStock)
	bad.Quantity = 1
	_, err = svc.ProcessMovement(ctx, bad)
	require.NoError(t, err)
}

func TestListItemStock(t *testing.T) {
	repo := newFixture()
	svc := newTestService(repo, ServiceConfig{})
	ctx := context.Background()

	empty, err := svc.ListItemStock(ctx, itemID)
	require.NoError(t, err)
	require.Zero(t, empty.Aggregate)
	require.Empty(t, empty.Locations)
	require.Equal(t, status.Unavailable, empty.Status)

	_, err = svc.ProcessMovement(ctx, entry(3, locA))
	require.NoError(t, err)
	_, err = svc.ProcessMovement(ctx, entry(4, locB))
	require.NoError(t, err)

	stock, err := svc.ListItemStock(ctx, itemID)
	require.NoError(t, err)
	require.Equal(t, int64(7), stock.Aggregate)
	require.Len(t, stock.Locations, 2)
	require.Equal(t, status.InStock, stock.Status)

	_, err = svc.ListItemStock(ctx, 404)
	require.ErrorIs(t, err, shared.ErrNotFound)

	qty, err := svc.GetStock(ctx, itemID, locOff)
	require.NoError(t, err)
	require.Zero(t, qty)
}

func TestReconcileDetectsAndRepairsDrift(t *testing.T) {
	repo := newFixture()
	svc := newTestService(repo, ServiceConfig{})
	ctx := context.Background()

	_, err := svc.ProcessMovement(ctx, entry(10, locA))
	require.NoError(t, err)

	repo.mu.Lock()
	repo.stock[stockKey{itemID, locA}] = 3
	repo.mu.Unlock()

	report, err := svc.Reconcile(ctx, false)
	require.NoError(t, err)
	require.Len(t, report.StockDrift, 1)
	require.Equal(t, Drift{ItemID: itemID, LocationID: locA, Recorded: 3, Replayed: 10}, report.StockDrift[0])
	require.Len(t, report.StatusDrift, 1)
	require.Zero(t, report.Repaired)

	report, err = svc.Reconcile(ctx, true)
	require.NoError(t, err)
	require.Equal(t, 1, report.Repaired)
	require.Zero(t, report.Failed)

	qty, err := svc.GetStock(ctx, itemID, locA)
	require.NoError(t, err)
	require.Equal(t, int64(10), qty)
	require.Equal(t, status.InStock, repo.items[itemID].Status)

	report, err = svc.Reconcile(ctx, false)
	require.NoError(t, err)
	require.Empty(t, report.StockDrift)
	require.Empty(t, report.StatusDrift)
}

func TestMetricsCountOutcomes(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg)
	repo := newFixture()
	svc := newTestService(repo, ServiceConfig{Metrics: metrics})
	ctx := context.Background()

	_, err := svc.ProcessMovement(ctx, entry(1, locA))
	require.NoError(t, err)
	_, err = svc.ProcessMovement(ctx, exit(9, locA))
	require.Error(t, err)

	require.Equal(t, 1.0, testutil.ToFloat64(metrics.movements.WithLabelValues("ENTRY", "accepted")))
	require.Equal(t, 1.0, testutil.ToFloat64(metrics.movements.WithLabelValues("EXIT", "insufficient_stock")))
	require.Equal(t, 1.0, testutil.ToFloat64(metrics.notifications.WithLabelValues(string(status.LowStock))))
}
