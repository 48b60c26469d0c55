package inventory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/almoxarifado/almoxarifado/internal/notifications"
	"github.com/almoxarifado/almoxarifado/internal/shared"
	"github.com/almoxarifado/almoxarifado/internal/status"
)

type stockKey struct {
	item, location int64
}

// memoryRepo stages writes per transaction and applies them on commit, so
// two unsynchronised transactions can lose updates exactly like a database
// without row locks. The item locker is what keeps them apart.
type memoryRepo struct {
	mu            sync.Mutex
	items         map[int64]ItemState
	locations     map[int64]LocationState
	stock         map[stockKey]int64
	movements     []Movement
	notifications []notifications.Notification
	nextID        int64

	failOn   string
	onInsert func()
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		items:     make(map[int64]ItemState),
		locations: make(map[int64]LocationState),
		stock:     make(map[stockKey]int64),
	}
}

func (r *memoryRepo) addItem(id int64, name string, minimum int64) {
	r.items[id] = ItemState{ID: id, Name: name, MinimumStock: minimum, Status: status.Unavailable, Active: true, Owner: "ana"}
}

func (r *memoryRepo) addLocation(id int64, active bool) {
	r.locations[id] = LocationState{ID: id, Active: active}
}

func (r *memoryRepo) id() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	return r.nextID
}

type memoryTx struct {
	repo      *memoryRepo
	stock     map[stockKey]int64
	statuses  map[int64]status.Status
	movements []Movement
	notes     []notifications.Notification
}

func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	tx := &memoryTx{repo: r, stock: make(map[stockKey]int64), statuses: make(map[int64]status.Status)}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for k, v := range tx.stock {
		r.stock[k] = v
	}
	for id, st := range tx.statuses {
		it := r.items[id]
		it.Status = st
		r.items[id] = it
	}
	r.movements = append(r.movements, tx.movements...)
	r.notifications = append(r.notifications, tx.notes...)
	return nil
}

func (r *memoryRepo) GetItem(_ context.Context, itemID int64) (ItemState, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	it, ok := r.items[itemID]
	if !ok {
		return ItemState{}, fmt.Errorf("item %d: %w", itemID, shared.ErrNotFound)
	}
	return it, nil
}

func (r *memoryRepo) GetStock(_ context.Context, itemID, locationID int64) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stock[stockKey{itemID, locationID}], nil
}

func (r *memoryRepo) GetAggregate(_ context.Context, itemID int64) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.aggregate(itemID), nil
}

func (r *memoryRepo) aggregate(itemID int64) int64 {
	var total int64
	for k, v := range r.stock {
		if k.item == itemID {
			total += v
		}
	}
	return total
}

func (r *memoryRepo) ListItemStock(_ context.Context, itemID int64) ([]StockEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []StockEntry
	for k, v := range r.stock {
		if k.item == itemID {
			out = append(out, StockEntry{ItemID: k.item, LocationID: k.location, Quantity: v})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LocationID < out[j].LocationID })
	return out, nil
}

func (r *memoryRepo) ListMovements(_ context.Context, filter MovementFilter) ([]Movement, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Movement
	for i := len(r.movements) - 1; i >= 0; i-- {
		m := r.movements[i]
		if filter.ItemID != nil && m.ItemID != *filter.ItemID {
			continue
		}
		if filter.Type != "" && m.Type != filter.Type {
			continue
		}
		out = append(out, m)
	}
	return out, len(out), nil
}

func (r *memoryRepo) replay() map[stockKey]int64 {
	out := make(map[stockKey]int64)
	for _, m := range r.movements {
		out[stockKey{m.ItemID, m.LocationID}] += m.Type.Delta(m.Quantity)
	}
	return out
}

func (r *memoryRepo) FindDrift(context.Context) ([]Drift, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	replayed := r.replay()
	keys := make(map[stockKey]struct{})
	for k := range replayed {
		keys[k] = struct{}{}
	}
	for k := range r.stock {
		keys[k] = struct{}{}
	}
	var out []Drift
	for k := range keys {
		if r.stock[k] != replayed[k] {
			out = append(out, Drift{ItemID: k.item, LocationID: k.location, Recorded: r.stock[k], Replayed: replayed[k]})
		}
	}
	return out, nil
}

func (r *memoryRepo) ItemAggregates(context.Context) ([]ItemAggregate, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []ItemAggregate
	for id, it := range r.items {
		out = append(out, ItemAggregate{ItemID: id, MinimumStock: it.MinimumStock, Stored: it.Status, Aggregate: r.aggregate(id)})
	}
	return out, nil
}

func (t *memoryTx) fail(op string) error {
	if t.repo.failOn == op {
		return errors.New("injected failure in " + op)
	}
	return nil
}

func (t *memoryTx) GetItemForUpdate(ctx context.Context, itemID int64) (ItemState, error) {
	it, err := t.repo.GetItem(ctx, itemID)
	if err != nil {
		return ItemState{}, err
	}
	if st, ok := t.statuses[itemID]; ok {
		it.Status = st
	}
	return it, nil
}

func (t *memoryTx) GetLocation(_ context.Context, locationID int64) (LocationState, error) {
	t.repo.mu.Lock()
	defer t.repo.mu.Unlock()
	loc, ok := t.repo.locations[locationID]
	if !ok {
		return LocationState{}, fmt.Errorf("location %d: %w", locationID, shared.ErrNotFound)
	}
	return loc, nil
}

func (t *memoryTx) GetStockForUpdate(_ context.Context, itemID, locationID int64) (int64, error) {
	k := stockKey{itemID, locationID}
	if v, ok := t.stock[k]; ok {
		return v, nil
	}
	t.repo.mu.Lock()
	defer t.repo.mu.Unlock()
	return t.repo.stock[k], nil
}

func (t *memoryTx) PutStock(_ context.Context, entry StockEntry) error {
	if err := t.fail("PutStock"); err != nil {
		return err
	}
	t.stock[stockKey{entry.ItemID, entry.LocationID}] = entry.Quantity
	return nil
}

func (t *memoryTx) Aggregate(_ context.Context, itemID int64) (int64, error) {
	t.repo.mu.Lock()
	defer t.repo.mu.Unlock()
	var total int64
	seen := make(map[stockKey]bool)
	for k, v := range t.stock {
		if k.item == itemID {
			total += v
			seen[k] = true
		}
	}
	for k, v := range t.repo.stock {
		if k.item == itemID && !seen[k] {
			total += v
		}
	}
	return total, nil
}

func (t *memoryTx) InsertMovement(_ context.Context, mv Movement) (Movement, error) {
	if err := t.fail("InsertMovement"); err != nil {
		return Movement{}, err
	}
	if t.repo.onInsert != nil {
		t.repo.onInsert()
	}
	mv.ID = t.repo.id()
	mv.CreatedAt = time.Now().UTC()
	t.movements = append(t.movements, mv)
	return mv, nil
}

func (t *memoryTx) SetItemStatus(_ context.Context, itemID int64, st status.Status) error {
	t.statuses[itemID] = st
	return nil
}

func (t *memoryTx) InsertNotification(_ context.Context, n notifications.Notification) (notifications.Notification, error) {
	if err := t.fail("InsertNotification"); err != nil {
		return notifications.Notification{}, err
	}
	n.ID = t.repo.id()
	n.CreatedAt = time.Now().UTC()
	t.notes = append(t.notes, n)
	return n, nil
}

func (t *memoryTx) ReplayStock(_ context.Context, itemID int64) (map[int64]int64, error) {
	t.repo.mu.Lock()
	defer t.repo.mu.Unlock()
	out := make(map[int64]int64)
	for k, v := range t.repo.replay() {
		if k.item == itemID {
			out[k.location] = v
		}
	}
	return out, nil
}

func (t *memoryTx) RecordedStock(_ context.Context, itemID int64) (map[int64]int64, error) {
	t.repo.mu.Lock()
	defer t.repo.mu.Unlock()
	out := make(map[int64]int64)
	for k, v := range t.repo.stock {
		if k.item == itemID {
			out[k.location] = v
		}
	}
	return out, nil
}

// snapshot returns counts used by atomicity assertions.
func (r *memoryRepo) snapshot(itemID, locationID int64) (stock, aggregate int64, movements, notes int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stock[stockKey{itemID, locationID}], r.aggregate(itemID), len(r.movements), len(r.notifications)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []StockEvent
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, evt StockEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, evt)
	return p.err
}

func (p *recordingPublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.events)
}

type memoryIdempotency struct {
	mu   sync.Mutex
	keys map[string]bool
}

func (m *memoryIdempotency) CheckAndInsert(_ context.Context, key, module string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.keys == nil {
		m.keys = make(map[string]bool)
	}
	if m.keys[module+":"+key] {
		return shared.ErrIdempotencyConflict
	}
	m.keys[module+":"+key] = true
	return nil
}

func (m *memoryIdempotency) Delete(_ context.Context, key, module string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.keys, module+":"+key)
	return nil
}
