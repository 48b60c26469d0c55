package inventory

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/almoxarifado/almoxarifado/internal/notifications"
	"github.com/almoxarifado/almoxarifado/internal/platform/db"
	"github.com/almoxarifado/almoxarifado/internal/shared"
	"github.com/almoxarifado/almoxarifado/internal/status"
)

// TxRepository exposes the row-locked operations used by the movement processor.
type TxRepository interface {
	GetItemForUpdate(ctx context.Context, itemID int64) (ItemState, error)
	GetLocation(ctx context.Context, locationID int64) (LocationState, error)
	GetStockForUpdate(ctx context.Context, itemID, locationID int64) (int64, error)
	PutStock(ctx context.Context, entry StockEntry) error
	Aggregate(ctx context.Context, itemID int64) (int64, error)
	InsertMovement(ctx context.Context, mv Movement) (Movement, error)
	SetItemStatus(ctx context.Context, itemID int64, st status.Status) error
	InsertNotification(ctx context.Context, n notifications.Notification) (notifications.Notification, error)
	ReplayStock(ctx context.Context, itemID int64) (map[int64]int64, error)
	RecordedStock(ctx context.Context, itemID int64) (map[int64]int64, error)
}

// Repository persists the stock ledger in PostgreSQL.
type Repository struct {
	pool        *pgxpool.Pool
	lockTimeout time.Duration
}

// NewRepository constructs Repository. lockTimeout bounds row lock waits inside
// transactions; zero leaves the server default.
func NewRepository(pool *pgxpool.Pool, lockTimeout time.Duration) *Repository {
	return &Repository{pool: pool, lockTimeout: lockTimeout}
}

type txRepository struct {
	tx pgx.Tx
}

// WithTx executes the callback inside a read-committed transaction. Row lock
// timeouts surface as shared.ErrBusy.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil || r.pool == nil {
		return errors.New("inventory repository not initialised")
	}
	err := db.WithTx(ctx, r.pool, db.ReadCommitted, func(tx pgx.Tx) error {
		if r.lockTimeout > 0 {
			if _, err := tx.Exec(ctx, fmt.Sprintf("SET LOCAL lock_timeout = %d", r.lockTimeout.Milliseconds())); err != nil {
				return err
			}
		}
		return fn(ctx, &txRepository{tx: tx})
	})
	if db.IsLockTimeout(err) {
		return fmt.Errorf("row lock: %w", shared.ErrBusy)
	}
	return err
}

// GetItem reads an item without locking it.
func (r *Repository) GetItem(ctx context.Context, itemID int64) (ItemState, error) {
	return scanItemState(r.pool.QueryRow(ctx, selectItem, itemID), itemID)
}

// GetStock returns 0 when no row exists.
func (r *Repository) GetStock(ctx context.Context, itemID, locationID int64) (int64, error) {
	var qty int64
	err := r.pool.QueryRow(ctx, selectStock, itemID, locationID).Scan(&qty)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	return qty, err
}

// GetAggregate returns 0 when the item holds nothing.
func (r *Repository) GetAggregate(ctx context.Context, itemID int64) (int64, error) {
	var total int64
	err := r.pool.QueryRow(ctx, selectAggregate, itemID).Scan(&total)
	return total, err
}

func (r *Repository) ListItemStock(ctx context.Context, itemID int64) ([]StockEntry, error) {
	rows, err := r.pool.Query(ctx, selectItemStock, itemID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []StockEntry
	for rows.Next() {
		var e StockEntry
		if err := rows.Scan(&e.ItemID, &e.LocationID, &e.Quantity, &e.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// ListMovements builds the filter dynamically; COUNT(*) OVER() carries the total.
func (r *Repository) ListMovements(ctx context.Context, filter MovementFilter) ([]Movement, int, error) {
	var (
		where []string
		args  []any
	)
	add := func(clause string, arg any) {
		args = append(args, arg)
		where = append(where, strings.ReplaceAll(clause, "?", "$"+strconv.Itoa(len(args))))
	}
	if filter.ItemID != nil {
		add("item_id = ?", *filter.ItemID)
	}
	if filter.LocationID != nil {
		add("location_id = ?", *filter.LocationID)
	}
	if filter.Type != "" {
		add("type = ?", string(filter.Type))
	}
	if !filter.From.IsZero() {
		add("created_at >= ?", filter.From)
	}
	if !filter.To.IsZero() {
		add("created_at < ?", filter.To)
	}
	query := `SELECT ` + movementColumns + `, COUNT(*) OVER() FROM movements`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	page, limit := shared.NormalizePage(filter.Page, filter.Limit)
	args = append(args, limit, shared.Offset(page, limit))
	query += fmt.Sprintf(" ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var (
		out   []Movement
		total int
	)
	for rows.Next() {
		var (
			m   Movement
			typ string
		)
		if err := rows.Scan(&m.ID, &typ, &m.ItemID, &m.LocationID, &m.Quantity, &m.QuantityBefore, &m.QuantityAfter, &m.Actor, &m.Note, &m.CreatedAt, &total); err != nil {
			return nil, 0, err
		}
		m.Type = MovementType(typ)
		out = append(out, m)
	}
	return out, total, rows.Err()
}

func (r *Repository) FindDrift(ctx context.Context) ([]Drift, error) {
	rows, err := r.pool.Query(ctx, selectDrift)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Drift
	for rows.Next() {
		var d Drift
		if err := rows.Scan(&d.ItemID, &d.LocationID, &d.Recorded, &d.Replayed); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (r *Repository) ItemAggregates(ctx context.Context) ([]ItemAggregate, error) {
	rows, err := r.pool.Query(ctx, selectItemAggregates)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []ItemAggregate
	for rows.Next() {
		var (
			a  ItemAggregate
			st string
		)
		if err := rows.Scan(&a.ItemID, &a.MinimumStock, &st, &a.Aggregate); err != nil {
			return nil, err
		}
		a.Stored = status.Status(st)
		out = append(out, a)
	}
	return out, rows.Err()
}

func scanItemState(row pgx.Row, itemID int64) (ItemState, error) {
	var (
		it ItemState
		st string
	)
	err := row.Scan(&it.ID, &it.Name, &it.MinimumStock, &st, &it.Active, &it.Owner)
	if errors.Is(err, pgx.ErrNoRows) {
		return ItemState{}, fmt.Errorf("item %d: %w", itemID, shared.ErrNotFound)
	}
	if err != nil {
		return ItemState{}, err
	}
	it.Status = status.Status(st)
	return it, nil
}

func (t *txRepository) GetItemForUpdate(ctx context.Context, itemID int64) (ItemState, error) {
	return scanItemState(t.tx.QueryRow(ctx, selectItemForUpdate, itemID), itemID)
}

func (t *txRepository) GetLocation(ctx context.Context, locationID int64) (LocationState, error) {
	var loc LocationState
	err := t.tx.QueryRow(ctx, selectLocationForShare, locationID).Scan(&loc.ID, &loc.Active)
	if errors.Is(err, pgx.ErrNoRows) {
		return LocationState{}, fmt.Errorf("location %d: %w", locationID, shared.ErrNotFound)
	}
	return loc, err
}

func (t *txRepository) GetStockForUpdate(ctx context.Context, itemID, locationID int64) (int64, error) {
	var qty int64
	err := t.tx.QueryRow(ctx, selectStockForUpdate, itemID, locationID).Scan(&qty)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	return qty, err
}

func (t *txRepository) PutStock(ctx context.Context, entry StockEntry) error {
	return t.tx.QueryRow(ctx, upsertStock, entry.ItemID, entry.LocationID, entry.Quantity).Scan(&entry.UpdatedAt)
}

func (t *txRepository) Aggregate(ctx context.Context, itemID int64) (int64, error) {
	var total int64
	err := t.tx.QueryRow(ctx, selectAggregate, itemID).Scan(&total)
	return total, err
}

func (t *txRepository) InsertMovement(ctx context.Context, mv Movement) (Movement, error) {
	err := t.tx.QueryRow(ctx, insertMovement, string(mv.Type), mv.ItemID, mv.LocationID, mv.Quantity,
		mv.QuantityBefore, mv.QuantityAfter, mv.Actor, mv.Note).Scan(&mv.ID, &mv.CreatedAt)
	return mv, err
}

func (t *txRepository) SetItemStatus(ctx context.Context, itemID int64, st status.Status) error {
	_, err := t.tx.Exec(ctx, updateItemStatus, itemID, string(st))
	return err
}

func (t *txRepository) InsertNotification(ctx context.Context, n notifications.Notification) (notifications.Notification, error) {
	return notifications.Insert(ctx, t.tx, n)
}

func (t *txRepository) ReplayStock(ctx context.Context, itemID int64) (map[int64]int64, error) {
	return t.quantities(ctx, replayStock, itemID)
}

func (t *txRepository) RecordedStock(ctx context.Context, itemID int64) (map[int64]int64, error) {
	return t.quantities(ctx, recordedStock, itemID)
}

func (t *txRepository) quantities(ctx context.Context, query string, itemID int64) (map[int64]int64, error) {
	rows, err := t.tx.Query(ctx, query, itemID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[int64]int64)
	for rows.Next() {
		var loc, qty int64
		if err := rows.Scan(&loc, &qty); err != nil {
			return nil, err
		}
		out[loc] = qty
	}
	return out, rows.Err()
}
