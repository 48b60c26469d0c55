package reports

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/almoxarifado/almoxarifado/internal/shared"
	"github.com/almoxarifado/almoxarifado/internal/status"
)

// Repository runs the report queries.
type Repository interface {
	StockRows(ctx context.Context, filter StockFilter) ([]StockRow, int, error)
	MovementRows(ctx context.Context, filter MovementFilter) ([]MovementRow, int, error)
	MovementTotals(ctx context.Context, filter MovementFilter) (MovementTotals, error)
	CountByStatus(ctx context.Context, owner string) (map[status.Status]int, error)
	CountLocations(ctx context.Context, owner string) (int, error)
	CountUnread(ctx context.Context, owner string) (int, error)
}

type pgRepository struct {
	pool *pgxpool.Pool
}

// NewRepository returns the PostgreSQL report repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &pgRepository{pool: pool}
}

type whereBuilder struct {
	clauses []string
	args    []any
}

func (b *whereBuilder) add(clause string, arg any) {
	b.args = append(b.args, arg)
	b.clauses = append(b.clauses, strings.ReplaceAll(clause, "?", "$"+strconv.Itoa(len(b.args))))
}

func (b *whereBuilder) sql() string {
	if len(b.clauses) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(b.clauses, " AND ")
}

func (b *whereBuilder) page(page, limit int) string {
	page, limit = shared.NormalizePage(page, limit)
	b.args = append(b.args, limit, shared.Offset(page, limit))
	return fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(b.args)-1, len(b.args))
}

func (r *pgRepository) StockRows(ctx context.Context, filter StockFilter) ([]StockRow, int, error) {
	var w whereBuilder
	w.add("i.active = ?", true)
	if filter.Owner != "" {
		w.add("i.owner = ?", filter.Owner)
	}
	if filter.CategoryID != nil {
		w.add("i.category_id = ?", *filter.CategoryID)
	}
	if filter.Status != "" {
		w.add("i.status = ?", string(filter.Status))
	}
	if filter.Search != "" {
		w.add("i.name ILIKE ?", "%"+filter.Search+"%")
	}
	if filter.MinQty != nil {
		w.add("COALESCE(s.total, 0) >= ?", *filter.MinQty)
	}
	if filter.MaxQty != nil {
		w.add("COALESCE(s.total, 0) <= ?", *filter.MaxQty)
	}
	query := `SELECT i.id, i.name, COALESCE(c.name, ''), i.minimum_stock, COALESCE(s.total, 0), i.status, COUNT(*) OVER()
FROM items i
LEFT JOIN categories c ON c.id = i.category_id
LEFT JOIN (SELECT item_id, SUM(quantity) AS total FROM stock_entries GROUP BY item_id) s ON s.item_id = i.id` +
		w.sql() + ` ORDER BY i.name, i.id` + w.page(filter.Page, filter.Limit)

	rows, err := r.pool.Query(ctx, query, w.args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var (
		out   []StockRow
		ids   []int64
		total int
	)
	for rows.Next() {
		var (
			row StockRow
			st  string
		)
		if err := rows.Scan(&row.ItemID, &row.Name, &row.Category, &row.MinimumStock, &row.Aggregate, &st, &total); err != nil {
			return nil, 0, err
		}
		row.Status = status.Status(st)
		row.Locations = []LocationQuantity{}
		out = append(out, row)
		ids = append(ids, row.ItemID)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	if len(ids) == 0 {
		return out, total, nil
	}

	locRows, err := r.pool.Query(ctx, `SELECT se.item_id, se.location_id, l.name, se.quantity
FROM stock_entries se JOIN locations l ON l.id = se.location_id
WHERE se.item_id = ANY($1) AND se.quantity > 0
ORDER BY l.name`, ids)
	if err != nil {
		return nil, 0, err
	}
	defer locRows.Close()
	index := make(map[int64]int, len(out))
	for i, row := range out {
		index[row.ItemID] = i
	}
	for locRows.Next() {
		var (
			itemID int64
			lq     LocationQuantity
		)
		if err := locRows.Scan(&itemID, &lq.LocationID, &lq.Name, &lq.Quantity); err != nil {
			return nil, 0, err
		}
		if i, ok := index[itemID]; ok {
			out[i].Locations = append(out[i].Locations, lq)
		}
	}
	return out, total, locRows.Err()
}

func movementWhere(filter MovementFilter) *whereBuilder {
	w := &whereBuilder{}
	if filter.Owner != "" {
		w.add("i.owner = ?", filter.Owner)
	}
	if filter.ItemID != nil {
		w.add("m.item_id = ?", *filter.ItemID)
	}
	if filter.LocationID != nil {
		w.add("m.location_id = ?", *filter.LocationID)
	}
	if filter.Type != "" {
		w.add("m.type = ?", string(filter.Type))
	}
	if !filter.From.IsZero() {
		w.add("m.created_at >= ?", filter.From)
	}
	if !filter.To.IsZero() {
		w.add("m.created_at < ?", filter.To)
	}
	return w
}

const movementFrom = ` FROM movements m
JOIN items i ON i.id = m.item_id
JOIN locations l ON l.id = m.location_id`

func (r *pgRepository) MovementRows(ctx context.Context, filter MovementFilter) ([]MovementRow, int, error) {
	w := movementWhere(filter)
	query := `SELECT m.id, m.type, m.item_id, m.location_id, m.quantity, m.quantity_before, m.quantity_after,
       m.actor, m.note, m.created_at, i.name, l.name, COUNT(*) OVER()` + movementFrom + w.sql() +
		` ORDER BY m.created_at DESC, m.id DESC` + w.page(filter.Page, filter.Limit)
	rows, err := r.pool.Query(ctx, query, w.args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var (
		out   []MovementRow
		total int
	)
	for rows.Next() {
		var row MovementRow
		if err := rows.Scan(&row.ID, &row.Type, &row.ItemID, &row.LocationID, &row.Quantity,
			&row.QuantityBefore, &row.QuantityAfter, &row.Actor, &row.Note, &row.CreatedAt,
			&row.ItemName, &row.LocationName, &total); err != nil {
			return nil, 0, err
		}
		out = append(out, row)
	}
	return out, total, rows.Err()
}

func (r *pgRepository) MovementTotals(ctx context.Context, filter MovementFilter) (MovementTotals, error) {
	w := movementWhere(filter)
	var t MovementTotals
	err := r.pool.QueryRow(ctx, `SELECT
       COUNT(*) FILTER (WHERE m.type = 'ENTRY'),
       COUNT(*) FILTER (WHERE m.type = 'EXIT'),
       COALESCE(SUM(m.quantity) FILTER (WHERE m.type = 'ENTRY'), 0),
       COALESCE(SUM(m.quantity) FILTER (WHERE m.type = 'EXIT'), 0)`+movementFrom+w.sql(), w.args...).
		Scan(&t.Entries, &t.Exits, &t.TotalIn, &t.TotalOut)
	return t, err
}

func (r *pgRepository) CountByStatus(ctx context.Context, owner string) (map[status.Status]int, error) {
	rows, err := r.pool.Query(ctx, `SELECT status, COUNT(*) FROM items
WHERE active AND ($1 = '' OR owner = $1) GROUP BY status`, owner)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := map[status.Status]int{status.InStock: 0, status.LowStock: 0, status.Unavailable: 0}
	for rows.Next() {
		var (
			st    string
			count int
		)
		if err := rows.Scan(&st, &count); err != nil {
			return nil, err
		}
		out[status.Status(st)] = count
	}
	return out, rows.Err()
}

func (r *pgRepository) CountLocations(ctx context.Context, owner string) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM locations WHERE active AND ($1 = '' OR owner = $1)`, owner).Scan(&n)
	return n, err
}

func (r *pgRepository) CountUnread(ctx context.Context, owner string) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM notifications
WHERE active AND NOT read AND ($1 = '' OR owner = $1)`, owner).Scan(&n)
	return n, err
}

func dateToken(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.UTC().Format(time.DateOnly)
}
