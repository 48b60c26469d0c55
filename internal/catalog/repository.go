package catalog

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/almoxarifado/almoxarifado/internal/platform/db"
	"github.com/almoxarifado/almoxarifado/internal/shared"
	"github.com/almoxarifado/almoxarifado/internal/status"
)

// RepositoryPort abstracts persistence for the catalog service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	CreateCategory(ctx context.Context, c Category) (Category, error)
	GetCategory(ctx context.Context, id int64) (Category, error)
	ListCategories(ctx context.Context, owner string) ([]Category, error)
	DeleteCategory(ctx context.Context, id int64) error
	CreateItem(ctx context.Context, item Item) (Item, error)
	GetItem(ctx context.Context, id int64) (Item, error)
	ListItems(ctx context.Context, filter ItemFilter) ([]Item, int, error)
	SetItemActive(ctx context.Context, id int64, active bool) (Item, error)
	SetImageRef(ctx context.Context, id int64, ref string) (Item, error)
}

// TxRepository exposes the row-locked operations used by item updates.
type TxRepository interface {
	GetItemForUpdate(ctx context.Context, id int64) (Item, error)
	Aggregate(ctx context.Context, itemID int64) (int64, error)
	UpdateItem(ctx context.Context, item Item) (Item, error)
}

// Repository persists the catalog in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

type txRepo struct {
	tx pgx.Tx
}

// WithTx runs fn inside a read-committed transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, db.ReadCommitted, func(tx pgx.Tx) error {
		return fn(ctx, &txRepo{tx: tx})
	})
}

const itemColumns = `id, name, category_id, minimum_stock, description, image_ref, status, active, owner, created_at, updated_at`

func scanItem(row pgx.Row, extra ...any) (Item, error) {
	var (
		it Item
		st string
	)
	dest := append([]any{&it.ID, &it.Name, &it.CategoryID, &it.MinimumStock, &it.Description, &it.ImageRef, &st, &it.Active, &it.Owner, &it.CreatedAt, &it.UpdatedAt}, extra...)
	if err := row.Scan(dest...); err != nil {
		return Item{}, err
	}
	it.Status = status.Status(st)
	return it, nil
}

func notFound(kind string, id int64, err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%s %d: %w", kind, id, shared.ErrNotFound)
	}
	return err
}

func (r *Repository) CreateCategory(ctx context.Context, c Category) (Category, error) {
	err := r.pool.QueryRow(ctx, `INSERT INTO categories (name, owner, created_at) VALUES ($1, $2, NOW())
RETURNING id, name, owner, created_at`, c.Name, c.Owner).Scan(&c.ID, &c.Name, &c.Owner, &c.CreatedAt)
	if db.IsUniqueViolation(err) {
		return Category{}, fmt.Errorf("category %q: %w", c.Name, shared.ErrDuplicate)
	}
	return c, err
}

func (r *Repository) GetCategory(ctx context.Context, id int64) (Category, error) {
	var c Category
	err := r.pool.QueryRow(ctx, `SELECT id, name, owner, created_at FROM categories WHERE id = $1`, id).
		Scan(&c.ID, &c.Name, &c.Owner, &c.CreatedAt)
	return c, notFound("category", id, err)
}

func (r *Repository) ListCategories(ctx context.Context, owner string) ([]Category, error) {
	query := `SELECT id, name, owner, created_at FROM categories`
	var args []any
	if owner != "" {
		query += ` WHERE owner = $1`
		args = append(args, owner)
	}
	rows, err := r.pool.Query(ctx, query+` ORDER BY name`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Category
	for rows.Next() {
		var c Category
		if err := rows.Scan(&c.ID, &c.Name, &c.Owner, &c.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// DeleteCategory removes a category no item references. The foreign key on
// items.category_id rejects the delete otherwise.
func (r *Repository) DeleteCategory(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM categories WHERE id = $1`, id)
	if err != nil {
		if db.IsForeignKeyViolation(err) {
			return fmt.Errorf("category %d is referenced by items: %w", id, shared.ErrConflict)
		}
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("category %d: %w", id, shared.ErrNotFound)
	}
	return nil
}

func (r *Repository) CreateItem(ctx context.Context, item Item) (Item, error) {
	row := r.pool.QueryRow(ctx, `INSERT INTO items (name, category_id, minimum_stock, description, image_ref, status, active, owner, created_at, updated_at)
VALUES ($1, $2, $3, $4, '', $5, TRUE, $6, NOW(), NOW())
RETURNING `+itemColumns, item.Name, item.CategoryID, item.MinimumStock, item.Description, string(item.Status), item.Owner)
	created, err := scanItem(row)
	if db.IsForeignKeyViolation(err) {
		return Item{}, fmt.Errorf("category: %w", shared.ErrNotFound)
	}
	return created, err
}

func (r *Repository) GetItem(ctx context.Context, id int64) (Item, error) {
	it, err := scanItem(r.pool.QueryRow(ctx, `SELECT `+itemColumns+` FROM items WHERE id = $1`, id))
	return it, notFound("item", id, err)
}

func (r *Repository) ListItems(ctx context.Context, filter ItemFilter) ([]Item, int, error) {
	var (
		where []string
		args  []any
	)
	add := func(clause string, arg any) {
		args = append(args, arg)
		where = append(where, strings.ReplaceAll(clause, "?", "$"+strconv.Itoa(len(args))))
	}
	if filter.Owner != "" {
		add("owner = ?", filter.Owner)
	}
	if filter.CategoryID != nil {
		add("category_id = ?", *filter.CategoryID)
	}
	if filter.Status != "" {
		add("status = ?", string(filter.Status))
	}
	if filter.Search != "" {
		add("(name ILIKE ? OR description ILIKE ?)", "%"+filter.Search+"%")
	}
	if filter.Active != nil {
		add("active = ?", *filter.Active)
	}
	query := `SELECT ` + itemColumns + `, COUNT(*) OVER() FROM items`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	page, limit := shared.NormalizePage(filter.Page, filter.Limit)
	args = append(args, limit, shared.Offset(page, limit))
	query += fmt.Sprintf(" ORDER BY name ASC, id ASC LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var (
		out   []Item
		total int
	)
	for rows.Next() {
		it, err := scanItem(rows, &total)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, it)
	}
	return out, total, rows.Err()
}

func (r *Repository) SetItemActive(ctx context.Context, id int64, active bool) (Item, error) {
	it, err := scanItem(r.pool.QueryRow(ctx, `UPDATE items SET active = $2, updated_at = NOW()
WHERE id = $1 RETURNING `+itemColumns, id, active))
	return it, notFound("item", id, err)
}

func (r *Repository) SetImageRef(ctx context.Context, id int64, ref string) (Item, error) {
	it, err := scanItem(r.pool.QueryRow(ctx, `UPDATE items SET image_ref = $2, updated_at = NOW()
WHERE id = $1 RETURNING `+itemColumns, id, ref))
	return it, notFound("item", id, err)
}

func (t *txRepo) GetItemForUpdate(ctx context.Context, id int64) (Item, error) {
	it, err := scanItem(t.tx.QueryRow(ctx, `SELECT `+itemColumns+` FROM items WHERE id = $1 FOR UPDATE`, id))
	return it, notFound("item", id, err)
}

func (t *txRepo) Aggregate(ctx context.Context, itemID int64) (int64, error) {
	var total int64
	err := t.tx.QueryRow(ctx, `SELECT COALESCE(SUM(quantity), 0) FROM stock_entries WHERE item_id = $1`, itemID).Scan(&total)
	return total, err
}

func (t *txRepo) UpdateItem(ctx context.Context, item Item) (Item, error) {
	updated, err := scanItem(t.tx.QueryRow(ctx, `UPDATE items
SET name = $2, category_id = $3, minimum_stock = $4, description = $5, status = $6, updated_at = NOW()
WHERE id = $1 RETURNING `+itemColumns, item.ID, item.Name, item.CategoryID, item.MinimumStock, item.Description, string(item.Status)))
	if db.IsForeignKeyViolation(err) {
		return Item{}, fmt.Errorf("category: %w", shared.ErrNotFound)
	}
	return updated, notFound("item", item.ID, err)
}
