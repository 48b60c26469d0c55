package budgets

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/almoxarifado/almoxarifado/internal/platform/db"
	"github.com/almoxarifado/almoxarifado/internal/shared"
)

// Repository persists budgets with their lines.
type Repository interface {
	Create(ctx context.Context, b Budget) (Budget, error)
	Get(ctx context.Context, id int64) (Budget, error)
	List(ctx context.Context, filter ListFilter) ([]Summary, int, error)
	Update(ctx context.Context, b Budget) (Budget, error)
	Delete(ctx context.Context, id int64) error
}

type pgRepository struct {
	pool *pgxpool.Pool
}

// NewRepository returns the PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &pgRepository{pool: pool}
}

// Money travels as text so NUMERIC keeps its exact scale.
func parseMoney(raw string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse money %q: %w", raw, err)
	}
	return d, nil
}

func (r *pgRepository) Create(ctx context.Context, b Budget) (Budget, error) {
	err := db.WithTx(ctx, r.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		if err := tx.QueryRow(ctx, `INSERT INTO budgets (name, owner, notes, total, created_at, updated_at)
VALUES ($1, $2, $3, $4::numeric, NOW(), NOW()) RETURNING id, created_at, updated_at`,
			b.Name, b.Owner, b.Notes, b.Total.StringFixed(Places)).Scan(&b.ID, &b.CreatedAt, &b.UpdatedAt); err != nil {
			return err
		}
		return insertLines(ctx, tx, b.ID, b.Lines)
	})
	if err != nil {
		return Budget{}, err
	}
	return b, nil
}

func insertLines(ctx context.Context, tx pgx.Tx, budgetID int64, lines []Line) error {
	batch := &pgx.Batch{}
	for i, line := range lines {
		batch.Queue(`INSERT INTO budget_lines (budget_id, position, item_id, supplier_id, quantity, unit_price, line_total)
VALUES ($1, $2, $3, $4, $5, $6::numeric, $7::numeric)`,
			budgetID, i+1, line.ItemID, line.SupplierID, line.Quantity,
			line.UnitPrice.StringFixed(Places), line.LineTotal.StringFixed(Places))
	}
	return tx.SendBatch(ctx, batch).Close()
}

func (r *pgRepository) Get(ctx context.Context, id int64) (Budget, error) {
	var (
		b     Budget
		total string
	)
	err := r.pool.QueryRow(ctx, `SELECT id, name, owner, notes, total::text, created_at, updated_at
FROM budgets WHERE id = $1`, id).Scan(&b.ID, &b.Name, &b.Owner, &b.Notes, &total, &b.CreatedAt, &b.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Budget{}, fmt.Errorf("budget %d: %w", id, shared.ErrNotFound)
	}
	if err != nil {
		return Budget{}, err
	}
	if b.Total, err = parseMoney(total); err != nil {
		return Budget{}, err
	}

	rows, err := r.pool.Query(ctx, `SELECT item_id, supplier_id, quantity, unit_price::text, line_total::text
FROM budget_lines WHERE budget_id = $1 ORDER BY position`, id)
	if err != nil {
		return Budget{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			line            Line
			price, subtotal string
		)
		if err := rows.Scan(&line.ItemID, &line.SupplierID, &line.Quantity, &price, &subtotal); err != nil {
			return Budget{}, err
		}
		if line.UnitPrice, err = parseMoney(price); err != nil {
			return Budget{}, err
		}
		if line.LineTotal, err = parseMoney(subtotal); err != nil {
			return Budget{}, err
		}
		b.Lines = append(b.Lines, line)
	}
	return b, rows.Err()
}

func (r *pgRepository) List(ctx context.Context, filter ListFilter) ([]Summary, int, error) {
	page, limit := shared.NormalizePage(filter.Page, filter.Limit)
	rows, err := r.pool.Query(ctx, `SELECT b.id, b.name, b.owner, b.total::text, b.updated_at,
       (SELECT COUNT(*) FROM budget_lines l WHERE l.budget_id = b.id), COUNT(*) OVER()
FROM budgets b
WHERE ($1 = '' OR b.owner = $1) AND ($2 = '' OR b.name ILIKE '%' || $2 || '%')
ORDER BY b.updated_at DESC, b.id DESC
LIMIT $3 OFFSET $4`, filter.Owner, filter.Search, limit, shared.Offset(page, limit))
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var (
		out   []Summary
		total int
	)
	for rows.Next() {
		var (
			s     Summary
			money string
		)
		if err := rows.Scan(&s.ID, &s.Name, &s.Owner, &money, &s.UpdatedAt, &s.LineCount, &total); err != nil {
			return nil, 0, err
		}
		if s.Total, err = parseMoney(money); err != nil {
			return nil, 0, err
		}
		out = append(out, s)
	}
	return out, total, rows.Err()
}

func (r *pgRepository) Update(ctx context.Context, b Budget) (Budget, error) {
	err := db.WithTx(ctx, r.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `UPDATE budgets SET name = $2, notes = $3, total = $4::numeric, updated_at = NOW()
WHERE id = $1 RETURNING created_at, updated_at`, b.ID, b.Name, b.Notes, b.Total.StringFixed(Places)).Scan(&b.CreatedAt, &b.UpdatedAt)
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("budget %d: %w", b.ID, shared.ErrNotFound)
		}
		if err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `DELETE FROM budget_lines WHERE budget_id = $1`, b.ID); err != nil {
			return err
		}
		return insertLines(ctx, tx, b.ID, b.Lines)
	})
	if err != nil {
		return Budget{}, err
	}
	return b, nil
}

func (r *pgRepository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM budgets WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("budget %d: %w", id, shared.ErrNotFound)
	}
	return nil
}
