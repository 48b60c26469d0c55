package notifications

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/almoxarifado/almoxarifado/internal/platform/db"
	"github.com/almoxarifado/almoxarifado/internal/shared"
	"github.com/almoxarifado/almoxarifado/internal/status"
)

// Repository persists notifications.
type Repository interface {
	List(ctx context.Context, filter ListFilter) ([]Notification, int, error)
	UnreadCount(ctx context.Context, owner string) (int, error)
	MarkRead(ctx context.Context, owner string, id int64) error
	MarkAllRead(ctx context.Context, owner string) (int64, error)
	Deactivate(ctx context.Context, owner string, id int64) error
}

type pgRepository struct {
	pool *pgxpool.Pool
}

// NewRepository returns the PostgreSQL backed repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &pgRepository{pool: pool}
}

const columns = `id, item_id, owner, status, message, read, active, created_at`

func scan(row pgx.Row, extra ...any) (Notification, error) {
	var (
		n  Notification
		st string
	)
	dest := append([]any{&n.ID, &n.ItemID, &n.Owner, &st, &n.Message, &n.Read, &n.Active, &n.CreatedAt}, extra...)
	if err := row.Scan(dest...); err != nil {
		return Notification{}, err
	}
	n.Status = status.Status(st)
	return n, nil
}

// Insert stores n using q, typically the transaction that applied the movement.
func Insert(ctx context.Context, q db.Querier, n Notification) (Notification, error) {
	return scan(q.QueryRow(ctx, `INSERT INTO notifications (item_id, owner, status, message, read, active, created_at)
VALUES ($1, $2, $3, $4, FALSE, TRUE, NOW())
RETURNING `+columns, n.ItemID, n.Owner, string(n.Status), n.Message))
}

func (r *pgRepository) List(ctx context.Context, filter ListFilter) ([]Notification, int, error) {
	page, limit := shared.NormalizePage(filter.Page, filter.Limit)
	query := `SELECT ` + columns + `, COUNT(*) OVER() FROM notifications WHERE owner = $1 AND active`
	if filter.Unread {
		query += ` AND NOT read`
	}
	query += ` ORDER BY created_at DESC, id DESC LIMIT $2 OFFSET $3`
	rows, err := r.pool.Query(ctx, query, filter.Owner, limit, shared.Offset(page, limit))
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var (
		out   []Notification
		total int
	)
	for rows.Next() {
		n, err := scan(rows, &total)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, n)
	}
	return out, total, rows.Err()
}

func (r *pgRepository) UnreadCount(ctx context.Context, owner string) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM notifications WHERE owner = $1 AND active AND NOT read`, owner).Scan(&n)
	return n, err
}

func (r *pgRepository) MarkRead(ctx context.Context, owner string, id int64) error {
	return r.touch(ctx, `UPDATE notifications SET read = TRUE WHERE id = $1 AND owner = $2`, owner, id)
}

func (r *pgRepository) MarkAllRead(ctx context.Context, owner string) (int64, error) {
	tag, err := r.pool.Exec(ctx, `UPDATE notifications SET read = TRUE WHERE owner = $1 AND active AND NOT read`, owner)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (r *pgRepository) Deactivate(ctx context.Context, owner string, id int64) error {
	return r.touch(ctx, `UPDATE notifications SET active = FALSE WHERE id = $1 AND owner = $2`, owner, id)
}

// touch applies an idempotent update; only a missing or foreign row is an error.
func (r *pgRepository) touch(ctx context.Context, sql, owner string, id int64) error {
	tag, err := r.pool.Exec(ctx, sql, id, owner)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("notification %d: %w", id, shared.ErrNotFound)
	}
	return nil
}
