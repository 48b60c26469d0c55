package suppliers

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
)

// Repository persists suppliers.
type Repository interface {
	Create(ctx context.Context, s Supplier) (Supplier, error)
	Get(ctx context.Context, id int64) (Supplier, error)
	List(ctx context.Context, filter ListFilter) ([]Supplier, int, error)
	Update(ctx context.Context, s Supplier) (Supplier, error)
	SetActive(ctx context.Context, id int64, active bool) (Supplier, error)
}

type pgRepository struct {
	pool *pgxpool.Pool
}

// NewRepository returns the PostgreSQL backed repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &pgRepository{pool: pool}
}

const columns = `id, name, email, phone, active, owner, created_at, updated_at`

func scan(row pgx.Row, extra ...any) (Supplier, error) {
	var s Supplier
	dest := append([]any{&s.ID, &s.Name, &s.Email, &s.Phone, &s.Active, &s.Owner, &s.CreatedAt, &s.UpdatedAt}, extra...)
	return s, row.Scan(dest...)
}

func mapErr(id int64, name string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, pgx.ErrNoRows):
		return fmt.Errorf("supplier %d: %w", id, shared.ErrNotFound)
	case db.IsUniqueViolation(err):
		return fmt.Errorf("supplier %q: %w", name, shared.ErrDuplicate)
	}
	return err
}

func (r *pgRepository) Create(ctx context.Context, s Supplier) (Supplier, error) {
	created, err := scan(r.pool.QueryRow(ctx, `INSERT INTO suppliers (name, email, phone, active, owner, created_at, updated_at)
VALUES ($1, $2, $3, TRUE, $4, NOW(), NOW()) RETURNING `+columns, s.Name, s.Email, s.Phone, s.Owner))
	return created, mapErr(0, s.Name, err)
}

func (r *pgRepository) Get(ctx context.Context, id int64) (Supplier, error) {
	s, err := scan(r.pool.QueryRow(ctx, `SELECT `+columns+` FROM suppliers WHERE id = $1`, id))
	return s, mapErr(id, "", err)
}

func (r *pgRepository) List(ctx context.Context, filter ListFilter) ([]Supplier, int, error) {
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
	if filter.Search != "" {
		add("(name ILIKE ? OR email ILIKE ?)", "%"+filter.Search+"%")
	}
	if filter.Active != nil {
		add("active = ?", *filter.Active)
	}
	query := `SELECT ` + columns + `, COUNT(*) OVER() FROM suppliers`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	page, limit := shared.NormalizePage(filter.Page, filter.Limit)
	args = append(args, limit, shared.Offset(page, limit))
	query += fmt.Sprintf(" ORDER BY name, id LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var (
		out   []Supplier
		total int
	)
	for rows.Next() {
		s, err := scan(rows, &total)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, s)
	}
	return out, total, rows.Err()
}

func (r *pgRepository) Update(ctx context.Context, s Supplier) (Supplier, error) {
	updated, err := scan(r.pool.QueryRow(ctx, `UPDATE suppliers SET name = $2, email = $3, phone = $4, updated_at = NOW()
WHERE id = $1 RETURNING `+columns, s.ID, s.Name, s.Email, s.Phone))
	return updated, mapErr(s.ID, s.Name, err)
}

func (r *pgRepository) SetActive(ctx context.Context, id int64, active bool) (Supplier, error) {
	s, err := scan(r.pool.QueryRow(ctx, `UPDATE suppliers SET active = $2, updated_at = NOW()
WHERE id = $1 RETURNING `+columns, id, active))
	return s, mapErr(id, "", err)
}
