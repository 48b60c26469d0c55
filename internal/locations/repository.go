package locations

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

// Repository persists locations.
type Repository interface {
	Create(ctx context.Context, loc Location) (Location, error)
	Get(ctx context.Context, id int64) (Location, error)
	List(ctx context.Context, filter ListFilter) ([]Location, int, error)
	Rename(ctx context.Context, id int64, name string) (Location, error)
	SetActive(ctx context.Context, id int64, active bool) (Location, error)
}

type pgRepository struct {
	pool *pgxpool.Pool
}

// NewRepository returns the PostgreSQL backed repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &pgRepository{pool: pool}
}

const locationColumns = `id, name, active, owner, created_at, updated_at`

func scanLocation(row pgx.Row) (Location, error) {
	var l Location
	err := row.Scan(&l.ID, &l.Name, &l.Active, &l.Owner, &l.CreatedAt, &l.UpdatedAt)
	return l, err
}

func (r *pgRepository) Create(ctx context.Context, loc Location) (Location, error) {
	row := r.pool.QueryRow(ctx, `INSERT INTO locations (name, owner, active, created_at, updated_at)
VALUES ($1, $2, TRUE, NOW(), NOW())
RETURNING `+locationColumns, loc.Name, loc.Owner)
	created, err := scanLocation(row)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return Location{}, fmt.Errorf("location %q: %w", loc.Name, shared.ErrDuplicate)
		}
		return Location{}, err
	}
	return created, nil
}

func (r *pgRepository) Get(ctx context.Context, id int64) (Location, error) {
	loc, err := scanLocation(r.pool.QueryRow(ctx, `SELECT `+locationColumns+` FROM locations WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Location{}, fmt.Errorf("location %d: %w", id, shared.ErrNotFound)
	}
	return loc, err
}

// List uses a dynamic query; COUNT(*) OVER() returns the total alongside the page.
func (r *pgRepository) List(ctx context.Context, filter ListFilter) ([]Location, int, error) {
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
		add("name ILIKE ?", "%"+filter.Search+"%")
	}
	if filter.Active != nil {
		add("active = ?", *filter.Active)
	}
	query := `SELECT ` + locationColumns + `, COUNT(*) OVER() FROM locations`
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
		out   []Location
		total int
	)
	for rows.Next() {
		var l Location
		if err := rows.Scan(&l.ID, &l.Name, &l.Active, &l.Owner, &l.CreatedAt, &l.UpdatedAt, &total); err != nil {
			return nil, 0, err
		}
		out = append(out, l)
	}
	return out, total, rows.Err()
}

func (r *pgRepository) Rename(ctx context.Context, id int64, name string) (Location, error) {
	loc, err := scanLocation(r.pool.QueryRow(ctx, `UPDATE locations SET name = $2, updated_at = NOW()
WHERE id = $1 RETURNING `+locationColumns, id, name))
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return Location{}, fmt.Errorf("location %d: %w", id, shared.ErrNotFound)
	case db.IsUniqueViolation(err):
		return Location{}, fmt.Errorf("location %q: %w", name, shared.ErrDuplicate)
	}
	return loc, err
}

func (r *pgRepository) SetActive(ctx context.Context, id int64, active bool) (Location, error) {
	loc, err := scanLocation(r.pool.QueryRow(ctx, `UPDATE locations
SET active = $2, updated_at = CASE WHEN active = $2 THEN updated_at ELSE NOW() END
WHERE id = $1 RETURNING `+locationColumns, id, active))
	if errors.Is(err, pgx.ErrNoRows) {
		return Location{}, fmt.Errorf("location %d: %w", id, shared.ErrNotFound)
	}
	return loc, err
}
