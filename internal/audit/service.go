package audit

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgtype"

	"github.com/almoxarifado/almoxarifado/internal/shared"
)

const (
	defaultPageSize = 20
	maxPageSize     = 50
	// MaxRange bounds a single timeline query.
	MaxRange = 90 * 24 * time.Hour
)

// Service serves the audit trail.
type Service struct {
	repo Repository
}

// NewService constructs the audit service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Timeline returns one page of audit rows, newest first.
func (s *Service) Timeline(ctx context.Context, filters TimelineFilters) (Result, error) {
	if err := validateRange(filters); err != nil {
		return Result{}, err
	}
	pageSize := filters.PageSize
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	page := filters.Page
	if page <= 0 {
		page = 1
	}
	params := toParams(filters)
	params.OffsetRows = int32((page - 1) * pageSize)
	params.LimitRows = int32(pageSize + 1)

	rows, err := s.repo.TimelineWindow(ctx, params)
	if err != nil {
		return Result{}, err
	}
	hasNext := len(rows) > pageSize
	if hasNext {
		rows = rows[:pageSize]
	}
	if rows == nil {
		rows = []TimelineRow{}
	}
	paging := PagingInfo{Page: page, PageSize: pageSize, HasNext: hasNext}
	if page > 1 {
		paging.PrevPage = page - 1
	}
	if hasNext {
		paging.NextPage = page + 1
	}
	return Result{Rows: rows, Paging: paging}, nil
}

// Export returns every row matching filters, without paging.
func (s *Service) Export(ctx context.Context, filters TimelineFilters) ([]TimelineRow, error) {
	if err := validateRange(filters); err != nil {
		return nil, err
	}
	return s.repo.TimelineAll(ctx, toParams(filters))
}

func validateRange(f TimelineFilters) error {
	if f.From.IsZero() || f.To.IsZero() {
		return fmt.Errorf("from and to are required: %w", shared.ErrValidation)
	}
	if f.From.After(f.To) {
		return fmt.Errorf("from must not be after to: %w", shared.ErrValidation)
	}
	if f.To.Sub(f.From) > MaxRange {
		return fmt.Errorf("range exceeds %d days: %w", int(MaxRange.Hours()/24), shared.ErrValidation)
	}
	return nil
}

func toParams(f TimelineFilters) WindowParams {
	return WindowParams{
		FromAt:   toPgTime(f.From),
		ToAt:     toPgTime(f.To),
		Actor:    optionalText(f.Actor),
		Entity:   optionalText(f.Entity),
		EntityID: optionalText(f.EntityID),
		Action:   optionalText(f.Action),
	}
}

func toPgTime(t time.Time) pgtype.Timestamptz {
	if t.IsZero() {
		return pgtype.Timestamptz{}
	}
	return pgtype.Timestamptz{Time: t, Valid: true}
}

func optionalText(value string) pgtype.Text {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return pgtype.Text{}
	}
	return pgtype.Text{String: trimmed, Valid: true}
}
