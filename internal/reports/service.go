package reports

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/almoxarifado/almoxarifado/internal/shared"
)

// Service builds cached reports.
type Service struct {
	repo  Repository
	cache *Cache
	now   func() time.Time
}

// NewService wires the report repository with the snapshot cache.
func NewService(repo Repository, cache *Cache) *Service {
	return &Service{repo: repo, cache: cache, now: time.Now}
}

func ptrToken(v *int64) string {
	if v == nil {
		return "-"
	}
	return strconv.FormatInt(*v, 10)
}

// StockReport returns a page of items with their aggregate and locations.
func (s *Service) StockReport(ctx context.Context, filter StockFilter) (StockReport, error) {
	filter.Search = strings.TrimSpace(filter.Search)
	filter.Page, filter.Limit = shared.NormalizePage(filter.Page, filter.Limit)
	if filter.MinQty != nil && filter.MaxQty != nil && *filter.MinQty > *filter.MaxQty {
		return StockReport{}, fmt.Errorf("min_qty greater than max_qty: %w", shared.ErrValidation)
	}
	key, err := s.cache.BuildKey(ctx, "stock", filter.Owner, ptrToken(filter.CategoryID), string(filter.Status),
		ptrToken(filter.MinQty), ptrToken(filter.MaxQty), strings.ToLower(filter.Search),
		strconv.Itoa(filter.Page), strconv.Itoa(filter.Limit))
	if err != nil {
		return StockReport{}, err
	}
	var report StockReport
	err = s.cache.FetchJSON(ctx, key, &report, func(ctx context.Context) (any, error) {
		rows, total, err := s.repo.StockRows(ctx, filter)
		if err != nil {
			return nil, err
		}
		if rows == nil {
			rows = []StockRow{}
		}
		return StockReport{Rows: rows, Pagination: shared.NewPagination(filter.Page, filter.Limit, total)}, nil
	})
	return report, err
}

// MovementReport returns a page of movements with totals for the whole filter.
func (s *Service) MovementReport(ctx context.Context, filter MovementFilter) (MovementReport, error) {
	if filter.Type != "" && !filter.Type.Valid() {
		return MovementReport{}, fmt.Errorf("movement type %q: %w", filter.Type, shared.ErrValidation)
	}
	if !filter.From.IsZero() && !filter.To.IsZero() && filter.To.Before(filter.From) {
		return MovementReport{}, fmt.Errorf("to before from: %w", shared.ErrValidation)
	}
	filter.Page, filter.Limit = shared.NormalizePage(filter.Page, filter.Limit)
	key, err := s.cache.BuildKey(ctx, "movements", filter.Owner, ptrToken(filter.ItemID), ptrToken(filter.LocationID),
		string(filter.Type), dateToken(filter.From), dateToken(filter.To),
		strconv.Itoa(filter.Page), strconv.Itoa(filter.Limit))
	if err != nil {
		return MovementReport{}, err
	}
	var report MovementReport
	err = s.cache.FetchJSON(ctx, key, &report, func(ctx context.Context) (any, error) {
		var (
			out   MovementReport
			total int
		)
		g, ctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			rows, n, err := s.repo.MovementRows(ctx, filter)
			if err != nil {
				return err
			}
			out.Rows, total = rows, n
			return nil
		})
		g.Go(func() error {
			totals, err := s.repo.MovementTotals(ctx, filter)
			if err != nil {
				return err
			}
			out.Totals = totals
			return nil
		})
		if err := g.Wait(); err != nil {
			return nil, err
		}
		if out.Rows == nil {
			out.Rows = []MovementRow{}
		}
		out.Pagination = shared.NewPagination(filter.Page, filter.Limit, total)
		return out, nil
	})
	return report, err
}

// Summary returns status counts and recent movement totals for owner.
func (s *Service) Summary(ctx context.Context, owner string) (Summary, error) {
	key, err := s.cache.BuildKey(ctx, "summary", owner)
	if err != nil {
		return Summary{}, err
	}
	var summary Summary
	err = s.cache.FetchJSON(ctx, key, &summary, func(ctx context.Context) (any, error) {
		now := s.now().UTC()
		out := Summary{GeneratedAt: now}
		g, ctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			counts, err := s.repo.CountByStatus(ctx, owner)
			if err != nil {
				return err
			}
			out.ByStatus = counts
			for _, n := range counts {
				out.Items += n
			}
			return nil
		})
		g.Go(func() error {
			n, err := s.repo.CountLocations(ctx, owner)
			out.Locations = n
			return err
		})
		g.Go(func() error {
			totals, err := s.repo.MovementTotals(ctx, MovementFilter{Owner: owner, From: now.Add(-SummaryWindow)})
			out.LastThirtyDays = totals
			return err
		})
		g.Go(func() error {
			n, err := s.repo.CountUnread(ctx, owner)
			out.UnreadAlerts = n
			return err
		})
		if err := g.Wait(); err != nil {
			return nil, err
		}
		return out, nil
	})
	return summary, err
}
