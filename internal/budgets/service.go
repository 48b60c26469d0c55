package budgets

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/almoxarifado/almoxarifado/internal/catalog"
	"github.com/almoxarifado/almoxarifado/internal/shared"
	"github.com/almoxarifado/almoxarifado/internal/suppliers"
)

// ItemLookup resolves catalog items referenced by lines.
type ItemLookup interface {
	GetItem(ctx context.Context, id int64) (catalog.Item, error)
}

// SupplierLookup resolves suppliers referenced by lines.
type SupplierLookup interface {
	Get(ctx context.Context, id int64) (suppliers.Supplier, error)
}

// Service composes budgets.
type Service struct {
	repo      Repository
	items     ItemLookup
	suppliers SupplierLookup
	logger    *slog.Logger
}

// NewService wires the budget service.
func NewService(repo Repository, items ItemLookup, supplierLookup SupplierLookup, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, items: items, suppliers: supplierLookup, logger: logger}
}

// Create stores a new budget for owner.
func (s *Service) Create(ctx context.Context, owner string, in Input) (Budget, error) {
	if strings.TrimSpace(owner) == "" {
		return Budget{}, shared.ErrMissingActor
	}
	b, err := s.compose(ctx, in)
	if err != nil {
		return Budget{}, err
	}
	b.Owner = owner
	created, err := s.repo.Create(ctx, b)
	if err != nil {
		return Budget{}, err
	}
	s.logger.Info("budget created", slog.Int64("budget_id", created.ID), slog.String("total", created.Total.StringFixed(Places)))
	return created, nil
}

// Get returns a budget with its lines.
func (s *Service) Get(ctx context.Context, id int64) (Budget, error) {
	if id <= 0 {
		return Budget{}, fmt.Errorf("budget id: %w", shared.ErrValidation)
	}
	return s.repo.Get(ctx, id)
}

// List returns budget summaries.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]Summary, int, error) {
	filter.Search = strings.TrimSpace(filter.Search)
	filter.Page, filter.Limit = shared.NormalizePage(filter.Page, filter.Limit)
	return s.repo.List(ctx, filter)
}

// Update replaces name, notes and every line of the budget.
func (s *Service) Update(ctx context.Context, id int64, in Input) (Budget, error) {
	current, err := s.Get(ctx, id)
	if err != nil {
		return Budget{}, err
	}
	next, err := s.compose(ctx, in)
	if err != nil {
		return Budget{}, err
	}
	next.ID, next.Owner = current.ID, current.Owner
	return s.repo.Update(ctx, next)
}

// Delete removes a budget.
func (s *Service) Delete(ctx context.Context, id int64) error {
	if id <= 0 {
		return fmt.Errorf("budget id: %w", shared.ErrValidation)
	}
	return s.repo.Delete(ctx, id)
}

func (s *Service) compose(ctx context.Context, in Input) (Budget, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Notes = strings.TrimSpace(in.Notes)
	if err := shared.ValidateStruct(in); err != nil {
		return Budget{}, err
	}
	for i, line := range in.Lines {
		if line.UnitPrice.IsNegative() {
			return Budget{}, fmt.Errorf("line %d unit price negative: %w", i+1, shared.ErrValidation)
		}
		item, err := s.items.GetItem(ctx, line.ItemID)
		if err != nil {
			return Budget{}, fmt.Errorf("line %d: %w", i+1, err)
		}
		if !item.Active {
			return Budget{}, fmt.Errorf("line %d item %d inactive: %w", i+1, item.ID, shared.ErrNotFound)
		}
		supplier, err := s.suppliers.Get(ctx, line.SupplierID)
		if err != nil {
			return Budget{}, fmt.Errorf("line %d: %w", i+1, err)
		}
		if !supplier.Active {
			return Budget{}, fmt.Errorf("line %d supplier %d inactive: %w", i+1, supplier.ID, shared.ErrValidation)
		}
	}
	lines, total := Compose(in.Lines)
	return Budget{Name: in.Name, Notes: in.Notes, Lines: lines, Total: total}, nil
}
