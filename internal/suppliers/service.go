package suppliers

import (
	"context"
	"fmt"
	"strings"

	"github.com/almoxarifado/almoxarifado/internal/shared"
)

// Service manages suppliers.
type Service struct {
	repo Repository
}

// NewService builds Service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func normalize(in Input) (Input, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.Phone = strings.TrimSpace(in.Phone)
	return in, shared.ValidateStruct(in)
}

// Create registers a supplier for owner.
func (s *Service) Create(ctx context.Context, owner string, in Input) (Supplier, error) {
	if strings.TrimSpace(owner) == "" {
		return Supplier{}, shared.ErrMissingActor
	}
	in, err := normalize(in)
	if err != nil {
		return Supplier{}, err
	}
	return s.repo.Create(ctx, Supplier{Name: in.Name, Email: in.Email, Phone: in.Phone, Owner: owner})
}

// Get returns a supplier.
func (s *Service) Get(ctx context.Context, id int64) (Supplier, error) {
	if id <= 0 {
		return Supplier{}, fmt.Errorf("supplier id: %w", shared.ErrValidation)
	}
	return s.repo.Get(ctx, id)
}

// List returns a page of suppliers.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]Supplier, int, error) {
	filter.Search = strings.TrimSpace(filter.Search)
	filter.Page, filter.Limit = shared.NormalizePage(filter.Page, filter.Limit)
	return s.repo.List(ctx, filter)
}

// Update replaces the editable fields.
func (s *Service) Update(ctx context.Context, id int64, in Input) (Supplier, error) {
	current, err := s.Get(ctx, id)
	if err != nil {
		return Supplier{}, err
	}
	in, err = normalize(in)
	if err != nil {
		return Supplier{}, err
	}
	current.Name, current.Email, current.Phone = in.Name, in.Email, in.Phone
	return s.repo.Update(ctx, current)
}

// Deactivate hides a supplier from new budgets. Existing budgets keep it.
func (s *Service) Deactivate(ctx context.Context, id int64) (Supplier, error) {
	current, err := s.Get(ctx, id)
	if err != nil {
		return Supplier{}, err
	}
	if !current.Active {
		return current, nil
	}
	return s.repo.SetActive(ctx, id, false)
}
