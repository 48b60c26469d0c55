package locations

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/almoxarifado/almoxarifado/internal/shared"
)

// AuditPort records registry mutations.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service manages the location registry.
type Service struct {
	repo   Repository
	audit  AuditPort
	logger *slog.Logger
}

// NewService builds Service. audit may be nil.
func NewService(repo Repository, audit AuditPort, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, audit: audit, logger: logger}
}

// Create registers a new active location owned by input.Owner.
func (s *Service) Create(ctx context.Context, input CreateInput) (Location, error) {
	input.Name = strings.TrimSpace(input.Name)
	input.Owner = strings.TrimSpace(input.Owner)
	if err := shared.ValidateStruct(input); err != nil {
		return Location{}, err
	}
	loc, err := s.repo.Create(ctx, Location{Name: input.Name, Owner: input.Owner})
	if err != nil {
		return Location{}, err
	}
	s.record(ctx, "location.create", loc)
	return loc, nil
}

// Get returns a location by id, active or not.
func (s *Service) Get(ctx context.Context, id int64) (Location, error) {
	if id <= 0 {
		return Location{}, fmt.Errorf("location id: %w", shared.ErrValidation)
	}
	return s.repo.Get(ctx, id)
}

// List returns a page of locations and the total count.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]Location, int, error) {
	filter.Search = strings.TrimSpace(filter.Search)
	filter.Page, filter.Limit = shared.NormalizePage(filter.Page, filter.Limit)
	return s.repo.List(ctx, filter)
}

// Update renames a location.
func (s *Service) Update(ctx context.Context, id int64, input UpdateInput) (Location, error) {
	if id <= 0 {
		return Location{}, fmt.Errorf("location id: %w", shared.ErrValidation)
	}
	input.Name = strings.TrimSpace(input.Name)
	if err := shared.ValidateStruct(input); err != nil {
		return Location{}, err
	}
	loc, err := s.repo.Rename(ctx, id, input.Name)
	if err != nil {
		return Location{}, err
	}
	s.record(ctx, "location.update", loc)
	return loc, nil
}

// Deactivate soft-deletes a location. Stock and history stay attached to it.
// Deactivating an inactive location is a no-op.
func (s *Service) Deactivate(ctx context.Context, id int64) (Location, error) {
	return s.setActive(ctx, id, false)
}

// Activate reopens a location for movements.
func (s *Service) Activate(ctx context.Context, id int64) (Location, error) {
	return s.setActive(ctx, id, true)
}

func (s *Service) setActive(ctx context.Context, id int64, active bool) (Location, error) {
	if id <= 0 {
		return Location{}, fmt.Errorf("location id: %w", shared.ErrValidation)
	}
	current, err := s.repo.Get(ctx, id)
	if err != nil {
		return Location{}, err
	}
	if current.Active == active {
		return current, nil
	}
	loc, err := s.repo.SetActive(ctx, id, active)
	if err != nil {
		return Location{}, err
	}
	action := "location.deactivate"
	if active {
		action = "location.activate"
	}
	s.record(ctx, action, loc)
	return loc, nil
}

func (s *Service) record(ctx context.Context, action string, loc Location) {
	if s.audit == nil {
		return
	}
	err := s.audit.Record(ctx, shared.AuditLog{
		Actor:    shared.ActorFromContext(ctx),
		Action:   action,
		Entity:   "location",
		EntityID: strconv.FormatInt(loc.ID, 10),
		Meta:     map[string]any{"name": loc.Name, "active": loc.Active},
	})
	if err != nil {
		s.logger.Warn("audit record failed", slog.String("action", action), slog.Any("error", err))
	}
}
