package notifications

import (
	"context"
	"fmt"
	"strings"

	"github.com/almoxarifado/almoxarifado/internal/shared"
)

// Service exposes per-owner notification reads and mutations. Every mutation
// is idempotent.
type Service struct {
	repo Repository
}

// NewService builds Service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// List returns the owner's active notifications, newest first.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]Notification, int, error) {
	filter.Owner = strings.TrimSpace(filter.Owner)
	if filter.Owner == "" {
		return nil, 0, shared.ErrMissingActor
	}
	filter.Page, filter.Limit = shared.NormalizePage(filter.Page, filter.Limit)
	return s.repo.List(ctx, filter)
}

// UnreadCount counts the owner's active unread notifications.
func (s *Service) UnreadCount(ctx context.Context, owner string) (int, error) {
	if strings.TrimSpace(owner) == "" {
		return 0, shared.ErrMissingActor
	}
	return s.repo.UnreadCount(ctx, owner)
}

// MarkRead flags one notification read. Repeating it is a no-op.
func (s *Service) MarkRead(ctx context.Context, owner string, id int64) error {
	if err := check(owner, id); err != nil {
		return err
	}
	return s.repo.MarkRead(ctx, owner, id)
}

// MarkAllRead flags all of the owner's notifications read and reports how many changed.
func (s *Service) MarkAllRead(ctx context.Context, owner string) (int64, error) {
	if strings.TrimSpace(owner) == "" {
		return 0, shared.ErrMissingActor
	}
	return s.repo.MarkAllRead(ctx, owner)
}

// Deactivate soft-deletes a notification. Repeating it is a no-op.
func (s *Service) Deactivate(ctx context.Context, owner string, id int64) error {
	if err := check(owner, id); err != nil {
		return err
	}
	return s.repo.Deactivate(ctx, owner, id)
}

func check(owner string, id int64) error {
	if strings.TrimSpace(owner) == "" {
		return shared.ErrMissingActor
	}
	if id <= 0 {
		return fmt.Errorf("notification id: %w", shared.ErrValidation)
	}
	return nil
}
