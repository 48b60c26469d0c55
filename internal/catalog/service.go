package catalog

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"

	"github.com/almoxarifado/almoxarifado/internal/platform/lock"
	"github.com/almoxarifado/almoxarifado/internal/shared"
	"github.com/almoxarifado/almoxarifado/internal/status"
)

// ImageStore persists item images and returns a reference to the stored object.
type ImageStore interface {
	Put(ctx context.Context, key, contentType string, body io.Reader) (string, error)
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// ServiceConfig groups optional collaborators.
type ServiceConfig struct {
	Images      ImageStore
	Audit       AuditPort
	LockTimeout time.Duration
}

// Service coordinates catalog operations.
type Service struct {
	repo        RepositoryPort
	locker      lock.Locker
	images      ImageStore
	audit       AuditPort
	lockTimeout time.Duration
	logger      *slog.Logger
}

// NewService builds Service.
func NewService(repo RepositoryPort, locker lock.Locker, cfg ServiceConfig, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.LockTimeout <= 0 {
		cfg.LockTimeout = 5 * time.Second
	}
	return &Service{
		repo:        repo,
		locker:      locker,
		images:      cfg.Images,
		audit:       cfg.Audit,
		lockTimeout: cfg.LockTimeout,
		logger:      logger,
	}
}

// CreateCategory registers a category.
func (s *Service) CreateCategory(ctx context.Context, input CategoryInput) (Category, error) {
	input.Name = strings.TrimSpace(input.Name)
	input.Owner = strings.TrimSpace(input.Owner)
	if err := shared.ValidateStruct(input); err != nil {
		return Category{}, err
	}
	return s.repo.CreateCategory(ctx, Category{Name: input.Name, Owner: input.Owner})
}

// ListCategories lists categories, optionally for a single owner.
func (s *Service) ListCategories(ctx context.Context, owner string) ([]Category, error) {
	return s.repo.ListCategories(ctx, strings.TrimSpace(owner))
}

// DeleteCategory removes a category that no item references.
func (s *Service) DeleteCategory(ctx context.Context, id int64) error {
	if id <= 0 {
		return fmt.Errorf("category id: %w", shared.ErrValidation)
	}
	if err := s.repo.DeleteCategory(ctx, id); err != nil {
		return err
	}
	s.record(ctx, "category.delete", "category", id, nil)
	return nil
}

// CreateItem adds an item. New items hold no stock and start Unavailable.
func (s *Service) CreateItem(ctx context.Context, owner string, input ItemInput) (Item, error) {
	owner = strings.TrimSpace(owner)
	if owner == "" {
		return Item{}, fmt.Errorf("owner: %w", shared.ErrValidation)
	}
	input, err := s.normalize(ctx, input)
	if err != nil {
		return Item{}, err
	}
	item, err := s.repo.CreateItem(ctx, Item{
		Name:         input.Name,
		CategoryID:   input.CategoryID,
		MinimumStock: input.MinimumStock,
		Description:  input.Description,
		Status:       status.Derive(0, input.MinimumStock),
		Owner:        owner,
	})
	if err != nil {
		return Item{}, err
	}
	s.record(ctx, "item.create", "item", item.ID, map[string]any{"name": item.Name, "minimum_stock": item.MinimumStock})
	return item, nil
}

// GetItem returns an item by id, active or not.
func (s *Service) GetItem(ctx context.Context, id int64) (Item, error) {
	if id <= 0 {
		return Item{}, fmt.Errorf("item id: %w", shared.ErrValidation)
	}
	return s.repo.GetItem(ctx, id)
}

// ListItems returns a page of items with the total count.
func (s *Service) ListItems(ctx context.Context, filter ItemFilter) ([]Item, int, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, 0, fmt.Errorf("status %q: %w", filter.Status, shared.ErrValidation)
	}
	filter.Search = strings.TrimSpace(filter.Search)
	filter.Page, filter.Limit = shared.NormalizePage(filter.Page, filter.Limit)
	return s.repo.ListItems(ctx, filter)
}

// UpdateItem replaces the editable fields of an active item. It runs under the
// item lock so the stored status is re-derived from the aggregate in the same
// transaction as the new minimum.
func (s *Service) UpdateItem(ctx context.Context, id int64, input ItemInput) (Item, error) {
	if id <= 0 {
		return Item{}, fmt.Errorf("item id: %w", shared.ErrValidation)
	}
	input, err := s.normalize(ctx, input)
	if err != nil {
		return Item{}, err
	}

	release, err := s.acquire(ctx, id)
	if err != nil {
		return Item{}, err
	}
	defer release()

	var updated Item
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetItemForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if !current.Active {
			return fmt.Errorf("item %d is inactive: %w", id, shared.ErrNotFound)
		}
		aggregate, err := tx.Aggregate(ctx, id)
		if err != nil {
			return err
		}
		current.Name = input.Name
		current.CategoryID = input.CategoryID
		current.MinimumStock = input.MinimumStock
		current.Description = input.Description
		current.Status = status.Derive(aggregate, input.MinimumStock)
		updated, err = tx.UpdateItem(ctx, current)
		return err
	})
	if err != nil {
		return Item{}, err
	}
	s.record(ctx, "item.update", "item", id, map[string]any{"minimum_stock": updated.MinimumStock, "status": updated.Status})
	return updated, nil
}

// DeactivateItem removes an item from use. Its history is kept and further
// movements are refused.
func (s *Service) DeactivateItem(ctx context.Context, id int64) (Item, error) {
	item, err := s.GetItem(ctx, id)
	if err != nil {
		return Item{}, err
	}
	if !item.Active {
		return item, nil
	}
	item, err = s.repo.SetItemActive(ctx, id, false)
	if err != nil {
		return Item{}, err
	}
	s.record(ctx, "item.deactivate", "item", id, nil)
	return item, nil
}

// SetImage stores an uploaded image for an active item and records its reference.
func (s *Service) SetImage(ctx context.Context, id int64, contentType string, body io.Reader) (Item, error) {
	if s.images == nil {
		return Item{}, errors.New("catalog: image storage not configured")
	}
	item, err := s.GetItem(ctx, id)
	if err != nil {
		return Item{}, err
	}
	if !item.Active {
		return Item{}, fmt.Errorf("item %d is inactive: %w", id, shared.ErrNotFound)
	}
	data, err := io.ReadAll(io.LimitReader(body, MaxImageBytes+1))
	if err != nil {
		return Item{}, fmt.Errorf("read image: %w", err)
	}
	if len(data) == 0 || len(data) > MaxImageBytes {
		return Item{}, fmt.Errorf("image must be between 1 byte and %d bytes: %w", MaxImageBytes, shared.ErrValidation)
	}
	detected := mimetype.Detect(data)
	if !strings.HasPrefix(detected.String(), "image/") {
		return Item{}, fmt.Errorf("unsupported image type %s: %w", detected.String(), shared.ErrValidation)
	}
	if contentType != "" && !strings.HasPrefix(contentType, "image/") {
		return Item{}, fmt.Errorf("content type %s: %w", contentType, shared.ErrValidation)
	}
	key := fmt.Sprintf("items/%d/%s%s", id, uuid.NewString(), detected.Extension())
	ref, err := s.images.Put(ctx, key, detected.String(), bytes.NewReader(data))
	if err != nil {
		return Item{}, fmt.Errorf("store image: %w", err)
	}
	item, err = s.repo.SetImageRef(ctx, id, ref)
	if err != nil {
		return Item{}, err
	}
	s.record(ctx, "item.image", "item", id, map[string]any{"image_ref": ref})
	return item, nil
}

func (s *Service) normalize(ctx context.Context, input ItemInput) (ItemInput, error) {
	input.Name = strings.TrimSpace(input.Name)
	input.Description = strings.TrimSpace(input.Description)
	if err := shared.ValidateStruct(input); err != nil {
		return ItemInput{}, err
	}
	if input.CategoryID != nil {
		if _, err := s.repo.GetCategory(ctx, *input.CategoryID); err != nil {
			return ItemInput{}, err
		}
	}
	return input, nil
}

func (s *Service) acquire(ctx context.Context, itemID int64) (func(), error) {
	lockCtx, cancel := context.WithTimeout(ctx, s.lockTimeout)
	defer cancel()
	return s.locker.Acquire(lockCtx, shared.ItemLockKey(itemID))
}

func (s *Service) record(ctx context.Context, action, entity string, id int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	err := s.audit.Record(ctx, shared.AuditLog{
		Actor:    shared.ActorFromContext(ctx),
		Action:   action,
		Entity:   entity,
		EntityID: strconv.FormatInt(id, 10),
		Meta:     meta,
	})
	if err != nil {
		s.logger.Warn("audit record failed", slog.String("action", action), slog.Any("error", err))
	}
}
