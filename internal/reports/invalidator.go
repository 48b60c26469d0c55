package reports

import (
	"context"

	"github.com/almoxarifado/almoxarifado/internal/inventory"
)

// Invalidator bumps the snapshot cache whenever a movement commits.
type Invalidator struct {
	cache *Cache
}

// NewInvalidator returns an inventory.EventPublisher bound to cache.
func NewInvalidator(cache *Cache) *Invalidator {
	return &Invalidator{cache: cache}
}

// Publish implements inventory.EventPublisher.
func (i *Invalidator) Publish(ctx context.Context, _ inventory.StockEvent) error {
	return i.cache.Bump(ctx)
}
