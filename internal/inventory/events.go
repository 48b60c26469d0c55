package inventory

import (
	"context"
	"time"

	"github.com/almoxarifado/almoxarifado/internal/notifications"
	"github.com/almoxarifado/almoxarifado/internal/status"
)

// EventMovementApplied names the event published after each committed movement.
const EventMovementApplied = "stock.movement_applied"

// StockEvent describes a committed movement for live subscribers.
type StockEvent struct {
	Type             string                      `json:"type"`
	Movement         Movement                    `json:"movement"`
	ItemName         string                      `json:"item_name"`
	Owner            string                      `json:"owner"`
	LocationQuantity int64                       `json:"location_quantity"`
	Aggregate        int64                       `json:"aggregate"`
	PreviousStatus   status.Status               `json:"previous_status"`
	Status           status.Status               `json:"status"`
	Notification     *notifications.Notification `json:"notification,omitempty"`
	OccurredAt       time.Time                   `json:"occurred_at"`
}

// StatusChanged reports whether the movement moved the item to another class.
func (e StockEvent) StatusChanged() bool {
	return e.PreviousStatus != e.Status
}

// EventPublisher receives committed movements. Publishing happens after the
// transaction commits and the item lock is released; failures never affect
// the movement.
type EventPublisher interface {
	Publish(ctx context.Context, evt StockEvent) error
}

// PublisherFunc adapts a function to EventPublisher.
type PublisherFunc func(ctx context.Context, evt StockEvent) error

// Publish implements EventPublisher.
func (f PublisherFunc) Publish(ctx context.Context, evt StockEvent) error {
	return f(ctx, evt)
}
