package inventory

import (
	"fmt"
	"time"

	"github.com/almoxarifado/almoxarifado/internal/notifications"
	"github.com/almoxarifado/almoxarifado/internal/shared"
	"github.com/almoxarifado/almoxarifado/internal/status"
)

// MovementType enumerates supported stock movements.
type MovementType string

const (
	// MovementEntry adds stock at a location.
	MovementEntry MovementType = "ENTRY"
	// MovementExit removes stock from a location.
	MovementExit MovementType = "EXIT"
)

const (
	// MinQuantity is the smallest accepted movement quantity.
	MinQuantity = 1
	// MaxQuantity is the largest accepted movement quantity.
	MaxQuantity = 999_999_999
)

// Valid reports whether t is a known movement type.
func (t MovementType) Valid() bool {
	return t == MovementEntry || t == MovementExit
}

// Delta converts a positive quantity into the signed change it applies.
func (t MovementType) Delta(quantity int64) int64 {
	if t == MovementExit {
		return -quantity
	}
	return quantity
}

// StockEntry is the quantity on hand of one item at one location.
type StockEntry struct {
	ItemID     int64     `json:"item_id"`
	LocationID int64     `json:"location_id"`
	Quantity   int64     `json:"quantity"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Movement is an immutable record of one accepted entry or exit.
type Movement struct {
	ID             int64        `json:"id"`
	Type           MovementType `json:"type"`
	ItemID         int64        `json:"item_id"`
	LocationID     int64        `json:"location_id"`
	Quantity       int64        `json:"quantity"`
	QuantityBefore int64        `json:"quantity_before"`
	QuantityAfter  int64        `json:"quantity_after"`
	Actor          string       `json:"actor"`
	Note           string       `json:"note,omitempty"`
	CreatedAt      time.Time    `json:"created_at"`
}

// MovementRequest is the typed input of ProcessMovement.
type MovementRequest struct {
	Type           MovementType
	ItemID         int64
	LocationID     int64
	Quantity       int64
	Actor          string
	Note           string
	IdempotencyKey string
}

// Validate checks the request shape. It runs before any lock is taken.
func (r MovementRequest) Validate() error {
	switch {
	case !r.Type.Valid():
		return fmt.Errorf("movement type %q: %w", r.Type, shared.ErrValidation)
	case r.ItemID <= 0:
		return fmt.Errorf("item_id must be positive: %w", shared.ErrValidation)
	case r.LocationID <= 0:
		return fmt.Errorf("location_id must be positive: %w", shared.ErrValidation)
	case r.Quantity < MinQuantity || r.Quantity > MaxQuantity:
		return fmt.Errorf("quantity must be between %d and %d: %w", MinQuantity, MaxQuantity, shared.ErrValidation)
	case r.Actor == "":
		return shared.ErrMissingActor
	case len([]rune(r.Note)) > 200:
		return fmt.Errorf("note too long: %w", shared.ErrValidation)
	}
	return nil
}

// MovementResult is returned synchronously so callers need not re-query.
type MovementResult struct {
	Movement         Movement                    `json:"movement"`
	LocationQuantity int64                       `json:"location_quantity"`
	Aggregate        int64                       `json:"aggregate"`
	PreviousStatus   status.Status               `json:"previous_status"`
	Status           status.Status               `json:"status"`
	Notification     *notifications.Notification `json:"notification,omitempty"`
}

// ItemState is the slice of an item the movement processor needs.
type ItemState struct {
	ID           int64
	Name         string
	MinimumStock int64
	Status       status.Status
	Active       bool
	Owner        string
}

// LocationState is the slice of a location the movement processor needs.
type LocationState struct {
	ID     int64
	Active bool
}

// ItemStock is the per-location breakdown of an item's stock.
type ItemStock struct {
	ItemID       int64         `json:"item_id"`
	Name         string        `json:"name"`
	MinimumStock int64         `json:"minimum_stock"`
	Aggregate    int64         `json:"aggregate"`
	Status       status.Status `json:"status"`
	Locations    []StockEntry  `json:"locations"`
}

// MovementFilter narrows movement log reads.
type MovementFilter struct {
	ItemID     *int64
	LocationID *int64
	Type       MovementType
	From       time.Time
	To         time.Time
	Page       int
	Limit      int
}

// Drift is a stock row that disagrees with the movement log.
type Drift struct {
	ItemID     int64 `json:"item_id"`
	LocationID int64 `json:"location_id"`
	Recorded   int64 `json:"recorded"`
	Replayed   int64 `json:"replayed"`
}

// ItemAggregate pairs an item's stored status with its current aggregate.
type ItemAggregate struct {
	ItemID       int64         `json:"item_id"`
	MinimumStock int64         `json:"minimum_stock"`
	Stored       status.Status `json:"stored"`
	Aggregate    int64         `json:"aggregate"`
}

// ReconcileReport summarises a ledger reconciliation run.
type ReconcileReport struct {
	CheckedAt   time.Time       `json:"checked_at"`
	StockDrift  []Drift         `json:"stock_drift"`
	StatusDrift []ItemAggregate `json:"status_drift"`
	Repaired    int             `json:"repaired"`
	Failed      int             `json:"failed"`
}
