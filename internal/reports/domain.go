// Package reports serves read-only stock and movement reports. It never
// mutates the ledger.
package reports

import (
	"time"

	"github.com/almoxarifado/almoxarifado/internal/inventory"
	"github.com/almoxarifado/almoxarifado/internal/shared"
	"github.com/almoxarifado/almoxarifado/internal/status"
)

// SummaryWindow is how far back Summary counts movements.
const SummaryWindow = 30 * 24 * time.Hour

// StockFilter narrows the stock report.
type StockFilter struct {
	Owner      string
	CategoryID *int64
	Status     status.Status
	MinQty     *int64
	MaxQty     *int64
	Search     string
	Page       int
	Limit      int
}

// LocationQuantity is one location's share of an item's stock.
type LocationQuantity struct {
	LocationID int64  `json:"location_id"`
	Name       string `json:"name"`
	Quantity   int64  `json:"quantity"`
}

// StockRow is one item in the stock report.
type StockRow struct {
	ItemID       int64              `json:"item_id"`
	Name         string             `json:"name"`
	Category     string             `json:"category,omitempty"`
	MinimumStock int64              `json:"minimum_stock"`
	Aggregate    int64              `json:"aggregate"`
	Status       status.Status      `json:"status"`
	Locations    []LocationQuantity `json:"locations"`
}

// StockReport is a page of stock rows.
type StockReport struct {
	Rows       []StockRow        `json:"rows"`
	Pagination shared.Pagination `json:"pagination"`
}

// MovementFilter narrows the movement report.
type MovementFilter struct {
	Owner      string
	ItemID     *int64
	LocationID *int64
	Type       inventory.MovementType
	From       time.Time
	To         time.Time
	Page       int
	Limit      int
}

// MovementRow is one movement joined with names.
type MovementRow struct {
	inventory.Movement
	ItemName     string `json:"item_name"`
	LocationName string `json:"location_name"`
}

// MovementTotals sums quantities by direction.
type MovementTotals struct {
	Entries  int64 `json:"entries"`
	Exits    int64 `json:"exits"`
	TotalIn  int64 `json:"total_in"`
	TotalOut int64 `json:"total_out"`
}

// MovementReport is a page of movements plus totals over the whole filter.
type MovementReport struct {
	Rows       []MovementRow     `json:"rows"`
	Totals     MovementTotals    `json:"totals"`
	Pagination shared.Pagination `json:"pagination"`
}

// Summary is the dashboard overview.
type Summary struct {
	ByStatus       map[status.Status]int `json:"by_status"`
	Items          int                   `json:"items"`
	Locations      int                   `json:"locations"`
	LastThirtyDays MovementTotals        `json:"last_thirty_days"`
	UnreadAlerts   int                   `json:"unread_alerts"`
	GeneratedAt    time.Time             `json:"generated_at"`
}
