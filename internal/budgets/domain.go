// Package budgets composes purchase budgets from catalog items and supplier quotes.
// Budgets are read-mostly documents and never touch the stock ledger.
package budgets

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	// MaxLines caps the number of lines per budget.
	MaxLines = 200
	// MaxQuantity bounds the quantity of a single line.
	MaxQuantity = 999_999_999
	// Places is the number of decimal places kept for money.
	Places = 2
)

// Line is one quoted item of a budget.
type Line struct {
	ItemID     int64           `json:"item_id"`
	SupplierID int64           `json:"supplier_id"`
	Quantity   int64           `json:"quantity"`
	UnitPrice  decimal.Decimal `json:"unit_price"`
	LineTotal  decimal.Decimal `json:"line_total"`
}

// Budget groups lines under a name for one owner.
type Budget struct {
	ID        int64           `json:"id"`
	Name      string          `json:"name"`
	Owner     string          `json:"owner"`
	Notes     string          `json:"notes,omitempty"`
	Lines     []Line          `json:"lines"`
	Total     decimal.Decimal `json:"total"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// LineInput is a requested budget line.
type LineInput struct {
	ItemID     int64           `json:"item_id" validate:"required,gt=0"`
	SupplierID int64           `json:"supplier_id" validate:"required,gt=0"`
	Quantity   int64           `json:"quantity" validate:"gte=1,lte=999999999"`
	UnitPrice  decimal.Decimal `json:"unit_price"`
}

// Input is the full editable content of a budget.
type Input struct {
	Name  string      `json:"name" validate:"required,max=100"`
	Notes string      `json:"notes" validate:"max=500"`
	Lines []LineInput `json:"lines" validate:"required,min=1,max=200,dive"`
}

// ListFilter narrows budget listings.
type ListFilter struct {
	Owner  string
	Search string
	Page   int
	Limit  int
}

// Summary is the listing projection of a budget.
type Summary struct {
	ID        int64           `json:"id"`
	Name      string          `json:"name"`
	Owner     string          `json:"owner"`
	LineCount int             `json:"line_count"`
	Total     decimal.Decimal `json:"total"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// Compose prices the lines and returns them with the rounded total.
func Compose(inputs []LineInput) ([]Line, decimal.Decimal) {
	lines := make([]Line, 0, len(inputs))
	total := decimal.Zero
	for _, in := range inputs {
		price := in.UnitPrice.Round(Places)
		lineTotal := price.Mul(decimal.NewFromInt(in.Quantity)).Round(Places)
		lines = append(lines, Line{
			ItemID:     in.ItemID,
			SupplierID: in.SupplierID,
			Quantity:   in.Quantity,
			UnitPrice:  price,
			LineTotal:  lineTotal,
		})
		total = total.Add(lineTotal)
	}
	return lines, total.Round(Places)
}
