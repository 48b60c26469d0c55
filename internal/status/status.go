// Package status holds the derived stock status rule shared by the catalog,
// the movement processor and the notification engine.
package status

import (
	"fmt"
	"strings"
)

// Status classifies an item's total stock against its minimum threshold.
type Status string

const (
	// InStock means the aggregate is above the minimum threshold.
	InStock Status = "IN_STOCK"
	// LowStock means the aggregate is positive and at or below the threshold.
	LowStock Status = "LOW_STOCK"
	// Unavailable means nothing is held anywhere.
	Unavailable Status = "UNAVAILABLE"
)

// Derive computes the status for an aggregate quantity. The low-stock boundary
// is inclusive, so a zero minimum makes LowStock unreachable.
func Derive(total, minimum int64) Status {
	switch {
	case total <= 0:
		return Unavailable
	case total <= minimum:
		return LowStock
	default:
		return InStock
	}
}

// Valid reports whether s is one of the known classes.
func (s Status) Valid() bool {
	switch s {
	case InStock, LowStock, Unavailable:
		return true
	}
	return false
}

// Parse converts user input (case-insensitive) into a Status.
func Parse(raw string) (Status, error) {
	s := Status(strings.ToUpper(strings.TrimSpace(raw)))
	if !s.Valid() {
		return "", fmt.Errorf("status: unknown value %q", raw)
	}
	return s, nil
}

// Message renders the notification text announcing a transition into s.
func Message(name string, qty int64, s Status) string {
	switch s {
	case InStock:
		return fmt.Sprintf("%s está em estoque (%d unidades)", name, qty)
	case LowStock:
		return fmt.Sprintf("%s está com estoque baixo (%d unidades)", name, qty)
	default:
		return fmt.Sprintf("%s está indisponível (%d unidades)", name, qty)
	}
}
