// Package suppliers keeps the supplier registry used when composing budgets.
package suppliers

import "time"

// Supplier is a vendor that can quote items.
type Supplier struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email,omitempty"`
	Phone     string    `json:"phone,omitempty"`
	Active    bool      `json:"active"`
	Owner     string    `json:"owner"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Input carries the editable supplier fields.
type Input struct {
	Name  string `json:"name" validate:"required,max=100"`
	Email string `json:"email" validate:"omitempty,email,max=200"`
	Phone string `json:"phone" validate:"omitempty,max=30"`
}

// ListFilter narrows supplier listings.
type ListFilter struct {
	Owner  string
	Search string
	Active *bool
	Page   int
	Limit  int
}
