// Package locations maintains the registry of storage locations.
package locations

import "time"

// MaxNameLength bounds location names, counted in characters.
const MaxNameLength = 100

// Location is a named place where stock is kept.
type Location struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Active    bool      `json:"active"`
	Owner     string    `json:"owner"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CreateInput describes a new location.
type CreateInput struct {
	Name  string `json:"name" validate:"required,max=100"`
	Owner string `json:"-" validate:"required"`
}

// UpdateInput renames a location.
type UpdateInput struct {
	Name string `json:"name" validate:"required,max=100"`
}

// ListFilter narrows location listings.
type ListFilter struct {
	Owner  string
	Search string
	Active *bool
	Page   int
	Limit  int
}
