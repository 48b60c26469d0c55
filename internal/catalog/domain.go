// Package catalog manages categories and the item catalog. Item status is
// derived from stock and is never accepted from clients.
package catalog

import (
	"time"

	"github.com/almoxarifado/almoxarifado/internal/status"
)

const (
	// MaxNameLength bounds item and category names.
	MaxNameLength = 100
	// MaxDescriptionLength bounds item descriptions.
	MaxDescriptionLength = 200
	// MaxMinimumStock is the largest accepted minimum threshold.
	MaxMinimumStock = 999_999_999
	// MaxImageBytes caps uploaded item images.
	MaxImageBytes = 5 << 20
)

// Category groups items for browsing and reporting.
type Category struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Owner     string    `json:"owner"`
	CreatedAt time.Time `json:"created_at"`
}

// Item is a catalogue entry whose stock is tracked per location.
type Item struct {
	ID           int64         `json:"id"`
	Name         string        `json:"name"`
	CategoryID   *int64        `json:"category_id,omitempty"`
	MinimumStock int64         `json:"minimum_stock"`
	Description  string        `json:"description"`
	ImageRef     string        `json:"image_ref,omitempty"`
	Status       status.Status `json:"status"`
	Active       bool          `json:"active"`
	Owner        string        `json:"owner"`
	CreatedAt    time.Time     `json:"created_at"`
	UpdatedAt    time.Time     `json:"updated_at"`
}

// CategoryInput creates a category.
type CategoryInput struct {
	Name  string `json:"name" validate:"required,max=100"`
	Owner string `json:"-" validate:"required"`
}

// ItemInput carries the client-editable item fields.
type ItemInput struct {
	Name         string `json:"name" validate:"required,max=100"`
	CategoryID   *int64 `json:"category_id" validate:"omitempty,gt=0"`
	MinimumStock int64  `json:"minimum_stock" validate:"gte=0,lte=999999999"`
	Description  string `json:"description" validate:"max=200"`
}

// ItemFilter narrows item listings.
type ItemFilter struct {
	Owner      string
	CategoryID *int64
	Status     status.Status
	Search     string
	Active     *bool
	Page       int
	Limit      int
}
