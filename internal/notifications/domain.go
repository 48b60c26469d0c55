// Package notifications emits and manages stock status notifications.
package notifications

import (
	"time"

	"github.com/almoxarifado/almoxarifado/internal/status"
)

// Notification is a user-visible message announcing an item's status change.
type Notification struct {
	ID        int64         `json:"id"`
	ItemID    int64         `json:"item_id"`
	Owner     string        `json:"owner"`
	Status    status.Status `json:"status"`
	Message   string        `json:"message"`
	Read      bool          `json:"read"`
	Active    bool          `json:"active"`
	CreatedAt time.Time     `json:"created_at"`
}

// ListFilter narrows notification listings. Owner is mandatory.
type ListFilter struct {
	Owner  string
	Unread bool
	Page   int
	Limit  int
}
