package notifications

import "github.com/almoxarifado/almoxarifado/internal/status"

// Transition describes an item's status before and after a movement.
type Transition struct {
	ItemID   int64
	ItemName string
	Owner    string
	Previous status.Status
	Current  status.Status
	Quantity int64
}

// Engine decides whether a transition produces a notification.
type Engine struct{}

// NewEngine returns an Engine.
func NewEngine() Engine {
	return Engine{}
}

// Evaluate returns the notification to emit for t. It emits iff the status
// class changed; movements within one class produce nothing.
func (Engine) Evaluate(t Transition) (Notification, bool) {
	if t.Previous == t.Current {
		return Notification{}, false
	}
	return Notification{
		ItemID:  t.ItemID,
		Owner:   t.Owner,
		Status:  t.Current,
		Message: status.Message(t.ItemName, t.Quantity, t.Current),
		Active:  true,
	}, true
}
