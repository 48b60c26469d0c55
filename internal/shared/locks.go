package shared

import "fmt"

// ItemLockKey names the critical section guarding every stock row of an item.
func ItemLockKey(itemID int64) string {
	return fmt.Sprintf("stock:item:%d:lock", itemID)
}
