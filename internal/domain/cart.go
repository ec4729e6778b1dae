package domain

import "time"

// ItemType discriminates which catalog table a cart or order line references.
type ItemType string

const (
	ItemTypeCourse         ItemType = "course"
	ItemTypeEvent          ItemType = "event"
	ItemTypeDigitalProduct ItemType = "digital_product"
)

func ParseItemType(s string) (ItemType, error) {
	switch ItemType(s) {
	case ItemTypeCourse, ItemTypeEvent, ItemTypeDigitalProduct:
		return ItemType(s), nil
	}
	return "", NewValidationError("unknown item type %q", s)
}

// CartItem caches the catalog title and price as seen at add-time. Prices in
// minor currency units (cents).
type CartItem struct {
	ItemType  ItemType `json:"item_type"`
	ItemID    int64    `json:"item_id"`
	ItemTitle string   `json:"item_title"`
	Price     int64    `json:"price"`
	Quantity  int      `json:"quantity"`
}

// Cart is ephemeral per-user state; losing it on expiry is accepted.
// Invariant: Subtotal + Tax == Total after every mutation, and at most one
// line per (ItemType, ItemID) pair.
type Cart struct {
	UserID    string     `json:"user_id"`
	Items     []CartItem `json:"items"`
	Subtotal  int64      `json:"subtotal"`
	Tax       int64      `json:"tax"`
	Total     int64      `json:"total"`
	ItemCount int        `json:"item_count"`
	UpdatedAt time.Time  `json:"updated_at"`
}

func NewCart(userID string) *Cart {
	return &Cart{UserID: userID, Items: []CartItem{}}
}

// FindItem returns the index of the line matching (itemType, itemID), or -1.
func (c *Cart) FindItem(itemType ItemType, itemID int64) int {
	for i, item := range c.Items {
		if item.ItemType == itemType && item.ItemID == itemID {
			return i
		}
	}
	return -1
}
