package domain

import "time"

type OrderStatus string

const (
	OrderStatusPending        OrderStatus = "pending"
	OrderStatusPaymentPending OrderStatus = "payment_pending"
	OrderStatusPaid           OrderStatus = "paid"
	OrderStatusProcessing     OrderStatus = "processing"
	OrderStatusCompleted      OrderStatus = "completed"
	OrderStatusCancelled      OrderStatus = "cancelled"
	OrderStatusRefunded       OrderStatus = "refunded"
)

// allowedTransitions is the single source of truth for the order lifecycle.
// cancelled and refunded are terminal. Every status write goes through
// CanTransition; there is no other legal way to change an order's status.
var allowedTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending:        {OrderStatusPaymentPending, OrderStatusCancelled},
	OrderStatusPaymentPending: {OrderStatusPaid, OrderStatusCancelled},
	OrderStatusPaid:           {OrderStatusProcessing, OrderStatusCompleted, OrderStatusCancelled},
	OrderStatusProcessing:     {OrderStatusCompleted, OrderStatusCancelled},
	OrderStatusCompleted:      {OrderStatusRefunded},
	OrderStatusCancelled:      {},
	OrderStatusRefunded:       {},
}

func CanTransition(from, to OrderStatus) bool {
	for _, next := range allowedTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// TransitionSources returns every status from which target is reachable.
// Used for conditional status updates that must not race concurrent webhooks.
func TransitionSources(target OrderStatus) []OrderStatus {
	var sources []OrderStatus
	for from, nexts := range allowedTransitions {
		for _, next := range nexts {
			if next == target {
				sources = append(sources, from)
			}
		}
	}
	return sources
}

// OrderItem snapshots title and price at order time; later catalog edits must
// not alter historical orders.
type OrderItem struct {
	ID        int64    `db:"id"`
	OrderID   int64    `db:"order_id"`
	ItemType  ItemType `db:"item_type"`
	ItemID    int64    `db:"item_id"`
	ItemTitle string   `db:"item_title"`
	Price     int64    `db:"price"`
	Quantity  int      `db:"quantity"`
}

// Order is a financial record: never hard-deleted, refund is a status.
// A committed order always has at least one item.
type Order struct {
	ID          int64       `db:"id"`
	UserID      string      `db:"user_id"`
	UserEmail   string      `db:"user_email"`
	Status      OrderStatus `db:"status"`
	Subtotal    int64       `db:"subtotal"`
	Tax         int64       `db:"tax"`
	Total       int64       `db:"total"`
	Items       []OrderItem `db:"items"`
	CreatedAt   time.Time   `db:"created_at"`
	UpdatedAt   time.Time   `db:"updated_at"`
	CompletedAt *time.Time  `db:"completed_at"`
}
