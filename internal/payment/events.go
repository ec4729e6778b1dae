package payment

import (
	"strconv"
)

// Target statuses a normalized event asks the order pipeline to reach.
type EventStatus string

const (
	EventStatusPaid          EventStatus = "paid"
	EventStatusPaymentFailed EventStatus = "payment_failed"
	EventStatusRefunded      EventStatus = "refunded"
	EventStatusIgnored       EventStatus = "ignored"
)

// NormalizedEvent is the single internal shape every provider event type is
// reduced to. OrderID 0 means the event carries no recoverable order and must
// be ignored by the caller, not treated as an error: the feed regularly
// delivers event types this integration does not care about.
type NormalizedEvent struct {
	Type            string
	OrderID         int64
	PaymentIntentID string
	Amount          int64
	Status          EventStatus
}

// NormalizeEvent reduces heterogeneous provider events to one shape. The
// order id is recovered from client_reference_id first, then metadata; the
// session creation path writes it to both plus the payment-intent metadata,
// so whichever object the event surfaces still carries it.
func NormalizeEvent(event *Event) NormalizedEvent {
	obj := event.Data.Object

	normalized := NormalizedEvent{
		Type:    event.Type,
		OrderID: recoverOrderID(obj),
	}

	switch event.Type {
	case "checkout.session.completed":
		normalized.Status = EventStatusPaid
		normalized.PaymentIntentID = obj.PaymentIntent
		normalized.Amount = obj.AmountTotal

	case "payment_intent.succeeded":
		normalized.Status = EventStatusPaid
		normalized.PaymentIntentID = obj.ID
		normalized.Amount = obj.Amount

	case "payment_intent.payment_failed":
		normalized.Status = EventStatusPaymentFailed
		normalized.PaymentIntentID = obj.ID
		normalized.Amount = obj.Amount

	case "charge.refunded":
		normalized.Status = EventStatusRefunded
		normalized.PaymentIntentID = obj.PaymentIntent
		normalized.Amount = obj.AmountRefunded

	default:
		normalized.Status = EventStatusIgnored
		normalized.OrderID = 0
	}

	return normalized
}

func recoverOrderID(obj EventObject) int64 {
	if obj.ClientReferenceID != "" {
		if id, err := strconv.ParseInt(obj.ClientReferenceID, 10, 64); err == nil {
			return id
		}
	}
	if raw, ok := obj.Metadata["order_id"]; ok {
		if id, err := strconv.ParseInt(raw, 10, 64); err == nil {
			return id
		}
	}
	return 0
}
