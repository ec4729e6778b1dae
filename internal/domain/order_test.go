package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

var allStatuses = []OrderStatus{
	OrderStatusPending,
	OrderStatusPaymentPending,
	OrderStatusPaid,
	OrderStatusProcessing,
	OrderStatusCompleted,
	OrderStatusCancelled,
	OrderStatusRefunded,
}

func TestCanTransition(t *testing.T) {
	allowed := map[OrderStatus][]OrderStatus{
		OrderStatusPending:        {OrderStatusPaymentPending, OrderStatusCancelled},
		OrderStatusPaymentPending: {OrderStatusPaid, OrderStatusCancelled},
		OrderStatusPaid:           {OrderStatusProcessing, OrderStatusCompleted, OrderStatusCancelled},
		OrderStatusProcessing:     {OrderStatusCompleted, OrderStatusCancelled},
		OrderStatusCompleted:      {OrderStatusRefunded},
	}

	// Every pair not in the table must be rejected, including self loops and
	// anything out of a terminal status.
	for _, from := range allStatuses {
		for _, to := range allStatuses {
			want := false
			for _, next := range allowed[from] {
				if next == to {
					want = true
				}
			}

			assert.Equalf(t, want, CanTransition(from, to), "%s -> %s", from, to)
		}
	}
}

func TestCanTransitionRejectsRegression(t *testing.T) {
	assert.False(t, CanTransition(OrderStatusCompleted, OrderStatusPending))
	assert.False(t, CanTransition(OrderStatusCompleted, OrderStatusCancelled))
	assert.False(t, CanTransition(OrderStatusRefunded, OrderStatusCompleted))
	assert.False(t, CanTransition(OrderStatusCancelled, OrderStatusPaid))
}

func TestTransitionSources(t *testing.T) {
	sources := TransitionSources(OrderStatusCancelled)
	assert.ElementsMatch(t, []OrderStatus{
		OrderStatusPending,
		OrderStatusPaymentPending,
		OrderStatusPaid,
		OrderStatusProcessing,
	}, sources)

	assert.ElementsMatch(t, []OrderStatus{OrderStatusCompleted}, TransitionSources(OrderStatusRefunded))
	assert.Empty(t, TransitionSources(OrderStatusPending))
}

func TestParseItemType(t *testing.T) {
	for _, valid := range []string{"course", "event", "digital_product"} {
		got, err := ParseItemType(valid)
		assert.NoError(t, err)
		assert.Equal(t, ItemType(valid), got)
	}

	_, err := ParseItemType("subscription")
	assert.Error(t, err)
	assert.True(t, IsKind(err, KindValidation))
}
