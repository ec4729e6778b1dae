package checkout

import (
	"context"

	"github.com/danribes/mystic-ecom-cloud-sub002/internal/cart"
	"github.com/danribes/mystic-ecom-cloud-sub002/internal/domain"
	"github.com/danribes/mystic-ecom-cloud-sub002/internal/payment"
)

// mockOrders records which transitions the processor asked for.
type mockOrders struct {
	statusCalls  []statusCall
	fulfilled    []int64
	refunded     []int64
	createdWith  []domain.CartItem
	nextOrder    *domain.Order
	createErr    error
	updateErr    error
	fulfillErr   error
	refundErr    error
}

type statusCall struct {
	orderID int64
	status  domain.OrderStatus
}

func (m *mockOrders) CreateOrder(_ context.Context, userID, userEmail string, items []domain.CartItem) (*domain.Order, error) {
	if m.createErr != nil {
		return nil, m.createErr
	}
	m.createdWith = items
	order := m.nextOrder
	if order == nil {
		order = &domain.Order{ID: 1, UserID: userID, UserEmail: userEmail, Status: domain.OrderStatusPending}
	}
	return order, nil
}

func (m *mockOrders) GetOrder(context.Context, int64) (*domain.Order, error) {
	return m.nextOrder, nil
}

func (m *mockOrders) ListUserOrders(context.Context, string) ([]domain.Order, error) {
	return nil, nil
}

func (m *mockOrders) UpdateOrderStatus(_ context.Context, orderID int64, newStatus domain.OrderStatus) (*domain.Order, error) {
	m.statusCalls = append(m.statusCalls, statusCall{orderID: orderID, status: newStatus})
	if m.updateErr != nil {
		return nil, m.updateErr
	}
	return &domain.Order{ID: orderID, Status: newStatus}, nil
}

func (m *mockOrders) FulfillOrder(_ context.Context, orderID int64) (*domain.Order, error) {
	m.fulfilled = append(m.fulfilled, orderID)
	if m.fulfillErr != nil {
		return nil, m.fulfillErr
	}
	return &domain.Order{ID: orderID, Status: domain.OrderStatusCompleted}, nil
}

func (m *mockOrders) RefundOrder(_ context.Context, orderID int64, _ string) (*domain.Order, error) {
	m.refunded = append(m.refunded, orderID)
	if m.refundErr != nil {
		return nil, m.refundErr
	}
	return &domain.Order{ID: orderID, Status: domain.OrderStatusRefunded}, nil
}

// mockGateway skips real verification and hands back a canned event.
type mockGateway struct {
	event      *payment.Event
	verifyErr  error
	session    *payment.CheckoutSession
	sessionErr error
}

func (m *mockGateway) VerifyWebhook([]byte, string) (*payment.Event, error) {
	if m.verifyErr != nil {
		return nil, m.verifyErr
	}
	return m.event, nil
}

func (m *mockGateway) CreateCheckoutSession(context.Context, *domain.Order, payment.SessionOptions) (*payment.CheckoutSession, error) {
	if m.sessionErr != nil {
		return nil, m.sessionErr
	}
	return m.session, nil
}

// mockCarts serves a fixed cart and records clears.
type mockCarts struct {
	cart        *domain.Cart
	validation  *cart.ValidationResult
	clearedFor  []string
}

func (m *mockCarts) GetCart(context.Context, string) (*domain.Cart, error) {
	return m.cart, nil
}

func (m *mockCarts) AddToCart(context.Context, string, domain.ItemType, int64, int) (*domain.Cart, error) {
	return m.cart, nil
}

func (m *mockCarts) UpdateQuantity(context.Context, string, domain.ItemType, int64, int) (*domain.Cart, error) {
	return m.cart, nil
}

func (m *mockCarts) RemoveFromCart(context.Context, string, domain.ItemType, int64) (*domain.Cart, error) {
	return m.cart, nil
}

func (m *mockCarts) ClearCart(_ context.Context, userID string) error {
	m.clearedFor = append(m.clearedFor, userID)
	return nil
}

func (m *mockCarts) ValidateCart(context.Context, string) (*cart.ValidationResult, error) {
	if m.validation != nil {
		return m.validation, nil
	}
	return &cart.ValidationResult{Valid: true, Errors: []string{}}, nil
}

func (m *mockCarts) MergeGuestCart(context.Context, string, string) (*domain.Cart, error) {
	return m.cart, nil
}
