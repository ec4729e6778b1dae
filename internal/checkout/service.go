// Package checkout ties cart, order and payment together: it turns a
// validated cart into a pending order with a hosted payment session, and it
// drives order state from verified webhook events.
package checkout

import (
	"context"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/danribes/mystic-ecom-cloud-sub002/internal/cart"
	"github.com/danribes/mystic-ecom-cloud-sub002/internal/domain"
	"github.com/danribes/mystic-ecom-cloud-sub002/internal/order"
	"github.com/danribes/mystic-ecom-cloud-sub002/internal/payment"
	"github.com/danribes/mystic-ecom-cloud-sub002/pkg/logging"
)

type CheckoutResult struct {
	OrderID    int64  `json:"order_id"`
	SessionID  string `json:"session_id"`
	SessionURL string `json:"session_url"`
}

type Service struct {
	carts      cart.Service
	orders     order.Service
	gateway    payment.Gateway
	successURL string
	cancelURL  string
	logger     *zap.Logger
	tracer     trace.Tracer
}

func NewService(
	carts cart.Service,
	orders order.Service,
	gateway payment.Gateway,
	successURL, cancelURL string,
	logger *zap.Logger,
) *Service {
	return &Service{
		carts:      carts,
		orders:     orders,
		gateway:    gateway,
		successURL: successURL,
		cancelURL:  cancelURL,
		logger:     logger,
		tracer:     otel.Tracer("checkout_service"),
	}
}

// Checkout validates the cart against current catalog truth, creates the
// order, then asks the gateway for a checkout session. The gateway call
// happens after the order transaction has committed; a database transaction
// is never held open across the network call.
func (s *Service) Checkout(ctx context.Context, userID, userEmail string) (*CheckoutResult, error) {
	ctx, span := s.tracer.Start(ctx, "CheckoutService.Checkout")
	defer span.End()

	span.SetAttributes(attribute.String("user_id", userID))

	validation, err := s.carts.ValidateCart(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !validation.Valid {
		return nil, domain.NewValidationError("cart is no longer valid: %s", strings.Join(validation.Errors, "; "))
	}

	userCart, err := s.carts.GetCart(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(userCart.Items) == 0 {
		return nil, domain.NewValidationError("cart is empty")
	}

	createdOrder, err := s.orders.CreateOrder(ctx, userID, userEmail, userCart.Items)
	if err != nil {
		return nil, err
	}

	session, err := s.gateway.CreateCheckoutSession(ctx, createdOrder, payment.SessionOptions{
		SuccessURL:    s.successURL,
		CancelURL:     s.cancelURL,
		CustomerEmail: userEmail,
	})
	if err != nil {
		// The pending order is unusable without a session; cancel it so it
		// does not linger. Best effort, the error we report is the gateway's.
		if _, cancelErr := s.orders.UpdateOrderStatus(ctx, createdOrder.ID, domain.OrderStatusCancelled); cancelErr != nil {
			logging.Warn(
				ctx,
				s.logger,
				"Failed to cancel order after gateway failure",
				zap.Int64("order_id", createdOrder.ID),
				zap.Error(cancelErr),
			)
		}
		return nil, err
	}

	if _, err := s.orders.UpdateOrderStatus(ctx, createdOrder.ID, domain.OrderStatusPaymentPending); err != nil {
		return nil, err
	}

	if err := s.carts.ClearCart(ctx, userID); err != nil {
		logging.Warn(
			ctx,
			s.logger,
			"Failed to clear cart after checkout",
			zap.String("user_id", userID),
			zap.Error(err),
		)
	}

	logging.Info(
		ctx,
		s.logger,
		"Checkout started",
		zap.Int64("order_id", createdOrder.ID),
		zap.String("session_id", session.ID),
	)

	return &CheckoutResult{
		OrderID:    createdOrder.ID,
		SessionID:  session.ID,
		SessionURL: session.URL,
	}, nil
}
