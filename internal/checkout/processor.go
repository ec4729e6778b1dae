package checkout

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/danribes/mystic-ecom-cloud-sub002/internal/domain"
	"github.com/danribes/mystic-ecom-cloud-sub002/internal/order"
	"github.com/danribes/mystic-ecom-cloud-sub002/internal/payment"
	"github.com/danribes/mystic-ecom-cloud-sub002/pkg/logging"
)

// WebhookProcessor turns verified provider events into order transitions.
// Deliveries are at-least-once, so everything downstream of Process must be
// idempotent: repeated status transitions no-op, and fulfillment grants are
// upserts.
type WebhookProcessor struct {
	orders  order.Service
	gateway payment.Gateway
	logger  *zap.Logger
	tracer  trace.Tracer
}

func NewWebhookProcessor(orders order.Service, gateway payment.Gateway, logger *zap.Logger) *WebhookProcessor {
	return &WebhookProcessor{
		orders:  orders,
		gateway: gateway,
		logger:  logger,
		tracer:  otel.Tracer("webhook_processor"),
	}
}

// Process verifies, normalizes and applies one webhook delivery. A returned
// error means the delivery should get a non-2xx response so the provider
// retries; events that are stale, unrecognized or carry no order id resolve
// to logged no-ops instead.
func (p *WebhookProcessor) Process(ctx context.Context, payload []byte, sigHeader string) error {
	ctx, span := p.tracer.Start(ctx, "WebhookProcessor.Process")
	defer span.End()

	event, err := p.gateway.VerifyWebhook(payload, sigHeader)
	if err != nil {
		logging.Warn(
			ctx,
			p.logger,
			"Webhook rejected",
			zap.Error(err),
		)

		return err
	}

	normalized := payment.NormalizeEvent(event)

	span.SetAttributes(
		attribute.String("event_type", normalized.Type),
		attribute.Int64("order_id", normalized.OrderID),
	)

	if normalized.OrderID == 0 {
		logging.Info(
			ctx,
			p.logger,
			"Ignoring webhook event without order reference",
			zap.String("event_type", event.Type),
		)

		return nil
	}

	switch normalized.Status {
	case payment.EventStatusPaid:
		if _, err := p.orders.UpdateOrderStatus(ctx, normalized.OrderID, domain.OrderStatusPaid); err != nil {
			return p.resolve(ctx, normalized, err)
		}
		if _, err := p.orders.FulfillOrder(ctx, normalized.OrderID); err != nil {
			return p.resolve(ctx, normalized, err)
		}

	case payment.EventStatusPaymentFailed:
		if _, err := p.orders.UpdateOrderStatus(ctx, normalized.OrderID, domain.OrderStatusCancelled); err != nil {
			return p.resolve(ctx, normalized, err)
		}

	case payment.EventStatusRefunded:
		if _, err := p.orders.RefundOrder(ctx, normalized.OrderID, "refunded by payment provider"); err != nil {
			return p.resolve(ctx, normalized, err)
		}

	default:
		logging.Info(
			ctx,
			p.logger,
			"Ignoring webhook event type",
			zap.String("event_type", normalized.Type),
		)
	}

	return nil
}

// resolve decides whether a failed transition is worth a provider retry.
// Validation failures mean the event lost a race with a later one (a lagging
// "failed" after completion, a duplicate refund): retrying cannot change the
// outcome, so they are logged and acknowledged. Everything else propagates.
func (p *WebhookProcessor) resolve(ctx context.Context, event payment.NormalizedEvent, err error) error {
	if domain.IsKind(err, domain.KindValidation) {
		logging.Warn(
			ctx,
			p.logger,
			"Webhook event lost transition race, acknowledging",
			zap.String("event_type", event.Type),
			zap.Int64("order_id", event.OrderID),
			zap.Error(err),
		)

		return nil
	}

	logging.Error(
		ctx,
		p.logger,
		"Webhook processing failed",
		zap.String("event_type", event.Type),
		zap.Int64("order_id", event.OrderID),
		zap.Error(err),
	)

	return err
}
