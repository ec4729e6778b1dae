// Package payment adapts the hosted-checkout payment provider. The provider
// is a black box: the rest of the system only creates checkout sessions and
// consumes verified webhook events through this package.
package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/danribes/mystic-ecom-cloud-sub002/internal/domain"
	"github.com/danribes/mystic-ecom-cloud-sub002/pkg/config"
	"github.com/danribes/mystic-ecom-cloud-sub002/pkg/logging"
)

// CheckoutSession is the provider-hosted payment page for one order.
type CheckoutSession struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

type SessionOptions struct {
	SuccessURL    string
	CancelURL     string
	CustomerEmail string
}

type Gateway interface {
	CreateCheckoutSession(ctx context.Context, order *domain.Order, opts SessionOptions) (*CheckoutSession, error)
	VerifyWebhook(payload []byte, sigHeader string) (*Event, error)
}

type Client struct {
	apiBase       string
	secretKey     string
	webhookSecret string
	httpClient    *http.Client
	cb            *gobreaker.CircuitBreaker
	logger        *zap.Logger
	tracer        trace.Tracer
	now           func() time.Time
}

func NewClient(cfg config.Payment, logger *zap.Logger) *Client {
	settings := gobreaker.Settings{
		Name:        "PaymentGateway",
		MaxRequests: 3,
		Interval:    5 * time.Second,
		Timeout:     10 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 5 && failureRatio >= 0.6
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn(
				"Circuit breaker state changed",
				zap.String("name", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &Client{
		apiBase:       strings.TrimRight(cfg.APIBase, "/"),
		secretKey:     cfg.SecretKey,
		webhookSecret: cfg.WebhookSecret,
		httpClient:    &http.Client{Timeout: timeout},
		cb:            gobreaker.NewCircuitBreaker(settings),
		logger:        logger,
		tracer:        otel.Tracer("payment_gateway"),
		now:           time.Now,
	}
}

// CreateCheckoutSession translates the order into the provider's line-item
// format, with tax as a synthetic line. The order id is attached three ways:
// client_reference_id, session metadata and payment-intent metadata, because
// different webhook event types surface different objects and the id must be
// recoverable from whichever one arrives. Never call this while holding a
// database transaction.
func (c *Client) CreateCheckoutSession(ctx context.Context, order *domain.Order, opts SessionOptions) (*CheckoutSession, error) {
	ctx, span := c.tracer.Start(ctx, "PaymentGateway.CreateCheckoutSession")
	defer span.End()

	span.SetAttributes(
		attribute.Int64("order_id", order.ID),
		attribute.Int64("total", order.Total),
	)

	if order.Total <= 0 {
		return nil, domain.NewValidationError("order total must be positive, got %d", order.Total)
	}

	orderID := strconv.FormatInt(order.ID, 10)

	form := url.Values{}
	form.Set("mode", "payment")
	form.Set("success_url", opts.SuccessURL)
	form.Set("cancel_url", opts.CancelURL)
	form.Set("client_reference_id", orderID)
	form.Set("metadata[order_id]", orderID)
	form.Set("payment_intent_data[metadata][order_id]", orderID)
	if opts.CustomerEmail != "" {
		form.Set("customer_email", opts.CustomerEmail)
	}

	for i, item := range order.Items {
		prefix := fmt.Sprintf("line_items[%d]", i)
		form.Set(prefix+"[price_data][currency]", "usd")
		form.Set(prefix+"[price_data][product_data][name]", item.ItemTitle)
		form.Set(prefix+"[price_data][unit_amount]", strconv.FormatInt(item.Price, 10))
		form.Set(prefix+"[quantity]", strconv.Itoa(item.Quantity))
	}

	if order.Tax > 0 {
		prefix := fmt.Sprintf("line_items[%d]", len(order.Items))
		form.Set(prefix+"[price_data][currency]", "usd")
		form.Set(prefix+"[price_data][product_data][name]", "Sales Tax")
		form.Set(prefix+"[price_data][unit_amount]", strconv.FormatInt(order.Tax, 10))
		form.Set(prefix+"[quantity]", "1")
	}

	result, err := c.cb.Execute(func() (interface{}, error) {
		return c.postForm(ctx, "/v1/checkout/sessions", form)
	})
	if err != nil {
		logging.Error(
			ctx,
			c.logger,
			"Failed to create checkout session",
			zap.Int64("order_id", order.ID),
			zap.Error(err),
		)

		return nil, fmt.Errorf("create checkout session: %w", err)
	}

	var session CheckoutSession
	if err := json.Unmarshal(result.([]byte), &session); err != nil {
		return nil, fmt.Errorf("decode checkout session: %w", err)
	}

	logging.Info(
		ctx,
		c.logger,
		"Checkout session created",
		zap.Int64("order_id", order.ID),
		zap.String("session_id", session.ID),
	)

	return &session, nil
}

func (c *Client) postForm(ctx context.Context, path string, form url.Values) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiBase+path, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.secretKey)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	// Retried creates must not mint a second session for the same attempt.
	req.Header.Set("Idempotency-Key", uuid.New().String())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, err
	}

	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("payment gateway returned %d: %s", resp.StatusCode, body)
	}

	return body, nil
}
