package http

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/danribes/mystic-ecom-cloud-sub002/internal/checkout"
	"github.com/danribes/mystic-ecom-cloud-sub002/internal/payment"
)

const signatureHeader = "Stripe-Signature"

type WebhookHandler struct {
	processor *checkout.WebhookProcessor
	logger    *zap.Logger
}

func NewWebhookHandler(processor *checkout.WebhookProcessor, logger *zap.Logger) *WebhookHandler {
	return &WebhookHandler{processor: processor, logger: logger}
}

// Handle passes the raw body through untouched: the signature covers the
// exact bytes the provider sent. A non-2xx response makes the provider
// retry, which is what we want for transient failures; signature failures
// get 400 so a forged delivery is never acknowledged.
func (h *WebhookHandler) Handle(c *fiber.Ctx) error {
	payload := c.Body()
	sig := c.Get(signatureHeader)

	err := h.processor.Process(c.UserContext(), payload, sig)
	if err == nil {
		return c.JSON(fiber.Map{"received": true})
	}

	if errors.Is(err, payment.ErrInvalidSignature) || errors.Is(err, payment.ErrNoWebhookSecret) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid signature"})
	}

	h.logger.Error("webhook processing failed", zap.Error(err))
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "processing failed"})
}
