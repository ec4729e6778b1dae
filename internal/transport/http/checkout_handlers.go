package http

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/danribes/mystic-ecom-cloud-sub002/internal/checkout"
	"github.com/danribes/mystic-ecom-cloud-sub002/internal/domain"
	"github.com/danribes/mystic-ecom-cloud-sub002/internal/order"
)

type CheckoutHandler struct {
	checkouts *checkout.Service
	orders    order.Service
	logger    *zap.Logger
}

func NewCheckoutHandler(checkouts *checkout.Service, orders order.Service, logger *zap.Logger) *CheckoutHandler {
	return &CheckoutHandler{checkouts: checkouts, orders: orders, logger: logger}
}

type checkoutRequest struct {
	Email string `json:"email" validate:"required,email"`
}

func (h *CheckoutHandler) Checkout(c *fiber.Ctx) error {
	id, ok := userID(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "missing user"})
	}

	input := new(checkoutRequest)
	if err := c.BodyParser(input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "error parsing body"})
	}
	if err := validate.Struct(input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"errors": formatValidationError(err)})
	}

	result, err := h.checkouts.Checkout(c.UserContext(), id, input.Email)
	if err != nil {
		return respondError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(result)
}

func (h *CheckoutHandler) GetOrder(c *fiber.Ctx) error {
	id, ok := userID(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "missing user"})
	}

	orderID, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid order id"})
	}

	ord, err := h.orders.GetOrder(c.UserContext(), orderID)
	if err != nil {
		return respondError(c, err)
	}
	if ord.UserID != id {
		// Do not leak the existence of other users' orders.
		return respondError(c, domain.NewNotFoundError("order %d not found", orderID))
	}

	return c.JSON(ord)
}

func (h *CheckoutHandler) ListOrders(c *fiber.Ctx) error {
	id, ok := userID(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "missing user"})
	}

	orders, err := h.orders.ListUserOrders(c.UserContext(), id)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(fiber.Map{"orders": orders})
}
