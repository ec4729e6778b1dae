package http

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/danribes/mystic-ecom-cloud-sub002/internal/cart"
	"github.com/danribes/mystic-ecom-cloud-sub002/internal/domain"
)

type CartHandler struct {
	carts  cart.Service
	logger *zap.Logger
}

func NewCartHandler(carts cart.Service, logger *zap.Logger) *CartHandler {
	return &CartHandler{carts: carts, logger: logger}
}

// userID comes from the session layer in front of this service, which has
// already authenticated the request.
func userID(c *fiber.Ctx) (string, bool) {
	id := c.Get("X-User-ID")
	return id, id != ""
}

type cartItemRequest struct {
	ItemType string `json:"item_type" validate:"required,oneof=course event digital_product"`
	ItemID   int64  `json:"item_id" validate:"required,gt=0"`
	Quantity int    `json:"quantity" validate:"gte=0"`
}

func (h *CartHandler) Get(c *fiber.Ctx) error {
	id, ok := userID(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "missing user"})
	}

	userCart, err := h.carts.GetCart(c.UserContext(), id)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(userCart)
}

func (h *CartHandler) AddItem(c *fiber.Ctx) error {
	id, ok := userID(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "missing user"})
	}

	input := new(cartItemRequest)
	if err := c.BodyParser(input); err != nil {
		h.logger.Warn("failed to parse body in add item", zap.Error(err))
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "error parsing body"})
	}
	if input.Quantity == 0 {
		input.Quantity = 1
	}
	if err := validate.Struct(input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"errors": formatValidationError(err)})
	}

	userCart, err := h.carts.AddToCart(c.UserContext(), id, domain.ItemType(input.ItemType), input.ItemID, input.Quantity)
	if err != nil {
		return respondError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(userCart)
}

func (h *CartHandler) UpdateItem(c *fiber.Ctx) error {
	id, ok := userID(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "missing user"})
	}

	input := new(cartItemRequest)
	if err := c.BodyParser(input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "error parsing body"})
	}
	if err := validate.Struct(input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"errors": formatValidationError(err)})
	}

	userCart, err := h.carts.UpdateQuantity(c.UserContext(), id, domain.ItemType(input.ItemType), input.ItemID, input.Quantity)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(userCart)
}

func (h *CartHandler) RemoveItem(c *fiber.Ctx) error {
	id, ok := userID(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "missing user"})
	}

	input := new(cartItemRequest)
	if err := c.BodyParser(input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "error parsing body"})
	}

	userCart, err := h.carts.RemoveFromCart(c.UserContext(), id, domain.ItemType(input.ItemType), input.ItemID)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(userCart)
}

func (h *CartHandler) Clear(c *fiber.Ctx) error {
	id, ok := userID(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "missing user"})
	}

	if err := h.carts.ClearCart(c.UserContext(), id); err != nil {
		return respondError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *CartHandler) Validate(c *fiber.Ctx) error {
	id, ok := userID(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "missing user"})
	}

	result, err := h.carts.ValidateCart(c.UserContext(), id)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(result)
}

type mergeRequest struct {
	GuestID string `json:"guest_id" validate:"required"`
}

func (h *CartHandler) Merge(c *fiber.Ctx) error {
	id, ok := userID(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "missing user"})
	}

	input := new(mergeRequest)
	if err := c.BodyParser(input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "error parsing body"})
	}
	if err := validate.Struct(input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"errors": formatValidationError(err)})
	}

	userCart, err := h.carts.MergeGuestCart(c.UserContext(), input.GuestID, id)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(userCart)
}
