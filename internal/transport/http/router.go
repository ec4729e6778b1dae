package http

import (
	"github.com/gofiber/fiber/v2"
)

func NewRouter(cartHandler *CartHandler, checkoutHandler *CheckoutHandler, webhookHandler *WebhookHandler) *fiber.App {
	app := fiber.New()

	cart := app.Group("/cart")
	cart.Get("/", cartHandler.Get)
	cart.Post("/items", cartHandler.AddItem)
	cart.Patch("/items", cartHandler.UpdateItem)
	cart.Delete("/items", cartHandler.RemoveItem)
	cart.Delete("/", cartHandler.Clear)
	cart.Post("/validate", cartHandler.Validate)
	cart.Post("/merge", cartHandler.Merge)

	app.Post("/checkout", checkoutHandler.Checkout)
	app.Get("/orders", checkoutHandler.ListOrders)
	app.Get("/orders/:id", checkoutHandler.GetOrder)

	app.Post("/webhooks/payment", webhookHandler.Handle)

	return app
}
