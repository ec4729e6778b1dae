package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/danribes/mystic-ecom-cloud-sub002/internal/domain"
)

// mapErrorCode picks the HTTP status for a service error by its kind. The
// boundary depends on kinds, never on error strings.
func mapErrorCode(err error) int {
	switch domain.KindOf(err) {
	case domain.KindValidation:
		return fiber.StatusBadRequest
	case domain.KindNotFound:
		return fiber.StatusNotFound
	case domain.KindConflict:
		return fiber.StatusConflict
	default:
		return fiber.StatusInternalServerError
	}
}

func respondError(c *fiber.Ctx, err error) error {
	code := mapErrorCode(err)
	msg := err.Error()
	if code == fiber.StatusInternalServerError {
		msg = "internal server error"
	}

	return c.Status(code).JSON(fiber.Map{"error": msg})
}
