package tracking

import (
	"errors"

	"github.com/gofiber/fiber/v2"
)

func RegisterRoutes(r fiber.Router, svc *Service) {
	r.Post("/locations", func(c *fiber.Ctx) error {
		var ev Event
		if err := c.BodyParser(&ev); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		if ev.OwnerID == 0 || ev.ChatID == 0 || ev.MsgID == 0 {
			return fiber.NewError(fiber.StatusBadRequest, "owner_id, chat_id, msg_id required")
		}

		result, err := svc.HandleFix(c.Context(), ev)
		if err != nil {
			switch {
			case errors.Is(err, ErrMalformedFix):
				return fiber.NewError(fiber.StatusBadRequest, err.Error())
			case errors.Is(err, ErrBadSession):
				return fiber.NewError(fiber.StatusConflict, err.Error())
			default:
				return fiber.NewError(fiber.StatusInternalServerError, err.Error())
			}
		}

		status := fiber.StatusOK
		if result.Created {
			status = fiber.StatusCreated
		}
		return c.Status(status).JSON(result)
	})
}
