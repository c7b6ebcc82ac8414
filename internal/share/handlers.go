package share

import (
	"errors"

	"github.com/denesterov/geolog/internal/session"
	"github.com/denesterov/geolog/internal/track"
	"github.com/gofiber/fiber/v2"
)

func RegisterRoutes(r fiber.Router, svc *Service, tracks *track.Service) {
	r.Post("/sessions/:id/share", func(c *fiber.Ctx) error {
		id := c.Params("id")

		// Only sessions that actually exist get a link.
		if _, err := tracks.Reconstruct(c.Context(), id); err != nil {
			if errors.Is(err, session.ErrNotFound) {
				return fiber.NewError(fiber.StatusNotFound, "session not found")
			}
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}

		token, err := svc.Issue(id)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		return c.Status(fiber.StatusCreated).JSON(fiber.Map{"token": token})
	})

	r.Get("/shared/:token", func(c *fiber.Ctx) error {
		id, err := svc.Resolve(c.Params("token"))
		if err != nil {
			return fiber.NewError(fiber.StatusNotFound, "share link invalid or expired")
		}

		tr, err := tracks.Reconstruct(c.Context(), id)
		if err != nil {
			if errors.Is(err, session.ErrNotFound) {
				return fiber.NewError(fiber.StatusNotFound, "session not found")
			}
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		return c.JSON(tr)
	})
}
