package render

import (
	"github.com/denesterov/geolog/internal/session"
	"github.com/gofiber/fiber/v2"
)

// RegisterRoutes exposes rendered map artifacts. The readiness check is a
// cheap poll so the interactive path can decide whether to attach a map.
func RegisterRoutes(r fiber.Router, jobs *session.Jobs, store *Artifacts) {
	r.Get("/sessions/:id/map", func(c *fiber.Ctx) error {
		id := c.Params("id")

		ready, err := jobs.Ready(c.Context(), id)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		if !ready || !store.Exists(id) {
			return fiber.NewError(fiber.StatusNotFound, "map not ready")
		}

		data, err := store.Read(id)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		c.Set(fiber.HeaderContentType, "image/png")
		return c.Send(data)
	})
}
