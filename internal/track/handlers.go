package track

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/denesterov/geolog/internal/session"
	"github.com/gofiber/fiber/v2"
)

const (
	defaultPageSize = 10
	maxPageSize     = 100
)

func RegisterRoutes(r fiber.Router, svc *Service) {
	r.Get("/sessions", func(c *fiber.Ctx) error {
		ownerID, err := strconv.ParseInt(c.Query("owner_id"), 10, 64)
		if err != nil || ownerID == 0 {
			return fiber.NewError(fiber.StatusBadRequest, "owner_id required")
		}
		offset := c.QueryInt("offset", 0)
		pageSize := c.QueryInt("page_size", defaultPageSize)
		if offset < 0 || pageSize <= 0 || pageSize > maxPageSize {
			return fiber.NewError(fiber.StatusBadRequest, "bad pagination")
		}
		countPoints := c.QueryBool("count_points", false)

		entries, total, err := svc.List(c.Context(), ownerID, offset, pageSize, countPoints)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		return c.JSON(fiber.Map{
			"sessions": entries,
			"total":    total,
			"offset":   offset,
		})
	})

	r.Get("/sessions/:id/track", func(c *fiber.Ctx) error {
		tr, err := svc.Reconstruct(c.Context(), c.Params("id"))
		if err != nil {
			return trackError(err)
		}
		return c.JSON(tr)
	})

	r.Get("/sessions/:id/gpx", func(c *fiber.Ctx) error {
		tr, err := svc.Reconstruct(c.Context(), c.Params("id"))
		if err != nil {
			return trackError(err)
		}
		body, err := EncodeGPX(tr)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		c.Set(fiber.HeaderContentType, "application/gpx+xml")
		c.Set(fiber.HeaderContentDisposition,
			fmt.Sprintf(`attachment; filename=%q`, GPXFileName(tr.Info.StartedAt)))
		return c.Send(body)
	})
}

func trackError(err error) error {
	if errors.Is(err, session.ErrNotFound) {
		return fiber.NewError(fiber.StatusNotFound, "session not found")
	}
	return fiber.NewError(fiber.StatusInternalServerError, err.Error())
}
