package server

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/lifequest-app/lifequest/lifequest/services"
)

// errorHandler is the terminal error mapper: service errors carry the
// domain outcome, this decides the wire shape.
func errorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal Server Error"
	var details fiber.Map

	var fiberErr *fiber.Error
	var wrongStatus *services.WrongStatusError
	var capReached *services.CapReachedError
	var cooldown *services.CooldownError
	var generation *services.GenerationError

	switch {
	case errors.As(err, &fiberErr):
		code = fiberErr.Code
		message = fiberErr.Message

	case errors.Is(err, services.ErrQuestNotFound):
		code = fiber.StatusNotFound
		message = err.Error()

	case errors.Is(err, services.ErrQuestNotOwned):
		code = fiber.StatusForbidden
		message = err.Error()

	case errors.As(err, &wrongStatus), errors.Is(err, services.ErrQuestConflict):
		code = fiber.StatusConflict
		message = err.Error()

	case errors.As(err, &capReached):
		code = fiber.StatusUnprocessableEntity
		message = capReached.Error()
		details = fiber.Map{
			"quest_type": capReached.QuestType,
			"cap":        capReached.Cap,
		}

	case errors.As(err, &cooldown):
		code = fiber.StatusTooManyRequests
		message = cooldown.Error()
		details = fiber.Map{
			"quest_type":      cooldown.QuestType,
			"next_allowed_at": cooldown.NextAllowedAt.Format(time.RFC3339),
		}
		c.Set("Retry-After", cooldown.NextAllowedAt.UTC().Format(http1123))

	case errors.As(err, &generation):
		code = fiber.StatusUnprocessableEntity
		message = "generated quests failed validation"
		details = fiber.Map{"problems": generation.Problems}

	case errors.Is(err, services.ErrTimezoneRequired):
		code = fiber.StatusUnprocessableEntity
		message = err.Error()

	case errors.Is(err, services.ErrUpstream):
		code = fiber.StatusBadGateway
		message = services.ErrUpstream.Error()
	}

	body := fiber.Map{
		"success": false,
		"error": fiber.Map{
			"code":    code,
			"message": message,
		},
	}
	if details != nil {
		body["error"].(fiber.Map)["details"] = details
	}

	return c.Status(code).JSON(body)
}

const http1123 = "Mon, 02 Jan 2006 15:04:05 GMT"
