package server

import (
	"log/slog"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
)

const userIDKey = "user_id"

// requireUser resolves the caller from the X-User-ID header. The header is
// set by the API gateway after session validation, so a missing or bad
// value is a client error here.
func requireUser() fiber.Handler {
	return func(c *fiber.Ctx) error {
		raw := c.Get("X-User-ID")
		if raw == "" {
			return fiber.NewError(fiber.StatusUnauthorized, "missing X-User-ID header")
		}

		userID, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || userID <= 0 {
			return fiber.NewError(fiber.StatusUnauthorized, "invalid X-User-ID header")
		}

		c.Locals(userIDKey, userID)
		return c.Next()
	}
}

func currentUserID(c *fiber.Ctx) int64 {
	id, _ := c.Locals(userIDKey).(int64)
	return id
}

// loggingMiddleware logs every request with a level derived from the
// response status.
func loggingMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()

		err := c.Next()

		status := c.Response().StatusCode()
		logger := slog.With(
			slog.String("type", "http"),
			slog.String("method", c.Method()),
			slog.String("path", c.Path()),
			slog.Int("status", status),
			slog.Duration("duration", time.Since(start)),
			slog.String("ip", c.IP()),
		)
		if id := currentUserID(c); id != 0 {
			logger = logger.With(slog.Int64("user_id", id))
		}
		if err != nil {
			logger = logger.With(slog.String("error", err.Error()))
		}

		switch {
		case status >= 500:
			logger.Error("HTTP request processed")
		case status >= 400:
			logger.Warn("HTTP request processed")
		default:
			logger.Info("HTTP request processed")
		}

		return err
	}
}
