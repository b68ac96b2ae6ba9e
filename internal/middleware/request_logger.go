package middleware

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/tajious/medsync/internal/logger"
)

const headerRequestID = "X-Request-ID"

// RequestLogger tags the request context with a request id and logs the
// start and completion of every request.
func RequestLogger(log *logger.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		requestID := c.Get(headerRequestID)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Set(headerRequestID, requestID)

		ctx := log.WithFields(c.UserContext(), map[string]any{
			"request_id": requestID,
			"method":     c.Method(),
			"path":       c.Path(),
		})
		c.SetUserContext(ctx)
		log.Debug(ctx, "request.start")

		start := time.Now()
		err := c.Next()
		if err != nil {
			// Let the app's error handler write the response so the status
			// logged below is the one the client sees.
			if herr := c.App().ErrorHandler(c, err); herr != nil {
				_ = c.SendStatus(fiber.StatusInternalServerError)
			}
		}

		done := log.WithFields(ctx, map[string]any{
			"status":      c.Response().StatusCode(),
			"duration_ms": time.Since(start).Milliseconds(),
		})
		if err != nil {
			log.Error(done, "request.complete", err)
		} else {
			log.Info(done, "request.complete")
		}
		return nil
	}
}
