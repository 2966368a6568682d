// Package middleware holds the cross-cutting Fiber handlers: request
// identifiers and the structured access audit log.
package middleware

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

const requestIDHeader = "X-Request-ID"

// RequestID ensures every request carries a stable identifier, minting one
// when the caller did not supply it. The id is echoed in the response header
// and stashed in locals for the audit log.
func RequestID() fiber.Handler {
	return func(c *fiber.Ctx) error {
		reqID := c.Get(requestIDHeader)
		if reqID == "" {
			reqID = uuid.NewString()
			c.Set(requestIDHeader, reqID)
		}

		c.Locals(requestIDHeader, reqID)
		return c.Next()
	}
}
