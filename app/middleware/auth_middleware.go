// Package middleware contains HTTP middleware functions for request processing
package middleware

import (
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v3"
	"github.com/lorenrocu/whatsapp-campaigns/app/dto"
)

// IdentityMiddleware trusts the user identity forwarded by the upstream gateway.
// Authentication happens before requests reach this service.
type IdentityMiddleware struct {
	header string
}

// NewIdentityMiddleware creates a new identity middleware reading the given header
func NewIdentityMiddleware(header string) *IdentityMiddleware {
	if header == "" {
		header = "X-User-ID"
	}
	return &IdentityMiddleware{header: header}
}

// Identify stores the forwarded user id in locals under "user_id"
func (m *IdentityMiddleware) Identify() fiber.Handler {
	return func(c fiber.Ctx) error {
		raw := strings.TrimSpace(c.Get(m.header))
		if raw == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(dto.APIResponse{
				Success: false,
				Message: m.header + " header is required",
				Error: dto.ErrorDetail{
					Code: "MISSING_USER_IDENTITY",
				},
			})
		}

		userID, err := strconv.ParseUint(raw, 10, 64)
		if err != nil || userID == 0 {
			return c.Status(fiber.StatusUnauthorized).JSON(dto.APIResponse{
				Success: false,
				Message: "Invalid user identity",
				Error: dto.ErrorDetail{
					Code: "INVALID_USER_IDENTITY",
				},
			})
		}

		c.Locals("user_id", uint(userID))

		// Store RequestID for audit logging
		if requestID := c.Get("X-Request-ID"); requestID != "" {
			c.Locals("request_id", requestID)
		}

		return c.Next()
	}
}
