package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/dialkey/dialkey/internal/login"
)

// RegisterLoginRoutes wires the authentication endpoints at the application
// root, matching the redirect targets the handlers issue.
func RegisterLoginRoutes(app *fiber.App, h *login.Handler) {
	app.Post("/login", h.Login)
	app.Post("/authenticate", h.Authenticate)
	app.Get("/logout", h.Logout)
}
