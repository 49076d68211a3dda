package handler

import (
	"github.com/gofiber/fiber/v2"

	"github.com/worksuite/identity-service/internal/identity/middleware"
	"github.com/worksuite/identity-service/pkg/constant"
)

// RegisterRoutes assumes the identity middleware is already installed on the
// app; guards here only decide what an absent identity means per route.
func RegisterRoutes(app *fiber.App, h *AuthHandler) {
	app.Post("/api/v1/login", h.Login)
	app.Post("/api/v1/refresh", h.Refresh)
	app.Delete("/api/v1/session", h.Logout)

	app.Get("/api/v1/sessions", middleware.RequireAuthenticated(), h.ListSessions)
	app.Delete("/api/v1/sessions", middleware.RequireAuthenticated(), h.LogoutAll)

	// Admin-only endpoints
	admin := app.Group("/api/v1/admin", middleware.RequireRole(constant.AdminRole))
	admin.Get("/user/:id/sessions", h.GetUserSessions)
	admin.Delete("/user/:id/sessions", h.ForceLogout)
}
