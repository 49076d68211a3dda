package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	autherror "github.com/worksuite/identity-service/internal/errors"
	"github.com/worksuite/identity-service/internal/identity/dto"
	"github.com/worksuite/identity-service/internal/identity/middleware"
	"github.com/worksuite/identity-service/internal/identity/service"
	"github.com/worksuite/identity-service/pkg/constant"
)

type AuthHandler struct {
	authService    *service.AuthService
	sessionService *service.SessionService
}

func NewAuthHandler(authService *service.AuthService, sessionService *service.SessionService) *AuthHandler {
	return &AuthHandler{
		authService:    authService,
		sessionService: sessionService,
	}
}

func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var input dto.LoginInput
	if err := c.BodyParser(&input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid input",
		})
	}

	input.IPAddress = c.IP()
	input.UserAgent = string(c.Request().Header.UserAgent())

	tokenPair, err := h.authService.Login(c.UserContext(), input)
	if err != nil {
		return loginErrorResponse(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(tokenPair)
}

func loginErrorResponse(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, autherror.ErrAccountLocked):
		return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, autherror.ErrAccountDisabled):
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, autherror.ErrInvalidCredentials):
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": err.Error()})
	default:
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal error"})
	}
}

func (h *AuthHandler) Refresh(c *fiber.Ctx) error {
	var input dto.RefreshInput
	if err := c.BodyParser(&input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid input"})
	}

	input.IPAddress = c.IP()
	input.UserAgent = string(c.Request().Header.UserAgent())

	tokens, err := h.authService.Refresh(c.UserContext(), input)
	if err != nil {
		switch {
		case errors.Is(err, autherror.ErrInvalidRefreshToken), errors.Is(err, autherror.ErrAccountDisabled):
			// A failed rotation always forces a full re-authentication.
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": err.Error()})
		default:
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal error"})
		}
	}

	return c.Status(fiber.StatusOK).JSON(tokens)
}

func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	var input dto.LogoutInput
	if err := c.BodyParser(&input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid input"})
	}
	if input.SessionID == "" {
		input.SessionID = c.Get(constant.SessionIDHeader)
	}

	if err := h.authService.Logout(c.UserContext(), input); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal error"})
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{"message": "logged out"})
}

func (h *AuthHandler) LogoutAll(c *fiber.Ctx) error {
	identity, ok := middleware.IdentityFromCtx(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "authentication required"})
	}

	if err := h.authService.LogoutAll(c.UserContext(), identity.UserID); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal error"})
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{"message": "logged out everywhere"})
}

func (h *AuthHandler) ListSessions(c *fiber.Ctx) error {
	identity, ok := middleware.IdentityFromCtx(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "authentication required"})
	}

	return h.respondSessions(c, identity.UserID)
}

// GetUserSessions is the admin view of another user's active sessions.
func (h *AuthHandler) GetUserSessions(c *fiber.Ctx) error {
	return h.respondSessions(c, c.Params("id"))
}

// ForceLogout lets an admin revoke every token and session for a user.
func (h *AuthHandler) ForceLogout(c *fiber.Ctx) error {
	userID := c.Params("id")
	if err := h.authService.LogoutAll(c.UserContext(), userID); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal error"})
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{"message": "user logged out everywhere"})
}

func (h *AuthHandler) respondSessions(c *fiber.Ctx, userID string) error {
	sessions, err := h.sessionService.ListForUser(c.UserContext(), userID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal error"})
	}

	out := make([]dto.SessionOutput, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, dto.SessionOutput{
			ID:           s.ID,
			IPAddress:    s.IPAddress,
			UserAgent:    s.UserAgent,
			CreatedAt:    s.CreatedAt,
			LastActivity: s.LastActivity,
		})
	}

	return c.Status(fiber.StatusOK).JSON(out)
}
