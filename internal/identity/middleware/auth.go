package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/worksuite/identity-service/internal/identity/domain"
	"github.com/worksuite/identity-service/internal/identity/service"
	"github.com/worksuite/identity-service/pkg/constant"
)

// Authenticate resolves the request identity. It never rejects a request:
// missing or invalid tokens, unknown users and disabled accounts all degrade
// to "no identity", and route-level guards decide what that means. It also
// touches the session named by the session header, best effort.
func Authenticate(tokens service.TokenGenerator, users domain.UserStore, sessions *service.SessionService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token, ok := bearerToken(c.Get(fiber.HeaderAuthorization))
		if !ok {
			return c.Next()
		}

		claims, err := tokens.Validate(token, service.TokenTypeAccess)
		if err != nil {
			return c.Next()
		}

		user, err := users.GetByID(c.UserContext(), claims.Subject)
		if err != nil || user == nil || !user.IsActive {
			return c.Next()
		}

		c.Locals(constant.IdentityLocalKey, &domain.Identity{
			UserID:   user.ID,
			Role:     user.Role,
			IsActive: user.IsActive,
		})

		if sessionID := c.Get(constant.SessionIDHeader); sessionID != "" {
			// Stale or foreign session ids are tolerated; touch failures
			// never affect the request.
			_ = sessions.Touch(c.UserContext(), sessionID)
		}

		return c.Next()
	}
}

// IdentityFromCtx returns the identity attached by Authenticate, if any.
func IdentityFromCtx(c *fiber.Ctx) (*domain.Identity, bool) {
	identity, ok := c.Locals(constant.IdentityLocalKey).(*domain.Identity)
	return identity, ok && identity != nil
}

func RequireAuthenticated() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if _, ok := IdentityFromCtx(c); !ok {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "authentication required",
			})
		}
		return c.Next()
	}
}

func RequireRole(role string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		identity, ok := IdentityFromCtx(c)
		if !ok {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "authentication required",
			})
		}
		if identity.Role != role {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"error": "insufficient role",
			})
		}
		return c.Next()
	}
}

func bearerToken(value string) (string, bool) {
	const bearer = "Bearer "
	if !strings.HasPrefix(value, bearer) {
		return "", false
	}

	token := value[len(bearer):]
	if token == "" {
		return "", false
	}

	return token, true
}
