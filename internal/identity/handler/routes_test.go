package handler_test

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/worksuite/identity-service/config"
	"github.com/worksuite/identity-service/internal/identity/domain"
	"github.com/worksuite/identity-service/internal/identity/handler"
	"github.com/worksuite/identity-service/internal/identity/middleware"
	"github.com/worksuite/identity-service/internal/identity/service"
	"github.com/worksuite/identity-service/internal/mocks"
	"github.com/worksuite/identity-service/pkg/constant"
)

func newRoutedApp(t *testing.T, ctrl *gomock.Controller) (*fiber.App, *handlerFixture) {
	t.Helper()

	f := &handlerFixture{
		users:       mocks.NewMockUserStore(ctrl),
		repo:        mocks.NewMockAuthRepository(ctrl),
		sessionRepo: mocks.NewMockSessionRepository(ctrl),
		tokens:      mocks.NewMockTokenGenerator(ctrl),
	}

	cfg := &config.Config{LoginMaxAttempts: 5, LoginWindowMinutes: 15}
	sessionService := service.NewSessionService(f.sessionRepo, nil, 5, 30*time.Minute)
	authService := service.NewAuthService(f.users, f.repo, sessionService, f.tokens, nil, cfg)
	h := handler.NewAuthHandler(authService, sessionService)

	app := fiber.New()
	app.Use(middleware.Authenticate(f.tokens, f.users, sessionService))
	handler.RegisterRoutes(app, h)

	return app, f
}

// TestRegisterRoutes verifies the public routes are mounted.
func TestRegisterRoutes(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	app, _ := newRoutedApp(t, ctrl)

	testCases := []struct {
		method string
		path   string
	}{
		{http.MethodPost, "/api/v1/login"},
		{http.MethodPost, "/api/v1/refresh"},
		{http.MethodDelete, "/api/v1/session"},
		{http.MethodGet, "/api/v1/sessions"},
		{http.MethodDelete, "/api/v1/sessions"},
	}

	for _, tc := range testCases {
		t.Run(fmt.Sprintf("%s_%s_exists", tc.method, tc.path), func(t *testing.T) {
			req := httptest.NewRequest(tc.method, tc.path, nil)
			resp, err := app.Test(req)
			require.NoError(t, err)

			// Existence only. Guards and handlers return their own codes,
			// a 404 means the route never got mounted.
			assert.NotEqual(t, http.StatusNotFound, resp.StatusCode)
		})
	}
}

// TestGuardedRoutes exercises the authenticated and admin-only guards through
// the real middleware chain.
func TestGuardedRoutes(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	app, f := newRoutedApp(t, ctrl)

	adminRoute := "/api/v1/admin/user/target-user/sessions"

	regularClaims := &service.IdentityClaims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "user-123"},
		Role:             constant.DefaultUserRole,
		IsActive:         true,
		TokenType:        service.TokenTypeAccess,
	}
	adminClaims := &service.IdentityClaims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "admin-456"},
		Role:             constant.AdminRole,
		IsActive:         true,
		TokenType:        service.TokenTypeAccess,
	}

	regularUser := &domain.User{ID: "user-123", Role: constant.DefaultUserRole, IsActive: true}
	adminUser := &domain.User{ID: "admin-456", Role: constant.AdminRole, IsActive: true}

	t.Run("session list fails without auth header", func(t *testing.T) {
		resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/sessions", nil))
		require.NoError(t, err)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("admin route fails without auth header", func(t *testing.T) {
		resp, err := app.Test(httptest.NewRequest(http.MethodDelete, adminRoute, nil))
		require.NoError(t, err)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("admin route fails with malformed header", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodDelete, adminRoute, nil)
		req.Header.Set("Authorization", "BearerNoSpace")

		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("admin route forbids a regular user", func(t *testing.T) {
		f.tokens.EXPECT().Validate("user-token", service.TokenTypeAccess).Return(regularClaims, nil)
		f.users.EXPECT().GetByID(gomock.Any(), "user-123").Return(regularUser, nil)

		req := httptest.NewRequest(http.MethodDelete, adminRoute, nil)
		req.Header.Set("Authorization", "Bearer user-token")

		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	})

	t.Run("admin forces a logout for another user", func(t *testing.T) {
		f.tokens.EXPECT().Validate("admin-token", service.TokenTypeAccess).Return(adminClaims, nil)
		f.users.EXPECT().GetByID(gomock.Any(), "admin-456").Return(adminUser, nil)
		f.repo.EXPECT().RevokeAllRefreshTokens(gomock.Any(), "target-user").Return(nil)
		f.sessionRepo.EXPECT().DeactivateAllSessions(gomock.Any(), "target-user").Return(int64(2), nil)

		req := httptest.NewRequest(http.MethodDelete, adminRoute, nil)
		req.Header.Set("Authorization", "Bearer admin-token")

		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})

	t.Run("authenticated user lists own sessions", func(t *testing.T) {
		f.tokens.EXPECT().Validate("user-token", service.TokenTypeAccess).Return(regularClaims, nil)
		f.users.EXPECT().GetByID(gomock.Any(), "user-123").Return(regularUser, nil)
		f.sessionRepo.EXPECT().ListActiveSessions(gomock.Any(), "user-123").Return(nil, nil)

		req := httptest.NewRequest(http.MethodGet, "/api/v1/sessions", nil)
		req.Header.Set("Authorization", "Bearer user-token")

		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})
}
