package auth_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	auth "github.com/goliatone/go-shop-auth"
)

func userClaims(id string, role auth.Role) *auth.JWTClaims {
	return &auth.JWTClaims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: id},
		UID:              id,
		UserRole:         role,
	}
}

func TestClaimsContext(t *testing.T) {
	_, ok := auth.GetClaims(context.Background())
	assert.False(t, ok)

	claims := userClaims("user-1", auth.RoleUser)
	ctx := auth.WithClaimsContext(context.Background(), claims)

	got, ok := auth.GetClaims(ctx)
	require.True(t, ok)
	assert.Same(t, claims, got)

	_, ok = auth.GetClaims(auth.WithClaimsContext(context.Background(), nil))
	assert.False(t, ok)
}

func TestCan(t *testing.T) {
	assert.False(t, auth.Can(context.Background(), "user-1"))

	ctx := auth.WithClaimsContext(context.Background(), userClaims("user-1", auth.RoleUser))
	assert.True(t, auth.Can(ctx, "user-1"))
	assert.False(t, auth.Can(ctx, "user-2"))

	admin := auth.WithClaimsContext(context.Background(), userClaims("admin-1", auth.RoleAdmin))
	assert.True(t, auth.Can(admin, "user-2"))
}

func TestClaimsFromFiber(t *testing.T) {
	claims := userClaims("user-1", auth.RoleUser)

	app := fiber.New()
	app.Get("/locals", func(c *fiber.Ctx) error {
		c.Locals(auth.UserLocalsKey, claims)
		got, ok := auth.ClaimsFromFiber(c)
		if !ok || got != claims {
			return fiber.ErrTeapot
		}
		return nil
	})
	app.Get("/context", func(c *fiber.Ctx) error {
		c.SetUserContext(auth.WithClaimsContext(c.UserContext(), claims))
		got, ok := auth.ClaimsFromFiber(c)
		if !ok || got != claims {
			return fiber.ErrTeapot
		}
		return nil
	})
	app.Get("/none", func(c *fiber.Ctx) error {
		if _, ok := auth.ClaimsFromFiber(c); ok {
			return fiber.ErrTeapot
		}
		return nil
	})

	for _, path := range []string{"/locals", "/context", "/none"} {
		resp, err := app.Test(httptest.NewRequest(http.MethodGet, path, nil))
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode, path)
	}
}
