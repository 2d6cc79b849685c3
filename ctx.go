package auth

import (
	"context"

	"github.com/gofiber/fiber/v2"
)

// UserLocalsKey is the fiber locals key holding the request claims
const UserLocalsKey = "user"

var claimsCtxKey = &contextKey{"claims"}

type contextKey struct {
	name string
}

// WithClaimsContext sets the JWTClaims in the given context
func WithClaimsContext(r context.Context, claims *JWTClaims) context.Context {
	return context.WithValue(r, claimsCtxKey, claims)
}

// GetClaims extracts the JWTClaims from the standard context
func GetClaims(ctx context.Context) (*JWTClaims, bool) {
	raw, ok := ctx.Value(claimsCtxKey).(*JWTClaims)
	return raw, ok && raw != nil
}

// ClaimsFromFiber extracts the JWTClaims stored by the session guard
func ClaimsFromFiber(c *fiber.Ctx) (*JWTClaims, bool) {
	raw, ok := c.Locals(UserLocalsKey).(*JWTClaims)
	if ok && raw != nil {
		return raw, true
	}
	return GetClaims(c.UserContext())
}

// Can reports whether the claims in ctx may access a resource owned by ownerID
func Can(ctx context.Context, ownerID string) bool {
	claims, ok := GetClaims(ctx)
	if !ok {
		return false
	}
	return AuthorizeClaims(claims, ownerID) == nil
}
