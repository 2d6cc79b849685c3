package auth

import (
	"context"

	"github.com/goliatone/go-shop-auth/middleware/jwtware"
)

// ValidationListener aliases the jwtware listener so consumers can use auth helpers directly.
type ValidationListener = jwtware.ValidationListener

// ContextEnricherAdapter stores validated claims in the standard context
// for downstream services
func ContextEnricherAdapter(c context.Context, claims jwtware.AuthClaims) context.Context {
	authClaims, ok := claims.(*JWTClaims)
	if !ok {
		return c
	}
	return WithClaimsContext(c, authClaims)
}

// RegisterValidationListeners appends listeners to a jwtware.Config in a safe, reusable way.
func RegisterValidationListeners(cfg *jwtware.Config, listeners ...ValidationListener) {
	if cfg == nil || len(listeners) == 0 {
		return
	}
	cfg.ValidationListeners = append(cfg.ValidationListeners, listeners...)
}

// tokenValidator exposes TokenService to jwtware
type tokenValidator struct {
	tokens *TokenService
}

func (v tokenValidator) Validate(raw string) (jwtware.AuthClaims, error) {
	claims, err := v.tokens.Validate(raw)
	if err != nil {
		return nil, err
	}
	return claims, nil
}

// rolesAuthorizer builds a jwtware Authorizer from an allow list
func rolesAuthorizer(roles ...Role) func(jwtware.AuthClaims) error {
	if len(roles) == 0 {
		return nil
	}
	return func(claims jwtware.AuthClaims) error {
		c, ok := claims.(*JWTClaims)
		if !ok {
			return ErrForbidden
		}
		return RequireRoles(c.Role(), roles...)
	}
}
