package auth

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/goliatone/go-errors"
)

// DefaultCookieName is the session cookie name
const DefaultCookieName = "token"

// SessionCarrier binds session tokens to HTTP responses through a cookie
// and reads them back from requests. The server keeps no session table.
type SessionCarrier struct {
	tokens     *TokenService
	cookieName string
	secure     bool
	sameSite   string
	path       string
	logger     Logger
	now        func() time.Time
}

// SessionCarrierOption configures a SessionCarrier
type SessionCarrierOption func(*SessionCarrier)

// WithCookieName overrides the cookie name
func WithCookieName(name string) SessionCarrierOption {
	return func(s *SessionCarrier) {
		if name != "" {
			s.cookieName = name
		}
	}
}

// WithSecureCookie marks cookies Secure, use when served over TLS
func WithSecureCookie(secure bool) SessionCarrierOption {
	return func(s *SessionCarrier) {
		s.secure = secure
	}
}

// WithCookieSameSite sets the SameSite attribute
func WithCookieSameSite(mode string) SessionCarrierOption {
	return func(s *SessionCarrier) {
		if mode != "" {
			s.sameSite = mode
		}
	}
}

// WithSessionLogger sets the logger
func WithSessionLogger(logger Logger) SessionCarrierOption {
	return func(s *SessionCarrier) {
		s.logger = normalizeLogger(logger)
	}
}

// WithSessionClock overrides time.Now for cookie expirations
func WithSessionClock(now func() time.Time) SessionCarrierOption {
	return func(s *SessionCarrier) {
		if now != nil {
			s.now = now
		}
	}
}

// NewSessionCarrier creates a carrier backed by tokens
func NewSessionCarrier(tokens *TokenService, opts ...SessionCarrierOption) *SessionCarrier {
	s := &SessionCarrier{
		tokens:     tokens,
		cookieName: DefaultCookieName,
		sameSite:   fiber.CookieSameSiteLaxMode,
		path:       "/",
		logger:     defLogger{},
		now:        time.Now,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}

	return s
}

// CookieName returns the session cookie name
func (s *SessionCarrier) CookieName() string {
	return s.cookieName
}

// Tokens returns the underlying token service
func (s *SessionCarrier) Tokens() *TokenService {
	return s.tokens
}

// Attach issues a token for user and writes it as the session cookie.
// Only the response headers are touched.
func (s *SessionCarrier) Attach(c *fiber.Ctx, user TokenUser) (string, error) {
	token, expiresAt, err := s.tokens.Issue(user)
	if err != nil {
		s.logger.Error("session attach failed to issue token", "user_id", user.UserID, "error", err)
		return "", err
	}

	s.setCookie(c, token, expiresAt)
	return token, nil
}

// Rotate attaches a fresh token for user. When revocation is enabled the
// token presented with the request is revoked first.
func (s *SessionCarrier) Rotate(c *fiber.Ctx, user TokenUser) (string, error) {
	s.revokePresented(c)
	return s.Attach(c, user)
}

// Clear writes an empty, already expired session cookie. When revocation
// is enabled the presented token is revoked too. It never fails.
func (s *SessionCarrier) Clear(c *fiber.Ctx) {
	s.revokePresented(c)
	s.setCookie(c, "", s.now().Add(-time.Hour*(24*365)))
}

func (s *SessionCarrier) revokePresented(c *fiber.Ctx) {
	revoker := s.tokens.Revoker()
	if revoker == nil {
		return
	}

	raw := c.Cookies(s.cookieName)
	if raw == "" {
		return
	}

	if claims, err := s.tokens.Validate(raw); err == nil {
		revoker.Revoke(claims.TokenID(), claims.Expires())
	}
}

// Extract reads and validates the session cookie
func (s *SessionCarrier) Extract(c *fiber.Ctx) (*JWTClaims, error) {
	raw := c.Cookies(s.cookieName)
	if raw == "" {
		return nil, WithMessage(ErrUnauthenticated, ErrUnauthenticated.Message, map[string]any{
			"reason": ErrUnableToFindSession.TextCode,
		})
	}

	claims, err := s.tokens.Validate(raw)
	if err != nil {
		reason := TextCodeTokenInvalid
		var richErr *errors.Error
		if errors.As(err, &richErr) && richErr.TextCode != "" {
			reason = richErr.TextCode
		}
		return nil, WithMessage(ErrUnauthenticated, ErrUnauthenticated.Message, map[string]any{
			"reason": reason,
		})
	}

	return claims, nil
}

func (s *SessionCarrier) setCookie(c *fiber.Ctx, val string, expires time.Time) {
	c.Cookie(&fiber.Cookie{
		Name:     s.cookieName,
		Value:    val,
		Path:     s.path,
		Expires:  expires,
		HTTPOnly: true,
		Secure:   s.secure,
		SameSite: s.sameSite,
	})
}
