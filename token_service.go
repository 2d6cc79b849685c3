package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

// DefaultTokenExpiration is used when no TTL is configured
const DefaultTokenExpiration = 30 * 24 * time.Hour

// TokenService signs and validates session tokens with a process wide
// HMAC key. It is safe for concurrent use; nothing is mutated after
// construction.
type TokenService struct {
	signingKey []byte
	ttl        time.Duration
	issuer     string
	logger     Logger
	now        func() time.Time
	revoker    Revoker
}

// TokenServiceOption configures a TokenService
type TokenServiceOption func(*TokenService)

// WithTokenLogger sets the logger
func WithTokenLogger(logger Logger) TokenServiceOption {
	return func(ts *TokenService) {
		ts.logger = normalizeLogger(logger)
	}
}

// WithClock overrides time.Now, used for expiry checks and issuance
func WithClock(now func() time.Time) TokenServiceOption {
	return func(ts *TokenService) {
		if now != nil {
			ts.now = now
		}
	}
}

// WithRevoker enables revocation checks on Validate
func WithRevoker(r Revoker) TokenServiceOption {
	return func(ts *TokenService) {
		ts.revoker = r
	}
}

// NewTokenService creates a new TokenService. An empty signing key is a
// configuration error.
func NewTokenService(signingKey []byte, ttl time.Duration, issuer string, opts ...TokenServiceOption) (*TokenService, error) {
	if len(signingKey) == 0 {
		return nil, ErrMissingSigningKey
	}

	if ttl <= 0 {
		ttl = DefaultTokenExpiration
	}

	key := make([]byte, len(signingKey))
	copy(key, signingKey)

	ts := &TokenService{
		signingKey: key,
		ttl:        ttl,
		issuer:     issuer,
		logger:     defLogger{},
		now:        time.Now,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(ts)
		}
	}

	return ts, nil
}

// NewTokenServiceFromConfig builds a TokenService from Config
func NewTokenServiceFromConfig(cfg Config, opts ...TokenServiceOption) (*TokenService, error) {
	return NewTokenService([]byte(cfg.GetSigningKey()), cfg.GetTokenExpiration(), cfg.GetIssuer(), opts...)
}

// TTL returns the configured token lifetime
func (ts *TokenService) TTL() time.Duration {
	return ts.ttl
}

// Revoker returns the configured revoker, nil when revocation is disabled
func (ts *TokenService) Revoker() Revoker {
	return ts.revoker
}

// Issue signs a token for user using the default TTL
func (ts *TokenService) Issue(user TokenUser) (string, time.Time, error) {
	return ts.IssueWithTTL(user, ts.ttl)
}

// IssueWithTTL signs a token for user valid for ttl
func (ts *TokenService) IssueWithTTL(user TokenUser, ttl time.Duration) (string, time.Time, error) {
	if user.UserID == "" {
		return "", time.Time{}, errors.New("token user id is required", errors.CategoryBadInput)
	}

	if !user.Role.IsValid() {
		return "", time.Time{}, WithMessage(ErrInvalidRole, "cannot issue a token for an unknown role", map[string]any{
			"role": string(user.Role),
		})
	}

	if ttl <= 0 {
		return "", time.Time{}, errors.New("token TTL must be positive", errors.CategoryBadInput)
	}

	now := ts.now()
	expiresAt := now.Add(ttl)

	claims := &JWTClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    ts.issuer,
			Subject:   user.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		UID:      user.UserID,
		UserName: user.Name,
		UserRole: user.Role,
	}

	token, err := ts.SignClaims(claims)
	if err != nil {
		return "", time.Time{}, err
	}

	return token, expiresAt, nil
}

// SignClaims signs arbitrary JWT claims using the configured signing key.
func (ts *TokenService) SignClaims(claims *JWTClaims) (string, error) {
	if claims == nil {
		return "", errors.New("claims must not be nil", errors.CategoryInternal)
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	signedString, err := token.SignedString(ts.signingKey)
	if err != nil {
		return "", errors.Wrap(err, errors.CategoryInternal, "failed to sign JWT")
	}

	return signedString, nil
}

// Validate parses and validates a token string. Verification is all or
// nothing: any failure returns no claims.
func (ts *TokenService) Validate(tokenString string) (*JWTClaims, error) {
	if tokenString == "" {
		return nil, ErrTokenInvalid
	}

	parserOptions := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(ts.now),
		jwt.WithExpirationRequired(),
	}
	if ts.issuer != "" {
		parserOptions = append(parserOptions, jwt.WithIssuer(ts.issuer))
	}

	token, err := jwt.ParseWithClaims(tokenString, &JWTClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			ts.logger.Error("token validate encountered unexpected signing method", "alg", t.Header["alg"])
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return ts.signingKey, nil
	}, parserOptions...)

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		ts.logger.Debug("token validate failed", "error", err)
		return nil, ErrTokenInvalid
	}

	claims, ok := token.Claims.(*JWTClaims)
	if !ok || !token.Valid {
		return nil, ErrTokenInvalid
	}

	if claims.UserID() == "" || !claims.UserRole.IsValid() {
		return nil, WithMessage(ErrTokenInvalid, "token carries an incomplete identity")
	}

	if ts.revoker != nil && claims.TokenID() != "" && ts.revoker.IsRevoked(claims.TokenID()) {
		return nil, ErrTokenRevoked
	}

	return claims, nil
}
