package auth_test

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	auth "github.com/goliatone/go-shop-auth"
)

var testUser = auth.TokenUser{UserID: "acc-1", Name: "Alice", Role: auth.RoleAdmin}

type fakeClock struct {
	now time.Time
}

func (f *fakeClock) Now() time.Time { return f.now }

func (f *fakeClock) Advance(d time.Duration) { f.now = f.now.Add(d) }

func newClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func TestNewTokenServiceRequiresKey(t *testing.T) {
	ts, err := auth.NewTokenService(nil, time.Hour, "shop")
	assert.Nil(t, ts)
	assert.ErrorIs(t, err, auth.ErrMissingSigningKey)
}

func TestNewTokenServiceDefaultTTL(t *testing.T) {
	ts, err := auth.NewTokenService([]byte("k"), 0, "shop")
	require.NoError(t, err)
	assert.Equal(t, auth.DefaultTokenExpiration, ts.TTL())
}

func TestIssueAndValidate(t *testing.T) {
	clock := newClock()
	ts, err := auth.NewTokenService([]byte("test-signing-key"), time.Hour, "shop", auth.WithClock(clock.Now))
	require.NoError(t, err)

	token, expiresAt, err := ts.Issue(testUser)
	require.NoError(t, err)
	assert.Equal(t, clock.now.Add(time.Hour), expiresAt)

	claims, err := ts.Validate(token)
	require.NoError(t, err)

	assert.Equal(t, testUser, claims.User())
	assert.Equal(t, "acc-1", claims.Subject())
	assert.Equal(t, "shop", claims.Issuer)
	assert.NotEmpty(t, claims.TokenID())
	assert.Equal(t, expiresAt.Unix(), claims.Expires().Unix())
	assert.Equal(t, clock.now.Unix(), claims.IssuedAt().Unix())
}

func TestIssueUniqueTokenIDs(t *testing.T) {
	ts, err := auth.NewTokenService([]byte("k"), time.Hour, "shop")
	require.NoError(t, err)

	a, _, err := ts.Issue(testUser)
	require.NoError(t, err)
	b, _, err := ts.Issue(testUser)
	require.NoError(t, err)

	ca, err := ts.Validate(a)
	require.NoError(t, err)
	cb, err := ts.Validate(b)
	require.NoError(t, err)
	assert.NotEqual(t, ca.TokenID(), cb.TokenID())
}

func TestIssueRejectsIncompleteUser(t *testing.T) {
	ts, err := auth.NewTokenService([]byte("k"), time.Hour, "shop")
	require.NoError(t, err)

	_, _, err = ts.Issue(auth.TokenUser{Name: "nobody", Role: auth.RoleUser})
	assert.Error(t, err)

	_, _, err = ts.Issue(auth.TokenUser{UserID: "x", Role: "superuser"})
	assert.ErrorIs(t, err, auth.ErrInvalidRole)
}

func TestValidateExpired(t *testing.T) {
	clock := newClock()
	ts, err := auth.NewTokenService([]byte("k"), time.Hour, "shop", auth.WithClock(clock.Now))
	require.NoError(t, err)

	token, _, err := ts.Issue(testUser)
	require.NoError(t, err)

	clock.Advance(59 * time.Minute)
	_, err = ts.Validate(token)
	require.NoError(t, err)

	clock.Advance(2 * time.Minute)
	claims, err := ts.Validate(token)
	assert.Nil(t, claims)
	assert.ErrorIs(t, err, auth.ErrTokenExpired)
}

func TestValidateTampered(t *testing.T) {
	ts, err := auth.NewTokenService([]byte("k"), time.Hour, "shop")
	require.NoError(t, err)

	token, _, err := ts.Issue(auth.TokenUser{UserID: "acc-2", Name: "Bob", Role: auth.RoleUser})
	require.NoError(t, err)

	parts := strings.Split(token, ".")
	require.Len(t, parts, 3)

	// swap in a payload from an admin token signed with another key
	other, err := auth.NewTokenService([]byte("other"), time.Hour, "shop")
	require.NoError(t, err)
	forged, _, err := other.Issue(testUser)
	require.NoError(t, err)
	parts[1] = strings.Split(forged, ".")[1]

	claims, err := ts.Validate(strings.Join(parts, "."))
	assert.Nil(t, claims)
	assert.ErrorIs(t, err, auth.ErrTokenInvalid)

	claims, err = ts.Validate(forged)
	assert.Nil(t, claims)
	assert.ErrorIs(t, err, auth.ErrTokenInvalid)
}

func TestValidateGarbage(t *testing.T) {
	ts, err := auth.NewTokenService([]byte("k"), time.Hour, "shop")
	require.NoError(t, err)

	for _, raw := range []string{"", "abc", "a.b.c"} {
		claims, err := ts.Validate(raw)
		assert.Nil(t, claims)
		assert.ErrorIs(t, err, auth.ErrTokenInvalid, raw)
	}
}

func TestValidateRejectsOtherAlgorithms(t *testing.T) {
	ts, err := auth.NewTokenService([]byte("k"), time.Hour, "shop")
	require.NoError(t, err)

	claims := &auth.JWTClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "acc-1",
			Issuer:    "shop",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		UID:      "acc-1",
		UserRole: auth.RoleAdmin,
	}
	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = ts.Validate(unsigned)
	assert.ErrorIs(t, err, auth.ErrTokenInvalid)
}

func TestValidateWrongIssuer(t *testing.T) {
	key := []byte("shared")
	issuer, err := auth.NewTokenService(key, time.Hour, "elsewhere")
	require.NoError(t, err)
	ts, err := auth.NewTokenService(key, time.Hour, "shop")
	require.NoError(t, err)

	token, _, err := issuer.Issue(testUser)
	require.NoError(t, err)

	_, err = ts.Validate(token)
	assert.ErrorIs(t, err, auth.ErrTokenInvalid)
}

func TestValidateRevoked(t *testing.T) {
	revoker := auth.NewMemoryRevoker()
	ts, err := auth.NewTokenService([]byte("k"), time.Hour, "shop", auth.WithRevoker(revoker))
	require.NoError(t, err)

	token, _, err := ts.Issue(testUser)
	require.NoError(t, err)

	claims, err := ts.Validate(token)
	require.NoError(t, err)

	revoker.Revoke(claims.TokenID(), claims.Expires())

	_, err = ts.Validate(token)
	assert.ErrorIs(t, err, auth.ErrTokenRevoked)
}

type staticConfig struct {
	key string
	ttl time.Duration
}

func (s staticConfig) GetSigningKey() string             { return s.key }
func (s staticConfig) GetIssuer() string                 { return "shop" }
func (s staticConfig) GetTokenExpiration() time.Duration { return s.ttl }
func (s staticConfig) GetCookieName() string             { return auth.DefaultCookieName }
func (s staticConfig) GetCookieSecure() bool             { return false }
func (s staticConfig) GetPasswordCost() int              { return 4 }
func (s staticConfig) GetDistinctLoginErrors() bool      { return false }

func TestNewTokenServiceFromConfig(t *testing.T) {
	ts, err := auth.NewTokenServiceFromConfig(staticConfig{key: "k", ttl: 2 * time.Hour})
	require.NoError(t, err)
	assert.Equal(t, 2*time.Hour, ts.TTL())

	_, err = auth.NewTokenServiceFromConfig(staticConfig{})
	assert.ErrorIs(t, err, auth.ErrMissingSigningKey)
}
