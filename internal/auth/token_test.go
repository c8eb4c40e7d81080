package auth

import (
	"strings"
	"testing"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/marketplace-auth/internal/domain"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func newTestTokens(clock *fakeClock) *TokenManager {
	return NewTokenManager("test-secret", WithClock(clock.Now))
}

func TestTokenManagerIssue(t *testing.T) {
	clock := &fakeClock{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
	tm := newTestTokens(clock)

	pair, err := tm.Issue("acct-1", "a@x.com", domain.RoleVendor)
	require.NoError(t, err)
	assert.Equal(t, clock.now.Add(time.Hour), pair.AccessExpiresAt)
	assert.Equal(t, clock.now.Add(7*24*time.Hour), pair.RefreshExpiresAt)

	access, err := tm.ParseAccessToken(pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "acct-1", access.Subject)
	assert.Equal(t, "a@x.com", access.Email)
	assert.Equal(t, domain.RoleVendor, access.Role)

	refresh, err := tm.ParseRefreshToken(pair.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, "acct-1", refresh.Subject)
	assert.Equal(t, pair.RefreshVersion, refresh.Version)

	_, err = tm.Issue("", "a@x.com", domain.RoleVendor)
	assert.Error(t, err)
}

func TestTokenManagerRefreshVersions(t *testing.T) {
	clock := &fakeClock{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
	tm := newTestTokens(clock)

	first, err := tm.Issue("acct-1", "a@x.com", domain.RoleCustomer)
	require.NoError(t, err)
	second, err := tm.Issue("acct-1", "a@x.com", domain.RoleCustomer)
	require.NoError(t, err)

	assert.NotEqual(t, first.RefreshVersion, second.RefreshVersion)
	assert.Less(t, first.RefreshVersion, second.RefreshVersion)
}

func TestTokenManagerExpiry(t *testing.T) {
	issuedAt := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	clock := &fakeClock{now: issuedAt}
	tm := newTestTokens(clock)

	pair, err := tm.Issue("acct-1", "a@x.com", domain.RoleCustomer)
	require.NoError(t, err)

	clock.now = issuedAt.Add(time.Hour + time.Second)
	_, err = tm.ParseAccessToken(pair.AccessToken)
	assert.ErrorIs(t, err, ErrTokenExpired)
	assert.NotErrorIs(t, err, ErrTokenInvalid)

	_, err = tm.ParseRefreshToken(pair.RefreshToken)
	assert.NoError(t, err)

	clock.now = issuedAt.Add(7*24*time.Hour + time.Second)
	_, err = tm.ParseRefreshToken(pair.RefreshToken)
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestTokenManagerInvalid(t *testing.T) {
	clock := &fakeClock{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
	tm := newTestTokens(clock)
	pair, err := tm.Issue("acct-1", "a@x.com", domain.RoleCustomer)
	require.NoError(t, err)

	t.Run("Should reject a tampered payload", func(t *testing.T) {
		access := strings.Split(pair.AccessToken, ".")
		refresh := strings.Split(pair.RefreshToken, ".")
		tampered := strings.Join([]string{access[0], refresh[1], access[2]}, ".")
		_, err := tm.ParseAccessToken(tampered)
		assert.ErrorIs(t, err, ErrTokenInvalid)
	})

	t.Run("Should reject a token signed with another secret", func(t *testing.T) {
		other := NewTokenManager("other-secret", WithClock(clock.Now))
		_, err := other.ParseAccessToken(pair.AccessToken)
		assert.ErrorIs(t, err, ErrTokenInvalid)
	})

	t.Run("Should reject the wrong token type", func(t *testing.T) {
		_, err := tm.ParseAccessToken(pair.RefreshToken)
		assert.ErrorIs(t, err, ErrTokenInvalid)
		_, err = tm.ParseRefreshToken(pair.AccessToken)
		assert.ErrorIs(t, err, ErrTokenInvalid)
	})

	t.Run("Should reject garbage and empty input", func(t *testing.T) {
		_, err := tm.ParseAccessToken("not.a.token")
		assert.ErrorIs(t, err, ErrTokenInvalid)
		_, err = tm.ParseAccessToken("")
		assert.ErrorIs(t, err, ErrTokenInvalid)
	})

	t.Run("Should reject the none algorithm", func(t *testing.T) {
		claims := &Claims{
			TokenType: tokenTypeAccess,
			RegisteredClaims: jwt.RegisteredClaims{
				Subject:   "acct-1",
				IssuedAt:  jwt.NewNumericDate(clock.now),
				ExpiresAt: jwt.NewNumericDate(clock.now.Add(time.Hour)),
			},
		}
		unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
		require.NoError(t, err)
		_, err = tm.ParseAccessToken(unsigned)
		assert.ErrorIs(t, err, ErrTokenInvalid)
	})
}
