package auth

import (
	"testing"
	"time"

	"github.com/gofrs/uuid"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) now() time.Time { return c.t }

func newTestManager(t *testing.T, ttl time.Duration) (*TokenManager, *fakeClock) {
	t.Helper()

	clock := &fakeClock{t: time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)}
	m, err := NewTokenManager("super-secret", ttl, WithClock(clock.now))
	require.NoError(t, err)

	return m, clock
}

func TestNewTokenManager_RejectsBadConfig(t *testing.T) {
	t.Parallel()

	_, err := NewTokenManager("", time.Hour)
	assert.Error(t, err)

	_, err = NewTokenManager("secret", 0)
	assert.Error(t, err)
}

func TestGenerateAndParse_Success(t *testing.T) {
	t.Parallel()

	m, clock := newTestManager(t, time.Hour)
	userID := uuid.Must(uuid.NewV4())

	tok, expiresAt, err := m.GenerateJWT(userID, "admin", "admin@x.com")
	require.NoError(t, err)
	assert.NotEmpty(t, tok)
	assert.Equal(t, clock.t.Add(time.Hour), expiresAt)

	claims, err := m.ParseJWT(tok)
	require.NoError(t, err)
	assert.Equal(t, userID, claims.UserID)
	assert.Equal(t, "admin", claims.Role)
	assert.Equal(t, "admin@x.com", claims.Email)
	assert.Equal(t, userID.String(), claims.Subject)
}

func TestParseJWT_AcceptedUntilExpiry(t *testing.T) {
	t.Parallel()

	m, clock := newTestManager(t, time.Hour)
	issuedAt := clock.t

	tok, _, err := m.GenerateJWT(uuid.Must(uuid.NewV4()), "employee", "e@x.com")
	require.NoError(t, err)

	for _, offset := range []time.Duration{0, time.Minute, 59*time.Minute + 59*time.Second} {
		clock.t = issuedAt.Add(offset)
		_, err := m.ParseJWT(tok)
		assert.NoError(t, err, "offset %s", offset)
	}

	for _, offset := range []time.Duration{time.Hour, time.Hour + time.Second, 48 * time.Hour} {
		clock.t = issuedAt.Add(offset)
		_, err := m.ParseJWT(tok)
		assert.ErrorIs(t, err, ErrTokenExpired, "offset %s", offset)
	}
}

func TestGenerateJWT_SubSecondClock(t *testing.T) {
	t.Parallel()

	m, clock := newTestManager(t, time.Hour)
	clock.t = time.Date(2026, 3, 2, 9, 0, 0, 700_000_000, time.UTC)

	tok, expiresAt, err := m.GenerateJWT(uuid.Must(uuid.NewV4()), "employee", "e@x.com")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC), expiresAt)

	claims, err := m.ParseJWT(tok)
	require.NoError(t, err)
	assert.True(t, claims.ExpiresAt.Time.Equal(expiresAt))
	assert.True(t, claims.IssuedAt.Time.Equal(expiresAt.Add(-time.Hour)))

	clock.t = expiresAt.Add(-time.Nanosecond)
	_, err = m.ParseJWT(tok)
	assert.NoError(t, err)

	clock.t = expiresAt
	_, err = m.ParseJWT(tok)
	assert.ErrorIs(t, err, ErrTokenExpired)

	clock.t = expiresAt.Add(200 * time.Millisecond)
	_, err = m.ParseJWT(tok)
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestParseJWT_WrongSecret(t *testing.T) {
	t.Parallel()

	m, _ := newTestManager(t, time.Hour)
	other, err := NewTokenManager("other-secret", time.Hour)
	require.NoError(t, err)

	tok, _, err := other.GenerateJWT(uuid.Must(uuid.NewV4()), "admin", "a@x.com")
	require.NoError(t, err)

	_, err = m.ParseJWT(tok)
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestParseJWT_ExpiredWithWrongSecretIsInvalid(t *testing.T) {
	t.Parallel()

	m, _ := newTestManager(t, time.Hour)
	other, err := NewTokenManager("other-secret", time.Second, WithClock(func() time.Time {
		return time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	}))
	require.NoError(t, err)

	tok, _, err := other.GenerateJWT(uuid.Must(uuid.NewV4()), "admin", "a@x.com")
	require.NoError(t, err)

	_, err = m.ParseJWT(tok)
	assert.ErrorIs(t, err, ErrTokenInvalid)
	assert.NotErrorIs(t, err, ErrTokenExpired)
}

func TestParseJWT_Malformed(t *testing.T) {
	t.Parallel()

	m, _ := newTestManager(t, time.Hour)

	for _, tok := range []string{"not.a.jwt", "garbage", ""} {
		_, err := m.ParseJWT(tok)
		assert.ErrorIs(t, err, ErrTokenInvalid, "token %q", tok)
	}
}

func TestParseJWT_RejectsNoneAlgorithm(t *testing.T) {
	t.Parallel()

	m, clock := newTestManager(t, time.Hour)
	claims := &Claims{
		UserID: uuid.Must(uuid.NewV4()),
		Role:   "admin",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(clock.t.Add(time.Hour)),
		},
	}

	tok, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = m.ParseJWT(tok)
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestParseJWT_RequiresExpiry(t *testing.T) {
	t.Parallel()

	m, _ := newTestManager(t, time.Hour)
	claims := &Claims{UserID: uuid.Must(uuid.NewV4()), Role: "admin"}

	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("super-secret"))
	require.NoError(t, err)

	_, err = m.ParseJWT(tok)
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestParseJWT_RequiresUserID(t *testing.T) {
	t.Parallel()

	m, clock := newTestManager(t, time.Hour)
	claims := &Claims{
		Role: "admin",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(clock.t.Add(time.Hour)),
		},
	}

	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("super-secret"))
	require.NoError(t, err)

	_, err = m.ParseJWT(tok)
	assert.ErrorIs(t, err, ErrTokenInvalid)
}
