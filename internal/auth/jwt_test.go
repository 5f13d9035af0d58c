package auth

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stack501/nodebird-api/internal/domain"
)

const testSecret = "test-secret-key-for-testing-only-32b"

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time { return c.t }

func newTestManager() (*JWTManager, *fakeClock) {
	clock := &fakeClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	return NewJWTManager(testSecret, "nodebird", WithClock(clock.Now)), clock
}

func TestJWTManager_RoundTrip(t *testing.T) {
	m, _ := newTestManager()

	token, err := m.Issue(Claims{UserID: "u-1", Nick: "zero"}, time.Minute)
	require.NoError(t, err)

	claims, err := m.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "u-1", claims.UserID)
	assert.Equal(t, "zero", claims.Nick)
	assert.Equal(t, "u-1", claims.Subject)
	assert.Equal(t, "nodebird", claims.Issuer)
	assert.Equal(t, time.Minute, claims.ExpiresAt.Sub(claims.IssuedAt.Time))
}

func TestJWTManager_Expired(t *testing.T) {
	m, clock := newTestManager()

	token, err := m.Issue(Claims{UserID: "u-1", Nick: "zero"}, time.Minute)
	require.NoError(t, err)

	clock.t = clock.t.Add(61 * time.Second)

	_, err = m.Verify(token)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrTokenExpired), "expected ErrTokenExpired, got: %v", err)
	assert.False(t, errors.Is(err, domain.ErrTokenInvalid))
}

func TestJWTManager_ValidJustBeforeExpiry(t *testing.T) {
	m, clock := newTestManager()

	token, err := m.Issue(Claims{UserID: "u-1"}, time.Minute)
	require.NoError(t, err)

	clock.t = clock.t.Add(59 * time.Second)
	_, err = m.Verify(token)
	assert.NoError(t, err)
}

func TestJWTManager_SubSecondIssueKeepsFullTTL(t *testing.T) {
	issuedAt := time.Unix(1_700_000_000, int64(900*time.Millisecond)).UTC()
	clock := &fakeClock{t: issuedAt}
	m := NewJWTManager(testSecret, "nodebird", WithClock(clock.Now))

	token, err := m.Issue(Claims{UserID: "u-1"}, time.Minute)
	require.NoError(t, err)

	clock.t = issuedAt.Add(59*time.Second + 200*time.Millisecond)
	claims, err := m.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, time.Unix(1_700_000_061, 0).UTC(), claims.ExpiresAt.Time.UTC())

	clock.t = issuedAt.Add(time.Minute + 999*time.Millisecond)
	_, err = m.Verify(token)
	assert.ErrorIs(t, err, domain.ErrTokenExpired)
}

func TestJWTManager_SingleBitMutation(t *testing.T) {
	m, _ := newTestManager()

	token, err := m.Issue(Claims{UserID: "u-1", Nick: "zero"}, time.Minute)
	require.NoError(t, err)

	// Flip one bit in a character of every segment in turn.
	parts := strings.Split(token, ".")
	require.Len(t, parts, 3)
	for seg := range parts {
		mutated := append([]string(nil), parts...)
		b := []byte(mutated[seg])
		b[len(b)/2] ^= 0x01
		mutated[seg] = string(b)

		_, err := m.Verify(strings.Join(mutated, "."))
		require.Error(t, err, "segment %d", seg)
		assert.True(t, errors.Is(err, domain.ErrTokenInvalid), "segment %d: got %v", seg, err)
	}
}

func TestJWTManager_TamperedExpiredTokenIsInvalid(t *testing.T) {
	m, clock := newTestManager()

	token, err := m.Issue(Claims{UserID: "u-1"}, time.Minute)
	require.NoError(t, err)
	clock.t = clock.t.Add(time.Hour)

	b := []byte(token)
	i := len(b) - 5
	if b[i] == 'A' {
		b[i] = 'B'
	} else {
		b[i] = 'A'
	}

	_, err = m.Verify(string(b))
	assert.True(t, errors.Is(err, domain.ErrTokenInvalid), "got %v", err)
}

func TestJWTManager_WrongSecret(t *testing.T) {
	m, clock := newTestManager()
	other := NewJWTManager("another-secret-key-for-testing-32b", "nodebird", WithClock(clock.Now))

	token, err := other.Issue(Claims{UserID: "u-1"}, time.Minute)
	require.NoError(t, err)

	_, err = m.Verify(token)
	assert.True(t, errors.Is(err, domain.ErrTokenInvalid))
}

func TestJWTManager_WrongIssuer(t *testing.T) {
	m, clock := newTestManager()
	other := NewJWTManager(testSecret, "someone-else", WithClock(clock.Now))

	token, err := other.Issue(Claims{UserID: "u-1"}, time.Minute)
	require.NoError(t, err)

	_, err = m.Verify(token)
	assert.True(t, errors.Is(err, domain.ErrTokenInvalid))
}

func TestJWTManager_RejectsOtherAlgorithms(t *testing.T) {
	m, clock := newTestManager()

	claims := &Claims{
		UserID: "u-1",
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "nodebird",
			ExpiresAt: jwt.NewNumericDate(clock.t.Add(time.Minute)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)

	_, err = m.Verify(token)
	assert.True(t, errors.Is(err, domain.ErrTokenInvalid))

	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = m.Verify(none)
	assert.True(t, errors.Is(err, domain.ErrTokenInvalid))
}

func TestJWTManager_RequiresExpiry(t *testing.T) {
	m, _ := newTestManager()

	claims := &Claims{UserID: "u-1", RegisteredClaims: jwt.RegisteredClaims{Issuer: "nodebird"}}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)

	_, err = m.Verify(token)
	assert.True(t, errors.Is(err, domain.ErrTokenInvalid))
}

func TestJWTManager_Garbage(t *testing.T) {
	m, _ := newTestManager()

	for _, token := range []string{"", "abc", "a.b.c", "Bearer x.y.z"} {
		_, err := m.Verify(token)
		assert.True(t, errors.Is(err, domain.ErrTokenInvalid), "token %q", token)
	}
}
