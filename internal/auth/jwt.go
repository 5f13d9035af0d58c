package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/stack501/nodebird-api/internal/domain"
)

// Claims is the payload of an API access token.
type Claims struct {
	UserID string `json:"id"`
	Nick   string `json:"nick"`
	jwt.RegisteredClaims
}

// JWTManager issues and verifies HS256 access tokens.
type JWTManager struct {
	secret []byte
	issuer string
	now    func() time.Time
}

// Option configures a JWTManager.
type Option func(*JWTManager)

// WithClock replaces the wall clock used for iat, exp and expiry checks.
func WithClock(now func() time.Time) Option {
	return func(m *JWTManager) { m.now = now }
}

// NewJWTManager creates a JWT manager signing with secret on behalf of issuer.
func NewJWTManager(secret, issuer string, opts ...Option) *JWTManager {
	m := &JWTManager{
		secret: []byte(secret),
		issuer: issuer,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Issue signs claims with iat set to now and exp to now+ttl. The subject is
// always the user id. exp is rounded up to a whole second so a token never
// expires before ttl has elapsed.
func (m *JWTManager) Issue(claims Claims, ttl time.Duration) (string, error) {
	now := m.now().UTC()
	claims.RegisteredClaims = jwt.RegisteredClaims{
		Subject:   claims.UserID,
		Issuer:    m.issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(ceilSecond(now.Add(ttl))),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, &claims)
	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("sign access token: %w", err)
	}

	return signed, nil
}

// ceilSecond rounds t up to the next whole second. NumericDate truncates.
func ceilSecond(t time.Time) time.Time {
	if down := t.Truncate(time.Second); down.Before(t) {
		return down.Add(time.Second)
	}
	return t
}

// Verify checks the signature first and the expiry second. Any failure other
// than expiry is reported as domain.ErrTokenInvalid; a correctly signed token
// past its exp is domain.ErrTokenExpired.
func (m *JWTManager) Verify(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims,
		func(*jwt.Token) (any, error) { return m.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuer(m.issuer),
		jwt.WithStrictDecoding(),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("%w: %w", domain.ErrTokenExpired, err)
		}
		return nil, fmt.Errorf("%w: %w", domain.ErrTokenInvalid, err)
	}
	if !token.Valid || claims.UserID == "" {
		return nil, domain.ErrTokenInvalid
	}

	return claims, nil
}
