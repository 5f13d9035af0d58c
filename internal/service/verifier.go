package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/crypto/bcrypt"

	"github.com/stack501/nodebird-api/internal/auth"
	"github.com/stack501/nodebird-api/internal/domain"
	"github.com/stack501/nodebird-api/internal/repository"
	apperrors "github.com/stack501/nodebird-api/pkg/errors"
)

// authFailedMessage is shown for every local login failure so responses do
// not reveal whether the email is registered.
const authFailedMessage = "invalid email or password"

// Credentials carries whatever a Verifier needs: email and password for
// local login, an authorization code for federated login.
type Credentials struct {
	Email    string
	Password string
	Code     string
}

// Verifier authenticates credentials for one provider.
type Verifier interface {
	Provider() domain.Provider
	Verify(ctx context.Context, creds Credentials) (*domain.Identity, error)
}

// LocalVerifier checks email and password against stored bcrypt hashes.
type LocalVerifier struct {
	users     repository.UserRepository
	dummyHash []byte
	logger    *slog.Logger
}

// NewLocalVerifier creates a local verifier. cost must match the cost used
// for stored hashes so that unknown emails take as long as wrong passwords.
func NewLocalVerifier(users repository.UserRepository, cost int, logger *slog.Logger) (*LocalVerifier, error) {
	random := make([]byte, 32)
	if _, err := rand.Read(random); err != nil {
		return nil, fmt.Errorf("generate dummy password: %w", err)
	}
	dummy, err := bcrypt.GenerateFromPassword(random, cost)
	if err != nil {
		return nil, fmt.Errorf("hash dummy password: %w", err)
	}

	return &LocalVerifier{users: users, dummyHash: dummy, logger: logger}, nil
}

// Provider returns domain.ProviderLocal.
func (v *LocalVerifier) Provider() domain.Provider {
	return domain.ProviderLocal
}

// Verify authenticates creds.Email and creds.Password.
func (v *LocalVerifier) Verify(ctx context.Context, creds Credentials) (*domain.Identity, error) {
	return v.AuthenticateLocal(ctx, creds.Email, creds.Password)
}

// AuthenticateLocal looks up a local user by email and compares password with
// the stored hash. Both failure kinds are returned as the same AUTH_FAILED
// error; domain.ErrUserNotFound or domain.ErrPasswordMismatch stays reachable
// through errors.Is. The store is never written.
func (v *LocalVerifier) AuthenticateLocal(ctx context.Context, email, password string) (*domain.Identity, error) {
	user, err := v.users.GetLocalByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, apperrors.ErrNotFound) {
			return nil, fmt.Errorf("lookup local user: %w", err)
		}
		// Spend one hash comparison so the response time matches a known email.
		_ = bcrypt.CompareHashAndPassword(v.dummyHash, []byte(password))
		return nil, v.fail(ctx, domain.ErrUserNotFound, "user_not_found")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return nil, v.fail(ctx, domain.ErrPasswordMismatch, "password_mismatch", slog.String("user_id", user.ID))
		}
		return nil, fmt.Errorf("compare password hash for user %s: %w", user.ID, err)
	}

	authAttempts.WithLabelValues(string(domain.ProviderLocal), "success").Inc()
	return user.Identity(), nil
}

func (v *LocalVerifier) fail(ctx context.Context, kind error, reason string, attrs ...slog.Attr) error {
	authAttempts.WithLabelValues(string(domain.ProviderLocal), reason).Inc()
	attrs = append([]slog.Attr{slog.String("reason", reason)}, attrs...)
	v.logger.LogAttrs(ctx, slog.LevelWarn, "local authentication failed", attrs...)
	return apperrors.Unauthorized("AUTH_FAILED", authFailedMessage, kind)
}

// FederatedVerifier completes an OAuth authorization code flow and resolves
// the returned profile to a local identity.
type FederatedVerifier struct {
	provider auth.OAuthProvider
	resolver *FederatedResolver
	logger   *slog.Logger
}

// NewFederatedVerifier creates a verifier for provider.
func NewFederatedVerifier(provider auth.OAuthProvider, resolver *FederatedResolver, logger *slog.Logger) *FederatedVerifier {
	return &FederatedVerifier{provider: provider, resolver: resolver, logger: logger}
}

// Provider returns the wrapped provider's name.
func (v *FederatedVerifier) Provider() domain.Provider {
	return v.provider.Name()
}

// AuthCodeURL returns the provider's consent page URL.
func (v *FederatedVerifier) AuthCodeURL(state string) string {
	return v.provider.AuthCodeURL(state)
}

// Verify exchanges creds.Code with the provider and resolves the profile.
// No lock is held during the exchange.
func (v *FederatedVerifier) Verify(ctx context.Context, creds Credentials) (*domain.Identity, error) {
	name := string(v.provider.Name())
	if creds.Code == "" {
		authAttempts.WithLabelValues(name, "missing_code").Inc()
		return nil, apperrors.Unauthorized("FEDERATED_LOGIN_FAILED", "authorization code is missing", nil)
	}

	profile, err := v.provider.Exchange(ctx, creds.Code)
	if err != nil {
		authAttempts.WithLabelValues(name, "exchange_failed").Inc()
		v.logger.WarnContext(ctx, "federated code exchange failed",
			slog.String("provider", name),
			slog.String("error", err.Error()),
		)
		return nil, apperrors.Unauthorized("FEDERATED_LOGIN_FAILED", "federated login failed", err)
	}

	identity, err := v.resolver.Resolve(ctx, v.provider.Name(), *profile)
	if err != nil {
		return nil, err
	}

	authAttempts.WithLabelValues(name, "success").Inc()
	return identity, nil
}
