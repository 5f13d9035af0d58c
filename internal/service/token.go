package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/stack501/nodebird-api/internal/auth"
	"github.com/stack501/nodebird-api/internal/domain"
	"github.com/stack501/nodebird-api/internal/repository"
	apperrors "github.com/stack501/nodebird-api/pkg/errors"
)

// TokenService issues API tokens to registered domains and local users, and
// verifies presented tokens. Tokens are expiry-only; there is no revocation.
type TokenService struct {
	jwt     *auth.JWTManager
	domains repository.DomainRepository
	users   repository.UserRepository
	local   *LocalVerifier
	ttl     time.Duration
	logger  *slog.Logger
}

// NewTokenService creates a token service issuing tokens valid for ttl.
func NewTokenService(
	jwt *auth.JWTManager,
	domains repository.DomainRepository,
	users repository.UserRepository,
	local *LocalVerifier,
	ttl time.Duration,
	logger *slog.Logger,
) *TokenService {
	return &TokenService{
		jwt:     jwt,
		domains: domains,
		users:   users,
		local:   local,
		ttl:     ttl,
		logger:  logger,
	}
}

// IssueForClientSecret issues a token for the owner of the domain holding
// secret.
func (s *TokenService) IssueForClientSecret(ctx context.Context, secret string) (string, error) {
	d, err := s.domains.GetByClientSecret(ctx, secret)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return "", unregisteredDomain()
		}
		return "", fmt.Errorf("lookup domain: %w", err)
	}

	owner, err := s.users.GetByID(ctx, d.OwnerUserID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			s.logger.WarnContext(ctx, "domain owner no longer exists",
				slog.String("domain_id", d.ID),
				slog.String("owner_user_id", d.OwnerUserID),
			)
			return "", unregisteredDomain()
		}
		return "", fmt.Errorf("lookup domain owner: %w", err)
	}

	token, err := s.issue(owner.ID, owner.Nick)
	if err != nil {
		return "", err
	}
	tokensIssued.WithLabelValues("client_secret").Inc()
	s.logger.InfoContext(ctx, "token issued",
		slog.String("grant", "client_secret"),
		slog.String("user_id", owner.ID),
		slog.String("host", d.Host),
	)
	return token, nil
}

// IssueForCredentials authenticates a local user and issues a token.
func (s *TokenService) IssueForCredentials(ctx context.Context, email, password string) (string, error) {
	identity, err := s.local.AuthenticateLocal(ctx, email, password)
	if err != nil {
		return "", err
	}

	token, err := s.issue(identity.ID, identity.Nick)
	if err != nil {
		return "", err
	}
	tokensIssued.WithLabelValues("password").Inc()
	s.logger.InfoContext(ctx, "token issued",
		slog.String("grant", "password"),
		slog.String("user_id", identity.ID),
	)
	return token, nil
}

// Verify checks token and maps failures to transport errors: an expired
// token becomes TOKEN_EXPIRED (419), anything else TOKEN_INVALID (401).
func (s *TokenService) Verify(token string) (*auth.Claims, error) {
	claims, err := s.jwt.Verify(token)
	if err != nil {
		if errors.Is(err, domain.ErrTokenExpired) {
			return nil, apperrors.TokenExpired(err)
		}
		return nil, apperrors.Unauthorized("TOKEN_INVALID", "invalid token", err)
	}
	return claims, nil
}

func (s *TokenService) issue(userID, nick string) (string, error) {
	token, err := s.jwt.Issue(auth.Claims{UserID: userID, Nick: nick}, s.ttl)
	if err != nil {
		return "", fmt.Errorf("issue token: %w", err)
	}
	return token, nil
}

func unregisteredDomain() error {
	return apperrors.Unauthorized("UNREGISTERED_DOMAIN", "domain is not registered", domain.ErrDomainNotFound)
}
