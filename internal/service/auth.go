package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/stack501/nodebird-api/internal/domain"
	"github.com/stack501/nodebird-api/internal/repository"
	apperrors "github.com/stack501/nodebird-api/pkg/errors"
)

// maxPasswordBytes is the longest input bcrypt accepts.
const maxPasswordBytes = 72

// AuthService runs the browser authentication flows: local sign-up, login
// with any configured verifier, and session lifecycle.
type AuthService struct {
	users      repository.UserRepository
	sessions   *SessionCodec
	events     EventPublisher
	verifiers  map[domain.Provider]Verifier
	bcryptCost int
	logger     *slog.Logger
}

// NewAuthService creates an auth service. Each verifier is registered under
// its own provider name.
func NewAuthService(
	users repository.UserRepository,
	sessions *SessionCodec,
	events EventPublisher,
	bcryptCost int,
	logger *slog.Logger,
	verifiers ...Verifier,
) *AuthService {
	byProvider := make(map[domain.Provider]Verifier, len(verifiers))
	for _, v := range verifiers {
		byProvider[v.Provider()] = v
	}
	return &AuthService{
		users:      users,
		sessions:   sessions,
		events:     events,
		verifiers:  byProvider,
		bcryptCost: bcryptCost,
		logger:     logger,
	}
}

// JoinInput holds the parameters for a local sign-up.
type JoinInput struct {
	Nick     string
	Email    string
	Password string
}

// Join registers a local user. A taken email is reported as
// apperrors.ErrAlreadyExists.
func (s *AuthService) Join(ctx context.Context, input JoinInput) (*domain.Identity, error) {
	input.Email = strings.TrimSpace(input.Email)
	input.Nick = strings.TrimSpace(input.Nick)
	if input.Email == "" {
		return nil, apperrors.InvalidInput("email is required")
	}
	if input.Nick == "" {
		return nil, apperrors.InvalidInput("nick is required")
	}
	if utf8.RuneCountInString(input.Nick) > domain.MaxNickLength {
		return nil, apperrors.InvalidInput(fmt.Sprintf("nick must be at most %d characters", domain.MaxNickLength))
	}
	if input.Password == "" {
		return nil, apperrors.InvalidInput("password is required")
	}
	if len(input.Password) > maxPasswordBytes {
		return nil, apperrors.InvalidInput(fmt.Sprintf("password must be at most %d bytes", maxPasswordBytes))
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), s.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	now := time.Now().UTC()
	user := &domain.User{
		ID:           uuid.NewString(),
		Email:        input.Email,
		Nick:         input.Nick,
		PasswordHash: string(hash),
		Provider:     domain.ProviderLocal,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.users.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}

	if err := s.events.PublishUserJoined(ctx, user); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish user.joined event",
			slog.String("user_id", user.ID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "user joined",
		slog.String("user_id", user.ID),
		slog.String("provider", string(user.Provider)),
	)

	return user.Identity(), nil
}

// Login verifies creds with the verifier registered for provider and starts a
// session. It returns the identity and the new session id.
func (s *AuthService) Login(ctx context.Context, provider domain.Provider, creds Credentials) (*domain.Identity, string, error) {
	v, ok := s.verifiers[provider]
	if !ok {
		return nil, "", fmt.Errorf("%w: %s", domain.ErrProviderDisabled, provider)
	}

	identity, err := v.Verify(ctx, creds)
	if err != nil {
		return nil, "", err
	}

	sessionID, err := s.sessions.Establish(ctx, identity)
	if err != nil {
		return nil, "", err
	}

	s.logger.InfoContext(ctx, "user logged in",
		slog.String("user_id", identity.ID),
		slog.String("provider", string(provider)),
	)

	return identity, sessionID, nil
}

// Logout ends the session. Unknown sessions are ignored.
func (s *AuthService) Logout(ctx context.Context, sessionID string) error {
	return s.sessions.End(ctx, sessionID)
}

// Session resolves a session id to the logged-in identity, or
// domain.ErrSessionInvalid.
func (s *AuthService) Session(ctx context.Context, sessionID string) (*domain.Identity, error) {
	return s.sessions.Load(ctx, sessionID)
}

// Identity loads the identity of userID with its follow relations.
func (s *AuthService) Identity(ctx context.Context, userID string) (*domain.Identity, error) {
	identity, err := s.sessions.Deserialize(ctx, userID)
	if err != nil {
		if errors.Is(err, domain.ErrSessionInvalid) {
			return nil, apperrors.NotFound("user", userID)
		}
		return nil, err
	}
	return identity, nil
}

// AuthCodeURL returns the consent page URL for a federated provider.
func (s *AuthService) AuthCodeURL(provider domain.Provider, state string) (string, error) {
	v, ok := s.verifiers[provider]
	if !ok {
		return "", fmt.Errorf("%w: %s", domain.ErrProviderDisabled, provider)
	}
	federated, ok := v.(*FederatedVerifier)
	if !ok {
		return "", fmt.Errorf("%w: %s has no consent page", domain.ErrProviderDisabled, provider)
	}
	return federated.AuthCodeURL(state), nil
}
