package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/stack501/nodebird-api/internal/domain"
	"github.com/stack501/nodebird-api/internal/repository"
	apperrors "github.com/stack501/nodebird-api/pkg/errors"
)

// FederatedResolver finds or creates the local user behind an external
// identity. The (provider, sns_id) unique index settles concurrent first
// logins: the losing insert re-reads the winning row.
type FederatedResolver struct {
	users  repository.UserRepository
	events EventPublisher
	logger *slog.Logger
}

// NewFederatedResolver creates a federated identity resolver.
func NewFederatedResolver(users repository.UserRepository, events EventPublisher, logger *slog.Logger) *FederatedResolver {
	return &FederatedResolver{users: users, events: events, logger: logger}
}

// Resolve returns the identity for (provider, profile.ID), creating the user
// on first sight.
func (r *FederatedResolver) Resolve(ctx context.Context, provider domain.Provider, profile domain.ExternalProfile) (*domain.Identity, error) {
	if profile.ID == "" {
		return nil, apperrors.InvalidInput("external profile has no id")
	}

	user, err := r.users.GetByProvider(ctx, provider, profile.ID)
	if err == nil {
		return user.Identity(), nil
	}
	if !errors.Is(err, apperrors.ErrNotFound) {
		return nil, fmt.Errorf("lookup %s user: %w", provider, err)
	}

	now := time.Now().UTC()
	user = &domain.User{
		ID:        uuid.NewString(),
		Email:     profile.Email,
		Nick:      domain.FederatedNick(provider, profile),
		Provider:  provider,
		SnsID:     profile.ID,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := r.users.Create(ctx, user); err != nil {
		if !errors.Is(err, apperrors.ErrAlreadyExists) {
			return nil, fmt.Errorf("create %s user: %w", provider, err)
		}
		winner, lookupErr := r.users.GetByProvider(ctx, provider, profile.ID)
		if lookupErr != nil {
			return nil, fmt.Errorf("re-resolve %s user after conflict: %w", provider, lookupErr)
		}
		federatedSignups.WithLabelValues(string(provider), "lost_race").Inc()
		r.logger.InfoContext(ctx, "concurrent federated sign-up resolved to existing user",
			slog.String("provider", string(provider)),
			slog.String("user_id", winner.ID),
		)
		return winner.Identity(), nil
	}

	federatedSignups.WithLabelValues(string(provider), "created").Inc()
	if err := r.events.PublishUserJoined(ctx, user); err != nil {
		r.logger.ErrorContext(ctx, "failed to publish user.joined event",
			slog.String("user_id", user.ID),
			slog.String("error", err.Error()),
		)
	}

	r.logger.InfoContext(ctx, "federated user created",
		slog.String("provider", string(provider)),
		slog.String("user_id", user.ID),
	)

	return user.Identity(), nil
}
