package repository

import (
	"context"
	"time"

	"github.com/stack501/nodebird-api/internal/domain"
)

// UserRepository defines persistence operations for users. Every lookup
// ignores soft-deleted rows.
type UserRepository interface {
	// Create inserts a new user. A unique violation on the local email or on
	// (provider, sns_id) is reported as apperrors.ErrAlreadyExists.
	Create(ctx context.Context, user *domain.User) error

	// GetByID retrieves a user by id.
	GetByID(ctx context.Context, id string) (*domain.User, error)

	// GetLocalByEmail retrieves a local-provider user by email.
	GetLocalByEmail(ctx context.Context, email string) (*domain.User, error)

	// GetByProvider retrieves a federated user by provider and external id.
	GetByProvider(ctx context.Context, provider domain.Provider, snsID string) (*domain.User, error)
}

// FollowRepository defines persistence operations for the follow edge.
type FollowRepository interface {
	// Follow records that followerID follows followingID. Repeating an
	// existing edge is a no-op.
	Follow(ctx context.Context, followerID, followingID string) error

	// Followers lists the users following userID.
	Followers(ctx context.Context, userID string) ([]domain.FollowRef, error)

	// Followings lists the users userID follows.
	Followings(ctx context.Context, userID string) ([]domain.FollowRef, error)
}

// DomainRepository defines persistence operations for registered domains.
type DomainRepository interface {
	// Create inserts a new domain. A duplicate host is reported as
	// apperrors.ErrAlreadyExists.
	Create(ctx context.Context, d *domain.Domain) error

	// GetByClientSecret retrieves the domain owning secret.
	GetByClientSecret(ctx context.Context, secret string) (*domain.Domain, error)

	// ListByOwner returns the domains registered by userID, newest first.
	ListByOwner(ctx context.Context, userID string) ([]domain.Domain, error)

	// ExistsByHost reports whether the normalized host is registered.
	ExistsByHost(ctx context.Context, host string) (bool, error)
}

// SessionStore maps opaque session ids to user ids.
type SessionStore interface {
	// Save binds sessionID to userID for ttl.
	Save(ctx context.Context, sessionID, userID string, ttl time.Duration) error

	// Get returns the user id bound to sessionID, or apperrors.ErrNotFound.
	Get(ctx context.Context, sessionID string) (string, error)

	// Delete removes sessionID. Deleting an unknown session is not an error.
	Delete(ctx context.Context, sessionID string) error
}
