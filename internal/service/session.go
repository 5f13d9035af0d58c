package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/stack501/nodebird-api/internal/domain"
	"github.com/stack501/nodebird-api/internal/repository"
	apperrors "github.com/stack501/nodebird-api/pkg/errors"
)

// SessionCodec maps identities to compact session references and back, and
// binds those references to opaque session ids in the session store.
type SessionCodec struct {
	users    repository.UserRepository
	follows  repository.FollowRepository
	sessions repository.SessionStore
	ttl      time.Duration
}

// NewSessionCodec creates a session codec whose sessions live for ttl.
func NewSessionCodec(users repository.UserRepository, follows repository.FollowRepository, sessions repository.SessionStore, ttl time.Duration) *SessionCodec {
	return &SessionCodec{users: users, follows: follows, sessions: sessions, ttl: ttl}
}

// Serialize reduces identity to its session reference, the user id.
func (c *SessionCodec) Serialize(identity *domain.Identity) string {
	return identity.ID
}

// Deserialize re-reads the user behind ref together with its followers and
// followings. A missing or soft-deleted user yields domain.ErrSessionInvalid.
func (c *SessionCodec) Deserialize(ctx context.Context, ref string) (*domain.Identity, error) {
	user, err := c.users.GetByID(ctx, ref)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, domain.ErrSessionInvalid
		}
		return nil, fmt.Errorf("load session user: %w", err)
	}

	identity := user.Identity()
	if identity.Followers, err = c.follows.Followers(ctx, user.ID); err != nil {
		return nil, fmt.Errorf("load followers: %w", err)
	}
	if identity.Followings, err = c.follows.Followings(ctx, user.ID); err != nil {
		return nil, fmt.Errorf("load followings: %w", err)
	}

	return identity, nil
}

// Establish starts a session for identity and returns its id.
func (c *SessionCodec) Establish(ctx context.Context, identity *domain.Identity) (string, error) {
	sessionID := uuid.NewString()
	if err := c.sessions.Save(ctx, sessionID, c.Serialize(identity), c.ttl); err != nil {
		return "", fmt.Errorf("save session: %w", err)
	}
	return sessionID, nil
}

// Load resolves a session id to an identity. Unknown or expired sessions
// yield domain.ErrSessionInvalid.
func (c *SessionCodec) Load(ctx context.Context, sessionID string) (*domain.Identity, error) {
	if sessionID == "" {
		return nil, domain.ErrSessionInvalid
	}

	ref, err := c.sessions.Get(ctx, sessionID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, domain.ErrSessionInvalid
		}
		return nil, fmt.Errorf("load session: %w", err)
	}

	return c.Deserialize(ctx, ref)
}

// End deletes the session.
func (c *SessionCodec) End(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return nil
	}
	if err := c.sessions.Delete(ctx, sessionID); err != nil {
		return fmt.Errorf("end session: %w", err)
	}
	return nil
}
