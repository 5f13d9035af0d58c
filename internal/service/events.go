package service

import (
	"context"

	"github.com/stack501/nodebird-api/internal/domain"
)

// EventPublisher announces identity changes to other systems. Publishing is
// best-effort: failures are logged and never fail the request.
type EventPublisher interface {
	PublishUserJoined(ctx context.Context, user *domain.User) error
	PublishDomainRegistered(ctx context.Context, d *domain.Domain) error
}
