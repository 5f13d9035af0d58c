package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/stack501/nodebird-api/internal/repository"
	apperrors "github.com/stack501/nodebird-api/pkg/errors"
)

// FollowService maintains the follow graph.
type FollowService struct {
	follows repository.FollowRepository
	logger  *slog.Logger
}

// NewFollowService creates a follow service.
func NewFollowService(follows repository.FollowRepository, logger *slog.Logger) *FollowService {
	return &FollowService{follows: follows, logger: logger}
}

// Follow makes followerID follow targetID. Following oneself is rejected and
// following twice is a no-op.
func (s *FollowService) Follow(ctx context.Context, followerID, targetID string) error {
	if followerID == targetID {
		return apperrors.InvalidInput("cannot follow yourself")
	}
	if err := s.follows.Follow(ctx, followerID, targetID); err != nil {
		return fmt.Errorf("follow user: %w", err)
	}

	s.logger.InfoContext(ctx, "user followed",
		slog.String("follower_id", followerID),
		slog.String("following_id", targetID),
	)
	return nil
}
