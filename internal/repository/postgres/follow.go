package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/stack501/nodebird-api/internal/domain"
	"github.com/stack501/nodebird-api/pkg/database"
	apperrors "github.com/stack501/nodebird-api/pkg/errors"
)

// FollowRepository implements repository.FollowRepository using PostgreSQL.
type FollowRepository struct {
	db database.DBTX
}

// NewFollowRepository creates a new PostgreSQL-backed follow repository.
func NewFollowRepository(db database.DBTX) *FollowRepository {
	return &FollowRepository{db: db}
}

// Follow inserts the follower -> following edge. Existing edges are kept.
// A missing user on either side is reported as not found.
func (r *FollowRepository) Follow(ctx context.Context, followerID, followingID string) (err error) {
	if _, perr := uuid.Parse(followingID); perr != nil {
		return apperrors.NotFound("user", followingID)
	}

	query := `
		INSERT INTO follows (follower_id, following_id)
		SELECT $1, u.id FROM users u WHERE u.id = $2 AND u.deleted_at IS NULL
		ON CONFLICT (follower_id, following_id) DO NOTHING`

	ctx, end := database.TraceQuery(ctx, "Follow", query)
	defer func() { end(err) }()

	ct, err := r.db.Exec(ctx, query, followerID, followingID)
	if err != nil {
		if database.IsForeignKeyViolation(err) {
			return apperrors.NotFound("user", followerID)
		}
		return fmt.Errorf("insert follow: %w", err)
	}
	if ct.RowsAffected() == 0 {
		// Either the edge already exists or the target is missing.
		var exists bool
		if err := r.db.QueryRow(ctx,
			"SELECT EXISTS(SELECT 1 FROM users WHERE id = $1 AND deleted_at IS NULL)", followingID,
		).Scan(&exists); err != nil {
			return fmt.Errorf("check follow target: %w", err)
		}
		if !exists {
			return apperrors.NotFound("user", followingID)
		}
	}

	return nil
}

// Followers lists the non-deleted users following userID.
func (r *FollowRepository) Followers(ctx context.Context, userID string) ([]domain.FollowRef, error) {
	query := `
		SELECT u.id, u.nick
		FROM follows f
		JOIN users u ON u.id = f.follower_id
		WHERE f.following_id = $1 AND u.deleted_at IS NULL
		ORDER BY f.created_at`

	return r.listRefs(ctx, "ListFollowers", query, userID)
}

// Followings lists the non-deleted users userID follows.
func (r *FollowRepository) Followings(ctx context.Context, userID string) ([]domain.FollowRef, error) {
	query := `
		SELECT u.id, u.nick
		FROM follows f
		JOIN users u ON u.id = f.following_id
		WHERE f.follower_id = $1 AND u.deleted_at IS NULL
		ORDER BY f.created_at`

	return r.listRefs(ctx, "ListFollowings", query, userID)
}

func (r *FollowRepository) listRefs(ctx context.Context, operation, query, userID string) (_ []domain.FollowRef, err error) {
	ctx, end := database.TraceQuery(ctx, operation, query)
	defer func() { end(err) }()

	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", operation, err)
	}
	defer rows.Close()

	refs := []domain.FollowRef{}
	for rows.Next() {
		var ref domain.FollowRef
		if err := rows.Scan(&ref.ID, &ref.Nick); err != nil {
			return nil, fmt.Errorf("scan follow ref: %w", err)
		}
		refs = append(refs, ref)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate follow refs: %w", err)
	}

	return refs, nil
}
