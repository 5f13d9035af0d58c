package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/stack501/nodebird-api/internal/domain"
	"github.com/stack501/nodebird-api/pkg/database"
	apperrors "github.com/stack501/nodebird-api/pkg/errors"
)

// userColumns maps nullable text columns to empty strings so they scan into
// plain string fields.
const userColumns = `id, COALESCE(email, ''), nick, COALESCE(password_hash, ''), provider,
		COALESCE(sns_id, ''), created_at, updated_at`

// UserRepository implements repository.UserRepository using PostgreSQL.
type UserRepository struct {
	db database.DBTX
}

// NewUserRepository creates a new PostgreSQL-backed user repository.
func NewUserRepository(db database.DBTX) *UserRepository {
	return &UserRepository{db: db}
}

// Create inserts a new user. Empty optional fields are stored as NULL.
func (r *UserRepository) Create(ctx context.Context, u *domain.User) (err error) {
	query := `
		INSERT INTO users (id, email, nick, password_hash, provider, sns_id, created_at, updated_at)
		VALUES ($1, NULLIF($2, ''), $3, NULLIF($4, ''), $5, NULLIF($6, ''), $7, $8)`

	ctx, end := database.TraceQuery(ctx, "CreateUser", query)
	defer func() { end(err) }()

	_, err = r.db.Exec(ctx, query,
		u.ID,
		u.Email,
		u.Nick,
		u.PasswordHash,
		string(u.Provider),
		u.SnsID,
		u.CreatedAt,
		u.UpdatedAt,
	)
	if err != nil {
		if database.IsUniqueViolation(err) {
			if u.Provider == domain.ProviderLocal {
				return apperrors.AlreadyExists("user", "email", u.Email)
			}
			return apperrors.AlreadyExists("user", "sns_id", u.SnsID)
		}
		if database.IsStringTooLong(err) {
			return apperrors.InvalidInput("user field exceeds its maximum length")
		}
		return fmt.Errorf("insert user: %w", err)
	}

	return nil
}

// GetByID retrieves a non-deleted user by id.
func (r *UserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, apperrors.ErrNotFound
	}

	query := `
		SELECT ` + userColumns + `
		FROM users
		WHERE id = $1 AND deleted_at IS NULL`

	return r.scanUser(ctx, "GetUserByID", query, id)
}

// GetLocalByEmail retrieves a non-deleted local user by email, ignoring case.
func (r *UserRepository) GetLocalByEmail(ctx context.Context, email string) (*domain.User, error) {
	query := `
		SELECT ` + userColumns + `
		FROM users
		WHERE LOWER(email) = LOWER($1) AND provider = 'local' AND deleted_at IS NULL`

	return r.scanUser(ctx, "GetLocalUserByEmail", query, email)
}

// GetByProvider retrieves a non-deleted federated user by external id.
func (r *UserRepository) GetByProvider(ctx context.Context, provider domain.Provider, snsID string) (*domain.User, error) {
	query := `
		SELECT ` + userColumns + `
		FROM users
		WHERE provider = $1 AND sns_id = $2 AND deleted_at IS NULL`

	return r.scanUser(ctx, "GetUserByProvider", query, string(provider), snsID)
}

// scanUser executes a query expected to return a single user row.
func (r *UserRepository) scanUser(ctx context.Context, operation, query string, args ...any) (_ *domain.User, err error) {
	ctx, end := database.TraceQuery(ctx, operation, query)
	defer func() {
		if errors.Is(err, apperrors.ErrNotFound) {
			end(nil)
			return
		}
		end(err)
	}()

	var (
		u        domain.User
		provider string
	)
	err = r.db.QueryRow(ctx, query, args...).Scan(
		&u.ID,
		&u.Email,
		&u.Nick,
		&u.PasswordHash,
		&provider,
		&u.SnsID,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("scan user: %w", err)
	}
	u.Provider = domain.Provider(provider)

	return &u, nil
}
