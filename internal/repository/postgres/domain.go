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

// DomainRepository implements repository.DomainRepository using PostgreSQL.
type DomainRepository struct {
	db database.DBTX
}

// NewDomainRepository creates a new PostgreSQL-backed domain repository.
func NewDomainRepository(db database.DBTX) *DomainRepository {
	return &DomainRepository{db: db}
}

// Create inserts a new domain. Host must already be normalized.
func (r *DomainRepository) Create(ctx context.Context, d *domain.Domain) (err error) {
	query := `
		INSERT INTO domains (id, host, type, client_secret, owner_user_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`

	ctx, end := database.TraceQuery(ctx, "CreateDomain", query)
	defer func() { end(err) }()

	_, err = r.db.Exec(ctx, query,
		d.ID,
		d.Host,
		string(d.Type),
		d.ClientSecret,
		d.OwnerUserID,
		d.CreatedAt,
	)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return apperrors.AlreadyExists("domain", "host", d.Host)
		}
		if database.IsForeignKeyViolation(err) {
			return apperrors.NotFound("user", d.OwnerUserID)
		}
		if database.IsStringTooLong(err) {
			return apperrors.InvalidInput("domain field exceeds its maximum length")
		}
		return fmt.Errorf("insert domain: %w", err)
	}

	return nil
}

// GetByClientSecret retrieves the domain that owns secret.
func (r *DomainRepository) GetByClientSecret(ctx context.Context, secret string) (_ *domain.Domain, err error) {
	if _, perr := uuid.Parse(secret); perr != nil {
		return nil, apperrors.ErrNotFound
	}

	query := `
		SELECT id, host, type, client_secret, owner_user_id, created_at
		FROM domains
		WHERE client_secret = $1`

	ctx, end := database.TraceQuery(ctx, "GetDomainByClientSecret", query)
	defer func() { end(err) }()

	d, err := scanDomain(r.db.QueryRow(ctx, query, secret))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("scan domain: %w", err)
	}

	return d, nil
}

// ListByOwner returns the domains registered by userID, newest first.
func (r *DomainRepository) ListByOwner(ctx context.Context, userID string) (_ []domain.Domain, err error) {
	query := `
		SELECT id, host, type, client_secret, owner_user_id, created_at
		FROM domains
		WHERE owner_user_id = $1
		ORDER BY created_at DESC`

	ctx, end := database.TraceQuery(ctx, "ListDomainsByOwner", query)
	defer func() { end(err) }()

	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("query domains: %w", err)
	}
	defer rows.Close()

	domains := []domain.Domain{}
	for rows.Next() {
		d, err := scanDomain(rows)
		if err != nil {
			return nil, fmt.Errorf("scan domain: %w", err)
		}
		domains = append(domains, *d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate domains: %w", err)
	}

	return domains, nil
}

// ExistsByHost reports whether host is registered.
func (r *DomainRepository) ExistsByHost(ctx context.Context, host string) (_ bool, err error) {
	query := `SELECT EXISTS(SELECT 1 FROM domains WHERE host = $1)`

	ctx, end := database.TraceQuery(ctx, "DomainExistsByHost", query)
	defer func() { end(err) }()

	var exists bool
	if err = r.db.QueryRow(ctx, query, host).Scan(&exists); err != nil {
		return false, fmt.Errorf("check domain host: %w", err)
	}

	return exists, nil
}

func scanDomain(row pgx.Row) (*domain.Domain, error) {
	var (
		d   domain.Domain
		typ string
	)
	if err := row.Scan(&d.ID, &d.Host, &typ, &d.ClientSecret, &d.OwnerUserID, &d.CreatedAt); err != nil {
		return nil, err
	}
	d.Type = domain.DomainType(typ)
	return &d, nil
}
