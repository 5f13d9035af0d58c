package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/stack501/nodebird-api/internal/domain"
	"github.com/stack501/nodebird-api/internal/repository"
	apperrors "github.com/stack501/nodebird-api/pkg/errors"
)

// DomainService manages the registry of origins allowed to call the API.
type DomainService struct {
	domains repository.DomainRepository
	events  EventPublisher
	logger  *slog.Logger
}

// NewDomainService creates a domain service.
func NewDomainService(domains repository.DomainRepository, events EventPublisher, logger *slog.Logger) *DomainService {
	return &DomainService{domains: domains, events: events, logger: logger}
}

// Register records host for ownerID with a freshly generated client secret.
// An empty type defaults to free.
func (s *DomainService) Register(ctx context.Context, ownerID, host string, typ domain.DomainType) (*domain.Domain, error) {
	normalized := domain.NormalizeHost(host)
	if normalized == "" {
		return nil, apperrors.InvalidInput("host is invalid")
	}
	if len(normalized) > domain.MaxHostLength {
		return nil, apperrors.InvalidInput(fmt.Sprintf("host must be at most %d characters", domain.MaxHostLength))
	}
	if typ == "" {
		typ = domain.DomainTypeFree
	}
	if !typ.Valid() {
		return nil, apperrors.InvalidInput(fmt.Sprintf("unknown domain type %q", typ))
	}

	d := &domain.Domain{
		ID:           uuid.NewString(),
		Host:         normalized,
		Type:         typ,
		ClientSecret: uuid.NewString(),
		OwnerUserID:  ownerID,
		CreatedAt:    time.Now().UTC(),
	}

	if err := s.domains.Create(ctx, d); err != nil {
		return nil, fmt.Errorf("create domain: %w", err)
	}

	if err := s.events.PublishDomainRegistered(ctx, d); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish domain.registered event",
			slog.String("domain_id", d.ID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "domain registered",
		slog.String("domain_id", d.ID),
		slog.String("host", d.Host),
		slog.String("owner_user_id", ownerID),
	)

	return d, nil
}

// ListByOwner returns the domains registered by ownerID.
func (s *DomainService) ListByOwner(ctx context.Context, ownerID string) ([]domain.Domain, error) {
	domains, err := s.domains.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list domains: %w", err)
	}
	return domains, nil
}
