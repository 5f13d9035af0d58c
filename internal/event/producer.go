package event

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/stack501/nodebird-api/internal/domain"
	pkgkafka "github.com/stack501/nodebird-api/pkg/kafka"
	"github.com/stack501/nodebird-api/pkg/logger"
)

// Kafka topics for identity events.
const (
	TopicUserJoined       = "nodebird.user.joined"
	TopicDomainRegistered = "nodebird.domain.registered"
)

// Aggregate types and event source.
const (
	AggregateTypeUser   = "user"
	AggregateTypeDomain = "domain"
	SourceNodebirdAPI   = "nodebird-api"
)

// UserJoinedData is the payload for a user.joined event.
type UserJoinedData struct {
	ID       string `json:"id"`
	Email    string `json:"email,omitempty"`
	Nick     string `json:"nick"`
	Provider string `json:"provider"`
}

// DomainRegisteredData is the payload for a domain.registered event. The
// client secret is never published.
type DomainRegisteredData struct {
	ID          string `json:"id"`
	Host        string `json:"host"`
	Type        string `json:"type"`
	OwnerUserID string `json:"owner_user_id"`
}

type publisher interface {
	Publish(ctx context.Context, topic string, event *pkgkafka.Event) error
}

// Producer publishes identity events to Kafka.
type Producer struct {
	kafka  publisher
	logger *slog.Logger
}

// NewProducer creates an event producer on top of a Kafka producer.
func NewProducer(kafka *pkgkafka.Producer, logger *slog.Logger) *Producer {
	return &Producer{kafka: kafka, logger: logger}
}

// PublishUserJoined publishes a user.joined event.
func (p *Producer) PublishUserJoined(ctx context.Context, user *domain.User) error {
	data := UserJoinedData{
		ID:       user.ID,
		Email:    user.Email,
		Nick:     user.Nick,
		Provider: string(user.Provider),
	}
	return p.publish(ctx, TopicUserJoined, "user.joined", user.ID, AggregateTypeUser, data)
}

// PublishDomainRegistered publishes a domain.registered event.
func (p *Producer) PublishDomainRegistered(ctx context.Context, d *domain.Domain) error {
	data := DomainRegisteredData{
		ID:          d.ID,
		Host:        d.Host,
		Type:        string(d.Type),
		OwnerUserID: d.OwnerUserID,
	}
	return p.publish(ctx, TopicDomainRegistered, "domain.registered", d.ID, AggregateTypeDomain, data)
}

func (p *Producer) publish(ctx context.Context, topic, eventType, aggregateID, aggregateType string, data any) error {
	event, err := pkgkafka.NewEvent(eventType, aggregateID, aggregateType, SourceNodebirdAPI, data)
	if err != nil {
		return fmt.Errorf("create %s event: %w", eventType, err)
	}
	event.WithCorrelationID(logger.CorrelationIDFromContext(ctx))

	if err := p.kafka.Publish(ctx, topic, event); err != nil {
		return fmt.Errorf("publish %s event: %w", eventType, err)
	}

	p.logger.DebugContext(ctx, "published event",
		slog.String("event_type", eventType),
		slog.String("aggregate_id", aggregateID),
	)
	return nil
}

// Noop discards events. It stands in for Producer when Kafka is disabled.
type Noop struct{}

// PublishUserJoined does nothing.
func (Noop) PublishUserJoined(context.Context, *domain.User) error { return nil }

// PublishDomainRegistered does nothing.
func (Noop) PublishDomainRegistered(context.Context, *domain.Domain) error { return nil }
