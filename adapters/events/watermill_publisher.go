package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/google/uuid"

	"github.com/ethid/ethid/ports"
)

const (
	// TopicRegistered carries one event per newly provisioned identity.
	TopicRegistered = "ethid.identity.registered"

	// TopicAuthenticated carries one event per completed authentication.
	TopicAuthenticated = "ethid.session.authenticated"
)

// RegisteredEvent is emitted when a new identity passes the goodwill gate
// and is provisioned.
type RegisteredEvent struct {
	Address string `json:"address"`
	UserID  string `json:"user_id"`
}

// AuthenticatedEvent is emitted when a session completes the poll phase.
type AuthenticatedEvent struct {
	SessionID string `json:"session_id"`
	UserID    string `json:"user_id"`
}

// WatermillPublisher implements the EventPublisher interface using
// Watermill.
type WatermillPublisher struct {
	publisher message.Publisher
}

// NewWatermillPublisher creates a new Watermill publisher.
func NewWatermillPublisher(publisher message.Publisher) ports.EventPublisher {
	return &WatermillPublisher{publisher: publisher}
}

// PublishRegistered publishes an identity registration event.
func (p *WatermillPublisher) PublishRegistered(ctx context.Context, address, userID string) error {
	return p.publish(TopicRegistered, RegisteredEvent{Address: address, UserID: userID})
}

// PublishAuthenticated publishes a session authentication event.
func (p *WatermillPublisher) PublishAuthenticated(ctx context.Context, sessionID, userID string) error {
	return p.publish(TopicAuthenticated, AuthenticatedEvent{SessionID: sessionID, UserID: userID})
}

func (p *WatermillPublisher) publish(topic string, event any) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	msg := message.NewMessage(uuid.New().String(), payload)
	if err := p.publisher.Publish(topic, msg); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}
	return nil
}

// NopPublisher discards events. Used when no broker is configured.
type NopPublisher struct{}

var _ ports.EventPublisher = NopPublisher{}

// PublishRegistered discards the event.
func (NopPublisher) PublishRegistered(ctx context.Context, address, userID string) error {
	return nil
}

// PublishAuthenticated discards the event.
func (NopPublisher) PublishAuthenticated(ctx context.Context, sessionID, userID string) error {
	return nil
}
