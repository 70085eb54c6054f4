package pubsub

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"

	"github.com/microgem/storefront-backend/pkg/enums"
)

// Envelope is the JSON body of every published domain event.
type Envelope struct {
	EventID    string          `json:"event_id"`
	EventType  enums.EventType `json:"event_type"`
	Tenant     string          `json:"tenant"`
	OccurredAt time.Time       `json:"occurred_at"`
	Data       any             `json:"data"`
}

// EventPublisher publishes domain events for a tenant.
type EventPublisher interface {
	Publish(ctx context.Context, tenant string, eventType enums.EventType, data any) error
}

type topicPublisher interface {
	Publish(ctx context.Context, msg *pubsub.Message) *pubsub.PublishResult
}

// TopicEventPublisher publishes envelopes to a single topic and waits for the
// server acknowledgement.
type TopicEventPublisher struct {
	topic topicPublisher
	now   func() time.Time
}

// NewTopicEventPublisher wraps a Pub/Sub publisher handle.
func NewTopicEventPublisher(topic *pubsub.Publisher) (*TopicEventPublisher, error) {
	if topic == nil {
		return nil, fmt.Errorf("pubsub publisher required")
	}
	return &TopicEventPublisher{topic: topic, now: time.Now}, nil
}

func (p *TopicEventPublisher) Publish(ctx context.Context, tenant string, eventType enums.EventType, data any) error {
	if !eventType.IsValid() {
		return fmt.Errorf("unknown event type %q", eventType)
	}
	env := Envelope{
		EventID:    uuid.NewString(),
		EventType:  eventType,
		Tenant:     tenant,
		OccurredAt: p.now().UTC(),
		Data:       data,
	}
	body, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal event envelope: %w", err)
	}
	res := p.topic.Publish(ctx, &pubsub.Message{
		Data: body,
		Attributes: map[string]string{
			"event_id":   env.EventID,
			"event_type": eventType.String(),
			"tenant":     tenant,
		},
	})
	if _, err := res.Get(ctx); err != nil {
		return fmt.Errorf("publish %s: %w", eventType, err)
	}
	return nil
}

// NoopPublisher drops every event. It is used when no topic is configured.
type NoopPublisher struct{}

func (NoopPublisher) Publish(context.Context, string, enums.EventType, any) error { return nil }
