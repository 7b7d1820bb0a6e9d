package kafka

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"tradepost/internal/app/messaging"
	domainmessage "tradepost/internal/domain/message"
)

// Event kinds emitted by the messaging core.
const (
	EventMessageCreated = "message.created"
	EventMessageRead    = "message.read"
)

type eventEnvelope struct {
	EventID    string    `json:"event_id"`
	Kind       string    `json:"kind"`
	OccurredAt time.Time `json:"occurred_at"`
	Message    eventBody `json:"message"`
}

type eventBody struct {
	ID         int64     `json:"id"`
	SenderID   string    `json:"sender_id"`
	ReceiverID string    `json:"receiver_id"`
	CreatedAt  time.Time `json:"created_at"`
}

// EventPublisher emits message lifecycle events for downstream consumers
// (notifications, search indexing). Messages of the same pair share a key so
// consumers see them in order.
type EventPublisher struct {
	producer *Producer
	topic    string
}

func NewEventPublisher(producer *Producer, topic string) *EventPublisher {
	return &EventPublisher{producer: producer, topic: topic}
}

func (p *EventPublisher) MessageCreated(ctx context.Context, msg domainmessage.Message) error {
	return p.publish(ctx, EventMessageCreated, msg)
}

func (p *EventPublisher) MessageRead(ctx context.Context, msg domainmessage.Message) error {
	return p.publish(ctx, EventMessageRead, msg)
}

func (p *EventPublisher) publish(ctx context.Context, kind string, msg domainmessage.Message) error {
	envelope := eventEnvelope{
		EventID:    uuid.NewString(),
		Kind:       kind,
		OccurredAt: time.Now().UTC(),
		Message: eventBody{
			ID:         int64(msg.ID),
			SenderID:   msg.SenderID,
			ReceiverID: msg.ReceiverID,
			CreatedAt:  msg.CreatedAt,
		},
	}
	payload, err := json.Marshal(envelope)
	if err != nil {
		return err
	}
	return p.producer.Publish(ctx, p.topic, pairKey(msg.SenderID, msg.ReceiverID), payload, map[string]string{
		"kind": kind,
	})
}

// pairKey is direction-independent so both sides of a conversation land on
// the same partition.
func pairKey(a, b string) string {
	if b < a {
		a, b = b, a
	}
	return a + ":" + b
}

var _ messaging.Events = (*EventPublisher)(nil)
