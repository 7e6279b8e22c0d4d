package kafka

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/vladislavdragonenkov/foodtrack/internal/domain"
)

// OutboxPublisher публикует события outbox в топик; ключом служит номер заказа,
// поэтому события одного заказа попадают в одну партицию по порядку.
type OutboxPublisher struct {
	producer *Producer
	topic    string
}

// NewOutboxPublisher создаёт publisher для topic (по умолчанию TopicOrderEvents).
func NewOutboxPublisher(producer *Producer, topic string) *OutboxPublisher {
	if topic == "" {
		topic = TopicOrderEvents
	}
	return &OutboxPublisher{producer: producer, topic: topic}
}

// Publish отправляет событие в конверте Envelope.
func (p *OutboxPublisher) Publish(ctx context.Context, event domain.OutboxMessage) error {
	if p == nil || p.producer == nil {
		return fmt.Errorf("kafka outbox publisher is not initialized")
	}

	key := event.AggregateID
	if key == "" {
		key = event.ID
	}

	data, err := json.Marshal(Envelope{
		ID:            event.ID,
		AggregateType: event.AggregateType,
		AggregateID:   event.AggregateID,
		EventType:     event.EventType,
		Payload:       json.RawMessage(event.Payload),
		PublishedAt:   p.producer.now(),
	})
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}

	return p.producer.Send(ctx, p.topic, key, data, map[string]string{HeaderEventType: event.EventType})
}

var _ domain.OutboxPublisher = (*OutboxPublisher)(nil)
