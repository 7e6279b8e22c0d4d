package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/IBM/sarama"

	"github.com/vladislavdragonenkov/foodtrack/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/foodtrack/internal/service/outbox"
)

// replayMessage описывает событие заказа, восстановленное из DLQ. Ключом служит публичный номер заказа.
type replayMessage struct {
	topic     string
	key       string
	eventType string
	value     []byte
}

// extractReplayMessage понимает два формата DLQ: запись consumer-а с исходным
// сообщением и конверт outbox worker-а с outbox.DeadLetter внутри.
// ok=false без ошибки означает чужое сообщение.
func extractReplayMessage(msg *sarama.ConsumerMessage, defaultTopic string) (replayMessage, bool, error) {
	if m, ok := fromConsumerDeadLetter(msg.Value, defaultTopic); ok {
		return m, true, nil
	}

	var envelope kafka.Envelope
	if err := json.Unmarshal(msg.Value, &envelope); err != nil || len(envelope.Payload) == 0 {
		return replayMessage{}, false, nil
	}
	m, err := fromOutboxDeadLetter(envelope, defaultTopic)
	if err != nil {
		return replayMessage{}, false, err
	}
	return m, true, nil
}

func fromConsumerDeadLetter(raw []byte, defaultTopic string) (replayMessage, bool) {
	var letter kafka.ConsumerDeadLetter
	if json.Unmarshal(raw, &letter) != nil || letter.OriginalValue == "" {
		return replayMessage{}, false
	}

	m := replayMessage{
		topic: defaultTopic,
		key:   letter.OriginalKey,
		value: []byte(letter.OriginalValue),
	}
	if topic := strings.TrimSpace(letter.OriginalTopic); topic != "" {
		m.topic = topic
	}
	var original kafka.Envelope
	if json.Unmarshal(m.value, &original) == nil {
		m.eventType = original.EventType
		if m.key == "" {
			m.key = original.AggregateID
		}
	}
	return m, true
}

// fromOutboxDeadLetter собирает заново конверт исходного события с новым published_at.
func fromOutboxDeadLetter(envelope kafka.Envelope, topic string) (replayMessage, error) {
	var letter outbox.DeadLetter
	if err := json.Unmarshal(envelope.Payload, &letter); err != nil {
		return replayMessage{}, fmt.Errorf("decode outbox dead letter: %w", err)
	}
	if missingPayload(letter.Payload) {
		return replayMessage{}, errors.New("outbox dead letter has no original event payload")
	}

	event := kafka.Envelope{
		ID:            firstNonEmpty(letter.OutboxID, envelope.ID),
		AggregateType: firstNonEmpty(letter.AggregateType, envelope.AggregateType),
		AggregateID:   firstNonEmpty(letter.AggregateID, envelope.AggregateID),
		EventType:     firstNonEmpty(letter.EventType, envelope.EventType),
		Payload:       letter.Payload,
		PublishedAt:   time.Now().UTC(),
	}
	value, err := json.Marshal(event)
	if err != nil {
		return replayMessage{}, fmt.Errorf("encode replay envelope: %w", err)
	}
	return replayMessage{
		topic:     topic,
		key:       firstNonEmpty(event.AggregateID, event.ID),
		eventType: event.EventType,
		value:     value,
	}, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func missingPayload(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}
