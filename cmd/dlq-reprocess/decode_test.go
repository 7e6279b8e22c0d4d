package main

import (
	"encoding/json"
	"testing"

	"github.com/IBM/sarama"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/foodtrack/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/foodtrack/internal/service/outbox"
)

const sampleOrderID = "ORD01JNXZ5K8T8Q3V0M5S2C4W6Y7"

func consumerDeadLetter(t *testing.T, eventType string) []byte {
	t.Helper()
	original, err := json.Marshal(kafka.Envelope{
		ID:          "evt-1",
		AggregateID: sampleOrderID,
		EventType:   eventType,
		Payload:     json.RawMessage(`{"status":"preparing"}`),
	})
	require.NoError(t, err)
	raw, err := json.Marshal(kafka.ConsumerDeadLetter{
		OriginalTopic: kafka.TopicOrderEvents,
		OriginalKey:   sampleOrderID,
		OriginalValue: string(original),
		ErrorMessage:  "handler failed",
	})
	require.NoError(t, err)
	return raw
}

func outboxDeadLetter(t *testing.T, payload json.RawMessage) []byte {
	t.Helper()
	letter, err := json.Marshal(outbox.DeadLetter{
		OutboxID:      "outbox-1",
		AggregateType: "order",
		AggregateID:   sampleOrderID,
		EventType:     "order.placed",
		Payload:       payload,
		PublishError:  "timeout",
		Attempts:      3,
	})
	require.NoError(t, err)
	raw, err := json.Marshal(kafka.Envelope{
		ID:            "outbox-1",
		AggregateType: "order",
		AggregateID:   sampleOrderID,
		EventType:     "order.placed",
		Payload:       letter,
	})
	require.NoError(t, err)
	return raw
}

func TestExtractConsumerDeadLetter(t *testing.T) {
	got, ok, err := extractReplayMessage(&sarama.ConsumerMessage{Value: consumerDeadLetter(t, "order.status_changed")}, "fallback-topic")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, kafka.TopicOrderEvents, got.topic)
	require.Equal(t, sampleOrderID, got.key)
	require.Equal(t, "order.status_changed", got.eventType)
}

func TestExtractOutboxDeadLetterRebuildsEnvelope(t *testing.T) {
	got, ok, err := extractReplayMessage(&sarama.ConsumerMessage{Value: outboxDeadLetter(t, json.RawMessage(`{"status":"pending"}`))}, kafka.TopicOrderEvents)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, kafka.TopicOrderEvents, got.topic)
	require.Equal(t, sampleOrderID, got.key)

	var event kafka.Envelope
	require.NoError(t, json.Unmarshal(got.value, &event))
	require.Equal(t, "outbox-1", event.ID)
	require.Equal(t, "order.placed", event.EventType)
	require.JSONEq(t, `{"status":"pending"}`, string(event.Payload))
	require.False(t, event.PublishedAt.IsZero())
}

func TestExtractReplayMessageRejects(t *testing.T) {
	for _, payload := range []json.RawMessage{nil, json.RawMessage(`null`)} {
		got, ok, err := extractReplayMessage(&sarama.ConsumerMessage{Value: outboxDeadLetter(t, payload)}, kafka.TopicOrderEvents)
		require.Error(t, err, "payload %q", payload)
		require.False(t, ok)
		require.Empty(t, got.value)
	}

	for _, raw := range []string{`{"foo":"bar"}`, `not json`} {
		_, ok, err := extractReplayMessage(&sarama.ConsumerMessage{Value: []byte(raw)}, kafka.TopicOrderEvents)
		require.NoError(t, err)
		require.False(t, ok, raw)
	}
}

func TestFirstNonEmpty(t *testing.T) {
	require.Equal(t, "b", firstNonEmpty("", "  ", "b", "c"))
	require.Empty(t, firstNonEmpty())
}

func TestMissingPayload(t *testing.T) {
	require.True(t, missingPayload(nil))
	require.True(t, missingPayload(json.RawMessage(" null \n")))
	require.False(t, missingPayload(json.RawMessage(`{}`)))
	require.False(t, missingPayload(json.RawMessage(`{"status":"pending"}`)))
}
