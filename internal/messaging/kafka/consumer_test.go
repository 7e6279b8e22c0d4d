package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/foodtrack/internal/domain"
)

type mockConsumerGroup struct {
	consumeFn func(context.Context, []string, sarama.ConsumerGroupHandler) error
	errorsCh  chan error
}

func (m *mockConsumerGroup) Consume(ctx context.Context, topics []string, handler sarama.ConsumerGroupHandler) error {
	if m.consumeFn != nil {
		return m.consumeFn(ctx, topics, handler)
	}
	return nil
}

func (m *mockConsumerGroup) Errors() <-chan error { return m.errorsCh }

func (m *mockConsumerGroup) Close() error {
	close(m.errorsCh)
	return nil
}

func (m *mockConsumerGroup) Pause(map[string][]int32)  {}
func (m *mockConsumerGroup) Resume(map[string][]int32) {}
func (m *mockConsumerGroup) PauseAll()                 {}
func (m *mockConsumerGroup) ResumeAll()                {}

type mockSession struct {
	ctx    context.Context
	marked []*sarama.ConsumerMessage
}

func (m *mockSession) Claims() map[string][]int32               { return nil }
func (m *mockSession) MemberID() string                         { return "member" }
func (m *mockSession) GenerationID() int32                      { return 1 }
func (m *mockSession) MarkOffset(string, int32, int64, string)  {}
func (m *mockSession) Commit()                                  {}
func (m *mockSession) ResetOffset(string, int32, int64, string) {}
func (m *mockSession) Context() context.Context                 { return m.ctx }
func (m *mockSession) MarkMessage(msg *sarama.ConsumerMessage, _ string) {
	m.marked = append(m.marked, msg)
}

type mockClaim struct {
	messages chan *sarama.ConsumerMessage
}

func (m *mockClaim) Topic() string                            { return TopicOrderEvents }
func (m *mockClaim) Partition() int32                         { return 0 }
func (m *mockClaim) InitialOffset() int64                     { return 0 }
func (m *mockClaim) HighWaterMarkOffset() int64               { return 0 }
func (m *mockClaim) Messages() <-chan *sarama.ConsumerMessage { return m.messages }

func envelopeMessage(t *testing.T, offset int64, orderID string) *sarama.ConsumerMessage {
	t.Helper()
	value, err := json.Marshal(Envelope{
		ID:          "outbox-1",
		AggregateID: orderID,
		EventType:   domain.EventOrderDriverLocationUpdated,
		Payload:     json.RawMessage(`{"order_id":"` + orderID + `"}`),
	})
	if err != nil {
		t.Fatal(err)
	}
	return &sarama.ConsumerMessage{Topic: TopicOrderEvents, Offset: offset, Key: []byte(orderID), Value: value}
}

func runClaim(t *testing.T, c *Consumer, messages ...*sarama.ConsumerMessage) *mockSession {
	t.Helper()
	ch := make(chan *sarama.ConsumerMessage, len(messages))
	for _, m := range messages {
		ch <- m
	}
	close(ch)
	session := &mockSession{ctx: context.Background()}
	if err := c.ConsumeClaim(session, &mockClaim{messages: ch}); err != nil {
		t.Fatalf("consume claim: %v", err)
	}
	return session
}

func TestConsumeClaimDeliversEnvelopes(t *testing.T) {
	var seen []string
	c := newConsumer(&mockConsumerGroup{errorsCh: make(chan error)}, []string{TopicOrderEvents},
		func(_ context.Context, e Envelope) error {
			seen = append(seen, e.AggregateID)
			return nil
		}, ConsumerOptions{Logger: log.WithField("test", "consumer")})

	session := runClaim(t, c, envelopeMessage(t, 1, "ORD1"), envelopeMessage(t, 2, "ORD2"))

	if len(seen) != 2 || seen[0] != "ORD1" || seen[1] != "ORD2" {
		t.Fatalf("unexpected handled events: %v", seen)
	}
	if len(session.marked) != 2 {
		t.Fatalf("expected 2 marked messages, got %d", len(session.marked))
	}
}

func TestConsumeClaimWithoutDLQLeavesFailedMessageUncommitted(t *testing.T) {
	calls := 0
	c := newConsumer(&mockConsumerGroup{errorsCh: make(chan error)}, nil,
		func(context.Context, Envelope) error {
			calls++
			return errors.New("hub unavailable")
		}, ConsumerOptions{MaxRetries: 2})

	session := runClaim(t, c, envelopeMessage(t, 1, "ORD1"))

	if calls != 2 {
		t.Fatalf("expected 2 handler attempts, got %d", calls)
	}
	if len(session.marked) != 0 {
		t.Fatalf("failed message must not be marked, got %d", len(session.marked))
	}
}

func TestConsumeClaimSendsPoisonMessageToDLQ(t *testing.T) {
	mockProducer := mocks.NewSyncProducer(t, nil)
	mockProducer.ExpectSendMessageWithCheckerFunctionAndSucceed(func(val []byte) error {
		var letter ConsumerDeadLetter
		if err := json.Unmarshal(val, &letter); err != nil {
			return err
		}
		if letter.OriginalValue != "not-json" || letter.OriginalTopic != TopicOrderEvents {
			return errors.New("unexpected dead letter")
		}
		return nil
	})

	c := newConsumer(&mockConsumerGroup{errorsCh: make(chan error)}, nil,
		func(context.Context, Envelope) error {
			t.Fatal("handler must not be called for poison message")
			return nil
		}, ConsumerOptions{DLQ: NewProducerFromSync(mockProducer, nil)})

	session := runClaim(t, c, &sarama.ConsumerMessage{Topic: TopicOrderEvents, Offset: 7, Value: []byte("not-json")})
	if len(session.marked) != 1 {
		t.Fatalf("dead-lettered message must be marked, got %d", len(session.marked))
	}
	if err := mockProducer.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestConsumerStartStop(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	consumeCalls := 0
	errorsCh := make(chan error, 1)
	group := &mockConsumerGroup{
		errorsCh: errorsCh,
		consumeFn: func(context.Context, []string, sarama.ConsumerGroupHandler) error {
			consumeCalls++
			cancel()
			return nil
		},
	}

	c := newConsumer(group, []string{TopicOrderEvents}, func(context.Context, Envelope) error { return nil }, ConsumerOptions{})
	errorsCh <- errors.New("background error")
	c.Start(ctx)
	if err := c.Stop(); err != nil {
		t.Fatalf("stop failed: %v", err)
	}
	if consumeCalls == 0 {
		t.Fatal("expected consume call")
	}
}

func TestRetryCountHeader(t *testing.T) {
	msg := &sarama.ConsumerMessage{Headers: []*sarama.RecordHeader{{Key: []byte(HeaderRetryCount), Value: []byte("2")}}}
	if got := retryCount(msg); got != 2 {
		t.Fatalf("expected 2, got %d", got)
	}
	if got := retryCount(&sarama.ConsumerMessage{}); got != 0 {
		t.Fatalf("expected 0, got %d", got)
	}
}
