package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/vladislavdragonenkov/foodtrack/internal/domain"
	"github.com/vladislavdragonenkov/foodtrack/internal/metrics"
	"github.com/vladislavdragonenkov/foodtrack/internal/storage/memory"
)

func enqueue(t *testing.T, repo *memory.OutboxRepository, eventType, orderID, payload string) domain.OutboxMessage {
	t.Helper()
	msg, err := repo.Enqueue(context.Background(), domain.OutboxMessage{
		AggregateType: "order",
		AggregateID:   orderID,
		EventType:     eventType,
		Payload:       []byte(payload),
	})
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	return msg
}

func TestWorker_ProcessOnce_MarkSent(t *testing.T) {
	t.Parallel()

	repo := memory.NewOutboxRepository()
	first := enqueue(t, repo, domain.EventOrderPlaced, "ORD1", `{"status":"pending"}`)
	second := enqueue(t, repo, domain.EventOrderStatusChanged, "ORD1", `{"status":"confirmed"}`)
	publisher := &stubPublisher{}

	worker := NewWorker(repo, publisher, WithRetryBaseDelay(0), WithMaxAttempts(3))

	if got := worker.ProcessOnce(context.Background()); got != 2 {
		t.Fatalf("expected 2 sent events, got %d", got)
	}
	for _, id := range []string{first.ID, second.ID} {
		if status, _ := repo.Status(id); status != "sent" {
			t.Fatalf("expected %s to be sent, got %q", id, status)
		}
	}
	published := publisher.messages()
	if len(published) != 2 || published[0].EventType != domain.EventOrderPlaced {
		t.Fatalf("expected events in enqueue order, got %+v", published)
	}
}

func TestWorker_ProcessOnce_MarkFailedAndDLQAfterRetries(t *testing.T) {
	t.Parallel()

	repo := memory.NewOutboxRepository()
	msg := enqueue(t, repo, domain.EventOrderDriverLocationUpdated, "ORD2", `{"latitude":22.3}`)
	publisher := &stubPublisher{err: errors.New("broker unavailable")}
	dlqPublisher := &stubPublisher{}
	failedAt := time.Date(2026, time.March, 5, 10, 0, 0, 0, time.UTC)

	worker := NewWorker(
		repo,
		publisher,
		WithDLQPublisher(dlqPublisher),
		WithRetryBaseDelay(0),
		WithMaxAttempts(3),
		WithClock(func() time.Time { return failedAt }),
	)

	if got := worker.ProcessOnce(context.Background()); got != 0 {
		t.Fatalf("expected nothing sent, got %d", got)
	}
	if got := publisher.calls(); got != 3 {
		t.Fatalf("expected 3 publish attempts, got %d", got)
	}
	if status, _ := repo.Status(msg.ID); status != "failed" {
		t.Fatalf("expected failed status, got %q", status)
	}

	dlq := dlqPublisher.messages()
	if len(dlq) != 1 {
		t.Fatalf("expected 1 DLQ publish, got %d", len(dlq))
	}
	var letter DeadLetter
	if err := json.Unmarshal(dlq[0].Payload, &letter); err != nil {
		t.Fatalf("decode dead letter: %v", err)
	}
	if letter.OutboxID != msg.ID || letter.AggregateID != "ORD2" || letter.Attempts != 3 {
		t.Fatalf("unexpected dead letter: %+v", letter)
	}
	if !letter.FailedAt.Equal(failedAt) {
		t.Fatalf("expected failed_at %s, got %s", failedAt, letter.FailedAt)
	}
	if string(letter.Payload) != `{"latitude":22.3}` {
		t.Fatalf("expected original payload, got %s", letter.Payload)
	}
}

func TestWorker_ProcessOnce_SuccessAfterRetry(t *testing.T) {
	t.Parallel()

	repo := memory.NewOutboxRepository()
	msg := enqueue(t, repo, domain.EventOrderStatusChanged, "ORD3", `{"status":"ready"}`)
	publisher := &stubPublisher{
		sequenceErrors: []error{errors.New("attempt 1"), errors.New("attempt 2"), nil},
	}

	worker := NewWorker(repo, publisher, WithRetryBaseDelay(0), WithMaxAttempts(3))
	worker.ProcessOnce(context.Background())

	if got := publisher.calls(); got != 3 {
		t.Fatalf("expected 3 publish attempts, got %d", got)
	}
	if status, _ := repo.Status(msg.ID); status != "sent" {
		t.Fatalf("expected sent status, got %q", status)
	}
}

func TestWorker_ProcessOnce_DefersLaterEventsOfFailedOrder(t *testing.T) {
	t.Parallel()

	repo := memory.NewOutboxRepository()
	placed := enqueue(t, repo, domain.EventOrderPlaced, "ORD4", `{"status":"pending"}`)
	changed := enqueue(t, repo, domain.EventOrderStatusChanged, "ORD4", `{"status":"confirmed"}`)
	other := enqueue(t, repo, domain.EventOrderPlaced, "ORD5", `{"status":"pending"}`)
	publisher := &stubPublisher{failFor: map[string]bool{"ORD4": true}}

	registry := prometheus.NewRegistry()
	worker := NewWorker(
		repo,
		publisher,
		WithRetryBaseDelay(0),
		WithMaxAttempts(2),
		WithMetrics(metrics.NewBackgroundMetrics(registry)),
	)

	if got := worker.ProcessOnce(context.Background()); got != 1 {
		t.Fatalf("expected 1 sent event, got %d", got)
	}
	if status, _ := repo.Status(placed.ID); status != "failed" {
		t.Fatalf("expected first ORD4 event failed, got %q", status)
	}
	if status, _ := repo.Status(changed.ID); status != "pending" {
		t.Fatalf("expected later ORD4 event to stay pending, got %q", status)
	}
	if status, _ := repo.Status(other.ID); status != "sent" {
		t.Fatalf("expected ORD5 event sent, got %q", status)
	}
	if got := publisher.calls(); got != 3 {
		t.Fatalf("expected 3 publish calls, got %d", got)
	}

	families, err := registry.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	values := map[string]float64{}
	for _, family := range families {
		for _, metric := range family.GetMetric() {
			switch {
			case metric.GetCounter() != nil:
				values[family.GetName()] += metric.GetCounter().GetValue()
			case metric.GetGauge() != nil:
				values[family.GetName()] = metric.GetGauge().GetValue()
			}
		}
	}
	if values["foodtrack_outbox_deferred_total"] != 1 {
		t.Fatalf("expected 1 deferred event, got %v", values["foodtrack_outbox_deferred_total"])
	}
	if values["foodtrack_outbox_pending_records"] != 1 {
		t.Fatalf("expected 1 pending record, got %v", values["foodtrack_outbox_pending_records"])
	}
}

func TestWorker_RetryBackoffCapped(t *testing.T) {
	t.Parallel()

	worker := NewWorker(memory.NewOutboxRepository(), &stubPublisher{}, WithRetryBaseDelay(time.Second))
	if got := worker.retryBackoff(20); got != defaultMaxRetryDelay {
		t.Fatalf("expected capped delay %s, got %s", defaultMaxRetryDelay, got)
	}
}

func TestWorker_RetryBackoffDoubles(t *testing.T) {
	t.Parallel()

	worker := NewWorker(memory.NewOutboxRepository(), &stubPublisher{}, WithRetryBaseDelay(10*time.Millisecond))
	want := []time.Duration{10 * time.Millisecond, 20 * time.Millisecond, 40 * time.Millisecond}
	for i, expected := range want {
		if got := worker.retryBackoff(i + 1); got != expected {
			t.Fatalf("attempt %d: expected %s, got %s", i+1, expected, got)
		}
	}
}

func TestWorker_Run_StopsOnContextCancel(t *testing.T) {
	t.Parallel()

	worker := NewWorker(
		memory.NewOutboxRepository(),
		&stubPublisher{},
		WithPollInterval(5*time.Millisecond),
		WithRetryBaseDelay(0),
	)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		worker.Run(ctx)
	}()

	time.Sleep(15 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(1 * time.Second):
		t.Fatal("worker did not stop on context cancel")
	}
}

type stubPublisher struct {
	mu             sync.Mutex
	err            error
	failFor        map[string]bool
	sequenceErrors []error
	callCount      int
	published      []domain.OutboxMessage
}

func (s *stubPublisher) Publish(_ context.Context, msg domain.OutboxMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.callCount++
	err := s.err
	if len(s.sequenceErrors) > 0 {
		err = s.sequenceErrors[0]
		s.sequenceErrors = s.sequenceErrors[1:]
	}
	if s.failFor[msg.AggregateID] {
		err = errors.New("partition unavailable")
	}
	if err == nil {
		s.published = append(s.published, msg)
	}
	return err
}

func (s *stubPublisher) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.callCount
}

func (s *stubPublisher) messages() []domain.OutboxMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.OutboxMessage(nil), s.published...)
}

var _ domain.OutboxPublisher = (*stubPublisher)(nil)
