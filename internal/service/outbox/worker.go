// Package outbox доставляет доменные события заказов из outbox во внешний брокер.
package outbox

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/foodtrack/internal/domain"
	"github.com/vladislavdragonenkov/foodtrack/internal/metrics"
)

const (
	defaultPollInterval   = time.Second
	defaultBatchSize      = 100
	defaultMaxAttempts    = 3
	defaultRetryBaseDelay = 50 * time.Millisecond
	defaultMaxRetryDelay  = 30 * time.Second
	defaultPublishTimeout = 5 * time.Second
)

// DeadLetter — событие заказа, которое не удалось доставить за все попытки.
type DeadLetter struct {
	OutboxID      string          `json:"outbox_id"`
	AggregateType string          `json:"aggregate_type"`
	AggregateID   string          `json:"aggregate_id"`
	EventType     string          `json:"event_type"`
	Payload       json.RawMessage `json:"payload"`
	PublishError  string          `json:"publish_error"`
	Attempts      int             `json:"attempts"`
	FailedAt      time.Time       `json:"failed_at"`
}

type settings struct {
	logger         *log.Entry
	metrics        *metrics.BackgroundMetrics
	dlq            domain.OutboxPublisher
	pollInterval   time.Duration
	batchSize      int
	maxAttempts    int
	retryBaseDelay time.Duration
	publishTimeout time.Duration
	now            func() time.Time
}

// Option настраивает Worker.
type Option func(*settings)

// WithLogger задаёт logger.
func WithLogger(logger *log.Entry) Option {
	return func(s *settings) { s.logger = logger }
}

// WithMetrics включает метрики доставки.
func WithMetrics(m *metrics.BackgroundMetrics) Option {
	return func(s *settings) { s.metrics = m }
}

// WithDLQPublisher задаёт publisher для событий, исчерпавших попытки.
func WithDLQPublisher(publisher domain.OutboxPublisher) Option {
	return func(s *settings) { s.dlq = publisher }
}

// WithPollInterval задаёт частоту опроса outbox.
func WithPollInterval(interval time.Duration) Option {
	return func(s *settings) { s.pollInterval = interval }
}

// WithBatchSize задаёт размер выборки за цикл.
func WithBatchSize(batchSize int) Option {
	return func(s *settings) { s.batchSize = batchSize }
}

// WithMaxAttempts задаёт число попыток публикации одного события.
func WithMaxAttempts(maxAttempts int) Option {
	return func(s *settings) { s.maxAttempts = maxAttempts }
}

// WithRetryBaseDelay задаёт первую паузу между попытками; дальше она удваивается.
func WithRetryBaseDelay(delay time.Duration) Option {
	return func(s *settings) { s.retryBaseDelay = delay }
}

// WithPublishTimeout ограничивает одну попытку.
func WithPublishTimeout(timeout time.Duration) Option {
	return func(s *settings) { s.publishTimeout = timeout }
}

// WithClock подменяет время (DLQ и возраст backlog).
func WithClock(clock func() time.Time) Option {
	return func(s *settings) { s.now = clock }
}

// Worker публикует pending-события заказов в брокер.
//
// События одного заказа уходят строго по порядку: если событие заказа не
// доставлено, его более поздние события в этом цикле не публикуются и
// остаются pending до следующего опроса.
type Worker struct {
	repo      domain.OutboxRepository
	publisher domain.OutboxPublisher
	settings
}

// NewWorker создаёт outbox worker.
func NewWorker(repo domain.OutboxRepository, publisher domain.OutboxPublisher, options ...Option) *Worker {
	s := settings{
		pollInterval:   defaultPollInterval,
		batchSize:      defaultBatchSize,
		maxAttempts:    defaultMaxAttempts,
		retryBaseDelay: defaultRetryBaseDelay,
		publishTimeout: defaultPublishTimeout,
	}
	for _, option := range options {
		option(&s)
	}

	if s.logger == nil {
		s.logger = log.WithField("component", "outbox-worker")
	}
	if s.pollInterval <= 0 {
		s.pollInterval = defaultPollInterval
	}
	if s.batchSize <= 0 {
		s.batchSize = defaultBatchSize
	}
	if s.maxAttempts <= 0 {
		s.maxAttempts = defaultMaxAttempts
	}
	if s.retryBaseDelay < 0 {
		s.retryBaseDelay = 0
	}
	if s.publishTimeout <= 0 {
		s.publishTimeout = defaultPublishTimeout
	}
	if s.now == nil {
		s.now = func() time.Time { return time.Now().UTC() }
	}

	return &Worker{repo: repo, publisher: publisher, settings: s}
}

// Run опрашивает outbox до отмены ctx.
func (w *Worker) Run(ctx context.Context) {
	if w.repo == nil || w.publisher == nil {
		w.logger.Warn("outbox worker is disabled: repo or publisher is nil")
		return
	}

	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		w.ProcessOnce(ctx)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// ProcessOnce выполняет один цикл и возвращает число доставленных событий.
func (w *Worker) ProcessOnce(ctx context.Context) int {
	if ctx.Err() != nil {
		return 0
	}

	events, err := w.repo.PullPending(ctx, w.batchSize)
	if err != nil {
		w.logger.WithError(err).Warn("failed to pull pending outbox messages")
		return 0
	}

	sent, deferred := 0, 0
	blocked := map[string]bool{}
	for _, event := range events {
		if ctx.Err() != nil {
			break
		}
		if blocked[event.AggregateID] {
			deferred++
			continue
		}

		if w.deliver(ctx, event) {
			sent++
			continue
		}
		if ctx.Err() != nil {
			break
		}
		blocked[event.AggregateID] = true
	}

	w.metrics.OutboxDeferred(deferred)
	w.refreshBacklog(ctx)
	return sent
}

// deliver публикует событие; при неудаче отправляет его в DLQ и помечает failed.
func (w *Worker) deliver(ctx context.Context, event domain.OutboxMessage) bool {
	fields := log.Fields{"outbox_id": event.ID, "event_type": event.EventType, "order_id": event.AggregateID}

	err := w.publishWithRetry(ctx, event)
	if err == nil {
		if markErr := w.repo.MarkSent(ctx, event.ID); markErr != nil {
			w.logger.WithError(markErr).WithFields(fields).Warn("failed to mark outbox as sent")
		}
		return true
	}
	if ctx.Err() != nil {
		return false
	}

	w.logger.WithError(err).WithFields(fields).Error("outbox publish failed after retries")
	w.metrics.OutboxPublish(event.EventType, "failed")
	if dlqErr := w.publishToDLQ(ctx, event, err); dlqErr != nil {
		w.logger.WithError(dlqErr).WithFields(fields).Warn("failed to publish to DLQ")
		w.metrics.OutboxPublish(event.EventType, "dlq_failed")
	}
	if markErr := w.repo.MarkFailed(ctx, event.ID); markErr != nil {
		w.logger.WithError(markErr).WithFields(fields).Warn("failed to mark outbox as failed")
	}
	return false
}

func (w *Worker) publishWithRetry(ctx context.Context, event domain.OutboxMessage) error {
	var lastErr error
	for attempt := 1; attempt <= w.maxAttempts; attempt++ {
		if attempt > 1 {
			if err := sleep(ctx, w.retryBackoff(attempt-1)); err != nil {
				return err
			}
		}

		pubCtx, cancel := context.WithTimeout(ctx, w.publishTimeout)
		lastErr = w.publisher.Publish(pubCtx, event)
		cancel()
		if lastErr == nil {
			w.metrics.OutboxPublish(event.EventType, "sent")
			return nil
		}
		w.metrics.OutboxPublish(event.EventType, "retry_error")
	}
	return fmt.Errorf("%w: %d attempts: %w", domain.ErrOutboxPublish, w.maxAttempts, lastErr)
}

// retryBackoff возвращает паузу после attempt-й неудачной попытки: base * 2^(attempt-1), не больше 30s.
func (w *Worker) retryBackoff(attempt int) time.Duration {
	delay := w.retryBaseDelay
	for i := 1; i < attempt && delay > 0 && delay < defaultMaxRetryDelay; i++ {
		delay *= 2
	}
	if delay > defaultMaxRetryDelay {
		return defaultMaxRetryDelay
	}
	return delay
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (w *Worker) refreshBacklog(ctx context.Context) {
	if w.metrics == nil {
		return
	}
	stats, err := w.repo.Stats(ctx)
	if err != nil {
		w.logger.WithError(err).Warn("failed to collect outbox backlog stats")
		return
	}
	var age time.Duration
	if stats.PendingCount > 0 && !stats.OldestPendingAt.IsZero() {
		age = w.now().Sub(stats.OldestPendingAt)
	}
	w.metrics.OutboxBacklog(stats.PendingCount, age)
}

func (w *Worker) publishToDLQ(ctx context.Context, event domain.OutboxMessage, publishErr error) error {
	if w.dlq == nil {
		return nil
	}

	payload := json.RawMessage(event.Payload)
	if !json.Valid(payload) {
		quoted, _ := json.Marshal(string(event.Payload))
		payload = quoted
	}
	data, err := json.Marshal(DeadLetter{
		OutboxID:      event.ID,
		AggregateType: event.AggregateType,
		AggregateID:   event.AggregateID,
		EventType:     event.EventType,
		Payload:       payload,
		PublishError:  publishErr.Error(),
		Attempts:      w.maxAttempts,
		FailedAt:      w.now(),
	})
	if err != nil {
		return fmt.Errorf("marshal dead letter: %w", err)
	}

	pubCtx, cancel := context.WithTimeout(ctx, w.publishTimeout)
	defer cancel()
	letter := event
	letter.Payload = data
	if err := w.dlq.Publish(pubCtx, letter); err != nil {
		return fmt.Errorf("publish to dlq: %w", err)
	}
	return nil
}
