package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/IBM/sarama"
	log "github.com/sirupsen/logrus"
)

const defaultConsumerRetries = 3

// EventHandler обрабатывает событие заказа из топика.
type EventHandler func(ctx context.Context, event Envelope) error

// ConsumerDeadLetter — сообщение, которое consumer не смог обработать.
type ConsumerDeadLetter struct {
	OriginalTopic     string    `json:"original_topic"`
	OriginalPartition int32     `json:"original_partition"`
	OriginalOffset    int64     `json:"original_offset"`
	OriginalKey       string    `json:"original_key"`
	OriginalValue     string    `json:"original_value"`
	ErrorMessage      string    `json:"error_message"`
	RetryCount        int       `json:"retry_count"`
	FailedAt          time.Time `json:"failed_at"`
}

// ConsumerOptions задаёт необязательные параметры Consumer.
type ConsumerOptions struct {
	Logger     *log.Entry
	DLQ        *Producer
	DLQTopic   string
	MaxRetries int
	// FromOldest читает топик с начала; иначе только новые события.
	FromOldest bool
}

// Consumer читает события заказов в составе consumer group.
type Consumer struct {
	consumer   sarama.ConsumerGroup
	topics     []string
	handler    EventHandler
	logger     *log.Entry
	dlq        *Producer
	dlqTopic   string
	maxRetries int
	wg         sync.WaitGroup
}

// NewConsumer подключается к брокерам.
func NewConsumer(brokers []string, groupID string, topics []string, handler EventHandler, opts ConsumerOptions) (*Consumer, error) {
	config := sarama.NewConfig()
	config.Consumer.Group.Rebalance.GroupStrategies = []sarama.BalanceStrategy{sarama.NewBalanceStrategyRoundRobin()}
	config.Consumer.Offsets.Initial = sarama.OffsetNewest
	if opts.FromOldest {
		config.Consumer.Offsets.Initial = sarama.OffsetOldest
	}
	config.Consumer.Return.Errors = true

	group, err := sarama.NewConsumerGroup(brokers, groupID, config)
	if err != nil {
		return nil, fmt.Errorf("create kafka consumer group: %w", err)
	}
	return newConsumer(group, topics, handler, opts), nil
}

func newConsumer(group sarama.ConsumerGroup, topics []string, handler EventHandler, opts ConsumerOptions) *Consumer {
	if opts.Logger == nil {
		opts.Logger = log.WithField("component", "kafka-consumer")
	}
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = defaultConsumerRetries
	}
	if opts.DLQTopic == "" {
		opts.DLQTopic = TopicDeadLetterQueue
	}
	return &Consumer{
		consumer:   group,
		topics:     topics,
		handler:    handler,
		logger:     opts.Logger,
		dlq:        opts.DLQ,
		dlqTopic:   opts.DLQTopic,
		maxRetries: opts.MaxRetries,
	}
}

// Start запускает чтение в фоне до отмены ctx.
func (c *Consumer) Start(ctx context.Context) {
	c.wg.Add(2)
	go func() {
		defer c.wg.Done()
		for {
			// Consume завершается при каждом rebalance.
			if err := c.consumer.Consume(ctx, c.topics, c); err != nil {
				c.logger.WithError(err).Error("error from consumer")
			}
			if ctx.Err() != nil {
				return
			}
		}
	}()
	go func() {
		defer c.wg.Done()
		for err := range c.consumer.Errors() {
			c.logger.WithError(err).Error("consumer error")
		}
	}()

	c.logger.WithField("topics", c.topics).Info("kafka consumer started")
}

// Stop закрывает группу и ждёт фоновые горутины.
func (c *Consumer) Stop() error {
	if err := c.consumer.Close(); err != nil {
		return fmt.Errorf("close kafka consumer: %w", err)
	}
	c.wg.Wait()
	c.logger.Info("kafka consumer stopped")
	return nil
}

// Setup реализует sarama.ConsumerGroupHandler.
func (c *Consumer) Setup(sarama.ConsumerGroupSession) error { return nil }

// Cleanup реализует sarama.ConsumerGroupHandler.
func (c *Consumer) Cleanup(sarama.ConsumerGroupSession) error { return nil }

// ConsumeClaim обрабатывает сообщения партиции по порядку.
func (c *Consumer) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for {
		select {
		case message, ok := <-claim.Messages():
			if !ok || message == nil {
				return nil
			}
			fields := log.Fields{"topic": message.Topic, "partition": message.Partition, "offset": message.Offset}
			if err := c.handle(session.Context(), message); err != nil {
				// Без DLQ сообщение не коммитится и будет прочитано повторно.
				c.logger.WithError(err).WithFields(fields).Error("message processing failed")
				continue
			}
			session.MarkMessage(message, "")
		case <-session.Context().Done():
			return nil
		}
	}
}

func (c *Consumer) handle(ctx context.Context, message *sarama.ConsumerMessage) error {
	event, err := ParseEnvelope(message)
	if err != nil {
		return c.deadLetter(ctx, message, err, 0)
	}

	var lastErr error
	for attempt := 1; attempt <= c.maxRetries; attempt++ {
		if lastErr = c.handler(ctx, event); lastErr == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.logger.WithError(lastErr).WithFields(log.Fields{
			"event_type": event.EventType,
			"order_id":   event.AggregateID,
			"attempt":    attempt,
		}).Warn("event handler failed")
	}
	return c.deadLetter(ctx, message, lastErr, retryCount(message)+c.maxRetries)
}

func (c *Consumer) deadLetter(ctx context.Context, message *sarama.ConsumerMessage, cause error, retries int) error {
	if c.dlq == nil {
		return cause
	}
	data, err := json.Marshal(ConsumerDeadLetter{
		OriginalTopic:     message.Topic,
		OriginalPartition: message.Partition,
		OriginalOffset:    message.Offset,
		OriginalKey:       string(message.Key),
		OriginalValue:     string(message.Value),
		ErrorMessage:      cause.Error(),
		RetryCount:        retries,
		FailedAt:          c.dlq.now(),
	})
	if err != nil {
		return fmt.Errorf("marshal dead letter: %w", err)
	}
	headers := map[string]string{
		HeaderOriginalTopic: message.Topic,
		HeaderRetryCount:    strconv.Itoa(retries),
	}
	if err := c.dlq.Send(ctx, c.dlqTopic, string(message.Key), data, headers); err != nil {
		return fmt.Errorf("send to dlq: %w", err)
	}
	c.logger.WithFields(log.Fields{"topic": message.Topic, "offset": message.Offset}).Info("message sent to DLQ")
	return nil
}

func retryCount(message *sarama.ConsumerMessage) int {
	n, err := strconv.Atoi(header(message, HeaderRetryCount))
	if err != nil {
		return 0
	}
	return n
}
