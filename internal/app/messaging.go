package app

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-redis/redis/v8"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/foodtrack/internal/domain"
	"github.com/vladislavdragonenkov/foodtrack/internal/health"
	"github.com/vladislavdragonenkov/foodtrack/internal/lock"
	"github.com/vladislavdragonenkov/foodtrack/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/foodtrack/internal/messaging/rabbitmq"
	"github.com/vladislavdragonenkov/foodtrack/internal/tracking"
	"github.com/vladislavdragonenkov/foodtrack/internal/version"
)

// eventBroker держит подключение к брокеру событий outbox.
type eventBroker struct {
	name      string
	publisher domain.OutboxPublisher
	dlq       domain.OutboxPublisher
	checker   health.Checker
	consumer  *kafka.Consumer
	closeFn   func() error
}

func (b eventBroker) enabled() bool {
	return b.publisher != nil
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// initEventBroker подключает Kafka или RabbitMQ. Ошибка подключения не фатальна:
// сервис продолжает работать без публикации событий.
func initEventBroker(cfg Config, hub *tracking.Hub, logger *log.Entry) eventBroker {
	noop := eventBroker{closeFn: func() error { return nil }}

	switch strings.ToLower(strings.TrimSpace(cfg.EventBroker)) {
	case "", EventBrokerNone:
		logger.Info("event broker disabled, outbox is off")
		return noop
	case EventBrokerKafka:
		broker, err := initKafka(cfg, hub, logger)
		if err != nil {
			logger.WithError(err).Warn("failed to init kafka, continuing without event broker")
			return noop
		}
		return broker
	case EventBrokerRabbitMQ:
		session, publisher, err := rabbitmq.Dial(cfg.RabbitURL, cfg.RabbitExchange, logger.WithField("broker", "rabbitmq"))
		if err != nil {
			logger.WithError(err).Warn("failed to connect to rabbitmq, continuing without event broker")
			return noop
		}
		logger.WithField("exchange", cfg.RabbitExchange).Info("rabbitmq publisher initialized")
		return eventBroker{
			name:      EventBrokerRabbitMQ,
			publisher: publisher,
			dlq:       publisher.ForExchange(cfg.RabbitExchange + ".dlq"),
			checker:   health.NewPingChecker("rabbitmq", session.Ping),
			closeFn:   session.Close,
		}
	default:
		logger.WithField("broker", cfg.EventBroker).Warn("unknown event broker, outbox is off")
		return noop
	}
}

func initKafka(cfg Config, hub *tracking.Hub, logger *log.Entry) (eventBroker, error) {
	brokers := splitList(cfg.KafkaBrokers)
	if len(brokers) == 0 {
		return eventBroker{}, fmt.Errorf("kafka brokers are not configured")
	}

	producer, err := kafka.NewProducer(brokers, version.ClientID("foodtrack"))
	if err != nil {
		return eventBroker{}, err
	}
	logger.WithField("brokers", brokers).Info("kafka producer initialized")

	broker := eventBroker{
		name:      EventBrokerKafka,
		publisher: kafka.NewOutboxPublisher(producer, cfg.KafkaTopic),
		dlq:       kafka.NewOutboxPublisher(producer, cfg.KafkaDLQTopic),
		checker:   health.NewPingChecker("kafka", producer.Ping),
		closeFn:   producer.Close,
	}

	if cfg.KafkaConsumerGroup == "" {
		return broker, nil
	}

	consumerLogger := logger.WithField("consumer_group", cfg.KafkaConsumerGroup)
	consumer, err := kafka.NewConsumer(brokers, cfg.KafkaConsumerGroup, []string{cfg.KafkaTopic},
		func(_ context.Context, event kafka.Envelope) error {
			hub.Notify(event.AggregateID)
			return nil
		},
		kafka.ConsumerOptions{
			Logger:   consumerLogger,
			DLQ:      producer,
			DLQTopic: cfg.KafkaDLQTopic,
		})
	if err != nil {
		consumerLogger.WithError(err).Warn("failed to create kafka consumer, live feed stays local")
		return broker, nil
	}
	broker.consumer = consumer
	return broker, nil
}

// initLocker возвращает Redis-блокировку при заданном адресе, иначе локальную.
func initLocker(ctx context.Context, cfg Config, logger *log.Entry) (domain.Locker, health.Checker, func() error) {
	if cfg.RedisAddr == "" {
		return lock.NewKeyed(), nil, func() error { return nil }
	}

	client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	if err := client.Ping(ctx).Err(); err != nil {
		logger.WithError(err).Warn("redis unavailable, using in-process order lock")
		_ = client.Close()
		return lock.NewKeyed(), nil, func() error { return nil }
	}
	logger.WithField("addr", cfg.RedisAddr).Info("redis order lock enabled")

	locker := lock.NewRedis(client, lock.RedisOptions{
		TTL:    cfg.LockTTL,
		Logger: logger.WithField("lock", "redis"),
	})
	checker := health.NewPingChecker("redis", func(ctx context.Context) error {
		return client.Ping(ctx).Err()
	})
	return locker, checker, client.Close
}
