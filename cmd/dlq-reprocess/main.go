// Command dlq-reprocess переигрывает события заказов из DLQ обратно в топик событий.
// По умолчанию работает в dry-run и только печатает кандидатов.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/IBM/sarama"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/foodtrack/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/foodtrack/internal/version"
)

const (
	defaultReplayLimit = 100
	defaultIdleTimeout = 2 * time.Second
	envKafkaBrokers    = "FOODTRACK_KAFKA_BROKERS"
	clientName         = "foodtrack-dlq-reprocess"
)

type config struct {
	brokers     []string
	sourceTopic string
	targetTopic string
	orderID     string
	eventType   string
	limit       int
	execute     bool
	fromNewest  bool
	idleTimeout time.Duration
}

func (c config) mode() string {
	if c.execute {
		return "execute"
	}
	return "dry-run"
}

type offsetClient interface {
	GetOffset(topic string, partition int32, time int64) (int64, error)
	Partitions(topic string) ([]int32, error)
	Close() error
}

type partitionConsumer interface {
	Messages() <-chan *sarama.ConsumerMessage
	Errors() <-chan *sarama.ConsumerError
	Close() error
}

type partitionConsumerSource interface {
	ConsumePartition(topic string, partition int32, offset int64) (partitionConsumer, error)
	Close() error
}

// replayProducer реализуется kafka.Producer.
type replayProducer interface {
	Send(ctx context.Context, topic, key string, value []byte, headers map[string]string) error
	Close() error
}

type consumerSource struct {
	sarama.Consumer
}

func (s consumerSource) ConsumePartition(topic string, partition int32, offset int64) (partitionConsumer, error) {
	return s.Consumer.ConsumePartition(topic, partition, offset)
}

var newReplayDependencies = func(cfg config) (offsetClient, partitionConsumerSource, replayProducer, error) {
	saramaCfg := sarama.NewConfig()
	saramaCfg.ClientID = version.ClientID(clientName)
	saramaCfg.Consumer.Return.Errors = true

	client, err := sarama.NewClient(cfg.brokers, saramaCfg)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("kafka client: %w", err)
	}
	consumer, err := sarama.NewConsumerFromClient(client)
	if err != nil {
		_ = client.Close()
		return nil, nil, nil, fmt.Errorf("kafka consumer: %w", err)
	}
	source := consumerSource{Consumer: consumer}
	if !cfg.execute {
		return client, source, nil, nil
	}

	producer, err := kafka.NewProducer(cfg.brokers, version.ClientID(clientName))
	if err != nil {
		_ = source.Close()
		_ = client.Close()
		return nil, nil, nil, err
	}
	return client, source, producer, nil
}

func main() {
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})

	cfg, err := readConfig()
	if err != nil {
		fail("%v", err)
	}
	if err := run(context.Background(), cfg); err != nil {
		fail("dlq replay failed: %v", err)
	}
}

func readConfig() (config, error) {
	var (
		cfg     config
		brokers string
	)
	flag.StringVar(&brokers, "brokers", "", "comma-separated Kafka brokers (fallback: "+envKafkaBrokers+")")
	flag.StringVar(&cfg.sourceTopic, "source-topic", kafka.TopicDeadLetterQueue, "DLQ topic to scan")
	flag.StringVar(&cfg.targetTopic, "target-topic", kafka.TopicOrderEvents, "topic to replay into")
	flag.StringVar(&cfg.orderID, "order-id", "", "replay only events of this order (ORD...)")
	flag.StringVar(&cfg.eventType, "event-type", "", "replay only this event type, e.g. order.status_changed")
	flag.IntVar(&cfg.limit, "limit", defaultReplayLimit, "max DLQ messages to scan")
	flag.BoolVar(&cfg.execute, "execute", false, "publish replays; dry-run otherwise")
	flag.BoolVar(&cfg.fromNewest, "from-newest", false, "scan only the newest messages of each partition")
	flag.DurationVar(&cfg.idleTimeout, "idle-timeout", defaultIdleTimeout, "stop a partition after this long without messages")
	flag.Parse()

	if strings.TrimSpace(brokers) == "" {
		brokers = os.Getenv(envKafkaBrokers)
	}
	cfg.brokers = parseBrokers(brokers)
	cfg.orderID = strings.TrimSpace(cfg.orderID)
	cfg.eventType = strings.TrimSpace(cfg.eventType)

	switch {
	case len(cfg.brokers) == 0:
		return config{}, fmt.Errorf("kafka brokers are required (-brokers or %s)", envKafkaBrokers)
	case strings.TrimSpace(cfg.sourceTopic) == "" || strings.TrimSpace(cfg.targetTopic) == "":
		return config{}, fmt.Errorf("source-topic and target-topic are required")
	case cfg.limit <= 0:
		return config{}, fmt.Errorf("limit must be > 0")
	case cfg.idleTimeout <= 0:
		return config{}, fmt.Errorf("idle-timeout must be > 0")
	}
	return cfg, nil
}

func parseBrokers(raw string) []string {
	var brokers []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			brokers = append(brokers, part)
		}
	}
	return brokers
}

func run(ctx context.Context, cfg config) error {
	logger := log.WithFields(log.Fields{"mode": cfg.mode(), "source_topic": cfg.sourceTopic, "target_topic": cfg.targetTopic})
	logger.WithField("limit", cfg.limit).Info("dlq replay started")

	client, source, producer, err := newReplayDependencies(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if producer != nil {
			_ = producer.Close()
		}
		_ = source.Close()
		_ = client.Close()
	}()

	stats, err := newReplayer(cfg, client, source, producer).replay(ctx)
	logger.WithFields(log.Fields{
		"processed": stats.processed,
		"replayed":  stats.replayed,
		"filtered":  stats.filtered,
		"skipped":   stats.skipped,
	}).Info("dlq replay finished")
	return err
}

func fail(format string, args ...any) {
	_, _ = fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
