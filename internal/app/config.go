package app

import "time"

// Драйверы хранилища.
const (
	StorageDriverMemory   = "memory"
	StorageDriverPostgres = "postgres"
)

// Брокеры событий outbox.
const (
	EventBrokerNone     = "none"
	EventBrokerKafka    = "kafka"
	EventBrokerRabbitMQ = "rabbitmq"
)

// Config описывает настройки запуска сервиса.
type Config struct {
	HTTPAddr    string
	GRPCAddr    string
	MetricsAddr string

	StorageDriver       string
	PostgresDSN         string
	PostgresAutoMigrate bool

	// Пустые пути означают встроенные конфигурации Вадодары.
	BusinessConfigPath string
	CatalogPath        string

	JWTSecret string

	// RedisAddr включает распределённую блокировку заказов.
	RedisAddr string
	LockTTL   time.Duration

	EventBroker   string
	KafkaBrokers  string
	KafkaTopic    string
	KafkaDLQTopic string
	// KafkaConsumerGroup включает чтение событий для живого трекинга других реплик.
	KafkaConsumerGroup string
	RabbitURL          string
	RabbitExchange     string

	OutboxPollInterval time.Duration
	OutboxBatchSize    int
	OutboxMaxAttempts  int
	OutboxRetryDelay   time.Duration

	IdempotencyTTL              time.Duration
	IdempotencyCleanupInterval  time.Duration
	IdempotencyCleanupBatchSize int

	OperationTimeout time.Duration
	ShutdownTimeout  time.Duration
}

// DefaultConfig возвращает настройки по умолчанию: память, без брокера.
func DefaultConfig() Config {
	return Config{
		HTTPAddr:                    ":8080",
		GRPCAddr:                    ":50051",
		MetricsAddr:                 ":9090",
		StorageDriver:               StorageDriverMemory,
		PostgresAutoMigrate:         true,
		LockTTL:                     10 * time.Second,
		EventBroker:                 EventBrokerNone,
		KafkaTopic:                  "foodtrack.order.events",
		KafkaDLQTopic:               "foodtrack.dlq",
		RabbitExchange:              "foodtrack.orders",
		OutboxPollInterval:          time.Second,
		OutboxBatchSize:             100,
		OutboxMaxAttempts:           3,
		OutboxRetryDelay:            100 * time.Millisecond,
		IdempotencyTTL:              24 * time.Hour,
		IdempotencyCleanupInterval:  10 * time.Minute,
		IdempotencyCleanupBatchSize: 500,
		OperationTimeout:            5 * time.Second,
		ShutdownTimeout:             5 * time.Second,
	}
}
