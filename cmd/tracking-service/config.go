package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/vladislavdragonenkov/foodtrack/internal/app"
)

const (
	envLogLevel  = "FOODTRACK_LOG_LEVEL"
	envLogFormat = "FOODTRACK_LOG_FORMAT"

	envHTTPAddr                    = "FOODTRACK_HTTP_ADDR"
	envGRPCAddr                    = "FOODTRACK_GRPC_ADDR"
	envMetricsAddr                 = "FOODTRACK_METRICS_ADDR"
	envStorageDriver               = "FOODTRACK_STORAGE_DRIVER"
	envPostgresDSN                 = "FOODTRACK_POSTGRES_DSN"
	envPostgresAutoMigrate         = "FOODTRACK_POSTGRES_AUTO_MIGRATE"
	envBusinessConfig              = "FOODTRACK_BUSINESS_CONFIG"
	envCatalog                     = "FOODTRACK_CATALOG_FILE"
	envJWTSecret                   = "FOODTRACK_JWT_SECRET"
	envRedisAddr                   = "FOODTRACK_REDIS_ADDR"
	envLockTTL                     = "FOODTRACK_LOCK_TTL"
	envEventBroker                 = "FOODTRACK_EVENT_BROKER"
	envKafkaBrokers                = "FOODTRACK_KAFKA_BROKERS"
	envKafkaTopic                  = "FOODTRACK_KAFKA_TOPIC"
	envKafkaDLQTopic               = "FOODTRACK_KAFKA_DLQ_TOPIC"
	envKafkaConsumerGroup          = "FOODTRACK_KAFKA_CONSUMER_GROUP"
	envRabbitURL                   = "FOODTRACK_RABBITMQ_URL"
	envRabbitExchange              = "FOODTRACK_RABBITMQ_EXCHANGE"
	envOutboxPollInterval          = "FOODTRACK_OUTBOX_POLL_INTERVAL"
	envOutboxBatchSize             = "FOODTRACK_OUTBOX_BATCH_SIZE"
	envOutboxMaxAttempts           = "FOODTRACK_OUTBOX_MAX_ATTEMPTS"
	envOutboxRetryDelay            = "FOODTRACK_OUTBOX_RETRY_DELAY"
	envIdempotencyTTL              = "FOODTRACK_IDEMPOTENCY_TTL"
	envIdempotencyCleanupInterval  = "FOODTRACK_IDEMPOTENCY_CLEANUP_INTERVAL"
	envIdempotencyCleanupBatchSize = "FOODTRACK_IDEMPOTENCY_CLEANUP_BATCH_SIZE"
	envOperationTimeout            = "FOODTRACK_OPERATION_TIMEOUT"
	envShutdownTimeout             = "FOODTRACK_SHUTDOWN_TIMEOUT"
)

type envLookup func(key string) (string, bool)

// readConfigFromEnv накладывает переменные окружения на app.DefaultConfig.
// Некорректные значения не меняют настройку и попадают в warnings.
func readConfigFromEnv(lookup envLookup) (app.Config, []string) {
	cfg := app.DefaultConfig()
	var warnings []string

	str := func(key string, dst *string) {
		if value, ok := lookup(key); ok && strings.TrimSpace(value) != "" {
			*dst = strings.TrimSpace(value)
		}
	}
	boolean := func(key string, dst *bool) {
		value, ok := lookup(key)
		if !ok {
			return
		}
		parsed, err := parseBool(value)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("%s: %v", key, err))
			return
		}
		*dst = parsed
	}
	positiveInt := func(key string, dst *int) {
		value, ok := lookup(key)
		if !ok {
			return
		}
		parsed, err := parseInt(value, func(v int) bool { return v > 0 }, "must be > 0")
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("%s: %v", key, err))
			return
		}
		*dst = parsed
	}
	duration := func(key string, dst *time.Duration, valid func(time.Duration) bool, rule string) {
		value, ok := lookup(key)
		if !ok {
			return
		}
		parsed, err := parseDuration(value, valid, rule)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("%s: %v", key, err))
			return
		}
		*dst = parsed
	}
	positive := func(v time.Duration) bool { return v > 0 }
	nonNegative := func(v time.Duration) bool { return v >= 0 }

	str(envHTTPAddr, &cfg.HTTPAddr)
	str(envGRPCAddr, &cfg.GRPCAddr)
	str(envMetricsAddr, &cfg.MetricsAddr)
	str(envStorageDriver, &cfg.StorageDriver)
	cfg.StorageDriver = strings.ToLower(cfg.StorageDriver)
	str(envPostgresDSN, &cfg.PostgresDSN)
	boolean(envPostgresAutoMigrate, &cfg.PostgresAutoMigrate)
	str(envBusinessConfig, &cfg.BusinessConfigPath)
	str(envCatalog, &cfg.CatalogPath)
	str(envJWTSecret, &cfg.JWTSecret)
	str(envRedisAddr, &cfg.RedisAddr)
	duration(envLockTTL, &cfg.LockTTL, positive, "must be > 0")
	str(envEventBroker, &cfg.EventBroker)
	cfg.EventBroker = strings.ToLower(cfg.EventBroker)
	str(envKafkaBrokers, &cfg.KafkaBrokers)
	str(envKafkaTopic, &cfg.KafkaTopic)
	str(envKafkaDLQTopic, &cfg.KafkaDLQTopic)
	str(envKafkaConsumerGroup, &cfg.KafkaConsumerGroup)
	str(envRabbitURL, &cfg.RabbitURL)
	str(envRabbitExchange, &cfg.RabbitExchange)
	duration(envOutboxPollInterval, &cfg.OutboxPollInterval, positive, "must be > 0")
	positiveInt(envOutboxBatchSize, &cfg.OutboxBatchSize)
	positiveInt(envOutboxMaxAttempts, &cfg.OutboxMaxAttempts)
	duration(envOutboxRetryDelay, &cfg.OutboxRetryDelay, nonNegative, "must be >= 0")
	duration(envIdempotencyTTL, &cfg.IdempotencyTTL, positive, "must be > 0")
	duration(envIdempotencyCleanupInterval, &cfg.IdempotencyCleanupInterval, positive, "must be > 0")
	positiveInt(envIdempotencyCleanupBatchSize, &cfg.IdempotencyCleanupBatchSize)
	duration(envOperationTimeout, &cfg.OperationTimeout, positive, "must be > 0")
	duration(envShutdownTimeout, &cfg.ShutdownTimeout, positive, "must be > 0")

	return cfg, warnings
}

func parseBool(value string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "y", "on":
		return true, nil
	case "0", "false", "no", "n", "off":
		return false, nil
	default:
		return false, fmt.Errorf("invalid bool value %q", value)
	}
}

func parseInt(value string, valid func(int) bool, rule string) (int, error) {
	parsed, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return 0, fmt.Errorf("invalid int value %q", value)
	}
	if !valid(parsed) {
		return 0, fmt.Errorf("value %d %s", parsed, rule)
	}
	return parsed, nil
}

func parseDuration(value string, valid func(time.Duration) bool, rule string) (time.Duration, error) {
	parsed, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		return 0, fmt.Errorf("invalid duration value %q", value)
	}
	if !valid(parsed) {
		return 0, fmt.Errorf("value %s %s", parsed, rule)
	}
	return parsed, nil
}
