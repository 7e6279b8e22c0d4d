package main

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/IBM/sarama"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/foodtrack/internal/messaging/kafka"
)

type replayStats struct {
	processed int
	replayed  int
	filtered  int
	skipped   int
}

// replayer сканирует DLQ по партициям и переотправляет подходящие события.
type replayer struct {
	cfg      config
	offsets  offsetClient
	source   partitionConsumerSource
	producer replayProducer
	stats    replayStats
}

func newReplayer(cfg config, offsets offsetClient, source partitionConsumerSource, producer replayProducer) *replayer {
	return &replayer{cfg: cfg, offsets: offsets, source: source, producer: producer}
}

// replay проходит партиции по возрастанию номера, пока не просмотрит limit сообщений.
func (r *replayer) replay(ctx context.Context) (replayStats, error) {
	if r.cfg.execute && r.producer == nil {
		return r.stats, errors.New("producer is required in execute mode")
	}

	partitions, err := r.offsets.Partitions(r.cfg.sourceTopic)
	if err != nil {
		return r.stats, fmt.Errorf("partitions of %s: %w", r.cfg.sourceTopic, err)
	}
	slices.Sort(partitions)

	for _, partition := range partitions {
		budget := r.cfg.limit - r.stats.processed
		if budget <= 0 {
			break
		}
		if err := r.scanPartition(ctx, partition, budget); err != nil {
			return r.stats, err
		}
	}
	return r.stats, nil
}

// scanPartition читает партицию до снимка newest, не больше budget сообщений.
// С fromNewest начинает с newest-budget.
func (r *replayer) scanPartition(ctx context.Context, partition int32, budget int) error {
	topic := r.cfg.sourceTopic
	oldest, err := r.offsets.GetOffset(topic, partition, sarama.OffsetOldest)
	if err != nil {
		return fmt.Errorf("oldest offset of partition %d: %w", partition, err)
	}
	newest, err := r.offsets.GetOffset(topic, partition, sarama.OffsetNewest)
	if err != nil {
		return fmt.Errorf("newest offset of partition %d: %w", partition, err)
	}
	if newest <= oldest {
		return nil
	}

	start := oldest
	if r.cfg.fromNewest {
		start = max(oldest, newest-int64(budget))
	}
	pc, err := r.source.ConsumePartition(topic, partition, start)
	if err != nil {
		return fmt.Errorf("consume partition %d: %w", partition, err)
	}
	defer func() { _ = pc.Close() }()

	idle := time.NewTimer(r.cfg.idleTimeout)
	defer idle.Stop()

	for seen := 0; seen < budget; {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-idle.C:
			return nil
		case consumeErr := <-pc.Errors():
			if consumeErr != nil {
				return fmt.Errorf("partition %d: %w", partition, consumeErr)
			}
		case msg, ok := <-pc.Messages():
			if !ok || msg == nil || msg.Offset >= newest {
				return nil
			}
			resetTimer(idle, r.cfg.idleTimeout)

			seen++
			r.stats.processed++
			if err := r.handle(ctx, msg); err != nil {
				return err
			}
			if msg.Offset+1 >= newest {
				return nil
			}
		}
	}
	return nil
}

func (r *replayer) handle(ctx context.Context, msg *sarama.ConsumerMessage) error {
	fields := log.Fields{"partition": msg.Partition, "offset": msg.Offset}

	candidate, ok, err := extractReplayMessage(msg, r.cfg.targetTopic)
	switch {
	case err != nil:
		r.stats.skipped++
		log.WithError(err).WithFields(fields).Warn("skip unreadable dlq message")
		return nil
	case !ok:
		r.stats.skipped++
		return nil
	case !r.cfg.matches(candidate):
		r.stats.filtered++
		return nil
	}

	fields["target_topic"], fields["order_id"], fields["event_type"] = candidate.topic, candidate.key, candidate.eventType
	if !r.cfg.execute {
		log.WithFields(fields).Info("dlq replay candidate")
		r.stats.replayed++
		return nil
	}

	headers := map[string]string{kafka.HeaderOriginalTopic: r.cfg.sourceTopic}
	if candidate.eventType != "" {
		headers[kafka.HeaderEventType] = candidate.eventType
	}
	if err := r.producer.Send(ctx, candidate.topic, candidate.key, candidate.value, headers); err != nil {
		return fmt.Errorf("replay offset %d: %w", msg.Offset, err)
	}
	r.stats.replayed++
	return nil
}

// matches применяет фильтры -order-id и -event-type.
func (c config) matches(m replayMessage) bool {
	if c.orderID != "" && m.key != c.orderID {
		return false
	}
	return c.eventType == "" || m.eventType == c.eventType
}

func resetTimer(t *time.Timer, d time.Duration) {
	if !t.Stop() {
		select {
		case <-t.C:
		default:
		}
	}
	t.Reset(d)
}
