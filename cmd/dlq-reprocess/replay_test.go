package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/foodtrack/internal/messaging/kafka"
)

func testConfig(execute bool) config {
	return config{
		brokers:     []string{"k1:9092"},
		sourceTopic: kafka.TopicDeadLetterQueue,
		targetTopic: kafka.TopicOrderEvents,
		limit:       10,
		execute:     execute,
		idleTimeout: 50 * time.Millisecond,
	}
}

func TestReplayDryRunCountsCandidates(t *testing.T) {
	client := &stubOffsetClient{partitions: []int32{0}, offsets: map[int32]offsetRange{0: {newest: 2}}}
	source := sourceWith(0, drained(
		&sarama.ConsumerMessage{Offset: 0, Value: consumerDeadLetter(t, "order.placed")},
		&sarama.ConsumerMessage{Offset: 1, Value: []byte(`not json`)},
	))

	stats, err := newReplayer(testConfig(false), client, source, nil).replay(context.Background())
	require.NoError(t, err)
	require.Equal(t, replayStats{processed: 2, replayed: 1, skipped: 1}, stats)
}

func TestReplayExecutePublishesInPartitionOrder(t *testing.T) {
	client := &stubOffsetClient{
		partitions: []int32{1, 0},
		offsets:    map[int32]offsetRange{0: {newest: 1}, 1: {oldest: 5, newest: 6}},
	}
	source := &stubPartitionConsumerSource{consumers: map[int32]partitionConsumer{
		0: drained(&sarama.ConsumerMessage{Offset: 0, Value: consumerDeadLetter(t, "order.status_changed")}),
		1: drained(&sarama.ConsumerMessage{Offset: 5, Value: outboxDeadLetter(t, json.RawMessage(`{}`))}),
	}}
	producer := &stubReplayProducer{}

	stats, err := newReplayer(testConfig(true), client, source, producer).replay(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, stats.replayed)
	require.Len(t, producer.sent, 2)
	require.Equal(t, []consumeCall{{partition: 0, offset: 0}, {partition: 1, offset: 5}}, source.calls)

	last := producer.sent[1]
	require.Equal(t, sampleOrderID, last.key)
	require.Equal(t, "order.placed", last.headers[kafka.HeaderEventType])
	require.Equal(t, kafka.TopicDeadLetterQueue, last.headers[kafka.HeaderOriginalTopic])
}

func TestReplayFiltersByEventType(t *testing.T) {
	client := &stubOffsetClient{partitions: []int32{0}, offsets: map[int32]offsetRange{0: {newest: 2}}}
	source := sourceWith(0, drained(
		&sarama.ConsumerMessage{Offset: 0, Value: consumerDeadLetter(t, "order.driver_location_updated")},
		&sarama.ConsumerMessage{Offset: 1, Value: consumerDeadLetter(t, "order.status_changed")},
	))
	producer := &stubReplayProducer{}
	cfg := testConfig(true)
	cfg.orderID = sampleOrderID
	cfg.eventType = "order.status_changed"

	stats, err := newReplayer(cfg, client, source, producer).replay(context.Background())
	require.NoError(t, err)
	require.Equal(t, replayStats{processed: 2, replayed: 1, filtered: 1}, stats)
	require.Equal(t, "order.status_changed", producer.sent[0].headers[kafka.HeaderEventType])
}

func TestReplayStopsAtLimit(t *testing.T) {
	client := &stubOffsetClient{
		partitions: []int32{0, 1},
		offsets:    map[int32]offsetRange{0: {newest: 3}, 1: {newest: 3}},
	}
	source := sourceWith(0, drained(
		&sarama.ConsumerMessage{Offset: 0, Value: consumerDeadLetter(t, "order.placed")},
		&sarama.ConsumerMessage{Offset: 1, Value: consumerDeadLetter(t, "order.placed")},
		&sarama.ConsumerMessage{Offset: 2, Value: consumerDeadLetter(t, "order.placed")},
	))
	cfg := testConfig(false)
	cfg.limit = 2

	stats, err := newReplayer(cfg, client, source, nil).replay(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, stats.processed)
	require.Len(t, source.calls, 1)
}

func TestReplayErrors(t *testing.T) {
	_, err := newReplayer(testConfig(true), &stubOffsetClient{}, &stubPartitionConsumerSource{}, nil).replay(context.Background())
	require.Error(t, err)

	metadataErr := errors.New("metadata unavailable")
	_, err = newReplayer(testConfig(false), &stubOffsetClient{partitionsErr: metadataErr}, &stubPartitionConsumerSource{}, nil).replay(context.Background())
	require.ErrorIs(t, err, metadataErr)

	client := &stubOffsetClient{partitions: []int32{0}, offsets: map[int32]offsetRange{0: {newest: 1}}}
	source := sourceWith(0, drained(&sarama.ConsumerMessage{Offset: 0, Value: consumerDeadLetter(t, "order.placed")}))
	sendErr := errors.New("broker down")
	_, err = newReplayer(testConfig(true), client, source, &stubReplayProducer{sendErr: sendErr}).replay(context.Background())
	require.ErrorIs(t, err, sendErr)
}

func TestScanPartitionFromNewestExitsWhenIdle(t *testing.T) {
	client := &stubOffsetClient{offsets: map[int32]offsetRange{0: {newest: 100}}}
	pc := &stubPartitionConsumer{messages: make(chan *sarama.ConsumerMessage), errors: make(chan *sarama.ConsumerError)}
	source := sourceWith(0, pc)
	cfg := testConfig(false)
	cfg.fromNewest = true

	r := newReplayer(cfg, client, source, nil)
	require.NoError(t, r.scanPartition(context.Background(), 0, 10))
	require.Zero(t, r.stats.processed)
	require.Equal(t, int64(90), source.calls[0].offset)
	require.True(t, pc.closed)
}

func TestScanPartitionHonoursContext(t *testing.T) {
	client := &stubOffsetClient{offsets: map[int32]offsetRange{0: {newest: 5}}}
	pc := &stubPartitionConsumer{messages: make(chan *sarama.ConsumerMessage), errors: make(chan *sarama.ConsumerError)}
	cfg := testConfig(false)
	cfg.idleTimeout = time.Minute

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := newReplayer(cfg, client, sourceWith(0, pc), nil).scanPartition(ctx, 0, 10)
	require.ErrorIs(t, err, context.Canceled)
}

type offsetRange struct {
	oldest int64
	newest int64
}

type stubOffsetClient struct {
	partitions    []int32
	partitionsErr error
	offsets       map[int32]offsetRange
	closed        bool
}

func (s *stubOffsetClient) GetOffset(_ string, partition int32, marker int64) (int64, error) {
	switch marker {
	case sarama.OffsetOldest:
		return s.offsets[partition].oldest, nil
	case sarama.OffsetNewest:
		return s.offsets[partition].newest, nil
	}
	return 0, fmt.Errorf("unsupported offset marker %d", marker)
}

func (s *stubOffsetClient) Partitions(string) ([]int32, error) {
	return append([]int32(nil), s.partitions...), s.partitionsErr
}

func (s *stubOffsetClient) Close() error {
	s.closed = true
	return nil
}

type consumeCall struct {
	partition int32
	offset    int64
}

type stubPartitionConsumerSource struct {
	consumers map[int32]partitionConsumer
	calls     []consumeCall
	closed    bool
}

func sourceWith(partition int32, pc partitionConsumer) *stubPartitionConsumerSource {
	return &stubPartitionConsumerSource{consumers: map[int32]partitionConsumer{partition: pc}}
}

func (s *stubPartitionConsumerSource) ConsumePartition(_ string, partition int32, offset int64) (partitionConsumer, error) {
	s.calls = append(s.calls, consumeCall{partition: partition, offset: offset})
	if pc, ok := s.consumers[partition]; ok {
		return pc, nil
	}
	return nil, fmt.Errorf("partition %d not configured", partition)
}

func (s *stubPartitionConsumerSource) Close() error {
	s.closed = true
	return nil
}

type stubPartitionConsumer struct {
	messages chan *sarama.ConsumerMessage
	errors   chan *sarama.ConsumerError
	closed   bool
}

func (s *stubPartitionConsumer) Messages() <-chan *sarama.ConsumerMessage { return s.messages }
func (s *stubPartitionConsumer) Errors() <-chan *sarama.ConsumerError     { return s.errors }
func (s *stubPartitionConsumer) Close() error {
	s.closed = true
	return nil
}

// drained отдаёт сообщения и закрывает канал.
func drained(messages ...*sarama.ConsumerMessage) *stubPartitionConsumer {
	ch := make(chan *sarama.ConsumerMessage, len(messages))
	for _, m := range messages {
		ch <- m
	}
	close(ch)
	return &stubPartitionConsumer{messages: ch, errors: make(chan *sarama.ConsumerError)}
}

type sentMessage struct {
	topic   string
	key     string
	value   []byte
	headers map[string]string
}

type stubReplayProducer struct {
	sendErr error
	sent    []sentMessage
	closed  bool
}

func (s *stubReplayProducer) Send(_ context.Context, topic, key string, value []byte, headers map[string]string) error {
	if s.sendErr != nil {
		return s.sendErr
	}
	s.sent = append(s.sent, sentMessage{topic: topic, key: key, value: value, headers: headers})
	return nil
}

func (s *stubReplayProducer) Close() error {
	s.closed = true
	return nil
}
