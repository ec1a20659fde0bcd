package main

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ejjahanieklu/ehn/internal/messaging/kafka"
)

const closedLetter = `{"original_topic":"ehn.order.events","original_key":"o-1","original_value":"{\"event_type\":\"order.closed\",\"order_id\":\"o-1\"}","error_message":"store down"}`

func TestParseBrokers(t *testing.T) {
	assert.Equal(t, []string{"b1:9092", "b2:9092"}, parseBrokers(" b1:9092, ,b2:9092 "))
	assert.Empty(t, parseBrokers(" , "))
}

func TestReadConfig(t *testing.T) {
	cfg, err := readConfig([]string{
		"-brokers=b1:9092,b2:9092",
		"-limit=10",
		"-execute",
		"-from-newest",
		"-idle-timeout=3s",
	})
	require.NoError(t, err)
	assert.Len(t, cfg.brokers, 2)
	assert.Equal(t, kafka.TopicDeadLetterQueue, cfg.sourceTopic)
	assert.Equal(t, kafka.TopicOrderEvents, cfg.targetTopic)
	assert.Equal(t, 10, cfg.limit)
	assert.True(t, cfg.execute)
	assert.True(t, cfg.fromNewest)
	assert.Equal(t, 3*time.Second, cfg.idleTimeout)
}

func TestReadConfig_BrokersFromEnv(t *testing.T) {
	t.Setenv(envKafkaBrokers, "env-broker:9092")
	cfg, err := readConfig(nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"env-broker:9092"}, cfg.brokers)
}

func TestReadConfig_Validation(t *testing.T) {
	t.Setenv(envKafkaBrokers, "")
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"no brokers", []string{"-brokers="}, "kafka brokers are required"},
		{"empty source", []string{"-brokers=b:9092", "-source-topic="}, "source-topic is required"},
		{"empty target", []string{"-brokers=b:9092", "-target-topic="}, "target-topic is required"},
		{"zero limit", []string{"-brokers=b:9092", "-limit=0"}, "limit must be > 0"},
		{"zero idle", []string{"-brokers=b:9092", "-idle-timeout=0s"}, "idle-timeout must be > 0"},
		{"unknown flag", []string{"-verbose"}, "flag provided but not defined"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := readConfig(tt.args)
			require.ErrorContains(t, err, tt.want)
		})
	}
}

func TestExtractReplayMessage(t *testing.T) {
	t.Run("topic from body", func(t *testing.T) {
		got, err := extractReplayMessage(&sarama.ConsumerMessage{Value: []byte(closedLetter)}, "fallback")
		require.NoError(t, err)
		assert.Equal(t, "ehn.order.events", got.topic)
		assert.Equal(t, "o-1", got.key)
		assert.JSONEq(t, `{"event_type":"order.closed","order_id":"o-1"}`, string(got.value))
	})

	t.Run("header wins over body", func(t *testing.T) {
		msg := &sarama.ConsumerMessage{
			Value:   []byte(closedLetter),
			Headers: []*sarama.RecordHeader{{Key: []byte(kafka.HeaderOriginalTopic), Value: []byte("from-header")}},
		}
		got, err := extractReplayMessage(msg, "fallback")
		require.NoError(t, err)
		assert.Equal(t, "from-header", got.topic)
	})

	t.Run("fallback topic and message key", func(t *testing.T) {
		msg := &sarama.ConsumerMessage{Key: []byte("k-9"), Value: []byte(`{"original_value":"{}"}`)}
		got, err := extractReplayMessage(msg, "fallback")
		require.NoError(t, err)
		assert.Equal(t, "fallback", got.topic)
		assert.Equal(t, "k-9", got.key)
	})

	t.Run("not json", func(t *testing.T) {
		_, err := extractReplayMessage(&sarama.ConsumerMessage{Value: []byte("garbage")}, "fallback")
		require.Error(t, err)
	})

	t.Run("no original value", func(t *testing.T) {
		_, err := extractReplayMessage(&sarama.ConsumerMessage{Value: []byte(`{"foo":"bar"}`)}, "fallback")
		require.ErrorContains(t, err, "no original value")
	})
}

func TestPublishReplay(t *testing.T) {
	require.Error(t, publishReplay(nil, replayMessage{}))

	sync := mocks.NewSyncProducer(t, nil)
	sync.ExpectSendMessageWithMessageCheckerFunctionAndSucceed(func(pm *sarama.ProducerMessage) error {
		if pm.Topic != "ehn.order.events" {
			return errors.New("unexpected topic " + pm.Topic)
		}
		if len(pm.Headers) != 1 || string(pm.Headers[0].Key) != kafka.HeaderReplayedAt {
			return errors.New("missing replay header")
		}
		return nil
	})
	publisher := kafka.NewProducerFromSync(sync)

	err := publishReplay(publisher, replayMessage{topic: "ehn.order.events", key: "o-1", value: []byte(`{}`)})
	require.NoError(t, err)
	require.NoError(t, publisher.Close())
}

func TestReplayPartition_DryRun(t *testing.T) {
	client := &stubOffsetClient{offsets: map[int32]offsetRange{0: {oldest: 0, newest: 2}}}
	source := &stubSource{consumers: map[int32]partitionConsumer{
		0: closedPartition(
			&sarama.ConsumerMessage{Offset: 0, Value: []byte(closedLetter)},
			&sarama.ConsumerMessage{Offset: 1, Value: []byte("garbage")},
		),
	}}
	cfg := config{sourceTopic: kafka.TopicDeadLetterQueue, targetTopic: kafka.TopicOrderEvents, idleTimeout: 50 * time.Millisecond}

	stats, err := replayPartition(context.Background(), cfg, client, source, nil, 0, 10)
	require.NoError(t, err)
	assert.Equal(t, replayStats{processed: 2, replayed: 1, skipped: 1}, stats)
	assert.Equal(t, []int64{0}, source.offsets)
}

func TestReplayPartition_FromNewest(t *testing.T) {
	client := &stubOffsetClient{offsets: map[int32]offsetRange{0: {oldest: 3, newest: 10}}}
	source := &stubSource{consumers: map[int32]partitionConsumer{0: closedPartition()}}
	cfg := config{sourceTopic: "dlq", targetTopic: "t", fromNewest: true, idleTimeout: 50 * time.Millisecond}

	_, err := replayPartition(context.Background(), cfg, client, source, nil, 0, 2)
	require.NoError(t, err)
	assert.Equal(t, []int64{8}, source.offsets)
}

func TestReplayPartition_Execute(t *testing.T) {
	client := &stubOffsetClient{offsets: map[int32]offsetRange{0: {oldest: 0, newest: 1}}}
	source := &stubSource{consumers: map[int32]partitionConsumer{
		0: closedPartition(&sarama.ConsumerMessage{Offset: 0, Value: []byte(closedLetter)}),
	}}
	publisher := &stubPublisher{}
	cfg := config{sourceTopic: "dlq", targetTopic: "t", execute: true, idleTimeout: 50 * time.Millisecond}

	stats, err := replayPartition(context.Background(), cfg, client, source, publisher, 0, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.replayed)
	require.Len(t, publisher.sent, 1)
	assert.Equal(t, "ehn.order.events", publisher.sent[0].topic)
}

func TestReplayPartition_Errors(t *testing.T) {
	cfg := config{sourceTopic: "dlq", targetTopic: "t", execute: true, idleTimeout: 50 * time.Millisecond}
	client := &stubOffsetClient{offsets: map[int32]offsetRange{0: {oldest: 0, newest: 2}}}

	t.Run("offset", func(t *testing.T) {
		broken := &stubOffsetClient{offsetErr: errors.New("offset")}
		_, err := replayPartition(context.Background(), cfg, broken, &stubSource{}, &stubPublisher{}, 0, 1)
		require.ErrorContains(t, err, "oldest offset")
	})

	t.Run("consume", func(t *testing.T) {
		source := &stubSource{consumeErr: errors.New("consume")}
		_, err := replayPartition(context.Background(), cfg, client, source, &stubPublisher{}, 0, 1)
		require.ErrorContains(t, err, "consume partition")
	})

	t.Run("consumer error", func(t *testing.T) {
		pc := &stubPartition{
			messages: make(chan *sarama.ConsumerMessage),
			errors:   make(chan *sarama.ConsumerError, 1),
		}
		pc.errors <- &sarama.ConsumerError{Err: errors.New("boom")}
		source := &stubSource{consumers: map[int32]partitionConsumer{0: pc}}
		_, err := replayPartition(context.Background(), cfg, client, source, &stubPublisher{}, 0, 1)
		require.ErrorContains(t, err, "consumer error")
	})

	t.Run("publish", func(t *testing.T) {
		source := &stubSource{consumers: map[int32]partitionConsumer{
			0: closedPartition(&sarama.ConsumerMessage{Offset: 0, Value: []byte(closedLetter)}),
		}}
		_, err := replayPartition(context.Background(), cfg, client, source, &stubPublisher{err: errors.New("down")}, 0, 1)
		require.ErrorContains(t, err, "publish replay message")
	})

	t.Run("context", func(t *testing.T) {
		pc := &stubPartition{messages: make(chan *sarama.ConsumerMessage), errors: make(chan *sarama.ConsumerError)}
		source := &stubSource{consumers: map[int32]partitionConsumer{0: pc}}
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := replayPartition(ctx, config{sourceTopic: "dlq", idleTimeout: time.Minute}, client, source, nil, 0, 1)
		require.ErrorIs(t, err, context.Canceled)
	})
}

func TestReplay_RespectsLimitAcrossPartitions(t *testing.T) {
	client := &stubOffsetClient{
		partitions: []int32{1, 0},
		offsets: map[int32]offsetRange{
			0: {oldest: 0, newest: 2},
			1: {oldest: 0, newest: 2},
		},
	}
	source := &stubSource{consumers: map[int32]partitionConsumer{
		0: closedPartition(
			&sarama.ConsumerMessage{Partition: 0, Offset: 0, Value: []byte(closedLetter)},
			&sarama.ConsumerMessage{Partition: 0, Offset: 1, Value: []byte(closedLetter)},
		),
		1: closedPartition(&sarama.ConsumerMessage{Partition: 1, Offset: 0, Value: []byte(closedLetter)}),
	}}
	cfg := config{sourceTopic: "dlq", targetTopic: "t", limit: 2, idleTimeout: 50 * time.Millisecond}

	stats, err := replay(context.Background(), cfg, client, source, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.processed)
	assert.Equal(t, []int32{0}, source.partitions)
}

func TestReplay_ExecuteRequiresPublisher(t *testing.T) {
	_, err := replay(context.Background(), config{execute: true}, &stubOffsetClient{}, &stubSource{}, nil)
	require.ErrorContains(t, err, "publisher is required")
}

func TestRun_UsesReplayDeps(t *testing.T) {
	client := &stubOffsetClient{partitions: []int32{0}, offsets: map[int32]offsetRange{0: {oldest: 0, newest: 1}}}
	source := &stubSource{consumers: map[int32]partitionConsumer{
		0: closedPartition(&sarama.ConsumerMessage{Offset: 0, Value: []byte(closedLetter)}),
	}}
	publisher := &stubPublisher{}

	original := replayDeps
	replayDeps = func(config) (offsetClient, partitionSource, replayPublisher, error) {
		return client, source, publisher, nil
	}
	t.Cleanup(func() { replayDeps = original })

	cfg := config{sourceTopic: "dlq", targetTopic: "t", limit: 5, execute: true, idleTimeout: 50 * time.Millisecond}
	require.NoError(t, run(context.Background(), cfg))
	assert.Len(t, publisher.sent, 1)
	assert.True(t, client.closed)
	assert.True(t, source.closed)
	assert.True(t, publisher.closed)
}

func TestFailExits(t *testing.T) {
	if os.Getenv("DLQ_TEST_FAIL_EXIT") == "1" {
		fail("forced failure %d", 42)
		return
	}

	cmd := exec.Command(os.Args[0], "-test.run=TestFailExits")
	cmd.Env = append(os.Environ(), "DLQ_TEST_FAIL_EXIT=1")
	err := cmd.Run()
	var exitErr *exec.ExitError
	require.ErrorAs(t, err, &exitErr)
	assert.NotZero(t, exitErr.ExitCode())
}

type offsetRange struct {
	oldest int64
	newest int64
}

type stubOffsetClient struct {
	partitions []int32
	offsets    map[int32]offsetRange
	offsetErr  error
	closed     bool
}

func (s *stubOffsetClient) GetOffset(_ string, partition int32, marker int64) (int64, error) {
	if s.offsetErr != nil {
		return 0, s.offsetErr
	}
	r := s.offsets[partition]
	if marker == sarama.OffsetOldest {
		return r.oldest, nil
	}
	return r.newest, nil
}

func (s *stubOffsetClient) Partitions(string) ([]int32, error) { return s.partitions, nil }

func (s *stubOffsetClient) Close() error {
	s.closed = true
	return nil
}

type stubSource struct {
	consumers  map[int32]partitionConsumer
	consumeErr error
	partitions []int32
	offsets    []int64
	closed     bool
}

func (s *stubSource) ConsumePartition(_ string, partition int32, offset int64) (partitionConsumer, error) {
	if s.consumeErr != nil {
		return nil, s.consumeErr
	}
	s.partitions = append(s.partitions, partition)
	s.offsets = append(s.offsets, offset)
	return s.consumers[partition], nil
}

func (s *stubSource) Close() error {
	s.closed = true
	return nil
}

type stubPartition struct {
	messages chan *sarama.ConsumerMessage
	errors   chan *sarama.ConsumerError
}

func (s *stubPartition) Messages() <-chan *sarama.ConsumerMessage { return s.messages }
func (s *stubPartition) Errors() <-chan *sarama.ConsumerError     { return s.errors }
func (s *stubPartition) Close() error                             { return nil }

// closedPartition отдаёт messages и закрытый канал; Errors никогда не срабатывает.
func closedPartition(messages ...*sarama.ConsumerMessage) *stubPartition {
	pc := &stubPartition{
		messages: make(chan *sarama.ConsumerMessage, len(messages)),
		errors:   make(chan *sarama.ConsumerError),
	}
	for _, msg := range messages {
		pc.messages <- msg
	}
	close(pc.messages)
	return pc
}

type stubPublisher struct {
	sent   []replayMessage
	err    error
	closed bool
}

func (s *stubPublisher) PublishRaw(topic string, key string, value []byte, _ ...sarama.RecordHeader) error {
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, replayMessage{topic: topic, key: key, value: value})
	return nil
}

func (s *stubPublisher) Close() error {
	s.closed = true
	return nil
}
