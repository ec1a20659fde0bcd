package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ejjahanieklu/ehn/internal/domain"
	"github.com/ejjahanieklu/ehn/internal/notify"
)

func newTestProducer(t *testing.T) (*Producer, *mocks.SyncProducer) {
	t.Helper()
	mockProducer := mocks.NewSyncProducer(t, nil)
	return NewProducerFromSync(mockProducer), mockProducer
}

func TestProducerPublishEvent(t *testing.T) {
	producer, mockProducer := newTestProducer(t)
	mockProducer.ExpectSendMessageWithMessageCheckerFunctionAndSucceed(func(pm *sarama.ProducerMessage) error {
		key, err := pm.Key.Encode()
		if err != nil {
			return err
		}
		if string(key) != "o-1" {
			return fmt.Errorf("unexpected key %q", key)
		}
		return nil
	})

	require.NoError(t, producer.PublishEvent(TopicOrderEvents, "o-1", map[string]string{"a": "b"}))
	require.NoError(t, mockProducer.Close())
}

func TestProducerPublishRawKeepsBody(t *testing.T) {
	producer, mockProducer := newTestProducer(t)
	body := []byte(`{"event_type":"order.closed","order_id":"o-1"}`)
	mockProducer.ExpectSendMessageWithMessageCheckerFunctionAndSucceed(func(pm *sarama.ProducerMessage) error {
		value, err := pm.Value.Encode()
		if err != nil {
			return err
		}
		if string(value) != string(body) {
			return fmt.Errorf("body re-encoded: %s", value)
		}
		if len(pm.Headers) != 1 || string(pm.Headers[0].Key) != HeaderRetryCount {
			return fmt.Errorf("unexpected headers %v", pm.Headers)
		}
		return nil
	})

	err := producer.PublishRaw(TopicOrderEvents, "o-1", body, sarama.RecordHeader{Key: []byte(HeaderRetryCount), Value: []byte("3")})
	require.NoError(t, err)
	require.NoError(t, mockProducer.Close())
}

func TestProducerPublishEventError(t *testing.T) {
	producer, mockProducer := newTestProducer(t)
	mockProducer.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)

	err := producer.PublishEvent(TopicOrderEvents, "o-1", map[string]string{})
	assert.ErrorIs(t, err, sarama.ErrOutOfBrokers)
	require.NoError(t, mockProducer.Close())
}

func TestProducerPublishEventMarshalError(t *testing.T) {
	producer, mockProducer := newTestProducer(t)

	err := producer.PublishEvent(TopicOrderEvents, "o-1", func() {})
	assert.Error(t, err)
	require.NoError(t, mockProducer.Close())
}

func TestNewOrderEvent(t *testing.T) {
	order := &domain.Order{ID: "o-1", From: domain.Restaurant{Name: "Pho"}, Author: "ann", Email: "ann@example.com"}
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	opened, err := NewOrderEvent(notify.Event{Type: notify.EventOrderOpened, OrderID: "o-1", Order: order, OccurredAt: at})
	require.NoError(t, err)
	assert.Equal(t, EventTypeOrderOpened, opened.EventType)
	assert.Equal(t, "o-1", opened.OrderID)
	assert.Equal(t, at, opened.Timestamp)
	assert.Same(t, order, opened.Order)

	closed, err := NewOrderEvent(notify.Event{Type: notify.EventOrderClosed, OrderID: "o-1"})
	require.NoError(t, err)
	assert.Equal(t, EventTypeOrderClosed, closed.EventType)
	assert.False(t, closed.Timestamp.IsZero())

	_, err = NewOrderEvent(notify.Event{Type: "order-renamed"})
	assert.Error(t, err)
}

func TestParseOrderEvent(t *testing.T) {
	event, err := ParseOrderEvent(&sarama.ConsumerMessage{Value: []byte(`{"event_type":"order.closed","order_id":"o-1"}`)})
	require.NoError(t, err)
	assert.Equal(t, EventTypeOrderClosed, event.EventType)
	assert.Equal(t, "o-1", event.OrderID)

	_, err = ParseOrderEvent(&sarama.ConsumerMessage{Value: []byte("{")})
	assert.Error(t, err)
}

func TestEventHookDeliver(t *testing.T) {
	producer, mockProducer := newTestProducer(t)
	mockProducer.ExpectSendMessageWithMessageCheckerFunctionAndSucceed(func(pm *sarama.ProducerMessage) error {
		if pm.Topic != TopicOrderEvents {
			return fmt.Errorf("unexpected topic %q", pm.Topic)
		}
		raw, err := pm.Value.Encode()
		if err != nil {
			return err
		}
		var event OrderEvent
		if err := json.Unmarshal(raw, &event); err != nil {
			return err
		}
		if event.EventType != EventTypeOrderClosed || event.OrderID != "o-7" {
			return fmt.Errorf("unexpected event %+v", event)
		}
		return nil
	})

	hook := NewEventHook(producer, "")
	assert.Equal(t, "kafka", hook.Name())
	require.NoError(t, hook.Deliver(context.Background(), notify.OrderClosedEvent("o-7")))
	require.NoError(t, mockProducer.Close())
}

func TestEventHookRejectsUnknownEvent(t *testing.T) {
	producer, mockProducer := newTestProducer(t)
	hook := NewEventHook(producer, TopicOrderEvents)

	assert.Error(t, hook.Deliver(context.Background(), notify.Event{Type: "unknown", OrderID: "o-1"}))
	require.NoError(t, mockProducer.Close())
}

func TestEventHookNotInitialized(t *testing.T) {
	var hook *EventHook
	assert.Error(t, hook.Deliver(context.Background(), notify.OrderClosedEvent("o-1")))
}
