package kafka

import (
	"context"
	"fmt"

	"github.com/ejjahanieklu/ehn/internal/notify"
)

// EventHook публикует события заказов в Kafka, ключом сообщения служит ID заказа.
type EventHook struct {
	producer *Producer
	topic    string
}

// NewEventHook создаёт hook для Dispatcher.
func NewEventHook(producer *Producer, topic string) *EventHook {
	if topic == "" {
		topic = TopicOrderEvents
	}
	return &EventHook{producer: producer, topic: topic}
}

func (h *EventHook) Name() string {
	return "kafka"
}

// Deliver отправляет событие и ждёт подтверждения не дольше, чем позволяет ctx.
func (h *EventHook) Deliver(ctx context.Context, event notify.Event) error {
	if h == nil || h.producer == nil {
		return fmt.Errorf("kafka event hook is not initialized")
	}

	payload, err := NewOrderEvent(event)
	if err != nil {
		return err
	}

	done := make(chan error, 1)
	go func() {
		done <- h.producer.PublishEvent(h.topic, event.OrderID, payload)
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

var _ notify.Hook = (*EventHook)(nil)
