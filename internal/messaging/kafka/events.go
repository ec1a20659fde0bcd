package kafka

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"

	"github.com/ejjahanieklu/ehn/internal/domain"
	"github.com/ejjahanieklu/ehn/internal/notify"
)

// EventType определяет тип события в topic.
type EventType string

const (
	EventTypeOrderOpened EventType = "order.opened"
	EventTypeOrderClosed EventType = "order.closed"
)

// Topics по умолчанию.
const (
	TopicOrderEvents     = "ehn.order.events"
	TopicDeadLetterQueue = "ehn.dlq"
)

// Заголовки сообщений, отправленных в DLQ.
const (
	HeaderRetryCount    = "x-retry-count"
	HeaderOriginalTopic = "x-original-topic"
	HeaderErrorMessage  = "x-error-message"
	HeaderFailedAt      = "x-failed-at"
	HeaderReplayedAt    = "x-replayed-at"
)

// OrderEvent это событие заказа в Kafka.
type OrderEvent struct {
	EventType EventType     `json:"event_type"`
	OrderID   string        `json:"order_id"`
	Order     *domain.Order `json:"order,omitempty"`
	Timestamp time.Time     `json:"timestamp"`
}

// NewOrderEvent переводит событие рассылки в формат topic.
func NewOrderEvent(event notify.Event) (*OrderEvent, error) {
	var eventType EventType
	switch event.Type {
	case notify.EventOrderOpened:
		eventType = EventTypeOrderOpened
	case notify.EventOrderClosed:
		eventType = EventTypeOrderClosed
	default:
		return nil, fmt.Errorf("unsupported event type %q", event.Type)
	}

	ts := event.OccurredAt
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	return &OrderEvent{
		EventType: eventType,
		OrderID:   event.OrderID,
		Order:     event.Order,
		Timestamp: ts,
	}, nil
}

// ParseOrderEvent разбирает OrderEvent из сообщения.
func ParseOrderEvent(message *sarama.ConsumerMessage) (*OrderEvent, error) {
	var event OrderEvent
	if err := json.Unmarshal(message.Value, &event); err != nil {
		return nil, fmt.Errorf("failed to unmarshal order event: %w", err)
	}
	return &event, nil
}
