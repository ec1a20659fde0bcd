// Package notify рассылает наблюдателям события об открытии и закрытии
// заказов. Доставка best-effort: без подтверждений, повторов и хранения.
package notify

import (
	"time"

	"github.com/ejjahanieklu/ehn/internal/domain"
)

// EventType это имя события в канале рассылки.
type EventType string

const (
	EventOrderOpened EventType = "order-opened"
	EventOrderClosed EventType = "order-closed"
)

// Event описывает изменение состояния заказа.
type Event struct {
	Type       EventType     `json:"type"`
	OrderID    string        `json:"order_id"`
	Order      *domain.Order `json:"order,omitempty"`
	OccurredAt time.Time     `json:"occurred_at"`
	// Origin задаёт экземпляр, опубликовавший событие в Redis.
	Origin string `json:"origin,omitempty"`
}

// OrderOpenedEvent строит событие order-opened с полным заказом.
func OrderOpenedEvent(order domain.Order) Event {
	return Event{
		Type:       EventOrderOpened,
		OrderID:    order.ID,
		Order:      &order,
		OccurredAt: time.Now().UTC(),
	}
}

// OrderClosedEvent строит событие order-closed с ID заказа.
func OrderClosedEvent(orderID string) Event {
	return Event{
		Type:       EventOrderClosed,
		OrderID:    orderID,
		OccurredAt: time.Now().UTC(),
	}
}

// Payload возвращает полезную нагрузку события для наблюдателя:
// документ заказа для order-opened и ID для order-closed.
func (e Event) Payload() any {
	if e.Type == EventOrderOpened && e.Order != nil {
		return e.Order
	}
	return e.OrderID
}
