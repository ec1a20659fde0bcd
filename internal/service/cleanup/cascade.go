package cleanup

import (
	"context"
	"fmt"

	"github.com/IBM/sarama"
	log "github.com/sirupsen/logrus"

	"github.com/ejjahanieklu/ehn/internal/messaging/kafka"
)

// OrderItemsRemover удаляет позиции удалённого заказа.
type OrderItemsRemover interface {
	RemoveByOrder(ctx context.Context, orderID string) (int, error)
}

// CascadeHandler дочищает позиции по событиям order.closed из Kafka.
type CascadeHandler struct {
	items  OrderItemsRemover
	logger *log.Entry
}

// NewCascadeHandler создаёт обработчик для kafka.Consumer.
func NewCascadeHandler(items OrderItemsRemover, logger *log.Entry) *CascadeHandler {
	if logger == nil {
		logger = log.WithField("component", "cascade-handler")
	}
	return &CascadeHandler{items: items, logger: logger}
}

// Handle реализует kafka.MessageHandler. События, кроме order.closed, пропускаются.
func (h *CascadeHandler) Handle(ctx context.Context, message *sarama.ConsumerMessage) error {
	event, err := kafka.ParseOrderEvent(message)
	if err != nil {
		return err
	}
	if event.EventType != kafka.EventTypeOrderClosed {
		return nil
	}
	if event.OrderID == "" {
		return fmt.Errorf("order.closed event without order id at offset %d", message.Offset)
	}

	removed, err := h.items.RemoveByOrder(ctx, event.OrderID)
	if err != nil {
		return fmt.Errorf("remove items of order %s: %w", event.OrderID, err)
	}
	if removed > 0 {
		h.logger.WithFields(log.Fields{
			"order_id": event.OrderID,
			"removed":  removed,
		}).Info("leftover items removed")
	}
	return nil
}
