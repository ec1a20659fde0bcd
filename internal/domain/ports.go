package domain

import "context"

// OrderNotifier рассылает наблюдателям события об открытии и закрытии заказов.
// Вызывается только после успешной записи и никогда не возвращает ошибку:
// сбой доставки не должен влиять на уже выполненную операцию.
type OrderNotifier interface {
	OrderOpened(ctx context.Context, order Order)
	OrderClosed(ctx context.Context, orderID string)
}

// NopNotifier ничего не рассылает.
type NopNotifier struct{}

func (NopNotifier) OrderOpened(context.Context, Order) {}

func (NopNotifier) OrderClosed(context.Context, string) {}

var _ OrderNotifier = NopNotifier{}
