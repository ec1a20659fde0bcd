package domain

import "context"

// OrderRepository описывает жизненный цикл заказов.
type OrderRepository interface {
	// Create валидирует и сохраняет новый заказ, возвращает его с присвоенным ID.
	Create(ctx context.Context, order Order) (Order, error)
	// Remove удаляет заказ и все его позиции (best-effort, без отката).
	Remove(ctx context.Context, id string) error
	// GetAll возвращает все заказы в порядке хранилища.
	GetAll(ctx context.Context) ([]Order, error)
	// Lookup возвращает заказ или nil, если его нет.
	Lookup(ctx context.Context, id string) (*Order, error)
}

// ItemRepository описывает жизненный цикл позиций заказа.
type ItemRepository interface {
	// Create сохраняет позицию через upsert по ID и возвращает ID документа.
	Create(ctx context.Context, item Item) (string, error)
	// Update выставляет ID из аргумента и идёт тем же путём, что и Create.
	Update(ctx context.Context, id string, item Item) (string, error)
	Remove(ctx context.Context, id string) error
	Lookup(ctx context.Context, id string) (*Item, error)
	// Query поддерживает только фильтр по заказу.
	Query(ctx context.Context, query ItemQuery) ([]Item, error)
}
