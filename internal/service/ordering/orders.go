// Package ordering содержит репозитории заказов и позиций поверх
// документного хранилища.
package ordering

import (
	"context"
	"errors"

	"github.com/ejjahanieklu/ehn/internal/docstore"
	"github.com/ejjahanieklu/ehn/internal/domain"
)

// OrderRepository хранит заказы в коллекции orders.
type OrderRepository struct {
	store scopedStore
}

// NewOrderRepository создаёт репозиторий заказов.
func NewOrderRepository(gateway docstore.Gateway, options ...Option) *OrderRepository {
	return &OrderRepository{
		store: scopedStore{gateway: gateway, opts: buildOptions("order-repository", options)},
	}
}

// Create валидирует заказ, присваивает ему новый ID и сохраняет.
func (r *OrderRepository) Create(ctx context.Context, order domain.Order) (domain.Order, error) {
	if err := order.Validate(); err != nil {
		return domain.Order{}, err
	}

	order.ID = docstore.NewID()
	err := r.store.run(ctx, "insert order", func(ctx context.Context, db docstore.Database) error {
		_, err := db.Collection(docstore.CollectionOrders).InsertOne(ctx, order.Document())
		return err
	})
	if err != nil {
		return domain.Order{}, err
	}
	return order, nil
}

// Remove удаляет заказ и все его позиции. Второе удаление выполняется,
// даже если первое завершилось ошибкой; отката нет.
func (r *OrderRepository) Remove(ctx context.Context, id string) error {
	return r.store.run(ctx, "remove order", func(ctx context.Context, db docstore.Database) error {
		_, orderErr := db.Collection(docstore.CollectionOrders).DeleteOne(ctx, docstore.ByID(id))
		if orderErr != nil {
			r.store.opts.Logger.WithError(orderErr).WithField("order_id", id).Error("failed to delete order")
		}

		_, itemsErr := db.Collection(docstore.CollectionItems).DeleteMany(ctx, docstore.Filter{domain.FieldOrder: id})
		if itemsErr != nil {
			r.store.opts.Logger.WithError(itemsErr).WithField("order_id", id).Error("failed to delete order items")
		}

		return errors.Join(orderErr, itemsErr)
	})
}

// GetAll возвращает все заказы в порядке хранилища.
func (r *OrderRepository) GetAll(ctx context.Context) ([]domain.Order, error) {
	var orders []domain.Order
	err := r.store.run(ctx, "find orders", func(ctx context.Context, db docstore.Database) error {
		docs, err := db.Collection(docstore.CollectionOrders).Find(ctx, docstore.Filter{})
		if err != nil {
			return err
		}
		orders = make([]domain.Order, 0, len(docs))
		for _, doc := range docs {
			orders = append(orders, domain.OrderFromDocument(doc))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return orders, nil
}

// Lookup возвращает заказ или nil, если его нет.
func (r *OrderRepository) Lookup(ctx context.Context, id string) (*domain.Order, error) {
	var found *domain.Order
	err := r.store.run(ctx, "find order", func(ctx context.Context, db docstore.Database) error {
		doc, err := db.Collection(docstore.CollectionOrders).FindOne(ctx, docstore.ByID(id))
		if errors.Is(err, docstore.ErrNoDocuments) {
			return nil
		}
		if err != nil {
			return err
		}
		order := domain.OrderFromDocument(doc)
		found = &order
		return nil
	})
	if err != nil {
		return nil, err
	}
	return found, nil
}

// Exists сообщает, есть ли заказ с таким ID.
func (r *OrderRepository) Exists(ctx context.Context, id string) (bool, error) {
	order, err := r.Lookup(ctx, id)
	if err != nil {
		return false, err
	}
	return order != nil, nil
}

var _ domain.OrderRepository = (*OrderRepository)(nil)
