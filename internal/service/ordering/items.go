package ordering

import (
	"context"
	"errors"

	"github.com/ejjahanieklu/ehn/internal/docstore"
	"github.com/ejjahanieklu/ehn/internal/domain"
)

// ItemRepository хранит позиции в коллекции items. Ссылка на заказ
// проверяется перед каждой записью, но не атомарно с ней.
type ItemRepository struct {
	store scopedStore
}

// NewItemRepository создаёт репозиторий позиций.
func NewItemRepository(gateway docstore.Gateway, options ...Option) *ItemRepository {
	return &ItemRepository{
		store: scopedStore{gateway: gateway, opts: buildOptions("item-repository", options)},
	}
}

// EnsureIndexes создаёт индекс по _order.
func (r *ItemRepository) EnsureIndexes(ctx context.Context) error {
	return r.store.run(ctx, "ensure item indexes", func(ctx context.Context, db docstore.Database) error {
		return db.Collection(docstore.CollectionItems).EnsureIndex(ctx, domain.FieldOrder)
	})
}

// Create сохраняет позицию. Если ID не задан, генерируется новый;
// позиция с уже существующим ID перезаписывается.
func (r *ItemRepository) Create(ctx context.Context, item domain.Item) (string, error) {
	return r.upsert(ctx, item)
}

// Update перезаписывает позицию с данным ID или создаёт её.
func (r *ItemRepository) Update(ctx context.Context, id string, item domain.Item) (string, error) {
	item.ID = id
	return r.upsert(ctx, item)
}

func (r *ItemRepository) upsert(ctx context.Context, item domain.Item) (string, error) {
	if err := item.Validate(); err != nil {
		return "", err
	}
	if item.OrderID == "" {
		return "", domain.ErrInvalidOrder
	}
	if item.ID == "" {
		item.ID = docstore.NewID()
	}

	err := r.store.run(ctx, "upsert item", func(ctx context.Context, db docstore.Database) error {
		_, err := db.Collection(docstore.CollectionOrders).FindOne(ctx, docstore.ByID(item.OrderID))
		if errors.Is(err, docstore.ErrNoDocuments) {
			return domain.ErrInvalidOrder
		}
		if err != nil {
			return err
		}

		_, err = db.Collection(docstore.CollectionItems).UpsertByID(ctx, item.ID, item.Document())
		return err
	})
	if err != nil {
		return "", err
	}
	return item.ID, nil
}

// Remove удаляет позицию по ID независимо от её заказа.
func (r *ItemRepository) Remove(ctx context.Context, id string) error {
	return r.store.run(ctx, "remove item", func(ctx context.Context, db docstore.Database) error {
		_, err := db.Collection(docstore.CollectionItems).DeleteOne(ctx, docstore.ByID(id))
		return err
	})
}

// Lookup возвращает позицию или nil, если её нет.
func (r *ItemRepository) Lookup(ctx context.Context, id string) (*domain.Item, error) {
	var found *domain.Item
	err := r.store.run(ctx, "find item", func(ctx context.Context, db docstore.Database) error {
		doc, err := db.Collection(docstore.CollectionItems).FindOne(ctx, docstore.ByID(id))
		if errors.Is(err, docstore.ErrNoDocuments) {
			return nil
		}
		if err != nil {
			return err
		}
		item := domain.ItemFromDocument(doc)
		found = &item
		return nil
	})
	if err != nil {
		return nil, err
	}
	return found, nil
}

// Query возвращает позиции заказа. Любой другой фильтр отклоняется
// до обращения к хранилищу.
func (r *ItemRepository) Query(ctx context.Context, query domain.ItemQuery) ([]domain.Item, error) {
	if !query.ByOrder() {
		return nil, domain.NewUnsupportedItemQueryError()
	}

	var items []domain.Item
	err := r.store.run(ctx, "find items", func(ctx context.Context, db docstore.Database) error {
		docs, err := db.Collection(docstore.CollectionItems).Find(ctx, docstore.Filter{domain.FieldOrder: query.Order})
		if err != nil {
			return err
		}
		items = make([]domain.Item, 0, len(docs))
		for _, doc := range docs {
			items = append(items, domain.ItemFromDocument(doc))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return items, nil
}

// RemoveByOrder удаляет позиции заказа, которого уже нет в хранилище.
// Если заказ существует, ничего не удаляется.
func (r *ItemRepository) RemoveByOrder(ctx context.Context, orderID string) (int, error) {
	if orderID == "" {
		return 0, domain.ErrInvalidOrder
	}

	removed := 0
	err := r.store.run(ctx, "remove order items", func(ctx context.Context, db docstore.Database) error {
		_, err := db.Collection(docstore.CollectionOrders).FindOne(ctx, docstore.ByID(orderID))
		if err == nil {
			return nil
		}
		if !errors.Is(err, docstore.ErrNoDocuments) {
			return err
		}

		n, err := db.Collection(docstore.CollectionItems).DeleteMany(ctx, docstore.Filter{domain.FieldOrder: orderID})
		removed = int(n)
		return err
	})
	return removed, err
}

// PruneOrphans удаляет позиции, чей заказ больше не существует.
// limit <= 0 снимает ограничение на число удалений за вызов.
func (r *ItemRepository) PruneOrphans(ctx context.Context, limit int) (int, error) {
	pruned := 0
	err := r.store.run(ctx, "prune orphan items", func(ctx context.Context, db docstore.Database) error {
		orders := db.Collection(docstore.CollectionOrders)
		items := db.Collection(docstore.CollectionItems)

		docs, err := items.Find(ctx, docstore.Filter{})
		if err != nil {
			return err
		}

		known := make(map[string]bool)
		for _, doc := range docs {
			if limit > 0 && pruned >= limit {
				return nil
			}

			orderID, _ := doc[domain.FieldOrder].(string)
			exists, checked := known[orderID]
			if !checked {
				if orderID != "" {
					_, err := orders.FindOne(ctx, docstore.ByID(orderID))
					switch {
					case err == nil:
						exists = true
					case !errors.Is(err, docstore.ErrNoDocuments):
						return err
					}
				}
				known[orderID] = exists
			}
			if exists {
				continue
			}

			n, err := items.DeleteOne(ctx, docstore.ByID(doc.ID()))
			if err != nil {
				return err
			}
			pruned += int(n)
		}
		return nil
	})
	if pruned > 0 {
		r.store.opts.Logger.WithField("pruned", pruned).Info("orphan items removed")
	}
	return pruned, err
}

var _ domain.ItemRepository = (*ItemRepository)(nil)
