// Package docstore описывает обобщённое документное хранилище: коллекции по
// имени, документы как map и фильтры на равенство полей.
//
// Gateway выдаёт одно подключение на логическую операцию и гарантирует его
// освобождение при любом исходе, включая панику внутри операции.
package docstore

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Имена коллекций и логической базы по умолчанию.
const (
	CollectionOrders = "orders"
	CollectionItems  = "items"

	DefaultDatabase  = "ejja-ha-nieklu"
	DefaultOpTimeout = 5 * time.Second

	// IDField это ключ идентификатора документа.
	IDField = "_id"
)

// ErrNoDocuments возвращается FindOne, если документ не найден.
var ErrNoDocuments = errors.New("docstore: no documents in result")

// Document это документ хранилища.
type Document map[string]any

// ID возвращает строковый идентификатор документа.
func (d Document) ID() string {
	id, _ := d[IDField].(string)
	return id
}

// Filter это фильтр на равенство верхнеуровневых полей. Пустой фильтр выбирает всё.
type Filter map[string]any

// ByID строит фильтр по идентификатору.
func ByID(id string) Filter {
	return Filter{IDField: id}
}

// UpsertResult описывает результат UpsertByID.
type UpsertResult struct {
	ID       string
	Inserted bool
}

// Collection это операции над одной коллекцией.
type Collection interface {
	// InsertOne сохраняет документ. Если _id не задан, генерируется новый.
	InsertOne(ctx context.Context, doc Document) (string, error)
	// FindOne возвращает первый подходящий документ или ErrNoDocuments.
	FindOne(ctx context.Context, filter Filter) (Document, error)
	// Find возвращает все подходящие документы в порядке хранилища.
	Find(ctx context.Context, filter Filter) ([]Document, error)
	// UpsertByID заменяет документ с данным _id или вставляет новый.
	UpsertByID(ctx context.Context, id string, doc Document) (UpsertResult, error)
	DeleteOne(ctx context.Context, filter Filter) (int64, error)
	DeleteMany(ctx context.Context, filter Filter) (int64, error)
	// EnsureIndex создаёт индекс по полю, если его ещё нет.
	EnsureIndex(ctx context.Context, field string) error
}

// Database это логическая база с именованными коллекциями.
type Database interface {
	Collection(name string) Collection
}

// Operation это логическая операция в рамках одного подключения.
type Operation func(ctx context.Context, db Database) error

// Gateway выдаёт подключения к хранилищу.
type Gateway interface {
	// WithConnection открывает подключение, выбирает базу, выполняет op и
	// освобождает подключение после завершения op.
	WithConnection(ctx context.Context, op Operation) error
	// Ping проверяет доступность хранилища.
	Ping(ctx context.Context) error
	// Close освобождает ресурсы gateway.
	Close(ctx context.Context) error
}

// NewID генерирует непрозрачный идентификатор документа.
func NewID() string {
	return uuid.NewString()
}

// WithOpTimeout ограничивает один запрос к хранилищу.
func WithOpTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		timeout = DefaultOpTimeout
	}
	return context.WithTimeout(ctx, timeout)
}

// Matches проверяет документ на соответствие фильтру равенства.
func Matches(doc Document, filter Filter) bool {
	for k, want := range filter {
		got, ok := doc[k]
		if !ok || !equalValues(got, want) {
			return false
		}
	}
	return true
}

func equalValues(a, b any) bool {
	switch av := a.(type) {
	case string:
		bv, ok := b.(string)
		return ok && av == bv
	case bool:
		bv, ok := b.(bool)
		return ok && av == bv
	case float64:
		bv, ok := toFloat(b)
		return ok && av == bv
	case int, int32, int64:
		af, _ := toFloat(av)
		bv, ok := toFloat(b)
		return ok && af == bv
	case nil:
		return b == nil
	default:
		return false
	}
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}
