package memory

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/ejjahanieklu/ehn/internal/docstore"
)

// FaultFunc позволяет имитировать сбои хранилища: возвращённая ошибка
// прерывает операцию op над коллекцией collection.
type FaultFunc func(collection, op string) error

// Store это in-memory реализация docstore.Gateway для локальной разработки и тестов.
type Store struct {
	mu          sync.RWMutex
	collections map[string]*collection

	faultMu sync.RWMutex
	fault   FaultFunc

	acquired atomic.Int64
	released atomic.Int64
}

// NewStore возвращает пустое in-memory хранилище.
func NewStore() *Store {
	return &Store{collections: make(map[string]*collection)}
}

// WithConnection выполняет op, считая выданные и освобождённые «подключения».
func (s *Store) WithConnection(ctx context.Context, op docstore.Operation) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.acquired.Add(1)
	defer s.released.Add(1)

	return op(ctx, database{store: s})
}

// Ping всегда успешен.
func (s *Store) Ping(context.Context) error {
	return nil
}

// Close ничего не делает.
func (s *Store) Close(context.Context) error {
	return nil
}

// SetFault включает (или при nil выключает) имитацию сбоев.
func (s *Store) SetFault(fn FaultFunc) {
	s.faultMu.Lock()
	defer s.faultMu.Unlock()
	s.fault = fn
}

// Connections возвращает число выданных и освобождённых подключений.
func (s *Store) Connections() (acquired, released int64) {
	return s.acquired.Load(), s.released.Load()
}

// Count возвращает число документов в коллекции.
func (s *Store) Count(name string) int {
	c := s.collection(name)
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.order)
}

func (s *Store) injected(collection, op string) error {
	s.faultMu.RLock()
	fn := s.fault
	s.faultMu.RUnlock()
	if fn == nil {
		return nil
	}
	return fn(collection, op)
}

func (s *Store) collection(name string) *collection {
	s.mu.RLock()
	c, ok := s.collections[name]
	s.mu.RUnlock()
	if ok {
		return c
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok = s.collections[name]; ok {
		return c
	}
	c = newCollection(name, s)
	s.collections[name] = c
	return c
}

type database struct {
	store *Store
}

func (d database) Collection(name string) docstore.Collection {
	return d.store.collection(name)
}

var _ docstore.Gateway = (*Store)(nil)
