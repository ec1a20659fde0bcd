package notify

import (
	"context"
	"sync"
	"sync/atomic"
)

const defaultSubscriptionBuffer = 16

// Hub это реестр локальных наблюдателей. Доставка неблокирующая:
// наблюдатель с заполненным буфером пропускает событие.
type Hub struct {
	mu     sync.RWMutex
	subs   map[uint64]*Subscription
	nextID uint64
	closed bool
}

// NewHub создаёт пустой Hub.
func NewHub() *Hub {
	return &Hub{subs: make(map[uint64]*Subscription)}
}

// Subscription это подписка одного наблюдателя.
type Subscription struct {
	hub     *Hub
	id      uint64
	ch      chan Event
	once    sync.Once
	dropped atomic.Int64
}

// Subscribe регистрирует наблюдателя. Он получит только события,
// опубликованные после подписки.
func (h *Hub) Subscribe(buffer int) *Subscription {
	if buffer <= 0 {
		buffer = defaultSubscriptionBuffer
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	h.nextID++
	sub := &Subscription{hub: h, id: h.nextID, ch: make(chan Event, buffer)}
	if h.closed {
		sub.once.Do(func() { close(sub.ch) })
		return sub
	}
	h.subs[sub.id] = sub
	return sub
}

// Events возвращает канал событий; он закрывается при Close.
func (s *Subscription) Events() <-chan Event {
	return s.ch
}

// Dropped возвращает число пропущенных из-за переполнения событий.
func (s *Subscription) Dropped() int64 {
	return s.dropped.Load()
}

// Close отписывает наблюдателя. Повторный вызов безопасен.
func (s *Subscription) Close() {
	s.hub.mu.Lock()
	delete(s.hub.subs, s.id)
	s.hub.mu.Unlock()

	s.once.Do(func() { close(s.ch) })
}

// Publish рассылает событие всем текущим наблюдателям и возвращает
// число наблюдателей, получивших его.
func (h *Hub) Publish(event Event) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	delivered := 0
	for _, sub := range h.subs {
		select {
		case sub.ch <- event:
			delivered++
		default:
			sub.dropped.Add(1)
		}
	}
	return delivered
}

// Observers возвращает число подключённых наблюдателей.
func (h *Hub) Observers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Close закрывает все подписки; новые подписки сразу получают закрытый канал.
func (h *Hub) Close() {
	h.mu.Lock()
	subs := h.subs
	h.subs = make(map[uint64]*Subscription)
	h.closed = true
	h.mu.Unlock()

	for _, sub := range subs {
		sub.once.Do(func() { close(sub.ch) })
	}
}

func (h *Hub) Name() string {
	return "hub"
}

// Deliver реализует Hook.
func (h *Hub) Deliver(_ context.Context, event Event) error {
	h.Publish(event)
	return nil
}

var _ Hook = (*Hub)(nil)
