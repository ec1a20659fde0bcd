package notify

import (
	"context"
	"fmt"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/ejjahanieklu/ehn/internal/domain"
)

const defaultHookTimeout = 2 * time.Second

// BroadcastObserver получает результат доставки события каждому hook.
type BroadcastObserver interface {
	ObserveBroadcast(hook, event string, err error)
}

// DispatcherOptions задаёт параметры Dispatcher.
type DispatcherOptions struct {
	Logger   *log.Entry
	Timeout  time.Duration
	Observer BroadcastObserver
}

// DispatcherOption настраивает Dispatcher.
type DispatcherOption func(*DispatcherOptions)

// WithLogger задаёт logger.
func WithLogger(logger *log.Entry) DispatcherOption {
	return func(opts *DispatcherOptions) {
		opts.Logger = logger
	}
}

// WithTimeout ограничивает доставку события одному hook.
func WithTimeout(timeout time.Duration) DispatcherOption {
	return func(opts *DispatcherOptions) {
		opts.Timeout = timeout
	}
}

// WithObserver подключает метрики доставки.
func WithObserver(observer BroadcastObserver) DispatcherOption {
	return func(opts *DispatcherOptions) {
		opts.Observer = observer
	}
}

// Dispatcher это список post-commit hooks. Hooks вызываются по порядку
// регистрации; ошибка или паника одного hook не мешает остальным и не
// возвращается вызывающему.
type Dispatcher struct {
	mu       sync.RWMutex
	hooks    []Hook
	logger   *log.Entry
	timeout  time.Duration
	observer BroadcastObserver
}

// NewDispatcher создаёт Dispatcher с переданными hooks.
func NewDispatcher(hooks []Hook, options ...DispatcherOption) *Dispatcher {
	opts := DispatcherOptions{Timeout: defaultHookTimeout}
	for _, option := range options {
		if option != nil {
			option(&opts)
		}
	}
	if opts.Logger == nil {
		opts.Logger = log.WithField("component", "notify-dispatcher")
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultHookTimeout
	}

	d := &Dispatcher{
		logger:   opts.Logger,
		timeout:  opts.Timeout,
		observer: opts.Observer,
	}
	d.Register(hooks...)
	return d
}

// Register добавляет hooks в конец списка.
func (d *Dispatcher) Register(hooks ...Hook) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, hook := range hooks {
		if hook != nil {
			d.hooks = append(d.hooks, hook)
		}
	}
}

// Hooks возвращает имена зарегистрированных hooks.
func (d *Dispatcher) Hooks() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	names := make([]string, 0, len(d.hooks))
	for _, hook := range d.hooks {
		names = append(names, hook.Name())
	}
	return names
}

// OrderOpened рассылает order-opened.
func (d *Dispatcher) OrderOpened(ctx context.Context, order domain.Order) {
	d.Dispatch(ctx, OrderOpenedEvent(order))
}

// OrderClosed рассылает order-closed.
func (d *Dispatcher) OrderClosed(ctx context.Context, orderID string) {
	d.Dispatch(ctx, OrderClosedEvent(orderID))
}

// Dispatch доставляет событие всем hooks. Отмена ctx вызывающим не
// прерывает рассылку: запись уже выполнена.
func (d *Dispatcher) Dispatch(ctx context.Context, event Event) {
	d.mu.RLock()
	hooks := make([]Hook, len(d.hooks))
	copy(hooks, d.hooks)
	d.mu.RUnlock()

	base := context.WithoutCancel(ctx)
	for _, hook := range hooks {
		err := d.deliver(base, hook, event)
		if d.observer != nil {
			d.observer.ObserveBroadcast(hook.Name(), string(event.Type), err)
		}
		if err != nil {
			d.logger.WithError(err).WithFields(log.Fields{
				"hook":     hook.Name(),
				"event":    event.Type,
				"order_id": event.OrderID,
			}).Warn("event delivery failed")
		}
	}
}

func (d *Dispatcher) deliver(ctx context.Context, hook Hook, event Event) (err error) {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("hook %s panicked: %v", hook.Name(), r)
		}
	}()
	return hook.Deliver(ctx, event)
}

var _ domain.OrderNotifier = (*Dispatcher)(nil)
