package notify

import "context"

// Hook получает события после успешной записи в хранилище.
type Hook interface {
	Name() string
	Deliver(ctx context.Context, event Event) error
}

// HookFunc превращает функцию в Hook.
type HookFunc struct {
	HookName string
	Fn       func(ctx context.Context, event Event) error
}

func (h HookFunc) Name() string {
	return h.HookName
}

func (h HookFunc) Deliver(ctx context.Context, event Event) error {
	return h.Fn(ctx, event)
}
