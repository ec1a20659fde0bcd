package ordering

import (
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/ejjahanieklu/ehn/internal/docstore"
)

// StoreObserver получает длительность и результат каждой операции хранилища.
type StoreObserver interface {
	ObserveStoreOp(op string, err error, elapsed time.Duration)
}

// Options задаёт параметры репозиториев.
type Options struct {
	Logger    *log.Entry
	OpTimeout time.Duration
	Observer  StoreObserver
}

// Option настраивает репозиторий.
type Option func(*Options)

// WithLogger задаёт logger репозитория.
func WithLogger(logger *log.Entry) Option {
	return func(opts *Options) {
		opts.Logger = logger
	}
}

// WithOpTimeout ограничивает длительность одной операции с хранилищем.
func WithOpTimeout(timeout time.Duration) Option {
	return func(opts *Options) {
		opts.OpTimeout = timeout
	}
}

// WithObserver подключает сбор метрик операций хранилища.
func WithObserver(observer StoreObserver) Option {
	return func(opts *Options) {
		opts.Observer = observer
	}
}

func buildOptions(component string, options []Option) Options {
	opts := Options{OpTimeout: docstore.DefaultOpTimeout}
	for _, option := range options {
		if option != nil {
			option(&opts)
		}
	}
	if opts.Logger == nil {
		opts.Logger = log.WithField("component", component)
	}
	if opts.OpTimeout <= 0 {
		opts.OpTimeout = docstore.DefaultOpTimeout
	}
	return opts
}
