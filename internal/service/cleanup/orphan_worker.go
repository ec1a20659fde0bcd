// Package cleanup завершает каскадное удаление позиций, которое
// OrderRepository.Remove выполняет без транзакции.
package cleanup

import (
	"context"
	"errors"
	"time"

	log "github.com/sirupsen/logrus"
)

const (
	defaultSweepInterval  = 10 * time.Minute
	defaultSweepBatchSize = 500
)

// OrphanPruner удаляет позиции, чей заказ уже удалён.
type OrphanPruner interface {
	PruneOrphans(ctx context.Context, limit int) (int, error)
}

// Observer получает результат каждого прохода очистки.
type Observer interface {
	ObserveCleanup(pruned int, err error)
}

// Options задаёт параметры OrphanWorker.
type Options struct {
	Logger    *log.Entry
	Interval  time.Duration
	BatchSize int
	Observer  Observer
}

// Option настраивает OrphanWorker.
type Option func(*Options)

// WithLogger задаёт logger воркера.
func WithLogger(logger *log.Entry) Option {
	return func(opts *Options) {
		opts.Logger = logger
	}
}

// WithInterval задаёт интервал между проходами.
func WithInterval(interval time.Duration) Option {
	return func(opts *Options) {
		opts.Interval = interval
	}
}

// WithBatchSize задаёт число удалений за один вызов PruneOrphans.
func WithBatchSize(batchSize int) Option {
	return func(opts *Options) {
		opts.BatchSize = batchSize
	}
}

// WithObserver подключает метрики очистки.
func WithObserver(observer Observer) Option {
	return func(opts *Options) {
		opts.Observer = observer
	}
}

// OrphanWorker периодически удаляет позиции без заказа.
type OrphanWorker struct {
	pruner    OrphanPruner
	logger    *log.Entry
	interval  time.Duration
	batchSize int
	observer  Observer
}

// NewOrphanWorker создаёт воркер очистки.
func NewOrphanWorker(pruner OrphanPruner, options ...Option) *OrphanWorker {
	opts := Options{
		Interval:  defaultSweepInterval,
		BatchSize: defaultSweepBatchSize,
	}
	for _, option := range options {
		if option != nil {
			option(&opts)
		}
	}

	logger := opts.Logger
	if logger == nil {
		logger = log.WithField("component", "orphan-worker")
	}
	if opts.Interval <= 0 {
		opts.Interval = defaultSweepInterval
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = defaultSweepBatchSize
	}

	return &OrphanWorker{
		pruner:    pruner,
		logger:    logger,
		interval:  opts.Interval,
		batchSize: opts.BatchSize,
		observer:  opts.Observer,
	}
}

// Run выполняет проход сразу и затем каждые interval до отмены ctx.
func (w *OrphanWorker) Run(ctx context.Context) {
	if w.pruner == nil {
		w.logger.Warn("orphan worker is disabled: pruner is nil")
		return
	}

	w.sweep(ctx)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.sweep(ctx)
		}
	}
}

func (w *OrphanWorker) sweep(ctx context.Context) {
	pruned, err := w.Sweep(ctx)
	if errors.Is(err, context.Canceled) {
		return
	}
	if w.observer != nil {
		w.observer.ObserveCleanup(pruned, err)
	}
	if err != nil {
		w.logger.WithError(err).WithField("pruned", pruned).Warn("orphan sweep failed")
		return
	}
	if pruned > 0 {
		w.logger.WithField("pruned", pruned).Info("orphan sweep completed")
	}
}

// Sweep удаляет все позиции без заказа порциями batchSize.
func (w *OrphanWorker) Sweep(ctx context.Context) (int, error) {
	total := 0
	for {
		if err := ctx.Err(); err != nil {
			return total, err
		}

		pruned, err := w.pruner.PruneOrphans(ctx, w.batchSize)
		total += pruned
		if err != nil {
			return total, err
		}
		if pruned < w.batchSize {
			return total, nil
		}
	}
}
