package ordering

import (
	"context"
	"time"

	"github.com/ejjahanieklu/ehn/internal/docstore"
	"github.com/ejjahanieklu/ehn/internal/domain"
)

// scopedStore выполняет логические операции репозиториев: одно подключение
// на вызов, таймаут, метрики и перевод сбоев хранилища в StorageError.
type scopedStore struct {
	gateway docstore.Gateway
	opts    Options
}

func (s scopedStore) run(ctx context.Context, op string, fn docstore.Operation) error {
	opCtx, cancel := docstore.WithOpTimeout(ctx, s.opts.OpTimeout)
	defer cancel()

	start := time.Now()
	err := s.gateway.WithConnection(opCtx, fn)
	if s.opts.Observer != nil {
		s.opts.Observer.ObserveStoreOp(op, err, time.Since(start))
	}

	if err == nil || domain.IsClientFault(err) {
		return err
	}
	s.opts.Logger.WithError(err).WithField("op", op).Error("document store operation failed")
	return domain.NewStorageError(op, err)
}
