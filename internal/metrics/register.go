package metrics

import (
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// register регистрирует collector, а если коллектор с тем же описанием уже
// есть, возвращает существующий. Так повторная сборка зависимостей в одном
// процессе (тесты, утилиты) не паникует.
func register[T prometheus.Collector](registerer prometheus.Registerer, collector T) T {
	err := registerer.Register(collector)
	if err == nil {
		return collector
	}

	var already prometheus.AlreadyRegisteredError
	if !errors.As(err, &already) {
		panic(fmt.Sprintf("metrics: %v", err))
	}
	existing, ok := already.ExistingCollector.(T)
	if !ok {
		panic(fmt.Sprintf("metrics: collector registered with type %T", already.ExistingCollector))
	}
	return existing
}
