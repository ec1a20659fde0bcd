// Package metrics содержит Prometheus-метрики сервиса групповых заказов.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Значения лейбла result.
const (
	ResultOK    = "ok"
	ResultError = "error"
)

const namespace = "ehn"

// Metrics объединяет метрики HTTP-слоя, хранилища, рассылки и очистки.
// Методы безопасны для nil-получателя: метрики можно не подключать.
type Metrics struct {
	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec

	storeOps *prometheus.HistogramVec

	broadcasts *prometheus.CounterVec
	observers  prometheus.Gauge

	orphansPruned prometheus.Counter
	cleanupRuns   *prometheus.CounterVec
}

// New регистрирует метрики в DefaultRegisterer.
func New() *Metrics {
	return NewWithRegisterer(prometheus.DefaultRegisterer)
}

// NewWithRegisterer регистрирует метрики в переданном registerer.
func NewWithRegisterer(registerer prometheus.Registerer) *Metrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	return &Metrics{
		httpRequests: register(registerer, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "http", Name: "requests_total",
			Help: "Total number of HTTP requests by route and status",
		}, []string{"method", "route", "status"})),
		httpDuration: register(registerer, prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "http", Name: "request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"})),
		storeOps: register(registerer, prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "store", Name: "operation_duration_seconds",
			Help:    "Duration of document store operations in seconds",
			Buckets: prometheus.ExponentialBucketsRange(0.001, 5, 11),
		}, []string{"op", "result"})),
		broadcasts: register(registerer, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "broadcasts_total",
			Help: "Order events delivered to fan-out hooks",
		}, []string{"hook", "event", "result"})),
		observers: register(registerer, prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "connected_observers",
			Help: "Number of currently connected event observers",
		})),
		orphansPruned: register(registerer, prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "orphan", Name: "items_pruned_total",
			Help: "Items removed because their order no longer exists",
		})),
		cleanupRuns: register(registerer, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "orphan", Name: "cleanup_runs_total",
			Help: "Orphan cleanup iterations by result",
		}, []string{"result"})),
	}
}

// ObserveHTTPRequest фиксирует завершённый HTTP-запрос.
func (m *Metrics) ObserveHTTPRequest(method, route string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

// ObserveStoreOp фиксирует длительность операции хранилища.
func (m *Metrics) ObserveStoreOp(op string, err error, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.storeOps.WithLabelValues(op, result(err)).Observe(elapsed.Seconds())
}

// ObserveBroadcast фиксирует доставку события одному hook.
func (m *Metrics) ObserveBroadcast(hook, event string, err error) {
	if m == nil {
		return
	}
	m.broadcasts.WithLabelValues(hook, event, result(err)).Inc()
}

// ObserverConnected увеличивает число подключённых наблюдателей.
func (m *Metrics) ObserverConnected() {
	if m == nil {
		return
	}
	m.observers.Inc()
}

// ObserverDisconnected уменьшает число подключённых наблюдателей.
func (m *Metrics) ObserverDisconnected() {
	if m == nil {
		return
	}
	m.observers.Dec()
}

// ObserveCleanup фиксирует итерацию очистки осиротевших позиций.
func (m *Metrics) ObserveCleanup(pruned int, err error) {
	if m == nil {
		return
	}
	m.cleanupRuns.WithLabelValues(result(err)).Inc()
	if pruned > 0 {
		m.orphansPruned.Add(float64(pruned))
	}
}

func result(err error) string {
	if err != nil {
		return ResultError
	}
	return ResultOK
}
