// Package health отдаёт /healthz, /livez и /readyz. Обязательные проверки
// (хранилище) переводят сервис в unhealthy, необязательные (Redis, Kafka)
// только в degraded.
package health

import (
	"context"
	"encoding/json"
	"io"
	"maps"
	"net/http"
	"sync"
	"time"
)

const defaultCheckTimeout = 2 * time.Second

// Status компонента или сервиса в целом.
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusUnhealthy Status = "unhealthy"
	StatusDegraded  Status = "degraded"
)

// Check это результат проверки одного компонента.
type Check struct {
	Name       string `json:"name"`
	Status     Status `json:"status"`
	Optional   bool   `json:"optional,omitempty"`
	Message    string `json:"message,omitempty"`
	DurationMs int64  `json:"duration_ms"`
}

// Response это тело ответа /healthz.
type Response struct {
	Status        Status           `json:"status"`
	Timestamp     time.Time        `json:"timestamp"`
	Checks        map[string]Check `json:"checks,omitempty"`
	Version       string           `json:"version,omitempty"`
	UptimeSeconds int64            `json:"uptime_seconds"`
}

// Pinger это всё, что умеет проверить доступность: gateway хранилища, Redis.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingFunc адаптирует функцию к Pinger.
type PingFunc func(ctx context.Context) error

func (f PingFunc) Ping(ctx context.Context) error { return f(ctx) }

type registration struct {
	pinger   Pinger
	optional bool
}

// Handler выполняет зарегистрированные проверки на каждый запрос.
type Handler struct {
	mu        sync.RWMutex
	checks    map[string]registration
	version   string
	timeout   time.Duration
	startTime time.Time
}

// NewHandler создаёт handler; version попадает в ответ /healthz.
func NewHandler(version string) *Handler {
	return &Handler{
		checks:    make(map[string]registration),
		version:   version,
		timeout:   defaultCheckTimeout,
		startTime: time.Now(),
	}
}

// SetTimeout ограничивает длительность одной проверки.
func (h *Handler) SetTimeout(timeout time.Duration) {
	if timeout <= 0 {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.timeout = timeout
}

// Register добавляет обязательную проверку.
func (h *Handler) Register(name string, pinger Pinger) {
	h.register(name, pinger, false)
}

// RegisterOptional добавляет проверку, сбой которой даёт только degraded.
func (h *Handler) RegisterOptional(name string, pinger Pinger) {
	h.register(name, pinger, true)
}

func (h *Handler) register(name string, pinger Pinger, optional bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.checks[name] = registration{pinger: pinger, optional: optional}
}

// Run опрашивает все зарегистрированные компоненты параллельно и
// сводит их результаты в общий статус.
func (h *Handler) Run(ctx context.Context) (Status, map[string]Check) {
	h.mu.RLock()
	regs := maps.Clone(h.checks)
	timeout := h.timeout
	h.mu.RUnlock()

	var (
		mu      sync.Mutex
		wg      sync.WaitGroup
		results = make(map[string]Check, len(regs))
	)
	for name, reg := range regs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			check := probe(ctx, name, reg, timeout)
			mu.Lock()
			results[name] = check
			mu.Unlock()
		}()
	}
	wg.Wait()

	return overallStatus(results), results
}

// overallStatus: любой упавший обязательный компонент даёт unhealthy,
// упавший необязательный только degraded.
func overallStatus(results map[string]Check) Status {
	status := StatusHealthy
	for _, check := range results {
		if check.Status == StatusHealthy {
			continue
		}
		if !check.Optional {
			return StatusUnhealthy
		}
		status = StatusDegraded
	}
	return status
}

func probe(ctx context.Context, name string, reg registration, timeout time.Duration) Check {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	started := time.Now()
	err := reg.pinger.Ping(ctx)

	check := Check{Name: name, Status: StatusHealthy, Optional: reg.optional}
	if err != nil {
		check.Status, check.Message = StatusUnhealthy, err.Error()
	}
	check.DurationMs = time.Since(started).Milliseconds()
	return check
}

// ServeHTTP отдаёт подробный JSON; 503 только при unhealthy.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	status, checks := h.Run(r.Context())

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(httpStatus(status))
	_ = json.NewEncoder(w).Encode(Response{
		Status:        status,
		Timestamp:     time.Now().UTC(),
		Checks:        checks,
		Version:       h.version,
		UptimeSeconds: int64(time.Since(h.startTime).Seconds()),
	})
}

// LivenessHandler всегда отвечает 200, пока процесс обслуживает запросы.
func LivenessHandler(w http.ResponseWriter, _ *http.Request) {
	writeText(w, http.StatusOK, "ok")
}

// ReadinessHandler отвечает 503, если не прошла хотя бы одна обязательная проверка.
func (h *Handler) ReadinessHandler(w http.ResponseWriter, r *http.Request) {
	status, _ := h.Run(r.Context())
	if code := httpStatus(status); code != http.StatusOK {
		writeText(w, code, "not ready")
		return
	}
	writeText(w, http.StatusOK, "ready")
}

func httpStatus(status Status) int {
	if status == StatusUnhealthy {
		return http.StatusServiceUnavailable
	}
	return http.StatusOK
}

func writeText(w http.ResponseWriter, code int, body string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(code)
	_, _ = io.WriteString(w, body)
}
