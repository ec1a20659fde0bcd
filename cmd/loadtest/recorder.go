package main

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

const (
	stepScenario = "scenario"

	statusOK             = "ok"
	statusFailed         = "failed"
	statusTransportError = "transport_error"

	callsMetric   = "loadtest_calls_total"
	latencyMetric = "loadtest_latency_seconds"
)

// recorder копит результаты вызовов в собственном prometheus.Registry,
// отчёт строится из Gather.
type recorder struct {
	registry *prometheus.Registry
	calls    *prometheus.CounterVec
	latency  *prometheus.SummaryVec
}

func newRecorder() *recorder {
	r := &recorder{
		registry: prometheus.NewRegistry(),
		calls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: callsMetric,
			Help: "Calls by step and outcome",
		}, []string{"step", "status"}),
		latency: prometheus.NewSummaryVec(prometheus.SummaryOpts{
			Name:       latencyMetric,
			Help:       "Call latency by step",
			Objectives: map[float64]float64{0.5: 0.01, 0.95: 0.005, 0.99: 0.001},
			// прогон не должен терять наблюдения из окна квантилей
			MaxAge:     24 * time.Hour,
			AgeBuckets: 1,
		}, []string{"step"}),
	}
	r.registry.MustRegister(r.calls, r.latency)
	return r
}

// observe фиксирует один вызов. status это HTTP-код, 0 означает ошибку
// транспорта.
func (r *recorder) observe(step string, status int, elapsed time.Duration) {
	label := statusTransportError
	if status != 0 {
		label = strconv.Itoa(status)
	}
	r.observeLabel(step, label, elapsed)
}

func (r *recorder) observeLabel(step, status string, elapsed time.Duration) {
	r.calls.WithLabelValues(step, status).Inc()
	r.latency.WithLabelValues(step).Observe(elapsed.Seconds())
}

func (r *recorder) report(startedAt time.Time, elapsed time.Duration) (report, error) {
	families, err := r.registry.Gather()
	if err != nil {
		return report{}, err
	}

	steps := map[string]*stepReport{}
	step := func(name string) *stepReport {
		if steps[name] == nil {
			steps[name] = &stepReport{Statuses: map[string]uint64{}}
		}
		return steps[name]
	}

	for _, family := range families {
		for _, m := range family.GetMetric() {
			labels := labelMap(m)
			switch family.GetName() {
			case callsMetric:
				s := step(labels["step"])
				n := uint64(m.GetCounter().GetValue())
				s.Calls += n
				s.Statuses[labels["status"]] += n
				if !succeeded(labels["status"]) {
					s.Failed += n
				}
			case latencyMetric:
				step(labels["step"]).LatencyMs = latencyFromSummary(m.GetSummary())
			}
		}
	}

	out := report{
		StartedAt:       startedAt.UTC(),
		DurationSeconds: elapsed.Seconds(),
		Steps:           make(map[string]stepReport, len(steps)),
	}
	for name, s := range steps {
		s.ErrorRate = ratio(s.Failed, s.Calls)
		if name == stepScenario {
			out.Scenarios = *s
			continue
		}
		out.Steps[name] = *s
	}
	if elapsed > 0 {
		out.RPS = float64(out.Scenarios.Calls) / elapsed.Seconds()
	}
	return out, nil
}

func labelMap(m *dto.Metric) map[string]string {
	labels := make(map[string]string, len(m.GetLabel()))
	for _, pair := range m.GetLabel() {
		labels[pair.GetName()] = pair.GetValue()
	}
	return labels
}

func latencyFromSummary(s *dto.Summary) latencyMs {
	if s.GetSampleCount() == 0 {
		return latencyMs{}
	}
	toMs := func(seconds float64) float64 {
		if math.IsNaN(seconds) {
			return 0
		}
		return seconds * 1000
	}

	out := latencyMs{Mean: toMs(s.GetSampleSum() / float64(s.GetSampleCount()))}
	for _, q := range s.GetQuantile() {
		switch q.GetQuantile() {
		case 0.5:
			out.P50 = toMs(q.GetValue())
		case 0.95:
			out.P95 = toMs(q.GetValue())
		case 0.99:
			out.P99 = toMs(q.GetValue())
		}
	}
	return out
}

func succeeded(status string) bool {
	return status == statusOK || strings.HasPrefix(status, "2")
}

func ratio(part, total uint64) float64 {
	if total == 0 {
		return 0
	}
	return float64(part) / float64(total)
}
