package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"
)

type latencyMs struct {
	Mean float64 `json:"mean"`
	P50  float64 `json:"p50"`
	P95  float64 `json:"p95"`
	P99  float64 `json:"p99"`
}

type stepReport struct {
	Calls     uint64            `json:"calls"`
	Failed    uint64            `json:"failed"`
	ErrorRate float64           `json:"error_rate"`
	Statuses  map[string]uint64 `json:"statuses"`
	LatencyMs latencyMs         `json:"latency_ms"`
}

type report struct {
	StartedAt       time.Time             `json:"started_at"`
	DurationSeconds float64               `json:"duration_seconds"`
	RPS             float64               `json:"scenarios_per_second"`
	Scenarios       stepReport            `json:"scenarios"`
	Steps           map[string]stepReport `json:"steps"`
}

// writeJSONReport пишет отчёт только внутрь рабочего каталога.
func writeJSONReport(path string, r report) error {
	clean := filepath.Clean(path)
	switch {
	case clean == "." || clean == string(filepath.Separator):
		return fmt.Errorf("report path %q is not a file", path)
	case !filepath.IsLocal(clean):
		return fmt.Errorf("report path %q escapes working directory", path)
	}

	raw, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	return os.WriteFile(clean, append(raw, '\n'), 0o644)
}

func printReport(w io.Writer, r report, cfg config) {
	s := r.Scenarios
	fmt.Fprintf(w, "mode=%s run=%s scenarios=%d ok=%d failed=%d error_rate=%.2f%% elapsed=%.2fs rate=%.1f/s\n",
		cfg.mode, cfg.target(), s.Calls, s.Calls-s.Failed, s.Failed, s.ErrorRate*100, r.DurationSeconds, r.RPS)
	fmt.Fprintf(w, "scenario latency ms: mean=%.2f p50=%.2f p95=%.2f p99=%.2f\n",
		s.LatencyMs.Mean, s.LatencyMs.P50, s.LatencyMs.P95, s.LatencyMs.P99)

	names := make([]string, 0, len(r.Steps))
	for name := range r.Steps {
		names = append(names, name)
	}
	slices.Sort(names)

	for _, name := range names {
		step := r.Steps[name]
		fmt.Fprintf(w, "  %s: calls=%d failed=%d p50=%.2fms p99=%.2fms statuses=%s\n",
			name, step.Calls, step.Failed, step.LatencyMs.P50, step.LatencyMs.P99, formatStatuses(step.Statuses))
	}
}

func formatStatuses(statuses map[string]uint64) string {
	keys := make([]string, 0, len(statuses))
	for k := range statuses {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s:%d", k, statuses[k])
	}
	return strings.Join(parts, ",")
}
