package report

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/ppiankov/awsinventory/internal/analyzer"
)

const metricsNamespace = "awsinventory"

// RunStats describes a finished run for the metrics textfile.
type RunStats struct {
	RunID    string
	Version  string
	Scopes   int
	Skipped  int
	Failures int
	Duration time.Duration
	Finished time.Time
}

// WriteMetrics writes per-kind totals and run health in the Prometheus
// text format, for the node_exporter textfile collector.
func WriteMetrics(path string, stats RunStats, rows []analyzer.SummaryRow) error {
	reg := prometheus.NewRegistry()

	resources := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: metricsNamespace,
		Name:      "resources",
		Help:      "Resources inventoried across all scopes, by type.",
	}, []string{"type"})
	sizeGiB := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: metricsNamespace,
		Name:      "size_gibibytes",
		Help:      "Provisioned or stored size in GiB across all scopes, by type.",
	}, []string{"type"})
	scopes := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: metricsNamespace,
		Name:      "scopes",
		Help:      "Scopes by outcome.",
	}, []string{"outcome"})
	failures := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: metricsNamespace,
		Name:      "enumeration_failures",
		Help:      "Region and type calls that failed and were counted as zero.",
	})
	duration := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: metricsNamespace,
		Name:      "run_duration_seconds",
		Help:      "Wall time of the run.",
	})
	finished := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: metricsNamespace,
		Name:      "last_run_timestamp_seconds",
		Help:      "Unix time the run finished.",
	})
	info := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: metricsNamespace,
		Name:      "run_info",
		Help:      "Identity of the run.",
	}, []string{"run_id", "version"})

	reg.MustRegister(resources, sizeGiB, scopes, failures, duration, finished, info)

	for _, r := range analyzer.KindTotals(rows) {
		resources.WithLabelValues(r.Kind).Set(float64(r.Count))
		sizeGiB.WithLabelValues(r.Kind).Set(r.GiB)
	}
	scopes.WithLabelValues("collected").Set(float64(stats.Scopes))
	scopes.WithLabelValues("skipped").Set(float64(stats.Skipped))
	failures.Set(float64(stats.Failures))
	duration.Set(stats.Duration.Seconds())
	if !stats.Finished.IsZero() {
		finished.Set(float64(stats.Finished.Unix()))
	}
	info.WithLabelValues(stats.RunID, stats.Version).Set(1)

	if err := prometheus.WriteToTextfile(path, reg); err != nil {
		return fmt.Errorf("write metrics: %w", err)
	}
	return nil
}
