package engine

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metric names.
const (
	MetricFilterMutationsTotal = "farmviz_filter_mutations_total"
	MetricRecomputeDuration    = "farmviz_recompute_duration_seconds"
	MetricIngestSkippedTotal   = "farmviz_ingest_skipped_records_total"
	MetricFilteredFarms        = "farmviz_filtered_farms"
)

// Entry point labels.
const (
	EntryToggleAreaBucket = "toggle_area_bucket"
	EntryToggleUserCount  = "toggle_user_count"
	EntrySelectFarm       = "select_farm"
	EntryDeselectFarm     = "deselect_farm"
	EntrySetDrill         = "set_certification_drill"
)

// Metrics counts filter mutations, recomputations and skipped records.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	mutations     *prometheus.CounterVec
	recompute     prometheus.Histogram
	skipped       *prometheus.CounterVec
	filteredFarms prometheus.Gauge
}

// NewMetrics creates the collectors without registering them.
func NewMetrics() *Metrics {
	return &Metrics{
		mutations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricFilterMutationsTotal,
				Help: "Total number of filter mutations by entry point",
			},
			[]string{"entry_point"},
		),
		recompute: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    MetricRecomputeDuration,
				Help:    "Histogram of filtered farm set recomputation time in seconds",
				Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
			},
		),
		skipped: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricIngestSkippedTotal,
				Help: "Total number of raw records left out during ingest by collection and reason",
			},
			[]string{"collection", "reason"},
		),
		filteredFarms: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: MetricFilteredFarms,
				Help: "Size of the most recently recomputed filtered farm set",
			},
		),
	}
}

// Register registers all collectors with reg.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	for _, c := range m.Collectors() {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

func (m *Metrics) Collectors() []prometheus.Collector {
	return []prometheus.Collector{m.mutations, m.recompute, m.skipped, m.filteredFarms}
}

func (m *Metrics) incMutation(entry string) {
	if m == nil {
		return
	}
	m.mutations.WithLabelValues(entry).Inc()
}

func (m *Metrics) observeRecompute(seconds float64, size int) {
	if m == nil {
		return
	}
	m.recompute.Observe(seconds)
	m.filteredFarms.Set(float64(size))
}

// RecordSkipped counts every record in report by collection and reason.
func (m *Metrics) RecordSkipped(report *LoadReport) {
	if m == nil || report == nil {
		return
	}
	for _, e := range report.Skipped {
		m.skipped.WithLabelValues(e.Collection, reason(e)).Inc()
	}
}
