package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles the harvester's Prometheus collectors. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	Registry        *prometheus.Registry
	PagesTotal      prometheus.Counter
	PayloadsTotal   *prometheus.CounterVec
	RecordsTotal    *prometheus.CounterVec
	RunsTotal       *prometheus.CounterVec
	PageStatesTotal *prometheus.CounterVec
	TileClicksTotal *prometheus.CounterVec
	RunDuration     prometheus.Histogram
	ExportRowsTotal prometheus.Counter
}

func New() *Metrics {
	registry := prometheus.NewRegistry()

	pages := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "harvester_pages_total",
		Help: "Result pages navigated.",
	})
	payloads := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "harvester_payloads_total",
		Help: "Intercepted responses by endpoint kind.",
	}, []string{"kind"})
	records := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "harvester_records_total",
		Help: "Detail payloads by storage outcome.",
	}, []string{"outcome"})
	runs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "harvester_runs_total",
		Help: "Finished run attempts by error class.",
	}, []string{"class"})
	pageStates := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "harvester_page_states_total",
		Help: "Detector classifications by page state.",
	}, []string{"state"})
	clicks := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "harvester_tile_clicks_total",
		Help: "Result tile clicks by outcome.",
	}, []string{"outcome"})
	duration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "harvester_run_duration_seconds",
		Help:    "Wall time of one run attempt.",
		Buckets: []float64{10, 30, 60, 120, 300, 600, 1200, 2400},
	})
	exportRows := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "harvester_export_rows_total",
		Help: "Rows written by the variant export.",
	})

	registry.MustRegister(pages, payloads, records, runs, pageStates, clicks, duration, exportRows)

	return &Metrics{
		Registry:        registry,
		PagesTotal:      pages,
		PayloadsTotal:   payloads,
		RecordsTotal:    records,
		RunsTotal:       runs,
		PageStatesTotal: pageStates,
		TileClicksTotal: clicks,
		RunDuration:     duration,
		ExportRowsTotal: exportRows,
	}
}

func (m *Metrics) IncPage() {
	if m == nil {
		return
	}
	m.PagesTotal.Inc()
}

func (m *Metrics) IncPayload(kind string) {
	if m == nil {
		return
	}
	m.PayloadsTotal.WithLabelValues(kind).Inc()
}

// IncRecord counts a detail payload outcome: inserted, duplicate, mapping_gap, no_data or error.
func (m *Metrics) IncRecord(outcome string) {
	if m == nil {
		return
	}
	m.RecordsTotal.WithLabelValues(outcome).Inc()
}

func (m *Metrics) IncRun(class string) {
	if m == nil {
		return
	}
	if class == "" {
		class = "none"
	}
	m.RunsTotal.WithLabelValues(class).Inc()
}

func (m *Metrics) IncPageState(state string) {
	if m == nil {
		return
	}
	m.PageStatesTotal.WithLabelValues(state).Inc()
}

func (m *Metrics) IncTileClick(outcome string) {
	if m == nil {
		return
	}
	m.TileClicksTotal.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveRun(d time.Duration) {
	if m == nil {
		return
	}
	m.RunDuration.Observe(d.Seconds())
}

func (m *Metrics) AddExportRows(n int) {
	if m == nil {
		return
	}
	m.ExportRowsTotal.Add(float64(n))
}
