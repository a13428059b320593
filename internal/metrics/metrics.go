package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	Registry = prometheus.NewRegistry()

	FilingsProcessed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "insider_filings_processed_total",
			Help: "Form 4 documents run through the parse supervisor",
		},
		[]string{"result"}, // parsed | error
	)

	FilingsPersisted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "insider_filings_persisted_total",
			Help: "Filing writes by outcome",
		},
		[]string{"outcome"}, // inserted | existing | failed
	)

	PagesFetched = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "insider_pages_fetched_total",
			Help: "Pages pulled from paginated upstream APIs",
		},
		[]string{"source"},
	)

	InsiderUpdates = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "insider_metric_updates_total",
			Help: "Priced outcomes applied to insider stats",
		},
		[]string{"outcome"}, // updated | skipped | failed
	)

	RunDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "insider_run_duration_seconds",
			Help:    "Wall time of ingest and enrich runs",
			Buckets: []float64{1, 5, 15, 60, 300, 900, 3600},
		},
		[]string{"job"},
	)
)

var once sync.Once

func Init() {
	once.Do(func() {
		Registry.MustRegister(FilingsProcessed, FilingsPersisted, PagesFetched, InsiderUpdates, RunDuration)
	})
}

func Handler() http.Handler {
	Init()
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// WriteTextfile dumps the registry for a node_exporter textfile collector.
func WriteTextfile(path string) error {
	if path == "" {
		return nil
	}
	Init()
	return prometheus.WriteToTextfile(path, Registry)
}

// PageCounter returns a paginate hook that counts pages for source.
func PageCounter(source string) func(page, items int) {
	return func(int, int) {
		PagesFetched.WithLabelValues(source).Inc()
	}
}
