// Package metrics exposes Prometheus collectors for the scraper service.
package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcome labels recorded per scrape.
const (
	OutcomeLive   = "live"
	OutcomeMock   = "mock"
	OutcomeClient = "client_error"
	OutcomeError  = "error"
)

var (
	scrapesTotal           *prometheus.CounterVec
	scrapeDurationSeconds  *prometheus.HistogramVec
	opportunitiesExtracted prometheus.Counter
	persistenceErrorsTotal *prometheus.CounterVec

	once sync.Once
)

// Init initializes the Prometheus collectors. Safe to call multiple times.
func Init() {
	once.Do(func() {
		scrapesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scraper_scrapes_total",
				Help: "Total number of scrape invocations, labeled by outcome.",
			},
			[]string{"outcome"},
		)
		scrapeDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "scraper_scrape_duration_seconds",
				Help:    "End-to-end scrape latency, labeled by outcome.",
				Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
			},
			[]string{"outcome"},
		)
		opportunitiesExtracted = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "scraper_opportunities_extracted_total",
				Help: "Total number of opportunity records extracted.",
			},
		)
		persistenceErrorsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scraper_persistence_errors_total",
				Help: "Persistence failures that were logged and skipped, by kind.",
			},
			[]string{"kind"},
		)
	})
}

// ObserveScrape records one scrape invocation.
func ObserveScrape(outcome string, duration time.Duration) {
	if scrapesTotal == nil {
		return
	}
	scrapesTotal.WithLabelValues(outcome).Inc()
	scrapeDurationSeconds.WithLabelValues(outcome).Observe(duration.Seconds())
}

// AddOpportunitiesExtracted adds to the extraction counter.
func AddOpportunitiesExtracted(n int) {
	if opportunitiesExtracted == nil || n <= 0 {
		return
	}
	opportunitiesExtracted.Add(float64(n))
}

// IncPersistenceError counts a skipped persistence failure.
func IncPersistenceError(kind string) {
	if persistenceErrorsTotal == nil {
		return
	}
	persistenceErrorsTotal.WithLabelValues(kind).Inc()
}

// Handler returns the HTTP handler serving the metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
