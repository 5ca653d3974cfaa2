package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "newhome"

// Metrics holds the Prometheus collectors for harvesting and the read API.
type Metrics struct {
	Registry *prometheus.Registry

	CyclesTotal      *prometheus.CounterVec // by outcome
	CycleDuration    prometheus.Histogram
	ExtractorResults *prometheus.CounterVec // by extractor, result
	RecordsHarvested *prometheus.CounterVec // by extractor
	ListingsCreated  prometheus.Counter
	ListingsUpdated  prometheus.Counter
	PriceChanges     prometheus.Counter
	MalformedRecords prometheus.Counter

	HTTPRequests *prometheus.CounterVec   // by route, status
	HTTPLatency  *prometheus.HistogramVec // by route
}

// New registers every collector on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		CyclesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "harvest_cycles_total",
			Help: "Harvest cycles run, by outcome.",
		}, []string{"outcome"}),
		CycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Name: "harvest_cycle_duration_seconds",
			Help:    "Wall time of a full harvest cycle.",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1200},
		}),
		ExtractorResults: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "extractor_runs_total",
			Help: "Extractor invocations, by extractor and result (ok, empty, panic, store_error).",
		}, []string{"extractor", "result"}),
		RecordsHarvested: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "records_harvested_total",
			Help: "Normalized records returned by extractors.",
		}, []string{"extractor"}),
		ListingsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "listings_created_total",
			Help: "Listings inserted on first observation.",
		}),
		ListingsUpdated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "listings_updated_total",
			Help: "Existing listings whose stored fields changed.",
		}),
		PriceChanges: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "price_changes_total",
			Help: "Price history entries journaled.",
		}),
		MalformedRecords: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "malformed_records_total",
			Help: "Records skipped for a missing or invalid identity field.",
		}),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "http_requests_total",
			Help: "API requests, by route and status code.",
		}, []string{"route", "status"}),
		HTTPLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Name: "http_request_duration_seconds",
			Help:    "API request latency, by route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
	}

	m.Registry.MustRegister(
		m.CyclesTotal,
		m.CycleDuration,
		m.ExtractorResults,
		m.RecordsHarvested,
		m.ListingsCreated,
		m.ListingsUpdated,
		m.PriceChanges,
		m.MalformedRecords,
		m.HTTPRequests,
		m.HTTPLatency,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Handler exposes the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}

// ObserveExtractor records one extractor invocation. Safe on a nil receiver.
func (m *Metrics) ObserveExtractor(extractor, result string, records int) {
	if m == nil {
		return
	}
	m.ExtractorResults.WithLabelValues(extractor, result).Inc()
	if records > 0 {
		m.RecordsHarvested.WithLabelValues(extractor).Add(float64(records))
	}
}

// ObserveCycle records the outcome of a finished harvest cycle.
func (m *Metrics) ObserveCycle(outcome string, d time.Duration, created, updated, priceChanges, malformed int) {
	if m == nil {
		return
	}
	m.CyclesTotal.WithLabelValues(outcome).Inc()
	m.CycleDuration.Observe(d.Seconds())
	m.ListingsCreated.Add(float64(created))
	m.ListingsUpdated.Add(float64(updated))
	m.PriceChanges.Add(float64(priceChanges))
	m.MalformedRecords.Add(float64(malformed))
}

// ObserveRequest records one API request.
func (m *Metrics) ObserveRequest(route string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequests.WithLabelValues(route, strconv.Itoa(status)).Inc()
	m.HTTPLatency.WithLabelValues(route).Observe(d.Seconds())
}
