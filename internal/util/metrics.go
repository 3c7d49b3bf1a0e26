package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	CatalogPagesFetched = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "catalog_pages_fetched_total",
		Help: "Total number of catalog pages fetched",
	}, []string{"department"})

	CatalogFetchRetries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "catalog_fetch_retries_total",
		Help: "Total number of retried catalog requests",
	}, []string{"reason"})

	CatalogFetchLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "catalog_fetch_latency_seconds",
		Help:    "Latency of catalog page requests",
		Buckets: prometheus.DefBuckets,
	})

	ProductsFetchedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "products_fetched_total",
		Help: "Total number of products fetched from the catalog",
	})

	ProductsMatchedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "products_matched_total",
		Help: "Total number of products matched to an existing barcode",
	})

	ProductsCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "products_created_total",
		Help: "Total number of products created in the catalog store",
	})

	ProductsInvalidTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "products_invalid_total",
		Help: "Total number of products skipped as invalid",
	}, []string{"reason"})

	PriceObservationsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "price_observations_total",
		Help: "Total number of price observations recorded",
	})

	IngestionPassDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "ingestion_pass_duration_seconds",
		Help:    "Duration of full ingestion passes",
		Buckets: []float64{30, 60, 120, 300, 600, 1200, 1800, 3600},
	})

	IngestionPassesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ingestion_passes_total",
		Help: "Total number of ingestion passes",
	}, []string{"result"})

	EventsPublishFailed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "events_publish_failed_total",
		Help: "Total number of events that failed to publish",
	}, []string{"event_type"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})
)
