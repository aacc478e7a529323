// Package observability holds the client's Prometheus collectors.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// API metrics
	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "edumarket_api_request_duration_seconds",
			Help:    "Backend API request latency in seconds",
			Buckets: []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "status"},
	)

	TokenRefreshes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "edumarket_token_refreshes_total",
			Help: "Token refresh attempts by result (ok, unauthorized, unavailable)",
		},
		[]string{"result"},
	)

	// Storage metrics
	StorageUsageRatio = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "edumarket_storage_usage_ratio",
			Help: "Used fraction of the local storage quota",
		},
	)

	StorageHealthChecks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "edumarket_storage_health_checks_total",
			Help: "Storage health check passes by result",
		},
		[]string{"result"},
	)

	StorageCleanups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "edumarket_storage_cleanups_total",
			Help: "Storage evictions by trigger",
		},
		[]string{"trigger"},
	)

	// Cart metrics
	CartSyncs = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "edumarket_cart_syncs_total",
			Help: "Cart count synchronisations by result",
		},
		[]string{"result"},
	)
)
