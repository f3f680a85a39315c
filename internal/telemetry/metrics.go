/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package telemetry

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "infoscreen"

// HTTP API metrics
var (
	APIRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "api_request_duration_seconds",
			Help:      "API request latency",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "endpoint", "status"},
	)
	APIRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "api_requests_total", Help: "API requests served"},
		[]string{"method", "endpoint", "status"},
	)
	APIActiveConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{Namespace: namespace, Name: "api_active_connections", Help: "In-flight API requests"},
	)
	APIWebSocketConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{Namespace: namespace, Name: "api_websocket_connections", Help: "Open event stream connections"},
	)
)

// Database metrics
var (
	DatabaseQueryDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "db_query_duration_seconds",
			Help:      "Database operation latency",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		},
		[]string{"operation", "table"},
	)
	DatabaseErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "db_errors_total", Help: "Database operation errors"},
		[]string{"operation", "kind"},
	)
	DatabaseConnectionsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{Namespace: namespace, Name: "db_connections_active", Help: "Open database connections"},
	)
	DatabaseConnectionsIdle = prometheus.NewGauge(
		prometheus.GaugeOpts{Namespace: namespace, Name: "db_connections_idle", Help: "Idle database connections"},
	)
)

// Playlist metrics
var (
	PlaylistBuildsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "playlist_builds_total", Help: "Playlist builds by result"},
		[]string{"result"},
	)
	PlaylistExpansionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "playlist_expansions_total", Help: "Stream expansion attempts by stream and outcome"},
		[]string{"stream", "outcome"},
	)
	PlaylistSlides = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{Namespace: namespace, Name: "playlist_slides", Help: "Slides in the last published playlist"},
		[]string{"infoscreen"},
	)
	PublishDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "publish_duration_seconds",
			Help:      "Time to load, build and store one playlist",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5},
		},
	)
	PublishErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "publish_errors_total", Help: "Failed publications by stage"},
		[]string{"stage"},
	)
)

// Leader election metrics
var (
	LeaderElectionStatus = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{Namespace: namespace, Name: "leader_election_status", Help: "1 while this instance runs the publisher loop"},
		[]string{"instance"},
	)
	LeaderElectionChanges = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "leader_election_changes_total", Help: "Leadership transitions"},
		[]string{"instance", "change"},
	)
)

var registerOnce sync.Once

// RegisterMetrics registers all collectors with the default registry.
func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			APIRequestDuration, APIRequestsTotal, APIActiveConnections, APIWebSocketConnections,
			DatabaseQueryDuration, DatabaseErrorsTotal, DatabaseConnectionsActive, DatabaseConnectionsIdle,
			PlaylistBuildsTotal, PlaylistExpansionsTotal, PlaylistSlides, PublishDuration, PublishErrorsTotal,
			LeaderElectionStatus, LeaderElectionChanges,
		)
	})
}

// Handler exposes the metrics endpoint.
func Handler() http.Handler {
	RegisterMetrics()
	return promhttp.Handler()
}
