package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// FetchAttempts counts every outbound network attempt, retries included
	FetchAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "livesync_fetch_attempts_total",
			Help: "Total number of outbound fetch attempts",
		},
		[]string{"host"},
	)

	// FetchOutcomes counts terminal fetch results by kind
	FetchOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "livesync_fetch_outcomes_total",
			Help: "Terminal fetch outcomes (success, transient, permanent, validation)",
		},
		[]string{"host", "outcome"},
	)

	// FetchBackoff tracks the delays slept between attempts
	FetchBackoff = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "livesync_fetch_backoff_seconds",
			Help:    "Backoff delay before a retry attempt",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"host"},
	)

	// FetchLatency tracks single attempt latency
	FetchLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "livesync_fetch_latency_seconds",
			Help:    "Outbound fetch attempt latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"host"},
	)

	// PageLoads counts page requests issued by list controllers
	PageLoads = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "livesync_list_page_loads_total",
			Help: "Page loads by query and result",
		},
		[]string{"query", "result"},
	)

	// LiveEvents counts live updates delivered to list controllers
	LiveEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "livesync_list_live_events_total",
			Help: "Live change events by query, kind and whether they changed the view",
		},
		[]string{"query", "kind", "applied"},
	)

	// OpenLists tracks currently open list controllers
	OpenLists = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "livesync_open_lists",
			Help: "Number of open list controllers",
		},
		[]string{"query"},
	)

	// DBConnectionPoolUsage tracks in-use connections as a percentage of the pool
	DBConnectionPoolUsage = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "livesync_db_connection_pool_usage",
			Help: "Database connection pool usage percentage",
		},
	)

	// DBPoolConnections tracks pool connections by state
	DBPoolConnections = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "livesync_db_pool_connections",
			Help: "Database pool connections by state",
		},
		[]string{"state"},
	)

	// DBPoolWaits tracks how many times a caller waited for a free connection
	DBPoolWaits = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "livesync_db_pool_waits",
			Help: "Total waits for a free database connection",
		},
	)

	// DBQueryDuration tracks repository query latency
	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "livesync_db_query_duration_seconds",
			Help:    "Database query duration by operation",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"op"},
	)
)
