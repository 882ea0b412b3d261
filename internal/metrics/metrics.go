package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ============================================
	// Indexer read path
	// ============================================
	IndexerAvailable = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "multisig_indexer_available",
		Help: "Indexer availability flag (1=available, 0=unavailable)",
	})

	IndexerBlocksBehind = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "multisig_indexer_blocks_behind",
		Help: "Sync lag reported by the indexer health endpoint",
	})

	IndexerFallbacks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "multisig_indexer_fallbacks_total",
			Help: "Reads that fell back from the indexer to the chain",
		},
		[]string{"read"},
	)

	IndexerReads = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "multisig_indexer_reads_total",
			Help: "Reads answered by the indexer",
		},
		[]string{"read"},
	)

	HealthProbes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "multisig_indexer_health_probes_total",
			Help: "Indexer health probes by outcome",
		},
		[]string{"outcome"},
	)

	// ============================================
	// Chain gateway
	// ============================================
	ChainCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "multisig_chain_call_duration_seconds",
			Help:    "Duration of authoritative RPC calls",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method"},
	)

	ChainWrites = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "multisig_chain_writes_total",
			Help: "Write calls submitted to the chain by outcome",
		},
		[]string{"method", "outcome"},
	)

	// ============================================
	// Consistency verification
	// ============================================
	VerificationMismatches = promauto.NewCounter(prometheus.CounterOpts{
		Name: "multisig_verification_mismatches_total",
		Help: "Indexer records that disagreed with chain truth",
	})

	// ============================================
	// Address mining
	// ============================================
	MiningAttempts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "multisig_mining_attempts_total",
		Help: "CREATE2 salts tried across all mining jobs",
	})

	MiningJobs = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "multisig_mining_jobs_total",
			Help: "Mining jobs by terminal outcome",
		},
		[]string{"outcome"},
	)

	// ============================================
	// Event bus
	// ============================================
	NATSConnectionStatus = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "multisig_nats_connection_status",
		Help: "NATS connection status (1=connected, 0=disconnected)",
	})

	EventsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "multisig_events_published_total",
			Help: "Lifecycle events published to NATS",
		},
		[]string{"event_type"},
	)
)
