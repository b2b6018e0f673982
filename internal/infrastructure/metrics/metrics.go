package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// Matching metrics
	StatementsProcessed *prometheus.CounterVec
	RowsMatched         prometheus.Counter
	RowsUnmatched       *prometheus.CounterVec
	AllocationWarnings  prometheus.Counter
	MatchDuration       prometheus.Histogram

	// Aggregation metrics
	MergeDuration       *prometheus.HistogramVec
	SellerStatements    *prometheus.GaugeVec
	DuplicateAggregates prometheus.Counter
	RegenerateExcluded  prometheus.Counter

	// Dispute metrics
	DisputesDetected *prometheus.CounterVec

	// Persistence metrics
	ChunkWrites *prometheus.CounterVec
	ChunkSize   prometheus.Histogram

	// Coordination metrics
	PeriodLockContention prometheus.Counter
	DuplicateSubmissions prometheus.Counter

	// Rate limiting metrics
	RateLimitHits *prometheus.CounterVec
}

// New creates and registers all Prometheus metrics on reg. A nil reg uses the default registerer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		// Matching metrics
		StatementsProcessed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "commissions_statements_processed_total",
				Help: "Total carrier statements processed by outcome",
			},
			[]string{"outcome"},
		),
		RowsMatched: factory.NewCounter(prometheus.CounterOpts{
			Name: "commissions_rows_matched_total",
			Help: "Total statement rows resolved to a master record",
		}),
		RowsUnmatched: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "commissions_rows_unmatched_total",
				Help: "Total statement rows left unmatched by reason",
			},
			[]string{"reason"},
		),
		AllocationWarnings: factory.NewCounter(prometheus.CounterOpts{
			Name: "commissions_allocation_warnings_total",
			Help: "Total role splits that raised a warning",
		}),
		MatchDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "commissions_match_duration_seconds",
			Help:    "Duration of matching one statement",
			Buckets: prometheus.DefBuckets,
		}),

		// Aggregation metrics
		MergeDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "commissions_merge_duration_seconds",
				Help:    "Duration of seller statement merges",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		SellerStatements: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "commissions_seller_statements",
				Help: "Seller statement groups stored per period",
			},
			[]string{"period"},
		),
		DuplicateAggregates: factory.NewCounter(prometheus.CounterOpts{
			Name: "commissions_duplicate_aggregates_total",
			Help: "Total duplicate seller statement documents resolved",
		}),
		RegenerateExcluded: factory.NewCounter(prometheus.CounterOpts{
			Name: "commissions_regenerate_excluded_total",
			Help: "Total statements excluded from a regeneration after failing",
		}),

		// Dispute metrics
		DisputesDetected: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "commissions_disputes_detected_total",
				Help: "Total disputes detected by type",
			},
			[]string{"type"},
		),

		// Persistence metrics
		ChunkWrites: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "commissions_chunk_writes_total",
				Help: "Total chunked write submissions by target and status",
			},
			[]string{"target", "status"},
		),
		ChunkSize: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "commissions_chunk_size",
			Help:    "Records per chunked write submission",
			Buckets: []float64{1, 10, 50, 100, 250, 500},
		}),

		// Coordination metrics
		PeriodLockContention: factory.NewCounter(prometheus.CounterOpts{
			Name: "commissions_period_lock_contention_total",
			Help: "Total operations rejected because the period lock was held",
		}),
		DuplicateSubmissions: factory.NewCounter(prometheus.CounterOpts{
			Name: "commissions_duplicate_submissions_total",
			Help: "Total statement submissions suppressed as duplicates",
		}),

		// Rate limiting metrics
		RateLimitHits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "commissions_rate_limit_hits_total",
				Help: "Total rate limit hits",
			},
			[]string{"ip"},
		),
	}
}
