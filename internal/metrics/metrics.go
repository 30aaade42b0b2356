// Package metrics provides Prometheus metrics for forestkv.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus collectors forestkv updates while servicing
// transactions. Grounded on tree_db/internal/metrics/metrics.go's shape: a
// struct of counter/gauge/histogram fields built with promauto against a
// caller-supplied registry. Fields are unexported and reached only through
// the nil-safe methods below, so every call site in tx.go and node_ops.go
// needs at most one guard even when Options.MetricsRegistry was left nil.
type Metrics struct {
	commitsTotal    prometheus.Counter
	rollbacksTotal  prometheus.Counter
	commitDuration  prometheus.Histogram
	nodeSplitsTotal prometheus.Counter
	nodeMergesTotal prometheus.Counter
	nodeRotations   *prometheus.CounterVec
	pagesAllocated  prometheus.Counter
	pagesReleased   prometheus.Counter
	maxPage         prometheus.Gauge
}

// New registers forestkv's collectors against reg. Pass a fresh
// prometheus.NewRegistry() per DB instance in tests to avoid duplicate
// registration panics; a nil *Metrics (Options.MetricsRegistry left unset) is safe
// to use throughout the engine.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		commitsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "forestkv_commits_total",
			Help: "Total number of committed write transactions.",
		}),
		rollbacksTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "forestkv_rollbacks_total",
			Help: "Total number of rolled-back write transactions.",
		}),
		commitDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "forestkv_commit_duration_seconds",
			Help:    "Duration of write-transaction commits.",
			Buckets: prometheus.DefBuckets,
		}),
		nodeSplitsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "forestkv_node_splits_total",
			Help: "Total number of node splits performed.",
		}),
		nodeMergesTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "forestkv_node_merges_total",
			Help: "Total number of node merges performed.",
		}),
		nodeRotations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "forestkv_node_rotations_total",
			Help: "Total number of rebalance rotations, labeled by direction.",
		}, []string{"direction"}),
		pagesAllocated: factory.NewCounter(prometheus.CounterOpts{
			Name: "forestkv_pages_allocated_total",
			Help: "Total number of pages handed out by the freelist.",
		}),
		pagesReleased: factory.NewCounter(prometheus.CounterOpts{
			Name: "forestkv_pages_released_total",
			Help: "Total number of pages returned to the freelist.",
		}),
		maxPage: factory.NewGauge(prometheus.GaugeOpts{
			Name: "forestkv_max_page",
			Help: "Highest page id ever allocated in the current file.",
		}),
	}
}

func (m *Metrics) CommitsTotal() {
	if m != nil {
		m.commitsTotal.Inc()
	}
}

func (m *Metrics) RollbacksTotal() {
	if m != nil {
		m.rollbacksTotal.Inc()
	}
}

func (m *Metrics) CommitDurationObserved(d time.Duration) {
	if m != nil {
		m.commitDuration.Observe(d.Seconds())
	}
}

func (m *Metrics) SplitObserved() {
	if m != nil {
		m.nodeSplitsTotal.Inc()
	}
}

func (m *Metrics) MergeObserved() {
	if m != nil {
		m.nodeMergesTotal.Inc()
	}
}

func (m *Metrics) RotationObserved(direction string) {
	if m != nil {
		m.nodeRotations.WithLabelValues(direction).Inc()
	}
}

func (m *Metrics) PagesAllocated() {
	if m != nil {
		m.pagesAllocated.Inc()
	}
}

func (m *Metrics) PagesReleased() {
	if m != nil {
		m.pagesReleased.Inc()
	}
}

func (m *Metrics) MaxPageObserved(v float64) {
	if m != nil {
		m.maxPage.Set(v)
	}
}
