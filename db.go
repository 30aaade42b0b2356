package forestkv

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"forestkv/internal/logging"
	"forestkv/internal/metrics"
)

// Default tunables (spec §2, §4.4). Page id 0 is always the meta page and
// page id 1 is initially assigned to the freelist; node pages begin at 2.
const (
	DefaultPageSize       = 4096
	DefaultMinFillPercent = 0.5
	DefaultMaxFillPercent = 0.95
)

// Options configures Open. Only Path is required; everything else has a
// zero-value-safe default, mirroring how the teacher's Options struct in
// db.go lets callers override just what they need.
type Options struct {
	// Path is the database file. It is created if it does not already exist.
	Path string

	PageSize       int
	MinFillPercent float64
	MaxFillPercent float64

	// EnableMmap memory-maps the file read-only to accelerate GetNode reads
	// (spec §2 "page codec"; the mapping never serves writes).
	EnableMmap bool

	// Sync calls fdatasync after every Commit. Off by default, matching
	// spec §1 Non-goals ("no crash recovery / WAL / durability guarantees").
	Sync bool

	// Logger receives structured commit/rollback events. A discarding
	// logger is used when left nil.
	Logger *logging.Logger

	// MetricsRegistry, when set, makes Open register a *metrics.Metrics
	// against it. Left nil, the DB runs with metrics disabled (nil-safe
	// throughout).
	MetricsRegistry prometheus.Registerer
}

// DB is an open forestkv database file: a forest of B-tree collections
// reachable through a single root collection (spec §1 overview). It
// coordinates single-writer/multi-reader access the way the teacher's DB
// wraps a pager and an RWMutex.
type DB struct {
	dal     *dal
	log     *logging.Logger
	metrics *metrics.Metrics

	mu     sync.RWMutex
	closed bool
}

// Open opens or creates the database file at opts.Path (spec §6 "db.open").
func Open(opts Options) (*DB, error) {
	base := opts.Logger
	if base == nil {
		base = logging.Noop()
	}

	var m *metrics.Metrics
	if opts.MetricsRegistry != nil {
		m = metrics.New(opts.MetricsRegistry)
	}

	d, err := openDAL(opts, base.Component("dal"))
	if err != nil {
		return nil, err
	}

	db := &DB{dal: d, log: base.Component("tx"), metrics: m}
	if d.freelist != nil {
		db.metrics.MaxPageObserved(float64(d.freelist.maxPage))
	}
	return db, nil
}

// WriteTx opens a writable transaction, blocking until any other writer or
// in-flight readers have finished (spec §4.10 "single-writer, multi-reader").
// The returned Tx must be closed with Commit or Rollback.
func (db *DB) WriteTx() *Tx {
	db.mu.Lock()
	return newTx(db, true)
}

// ReadTx opens a read-only transaction. Multiple read transactions may be
// open concurrently with each other, but never alongside a writer.
func (db *DB) ReadTx() *Tx {
	db.mu.RLock()
	return newTx(db, false)
}

// Close flushes nothing beyond what Commit already persisted and releases
// the underlying file handle (spec Non-goals: no WAL, so Close has no
// durability work of its own to do).
func (db *DB) Close() error {
	db.mu.Lock()
	defer db.mu.Unlock()
	if db.closed {
		return nil
	}
	db.closed = true
	return db.dal.Close()
}
