package forestkv

import (
	"time"

	"forestkv/internal/metrics"
)

// Tx is a single-writer-or-multi-reader view over a DB (spec §4.10). A read
// transaction may only call GetCollection/GetRootCollection and Collection.Find;
// any mutating call returns ErrTxReadOnly. Grounded on original_source/src/tx.rs's
// dirty-buffer-first Tx, adapted from the Rust TxRead/TxMut split into a single
// struct with a writable flag, matching how the teacher's Tx/Bucket pair guards
// writes with one bool rather than two types.
type Tx struct {
	db       *DB
	writable bool
	closed   bool

	dirtyNodes       map[pageID]*node
	pagesToDelete    []pageID
	allocatedPageIDs []pageID

	rootPageID    pageID // tx-local view of the root collection's root
	initialRootID pageID
}

func newTx(db *DB, writable bool) *Tx {
	return &Tx{
		db:            db,
		writable:      writable,
		dirtyNodes:    make(map[pageID]*node),
		rootPageID:    db.dal.meta.rootPageID,
		initialRootID: db.dal.meta.rootPageID,
	}
}

func (tx *Tx) metrics() *metrics.Metrics {
	return tx.db.metrics
}

func (tx *Tx) requireOpen() error {
	if tx.closed {
		return ErrTxClosed
	}
	return nil
}

func (tx *Tx) requireWritable() error {
	if err := tx.requireOpen(); err != nil {
		return err
	}
	if !tx.writable {
		return ErrTxReadOnly
	}
	return nil
}

// GetNode returns the node at id, preferring the dirty buffer over the file
// (spec §4.10 "reads check the dirty map first").
func (tx *Tx) GetNode(id pageID) (*node, error) {
	if err := tx.requireOpen(); err != nil {
		return nil, err
	}
	if n, ok := tx.dirtyNodes[id]; ok {
		return n, nil
	}
	return tx.db.dal.getNode(id)
}

// WriteNode allocates a page for a detached node and stages it (along with
// an already-placed node being rewritten) in the dirty buffer. Nothing
// touches the file until Commit.
func (tx *Tx) WriteNode(n *node) error {
	if err := tx.requireWritable(); err != nil {
		return err
	}
	if n.pageID == noPage {
		id := tx.db.dal.allocatePage()
		n.pageID = id
		tx.allocatedPageIDs = append(tx.allocatedPageIDs, id)
		tx.metrics().PagesAllocated()
	}
	tx.dirtyNodes[n.pageID] = n
	return nil
}

// DeleteNode drops n from the dirty buffer (if present) and queues its page
// for release to the freelist at Commit time (spec §4.10 "delete_node only
// queues; the freelist isn't touched until commit").
func (tx *Tx) DeleteNode(n *node) error {
	if err := tx.requireWritable(); err != nil {
		return err
	}
	delete(tx.dirtyNodes, n.pageID)
	tx.pagesToDelete = append(tx.pagesToDelete, n.pageID)
	return nil
}

func (tx *Tx) setRootPageID(id pageID) {
	tx.rootPageID = id
}

// RootPageID exposes the transaction's current view of the root collection's
// root page id, primarily for tests.
func (tx *Tx) RootPageID() pageID {
	return tx.rootPageID
}

// GetRootCollection returns the distinguished collection-of-collections
// (spec §3 "root collection"). Its name is empty and its root page id lives
// directly in the meta page rather than as an item inside itself.
func (tx *Tx) GetRootCollection() *Collection {
	return &Collection{tx: tx, rootPageID: tx.rootPageID}
}

// CreateCollection allocates a new empty leaf node as the collection's root
// and persists a header pointing at it into the root collection (spec §4.9
// step 1: "allocate a new empty leaf node as the new collection's root",
// matching original_source/src/tx.rs's TxMut::create_collection, which
// always writes a fresh node before constructing the Collection). name must
// be non-empty (empty is reserved for the root collection) and not already
// present.
func (tx *Tx) CreateCollection(name []byte) (*Collection, error) {
	if err := tx.requireWritable(); err != nil {
		return nil, err
	}
	if len(name) == 0 {
		return nil, newErr(KindConflict, "collection name must not be empty")
	}
	if len(name) > maxItemComponentLen {
		return nil, newErr(KindOverPacked, "collection name exceeds the single-byte length limit")
	}
	if _, ok, err := btreeFind(tx, tx.rootPageID, name); err != nil {
		return nil, err
	} else if ok {
		return nil, ErrCollectionExists
	}
	root := newLeaf()
	if err := tx.WriteNode(root); err != nil {
		return nil, err
	}
	c := &Collection{tx: tx, name: cloneBytes(name), rootPageID: root.pageID, counter: 0}
	if err := c.persist(); err != nil {
		return nil, err
	}
	return c, nil
}

// GetCollection looks up a named collection by deserializing its header out
// of the root collection (spec §4.9). ok is false when name is unknown.
func (tx *Tx) GetCollection(name []byte) (collection *Collection, ok bool, err error) {
	if err := tx.requireOpen(); err != nil {
		return nil, false, err
	}
	if len(name) == 0 {
		return tx.GetRootCollection(), true, nil
	}
	buf, found, err := btreeFind(tx, tx.rootPageID, name)
	if err != nil {
		return nil, false, err
	}
	if !found {
		return nil, false, nil
	}
	rootID, counter, err := decodeCollectionHeader(buf)
	if err != nil {
		return nil, false, err
	}
	return &Collection{tx: tx, name: cloneBytes(name), rootPageID: rootID, counter: counter}, true, nil
}

// DeleteCollection removes a collection's header from the root collection.
// It is a no-op if name is unknown (spec §4.7 "remove on an absent key
// succeeds without effect"). The collection's own subtree pages are not
// recursively reclaimed — see DESIGN.md "page reclamation on delete_collection".
func (tx *Tx) DeleteCollection(name []byte) error {
	if err := tx.requireWritable(); err != nil {
		return err
	}
	if len(name) == 0 {
		return newErr(KindConflict, "the root collection cannot be deleted")
	}
	newRoot, err := btreeRemove(tx, tx.rootPageID, name)
	if err != nil {
		return err
	}
	tx.setRootPageID(newRoot)
	return nil
}

// IsOverPopulated, IsUnderPopulated, SplitIndex and CanSpareAnElement expose
// dal's fill-threshold computations to node_ops.go through the transaction,
// since thresholds depend only on page size and fill percentages, not on
// anything transaction-local.
func (tx *Tx) IsOverPopulated(n *node) bool   { return tx.db.dal.isOverPopulated(n) }
func (tx *Tx) IsUnderPopulated(n *node) bool  { return tx.db.dal.isUnderPopulated(n) }
func (tx *Tx) SplitIndex(n *node) int         { return tx.db.dal.splitIndex(n) }
func (tx *Tx) CanSpareAnElement(n *node) bool { return tx.db.dal.canSpareAnElement(n) }

// Commit flushes all dirty nodes, releases deleted pages to the freelist,
// rewrites the freelist page, and — when the root collection's root page id
// changed during the transaction — rewrites the meta page too. That last
// clause is the fix to the open question in spec §9: the original DAL design
// only ever wrote meta once at init, which would silently strand newly
// written data behind a stale root pointer the moment the root collection's
// own B-tree split or collapsed.
//
// A read-only Tx has nothing to flush; Commit just closes it the same way
// Rollback would (spec §8 scenario 5: two open read transactions both
// commit without error), matching the teacher's Tx.Commit special case for
// a non-writable transaction.
func (tx *Tx) Commit() error {
	if err := tx.requireOpen(); err != nil {
		return err
	}
	if !tx.writable {
		tx.closed = true
		tx.db.mu.RUnlock()
		return nil
	}
	start := time.Now()
	d := tx.db.dal

	for _, n := range tx.dirtyNodes {
		if err := d.writeNode(n, n.pageID); err != nil {
			tx.db.log.LogCommit(time.Since(start), len(tx.dirtyNodes), len(tx.pagesToDelete), err)
			return err
		}
	}
	for _, id := range tx.pagesToDelete {
		d.releasePage(id)
		tx.metrics().PagesReleased()
	}

	rootChanged := tx.rootPageID != tx.initialRootID
	if rootChanged {
		d.meta.rootPageID = tx.rootPageID
	}
	if err := d.writeFreelist(); err != nil {
		return err
	}
	if rootChanged {
		if err := d.writeMeta(); err != nil {
			return err
		}
	}
	if d.sync {
		if err := d.pf.Sync(); err != nil {
			return err
		}
	}
	d.refreshMmap()

	tx.metrics().CommitsTotal()
	tx.metrics().CommitDurationObserved(time.Since(start))
	tx.metrics().MaxPageObserved(float64(d.freelist.maxPage))
	tx.db.log.LogCommit(time.Since(start), len(tx.dirtyNodes), len(tx.pagesToDelete), nil)

	tx.closed = true
	tx.db.mu.Unlock()
	return nil
}

// Rollback discards all staged writes and pushes every page this
// transaction allocated back onto the freelist's released stack, in reverse
// allocation order, so later allocations hand those ids out again in the
// order they were first allocated. maxPage is not lowered.
func (tx *Tx) Rollback() error {
	if err := tx.requireOpen(); err != nil {
		return err
	}
	for i := len(tx.allocatedPageIDs) - 1; i >= 0; i-- {
		tx.db.dal.freelist.releasePage(tx.allocatedPageIDs[i])
	}
	allocated := len(tx.allocatedPageIDs)
	tx.dirtyNodes = nil
	tx.pagesToDelete = nil
	tx.allocatedPageIDs = nil
	tx.closed = true

	if tx.writable {
		tx.metrics().RollbacksTotal()
		tx.db.log.LogRollback(allocated)
		tx.db.mu.Unlock()
	} else {
		tx.db.mu.RUnlock()
	}
	return nil
}
