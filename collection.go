package forestkv

import "encoding/binary"

// Collection is a named B-tree living inside a forestkv database (spec §3
// "Collection"). It is returned fresh by Tx.CreateCollection/GetCollection/
// GetRootCollection, always reflecting whatever committed-or-dirty state the
// owning transaction currently sees.
//
// Grounded on original_source/src/collection.rs's Collection struct (name,
// root, counter) and its put/remove/find/id methods.
type Collection struct {
	tx   *Tx
	name []byte

	rootPageID pageID
	counter    uint64
}

const collectionHeaderSize = 16 // root_page_id:8 LE || counter:8 LE

func (c *Collection) isRoot() bool { return len(c.name) == 0 }

func encodeCollectionHeader(rootPageID pageID, counter uint64) []byte {
	buf := make([]byte, collectionHeaderSize)
	binary.LittleEndian.PutUint64(buf[0:8], uint64(rootPageID))
	binary.LittleEndian.PutUint64(buf[8:16], counter)
	return buf
}

func decodeCollectionHeader(buf []byte) (rootPageID pageID, counter uint64, err error) {
	if len(buf) != collectionHeaderSize {
		return 0, 0, newErr(KindCorruption, "collection header has the wrong size")
	}
	return pageID(binary.LittleEndian.Uint64(buf[0:8])), binary.LittleEndian.Uint64(buf[8:16]), nil
}

// persist writes the collection's current header back into its parent.
// The root collection has no parent: its root page id lives in the meta
// page and is persisted via Tx.setRootPageID instead (spec §9).
//
// Persisting on every mutating call — rather than only at creation, as
// original_source/src/collection.rs does — is a deliberate extension
// recorded in DESIGN.md: without it, a collection's root page id learned
// by a later GetCollection call would go stale the moment a split or
// collapse changed it, silently losing reachability to data moved into a
// new sibling subtree. The fix mirrors the same "persist root changes"
// correction spec §9 already makes for the meta page, applied symmetrically
// to named collections, and follows the teacher's own pattern of rewriting
// a bucket's header after every Put/Delete.
func (c *Collection) persist() error {
	if c.isRoot() {
		c.tx.setRootPageID(c.rootPageID)
		return nil
	}
	header := encodeCollectionHeader(c.rootPageID, c.counter)
	newRootRootID, err := btreePut(c.tx, c.tx.rootPageID, c.name, header)
	if err != nil {
		return err
	}
	c.tx.setRootPageID(newRootRootID)
	return nil
}

// Put inserts or overwrites key with value (spec §4.6).
func (c *Collection) Put(key, value []byte) error {
	if err := c.tx.requireWritable(); err != nil {
		return err
	}
	if len(key) == 0 || len(key) > maxItemComponentLen || len(value) > maxItemComponentLen {
		return newErr(KindOverPacked, "key/value length out of single-byte range")
	}
	newRoot, err := btreePut(c.tx, c.rootPageID, key, value)
	if err != nil {
		return err
	}
	c.rootPageID = newRoot
	return c.persist()
}

// Find looks up key, returning ok=false when absent (spec §4.5).
func (c *Collection) Find(key []byte) (value []byte, ok bool, err error) {
	return btreeFind(c.tx, c.rootPageID, key)
}

// Remove deletes key if present; it is a no-op when key is absent (spec §4.7).
func (c *Collection) Remove(key []byte) error {
	if err := c.tx.requireWritable(); err != nil {
		return err
	}
	newRoot, err := btreeRemove(c.tx, c.rootPageID, key)
	if err != nil {
		return err
	}
	c.rootPageID = newRoot
	return c.persist()
}

// ID returns the next value from the collection's monotonic id generator,
// persisting the incremented counter so it survives across transactions
// (spec §3 "counter ... per-collection monotonic id generator").
func (c *Collection) ID() (uint64, error) {
	if err := c.tx.requireWritable(); err != nil {
		return 0, err
	}
	id := c.counter
	c.counter++
	if err := c.persist(); err != nil {
		return 0, err
	}
	return id, nil
}

// Name reports the collection's name ("" for the root collection).
func (c *Collection) Name() []byte {
	return cloneBytes(c.name)
}
