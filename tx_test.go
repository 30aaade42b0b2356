package forestkv

import "testing"

func TestTxWriteNodeReadsFromDirtyBufferBeforeFile(t *testing.T) {
	db := newTestDB(t)
	tx := db.WriteTx()
	defer tx.Rollback()

	n := newLeaf()
	n.items = []Item{{Key: []byte("k"), Value: []byte("v")}}
	if err := tx.WriteNode(n); err != nil {
		t.Fatalf("writeNode failed: %v", err)
	}
	if n.pageID == noPage {
		t.Fatalf("expected writeNode to assign a page id")
	}

	got, err := tx.GetNode(n.pageID)
	if err != nil {
		t.Fatalf("getNode failed: %v", err)
	}
	if got != n {
		t.Fatalf("expected GetNode to return the exact dirty-buffer instance")
	}
}

func TestTxDeleteNodeQueuesReleaseUntilCommit(t *testing.T) {
	db := newTestDB(t)
	tx := db.WriteTx()

	n := newLeaf()
	if err := tx.WriteNode(n); err != nil {
		t.Fatalf("writeNode failed: %v", err)
	}
	id := n.pageID
	maxPageBefore := db.dal.freelist.maxPage

	if err := tx.DeleteNode(n); err != nil {
		t.Fatalf("deleteNode failed: %v", err)
	}
	if _, ok := tx.dirtyNodes[id]; ok {
		t.Fatalf("expected deleted node to leave the dirty buffer")
	}
	if db.dal.freelist.maxPage != maxPageBefore || len(db.dal.freelist.releasedPages) != 0 {
		t.Fatalf("expected freelist to stay untouched until commit")
	}

	if err := tx.Commit(); err != nil {
		t.Fatalf("commit failed: %v", err)
	}
	if len(db.dal.freelist.releasedPages) == 0 {
		t.Fatalf("expected page %d to be released to the freelist after commit", id)
	}
}

func TestTxRollbackUnwindsAllocationLIFO(t *testing.T) {
	db := newTestDB(t)
	before := db.dal.freelist.maxPage
	beforeReleased := len(db.dal.freelist.releasedPages)

	tx := db.WriteTx()
	for i := 0; i < 5; i++ {
		n := newLeaf()
		if err := tx.WriteNode(n); err != nil {
			t.Fatalf("writeNode %d failed: %v", i, err)
		}
	}
	if err := tx.Rollback(); err != nil {
		t.Fatalf("rollback failed: %v", err)
	}

	// Rollback pushes the five allocated ids back onto the released stack in
	// reverse allocation order; maxPage is not lowered.
	if db.dal.freelist.maxPage != before+5 {
		t.Fatalf("expected maxPage to stay at %d after rollback, got %d", before+5, db.dal.freelist.maxPage)
	}
	if got := len(db.dal.freelist.releasedPages); got != beforeReleased+5 || db.dal.freelist.releasedPages[got-1] != before+1 {
		t.Fatalf("expected the 5 allocated pages back on the stack with page %d on top, got %v", before+1, db.dal.freelist.releasedPages)
	}
}

func TestTxCommitRewritesMetaOnlyWhenRootChanges(t *testing.T) {
	db := newTestDB(t)
	originalRoot := db.dal.meta.rootPageID

	tx := db.WriteTx()
	if err := tx.GetRootCollection().Put([]byte("k"), []byte("v")); err != nil {
		t.Fatalf("put failed: %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("commit failed: %v", err)
	}

	if db.dal.meta.rootPageID != originalRoot {
		t.Fatalf("a single put into an empty leaf should not change the root page id")
	}
}
