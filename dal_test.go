package forestkv

import (
	"testing"

	"forestkv/internal/logging"
)

func openTestDAL(t *testing.T, opts Options) *dal {
	t.Helper()
	if opts.Path == "" {
		opts.Path = t.TempDir() + "/dal.db"
	}
	d, err := openDAL(opts, logging.Noop())
	if err != nil {
		t.Fatalf("openDAL failed: %v", err)
	}
	t.Cleanup(func() { d.Close() })
	return d
}

func TestOpenDALFreshInitializesMetaAndFreelist(t *testing.T) {
	d := openTestDAL(t, Options{})
	if d.meta.rootPageID == noPage {
		t.Fatalf("expected root collection to have an allocated root page")
	}
	if d.meta.freelistPageID != 1 {
		t.Fatalf("expected freelist to live at page 1, got %d", d.meta.freelistPageID)
	}
	root, err := d.getNode(d.meta.rootPageID)
	if err != nil {
		t.Fatalf("getNode failed: %v", err)
	}
	if !root.isLeaf || len(root.items) != 0 {
		t.Fatalf("expected a fresh empty leaf root, got %+v", root)
	}
}

func TestOpenDALPersistsAcrossReopen(t *testing.T) {
	path := t.TempDir() + "/dal.db"
	d := openTestDAL(t, Options{Path: path})
	n := newLeaf()
	n.items = []Item{{Key: []byte("k"), Value: []byte("v")}}
	if err := d.writeNode(n, d.allocatePage()); err != nil {
		t.Fatalf("writeNode failed: %v", err)
	}
	d.meta.rootPageID = n.pageID
	if err := d.writeFreelist(); err != nil {
		t.Fatalf("writeFreelist failed: %v", err)
	}
	if err := d.writeMeta(); err != nil {
		t.Fatalf("writeMeta failed: %v", err)
	}
	if err := d.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}

	reopened := openTestDAL(t, Options{Path: path})
	if reopened.meta.rootPageID != n.pageID {
		t.Fatalf("expected root page id %d to survive reopen, got %d", n.pageID, reopened.meta.rootPageID)
	}
	got, err := reopened.getNode(n.pageID)
	if err != nil {
		t.Fatalf("getNode after reopen failed: %v", err)
	}
	if len(got.items) != 1 || string(got.items[0].Key) != "k" {
		t.Fatalf("unexpected node contents after reopen: %+v", got.items)
	}
}

func TestDALFillThresholds(t *testing.T) {
	d := openTestDAL(t, Options{PageSize: 128, MinFillPercent: 0.5, MaxFillPercent: 0.95})

	empty := newLeaf()
	if d.isOverPopulated(empty) {
		t.Fatalf("empty leaf should not be over-populated")
	}
	if !d.isUnderPopulated(empty) {
		t.Fatalf("empty leaf should be under-populated against a 128-byte page")
	}

	full := newLeaf()
	for i := 0; i < 10; i++ {
		full.items = append(full.items, Item{Key: []byte{byte(i)}, Value: []byte("0123456789")})
	}
	if !d.isOverPopulated(full) {
		t.Fatalf("expected a node with 10 ten-byte items to be over-populated on a 128-byte page")
	}
	if d.splitIndex(full) == noIndex {
		t.Fatalf("expected a split index to be found for an over-populated node")
	}
}
