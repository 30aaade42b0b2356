package forestkv

import (
	"bytes"
	"testing"
)

func itemsEqual(a, b Item) bool {
	return bytes.Equal(a.Key, b.Key) && bytes.Equal(a.Value, b.Value)
}

func TestNodeFindKeyInNode(t *testing.T) {
	n := &node{isLeaf: true, items: []Item{
		{Key: []byte("b"), Value: []byte("2")},
		{Key: []byte("d"), Value: []byte("4")},
		{Key: []byte("f"), Value: []byte("6")},
	}}

	if found, idx := n.findKeyInNode([]byte("d")); !found || idx != 1 {
		t.Fatalf("expected exact match at 1, got found=%v idx=%d", found, idx)
	}
	if found, idx := n.findKeyInNode([]byte("a")); found || idx != 0 {
		t.Fatalf("expected insertion point 0, got found=%v idx=%d", found, idx)
	}
	if found, idx := n.findKeyInNode([]byte("c")); found || idx != 1 {
		t.Fatalf("expected insertion point 1, got found=%v idx=%d", found, idx)
	}
	if found, idx := n.findKeyInNode([]byte("z")); found || idx != 3 {
		t.Fatalf("expected insertion point at end, got found=%v idx=%d", found, idx)
	}
}

func TestNodeInsertAndRemoveItem(t *testing.T) {
	n := &node{isLeaf: true}
	n.insertAt(0, Item{Key: []byte("b"), Value: []byte("2")})
	n.insertAt(0, Item{Key: []byte("a"), Value: []byte("1")})
	n.insertAt(2, Item{Key: []byte("c"), Value: []byte("3")})

	want := []string{"a", "b", "c"}
	for i, k := range want {
		if string(n.items[i].Key) != k {
			t.Fatalf("item %d: got key %q, want %q", i, n.items[i].Key, k)
		}
	}

	removed := n.removeItemAt(1)
	if string(removed.Key) != "b" {
		t.Fatalf("expected to remove %q, got %q", "b", removed.Key)
	}
	if len(n.items) != 2 || string(n.items[0].Key) != "a" || string(n.items[1].Key) != "c" {
		t.Fatalf("unexpected items after removal: %+v", n.items)
	}
}

func TestNodeInsertRemovePageAt(t *testing.T) {
	pages := []pageID{10, 20, 30}
	pages = insertPageAt(pages, 1, 15)
	if len(pages) != 4 || pages[1] != 15 {
		t.Fatalf("unexpected pages after insert: %v", pages)
	}
	pages, removed := removePageAt(pages, 0)
	if removed != 10 || len(pages) != 3 || pages[0] != 15 {
		t.Fatalf("unexpected pages after remove: removed=%d pages=%v", removed, pages)
	}
}

func TestNodeEncodeDecodeRoundTripLeaf(t *testing.T) {
	n := newLeaf()
	n.pageID = 5
	n.items = []Item{
		{Key: []byte("alpha"), Value: []byte("1")},
		{Key: []byte("beta"), Value: []byte("22")},
		{Key: []byte("gamma"), Value: []byte("")},
	}

	buf, err := n.encode(DefaultPageSize)
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	got, err := decodeNode(5, buf)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if !got.isLeaf {
		t.Fatalf("expected decoded node to be a leaf")
	}
	if len(got.items) != len(n.items) {
		t.Fatalf("item count mismatch: got %d, want %d", len(got.items), len(n.items))
	}
	for i := range n.items {
		if !itemsEqual(got.items[i], n.items[i]) {
			t.Fatalf("item %d mismatch: got %+v, want %+v", i, got.items[i], n.items[i])
		}
	}
}

func TestNodeEncodeDecodeRoundTripInternal(t *testing.T) {
	n := newInternal(
		[]Item{{Key: []byte("m"), Value: []byte("mid")}},
		[]pageID{2, 3},
	)
	n.pageID = 8

	buf, err := n.encode(DefaultPageSize)
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	got, err := decodeNode(8, buf)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if got.isLeaf {
		t.Fatalf("expected decoded node to be internal")
	}
	if len(got.children) != 2 || got.children[0] != 2 || got.children[1] != 3 {
		t.Fatalf("unexpected children: %v", got.children)
	}
	if len(got.items) != 1 || !itemsEqual(got.items[0], n.items[0]) {
		t.Fatalf("unexpected items: %+v", got.items)
	}
}

func TestNodeEncodeRejectsOversizedComponent(t *testing.T) {
	n := newLeaf()
	n.items = []Item{{Key: bytes.Repeat([]byte("x"), maxItemComponentLen+1), Value: []byte("v")}}
	if _, err := n.encode(DefaultPageSize); err == nil {
		t.Fatalf("expected encode to reject an over-length key")
	}
}
