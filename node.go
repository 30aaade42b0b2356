package forestkv

import "encoding/binary"

// noIndex is the "not found" / "cannot spare an element" sentinel. Spec §4.4
// and §4.5 use usize::MAX for this in the source; Go idiom prefers -1 for a
// signed "no such index" result over a magic unsigned max.
const noIndex = -1

// noPage marks a node that has not yet been assigned a page id (spec §3:
// "root_page_id = MAX denotes an empty collection whose root is not yet
// allocated") and, by the same convention, a freshly constructed detached
// node before it is first written.
const noPage pageID = ^pageID(0)

// Item is a (key, value) pair stored in a node (spec §3 "Item"). Keys are
// non-empty and < 256 bytes; values < 256 bytes, per the single-byte
// length-prefixed wire format (spec §4.3).
type Item struct {
	Key   []byte
	Value []byte
}

const maxItemComponentLen = 255

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

// node is a B-tree node occupying exactly one page (spec §3 "Node").
// child_pages has length len(items)+1 for internal nodes and is empty for
// leaves.
type node struct {
	pageID   pageID
	isLeaf   bool
	items    []Item
	children []pageID
}

func newLeaf() *node {
	return &node{pageID: noPage, isLeaf: true}
}

func newInternal(items []Item, children []pageID) *node {
	return &node{pageID: noPage, isLeaf: false, items: items, children: children}
}

// elementSize approximates the packed size contribution of items[i]: its
// key and value bytes plus one child-pointer-sized slot (spec §4.3
// "element_size(i) = key_len + value_len + 8").
func elementSize(it Item) int {
	return len(it.Key) + len(it.Value) + 8
}

// size approximates the node's packed size: 3-byte header plus each
// item's element size plus one trailing pointer slot (spec §4.3
// "node_size = 3 + Σ element_size + 8").
func (n *node) size() int {
	total := 3
	for _, it := range n.items {
		total += elementSize(it)
	}
	return total + 8
}

// findKeyInNode performs the linear scan spec §4.5 describes: found=true at
// the first equal key, else the first index whose key is greater, else
// len(items).
func (n *node) findKeyInNode(key []byte) (found bool, index int) {
	for i, it := range n.items {
		cmp := compareKeys(key, it.Key)
		if cmp == 0 {
			return true, i
		}
		if cmp < 0 {
			return false, i
		}
	}
	return false, len(n.items)
}

func compareKeys(a, b []byte) int {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		if a[i] != b[i] {
			if a[i] < b[i] {
				return -1
			}
			return 1
		}
	}
	switch {
	case len(a) < len(b):
		return -1
	case len(a) > len(b):
		return 1
	default:
		return 0
	}
}

func (n *node) insertAt(i int, it Item) {
	n.items = append(n.items, Item{})
	copy(n.items[i+1:], n.items[i:])
	n.items[i] = it
}

func (n *node) removeItemAt(i int) Item {
	it := n.items[i]
	n.items = append(n.items[:i], n.items[i+1:]...)
	return it
}

func insertPageAt(s []pageID, i int, id pageID) []pageID {
	s = append(s, 0)
	copy(s[i+1:], s[i:])
	s[i] = id
	return s
}

func removePageAt(s []pageID, i int) ([]pageID, pageID) {
	id := s[i]
	return append(s[:i], s[i+1:]...), id
}

// --- slotted-page codec (spec §4.3) ---
//
// [is_leaf:1][num_items:2 LE]
//   for each item: if !is_leaf [child_page_id:8 LE]; [data_offset:2 LE]
//   if !is_leaf: final [child_page_id:8 LE]
//   ...free space...
//   data region, one block per item, written from the high end in item
//   order: [value_bytes][value_len:1][key_bytes][key_len:1] — which, read
//   forward from an item's offset, is [key_len][key_bytes][value_len][value_bytes].

func (n *node) encode(pageSize int) (page, error) {
	buf := make(page, pageSize)
	if n.isLeaf {
		buf[0] = 1
	}
	binary.LittleEndian.PutUint16(buf[1:3], uint16(len(n.items)))

	left := 3
	right := pageSize

	for i, it := range n.items {
		if len(it.Key) == 0 || len(it.Key) > maxItemComponentLen || len(it.Value) > maxItemComponentLen {
			return nil, newErr(KindOverPacked, "item key/value length out of single-byte range")
		}
		if !n.isLeaf {
			if left+8 > right {
				return nil, newErr(KindOverPacked, "node does not fit in page")
			}
			binary.LittleEndian.PutUint64(buf[left:left+8], uint64(n.children[i]))
			left += 8
		}

		blockLen := 1 + len(it.Key) + 1 + len(it.Value)
		if left+2 > right || right-blockLen < left+2 {
			return nil, newErr(KindOverPacked, "node does not fit in page")
		}
		right -= len(it.Value)
		copy(buf[right:right+len(it.Value)], it.Value)
		right--
		buf[right] = byte(len(it.Value))
		right -= len(it.Key)
		copy(buf[right:right+len(it.Key)], it.Key)
		right--
		buf[right] = byte(len(it.Key))

		binary.LittleEndian.PutUint16(buf[left:left+2], uint16(right))
		left += 2
	}

	if !n.isLeaf {
		if left+8 > right {
			return nil, newErr(KindOverPacked, "node does not fit in page")
		}
		binary.LittleEndian.PutUint64(buf[left:left+8], uint64(n.children[len(n.children)-1]))
		left += 8
	}

	return buf, nil
}

func decodeNode(id pageID, buf page) (*node, error) {
	if len(buf) < 3 {
		return nil, newErr(KindCorruption, "node page too short")
	}
	n := &node{pageID: id, isLeaf: buf[0] == 1}
	numItems := int(binary.LittleEndian.Uint16(buf[1:3]))

	left := 3
	offsets := make([]int, numItems)
	if !n.isLeaf {
		n.children = make([]pageID, numItems+1)
	}
	for i := 0; i < numItems; i++ {
		if !n.isLeaf {
			if left+8 > len(buf) {
				return nil, newErr(KindCorruption, "node header truncated")
			}
			n.children[i] = pageID(binary.LittleEndian.Uint64(buf[left : left+8]))
			left += 8
		}
		if left+2 > len(buf) {
			return nil, newErr(KindCorruption, "node header truncated")
		}
		offsets[i] = int(binary.LittleEndian.Uint16(buf[left : left+2]))
		left += 2
	}
	if !n.isLeaf {
		if left+8 > len(buf) {
			return nil, newErr(KindCorruption, "node header truncated")
		}
		n.children[numItems] = pageID(binary.LittleEndian.Uint64(buf[left : left+8]))
		left += 8
	}

	n.items = make([]Item, numItems)
	for i, off := range offsets {
		it, err := readItem(buf, off)
		if err != nil {
			return nil, err
		}
		n.items[i] = it
	}
	return n, nil
}

func readItem(buf page, off int) (Item, error) {
	if off < 0 || off >= len(buf) {
		return Item{}, newErr(KindCorruption, "slotted-page offset out of range")
	}
	pos := off
	keyLen := int(buf[pos])
	pos++
	if pos+keyLen > len(buf) {
		return Item{}, newErr(KindCorruption, "slotted-page key out of range")
	}
	key := cloneBytes(buf[pos : pos+keyLen])
	pos += keyLen
	if pos >= len(buf) {
		return Item{}, newErr(KindCorruption, "slotted-page offset out of range")
	}
	valLen := int(buf[pos])
	pos++
	if pos+valLen > len(buf) {
		return Item{}, newErr(KindCorruption, "slotted-page value out of range")
	}
	value := cloneBytes(buf[pos : pos+valLen])
	return Item{Key: key, Value: value}, nil
}
