package forestkv

// This file implements the node algorithms spec §2 budgets at ~25% of the
// engine: find-key, split, merge, rotate-left/right, rebalance-on-remove,
// and leaf/internal removal (spec §4.5-§4.8). They operate against a *Tx
// so every read goes through the dirty buffer first (spec §4.10) and every
// write lands there too, never touching the file directly.
//
// Grounded on original_source/src/node.rs (Node::find_key, Node::split,
// Node::rotate_left/right, Node::merge, Node::rebalance_remove) and
// collection.rs (Collection::put, Collection::remove, Collection::get_nodes),
// with one deliberate deviation from the Rust source noted in DESIGN.md:
// spec §4.7 describes predecessor descent as "taking the rightmost child
// repeatedly" of the *current* node, which is what is implemented below;
// the Rust source's remove_item_from_internal reads the outer node's child
// count instead of the descended node's, which looks like a transcription
// bug, and spec text (not source) is authoritative here.

// findKey descends from rootID returning the linear-scan result at the
// stopping node, plus the ancestor child-indices walked to reach it (spec
// §4.5). ancestorIndexes always starts with a leading 0 (the root's index
// in its own non-existent parent, per spec convention) so it lines up
// 1:1 with the node list loadPath later reconstructs.
func findKey(tx *Tx, rootID pageID, key []byte, exact bool) (index int, containing *node, ancestorIndexes []int, err error) {
	root, err := tx.GetNode(rootID)
	if err != nil {
		return 0, nil, nil, err
	}
	ancestorIndexes = []int{0}
	index, containing, err = findKeyDescend(tx, root, key, exact, &ancestorIndexes)
	return index, containing, ancestorIndexes, err
}

func findKeyDescend(tx *Tx, n *node, key []byte, exact bool, ancestors *[]int) (int, *node, error) {
	found, idx := n.findKeyInNode(key)
	if found {
		return idx, n, nil
	}
	if n.isLeaf {
		if exact {
			return noIndex, n, nil
		}
		return idx, n, nil
	}
	*ancestors = append(*ancestors, idx)
	child, err := tx.GetNode(n.children[idx])
	if err != nil {
		return 0, nil, err
	}
	return findKeyDescend(tx, child, key, exact, ancestors)
}

// loadPath re-fetches the chain of nodes root..target by walking
// indexes against freshly-read nodes (spec §4.9 "Design notes: parents are
// rediscovered by re-traversing the path"). nodes[0] is always the root.
func loadPath(tx *Tx, rootID pageID, indexes []int) ([]*node, error) {
	root, err := tx.GetNode(rootID)
	if err != nil {
		return nil, err
	}
	nodes := make([]*node, 1, len(indexes))
	nodes[0] = root
	cur := root
	for i := 1; i < len(indexes); i++ {
		child, err := tx.GetNode(cur.children[indexes[i]])
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, child)
		cur = child
	}
	return nodes, nil
}

func btreeFind(tx *Tx, rootID pageID, key []byte) ([]byte, bool, error) {
	if rootID == noPage {
		return nil, false, nil
	}
	idx, n, _, err := findKey(tx, rootID, key, true)
	if err != nil {
		return nil, false, err
	}
	if idx == noIndex {
		return nil, false, nil
	}
	return cloneBytes(n.items[idx].Value), true, nil
}

// btreePut implements spec §4.6 and returns the (possibly new) root page id.
func btreePut(tx *Tx, rootID pageID, key, value []byte) (pageID, error) {
	if rootID == noPage {
		root := newLeaf()
		if err := tx.WriteNode(root); err != nil {
			return rootID, err
		}
		rootID = root.pageID
	}

	idx, leaf, ancestorIdx, err := findKey(tx, rootID, key, false)
	if err != nil {
		return rootID, err
	}
	if idx < len(leaf.items) && compareKeys(leaf.items[idx].Key, key) == 0 {
		leaf.items[idx] = Item{Key: cloneBytes(key), Value: cloneBytes(value)}
	} else {
		leaf.insertAt(idx, Item{Key: cloneBytes(key), Value: cloneBytes(value)})
	}
	if err := tx.WriteNode(leaf); err != nil {
		return rootID, err
	}

	ancestors, err := loadPath(tx, rootID, ancestorIdx)
	if err != nil {
		return rootID, err
	}
	if len(ancestors) >= 2 {
		for i := len(ancestors) - 2; i >= 0; i-- {
			parent, child := ancestors[i], ancestors[i+1]
			if tx.IsOverPopulated(child) {
				if err := split(tx, parent, child, ancestorIdx[i+1]); err != nil {
					return rootID, err
				}
			}
		}
	}

	root := ancestors[0]
	if tx.IsOverPopulated(root) {
		newRoot := newInternal(nil, []pageID{root.pageID})
		if err := split(tx, newRoot, root, 0); err != nil {
			return rootID, err
		}
		rootID = newRoot.pageID
	}
	return rootID, nil
}

// split implements spec §4.6 "Split(parent, child, child_index)".
func split(tx *Tx, parent, child *node, childIndex int) error {
	sIdx := tx.SplitIndex(child)
	if sIdx == noIndex {
		return newErr(KindOverPacked, "split requested on a node that cannot spare an element")
	}
	middle := child.removeItemAt(sIdx)

	sibling := &node{pageID: noPage, isLeaf: child.isLeaf}
	sibling.items = append([]Item(nil), child.items[sIdx:]...)
	child.items = child.items[:sIdx]
	if !child.isLeaf {
		sibling.children = append([]pageID(nil), child.children[sIdx+1:]...)
		child.children = child.children[:sIdx+1]
	}
	if err := tx.WriteNode(sibling); err != nil {
		return err
	}

	parent.insertAt(childIndex, middle)
	parent.children = insertPageAt(parent.children, childIndex+1, sibling.pageID)

	if err := tx.WriteNode(parent); err != nil {
		return err
	}
	if err := tx.WriteNode(child); err != nil {
		return err
	}
	tx.metrics().SplitObserved()
	return nil
}

// btreeRemove implements spec §4.7 and returns the (possibly new) root page id.
func btreeRemove(tx *Tx, rootID pageID, key []byte) (pageID, error) {
	if rootID == noPage {
		return rootID, nil
	}
	idx, n, ancestorIdx, err := findKey(tx, rootID, key, true)
	if err != nil {
		return rootID, err
	}
	if idx == noIndex {
		return rootID, nil
	}

	if n.isLeaf {
		n.removeItemAt(idx)
		if err := tx.WriteNode(n); err != nil {
			return rootID, err
		}
	} else {
		trail, err := removeFromInternal(tx, n, idx)
		if err != nil {
			return rootID, err
		}
		ancestorIdx = append(ancestorIdx, trail...)
	}

	nodes, err := loadPath(tx, rootID, ancestorIdx)
	if err != nil {
		return rootID, err
	}
	for i := len(nodes) - 2; i >= 0; i-- {
		parent, child := nodes[i], nodes[i+1]
		if tx.IsUnderPopulated(child) {
			if err := rebalanceRemove(tx, parent, child, ancestorIdx[i+1]); err != nil {
				return rootID, err
			}
		}
	}

	root := nodes[0]
	if len(root.items) == 0 && len(root.children) > 0 {
		if err := tx.DeleteNode(root); err != nil {
			return rootID, err
		}
		rootID = root.children[0]
	}
	return rootID, nil
}

// removeFromInternal implements spec §4.7 step 3: locate the in-order
// predecessor by descending the found node's i-th child, taking the
// rightmost child of whatever node is currently reached (not the outer
// node — see the file-level doc comment) until a leaf is hit, then pop its
// last item into the vacated slot.
func removeFromInternal(tx *Tx, n *node, index int) ([]int, error) {
	trail := []int{index}
	cur, err := tx.GetNode(n.children[index])
	if err != nil {
		return nil, err
	}
	for !cur.isLeaf {
		ti := len(cur.children) - 1
		trail = append(trail, ti)
		cur, err = tx.GetNode(cur.children[ti])
		if err != nil {
			return nil, err
		}
	}
	predecessor := cur.removeItemAt(len(cur.items) - 1)
	n.items[index] = predecessor
	if err := tx.WriteNode(n); err != nil {
		return nil, err
	}
	if err := tx.WriteNode(cur); err != nil {
		return nil, err
	}
	return trail, nil
}

// rotateRight moves a's last item up through p into b's front (spec §4.8).
// a is the left sibling, b is the under-populated node.
func rotateRight(a, p, b *node, bIndex int) {
	aItem := a.removeItemAt(len(a.items) - 1)
	pIdx := bIndex - 1
	if bIndex == 0 {
		pIdx = 0
	}
	pItem := p.items[pIdx]
	p.items[pIdx] = aItem
	b.insertAt(0, pItem)
	if !a.isLeaf {
		lastChild := a.children[len(a.children)-1]
		a.children = a.children[:len(a.children)-1]
		b.children = insertPageAt(b.children, 0, lastChild)
	}
}

// rotateLeft moves b's first item up through p into a's back. a is the
// under-populated node, b is the right sibling.
func rotateLeft(a, p, b *node, bIndex int) {
	bItem := b.removeItemAt(0)
	pIdx := bIndex
	if bIndex == len(p.items) {
		pIdx = len(p.items) - 1
	}
	pItem := p.items[pIdx]
	p.items[pIdx] = bItem
	a.items = append(a.items, pItem)
	if !b.isLeaf {
		firstChild := b.children[0]
		b.children = b.children[1:]
		a.children = append(a.children, firstChild)
	}
}

// merge folds b into a through p (spec §4.8 "Merge"). b's page is released.
func merge(tx *Tx, a, b, p *node, bIndex int) error {
	pItem := p.removeItemAt(bIndex - 1)
	a.items = append(a.items, pItem)
	a.items = append(a.items, b.items...)
	p.children, _ = removePageAt(p.children, bIndex)
	if !a.isLeaf {
		a.children = append(a.children, b.children...)
	}
	if err := tx.WriteNode(p); err != nil {
		return err
	}
	if err := tx.WriteNode(a); err != nil {
		return err
	}
	if err := tx.DeleteNode(b); err != nil {
		return err
	}
	tx.metrics().MergeObserved()
	return nil
}

// rebalanceRemove implements spec §4.8: try borrowing from the left
// sibling, then the right sibling, then merge.
func rebalanceRemove(tx *Tx, parent, child *node, childIndex int) error {
	if childIndex > 0 {
		left, err := tx.GetNode(parent.children[childIndex-1])
		if err != nil {
			return err
		}
		if tx.CanSpareAnElement(left) {
			rotateRight(left, parent, child, childIndex)
			if err := tx.WriteNode(parent); err != nil {
				return err
			}
			if err := tx.WriteNode(left); err != nil {
				return err
			}
			if err := tx.WriteNode(child); err != nil {
				return err
			}
			tx.metrics().RotationObserved("right")
			return nil
		}
	}

	if childIndex < len(parent.children)-1 {
		right, err := tx.GetNode(parent.children[childIndex+1])
		if err != nil {
			return err
		}
		if tx.CanSpareAnElement(right) {
			rotateLeft(child, parent, right, childIndex)
			if err := tx.WriteNode(parent); err != nil {
				return err
			}
			if err := tx.WriteNode(child); err != nil {
				return err
			}
			if err := tx.WriteNode(right); err != nil {
				return err
			}
			tx.metrics().RotationObserved("left")
			return nil
		}
	}

	if childIndex == 0 {
		right, err := tx.GetNode(parent.children[childIndex+1])
		if err != nil {
			return err
		}
		return merge(tx, child, right, parent, childIndex+1)
	}
	left, err := tx.GetNode(parent.children[childIndex-1])
	if err != nil {
		return err
	}
	return merge(tx, left, child, parent, childIndex)
}
