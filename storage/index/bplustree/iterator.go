package bplustree

import (
	"FerroDB/storage/buffer"
	"FerroDB/storage/page"
	"FerroDB/storage/replacer"
)

// Iterator is a forward-only range scan over the leaf chain. It holds a
// read latch only on the leaf it is currently positioned in — never on
// any ancestor — so concurrent inserts and removes elsewhere in the tree
// proceed freely while a scan is in flight. This makes iteration weakly
// consistent. Call Close when done to release the last leaf.
type Iterator[K any, V any] struct {
	tree  *BPlusTree[K, V]
	leaf  buffer.ReadPageGuard
	index int
	valid bool
}

// Begin returns an iterator positioned at the smallest key in the tree.
func (t *BPlusTree[K, V]) Begin() (*Iterator[K, V], error) {
	id, err := t.GetRootPageID()
	if err != nil {
		return nil, err
	}
	if id == page.InvalidID {
		return &Iterator[K, V]{tree: t, valid: false}, nil
	}
	leaf, err := t.leftmostLeaf(id)
	if err != nil {
		return nil, err
	}
	return t.iterAt(leaf, 0), nil
}

// SeekTo returns an iterator positioned at the first key >= target.
func (t *BPlusTree[K, V]) SeekTo(target K) (*Iterator[K, V], error) {
	leaf, err := t.findLeafForRead(target)
	if err != nil {
		if err == errEmptyTree {
			return &Iterator[K, V]{tree: t, valid: false}, nil
		}
		return nil, err
	}
	v := t.leaf(leaf.Page())
	idx := t.leafSearch(v, target)
	// leafSearch returns the largest index with key <= target; the first
	// key >= target is either that exact match or the following slot.
	if idx == -1 || t.cmp(v.keyAt(idx), target) != 0 {
		idx++
	}
	return t.advanceIntoBounds(leaf, idx)
}

func (t *BPlusTree[K, V]) leftmostLeaf(rootID int32) (buffer.ReadPageGuard, error) {
	cur, err := t.bpm.FetchPageRead(rootID, replacer.AccessIndex)
	if err != nil {
		return buffer.ReadPageGuard{}, err
	}
	for !isLeafPage(cur.Page()) {
		iv := t.internal(cur.Page())
		child, err := t.bpm.FetchPageRead(iv.childAt(0), replacer.AccessIndex)
		cur.Drop()
		if err != nil {
			return buffer.ReadPageGuard{}, err
		}
		cur = child
	}
	return cur, nil
}

func (t *BPlusTree[K, V]) iterAt(leaf buffer.ReadPageGuard, idx int) *Iterator[K, V] {
	return &Iterator[K, V]{tree: t, leaf: leaf, index: idx, valid: idx < t.leaf(leaf.Page()).size()}
}

// advanceIntoBounds rolls forward across leaf boundaries if idx has run
// off the end of leaf, and drops leaf itself either way.
func (t *BPlusTree[K, V]) advanceIntoBounds(leaf buffer.ReadPageGuard, idx int) (*Iterator[K, V], error) {
	v := t.leaf(leaf.Page())
	if idx < v.size() {
		return t.iterAt(leaf, idx), nil
	}
	nextID := v.next()
	leaf.Drop()
	if nextID == page.InvalidID {
		return &Iterator[K, V]{tree: t, valid: false}, nil
	}
	next, err := t.bpm.FetchPageRead(nextID, replacer.AccessIndex)
	if err != nil {
		return nil, err
	}
	return t.advanceIntoBounds(next, 0)
}

// Valid reports whether the iterator is positioned at an entry.
func (it *Iterator[K, V]) Valid() bool { return it.valid }

// Key returns the current entry's key. Valid must be true.
func (it *Iterator[K, V]) Key() K {
	return it.tree.leaf(it.leaf.Page()).keyAt(it.index)
}

// Value returns the current entry's value. Valid must be true.
func (it *Iterator[K, V]) Value() V {
	return it.tree.leaf(it.leaf.Page()).valueAt(it.index)
}

// Next advances the iterator by one entry, crossing into the next leaf
// via its next-pointer if necessary.
func (it *Iterator[K, V]) Next() error {
	if !it.valid {
		return nil
	}
	nxt, err := it.tree.advanceIntoBounds(it.leaf, it.index+1)
	if err != nil {
		return err
	}
	*it = *nxt
	return nil
}

// Close releases the leaf latch the iterator is holding, if any.
func (it *Iterator[K, V]) Close() {
	if it.valid {
		it.leaf.Drop()
		it.valid = false
	}
}
