package bplustree

import (
	"fmt"

	"FerroDB/storage/buffer"
	"FerroDB/storage/page"
	"FerroDB/storage/replacer"
)

func releasePath(path []buffer.WritePageGuard) {
	for i := range path {
		path[i].Drop()
	}
}

// Insert adds key/value to the tree, reporting false without modifying
// anything if key is already present.
//
// The optimistic pass takes read latches all the way to the target leaf,
// then upgrades just that leaf to a write latch; this upgrade is not
// atomic with the descent, so a concurrent structural change can slip in
// between. insertOptimistic re-validates under the write latch and only
// commits if the leaf is still safe, falling back to the pessimistic pass
// otherwise.
func (t *BPlusTree[K, V]) Insert(key K, value V) (bool, error) {
	if ok, done, err := t.insertOptimistic(key, value); done {
		return ok, err
	}
	return t.insertPessimistic(key, value)
}

// insertOptimistic attempts the fast path. done is false if it could not
// determine the outcome and the caller must fall back to insertPessimistic.
func (t *BPlusTree[K, V]) insertOptimistic(key K, value V) (ok bool, done bool, err error) {
	leafRead, err := t.findLeafForRead(key)
	if err != nil {
		if err == errEmptyTree {
			return false, false, nil
		}
		return false, false, fmt.Errorf("bplustree: insert: %w", err)
	}
	leafID := leafRead.PageID()
	leafRead.Drop()

	leaf, err := t.bpm.FetchPageWrite(leafID, replacer.AccessIndex)
	if err != nil {
		return false, false, fmt.Errorf("bplustree: insert: %w", err)
	}
	defer leaf.Drop()

	if !isLeafPage(leaf.Page()) {
		// Tree restructured under us; the page we upgraded is no longer a leaf.
		return false, false, nil
	}

	v := t.leaf(leaf.Page())
	inRange, err := t.leafCoversKey(v, key)
	if err != nil {
		return false, false, err
	}
	if !inRange {
		// A split completed in the gap between the read and write latch;
		// key now belongs to a sibling this pass never looked at.
		return false, false, nil
	}
	idx := t.leafSearch(v, key)
	if idx >= 0 && t.cmp(v.keyAt(idx), key) == 0 {
		return false, true, nil
	}
	if !t.isSafeForInsert(leaf) {
		return false, false, nil
	}
	v.insertAt(idx+1, key, value)
	return true, true, nil
}

// insertPessimistic descends holding write latches on every node whose
// safety is not yet established, releasing ancestors the moment a node is
// found safe, then inserts and propagates any split upward.
func (t *BPlusTree[K, V]) insertPessimistic(key K, value V) (bool, error) {
	hdr, err := t.bpm.FetchPageWrite(t.headerPageID, replacer.AccessIndex)
	if err != nil {
		return false, fmt.Errorf("bplustree: insert: %w", err)
	}
	hdrHeld := true

	root := rootPageID(hdr.Page())
	if root == page.InvalidID {
		leaf, err := t.newLeaf()
		if err != nil {
			hdr.Drop()
			return false, fmt.Errorf("bplustree: insert: %w", err)
		}
		t.leaf(leaf.Page()).insertAt(0, key, value)
		setRootPageID(hdr.Page(), leaf.PageID())
		leaf.Drop()
		hdr.Drop()
		return true, nil
	}

	cur, err := t.bpm.FetchPageWrite(root, replacer.AccessIndex)
	if err != nil {
		hdr.Drop()
		return false, fmt.Errorf("bplustree: insert: %w", err)
	}

	var path []buffer.WritePageGuard
	for !isLeafPage(cur.Page()) {
		if t.isSafeForInsert(cur) {
			releasePath(path)
			path = path[:0]
			if hdrHeld {
				hdr.Drop()
				hdrHeld = false
			}
		}
		iv := t.internal(cur.Page())
		idx := t.internalSearch(iv, key)
		childID := iv.childAt(idx)
		path = append(path, cur)
		child, err := t.bpm.FetchPageWrite(childID, replacer.AccessIndex)
		if err != nil {
			releasePath(path)
			if hdrHeld {
				hdr.Drop()
			}
			return false, fmt.Errorf("bplustree: insert: %w", err)
		}
		cur = child
	}

	lv := t.leaf(cur.Page())
	dupIdx := t.leafSearch(lv, key)
	if dupIdx >= 0 && t.cmp(lv.keyAt(dupIdx), key) == 0 {
		cur.Drop()
		releasePath(path)
		if hdrHeld {
			hdr.Drop()
		}
		return false, nil
	}

	leafSafe := t.isSafeForInsert(cur)
	if leafSafe {
		releasePath(path)
		path = path[:0]
		if hdrHeld {
			hdr.Drop()
			hdrHeld = false
		}
	}
	lv.insertAt(dupIdx+1, key, value)

	if lv.size() <= t.leafMax {
		cur.Drop()
		releasePath(path)
		if hdrHeld {
			hdr.Drop()
		}
		return true, nil
	}

	left := cur
	right, upKey, err := t.splitLeaf(left)
	if err != nil {
		left.Drop()
		releasePath(path)
		if hdrHeld {
			hdr.Drop()
		}
		return false, fmt.Errorf("bplustree: insert: %w", err)
	}

	for {
		if len(path) == 0 {
			if err := t.createNewRoot(hdr, left.PageID(), upKey, right.PageID()); err != nil {
				left.Drop()
				right.Drop()
				hdr.Drop()
				return false, fmt.Errorf("bplustree: insert: %w", err)
			}
			left.Drop()
			right.Drop()
			hdr.Drop()
			return true, nil
		}

		parent := path[len(path)-1]
		path = path[:len(path)-1]

		iv := t.internal(parent.Page())
		idx := findChildIndex(iv, left.PageID())
		iv.insertAt(idx+1, upKey, right.PageID())
		left.Drop()
		right.Drop()

		if iv.size() <= t.internalMax {
			parent.Drop()
			releasePath(path)
			if hdrHeld {
				hdr.Drop()
			}
			return true, nil
		}

		left = parent
		right, upKey, err = t.splitInternal(left)
		if err != nil {
			left.Drop()
			releasePath(path)
			if hdrHeld {
				hdr.Drop()
			}
			return false, fmt.Errorf("bplustree: insert: %w", err)
		}
	}
}
