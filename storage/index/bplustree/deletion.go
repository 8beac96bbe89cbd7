package bplustree

import (
	"fmt"

	"FerroDB/storage/buffer"
	"FerroDB/storage/page"
	"FerroDB/storage/replacer"
)

// canLend reports whether g's page has an entry to spare for a borrowing
// sibling without itself underflowing.
func (t *BPlusTree[K, V]) canLend(g buffer.WritePageGuard) bool {
	pg := g.Page()
	if isLeafPage(pg) {
		return t.leaf(pg).size() > t.leafMin
	}
	return t.internal(pg).size() > t.internalMin
}

func (t *BPlusTree[K, V]) borrowFromLeft(left, cur buffer.WritePageGuard, parent internalView[K, V], idx int) {
	if isLeafPage(cur.Page()) {
		lv, cv := t.leaf(left.Page()), t.leaf(cur.Page())
		n := lv.size()
		k, v := lv.keyAt(n-1), lv.valueAt(n-1)
		lv.removeAt(n - 1)
		cv.insertAt(0, k, v)
		parent.setKeyAt(idx, cv.keyAt(0))
		return
	}
	liv, civ := t.internal(left.Page()), t.internal(cur.Page())
	n := liv.size()
	sep := parent.keyAt(idx)
	borrowedChild := liv.childAt(n)
	newSep := liv.keyAt(n)
	liv.removeAt(n)
	civ.insertAt(1, sep, civ.childAt(0))
	civ.setChildAt(0, borrowedChild)
	parent.setKeyAt(idx, newSep)
}

func (t *BPlusTree[K, V]) borrowFromRight(cur, right buffer.WritePageGuard, parent internalView[K, V], idx int) {
	if isLeafPage(cur.Page()) {
		rv, cv := t.leaf(right.Page()), t.leaf(cur.Page())
		k, v := rv.keyAt(0), rv.valueAt(0)
		rv.removeAt(0)
		cv.insertAt(cv.size(), k, v)
		parent.setKeyAt(idx+1, rv.keyAt(0))
		return
	}
	civ, riv := t.internal(cur.Page()), t.internal(right.Page())
	sep := parent.keyAt(idx + 1)
	borrowedChild := riv.childAt(0)
	newSep := riv.keyAt(1)
	newChild0 := riv.childAt(1)
	riv.removeAt(1)
	riv.setChildAt(0, newChild0)
	civ.insertAt(civ.size()+1, sep, borrowedChild)
	parent.setKeyAt(idx+1, newSep)
}

// mergeInto absorbs right into left, removing the separator and right's
// slot (at idx, right's position) from parent. Caller drops both guards.
func (t *BPlusTree[K, V]) mergeInto(left, right buffer.WritePageGuard, parent internalView[K, V], idx int) {
	if isLeafPage(left.Page()) {
		lv, rv := t.leaf(left.Page()), t.leaf(right.Page())
		for i := 0; i < rv.size(); i++ {
			lv.insertAt(lv.size(), rv.keyAt(i), rv.valueAt(i))
		}
		lv.setNext(rv.next())
		parent.removeAt(idx)
		return
	}
	liv, riv := t.internal(left.Page()), t.internal(right.Page())
	sep := parent.keyAt(idx)
	liv.insertAt(liv.size()+1, sep, riv.childAt(0))
	for i := 1; i <= riv.size(); i++ {
		liv.insertAt(liv.size()+1, riv.keyAt(i), riv.childAt(i))
	}
	parent.removeAt(idx)
}

// Remove deletes key, reporting false if it was not present.
func (t *BPlusTree[K, V]) Remove(key K) (bool, error) {
	if ok, done, err := t.removeOptimistic(key); done {
		return ok, err
	}
	return t.removePessimistic(key)
}

func (t *BPlusTree[K, V]) removeOptimistic(key K) (ok bool, done bool, err error) {
	leafRead, err := t.findLeafForRead(key)
	if err != nil {
		if err == errEmptyTree {
			return false, true, nil
		}
		return false, false, fmt.Errorf("bplustree: remove: %w", err)
	}
	leafID := leafRead.PageID()
	leafRead.Drop()

	leaf, err := t.bpm.FetchPageWrite(leafID, replacer.AccessIndex)
	if err != nil {
		return false, false, fmt.Errorf("bplustree: remove: %w", err)
	}
	defer leaf.Drop()

	if !isLeafPage(leaf.Page()) {
		return false, false, nil
	}

	v := t.leaf(leaf.Page())
	inRange, err := t.leafCoversKey(v, key)
	if err != nil {
		return false, false, err
	}
	if !inRange {
		// A split completed in the gap between the read and write latch;
		// key may actually be present, just in the sibling it moved to.
		return false, false, nil
	}
	idx := t.leafSearch(v, key)
	if idx < 0 || t.cmp(v.keyAt(idx), key) != 0 {
		return false, true, nil
	}
	if !t.canLend(leaf) {
		return false, false, nil
	}
	v.removeAt(idx)
	return true, true, nil
}

// removePessimistic descends holding write latches on every ancestor not
// yet known safe, removes the key at the leaf, and if that underflows the
// leaf, repairs by borrowing from a sibling or merging, propagating the
// repair upward exactly as far as necessary.
func (t *BPlusTree[K, V]) removePessimistic(key K) (bool, error) {
	hdr, err := t.bpm.FetchPageWrite(t.headerPageID, replacer.AccessIndex)
	if err != nil {
		return false, fmt.Errorf("bplustree: remove: %w", err)
	}
	hdrHeld := true

	root := rootPageID(hdr.Page())
	if root == page.InvalidID {
		hdr.Drop()
		return false, nil
	}

	cur, err := t.bpm.FetchPageWrite(root, replacer.AccessIndex)
	if err != nil {
		hdr.Drop()
		return false, fmt.Errorf("bplustree: remove: %w", err)
	}

	var path []buffer.WritePageGuard
	for !isLeafPage(cur.Page()) {
		if t.isSafeForRemove(cur) {
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
			return false, fmt.Errorf("bplustree: remove: %w", err)
		}
		cur = child
	}

	lv := t.leaf(cur.Page())
	idx := t.leafSearch(lv, key)
	if idx < 0 || t.cmp(lv.keyAt(idx), key) != 0 {
		cur.Drop()
		releasePath(path)
		if hdrHeld {
			hdr.Drop()
		}
		return false, nil
	}

	safe := t.canLend(cur)
	if safe {
		releasePath(path)
		path = path[:0]
		if hdrHeld {
			hdr.Drop()
			hdrHeld = false
		}
	}
	lv.removeAt(idx)

	if safe || lv.size() >= t.leafMin {
		cur.Drop()
		releasePath(path)
		if hdrHeld {
			hdr.Drop()
		}
		return true, nil
	}

	for {
		if len(path) == 0 {
			if !isLeafPage(cur.Page()) && t.internal(cur.Page()).size() == 0 {
				t.shrinkRootToChild(hdr, t.internal(cur.Page()).childAt(0))
			} else if isLeafPage(cur.Page()) && t.leaf(cur.Page()).size() == 0 {
				t.clearRoot(hdr)
			}
			cur.Drop()
			if hdrHeld {
				hdr.Drop()
			}
			return true, nil
		}

		parent := path[len(path)-1]
		path = path[:len(path)-1]
		pv := t.internal(parent.Page())
		idx := findChildIndex(pv, cur.PageID())

		var left, right buffer.WritePageGuard
		haveLeft, haveRight := false, false
		if idx > 0 {
			left, err = t.bpm.FetchPageWrite(pv.childAt(idx-1), replacer.AccessIndex)
			if err != nil {
				cur.Drop()
				parent.Drop()
				releasePath(path)
				if hdrHeld {
					hdr.Drop()
				}
				return false, fmt.Errorf("bplustree: remove: %w", err)
			}
			haveLeft = true
		}
		if idx < pv.size() {
			right, err = t.bpm.FetchPageWrite(pv.childAt(idx+1), replacer.AccessIndex)
			if err != nil {
				if haveLeft {
					left.Drop()
				}
				cur.Drop()
				parent.Drop()
				releasePath(path)
				if hdrHeld {
					hdr.Drop()
				}
				return false, fmt.Errorf("bplustree: remove: %w", err)
			}
			haveRight = true
		}

		if haveLeft && t.canLend(left) {
			t.borrowFromLeft(left, cur, pv, idx)
			left.Drop()
			if haveRight {
				right.Drop()
			}
			cur.Drop()
			parent.Drop()
			releasePath(path)
			if hdrHeld {
				hdr.Drop()
			}
			return true, nil
		}
		if haveRight && t.canLend(right) {
			t.borrowFromRight(cur, right, pv, idx)
			right.Drop()
			if haveLeft {
				left.Drop()
			}
			cur.Drop()
			parent.Drop()
			releasePath(path)
			if hdrHeld {
				hdr.Drop()
			}
			return true, nil
		}

		if haveLeft {
			t.mergeInto(left, cur, pv, idx)
			left.Drop()
			if haveRight {
				right.Drop()
			}
			cur.Drop()
		} else {
			t.mergeInto(cur, right, pv, idx+1)
			right.Drop()
			cur.Drop()
		}

		cur = parent
		if len(path) == 0 {
			continue
		}
		// cur already absorbed the removeAt from the merge above, so this
		// asks a one-entry-stricter question than "did cur underflow" —
		// false here just sends the loop around for one more level of
		// parent rather than missing a repair, and path still holds a
		// write latch on every ancestor the descent didn't already prove
		// safe, so no latch is dropped before it's known not to need this.
		if t.isSafeForRemove(cur) {
			cur.Drop()
			releasePath(path)
			if hdrHeld {
				hdr.Drop()
			}
			return true, nil
		}
	}
}
