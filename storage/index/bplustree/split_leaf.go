package bplustree

import (
	"fmt"

	"FerroDB/storage/buffer"
)

// splitLeaf splits left, which currently holds one entry more than
// leafMax, into two leaves. The pivot is chosen so the new right leaf is
// no smaller than the surviving left leaf; the pushed-up separator is the
// new right leaf's first key.
func (t *BPlusTree[K, V]) splitLeaf(left buffer.WritePageGuard) (buffer.WritePageGuard, K, error) {
	var zero K

	right, err := t.newLeaf()
	if err != nil {
		return buffer.WritePageGuard{}, zero, fmt.Errorf("bplustree: split leaf: %w", err)
	}

	lv := t.leaf(left.Page())
	rv := t.leaf(right.Page())

	n := lv.size()
	pivot := n / 2

	for i := pivot; i < n; i++ {
		rv.insertAt(i-pivot, lv.keyAt(i), lv.valueAt(i))
	}
	rv.setNext(lv.next())
	setPageSize(left.Page(), pivot)
	lv.setNext(right.PageID())

	upKey := rv.keyAt(0)
	return right, upKey, nil
}
