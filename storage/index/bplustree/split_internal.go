package bplustree

import (
	"fmt"

	"FerroDB/storage/buffer"
)

// splitInternal splits left, which currently holds one separator/child
// more than internalMax, promoting the separator at the pivot and making
// the child it pointed to the new right internal's slot 0.
func (t *BPlusTree[K, V]) splitInternal(left buffer.WritePageGuard) (buffer.WritePageGuard, K, error) {
	var zero K

	right, err := t.newInternal()
	if err != nil {
		return buffer.WritePageGuard{}, zero, fmt.Errorf("bplustree: split internal: %w", err)
	}

	lv := t.internal(left.Page())
	rv := t.internal(right.Page())

	n := lv.size()
	pivot := (n + 1) / 2

	rv.setChildAt(0, lv.childAt(pivot))
	j := 1
	for i := pivot + 1; i <= n; i++ {
		rv.insertAt(j, lv.keyAt(i), lv.childAt(i))
		j++
	}

	upKey := lv.keyAt(pivot)
	setPageSize(left.Page(), pivot-1)
	return right, upKey, nil
}
