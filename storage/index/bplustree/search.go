package bplustree

import (
	"errors"
	"fmt"
)

// GetValue looks up key and reports whether it is present.
func (t *BPlusTree[K, V]) GetValue(key K) (V, bool, error) {
	var zero V

	leaf, err := t.findLeafForRead(key)
	if err != nil {
		if errors.Is(err, errEmptyTree) {
			return zero, false, nil
		}
		return zero, false, fmt.Errorf("bplustree: get value: %w", err)
	}
	defer leaf.Drop()

	v := t.leaf(leaf.Page())
	idx := t.leafSearch(v, key)
	if idx == -1 || t.cmp(v.keyAt(idx), key) != 0 {
		return zero, false, nil
	}
	return v.valueAt(idx), true, nil
}
