package bplustree

import (
	"fmt"

	"FerroDB/storage/buffer"
	"FerroDB/storage/page"
	"FerroDB/storage/replacer"
)

// newLeaf allocates and initialises a fresh, empty leaf page, returned
// write-latched and pinned.
func (t *BPlusTree[K, V]) newLeaf() (buffer.WritePageGuard, error) {
	g, err := t.bpm.NewPageGuardedWrite(replacer.AccessIndex)
	if err != nil {
		return buffer.WritePageGuard{}, fmt.Errorf("bplustree: new leaf: %w", err)
	}
	t.leaf(g.Page()).init(t.leafMax)
	return g, nil
}

// newInternal allocates and initialises a fresh, empty internal page,
// returned write-latched and pinned.
func (t *BPlusTree[K, V]) newInternal() (buffer.WritePageGuard, error) {
	g, err := t.bpm.NewPageGuardedWrite(replacer.AccessIndex)
	if err != nil {
		return buffer.WritePageGuard{}, fmt.Errorf("bplustree: new internal: %w", err)
	}
	t.internal(g.Page()).init(t.internalMax)
	return g, nil
}

func isLeafPage(pg *page.Page) bool { return pageType(pg) == nodeLeaf }

// isSafeForInsert reports whether g's page is guaranteed not to split if it
// receives one more entry (leaf: one more key/value; internal: one more
// separator/child).
func (t *BPlusTree[K, V]) isSafeForInsert(g buffer.WritePageGuard) bool {
	pg := g.Page()
	if isLeafPage(pg) {
		return t.leaf(pg).size() < t.leafMax
	}
	return t.internal(pg).size() < t.internalMax
}

// isSafeForRemove reports whether g's page is guaranteed not to underflow
// if one entry is removed from it — leaf size is > leafMin, internal
// size is > internalMin (one key to spare above the child-count
// minimum), so after the removal the size is still >= the minimum.
func (t *BPlusTree[K, V]) isSafeForRemove(g buffer.WritePageGuard) bool {
	pg := g.Page()
	if isLeafPage(pg) {
		return t.leaf(pg).size() > t.leafMin
	}
	return t.internal(pg).size() > t.internalMin
}

// findChildIndex returns the slot i such that internal.child[i] == childID,
// or -1 if not found.
func findChildIndex[K any, V any](v internalView[K, V], childID int32) int {
	for i := 0; i <= v.size(); i++ {
		if v.childAt(i) == childID {
			return i
		}
	}
	return -1
}
