package bplustree

import (
	"fmt"

	"FerroDB/storage/buffer"
	"FerroDB/storage/page"
)

// createNewRoot allocates a new internal page with left and right as its
// two children, separated by upKey, and installs it as the tree's root
// The caller retains ownership of hdr and left/
// right and must drop them.
func (t *BPlusTree[K, V]) createNewRoot(hdr buffer.WritePageGuard, left int32, upKey K, right int32) error {
	root, err := t.newInternal()
	if err != nil {
		return fmt.Errorf("bplustree: create new root: %w", err)
	}
	iv := t.internal(root.Page())
	iv.setChildAt(0, left)
	iv.insertAt(1, upKey, right)

	setRootPageID(hdr.Page(), root.PageID())
	root.Drop()
	return nil
}

// shrinkRootToChild replaces a single-child root with that child by
// rewriting the header's root pointer. The old root page is not freed: it
// stays allocated in the buffer pool and on disk.
func (t *BPlusTree[K, V]) shrinkRootToChild(hdr buffer.WritePageGuard, child int32) {
	setRootPageID(hdr.Page(), child)
}

// clearRoot marks the tree empty, used when the last entry is removed.
func (t *BPlusTree[K, V]) clearRoot(hdr buffer.WritePageGuard) {
	setRootPageID(hdr.Page(), page.InvalidID)
}
