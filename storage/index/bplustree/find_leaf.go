package bplustree

import (
	"errors"
	"fmt"

	"FerroDB/storage/buffer"
	"FerroDB/storage/page"
	"FerroDB/storage/replacer"
)

// errEmptyTree is returned by descents started on a tree with no root.
var errEmptyTree = errors.New("bplustree: tree is empty")

// findLeafForRead performs latch-crabbing descent for readers: take the
// header read latch, then the root, then as each child is reached release
// the parent and retain the child. It is always safe to release a parent
// immediately under a read-only descent.
func (t *BPlusTree[K, V]) findLeafForRead(key K) (buffer.ReadPageGuard, error) {
	hdr, err := t.bpm.FetchPageRead(t.headerPageID, replacer.AccessIndex)
	if err != nil {
		return buffer.ReadPageGuard{}, fmt.Errorf("bplustree: find leaf: %w", err)
	}

	root := rootPageID(hdr.Page())
	if root == page.InvalidID {
		hdr.Drop()
		return buffer.ReadPageGuard{}, errEmptyTree
	}

	cur, err := t.bpm.FetchPageRead(root, replacer.AccessIndex)
	hdr.Drop()
	if err != nil {
		return buffer.ReadPageGuard{}, fmt.Errorf("bplustree: find leaf: %w", err)
	}

	for !isLeafPage(cur.Page()) {
		idx := t.internalSearch(t.internal(cur.Page()), key)
		childID := t.internal(cur.Page()).childAt(idx)
		child, err := t.bpm.FetchPageRead(childID, replacer.AccessIndex)
		cur.Drop()
		if err != nil {
			return buffer.ReadPageGuard{}, fmt.Errorf("bplustree: find leaf: %w", err)
		}
		cur = child
	}
	return cur, nil
}

// leafCoversKey reports whether key still belongs in the leaf v was read
// from, guarding against a concurrent split that completed between an
// optimistic pass dropping its read latch and re-acquiring the leaf under a
// write latch. Such a split can move key's half of the leaf to a new right
// sibling, so the check peeks at that sibling's first key under its own
// read latch rather than trusting the stale descent.
func (t *BPlusTree[K, V]) leafCoversKey(v leafView[K, V], key K) (bool, error) {
	nextID := v.next()
	if nextID == page.InvalidID {
		return true, nil
	}
	next, err := t.bpm.FetchPageRead(nextID, replacer.AccessIndex)
	if err != nil {
		return false, fmt.Errorf("bplustree: leaf range check: %w", err)
	}
	defer next.Drop()
	nv := t.leaf(next.Page())
	if nv.size() == 0 {
		return true, nil
	}
	return t.cmp(key, nv.keyAt(0)) < 0, nil
}
