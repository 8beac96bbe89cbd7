package bplustree

import (
	"fmt"

	"FerroDB/storage/rid"
)

// IndexAdapter exposes a BPlusTree[K, rid.RID] through the boxed-key
// interface the transaction manager's undo path consumes: insert/delete
// taking an opaque key. It exists only so the transaction manager's
// write-set replay can depend on an interface instead of a concrete
// generic tree.
type IndexAdapter[K any] struct {
	Tree *BPlusTree[K, rid.RID]
}

func (a IndexAdapter[K]) InsertEntry(key any, r rid.RID) error {
	k, ok := key.(K)
	if !ok {
		return fmt.Errorf("bplustree: index adapter: key type mismatch")
	}
	_, err := a.Tree.Insert(k, r)
	return err
}

func (a IndexAdapter[K]) DeleteEntry(key any, r rid.RID) error {
	k, ok := key.(K)
	if !ok {
		return fmt.Errorf("bplustree: index adapter: key type mismatch")
	}
	_, err := a.Tree.Remove(k)
	return err
}
