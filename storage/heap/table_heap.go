// Package heap supplies a minimal in-memory table heap: tuple bytes and
// per-row metadata keyed by RID. It exists so TransactionManager.Abort has
// a write set to replay against end to end, not as a disk-backed heap file
// (that subsystem, with its slotted-page layout and row codecs, remains
// out of scope).
package heap

import (
	"fmt"
	"sync"

	"FerroDB/storage/rid"
)

// TupleMeta carries the one piece of row metadata undo needs: whether the
// row is logically deleted. A delete never removes bytes from the heap —
// it flips IsDeleted — so Abort can flip it back.
type TupleMeta struct {
	IsDeleted bool
}

type row struct {
	meta  TupleMeta
	bytes []byte
}

// TableHeap is a RID-keyed store of tuple bytes and metadata, guarded by a
// single mutex; it is not latched or crabbed like the page store, since it
// exists only to exercise undo, not to model heap-file concurrency.
type TableHeap struct {
	mu      sync.Mutex
	rows    map[rid.RID]row
	nextPg  int32
	nextSlt uint32
}

func New() *TableHeap {
	return &TableHeap{rows: make(map[rid.RID]row)}
}

// Insert appends tuple and returns the RID it was assigned.
func (h *TableHeap) Insert(tuple []byte) rid.RID {
	h.mu.Lock()
	defer h.mu.Unlock()

	r := rid.RID{PageID: h.nextPg, Slot: h.nextSlt}
	h.nextSlt++
	if h.nextSlt == 0 {
		h.nextPg++
	}
	buf := make([]byte, len(tuple))
	copy(buf, tuple)
	h.rows[r] = row{bytes: buf}
	return r
}

// GetTuple returns a copy of the tuple bytes and metadata at r.
func (h *TableHeap) GetTuple(r rid.RID) ([]byte, TupleMeta, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	rw, ok := h.rows[r]
	if !ok {
		return nil, TupleMeta{}, fmt.Errorf("heap: no such row %s", r)
	}
	out := make([]byte, len(rw.bytes))
	copy(out, rw.bytes)
	return out, rw.meta, nil
}

// UpdateTupleMeta overwrites the metadata at r, used by Delete and by
// undo to flip IsDeleted back off.
func (h *TableHeap) UpdateTupleMeta(r rid.RID, meta TupleMeta) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	rw, ok := h.rows[r]
	if !ok {
		return fmt.Errorf("heap: no such row %s", r)
	}
	rw.meta = meta
	h.rows[r] = rw
	return nil
}

// Delete marks r as logically deleted without erasing its bytes, so an
// abort can undo the delete by clearing IsDeleted again.
func (h *TableHeap) Delete(r rid.RID) error {
	return h.UpdateTupleMeta(r, TupleMeta{IsDeleted: true})
}

// UpdateTupleInPlace overwrites the bytes at r, used by an update and by
// undo to restore the pre-update bytes
func (h *TableHeap) UpdateTupleInPlace(r rid.RID, tuple []byte) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	rw, ok := h.rows[r]
	if !ok {
		return fmt.Errorf("heap: no such row %s", r)
	}
	buf := make([]byte, len(tuple))
	copy(buf, tuple)
	rw.bytes = buf
	h.rows[r] = rw
	return nil
}
