package txn

import (
	"testing"

	"FerroDB/storage/heap"
	"FerroDB/storage/rid"
)

type stubLocks struct {
	released []int64
}

func (s *stubLocks) ReleaseAll(tx *Transaction) {
	s.released = append(s.released, tx.ID)
}

type heapCall struct {
	kind  string
	r     rid.RID
	meta  heap.TupleMeta
	tuple string
}

type stubHeap struct {
	calls []heapCall
}

func (h *stubHeap) UpdateTupleMeta(r rid.RID, meta heap.TupleMeta) error {
	h.calls = append(h.calls, heapCall{kind: "meta", r: r, meta: meta})
	return nil
}

func (h *stubHeap) UpdateTupleInPlace(r rid.RID, tuple []byte) error {
	h.calls = append(h.calls, heapCall{kind: "tuple", r: r, tuple: string(tuple)})
	return nil
}

type indexCall struct {
	kind string
	key  any
	r    rid.RID
}

type stubIndex struct {
	calls []indexCall
}

func (idx *stubIndex) InsertEntry(key any, r rid.RID) error {
	idx.calls = append(idx.calls, indexCall{kind: "insert", key: key, r: r})
	return nil
}

func (idx *stubIndex) DeleteEntry(key any, r rid.RID) error {
	idx.calls = append(idx.calls, indexCall{kind: "delete", key: key, r: r})
	return nil
}

func TestBeginAllocatesMonotonicIDsInGrowingState(t *testing.T) {
	m := NewManager(&stubLocks{}, nil)
	tx1 := m.Begin(RepeatableRead)
	tx2 := m.Begin(RepeatableRead)

	if tx1.ID == tx2.ID {
		t.Fatalf("Begin returned two transactions with the same id %d", tx1.ID)
	}
	if tx1.GetState() != StateGrowing {
		t.Errorf("new transaction state = %v, want GROWING", tx1.GetState())
	}
	if m.GetTransaction(tx1.ID) != tx1 {
		t.Error("GetTransaction did not return the transaction Begin created")
	}
}

func TestCommitReleasesLocksAndRetires(t *testing.T) {
	locks := &stubLocks{}
	m := NewManager(locks, nil)
	tx := m.Begin(RepeatableRead)

	if err := m.Commit(tx); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if tx.GetState() != StateCommitted {
		t.Errorf("state after Commit = %v, want COMMITTED", tx.GetState())
	}
	if len(locks.released) != 1 || locks.released[0] != tx.ID {
		t.Errorf("ReleaseAll calls = %v, want [%d]", locks.released, tx.ID)
	}
	if m.GetTransaction(tx.ID) != nil {
		t.Error("committed transaction is still active")
	}
}

func TestCommitAfterAbortFails(t *testing.T) {
	m := NewManager(&stubLocks{}, nil)
	tx := m.Begin(RepeatableRead)
	if err := m.Abort(tx); err != nil {
		t.Fatalf("Abort: %v", err)
	}
	if err := m.Commit(tx); err == nil {
		t.Error("Commit after Abort should fail")
	}
}

func TestAbortAfterCommitFails(t *testing.T) {
	m := NewManager(&stubLocks{}, nil)
	tx := m.Begin(RepeatableRead)
	if err := m.Commit(tx); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if err := m.Abort(tx); err == nil {
		t.Error("Abort after Commit should fail")
	}
}

func TestAbortUndoesWritesInReverseOrder(t *testing.T) {
	locks := &stubLocks{}
	m := NewManager(locks, nil)
	tx := m.Begin(RepeatableRead)

	h := &stubHeap{}
	idx := &stubIndex{}

	rInsert := rid.RID{PageID: 1, Slot: 0}
	rDelete := rid.RID{PageID: 1, Slot: 1}
	rUpdate := rid.RID{PageID: 1, Slot: 2}

	tx.RecordInsert(h, rInsert)
	tx.RecordDelete(h, rDelete, heap.TupleMeta{IsDeleted: false})
	tx.RecordUpdate(h, rUpdate, heap.TupleMeta{IsDeleted: false}, []byte("old"))
	tx.RecordIndexInsert(idx, int32(7), rInsert)
	tx.RecordIndexDelete(idx, int32(8), rDelete)

	if err := m.Abort(tx); err != nil {
		t.Fatalf("Abort: %v", err)
	}

	if tx.GetState() != StateAborted {
		t.Errorf("state after Abort = %v, want ABORTED", tx.GetState())
	}

	wantHeap := []heapCall{
		{kind: "tuple", r: rUpdate, tuple: "old"},
		{kind: "meta", r: rUpdate, meta: heap.TupleMeta{IsDeleted: false}},
		{kind: "meta", r: rDelete, meta: heap.TupleMeta{IsDeleted: false}},
		{kind: "meta", r: rInsert, meta: heap.TupleMeta{IsDeleted: true}},
	}
	if len(h.calls) != len(wantHeap) {
		t.Fatalf("heap calls = %d, want %d: %+v", len(h.calls), len(wantHeap), h.calls)
	}
	for i, want := range wantHeap {
		if h.calls[i] != want {
			t.Errorf("heap call %d = %+v, want %+v", i, h.calls[i], want)
		}
	}

	wantIndex := []indexCall{
		{kind: "insert", key: int32(8), r: rDelete},
		{kind: "delete", key: int32(7), r: rInsert},
	}
	if len(idx.calls) != len(wantIndex) {
		t.Fatalf("index calls = %d, want %d: %+v", len(idx.calls), len(wantIndex), idx.calls)
	}
	for i, want := range wantIndex {
		if idx.calls[i] != want {
			t.Errorf("index call %d = %+v, want %+v", i, idx.calls[i], want)
		}
	}

	if len(locks.released) != 1 || locks.released[0] != tx.ID {
		t.Errorf("ReleaseAll calls = %v, want [%d]", locks.released, tx.ID)
	}
}

func TestTableAndRowLockModeBookkeeping(t *testing.T) {
	tx := newTransaction(1, RepeatableRead)

	if _, ok := tx.GetTableLockMode(1); ok {
		t.Error("fresh transaction reports a table lock mode")
	}

	tx.SetTableLockMode(1, LockX)
	mode, ok := tx.GetTableLockMode(1)
	if !ok || mode != LockX {
		t.Errorf("table lock mode = (%v, %v), want (X, true)", mode, ok)
	}

	r := rid.RID{PageID: 1, Slot: 0}
	if tx.RowLocksUnderTable(1) {
		t.Error("RowLocksUnderTable true before any row lock recorded")
	}
	tx.SetRowLockMode(r, LockS)
	if !tx.RowLocksUnderTable(1) {
		t.Error("RowLocksUnderTable false after a row lock was recorded")
	}

	tx.ClearRowLockMode(r)
	if tx.RowLocksUnderTable(1) {
		t.Error("RowLocksUnderTable true after the row lock was cleared")
	}

	tx.ClearTableLockMode(1)
	if _, ok := tx.GetTableLockMode(1); ok {
		t.Error("table lock mode still present after ClearTableLockMode")
	}
}
