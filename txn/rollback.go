package txn

import (
	"fmt"

	"FerroDB/storage/heap"
	"FerroDB/storage/rid"
)

// RecordInsert notes that tx inserted r into h, so an abort can mark it a
// tombstone again.
func (tx *Transaction) RecordInsert(h TableHeapUndo, r rid.RID) {
	tx.AppendWrite(WriteRecord{Type: WriteInsert, Heap: h, RID: r})
}

// RecordDelete notes that tx deleted r (live before the delete, with
// oldMeta), so an abort can clear the tombstone.
func (tx *Transaction) RecordDelete(h TableHeapUndo, r rid.RID, oldMeta heap.TupleMeta) {
	tx.AppendWrite(WriteRecord{Type: WriteDelete, Heap: h, RID: r, OldMeta: oldMeta})
}

// RecordUpdate notes that tx overwrote r's bytes, keeping the pre-update
// bytes and metadata so an abort can restore them.
func (tx *Transaction) RecordUpdate(h TableHeapUndo, r rid.RID, oldMeta heap.TupleMeta, oldTuple []byte) {
	tx.AppendWrite(WriteRecord{Type: WriteUpdate, Heap: h, RID: r, OldMeta: oldMeta, OldTuple: oldTuple})
}

// RecordIndexInsert notes that tx inserted (key, r) into idx.
func (tx *Transaction) RecordIndexInsert(idx Index, key any, r rid.RID) {
	tx.AppendIndexWrite(IndexWriteRecord{Type: IndexInsert, Index: idx, Key: key, RID: r})
}

// RecordIndexDelete notes that tx deleted (key, r) from idx.
func (tx *Transaction) RecordIndexDelete(idx Index, key any, r rid.RID) {
	tx.AppendIndexWrite(IndexWriteRecord{Type: IndexDelete, Index: idx, Key: key, RID: r})
}

// undo walks tx's write sets in reverse and inverts each record through
// the table-heap and index interfaces it was recorded against: INSERT
// becomes a tombstone, DELETE clears a tombstone, UPDATE restores the
// old tuple in place.
func (tx *Transaction) undo() error {
	tx.mu.Lock()
	writes := tx.writeSet
	indexWrites := tx.indexWriteSet
	tx.mu.Unlock()

	for i := len(writes) - 1; i >= 0; i-- {
		w := writes[i]
		var err error
		switch w.Type {
		case WriteInsert:
			err = w.Heap.UpdateTupleMeta(w.RID, heap.TupleMeta{IsDeleted: true})
		case WriteDelete:
			err = w.Heap.UpdateTupleMeta(w.RID, heap.TupleMeta{IsDeleted: false})
		case WriteUpdate:
			if err = w.Heap.UpdateTupleInPlace(w.RID, w.OldTuple); err == nil {
				err = w.Heap.UpdateTupleMeta(w.RID, w.OldMeta)
			}
		}
		if err != nil {
			return fmt.Errorf("txn: undo write %d: %w", i, err)
		}
	}

	for i := len(indexWrites) - 1; i >= 0; i-- {
		w := indexWrites[i]
		var err error
		switch w.Type {
		case IndexInsert:
			err = w.Index.DeleteEntry(w.Key, w.RID)
		case IndexDelete:
			err = w.Index.InsertEntry(w.Key, w.RID)
		}
		if err != nil {
			return fmt.Errorf("txn: undo index write %d: %w", i, err)
		}
	}
	return nil
}
