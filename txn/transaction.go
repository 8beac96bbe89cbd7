package txn

import (
	"sync"
	"sync/atomic"

	"FerroDB/storage/heap"
	"FerroDB/storage/rid"
)

// State is the strict-2PL phase a transaction is in.
type State uint8

const (
	StateGrowing State = iota
	StateShrinking
	StateCommitted
	StateAborted
)

func (s State) String() string {
	switch s {
	case StateGrowing:
		return "GROWING"
	case StateShrinking:
		return "SHRINKING"
	case StateCommitted:
		return "COMMITTED"
	case StateAborted:
		return "ABORTED"
	default:
		return "UNKNOWN"
	}
}

// Isolation is one of the three levels the lock manager enforces
// differently
type Isolation uint8

const (
	ReadUncommitted Isolation = iota
	ReadCommitted
	RepeatableRead
)

// LockMode is defined here, not in the lock package, so Transaction can
// hold per-object mode sets without the lock package importing back into
// txn (the lock manager imports txn for *Transaction and LockMode both).
type LockMode uint8

const (
	LockIS LockMode = iota
	LockIX
	LockS
	LockSIX
	LockX
)

func (m LockMode) String() string {
	switch m {
	case LockIS:
		return "IS"
	case LockIX:
		return "IX"
	case LockS:
		return "S"
	case LockSIX:
		return "SIX"
	case LockX:
		return "X"
	default:
		return "?"
	}
}

// WriteRecordType distinguishes the three kinds of table-heap write undo
// must invert
type WriteRecordType uint8

const (
	WriteInsert WriteRecordType = iota
	WriteDelete
	WriteUpdate
)

// WriteRecord is one entry of a transaction's table-level write set. Heap
// is the table the write landed in, held as a boxed interface so Abort
// never needs to know about catalog/table lookup.
type WriteRecord struct {
	Type     WriteRecordType
	Heap     TableHeapUndo
	RID      rid.RID
	OldMeta  heap.TupleMeta
	OldTuple []byte
}

// IndexWriteRecordType distinguishes the two kinds of index write undo
// must invert.
type IndexWriteRecordType uint8

const (
	IndexInsert IndexWriteRecordType = iota
	IndexDelete
)

// IndexWriteRecord is one entry of a transaction's index write set.
type IndexWriteRecord struct {
	Type  IndexWriteRecordType
	Index Index
	Key   any
	RID   rid.RID
}

// TableHeapUndo is the subset of TableHeap's interface undo needs
type TableHeapUndo interface {
	UpdateTupleMeta(r rid.RID, meta heap.TupleMeta) error
	UpdateTupleInPlace(r rid.RID, tuple []byte) error
}

// Index is the subset of an index's interface undo needs: insert and
// delete an entry keyed by a boxed key, since a transaction's index write
// set spans indexes over different key types.
type Index interface {
	InsertEntry(key any, r rid.RID) error
	DeleteEntry(key any, r rid.RID) error
}

// Transaction is the unit of atomicity and isolation All fields
// besides the id are mutated only by the owning goroutine and by the
// lock manager (held-lock sets, state) under the relevant queue mutex.
type Transaction struct {
	ID        int64
	Isolation Isolation

	state atomic.Int32

	mu sync.Mutex

	tableLocks map[int32]LockMode
	rowLocks   map[rid.RID]LockMode

	writeSet      []WriteRecord
	indexWriteSet []IndexWriteRecord
}

func newTransaction(id int64, isolation Isolation) *Transaction {
	tx := &Transaction{
		ID:         id,
		Isolation:  isolation,
		tableLocks: make(map[int32]LockMode),
		rowLocks:   make(map[rid.RID]LockMode),
	}
	tx.state.Store(int32(StateGrowing))
	return tx
}

// GetTableLockMode returns the mode tx holds on table oid, if any.
func (tx *Transaction) GetTableLockMode(oid int32) (LockMode, bool) {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	m, ok := tx.tableLocks[oid]
	return m, ok
}

// SetTableLockMode records that tx now holds mode on table oid.
func (tx *Transaction) SetTableLockMode(oid int32, mode LockMode) {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	tx.tableLocks[oid] = mode
}

// ClearTableLockMode forgets tx's lock on table oid.
func (tx *Transaction) ClearTableLockMode(oid int32) {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	delete(tx.tableLocks, oid)
}

// GetRowLockMode returns the mode tx holds on row r, if any.
func (tx *Transaction) GetRowLockMode(r rid.RID) (LockMode, bool) {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	m, ok := tx.rowLocks[r]
	return m, ok
}

// SetRowLockMode records that tx now holds mode on row r.
func (tx *Transaction) SetRowLockMode(r rid.RID, mode LockMode) {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	tx.rowLocks[r] = mode
}

// ClearRowLockMode forgets tx's lock on row r.
func (tx *Transaction) ClearRowLockMode(r rid.RID) {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	delete(tx.rowLocks, r)
}

// RowLocksUnderTable reports whether tx still holds any row lock, used by
// the lock manager's TABLE_UNLOCKED_BEFORE_UNLOCKING_ROWS check — the
// spec scopes this per table via the catalog, which is out of scope here,
// so this degrades to "holds any row lock at all".
func (tx *Transaction) RowLocksUnderTable(int32) bool {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	return len(tx.rowLocks) > 0
}

// AppendWrite adds a table-heap undo record to tx's write set.
func (tx *Transaction) AppendWrite(r WriteRecord) {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	tx.writeSet = append(tx.writeSet, r)
}

// AppendIndexWrite adds an index undo record to tx's index write set.
func (tx *Transaction) AppendIndexWrite(r IndexWriteRecord) {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	tx.indexWriteSet = append(tx.indexWriteSet, r)
}

// TableOIDs returns the tables tx currently holds a lock on.
func (tx *Transaction) TableOIDs() []int32 {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	oids := make([]int32, 0, len(tx.tableLocks))
	for oid := range tx.tableLocks {
		oids = append(oids, oid)
	}
	return oids
}

// RowRIDs returns the rows tx currently holds a lock on.
func (tx *Transaction) RowRIDs() []rid.RID {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	rids := make([]rid.RID, 0, len(tx.rowLocks))
	for r := range tx.rowLocks {
		rids = append(rids, r)
	}
	return rids
}

// SetState transitions tx's strict-2PL phase. The callers are the lock
// manager, the deadlock detector, and Manager's Commit and Abort.
func (tx *Transaction) SetState(s State) {
	tx.state.Store(int32(s))
}

// GetState reads tx's current strict-2PL phase.
func (tx *Transaction) GetState() State {
	return State(tx.state.Load())
}
