// Package lock implements the hierarchical table/row lock manager:
// multi-mode locks, upgrades, FIFO-fair batched granting, and (in
// deadlock.go) a background waits-for cycle detector
package lock

import (
	"fmt"
	"sync"

	"FerroDB/storage/rid"
	"FerroDB/txn"
)

// Reason is the specific rule a lock request violated, carried on
// Error so callers (and tests) can distinguish abort causes
type Reason string

const (
	ReasonIncompatibleUpgrade          Reason = "INCOMPATIBLE_UPGRADE"
	ReasonUpgradeConflict              Reason = "UPGRADE_CONFLICT"
	ReasonTableUnlockedBeforeRows      Reason = "TABLE_UNLOCKED_BEFORE_UNLOCKING_ROWS"
	ReasonAttemptedUnlockButNoLockHeld Reason = "ATTEMPTED_UNLOCK_BUT_NO_LOCK_HELD"
	ReasonLockOnShrinking              Reason = "LOCK_ON_SHRINKING"
	ReasonLockSharedOnReadUncommitted  Reason = "LOCK_SHARED_ON_READ_UNCOMMITTED"
	ReasonTransactionEnded             Reason = "TRANSACTION_ENDED"
	ReasonTableLockNotHeld             Reason = "TABLE_LOCK_NOT_HELD"
	ReasonDeadlockAborted              Reason = "DEADLOCK_ABORTED"
	ReasonAttemptedIntentionLockOnRow  Reason = "ATTEMPTED_INTENTION_LOCK_ON_ROW"
)

// Error reports a lock request rejected for a specific, named reason.
type Error struct {
	Reason Reason
	TxnID  int64
}

func (e *Error) Error() string {
	return fmt.Sprintf("lock: txn %d: %s", e.TxnID, e.Reason)
}

// request is one entry in a queue: a transaction's desire (or hold) on
// one mode of one object.
type request struct {
	tx     *txn.Transaction
	mode   txn.LockMode
	rid    rid.RID // zero value for table-level requests
	isRow  bool
	granted bool
}

// queue is the FIFO lock request list for a single table oid or row rid,
// guarded by its own mutex and condition variable.
type queue struct {
	mu        sync.Mutex
	cv        *sync.Cond
	requests  []*request
	upgrading int64 // txn id mid-upgrade, or 0 for none (txn ids start at 1)
}

func newQueue() *queue {
	q := &queue{}
	q.cv = sync.NewCond(&q.mu)
	return q
}

// Manager is the hierarchical table/row lock service.
type Manager struct {
	tableMu sync.Mutex
	tables  map[int32]*queue

	rowMu sync.Mutex
	rows  map[rid.RID]*queue
}

func NewManager() *Manager {
	return &Manager{
		tables: make(map[int32]*queue),
		rows:   make(map[rid.RID]*queue),
	}
}

func (m *Manager) tableQueue(oid int32) *queue {
	m.tableMu.Lock()
	defer m.tableMu.Unlock()
	q, ok := m.tables[oid]
	if !ok {
		q = newQueue()
		m.tables[oid] = q
	}
	return q
}

func (m *Manager) rowQueue(r rid.RID) *queue {
	m.rowMu.Lock()
	defer m.rowMu.Unlock()
	q, ok := m.rows[r]
	if !ok {
		q = newQueue()
		m.rows[r] = q
	}
	return q
}

// compatible reports whether held and requested may be granted together
//
func compatible(held, requested txn.LockMode) bool {
	switch held {
	case txn.LockIS:
		return requested != txn.LockX
	case txn.LockIX:
		return requested == txn.LockIS || requested == txn.LockIX
	case txn.LockS:
		return requested == txn.LockIS || requested == txn.LockS
	case txn.LockSIX:
		return requested == txn.LockIS
	case txn.LockX:
		return false
	}
	return false
}

// upgradeAllowed reports whether from -> to is a legal upgrade direction
//
func upgradeAllowed(from, to txn.LockMode) bool {
	switch from {
	case txn.LockIS:
		return to == txn.LockIX || to == txn.LockS || to == txn.LockSIX || to == txn.LockX
	case txn.LockS, txn.LockIX:
		return to == txn.LockSIX || to == txn.LockX
	case txn.LockSIX:
		return to == txn.LockX
	}
	return false
}

// isolationCheck rejects a lock acquisition illegal under tx's isolation
// level and current 2PL phase
func isolationCheck(tx *txn.Transaction, mode txn.LockMode) error {
	state := tx.GetState()
	if state == txn.StateAborted || state == txn.StateCommitted {
		return &Error{Reason: ReasonTransactionEnded, TxnID: tx.ID}
	}

	switch tx.Isolation {
	case txn.ReadUncommitted:
		if mode == txn.LockS || mode == txn.LockIS || mode == txn.LockSIX {
			return &Error{Reason: ReasonLockSharedOnReadUncommitted, TxnID: tx.ID}
		}
		if state == txn.StateShrinking {
			return &Error{Reason: ReasonLockOnShrinking, TxnID: tx.ID}
		}
	case txn.ReadCommitted:
		if state == txn.StateShrinking && mode != txn.LockS && mode != txn.LockIS {
			return &Error{Reason: ReasonLockOnShrinking, TxnID: tx.ID}
		}
	case txn.RepeatableRead:
		if state == txn.StateShrinking {
			return &Error{Reason: ReasonLockOnShrinking, TxnID: tx.ID}
		}
	}
	return nil
}

// transitionOnUnlock moves tx from GROWING to SHRINKING per its
// isolation-specific rule.
func transitionOnUnlock(tx *txn.Transaction, mode txn.LockMode) {
	if tx.GetState() != txn.StateGrowing {
		return
	}
	switch tx.Isolation {
	case txn.ReadCommitted:
		if mode == txn.LockX || mode == txn.LockIX || mode == txn.LockSIX {
			tx.SetState(txn.StateShrinking)
		}
	default: // READ_UNCOMMITTED, REPEATABLE_READ: every release is strict 2PL
		tx.SetState(txn.StateShrinking)
	}
}

// canGrant reports whether a request may be granted. A request from the
// queue's in-progress upgrader jumps ahead of regular waiters: it is
// granted as soon as no already-granted request conflicts with mode,
// without regard to ungranted requests that happen to sit ahead of it.
// Every other request may be granted only if every request ahead of it
// in queue order — granted or not — is compatible with mode, so a run
// of mutually compatible waiters at the head is granted together and an
// incompatible waiter blocks everyone behind it.
func canGrant(q *queue, r *request) bool {
	if q.upgrading != 0 && q.upgrading != r.tx.ID {
		return false
	}
	if q.upgrading == r.tx.ID {
		for _, other := range q.requests {
			if other == r || !other.granted {
				continue
			}
			if !compatible(other.mode, r.mode) {
				return false
			}
		}
		return true
	}
	for _, other := range q.requests {
		if other == r {
			return true
		}
		if !compatible(other.mode, r.mode) {
			return false
		}
	}
	return true
}

func removeRequest(q *queue, r *request) {
	for i, other := range q.requests {
		if other == r {
			q.requests = append(q.requests[:i], q.requests[i+1:]...)
			return
		}
	}
}

func findRequest(q *queue, txnID int64) *request {
	for _, r := range q.requests {
		if r.tx.ID == txnID {
			return r
		}
	}
	return nil
}

// acquire runs the five-step protocol common to LockTable and LockRow
// once the queue is identified.
func acquire(tx *txn.Transaction, mode txn.LockMode, q *queue, r rid.RID, isRow bool) error {
	if err := isolationCheck(tx, mode); err != nil {
		return err
	}

	q.mu.Lock()

	existing := findRequest(q, tx.ID)
	var target *request
	switch {
	case existing == nil:
		target = &request{tx: tx, mode: mode, rid: r, isRow: isRow}
		q.requests = append(q.requests, target)
	case existing.mode == mode:
		q.mu.Unlock()
		return nil
	default:
		if !upgradeAllowed(existing.mode, mode) {
			q.mu.Unlock()
			return &Error{Reason: ReasonIncompatibleUpgrade, TxnID: tx.ID}
		}
		if q.upgrading != 0 && q.upgrading != tx.ID {
			q.mu.Unlock()
			return &Error{Reason: ReasonUpgradeConflict, TxnID: tx.ID}
		}
		removeRequest(q, existing)
		q.upgrading = tx.ID
		target = &request{tx: tx, mode: mode, rid: r, isRow: isRow}
		q.requests = append(q.requests, target)
	}

	for !canGrant(q, target) {
		if tx.GetState() == txn.StateAborted {
			removeRequest(q, target)
			if q.upgrading == tx.ID {
				q.upgrading = 0
			}
			q.cv.Broadcast()
			q.mu.Unlock()
			return &Error{Reason: ReasonDeadlockAborted, TxnID: tx.ID}
		}
		q.cv.Wait()
	}

	target.granted = true
	if q.upgrading == tx.ID {
		q.upgrading = 0
	}
	q.mu.Unlock()

	if isRow {
		tx.SetRowLockMode(r, mode)
	} else {
		tx.SetTableLockMode(r.PageID, mode)
	}
	return nil
}

// LockTable acquires mode on table oid for tx.
func (m *Manager) LockTable(tx *txn.Transaction, mode txn.LockMode, oid int32) error {
	q := m.tableQueue(oid)
	return acquire(tx, mode, q, rid.RID{PageID: oid}, false)
}

// UnlockTable releases tx's lock on table oid.
func (m *Manager) UnlockTable(tx *txn.Transaction, oid int32) error {
	if tx.RowLocksUnderTable(oid) {
		return &Error{Reason: ReasonTableUnlockedBeforeRows, TxnID: tx.ID}
	}

	q := m.tableQueue(oid)
	q.mu.Lock()
	target := findRequest(q, tx.ID)
	if target == nil || !target.granted {
		q.mu.Unlock()
		return &Error{Reason: ReasonAttemptedUnlockButNoLockHeld, TxnID: tx.ID}
	}
	mode := target.mode
	removeRequest(q, target)
	q.cv.Broadcast()
	q.mu.Unlock()

	tx.ClearTableLockMode(oid)
	transitionOnUnlock(tx, mode)
	return nil
}

// LockRow acquires mode (S or X only) on row r of table oid for tx,
// transparently acquiring a compatible table intent lock first if tx
// does not already hold one
func (m *Manager) LockRow(tx *txn.Transaction, mode txn.LockMode, oid int32, r rid.RID) error {
	if mode != txn.LockS && mode != txn.LockX {
		return &Error{Reason: ReasonAttemptedIntentionLockOnRow, TxnID: tx.ID}
	}

	if err := m.ensureTableIntent(tx, mode, oid); err != nil {
		return err
	}

	q := m.rowQueue(r)
	return acquire(tx, mode, q, r, true)
}

func (m *Manager) ensureTableIntent(tx *txn.Transaction, mode txn.LockMode, oid int32) error {
	held, ok := tx.GetTableLockMode(oid)
	if mode == txn.LockS {
		if ok && (held == txn.LockIS || held == txn.LockS || held == txn.LockSIX || held == txn.LockIX || held == txn.LockX) {
			return nil
		}
		return m.LockTable(tx, txn.LockIS, oid)
	}
	if ok && (held == txn.LockIX || held == txn.LockX || held == txn.LockSIX) {
		return nil
	}
	return m.LockTable(tx, txn.LockIX, oid)
}

// UnlockRow releases tx's lock on row r.
func (m *Manager) UnlockRow(tx *txn.Transaction, r rid.RID) error {
	q := m.rowQueue(r)
	q.mu.Lock()
	target := findRequest(q, tx.ID)
	if target == nil || !target.granted {
		q.mu.Unlock()
		return &Error{Reason: ReasonAttemptedUnlockButNoLockHeld, TxnID: tx.ID}
	}
	mode := target.mode
	removeRequest(q, target)
	q.cv.Broadcast()
	q.mu.Unlock()

	tx.ClearRowLockMode(r)
	transitionOnUnlock(tx, mode)
	return nil
}

// Edge is one entry of the waits-for graph: Waiter is blocked behind Holder.
type Edge struct {
	Waiter int64
	Holder int64
}

// GetEdgeList returns every requester -> holder edge currently in the
// waits-for graph, across every table and row queue, for tests to assert
// on the graph shape directly instead of only on end-to-end abort outcomes.
func (m *Manager) GetEdgeList() []Edge {
	var edges []Edge

	collect := func(q *queue) {
		q.mu.Lock()
		for _, r := range q.requests {
			if r.granted {
				continue
			}
			for _, h := range q.requests {
				if !h.granted {
					continue
				}
				if !compatible(h.mode, r.mode) {
					edges = append(edges, Edge{Waiter: r.tx.ID, Holder: h.tx.ID})
				}
			}
		}
		q.mu.Unlock()
	}

	m.tableMu.Lock()
	tableQueues := make([]*queue, 0, len(m.tables))
	for _, q := range m.tables {
		tableQueues = append(tableQueues, q)
	}
	m.tableMu.Unlock()
	for _, q := range tableQueues {
		collect(q)
	}

	m.rowMu.Lock()
	rowQueues := make([]*queue, 0, len(m.rows))
	for _, q := range m.rows {
		rowQueues = append(rowQueues, q)
	}
	m.rowMu.Unlock()
	for _, q := range rowQueues {
		collect(q)
	}

	return edges
}

// ReleaseAll drops every lock tx holds, table and row, without the
// TABLE_UNLOCKED_BEFORE_UNLOCKING_ROWS ordering check — it is only called
// at commit/abort, when every lock is going away together.
func (m *Manager) ReleaseAll(tx *txn.Transaction) {
	for _, r := range tx.RowRIDs() {
		q := m.rowQueue(r)
		q.mu.Lock()
		if target := findRequest(q, tx.ID); target != nil {
			removeRequest(q, target)
			q.cv.Broadcast()
		}
		q.mu.Unlock()
		tx.ClearRowLockMode(r)
	}
	for _, oid := range tx.TableOIDs() {
		q := m.tableQueue(oid)
		q.mu.Lock()
		if target := findRequest(q, tx.ID); target != nil {
			removeRequest(q, target)
			q.cv.Broadcast()
		}
		q.mu.Unlock()
		tx.ClearTableLockMode(oid)
	}
}
