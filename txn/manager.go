package txn

import (
	"fmt"
	"sync"
	"sync/atomic"

	"FerroDB/storage/log"
)

// LockReleaser is the seam TransactionManager releases locks through at
// commit and abort. *lock.Manager implements it; txn never imports lock —
// lock imports txn for *Transaction and LockMode, so the dependency runs
// one way only.
type LockReleaser interface {
	ReleaseAll(tx *Transaction)
}

// Logger is the seam TransactionManager writes commit/abort records
// through; *log.Manager implements it.
type Logger interface {
	AppendCommit(txnID int64) log.LSN
	AppendAbort(txnID int64) log.LSN
}

// Manager allocates transactions, drives their state machine, and
// reverses their side effects on abort
type Manager struct {
	mu     sync.RWMutex
	nextID atomic.Int64
	active map[int64]*Transaction
	locks  LockReleaser
	logger Logger
}

func NewManager(locks LockReleaser, logger Logger) *Manager {
	return &Manager{
		active: make(map[int64]*Transaction),
		locks:  locks,
		logger: logger,
	}
}

// Begin allocates a new transaction with a monotonic id and GROWING state.
func (m *Manager) Begin(isolation Isolation) *Transaction {
	id := m.nextID.Add(1)
	tx := newTransaction(id, isolation)

	m.mu.Lock()
	m.active[id] = tx
	m.mu.Unlock()

	return tx
}

// Commit releases all of tx's held locks and marks it COMMITTED.
func (m *Manager) Commit(tx *Transaction) error {
	if tx.GetState() == StateAborted {
		return fmt.Errorf("txn: transaction %d already aborted", tx.ID)
	}

	m.locks.ReleaseAll(tx)
	tx.SetState(StateCommitted)
	if m.logger != nil {
		m.logger.AppendCommit(tx.ID)
	}

	m.mu.Lock()
	delete(m.active, tx.ID)
	m.mu.Unlock()
	return nil
}

// Abort replays tx's write sets in reverse through the table-heap and
// index interfaces, releases all of tx's held locks, and marks it
// ABORTED.
func (m *Manager) Abort(tx *Transaction) error {
	if tx.GetState() == StateCommitted {
		return fmt.Errorf("txn: transaction %d already committed", tx.ID)
	}

	if err := tx.undo(); err != nil {
		return fmt.Errorf("txn: abort %d: %w", tx.ID, err)
	}

	m.locks.ReleaseAll(tx)
	tx.SetState(StateAborted)
	if m.logger != nil {
		m.logger.AppendAbort(tx.ID)
	}

	m.mu.Lock()
	delete(m.active, tx.ID)
	m.mu.Unlock()
	return nil
}

// GetTransaction returns the active transaction with the given id, or nil.
func (m *Manager) GetTransaction(id int64) *Transaction {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.active[id]
}

// ActiveTransactions returns a snapshot of all currently active
// transactions (begun, not yet committed or aborted through this manager).
func (m *Manager) ActiveTransactions() []*Transaction {
	m.mu.RLock()
	defer m.mu.RUnlock()

	txns := make([]*Transaction, 0, len(m.active))
	for _, tx := range m.active {
		txns = append(txns, tx)
	}
	return txns
}
