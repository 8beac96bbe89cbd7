package lock

import (
	"errors"
	"testing"
	"time"

	"FerroDB/txn"
)

func TestDeadlockDetectorBreaksCycleByAbortingYoungest(t *testing.T) {
	lm, tm := newTestManager()
	tx1 := tm.Begin(txn.RepeatableRead)
	tx2 := tm.Begin(txn.RepeatableRead)

	if err := lm.LockTable(tx1, txn.LockX, 1); err != nil {
		t.Fatalf("LockTable(tx1, table 1): %v", err)
	}
	if err := lm.LockTable(tx2, txn.LockX, 2); err != nil {
		t.Fatalf("LockTable(tx2, table 2): %v", err)
	}

	err1 := make(chan error, 1)
	err2 := make(chan error, 1)
	go func() { err1 <- lm.LockTable(tx1, txn.LockX, 2) }()
	go func() { err2 <- lm.LockTable(tx2, txn.LockX, 1) }()

	waitUntil(t, func() bool {
		edges := lm.GetEdgeList()
		return len(edges) >= 2
	})

	detector := NewDetector(lm, time.Hour)
	detector.RunOnce()

	var outcome1, outcome2 error
	select {
	case outcome1 = <-err1:
	case <-time.After(time.Second):
		t.Fatal("tx1's LockTable never returned after RunOnce")
	}
	select {
	case outcome2 = <-err2:
	case <-time.After(time.Second):
		t.Fatal("tx2's LockTable never returned after RunOnce")
	}

	// tx2 has the larger id, so the detector aborts it; tx1 should be
	// granted its lock once tx2's conflicting request is removed.
	var lockErr *Error
	if !errors.As(outcome2, &lockErr) || lockErr.Reason != ReasonDeadlockAborted {
		t.Fatalf("tx2 outcome = %v, want ReasonDeadlockAborted", outcome2)
	}
	if outcome1 != nil {
		t.Fatalf("tx1 outcome = %v, want nil", outcome1)
	}
	if tx2.GetState() != txn.StateAborted {
		t.Errorf("tx2 state = %v, want ABORTED", tx2.GetState())
	}
}

func TestDeadlockDetectorNoOpWithoutCycle(t *testing.T) {
	lm, tm := newTestManager()
	tx1 := tm.Begin(txn.RepeatableRead)
	tx2 := tm.Begin(txn.RepeatableRead)

	if err := lm.LockTable(tx1, txn.LockS, 1); err != nil {
		t.Fatalf("LockTable(tx1): %v", err)
	}
	if err := lm.LockTable(tx2, txn.LockS, 1); err != nil {
		t.Fatalf("LockTable(tx2): %v", err)
	}

	detector := NewDetector(lm, time.Hour)
	detector.RunOnce()

	if tx1.GetState() == txn.StateAborted || tx2.GetState() == txn.StateAborted {
		t.Error("RunOnce aborted a transaction when no cycle existed")
	}
}

func TestDetectorStartStop(t *testing.T) {
	lm, _ := newTestManager()
	d := NewDetector(lm, 5*time.Millisecond)
	d.Start()
	time.Sleep(20 * time.Millisecond)
	d.Stop()
}
