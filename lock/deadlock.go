package lock

import (
	"time"

	"FerroDB/txn"
)

// Detector runs the background waits-for cycle breaker. Each pass it
// builds a fresh waits-for graph across every table and row queue, aborts
// the youngest transaction in any cycle it finds, and repeats against the
// updated queues until none remain.
type Detector struct {
	locks    *Manager
	interval time.Duration

	stop chan struct{}
	done chan struct{}
}

func NewDetector(locks *Manager, interval time.Duration) *Detector {
	return &Detector{locks: locks, interval: interval}
}

// Start launches the background detection loop.
func (d *Detector) Start() {
	d.stop = make(chan struct{})
	d.done = make(chan struct{})
	go func() {
		defer close(d.done)
		ticker := time.NewTicker(d.interval)
		defer ticker.Stop()
		for {
			select {
			case <-d.stop:
				return
			case <-ticker.C:
				d.RunOnce()
			}
		}
	}()
}

// Stop ends the background loop and waits for it to exit.
func (d *Detector) Stop() {
	if d.stop == nil {
		return
	}
	close(d.stop)
	<-d.done
}

// RunOnce performs one detect-and-break pass, exported so tests can drive
// it synchronously instead of waiting on the ticker.
func (d *Detector) RunOnce() {
	for {
		edges, queues := d.buildWaitsForGraph()
		cycle := findCycle(edges)
		if cycle == nil {
			return
		}

		youngest := cycle[0]
		for _, tx := range cycle[1:] {
			if tx.ID > youngest.ID {
				youngest = tx
			}
		}
		youngest.SetState(txn.StateAborted)
		for _, q := range queues {
			breakTxn(q, youngest)
		}
	}
}

// buildWaitsForGraph adds an edge requester -> holder for every pair of
// requests on a queue where requester is ungranted, holder is granted,
// and their modes conflict
func (d *Detector) buildWaitsForGraph() (map[*txn.Transaction]map[*txn.Transaction]bool, []*queue) {
	edges := make(map[*txn.Transaction]map[*txn.Transaction]bool)
	var queues []*queue

	addEdges := func(q *queue) {
		q.mu.Lock()
		queues = append(queues, q)
		for _, r := range q.requests {
			if r.granted {
				continue
			}
			for _, h := range q.requests {
				if !h.granted {
					continue
				}
				if !compatible(h.mode, r.mode) {
					if edges[r.tx] == nil {
						edges[r.tx] = make(map[*txn.Transaction]bool)
					}
					edges[r.tx][h.tx] = true
				}
			}
		}
		q.mu.Unlock()
	}

	d.locks.tableMu.Lock()
	tableQueues := make([]*queue, 0, len(d.locks.tables))
	for _, q := range d.locks.tables {
		tableQueues = append(tableQueues, q)
	}
	d.locks.tableMu.Unlock()
	for _, q := range tableQueues {
		addEdges(q)
	}

	d.locks.rowMu.Lock()
	rowQueues := make([]*queue, 0, len(d.locks.rows))
	for _, q := range d.locks.rows {
		rowQueues = append(rowQueues, q)
	}
	d.locks.rowMu.Unlock()
	for _, q := range rowQueues {
		addEdges(q)
	}

	return edges, queues
}

// findCycle DFSes the waits-for graph and returns the first cycle found
// as the slice of transactions composing it, or nil if acyclic.
func findCycle(edges map[*txn.Transaction]map[*txn.Transaction]bool) []*txn.Transaction {
	visited := make(map[*txn.Transaction]bool)
	onStack := make(map[*txn.Transaction]bool)
	var stack []*txn.Transaction

	var dfs func(n *txn.Transaction) []*txn.Transaction
	dfs = func(n *txn.Transaction) []*txn.Transaction {
		visited[n] = true
		onStack[n] = true
		stack = append(stack, n)

		for m := range edges[n] {
			if onStack[m] {
				for i, s := range stack {
					if s == m {
						cycle := make([]*txn.Transaction, len(stack)-i)
						copy(cycle, stack[i:])
						return cycle
					}
				}
			}
			if !visited[m] {
				if c := dfs(m); c != nil {
					return c
				}
			}
		}

		stack = stack[:len(stack)-1]
		onStack[n] = false
		return nil
	}

	nodes := make([]*txn.Transaction, 0, len(edges))
	for n := range edges {
		nodes = append(nodes, n)
	}
	for _, n := range nodes {
		if !visited[n] {
			if c := dfs(n); c != nil {
				return c
			}
		}
	}
	return nil
}

// breakTxn removes every request tx has on q, granted or not, and wakes
// any waiters so they re-check canGrant.
func breakTxn(q *queue, tx *txn.Transaction) {
	q.mu.Lock()
	changed := false
	for i := 0; i < len(q.requests); {
		if q.requests[i].tx.ID == tx.ID {
			q.requests = append(q.requests[:i], q.requests[i+1:]...)
			changed = true
			continue
		}
		i++
	}
	if q.upgrading == tx.ID {
		q.upgrading = 0
	}
	if changed {
		q.cv.Broadcast()
	}
	q.mu.Unlock()
}
