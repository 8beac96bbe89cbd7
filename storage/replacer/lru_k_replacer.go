// Package replacer implements the buffer pool's page-replacement policy: an
// LRU-K replacer that chooses an evictable frame by its K-th-most-recent
// access distance, falling back to classical LRU among frames that have not
// yet been accessed K times.
package replacer

import (
	"container/list"
	"sync"
)

// AccessType is a hint about why a frame was touched. The replacer currently
// treats every access type identically, but the parameter is kept on
// RecordAccess for call-site fidelity with the buffer pool.
type AccessType int

const (
	AccessUnknown AccessType = iota
	AccessLookup
	AccessScan
	AccessIndex
)

type node struct {
	frameID   int
	history   []int64 // bounded to the last K access timestamps
	evictable bool
}

// LRUKReplacer tracks, for up to numFrames frames, whether each is evictable
// and, if so, its eviction priority.
//
// Frames with fewer than K recorded accesses live in the cold list (evicted
// first, tie-broken by classical LRU); frames with K or more live in the
// warm list, kept sorted ascending by their K-th-most-recent access
// timestamp so the eviction candidate is always at the front.
type LRUKReplacer struct {
	mu sync.Mutex

	k                int
	numFrames        int
	currentTimestamp int64
	curSize          int

	cold      *list.List // front = most recently touched, back = least
	warm      *list.List // front = smallest K-th-most-recent timestamp
	coldIndex map[int]*list.Element
	warmIndex map[int]*list.Element
}

// New creates a replacer for up to numFrames frames using a K-distance of k.
func New(numFrames, k int) *LRUKReplacer {
	return &LRUKReplacer{
		k:         k,
		numFrames: numFrames,
		cold:      list.New(),
		warm:      list.New(),
		coldIndex: make(map[int]*list.Element),
		warmIndex: make(map[int]*list.Element),
	}
}

// RecordAccess appends an access timestamp to frameID's history, creating
// the frame (as non-evictable) if it is not yet known. Once a frame's
// history reaches K entries it migrates from the cold set to the warm set.
func (r *LRUKReplacer) RecordAccess(frameID int, _ AccessType) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.currentTimestamp++
	ts := r.currentTimestamp

	n, inCold := r.lookupCold(frameID)
	if n == nil {
		n, _ = r.lookupWarm(frameID)
	}
	if n == nil {
		n = &node{frameID: frameID}
		r.coldIndex[frameID] = r.cold.PushFront(n)
		inCold = true
	}

	n.history = append(n.history, ts)
	if len(n.history) > r.k {
		n.history = n.history[len(n.history)-r.k:]
	}

	if len(n.history) < r.k {
		// Still cold: move to the front (most recently touched).
		if inCold {
			r.cold.Remove(r.coldIndex[frameID])
		}
		r.coldIndex[frameID] = r.cold.PushFront(n)
		return
	}

	// Reached K accesses: (re)place in the warm set, sorted ascending by
	// the K-th-most-recent timestamp, which is history[0] once capped to K.
	if inCold {
		r.cold.Remove(r.coldIndex[frameID])
		delete(r.coldIndex, frameID)
	} else if e, ok := r.warmIndex[frameID]; ok {
		r.warm.Remove(e)
	}
	r.warmIndex[frameID] = r.insertWarmSorted(n)
}

func (r *LRUKReplacer) insertWarmSorted(n *node) *list.Element {
	key := n.history[0]
	for e := r.warm.Front(); e != nil; e = e.Next() {
		other := e.Value.(*node)
		if key < other.history[0] || (key == other.history[0] && n.frameID < other.frameID) {
			return r.warm.InsertBefore(n, e)
		}
	}
	return r.warm.PushBack(n)
}

func (r *LRUKReplacer) lookupCold(frameID int) (*node, bool) {
	if e, ok := r.coldIndex[frameID]; ok {
		return e.Value.(*node), true
	}
	return nil, false
}

func (r *LRUKReplacer) lookupWarm(frameID int) (*node, bool) {
	if e, ok := r.warmIndex[frameID]; ok {
		return e.Value.(*node), true
	}
	return nil, false
}

// SetEvictable toggles whether frameID is a candidate for eviction,
// adjusting the count returned by Size. A frame unknown to the replacer is
// a no-op.
func (r *LRUKReplacer) SetEvictable(frameID int, evictable bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	n, _ := r.lookupCold(frameID)
	if n == nil {
		n, _ = r.lookupWarm(frameID)
	}
	if n == nil {
		return
	}

	if !n.evictable && evictable {
		r.curSize++
	} else if n.evictable && !evictable {
		r.curSize--
	}
	n.evictable = evictable
}

// Remove unconditionally forgets frameID, wherever it lives.
func (r *LRUKReplacer) Remove(frameID int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if e, ok := r.coldIndex[frameID]; ok {
		n := e.Value.(*node)
		if n.evictable {
			r.curSize--
		}
		r.cold.Remove(e)
		delete(r.coldIndex, frameID)
		return
	}
	if e, ok := r.warmIndex[frameID]; ok {
		n := e.Value.(*node)
		if n.evictable {
			r.curSize--
		}
		r.warm.Remove(e)
		delete(r.warmIndex, frameID)
	}
}

// Evict selects and removes the highest-priority eviction candidate: the
// oldest frame in the cold set if one is evictable, otherwise the frame in
// the warm set with the smallest K-th-most-recent access timestamp.
func (r *LRUKReplacer) Evict() (int, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.curSize == 0 {
		return 0, false
	}

	for e := r.cold.Back(); e != nil; e = e.Prev() {
		n := e.Value.(*node)
		if n.evictable {
			r.cold.Remove(e)
			delete(r.coldIndex, n.frameID)
			r.curSize--
			return n.frameID, true
		}
	}

	for e := r.warm.Front(); e != nil; e = e.Next() {
		n := e.Value.(*node)
		if n.evictable {
			r.warm.Remove(e)
			delete(r.warmIndex, n.frameID)
			r.curSize--
			return n.frameID, true
		}
	}

	return 0, false
}

// Size returns the number of frames currently eligible for eviction.
func (r *LRUKReplacer) Size() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.curSize
}
