// Package buffer implements the buffer pool manager: a bounded, latched
// cache of fixed-size pages backed by a disk manager, with an LRU-K
// replacement policy and RAII-style page guards.
package buffer

import (
	"sync"

	"FerroDB/storage/disk"
	"FerroDB/storage/page"
	"FerroDB/storage/replacer"
)

// frame is one slot of the buffer pool. Exactly one page occupies a frame
// at a time; a frame with pageID == page.InvalidID is unused.
type frame struct {
	pageID int32
	page   *page.Page
}

// Manager caches up to poolSize pages in frames, backed by disk, with pin
// counts, dirty bits, and an LRU-K replacer choosing eviction victims.
//
// All of the table/free-list/replacer triple is guarded by a single coarse
// mutex; the portion of guard acquisition that takes a page latch happens
// after that mutex is released.
type Manager struct {
	mu sync.Mutex

	disk     *disk.Manager
	replacer *replacer.LRUKReplacer

	frames   []frame
	freeList []int        // frame ids not yet assigned a page
	pageTbl  map[int32]int // page id -> frame id

	nextPageID int32
}

// PoolSize reports the number of frames the pool was constructed with.
func (m *Manager) PoolSize() int {
	return len(m.frames)
}
