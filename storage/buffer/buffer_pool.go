package buffer

import (
	"fmt"

	"FerroDB/storage/disk"
	"FerroDB/storage/page"
	"FerroDB/storage/replacer"
)

// New creates a buffer pool manager of poolSize frames backed by dm, with an
// LRU-K replacer configured for a K-distance of k.
func New(poolSize, k int, dm *disk.Manager) *Manager {
	free := make([]int, poolSize)
	frames := make([]frame, poolSize)
	for i := 0; i < poolSize; i++ {
		free[i] = i
		frames[i] = frame{pageID: page.InvalidID}
	}
	return &Manager{
		disk:     dm,
		replacer: replacer.New(poolSize, k),
		frames:   frames,
		freeList: free,
		pageTbl:  make(map[int32]int),
	}
}

// FetchPage returns the page for pageID, pinning it, loading it from disk if
// it is not already resident. Returns an error if the pool is exhausted and
// the page is not already resident: no free or evictable frame exists.
func (m *Manager) FetchPage(pageID int32, accessType replacer.AccessType) (*page.Page, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if fid, ok := m.pageTbl[pageID]; ok {
		pg := m.frames[fid].page
		pg.PinCount++
		m.replacer.RecordAccess(fid, accessType)
		m.replacer.SetEvictable(fid, false)
		return pg, nil
	}

	fid, err := m.allocFrame()
	if err != nil {
		return nil, fmt.Errorf("buffer: fetch page %d: %w", pageID, err)
	}

	pg := page.New(pageID)
	if err := m.disk.ReadPage(pageID, pg.Data); err != nil {
		m.freeList = append(m.freeList, fid)
		return nil, fmt.Errorf("buffer: fetch page %d: %w", pageID, err)
	}
	pg.PinCount = 1

	m.frames[fid] = frame{pageID: pageID, page: pg}
	m.pageTbl[pageID] = fid
	m.replacer.RecordAccess(fid, accessType)
	m.replacer.SetEvictable(fid, false)

	fmt.Printf("[BufferPool] MISS pageID=%d frame=%d\n", pageID, fid)
	return pg, nil
}

// NewPage allocates a fresh, monotonically increasing page id, installs a
// zeroed page for it in a frame, and pins it. It never reads from disk; the
// only disk I/O is flushing a dirty victim when a frame must be evicted.
func (m *Manager) NewPage(accessType replacer.AccessType) (*page.Page, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	fid, err := m.allocFrame()
	if err != nil {
		return nil, fmt.Errorf("buffer: new page: %w", err)
	}

	pageID := m.nextPageID
	m.nextPageID++

	pg := page.New(pageID)
	pg.PinCount = 1
	pg.IsDirty = true

	m.frames[fid] = frame{pageID: pageID, page: pg}
	m.pageTbl[pageID] = fid
	m.replacer.RecordAccess(fid, accessType)
	m.replacer.SetEvictable(fid, false)

	fmt.Printf("[BufferPool] NEW  pageID=%d frame=%d\n", pageID, fid)
	return pg, nil
}

// allocFrame returns a frame id ready to receive a new page: from the free
// list if one exists, otherwise by evicting the replacer's chosen victim
// (flushing it first if dirty). Caller must hold m.mu.
func (m *Manager) allocFrame() (int, error) {
	if n := len(m.freeList); n > 0 {
		fid := m.freeList[n-1]
		m.freeList = m.freeList[:n-1]
		return fid, nil
	}

	fid, ok := m.replacer.Evict()
	if !ok {
		return 0, fmt.Errorf("buffer pool exhausted: no free or evictable frame")
	}

	victim := m.frames[fid]
	if victim.page != nil {
		if victim.page.IsDirty {
			fmt.Printf("[BufferPool] EVICT pageID=%d frame=%d (dirty, flushing)\n", victim.pageID, fid)
			if err := m.disk.WritePage(victim.pageID, victim.page.Data); err != nil {
				return 0, fmt.Errorf("flush evicted page %d: %w", victim.pageID, err)
			}
		} else {
			fmt.Printf("[BufferPool] EVICT pageID=%d frame=%d\n", victim.pageID, fid)
		}
		delete(m.pageTbl, victim.pageID)
	}
	m.frames[fid] = frame{pageID: page.InvalidID}
	return fid, nil
}

// UnpinPage decrements pageID's pin count, ORing isDirty into its dirty
// bit, and makes the frame evictable once the pin count reaches 0.
func (m *Manager) UnpinPage(pageID int32, isDirty bool, accessType replacer.AccessType) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	fid, ok := m.pageTbl[pageID]
	if !ok {
		return fmt.Errorf("buffer: unpin page %d: not resident", pageID)
	}
	pg := m.frames[fid].page
	if pg.PinCount <= 0 {
		return fmt.Errorf("buffer: unpin page %d: pin count already 0", pageID)
	}

	pg.PinCount--
	if isDirty {
		pg.IsDirty = true
	}
	if pg.PinCount == 0 {
		m.replacer.SetEvictable(fid, true)
	}
	return nil
}

// FlushPage writes pageID's data to disk and clears its dirty bit.
// Idempotent: flushing a clean page is a no-op.
func (m *Manager) FlushPage(pageID int32) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	fid, ok := m.pageTbl[pageID]
	if !ok {
		return fmt.Errorf("buffer: flush page %d: not resident", pageID)
	}
	pg := m.frames[fid].page
	if !pg.IsDirty {
		return nil
	}
	if err := m.disk.WritePage(pageID, pg.Data); err != nil {
		return fmt.Errorf("buffer: flush page %d: %w", pageID, err)
	}
	pg.IsDirty = false
	return nil
}

// FlushAllPages flushes every resident dirty page.
func (m *Manager) FlushAllPages() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for pageID, fid := range m.pageTbl {
		pg := m.frames[fid].page
		if !pg.IsDirty {
			continue
		}
		if err := m.disk.WritePage(pageID, pg.Data); err != nil {
			return fmt.Errorf("buffer: flush all: page %d: %w", pageID, err)
		}
		pg.IsDirty = false
	}
	return nil
}

// DeletePage returns pageID's frame to the free list and deallocates the
// page. Fails if the page is resident and still pinned.
func (m *Manager) DeletePage(pageID int32) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	fid, ok := m.pageTbl[pageID]
	if !ok {
		return nil
	}
	pg := m.frames[fid].page
	if pg.PinCount > 0 {
		return fmt.Errorf("buffer: delete page %d: still pinned (pin_count=%d)", pageID, pg.PinCount)
	}

	delete(m.pageTbl, pageID)
	m.replacer.Remove(fid)
	m.frames[fid] = frame{pageID: page.InvalidID}
	m.freeList = append(m.freeList, fid)
	return nil
}

// GetPinCount reports pageID's current pin count, or -1 if it is not
// resident. Lets tests assert pin-count invariants directly.
func (m *Manager) GetPinCount(pageID int32) int32 {
	m.mu.Lock()
	defer m.mu.Unlock()

	fid, ok := m.pageTbl[pageID]
	if !ok {
		return -1
	}
	return m.frames[fid].page.PinCount
}
