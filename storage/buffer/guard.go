package buffer

import (
	"fmt"

	"FerroDB/storage/page"
	"FerroDB/storage/replacer"
)

// BasicPageGuard is a scoped acquisition of a page's pin with no page latch
// held. It is the base the Read/Write guards build on.
//
// A moved-from (dropped) guard is inert: its pool pointer is nil and Drop
// is a no-op. Go has no destructors, so callers must call Drop explicitly
// (typically via defer) instead of relying on scope exit.
type BasicPageGuard struct {
	pool    *Manager
	pg      *page.Page
	isDirty bool
}

func newBasicGuard(pool *Manager, pg *page.Page) BasicPageGuard {
	return BasicPageGuard{pool: pool, pg: pg}
}

// Page returns the underlying page. Callers must not retain it past Drop.
func (g *BasicPageGuard) Page() *page.Page { return g.pg }

// SetDirty marks the guard's page dirty for the eventual Unpin.
func (g *BasicPageGuard) SetDirty() { g.isDirty = true }

// Drop releases the guard's pin, if any. Safe to call more than once.
func (g *BasicPageGuard) Drop() {
	if g.pool == nil || g.pg == nil {
		return
	}
	pageID := g.pg.ID
	pool := g.pool
	g.pool, g.pg = nil, nil
	if err := pool.UnpinPage(pageID, g.isDirty, replacer.AccessUnknown); err != nil {
		fmt.Printf("[BufferPool] guard drop: %v\n", err)
	}
}

// ReadPageGuard adds a held read latch to a BasicPageGuard.
type ReadPageGuard struct {
	inner BasicPageGuard
}

func newReadGuard(pool *Manager, pg *page.Page) ReadPageGuard {
	pg.RLock()
	return ReadPageGuard{inner: newBasicGuard(pool, pg)}
}

func (g *ReadPageGuard) Page() *page.Page { return g.inner.pg }

func (g *ReadPageGuard) Drop() {
	if g.inner.pg == nil {
		return
	}
	pg := g.inner.pg
	g.inner.Drop()
	pg.RUnlock()
}

// WritePageGuard adds a held write latch to a BasicPageGuard; its page is
// always considered dirty on drop.
type WritePageGuard struct {
	inner BasicPageGuard
}

func newWriteGuard(pool *Manager, pg *page.Page) WritePageGuard {
	pg.WLock()
	g := WritePageGuard{inner: newBasicGuard(pool, pg)}
	g.inner.SetDirty()
	return g
}

func (g *WritePageGuard) Page() *page.Page { return g.inner.pg }

func (g *WritePageGuard) Drop() {
	if g.inner.pg == nil {
		return
	}
	pg := g.inner.pg
	g.inner.Drop()
	pg.WUnlock()
}

// FetchPageBasic fetches and pins pageID, returning a BasicPageGuard with no
// page latch held.
func (m *Manager) FetchPageBasic(pageID int32, accessType replacer.AccessType) (BasicPageGuard, error) {
	pg, err := m.FetchPage(pageID, accessType)
	if err != nil {
		return BasicPageGuard{}, err
	}
	return newBasicGuard(m, pg), nil
}

// FetchPageRead fetches and pins pageID, then takes its read latch.
func (m *Manager) FetchPageRead(pageID int32, accessType replacer.AccessType) (ReadPageGuard, error) {
	pg, err := m.FetchPage(pageID, accessType)
	if err != nil {
		return ReadPageGuard{}, err
	}
	return newReadGuard(m, pg), nil
}

// FetchPageWrite fetches and pins pageID, then takes its write latch.
func (m *Manager) FetchPageWrite(pageID int32, accessType replacer.AccessType) (WritePageGuard, error) {
	pg, err := m.FetchPage(pageID, accessType)
	if err != nil {
		return WritePageGuard{}, err
	}
	return newWriteGuard(m, pg), nil
}

// NewPageGuarded allocates a new page and returns it wrapped in a
// BasicPageGuard.
func (m *Manager) NewPageGuarded(accessType replacer.AccessType) (BasicPageGuard, error) {
	pg, err := m.NewPage(accessType)
	if err != nil {
		return BasicPageGuard{}, err
	}
	return newBasicGuard(m, pg), nil
}

// NewPageGuardedWrite allocates a new page and returns it already held
// under its write latch, for callers that initialise a fresh leaf or
// internal page before any other goroutine could observe it.
func (m *Manager) NewPageGuardedWrite(accessType replacer.AccessType) (WritePageGuard, error) {
	pg, err := m.NewPage(accessType)
	if err != nil {
		return WritePageGuard{}, err
	}
	return newWriteGuard(m, pg), nil
}

// PageID reports the page id a guard is holding, or page.InvalidID if the
// guard is inert.
func (g *BasicPageGuard) PageID() int32 {
	if g.pg == nil {
		return page.InvalidID
	}
	return g.pg.ID
}

func (g *ReadPageGuard) PageID() int32  { return g.inner.PageID() }
func (g *WritePageGuard) PageID() int32 { return g.inner.PageID() }
