package buffer

import (
	"path/filepath"
	"testing"

	"FerroDB/storage/disk"
	"FerroDB/storage/page"
	"FerroDB/storage/replacer"
)

func newTestPool(t *testing.T, poolSize int) (*Manager, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "pool.db")
	dm, err := disk.NewManager(path)
	if err != nil {
		t.Fatalf("disk.NewManager: %v", err)
	}
	t.Cleanup(func() { dm.Close() })
	return New(poolSize, 2, dm), path
}

func TestBufferPoolNewPageAllocatesMonotonicIDs(t *testing.T) {
	pool, _ := newTestPool(t, 4)

	first, err := pool.NewPage(replacer.AccessUnknown)
	if err != nil {
		t.Fatalf("NewPage: %v", err)
	}
	second, err := pool.NewPage(replacer.AccessUnknown)
	if err != nil {
		t.Fatalf("NewPage: %v", err)
	}
	if first.ID != 0 || second.ID != 1 {
		t.Errorf("page ids = (%d, %d), want (0, 1)", first.ID, second.ID)
	}
	if got := pool.GetPinCount(first.ID); got != 1 {
		t.Errorf("GetPinCount(%d) = %d, want 1", first.ID, got)
	}
}

func TestBufferPoolFetchPageLoadsFromDisk(t *testing.T) {
	pool, _ := newTestPool(t, 4)

	pg, err := pool.NewPage(replacer.AccessUnknown)
	if err != nil {
		t.Fatalf("NewPage: %v", err)
	}
	pg.Data[0] = 0x42
	if err := pool.UnpinPage(pg.ID, true, replacer.AccessUnknown); err != nil {
		t.Fatalf("UnpinPage: %v", err)
	}
	if err := pool.FlushPage(pg.ID); err != nil {
		t.Fatalf("FlushPage: %v", err)
	}
	if err := pool.DeletePage(pg.ID); err != nil {
		t.Fatalf("DeletePage: %v", err)
	}

	reloaded, err := pool.FetchPage(pg.ID, replacer.AccessUnknown)
	if err != nil {
		t.Fatalf("FetchPage: %v", err)
	}
	if reloaded.Data[0] != 0x42 {
		t.Errorf("reloaded.Data[0] = %#x, want 0x42", reloaded.Data[0])
	}
}

func TestBufferPoolUnpinMakesFrameEvictable(t *testing.T) {
	pool, _ := newTestPool(t, 1)

	pg, err := pool.NewPage(replacer.AccessUnknown)
	if err != nil {
		t.Fatalf("NewPage: %v", err)
	}

	if _, err := pool.NewPage(replacer.AccessUnknown); err == nil {
		t.Fatalf("NewPage with the only frame still pinned should fail")
	}

	if err := pool.UnpinPage(pg.ID, false, replacer.AccessUnknown); err != nil {
		t.Fatalf("UnpinPage: %v", err)
	}

	next, err := pool.NewPage(replacer.AccessUnknown)
	if err != nil {
		t.Fatalf("NewPage after unpin: %v", err)
	}
	if next.ID == pg.ID {
		t.Errorf("NewPage reused page id %d unexpectedly", pg.ID)
	}
}

func TestBufferPoolExhaustedWhenEveryFrameIsPinned(t *testing.T) {
	pool, _ := newTestPool(t, 2)

	if _, err := pool.NewPage(replacer.AccessUnknown); err != nil {
		t.Fatalf("NewPage: %v", err)
	}
	if _, err := pool.NewPage(replacer.AccessUnknown); err != nil {
		t.Fatalf("NewPage: %v", err)
	}
	if _, err := pool.NewPage(replacer.AccessUnknown); err == nil {
		t.Fatal("NewPage succeeded with pool exhausted and nothing evictable")
	}
}

func TestBufferPoolUnpinUnknownPageFails(t *testing.T) {
	pool, _ := newTestPool(t, 2)
	if err := pool.UnpinPage(123, false, replacer.AccessUnknown); err == nil {
		t.Error("UnpinPage on a non-resident page should fail")
	}
}

func TestBufferPoolEvictionFlushesDirtyVictim(t *testing.T) {
	pool, path := newTestPool(t, 1)

	pg, err := pool.NewPage(replacer.AccessUnknown)
	if err != nil {
		t.Fatalf("NewPage: %v", err)
	}
	pg.Data[10] = 0x7

	if err := pool.UnpinPage(pg.ID, true, replacer.AccessUnknown); err != nil {
		t.Fatalf("UnpinPage: %v", err)
	}

	// Allocating a second page with the pool full of one frame forces the
	// replacer to evict the first, flushing it to disk first.
	if _, err := pool.NewPage(replacer.AccessUnknown); err != nil {
		t.Fatalf("NewPage: %v", err)
	}

	raw := make([]byte, page.Size)
	dm, err := disk.NewManager(path)
	if err != nil {
		t.Fatalf("disk.NewManager: %v", err)
	}
	defer dm.Close()
	if err := dm.ReadPage(pg.ID, raw); err != nil {
		t.Fatalf("ReadPage: %v", err)
	}
	if raw[10] != 0x7 {
		t.Errorf("flushed page byte 10 = %#x, want 0x7", raw[10])
	}
}

func TestBufferPoolDeletePinnedPageFails(t *testing.T) {
	pool, _ := newTestPool(t, 2)
	pg, err := pool.NewPage(replacer.AccessUnknown)
	if err != nil {
		t.Fatalf("NewPage: %v", err)
	}
	if err := pool.DeletePage(pg.ID); err == nil {
		t.Error("DeletePage on a pinned page should fail")
	}
}

func TestBufferPoolGetPinCountUnresidentIsNegativeOne(t *testing.T) {
	pool, _ := newTestPool(t, 2)
	if got := pool.GetPinCount(999); got != -1 {
		t.Errorf("GetPinCount(unresident) = %d, want -1", got)
	}
}

func TestBufferPoolFlushAllPagesClearsDirtyBits(t *testing.T) {
	pool, _ := newTestPool(t, 4)

	ids := make([]int32, 0, 3)
	for i := 0; i < 3; i++ {
		pg, err := pool.NewPage(replacer.AccessUnknown)
		if err != nil {
			t.Fatalf("NewPage: %v", err)
		}
		pg.Data[0] = byte(i + 1)
		ids = append(ids, pg.ID)
		if err := pool.UnpinPage(pg.ID, true, replacer.AccessUnknown); err != nil {
			t.Fatalf("UnpinPage: %v", err)
		}
	}

	if err := pool.FlushAllPages(); err != nil {
		t.Fatalf("FlushAllPages: %v", err)
	}

	for i, id := range ids {
		pg, err := pool.FetchPage(id, replacer.AccessUnknown)
		if err != nil {
			t.Fatalf("FetchPage(%d): %v", id, err)
		}
		if pg.IsDirty {
			t.Errorf("page %d still dirty after FlushAllPages", id)
		}
		if pg.Data[0] != byte(i+1) {
			t.Errorf("page %d byte 0 = %d, want %d", id, pg.Data[0], i+1)
		}
		pool.UnpinPage(id, false, replacer.AccessUnknown)
	}
}
