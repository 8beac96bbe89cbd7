package replacer

import "testing"

func TestLRUKReplacerColdEvictsOldestFirst(t *testing.T) {
	r := New(8, 2)

	r.RecordAccess(1, AccessUnknown)
	r.RecordAccess(2, AccessUnknown)
	r.RecordAccess(3, AccessUnknown)
	r.SetEvictable(1, true)
	r.SetEvictable(2, true)
	r.SetEvictable(3, true)

	if got := r.Size(); got != 3 {
		t.Fatalf("Size() = %d, want 3", got)
	}

	for _, want := range []int{1, 2, 3} {
		got, ok := r.Evict()
		if !ok {
			t.Fatalf("Evict() returned ok=false, want frame %d", want)
		}
		if got != want {
			t.Errorf("Evict() = %d, want %d", got, want)
		}
	}

	if _, ok := r.Evict(); ok {
		t.Errorf("Evict() on empty replacer returned ok=true")
	}
}

func TestLRUKReplacerColdBeatsWarm(t *testing.T) {
	r := New(8, 2)

	r.RecordAccess(1, AccessUnknown) // t1
	r.RecordAccess(2, AccessUnknown) // t2
	r.RecordAccess(1, AccessUnknown) // t3, frame1 now warm (key = t1)
	r.RecordAccess(2, AccessUnknown) // t4, frame2 now warm (key = t2)
	r.RecordAccess(3, AccessUnknown) // t5, frame3 stays cold

	r.SetEvictable(1, true)
	r.SetEvictable(2, true)
	r.SetEvictable(3, true)

	got, ok := r.Evict()
	if !ok || got != 3 {
		t.Fatalf("Evict() = (%d, %v), want (3, true): a cold frame must be evicted before any warm frame", got, ok)
	}

	// Frame1's K-th-most-recent access (t1) is older than frame2's (t2),
	// so frame1 is the next victim.
	got, ok = r.Evict()
	if !ok || got != 1 {
		t.Fatalf("Evict() = (%d, %v), want (1, true)", got, ok)
	}

	got, ok = r.Evict()
	if !ok || got != 2 {
		t.Fatalf("Evict() = (%d, %v), want (2, true)", got, ok)
	}
}

func TestLRUKReplacerSetEvictableBlocksEviction(t *testing.T) {
	r := New(4, 2)

	r.RecordAccess(1, AccessUnknown)
	r.RecordAccess(2, AccessUnknown)
	r.SetEvictable(1, true)
	r.SetEvictable(2, false)

	if got := r.Size(); got != 1 {
		t.Fatalf("Size() = %d, want 1", got)
	}

	got, ok := r.Evict()
	if !ok || got != 1 {
		t.Fatalf("Evict() = (%d, %v), want (1, true): frame 2 is pinned and must not be chosen", got, ok)
	}

	if _, ok := r.Evict(); ok {
		t.Errorf("Evict() found a victim with only a pinned frame left")
	}
}

func TestLRUKReplacerSetEvictableTogglingIsIdempotentOnCount(t *testing.T) {
	r := New(4, 2)
	r.RecordAccess(1, AccessUnknown)

	r.SetEvictable(1, true)
	r.SetEvictable(1, true)
	if got := r.Size(); got != 1 {
		t.Fatalf("Size() = %d, want 1 after redundant SetEvictable(true)", got)
	}

	r.SetEvictable(1, false)
	r.SetEvictable(1, false)
	if got := r.Size(); got != 0 {
		t.Fatalf("Size() = %d, want 0 after redundant SetEvictable(false)", got)
	}
}

func TestLRUKReplacerRemoveForgetsFrame(t *testing.T) {
	r := New(4, 2)
	r.RecordAccess(1, AccessUnknown)
	r.SetEvictable(1, true)

	r.Remove(1)
	if got := r.Size(); got != 0 {
		t.Fatalf("Size() = %d, want 0 after Remove", got)
	}
	if _, ok := r.Evict(); ok {
		t.Errorf("Evict() found a victim after the only frame was removed")
	}

	// Removing an unknown frame is a harmless no-op.
	r.Remove(99)
}

func TestLRUKReplacerRecordAccessReusesExistingFrame(t *testing.T) {
	r := New(4, 2)
	r.RecordAccess(1, AccessUnknown)
	r.RecordAccess(1, AccessUnknown)
	r.RecordAccess(1, AccessUnknown)
	r.SetEvictable(1, true)

	if got := r.Size(); got != 1 {
		t.Fatalf("Size() = %d, want 1: repeated accesses to one frame must not create duplicates", got)
	}
}
