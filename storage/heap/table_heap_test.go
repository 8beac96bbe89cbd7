package heap

import "testing"

func TestInsertAndGetTuple(t *testing.T) {
	h := New()

	r := h.Insert([]byte("alice"))
	tuple, meta, err := h.GetTuple(r)
	if err != nil {
		t.Fatalf("GetTuple: %v", err)
	}
	if string(tuple) != "alice" {
		t.Errorf("tuple = %q, want %q", tuple, "alice")
	}
	if meta.IsDeleted {
		t.Error("freshly inserted tuple reports IsDeleted")
	}
}

func TestInsertAssignsDistinctRIDs(t *testing.T) {
	h := New()
	r1 := h.Insert([]byte("a"))
	r2 := h.Insert([]byte("b"))
	if r1 == r2 {
		t.Fatalf("two inserts got the same RID %s", r1)
	}
}

func TestDeleteMarksTombstoneWithoutErasingBytes(t *testing.T) {
	h := New()
	r := h.Insert([]byte("to-delete"))

	if err := h.Delete(r); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	tuple, meta, err := h.GetTuple(r)
	if err != nil {
		t.Fatalf("GetTuple: %v", err)
	}
	if !meta.IsDeleted {
		t.Error("Delete did not set IsDeleted")
	}
	if string(tuple) != "to-delete" {
		t.Errorf("tuple bytes = %q, want unchanged %q", tuple, "to-delete")
	}
}

func TestUndoDeleteByClearingTombstone(t *testing.T) {
	h := New()
	r := h.Insert([]byte("x"))
	h.Delete(r)

	if err := h.UpdateTupleMeta(r, TupleMeta{IsDeleted: false}); err != nil {
		t.Fatalf("UpdateTupleMeta: %v", err)
	}
	_, meta, err := h.GetTuple(r)
	if err != nil {
		t.Fatalf("GetTuple: %v", err)
	}
	if meta.IsDeleted {
		t.Error("tombstone was not cleared")
	}
}

func TestUpdateTupleInPlace(t *testing.T) {
	h := New()
	r := h.Insert([]byte("before"))

	if err := h.UpdateTupleInPlace(r, []byte("after")); err != nil {
		t.Fatalf("UpdateTupleInPlace: %v", err)
	}
	tuple, _, err := h.GetTuple(r)
	if err != nil {
		t.Fatalf("GetTuple: %v", err)
	}
	if string(tuple) != "after" {
		t.Errorf("tuple = %q, want %q", tuple, "after")
	}
}

func TestOperationsOnMissingRIDFail(t *testing.T) {
	h := New()
	missing := h.Insert([]byte("placeholder"))
	h.Delete(missing) // sanity: real RID succeeds

	bogus := missing
	bogus.Slot++

	if _, _, err := h.GetTuple(bogus); err == nil {
		t.Error("GetTuple on an unknown RID should fail")
	}
	if err := h.UpdateTupleMeta(bogus, TupleMeta{}); err == nil {
		t.Error("UpdateTupleMeta on an unknown RID should fail")
	}
	if err := h.UpdateTupleInPlace(bogus, []byte("x")); err == nil {
		t.Error("UpdateTupleInPlace on an unknown RID should fail")
	}
	if err := h.Delete(bogus); err == nil {
		t.Error("Delete on an unknown RID should fail")
	}
}
