package bplustree

import (
	"encoding/binary"

	"FerroDB/storage/page"
)

// leafView and internalView are typed reinterpretations of a raw page's
// payload bytes. They hold no state of their own beyond the
// comparator/codec pair needed to decode entries; the bytes live in the
// guard's page.

type leafView[K any, V any] struct {
	pg    *page.Page
	t     *BPlusTree[K, V]
}

func (t *BPlusTree[K, V]) leaf(pg *page.Page) leafView[K, V] {
	return leafView[K, V]{pg: pg, t: t}
}

func (v leafView[K, V]) size() int    { return pageSize(v.pg) }
func (v leafView[K, V]) maxSize() int { return pageMaxSize(v.pg) }
func (v leafView[K, V]) next() int32  { return leafNext(v.pg) }

func (v leafView[K, V]) entryOffset(i int) int {
	return offData + i*v.t.leafEntrySize()
}

func (v leafView[K, V]) keyAt(i int) K {
	off := v.entryOffset(i)
	return v.t.keyCodec.Decode(v.pg.Data[off : off+v.t.keyCodec.Size])
}

func (v leafView[K, V]) valueAt(i int) V {
	off := v.entryOffset(i) + v.t.keyCodec.Size
	return v.t.valCodec.Decode(v.pg.Data[off : off+v.t.valCodec.Size])
}

func (v leafView[K, V]) setEntry(i int, k K, val V) {
	off := v.entryOffset(i)
	v.t.keyCodec.Encode(k, v.pg.Data[off:off+v.t.keyCodec.Size])
	v.t.valCodec.Encode(val, v.pg.Data[off+v.t.keyCodec.Size:off+v.t.leafEntrySize()])
}

// insertAt shifts entries [i, size) right by one slot and writes (k, val)
// at i, growing size by one.
func (v leafView[K, V]) insertAt(i int, k K, val V) {
	n := v.size()
	es := v.t.leafEntrySize()
	base := offData
	copy(v.pg.Data[base+(i+1)*es:base+(n+1)*es], v.pg.Data[base+i*es:base+n*es])
	setPageSize(v.pg, n+1)
	v.setEntry(i, k, val)
}

// removeAt deletes the entry at i, shifting the remainder left.
func (v leafView[K, V]) removeAt(i int) {
	n := v.size()
	es := v.t.leafEntrySize()
	base := offData
	copy(v.pg.Data[base+i*es:base+(n-1)*es], v.pg.Data[base+(i+1)*es:base+n*es])
	setPageSize(v.pg, n-1)
}

func (v leafView[K, V]) init(maxSize int) {
	v.pg.Data[offType] = byte(nodeLeaf)
	setPageSize(v.pg, 0)
	setPageMaxSize(v.pg, maxSize)
	setLeafNext(v.pg, page.InvalidID)
}

func (v leafView[K, V]) setNext(id int32) { setLeafNext(v.pg, id) }

type internalView[K any, V any] struct {
	pg *page.Page
	t  *BPlusTree[K, V]
}

func (t *BPlusTree[K, V]) internal(pg *page.Page) internalView[K, V] {
	return internalView[K, V]{pg: pg, t: t}
}

func (v internalView[K, V]) size() int    { return pageSize(v.pg) }
func (v internalView[K, V]) maxSize() int { return pageMaxSize(v.pg) }

// childOffset returns the byte offset of child[i].
func (v internalView[K, V]) childOffset(i int) int {
	if i == 0 {
		return offData - 4
	}
	return offData + (i-1)*v.t.internalEntrySize() + v.t.keyCodec.Size
}

// keyOffset returns the byte offset of key[i]; i must be >= 1.
func (v internalView[K, V]) keyOffset(i int) int {
	return offData + (i-1)*v.t.internalEntrySize()
}

func (v internalView[K, V]) childAt(i int) int32 {
	off := v.childOffset(i)
	return int32(binary.LittleEndian.Uint32(v.pg.Data[off:]))
}

func (v internalView[K, V]) setChildAt(i int, id int32) {
	off := v.childOffset(i)
	binary.LittleEndian.PutUint32(v.pg.Data[off:], uint32(id))
}

func (v internalView[K, V]) keyAt(i int) K {
	off := v.keyOffset(i)
	return v.t.keyCodec.Decode(v.pg.Data[off : off+v.t.keyCodec.Size])
}

func (v internalView[K, V]) setKeyAt(i int, k K) {
	off := v.keyOffset(i)
	v.t.keyCodec.Encode(k, v.pg.Data[off:off+v.t.keyCodec.Size])
}

// insertAt inserts (key, child) as slot i (i>=1), shifting slots [i, size]
// right by one and growing size by one. The caller sets child[0] directly
// via setChildAt(0, ...) when splitting; insertAt never touches slot 0.
func (v internalView[K, V]) insertAt(i int, key K, child int32) {
	n := v.size()
	es := v.t.internalEntrySize()
	base := offData
	copy(v.pg.Data[base+i*es:base+(n+1)*es], v.pg.Data[base+(i-1)*es:base+n*es])
	setPageSize(v.pg, n+1)
	v.setKeyAt(i, key)
	v.setChildAt(i, child)
}

// removeAt deletes slot i (i>=1), shifting the remainder left.
func (v internalView[K, V]) removeAt(i int) {
	n := v.size()
	es := v.t.internalEntrySize()
	base := offData
	copy(v.pg.Data[base+(i-1)*es:base+(n-1)*es], v.pg.Data[base+i*es:base+n*es])
	setPageSize(v.pg, n-1)
}

func (v internalView[K, V]) init(maxSize int) {
	v.pg.Data[offType] = byte(nodeInternal)
	setPageSize(v.pg, 0)
	setPageMaxSize(v.pg, maxSize)
}
