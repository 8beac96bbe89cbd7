// Package bplustree implements a concurrent, page-resident B+Tree over
// buffer-pool pages: header/internal/leaf layouts, latch-crabbing descent
// with an optimistic-then-pessimistic fallback on insert and remove, and a
// forward leaf iterator.
//
// Tree
//
//	Header (root_page_id)
//	 └── Internal (separator keys + child page ids)
//	        └── Internal ...
//	               └── Leaf (keys + values, sorted, linked via next_page_id)
//
// Key and Value are compile-time generic parameters: a Comparator gives
// them a total order, a Codec gives them a fixed-width on-page encoding.
package bplustree

import (
	"encoding/binary"
	"sync"

	"FerroDB/storage/buffer"
	"FerroDB/storage/page"
)

// NodeType distinguishes an internal page from a leaf page by the tag byte
// stored at offType.
type NodeType byte

const (
	nodeInternal NodeType = 1
	nodeLeaf     NodeType = 2
)

// Comparator gives Key a total order: negative if a < b, zero if equal,
// positive if a > b.
type Comparator[K any] func(a, b K) int

// Codec gives a type a fixed-width on-page encoding.
type Codec[T any] struct {
	Size   int
	Encode func(v T, buf []byte)
	Decode func(buf []byte) T
}

// on-page layout offsets shared by internal and leaf pages.
const (
	offType    = 0 // byte
	offSize    = 2 // int16
	offMaxSize = 4 // int16
	offNext    = 6 // int32, leaf only
	offData    = 10
)

// offRootPageID is the header page's only field.
const offRootPageID = 0

// BPlusTree is an ordered Key -> Value index persisted across BPM page
// evictions. All public operations are thread-safe via latch crabbing.
type BPlusTree[K any, V any] struct {
	bpm *buffer.Manager

	headerPageID int32

	cmp      Comparator[K]
	keyCodec Codec[K]
	valCodec Codec[V]

	leafMax     int
	internalMax int
	leafMin     int
	internalMin int

	// mu is not locked by any operation in this package; the header page
	// is allocated once in New, and mu is not part of the crabbing protocol.
	mu sync.Mutex
}

func (t *BPlusTree[K, V]) leafEntrySize() int {
	return t.keyCodec.Size + t.valCodec.Size
}

func (t *BPlusTree[K, V]) internalEntrySize() int {
	return t.keyCodec.Size + 4
}

func pageType(pg *page.Page) NodeType {
	return NodeType(pg.Data[offType])
}

func pageSize(pg *page.Page) int {
	return int(binary.LittleEndian.Uint16(pg.Data[offSize:]))
}

func setPageSize(pg *page.Page, n int) {
	binary.LittleEndian.PutUint16(pg.Data[offSize:], uint16(n))
}

func pageMaxSize(pg *page.Page) int {
	return int(binary.LittleEndian.Uint16(pg.Data[offMaxSize:]))
}

func setPageMaxSize(pg *page.Page, n int) {
	binary.LittleEndian.PutUint16(pg.Data[offMaxSize:], uint16(n))
}

func leafNext(pg *page.Page) int32 {
	return int32(binary.LittleEndian.Uint32(pg.Data[offNext:]))
}

func setLeafNext(pg *page.Page, id int32) {
	binary.LittleEndian.PutUint32(pg.Data[offNext:], uint32(id))
}
