package bplustree

import (
	"encoding/binary"
	"fmt"

	"FerroDB/storage/buffer"
	"FerroDB/storage/page"
	"FerroDB/storage/replacer"
)

// New constructs a B+Tree backed by bpm, allocating a fresh header page.
// leafMax and internalMax bound the number of keys a leaf or internal page
// may hold before it must split (an internal page's child count is always
// its key count plus one); both min sizes are floor(max/2).
func New[K any, V any](bpm *buffer.Manager, cmp Comparator[K], keyCodec Codec[K], valCodec Codec[V], leafMax, internalMax int) (*BPlusTree[K, V], error) {
	hdr, err := bpm.NewPage(replacer.AccessIndex)
	if err != nil {
		return nil, fmt.Errorf("bplustree: allocate header page: %w", err)
	}
	setRootPageID(hdr, page.InvalidID)
	if err := bpm.UnpinPage(hdr.ID, true, replacer.AccessIndex); err != nil {
		return nil, fmt.Errorf("bplustree: unpin header page: %w", err)
	}

	return &BPlusTree[K, V]{
		bpm:          bpm,
		headerPageID: hdr.ID,
		cmp:          cmp,
		keyCodec:     keyCodec,
		valCodec:     valCodec,
		leafMax:      leafMax,
		internalMax:  internalMax,
		leafMin:      leafMax / 2,
		internalMin:  internalMax / 2,
	}, nil
}

func rootPageID(hdr *page.Page) int32 {
	return int32(binary.LittleEndian.Uint32(hdr.Data[offRootPageID:]))
}

func setRootPageID(hdr *page.Page, id int32) {
	binary.LittleEndian.PutUint32(hdr.Data[offRootPageID:], uint32(id))
}

// GetRootPageID returns the tree's current root page id, or page.InvalidID
// if the tree is empty.
func (t *BPlusTree[K, V]) GetRootPageID() (int32, error) {
	hdr, err := t.bpm.FetchPageRead(t.headerPageID, replacer.AccessIndex)
	if err != nil {
		return page.InvalidID, fmt.Errorf("bplustree: get root: %w", err)
	}
	defer hdr.Drop()
	return rootPageID(hdr.Page()), nil
}

// IsEmpty reports whether the tree currently has no root.
func (t *BPlusTree[K, V]) IsEmpty() (bool, error) {
	id, err := t.GetRootPageID()
	if err != nil {
		return false, err
	}
	return id == page.InvalidID, nil
}
