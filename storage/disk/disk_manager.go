package disk

import (
	"errors"
	"fmt"
	"io"
	"os"

	"FerroDB/storage/page"
)

// NewManager opens (creating if necessary) the single backing file at path.
func NewManager(path string) (*Manager, error) {
	file, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return nil, fmt.Errorf("disk: open %s: %w", path, err)
	}
	return &Manager{file: file, path: path}, nil
}

// ReadPage reads page pageID into buf, which must be page.Size bytes long.
// A page past the current end of file reads back as all zeros — a brand
// new file behaves exactly like one whose unallocated pages have never
// been written, so the BPM never has to special-case first use.
func (m *Manager) ReadPage(pageID int32, buf []byte) error {
	if len(buf) != page.Size {
		return fmt.Errorf("disk: read page %d: buffer size %d != %d", pageID, len(buf), page.Size)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	offset := int64(pageID) * int64(page.Size)
	n, err := m.file.ReadAt(buf, offset)
	if err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("disk: read page %d: %w", pageID, err)
	}
	for i := n; i < len(buf); i++ {
		buf[i] = 0
	}
	m.reads++
	return nil
}

// WritePage writes buf, which must be page.Size bytes long, to pageID's slot.
func (m *Manager) WritePage(pageID int32, buf []byte) error {
	if len(buf) != page.Size {
		return fmt.Errorf("disk: write page %d: buffer size %d != %d", pageID, len(buf), page.Size)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	offset := int64(pageID) * int64(page.Size)
	if _, err := m.file.WriteAt(buf, offset); err != nil {
		return fmt.Errorf("disk: write page %d: %w", pageID, err)
	}
	m.writes++
	return nil
}

// Sync flushes the backing file to stable storage.
func (m *Manager) Sync() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.file.Sync(); err != nil {
		return fmt.Errorf("disk: sync: %w", err)
	}
	return nil
}

// Close syncs and closes the backing file.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.file.Sync(); err != nil {
		m.file.Close()
		return fmt.Errorf("disk: sync before close: %w", err)
	}
	if err := m.file.Close(); err != nil {
		return fmt.Errorf("disk: close: %w", err)
	}
	return nil
}

// NumPages reports how many whole pages the backing file currently spans.
// The BPM does not consult it: its page ids always start at 0.
func (m *Manager) NumPages() (int32, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	info, err := m.file.Stat()
	if err != nil {
		return 0, fmt.Errorf("disk: stat: %w", err)
	}
	return int32(info.Size() / int64(page.Size)), nil
}

// Stats returns the lifetime read and write counts of this manager.
func (m *Manager) Stats() (reads, writes uint64) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.reads, m.writes
}
