package disk

import (
	"os"
	"sync"
)

// Manager owns the single on-disk file backing a contiguous page-id space
// starting at 0; the header page is page id 0. It only knows how to read
// and write whole pages by id — page-id allocation is the BufferPoolManager's
// job.
type Manager struct {
	mu   sync.RWMutex
	file *os.File
	path string

	reads  uint64
	writes uint64
}
