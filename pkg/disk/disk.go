// Package disk implements the disk manager: fixed-size page io against a
// single database file, plus page id allocation and deallocation.
package disk

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/bits-and-blooms/bitset"
	"github.com/ncw/directio"
	"go.uber.org/zap"
)

// PageSize is the size of an individual page (ie the maximum number of bytes
// that a page can hold) - defaults to 4kb.
const PageSize int64 = directio.BlockSize

// InvalidPageID marks a page id that does not refer to any page.
const InvalidPageID int64 = -1

var (
	// Error for reads/writes addressed to a page id that was never allocated
	// or has since been deallocated.
	ErrPageNotAllocated = errors.New("page not allocated")

	// Error for a backing file whose size is not page aligned.
	ErrCorruptFile = errors.New("db file has been corrupted")
)

// Manager owns the database file and hands out page ids. Deallocated ids are
// tracked in a bitmap and reused by later allocations.
type Manager struct {
	file     *os.File       // File descriptor for the backing database file.
	numPages int64          // One past the highest page id ever allocated.
	freed    *bitset.BitSet // Bitmap of page ids that have been deallocated.
	mtx      sync.Mutex
	log      *zap.Logger
}

// New constructs a disk Manager backed by a database file at the specified
// filePath, creating the file if it doesn't exist. The file's contents must
// be aligned to PageSize.
func New(filePath string, logger *zap.Logger) (*Manager, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	// Create the necessary prerequisite directories.
	if idx := strings.LastIndex(filePath, "/"); idx != -1 {
		if err := os.MkdirAll(filePath[:idx], 0775); err != nil {
			return nil, err
		}
	}
	// Open or create the db file.
	file, err := directio.OpenFile(filePath, os.O_RDWR|os.O_CREATE, 0666)
	if err != nil {
		return nil, err
	}
	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, err
	}
	if info.Size()%PageSize != 0 {
		file.Close()
		return nil, ErrCorruptFile
	}
	m := &Manager{
		file:     file,
		numPages: info.Size() / PageSize,
		freed:    bitset.New(uint(info.Size() / PageSize)),
		log:      logger,
	}
	m.log.Debug("opened database file",
		zap.String("path", filePath), zap.Int64("pages", m.numPages))
	return m, nil
}

// GetFileName returns the file name/path used to open the backing file.
func (m *Manager) GetFileName() string {
	return m.file.Name()
}

// GetNumPages returns the number of page ids handed out so far.
func (m *Manager) GetNumPages() int64 {
	m.mtx.Lock()
	defer m.mtx.Unlock()
	return m.numPages
}

// AllocatePage returns a fresh page id, reusing a previously deallocated id
// when one is available.
func (m *Manager) AllocatePage() int64 {
	m.mtx.Lock()
	defer m.mtx.Unlock()
	if id, ok := m.freed.NextSet(0); ok {
		m.freed.Clear(id)
		return int64(id)
	}
	id := m.numPages
	m.numPages++
	return id
}

// DeallocatePage returns the given page id to the allocator. Reads of a
// deallocated id fail until the id is allocated again.
func (m *Manager) DeallocatePage(pageID int64) {
	m.mtx.Lock()
	defer m.mtx.Unlock()
	if pageID < 0 || pageID >= m.numPages {
		return
	}
	m.freed.Set(uint(pageID))
}

// allocated reports whether pageID currently refers to a live page.
// The mutex should be held on entry.
func (m *Manager) allocated(pageID int64) bool {
	return pageID >= 0 && pageID < m.numPages && !m.freed.Test(uint(pageID))
}

// ReadPage fills buf with the on-disk contents of the given page.
// buf must be PageSize bytes and should be directio-aligned.
func (m *Manager) ReadPage(pageID int64, buf []byte) error {
	m.mtx.Lock()
	defer m.mtx.Unlock()
	if !m.allocated(pageID) {
		return fmt.Errorf("%w: %d", ErrPageNotAllocated, pageID)
	}
	if _, err := m.file.Seek(pageID*PageSize, io.SeekStart); err != nil {
		return err
	}
	// A page that was allocated but never written reads back as zeroes.
	n, err := m.file.Read(buf)
	if err != nil && err != io.EOF {
		m.log.Error("page read failed", zap.Int64("page", pageID), zap.Error(err))
		return err
	}
	clear(buf[n:])
	return nil
}

// WritePage writes buf as the on-disk contents of the given page.
// buf must be PageSize bytes and should be directio-aligned.
func (m *Manager) WritePage(pageID int64, buf []byte) error {
	m.mtx.Lock()
	defer m.mtx.Unlock()
	if !m.allocated(pageID) {
		return fmt.Errorf("%w: %d", ErrPageNotAllocated, pageID)
	}
	if _, err := m.file.WriteAt(buf, pageID*PageSize); err != nil {
		m.log.Error("page write failed", zap.Int64("page", pageID), zap.Error(err))
		return err
	}
	return nil
}

// Close closes the backing file.
func (m *Manager) Close() error {
	m.mtx.Lock()
	defer m.mtx.Unlock()
	return m.file.Close()
}
