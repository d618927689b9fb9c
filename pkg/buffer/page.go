package buffer

import (
	"sync"
	"sync/atomic"

	"rexdb/pkg/disk"
)

// InvalidPageID is the page id held by a frame with no resident page.
const InvalidPageID int64 = disk.InvalidPageID

// Page is one frame's view of a disk page: the cached bytes plus the pin and
// dirty bookkeeping the pool needs.
type Page struct {
	id       int64        // Identifier of the resident disk page, or InvalidPageID.
	pinCount atomic.Int64 // The number of active references to this page.
	dirty    bool         // Whether the cached bytes diverge from disk. Set by Update under the page latch; otherwise read and written under the pool mutex.
	rwlock   sync.RWMutex // Reader-writer latch on the page contents.
	data     []byte       // The actual PageSize bytes, directio-aligned.
}

// GetPageID returns the id of the disk page resident in this frame.
func (page *Page) GetPageID() int64 {
	return page.id
}

// GetPinCount returns the number of active references to this page.
func (page *Page) GetPinCount() int64 {
	return page.pinCount.Load()
}

// IsDirty reports whether the page's data has changed and needs to be
// written to disk.
func (page *Page) IsDirty() bool {
	return page.dirty
}

// GetData returns the byte data held by the page.
func (page *Page) GetData() []byte {
	return page.data
}

// Update overwrites `size` bytes of the page with the given data slice at the
// specified offset and marks the page dirty.
// Concurrency note: the page should be write-latched on entry.
func (page *Page) Update(data []byte, offset int64, size int64) {
	page.dirty = true
	copy(page.data[offset:offset+size], data)
}

// zero clears the page's buffer.
func (page *Page) zero() {
	for i := range page.data {
		page.data[i] = 0
	}
}

// [CONCURRENCY] Grab a writers latch on the page.
func (page *Page) WLock() {
	page.rwlock.Lock()
}

// [CONCURRENCY] Release a writers latch.
func (page *Page) WUnlock() {
	page.rwlock.Unlock()
}

// [CONCURRENCY] Grab a readers latch on the page.
func (page *Page) RLock() {
	page.rwlock.RLock()
}

// [CONCURRENCY] Release a readers latch.
func (page *Page) RUnlock() {
	page.rwlock.RUnlock()
}
