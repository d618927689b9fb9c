// Package buffer implements the buffer pool manager mediating between
// fixed-size disk pages and their in-memory frames, together with the LRU-K
// replacer that picks eviction victims.
package buffer

import (
	"errors"
	"sync"

	"rexdb/pkg/disk"
	"rexdb/pkg/hash"
	"rexdb/pkg/list"

	"github.com/ncw/directio"
	"go.uber.org/zap"
)

// Error for when every frame in the pool is pinned.
var ErrNoFreeFrames = errors.New("no available frames")

// Number of entries per page-table bucket.
const pageTableBucketSize = 8

// Manager owns a fixed array of frames, the free list, the page table
// mapping resident page ids to frame indices, and the replacer. A single
// pool-wide mutex serializes all operations.
type Manager struct {
	pages     []*Page                                 // The pool's frames, indexed by frame id.
	freeList  *list.List[int64]                       // Frame indices not holding any page.
	pageTable *hash.ExtendibleHashTable[int64, int64] // page id -> frame index for resident pages.
	replacer  *LRUKReplacer
	disk      *disk.Manager
	mtx       sync.Mutex
	log       *zap.Logger
	metrics   *Metrics
}

// NewManager constructs a buffer pool with poolSize frames over the given
// disk manager, evicting with LRU-K for the given replacerK. logger and
// metrics may be nil.
func NewManager(poolSize int64, diskManager *disk.Manager, replacerK int, logger *zap.Logger, metrics *Metrics) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	manager := &Manager{
		pages:     make([]*Page, poolSize),
		freeList:  list.NewList[int64](),
		pageTable: hash.NewInt64[int64](pageTableBucketSize),
		replacer:  NewLRUKReplacer(poolSize, replacerK),
		disk:      diskManager,
		log:       logger,
		metrics:   metrics,
	}
	// One aligned allocation sliced into frames, so every page buffer is
	// usable for O_DIRECT io.
	frames := directio.AlignedBlock(int(disk.PageSize * poolSize))
	for i := int64(0); i < poolSize; i++ {
		manager.pages[i] = &Page{
			id:   InvalidPageID,
			data: frames[i*disk.PageSize : (i+1)*disk.PageSize],
		}
		manager.freeList.PushTail(i)
	}
	return manager
}

// GetDiskManager returns the disk manager backing this pool.
func (manager *Manager) GetDiskManager() *disk.Manager {
	return manager.disk
}

// acquireFrame returns the index of a frame ready to hold a new page, taking
// the free list first and falling back to evicting a replacer victim. A
// dirty victim is flushed before its frame is reused, and its page-table
// entry removed. The pool mutex should be held on entry.
func (manager *Manager) acquireFrame() (int64, error) {
	if frameID, ok := manager.freeList.PopHead(); ok {
		return frameID, nil
	}
	frameID, ok := manager.replacer.Evict()
	if !ok {
		return 0, ErrNoFreeFrames
	}
	page := manager.pages[frameID]
	if page.dirty {
		if err := manager.disk.WritePage(page.id, page.data); err != nil {
			return 0, err
		}
		manager.metrics.flush()
		page.dirty = false
	}
	manager.pageTable.Remove(page.id)
	manager.metrics.eviction()
	manager.log.Debug("evicted page",
		zap.Int64("page", page.id), zap.Int64("frame", frameID))
	page.id = InvalidPageID
	page.zero()
	return frameID, nil
}

// NewPage allocates a fresh page id, installs it in a frame, and returns the
// frame's page pinned. Returns ErrNoFreeFrames when every frame is pinned.
func (manager *Manager) NewPage() (*Page, error) {
	manager.mtx.Lock()
	defer manager.mtx.Unlock()
	frameID, err := manager.acquireFrame()
	if err != nil {
		return nil, err
	}
	pageID := manager.disk.AllocatePage()
	page := manager.pages[frameID]
	page.id = pageID
	page.pinCount.Store(1)
	// Mark dirty so a never-updated page still reaches disk on eviction.
	page.dirty = true
	manager.pageTable.Insert(pageID, frameID)
	manager.replacer.RecordAccess(frameID)
	manager.replacer.SetEvictable(frameID, false)
	return page, nil
}

// FetchPage returns the page with the given id pinned, reading it from disk
// if it is not resident. Returns ErrNoFreeFrames when the page is not
// resident and every frame is pinned.
func (manager *Manager) FetchPage(pageID int64) (*Page, error) {
	manager.mtx.Lock()
	defer manager.mtx.Unlock()
	if frameID, ok := manager.pageTable.Find(pageID); ok {
		page := manager.pages[frameID]
		page.pinCount.Add(1)
		manager.replacer.RecordAccess(frameID)
		manager.replacer.SetEvictable(frameID, false)
		manager.metrics.hit()
		return page, nil
	}
	frameID, err := manager.acquireFrame()
	if err != nil {
		return nil, err
	}
	page := manager.pages[frameID]
	if err := manager.disk.ReadPage(pageID, page.data); err != nil {
		manager.freeList.PushTail(frameID)
		return nil, err
	}
	page.id = pageID
	page.pinCount.Store(1)
	page.dirty = false
	manager.pageTable.Insert(pageID, frameID)
	manager.replacer.RecordAccess(frameID)
	manager.replacer.SetEvictable(frameID, false)
	manager.metrics.miss()
	return page, nil
}

// UnpinPage releases one reference to the given page, or-assigning the dirty
// flag. The frame becomes evictable when its pin count reaches zero. Returns
// false if the page is not resident or was not pinned.
func (manager *Manager) UnpinPage(pageID int64, dirty bool) bool {
	manager.mtx.Lock()
	defer manager.mtx.Unlock()
	frameID, ok := manager.pageTable.Find(pageID)
	if !ok {
		return false
	}
	page := manager.pages[frameID]
	if page.GetPinCount() <= 0 {
		return false
	}
	if dirty {
		page.dirty = true
	}
	if page.pinCount.Add(-1) == 0 {
		manager.replacer.SetEvictable(frameID, true)
	}
	return true
}

// FlushPage writes the given page to disk unconditionally and clears its
// dirty bit. Returns false if the page is not resident or the id is invalid.
func (manager *Manager) FlushPage(pageID int64) bool {
	manager.mtx.Lock()
	defer manager.mtx.Unlock()
	return manager.flushPage(pageID)
}

// flushPage is FlushPage without the pool mutex.
func (manager *Manager) flushPage(pageID int64) bool {
	if pageID == InvalidPageID {
		return false
	}
	frameID, ok := manager.pageTable.Find(pageID)
	if !ok {
		return false
	}
	page := manager.pages[frameID]
	if err := manager.disk.WritePage(pageID, page.data); err != nil {
		manager.log.Error("flush failed", zap.Int64("page", pageID), zap.Error(err))
		return false
	}
	manager.metrics.flush()
	page.dirty = false
	return true
}

// FlushAllPages flushes every resident page to disk.
func (manager *Manager) FlushAllPages() {
	manager.mtx.Lock()
	defer manager.mtx.Unlock()
	for _, page := range manager.pages {
		if page.id != InvalidPageID {
			manager.flushPage(page.id)
		}
	}
}

// DeletePage drops the given page from the pool and deallocates its id.
// Returns true if the page was not resident, false if it is still pinned.
func (manager *Manager) DeletePage(pageID int64) bool {
	manager.mtx.Lock()
	defer manager.mtx.Unlock()
	frameID, ok := manager.pageTable.Find(pageID)
	if !ok {
		return true
	}
	page := manager.pages[frameID]
	if page.GetPinCount() > 0 {
		return false
	}
	manager.replacer.Remove(frameID)
	manager.pageTable.Remove(pageID)
	page.id = InvalidPageID
	page.pinCount.Store(0)
	page.dirty = false
	page.zero()
	manager.freeList.PushTail(frameID)
	manager.disk.DeallocatePage(pageID)
	return true
}

// Close flushes all resident pages and closes the backing disk manager.
func (manager *Manager) Close() error {
	manager.FlushAllPages()
	return manager.disk.Close()
}
