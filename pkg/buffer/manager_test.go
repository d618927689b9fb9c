package buffer_test

import (
	"bytes"
	"errors"
	"path/filepath"
	"testing"

	"rexdb/pkg/buffer"
	"rexdb/pkg/disk"
)

// setupManager creates a buffer pool of the given size over a fresh
// temporary database file.
func setupManager(t *testing.T, poolSize int64) *buffer.Manager {
	t.Parallel()
	diskManager, err := disk.New(filepath.Join(t.TempDir(), "test.db"), nil)
	if err != nil {
		t.Fatal("failed to create disk manager:", err)
	}
	manager := buffer.NewManager(poolSize, diskManager, 2, nil, nil)
	t.Cleanup(func() { _ = diskManager.Close() })
	return manager
}

// newPage allocates a page, failing the test on error.
func newPage(t *testing.T, manager *buffer.Manager) *buffer.Page {
	t.Helper()
	page, err := manager.NewPage()
	if err != nil {
		t.Fatal("failed to allocate page:", err)
	}
	return page
}

func TestManagerExhaustion(t *testing.T) {
	manager := setupManager(t, 1)
	page := newPage(t, manager)
	if _, err := manager.NewPage(); !errors.Is(err, buffer.ErrNoFreeFrames) {
		t.Errorf("expected ErrNoFreeFrames with every frame pinned, got %v", err)
	}
	// Unpinning frees the frame for the next allocation.
	if !manager.UnpinPage(page.GetPageID(), false) {
		t.Fatal("failed to unpin page")
	}
	newPage(t, manager)
}

func TestManagerDeleteDeallocates(t *testing.T) {
	manager := setupManager(t, 4)
	page := newPage(t, manager)
	pageID := page.GetPageID()

	if manager.DeletePage(pageID) {
		t.Error("deleting a pinned page should fail")
	}
	if !manager.UnpinPage(pageID, false) {
		t.Fatal("failed to unpin page")
	}
	if !manager.DeletePage(pageID) {
		t.Error("deleting an unpinned page should succeed")
	}
	if _, err := manager.FetchPage(pageID); err == nil {
		t.Error("fetching a deallocated page should fail")
	}
	// Deleting a non-resident page reports success.
	if !manager.DeletePage(pageID) {
		t.Error("deleting a non-resident page should report success")
	}
}

func TestManagerDirtyEvictionRoundTrip(t *testing.T) {
	manager := setupManager(t, 2)
	page := newPage(t, manager)
	pageID := page.GetPageID()
	payload := []byte("storage engines are fun")
	page.Update(payload, 0, int64(len(payload)))
	if !manager.UnpinPage(pageID, true) {
		t.Fatal("failed to unpin page")
	}

	// Churn through enough pages to force the dirty page out.
	for i := 0; i < 4; i++ {
		extra := newPage(t, manager)
		manager.UnpinPage(extra.GetPageID(), false)
	}

	fetched, err := manager.FetchPage(pageID)
	if err != nil {
		t.Fatal("failed to re-fetch evicted page:", err)
	}
	if !bytes.Equal(fetched.GetData()[:len(payload)], payload) {
		t.Errorf("page contents lost across eviction: %q", fetched.GetData()[:len(payload)])
	}
	manager.UnpinPage(pageID, false)
}

// TestManagerChurn pins three pages into a three-frame pool, unpins the
// first two, and checks that the next allocation evicts the page with the
// oldest access while the pinned page keeps its frame.
func TestManagerChurn(t *testing.T) {
	manager := setupManager(t, 3)
	p1 := newPage(t, manager)
	p2 := newPage(t, manager)
	p3 := newPage(t, manager)

	id1, id2 := p1.GetPageID(), p2.GetPageID()
	manager.UnpinPage(id1, false)
	manager.UnpinPage(id2, false)
	p4 := newPage(t, manager)

	// p1 had the oldest access, so its frame was the victim.
	if p4 != p1 {
		t.Error("expected the new page to land in p1's frame")
	}
	if p2.GetPageID() != id2 {
		t.Error("p2 should not have been evicted before p1")
	}
	fetched, err := manager.FetchPage(p3.GetPageID())
	if err != nil {
		t.Fatal("pinned page lost its frame:", err)
	}
	if fetched != p3 {
		t.Error("fetching a resident page should return the same frame")
	}
	if fetched.GetPinCount() != 2 {
		t.Errorf("expected pin count 2 on re-fetched page, have %d", fetched.GetPinCount())
	}
}

func TestManagerUnpinMisuse(t *testing.T) {
	manager := setupManager(t, 2)
	if manager.UnpinPage(99, false) {
		t.Error("unpinning a non-resident page should fail")
	}
	page := newPage(t, manager)
	if !manager.UnpinPage(page.GetPageID(), false) {
		t.Fatal("failed to unpin page")
	}
	if manager.UnpinPage(page.GetPageID(), false) {
		t.Error("unpinning a zero-pin page should fail")
	}
}

func TestManagerFlushPage(t *testing.T) {
	manager := setupManager(t, 2)
	if manager.FlushPage(buffer.InvalidPageID) {
		t.Error("flushing the invalid page id should fail")
	}
	if manager.FlushPage(42) {
		t.Error("flushing a non-resident page should fail")
	}
	page := newPage(t, manager)
	if !manager.FlushPage(page.GetPageID()) {
		t.Error("flushing a resident page should succeed")
	}
	if page.IsDirty() {
		t.Error("flush should clear the dirty bit")
	}
	manager.UnpinPage(page.GetPageID(), false)
}
