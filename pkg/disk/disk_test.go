package disk_test

import (
	"path/filepath"
	"testing"

	"rexdb/pkg/disk"

	"github.com/ncw/directio"
	"github.com/stretchr/testify/require"
)

func setupDisk(t *testing.T) *disk.Manager {
	t.Parallel()
	manager, err := disk.New(filepath.Join(t.TempDir(), "test.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = manager.Close() })
	return manager
}

func TestDiskAllocation(t *testing.T) {
	manager := setupDisk(t)
	first := manager.AllocatePage()
	second := manager.AllocatePage()
	require.EqualValues(t, 0, first)
	require.EqualValues(t, 1, second)
	require.EqualValues(t, 2, manager.GetNumPages())

	// Deallocated ids come back on the next allocation.
	manager.DeallocatePage(first)
	require.Equal(t, first, manager.AllocatePage())
}

func TestDiskReadWriteRoundTrip(t *testing.T) {
	manager := setupDisk(t)
	pageID := manager.AllocatePage()

	out := directio.AlignedBlock(int(disk.PageSize))
	copy(out, "hello, page")
	require.NoError(t, manager.WritePage(pageID, out))

	in := directio.AlignedBlock(int(disk.PageSize))
	require.NoError(t, manager.ReadPage(pageID, in))
	require.Equal(t, out, in)
}

func TestDiskRejectsUnallocatedPages(t *testing.T) {
	manager := setupDisk(t)
	buf := directio.AlignedBlock(int(disk.PageSize))
	require.ErrorIs(t, manager.ReadPage(0, buf), disk.ErrPageNotAllocated)

	pageID := manager.AllocatePage()
	require.NoError(t, manager.WritePage(pageID, buf))
	manager.DeallocatePage(pageID)
	require.ErrorIs(t, manager.ReadPage(pageID, buf), disk.ErrPageNotAllocated)
	require.ErrorIs(t, manager.WritePage(pageID, buf), disk.ErrPageNotAllocated)
}

func TestDiskFreshPageReadsZeroes(t *testing.T) {
	manager := setupDisk(t)
	pageID := manager.AllocatePage()
	buf := directio.AlignedBlock(int(disk.PageSize))
	require.NoError(t, manager.ReadPage(pageID, buf))
	for _, b := range buf {
		require.Zero(t, b)
	}
}
