package hash

import (
	"math/rand"
	"testing"

	"golang.org/x/sync/errgroup"
)

// Mod vals by this value to prevent hardcoding tests
var hashSalt = rand.Int63n(1000) + 1

// identity hashes a key to itself, making directory placement predictable.
func identity(key int64) uint64 {
	return uint64(key)
}

// generateValue deterministically derives a value from a key.
func generateValue(key int64) int64 {
	return (key * 31) % hashSalt
}

// checkFound verifies that key maps to the expected value.
func checkFound(t *testing.T, table *ExtendibleHashTable[int64, int64], key int64, expected int64) {
	t.Helper()
	value, found := table.Find(key)
	if !found {
		t.Errorf("expected to find key %d", key)
		return
	}
	if value != expected {
		t.Errorf("expected key %d to map to %d, found %d", key, expected, value)
	}
}

func TestHashInsertAndFind(t *testing.T) {
	t.Parallel()
	table := NewInt64[int64](4)
	numInserts := int64(1000)
	for i := int64(0); i < numInserts; i++ {
		table.Insert(i, generateValue(i))
	}
	for i := int64(0); i < numInserts; i++ {
		checkFound(t, table, i, generateValue(i))
	}
	if _, found := table.Find(numInserts + 1); found {
		t.Error("found a key that was never inserted")
	}
}

func TestHashInsertExistingUpdates(t *testing.T) {
	t.Parallel()
	table := NewInt64[int64](4)
	table.Insert(42, 1)
	table.Insert(42, 2)
	checkFound(t, table, 42, 2)
	if table.GetNumBuckets() != 1 {
		t.Errorf("updating in place should not split; have %d buckets", table.GetNumBuckets())
	}
}

func TestHashRemove(t *testing.T) {
	t.Parallel()
	table := NewInt64[int64](4)
	for i := int64(0); i < 100; i++ {
		table.Insert(i, generateValue(i))
	}
	for i := int64(0); i < 100; i += 2 {
		if !table.Remove(i) {
			t.Errorf("failed to remove present key %d", i)
		}
	}
	for i := int64(0); i < 100; i++ {
		_, found := table.Find(i)
		if i%2 == 0 && found {
			t.Errorf("found removed key %d", i)
		}
		if i%2 == 1 && !found {
			t.Errorf("lost surviving key %d", i)
		}
	}
	if table.Remove(1000) {
		t.Error("removed a key that was never inserted")
	}
}

// TestHashDirectoryInvariants checks the structural invariants after a pile
// of inserts: the directory length matches the global depth, the bucket
// count matches the number of distinct buckets, and every key lives in a
// bucket whose low local-depth bits agree with its directory index.
func TestHashDirectoryInvariants(t *testing.T) {
	t.Parallel()
	table := NewInt64[int64](4)
	for i := int64(0); i < 2000; i++ {
		table.Insert(i, i)
	}

	table.rwlock.RLock()
	defer table.rwlock.RUnlock()
	if len(table.dir) != 1<<table.globalDepth {
		t.Errorf("directory has %d entries, want 2^%d", len(table.dir), table.globalDepth)
	}
	distinct := make(map[*Bucket[int64, int64]]bool)
	for i, bucket := range table.dir {
		distinct[bucket] = true
		localDepth := bucket.GetDepth()
		if localDepth > table.globalDepth {
			t.Fatalf("bucket %d has local depth %d > global depth %d", i, localDepth, table.globalDepth)
		}
		mask := uint64(1)<<localDepth - 1
		for _, key := range bucket.keys() {
			if table.hasher(key)&mask != uint64(i)&mask {
				t.Errorf("key %d misplaced in bucket at index %d (local depth %d)", key, i, localDepth)
			}
		}
	}
	if len(distinct) != table.numBuckets {
		t.Errorf("counted %d distinct buckets, table reports %d", len(distinct), table.numBuckets)
	}
}

// TestHashAliasCount checks that 2^(G-L) directory entries share each bucket.
func TestHashAliasCount(t *testing.T) {
	t.Parallel()
	table := New[int64, int64](2, identity)
	for i := int64(0); i < 64; i++ {
		table.Insert(i, i)
	}
	table.rwlock.RLock()
	defer table.rwlock.RUnlock()
	aliases := make(map[*Bucket[int64, int64]]int)
	for _, bucket := range table.dir {
		aliases[bucket]++
	}
	for bucket, count := range aliases {
		expected := 1 << (table.globalDepth - bucket.GetDepth())
		if count != expected {
			t.Errorf("bucket with local depth %d has %d aliases, want %d",
				bucket.GetDepth(), count, expected)
		}
	}
}

// TestHashDoublingUnderContention runs two writers whose keys all collide in
// bucket 0 under the low four bits, forcing repeated directory doubling.
func TestHashDoublingUnderContention(t *testing.T) {
	t.Parallel()
	table := New[int64, int64](4, identity)
	var g errgroup.Group
	for w := int64(0); w < 2; w++ {
		g.Go(func() error {
			for i := int64(0); i < 16; i++ {
				// Low 4 bits are zero for every key.
				key := (w*16 + i) << 4
				table.Insert(key, key+1)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatal(err)
	}
	if depth := table.GetGlobalDepth(); depth < 4 {
		t.Errorf("expected global depth >= 4 after colliding inserts, have %d", depth)
	}
	for w := int64(0); w < 2; w++ {
		for i := int64(0); i < 16; i++ {
			key := (w*16 + i) << 4
			checkFound(t, table, key, key+1)
		}
	}
}
