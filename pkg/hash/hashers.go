package hash

import (
	"encoding/binary"

	"github.com/cespare/xxhash"
	"github.com/spaolacci/murmur3"
)

// getHash uses the given hasher function to calculate and return
// the hash of an int64 key.
func getHash(hasher func(b []byte) uint64, key int64) uint64 {
	buf := make([]byte, binary.MaxVarintLen64)
	binary.PutVarint(buf, key)
	return hasher(buf)
}

// XxHasher returns the xxHash hash of the given key.
func XxHasher(key int64) uint64 {
	return getHash(xxhash.Sum64, key)
}

// MurmurHasher returns the MurmurHash3 hash of the given key.
func MurmurHasher(key int64) uint64 {
	return getHash(murmur3.Sum64, key)
}
