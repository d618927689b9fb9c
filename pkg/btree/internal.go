package btree

import (
	"encoding/binary"
	"sort"

	"rexdb/pkg/buffer"
)

// InternalNode is a non-leaf node holding search keys and child page ids.
// Size counts children; the key slot at index 0 is unused.
type InternalNode struct {
	NodeHeader
}

// pageToInternalNode returns the internal node stored in the specified page.
// Concurrency note: the page must at least be read-latched before calling.
func pageToInternalNode(page *buffer.Page) *InternalNode {
	return &InternalNode{pageToNodeHeader(page)}
}

// entryPos returns the page offset of the (key, child) slot at the given
// index.
func (node *InternalNode) entryPos(index int64) int64 {
	return INTERNAL_NODE_HEADER_SIZE + index*INTERNAL_ENTRY_SIZE
}

// getKeyAt returns the key stored at the given slot. Slot 0's key is
// meaningless.
// Concurrency note: the page must at least be read-latched before calling.
func (node *InternalNode) getKeyAt(index int64) int64 {
	startPos := node.entryPos(index)
	key, _ := binary.Varint(node.page.GetData()[startPos : startPos+KEY_SIZE])
	return key
}

// setKeyAt updates the key at the given slot.
func (node *InternalNode) setKeyAt(index int64, key int64) {
	data := make([]byte, KEY_SIZE)
	binary.PutVarint(data, key)
	node.page.Update(data, node.entryPos(index), KEY_SIZE)
}

// getChildAt returns the child page id stored at the given slot.
// Concurrency note: the page must at least be read-latched before calling.
func (node *InternalNode) getChildAt(index int64) int64 {
	startPos := node.entryPos(index) + KEY_SIZE
	pn, _ := binary.Varint(node.page.GetData()[startPos : startPos+PN_SIZE])
	return pn
}

// setChildAt updates the child page id at the given slot.
func (node *InternalNode) setChildAt(index int64, pn int64) {
	data := make([]byte, PN_SIZE)
	binary.PutVarint(data, pn)
	node.page.Update(data, node.entryPos(index)+KEY_SIZE, PN_SIZE)
}

// search returns the slot of the child subtree that may contain the given
// key: the largest i with key_i <= key, or 0 when every key exceeds it.
func (node *InternalNode) search(cmp Comparator, key int64) int64 {
	// Binary search over slots 1..size-1 for the first key > the target.
	firstGreater := sort.Search(
		int(node.size-1),
		func(idx int) bool {
			return cmp(node.getKeyAt(int64(idx)+1), key) > 0
		},
	)
	return int64(firstGreater)
}

// childIndex returns the slot whose child pointer equals pn, or -1.
// Concurrency note: the page must at least be read-latched before calling.
func (node *InternalNode) childIndex(pn int64) int64 {
	for i := int64(0); i < node.size; i++ {
		if node.getChildAt(i) == pn {
			return i
		}
	}
	return -1
}

// insertAt shifts slots right from the given index and writes the new
// (key, child) pair there. index must be >= 1.
func (node *InternalNode) insertAt(index int64, key int64, childPN int64) {
	for i := node.size - 1; i >= index; i-- {
		node.setKeyAt(i+1, node.getKeyAt(i))
		node.setChildAt(i+1, node.getChildAt(i))
	}
	node.setKeyAt(index, key)
	node.setChildAt(index, childPN)
	node.setSize(node.size + 1)
}

// removeAt deletes the (key, child) slot at the given index, shifting later
// slots left. index must be >= 1.
func (node *InternalNode) removeAt(index int64) {
	for i := index; i < node.size-1; i++ {
		node.setKeyAt(i, node.getKeyAt(i+1))
		node.setChildAt(i, node.getChildAt(i+1))
	}
	node.setSize(node.size - 1)
}
