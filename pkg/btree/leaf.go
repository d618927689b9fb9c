package btree

import (
	"encoding/binary"
	"sort"

	"rexdb/pkg/buffer"
	"rexdb/pkg/rid"
)

// LeafNode is a node at the bottom of the tree holding the actual (key, rid)
// entries, linked to its right sibling.
type LeafNode struct {
	NodeHeader
	nextPN int64 // page id of the right sibling leaf, or InvalidPageID
}

// pageToLeafNode returns the leaf node stored in the specified page.
// Concurrency note: the page must at least be read-latched before calling.
func pageToLeafNode(page *buffer.Page) *LeafNode {
	header := pageToNodeHeader(page)
	nextPN, _ := binary.Varint(
		page.GetData()[NEXT_PN_OFFSET : NEXT_PN_OFFSET+NEXT_PN_SIZE])
	return &LeafNode{header, nextPN}
}

// getNextPN returns the page id of the right sibling leaf.
func (node *LeafNode) getNextPN() int64 {
	return node.nextPN
}

// setNextPN updates the right sibling pointer in the struct and the page.
func (node *LeafNode) setNextPN(pn int64) {
	node.nextPN = pn
	data := make([]byte, NEXT_PN_SIZE)
	binary.PutVarint(data, pn)
	node.page.Update(data, NEXT_PN_OFFSET, NEXT_PN_SIZE)
}

// entryPos returns the page offset of the entry at the given index.
func (node *LeafNode) entryPos(index int64) int64 {
	return LEAF_NODE_HEADER_SIZE + index*LEAF_ENTRY_SIZE
}

// getKeyAt returns the key stored at the given index.
// Concurrency note: the page must at least be read-latched before calling.
func (node *LeafNode) getKeyAt(index int64) int64 {
	startPos := node.entryPos(index)
	key, _ := binary.Varint(node.page.GetData()[startPos : startPos+KEY_SIZE])
	return key
}

// getValueAt returns the rid stored at the given index.
// Concurrency note: the page must at least be read-latched before calling.
func (node *LeafNode) getValueAt(index int64) rid.RID {
	startPos := node.entryPos(index) + KEY_SIZE
	return rid.Unmarshal(node.page.GetData()[startPos : startPos+rid.Size])
}

// setEntryAt overwrites the entry at the given index.
func (node *LeafNode) setEntryAt(index int64, key int64, value rid.RID) {
	keyData := make([]byte, KEY_SIZE)
	binary.PutVarint(keyData, key)
	node.page.Update(keyData, node.entryPos(index), KEY_SIZE)
	node.page.Update(value.Marshal(), node.entryPos(index)+KEY_SIZE, rid.Size)
}

// search returns the first index whose key >= the given key.
// If no key satisfies this condition, returns size.
func (node *LeafNode) search(cmp Comparator, key int64) int64 {
	minIndex := sort.Search(
		int(node.size),
		func(idx int) bool {
			return cmp(node.getKeyAt(int64(idx)), key) >= 0
		},
	)
	return int64(minIndex)
}

// insertAt shifts entries right from the given index and writes the new
// entry there.
func (node *LeafNode) insertAt(index int64, key int64, value rid.RID) {
	for i := node.size - 1; i >= index; i-- {
		node.setEntryAt(i+1, node.getKeyAt(i), node.getValueAt(i))
	}
	node.setEntryAt(index, key, value)
	node.setSize(node.size + 1)
}

// removeAt deletes the entry at the given index, shifting later entries left.
func (node *LeafNode) removeAt(index int64) {
	for i := index; i < node.size-1; i++ {
		node.setEntryAt(i, node.getKeyAt(i+1), node.getValueAt(i+1))
	}
	node.setSize(node.size - 1)
}

// moveHalfTo moves the upper half of this node's entries to the (empty)
// right sibling.
func (node *LeafNode) moveHalfTo(right *LeafNode) {
	midpoint := node.size / 2
	for i := midpoint; i < node.size; i++ {
		right.setEntryAt(right.size, node.getKeyAt(i), node.getValueAt(i))
		right.setSize(right.size + 1)
	}
	node.setSize(midpoint)
}

// appendFrom appends every entry of the given node, used when folding a
// sibling in during a merge.
func (node *LeafNode) appendFrom(other *LeafNode) {
	for i := int64(0); i < other.size; i++ {
		node.setEntryAt(node.size, other.getKeyAt(i), other.getValueAt(i))
		node.setSize(node.size + 1)
	}
}
