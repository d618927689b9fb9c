package btree

import (
	"errors"

	"rexdb/pkg/buffer"
	"rexdb/pkg/rid"
)

// Entry is one (key, rid) pair surfaced by an iterator.
type Entry struct {
	Key   int64
	Value rid.RID
}

// Iterator walks the leaf linked list in ascending key order. It snapshots
// one leaf at a time: the current leaf's entries are copied out under its
// read latch, then the latch and pin are dropped before moving on, so the
// iterator never holds two leaf latches and never pins a page between calls.
type Iterator struct {
	tree    *BPlusTree
	entries []Entry
	pos     int
	nextPN  int64
	err     error
}

// Begin returns an iterator positioned at the first entry of the leftmost
// leaf.
func (tree *BPlusTree) Begin() *Iterator {
	iter := &Iterator{tree: tree, nextPN: InvalidPageID}
	page, err := tree.findLeftmostLeafRead()
	if err != nil {
		iter.err = err
		return iter
	}
	if page == nil {
		return iter
	}
	iter.loadLeaf(page)
	iter.skipEmpty()
	return iter
}

// BeginAt returns an iterator positioned at the first entry whose key is
// >= the given key.
func (tree *BPlusTree) BeginAt(key int64) *Iterator {
	iter := &Iterator{tree: tree, nextPN: InvalidPageID}
	page, err := tree.findLeafRead(key)
	if err != nil {
		iter.err = err
		return iter
	}
	if page == nil {
		return iter
	}
	leaf := pageToLeafNode(page)
	start := leaf.search(tree.cmp, key)
	iter.loadLeaf(page)
	iter.pos = int(start)
	iter.skipEmpty()
	return iter
}

// loadLeaf copies the read-latched leaf's entries into the iterator and
// releases the page.
func (iter *Iterator) loadLeaf(page *buffer.Page) {
	leaf := pageToLeafNode(page)
	iter.entries = make([]Entry, leaf.size)
	for i := int64(0); i < leaf.size; i++ {
		iter.entries[i] = Entry{Key: leaf.getKeyAt(i), Value: leaf.getValueAt(i)}
	}
	iter.pos = 0
	iter.nextPN = leaf.getNextPN()
	page.RUnlock()
	iter.tree.bpm.UnpinPage(page.GetPageID(), false)
}

// skipEmpty advances across exhausted leaves until an entry is available or
// the list ends.
func (iter *Iterator) skipEmpty() {
	for iter.pos >= len(iter.entries) && iter.nextPN != InvalidPageID {
		page, err := iter.tree.bpm.FetchPage(iter.nextPN)
		if err != nil {
			iter.err = err
			iter.entries = nil
			iter.nextPN = InvalidPageID
			return
		}
		page.RLock()
		iter.loadLeaf(page)
	}
}

// Valid reports whether the iterator currently points at an entry.
func (iter *Iterator) Valid() bool {
	return iter.err == nil && iter.pos < len(iter.entries)
}

// Err returns the first error the iterator encountered, if any.
func (iter *Iterator) Err() error {
	return iter.err
}

// Entry returns the current entry. Valid must hold.
func (iter *Iterator) Entry() Entry {
	return iter.entries[iter.pos]
}

// Next advances to the following entry, crossing into the next leaf when the
// current one is exhausted.
func (iter *Iterator) Next() {
	iter.pos++
	iter.skipEmpty()
}

// Select returns every entry in the tree in ascending key order.
func (tree *BPlusTree) Select() ([]Entry, error) {
	entries := make([]Entry, 0)
	iter := tree.Begin()
	for ; iter.Valid(); iter.Next() {
		entries = append(entries, iter.Entry())
	}
	return entries, iter.Err()
}

// SelectRange returns the entries with keys in [startKey, endKey).
func (tree *BPlusTree) SelectRange(startKey int64, endKey int64) ([]Entry, error) {
	if tree.cmp(startKey, endKey) >= 0 {
		return nil, errors.New("startKey is not smaller than endKey")
	}
	entries := make([]Entry, 0)
	iter := tree.BeginAt(startKey)
	for ; iter.Valid(); iter.Next() {
		if tree.cmp(iter.Entry().Key, endKey) >= 0 {
			break
		}
		entries = append(entries, iter.Entry())
	}
	return entries, iter.Err()
}
