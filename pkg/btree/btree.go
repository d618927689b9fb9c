// Package btree implements a concurrent unique-key B+Tree index over the
// buffer pool, using latch crabbing for reader/writer concurrency.
package btree

import (
	"fmt"
	"sync"

	"rexdb/pkg/buffer"
	"rexdb/pkg/concurrency"
	"rexdb/pkg/rid"

	"go.uber.org/zap"
)

// Comparator imposes a total order over keys.
type Comparator func(a, b int64) int

// CompareInt64 is the natural int64 ordering.
func CompareInt64(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// opType distinguishes the three descent modes for safety checks.
type opType int

const (
	opFind opType = iota
	opInsert
	opRemove
)

// BPlusTree is a disk-backed B+Tree index. All node storage lives in buffer
// pool pages; nodes reference each other only by page id. The root page id
// is process-wide mutable state guarded by a dedicated root latch and
// mirrored into the header page on every change.
type BPlusTree struct {
	name            string
	bpm             *buffer.Manager
	cmp             Comparator
	leafMaxSize     int64
	internalMaxSize int64
	rootPageID      int64
	rootLatch       sync.Mutex
	log             *zap.Logger
}

// NewBPlusTree opens the index with the given name over the buffer pool,
// recovering its root from the header page if one was recorded. Zero max
// sizes select the page-capacity defaults. logger may be nil.
func NewBPlusTree(name string, bpm *buffer.Manager, cmp Comparator, leafMaxSize int64, internalMaxSize int64, logger *zap.Logger) (*BPlusTree, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if leafMaxSize == 0 {
		leafMaxSize = DEFAULT_LEAF_MAX_SIZE
	}
	if internalMaxSize == 0 {
		internalMaxSize = DEFAULT_INTERNAL_MAX_SIZE
	}
	if leafMaxSize < 2 || leafMaxSize >= LEAF_NODE_CAPACITY {
		return nil, fmt.Errorf("leaf max size %d out of range [2, %d)", leafMaxSize, LEAF_NODE_CAPACITY)
	}
	if internalMaxSize < 3 || internalMaxSize >= INTERNAL_NODE_CAPACITY {
		return nil, fmt.Errorf("internal max size %d out of range [3, %d)", internalMaxSize, INTERNAL_NODE_CAPACITY)
	}
	tree := &BPlusTree{
		name:            name,
		bpm:             bpm,
		cmp:             cmp,
		leafMaxSize:     leafMaxSize,
		internalMaxSize: internalMaxSize,
		rootPageID:      InvalidPageID,
		log:             logger,
	}
	headerPage, err := bpm.FetchPage(HeaderPageID)
	if err != nil {
		return nil, fmt.Errorf("fetching header page: %w", err)
	}
	headerPage.RLock()
	if rootPN, found := findRecord(headerPage, name); found {
		tree.rootPageID = rootPN
	}
	headerPage.RUnlock()
	bpm.UnpinPage(HeaderPageID, false)
	return tree, nil
}

// GetName returns the index's name.
func (tree *BPlusTree) GetName() string {
	return tree.name
}

// GetRootPageID returns the current root page id.
// Mainly useful for inspection; the value may be stale by the time it is used.
func (tree *BPlusTree) GetRootPageID() int64 {
	tree.rootLatch.Lock()
	defer tree.rootLatch.Unlock()
	return tree.rootPageID
}

// updateRootRecord mirrors the current root page id into the header page.
// The root latch should be held on entry.
func (tree *BPlusTree) updateRootRecord() error {
	headerPage, err := tree.bpm.FetchPage(HeaderPageID)
	if err != nil {
		return fmt.Errorf("fetching header page: %w", err)
	}
	headerPage.WLock()
	err = upsertRecord(headerPage, tree.name, tree.rootPageID)
	headerPage.WUnlock()
	tree.bpm.UnpinPage(HeaderPageID, true)
	return err
}

// isSafe reports whether a successful op on the node cannot propagate to its
// parent. The root gets relaxed bounds: an internal root may shrink to two
// children and a leaf root to one entry without restructuring.
func (tree *BPlusTree) isSafe(header *NodeHeader, op opType) bool {
	switch op {
	case opInsert:
		return header.size < header.maxSize
	case opRemove:
		if header.isRoot() {
			if header.nodeType == LEAF_NODE {
				return header.size > 1
			}
			return header.size > 2
		}
		return header.size > header.minSize()
	default:
		return true
	}
}

// releaseAncestors unlatches and unpins every page deposited in the
// transaction, then drops the root latch if this operation still holds it.
func (tree *BPlusTree) releaseAncestors(txn *concurrency.Transaction, rootLocked *bool) {
	for _, page := range txn.DrainPageSet() {
		page.WUnlock()
		tree.bpm.UnpinPage(page.GetPageID(), false)
	}
	if *rootLocked {
		tree.rootLatch.Unlock()
		*rootLocked = false
	}
}

// newLeafPage allocates and initializes a fresh leaf node. The page comes
// back pinned and unlatched; it is private until linked into the tree.
func (tree *BPlusTree) newLeafPage(parentPN int64) (*buffer.Page, *LeafNode, error) {
	page, err := tree.bpm.NewPage()
	if err != nil {
		return nil, nil, err
	}
	initPage(page, LEAF_NODE, tree.leafMaxSize)
	node := pageToLeafNode(page)
	node.setNextPN(InvalidPageID)
	node.setParentPN(parentPN)
	return page, node, nil
}

// newInternalPage allocates and initializes a fresh internal node.
func (tree *BPlusTree) newInternalPage(parentPN int64) (*buffer.Page, *InternalNode, error) {
	page, err := tree.bpm.NewPage()
	if err != nil {
		return nil, nil, err
	}
	initPage(page, INTERNAL_NODE, tree.internalMaxSize)
	node := pageToInternalNode(page)
	node.setParentPN(parentPN)
	return page, node, nil
}

// setChildParent rewrites a child's parent pointer. Pages this operation
// already holds write-latched are updated in place; anything else is briefly
// latched for the write.
func (tree *BPlusTree) setChildParent(childPN int64, parentPN int64, held map[int64]*buffer.Page) error {
	if page, ok := held[childPN]; ok {
		header := pageToNodeHeader(page)
		header.setParentPN(parentPN)
		return nil
	}
	page, err := tree.bpm.FetchPage(childPN)
	if err != nil {
		return err
	}
	page.WLock()
	header := pageToNodeHeader(page)
	header.setParentPN(parentPN)
	page.WUnlock()
	tree.bpm.UnpinPage(childPN, true)
	return nil
}

/////////////////////////////////////////////////////////////////////////////
/////////////////////////////////// Search //////////////////////////////////
/////////////////////////////////////////////////////////////////////////////

// findLeafRead descends to the leaf that may contain the given key using
// pure read crabbing: each child is read-latched before its parent is
// released. Returns nil if the tree is empty; otherwise the leaf comes back
// read-latched and pinned.
func (tree *BPlusTree) findLeafRead(key int64) (*buffer.Page, error) {
	tree.rootLatch.Lock()
	if tree.rootPageID == InvalidPageID {
		tree.rootLatch.Unlock()
		return nil, nil
	}
	page, err := tree.bpm.FetchPage(tree.rootPageID)
	if err != nil {
		tree.rootLatch.Unlock()
		return nil, err
	}
	page.RLock()
	tree.rootLatch.Unlock()
	header := pageToNodeHeader(page)
	for header.nodeType == INTERNAL_NODE {
		node := pageToInternalNode(page)
		childPN := node.getChildAt(node.search(tree.cmp, key))
		childPage, err := tree.bpm.FetchPage(childPN)
		if err != nil {
			page.RUnlock()
			tree.bpm.UnpinPage(page.GetPageID(), false)
			return nil, err
		}
		childPage.RLock()
		page.RUnlock()
		tree.bpm.UnpinPage(page.GetPageID(), false)
		page = childPage
		header = pageToNodeHeader(page)
	}
	return page, nil
}

// findLeftmostLeafRead descends along slot 0 to the leftmost leaf with read
// crabbing.
func (tree *BPlusTree) findLeftmostLeafRead() (*buffer.Page, error) {
	tree.rootLatch.Lock()
	if tree.rootPageID == InvalidPageID {
		tree.rootLatch.Unlock()
		return nil, nil
	}
	page, err := tree.bpm.FetchPage(tree.rootPageID)
	if err != nil {
		tree.rootLatch.Unlock()
		return nil, err
	}
	page.RLock()
	tree.rootLatch.Unlock()
	header := pageToNodeHeader(page)
	for header.nodeType == INTERNAL_NODE {
		node := pageToInternalNode(page)
		childPage, err := tree.bpm.FetchPage(node.getChildAt(0))
		if err != nil {
			page.RUnlock()
			tree.bpm.UnpinPage(page.GetPageID(), false)
			return nil, err
		}
		childPage.RLock()
		page.RUnlock()
		tree.bpm.UnpinPage(page.GetPageID(), false)
		page = childPage
		header = pageToNodeHeader(page)
	}
	return page, nil
}

// GetValue returns the rids stored under the given key; the slice is empty
// on a miss. Keys are unique, so at most one rid comes back.
func (tree *BPlusTree) GetValue(key int64) ([]rid.RID, error) {
	page, err := tree.findLeafRead(key)
	if err != nil || page == nil {
		return nil, err
	}
	leaf := pageToLeafNode(page)
	var result []rid.RID
	idx := leaf.search(tree.cmp, key)
	if idx < leaf.size && tree.cmp(leaf.getKeyAt(idx), key) == 0 {
		result = append(result, leaf.getValueAt(idx))
	}
	page.RUnlock()
	tree.bpm.UnpinPage(page.GetPageID(), false)
	return result, nil
}

/////////////////////////////////////////////////////////////////////////////
/////////////////////////////// Write descent ///////////////////////////////
/////////////////////////////////////////////////////////////////////////////

// findLeafWrite descends to the target leaf for a mutation.
//
// Optimistic mode read-latches internal levels and write-latches only the
// leaf, betting the mutation stays local. Pessimistic mode write-latches the
// whole path, depositing ancestors into the transaction and releasing them
// the moment a node proves safe for the operation.
//
// The root latch stays held (reported through the returned flag) for as long
// as the operation might still change the root page id. An empty tree grows
// a root leaf for inserts and returns nil for removes.
func (tree *BPlusTree) findLeafWrite(key int64, op opType, optimistic bool, txn *concurrency.Transaction) (*buffer.Page, bool, error) {
	tree.rootLatch.Lock()
	rootLocked := true
	if tree.rootPageID == InvalidPageID {
		if op != opInsert {
			tree.rootLatch.Unlock()
			return nil, false, nil
		}
		page, _, err := tree.newLeafPage(InvalidPageID)
		if err != nil {
			tree.rootLatch.Unlock()
			return nil, false, err
		}
		tree.rootPageID = page.GetPageID()
		if err := tree.updateRootRecord(); err != nil {
			tree.bpm.UnpinPage(page.GetPageID(), false)
			tree.rootLatch.Unlock()
			return nil, false, err
		}
		page.WLock()
		return page, rootLocked, nil
	}

	page, err := tree.bpm.FetchPage(tree.rootPageID)
	if err != nil {
		tree.rootLatch.Unlock()
		return nil, false, err
	}

	if optimistic {
		header := pageToNodeHeader(page)
		if header.nodeType == LEAF_NODE {
			// A root leaf split would change the root id, so the root
			// latch stays held until the leaf proves safe.
			page.WLock()
		} else {
			page.RLock()
			tree.rootLatch.Unlock()
			rootLocked = false
		}
		header = pageToNodeHeader(page)
		for header.nodeType == INTERNAL_NODE {
			node := pageToInternalNode(page)
			childPN := node.getChildAt(node.search(tree.cmp, key))
			childPage, err := tree.bpm.FetchPage(childPN)
			if err != nil {
				page.RUnlock()
				tree.bpm.UnpinPage(page.GetPageID(), false)
				if rootLocked {
					tree.rootLatch.Unlock()
				}
				return nil, false, err
			}
			// Latch the child for reading first to decode its type; the
			// parent latch pins the child's identity, so a leaf can be
			// re-latched for writing without revalidation.
			childPage.RLock()
			childHeader := pageToNodeHeader(childPage)
			if childHeader.nodeType == LEAF_NODE {
				childPage.RUnlock()
				childPage.WLock()
			}
			page.RUnlock()
			tree.bpm.UnpinPage(page.GetPageID(), false)
			page = childPage
			header = childHeader
		}
		return page, rootLocked, nil
	}

	// Pessimistic descent.
	page.WLock()
	header := pageToNodeHeader(page)
	if tree.isSafe(&header, op) {
		tree.rootLatch.Unlock()
		rootLocked = false
	}
	for header.nodeType == INTERNAL_NODE {
		node := pageToInternalNode(page)
		childPN := node.getChildAt(node.search(tree.cmp, key))
		childPage, err := tree.bpm.FetchPage(childPN)
		if err != nil {
			page.WUnlock()
			tree.bpm.UnpinPage(page.GetPageID(), false)
			tree.releaseAncestors(txn, &rootLocked)
			return nil, false, err
		}
		childPage.WLock()
		txn.AddIntoPageSet(page)
		childHeader := pageToNodeHeader(childPage)
		if tree.isSafe(&childHeader, op) {
			tree.releaseAncestors(txn, &rootLocked)
		}
		page = childPage
		header = childHeader
	}
	return page, rootLocked, nil
}

/////////////////////////////////////////////////////////////////////////////
////////////////////////////////// Insert ///////////////////////////////////
/////////////////////////////////////////////////////////////////////////////

// insertIntoLeaf places (key, value) into the leaf, rejecting duplicates.
func (tree *BPlusTree) insertIntoLeaf(leaf *LeafNode, key int64, value rid.RID) bool {
	idx := leaf.search(tree.cmp, key)
	if idx < leaf.size && tree.cmp(leaf.getKeyAt(idx), key) == 0 {
		return false
	}
	leaf.insertAt(idx, key, value)
	return true
}

// Insert adds (key, value) to the tree, returning false without modification
// if the key is already present. The optimistic path is tried first and the
// operation restarts pessimistically when the leaf may split.
func (tree *BPlusTree) Insert(key int64, value rid.RID, txn *concurrency.Transaction) (bool, error) {
	page, rootLocked, err := tree.findLeafWrite(key, opInsert, true, txn)
	if err != nil {
		return false, err
	}
	leaf := pageToLeafNode(page)
	if tree.isSafe(&leaf.NodeHeader, opInsert) {
		inserted := tree.insertIntoLeaf(leaf, key, value)
		page.WUnlock()
		tree.bpm.UnpinPage(page.GetPageID(), inserted)
		if rootLocked {
			tree.rootLatch.Unlock()
		}
		return inserted, nil
	}
	page.WUnlock()
	tree.bpm.UnpinPage(page.GetPageID(), false)
	if rootLocked {
		tree.rootLatch.Unlock()
	}
	return tree.insertPessimistic(key, value, txn)
}

// insertPessimistic re-runs the insert holding write latches down the unsafe
// suffix of the path, splitting the leaf and propagating upward as needed.
func (tree *BPlusTree) insertPessimistic(key int64, value rid.RID, txn *concurrency.Transaction) (bool, error) {
	page, rootLocked, err := tree.findLeafWrite(key, opInsert, false, txn)
	if err != nil {
		return false, err
	}
	leaf := pageToLeafNode(page)

	if tree.isSafe(&leaf.NodeHeader, opInsert) {
		// A concurrent remove made room since the optimistic attempt.
		inserted := tree.insertIntoLeaf(leaf, key, value)
		page.WUnlock()
		tree.bpm.UnpinPage(page.GetPageID(), inserted)
		tree.releaseAncestors(txn, &rootLocked)
		return inserted, nil
	}

	// The slot array keeps one spare entry, so the insert lands before the
	// overflow is resolved by splitting.
	if !tree.insertIntoLeaf(leaf, key, value) {
		page.WUnlock()
		tree.bpm.UnpinPage(page.GetPageID(), false)
		tree.releaseAncestors(txn, &rootLocked)
		return false, nil
	}

	rightPage, right, err := tree.newLeafPage(leaf.getParentPN())
	if err != nil {
		page.WUnlock()
		tree.bpm.UnpinPage(page.GetPageID(), true)
		tree.releaseAncestors(txn, &rootLocked)
		return false, err
	}
	leaf.moveHalfTo(right)
	right.setNextPN(leaf.getNextPN())
	leaf.setNextPN(rightPage.GetPageID())

	held := map[int64]*buffer.Page{
		page.GetPageID():      page,
		rightPage.GetPageID(): rightPage,
	}
	err = tree.insertInParent(page, rightPage, right.getKeyAt(0), txn, &rootLocked, held)

	tree.bpm.UnpinPage(rightPage.GetPageID(), true)
	page.WUnlock()
	tree.bpm.UnpinPage(page.GetPageID(), true)
	tree.releaseAncestors(txn, &rootLocked)
	return true, err
}

// insertInParent splices a freshly split right sibling into the parent of
// leftPage, recursing when the parent overflows in turn. The parent must be
// the most recently deposited page in the transaction; it is released here
// once the structural change above it is complete.
func (tree *BPlusTree) insertInParent(leftPage *buffer.Page, rightPage *buffer.Page, key int64, txn *concurrency.Transaction, rootLocked *bool, held map[int64]*buffer.Page) error {
	left := pageToNodeHeader(leftPage)
	right := pageToNodeHeader(rightPage)

	if left.isRoot() {
		// Root split: publish a new root with the two halves as children.
		rootPage, root, err := tree.newInternalPage(InvalidPageID)
		if err != nil {
			return err
		}
		root.setChildAt(0, leftPage.GetPageID())
		root.setKeyAt(1, key)
		root.setChildAt(1, rightPage.GetPageID())
		root.setSize(2)
		left.setParentPN(rootPage.GetPageID())
		right.setParentPN(rootPage.GetPageID())
		tree.rootPageID = rootPage.GetPageID()
		err = tree.updateRootRecord()
		tree.bpm.UnpinPage(rootPage.GetPageID(), true)
		tree.log.Debug("root split",
			zap.String("index", tree.name),
			zap.Int64("root", tree.rootPageID))
		return err
	}

	parentPage := txn.PopPageSet()
	if parentPage == nil {
		panic("split propagated past the deposited ancestors")
	}
	held[parentPage.GetPageID()] = parentPage
	parent := pageToInternalNode(parentPage)

	idx := parent.childIndex(leftPage.GetPageID())
	if idx < 0 {
		panic("split source missing from its parent")
	}
	parent.insertAt(idx+1, key, rightPage.GetPageID())
	right.setParentPN(parentPage.GetPageID())

	var err error
	if parent.size > parent.maxSize {
		var newPage *buffer.Page
		var newNode *InternalNode
		newPage, newNode, err = tree.newInternalPage(parent.getParentPN())
		if err == nil {
			held[newPage.GetPageID()] = newPage
			mid := parent.size / 2
			pushKey := parent.getKeyAt(mid)
			j := int64(0)
			for i := mid; i < parent.size; i++ {
				if j > 0 {
					newNode.setKeyAt(j, parent.getKeyAt(i))
				}
				newNode.setChildAt(j, parent.getChildAt(i))
				j++
			}
			newNode.setSize(j)
			parent.setSize(mid)
			for i := int64(0); i < newNode.size && err == nil; i++ {
				err = tree.setChildParent(newNode.getChildAt(i), newPage.GetPageID(), held)
			}
			if err == nil {
				err = tree.insertInParent(parentPage, newPage, pushKey, txn, rootLocked, held)
			}
			delete(held, newPage.GetPageID())
			tree.bpm.UnpinPage(newPage.GetPageID(), true)
		}
	}

	delete(held, parentPage.GetPageID())
	parentPage.WUnlock()
	tree.bpm.UnpinPage(parentPage.GetPageID(), true)
	return err
}

/////////////////////////////////////////////////////////////////////////////
////////////////////////////////// Remove ///////////////////////////////////
/////////////////////////////////////////////////////////////////////////////

// removeFromLeaf deletes key from the leaf, reporting whether it was present.
func (tree *BPlusTree) removeFromLeaf(leaf *LeafNode, key int64) bool {
	idx := leaf.search(tree.cmp, key)
	if idx >= leaf.size || tree.cmp(leaf.getKeyAt(idx), key) != 0 {
		return false
	}
	leaf.removeAt(idx)
	return true
}

// Remove deletes the entry with the given key; absent keys are a no-op. The
// optimistic path is tried first and the operation restarts pessimistically
// when the leaf may underflow.
func (tree *BPlusTree) Remove(key int64, txn *concurrency.Transaction) error {
	page, rootLocked, err := tree.findLeafWrite(key, opRemove, true, txn)
	if err != nil || page == nil {
		return err
	}
	leaf := pageToLeafNode(page)
	if tree.isSafe(&leaf.NodeHeader, opRemove) {
		removed := tree.removeFromLeaf(leaf, key)
		page.WUnlock()
		tree.bpm.UnpinPage(page.GetPageID(), removed)
		if rootLocked {
			tree.rootLatch.Unlock()
		}
		return nil
	}
	page.WUnlock()
	tree.bpm.UnpinPage(page.GetPageID(), false)
	if rootLocked {
		tree.rootLatch.Unlock()
	}
	return tree.removePessimistic(key, txn)
}

// removePessimistic re-runs the remove holding write latches down the unsafe
// suffix of the path, rebalancing upward as needed. Pages merged away are
// deleted only after every latch is released.
func (tree *BPlusTree) removePessimistic(key int64, txn *concurrency.Transaction) error {
	page, rootLocked, err := tree.findLeafWrite(key, opRemove, false, txn)
	if err != nil || page == nil {
		return err
	}
	leaf := pageToLeafNode(page)
	removed := tree.removeFromLeaf(leaf, key)
	if removed {
		if leaf.isRoot() {
			if leaf.size == 0 {
				// Last entry gone: the tree is empty again.
				tree.rootPageID = InvalidPageID
				err = tree.updateRootRecord()
				txn.AddIntoDeletedPageSet(page.GetPageID())
			}
		} else if leaf.size < leaf.minSize() {
			held := map[int64]*buffer.Page{page.GetPageID(): page}
			err = tree.handleUnderflow(page, txn, rootLocked, held)
		}
	}
	page.WUnlock()
	tree.bpm.UnpinPage(page.GetPageID(), removed)
	tree.releaseAncestors(txn, &rootLocked)
	for _, pid := range txn.DrainDeletedPageSet() {
		tree.bpm.DeletePage(pid)
	}
	return err
}

// handleUnderflow rebalances a non-root node that shrank below its minimum:
// borrow one entry from a sibling with surplus, otherwise merge with a
// sibling and recurse into the parent. The parent must be the most recently
// deposited page in the transaction; it is released here. nodePage itself is
// released by the caller.
func (tree *BPlusTree) handleUnderflow(nodePage *buffer.Page, txn *concurrency.Transaction, rootLocked bool, held map[int64]*buffer.Page) error {
	parentPage := txn.PopPageSet()
	if parentPage == nil {
		panic("underflow propagated past the deposited ancestors")
	}
	held[parentPage.GetPageID()] = parentPage
	parent := pageToInternalNode(parentPage)
	idx := parent.childIndex(nodePage.GetPageID())
	if idx < 0 {
		panic("node missing from its parent")
	}

	var err error
	merged := false
	if idx > 0 {
		// Prefer the immediate left sibling.
		siblingPage, ferr := tree.bpm.FetchPage(parent.getChildAt(idx - 1))
		if ferr != nil {
			err = ferr
		} else {
			siblingPage.WLock()
			sibling := pageToNodeHeader(siblingPage)
			if sibling.size > sibling.minSize() {
				err = tree.borrowFromLeft(parent, idx, siblingPage, nodePage, held)
			} else {
				err = tree.mergeIntoLeft(parent, idx, siblingPage, nodePage, held)
				txn.AddIntoDeletedPageSet(nodePage.GetPageID())
				merged = true
			}
			siblingPage.WUnlock()
			tree.bpm.UnpinPage(siblingPage.GetPageID(), true)
		}
	} else {
		siblingPage, ferr := tree.bpm.FetchPage(parent.getChildAt(idx + 1))
		if ferr != nil {
			err = ferr
		} else {
			siblingPage.WLock()
			sibling := pageToNodeHeader(siblingPage)
			if sibling.size > sibling.minSize() {
				err = tree.borrowFromRight(parent, idx, nodePage, siblingPage, held)
			} else {
				err = tree.mergeFromRight(parent, idx, nodePage, siblingPage, held)
				txn.AddIntoDeletedPageSet(siblingPage.GetPageID())
				merged = true
			}
			siblingPage.WUnlock()
			tree.bpm.UnpinPage(siblingPage.GetPageID(), true)
		}
	}

	if err == nil && merged {
		if parent.isRoot() {
			if parent.size == 1 {
				// The root is down to a single child: promote it.
				if !rootLocked {
					panic("root collapse without the root latch")
				}
				survivorPN := parent.getChildAt(0)
				tree.rootPageID = survivorPN
				err = tree.updateRootRecord()
				if err == nil {
					err = tree.setChildParent(survivorPN, InvalidPageID, held)
				}
				txn.AddIntoDeletedPageSet(parentPage.GetPageID())
				tree.log.Debug("root collapse",
					zap.String("index", tree.name),
					zap.Int64("root", tree.rootPageID))
			}
		} else if parent.size < parent.minSize() {
			err = tree.handleUnderflow(parentPage, txn, rootLocked, held)
		}
	}

	delete(held, parentPage.GetPageID())
	parentPage.WUnlock()
	tree.bpm.UnpinPage(parentPage.GetPageID(), true)
	return err
}

// borrowFromLeft shifts the left sibling's last entry into node and updates
// the separator in the parent.
func (tree *BPlusTree) borrowFromLeft(parent *InternalNode, idx int64, leftPage *buffer.Page, nodePage *buffer.Page, held map[int64]*buffer.Page) error {
	if pageToNodeHeader(nodePage).nodeType == LEAF_NODE {
		left := pageToLeafNode(leftPage)
		node := pageToLeafNode(nodePage)
		movedKey := left.getKeyAt(left.size - 1)
		movedValue := left.getValueAt(left.size - 1)
		left.setSize(left.size - 1)
		node.insertAt(0, movedKey, movedValue)
		parent.setKeyAt(idx, movedKey)
		return nil
	}
	left := pageToInternalNode(leftPage)
	node := pageToInternalNode(nodePage)
	movedChild := left.getChildAt(left.size - 1)
	upKey := left.getKeyAt(left.size - 1)
	left.setSize(left.size - 1)
	// The separator rotates down into node; the left sibling's last key
	// rotates up into the parent.
	for i := node.size - 1; i >= 0; i-- {
		node.setChildAt(i+1, node.getChildAt(i))
		if i >= 1 {
			node.setKeyAt(i+1, node.getKeyAt(i))
		}
	}
	node.setChildAt(0, movedChild)
	node.setKeyAt(1, parent.getKeyAt(idx))
	node.setSize(node.size + 1)
	parent.setKeyAt(idx, upKey)
	return tree.setChildParent(movedChild, nodePage.GetPageID(), held)
}

// borrowFromRight shifts the right sibling's first entry into node and
// updates the separator in the parent.
func (tree *BPlusTree) borrowFromRight(parent *InternalNode, idx int64, nodePage *buffer.Page, rightPage *buffer.Page, held map[int64]*buffer.Page) error {
	if pageToNodeHeader(nodePage).nodeType == LEAF_NODE {
		node := pageToLeafNode(nodePage)
		right := pageToLeafNode(rightPage)
		node.insertAt(node.size, right.getKeyAt(0), right.getValueAt(0))
		right.removeAt(0)
		parent.setKeyAt(idx+1, right.getKeyAt(0))
		return nil
	}
	node := pageToInternalNode(nodePage)
	right := pageToInternalNode(rightPage)
	movedChild := right.getChildAt(0)
	upKey := right.getKeyAt(1)
	node.setKeyAt(node.size, parent.getKeyAt(idx+1))
	node.setChildAt(node.size, movedChild)
	node.setSize(node.size + 1)
	// Shift the right sibling left over its surrendered first child.
	for i := int64(0); i < right.size-1; i++ {
		right.setChildAt(i, right.getChildAt(i+1))
		if i >= 1 {
			right.setKeyAt(i, right.getKeyAt(i+1))
		}
	}
	right.setSize(right.size - 1)
	parent.setKeyAt(idx+1, upKey)
	return tree.setChildParent(movedChild, nodePage.GetPageID(), held)
}

// mergeIntoLeft folds node into its left sibling and drops the separator
// from the parent. node becomes garbage; the caller schedules its deletion.
func (tree *BPlusTree) mergeIntoLeft(parent *InternalNode, idx int64, leftPage *buffer.Page, nodePage *buffer.Page, held map[int64]*buffer.Page) error {
	if pageToNodeHeader(nodePage).nodeType == LEAF_NODE {
		left := pageToLeafNode(leftPage)
		node := pageToLeafNode(nodePage)
		left.appendFrom(node)
		left.setNextPN(node.getNextPN())
		parent.removeAt(idx)
		return nil
	}
	left := pageToInternalNode(leftPage)
	node := pageToInternalNode(nodePage)
	separator := parent.getKeyAt(idx)
	var err error
	for i := int64(0); i < node.size; i++ {
		key := separator
		if i > 0 {
			key = node.getKeyAt(i)
		}
		left.setKeyAt(left.size, key)
		left.setChildAt(left.size, node.getChildAt(i))
		left.setSize(left.size + 1)
		if err == nil {
			err = tree.setChildParent(node.getChildAt(i), leftPage.GetPageID(), held)
		}
	}
	parent.removeAt(idx)
	return err
}

// mergeFromRight folds the right sibling into node and drops the separator
// from the parent. The sibling becomes garbage; the caller schedules its
// deletion.
func (tree *BPlusTree) mergeFromRight(parent *InternalNode, idx int64, nodePage *buffer.Page, rightPage *buffer.Page, held map[int64]*buffer.Page) error {
	if pageToNodeHeader(nodePage).nodeType == LEAF_NODE {
		node := pageToLeafNode(nodePage)
		right := pageToLeafNode(rightPage)
		node.appendFrom(right)
		node.setNextPN(right.getNextPN())
		parent.removeAt(idx + 1)
		return nil
	}
	node := pageToInternalNode(nodePage)
	right := pageToInternalNode(rightPage)
	separator := parent.getKeyAt(idx + 1)
	var err error
	for i := int64(0); i < right.size; i++ {
		key := separator
		if i > 0 {
			key = right.getKeyAt(i)
		}
		node.setKeyAt(node.size, key)
		node.setChildAt(node.size, right.getChildAt(i))
		node.setSize(node.size + 1)
		if err == nil {
			err = tree.setChildParent(right.getChildAt(i), nodePage.GetPageID(), held)
		}
	}
	parent.removeAt(idx + 1)
	return err
}
