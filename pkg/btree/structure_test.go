package btree

import (
	"path/filepath"
	"testing"

	"rexdb/pkg/buffer"
	"rexdb/pkg/concurrency"
	"rexdb/pkg/disk"
	"rexdb/pkg/rid"
)

// setupSmallTree builds a tree with tiny fan-outs over a fresh buffer pool
// so splits and merges trigger after a handful of inserts.
func setupSmallTree(t *testing.T, leafMax int64, internalMax int64) *BPlusTree {
	t.Parallel()
	diskManager, err := disk.New(filepath.Join(t.TempDir(), "test.db"), nil)
	if err != nil {
		t.Fatal("failed to create disk manager:", err)
	}
	bpm := buffer.NewManager(16, diskManager, 2, nil, nil)
	t.Cleanup(func() { _ = bpm.Close() })

	headerPage, err := bpm.NewPage()
	if err != nil || headerPage.GetPageID() != HeaderPageID {
		t.Fatal("failed to create header page:", err)
	}
	bpm.UnpinPage(HeaderPageID, true)

	tree, err := NewBPlusTree("testindex", bpm, CompareInt64, leafMax, internalMax, nil)
	if err != nil {
		t.Fatal("failed to create tree:", err)
	}
	return tree
}

func insertKey(t *testing.T, tree *BPlusTree, key int64) {
	t.Helper()
	inserted, err := tree.Insert(key, rid.New(key, 0), concurrency.NewTransaction())
	if err != nil || !inserted {
		t.Fatalf("failed to insert key %d: inserted=%v err=%v", key, inserted, err)
	}
}

// TestSplitPropagation inserts 1..4 into a leaf of max size 3 and checks the
// exact post-split shape: root keys [_, 3], left leaf [1, 2], right leaf
// [3, 4], and the leaf chain left -> right -> end.
func TestSplitPropagation(t *testing.T) {
	tree := setupSmallTree(t, 3, 3)
	for key := int64(1); key <= 4; key++ {
		insertKey(t, tree, key)
	}

	rootPage, err := tree.bpm.FetchPage(tree.GetRootPageID())
	if err != nil {
		t.Fatal("failed to fetch root:", err)
	}
	defer tree.bpm.UnpinPage(rootPage.GetPageID(), false)
	root := pageToInternalNode(rootPage)
	if root.getNodeType() != INTERNAL_NODE {
		t.Fatal("root should be internal after the split")
	}
	if root.size != 2 {
		t.Fatalf("root should have two children, has %d", root.size)
	}
	if got := root.getKeyAt(1); got != 3 {
		t.Errorf("root separator should be 3, is %d", got)
	}

	leftPage, err := tree.bpm.FetchPage(root.getChildAt(0))
	if err != nil {
		t.Fatal("failed to fetch left leaf:", err)
	}
	defer tree.bpm.UnpinPage(leftPage.GetPageID(), false)
	rightPage, err := tree.bpm.FetchPage(root.getChildAt(1))
	if err != nil {
		t.Fatal("failed to fetch right leaf:", err)
	}
	defer tree.bpm.UnpinPage(rightPage.GetPageID(), false)

	left := pageToLeafNode(leftPage)
	right := pageToLeafNode(rightPage)
	if left.size != 2 || left.getKeyAt(0) != 1 || left.getKeyAt(1) != 2 {
		t.Errorf("left leaf should hold [1 2], holds %d keys", left.size)
	}
	if right.size != 2 || right.getKeyAt(0) != 3 || right.getKeyAt(1) != 4 {
		t.Errorf("right leaf should hold [3 4], holds %d keys", right.size)
	}
	if left.getNextPN() != rightPage.GetPageID() {
		t.Error("left leaf should link to the right leaf")
	}
	if right.getNextPN() != InvalidPageID {
		t.Error("right leaf should terminate the chain")
	}
	if left.getParentPN() != rootPage.GetPageID() || right.getParentPN() != rootPage.GetPageID() {
		t.Error("both leaves should point at the new root")
	}
}

// TestRemoveRestoresStructure undoes an insert that caused a split and
// checks that the tree collapses back: merging the leaves, promoting the
// survivor as root, and finally emptying out entirely.
func TestRemoveRestoresStructure(t *testing.T) {
	tree := setupSmallTree(t, 3, 3)
	for key := int64(1); key <= 4; key++ {
		insertKey(t, tree, key)
	}

	// Removing 4 underflows the right leaf; its sibling has no surplus, so
	// the leaves merge and the root collapses to a single leaf.
	if err := tree.Remove(4, concurrency.NewTransaction()); err != nil {
		t.Fatal("remove failed:", err)
	}
	rootPage, err := tree.bpm.FetchPage(tree.GetRootPageID())
	if err != nil {
		t.Fatal("failed to fetch root:", err)
	}
	root := pageToLeafNode(rootPage)
	if root.getNodeType() != LEAF_NODE {
		t.Fatal("root should collapse back to a leaf")
	}
	if root.size != 3 || root.getKeyAt(0) != 1 || root.getKeyAt(2) != 3 {
		t.Errorf("root leaf should hold [1 2 3], holds %d keys", root.size)
	}
	if !root.isRoot() {
		t.Error("promoted root should have no parent")
	}
	tree.bpm.UnpinPage(rootPage.GetPageID(), false)

	for key := int64(1); key <= 3; key++ {
		if err := tree.Remove(key, concurrency.NewTransaction()); err != nil {
			t.Fatal("remove failed:", err)
		}
	}
	if tree.GetRootPageID() != InvalidPageID {
		t.Error("tree should be empty after removing every key")
	}
	values, err := tree.GetValue(1)
	if err != nil || len(values) != 0 {
		t.Errorf("empty tree lookup should miss, got %v (%v)", values, err)
	}
}

// TestRedistributeFromSibling checks that a leaf with surplus lends an entry
// instead of merging.
func TestRedistributeFromSibling(t *testing.T) {
	tree := setupSmallTree(t, 4, 3)
	// Leaf max 4 splits on the fifth insert: left [1 2], right [3 4 5].
	for key := int64(1); key <= 5; key++ {
		insertKey(t, tree, key)
	}
	// Removing 1 underflows the left leaf; the right sibling has surplus,
	// so 3 shifts over and the separator follows it.
	if err := tree.Remove(1, concurrency.NewTransaction()); err != nil {
		t.Fatal("remove failed:", err)
	}

	rootPage, err := tree.bpm.FetchPage(tree.GetRootPageID())
	if err != nil {
		t.Fatal("failed to fetch root:", err)
	}
	defer tree.bpm.UnpinPage(rootPage.GetPageID(), false)
	root := pageToInternalNode(rootPage)
	if root.getNodeType() != INTERNAL_NODE || root.size != 2 {
		t.Fatal("borrowing must not change the root's shape")
	}
	if got := root.getKeyAt(1); got != 4 {
		t.Errorf("separator should follow the borrowed entry: want 4, have %d", got)
	}

	leftPage, err := tree.bpm.FetchPage(root.getChildAt(0))
	if err != nil {
		t.Fatal("failed to fetch left leaf:", err)
	}
	defer tree.bpm.UnpinPage(leftPage.GetPageID(), false)
	left := pageToLeafNode(leftPage)
	if left.size != 2 || left.getKeyAt(0) != 2 || left.getKeyAt(1) != 3 {
		t.Errorf("left leaf should hold [2 3] after borrowing")
	}
}
