package btree

import (
	"encoding/binary"

	"rexdb/pkg/disk"
	"rexdb/pkg/rid"
)

// InvalidPageID marks an absent page reference (no parent, no next leaf,
// empty tree).
const InvalidPageID int64 = disk.InvalidPageID

// HeaderPageID is the reserved page holding (index name, root page id)
// records, used to discover roots after restart.
const HeaderPageID int64 = 0

// Common node header layout. The node type discriminator lives at a fixed
// offset so both variants can be told apart straight from the page bytes.
const (
	NODETYPE_OFFSET  int64 = 0
	NODETYPE_SIZE    int64 = 1
	SIZE_OFFSET      int64 = NODETYPE_OFFSET + NODETYPE_SIZE
	SIZE_SIZE        int64 = binary.MaxVarintLen64
	MAX_SIZE_OFFSET  int64 = SIZE_OFFSET + SIZE_SIZE
	MAX_SIZE_SIZE    int64 = binary.MaxVarintLen64
	PARENT_PN_OFFSET int64 = MAX_SIZE_OFFSET + MAX_SIZE_SIZE
	PARENT_PN_SIZE   int64 = binary.MaxVarintLen64
	SELF_PN_OFFSET   int64 = PARENT_PN_OFFSET + PARENT_PN_SIZE
	SELF_PN_SIZE     int64 = binary.MaxVarintLen64
	NODE_HEADER_SIZE int64 = SELF_PN_OFFSET + SELF_PN_SIZE
)

// Leaf node layout: common header, next-leaf pointer, then (key, rid) slots.
const (
	NEXT_PN_OFFSET        int64 = NODE_HEADER_SIZE
	NEXT_PN_SIZE          int64 = binary.MaxVarintLen64
	LEAF_NODE_HEADER_SIZE int64 = NEXT_PN_OFFSET + NEXT_PN_SIZE
	KEY_SIZE              int64 = binary.MaxVarintLen64
	LEAF_ENTRY_SIZE       int64 = KEY_SIZE + rid.Size
	// One slot is held back so a node may briefly overflow before splitting.
	LEAF_NODE_CAPACITY int64 = (disk.PageSize - LEAF_NODE_HEADER_SIZE) / LEAF_ENTRY_SIZE
)

// Internal node layout: common header, then (key, child page id) slots.
// Slot 0 carries only a child pointer; its key slot is ignored.
const (
	PN_SIZE                    int64 = binary.MaxVarintLen64
	INTERNAL_NODE_HEADER_SIZE  int64 = NODE_HEADER_SIZE
	INTERNAL_ENTRY_SIZE        int64 = KEY_SIZE + PN_SIZE
	INTERNAL_NODE_CAPACITY     int64 = (disk.PageSize - INTERNAL_NODE_HEADER_SIZE) / INTERNAL_ENTRY_SIZE
	DEFAULT_LEAF_MAX_SIZE      int64 = LEAF_NODE_CAPACITY - 1
	DEFAULT_INTERNAL_MAX_SIZE  int64 = INTERNAL_NODE_CAPACITY - 1
)

// Header page layout: record count, then fixed-width (name, root page id)
// records.
const (
	NUM_RECORDS_OFFSET int64 = 0
	NUM_RECORDS_SIZE   int64 = binary.MaxVarintLen64
	RECORD_NAME_SIZE   int64 = 32
	RECORD_SIZE        int64 = RECORD_NAME_SIZE + binary.MaxVarintLen64
	MAX_HEADER_RECORDS int64 = (disk.PageSize - NUM_RECORDS_SIZE) / RECORD_SIZE
)
