package btree

import (
	"encoding/binary"

	"rexdb/pkg/buffer"
	"rexdb/pkg/disk"
)

// NodeType identifies if a node is a leaf node or an internal node.
type NodeType byte

const (
	INTERNAL_NODE NodeType = 0
	LEAF_NODE     NodeType = 1
)

// NodeHeader holds the metadata common to both node variants, decoded from
// the page plus a handle to the page itself.
type NodeHeader struct {
	nodeType NodeType
	size     int64 // entries for a leaf, children for an internal node
	maxSize  int64
	parentPN int64
	page     *buffer.Page
}

// initPage resets the page's data and writes a fresh header for the given
// node type.
func initPage(page *buffer.Page, nodeType NodeType, maxSize int64) {
	page.Update(make([]byte, disk.PageSize), 0, disk.PageSize)
	page.Update([]byte{byte(nodeType)}, NODETYPE_OFFSET, NODETYPE_SIZE)
	header := &NodeHeader{nodeType: nodeType, page: page}
	header.setSize(0)
	header.setMaxSize(maxSize)
	header.setParentPN(InvalidPageID)
	header.setSelfPN(page.GetPageID())
}

// pageToNodeHeader decodes the common header from the given page.
// Concurrency note: the page must at least be read-latched before calling.
func pageToNodeHeader(page *buffer.Page) NodeHeader {
	data := page.GetData()
	size, _ := binary.Varint(data[SIZE_OFFSET : SIZE_OFFSET+SIZE_SIZE])
	maxSize, _ := binary.Varint(data[MAX_SIZE_OFFSET : MAX_SIZE_OFFSET+MAX_SIZE_SIZE])
	parentPN, _ := binary.Varint(data[PARENT_PN_OFFSET : PARENT_PN_OFFSET+PARENT_PN_SIZE])
	return NodeHeader{
		nodeType: NodeType(data[NODETYPE_OFFSET]),
		size:     size,
		maxSize:  maxSize,
		parentPN: parentPN,
		page:     page,
	}
}

// getNodeType returns the node's variant.
func (header *NodeHeader) getNodeType() NodeType {
	return header.nodeType
}

// getPage returns the node's underlying page.
func (header *NodeHeader) getPage() *buffer.Page {
	return header.page
}

// getSelfPN returns the page id recorded in the node's header.
func (header *NodeHeader) getSelfPN() int64 {
	pn, _ := binary.Varint(header.page.GetData()[SELF_PN_OFFSET : SELF_PN_OFFSET+SELF_PN_SIZE])
	return pn
}

// setSelfPN records the node's own page id in the header.
func (header *NodeHeader) setSelfPN(pn int64) {
	data := make([]byte, SELF_PN_SIZE)
	binary.PutVarint(data, pn)
	header.page.Update(data, SELF_PN_OFFSET, SELF_PN_SIZE)
}

// getParentPN returns the page id of the node's parent, or InvalidPageID for
// the root.
func (header *NodeHeader) getParentPN() int64 {
	return header.parentPN
}

// setParentPN updates the parent pointer in the struct and the page.
func (header *NodeHeader) setParentPN(pn int64) {
	header.parentPN = pn
	data := make([]byte, PARENT_PN_SIZE)
	binary.PutVarint(data, pn)
	header.page.Update(data, PARENT_PN_OFFSET, PARENT_PN_SIZE)
}

// isRoot reports whether the node has no parent.
func (header *NodeHeader) isRoot() bool {
	return header.parentPN == InvalidPageID
}

// setSize updates the size field in the struct and the page.
func (header *NodeHeader) setSize(size int64) {
	header.size = size
	data := make([]byte, SIZE_SIZE)
	binary.PutVarint(data, size)
	header.page.Update(data, SIZE_OFFSET, SIZE_SIZE)
}

// setMaxSize updates the max-size field in the struct and the page.
func (header *NodeHeader) setMaxSize(maxSize int64) {
	header.maxSize = maxSize
	data := make([]byte, MAX_SIZE_SIZE)
	binary.PutVarint(data, maxSize)
	header.page.Update(data, MAX_SIZE_OFFSET, MAX_SIZE_SIZE)
}

// minSize returns the smallest entry count a non-root node may hold.
func (header *NodeHeader) minSize() int64 {
	return (header.maxSize + 1) / 2
}
