package rid

import (
	"encoding/binary"
	"fmt"
	"io"
)

// RID locates a record on disk as a (page, slot) pair. It is the value type
// stored in B+Tree leaves.
type RID struct {
	PageID  int64
	SlotNum int64
}

// Size is the number of bytes a marshalled RID occupies.
const Size int64 = binary.MaxVarintLen64 * 2

// New constructs and returns a RID for the given page and slot.
func New(pageID int64, slotNum int64) RID {
	return RID{PageID: pageID, SlotNum: slotNum}
}

// Marshal serializes the RID into a byte array of length Size.
func (r RID) Marshal() []byte {
	newdata := make([]byte, Size)
	binary.PutVarint(newdata[:Size/2], r.PageID)
	binary.PutVarint(newdata[Size/2:], r.SlotNum)
	return newdata
}

// Unmarshal deserializes a byte array into a RID.
func Unmarshal(data []byte) RID {
	pageID, _ := binary.Varint(data[:len(data)/2])
	slotNum, _ := binary.Varint(data[len(data)/2:])
	return RID{PageID: pageID, SlotNum: slotNum}
}

// Print writes the RID to the specified writer in the following format,
// trailing separator included: "(<page>, <slot>), "
func (r RID) Print(w io.Writer) {
	fmt.Fprintf(w, "(%d, %d), ", r.PageID, r.SlotNum)
}
