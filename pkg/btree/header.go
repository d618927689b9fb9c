package btree

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"rexdb/pkg/buffer"
)

// The header page (page id 0) holds one (name, root page id) record per
// index so roots can be rediscovered after restart.

// headerNumRecords returns the number of records stored in the header page.
// Concurrency note: the page must at least be read-latched before calling.
func headerNumRecords(page *buffer.Page) int64 {
	n, _ := binary.Varint(
		page.GetData()[NUM_RECORDS_OFFSET : NUM_RECORDS_OFFSET+NUM_RECORDS_SIZE])
	return n
}

// setHeaderNumRecords updates the record count.
func setHeaderNumRecords(page *buffer.Page, n int64) {
	data := make([]byte, NUM_RECORDS_SIZE)
	binary.PutVarint(data, n)
	page.Update(data, NUM_RECORDS_OFFSET, NUM_RECORDS_SIZE)
}

// recordPos returns the page offset of record i.
func recordPos(index int64) int64 {
	return NUM_RECORDS_SIZE + index*RECORD_SIZE
}

// recordName returns the name stored in record i.
func recordName(page *buffer.Page, index int64) string {
	startPos := recordPos(index)
	raw := page.GetData()[startPos : startPos+RECORD_NAME_SIZE]
	return string(bytes.TrimRight(raw, "\x00"))
}

// recordRootPN returns the root page id stored in record i.
func recordRootPN(page *buffer.Page, index int64) int64 {
	startPos := recordPos(index) + RECORD_NAME_SIZE
	pn, _ := binary.Varint(page.GetData()[startPos : startPos+binary.MaxVarintLen64])
	return pn
}

// setRecord overwrites record i with the given name and root page id.
func setRecord(page *buffer.Page, index int64, name string, rootPN int64) {
	nameData := make([]byte, RECORD_NAME_SIZE)
	copy(nameData, name)
	page.Update(nameData, recordPos(index), RECORD_NAME_SIZE)
	pnData := make([]byte, binary.MaxVarintLen64)
	binary.PutVarint(pnData, rootPN)
	page.Update(pnData, recordPos(index)+RECORD_NAME_SIZE, binary.MaxVarintLen64)
}

// findRecord returns the root page id recorded under the given name.
// Concurrency note: the page must at least be read-latched before calling.
func findRecord(page *buffer.Page, name string) (rootPN int64, found bool) {
	n := headerNumRecords(page)
	for i := int64(0); i < n; i++ {
		if recordName(page, i) == name {
			return recordRootPN(page, i), true
		}
	}
	return InvalidPageID, false
}

// upsertRecord inserts or updates the record for the given name.
// Concurrency note: the page must be write-latched before calling.
func upsertRecord(page *buffer.Page, name string, rootPN int64) error {
	if int64(len(name)) > RECORD_NAME_SIZE {
		return fmt.Errorf("index name %q exceeds %d bytes", name, RECORD_NAME_SIZE)
	}
	n := headerNumRecords(page)
	for i := int64(0); i < n; i++ {
		if recordName(page, i) == name {
			setRecord(page, i, name, rootPN)
			return nil
		}
	}
	if n >= MAX_HEADER_RECORDS {
		return fmt.Errorf("header page full: %d records", n)
	}
	setRecord(page, n, name, rootPN)
	setHeaderNumRecords(page, n+1)
	return nil
}

// HeaderRecords returns every (name, root page id) pair in the header page.
// Concurrency note: the page must at least be read-latched before calling.
func HeaderRecords(page *buffer.Page) map[string]int64 {
	out := make(map[string]int64)
	n := headerNumRecords(page)
	for i := int64(0); i < n; i++ {
		out[recordName(page, i)] = recordRootPN(page, i)
	}
	return out
}
