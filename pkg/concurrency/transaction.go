// Package concurrency provides the transaction handle the B+Tree deposits
// write-latched ancestor pages into during pessimistic descent.
package concurrency

import (
	"sync"

	"rexdb/pkg/buffer"

	"github.com/google/uuid"
)

// Transaction tracks the pages a single tree operation holds latched, plus
// the pages it has scheduled for deletion. Each client runs at most one
// operation at a time, so the id identifies both.
type Transaction struct {
	clientId     uuid.UUID
	pageSet      []*buffer.Page // write-latched ancestors, root-most first
	deletedPages []int64        // page ids to drop once every latch is released
	mtx          sync.RWMutex
}

// NewTransaction constructs an empty transaction with a fresh client id.
func NewTransaction() *Transaction {
	return &Transaction{clientId: uuid.New()}
}

// GetClientID returns the id of the client running this transaction.
func (t *Transaction) GetClientID() uuid.UUID {
	return t.clientId
}

// AddIntoPageSet appends a write-latched ancestor page.
func (t *Transaction) AddIntoPageSet(page *buffer.Page) {
	t.mtx.Lock()
	defer t.mtx.Unlock()
	t.pageSet = append(t.pageSet, page)
}

// PopPageSet removes and returns the most recently deposited page, or nil if
// the set is empty.
func (t *Transaction) PopPageSet() *buffer.Page {
	t.mtx.Lock()
	defer t.mtx.Unlock()
	if len(t.pageSet) == 0 {
		return nil
	}
	page := t.pageSet[len(t.pageSet)-1]
	t.pageSet = t.pageSet[:len(t.pageSet)-1]
	return page
}

// DrainPageSet removes and returns every deposited page, root-most first.
func (t *Transaction) DrainPageSet() []*buffer.Page {
	t.mtx.Lock()
	defer t.mtx.Unlock()
	pages := t.pageSet
	t.pageSet = nil
	return pages
}

// PageSetSize returns the number of deposited pages.
func (t *Transaction) PageSetSize() int {
	t.mtx.RLock()
	defer t.mtx.RUnlock()
	return len(t.pageSet)
}

// AddIntoDeletedPageSet schedules a page id for deletion after the
// operation's latches are released.
func (t *Transaction) AddIntoDeletedPageSet(pageID int64) {
	t.mtx.Lock()
	defer t.mtx.Unlock()
	t.deletedPages = append(t.deletedPages, pageID)
}

// DrainDeletedPageSet removes and returns the scheduled page ids.
func (t *Transaction) DrainDeletedPageSet() []int64 {
	t.mtx.Lock()
	defer t.mtx.Unlock()
	ids := t.deletedPages
	t.deletedPages = nil
	return ids
}
