package gc

// book.go implements the AddressBook: a growable vector of AddressTables with a doubly-linked
// free list threading together the tables that currently have room, so Put never has to scan the
// whole book. It is a translation of gc_src/virt.c's addr_book.
//
// Lock order: book.mu guards the book vector and free-list links; it is always acquired before an
// individual table's free-stack or cell locks, never after.

import "sync"

const abNullIndex = ^uint64(0)

// bookEntry is one table's slot in the book, plus its free-list links.
type bookEntry struct {
	table *AddressTable

	prev, next uint64
	inFreeList bool
}

// AddressBook is a set of AddressTables presented as a single, unbounded address space. New
// tables are added on demand; existing tables are never removed or shrunk, so a *AddressTable
// pointer handed out by the book stays valid for the book's lifetime.
type AddressBook struct {
	tableCap uint64

	mu       sync.RWMutex
	book     []bookEntry
	freeHead uint64
}

// NewAddressBook creates an empty book whose tables each have room for tableCap cells.
func NewAddressBook(tableCap uint64) *AddressBook {
	return &AddressBook{
		tableCap: tableCap,
		freeHead: abNullIndex,
	}
}

// pushFreeList threads entryIndex onto the head of the free list. Caller must hold ab.mu for
// writing.
func (ab *AddressBook) pushFreeList(entryIndex uint64) {
	entry := &ab.book[entryIndex]

	if ab.freeHead != abNullIndex {
		ab.book[ab.freeHead].prev = entryIndex
	}

	entry.prev = abNullIndex
	entry.next = ab.freeHead
	entry.inFreeList = true

	ab.freeHead = entryIndex
}

// tryExpand appends a new table and threads it onto the free list, but only if no table is
// already free (another goroutine may have expanded first).
func (ab *AddressBook) tryExpand() {
	ab.mu.Lock()
	defer ab.mu.Unlock()

	if ab.freeHead != abNullIndex {
		return
	}

	tableIndex := uint64(len(ab.book))
	ab.book = append(ab.book, bookEntry{table: NewAddressTable(ab.tableCap)})
	ab.pushFreeList(tableIndex)
}

// tryRemoval takes entryIndex off the free list if it is still there and is, in fact, still full.
// Another goroutine may have freed a cell in it since the caller observed it filling up, in which
// case this is a no-op.
func (ab *AddressBook) tryRemoval(entryIndex uint64) {
	ab.mu.Lock()
	defer ab.mu.Unlock()

	entry := &ab.book[entryIndex]
	if !entry.inFreeList {
		return
	}

	if entry.table.Fill() < entry.table.Cap() {
		return
	}

	if entry.prev != abNullIndex {
		ab.book[entry.prev].next = entry.next
	} else {
		ab.freeHead = entry.next
	}

	if entry.next != abNullIndex {
		ab.book[entry.next].prev = entry.prev
	}

	entry.prev, entry.next = abNullIndex, abNullIndex
	entry.inFreeList = false
}

// tryAddition puts entryIndex back on the free list if it is not already there and does, in fact,
// have a free cell.
func (ab *AddressBook) tryAddition(entryIndex uint64) {
	ab.mu.Lock()
	defer ab.mu.Unlock()

	entry := &ab.book[entryIndex]
	if entry.inFreeList {
		return
	}

	if entry.table.Fill() == entry.table.Cap() {
		return
	}

	ab.pushFreeList(entryIndex)
}

// tableAt returns the table at tableIndex. Tables are never removed from the book, so this is
// safe to call with any index the book has ever handed out.
func (ab *AddressBook) tableAt(tableIndex uint64) *AddressTable {
	ab.mu.RLock()
	defer ab.mu.RUnlock()

	return ab.book[tableIndex].table
}

// Put stores paddr under a freshly allocated VAddr, expanding the book if every table is full.
func (ab *AddressBook) Put(paddr []byte) VAddr {
	for {
		ab.mu.RLock()
		entryIndex := ab.freeHead
		ab.mu.RUnlock()

		if entryIndex == abNullIndex {
			ab.tryExpand()
			continue
		}

		table := ab.tableAt(entryIndex)

		cellIndex, code := table.Put(paddr)
		if code == ATNoSpace {
			continue
		}

		if code == ATNewlyFull {
			ab.tryRemoval(entryIndex)
		}

		return VAddr{Table: entryIndex, Cell: cellIndex}
	}
}

// Install is Put for an allocated piece's body; see AddressTable.Install.
func (ab *AddressBook) Install(full []byte) (VAddr, []byte) {
	for {
		ab.mu.RLock()
		entryIndex := ab.freeHead
		ab.mu.RUnlock()

		if entryIndex == abNullIndex {
			ab.tryExpand()
			continue
		}

		table := ab.tableAt(entryIndex)

		if table.Fill() == table.Cap() {
			continue
		}

		v, userRegion := table.Install(entryIndex, full)
		if table.Fill() == table.Cap() {
			ab.tryRemoval(entryIndex)
		}

		return v, userRegion
	}
}

// Allocated reports whether v currently names an occupied cell. A VAddr with an out-of-range
// table index is never allocated.
func (ab *AddressBook) Allocated(v VAddr) bool {
	ab.mu.RLock()
	inBounds := v.Table < uint64(len(ab.book))
	ab.mu.RUnlock()

	if !inBounds {
		return false
	}

	table := ab.tableAt(v.Table)
	if v.Cell >= table.Cap() {
		return false
	}

	return table.Allocated(v.Cell)
}

// GetRead locks v's cell for reading. The caller must call UnlockRead(v) when done.
func (ab *AddressBook) GetRead(v VAddr) []byte {
	return ab.tableAt(v.Table).GetRead(v.Cell)
}

// GetWrite locks v's cell for writing. The caller must call UnlockWrite(v) when done.
func (ab *AddressBook) GetWrite(v VAddr) []byte {
	return ab.tableAt(v.Table).GetWrite(v.Cell)
}

// TryGetRead is GetRead without blocking.
func (ab *AddressBook) TryGetRead(v VAddr) ([]byte, bool) {
	return ab.tableAt(v.Table).TryGetRead(v.Cell)
}

// TryGetWrite is GetWrite without blocking.
func (ab *AddressBook) TryGetWrite(v VAddr) ([]byte, bool) {
	return ab.tableAt(v.Table).TryGetWrite(v.Cell)
}

// UnlockRead releases a read lock taken by GetRead or TryGetRead.
func (ab *AddressBook) UnlockRead(v VAddr) {
	ab.tableAt(v.Table).UnlockRead(v.Cell)
}

// UnlockWrite releases a write lock taken by GetWrite, TryGetWrite, or Move.
func (ab *AddressBook) UnlockWrite(v VAddr) {
	ab.tableAt(v.Table).UnlockWrite(v.Cell)
}

// Move repoints v at newPAddr. The caller must already hold v's write lock.
func (ab *AddressBook) Move(v VAddr, newPAddr []byte) {
	ab.tableAt(v.Table).Move(v.Cell, newPAddr)
}

// Free releases v's cell back to its table, re-threading the table onto the free list if it had
// been removed for being full.
func (ab *AddressBook) Free(v VAddr) {
	table := ab.tableAt(v.Table)

	if table.Free(v.Cell) == ATNewlyFree {
		ab.tryAddition(v.Table)
	}
}

// Fill returns the total number of occupied cells across every table in the book. It is O(book
// size) and meant for diagnostics, not hot paths.
func (ab *AddressBook) Fill() uint64 {
	ab.mu.RLock()
	defer ab.mu.RUnlock()

	var fill uint64
	for i := range ab.book {
		fill += ab.book[i].table.Fill()
	}

	return fill
}
