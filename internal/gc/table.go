package gc

// table.go implements the AddressTable: a fixed-capacity array of cells, each holding a physical
// address and its own reader-writer lock, plus a stack of free cell indices. It is a translation
// of gc_src/virt.c's addr_table (declared in gc_src/virt.h).
//
// Lock order within a table: the free stack's lock is never held while a cell lock is acquired,
// and a cell lock is never held while acquiring the free stack lock. A put or free only ever holds
// one of the two locks at a time.

import (
	"fmt"
	"sync"
)

// ATCode reports how a mutating AddressTable operation changed the table's fill level, mirroring
// gc_src/at.h's addr_table_code.
type ATCode int

const (
	// ATSuccess is returned when the operation completed without changing whether the table is
	// full or empty.
	ATSuccess ATCode = iota

	// ATNoSpace is returned by Put when the free stack is empty.
	ATNoSpace

	// ATNewlyFull is returned by Put when the table had its last free cell taken.
	ATNewlyFull

	// ATNewlyFree is returned by Free when the table went from full to having one free cell.
	ATNewlyFree
)

func (c ATCode) String() string {
	switch c {
	case ATSuccess:
		return "success"
	case ATNoSpace:
		return "no space"
	case ATNewlyFull:
		return "newly full"
	case ATNewlyFree:
		return "newly free"
	default:
		return fmt.Sprintf("ATCode(%d)", int(c))
	}
}

// atCell is one slot of an AddressTable: a physical address behind its own lock.
type atCell struct {
	mu    sync.RWMutex
	paddr []byte
}

// AddressTable gives a fixed number of physical addresses stable indices ("cells"), each
// independently lockable, with O(1) allocation and release via a stack of free indices.
type AddressTable struct {
	cells []atCell

	freeMu    sync.RWMutex
	freeStack []uint64
}

// NewAddressTable allocates a table with room for cap cells, all initially free.
func NewAddressTable(cap uint64) *AddressTable {
	at := &AddressTable{
		cells:     make([]atCell, cap),
		freeStack: make([]uint64, cap),
	}

	for i := range at.freeStack {
		// Push in descending order so cell 0 is handed out first, matching the source's
		// initialisation of its free stack.
		at.freeStack[i] = cap - 1 - uint64(i)
	}

	return at
}

// Cap returns the table's fixed cell count.
func (at *AddressTable) Cap() uint64 {
	return uint64(len(at.cells))
}

// Fill reports how many cells are currently occupied.
func (at *AddressTable) Fill() uint64 {
	at.freeMu.RLock()
	defer at.freeMu.RUnlock()

	return at.Cap() - uint64(len(at.freeStack))
}

// Put claims a free cell and stores paddr in it, returning the cell index and whether the table
// became full as a result.
func (at *AddressTable) Put(paddr []byte) (uint64, ATCode) {
	index, code := at.claim()
	if code == ATNoSpace {
		return 0, ATNoSpace
	}

	cell := &at.cells[index]
	cell.mu.Lock()
	cell.paddr = paddr
	cell.mu.Unlock()

	return index, code
}

// Install is Put for an allocated piece's body: full is the piece body including its leading
// VAddr header, and vaddr is written into that header before the trailing user region is stored
// as the cell's physical address. This lets the table write the VAddr-before-paddr layout the
// source keeps without requiring a backwards slice.
func (at *AddressTable) Install(tableIndex uint64, full []byte) (VAddr, []byte) {
	index, _ := at.claim()

	userRegion := full[vaddrSize:]
	v := VAddr{Table: tableIndex, Cell: index}
	putVAddr(full[:vaddrSize], v)

	cell := &at.cells[index]
	cell.mu.Lock()
	cell.paddr = userRegion
	cell.mu.Unlock()

	return v, userRegion
}

// claim pops a free index without installing anything, for callers (Install) that need the index
// before they can compute what to store.
func (at *AddressTable) claim() (uint64, ATCode) {
	at.freeMu.Lock()
	defer at.freeMu.Unlock()

	n := len(at.freeStack)
	if n == 0 {
		return 0, ATNoSpace
	}

	index := at.freeStack[n-1]
	at.freeStack = at.freeStack[:n-1]

	code := ATSuccess
	if len(at.freeStack) == 0 {
		code = ATNewlyFull
	}

	return index, code
}

// GetRead locks cell i for reading and returns its physical address. The caller must call
// UnlockRead(i) when done.
func (at *AddressTable) GetRead(i uint64) []byte {
	cell := &at.cells[i]
	cell.mu.RLock()

	return cell.paddr
}

// GetWrite locks cell i for writing and returns its physical address. The caller must call
// UnlockWrite(i) when done.
func (at *AddressTable) GetWrite(i uint64) []byte {
	cell := &at.cells[i]
	cell.mu.Lock()

	return cell.paddr
}

// TryGetRead is GetRead, but returns ok=false instead of blocking if the cell is write-locked.
func (at *AddressTable) TryGetRead(i uint64) (paddr []byte, ok bool) {
	cell := &at.cells[i]
	if !cell.mu.TryRLock() {
		return nil, false
	}

	return cell.paddr, true
}

// TryGetWrite is GetWrite, but returns ok=false instead of blocking if the cell is already locked.
func (at *AddressTable) TryGetWrite(i uint64) (paddr []byte, ok bool) {
	cell := &at.cells[i]
	if !cell.mu.TryLock() {
		return nil, false
	}

	return cell.paddr, true
}

// UnlockRead releases a read lock taken by GetRead or TryGetRead.
func (at *AddressTable) UnlockRead(i uint64) {
	at.cells[i].mu.RUnlock()
}

// UnlockWrite releases a write lock taken by GetWrite, TryGetWrite, or Move.
func (at *AddressTable) UnlockWrite(i uint64) {
	at.cells[i].mu.Unlock()
}

// Move updates cell i's physical address while the caller already holds its write lock, used by a
// block shift to repoint a cell at relocated bytes.
func (at *AddressTable) Move(i uint64, newPAddr []byte) {
	at.cells[i].paddr = newPAddr
}

// Allocated reports whether cell i currently holds a physical address. i must be in bounds.
func (at *AddressTable) Allocated(i uint64) bool {
	cell := &at.cells[i]
	cell.mu.RLock()
	defer cell.mu.RUnlock()

	return cell.paddr != nil
}

// Free returns cell i to the free stack. Freeing an index that is not currently occupied is a
// programming error and panics, matching the source's treatment of it as undefined behaviour.
func (at *AddressTable) Free(i uint64) ATCode {
	cell := &at.cells[i]

	cell.mu.Lock()
	if cell.paddr == nil {
		cell.mu.Unlock()
		panic(fmt.Sprintf("gc: free of unoccupied address table cell %d", i))
	}
	cell.paddr = nil
	cell.mu.Unlock()

	at.freeMu.Lock()
	defer at.freeMu.Unlock()

	code := ATSuccess
	if len(at.freeStack) == 0 {
		code = ATNewlyFree
	}

	at.freeStack = append(at.freeStack, i)

	return code
}
