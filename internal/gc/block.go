package gc

// block.go implements the MemoryBlock: one large contiguous byte buffer broken into boundary-tagged
// pieces (see piece.go), with allocation, release, and single-piece compaction ("shift"). It is a
// translation of gc_src/mb.c.
//
// mu acts exactly as mem_lck does in the source: it must be held whenever a piece boundary is
// read or the free list is touched. Malloc, Free and TryShift hold it for the whole call. While
// holding it, TryShift only ever try-locks an individual piece's address table cell and never
// waits on one, so a piece lock held by another goroutine can never wedge every other call
// against this block.

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// ShiftResult reports the outcome of a non-blocking compaction attempt. It is not an error:
// finding nothing to shift, or finding every candidate piece already locked, are both ordinary
// outcomes of calling TryShift on a live block.
type ShiftResult int

const (
	// ShiftNotNeeded means the block is already as compact as it can be.
	ShiftNotNeeded ShiftResult = iota

	// ShiftBusy means a shiftable piece exists but every candidate's lock is currently held.
	ShiftBusy

	// ShiftSuccess means one allocated piece was moved into an adjacent free piece.
	ShiftSuccess
)

func (r ShiftResult) String() string {
	switch r {
	case ShiftNotNeeded:
		return "not needed"
	case ShiftBusy:
		return "busy"
	case ShiftSuccess:
		return "success"
	default:
		return fmt.Sprintf("ShiftResult(%d)", int(r))
	}
}

// MemoryBlock is a boundary-tagged free-list allocator over a single fixed-size buffer. Allocated
// pieces are addressed indirectly through an [AddressBook], so a shift only has to fix one AT
// cell rather than every pointer into the moved bytes.
type MemoryBlock struct {
	// ID identifies this block across its lifetime, independent of where it lives in a
	// MemorySpace's block vector; used only for logging.
	ID uuid.UUID

	cap uint64
	adb *AddressBook

	mu           sync.RWMutex
	buf          []byte
	freeListHead int64
}

// NewMemoryBlock allocates a block with room for at least minBytes of user data.
func NewMemoryBlock(adb *AddressBook, minBytes uint64) *MemoryBlock {
	capacity := padNumBytes(minBytes)
	buf := make([]byte, capacity)

	pieceInit(buf, 0, capacity, false)
	setFreePieceLinks(buf, 0, noOffset, noOffset)

	return &MemoryBlock{
		ID:           uuid.New(),
		cap:          capacity,
		adb:          adb,
		buf:          buf,
		freeListHead: 0,
	}
}

// removeFromSizeList splices the free piece at off out of the size-sorted free list. Caller must
// hold mu.
func (mb *MemoryBlock) removeFromSizeList(off int64) {
	prev := freePiecePrev(mb.buf, off)
	next := freePieceNext(mb.buf, off)

	if next != noOffset {
		setFreePieceLinks(mb.buf, next, prev, freePieceNext(mb.buf, next))
	}

	if prev != noOffset {
		setFreePieceLinks(mb.buf, prev, freePiecePrev(mb.buf, prev), next)
	} else {
		mb.freeListHead = next
	}
}

// addToSizeList threads the free piece at off into the size-sorted (descending) free list. Caller
// must hold mu.
func (mb *MemoryBlock) addToSizeList(off int64) {
	size := pieceSize(mb.buf, off)

	if mb.freeListHead == noOffset {
		mb.freeListHead = off
		setFreePieceLinks(mb.buf, off, noOffset, noOffset)

		return
	}

	iter := mb.freeListHead

	for pieceSize(mb.buf, iter) > size {
		next := freePieceNext(mb.buf, iter)
		if next == noOffset {
			setFreePieceLinks(mb.buf, iter, freePiecePrev(mb.buf, iter), off)
			setFreePieceLinks(mb.buf, off, iter, noOffset)

			return
		}

		iter = next
	}

	prev := freePiecePrev(mb.buf, iter)
	if prev != noOffset {
		setFreePieceLinks(mb.buf, prev, freePiecePrev(mb.buf, prev), off)
	} else {
		mb.freeListHead = off
	}

	setFreePieceLinks(mb.buf, off, prev, iter)
	setFreePieceLinks(mb.buf, iter, off, freePieceNext(mb.buf, iter))
}

// coalesce merges the free piece at off with either physical neighbour that is also free, then
// re-threads the resulting piece into the free list. off must not already be in the free list.
func (mb *MemoryBlock) coalesce(off int64) {
	var prev int64 = noOffset
	if off > 0 {
		prev = piecePrev(mb.buf, off)
		if pieceAllocated(mb.buf, prev) {
			prev = noOffset
		}
	}

	next := pieceNext(mb.buf, off)
	if next >= int64(mb.cap) {
		next = noOffset
	} else if pieceAllocated(mb.buf, next) {
		next = noOffset
	}

	newOff := off
	newSize := pieceSize(mb.buf, off)

	if prev != noOffset {
		mb.removeFromSizeList(prev)
		newOff = prev
		newSize += pieceSize(mb.buf, prev)
	}

	if next != noOffset {
		mb.removeFromSizeList(next)
		newSize += pieceSize(mb.buf, next)
	}

	pieceInit(mb.buf, newOff, newSize, false)
	mb.addToSizeList(newOff)
}

// Malloc carves out a piece of at least minBytes, installs it in the block's address book, and
// returns its VAddr. It returns ErrOutOfSpace if no free piece is large enough.
func (mb *MemoryBlock) Malloc(minBytes uint64) (VAddr, error) {
	if minBytes == 0 {
		return NullVAddr, fmt.Errorf("gc: %w: zero-byte allocation", ErrOutOfSpace)
	}

	minSize := padNumBytes(minBytes)

	mb.mu.Lock()
	defer mb.mu.Unlock()

	if mb.freeListHead == noOffset {
		return NullVAddr, ErrOutOfSpace
	}

	bigFree := mb.freeListHead
	bigFreeSize := pieceSize(mb.buf, bigFree)

	if bigFreeSize < minSize {
		return NullVAddr, ErrOutOfSpace
	}

	mb.removeFromSizeList(bigFree)

	cutSize := bigFreeSize - minSize
	if cutSize < minPieceSize {
		pieceInit(mb.buf, bigFree, bigFreeSize, true)
	} else {
		newFree := bigFree + int64(minSize)
		pieceInit(mb.buf, newFree, cutSize, false)
		mb.addToSizeList(newFree)

		pieceInit(mb.buf, bigFree, minSize, true)
	}

	full := mb.buf[pieceBody(bigFree) : pieceBody(bigFree)+int64(minSize)-mpPadding]
	v, _ := mb.adb.Install(full)

	return v, nil
}

// Free releases the piece named by v and coalesces it with any free physical neighbours. mu is
// taken before the address book entry is freed, so a concurrent TryShift can never observe a cell
// whose AT entry is gone but whose piece tag still reads allocated.
func (mb *MemoryBlock) Free(v VAddr) {
	paddr := mb.adb.GetRead(v)
	mb.adb.UnlockRead(v)

	mb.mu.Lock()

	mb.adb.Free(v)

	off := allocBodyToPiece(offsetOf(mb.buf, paddr))
	mb.coalesce(off)

	mb.mu.Unlock()
}

// offsetOf returns region's starting offset within buf. region must be a sub-slice of buf, as
// every physical address this package hands out always is.
func offsetOf(buf, region []byte) int64 {
	return int64(cap(buf) - cap(region))
}

// FreeSpace returns the number of user-allocatable bytes in the block's largest free piece.
func (mb *MemoryBlock) FreeSpace() uint64 {
	mb.mu.RLock()
	defer mb.mu.RUnlock()

	if mb.freeListHead == noOffset {
		return 0
	}

	return pieceSize(mb.buf, mb.freeListHead) - mapPadding
}

// SnapshotVAddrs returns the VAddr of every currently allocated piece in the block. It is meant
// for a collector's sweep phase: the caller inspects and frees entries from the returned slice
// without holding the block's structural lock, which a general foreach can't safely allow a
// caller to do since freeing a piece needs that same lock.
func (mb *MemoryBlock) SnapshotVAddrs() []VAddr {
	mb.mu.RLock()
	defer mb.mu.RUnlock()

	var out []VAddr

	for off := int64(0); off < int64(mb.cap); off = pieceNext(mb.buf, off) {
		if pieceAllocated(mb.buf, off) {
			out = append(out, pieceVAddr(mb.buf, off))
		}
	}

	return out
}

// Count returns the number of allocated pieces in the block.
func (mb *MemoryBlock) Count() uint64 {
	mb.mu.RLock()
	defer mb.mu.RUnlock()

	var count uint64

	for off := int64(0); off < int64(mb.cap); off = pieceNext(mb.buf, off) {
		if pieceAllocated(mb.buf, off) {
			count++
		}
	}

	return count
}

// TryShift attempts to move one allocated piece into an adjacent free piece, preferring the
// largest free piece first. It never blocks: if every shiftable piece's address table cell is
// already locked, it returns ShiftBusy instead of waiting.
func (mb *MemoryBlock) TryShift() ShiftResult {
	mb.mu.Lock()

	if mb.freeListHead == noOffset {
		mb.mu.Unlock()
		return ShiftNotNeeded
	}

	if freePieceNext(mb.buf, mb.freeListHead) == noOffset &&
		pieceNext(mb.buf, mb.freeListHead) >= int64(mb.cap) {
		mb.mu.Unlock()
		return ShiftNotNeeded
	}

	var (
		ogFree int64
		ogNext int64
		v      VAddr
		found  bool
	)

	for iter := mb.freeListHead; iter != noOffset; iter = freePieceNext(mb.buf, iter) {
		next := pieceNext(mb.buf, iter)
		if next >= int64(mb.cap) || !pieceAllocated(mb.buf, next) {
			continue
		}

		candidate := pieceVAddr(mb.buf, next)
		if _, ok := mb.adb.TryGetWrite(candidate); ok {
			ogFree, ogNext, v, found = iter, next, candidate, true
			break
		}
	}

	if !found {
		mb.mu.Unlock()
		return ShiftBusy
	}

	ogFreeSize := pieceSize(mb.buf, ogFree)
	ogNextSize := pieceSize(mb.buf, ogNext)
	ogNextNext := pieceNext(mb.buf, ogNext)

	mb.removeFromSizeList(ogFree)

	newPAddr := mb.buf[allocBody(ogFree) : allocBody(ogFree)+int64(ogNextSize-mapPadding)]
	copy(newPAddr, mb.buf[allocBody(ogNext):allocBody(ogNext)+int64(ogNextSize-mapPadding)])

	mb.adb.Move(v, newPAddr)
	mb.adb.UnlockWrite(v)

	pieceInit(mb.buf, ogFree, ogNextSize, true)
	setPieceVAddr(mb.buf, ogFree, v)

	newFree := pieceNext(mb.buf, ogFree)

	if ogNextNext < int64(mb.cap) && !pieceAllocated(mb.buf, ogNextNext) {
		ogNextNextSize := pieceSize(mb.buf, ogNextNext)
		mb.removeFromSizeList(ogNextNext)
		pieceInit(mb.buf, newFree, ogFreeSize+ogNextNextSize, false)
		mb.addToSizeList(newFree)
	} else {
		pieceInit(mb.buf, newFree, ogFreeSize, false)
		mb.addToSizeList(newFree)
	}

	mb.mu.Unlock()

	return ShiftSuccess
}

// DebugString renders every piece in the block, allocated or free, for diagnostics.
func (mb *MemoryBlock) DebugString() string {
	mb.mu.RLock()
	defer mb.mu.RUnlock()

	var sb []byte

	sb = fmt.Appendf(sb, "block %s: %d bytes\n", mb.ID, mb.cap)

	num := 0

	for off := int64(0); off < int64(mb.cap); off = pieceNext(mb.buf, off) {
		size := pieceSize(mb.buf, off)

		if pieceAllocated(mb.buf, off) {
			v := pieceVAddr(mb.buf, off)
			sb = fmt.Appendf(sb, "  %d: off %d: size %d: allocated: %s\n", num, off, size, v)
		} else {
			sb = fmt.Appendf(sb, "  %d: off %d: size %d: free\n", num, off, size)
		}

		num++
	}

	return string(sb)
}
