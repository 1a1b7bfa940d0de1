package gc

// space.go implements the MemorySpace: a federation of MemoryBlocks behind one AddressBook, which
// places new allocations by sampling a handful of blocks at random before growing the block set.
// It is a translation of gc_src/ms.c.
//
// Lock order: blocksMu guards the block vector and is always acquired before touching any block
// it names; it is released before a block's own mu lock is taken. A freshly created block is
// allocated from before it is appended, so appending never takes a block's lock either.

import (
	"fmt"
	"sync"
)

// msHeaderSize is the width of the header MemorySpace writes in front of every allocation: the
// index, into blocks, of the owning MemoryBlock. Blocks are never removed from a space, so the
// index stays valid for the space's lifetime even after a block is compacted or relocated within
// its own buffer.
const msHeaderSize = 8

// searchDivisor bounds how many blocks a Malloc call samples before giving up and creating a new
// block: len(blocks)/searchDivisor throws, at least one.
const searchDivisor = 3

// MemorySpace federates a growing set of MemoryBlocks behind a single AddressBook, so a caller
// allocates from "the space" without knowing which block actually backs a given VAddr.
type MemorySpace struct {
	adb           *AddressBook
	blockMinBytes uint64
	rnd           *prng

	blocksMu sync.RWMutex
	blocks   []*MemoryBlock
}

// NewMemorySpace creates a space with one block of at least blockMinBytes, backed by an
// AddressBook whose tables each hold tableCap cells.
func NewMemorySpace(seed uint64, tableCap, blockMinBytes uint64) *MemorySpace {
	adb := NewAddressBook(tableCap)

	ms := &MemorySpace{
		adb:           adb,
		blockMinBytes: blockMinBytes,
		rnd:           newPRNG(seed),
		blocks:        []*MemoryBlock{NewMemoryBlock(adb, blockMinBytes)},
	}

	return ms
}

func (ms *MemorySpace) blockAt(i uint64) *MemoryBlock {
	ms.blocksMu.RLock()
	defer ms.blocksMu.RUnlock()

	return ms.blocks[i]
}

func (ms *MemorySpace) blockCount() uint64 {
	ms.blocksMu.RLock()
	defer ms.blocksMu.RUnlock()

	return uint64(len(ms.blocks))
}

func (ms *MemorySpace) appendBlock(mb *MemoryBlock) uint64 {
	ms.blocksMu.Lock()
	defer ms.blocksMu.Unlock()

	index := uint64(len(ms.blocks))
	ms.blocks = append(ms.blocks, mb)

	return index
}

// writeHeader records which block owns v's allocation.
func (ms *MemorySpace) writeHeader(v VAddr, blockIndex uint64) {
	paddr := ms.adb.GetWrite(v)
	byteOrder.PutUint64(paddr[:msHeaderSize], blockIndex)
	ms.adb.UnlockWrite(v)
}

func (ms *MemorySpace) readHeader(v VAddr) uint64 {
	paddr := ms.adb.GetRead(v)
	defer ms.adb.UnlockRead(v)

	return byteOrder.Uint64(paddr[:msHeaderSize])
}

// Malloc places a new allocation of at least minBytes, trying a handful of existing blocks at
// random before creating a new one sized to fit.
func (ms *MemorySpace) Malloc(minBytes uint64) (VAddr, error) {
	if minBytes == 0 {
		return NullVAddr, fmt.Errorf("gc: %w: zero-byte allocation", ErrOutOfSpace)
	}

	padded := minBytes + msHeaderSize

	numThrows := ms.blockCount() / searchDivisor
	if numThrows == 0 {
		numThrows = 1
	}

	for throw := uint64(0); throw < numThrows; throw++ {
		count := ms.blockCount()
		dart := ms.rnd.next() % count
		mb := ms.blockAt(dart)

		v, err := mb.Malloc(padded)
		if err == nil {
			ms.writeHeader(v, dart)
			return v, nil
		}
	}

	reqBytes := padded
	if ms.blockMinBytes > reqBytes {
		reqBytes = ms.blockMinBytes
	}

	mb := NewMemoryBlock(ms.adb, reqBytes)

	v, err := mb.Malloc(padded)
	if err != nil {
		return NullVAddr, err
	}

	index := ms.appendBlock(mb)
	ms.writeHeader(v, index)

	return v, nil
}

// Free releases v's allocation back to its owning block.
func (ms *MemorySpace) Free(v VAddr) {
	index := ms.readHeader(v)
	ms.blockAt(index).Free(v)
}

// Allocated reports whether v currently names a live allocation.
func (ms *MemorySpace) Allocated(v VAddr) bool {
	return ms.adb.Allocated(v)
}

// GetRead locks v for reading and returns the caller's region, with the space's own header
// stripped off. The caller must call UnlockRead(v) when done.
func (ms *MemorySpace) GetRead(v VAddr) []byte {
	return ms.adb.GetRead(v)[msHeaderSize:]
}

// GetWrite locks v for writing and returns the caller's region, with the space's own header
// stripped off. The caller must call UnlockWrite(v) when done.
func (ms *MemorySpace) GetWrite(v VAddr) []byte {
	return ms.adb.GetWrite(v)[msHeaderSize:]
}

// TryGetRead is GetRead without blocking.
func (ms *MemorySpace) TryGetRead(v VAddr) ([]byte, bool) {
	paddr, ok := ms.adb.TryGetRead(v)
	if !ok {
		return nil, false
	}

	return paddr[msHeaderSize:], true
}

// TryGetWrite is GetWrite without blocking.
func (ms *MemorySpace) TryGetWrite(v VAddr) ([]byte, bool) {
	paddr, ok := ms.adb.TryGetWrite(v)
	if !ok {
		return nil, false
	}

	return paddr[msHeaderSize:], true
}

// UnlockRead releases a read lock taken by GetRead or TryGetRead.
func (ms *MemorySpace) UnlockRead(v VAddr) {
	ms.adb.UnlockRead(v)
}

// UnlockWrite releases a write lock taken by GetWrite or TryGetWrite.
func (ms *MemorySpace) UnlockWrite(v VAddr) {
	ms.adb.UnlockWrite(v)
}

// TryFullShift walks every block in the space once, attempting to shift it fully compact. It does
// not hold blocksMu while shifting an individual block, since a shift can take a while and new
// blocks are only ever appended, never removed.
func (ms *MemorySpace) TryFullShift() {
	count := ms.blockCount()

	for i := uint64(0); i < count; i++ {
		mb := ms.blockAt(i)

		for {
			result := mb.TryShift()
			if result != ShiftSuccess {
				break
			}
		}
	}
}

// DebugString renders every block in the space, for diagnostics.
func (ms *MemorySpace) DebugString() string {
	count := ms.blockCount()

	out := ""
	for i := uint64(0); i < count; i++ {
		out += ms.blockAt(i).DebugString()
	}

	return out
}
