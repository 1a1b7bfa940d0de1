package gc

// collected.go implements CollectedSpace: the object-oriented layer that sits on top of a
// MemorySpace. It owns the root set and the object header format (see object.go) and is the
// layer at which a garbage collector (gc.go) and its background worker (worker.go) operate.
//
// It is grounded on gc_src/cs.c, whose collected_space sketch defined the root_set_entry
// free-list-with-union shape this file completes: the source stubbed out every mutating
// operation with a TODO, so the object and root-set semantics implemented here are this store's
// own design, built in the same shape the sketch started.

import (
	"sync"
	"sync/atomic"

	"github.com/moby/locker"

	"github.com/smoynes/talus/internal/log"
)

const rootNullIndex = ^uint64(0)

// RootID names a slot in a CollectedSpace's root set. It is only meaningful to the space that
// issued it.
type RootID uint64

// rootEntry is one slot of the root set: either a pinned VAddr, or a link in the free list of
// unused slots.
type rootEntry struct {
	allocated bool
	vaddr     VAddr
	nextFree  uint64
}

// CollectedSpace layers object semantics, a pinned root set, and (via gc.go) a mark-sweep
// collector on top of a MemorySpace.
type CollectedSpace struct {
	ms  *MemorySpace
	log *log.Logger

	rootMu       sync.RWMutex
	roots        []rootEntry
	rootFreeHead uint64

	// allocCount counts allocations made since the last collection cycle, so the background
	// worker can gate collection on WorkerSpec.ShiftTrigger; see worker.go.
	allocCount atomic.Uint64

	// locks serializes StartGC/StopGC against each other and against themselves; see worker.go.
	locks  *locker.Locker
	worker *gcWorker
}

// New creates a store with one memory block of at least blockMinBytes, an address book whose
// tables each hold tableCap cells, and an empty root set.
func New(seed, tableCap, blockMinBytes uint64, opts ...Option) *CollectedSpace {
	cs := &CollectedSpace{
		ms:           NewMemorySpace(seed, tableCap, blockMinBytes),
		log:          defaultLogger(),
		roots:        []rootEntry{{nextFree: rootNullIndex}},
		rootFreeHead: 0,
		locks:        locker.New(),
	}

	for _, opt := range opts {
		opt(cs)
	}

	return cs
}

// popRootEntry pops a slot off the root set's free list, growing it first if the list is empty.
// Caller must hold rootMu for writing.
func (cs *CollectedSpace) popRootEntry() uint64 {
	if cs.rootFreeHead == rootNullIndex {
		oldCap := uint64(len(cs.roots))
		newCap := oldCap * 2

		grown := make([]rootEntry, newCap)
		copy(grown, cs.roots)
		cs.roots = grown

		for i := oldCap; i < newCap-1; i++ {
			cs.roots[i] = rootEntry{nextFree: i + 1}
		}

		cs.roots[newCap-1] = rootEntry{nextFree: rootNullIndex}
		cs.rootFreeHead = oldCap
	}

	index := cs.rootFreeHead
	cs.rootFreeHead = cs.roots[index].nextFree

	return index
}

// mallocObject carves out an object of the given status, reference-table length, and data size,
// with every reference initialised to NullVAddr.
func (cs *CollectedSpace) mallocObject(status gcStatus, rtLen, daSize uint64) (VAddr, error) {
	v, err := cs.ms.Malloc(objectSize(rtLen, daSize))
	if err != nil {
		return NullVAddr, err
	}

	paddr := cs.ms.GetWrite(v)
	objInit(paddr, status, rtLen, daSize)

	obj := Object{raw: paddr}
	for i := uint64(0); i < rtLen; i++ {
		_ = obj.SetRef(i, NullVAddr)
	}

	cs.ms.UnlockWrite(v)

	cs.allocCount.Add(1)

	return v, nil
}

// AllocationsSinceCollect reports how many objects (including roots) have been allocated since
// the last time Collect ran. The background worker uses this to decide whether a tick's
// WorkerSpec.ShiftTrigger has been crossed.
func (cs *CollectedSpace) AllocationsSinceCollect() uint64 {
	return cs.allocCount.Load()
}

// MallocObject allocates a new object with rtLen references and daSize bytes of data, marked
// gcNewlyAdded so it survives any collection cycle already in progress. At least one of rtLen,
// daSize must be non-zero.
func (cs *CollectedSpace) MallocObject(rtLen, daSize uint64) (VAddr, error) {
	if rtLen == 0 && daSize == 0 {
		return NullVAddr, statusErr(CSEmptyObjectCreation, "rt_len and da_size both zero")
	}

	return cs.mallocObject(gcNewlyAdded, rtLen, daSize)
}

// MallocRoot allocates a new root: an object with rtLen references and daSize bytes of data,
// pinned as live regardless of reachability, and returns the RootID a caller uses to reach it. At
// least one of rtLen, daSize must be non-zero.
func (cs *CollectedSpace) MallocRoot(rtLen, daSize uint64) (RootID, error) {
	if rtLen == 0 && daSize == 0 {
		return 0, statusErr(CSEmptyRootCreation, "rt_len and da_size both zero")
	}

	v, err := cs.mallocObject(gcRoot, rtLen, daSize)
	if err != nil {
		return 0, err
	}

	cs.rootMu.Lock()
	index := cs.popRootEntry()
	cs.roots[index] = rootEntry{allocated: true, vaddr: v}
	cs.rootMu.Unlock()

	return RootID(index), nil
}

// GetRootVAddr returns the VAddr a root names.
func (cs *CollectedSpace) GetRootVAddr(id RootID) (VAddr, error) {
	cs.rootMu.RLock()
	defer cs.rootMu.RUnlock()

	entry, err := cs.rootEntry(id)
	if err != nil {
		return NullVAddr, err
	}

	return entry.vaddr, nil
}

// rootEntry looks up id's slot, bounds- and allocation-checking it. Caller must hold rootMu.
func (cs *CollectedSpace) rootEntry(id RootID) (rootEntry, error) {
	if uint64(id) >= uint64(len(cs.roots)) {
		return rootEntry{}, statusErr(CSRootIndexOutOfBounds, "root %d, %d slots", id, len(cs.roots))
	}

	entry := cs.roots[id]
	if !entry.allocated {
		return rootEntry{}, statusErr(CSRootIndexInvalid, "root %d", id)
	}

	return entry, nil
}

// Deroot releases a root. The object it named is not reclaimed immediately: it survives until the
// collector, no longer able to reach it from any remaining root, sweeps it in a later cycle.
func (cs *CollectedSpace) Deroot(id RootID) error {
	cs.rootMu.Lock()

	entry, err := cs.rootEntry(id)
	if err != nil {
		cs.rootMu.Unlock()
		return err
	}

	cs.roots[id] = rootEntry{nextFree: cs.rootFreeHead}
	cs.rootFreeHead = uint64(id)

	cs.rootMu.Unlock()

	paddr := cs.ms.GetWrite(entry.vaddr)
	Object{raw: paddr}.setStatus(gcNewlyAdded)
	cs.ms.UnlockWrite(entry.vaddr)

	return nil
}

// GetRead locks v for reading and returns a view onto its object. The caller must call
// UnlockRead(v) when done with it.
func (cs *CollectedSpace) GetRead(v VAddr) (Object, error) {
	if v.IsNull() {
		return Object{}, ErrNullReference
	}

	if !cs.ms.Allocated(v) {
		return Object{}, ErrNotAllocated
	}

	return Object{raw: cs.ms.GetRead(v)}, nil
}

// GetWrite locks v for writing and returns a view onto its object. The caller must call
// UnlockWrite(v) when done with it.
func (cs *CollectedSpace) GetWrite(v VAddr) (Object, error) {
	if v.IsNull() {
		return Object{}, ErrNullReference
	}

	if !cs.ms.Allocated(v) {
		return Object{}, ErrNotAllocated
	}

	return Object{raw: cs.ms.GetWrite(v)}, nil
}

// UnlockRead releases a read lock taken by GetRead.
func (cs *CollectedSpace) UnlockRead(v VAddr) {
	cs.ms.UnlockRead(v)
}

// UnlockWrite releases a write lock taken by GetWrite.
func (cs *CollectedSpace) UnlockWrite(v VAddr) {
	cs.ms.UnlockWrite(v)
}

// Allocated reports whether v currently names a live object.
func (cs *CollectedSpace) Allocated(v VAddr) bool {
	return !v.IsNull() && cs.ms.Allocated(v)
}

// TryFullShift compacts every block in the underlying memory space as far as it will go without
// blocking on contended pieces.
func (cs *CollectedSpace) TryFullShift() {
	cs.ms.TryFullShift()
}

// DebugString renders the underlying memory space's blocks, for diagnostics.
func (cs *CollectedSpace) DebugString() string {
	return cs.ms.DebugString()
}
