/*
Package gc implements a concurrent, relocating, tracing garbage-collected object store.

With the reason for the project to learn more about runtime engineering, the design mimics a
small slice of a real managed-memory runtime: user code allocates variable-sized objects made of a
reference table (indirect pointers to other objects) and a raw data array, anchors liveness with a
set of root handles, and the store reclaims everything unreachable from those roots. The store
also compacts its own backing storage in place, so long-running workloads do not fragment.

# Layers #

The store is built bottom-up in four layers, each in its own file:

  - [AddressTable] and [AddressBook] (table.go, book.go) give every object a stable, movable
    "virtual address" that survives relocation of the bytes it names.
  - [MemoryBlock] (block.go, piece.go) is a boundary-tagged free-list allocator over one big
    contiguous byte buffer, with support for shifting a single allocated piece into an adjacent
    free piece.
  - [MemorySpace] (space.go, prng.go) federates many blocks behind one address book, placing new
    allocations by random block sampling with fallback to growing the block set.
  - [CollectedSpace] (collected.go, object.go, gc.go, worker.go) layers object semantics, a root
    set, and a mark-sweep collector on top of a memory space.

# Data Flow #

A caller never sees a physical pointer outside of a lock: [CollectedSpace.GetRead] and
[CollectedSpace.GetWrite] hand back a short-lived [Object] view that is valid only until the
matching [CollectedSpace.UnlockRead] or [CollectedSpace.UnlockWrite] call, because a concurrent
shift can move the backing bytes the moment the lock is released.

# Concurrency #

Every layer synchronizes with reader-writer locks rather than cooperative scheduling: there is no
user-space yield anywhere in this package. The global lock order, top to bottom, is

	CollectedSpace.roots  ->  MemorySpace.blocks  ->  MemoryBlock.mu  ->  AddressBook.book  ->  AddressTable.freeStack  ->  AddressTable cell

and is never reversed; see the per-type comments for the narrower orders each layer enforces on
its own.
*/
package gc
