package gc

// gc.go implements the store's mark-sweep collector. The source never got past a sketch of the
// object header (gc_src/gc.c, gc_src/cs.c both stub every mutating call with a TODO), so the
// traversal and sweep implemented here complete that sketch rather than translate working code.
//
// Collect runs in two passes. Mark takes a snapshot of the root set, then traces outward with an
// explicit stack (not recursion, so the depth of an object graph can't blow the Go stack),
// promoting every reachable gcUnvisited object to gcVisited. Sweep then walks every block once: a
// survivor (gcVisited, gcRoot) is reset for the next cycle or left alone; anything still
// gcUnvisited was unreachable and is freed. A gcNewlyAdded object is never collected in the cycle
// it was created in -- there is no write barrier recording mutations made after the mark snapshot,
// so an object allocated after that snapshot (and anything only reachable through it) cannot be
// proven live or dead until the following cycle -- so it is always spared and reset to gcUnvisited
// for the next one.
//
// Sweep never holds a block's structural lock while freeing a piece out of it: MemoryBlock.Free
// takes that lock itself, and an object's cell can be independently locked by a concurrent
// mutator the same way the source's mem_lck notes warn about. So sweep takes a snapshot of each
// block's live VAddrs, drops the block lock, and only then inspects and frees from the snapshot.

// Collect runs one full mark-sweep cycle over the space.
func (cs *CollectedSpace) Collect() {
	cs.mark()
	cs.sweep()
	cs.allocCount.Store(0)
}

// mark traces the object graph from the current root set, promoting every object it reaches from
// gcUnvisited to gcVisited.
func (cs *CollectedSpace) mark() {
	cs.rootMu.RLock()
	stack := make([]VAddr, 0, len(cs.roots))

	for _, entry := range cs.roots {
		if entry.allocated {
			stack = append(stack, entry.vaddr)
		}
	}
	cs.rootMu.RUnlock()

	// gcNewlyAdded and gcRoot objects never change status during mark (gcUnvisited is the only
	// status that flips, to gcVisited), so neither can use its own status to tell this pass it
	// has already traced from there. seenPersistent dedupes both against re-traversal within a
	// single mark call.
	seenPersistent := make(map[VAddr]bool)

	for len(stack) > 0 {
		v := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if v.IsNull() {
			continue
		}

		refs := cs.visit(v, seenPersistent)
		stack = append(stack, refs...)
	}
}

// visit marks v reachable if this is the first time the current cycle has reached it, and returns
// its outgoing references so the caller can keep tracing. It reports no references for a vaddr
// that can no longer be locked: by the time the tracer got to it, it was already freed by a
// concurrent mutator, the same race the source's mb_free_unsafe comment calls out.
func (cs *CollectedSpace) visit(v VAddr, seenPersistent map[VAddr]bool) []VAddr {
	obj, err := cs.GetWrite(v)
	if err != nil {
		return nil
	}
	defer cs.UnlockWrite(v)

	switch obj.status() {
	case gcUnvisited:
		obj.setStatus(gcVisited)
		return collectRefs(obj)
	case gcNewlyAdded, gcRoot:
		if seenPersistent[v] {
			return nil
		}

		seenPersistent[v] = true

		return collectRefs(obj)
	default: // gcVisited: already traced from here this pass.
		return nil
	}
}

func collectRefs(obj Object) []VAddr {
	n := obj.RTLen()
	refs := make([]VAddr, 0, n)

	for i := uint64(0); i < n; i++ {
		v, _ := obj.Ref(i) // i < n by construction; cannot fail.
		if !v.IsNull() {
			refs = append(refs, v)
		}
	}

	return refs
}

// sweep reclaims everything the mark phase left gcUnvisited, and resets every survivor for the
// next cycle.
func (cs *CollectedSpace) sweep() {
	count := cs.ms.blockCount()

	for i := uint64(0); i < count; i++ {
		block := cs.ms.blockAt(i)

		for _, v := range block.SnapshotVAddrs() {
			cs.sweepOne(v)
		}
	}
}

func (cs *CollectedSpace) sweepOne(v VAddr) {
	obj, err := cs.GetWrite(v)
	if err != nil {
		return
	}

	switch obj.status() {
	case gcVisited:
		obj.setStatus(gcUnvisited)
		cs.UnlockWrite(v)
	case gcNewlyAdded:
		obj.setStatus(gcUnvisited)
		cs.UnlockWrite(v)
	case gcRoot:
		cs.UnlockWrite(v)
	case gcUnvisited:
		cs.UnlockWrite(v)
		cs.ms.Free(v)
	}
}
