package gc

// object.go lays the collector's object format on top of a MemorySpace allocation and defines
// Object, the locked view a caller gets back from CollectedSpace. It is grounded on the obj_header
// sketch in gc_src/cs.c, completed here since the source left the object layer unimplemented.
//
// An object's region, as handed back by MemorySpace (space header already stripped), is:
//
//	8 bytes   gc_status
//	8 bytes   rt_len
//	8 bytes   da_size
//	...       rt_len VAddrs, the reference table
//	...       da_size bytes, the data array

import "fmt"

// gcStatus is a collector-internal mark, not part of the public API: objects are always created
// gcNewlyAdded or gcRoot and the collector advances them from there; the one other change is
// Deroot, which resets a former root to gcNewlyAdded.
type gcStatus uint64

const (
	// gcNewlyAdded objects were allocated after the mark phase of the collection in progress (or
	// no collection is in progress) and are guaranteed to survive exactly one cycle even if
	// unreachable, since the collector never had a chance to see them as a potential root.
	gcNewlyAdded gcStatus = iota

	// gcUnvisited objects existed at the start of the current mark phase and have not yet been
	// reached by the trace. Anything still gcUnvisited at the end of the mark phase is garbage.
	gcUnvisited

	// gcVisited objects have been reached by the current trace.
	gcVisited

	// gcRoot objects are pinned: the root set, not reachability, controls their lifetime.
	gcRoot
)

func (s gcStatus) String() string {
	switch s {
	case gcNewlyAdded:
		return "newly-added"
	case gcUnvisited:
		return "unvisited"
	case gcVisited:
		return "visited"
	case gcRoot:
		return "root"
	default:
		return fmt.Sprintf("gcStatus(%d)", uint64(s))
	}
}

const (
	objStatusOff  = 0
	objRTLenOff   = 8
	objDASizeOff  = 16
	objHeaderSize = 24
)

// objectSize returns the number of MemorySpace bytes an object with the given reference table
// length and data size needs.
func objectSize(rtLen, daSize uint64) uint64 {
	return objHeaderSize + rtLen*vaddrSize + daSize
}

func objInit(buf []byte, status gcStatus, rtLen, daSize uint64) {
	byteOrder.PutUint64(buf[objStatusOff:objStatusOff+8], uint64(status))
	byteOrder.PutUint64(buf[objRTLenOff:objRTLenOff+8], rtLen)
	byteOrder.PutUint64(buf[objDASizeOff:objDASizeOff+8], daSize)
}

// Object is a locked view onto one object's reference table and data array. It is valid only
// between the CollectedSpace call that produced it and the matching call to
// [CollectedSpace.UnlockRead] or [CollectedSpace.UnlockWrite]: once unlocked, a concurrent shift
// may move the bytes it wraps.
type Object struct {
	raw []byte
}

func (o Object) status() gcStatus {
	return gcStatus(byteOrder.Uint64(o.raw[objStatusOff : objStatusOff+8]))
}

func (o Object) setStatus(s gcStatus) {
	byteOrder.PutUint64(o.raw[objStatusOff:objStatusOff+8], uint64(s))
}

// RTLen returns the number of reference-table slots the object was created with.
func (o Object) RTLen() uint64 {
	return byteOrder.Uint64(o.raw[objRTLenOff : objRTLenOff+8])
}

// DASize returns the number of data bytes the object was created with.
func (o Object) DASize() uint64 {
	return byteOrder.Uint64(o.raw[objDASizeOff : objDASizeOff+8])
}

func (o Object) rtRegion() []byte {
	start := objHeaderSize
	return o.raw[start : start+int(o.RTLen())*vaddrSize]
}

func (o Object) dataRegion() []byte {
	start := objHeaderSize + int(o.RTLen())*vaddrSize
	return o.raw[start : start+int(o.DASize())]
}

// Ref returns the VAddr stored at reference-table offset i.
func (o Object) Ref(i uint64) (VAddr, error) {
	if i >= o.RTLen() {
		return NullVAddr, statusErr(CSRootOffsetOutOfBounds, "offset %d, rt_len %d", i, o.RTLen())
	}

	rt := o.rtRegion()

	return getVAddr(rt[i*vaddrSize : i*vaddrSize+vaddrSize]), nil
}

// SetRef stores v at reference-table offset i.
func (o Object) SetRef(i uint64, v VAddr) error {
	if i >= o.RTLen() {
		return statusErr(CSRootOffsetOutOfBounds, "offset %d, rt_len %d", i, o.RTLen())
	}

	rt := o.rtRegion()
	putVAddr(rt[i*vaddrSize:i*vaddrSize+vaddrSize], v)

	return nil
}

// ReadData copies len(dest) bytes starting at the data array's offset into dest.
func (o Object) ReadData(offset uint64, dest []byte) error {
	data := o.dataRegion()
	if offset+uint64(len(dest)) > uint64(len(data)) {
		return statusErr(CSDataOffsetOutOfBounds, "offset %d, len %d, da_size %d", offset, len(dest), len(data))
	}

	copy(dest, data[offset:offset+uint64(len(dest))])

	return nil
}

// WriteData copies src into the data array starting at offset.
func (o Object) WriteData(offset uint64, src []byte) error {
	data := o.dataRegion()
	if offset+uint64(len(src)) > uint64(len(data)) {
		return statusErr(CSDataOffsetOutOfBounds, "offset %d, len %d, da_size %d", offset, len(src), len(data))
	}

	copy(data[offset:offset+uint64(len(src))], src)

	return nil
}
