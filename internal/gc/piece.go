package gc

// piece.go implements the boundary-tagged piece codec used by MemoryBlock. It is a direct
// translation of gc_src/mb.c's mem_piece helpers: a piece is a contiguous run of bytes inside a
// block's buffer, tagged at both ends with a size|allocated word so a piece's physical neighbours
// can be found in O(1) without a separate index.
//
// A piece's layout, as an offset range [off, off+size) into a MemoryBlock's buf:
//
//	8 bytes   header tag (size | allocated bit)
//	...       body
//	8 bytes   footer tag (copy of the header)
//
// An allocated piece's body is:
//
//	16 bytes  VAddr of this piece (so a shift can find the AB entry to update)
//	...       user region, exactly the bytes returned to the caller
//
// A free piece's body is:
//
//	8 bytes   size_free_prev, as an offset into buf, or noOffset
//	8 bytes   size_free_next, as an offset into buf, or noOffset

import "encoding/binary"

// byteOrder is used for every on-buffer integer in this package: piece tags, free-list links,
// VAddrs, and object headers.
var byteOrder = binary.LittleEndian

const (
	// mpPadding is the combined size of a piece's header and footer tags.
	mpPadding = 16

	// mfpPadding is mpPadding plus a free piece's prev/next links.
	mfpPadding = mpPadding + 16

	// mapPadding is mpPadding plus an allocated piece's VAddr.
	mapPadding = mpPadding + vaddrSize

	// minPieceSize is the smallest piece a block will ever carve out: large enough to hold
	// whichever of the free or allocated body layouts is bigger, plus two bytes so a just-barely
	// fitting allocation always leaves room to re-free it.
	minPieceSize = mfpPadding + 2

	// noOffset is the free-list sentinel meaning "no neighbour".
	noOffset int64 = -1
)

const allocMask uint64 = 0x1

// pieceTag returns the size|allocated word.
func pieceTag(size uint64, allocated bool) uint64 {
	tag := size &^ allocMask
	if allocated {
		tag |= allocMask
	}

	return tag
}

// pieceInit writes the header and footer tags for a piece of the given size at off.
func pieceInit(buf []byte, off int64, size uint64, allocated bool) {
	tag := pieceTag(size, allocated)
	byteOrder.PutUint64(buf[off:off+8], tag)
	byteOrder.PutUint64(buf[off+int64(size)-8:off+int64(size)], tag)
}

func pieceSize(buf []byte, off int64) uint64 {
	return byteOrder.Uint64(buf[off:off+8]) &^ allocMask
}

func pieceAllocated(buf []byte, off int64) bool {
	return byteOrder.Uint64(buf[off:off+8])&allocMask != 0
}

// pieceBody returns the offset of the first body byte of the piece at off.
func pieceBody(off int64) int64 {
	return off + 8
}

// pieceFromBody returns the piece offset given the offset of its body.
func pieceFromBody(bodyOff int64) int64 {
	return bodyOff - 8
}

// pieceNext returns the offset of the physical successor of the piece at off.
func pieceNext(buf []byte, off int64) int64 {
	return off + int64(pieceSize(buf, off))
}

// piecePrevSize reads the footer of the piece physically preceding off.
func piecePrevSize(buf []byte, off int64) uint64 {
	return byteOrder.Uint64(buf[off-8:off]) &^ allocMask
}

// piecePrev returns the offset of the physical predecessor of the piece at off.
func piecePrev(buf []byte, off int64) int64 {
	return off - int64(piecePrevSize(buf, off))
}

// allocBody returns the offset of the user region within an allocated piece's body (skipping the
// leading VAddr).
func allocBody(off int64) int64 {
	return pieceBody(off) + vaddrSize
}

// allocBodyToPiece returns the piece offset given the offset of its user region.
func allocBodyToPiece(userOff int64) int64 {
	return pieceFromBody(userOff - vaddrSize)
}

// padNumBytes rounds n up to an even number of bytes, adds the allocated-piece padding, and
// enforces the block's minimum piece size.
func padNumBytes(n uint64) uint64 {
	if n%2 != 0 {
		n++
	}

	size := n + mapPadding
	if size < minPieceSize {
		return minPieceSize
	}

	return size
}

// freePiecePrev and freePieceNext read the free-list links out of the body of the free piece at
// off.
func freePiecePrev(buf []byte, off int64) int64 {
	return int64(byteOrder.Uint64(buf[pieceBody(off) : pieceBody(off)+8]))
}

func freePieceNext(buf []byte, off int64) int64 {
	return int64(byteOrder.Uint64(buf[pieceBody(off)+8 : pieceBody(off)+16]))
}

func setFreePieceLinks(buf []byte, off int64, prev, next int64) {
	body := pieceBody(off)
	byteOrder.PutUint64(buf[body:body+8], uint64(prev))
	byteOrder.PutUint64(buf[body+8:body+16], uint64(next))
}

// pieceVAddr reads the VAddr out of an allocated piece's body.
func pieceVAddr(buf []byte, off int64) VAddr {
	return getVAddr(buf[pieceBody(off) : pieceBody(off)+vaddrSize])
}

func setPieceVAddr(buf []byte, off int64, v VAddr) {
	putVAddr(buf[pieceBody(off):pieceBody(off)+vaddrSize], v)
}
