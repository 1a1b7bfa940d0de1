package gc

import "testing"

func TestPiece_InitSizeAllocated(tt *testing.T) {
	tt.Parallel()

	cases := []struct {
		name      string
		size      uint64
		allocated bool
	}{
		{"free small", minPieceSize, false},
		{"allocated small", minPieceSize, true},
		{"free large", 256, false},
		{"allocated large", 256, true},
	}

	for _, c := range cases {
		tt.Run(c.name, func(tt *testing.T) {
			buf := make([]byte, c.size)
			pieceInit(buf, 0, c.size, c.allocated)

			if got := pieceSize(buf, 0); got != c.size {
				tt.Errorf("pieceSize() = %d, want %d", got, c.size)
			}

			if got := pieceAllocated(buf, 0); got != c.allocated {
				tt.Errorf("pieceAllocated() = %t, want %t", got, c.allocated)
			}

			// Footer must mirror the header.
			footerOff := int64(c.size) - 8
			if got, want := byteOrder.Uint64(buf[footerOff:footerOff+8]), byteOrder.Uint64(buf[0:8]); got != want {
				tt.Errorf("footer tag = %x, want %x", got, want)
			}
		})
	}
}

func TestPiece_NextPrev(tt *testing.T) {
	tt.Parallel()

	buf := make([]byte, 64)
	pieceInit(buf, 0, 24, true)
	pieceInit(buf, 24, 40, false)

	if got, want := pieceNext(buf, 0), int64(24); got != want {
		tt.Errorf("pieceNext(0) = %d, want %d", got, want)
	}

	if got, want := piecePrev(buf, 24), int64(0); got != want {
		tt.Errorf("piecePrev(24) = %d, want %d", got, want)
	}
}

func TestPiece_FreeListLinks(tt *testing.T) {
	tt.Parallel()

	buf := make([]byte, minPieceSize)
	pieceInit(buf, 0, minPieceSize, false)
	setFreePieceLinks(buf, 0, noOffset, 128)

	if got := freePiecePrev(buf, 0); got != noOffset {
		tt.Errorf("freePiecePrev() = %d, want %d", got, noOffset)
	}

	if got := int64(128); freePieceNext(buf, 0) != got {
		tt.Errorf("freePieceNext() = %d, want %d", freePieceNext(buf, 0), got)
	}
}

func TestPiece_VAddrRoundTrip(tt *testing.T) {
	tt.Parallel()

	buf := make([]byte, mapPadding+8)
	pieceInit(buf, 0, uint64(len(buf)), true)

	want := VAddr{Table: 5, Cell: 9}
	setPieceVAddr(buf, 0, want)

	if got := pieceVAddr(buf, 0); got != want {
		tt.Errorf("pieceVAddr() = %v, want %v", got, want)
	}
}

func TestPiece_AllocBodyOffsets(tt *testing.T) {
	tt.Parallel()

	const off = 16
	userOff := allocBody(off)

	if got, want := allocBodyToPiece(userOff), int64(off); got != want {
		tt.Errorf("allocBodyToPiece(allocBody(%d)) = %d, want %d", off, got, want)
	}
}

func TestPadNumBytes(tt *testing.T) {
	tt.Parallel()

	cases := []struct {
		name string
		n    uint64
		want uint64
	}{
		{"zero enforces minimum", 0, minPieceSize},
		{"odd rounds up then pads", 1, padNumBytes(2)},
		{"small request enforces minimum", 2, minPieceSize},
		{"large request just pads", 1024, 1024 + mapPadding},
	}

	for _, c := range cases {
		tt.Run(c.name, func(tt *testing.T) {
			if got := padNumBytes(c.n); got != c.want {
				tt.Errorf("padNumBytes(%d) = %d, want %d", c.n, got, c.want)
			}
		})
	}
}
