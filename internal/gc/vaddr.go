package gc

// vaddr.go defines the virtual address: a stable, indirect identifier for an object that survives
// relocation of the physical bytes it names.

import (
	"fmt"
	"math"
)

// VAddr is a virtual address: a pair selecting an address table and a cell within it. It is a
// pure value -- copying one is always safe -- but dereferencing it (via [AddressBook.GetRead] and
// friends) requires a lock that the table manages internally.
type VAddr struct {
	Table uint64
	Cell  uint64
}

// NullVAddr is the distinguished virtual address that denotes the null reference. No object is
// ever allocated at NullVAddr.
var NullVAddr = VAddr{Table: math.MaxUint64, Cell: math.MaxUint64}

// IsNull reports whether v is the null virtual address.
func (v VAddr) IsNull() bool {
	return v == NullVAddr
}

func (v VAddr) String() string {
	if v.IsNull() {
		return "vaddr(nil)"
	}

	return fmt.Sprintf("vaddr(%d,%d)", v.Table, v.Cell)
}

// vaddrSize is the encoded width of a VAddr in an object's reference table or a piece's allocated
// header: two little-endian uint64s.
const vaddrSize = 16

// putVAddr encodes v into buf[0:16].
func putVAddr(buf []byte, v VAddr) {
	byteOrder.PutUint64(buf[0:8], v.Table)
	byteOrder.PutUint64(buf[8:16], v.Cell)
}

// getVAddr decodes a VAddr from buf[0:16].
func getVAddr(buf []byte) VAddr {
	return VAddr{
		Table: byteOrder.Uint64(buf[0:8]),
		Cell:  byteOrder.Uint64(buf[8:16]),
	}
}
