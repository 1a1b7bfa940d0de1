package gc

import "testing"

func TestAddressBook_PutExpandsWhenFull(tt *testing.T) {
	tt.Parallel()

	ab := NewAddressBook(1)

	v1 := ab.Put([]byte("a"))
	v2 := ab.Put([]byte("b"))

	if v1.Table == v2.Table {
		tt.Errorf("Put() placed both entries in table %d, want separate tables since tableCap is 1", v1.Table)
	}

	if got := ab.GetRead(v1); string(got) != "a" {
		tt.Errorf("GetRead(v1) = %q, want %q", got, "a")
	}
	ab.UnlockRead(v1)

	if got := ab.GetRead(v2); string(got) != "b" {
		tt.Errorf("GetRead(v2) = %q, want %q", got, "b")
	}
	ab.UnlockRead(v2)

	if got, want := ab.Fill(), uint64(2); got != want {
		tt.Errorf("Fill() = %d, want %d", got, want)
	}
}

func TestAddressBook_FreeReAddsTableToFreeList(tt *testing.T) {
	tt.Parallel()

	ab := NewAddressBook(1)

	v1 := ab.Put([]byte("a"))
	v2 := ab.Put([]byte("b"))

	ab.Free(v1)

	if got, want := ab.Fill(), uint64(1); got != want {
		tt.Errorf("Fill() after Free = %d, want %d", got, want)
	}

	// The freed table's single slot should be reusable without growing the book.
	bookSize := len(ab.book)
	v3 := ab.Put([]byte("c"))

	if len(ab.book) != bookSize {
		tt.Errorf("Put() after Free grew the book from %d to %d, want reuse", bookSize, len(ab.book))
	}

	if v3.Table != v1.Table {
		tt.Errorf("Put() after Free used table %d, want reused table %d", v3.Table, v1.Table)
	}

	ab.Free(v2)
	ab.Free(v3)
}

func TestAddressBook_Install(tt *testing.T) {
	tt.Parallel()

	ab := NewAddressBook(4)

	full := make([]byte, vaddrSize+8)
	copy(full[vaddrSize:], []byte("userdat"))

	v, userRegion := ab.Install(full)

	if got := getVAddr(full[:vaddrSize]); got != v {
		tt.Errorf("VAddr written into full = %v, want %v", got, v)
	}

	if got := ab.GetRead(v); string(got) != string(userRegion) {
		tt.Errorf("GetRead() = %v, want %v", got, userRegion)
	}
	ab.UnlockRead(v)
}

func TestAddressBook_Allocated(tt *testing.T) {
	tt.Parallel()

	ab := NewAddressBook(2)
	v := ab.Put([]byte("x"))

	if !ab.Allocated(v) {
		tt.Errorf("Allocated(%v) = false, want true", v)
	}

	ab.Free(v)

	if ab.Allocated(v) {
		tt.Errorf("Allocated(%v) = true after Free, want false", v)
	}

	if ab.Allocated(VAddr{Table: 999, Cell: 0}) {
		tt.Errorf("Allocated() on out-of-range table = true, want false")
	}
}

func TestAddressBook_MultipleTablesAcrossMoves(tt *testing.T) {
	tt.Parallel()

	ab := NewAddressBook(1)

	var vaddrs []VAddr
	for i := 0; i < 5; i++ {
		vaddrs = append(vaddrs, ab.Put([]byte{byte(i)}))
	}

	tables := map[uint64]bool{}
	for _, v := range vaddrs {
		tables[v.Table] = true
	}

	if len(tables) != 5 {
		tt.Errorf("got %d distinct tables for 5 puts with tableCap 1, want 5", len(tables))
	}

	ab.GetWrite(vaddrs[0])
	ab.Move(vaddrs[0], []byte{99})
	ab.UnlockWrite(vaddrs[0])

	if got := ab.GetRead(vaddrs[0]); got[0] != 99 {
		tt.Errorf("GetRead() after Move = %v, want [99]", got)
	}
	ab.UnlockRead(vaddrs[0])
}
