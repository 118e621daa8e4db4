package pager

// Pointer-map entry types (§3.8).
const (
	PtrRoot              = 1
	PtrFreelist           = 2
	PtrFirstOverflow      = 3
	PtrSubsequentOverflow = 4
	PtrNonRootBTree       = 5
)

const ptrMapEntrySize = 5 // 1-byte type + 4-byte big-endian parent

// entriesPerPtrMapPage is how many following pages one pointer-map page
// covers: every (1 + floor(U/5))-th page starting at page 2 is itself a
// pointer-map page (§3.8).
func entriesPerPtrMapPage(usableSize int) int {
	return usableSize / ptrMapEntrySize
}

func ptrMapPageStride(usableSize int) uint32 {
	return uint32(1 + entriesPerPtrMapPage(usableSize))
}

// isPointerMapPage reports whether page n is itself a pointer-map page
// under the given usable size, per the "every stride-th page starting at
// page 2" rule. No adjustment is made for the lock-byte page, here or in
// any caller.
func isPointerMapPage(usableSize int, n uint32) bool {
	if n < 2 {
		return false
	}
	stride := ptrMapPageStride(usableSize)
	return (n-2)%stride == 0
}

// ptrMapPageFor returns the pointer-map page that would hold the entry for
// page n, and the zero-based slot index within it.
func ptrMapPageFor(usableSize int, n uint32) (page uint32, slot int) {
	stride := ptrMapPageStride(usableSize)
	// The first pointer-map page is page 2; it covers pages 3..2+entries.
	group := (n - 2) / stride
	ptrMapPage := 2 + group*stride
	offsetIntoGroup := (n - 2) % stride
	return ptrMapPage, int(offsetIntoGroup) - 1
}

// PutPointerMapEntry records that page child has the given type/parent,
// writing into the appropriate pointer-map page. No-op if auto-vacuum is
// off (header offset 52 is zero).
func (p *Pager) PutPointerMapEntry(child uint32, typ byte, parent uint32) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.header.LargestRootPage == 0 {
		return nil
	}
	mapPage, slot := ptrMapPageFor(p.header.UsableSize(), child)
	if slot < 0 {
		return nil // child is itself a pointer-map page; nothing to record
	}
	pg, err := p.getPageLocked(mapPage)
	if err != nil {
		return err
	}
	off := slot * ptrMapEntrySize
	data := pg.Data()
	if off+ptrMapEntrySize > len(data) {
		return nil
	}
	data[off] = typ
	putUint32(data[off+1:], parent)
	pg.SetDirty(true)
	p.dirty[mapPage] = true
	return nil
}

// PointerMapEntry reads back a (type, parent) pair for child.
func (p *Pager) PointerMapEntry(child uint32) (typ byte, parent uint32, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.header.LargestRootPage == 0 {
		return 0, 0, nil
	}
	mapPage, slot := ptrMapPageFor(p.header.UsableSize(), child)
	if slot < 0 {
		return 0, 0, nil
	}
	pg, err := p.getPageLocked(mapPage)
	if err != nil {
		return 0, 0, err
	}
	off := slot * ptrMapEntrySize
	data := pg.Data()
	if off+ptrMapEntrySize > len(data) {
		return 0, 0, nil
	}
	return data[off], getUint32(data[off+1:]), nil
}

func putUint32(b []byte, v uint32) {
	b[0] = byte(v >> 24)
	b[1] = byte(v >> 16)
	b[2] = byte(v >> 8)
	b[3] = byte(v)
}

func getUint32(b []byte) uint32 {
	return uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
}
