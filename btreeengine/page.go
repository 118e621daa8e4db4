// Package btreeengine implements the b-tree page layout, cursor, and
// insert/split/delete/merge machinery of spec §3.3, §3.4, §4.6-§4.8: table
// b-trees keyed by 64-bit rowid and index b-trees keyed by byte string,
// both sharing one on-disk cell-pointer-array page shape. It sits directly
// on top of pager.Pager the way the teacher's btree package sits on top of
// its own Pager, but interprets pager.Page bytes according to the
// SQLite-compatible page-type byte instead of the teacher's single baked-in
// leaf/internal layout.
package btreeengine

import (
	"encoding/binary"
)

// Page type byte, offset 0 of the b-tree page header (§3.3).
const (
	PageTypeIndexInterior = 2
	PageTypeTableInterior = 5
	PageTypeIndexLeaf     = 10
	PageTypeTableLeaf     = 13
)

// Page-header offsets, relative to the start of the b-tree header (which is
// offset 100 within page 1, offset 0 on every other page).
const (
	hdrOffType        = 0
	hdrOffFirstFree   = 1
	hdrOffNumCells    = 3
	hdrOffCellContent = 5
	hdrOffFragBytes   = 7
	hdrOffRightChild  = 8 // interior pages only

	leafHeaderSize     = 8
	interiorHeaderSize = 12
)

func isInterior(pageType byte) bool {
	return pageType == PageTypeIndexInterior || pageType == PageTypeTableInterior
}

func isTable(pageType byte) bool {
	return pageType == PageTypeTableInterior || pageType == PageTypeTableLeaf
}

func headerSize(pageType byte) int {
	if isInterior(pageType) {
		return interiorHeaderSize
	}
	return leafHeaderSize
}

// node wraps a pager.Page with b-tree header accessors. hdrOff is 100 for
// page 1 (the database header precedes its b-tree header), 0 elsewhere.
type node struct {
	raw    []byte
	hdrOff int
	usable int
}

func newNode(raw []byte, hdrOff, usable int) *node {
	return &node{raw: raw, hdrOff: hdrOff, usable: usable}
}

func (n *node) pageType() byte     { return n.raw[n.hdrOff+hdrOffType] }
func (n *node) setPageType(t byte) { n.raw[n.hdrOff+hdrOffType] = t }

func (n *node) firstFreeblock() int {
	return int(binary.BigEndian.Uint16(n.raw[n.hdrOff+hdrOffFirstFree:]))
}
func (n *node) setFirstFreeblock(off int) {
	binary.BigEndian.PutUint16(n.raw[n.hdrOff+hdrOffFirstFree:], uint16(off))
}

func (n *node) numCells() int {
	return int(binary.BigEndian.Uint16(n.raw[n.hdrOff+hdrOffNumCells:]))
}
func (n *node) setNumCells(k int) {
	binary.BigEndian.PutUint16(n.raw[n.hdrOff+hdrOffNumCells:], uint16(k))
}

// cellContentStart returns the byte offset (within the whole page buffer,
// not relative to hdrOff) where the cell-content area begins; 0 on disk
// means 65536 (§3.3).
func (n *node) cellContentStart() int {
	v := int(binary.BigEndian.Uint16(n.raw[n.hdrOff+hdrOffCellContent:]))
	if v == 0 {
		return 65536
	}
	return v
}
func (n *node) setCellContentStart(off int) {
	if off == 65536 {
		off = 0
	}
	binary.BigEndian.PutUint16(n.raw[n.hdrOff+hdrOffCellContent:], uint16(off))
}

func (n *node) fragmentedBytes() int  { return int(n.raw[n.hdrOff+hdrOffFragBytes]) }
func (n *node) setFragmentedBytes(v int) {
	n.raw[n.hdrOff+hdrOffFragBytes] = byte(v)
}

func (n *node) rightChild() uint32 {
	return binary.BigEndian.Uint32(n.raw[n.hdrOff+hdrOffRightChild:])
}
func (n *node) setRightChild(p uint32) {
	binary.BigEndian.PutUint32(n.raw[n.hdrOff+hdrOffRightChild:], p)
}

// initEmpty resets the page to an empty node of the given type, cell
// content area starting at the page end (§4.6 "empty pages").
func (n *node) initEmpty(pageType byte) {
	n.setPageType(pageType)
	n.setFirstFreeblock(0)
	n.setNumCells(0)
	n.setCellContentStart(len(n.raw))
	n.setFragmentedBytes(0)
	if isInterior(pageType) {
		n.setRightChild(0)
	}
}

func (n *node) cellPtrArrayOffset() int {
	return n.hdrOff + headerSize(n.pageType())
}

func (n *node) cellOffset(i int) int {
	off := n.cellPtrArrayOffset() + 2*i
	return int(binary.BigEndian.Uint16(n.raw[off:]))
}

func (n *node) setCellOffset(i, off int) {
	p := n.cellPtrArrayOffset() + 2*i
	binary.BigEndian.PutUint16(n.raw[p:], uint16(off))
}

// freeSpace returns the number of bytes available for a new cell and its
// cell-pointer entry once defragmented: the gap between the end of the
// current cell-pointer array and the start of the cell-content area, plus
// any fragmented/freeblock bytes that a defragmentation pass would recover.
func (n *node) freeSpace() int {
	k := n.numCells()
	ptrArrayEnd := n.cellPtrArrayOffset() + 2*k
	gap := n.cellContentStart() - ptrArrayEnd
	return gap + n.freeblockTotal() + n.fragmentedBytes()
}

// contiguousFreeSpace is the gap usable without any reclamation, i.e. the
// space a fresh cell can occupy without defragmenting first.
func (n *node) contiguousFreeSpace() int {
	k := n.numCells()
	ptrArrayEnd := n.cellPtrArrayOffset() + 2*k
	return n.cellContentStart() - ptrArrayEnd - 2 // room for the new pointer too
}

// freeblockTotal walks the freeblock chain (§3.4): 2-byte next-offset,
// 2-byte size (including this 4-byte header), ordered by ascending offset.
func (n *node) freeblockTotal() int {
	total := 0
	off := n.firstFreeblock()
	for off != 0 {
		size := int(binary.BigEndian.Uint16(n.raw[off+2:]))
		total += size
		off = int(binary.BigEndian.Uint16(n.raw[off:]))
	}
	return total
}

// addFreeblock links a newly-freed byte range [off, off+size) into the
// freeblock chain in ascending-offset order, coalescing with an
// immediately adjacent neighbor on either side when possible. Gaps of 1-3
// bytes are too small to hold a freeblock header and are folded into the
// fragment-byte count instead (§3.4).
func (n *node) addFreeblock(off, size int) {
	if size < 4 {
		n.setFragmentedBytes(n.fragmentedBytes() + size)
		return
	}

	prevOff := 0
	cur := n.firstFreeblock()
	for cur != 0 && cur < off {
		prevOff = cur
		cur = int(binary.BigEndian.Uint16(n.raw[cur:]))
	}

	// Coalesce with the following block if contiguous.
	if cur != 0 && off+size == cur {
		nextNext := int(binary.BigEndian.Uint16(n.raw[cur:]))
		nextSize := int(binary.BigEndian.Uint16(n.raw[cur+2:]))
		size += nextSize
		cur = nextNext
	}
	// Coalesce with the preceding block if contiguous.
	if prevOff != 0 {
		prevSize := int(binary.BigEndian.Uint16(n.raw[prevOff+2:]))
		if prevOff+prevSize == off {
			off = prevOff
			size += prevSize
			binary.BigEndian.PutUint16(n.raw[off:], uint16(cur))
			binary.BigEndian.PutUint16(n.raw[off+2:], uint16(size))
			return
		}
	}

	binary.BigEndian.PutUint16(n.raw[off:], uint16(cur))
	binary.BigEndian.PutUint16(n.raw[off+2:], uint16(size))
	if prevOff == 0 {
		n.setFirstFreeblock(off)
	} else {
		binary.BigEndian.PutUint16(n.raw[prevOff:], uint16(off))
	}
}

// allocate reserves size contiguous bytes at the low end of the
// cell-content area and returns their offset, defragmenting first if the
// space is only available via freeblocks/fragments (§4.6).
func (n *node) allocate(size int) int {
	if n.contiguousFreeSpace() < size {
		n.defragment()
	}
	newStart := n.cellContentStart() - size
	n.setCellContentStart(newStart)
	return newStart
}

// defragment packs all live cells against the page end in cell-pointer
// order, clears the freeblock chain, and zeros the fragment count (§4.6).
func (n *node) defragment() {
	k := n.numCells()
	type liveCell struct {
		off, size int
	}
	cells := make([]liveCell, k)
	for i := 0; i < k; i++ {
		off := n.cellOffset(i)
		cells[i] = liveCell{off, cellSizeAt(n, off)}
	}

	scratch := make([]byte, len(n.raw)-n.cellContentStart())
	base := n.cellContentStart()
	copy(scratch, n.raw[base:])

	write := len(n.raw)
	for i := k - 1; i >= 0; i-- {
		c := cells[i]
		write -= c.size
		copy(n.raw[write:write+c.size], scratch[c.off-base:c.off-base+c.size])
		n.setCellOffset(i, write)
	}
	n.setCellContentStart(write)
	n.setFirstFreeblock(0)
	n.setFragmentedBytes(0)
}

// cellSizeAt measures the on-disk size of the cell starting at off; defined
// in cell.go where the per-page-type cell shapes live. n.pageType() was
// already decoded successfully earlier in the same operation (the caller
// reached this node via cellAt/isInterior), so a decode error here would
// mean the page changed under us, not a routine corrupt read.
func cellSizeAt(n *node, off int) int {
	size, err := decodeCellSize(n, off)
	if err != nil {
		panic(err)
	}
	return size
}

// removeCellAt deletes the i-th cell-pointer entry, shifting later entries
// down, and frees its backing bytes as a freeblock (§4.6 "Deletes").
func (n *node) removeCellAt(i int) {
	off := n.cellOffset(i)
	size := cellSizeAt(n, off)
	k := n.numCells()
	for j := i; j < k-1; j++ {
		n.setCellOffset(j, n.cellOffset(j+1))
	}
	n.setNumCells(k - 1)
	n.addFreeblock(off, size)
}

// insertCellBytes writes raw cell bytes into freshly allocated space and
// inserts a cell-pointer entry at position i, maintaining the caller's
// required key order.
func (n *node) insertCellBytes(i int, cell []byte) {
	off := n.allocate(len(cell))
	copy(n.raw[off:off+len(cell)], cell)

	k := n.numCells()
	for j := k; j > i; j-- {
		n.setCellOffset(j, n.cellOffset(j-1))
	}
	n.setCellOffset(i, off)
	n.setNumCells(k + 1)
}

// minCellsAllowed is the §3.9 occupancy floor: 2, except page 1 acting as
// an interior root, which may fall to 1.
func minCellsAllowed(pageNumber uint32, pageType byte) int {
	if pageNumber == 1 && isInterior(pageType) {
		return 1
	}
	return 2
}
