package btreeengine

import (
	"encoding/binary"

	"github.com/eplite/eplite/pager"
)

// overflow chain layout (§4.6): each overflow page's first 4 bytes are the
// next page number (0 terminates), the rest carries payload bytes.
const overflowPageHeaderSize = 4

// writeOverflowChain stores the trailing spill bytes of a cell's payload
// across one or more freshly allocated overflow pages and returns the
// first page's number.
func writeOverflowChain(p *pager.Pager, spill []byte) (uint32, error) {
	usable := p.Header().UsableSize()
	perPage := usable - overflowPageHeaderSize

	var first uint32
	var prevPage *pager.Page
	for len(spill) > 0 {
		pg, err := p.AllocatePage()
		if err != nil {
			return 0, err
		}
		if first == 0 {
			first = pg.ID()
		}
		if prevPage != nil {
			binary.BigEndian.PutUint32(prevPage.Data(), pg.ID())
		}

		n := len(spill)
		if n > perPage {
			n = perPage
		}
		copy(pg.Data()[overflowPageHeaderSize:], spill[:n])
		binary.BigEndian.PutUint32(pg.Data(), 0)
		spill = spill[n:]
		prevPage = pg
	}
	return first, nil
}

// readOverflowChain reconstructs the spilled tail of a payload starting at
// firstPage, given how many bytes remain to be read.
func readOverflowChain(p *pager.Pager, firstPage uint32, remaining int) ([]byte, error) {
	usable := p.Header().UsableSize()
	perPage := usable - overflowPageHeaderSize

	out := make([]byte, 0, remaining)
	page := firstPage
	for remaining > 0 && page != 0 {
		pg, err := p.GetPage(page)
		if err != nil {
			return nil, err
		}
		n := remaining
		if n > perPage {
			n = perPage
		}
		out = append(out, pg.Data()[overflowPageHeaderSize:overflowPageHeaderSize+n]...)
		remaining -= n
		page = binary.BigEndian.Uint32(pg.Data())
	}
	return out, nil
}

// freeOverflowChain releases every page in a spilled payload's chain back
// to the freelist, e.g. when the owning cell is deleted or overwritten.
func freeOverflowChain(p *pager.Pager, firstPage uint32) error {
	page := firstPage
	for page != 0 {
		pg, err := p.GetPage(page)
		if err != nil {
			return err
		}
		next := binary.BigEndian.Uint32(pg.Data())
		if err := p.FreePage(page); err != nil {
			return err
		}
		page = next
	}
	return nil
}

// fullPayload returns the complete (inline + spilled) payload/key bytes
// for a decoded cell, reading the overflow chain if necessary.
func fullPayload(p *pager.Pager, c cell) ([]byte, error) {
	local := c.payload
	if local == nil {
		local = c.key
	}
	if c.overflow == 0 {
		out := make([]byte, len(local))
		copy(out, local)
		return out, nil
	}
	tail, err := readOverflowChain(p, c.overflow, c.fullSize-len(local))
	if err != nil {
		return nil, err
	}
	out := make([]byte, 0, c.fullSize)
	out = append(out, local...)
	out = append(out, tail...)
	return out, nil
}
