package btreeengine

import (
	"github.com/eplite/eplite/pager"
)

// splitLeaf implements the B+tree-style leaf split of §4.6: cells (plus
// the new one) are divided roughly evenly between two leaf pages; the
// divider propagated to the parent is a copy of the greatest key ending up
// in the left half (the classic B+tree rule — the key also stays resident
// in the leaf, unlike an interior split's promote-and-remove).
//
// When isRoot is true, pg is the root page whose page number must not
// become either half (§4.6 "root page number MUST NOT change"); both
// halves are freshly allocated pages instead, and the caller
// (splitAndPropagate/installNewRoot) rewrites pg in place as the new
// interior parent.
func (t *Tree) splitLeaf(pg *pager.Page, n *node, insertIdx int, newCell []byte, isRoot bool) (leftPage, rightPage uint32, dividerRowID int64, dividerKey []byte, err error) {
	usable := t.p.Header().UsableSize()
	pageType := n.pageType()
	k := n.numCells()

	cells := make([][]byte, 0, k+1)
	for i := 0; i < k; i++ {
		if i == insertIdx {
			cells = append(cells, newCell)
		}
		off := n.cellOffset(i)
		size, serr := decodeCellSize(n, off)
		if serr != nil {
			err = serr
			return
		}
		buf := make([]byte, size)
		copy(buf, n.raw[off:off+size])
		cells = append(cells, buf)
	}
	if insertIdx >= k {
		cells = append(cells, newCell)
	}

	mid := len(cells) / 2
	leftCells, rightCells := cells[:mid], cells[mid:]

	var leftPg, rightPg *pager.Page
	if isRoot {
		if leftPg, err = t.p.AllocatePage(); err != nil {
			return
		}
	} else {
		leftPg = pg
	}
	if rightPg, err = t.p.AllocatePage(); err != nil {
		return
	}
	leftPage, rightPage = leftPg.ID(), rightPg.ID()

	leftNode := t0node(t.p, leftPg)
	leftNode.initEmpty(pageType)
	for i, c := range leftCells {
		leftNode.insertCellBytes(i, c)
	}
	rightNode := t0node(t.p, rightPg)
	rightNode.initEmpty(pageType)
	for i, c := range rightCells {
		rightNode.insertCellBytes(i, c)
	}

	dividerBuf := leftCells[len(leftCells)-1]
	dc, _, derr := decodeCellBytes(pageType, usable, dividerBuf)
	if derr != nil {
		err = derr
		return
	}
	if pageType == PageTypeTableLeaf {
		dividerRowID = dc.rowID
	} else {
		dividerKey, err = fullPayload(t.p, dc)
	}
	return
}

// ientry is one (child, boundary-key) slot of an interior node's implicit
// representation: K+1 children with K dividers between them (the last
// entry carries no key — its child is the node's right-most pointer).
type ientry struct {
	child  uint32
	hasKey bool
	rowID  int64
	key    []byte
}

// splitInterior implements the classic B-tree interior split: the new
// child produced by a lower-level split replaces one entry with two, then
// the middle divider of the resulting K+1 entries is promoted to the
// parent (removed from both children, per §4.6), the rest distributed
// evenly. isRoot behaves as in splitLeaf.
func (t *Tree) splitInterior(pg *pager.Page, n *node, insertIdx int, newCell []byte, isRoot bool) (leftPage, rightPage uint32, dividerRowID int64, dividerKey []byte, err error) {
	usable := t.p.Header().UsableSize()
	pageType := n.pageType()
	k := n.numCells()

	entries := make([]ientry, 0, k+1)
	for i := 0; i < k; i++ {
		c, cerr := n.cellAt(i)
		if cerr != nil {
			err = cerr
			return
		}
		if pageType == PageTypeTableInterior {
			entries = append(entries, ientry{child: c.childPage, hasKey: true, rowID: c.rowID})
		} else {
			key, ferr := fullPayload(t.p, c)
			if ferr != nil {
				err = ferr
				return
			}
			entries = append(entries, ientry{child: c.childPage, hasKey: true, key: key})
		}
	}
	entries = append(entries, ientry{child: n.rightChild()})

	newChildCell, _, nerr := decodeCellBytes(pageType, usable, newCell)
	if nerr != nil {
		err = nerr
		return
	}
	var newChildKey []byte
	if pageType == PageTypeIndexInterior {
		newChildKey, err = fullPayload(t.p, newChildCell)
		if err != nil {
			return
		}
	}

	// Replace entries[insertIdx] (the child that split) with two entries:
	// (leftSub, dividerFromSplit) then (rightSub, old boundary).
	old := entries[insertIdx]
	a := ientry{child: newChildCell.childPage, hasKey: true, rowID: newChildCell.rowID, key: newChildKey}
	b := ientry{child: old.child, hasKey: old.hasKey, rowID: old.rowID, key: old.key}
	updated := make([]ientry, 0, len(entries)+1)
	updated = append(updated, entries[:insertIdx]...)
	updated = append(updated, a, b)
	updated = append(updated, entries[insertIdx+1:]...)

	numKeys := len(updated) - 1
	mid := numKeys / 2 // index of the entry whose key gets promoted

	leftEntries := updated[:mid+1]
	promoted := updated[mid]
	rightEntries := updated[mid+1:]

	var leftPg, rightPg *pager.Page
	if isRoot {
		if leftPg, err = t.p.AllocatePage(); err != nil {
			return
		}
	} else {
		leftPg = pg
	}
	if rightPg, err = t.p.AllocatePage(); err != nil {
		return
	}
	leftPage, rightPage = leftPg.ID(), rightPg.ID()

	if err = writeInteriorEntries(t.p, leftPg, pageType, leftEntries); err != nil {
		return
	}
	if err = writeInteriorEntries(t.p, rightPg, pageType, rightEntries); err != nil {
		return
	}

	if pageType == PageTypeTableInterior {
		dividerRowID = promoted.rowID
	} else {
		dividerKey = promoted.key
	}
	return
}

// writeInteriorEntries rebuilds an interior page from scratch given its
// resolved (child, boundary-key) entries: len(entries)-1 cells plus a
// trailing right-most child pointer.
func writeInteriorEntries(p *pager.Pager, pg *pager.Page, pageType byte, entries []ientry) error {
	usable := p.Header().UsableSize()
	n := t0node(p, pg)
	n.initEmpty(pageType)
	for i := 0; i < len(entries)-1; i++ {
		e := entries[i]
		var cellBytes []byte
		if pageType == PageTypeTableInterior {
			cellBytes = encodeTableInteriorCell(e.child, e.rowID)
		} else {
			cellBytes = encodeIndexInteriorCell(usable, e.child, e.key)
			if local, spill := localPayloadSize(PageTypeIndexInterior, usable, len(e.key)); spill > 0 {
				first, err := writeOverflowChain(p, e.key[local:])
				if err != nil {
					return err
				}
				putOverflowPtr(cellBytes, first)
			}
		}
		n.insertCellBytes(i, cellBytes)
	}
	n.setRightChild(entries[len(entries)-1].child)
	return nil
}

func putOverflowPtr(cellBytes []byte, page uint32) {
	off := len(cellBytes) - 4
	cellBytes[off] = byte(page >> 24)
	cellBytes[off+1] = byte(page >> 16)
	cellBytes[off+2] = byte(page >> 8)
	cellBytes[off+3] = byte(page)
}
