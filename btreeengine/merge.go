package btreeengine

import (
	"github.com/eplite/eplite/pager"
)

// mergeLeafPages rewrites leftPg to hold every cell of both leftPg and
// rightPg, in key order (leftPg already holds the lower-keyed half). The
// caller frees rightPg once this returns.
func mergeLeafPages(p *pager.Pager, leftPg, rightPg *pager.Page, pageType byte) error {
	usable := p.Header().UsableSize()
	left := newNode(leftPg.Data(), hdrOffFor(leftPg, p), usable)
	right := newNode(rightPg.Data(), hdrOffFor(rightPg, p), usable)

	cells, err := collectCellBytes(left)
	if err != nil {
		return err
	}
	rightCells, err := collectCellBytes(right)
	if err != nil {
		return err
	}
	cells = append(cells, rightCells...)

	left.initEmpty(pageType)
	for i, c := range cells {
		left.insertCellBytes(i, c)
	}
	return nil
}

// mergeInteriorPages rewrites leftPg to hold every entry of both leftPg
// and rightPg, reinstating the parent's divider between them as a real
// cell — the inverse of splitInterior's promote-and-remove.
func mergeInteriorPages(p *pager.Pager, leftPg, rightPg *pager.Page, pageType byte, dividerRowID int64, dividerKey []byte) error {
	usable := p.Header().UsableSize()
	left := newNode(leftPg.Data(), hdrOffFor(leftPg, p), usable)
	right := newNode(rightPg.Data(), hdrOffFor(rightPg, p), usable)

	leftEntries, err := collectEntries(p, left, pageType)
	if err != nil {
		return err
	}
	rightEntries, err := collectEntries(p, right, pageType)
	if err != nil {
		return err
	}

	// The last left entry currently carries no key (it was the right-most
	// pointer); the divider promoted at the original split becomes its
	// key now that both halves are reunited.
	leftEntries[len(leftEntries)-1].hasKey = true
	leftEntries[len(leftEntries)-1].rowID = dividerRowID
	leftEntries[len(leftEntries)-1].key = dividerKey

	combined := append(leftEntries, rightEntries...)
	return writeInteriorEntries(p, leftPg, pageType, combined)
}

func collectCellBytes(n *node) ([][]byte, error) {
	k := n.numCells()
	out := make([][]byte, 0, k)
	for i := 0; i < k; i++ {
		off := n.cellOffset(i)
		size, err := decodeCellSize(n, off)
		if err != nil {
			return nil, err
		}
		buf := make([]byte, size)
		copy(buf, n.raw[off:off+size])
		out = append(out, buf)
	}
	return out, nil
}

func collectEntries(p *pager.Pager, n *node, pageType byte) ([]ientry, error) {
	k := n.numCells()
	entries := make([]ientry, 0, k+1)
	for i := 0; i < k; i++ {
		c, err := n.cellAt(i)
		if err != nil {
			return nil, err
		}
		if pageType == PageTypeTableInterior {
			entries = append(entries, ientry{child: c.childPage, hasKey: true, rowID: c.rowID})
			continue
		}
		key, err := fullPayload(p, c)
		if err != nil {
			return nil, err
		}
		entries = append(entries, ientry{child: c.childPage, hasKey: true, key: key})
	}
	entries = append(entries, ientry{child: n.rightChild()})
	return entries, nil
}

// hdrOffFor returns the b-tree header offset for pg within the database
// (100 for page 1, 0 otherwise) — duplicated from tree.go's t0node logic
// since merge helpers operate without a *Tree receiver.
func hdrOffFor(pg *pager.Page, p *pager.Pager) int {
	if pg.ID() == 1 {
		return pager.HeaderSize
	}
	return 0
}
