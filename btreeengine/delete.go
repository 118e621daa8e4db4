package btreeengine

import (
	"github.com/eplite/eplite/common"
)

// Delete removes the cell the cursor is positioned on (§4.6 "Deletes").
// The cursor is left invalid afterward; callers needing to continue
// scanning should re-seek.
func (t *Tree) Delete(c *Cursor) error {
	if !c.valid {
		return common.ErrNotFound
	}
	stack := append([]frame(nil), c.stack...)
	leaf := stack[len(stack)-1]

	_, n, err := t.loadNodeForWrite(leaf.page)
	if err != nil {
		return err
	}
	old, err := n.cellAt(leaf.index)
	if err != nil {
		return err
	}
	if old.overflow != 0 {
		if err := freeOverflowChain(t.p, old.overflow); err != nil {
			return err
		}
	}
	n.removeCellAt(leaf.index)
	c.valid = false

	return t.rebalance(stack, len(stack)-1)
}

// rebalance restores the minimum-occupancy invariant (§3.9) at stack[level]
// after a deletion shrank it, merging with a sibling when the page falls
// below the minimum, and recursing toward the root. At the root it
// collapses an emptied interior root into its sole child (§4.6), without
// changing the root's own page number.
func (t *Tree) rebalance(stack []frame, level int) error {
	f := stack[level]
	_, n, err := t.loadNodeForWrite(f.page)
	if err != nil {
		return err
	}

	if level == 0 {
		if isInterior(n.pageType()) && n.numCells() == 0 {
			return t.collapseRoot(f.page, n)
		}
		return nil
	}

	min := minCellsAllowed(f.page, n.pageType())
	if n.numCells() >= min {
		return nil
	}

	parent := stack[level-1]
	_, pn, err := t.loadNodeForWrite(parent.page)
	if err != nil {
		return err
	}
	childIdx := parent.index
	pk := pn.numCells()

	var dividerIdx int // parent cell index holding the divider to remove
	var siblingPage uint32
	var leftPage, rightPage uint32 // leftPage always the lower-keyed survivor
	var survivorIsCurrent bool

	if childIdx < pk {
		// Merge with the next-higher sibling (cell childIdx+1, or
		// rightChild if childIdx+1 == pk).
		dividerIdx = childIdx
		if childIdx+1 < pk {
			sib, err := pn.cellAt(childIdx + 1)
			if err != nil {
				return err
			}
			siblingPage = sib.childPage
		} else {
			siblingPage = pn.rightChild()
		}
		leftPage, rightPage = f.page, siblingPage
		survivorIsCurrent = true
	} else {
		// f is the right-most child; merge with its left neighbor.
		dividerIdx = childIdx - 1
		sib, err := pn.cellAt(dividerIdx)
		if err != nil {
			return err
		}
		siblingPage = sib.childPage
		leftPage, rightPage = siblingPage, f.page
		survivorIsCurrent = false
	}

	dividerCell, err := pn.cellAt(dividerIdx)
	if err != nil {
		return err
	}

	leftPg, err := t.p.GetPageForWrite(leftPage)
	if err != nil {
		return err
	}
	rightPg, err := t.p.GetPageForWrite(rightPage)
	if err != nil {
		return err
	}

	if isInterior(n.pageType()) {
		var dividerRowID int64
		var dividerKey []byte
		if n.pageType() == PageTypeTableInterior {
			dividerRowID = dividerCell.rowID
		} else {
			dividerKey, err = fullPayload(t.p, dividerCell)
			if err != nil {
				return err
			}
		}
		if err := mergeInteriorPages(t.p, leftPg, rightPg, n.pageType(), dividerRowID, dividerKey); err != nil {
			return err
		}
	} else {
		if err := mergeLeafPages(t.p, leftPg, rightPg, n.pageType()); err != nil {
			return err
		}
	}

	if err := t.p.FreePage(rightPage); err != nil {
		return err
	}

	pn.removeCellAt(dividerIdx)
	// Repoint whichever pointer used to reference the freed page at the
	// surviving merged page (which kept leftPage's page number).
	if survivorIsCurrent {
		if dividerIdx < pn.numCells() {
			off := pn.cellOffset(dividerIdx)
			patchChildPointer(pn.raw, off, leftPage)
		} else {
			pn.setRightChild(leftPage)
		}
	}
	// When !survivorIsCurrent, leftPage already is the surviving number
	// and nothing referenced rightPage except the removed divider cell
	// and (if f was the right-most child) the parent's rightChild, which
	// must now point at the survivor too.
	if !survivorIsCurrent && dividerIdx == pn.numCells() {
		pn.setRightChild(leftPage)
	}

	return t.rebalance(stack, level-1)
}

// collapseRoot replaces rootPage's content with its sole remaining
// child's content, then frees that child — the root page number itself
// never changes (§4.6, §4.8).
func (t *Tree) collapseRoot(rootPage uint32, rootNode *node) error {
	child := rootNode.rightChild()
	if child == 0 {
		return nil
	}
	childPg, err := t.p.GetPageForWrite(child)
	if err != nil {
		return err
	}
	rootPg, err := t.p.GetPageForWrite(rootPage)
	if err != nil {
		return err
	}
	usable := t.p.Header().UsableSize()
	childNode := newNode(childPg.Data(), hdrOffFor(childPg, t.p), usable)
	pageType := childNode.pageType()

	if isInterior(pageType) {
		entries, err := collectEntries(t.p, childNode, pageType)
		if err != nil {
			return err
		}
		if err := writeInteriorEntries(t.p, rootPg, pageType, entries); err != nil {
			return err
		}
	} else {
		cells, err := collectCellBytes(childNode)
		if err != nil {
			return err
		}
		rootNodeAfter := newNode(rootPg.Data(), hdrOffFor(rootPg, t.p), usable)
		rootNodeAfter.initEmpty(pageType)
		for i, c := range cells {
			rootNodeAfter.insertCellBytes(i, c)
		}
	}
	return t.p.FreePage(child)
}
