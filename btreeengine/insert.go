package btreeengine

import (
	"github.com/eplite/eplite/common"
)

// InsertTable inserts a new row or overwrites the payload of an existing
// one with the same rowid (§4.6 "Insert-with-existing-key ... overwrite
// payload").
func (t *Tree) InsertTable(rowID int64, payload []byte) error {
	return t.insert(rowID, nil, payload)
}

// InsertIndexKey inserts a new key into an index b-tree. A duplicate key
// is rejected with a Constraint error (§4.6); callers needing non-unique
// index semantics append a uniquifier (e.g. the rowid) before calling.
func (t *Tree) InsertIndexKey(key []byte) error {
	return t.insert(0, key, nil)
}

func (t *Tree) insert(rowID int64, key []byte, payload []byte) error {
	cur, res, err := t.descend(rowID, key, latchWrite)
	if err != nil {
		return err
	}
	leafFrame := cur.stack[len(cur.stack)-1]
	leafPage := leafFrame.page
	idx := leafFrame.index

	if res == Found {
		if t.kind == Index {
			return common.ErrConstraintUnique
		}
		_, n, err := t.loadNodeForWrite(leafPage)
		if err != nil {
			return err
		}
		old, err := n.cellAt(idx)
		if err != nil {
			return err
		}
		if old.overflow != 0 {
			if err := freeOverflowChain(t.p, old.overflow); err != nil {
				return err
			}
		}
		n.removeCellAt(idx)
	}

	usable := t.p.Header().UsableSize()
	cellBytes, spill := buildLeafCellBytes(t.kind, usable, rowID, key, payload)
	if len(spill) > 0 {
		first, err := writeOverflowChain(t.p, spill)
		if err != nil {
			return err
		}
		putOverflowPtr(cellBytes, first)
	}

	_, n, err := t.loadNodeForWrite(leafPage)
	if err != nil {
		return err
	}
	required := len(cellBytes) + 2
	if n.freeSpace() >= required {
		n.insertCellBytes(idx, cellBytes)
		return nil
	}
	return t.splitAndPropagate(cur.stack, len(cur.stack)-1, idx, cellBytes)
}

func buildLeafCellBytes(kind Kind, usable int, rowID int64, key, payload []byte) (cellBytes, spill []byte) {
	if kind == Table {
		local, _ := localPayloadSize(PageTypeTableLeaf, usable, len(payload))
		cellBytes = encodeTableLeafCell(usable, rowID, payload)
		spill = payload[local:]
		return
	}
	local, _ := localPayloadSize(PageTypeIndexLeaf, usable, len(key))
	cellBytes = encodeIndexLeafCell(usable, key)
	spill = key[local:]
	return
}

// splitAndPropagate splits the node at stack[level] to make room for
// newCell at position idx, then recurses up stack[0:level] to absorb the
// resulting divider into the parent — splitting further levels as needed,
// and finally the root, per §4.6's "If the root splits, allocate a new
// root above; root page number MUST NOT change for tables cataloged in
// page 1" (generalized here to every tree's root, not only page 1's).
func (t *Tree) splitAndPropagate(stack []frame, level, idx int, newCell []byte) error {
	f := stack[level]
	pg, n, err := t.loadNodeForWrite(f.page)
	if err != nil {
		return err
	}
	isRoot := level == 0

	var leftPage, rightPage uint32
	var dividerRowID int64
	var dividerKey []byte

	if isInterior(n.pageType()) {
		leftPage, rightPage, dividerRowID, dividerKey, err = t.splitInterior(pg, n, idx, newCell, isRoot)
	} else {
		leftPage, rightPage, dividerRowID, dividerKey, err = t.splitLeaf(pg, n, idx, newCell, isRoot)
	}
	if err != nil {
		return err
	}

	if isRoot {
		return t.installNewRoot(f.page, leftPage, rightPage, dividerRowID, dividerKey)
	}

	parent := stack[level-1]
	parentCell := encodeInteriorDivider(t.kind, t.p.Header().UsableSize(), leftPage, dividerRowID, dividerKey)

	_, pn, err := t.loadNodeForWrite(parent.page)
	if err != nil {
		return err
	}
	childIdx := parent.index

	// Patch the existing cell/rightChild that pointed at the page that
	// just split so it now points at rightPage; the promoted
	// divider+leftPage is inserted just before it.
	if childIdx < pn.numCells() {
		off := pn.cellOffset(childIdx)
		patchChildPointer(pn.raw, off, rightPage)
	} else {
		pn.setRightChild(rightPage)
	}

	required := len(parentCell) + 2
	if pn.freeSpace() >= required {
		pn.insertCellBytes(childIdx, parentCell)
		return nil
	}
	return t.splitAndPropagate(stack, level-1, childIdx, parentCell)
}

// patchChildPointer overwrites the 4-byte child pointer at the front of an
// interior cell in place — both table- and index-interior cells begin
// with it (§3.4), so no decode is needed.
func patchChildPointer(raw []byte, off int, child uint32) {
	raw[off] = byte(child >> 24)
	raw[off+1] = byte(child >> 16)
	raw[off+2] = byte(child >> 8)
	raw[off+3] = byte(child)
}

// encodeInteriorDivider builds the interior cell that routes to leftPage
// for keys at or below the divider.
func encodeInteriorDivider(kind Kind, usable int, leftPage uint32, rowID int64, key []byte) []byte {
	if kind == Table {
		return encodeTableInteriorCell(leftPage, rowID)
	}
	return encodeIndexInteriorCell(usable, leftPage, key)
}

// installNewRoot rewrites rootPage (whose page number must never change)
// as a fresh interior page with exactly one cell, routing to the two
// pages the old root's content was split into.
func (t *Tree) installNewRoot(rootPage, leftPage, rightPage uint32, dividerRowID int64, dividerKey []byte) error {
	pg, err := t.p.GetPageForWrite(rootPage)
	if err != nil {
		return err
	}
	interiorType := byte(PageTypeTableInterior)
	if t.kind == Index {
		interiorType = PageTypeIndexInterior
	}
	n := t0node(t.p, pg)
	n.initEmpty(interiorType)
	cellBytes := encodeInteriorDivider(t.kind, t.p.Header().UsableSize(), leftPage, dividerRowID, dividerKey)
	n.insertCellBytes(0, cellBytes)
	n.setRightChild(rightPage)
	return nil
}
