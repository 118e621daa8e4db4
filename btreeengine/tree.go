package btreeengine

import (
	"bytes"

	"github.com/eplite/eplite/common"
	"github.com/eplite/eplite/pager"
	"github.com/eplite/eplite/record"
)

// Kind distinguishes the two b-tree shapes spec §4.6 defines: table
// b-trees keyed by signed 64-bit rowid, index b-trees keyed by an
// arbitrary byte string with no associated payload of their own.
type Kind int

const (
	Table Kind = iota
	Index
)

// SeekResult reports whether Tree.SeekTable/SeekIndex landed exactly on the
// requested key or at the next key in order.
type SeekResult int

const (
	Found SeekResult = iota
	NotFound
)

// Tree is a single b-tree identified by its root page number (§4.6
// "Identity"). Root page numbers never change once assigned to a
// cataloged table — see insert.go's installNewRoot and delete.go's
// collapseRoot, both of which rewrite page 1 (or whichever root page)
// in place rather than relocating it.
type Tree struct {
	p       *pager.Pager
	root    uint32
	kind    Kind
	collate common.CollationFunc
	latches *latchManager
}

// Open binds a Tree to an existing root page. collate is used for Index
// trees only; pass nil to default to BINARY (memcmp).
func Open(p *pager.Pager, root uint32, kind Kind, collate common.CollationFunc) *Tree {
	if collate == nil {
		collate = record.BinaryCollation
	}
	return &Tree{p: p, root: root, kind: kind, collate: collate, latches: newLatchManager()}
}

// Root returns the tree's (immutable) root page number.
func (t *Tree) Root() uint32 { return t.root }

// Create allocates a fresh, empty root page of the given kind and returns
// a Tree bound to it — used by callers other than the page-1 catalog
// (catalog.go bootstraps page 1 directly since it always exists).
func Create(p *pager.Pager, kind Kind, collate common.CollationFunc) (*Tree, error) {
	pg, err := p.AllocatePage()
	if err != nil {
		return nil, err
	}
	n := t0node(p, pg)
	leafType := byte(PageTypeTableLeaf)
	if kind == Index {
		leafType = PageTypeIndexLeaf
	}
	n.initEmpty(leafType)
	return Open(p, pg.ID(), kind, collate), nil
}

func t0node(p *pager.Pager, pg *pager.Page) *node {
	hdrOff := 0
	if pg.ID() == 1 {
		hdrOff = pager.HeaderSize
	}
	return newNode(pg.Data(), hdrOff, p.Header().UsableSize())
}

// loadNode fetches pageNum for reading and wraps it as a b-tree node.
func (t *Tree) loadNode(pageNum uint32) (*pager.Page, *node, error) {
	pg, err := t.p.GetPage(pageNum)
	if err != nil {
		return nil, nil, err
	}
	return pg, t0node(t.p, pg), nil
}

// loadNodeForWrite fetches pageNum with its pre-image journaled.
func (t *Tree) loadNodeForWrite(pageNum uint32) (*pager.Page, *node, error) {
	pg, err := t.p.GetPageForWrite(pageNum)
	if err != nil {
		return nil, nil, err
	}
	return pg, t0node(t.p, pg), nil
}

// frame is one level of a cursor's descent path.
type frame struct {
	page  uint32
	index int
}

// Cursor walks a Tree's leaves in key order, per §4.6's
// seek/next/prev/first/last/insert/delete operations.
type Cursor struct {
	tree  *Tree
	stack []frame
	valid bool
}

func (t *Tree) NewCursor() *Cursor {
	return &Cursor{tree: t}
}

// compareCellKey compares the cursor's search key against cell c
// according to the tree's kind (int64 rowid or collated byte string).
func (t *Tree) compareCellKey(c cell, rowID int64, key []byte) int {
	if t.kind == Table {
		switch {
		case c.rowID < rowID:
			return -1
		case c.rowID > rowID:
			return 1
		default:
			return 0
		}
	}
	// Index comparison needs the full (possibly spilled) key.
	full, err := fullPayload(t.p, c)
	if err != nil {
		return bytes.Compare(c.key, key) // best-effort on read failure
	}
	return t.collate(full, key)
}

// descend walks from the root to the leaf that would contain (rowID, key),
// recording the path taken. The final frame's index is the position within
// the leaf: exact match index if found, else the insertion point. mode
// selects the latch coupling used along the way: latchRead for a plain
// seek, latchWrite when the caller intends to mutate the leaf (insert.go).
// Every latch, the leaf's included, is released before descend returns.
func (t *Tree) descend(rowID int64, key []byte, mode latchMode) (*Cursor, SeekResult, error) {
	cur := &Cursor{tree: t}
	lc := newLatchCoupling(t.latches)
	page := t.root
	for {
		lc.acquire(page, mode)
		_, n, err := t.loadNode(page)
		if err != nil {
			lc.releaseAll()
			return nil, NotFound, err
		}
		k := n.numCells()
		// Binary search for the first cell with compareCellKey >= 0, i.e.
		// the first divider/key not less than the target. Interior nodes
		// here act as B+tree dividers even for index trees (a simplified
		// variant of the classic SQLite index b-tree, which allows an
		// exact match to terminate at an interior page — see DESIGN.md):
		// a divider equal to the target always means "descend into this
		// child", never "found here". Exact matches are resolved only at
		// the leaf, keeping payload storage confined to leaves for both
		// tree kinds and the split/merge logic uniform.
		lo, hi := 0, k
		exact := false
		for lo < hi {
			mid := (lo + hi) / 2
			c, err := n.cellAt(mid)
			if err != nil {
				lc.releaseAll()
				return nil, NotFound, err
			}
			cmp := t.compareCellKey(c, rowID, key)
			if cmp == 0 {
				lo = mid
				hi = mid
				exact = true
			} else if cmp < 0 {
				lo = mid + 1
			} else {
				hi = mid
			}
		}
		if !isInterior(n.pageType()) {
			cur.stack = append(cur.stack, frame{page, lo})
			lc.releaseAll()
			if !exact && lo < k {
				c, err := n.cellAt(lo)
				if err != nil {
					return nil, NotFound, err
				}
				exact = t.compareCellKey(c, rowID, key) == 0
			}
			if exact {
				cur.valid = true
				return cur, Found, nil
			}
			cur.valid = lo < k
			return cur, NotFound, nil
		}
		cur.stack = append(cur.stack, frame{page, lo})
		if lo == k {
			page = n.rightChild()
		} else {
			c, err := n.cellAt(lo)
			if err != nil {
				lc.releaseAll()
				return nil, NotFound, err
			}
			page = c.childPage
		}
		lc.releaseParent()
	}
}

// SeekTable positions the cursor for a table b-tree lookup by rowid.
func (t *Tree) SeekTable(rowID int64) (*Cursor, SeekResult, error) {
	return t.descend(rowID, nil, latchRead)
}

// SeekIndex positions the cursor for an index b-tree lookup by key.
func (t *Tree) SeekIndex(key []byte) (*Cursor, SeekResult, error) {
	return t.descend(0, key, latchRead)
}

// First positions at the leftmost key in the tree.
func (t *Tree) First() (*Cursor, error) {
	cur := &Cursor{tree: t}
	page := t.root
	for {
		_, n, err := t.loadNode(page)
		if err != nil {
			return nil, err
		}
		cur.stack = append(cur.stack, frame{page, 0})
		if !isInterior(n.pageType()) {
			cur.valid = n.numCells() > 0
			return cur, nil
		}
		if n.numCells() == 0 {
			page = n.rightChild()
			continue
		}
		c, err := n.cellAt(0)
		if err != nil {
			return nil, err
		}
		page = c.childPage
	}
}

// Last positions at the rightmost key in the tree.
func (t *Tree) Last() (*Cursor, error) {
	cur := &Cursor{tree: t}
	page := t.root
	for {
		_, n, err := t.loadNode(page)
		if err != nil {
			return nil, err
		}
		k := n.numCells()
		if !isInterior(n.pageType()) {
			idx := k - 1
			if idx < 0 {
				idx = 0
			}
			cur.stack = append(cur.stack, frame{page, idx})
			cur.valid = k > 0
			return cur, nil
		}
		cur.stack = append(cur.stack, frame{page, k})
		page = n.rightChild()
	}
}

// leaf returns the cursor's current leaf page/node and in-leaf index.
func (c *Cursor) leaf() (uint32, int) {
	f := c.stack[len(c.stack)-1]
	return f.page, f.index
}

// Valid reports whether the cursor is positioned on a real cell.
func (c *Cursor) Valid() bool { return c.valid }

// Next advances to the following key in order.
func (c *Cursor) Next() (bool, error) {
	if !c.valid {
		return false, nil
	}
	page, idx := c.leaf()
	_, n, err := c.tree.loadNode(page)
	if err != nil {
		return false, err
	}
	idx++
	if idx < n.numCells() {
		c.stack[len(c.stack)-1].index = idx
		return true, nil
	}
	return c.ascendRight()
}

// ascendRight pops frames until it finds one with an unexplored right
// sibling subtree (interior traversal), re-descending leftmost from there.
func (c *Cursor) ascendRight() (bool, error) {
	for len(c.stack) > 1 {
		c.stack = c.stack[:len(c.stack)-1]
		f := &c.stack[len(c.stack)-1]
		_, n, err := c.tree.loadNode(f.page)
		if err != nil {
			return false, err
		}
		f.index++
		if f.index > n.numCells() {
			continue
		}
		var child uint32
		if f.index == n.numCells() {
			child = n.rightChild()
		} else {
			cl, err := n.cellAt(f.index)
			if err != nil {
				return false, err
			}
			child = cl.childPage
		}
		if child == 0 {
			continue
		}
		return c.descendLeftmostFrom(child)
	}
	c.valid = false
	return false, nil
}

func (c *Cursor) descendLeftmostFrom(page uint32) (bool, error) {
	for {
		_, n, err := c.tree.loadNode(page)
		if err != nil {
			return false, err
		}
		c.stack = append(c.stack, frame{page, 0})
		if !isInterior(n.pageType()) {
			c.valid = n.numCells() > 0
			return c.valid, nil
		}
		if n.numCells() == 0 {
			page = n.rightChild()
			continue
		}
		cl, err := n.cellAt(0)
		if err != nil {
			return false, err
		}
		page = cl.childPage
	}
}

// Prev moves to the preceding key in order.
func (c *Cursor) Prev() (bool, error) {
	if !c.valid {
		return false, nil
	}
	page, idx := c.leaf()
	if idx > 0 {
		c.stack[len(c.stack)-1].index = idx - 1
		return true, nil
	}
	_ = page
	for len(c.stack) > 1 {
		c.stack = c.stack[:len(c.stack)-1]
		f := &c.stack[len(c.stack)-1]
		if f.index == 0 {
			continue
		}
		f.index--
		_, n, err := c.tree.loadNode(f.page)
		if err != nil {
			return false, err
		}
		var child uint32
		if f.index == n.numCells() {
			child = n.rightChild()
		} else {
			cl, err := n.cellAt(f.index)
			if err != nil {
				return false, err
			}
			child = cl.childPage
		}
		return c.descendRightmostFrom(child, f.index)
	}
	c.valid = false
	return false, nil
}

func (c *Cursor) descendRightmostFrom(page uint32, parentIdx int) (bool, error) {
	for {
		_, n, err := c.tree.loadNode(page)
		if err != nil {
			return false, err
		}
		k := n.numCells()
		if !isInterior(n.pageType()) {
			idx := k - 1
			if idx < 0 {
				idx = 0
			}
			c.stack = append(c.stack, frame{page, idx})
			c.valid = k > 0
			return c.valid, nil
		}
		c.stack = append(c.stack, frame{page, k})
		page = n.rightChild()
	}
}

// RowID returns the current table-cell's rowid. Only valid for Table trees.
func (c *Cursor) RowID() (int64, error) {
	page, idx := c.leaf()
	_, n, err := c.tree.loadNode(page)
	if err != nil {
		return 0, err
	}
	cl, err := n.cellAt(idx)
	if err != nil {
		return 0, err
	}
	return cl.rowID, nil
}

// Payload returns the full (inline + overflow) payload for the current
// table cell.
func (c *Cursor) Payload() ([]byte, error) {
	page, idx := c.leaf()
	_, n, err := c.tree.loadNode(page)
	if err != nil {
		return nil, err
	}
	cl, err := n.cellAt(idx)
	if err != nil {
		return nil, err
	}
	return fullPayload(c.tree.p, cl)
}

// Key returns the full (inline + overflow) key for the current index
// cell.
func (c *Cursor) Key() ([]byte, error) {
	return c.Payload()
}
