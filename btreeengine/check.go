package btreeengine

import (
	"encoding/binary"
	"fmt"
)

// Walk visits every page reachable from the tree's root, interior, leaf and
// overflow alike, depth-first, calling visit once per page. Used by
// IntegrityCheck to build the reachable-page set the way bbolt's Tx.Check
// walks buckets before cross-checking the freelist.
func (t *Tree) Walk(visit func(pageNo uint32)) error {
	return t.walk(t.root, visit)
}

func (t *Tree) walk(pageNo uint32, visit func(pageNo uint32)) error {
	visit(pageNo)
	_, n, err := t.loadNode(pageNo)
	if err != nil {
		return err
	}
	if !isInterior(n.pageType()) {
		for i := 0; i < n.numCells(); i++ {
			c, err := n.cellAt(i)
			if err != nil {
				return err
			}
			if c.overflow != 0 {
				if err := t.walkOverflow(c.overflow, visit); err != nil {
					return err
				}
			}
		}
		return nil
	}
	for i := 0; i < n.numCells(); i++ {
		c, err := n.cellAt(i)
		if err != nil {
			return err
		}
		if err := t.walk(c.childPage, visit); err != nil {
			return err
		}
	}
	return t.walk(n.rightChild(), visit)
}

func (t *Tree) walkOverflow(first uint32, visit func(pageNo uint32)) error {
	page := first
	for page != 0 {
		visit(page)
		pg, err := t.p.GetPage(page)
		if err != nil {
			return err
		}
		page = binary.BigEndian.Uint32(pg.Data())
	}
	return nil
}

// Check verifies key ordering across every page the tree owns (§4.6:
// B+tree leaves, classic-B-tree interior splits), returning one message
// per violation found rather than stopping at the first.
func (t *Tree) Check() ([]string, error) {
	var problems []string
	_, err := t.checkSubtree(t.root, nil, &problems)
	return problems, err
}

// checkSubtree recurses into pageNo, requiring every key it finds to be
// at most maxKey (nil means unbounded — the tree's right spine), and
// returns the largest key seen so the caller can verify it against the
// divider that pointed here.
func (t *Tree) checkSubtree(pageNo uint32, maxKey []byte, problems *[]string) ([]byte, error) {
	_, n, err := t.loadNode(pageNo)
	if err != nil {
		return nil, err
	}

	keyOf := func(c cell) []byte {
		if t.kind == Table {
			b := make([]byte, 8)
			binary.BigEndian.PutUint64(b, uint64(c.rowID)^(1<<63))
			return b
		}
		return c.key
	}
	less := func(a, b []byte) int {
		if t.kind == Table {
			return bytesCompare(a, b)
		}
		return t.collate(a, b)
	}

	var lastKey []byte
	for i := 0; i < n.numCells(); i++ {
		c, err := n.cellAt(i)
		if err != nil {
			return nil, err
		}
		k := keyOf(c)
		if lastKey != nil && less(lastKey, k) >= 0 {
			*problems = append(*problems, fmt.Sprintf("page %d: cell %d out of order", pageNo, i))
		}
		lastKey = k

		if isInterior(n.pageType()) {
			sub, err := t.checkSubtree(c.childPage, k, problems)
			if err != nil {
				return nil, err
			}
			if sub != nil && less(sub, k) > 0 {
				*problems = append(*problems, fmt.Sprintf("page %d: child %d key exceeds divider", pageNo, c.childPage))
			}
		}
	}

	if isInterior(n.pageType()) {
		sub, err := t.checkSubtree(n.rightChild(), maxKey, problems)
		if err != nil {
			return nil, err
		}
		if sub != nil {
			lastKey = sub
		}
	}

	if maxKey != nil && lastKey != nil && less(lastKey, maxKey) > 0 {
		*problems = append(*problems, fmt.Sprintf("page %d: key exceeds parent bound", pageNo))
	}
	return lastKey, nil
}

func bytesCompare(a, b []byte) int {
	for i := 0; i < len(a) && i < len(b); i++ {
		if a[i] != b[i] {
			if a[i] < b[i] {
				return -1
			}
			return 1
		}
	}
	switch {
	case len(a) < len(b):
		return -1
	case len(a) > len(b):
		return 1
	}
	return 0
}
