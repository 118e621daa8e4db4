package btreeengine

import (
	"bytes"
	"encoding/binary"

	"github.com/eplite/eplite/common"
)

// Iterator is a common.Iterator over one Tree's leaves between two bounds,
// built on top of Cursor the way the teacher's btree.Iterator is built
// on top of raw page/cellIndex state — ours is considerably thinner since
// Cursor.Next already crosses leaf-page boundaries on its own.
type Iterator struct {
	cur       *Cursor
	tree      *Tree
	endKey    []byte // index scans: exclusive upper bound, nil = unbounded
	hasEndRow bool
	endRow    int64 // table scans: exclusive upper bound
	err       error
	firstCall bool
}

// ScanTable returns an iterator over a table b-tree's rows with
// startRowID <= rowid, stopping before endRowID (any endRowID if hasEnd
// is false). Key() returns the rowid as an 8-byte big-endian integer;
// Value() returns the row's full payload.
func (t *Tree) ScanTable(startRowID int64, endRowID int64, hasEnd bool) (*Iterator, error) {
	cur, _, err := t.SeekTable(startRowID)
	if err != nil {
		return nil, err
	}
	return &Iterator{cur: cur, tree: t, hasEndRow: hasEnd, endRow: endRowID, firstCall: true}, nil
}

// ScanIndex returns an iterator over an index b-tree's keys with
// startKey <= key, stopping before endKey (any key if endKey is nil).
// Key() returns the full key; Value() always returns nil.
func (t *Tree) ScanIndex(startKey, endKey []byte) (*Iterator, error) {
	cur, _, err := t.SeekIndex(startKey)
	if err != nil {
		return nil, err
	}
	return &Iterator{cur: cur, tree: t, endKey: endKey, firstCall: true}, nil
}

// Next advances the iterator and reports whether a valid key/value pair
// is now positioned, matching common.Iterator's contract: the first call
// exposes whatever Seek already landed on, subsequent calls step forward.
func (it *Iterator) Next() bool {
	if it.err != nil || it.cur == nil {
		return false
	}
	if !it.firstCall {
		ok, err := it.cur.Next()
		if err != nil {
			it.err = err
			return false
		}
		if !ok {
			it.cur = nil
			return false
		}
	}
	it.firstCall = false
	if !it.cur.Valid() {
		it.cur = nil
		return false
	}
	if it.tree.kind == Table && it.hasEndRow {
		rowID, err := it.cur.RowID()
		if err != nil {
			it.err = err
			return false
		}
		if rowID >= it.endRow {
			it.cur = nil
			return false
		}
	}
	if it.tree.kind == Index && it.endKey != nil {
		key, err := it.cur.Key()
		if err != nil {
			it.err = err
			return false
		}
		if bytes.Compare(key, it.endKey) >= 0 {
			it.cur = nil
			return false
		}
	}
	return true
}

// Key returns the current position's key: an 8-byte big-endian rowid for
// table scans, the raw index key for index scans.
func (it *Iterator) Key() []byte {
	if it.cur == nil {
		return nil
	}
	if it.tree.kind == Table {
		rowID, err := it.cur.RowID()
		if err != nil {
			it.err = err
			return nil
		}
		buf := make([]byte, 8)
		binary.BigEndian.PutUint64(buf, uint64(rowID))
		return buf
	}
	key, err := it.cur.Key()
	if err != nil {
		it.err = err
		return nil
	}
	return key
}

// Value returns the current table row's payload; always nil for index
// scans, since an index key carries no separate value (§4.6).
func (it *Iterator) Value() []byte {
	if it.cur == nil || it.tree.kind != Table {
		return nil
	}
	payload, err := it.cur.Payload()
	if err != nil {
		it.err = err
		return nil
	}
	return payload
}

func (it *Iterator) Error() error { return it.err }

// Close releases the iterator's cursor. Cursors hold no resources beyond
// their in-memory path, so this only guards against further use.
func (it *Iterator) Close() error {
	it.cur = nil
	return nil
}

var _ common.Iterator = (*Iterator)(nil)
