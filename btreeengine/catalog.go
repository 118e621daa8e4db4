package btreeengine

import (
	"fmt"

	"github.com/eplite/eplite/pager"
	"github.com/eplite/eplite/record"
)

// EntryType is the first column of a catalog row (§4.8).
type EntryType string

const (
	TypeTable   EntryType = "table"
	TypeIndex   EntryType = "index"
	TypeView    EntryType = "view"
	TypeTrigger EntryType = "trigger"
)

// Entry is one decoded catalog row: `type TEXT, name TEXT, tbl_name TEXT,
// rootpage INTEGER, sql TEXT` (§4.8). RootPage is 0 for views and
// triggers, which own no b-tree of their own.
type Entry struct {
	Type     EntryType
	Name     string
	TblName  string
	RootPage uint32
	SQL      string
}

// Catalog is page 1's table b-tree, read and written through the ordinary
// Tree/Cursor API — the storage core's only obligation toward it is to
// keep its root page number (1) immutable and exclude its rows from
// vacuum relocation (§4.8); interpreting rows as actual schema objects is
// an external collaborator's job.
type Catalog struct {
	tree *Tree
}

// InitRoot stamps page 1's b-tree header (immediately following the
// 100-byte database header, §3.2) as an empty table-leaf page, if it
// isn't a valid b-tree page type already. The pager only writes the
// database header when it creates a file (pager.Open's size==0 branch);
// this call is what turns that bare header into a usable root page 1,
// and is safe to call again on every open since it no-ops once page 1
// already looks like a b-tree page.
func InitRoot(p *pager.Pager) error {
	pg, err := p.GetPage(1)
	if err != nil {
		return err
	}
	existing := pg.Data()[pager.HeaderSize]
	switch existing {
	case PageTypeTableLeaf, PageTypeTableInterior:
		return nil
	}
	pg, err = p.GetPageForWrite(1)
	if err != nil {
		return err
	}
	t0node(p, pg).initEmpty(PageTypeTableLeaf)
	return nil
}

// OpenCatalog binds a Catalog to page 1. Callers creating a fresh
// database must call InitRoot first.
func OpenCatalog(p *pager.Pager) *Catalog {
	return &Catalog{tree: Open(p, 1, Table, nil)}
}

// Tree exposes the underlying b-tree for callers that need raw cursor
// access (e.g. an integrity check walking every row without decoding).
func (c *Catalog) Tree() *Tree { return c.tree }

func encodeEntry(e Entry) []byte {
	return record.Encode([]record.Column{
		record.Text(string(e.Type)),
		record.Text(e.Name),
		record.Text(e.TblName),
		record.Int(int64(e.RootPage)),
		record.Text(e.SQL),
	})
}

func decodeEntry(rowID int64, payload []byte) (Entry, error) {
	cols, err := record.Decode(payload)
	if err != nil {
		return Entry{}, err
	}
	if len(cols) < 5 {
		return Entry{}, fmt.Errorf("btreeengine: catalog row %d has %d columns, want 5", rowID, len(cols))
	}
	return Entry{
		Type:     EntryType(cols[0].Bytes),
		Name:     string(cols[1].Bytes),
		TblName:  string(cols[2].Bytes),
		RootPage: uint32(cols[3].Int),
		SQL:      string(cols[4].Bytes),
	}, nil
}

// Insert adds e as a new catalog row and returns the rowid it was
// assigned (one past the current greatest rowid, matching sqlite_master's
// own allocation — §4.8 leaves rowid assignment to the caller).
func (c *Catalog) Insert(e Entry) (int64, error) {
	rowID, err := c.nextRowID()
	if err != nil {
		return 0, err
	}
	if err := c.tree.InsertTable(rowID, encodeEntry(e)); err != nil {
		return 0, err
	}
	return rowID, nil
}

func (c *Catalog) nextRowID() (int64, error) {
	cur, err := c.tree.Last()
	if err != nil {
		return 0, err
	}
	if !cur.Valid() {
		return 1, nil
	}
	last, err := cur.RowID()
	if err != nil {
		return 0, err
	}
	return last + 1, nil
}

// Lookup fetches the row at rowID, reporting ok=false if no such row
// exists.
func (c *Catalog) Lookup(rowID int64) (e Entry, ok bool, err error) {
	cur, res, err := c.tree.SeekTable(rowID)
	if err != nil {
		return Entry{}, false, err
	}
	if res != Found {
		return Entry{}, false, nil
	}
	payload, err := cur.Payload()
	if err != nil {
		return Entry{}, false, err
	}
	e, err = decodeEntry(rowID, payload)
	return e, err == nil, err
}

// Find returns the first row matching name (and, if entryType is
// non-empty, matching type too) — a linear scan, since the catalog has no
// secondary index of its own (§4.8's "consumers of the catalog live in
// external collaborators" — a real schema layer would maintain one).
func (c *Catalog) Find(name string, entryType EntryType) (e Entry, ok bool, err error) {
	cur, err := c.tree.First()
	if err != nil {
		return Entry{}, false, err
	}
	for cur.Valid() {
		rowID, err := cur.RowID()
		if err != nil {
			return Entry{}, false, err
		}
		payload, err := cur.Payload()
		if err != nil {
			return Entry{}, false, err
		}
		row, err := decodeEntry(rowID, payload)
		if err != nil {
			return Entry{}, false, err
		}
		if row.Name == name && (entryType == "" || row.Type == entryType) {
			return row, true, nil
		}
		if _, err := cur.Next(); err != nil {
			return Entry{}, false, err
		}
	}
	return Entry{}, false, nil
}

// All decodes every row in the catalog in rowid order.
func (c *Catalog) All() ([]Entry, error) {
	cur, err := c.tree.First()
	if err != nil {
		return nil, err
	}
	var out []Entry
	for cur.Valid() {
		rowID, err := cur.RowID()
		if err != nil {
			return nil, err
		}
		payload, err := cur.Payload()
		if err != nil {
			return nil, err
		}
		e, err := decodeEntry(rowID, payload)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
		if _, err := cur.Next(); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// Delete removes the row at rowID.
func (c *Catalog) Delete(rowID int64) error {
	cur, res, err := c.tree.SeekTable(rowID)
	if err != nil {
		return err
	}
	if res != Found {
		return nil
	}
	return c.tree.Delete(cur)
}

// UpdateRootPage rewrites rowID's rootpage column in place — used when an
// external schema layer needs to repoint a catalog entry after a vacuum
// or an incremental-vacuum page move (§4.7) without changing its rowid or
// any other column.
func (c *Catalog) UpdateRootPage(rowID int64, newRoot uint32) error {
	e, ok, err := c.Lookup(rowID)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("btreeengine: no catalog row with rowid %d", rowID)
	}
	e.RootPage = newRoot
	return c.tree.InsertTable(rowID, encodeEntry(e))
}
