package eplite

import (
	"github.com/eplite/eplite/btreeengine"
	"github.com/eplite/eplite/common"
	"github.com/eplite/eplite/journal"
	"github.com/eplite/eplite/pager"
	"github.com/eplite/eplite/record"
	"github.com/eplite/eplite/vfs"
	"github.com/eplite/eplite/wal"
	"github.com/eplite/eplite/walindex"
)

// DB is one open database connection: a pager plus whichever durability
// driver (rollback journal, or rollback journal + WAL/wal-index pair) the
// Options requested, and the collation registry external collaborators
// plug custom orderings into.
type DB struct {
	p           *pager.Pager
	j           *journal.Journal
	w           *wal.WAL
	idx         *walindex.Index
	vfs         vfs.VFS
	journalMode JournalMode
	readOnly    bool

	collations map[string]common.CollationFunc
}

// Open opens (or creates) the database at path (§6.4 "Database open/close
// with flags").
func Open(path string, opts Options) (*DB, error) {
	v := opts.vfsOrDefault()

	p, err := pager.Open(v, path, opts.CreateIfMissing, opts.pageSizeOrDefault(), opts.cacheSizeOrDefault())
	if err != nil {
		return nil, err
	}

	db := &DB{p: p, vfs: v, journalMode: opts.JournalMode, readOnly: opts.ReadOnly, collations: map[string]common.CollationFunc{
		"BINARY": record.BinaryCollation,
		"NOCASE": record.NoCaseCollation,
		"RTRIM":  record.RTrimCollation,
	}}
	for name, fn := range opts.Collations {
		db.collations[name] = fn
	}

	if !opts.ReadOnly {
		j, err := journal.Open(v, path)
		if err != nil {
			p.Close()
			return nil, err
		}
		db.j = j
		p.SetJournal(j, common.JournalDelete)

		if opts.JournalMode == JournalWAL {
			w, err := wal.Open(v, path, opts.pageSizeOrDefault())
			if err != nil {
				p.Close()
				return nil, err
			}
			db.w = w
			idx, err := walindex.New(path + "-shm")
			if err != nil {
				p.Close()
				return nil, err
			}
			db.idx = idx
		}
	}

	if opts.ReadOnly {
		return db, nil
	}
	if err := db.p.BeginWrite(); err != nil {
		p.Close()
		return nil, err
	}
	if err := btreeengine.InitRoot(db.p); err != nil {
		db.p.Rollback()
		p.Close()
		return nil, err
	}
	if err := db.p.Commit(); err != nil {
		p.Close()
		return nil, err
	}

	return db, nil
}

// Close releases every resource this connection opened.
func (db *DB) Close() error {
	if db.idx != nil {
		db.idx.Close()
	}
	if db.w != nil {
		db.w.Close()
	}
	if db.j != nil {
		db.j.Close()
	}
	return db.p.Close()
}

// Pager exposes the underlying pager for callers building their own
// b-tree or catalog wiring beyond what DB's convenience methods cover.
func (db *DB) Pager() *pager.Pager { return db.p }

// BeginRead acquires a read transaction (§4.10 NONE -> SHARED).
func (db *DB) BeginRead() error { return db.p.BeginRead() }

// BeginWrite acquires a write transaction (§4.10 SHARED -> RESERVED).
func (db *DB) BeginWrite() error {
	if db.readOnly {
		return common.ErrReadOnly
	}
	return db.p.BeginWrite()
}

// Commit finalizes the open write transaction.
func (db *DB) Commit() error { return db.p.Commit() }

// Rollback discards the open write transaction.
func (db *DB) Rollback() error { return db.p.Rollback() }

// Catalog returns the page-1 schema-bootstrap table (§4.8).
func (db *DB) Catalog() *btreeengine.Catalog { return btreeengine.OpenCatalog(db.p) }

// CreateTree allocates a fresh root page for a new table or index b-tree
// and registers it in the catalog under name/tblName/sql, returning the
// assigned rowid and the bound Tree.
func (db *DB) CreateTree(kind btreeengine.Kind, name, tblName, sql string, collate common.CollationFunc) (int64, *btreeengine.Tree, error) {
	t, err := btreeengine.Create(db.p, kind, collate)
	if err != nil {
		return 0, nil, err
	}
	entryType := btreeengine.TypeTable
	if kind == btreeengine.Index {
		entryType = btreeengine.TypeIndex
	}
	rowID, err := db.Catalog().Insert(btreeengine.Entry{
		Type: entryType, Name: name, TblName: tblName, RootPage: t.Root(), SQL: sql,
	})
	if err != nil {
		return 0, nil, err
	}
	return rowID, t, nil
}

// OpenTree binds a Tree to an already-cataloged root page.
func (db *DB) OpenTree(root uint32, kind btreeengine.Kind, collate common.CollationFunc) *btreeengine.Tree {
	return btreeengine.Open(db.p, root, kind, collate)
}

// Collation looks up a registered collating sequence by name, defaulting
// to BINARY when name is empty or unknown.
func (db *DB) Collation(name string) common.CollationFunc {
	if fn, ok := db.collations[name]; ok {
		return fn
	}
	return record.BinaryCollation
}

// RegisterCollation plugs a custom collating sequence in under name
// (§6.4 "pluggable collation registration").
func (db *DB) RegisterCollation(name string, fn common.CollationFunc) {
	db.collations[name] = fn
}

// SchemaCookie returns the current schema cookie (§3.2 offset 40).
func (db *DB) SchemaCookie() uint32 { return db.p.Header().SchemaCookie }

// IncrementSchemaCookie bumps the schema cookie, signaling to other
// connections that cached query plans must be revalidated
// (KindSchemaChanged, §7). Must be called within a write transaction.
func (db *DB) IncrementSchemaCookie() {
	db.p.Header().SchemaCookie++
}

// UserVersion/SetUserVersion, ApplicationID/SetApplicationID and
// TextEncoding/SchemaFormat expose the header fields §6.4 requires
// accessors for.

func (db *DB) UserVersion() uint32     { return db.p.Header().UserVersion }
func (db *DB) SetUserVersion(v uint32) { db.p.Header().UserVersion = v }

func (db *DB) ApplicationID() uint32     { return db.p.Header().ApplicationID }
func (db *DB) SetApplicationID(v uint32) { db.p.Header().ApplicationID = v }

func (db *DB) TextEncoding() uint32 { return db.p.Header().TextEncoding }

func (db *DB) SchemaFormat() uint32 { return db.p.Header().SchemaFormat }

// VFS returns the connection's VFS instance, so a caller needing an ad
// hoc file (e.g. a super-journal for a multi-database commit, §4.3) can
// share it rather than opening a second, possibly mismatched, one.
func (db *DB) VFS() vfs.VFS { return db.vfs }
