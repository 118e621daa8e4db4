package eplite

import (
	"bytes"
	"testing"

	"github.com/eplite/eplite/btreeengine"
	"github.com/eplite/eplite/record"
	"github.com/eplite/eplite/vfs"
)

func openTestDB(t *testing.T, opts Options) *DB {
	t.Helper()
	if opts.VFS == nil {
		opts.VFS = vfs.NewMem()
	}
	opts.CreateIfMissing = true
	db, err := Open("test.db", opts)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestDBCreateTreeAndCatalog(t *testing.T) {
	db := openTestDB(t, Options{})

	if err := db.BeginWrite(); err != nil {
		t.Fatalf("BeginWrite: %v", err)
	}
	rowID, tr, err := db.CreateTree(btreeengine.Table, "widgets", "widgets", "CREATE TABLE widgets (id INTEGER PRIMARY KEY)", nil)
	if err != nil {
		t.Fatalf("CreateTree: %v", err)
	}
	if err := tr.InsertTable(1, record.Encode([]record.Column{record.Text("hello")})); err != nil {
		t.Fatalf("InsertTable: %v", err)
	}
	if err := db.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	e, ok, err := db.Catalog().Lookup(rowID)
	if err != nil || !ok {
		t.Fatalf("Lookup: ok=%v, err=%v", ok, err)
	}
	if e.Name != "widgets" {
		t.Errorf("Name = %q, want widgets", e.Name)
	}

	reopened := db.OpenTree(e.RootPage, btreeengine.Table, nil)
	c, res, err := reopened.SeekTable(1)
	if err != nil || res != btreeengine.Found {
		t.Fatalf("SeekTable: res=%v, err=%v", res, err)
	}
	payload, err := c.Payload()
	if err != nil {
		t.Fatalf("Payload: %v", err)
	}
	cols, err := record.Decode(payload)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if !bytes.Equal(cols[0].Bytes, []byte("hello")) {
		t.Errorf("payload = %q, want hello", cols[0].Bytes)
	}
}

func TestDBIntegrityCheckClean(t *testing.T) {
	db := openTestDB(t, Options{})

	if err := db.BeginWrite(); err != nil {
		t.Fatalf("BeginWrite: %v", err)
	}
	_, tr, err := db.CreateTree(btreeengine.Table, "t", "t", "", nil)
	if err != nil {
		t.Fatalf("CreateTree: %v", err)
	}
	for i := int64(0); i < 100; i++ {
		if err := tr.InsertTable(i, bytes.Repeat([]byte{'a'}, 30)); err != nil {
			t.Fatalf("InsertTable(%d): %v", i, err)
		}
	}
	if err := db.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	problems, err := db.IntegrityCheck()
	if err != nil {
		t.Fatalf("IntegrityCheck: %v", err)
	}
	if len(problems) != 0 {
		t.Errorf("IntegrityCheck found problems on a clean db: %v", problems)
	}
}

func TestDBSavepointRollback(t *testing.T) {
	db := openTestDB(t, Options{})

	if err := db.BeginWrite(); err != nil {
		t.Fatalf("BeginWrite: %v", err)
	}
	_, tr, err := db.CreateTree(btreeengine.Table, "t", "t", "", nil)
	if err != nil {
		t.Fatalf("CreateTree: %v", err)
	}
	if err := tr.InsertTable(1, []byte("one")); err != nil {
		t.Fatalf("InsertTable: %v", err)
	}
	if err := db.SavepointBegin("sp"); err != nil {
		t.Fatalf("SavepointBegin: %v", err)
	}
	if err := tr.InsertTable(2, []byte("two")); err != nil {
		t.Fatalf("InsertTable: %v", err)
	}
	if err := db.SavepointRollback("sp"); err != nil {
		t.Fatalf("SavepointRollback: %v", err)
	}
	if err := db.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	if _, res, err := tr.SeekTable(1); err != nil || res != btreeengine.Found {
		t.Fatalf("row 1 should survive rollback: res=%v, err=%v", res, err)
	}
}

func TestDBReadOnlyRejectsWrite(t *testing.T) {
	mem := vfs.NewMem()
	openTestDB(t, Options{VFS: mem})

	ro, err := Open("test.db", Options{VFS: mem, ReadOnly: true})
	if err != nil {
		t.Fatalf("Open read-only: %v", err)
	}
	defer ro.Close()

	if err := ro.BeginWrite(); err == nil {
		t.Error("BeginWrite on a read-only connection should fail")
	}
}

func TestDBCheckpointRequiresWALMode(t *testing.T) {
	db := openTestDB(t, Options{})
	if _, err := db.Checkpoint(0); err != ErrNotWAL {
		t.Errorf("Checkpoint without WAL mode: got %v, want ErrNotWAL", err)
	}
}

func TestDBVacuumNoFreePages(t *testing.T) {
	db := openTestDB(t, Options{})
	n, err := db.Vacuum()
	if err != nil {
		t.Fatalf("Vacuum: %v", err)
	}
	if n != 0 {
		t.Errorf("Vacuum reclaimed %d pages on a db with no freelist", n)
	}
}
