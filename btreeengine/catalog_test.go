package btreeengine

import "testing"

func TestCatalogInsertFindDelete(t *testing.T) {
	p := openTestPager(t)
	if err := p.BeginWrite(); err != nil {
		t.Fatalf("BeginWrite: %v", err)
	}
	if err := InitRoot(p); err != nil {
		t.Fatalf("InitRoot: %v", err)
	}
	cat := OpenCatalog(p)

	tr, err := Create(p, Table, nil)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	rowID, err := cat.Insert(Entry{
		Type: TypeTable, Name: "widgets", TblName: "widgets",
		RootPage: tr.Root(), SQL: "CREATE TABLE widgets (id INTEGER PRIMARY KEY)",
	})
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if err := p.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	e, ok, err := cat.Lookup(rowID)
	if err != nil || !ok {
		t.Fatalf("Lookup(%d): ok=%v, err=%v", rowID, ok, err)
	}
	if e.Name != "widgets" || e.RootPage != tr.Root() {
		t.Errorf("Lookup: got %+v", e)
	}

	found, ok, err := cat.Find("widgets", TypeTable)
	if err != nil || !ok {
		t.Fatalf("Find: ok=%v, err=%v", ok, err)
	}
	if found.TblName != "widgets" {
		t.Errorf("Find: got %+v", found)
	}

	all, err := cat.All()
	if err != nil {
		t.Fatalf("All: %v", err)
	}
	if len(all) != 1 {
		t.Fatalf("All: got %d entries, want 1", len(all))
	}

	if err := p.BeginWrite(); err != nil {
		t.Fatalf("BeginWrite: %v", err)
	}
	if err := cat.Delete(rowID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := p.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	if _, ok, err := cat.Lookup(rowID); err != nil {
		t.Fatalf("Lookup after delete: %v", err)
	} else if ok {
		t.Errorf("Lookup after delete: still found")
	}
}

func TestCatalogUpdateRootPage(t *testing.T) {
	p := openTestPager(t)
	if err := p.BeginWrite(); err != nil {
		t.Fatalf("BeginWrite: %v", err)
	}
	if err := InitRoot(p); err != nil {
		t.Fatalf("InitRoot: %v", err)
	}
	cat := OpenCatalog(p)
	tr, err := Create(p, Table, nil)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	rowID, err := cat.Insert(Entry{Type: TypeTable, Name: "t", TblName: "t", RootPage: tr.Root()})
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}

	if err := cat.UpdateRootPage(rowID, 999); err != nil {
		t.Fatalf("UpdateRootPage: %v", err)
	}
	if err := p.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	e, ok, err := cat.Lookup(rowID)
	if err != nil || !ok {
		t.Fatalf("Lookup: ok=%v, err=%v", ok, err)
	}
	if e.RootPage != 999 {
		t.Errorf("RootPage = %d, want 999", e.RootPage)
	}
}
