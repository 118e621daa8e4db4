package pager

import (
	"bytes"
	"testing"
)

func TestSavepointRollbackRestoresOnlyShadowedPages(t *testing.T) {
	p := openTestPager(t, 10)

	if err := p.BeginWrite(); err != nil {
		t.Fatalf("BeginWrite: %v", err)
	}
	a, err := p.AllocatePage()
	if err != nil {
		t.Fatalf("AllocatePage: %v", err)
	}
	copy(a.Data(), []byte("before savepoint"))
	if err := p.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	if err := p.BeginWrite(); err != nil {
		t.Fatalf("BeginWrite: %v", err)
	}
	if err := p.SavepointBegin("sp1"); err != nil {
		t.Fatalf("SavepointBegin: %v", err)
	}

	pg, err := p.GetPageForWrite(a.ID())
	if err != nil {
		t.Fatalf("GetPageForWrite: %v", err)
	}
	copy(pg.Data(), []byte("after savepoint!"))

	b, err := p.AllocatePage()
	if err != nil {
		t.Fatalf("AllocatePage: %v", err)
	}
	copy(b.Data(), []byte("new page"))

	if err := p.SavepointRollback("sp1"); err != nil {
		t.Fatalf("SavepointRollback: %v", err)
	}

	got, err := p.GetPage(a.ID())
	if err != nil {
		t.Fatalf("GetPage: %v", err)
	}
	if !bytes.HasPrefix(got.Data(), []byte("before savepoint")) {
		t.Errorf("page not restored: %q", got.Data()[:16])
	}
	gotB, err := p.GetPage(b.ID())
	if err != nil {
		t.Fatalf("GetPage: %v", err)
	}
	if !bytes.HasPrefix(gotB.Data(), []byte("new page")) {
		t.Errorf("unshadowed page changed by rollback: %q", gotB.Data()[:8])
	}

	if err := p.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}
}

func TestSavepointReleaseKeepsWrites(t *testing.T) {
	p := openTestPager(t, 10)

	if err := p.BeginWrite(); err != nil {
		t.Fatalf("BeginWrite: %v", err)
	}
	pg, err := p.AllocatePage()
	if err != nil {
		t.Fatalf("AllocatePage: %v", err)
	}
	if err := p.SavepointBegin("sp1"); err != nil {
		t.Fatalf("SavepointBegin: %v", err)
	}
	copy(pg.Data(), []byte("kept"))
	if err := p.SavepointRelease("sp1"); err != nil {
		t.Fatalf("SavepointRelease: %v", err)
	}
	if err := p.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	got, err := p.GetPage(pg.ID())
	if err != nil {
		t.Fatalf("GetPage: %v", err)
	}
	if !bytes.HasPrefix(got.Data(), []byte("kept")) {
		t.Errorf("release should not undo writes: %q", got.Data()[:4])
	}
}

func TestSavepointRequiresWriteTxn(t *testing.T) {
	p := openTestPager(t, 10)
	if err := p.SavepointBegin("sp1"); err == nil {
		t.Error("SavepointBegin outside a write transaction should fail")
	}
}

func TestSavepointUnknownNameErrors(t *testing.T) {
	p := openTestPager(t, 10)
	if err := p.BeginWrite(); err != nil {
		t.Fatalf("BeginWrite: %v", err)
	}
	if err := p.SavepointRollback("nope"); err == nil {
		t.Error("SavepointRollback with unknown name should fail")
	}
}
