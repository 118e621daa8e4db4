package pager

import (
	"bytes"
	"testing"

	"github.com/eplite/eplite/vfs"
)

func openTestPager(t *testing.T, cacheSize int) *Pager {
	t.Helper()
	mem := vfs.NewMem()
	p, err := Open(mem, "test.db", true, 4096, cacheSize)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { p.Close() })
	return p
}

func TestPagerAllocateAndReadBack(t *testing.T) {
	p := openTestPager(t, 10)

	if err := p.BeginWrite(); err != nil {
		t.Fatalf("BeginWrite: %v", err)
	}
	pg, err := p.AllocatePage()
	if err != nil {
		t.Fatalf("AllocatePage: %v", err)
	}
	copy(pg.Data(), []byte("hello page"))

	if err := p.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	if err := p.BeginRead(); err != nil {
		t.Fatalf("BeginRead: %v", err)
	}
	got, err := p.GetPage(pg.ID())
	if err != nil {
		t.Fatalf("GetPage: %v", err)
	}
	if !bytes.HasPrefix(got.Data(), []byte("hello page")) {
		t.Errorf("page contents not persisted: %q", got.Data()[:10])
	}
}

func TestPagerFreelistRoundTrip(t *testing.T) {
	p := openTestPager(t, 10)

	if err := p.BeginWrite(); err != nil {
		t.Fatalf("BeginWrite: %v", err)
	}
	pg, err := p.AllocatePage()
	if err != nil {
		t.Fatalf("AllocatePage: %v", err)
	}
	freed := pg.ID()
	if err := p.FreePage(freed); err != nil {
		t.Fatalf("FreePage: %v", err)
	}
	if err := p.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	if p.header.TotalFreelistPages != 1 {
		t.Fatalf("expected 1 freelist page, got %d", p.header.TotalFreelistPages)
	}

	if err := p.BeginWrite(); err != nil {
		t.Fatalf("BeginWrite: %v", err)
	}
	again, err := p.AllocatePage()
	if err != nil {
		t.Fatalf("AllocatePage: %v", err)
	}
	if again.ID() != freed {
		t.Errorf("expected freelist reuse of page %d, got %d", freed, again.ID())
	}
	if err := p.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}
}

func TestPagerEvictsCleanPagesOnly(t *testing.T) {
	p := openTestPager(t, 2)

	if err := p.BeginWrite(); err != nil {
		t.Fatalf("BeginWrite: %v", err)
	}
	var ids []uint32
	for i := 0; i < 5; i++ {
		pg, err := p.AllocatePage()
		if err != nil {
			t.Fatalf("AllocatePage: %v", err)
		}
		ids = append(ids, pg.ID())
	}
	if err := p.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	if err := p.BeginRead(); err != nil {
		t.Fatalf("BeginRead: %v", err)
	}
	for _, id := range ids {
		if _, err := p.GetPage(id); err != nil {
			t.Fatalf("GetPage(%d): %v", id, err)
		}
	}
}
