package pager

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/eplite/eplite/common/testutil"
	"github.com/eplite/eplite/vfs"
)

// TestPagerSurvivesReopenOnRealFile exercises the OS VFS rather than the
// in-memory one, so a page written in one Pager instance must actually
// round-trip through the filesystem to be read back by a fresh one.
func TestPagerSurvivesReopenOnRealFile(t *testing.T) {
	dir := testutil.TempDir(t)
	path := filepath.Join(dir, "test.db")

	p, err := Open(vfs.NewOS(), path, true, 4096, 10)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := p.BeginWrite(); err != nil {
		t.Fatalf("BeginWrite: %v", err)
	}
	pg, err := p.AllocatePage()
	if err != nil {
		t.Fatalf("AllocatePage: %v", err)
	}
	copy(pg.Data(), []byte("persisted across reopen"))
	if err := p.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if err := p.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	p2, err := Open(vfs.NewOS(), path, false, 4096, 10)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer p2.Close()

	if err := p2.BeginRead(); err != nil {
		t.Fatalf("BeginRead: %v", err)
	}
	got, err := p2.GetPage(pg.ID())
	if err != nil {
		t.Fatalf("GetPage: %v", err)
	}
	if !bytes.HasPrefix(got.Data(), []byte("persisted across reopen")) {
		t.Errorf("page contents lost across reopen: %q", got.Data()[:24])
	}
}
