package wal

import (
	"bytes"
	"testing"

	"github.com/eplite/eplite/vfs"
)

func TestWALAppendAndReadPage(t *testing.T) {
	mem := vfs.NewMem()
	w, err := Open(mem, "test.db", 512)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	page1 := bytes.Repeat([]byte{0x11}, 512)
	if err := w.AppendFrame(1, page1, 1); err != nil { // commit frame
		t.Fatalf("AppendFrame: %v", err)
	}
	if err := w.Sync(); err != nil {
		t.Fatalf("Sync: %v", err)
	}

	got, found, err := w.ReadPage(1, w.FrameCount())
	if err != nil {
		t.Fatalf("ReadPage: %v", err)
	}
	if !found {
		t.Fatal("expected to find page 1 in the WAL")
	}
	if !bytes.Equal(got, page1) {
		t.Fatal("WAL page content mismatch")
	}
}

func TestWALReadPageHonorsMxFrame(t *testing.T) {
	mem := vfs.NewMem()
	w, err := Open(mem, "test.db", 512)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	v1 := bytes.Repeat([]byte{0x01}, 512)
	v2 := bytes.Repeat([]byte{0x02}, 512)
	if err := w.AppendFrame(1, v1, 1); err != nil {
		t.Fatalf("append v1: %v", err)
	}
	if err := w.AppendFrame(1, v2, 2); err != nil {
		t.Fatalf("append v2: %v", err)
	}

	got, found, err := w.ReadPage(1, 1)
	if err != nil || !found {
		t.Fatalf("ReadPage(mxFrame=1): found=%v err=%v", found, err)
	}
	if !bytes.Equal(got, v1) {
		t.Fatal("reader bound to mxFrame=1 should see the first version")
	}

	got, found, err = w.ReadPage(1, 2)
	if err != nil || !found {
		t.Fatalf("ReadPage(mxFrame=2): found=%v err=%v", found, err)
	}
	if !bytes.Equal(got, v2) {
		t.Fatal("reader bound to mxFrame=2 should see the second version")
	}
}

func TestWALRecoveryStopsAtTornTail(t *testing.T) {
	mem := vfs.NewMem()
	w, err := Open(mem, "test.db", 512)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	page := bytes.Repeat([]byte{0x42}, 512)
	if err := w.AppendFrame(1, page, 1); err != nil {
		t.Fatalf("AppendFrame: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	// Simulate a torn write: append garbage past the valid frame without a
	// valid checksum.
	f, err := mem.Open("test.db-wal", vfs.OpenFlags{})
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	garbage := bytes.Repeat([]byte{0xFF}, FrameHeaderSize+512)
	size, _ := f.FileSize()
	if _, err := f.WriteAt(garbage, size); err != nil {
		t.Fatalf("append garbage: %v", err)
	}
	f.Close()

	w2, err := Open(mem, "test.db", 512)
	if err != nil {
		t.Fatalf("reopen WAL: %v", err)
	}
	if w2.FrameCount() != 1 {
		t.Fatalf("expected recovery to keep exactly 1 valid frame, got %d", w2.FrameCount())
	}
}

func TestCheckpointWritesToMainFile(t *testing.T) {
	mem := vfs.NewMem()
	dbFile, err := mem.Open("test.db", vfs.OpenFlags{Create: true})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := dbFile.Truncate(512); err != nil {
		t.Fatalf("truncate: %v", err)
	}

	w, err := Open(mem, "test.db", 512)
	if err != nil {
		t.Fatalf("Open WAL: %v", err)
	}
	page := bytes.Repeat([]byte{0x7A}, 512)
	if err := w.AppendFrame(1, page, 1); err != nil {
		t.Fatalf("AppendFrame: %v", err)
	}

	n, err := w.Checkpoint(dbFile, Passive, w.FrameCount())
	if err != nil {
		t.Fatalf("Checkpoint: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 page checkpointed, got %d", n)
	}

	got := make([]byte, 512)
	if _, err := dbFile.ReadAt(got, 0); err != nil {
		t.Fatalf("read back: %v", err)
	}
	if !bytes.Equal(got, page) {
		t.Fatal("checkpoint did not write the frame's page into the main file")
	}
}
