package walindex

import (
	"path/filepath"
	"testing"
)

func TestFrameForPicksHighestAtOrBelowMxFrame(t *testing.T) {
	idx, err := New(filepath.Join(t.TempDir(), "test.db-shm"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer idx.Close()

	idx.RecordFrame(7, 1)
	idx.RecordFrame(7, 3)
	idx.RecordFrame(7, 5)

	f, found := idx.FrameFor(7, 4)
	if !found || f != 3 {
		t.Fatalf("FrameFor(7, mxFrame=4) = (%d, %v), want (3, true)", f, found)
	}

	f, found = idx.FrameFor(7, 0)
	if found {
		t.Fatalf("expected no frame at or below mxFrame=0, got %d", f)
	}
}

func TestReaderSlotsBoundCheckpoint(t *testing.T) {
	idx, err := New(filepath.Join(t.TempDir(), "test2.db-shm"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer idx.Close()

	slotA, err := idx.AcquireReaderSlot(10)
	if err != nil {
		t.Fatalf("AcquireReaderSlot: %v", err)
	}
	if _, err := idx.AcquireReaderSlot(20); err != nil {
		t.Fatalf("AcquireReaderSlot: %v", err)
	}

	if got := idx.OldestReaderMxFrame(100); got != 10 {
		t.Fatalf("OldestReaderMxFrame = %d, want 10", got)
	}

	idx.ReleaseReaderSlot(slotA)
	if got := idx.OldestReaderMxFrame(100); got != 20 {
		t.Fatalf("OldestReaderMxFrame after release = %d, want 20", got)
	}
}

func TestLockSlotsAreExclusive(t *testing.T) {
	idx, err := New(filepath.Join(t.TempDir(), "test3.db-shm"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer idx.Close()

	if err := idx.AcquireLock(WriteLock); err != nil {
		t.Fatalf("AcquireLock: %v", err)
	}
	if err := idx.AcquireLock(WriteLock); err == nil {
		t.Fatal("expected a second writer to be rejected with Busy")
	}
	idx.ReleaseLock(WriteLock)
	if err := idx.AcquireLock(WriteLock); err != nil {
		t.Fatalf("AcquireLock after release: %v", err)
	}
}
