// Package walindex implements the wal-index (spec §4.5): the page->frame
// lookup structure and the writer/reader/checkpoint lock slots that
// coordinate WAL access. Both live in this process's memory. The
// "<db>-shm" file is mapped (see mmap_unix.go), but nothing is read from or
// written to the mapped region, so the index is not shared between
// processes. It is the one structure in the spec permitted to use host
// byte order (§6.3), since it never crosses machines.
package walindex

import (
	"encoding/binary"
	"fmt"
	"sync"
	"unsafe"

	"github.com/eplite/eplite/common"
)

// hostOrder is this process's native byte order, fixed at package init.
// Nothing in the package reads or writes through it, since the mapped
// region is never accessed.
var hostOrder = func() binary.ByteOrder {
	var x uint16 = 1
	b := (*[2]byte)(unsafe.Pointer(&x))
	if b[0] == 1 {
		return binary.LittleEndian
	}
	return binary.BigEndian
}()

// LockSlot identifies one of the small set of named coordination locks the
// wal-index region holds (§4.5): write, recovery, and one per reader/
// checkpoint slot.
type LockSlot int

const (
	WriteLock LockSlot = iota
	RecoverLock
	CheckpointLock
	NumReaderSlots = 5
)

// Index answers "given page P and mxFrame M, return the greatest frame
// index <= M containing P" by maintaining an in-memory hash from page
// number to the sorted list of frame numbers that touched it — the same
// contract the spec requires of the real mmap'd hash table, with the
// layout left implementation-defined as the spec permits.
//
// Starts empty on every New and is filled only by RecordFrame calls;
// nothing rebuilds it from an existing WAL file. Never itself durable.
type Index struct {
	mu sync.RWMutex

	path string
	data []byte // the mapped (or, without real mmap, heap-backed) region

	pageToFrames map[uint32][]int

	locks   [int(CheckpointLock) + 1]bool
	readers [NumReaderSlots]int // each slot holds the reader's mxFrame, or -1 if free
}

// New creates an Index for the "<db>-shm" path. On platforms with
// golang.org/x/sys/unix mmap support the region is backed by a real shared
// memory mapping (see mmap_unix.go); elsewhere it falls back to a
// process-local buffer, which is sufficient for single-process embedding.
func New(path string) (*Index, error) {
	data, err := mapSharedMemory(path)
	if err != nil {
		return nil, err
	}
	idx := &Index{path: path, data: data, pageToFrames: make(map[uint32][]int)}
	for i := range idx.readers {
		idx.readers[i] = -1
	}
	return idx, nil
}

// Close unmaps the shared-memory region. Nothing is flushed first: the
// index keeps none of its state in the region.
func (idx *Index) Close() error {
	if idx.data == nil {
		return nil
	}
	err := unmapSharedMemory(idx.data)
	idx.data = nil
	return err
}

// RecordFrame registers that frameNo (1-based) wrote pageNumber, called by
// the WAL writer immediately after a successful AppendFrame.
func (idx *Index) RecordFrame(pageNumber uint32, frameNo int) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.pageToFrames[pageNumber] = append(idx.pageToFrames[pageNumber], frameNo)
}

// FrameFor implements the §4.5 query contract.
func (idx *Index) FrameFor(pageNumber uint32, mxFrame int) (frameNo int, found bool) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	best := 0
	for _, f := range idx.pageToFrames[pageNumber] {
		if f <= mxFrame && f > best {
			best = f
		}
	}
	if best == 0 {
		return 0, false
	}
	return best, true
}

// Reset clears every recorded frame, as a Restart/Truncate checkpoint
// invalidates all existing frames; wal.Checkpoint does not call it.
func (idx *Index) Reset() {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.pageToFrames = make(map[uint32][]int)
}

// AcquireReaderSlot records a new reader's snapshot bound (its mxFrame) in
// the first free slot, returning the slot index for later release.
func (idx *Index) AcquireReaderSlot(mxFrame int) (slot int, err error) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	for i, v := range idx.readers {
		if v == -1 {
			idx.readers[i] = mxFrame
			return i, nil
		}
	}
	return 0, common.ErrBusy
}

// ReleaseReaderSlot frees a previously acquired reader slot.
func (idx *Index) ReleaseReaderSlot(slot int) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	if slot >= 0 && slot < len(idx.readers) {
		idx.readers[slot] = -1
	}
}

// OldestReaderMxFrame returns the smallest mxFrame among active readers, or
// upperBound if there are none — the bound a checkpoint must not reclaim
// past (§4.4's "may not reclaim frames newer than the oldest live reader").
func (idx *Index) OldestReaderMxFrame(upperBound int) int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	min := upperBound
	for _, v := range idx.readers {
		if v != -1 && v < min {
			min = v
		}
	}
	return min
}

// AcquireLock takes one of the named coordination slots (write, recover,
// checkpoint), non-blocking, mirroring the VFS lock contract's ErrBusy.
func (idx *Index) AcquireLock(slot LockSlot) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	if idx.locks[slot] {
		return common.ErrBusy
	}
	idx.locks[slot] = true
	return nil
}

// ReleaseLock releases a previously acquired named slot.
func (idx *Index) ReleaseLock(slot LockSlot) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.locks[slot] = false
}

func (idx *Index) String() string {
	return fmt.Sprintf("walindex(%s): %d pages tracked", idx.path, len(idx.pageToFrames))
}
