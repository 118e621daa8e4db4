package wal

import (
	"encoding/binary"

	"github.com/eplite/eplite/common"
	"github.com/eplite/eplite/vfs"
)

// Mode selects how aggressively Checkpoint reclaims WAL frames (§4.4).
type Mode int

const (
	Passive Mode = iota
	Full
	Restart
	Truncate
)

// Checkpoint implements §4.4's checkpoint algorithm: sync the WAL, replay
// the latest version of every page at or below the oldest active reader's
// mxFrame into the main database file, then sync the main file. minReaderMxFrame
// should be WAL.FrameCount() when there are no active readers to bound it.
func (w *WAL) Checkpoint(dbFile vfs.File, mode Mode, minReaderMxFrame int) (checkpointed int, err error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.file.Sync(common.SyncFull); err != nil {
		return 0, err
	}

	// Consolidate: for every page with a frame at or below the boundary,
	// write only its highest such frame.
	type pending struct {
		page   []byte
		offset int64
	}
	latest := make(map[uint32]pending)
	frameSize := int64(FrameHeaderSize + w.pageSize)
	for pageNo, offsets := range w.frameOffsets {
		var bestOff int64 = -1
		bestFrameNo := 0
		for _, off := range offsets {
			frameNo := int(off-HeaderSize)/int(frameSize) + 1
			if frameNo <= minReaderMxFrame && frameNo > bestFrameNo {
				bestFrameNo = frameNo
				bestOff = off
			}
		}
		if bestOff < 0 {
			continue
		}
		page := make([]byte, w.pageSize)
		if _, err := w.file.ReadAt(page, bestOff+FrameHeaderSize); err != nil {
			return checkpointed, err
		}
		latest[pageNo] = pending{page: page, offset: bestOff}
	}

	for pageNo, pend := range latest {
		dstOff := int64(pageNo-1) * int64(w.pageSize)
		if _, err := dbFile.WriteAt(pend.page, dstOff); err != nil {
			return checkpointed, err
		}
		checkpointed++
	}

	if err := dbFile.Sync(common.SyncFull); err != nil {
		return checkpointed, err
	}

	if mode == Passive || mode == Full {
		return checkpointed, nil
	}

	// Restart/Truncate: only safe once every frame has been reclaimed
	// (minReaderMxFrame covers the whole log), since this invalidates all
	// existing frames by changing the salts.
	if minReaderMxFrame < w.frameCount {
		return checkpointed, nil
	}

	salt, err := w.v.Randomness(8)
	if err != nil {
		return checkpointed, err
	}
	w.header.Salt1++
	w.header.Salt2 = binary.BigEndian.Uint32(salt[4:8])
	w.header.CheckpointSeq++
	if _, err := w.file.WriteAt(w.header.encode(), 0); err != nil {
		return checkpointed, err
	}
	w.frameOffsets = make(map[uint32][]int64)
	w.frameCount = 0
	w.nextOffset = HeaderSize
	w.lastCk1, w.lastCk2 = 0, 0

	if mode == Truncate {
		if err := w.file.Truncate(HeaderSize); err != nil {
			return checkpointed, err
		}
	}
	return checkpointed, nil
}
