package eplite

import (
	"errors"

	"github.com/eplite/eplite/wal"
)

// ErrNotWAL is returned by Checkpoint when the connection was not opened
// with JournalMode: JournalWAL.
var ErrNotWAL = errors.New("eplite: checkpoint requires JournalMode: JournalWAL")

// Checkpoint replays WAL frames into the main database file (§4.4,
// "checkpoint(mode) WAL-only"). With no active readers to bound it, every
// frame currently in the log is eligible.
func (db *DB) Checkpoint(mode wal.Mode) (framesCheckpointed int, err error) {
	if db.w == nil {
		return 0, ErrNotWAL
	}
	return db.w.Checkpoint(db.p.File(), mode, db.w.FrameCount())
}
