// Package vfs provides the byte-addressable file abstraction the rest of
// the storage core is built on: positioned read/write, truncation,
// durability (Sync), directory-independent advisory locking at the five
// escalation levels, and the device-characteristics hints the pager needs
// to decide whether the atomic single-page write optimization (§4.2) is
// safe.
//
// The shape follows the teacher's pager (github.com/intellect4all/storage-engines/btree/pager.go):
// a small concrete struct wrapping *os.File plus explicit stats counters,
// generalized here into a pluggable interface so callers can register an
// in-memory VFS for tests the way JuniperBible registers alternate parser
// backends behind a single interface.
package vfs

import (
	"github.com/eplite/eplite/common"
)

// DeviceCharacteristics describes the properties of the underlying storage
// that the pager needs in order to decide which durability shortcuts are
// safe (§4.1, §4.2 atomic single-page write optimization).
type DeviceCharacteristics struct {
	// AtomicWrites is true if a single sector-sized write is guaranteed to
	// be all-or-nothing even across a crash.
	AtomicWrites bool
	// SafeAppend is true if appending to the file grows its reported size
	// only after the appended bytes are durable (so a torn append is
	// observable as a short file, never as garbage past EOF).
	SafeAppend bool
	// SectorSize is the unit the VFS considers atomically writable.
	SectorSize int
}

// DefaultDeviceCharacteristics is the pessimistic default the spec mandates
// (§4.1): 512-byte sectors, non-atomic writes, unsafe append. A VFS may
// report better characteristics only when it actually knows them.
func DefaultDeviceCharacteristics() DeviceCharacteristics {
	return DeviceCharacteristics{
		AtomicWrites: false,
		SafeAppend:   false,
		SectorSize:   512,
	}
}

// OpenFlags controls how VFS.Open treats a path.
type OpenFlags struct {
	Create   bool
	ReadOnly bool
	// Exclusive causes Open to fail if the file already exists (used when
	// creating a fresh super-journal).
	Exclusive bool
}

// File is the capability set §4.1 requires of every open file handle:
// positioned I/O, truncation, flush-to-durable-media, and the five-level
// advisory lock ladder. All methods must be safe to call from one
// goroutine at a time per File — the pager serializes access itself.
type File interface {
	ReadAt(p []byte, off int64) (int, error)
	WriteAt(p []byte, off int64) (int, error)
	Truncate(size int64) error
	FileSize() (int64, error)

	// Sync flushes to durable media at the given level. A Sync(SyncNormal)
	// MAY be a no-op; Sync(SyncFull) MUST NOT return until the data is
	// durable.
	Sync(level common.SyncLevel) error

	// Lock escalates this file handle's advisory lock to at least level,
	// returning common.ErrBusy if another handle in the lock domain holds
	// an incompatible lock.
	Lock(level common.LockLevel) error
	// Unlock drops the lock to at most level.
	Unlock(level common.LockLevel) error
	// CheckReservedLock reports whether some other connection (in this
	// process or another) holds at least RESERVED.
	CheckReservedLock() (bool, error)

	DeviceCharacteristics() DeviceCharacteristics

	Close() error
}

// VFS is the scoped-acquisition capability set §4.1 describes: open,
// delete, existence/path queries, randomness and clock access. Concrete
// implementations: OS (os_unix.go, os_other.go), in-memory (mem.go).
type VFS interface {
	Open(path string, flags OpenFlags) (File, error)
	Delete(path string) error
	Access(path string) (bool, error)
	FullPathname(path string) (string, error)
	Randomness(n int) ([]byte, error)
	CurrentTime() int64 // unix nanoseconds
}
