package vfs

// Byte offsets used for fcntl/flock-style byte-range locking, following the
// same convention as SQLite's own unix VFS: a handful of single bytes deep
// inside the lock-byte page (§3.1) act as semaphores for RESERVED/PENDING,
// and a small range just past them stands in for the SHARED lock so that
// many readers can each hold a read-lock on a distinct byte within it.
const (
	pendingByte  = 0x40000000         // 1,073,741,824 — start of the lock-byte page
	reservedByte = pendingByte + 1    // 1,073,741,825
	sharedFirst  = pendingByte + 2    // 1,073,741,826
	sharedSize   = 510
)
