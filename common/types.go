package common

// StorageEngine is kept for parity with the teacher's key/value engine
// interface. No type in this module implements it.
type StorageEngine interface {
	Put(key, value []byte) error

	// Get returns ErrKeyNotFound if key doesn't exist
	Get(key []byte) ([]byte, error)

	// Delete removes a key
	Delete(key []byte) error

	// Close closes the storage engine
	Close() error

	// Sync ensures all data is persisted to disk
	Sync() error

	// Stats returns engine statistics
	Stats() Stats

	// Compact manually triggers compaction
	Compact() error
}

// Stats contains engine statistics
type Stats struct {
	// Basic counts
	NumKeys       int64
	NumSegments   int
	ActiveSegSize int64
	TotalDiskSize int64

	// Performance metrics
	WriteCount   int64
	ReadCount    int64
	CompactCount int64

	// Amplification factors
	WriteAmp float64 // bytes written to disk / bytes written by user
	SpaceAmp float64 // disk space used / logical data size
}

// Iterator for range scans
type Iterator interface {
	Next() bool
	Key() []byte
	Value() []byte
	Error() error
	Close() error
}

// LockLevel is the five-state escalation ladder shared by the VFS and the
// pager: NONE < SHARED < RESERVED < PENDING < EXCLUSIVE.
type LockLevel int

const (
	LockNone LockLevel = iota
	LockShared
	LockReserved
	LockPending
	LockExclusive
)

func (l LockLevel) String() string {
	switch l {
	case LockNone:
		return "none"
	case LockShared:
		return "shared"
	case LockReserved:
		return "reserved"
	case LockPending:
		return "pending"
	case LockExclusive:
		return "exclusive"
	default:
		return "invalid"
	}
}

// SyncLevel mirrors the VFS sync(level) contract: Normal leaves ordering
// guarantees to the OS, Full requires durability before returning.
type SyncLevel int

const (
	SyncNormal SyncLevel = iota
	SyncFull
)

// JournalMode selects how a rollback-journal commit is made invisible: by
// deleting the file, truncating it to zero, or zeroing its header in place.
type JournalMode int

const (
	JournalDelete JournalMode = iota
	JournalTruncate
	JournalPersist
)

// Collation identifies the built-in (or custom) text ordering used by
// record.Compare. BINARY/NOCASE/RTRIM are owned by the storage core; Custom
// collations are supplied by the external collaborator as CollationFunc.
type Collation int

const (
	CollationBinary Collation = iota
	CollationNoCase
	CollationRTrim
	CollationCustom
)

// CollationFunc compares two byte strings the way a custom collating
// sequence would; it must behave like bytes.Compare's return contract.
type CollationFunc func(a, b []byte) int
