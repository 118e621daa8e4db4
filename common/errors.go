// Package common holds error kinds and small shared types used across every
// layer of the storage core (vfs, pager, journal, wal, btreeengine, record).
package common

import "errors"

// ErrKind classifies a failure the way callers outside the storage core need
// to distinguish it: retry (Busy), give up and reopen (Corrupt, IoError), or
// treat as an expected outcome (ConstraintUnique on a duplicate index key).
type ErrKind int

const (
	KindOK ErrKind = iota
	KindBusy
	KindLocked
	KindIoError
	KindCorrupt
	KindFormatUnsupported
	KindReadOnly
	KindFull
	KindConstraintUnique
	KindSchemaChanged
	KindCheckpointBlocked
)

func (k ErrKind) String() string {
	switch k {
	case KindOK:
		return "ok"
	case KindBusy:
		return "busy"
	case KindLocked:
		return "locked"
	case KindIoError:
		return "io_error"
	case KindCorrupt:
		return "corrupt"
	case KindFormatUnsupported:
		return "format_unsupported"
	case KindReadOnly:
		return "read_only"
	case KindFull:
		return "full"
	case KindConstraintUnique:
		return "constraint_unique"
	case KindSchemaChanged:
		return "schema_changed"
	case KindCheckpointBlocked:
		return "checkpoint_blocked"
	default:
		return "unknown"
	}
}

// Error wraps an underlying cause with the ErrKind a caller needs to branch
// on, plus an optional Site (page number or file offset) for Corrupt errors.
type Error struct {
	Kind ErrKind
	Site string // e.g. "page 42" or "journal header"
	Err  error
}

func (e *Error) Error() string {
	if e.Site != "" {
		return e.Kind.String() + " at " + e.Site + ": " + e.Err.Error()
	}
	return e.Kind.String() + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

// NewError constructs an *Error with the given kind, site and cause.
func NewError(kind ErrKind, site string, err error) *Error {
	return &Error{Kind: kind, Site: site, Err: err}
}

// Is allows errors.Is(err, ErrBusy) style checks against sentinel kinds
// without callers needing to reach into the Error struct.
func (e *Error) Is(target error) bool {
	sentinel, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == sentinel.Kind
}

// Sentinel errors for errors.Is comparisons against a bare kind (no site/cause).
var (
	ErrBusy              = &Error{Kind: KindBusy, Err: errors.New("lock acquisition failed within timeout")}
	ErrLocked            = &Error{Kind: KindLocked, Err: errors.New("immediate conflict with another in-process transaction")}
	ErrFormatUnsupported = &Error{Kind: KindFormatUnsupported, Err: errors.New("unsupported file format version")}
	ErrReadOnly          = &Error{Kind: KindReadOnly, Err: errors.New("write attempted on a read-only database")}
	ErrFull              = &Error{Kind: KindFull, Err: errors.New("disk full")}
	ErrConstraintUnique  = &Error{Kind: KindConstraintUnique, Err: errors.New("duplicate key in unique index")}
	ErrSchemaChanged     = &Error{Kind: KindSchemaChanged, Err: errors.New("schema cookie changed since last read")}
	ErrCheckpointBlocked = &Error{Kind: KindCheckpointBlocked, Err: errors.New("readers still hold frames needed by the WAL")}
)

// Corrupt builds a Corrupt error anchored at a specific page/offset "site".
func Corrupt(site string, err error) *Error {
	return NewError(KindCorrupt, site, err)
}

// IoError wraps a VFS-level failure.
func IoError(site string, err error) *Error {
	return NewError(KindIoError, site, err)
}

// Plain sentinel errors kept from the teacher's style for the common,
// non-kind-specific cases callers match with plain errors.Is.
var (
	ErrKeyNotFound = errors.New("key not found")
	ErrKeyEmpty    = errors.New("key cannot be empty")
	ErrClosed      = errors.New("storage engine closed")
	ErrNotFound    = errors.New("not found")
	ErrDiskFull    = ErrFull
)
