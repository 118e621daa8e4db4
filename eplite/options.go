// Package eplite is the top-level library surface (§6.4): it wires the
// vfs/pager/journal/wal/btreeengine/record layers together behind a single
// DB handle, the way the teacher's cmd/demo drives btree.BTree directly but
// generalized to transactions, schema catalog access, and both on-disk
// journaling modes.
package eplite

import (
	"github.com/eplite/eplite/common"
	"github.com/eplite/eplite/vfs"
)

// Options configures Open (§6.4 "Database open/close with flags").
type Options struct {
	// CreateIfMissing creates the file if it does not already exist.
	CreateIfMissing bool
	// ReadOnly opens the database without acquiring write locks; any
	// write attempt fails with common.ErrReadOnly.
	ReadOnly bool
	// JournalMode selects the durability protocol for write transactions.
	// JournalRollback is the default; JournalWAL additionally opens the
	// WAL and wal-index files and makes Checkpoint available, though
	// writes still commit through the rollback journal (see DESIGN.md
	// for the scope decision).
	JournalMode JournalMode
	// PageSize is used only when creating a new database; ignored when
	// opening an existing one (the on-disk header is authoritative).
	PageSize int
	// CacheSize bounds the pager's in-memory page cache (page count).
	CacheSize int
	// VFS overrides the default OS filesystem, e.g. vfs.NewMem() for
	// tests — "pluggable VFS registration" (§6.4).
	VFS vfs.VFS
	// Collations registers additional named collating sequences beyond
	// the three built-ins (BINARY/NOCASE/RTRIM) — "pluggable collation
	// registration" (§6.4).
	Collations map[string]common.CollationFunc
}

// JournalMode selects which durability protocol a write transaction uses.
type JournalMode int

const (
	JournalRollback JournalMode = iota
	JournalWAL
)

func (o Options) pageSizeOrDefault() int {
	if o.PageSize > 0 {
		return o.PageSize
	}
	return 4096
}

func (o Options) cacheSizeOrDefault() int {
	if o.CacheSize > 0 {
		return o.CacheSize
	}
	return 2000
}

func (o Options) vfsOrDefault() vfs.VFS {
	if o.VFS != nil {
		return o.VFS
	}
	return vfs.NewOS()
}
