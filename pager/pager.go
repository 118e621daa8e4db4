package pager

import (
	"container/list"
	"errors"
	"fmt"
	"sync"

	"github.com/eplite/eplite/common"
	"github.com/eplite/eplite/vfs"
)

var (
	errNotInWriteTxn   = errors.New("pager: savepoint requires an open write transaction")
	errNoSuchSavepoint = errors.New("pager: no open savepoint with that name")
)

// Journal is the subset of the rollback-journal protocol the pager drives
// during a write transaction (§4.2 steps 2-9). The journal package provides
// the concrete implementation; defined here, not imported, to avoid a
// pager<->journal import cycle (journal depends only on vfs).
type Journal interface {
	Begin(pageSize, sectorSize int) error
	CapturePage(pageNumber uint32, original []byte) error
	Contains(pageNumber uint32) bool
	SyncHeader(dbSizePages uint32) error
	Invalidate(mode common.JournalMode) error
	Exists() bool
}

// Pager manages the page cache, the lock-state machine, and the read/write
// transaction protocol over a single database file (§4.2). It generalizes
// the teacher's btree.Pager (container/list LRU, dirty map, stats
// counters) to a variable page size and the five-level VFS lock ladder
// instead of a single in-process mutex.
type Pager struct {
	mu sync.RWMutex

	file vfs.File
	vfs  vfs.VFS
	path string

	header   *Header
	pageSize int

	cache     map[uint32]*Page
	lru       *list.List
	lruElem   map[uint32]*list.Element
	dirty     map[uint32]bool
	cacheSize int

	lockLevel  common.LockLevel
	journal    Journal
	journalMode common.JournalMode
	inTxn      bool
	txHeader   *Header // snapshot of *header at BeginWrite, restored by Rollback

	savepoints []*savepointMark

	closed bool

	stats struct {
		pageReads  int64
		pageWrites int64
		cacheHits  int64
	}
}

type lruEntry struct{ pageNumber uint32 }

// Open opens (or creates, if create is true) the database file at path
// through the given VFS and reads its header. cacheSize bounds the number
// of cached pages (§4.2's "self-tuning" cache is approximated here by a
// fixed soft bound set at Open; dirty pages are never evicted, so the cache
// can hold more than cacheSize pages during a write transaction).
func Open(v vfs.VFS, path string, create bool, defaultPageSize, cacheSize int) (*Pager, error) {
	f, err := v.Open(path, vfs.OpenFlags{Create: create})
	if err != nil {
		return nil, err
	}

	p := &Pager{
		file:      f,
		vfs:       v,
		path:      path,
		cache:     make(map[uint32]*Page),
		lru:       list.New(),
		lruElem:   make(map[uint32]*list.Element),
		dirty:     make(map[uint32]bool),
		cacheSize: cacheSize,
	}

	size, err := f.FileSize()
	if err != nil {
		f.Close()
		return nil, err
	}

	if size == 0 {
		p.header = NewHeader(defaultPageSize)
		p.pageSize = defaultPageSize
		if err := p.writeHeaderAndRootPage(); err != nil {
			f.Close()
			return nil, err
		}
		return p, nil
	}

	buf := make([]byte, HeaderSize)
	if _, err := f.ReadAt(buf, 0); err != nil {
		f.Close()
		return nil, err
	}
	h, err := ParseHeader(buf)
	if err != nil {
		f.Close()
		return nil, err
	}
	p.header = h
	p.pageSize = h.PageSizeBytes()
	return p, nil
}

func (p *Pager) writeHeaderAndRootPage() error {
	page1 := NewPage(1, p.pageSize)
	copy(page1.Data(), p.header.Encode())
	// Page 1's b-tree header (leaf table, §3.3) immediately follows the
	// 100-byte database header; btreeengine.InitRoot fills it in once the
	// catalog is created. Here we only persist the database header itself.
	if _, err := p.file.WriteAt(page1.Data(), 0); err != nil {
		return err
	}
	return p.file.Sync(common.SyncFull)
}

// PageSize returns the database's fixed page size P.
func (p *Pager) PageSize() int { return p.pageSize }

// File exposes the main database file handle for WAL.Checkpoint, which
// writes reclaimed frames directly into it.
func (p *Pager) File() vfs.File { return p.file }

// Header returns the current in-memory database header. Callers must hold
// a read or write transaction; the returned pointer must not be retained
// past it.
func (p *Pager) Header() *Header {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.header
}

// SetJournal installs the rollback-journal driver used during write
// transactions. Must be called before BeginWrite.
func (p *Pager) SetJournal(j Journal, mode common.JournalMode) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.journal = j
	p.journalMode = mode
}

// BeginRead acquires SHARED (§4.10: NONE -> SHARED).
func (p *Pager) BeginRead() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return common.ErrClosed
	}
	if p.lockLevel >= common.LockShared {
		return nil
	}
	if err := p.file.Lock(common.LockShared); err != nil {
		return err
	}
	p.lockLevel = common.LockShared
	return nil
}

// BeginWrite upgrades SHARED -> RESERVED and opens a fresh journal segment
// (§4.2 steps 1-2).
func (p *Pager) BeginWrite() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return common.ErrClosed
	}
	if p.lockLevel < common.LockShared {
		if err := p.file.Lock(common.LockShared); err != nil {
			return err
		}
		p.lockLevel = common.LockShared
	}
	if err := p.file.Lock(common.LockReserved); err != nil {
		return err
	}
	p.lockLevel = common.LockReserved
	p.inTxn = true
	snapshot := *p.header
	p.txHeader = &snapshot

	if p.journal != nil {
		dc := p.file.DeviceCharacteristics()
		sector := dc.SectorSize
		if sector <= 0 {
			sector = 512
		}
		if err := p.journal.Begin(p.pageSize, sector); err != nil {
			return err
		}
	}
	return nil
}

// GetPage returns a page for reading, loading it from disk on a cache miss.
func (p *Pager) GetPage(n uint32) (*Page, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.getPageLocked(n)
}

func (p *Pager) getPageLocked(n uint32) (*Page, error) {
	if p.closed {
		return nil, common.ErrClosed
	}
	if pg, ok := p.cache[n]; ok {
		if elem, ok := p.lruElem[n]; ok {
			p.lru.MoveToFront(elem)
		}
		p.stats.cacheHits++
		return pg, nil
	}

	data := make([]byte, p.pageSize)
	off := int64(n-1) * int64(p.pageSize)
	if _, err := p.file.ReadAt(data, off); err != nil {
		return nil, common.IoError(fmt.Sprintf("page %d", n), err)
	}
	p.stats.pageReads++

	pg := LoadPage(n, data)
	p.addToCacheLocked(pg)
	return pg, nil
}

// GetPageForWrite returns a page with its pre-image captured to the journal
// (if one is active and this page has not already been captured this
// transaction) before the caller is allowed to mutate it.
func (p *Pager) GetPageForWrite(n uint32) (*Page, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	pg, err := p.getPageLocked(n)
	if err != nil {
		return nil, err
	}
	if p.journal != nil && !p.journal.Contains(n) {
		original := make([]byte, len(pg.Data()))
		copy(original, pg.Data())
		if err := p.journal.CapturePage(n, original); err != nil {
			return nil, err
		}
	}
	if len(p.savepoints) > 0 {
		p.recordShadowLocked(n, pg.Data())
	}
	p.dirty[n] = true
	pg.SetDirty(true)
	return pg, nil
}

func (p *Pager) addToCacheLocked(pg *Page) {
	if p.lru.Len() >= p.cacheSize && p.cacheSize > 0 {
		p.evictOneLocked()
	}
	p.cache[pg.ID()] = pg
	p.lruElem[pg.ID()] = p.lru.PushFront(&lruEntry{pageNumber: pg.ID()})
}

// evictOneLocked evicts the least-recently-used unpinned, non-dirty page.
// Dirty pages are never silently dropped (§4.2): they stay pinned in cache
// until Commit or Rollback clears them.
func (p *Pager) evictOneLocked() {
	for e := p.lru.Back(); e != nil; e = e.Prev() {
		n := e.Value.(*lruEntry).pageNumber
		if p.dirty[n] {
			continue
		}
		delete(p.cache, n)
		delete(p.lruElem, n)
		p.lru.Remove(e)
		return
	}
}

// AllocatePage returns a fresh page, either from the freelist or by
// growing the file (§4.7). Freelist logic lives in freelist.go.
func (p *Pager) AllocatePage() (*Page, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	n, err := p.allocatePageNumberLocked()
	if err != nil {
		return nil, err
	}
	pg := NewPage(n, p.pageSize)
	p.addToCacheLocked(pg)
	p.dirty[n] = true
	return pg, nil
}

// Commit writes dirty pages to the main file and invalidates the journal
// (§4.2 steps 6-10).
func (p *Pager) Commit() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.inTxn {
		return nil
	}

	if p.journal != nil {
		if err := p.journal.SyncHeader(p.txHeader.DatabaseSizePages); err != nil {
			return err
		}
	}

	if err := p.file.Lock(common.LockPending); err != nil {
		return err
	}
	p.lockLevel = common.LockPending
	if err := p.file.Lock(common.LockExclusive); err != nil {
		return err
	}
	p.lockLevel = common.LockExclusive

	for n := range p.dirty {
		pg, ok := p.cache[n]
		if !ok {
			continue
		}
		off := int64(n-1) * int64(p.pageSize)
		if _, err := p.file.WriteAt(pg.Data(), off); err != nil {
			return common.IoError(fmt.Sprintf("page %d", n), err)
		}
		p.stats.pageWrites++
		pg.SetDirty(false)
	}
	p.header.FileChangeCounter++
	p.header.VersionValidFor = p.header.FileChangeCounter
	if err := p.flushHeaderLocked(); err != nil {
		return err
	}

	if err := p.file.Sync(common.SyncFull); err != nil {
		return err
	}

	if p.journal != nil {
		if err := p.journal.Invalidate(p.journalMode); err != nil {
			return err
		}
	}

	p.dirty = make(map[uint32]bool)
	p.inTxn = false
	p.txHeader = nil
	p.clearSavepointsLocked()
	if err := p.file.Unlock(common.LockShared); err != nil {
		return err
	}
	p.lockLevel = common.LockShared
	return nil
}

// Rollback discards all pages modified this transaction by reloading them
// from disk (the journal still holds the canonical pre-images on-disk; an
// in-cache rollback is equivalent once nothing has been flushed, which
// holds here since Commit is the only path that writes to the main file).
// p.header is restored from the BeginWrite snapshot: AllocatePage, the
// freelist mutators, and the schema-cookie/user-version/application-id
// setters all mutate the shared *Header in place, so without this the
// next transaction would see the aborted one's DatabaseSizePages and
// freelist pointers.
func (p *Pager) Rollback() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.inTxn {
		return nil
	}
	for n := range p.dirty {
		delete(p.cache, n)
		if elem, ok := p.lruElem[n]; ok {
			p.lru.Remove(elem)
			delete(p.lruElem, n)
		}
	}
	p.dirty = make(map[uint32]bool)
	p.inTxn = false
	if p.txHeader != nil {
		*p.header = *p.txHeader
		p.txHeader = nil
	}
	p.clearSavepointsLocked()

	if p.journal != nil {
		if err := p.journal.Invalidate(p.journalMode); err != nil {
			return err
		}
	}
	if err := p.file.Unlock(common.LockShared); err != nil {
		return err
	}
	p.lockLevel = common.LockShared
	return nil
}

func (p *Pager) flushHeaderLocked() error {
	pg, ok := p.cache[1]
	if !ok {
		data := make([]byte, p.pageSize)
		if _, err := p.file.ReadAt(data, 0); err != nil {
			return common.IoError("page 1", err)
		}
		pg = LoadPage(1, data)
		p.cache[1] = pg
	}
	copy(pg.Data()[:HeaderSize], p.header.Encode())
	pg.SetDirty(true)
	p.dirty[1] = true
	return nil
}

// Stats reports the pager's page-read, page-write and cache-hit counters
// for diagnostics.
type Stats struct {
	PageReads  int64
	PageWrites int64
	CacheHits  int64
}

func (p *Pager) Stats() Stats {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return Stats{p.stats.pageReads, p.stats.pageWrites, p.stats.cacheHits}
}

// Close releases the file handle; any in-flight transaction is rolled back.
func (p *Pager) Close() error {
	p.mu.Lock()
	if p.inTxn {
		p.mu.Unlock()
		_ = p.Rollback()
		p.mu.Lock()
	}
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	if p.lockLevel != common.LockNone {
		_ = p.file.Unlock(common.LockNone)
	}
	return p.file.Close()
}
