package btreeengine

import "sync"

// latchMode selects shared or exclusive access to a pageLatch.
type latchMode int

const (
	latchRead latchMode = iota
	latchWrite
)

// pageLatch is a per-page reader-writer lock, distinct from the pager's own
// file-level locking: it serializes concurrent Tree traversals within a
// single process the way SQLite's in-memory b-tree cursors do, using latch
// coupling (lock the child, then release the parent) rather than holding
// one lock for an entire descent.
type pageLatch struct {
	mu sync.RWMutex
}

func (l *pageLatch) lock(mode latchMode) {
	if mode == latchRead {
		l.mu.RLock()
	} else {
		l.mu.Lock()
	}
}

func (l *pageLatch) unlock(mode latchMode) {
	if mode == latchRead {
		l.mu.RUnlock()
	} else {
		l.mu.Unlock()
	}
}

// latchManager hands out a pageLatch per page number, creating one on
// first use. Latches are never removed: a b-tree has few enough distinct
// live pages that this is cheaper than tracking reference counts.
type latchManager struct {
	mu      sync.Mutex
	latches map[uint32]*pageLatch
}

func newLatchManager() *latchManager {
	return &latchManager{latches: make(map[uint32]*pageLatch)}
}

func (lm *latchManager) get(page uint32) *pageLatch {
	lm.mu.Lock()
	defer lm.mu.Unlock()
	l, ok := lm.latches[page]
	if !ok {
		l = &pageLatch{}
		lm.latches[page] = l
	}
	return l
}

// latchCoupling tracks the latches held along one traversal path so a
// caller can release an ancestor once its child is safely latched.
type latchCoupling struct {
	lm    *latchManager
	pages []uint32
	modes []latchMode
}

func newLatchCoupling(lm *latchManager) *latchCoupling {
	return &latchCoupling{lm: lm, pages: make([]uint32, 0, 4), modes: make([]latchMode, 0, 4)}
}

// acquire latches page in mode and records it as the new bottom of the
// path.
func (lc *latchCoupling) acquire(page uint32, mode latchMode) {
	lc.lm.get(page).lock(mode)
	lc.pages = append(lc.pages, page)
	lc.modes = append(lc.modes, mode)
}

// releaseParent drops every latch but the most recently acquired one —
// the "coupling" step: the child stays latched while its ancestors let go.
func (lc *latchCoupling) releaseParent() {
	if len(lc.pages) < 2 {
		return
	}
	for i := 0; i < len(lc.pages)-1; i++ {
		lc.lm.get(lc.pages[i]).unlock(lc.modes[i])
	}
	last := len(lc.pages) - 1
	lc.pages[0], lc.modes[0] = lc.pages[last], lc.modes[last]
	lc.pages, lc.modes = lc.pages[:1], lc.modes[:1]
}

// releaseAll drops every latch still held, innermost first.
func (lc *latchCoupling) releaseAll() {
	for i := len(lc.pages) - 1; i >= 0; i-- {
		lc.lm.get(lc.pages[i]).unlock(lc.modes[i])
	}
	lc.pages = lc.pages[:0]
	lc.modes = lc.modes[:0]
}
