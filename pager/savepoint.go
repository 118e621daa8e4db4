package pager

// Savepoints are named marks within one write transaction (§5's
// supplement to §4.3: "additional journal segments ... may follow").
// Rather than growing the on-disk journal format with a segment-marker
// record, each mark keeps an in-memory shadow of every page's bytes at
// the moment it is first dirtied after the mark was opened — restoring
// those bytes on rollback-to-savepoint is equivalent to replaying the
// journal back to that point, without needing a second on-disk format.
type savepointMark struct {
	name   string
	shadow map[uint32][]byte
}

// SavepointBegin opens a new named mark nested inside the current write
// transaction. Marks nest; SavepointRollback(name) discards every mark
// opened after name as well as name itself.
func (p *Pager) SavepointBegin(name string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.inTxn {
		return errNotInWriteTxn
	}
	p.savepoints = append(p.savepoints, &savepointMark{name: name, shadow: make(map[uint32][]byte)})
	return nil
}

// recordShadowLocked captures n's pre-mutation bytes for every open mark
// that hasn't already seen a write to n. Called from GetPageForWrite
// before the caller mutates the returned page.
func (p *Pager) recordShadowLocked(n uint32, data []byte) {
	for _, m := range p.savepoints {
		if _, ok := m.shadow[n]; ok {
			continue
		}
		cp := make([]byte, len(data))
		copy(cp, data)
		m.shadow[n] = cp
	}
}

func (p *Pager) findSavepointLocked(name string) int {
	for i := len(p.savepoints) - 1; i >= 0; i-- {
		if p.savepoints[i].name == name {
			return i
		}
	}
	return -1
}

// SavepointRelease keeps every write made since name but forgets the mark
// (and any marks nested inside it) — releasing does not touch page
// contents, only the bookkeeping needed to roll back to them.
func (p *Pager) SavepointRelease(name string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	i := p.findSavepointLocked(name)
	if i < 0 {
		return errNoSuchSavepoint
	}
	p.savepoints = p.savepoints[:i]
	return nil
}

// SavepointRollback restores every page shadowed by name or any mark
// nested inside it to its pre-mark bytes, then discards those marks. The
// transaction remains open and dirty for pages outside the rolled-back
// set.
func (p *Pager) SavepointRollback(name string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	i := p.findSavepointLocked(name)
	if i < 0 {
		return errNoSuchSavepoint
	}
	// Restore newest-to-oldest so an older mark's shadow (the true
	// pre-transaction-segment bytes) wins over anything a nested mark
	// shadowed on top of it.
	for j := len(p.savepoints) - 1; j >= i; j-- {
		for n, orig := range p.savepoints[j].shadow {
			pg, ok := p.cache[n]
			if !ok {
				continue
			}
			copy(pg.Data(), orig)
			pg.SetDirty(true)
			p.dirty[n] = true
		}
	}
	p.savepoints = p.savepoints[:i]
	return nil
}

// clearSavepointsLocked drops all marks; called on Commit/Rollback since
// neither leaves a write transaction open for them to apply within.
func (p *Pager) clearSavepointsLocked() {
	p.savepoints = nil
}
