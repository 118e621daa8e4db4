package pager

import (
	"encoding/binary"
	"fmt"
)

// Freelist trunk-page layout (§3.7): [next-trunk (4) | L (4) | leaf_1 (4) ... leaf_L (4)],
// all big-endian, occupying the page's usable space.
const (
	trunkOffNext     = 0
	trunkOffCount    = 4
	trunkLeavesStart = 8
)

func trunkNext(data []byte) uint32  { return binary.BigEndian.Uint32(data[trunkOffNext:]) }
func trunkCount(data []byte) uint32 { return binary.BigEndian.Uint32(data[trunkOffCount:]) }
func trunkLeaf(data []byte, i int) uint32 {
	return binary.BigEndian.Uint32(data[trunkLeavesStart+4*i:])
}

func setTrunkNext(data []byte, v uint32)  { binary.BigEndian.PutUint32(data[trunkOffNext:], v) }
func setTrunkCount(data []byte, v uint32) { binary.BigEndian.PutUint32(data[trunkOffCount:], v) }
func setTrunkLeaf(data []byte, i int, v uint32) {
	binary.BigEndian.PutUint32(data[trunkLeavesStart+4*i:], v)
}

// maxTrunkLeaves is the number of 4-byte leaf slots a trunk page can hold
// within its usable space, after the 8-byte trunk header.
func (p *Pager) maxTrunkLeaves() int {
	return (p.header.UsableSize() - trunkLeavesStart) / 4
}

// allocatePageNumberLocked implements §4.7's allocate_page(): pop the last
// leaf of the first trunk, or reuse the first trunk page itself once it has
// no leaves left; with an empty freelist, grow the file by one page (skipping a pointer-map slot when
// auto-vacuum is enabled).
func (p *Pager) allocatePageNumberLocked() (uint32, error) {
	if p.header.FirstFreelistTrunk != 0 {
		trunkNo := p.header.FirstFreelistTrunk
		trunk, err := p.getPageLocked(trunkNo)
		if err != nil {
			return 0, err
		}
		count := trunkCount(trunk.Data())
		if count > 0 {
			leaf := trunkLeaf(trunk.Data(), int(count-1))
			setTrunkCount(trunk.Data(), count-1)
			trunk.SetDirty(true)
			p.dirty[trunkNo] = true
			p.header.TotalFreelistPages--
			return leaf, nil
		}
		// Trunk has no leaves left; promote its next pointer.
		next := trunkNext(trunk.Data())
		p.header.FirstFreelistTrunk = next
		p.header.TotalFreelistPages--
		delete(p.cache, trunkNo)
		if elem, ok := p.lruElem[trunkNo]; ok {
			p.lru.Remove(elem)
			delete(p.lruElem, trunkNo)
		}
		return trunkNo, nil
	}

	next := p.header.DatabaseSizePages + 1
	if p.header.LargestRootPage != 0 && isPointerMapPage(p.header.UsableSize(), next) {
		next++
	}
	p.header.DatabaseSizePages = next
	return next, nil
}

// freePageLocked implements §4.7's free_page(n): append to the current
// first trunk if it has room, else promote n itself to a new trunk.
func (p *Pager) freePageLocked(n uint32) error {
	if p.header.FirstFreelistTrunk != 0 {
		trunkNo := p.header.FirstFreelistTrunk
		trunk, err := p.getPageLocked(trunkNo)
		if err != nil {
			return err
		}
		count := trunkCount(trunk.Data())
		if int(count) < p.maxTrunkLeaves() {
			setTrunkLeaf(trunk.Data(), int(count), n)
			setTrunkCount(trunk.Data(), count+1)
			trunk.SetDirty(true)
			p.dirty[trunkNo] = true
			p.header.TotalFreelistPages++
			return nil
		}
	}

	// Promote n to a new trunk pointing at the old first trunk.
	newTrunk := NewPage(n, p.pageSize)
	setTrunkNext(newTrunk.Data(), p.header.FirstFreelistTrunk)
	setTrunkCount(newTrunk.Data(), 0)
	p.addToCacheLocked(newTrunk)
	p.dirty[n] = true
	p.header.FirstFreelistTrunk = n
	p.header.TotalFreelistPages++
	return nil
}

// FreePage is the public entry point for returning a page to the freelist
// mid-transaction (b-tree merge, overflow chain release).
func (p *Pager) FreePage(n uint32) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.freePageLocked(n)
}

// ReclaimTrailingFreePage removes page n — which must be both on the
// freelist and the current last page of the file — from the freelist
// structure and truncates the file by one page, for IncrementalVacuum
// (§4.7). Unlike allocatePageNumberLocked/freePageLocked this rewrites
// whichever trunk holds n in place, since n may be a leaf anywhere within
// a trunk's slot array, not just the most recently freed one.
func (p *Pager) ReclaimTrailingFreePage(n uint32) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if n != p.header.DatabaseSizePages {
		return fmt.Errorf("pager: page %d is not the last page (%d)", n, p.header.DatabaseSizePages)
	}

	trunkNo := p.header.FirstFreelistTrunk
	prevTrunk := uint32(0)
	for trunkNo != 0 {
		if trunkNo == n {
			// n is itself a trunk; unlink it from the chain.
			trunk, err := p.getPageLocked(trunkNo)
			if err != nil {
				return err
			}
			next := trunkNext(trunk.Data())
			if prevTrunk == 0 {
				p.header.FirstFreelistTrunk = next
			} else {
				pt, err := p.getPageLocked(prevTrunk)
				if err != nil {
					return err
				}
				setTrunkNext(pt.Data(), next)
				pt.SetDirty(true)
				p.dirty[prevTrunk] = true
			}
			p.header.TotalFreelistPages--
			delete(p.cache, trunkNo)
			if elem, ok := p.lruElem[trunkNo]; ok {
				p.lru.Remove(elem)
				delete(p.lruElem, trunkNo)
			}
			return p.truncateLastPageLocked()
		}

		trunk, err := p.getPageLocked(trunkNo)
		if err != nil {
			return err
		}
		count := int(trunkCount(trunk.Data()))
		for i := 0; i < count; i++ {
			if trunkLeaf(trunk.Data(), i) != n {
				continue
			}
			// Shift the slots above i down by one, then shrink count.
			for j := i; j < count-1; j++ {
				setTrunkLeaf(trunk.Data(), j, trunkLeaf(trunk.Data(), j+1))
			}
			setTrunkCount(trunk.Data(), uint32(count-1))
			trunk.SetDirty(true)
			p.dirty[trunkNo] = true
			p.header.TotalFreelistPages--
			return p.truncateLastPageLocked()
		}

		prevTrunk = trunkNo
		trunkNo = trunkNext(trunk.Data())
	}
	return fmt.Errorf("pager: page %d not found on the freelist", n)
}

func (p *Pager) truncateLastPageLocked() error {
	p.header.DatabaseSizePages--
	delete(p.cache, p.header.DatabaseSizePages+1)
	if elem, ok := p.lruElem[p.header.DatabaseSizePages+1]; ok {
		p.lru.Remove(elem)
		delete(p.lruElem, p.header.DatabaseSizePages+1)
	}
	return p.file.Truncate(int64(p.header.DatabaseSizePages) * int64(p.pageSize))
}

// FreelistPages walks the trunk chain starting at header.FirstFreelistTrunk
// and returns every page number it reaches (trunks and leaves alike), for
// IntegrityCheck to cross-check against header.TotalFreelistPages and
// confirm no freelist page is also reachable from a live b-tree.
func (p *Pager) FreelistPages() ([]uint32, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	var pages []uint32
	trunkNo := p.header.FirstFreelistTrunk
	seen := make(map[uint32]bool)
	for trunkNo != 0 {
		if seen[trunkNo] {
			return pages, nil // cycle; caller's count check will flag it
		}
		seen[trunkNo] = true
		pages = append(pages, trunkNo)
		trunk, err := p.getPageLocked(trunkNo)
		if err != nil {
			return pages, err
		}
		count := trunkCount(trunk.Data())
		for i := 0; i < int(count); i++ {
			pages = append(pages, trunkLeaf(trunk.Data(), i))
		}
		trunkNo = trunkNext(trunk.Data())
	}
	return pages, nil
}
