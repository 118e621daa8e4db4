package btreeengine

import (
	"encoding/binary"
	"fmt"

	"github.com/eplite/eplite/common"
	"github.com/eplite/eplite/record"
)

// cell is the decoded form of one on-disk cell (§3.4), shaped according to
// the owning page's type. Table cells carry a rowid; index cells carry an
// arbitrary byte-string key instead.
type cell struct {
	rowID     int64  // table cells only
	key       []byte // index cells only
	payload   []byte // local (possibly truncated) payload/key bytes
	fullSize  int    // total payload length P, before any spill
	overflow  uint32 // first overflow page, 0 if not spilled
	childPage uint32 // interior cells only
}

// appendVarint appends the §3.5 big-endian varint encoding of v to buf.
func appendVarint(buf []byte, v uint64) []byte {
	var tmp [record.MaxVarintLen]byte
	n := record.PutUvarint(tmp[:], v)
	return append(buf, tmp[:n]...)
}

// overflowThresholds computes X, M for a given page type and usable size
// U, per spec §3.4. These formulas are part of the on-disk contract and
// must match byte for byte.
func overflowThresholds(pageType byte, usable int) (x, m int) {
	m = ((usable-12)*32)/255 - 23
	if pageType == PageTypeTableLeaf {
		x = usable - 35
	} else {
		x = ((usable-12)*64)/255 - 23
	}
	return x, m
}

// localPayloadSize implements §3.4's spill decision exactly: given the full
// payload length P, returns how many bytes are stored inline on the page
// and how many spill to the overflow chain (0 if none).
func localPayloadSize(pageType byte, usable, p int) (local, spill int) {
	x, m := overflowThresholds(pageType, usable)
	if p <= x {
		return p, 0
	}
	k := m + ((p - m) % (usable - 4))
	if k <= x {
		return k, p - k
	}
	return m, p - m
}

// zigzagEncodeRowID stores a signed rowid as its raw two's-complement bit
// pattern through the unsigned varint codec (§3.5's varint carries 64-bit
// two's-complement integers directly; no zigzag transform is specified).
func zigzagEncodeRowID(v int64) uint64 { return uint64(v) }

// encodeTableLeafCell builds a table-leaf cell (§3.4): varint payload
// length, varint rowid, inline payload bytes, optional 4-byte overflow
// pointer (zeroed; the caller patches it once the chain is allocated).
func encodeTableLeafCell(usable int, rowID int64, payload []byte) []byte {
	local, spill := localPayloadSize(PageTypeTableLeaf, usable, len(payload))
	buf := make([]byte, 0, 9+9+local+4)
	buf = appendVarint(buf, uint64(len(payload)))
	buf = appendVarint(buf, zigzagEncodeRowID(rowID))
	buf = append(buf, payload[:local]...)
	if spill > 0 {
		buf = append(buf, make([]byte, 4)...)
	}
	return buf
}

func encodeTableInteriorCell(child uint32, rowID int64) []byte {
	buf := make([]byte, 4, 13)
	binary.BigEndian.PutUint32(buf, child)
	buf = appendVarint(buf, zigzagEncodeRowID(rowID))
	return buf
}

// encodeIndexLeafCell builds an index-leaf cell: varint payload length,
// inline key bytes, optional 4-byte overflow pointer.
func encodeIndexLeafCell(usable int, key []byte) []byte {
	local, spill := localPayloadSize(PageTypeIndexLeaf, usable, len(key))
	buf := make([]byte, 0, 9+local+4)
	buf = appendVarint(buf, uint64(len(key)))
	buf = append(buf, key[:local]...)
	if spill > 0 {
		buf = append(buf, make([]byte, 4)...)
	}
	return buf
}

// encodeIndexInteriorCell builds an index-interior cell: 4-byte left
// child, varint payload length, inline key bytes, optional overflow ptr.
func encodeIndexInteriorCell(usable int, child uint32, key []byte) []byte {
	local, spill := localPayloadSize(PageTypeIndexInterior, usable, len(key))
	buf := make([]byte, 4, 4+9+local+4)
	binary.BigEndian.PutUint32(buf, child)
	buf = appendVarint(buf, uint64(len(key)))
	buf = append(buf, key[:local]...)
	if spill > 0 {
		buf = append(buf, make([]byte, 4)...)
	}
	return buf
}

// decodeCellBytes decodes the cell starting at the front of data (which
// may be a full page slice from the cell's offset onward, or a
// standalone copy of just that cell) according to pageType, returning the
// decoded fields and the cell's on-disk size. A pageType outside
// {PageTypeTableLeaf, PageTypeTableInterior, PageTypeIndexLeaf,
// PageTypeIndexInterior} means a corrupt or misread page; that is
// reported as an error rather than a panic, so a caller can abort the
// transaction instead of crashing the process.
func decodeCellBytes(pageType byte, usable int, data []byte) (c cell, size int, err error) {
	switch pageType {
	case PageTypeTableLeaf:
		p, n1 := record.Uvarint(data)
		rowid, n2 := record.Varint(data[n1:])
		local, spill := localPayloadSize(PageTypeTableLeaf, usable, int(p))
		headerLen := n1 + n2
		c.fullSize = int(p)
		c.rowID = rowid
		c.payload = data[headerLen : headerLen+local]
		size = headerLen + local
		if spill > 0 {
			c.overflow = binary.BigEndian.Uint32(data[headerLen+local:])
			size += 4
		}
	case PageTypeTableInterior:
		c.childPage = binary.BigEndian.Uint32(data)
		rowid, n1 := record.Varint(data[4:])
		c.rowID = rowid
		size = 4 + n1
	case PageTypeIndexLeaf:
		p, n1 := record.Uvarint(data)
		local, spill := localPayloadSize(PageTypeIndexLeaf, usable, int(p))
		c.fullSize = int(p)
		c.key = data[n1 : n1+local]
		size = n1 + local
		if spill > 0 {
			c.overflow = binary.BigEndian.Uint32(data[n1+local:])
			size += 4
		}
	case PageTypeIndexInterior:
		c.childPage = binary.BigEndian.Uint32(data)
		p, n1 := record.Uvarint(data[4:])
		local, spill := localPayloadSize(PageTypeIndexInterior, usable, int(p))
		c.fullSize = int(p)
		c.key = data[4+n1 : 4+n1+local]
		size = 4 + n1 + local
		if spill > 0 {
			c.overflow = binary.BigEndian.Uint32(data[4+n1+local:])
			size += 4
		}
	default:
		return cell{}, 0, common.Corrupt("btree page", fmt.Errorf("unknown page type %d", pageType))
	}
	return c, size, nil
}

func decodeCellSize(n *node, off int) (int, error) {
	_, size, err := decodeCellBytes(n.pageType(), n.usable, n.raw[off:])
	return size, err
}

// cellAt returns the decoded cell at cell-pointer index i.
func (n *node) cellAt(i int) (cell, error) {
	off := n.cellOffset(i)
	c, _, err := decodeCellBytes(n.pageType(), n.usable, n.raw[off:])
	return c, err
}
