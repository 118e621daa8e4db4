// Package pager owns the 100-byte database header, the page cache with
// dirty-page tracking, the freelist, and the pointer-map (auto-vacuum)
// bookkeeping described in spec §3.2, §3.7, §3.8, §4.2, §4.7.
package pager

import (
	"encoding/binary"
	"fmt"

	"github.com/eplite/eplite/common"
)

// HeaderSize is the fixed size of the database header at the start of page 1.
const HeaderSize = 100

var (
	magicSQLite = [16]byte{'S', 'Q', 'L', 'i', 't', 'e', ' ', 'f', 'o', 'r', 'm', 'a', 't', ' ', '3', 0}
	magicEpLite = [16]byte{'E', 'p', 'L', 'i', 't', 'e', ' ', 'f', 'o', 'r', 'm', 'a', 't', ' ', '1', 0}
)

// Header is the decoded form of the 100-byte database header (§3.2). Field
// names follow the spec's own terms rather than the shorter aliases a pure
// SQLite clone would use, since this format also speaks EpLite.
type Header struct {
	Magic                 [16]byte
	PageSize              uint16 // on-disk encoding; 1 means 65536
	WriteVersion          uint8
	ReadVersion           uint8
	ReservedBytesPerPage  uint8
	FileChangeCounter     uint32
	DatabaseSizePages     uint32
	FirstFreelistTrunk    uint32
	TotalFreelistPages    uint32
	SchemaCookie          uint32
	SchemaFormat          uint32
	SuggestedCacheSize    int32
	LargestRootPage       uint32 // auto-vacuum: 0 means off
	TextEncoding          uint32
	UserVersion           uint32
	IncrementalVacuum     uint32
	ApplicationID         uint32
	VersionValidFor       uint32
	WriterVersion         uint32
}

// EpLiteMagic is the module's own magic; databases created fresh by this package
// use it, but any file bearing the SQLite magic is accepted on open too
// (§1: "compatible with the SQLite 3 on-disk format").
var EpLiteMagic = magicEpLite

// PageSizeBytes returns the header's page size as an actual byte count,
// undoing the "1 means 65536" encoding (§3.1).
func (h *Header) PageSizeBytes() int {
	if h.PageSize == 1 {
		return 65536
	}
	return int(h.PageSize)
}

// UsableSize returns U = P - R (§3.1); callers must check U >= 480 themselves
// since a zero Header (not yet parsed) would otherwise report a bogus value.
func (h *Header) UsableSize() int {
	return h.PageSizeBytes() - int(h.ReservedBytesPerPage)
}

// ParseHeader decodes the 100-byte header from the front of page 1's raw
// bytes. It validates the magic, the fixed constants at offsets 21-23, and
// the page-size/reserved-bytes/usable-size relationship, but does not
// reject a >2 write/read version — callers decide read-only vs refuse.
func ParseHeader(data []byte) (*Header, error) {
	if len(data) < HeaderSize {
		return nil, common.Corrupt("database header", fmt.Errorf("page 1 shorter than %d bytes", HeaderSize))
	}

	h := &Header{}
	copy(h.Magic[:], data[0:16])
	if h.Magic != magicSQLite && h.Magic != magicEpLite {
		return nil, common.Corrupt("database header", fmt.Errorf("unrecognized magic %q", h.Magic[:15]))
	}

	h.PageSize = binary.BigEndian.Uint16(data[16:18])
	h.WriteVersion = data[18]
	h.ReadVersion = data[19]
	h.ReservedBytesPerPage = data[20]

	if data[21] != 64 || data[22] != 32 || data[23] != 32 {
		return nil, common.Corrupt("database header", fmt.Errorf("fixed constants at offset 21-23 are %d,%d,%d, want 64,32,32", data[21], data[22], data[23]))
	}

	h.FileChangeCounter = binary.BigEndian.Uint32(data[24:28])
	h.DatabaseSizePages = binary.BigEndian.Uint32(data[28:32])
	h.FirstFreelistTrunk = binary.BigEndian.Uint32(data[32:36])
	h.TotalFreelistPages = binary.BigEndian.Uint32(data[36:40])
	h.SchemaCookie = binary.BigEndian.Uint32(data[40:44])
	h.SchemaFormat = binary.BigEndian.Uint32(data[44:48])
	h.SuggestedCacheSize = int32(binary.BigEndian.Uint32(data[48:52]))
	h.LargestRootPage = binary.BigEndian.Uint32(data[52:56])
	h.TextEncoding = binary.BigEndian.Uint32(data[56:60])
	h.UserVersion = binary.BigEndian.Uint32(data[60:64])
	h.IncrementalVacuum = binary.BigEndian.Uint32(data[64:68])
	h.ApplicationID = binary.BigEndian.Uint32(data[68:72])
	h.VersionValidFor = binary.BigEndian.Uint32(data[92:96])
	h.WriterVersion = binary.BigEndian.Uint32(data[96:100])

	if !validPageSizeCode(h.PageSize) {
		return nil, common.Corrupt("database header", fmt.Errorf("invalid page size code %d", h.PageSize))
	}
	if h.UsableSize() < 480 {
		return nil, common.Corrupt("database header", fmt.Errorf("usable size %d below minimum 480", h.UsableSize()))
	}
	if h.LargestRootPage == 0 && h.IncrementalVacuum != 0 {
		return nil, common.Corrupt("database header", fmt.Errorf("incremental-vacuum flag set without auto-vacuum"))
	}

	return h, nil
}

func validPageSizeCode(code uint16) bool {
	if code == 1 {
		return true
	}
	// Must be a power of two in [512, 32768].
	if code < 512 || code > 32768 {
		return false
	}
	return code&(code-1) == 0
}

// Encode writes h into a fresh HeaderSize-byte slice, ready to place at the
// start of page 1. Bytes 72-91 (the 20 reserved bytes) are left zero,
// matching a freshly-created database.
func (h *Header) Encode() []byte {
	data := make([]byte, HeaderSize)
	copy(data[0:16], h.Magic[:])
	binary.BigEndian.PutUint16(data[16:18], h.PageSize)
	data[18] = h.WriteVersion
	data[19] = h.ReadVersion
	data[20] = h.ReservedBytesPerPage
	data[21], data[22], data[23] = 64, 32, 32
	binary.BigEndian.PutUint32(data[24:28], h.FileChangeCounter)
	binary.BigEndian.PutUint32(data[28:32], h.DatabaseSizePages)
	binary.BigEndian.PutUint32(data[32:36], h.FirstFreelistTrunk)
	binary.BigEndian.PutUint32(data[36:40], h.TotalFreelistPages)
	binary.BigEndian.PutUint32(data[40:44], h.SchemaCookie)
	binary.BigEndian.PutUint32(data[44:48], h.SchemaFormat)
	binary.BigEndian.PutUint32(data[48:52], uint32(h.SuggestedCacheSize))
	binary.BigEndian.PutUint32(data[52:56], h.LargestRootPage)
	binary.BigEndian.PutUint32(data[56:60], h.TextEncoding)
	binary.BigEndian.PutUint32(data[60:64], h.UserVersion)
	binary.BigEndian.PutUint32(data[64:68], h.IncrementalVacuum)
	binary.BigEndian.PutUint32(data[68:72], h.ApplicationID)
	binary.BigEndian.PutUint32(data[92:96], h.VersionValidFor)
	binary.BigEndian.PutUint32(data[96:100], h.WriterVersion)
	return data
}

// NewHeader builds the header for a freshly created database with the given
// page size (actual bytes, not the on-disk code) and EpLite's own magic.
func NewHeader(pageSizeBytes int) *Header {
	code := uint16(pageSizeBytes)
	if pageSizeBytes == 65536 {
		code = 1
	}
	return &Header{
		Magic:              magicEpLite,
		PageSize:           code,
		WriteVersion:       1,
		ReadVersion:        1,
		DatabaseSizePages:  1,
		SchemaFormat:       4,
		TextEncoding:       1, // UTF-8
	}
}
