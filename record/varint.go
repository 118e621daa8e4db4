// Package record implements the serial-type record codec (§4.9, §3.6) and
// the big-endian, static-Huffman varint encoding (§3.5) it is built on.
//
// The teacher's btree/varint.go implements a little-endian,
// protobuf-style varint sized for in-memory cell directories; this package
// is a ground-up reimplementation in the teacher's file-and-test layout
// (varint.go + varint_test.go) but to the SQLite on-disk contract: 1-9
// bytes, big-endian, continuation bit on bytes 1-8, all 8 bits of byte 9
// used when present, and strict shortest-form encoding.
package record

// MaxVarintLen is the longest a varint can be (§3.5: 1-9 bytes).
const MaxVarintLen = 9

// sevenBitLimit is the smallest value that no longer fits in n 7-bit groups.
func sevenBitLimit(n uint) uint64 {
	if n >= 9 {
		return 0 // unrepresentable as a sentinel; callers guard n<9
	}
	return uint64(1) << (7 * n)
}

// PutUvarint encodes v into buf (which must have at least MaxVarintLen
// bytes of room) using the §3.5 big-endian scheme and returns the number of
// bytes written (always the shortest valid encoding).
func PutUvarint(buf []byte, v uint64) int {
	const nineByteThreshold = uint64(1) << 56 // 8 groups of 7 bits

	if v < nineByteThreshold {
		// Find the minimal n in [1,8] such that v < 2^(7n).
		n := 1
		for n < 8 && v >= sevenBitLimit(uint(n)) {
			n++
		}

		// Split v into n big-endian 7-bit groups, most significant first.
		var groups [8]byte
		x := v
		for i := n - 1; i >= 0; i-- {
			groups[i] = byte(x & 0x7f)
			x >>= 7
		}
		for i := 0; i < n; i++ {
			b := groups[i]
			if i < n-1 {
				b |= 0x80
			}
			buf[i] = b
		}
		return n
	}

	// 9-byte form: the last byte carries the low 8 bits untouched; the
	// first 8 bytes carry the remaining 56 bits as continuation groups.
	buf[8] = byte(v)
	x := v >> 8
	for i := 7; i >= 0; i-- {
		buf[i] = byte(x&0x7f) | 0x80
		x >>= 7
	}
	return 9
}

// PutVarint encodes the bit pattern of a signed 64-bit integer (§3.5
// operates on the two's-complement bit pattern, not the signed magnitude).
func PutVarint(buf []byte, v int64) int {
	return PutUvarint(buf, uint64(v))
}

// Uvarint decodes a varint from the front of buf, returning the value and
// the number of bytes consumed, or a non-positive n on a truncated input.
func Uvarint(buf []byte) (uint64, int) {
	var v uint64
	limit := len(buf)
	if limit > 9 {
		limit = 9
	}
	for i := 0; i < limit-1 && i < 8; i++ {
		b := buf[i]
		v = (v << 7) | uint64(b&0x7f)
		if b&0x80 == 0 {
			return v, i + 1
		}
	}
	if limit < 9 {
		// Ran out of bytes before hitting a terminal byte or byte 9.
		if limit == 0 {
			return 0, 0
		}
		b := buf[limit-1]
		if b&0x80 == 0 {
			v = (v << 7) | uint64(b&0x7f)
			return v, limit
		}
		return 0, -limit
	}
	// All of bytes 0..7 had the continuation bit set; byte 8 (the 9th
	// byte) contributes its full 8 bits.
	v = (v << 8) | uint64(buf[8])
	return v, 9
}

// Varint decodes the bit pattern produced by PutVarint back into an int64.
func Varint(buf []byte) (int64, int) {
	v, n := Uvarint(buf)
	return int64(v), n
}

// VarintLen returns the number of bytes PutUvarint would write for v,
// without writing anything — used by the cell-size calculations in
// btreeengine to size a page before committing to an insert.
func VarintLen(v uint64) int {
	const nineByteThreshold = uint64(1) << 56
	if v >= nineByteThreshold {
		return 9
	}
	n := 1
	for n < 8 && v >= sevenBitLimit(uint(n)) {
		n++
	}
	return n
}
