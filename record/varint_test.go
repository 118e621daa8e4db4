package record

import (
	"fmt"
	"testing"
)

func TestVarintEncoding(t *testing.T) {
	tests := []struct {
		value    uint64
		expected int
	}{
		{0, 1},
		{1, 1},
		{127, 1},
		{128, 2},
		{16383, 2},
		{16384, 3},
		{1<<21 - 1, 3},
		{1 << 21, 4},
		{1<<56 - 1, 8},
		{1 << 56, 9},
		{1<<64 - 1, 9},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("value_%d", tt.value), func(t *testing.T) {
			buf := make([]byte, MaxVarintLen)
			n := PutUvarint(buf, tt.value)
			if n != tt.expected {
				t.Errorf("PutUvarint(%d) = %d bytes, want %d", tt.value, n, tt.expected)
			}
			if got := VarintLen(tt.value); got != tt.expected {
				t.Errorf("VarintLen(%d) = %d, want %d", tt.value, got, tt.expected)
			}

			decoded, n2 := Uvarint(buf[:n])
			if n2 != n {
				t.Errorf("Uvarint consumed %d bytes, want %d", n2, n)
			}
			if decoded != tt.value {
				t.Errorf("Uvarint = %d, want %d", decoded, tt.value)
			}
		})
	}
}

func TestVarintRoundTripSmall(t *testing.T) {
	buf := make([]byte, MaxVarintLen)
	for i := uint64(0); i < 100000; i++ {
		n := PutUvarint(buf, i)
		decoded, n2 := Uvarint(buf[:n])
		if n2 != n || decoded != i {
			t.Fatalf("round trip failed for %d: got value=%d n=%d, want n=%d", i, decoded, n2, n)
		}
	}
}

func TestVarintNineByteForm(t *testing.T) {
	buf := make([]byte, MaxVarintLen)
	v := uint64(1) << 63
	n := PutUvarint(buf, v)
	if n != 9 {
		t.Fatalf("expected 9-byte encoding for %d, got %d", v, n)
	}
	// Byte 9 carries the low 8 bits raw, with no continuation bit semantics.
	if buf[8] != byte(v) {
		t.Errorf("byte 8 = %x, want %x", buf[8], byte(v))
	}
	decoded, n2 := Uvarint(buf[:9])
	if n2 != 9 || decoded != v {
		t.Errorf("decode = %d, %d bytes; want %d, 9 bytes", decoded, n2, v)
	}
}

func TestVarintSigned(t *testing.T) {
	tests := []int64{0, 1, -1, 127, -128, 1 << 40, -(1 << 40)}
	buf := make([]byte, MaxVarintLen)
	for _, v := range tests {
		n := PutVarint(buf, v)
		decoded, n2 := Varint(buf[:n])
		if n2 != n || decoded != v {
			t.Errorf("signed round trip failed for %d: got %d, %d bytes", v, decoded, n2)
		}
	}
}

func TestVarintTruncated(t *testing.T) {
	buf := make([]byte, MaxVarintLen)
	PutUvarint(buf, uint64(1)<<40)
	full := VarintLen(uint64(1) << 40)
	if full < 2 {
		t.Fatalf("test expects a multi-byte varint")
	}
	_, n := Uvarint(buf[:full-1])
	if n >= 0 {
		t.Errorf("expected negative n on truncated input, got %d", n)
	}
}

func TestVarintShortestForm(t *testing.T) {
	// Every encodable value must round-trip through the exact byte count
	// VarintLen predicts; this guards against off-by-one boundaries in
	// sevenBitLimit.
	boundaries := []uint64{
		1<<7 - 1, 1 << 7,
		1<<14 - 1, 1 << 14,
		1<<21 - 1, 1 << 21,
		1<<28 - 1, 1 << 28,
		1<<35 - 1, 1 << 35,
		1<<42 - 1, 1 << 42,
		1<<49 - 1, 1 << 49,
		1<<56 - 1, 1 << 56,
	}
	buf := make([]byte, MaxVarintLen)
	for _, v := range boundaries {
		n := PutUvarint(buf, v)
		if n != VarintLen(v) {
			t.Errorf("PutUvarint(%d) wrote %d bytes, VarintLen predicted %d", v, n, VarintLen(v))
		}
	}
}
