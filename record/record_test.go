package record

import (
	"bytes"
	"fmt"
	"testing"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		cols []Column
	}{
		{"empty", nil},
		{"nulls", []Column{Null(), Null()}},
		{"zero_and_one", []Column{Int(0), Int(1)}},
		{"small_ints", []Column{Int(-1), Int(42), Int(127), Int(-128)}},
		{"wide_ints", []Column{Int(1 << 40), Int(-(1 << 40)), Int(1<<63 - 1)}},
		{"float", []Column{Float(3.14159), Float(-0.0), Float(1e300)}},
		{"text", []Column{Text(""), Text("hello"), Text("eplite")}},
		{"blob", []Column{Blob([]byte{}), Blob([]byte{0x00, 0xff, 0x10})}},
		{"mixed", []Column{Int(7), Text("row"), Null(), Float(2.5), Blob([]byte("x"))}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			enc := Encode(tt.cols)
			got, err := Decode(enc)
			if err != nil {
				t.Fatalf("Decode: %v", err)
			}
			if len(got) != len(tt.cols) {
				t.Fatalf("got %d columns, want %d", len(got), len(tt.cols))
			}
			for i := range tt.cols {
				want, have := tt.cols[i], got[i]
				if want.Kind != have.Kind {
					t.Fatalf("col %d: kind = %v, want %v", i, have.Kind, want.Kind)
				}
				switch want.Kind {
				case KindInt:
					if have.Int != want.Int {
						t.Errorf("col %d: int = %d, want %d", i, have.Int, want.Int)
					}
				case KindFloat:
					if have.Float != want.Float {
						t.Errorf("col %d: float = %v, want %v", i, have.Float, want.Float)
					}
				case KindText, KindBlob:
					if !bytes.Equal(have.Bytes, want.Bytes) {
						t.Errorf("col %d: bytes = %x, want %x", i, have.Bytes, want.Bytes)
					}
				}
			}
		})
	}
}

func TestEncodeUsesZeroByteOptimization(t *testing.T) {
	enc := Encode([]Column{Int(0), Int(1)})
	// Header: len-varint + two serial-type varints (8, 9); no body bytes.
	if len(enc) != 3 {
		t.Fatalf("expected a 3-byte record for serial types 8/9, got %d bytes: %x", len(enc), enc)
	}
}

func TestIntSerialTypeWidths(t *testing.T) {
	tests := []struct {
		v        int64
		wantSize int
	}{
		{2, 1},
		{200, 2},
		{40000, 3},
		{3000000000, 6},
		{1 << 40, 6},
		{1 << 50, 8},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("v_%d", tt.v), func(t *testing.T) {
			_, size := intSerialType(tt.v)
			if size != tt.wantSize {
				t.Errorf("intSerialType(%d) size = %d, want %d", tt.v, size, tt.wantSize)
			}
		})
	}
}

func TestDecodeRejectsReservedSerialType(t *testing.T) {
	buf := make([]byte, MaxVarintLen)
	n := PutUvarint(buf, 10)
	hdrLen := byte(1 + n)
	data := append([]byte{hdrLen}, buf[:n]...)
	if _, err := Decode(data); err == nil {
		t.Fatal("expected an error decoding reserved serial type 10")
	}
}

func TestDecodeTruncated(t *testing.T) {
	if _, err := Decode(nil); err == nil {
		t.Fatal("expected an error decoding an empty record")
	}
}

func TestCompareTypeOrdering(t *testing.T) {
	tests := []struct {
		a, b Column
		want int
	}{
		{Null(), Int(0), -1},
		{Int(5), Text("a"), -1},
		{Text("z"), Blob([]byte{0}), -1},
		{Int(1), Int(2), -1},
		{Int(2), Float(2.0), 0},
		{Text("abc"), Text("abd"), -1},
	}
	for _, tt := range tests {
		got := Compare(tt.a, tt.b, nil)
		if sign(got) != sign(tt.want) {
			t.Errorf("Compare(%+v, %+v) = %d, want sign %d", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestCompareNoCase(t *testing.T) {
	a := Text("Hello")
	b := Text("hello")
	if Compare(a, b, BinaryCollation) == 0 {
		t.Fatal("BinaryCollation should distinguish case")
	}
	if Compare(a, b, NoCaseCollation) != 0 {
		t.Fatal("NoCaseCollation should fold case")
	}
}

func TestCompareRTrim(t *testing.T) {
	a := Text("abc  ")
	b := Text("abc")
	if Compare(a, b, RTrimCollation) != 0 {
		t.Fatal("RTrimCollation should ignore trailing spaces")
	}
}

func TestCompareRecordsFirstDifference(t *testing.T) {
	a := []Column{Int(1), Text("b")}
	b := []Column{Int(1), Text("a")}
	if CompareRecords(a, b, nil) <= 0 {
		t.Fatal("expected a > b by the second column")
	}
}

func sign(n int) int {
	switch {
	case n < 0:
		return -1
	case n > 0:
		return 1
	default:
		return 0
	}
}
