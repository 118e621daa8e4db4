package eplite

import (
	"github.com/eplite/eplite/common"
	"github.com/eplite/eplite/record"
)

// Re-exports of record's codec so callers working only against the eplite
// package don't need a second import for encoding/decoding row payloads
// (§6.4 "record codec entry points").

type Column = record.Column

func NullColumn() Column          { return record.Null() }
func IntColumn(v int64) Column    { return record.Int(v) }
func FloatColumn(v float64) Column { return record.Float(v) }
func TextColumn(s string) Column  { return record.Text(s) }
func BlobColumn(b []byte) Column  { return record.Blob(b) }

func EncodeRecord(cols []Column) []byte             { return record.Encode(cols) }
func DecodeRecord(data []byte) ([]Column, error)    { return record.Decode(data) }

// CompareRecords orders two decoded rows column by column, applying the
// given collating sequence per column (BINARY if collations is nil or
// shorter than the compared index).
func CompareRecords(a, b []Column, collations []common.CollationFunc) int {
	conv := make([]record.CollationFunc, len(collations))
	for i, c := range collations {
		conv[i] = record.CollationFunc(c)
	}
	return record.CompareRecords(a, b, conv)
}
