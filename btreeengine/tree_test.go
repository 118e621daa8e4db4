package btreeengine

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/eplite/eplite/pager"
	"github.com/eplite/eplite/record"
	"github.com/eplite/eplite/vfs"
)

func openTestPager(t *testing.T) *pager.Pager {
	t.Helper()
	mem := vfs.NewMem()
	p, err := pager.Open(mem, "test.db", true, 4096, 50)
	if err != nil {
		t.Fatalf("pager.Open: %v", err)
	}
	t.Cleanup(func() { p.Close() })
	return p
}

func TestTreeInsertAndSeekTable(t *testing.T) {
	p := openTestPager(t)
	if err := p.BeginWrite(); err != nil {
		t.Fatalf("BeginWrite: %v", err)
	}
	tr, err := Create(p, Table, nil)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	const n = 200
	for i := int64(0); i < n; i++ {
		payload := record.Encode([]record.Column{record.Text(fmt.Sprintf("row-%d", i))})
		if err := tr.InsertTable(i, payload); err != nil {
			t.Fatalf("InsertTable(%d): %v", i, err)
		}
	}
	if err := p.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	for i := int64(0); i < n; i++ {
		c, res, err := tr.SeekTable(i)
		if err != nil {
			t.Fatalf("SeekTable(%d): %v", i, err)
		}
		if res != Found {
			t.Fatalf("SeekTable(%d): want Found, got %v", i, res)
		}
		payload, err := c.Payload()
		if err != nil {
			t.Fatalf("Payload: %v", err)
		}
		cols, err := record.Decode(payload)
		if err != nil {
			t.Fatalf("Decode: %v", err)
		}
		want := fmt.Sprintf("row-%d", i)
		if got := string(cols[0].Bytes); got != want {
			t.Errorf("row %d: got %q, want %q", i, got, want)
		}
	}
}

func TestTreeDeleteRebalances(t *testing.T) {
	p := openTestPager(t)
	if err := p.BeginWrite(); err != nil {
		t.Fatalf("BeginWrite: %v", err)
	}
	tr, err := Create(p, Table, nil)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	const n = 300
	for i := int64(0); i < n; i++ {
		if err := tr.InsertTable(i, bytes.Repeat([]byte{'x'}, 20)); err != nil {
			t.Fatalf("InsertTable(%d): %v", i, err)
		}
	}

	for i := int64(0); i < n; i += 2 {
		c, res, err := tr.SeekTable(i)
		if err != nil || res != Found {
			t.Fatalf("SeekTable(%d): %v, %v", i, res, err)
		}
		if err := tr.Delete(c); err != nil {
			t.Fatalf("Delete(%d): %v", i, err)
		}
	}
	if err := p.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	for i := int64(0); i < n; i++ {
		_, res, err := tr.SeekTable(i)
		if err != nil {
			t.Fatalf("SeekTable(%d): %v", i, err)
		}
		wantFound := i%2 != 0
		if (res == Found) != wantFound {
			t.Errorf("SeekTable(%d): got Found=%v, want %v", i, res == Found, wantFound)
		}
	}

	if problems, err := tr.Check(); err != nil {
		t.Fatalf("Check: %v", err)
	} else if len(problems) != 0 {
		t.Errorf("Check found problems after delete: %v", problems)
	}
}

func TestTreeIteratorScanTable(t *testing.T) {
	p := openTestPager(t)
	if err := p.BeginWrite(); err != nil {
		t.Fatalf("BeginWrite: %v", err)
	}
	tr, err := Create(p, Table, nil)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	for i := int64(0); i < 50; i++ {
		if err := tr.InsertTable(i, []byte{byte(i)}); err != nil {
			t.Fatalf("InsertTable(%d): %v", i, err)
		}
	}
	if err := p.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	it, err := tr.ScanTable(10, 20, true)
	if err != nil {
		t.Fatalf("ScanTable: %v", err)
	}
	defer it.Close()

	var got []int64
	for it.Next() {
		var rowID int64
		for _, b := range it.Key() {
			rowID = rowID<<8 | int64(b)
		}
		got = append(got, rowID)
	}
	if err := it.Error(); err != nil {
		t.Fatalf("iterator error: %v", err)
	}
	if len(got) != 10 {
		t.Fatalf("got %d rows, want 10: %v", len(got), got)
	}
	if got[0] != 10 || got[len(got)-1] != 19 {
		t.Errorf("range bounds wrong: %v", got)
	}
}

func TestTreeIndexOrdering(t *testing.T) {
	p := openTestPager(t)
	if err := p.BeginWrite(); err != nil {
		t.Fatalf("BeginWrite: %v", err)
	}
	tr, err := Create(p, Index, record.BinaryCollation)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	keys := []string{"banana", "apple", "cherry", "date", "fig"}
	for _, k := range keys {
		if err := tr.InsertIndexKey([]byte(k)); err != nil {
			t.Fatalf("InsertIndexKey(%q): %v", k, err)
		}
	}
	if err := p.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	c, err := tr.First()
	if err != nil {
		t.Fatalf("First: %v", err)
	}
	var got []string
	for {
		k, err := c.Key()
		if err != nil {
			t.Fatalf("Key: %v", err)
		}
		got = append(got, string(k))
		ok, err := c.Next()
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		if !ok {
			break
		}
	}
	want := []string{"apple", "banana", "cherry", "date", "fig"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("position %d: got %q, want %q", i, got[i], want[i])
		}
	}

	if problems, err := tr.Check(); err != nil {
		t.Fatalf("Check: %v", err)
	} else if len(problems) != 0 {
		t.Errorf("Check found problems: %v", problems)
	}
}
