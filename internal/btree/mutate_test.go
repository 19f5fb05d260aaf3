package btree

import (
	"fmt"
	"path/filepath"
	"testing"

	"github.com/revred/sharc-core/internal/pager"
)

func openTestTree(t *testing.T) (*pager.Pager, *Tree) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "t.db")
	p, err := pager.Open(path, pager.Options{Writable: true, PageCacheSize: 64})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { p.Close() })
	root, err := CreateEmpty(p)
	if err != nil {
		t.Fatalf("CreateEmpty: %v", err)
	}
	return p, Open(p, root)
}

func TestInsertAndSeekRoundTrip(t *testing.T) {
	p, tr := openTestTree(t)
	if err := p.BeginTx(); err != nil {
		t.Fatalf("BeginTx: %v", err)
	}
	for i := int64(0); i < 50; i++ {
		if err := tr.Insert(i, []byte(fmt.Sprintf("row-%d", i))); err != nil {
			t.Fatalf("Insert(%d): %v", i, err)
		}
	}
	if err := p.CommitTx(); err != nil {
		t.Fatalf("CommitTx: %v", err)
	}

	c := NewCursor(tr)
	ok, err := c.First()
	if err != nil || !ok {
		t.Fatalf("First: ok=%v err=%v", ok, err)
	}
	var got []int64
	for c.Valid() {
		got = append(got, c.RowID())
		if _, err := c.Next(); err != nil {
			t.Fatalf("Next: %v", err)
		}
	}
	if len(got) != 50 {
		t.Fatalf("expected 50 rows, got %d", len(got))
	}
	for i, rid := range got {
		if rid != int64(i) {
			t.Fatalf("row %d out of order: got rowid %d", i, rid)
		}
	}
}

func TestInsertForcesSplitAndDescentStillFinds(t *testing.T) {
	p, tr := openTestTree(t)
	if err := p.BeginTx(); err != nil {
		t.Fatalf("BeginTx: %v", err)
	}
	const n = 2000
	payload := make([]byte, 64)
	for i := int64(0); i < n; i++ {
		if err := tr.Insert(i, payload); err != nil {
			t.Fatalf("Insert(%d): %v", i, err)
		}
	}
	if err := p.CommitTx(); err != nil {
		t.Fatalf("CommitTx: %v", err)
	}

	c := NewCursor(tr)
	for _, target := range []int64{0, 1, 999, 1500, n - 1} {
		found, err := c.SeekGE(target)
		if err != nil {
			t.Fatalf("SeekGE(%d): %v", target, err)
		}
		if !found || c.RowID() != target {
			t.Fatalf("SeekGE(%d): found=%v rowid=%d", target, found, c.RowID())
		}
	}
}

func TestInsertReplaceUpdatesPayload(t *testing.T) {
	p, tr := openTestTree(t)
	if err := p.BeginTx(); err != nil {
		t.Fatalf("BeginTx: %v", err)
	}
	if err := tr.Insert(7, []byte("first")); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if err := tr.Insert(7, []byte("second")); err != nil {
		t.Fatalf("Insert replace: %v", err)
	}
	if err := p.CommitTx(); err != nil {
		t.Fatalf("CommitTx: %v", err)
	}

	c := NewCursor(tr)
	found, err := c.SeekGE(7)
	if err != nil || !found {
		t.Fatalf("SeekGE: found=%v err=%v", found, err)
	}
	payload, err := c.Payload()
	if err != nil {
		t.Fatalf("Payload: %v", err)
	}
	if string(payload) != "second" {
		t.Fatalf("expected replaced payload, got %q", payload)
	}
}

func TestDeleteRemovesRow(t *testing.T) {
	p, tr := openTestTree(t)
	if err := p.BeginTx(); err != nil {
		t.Fatalf("BeginTx: %v", err)
	}
	for i := int64(0); i < 20; i++ {
		if err := tr.Insert(i, []byte("v")); err != nil {
			t.Fatalf("Insert(%d): %v", i, err)
		}
	}
	if err := tr.Delete(10); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := p.CommitTx(); err != nil {
		t.Fatalf("CommitTx: %v", err)
	}

	c := NewCursor(tr)
	found, err := c.SeekGE(10)
	if err != nil {
		t.Fatalf("SeekGE: %v", err)
	}
	if found {
		t.Fatalf("expected rowid 10 to be gone, but SeekGE reported found")
	}
}

func TestDeleteMissingRowIsNotFound(t *testing.T) {
	p, tr := openTestTree(t)
	if err := p.BeginTx(); err != nil {
		t.Fatalf("BeginTx: %v", err)
	}
	if err := tr.Insert(1, []byte("v")); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if err := p.CommitTx(); err != nil {
		t.Fatalf("CommitTx: %v", err)
	}
	if err := p.BeginTx(); err != nil {
		t.Fatalf("BeginTx: %v", err)
	}
	if err := tr.Delete(999); err == nil {
		t.Fatalf("expected error deleting absent rowid")
	}
	_ = p.RollbackTx()
}

func TestBulkInsertThenDeleteMostRowsShrinksTree(t *testing.T) {
	p, tr := openTestTree(t)
	if err := p.BeginTx(); err != nil {
		t.Fatalf("BeginTx: %v", err)
	}
	const n = 500
	for i := int64(0); i < n; i++ {
		if err := tr.Insert(i, make([]byte, 32)); err != nil {
			t.Fatalf("Insert(%d): %v", i, err)
		}
	}
	for i := int64(0); i < n-5; i++ {
		if err := tr.Delete(i); err != nil {
			t.Fatalf("Delete(%d): %v", i, err)
		}
	}
	if err := p.CommitTx(); err != nil {
		t.Fatalf("CommitTx: %v", err)
	}

	c := NewCursor(tr)
	ok, err := c.First()
	if err != nil || !ok {
		t.Fatalf("First: ok=%v err=%v", ok, err)
	}
	count := 0
	for c.Valid() {
		count++
		if _, err := c.Next(); err != nil {
			t.Fatalf("Next: %v", err)
		}
	}
	if count != 5 {
		t.Fatalf("expected 5 surviving rows, got %d", count)
	}
}
