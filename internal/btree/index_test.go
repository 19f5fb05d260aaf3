package btree

import (
	"encoding/binary"
	"path/filepath"
	"testing"

	"github.com/revred/sharc-core/internal/pager"
)

func openTestIndexTree(t *testing.T) (*pager.Pager, *Tree) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "idx.db")
	p, err := pager.Open(path, pager.Options{Writable: true, PageCacheSize: 64})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { p.Close() })
	root, err := CreateEmptyIndex(p)
	if err != nil {
		t.Fatalf("CreateEmptyIndex: %v", err)
	}
	return p, Open(p, root)
}

// indexKey builds a fixed-width composite key: a big-endian int64 indexed
// value followed by a big-endian int64 rowid. This is simpler than the
// record.AppendOrderedKey encoding internal/writer uses (no tag bytes, no
// sign-bit flip); it orders correctly here because the tests use
// non-negative values.
func indexKey(value, rowid int64) []byte {
	buf := make([]byte, 16)
	binary.BigEndian.PutUint64(buf[0:8], uint64(value))
	binary.BigEndian.PutUint64(buf[8:16], uint64(rowid))
	return buf
}

func TestIndexInsertAndSeekRoundTrip(t *testing.T) {
	p, tr := openTestIndexTree(t)
	if err := p.BeginTx(); err != nil {
		t.Fatalf("BeginTx: %v", err)
	}
	for i := int64(0); i < 50; i++ {
		if err := tr.InsertIndexEntry(indexKey(i, i)); err != nil {
			t.Fatalf("InsertIndexEntry(%d): %v", i, err)
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
	prev := int64(-1)
	for c.Valid() {
		key, err := c.IndexKey()
		if err != nil {
			t.Fatalf("IndexKey: %v", err)
		}
		v := int64(binary.BigEndian.Uint64(key[0:8]))
		if v <= prev {
			t.Fatalf("index out of order: prev=%d got=%d", prev, v)
		}
		prev = v
		count++
		if _, err := c.Next(); err != nil {
			t.Fatalf("Next: %v", err)
		}
	}
	if count != 50 {
		t.Fatalf("expected 50 entries, got %d", count)
	}
}

func TestIndexSeekGEKeyForcesSplitAndStillFinds(t *testing.T) {
	p, tr := openTestIndexTree(t)
	if err := p.BeginTx(); err != nil {
		t.Fatalf("BeginTx: %v", err)
	}
	const n = 2000
	for i := int64(0); i < n; i++ {
		if err := tr.InsertIndexEntry(indexKey(i, i)); err != nil {
			t.Fatalf("InsertIndexEntry(%d): %v", i, err)
		}
	}
	if err := p.CommitTx(); err != nil {
		t.Fatalf("CommitTx: %v", err)
	}

	c := NewCursor(tr)
	for _, target := range []int64{0, 1, 999, 1500, n - 1} {
		key := indexKey(target, target)
		found, err := c.SeekGEKey(key)
		if err != nil {
			t.Fatalf("SeekGEKey(%d): %v", target, err)
		}
		if !found {
			t.Fatalf("SeekGEKey(%d): expected exact match", target)
		}
		got, err := c.IndexKey()
		if err != nil {
			t.Fatalf("IndexKey: %v", err)
		}
		if int64(binary.BigEndian.Uint64(got[0:8])) != target {
			t.Fatalf("SeekGEKey(%d): landed on wrong entry", target)
		}
	}
}

func TestIndexInsertDuplicateIsConstraintError(t *testing.T) {
	p, tr := openTestIndexTree(t)
	if err := p.BeginTx(); err != nil {
		t.Fatalf("BeginTx: %v", err)
	}
	if err := tr.InsertIndexEntry(indexKey(1, 1)); err != nil {
		t.Fatalf("InsertIndexEntry: %v", err)
	}
	if err := tr.InsertIndexEntry(indexKey(1, 1)); err == nil {
		t.Fatalf("expected duplicate index entry to fail")
	}
	_ = p.RollbackTx()
}

func TestIndexDeleteEntry(t *testing.T) {
	p, tr := openTestIndexTree(t)
	if err := p.BeginTx(); err != nil {
		t.Fatalf("BeginTx: %v", err)
	}
	for i := int64(0); i < 20; i++ {
		if err := tr.InsertIndexEntry(indexKey(i, i)); err != nil {
			t.Fatalf("InsertIndexEntry(%d): %v", i, err)
		}
	}
	if err := tr.DeleteIndexEntry(indexKey(10, 10)); err != nil {
		t.Fatalf("DeleteIndexEntry: %v", err)
	}
	if err := p.CommitTx(); err != nil {
		t.Fatalf("CommitTx: %v", err)
	}

	c := NewCursor(tr)
	found, err := c.SeekGEKey(indexKey(10, 10))
	if err != nil {
		t.Fatalf("SeekGEKey: %v", err)
	}
	if found {
		t.Fatalf("expected deleted entry to be gone")
	}
}

func TestIndexDeleteMissingEntryIsNotFound(t *testing.T) {
	p, tr := openTestIndexTree(t)
	if err := p.BeginTx(); err != nil {
		t.Fatalf("BeginTx: %v", err)
	}
	if err := tr.InsertIndexEntry(indexKey(1, 1)); err != nil {
		t.Fatalf("InsertIndexEntry: %v", err)
	}
	if err := p.CommitTx(); err != nil {
		t.Fatalf("CommitTx: %v", err)
	}
	if err := p.BeginTx(); err != nil {
		t.Fatalf("BeginTx: %v", err)
	}
	if err := tr.DeleteIndexEntry(indexKey(999, 999)); err == nil {
		t.Fatalf("expected error deleting absent index entry")
	}
	_ = p.RollbackTx()
}

func TestIndexBulkInsertThenDeleteMostEntriesShrinksTree(t *testing.T) {
	p, tr := openTestIndexTree(t)
	if err := p.BeginTx(); err != nil {
		t.Fatalf("BeginTx: %v", err)
	}
	const n = 500
	for i := int64(0); i < n; i++ {
		if err := tr.InsertIndexEntry(indexKey(i, i)); err != nil {
			t.Fatalf("InsertIndexEntry(%d): %v", i, err)
		}
	}
	for i := int64(0); i < n-5; i++ {
		if err := tr.DeleteIndexEntry(indexKey(i, i)); err != nil {
			t.Fatalf("DeleteIndexEntry(%d): %v", i, err)
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
		t.Fatalf("expected 5 surviving entries, got %d", count)
	}
}
