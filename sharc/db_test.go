package sharc

import (
	"path/filepath"
	"testing"

	"github.com/revred/sharc-core/internal/executor"
	"github.com/revred/sharc-core/internal/writer"
)

func TestOpenCreateTableInsertAndQuery(t *testing.T) {
	path := filepath.Join(t.TempDir(), "facade.db")
	db, err := Open(path, Options{Writable: true})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer db.Close()

	w := db.Writer()
	if err := w.Begin(); err != nil {
		t.Fatalf("Begin: %v", err)
	}
	if _, err := w.CreateTable(`CREATE TABLE items (id INTEGER PRIMARY KEY, name TEXT)`); err != nil {
		t.Fatalf("CreateTable: %v", err)
	}
	if _, err := w.Insert("items", writer.Row{"id": int64(1), "name": "widget"}); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if err := w.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	tables := db.Tables()
	if len(tables) != 1 || tables[0] != "items" {
		t.Fatalf("expected [items], got %v", tables)
	}

	rows, err := db.Reader().Execute(executor.Query{Table: "items"})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if len(rows) != 1 || rows[0]["name"].S != "widget" {
		t.Fatalf("expected one widget row, got %+v", rows)
	}
}

func TestOpenReadOnlyMissingFileFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing.db")
	if _, err := Open(path, Options{Writable: false}); err == nil {
		t.Fatalf("expected Open of a missing read-only file to fail")
	}
}

func TestSnapshotIsolatesAgainstLaterWrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "snap.db")
	db, err := Open(path, Options{Writable: true})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer db.Close()

	w := db.Writer()
	if err := w.Begin(); err != nil {
		t.Fatalf("Begin: %v", err)
	}
	if _, err := w.CreateTable(`CREATE TABLE t (id INTEGER PRIMARY KEY)`); err != nil {
		t.Fatalf("CreateTable: %v", err)
	}
	if err := w.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	snap, err := db.Snapshot()
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if snap.PageSize() == 0 {
		t.Fatalf("expected a non-zero page size from the snapshot")
	}
}

func TestPoolReturnsStableManagerPerTable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pool.db")
	db, err := Open(path, Options{Writable: true})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer db.Close()

	p1 := db.Pool().For("items")
	p2 := db.Pool().For("items")
	if p1 != p2 {
		t.Fatalf("expected the same TablePool instance across calls")
	}
}
