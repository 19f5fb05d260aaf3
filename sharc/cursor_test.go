package sharc

import (
	"path/filepath"
	"testing"

	"github.com/revred/sharc-core/internal/filter"
	"github.com/revred/sharc-core/internal/record"
	"github.com/revred/sharc-core/internal/writer"
)

func TestCursorReadIteratesAllRows(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cursor.db")
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
	if _, err := w.Insert("items", writer.Row{"id": int64(2), "name": "gadget"}); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if err := w.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	cur, err := db.CreateReader("items", nil, nil)
	if err != nil {
		t.Fatalf("CreateReader: %v", err)
	}
	var names []string
	for {
		ok, err := cur.Read()
		if err != nil {
			t.Fatalf("Read: %v", err)
		}
		if !ok {
			break
		}
		names = append(names, cur.String("name"))
	}
	if len(names) != 2 || names[0] != "widget" || names[1] != "gadget" {
		t.Fatalf("expected [widget gadget], got %v", names)
	}
}

func TestCursorReadAppliesFilter(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cursor_filter.db")
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
	if _, err := w.Insert("items", writer.Row{"id": int64(2), "name": "gadget"}); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if err := w.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	pred := filter.Leaf("name", filter.OpEq, record.Text("gadget"))
	cur, err := db.CreateReader("items", nil, pred)
	if err != nil {
		t.Fatalf("CreateReader: %v", err)
	}
	ok, err := cur.Read()
	if err != nil || !ok {
		t.Fatalf("Read: ok=%v err=%v", ok, err)
	}
	if cur.RowID() != 2 || cur.String("name") != "gadget" {
		t.Fatalf("expected rowid 2 / gadget, got rowid=%d name=%s", cur.RowID(), cur.String("name"))
	}
	if ok, err := cur.Read(); err != nil || ok {
		t.Fatalf("expected exactly one matching row, got ok=%v err=%v", ok, err)
	}
}

func TestCursorSeekAndAfterRowID(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cursor_seek.db")
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
	for i := int64(1); i <= 3; i++ {
		if _, err := w.Insert("items", writer.Row{"id": i, "name": "n"}); err != nil {
			t.Fatalf("Insert: %v", err)
		}
	}
	if err := w.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	cur, err := db.CreateReader("items", nil, nil)
	if err != nil {
		t.Fatalf("CreateReader: %v", err)
	}
	found, err := cur.Seek(2)
	if err != nil || !found {
		t.Fatalf("Seek(2): found=%v err=%v", found, err)
	}
	ok, err := cur.Read()
	if err != nil || !ok || cur.RowID() != 2 {
		t.Fatalf("expected Read to land on rowid 2, got ok=%v rowid=%d err=%v", ok, cur.RowID(), err)
	}

	if err := cur.AfterRowID(2); err != nil {
		t.Fatalf("AfterRowID(2): %v", err)
	}
	ok, err = cur.Read()
	if err != nil || !ok || cur.RowID() != 3 {
		t.Fatalf("expected Read to land on rowid 3 after rowid 2, got ok=%v rowid=%d err=%v", ok, cur.RowID(), err)
	}
}

func TestCursorSeekIndex(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cursor_index.db")
	db, err := Open(path, Options{Writable: true})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer db.Close()

	w := db.Writer()
	if err := w.Begin(); err != nil {
		t.Fatalf("Begin: %v", err)
	}
	if _, err := w.CreateTable(`CREATE TABLE people (id INTEGER PRIMARY KEY, city TEXT)`); err != nil {
		t.Fatalf("CreateTable: %v", err)
	}
	if _, err := db.cat.CreateIndex(`CREATE INDEX idx_city ON people (city)`); err != nil {
		t.Fatalf("CreateIndex: %v", err)
	}
	if _, err := w.Insert("people", writer.Row{"id": int64(1), "city": "Reno"}); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if _, err := w.Insert("people", writer.Row{"id": int64(2), "city": "Austin"}); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if _, err := w.Insert("people", writer.Row{"id": int64(3), "city": "Boston"}); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if err := w.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	def, _ := db.cat.Table("people")
	key, err := def.IndexKeyPrefix([]string{"city"}, []record.Value{record.Null(), record.Text("Boston")})
	if err != nil {
		t.Fatalf("IndexKeyPrefix: %v", err)
	}

	cur, err := db.CreateReader("people", nil, nil)
	if err != nil {
		t.Fatalf("CreateReader: %v", err)
	}
	found, err := cur.SeekIndex("idx_city", key)
	if err != nil {
		t.Fatalf("SeekIndex: %v", err)
	}
	if !found {
		t.Fatalf("expected SeekIndex to find Boston")
	}
	ok, err := cur.Read()
	if err != nil || !ok || cur.RowID() != 3 {
		t.Fatalf("expected Read to land on rowid 3 (Boston), got ok=%v rowid=%d err=%v", ok, cur.RowID(), err)
	}
}
