package executor

import (
	"path/filepath"
	"testing"

	"github.com/revred/sharc-core/internal/catalog"
	"github.com/revred/sharc-core/internal/filter"
	"github.com/revred/sharc-core/internal/pager"
	"github.com/revred/sharc-core/internal/record"
	"github.com/revred/sharc-core/internal/writer"
)

func seedTable(t *testing.T) (*pager.Pager, *catalog.Manager) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "e.db")
	p, err := pager.Open(path, pager.Options{Writable: true})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { p.Close() })
	cat, err := catalog.Open(p)
	if err != nil {
		t.Fatalf("catalog.Open: %v", err)
	}
	w := writer.New(p, cat)
	if err := w.Begin(); err != nil {
		t.Fatalf("Begin: %v", err)
	}
	if _, err := w.CreateTable(`CREATE TABLE people (id INTEGER PRIMARY KEY, name TEXT, age INTEGER, city TEXT)`); err != nil {
		t.Fatalf("CreateTable: %v", err)
	}
	seed := []struct {
		id   int64
		name string
		age  int64
		city string
	}{
		{1, "ada", 30, "nyc"},
		{2, "bob", 25, "nyc"},
		{3, "carol", 40, "sf"},
		{4, "dave", 25, "sf"},
	}
	for _, s := range seed {
		if _, err := w.Insert("people", writer.Row{"id": s.id, "name": s.name, "age": s.age, "city": s.city}); err != nil {
			t.Fatalf("Insert: %v", err)
		}
	}
	if err := w.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	return p, cat
}

func TestExecutePlainScanReturnsAllRows(t *testing.T) {
	p, cat := seedTable(t)
	ex := New(p, cat)
	rows, err := ex.Execute(Query{Table: "people"})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if len(rows) != 4 {
		t.Fatalf("expected 4 rows, got %d", len(rows))
	}
	if ex.Diag.ScannedRows != 4 || ex.Diag.ReturnedRows != 4 {
		t.Fatalf("unexpected diagnostics: %+v", ex.Diag)
	}
}

func TestExecuteRowidAliasShortcut(t *testing.T) {
	p, cat := seedTable(t)
	ex := New(p, cat)
	rows, err := ex.Execute(Query{Table: "people", Pred: filter.Leaf("id", filter.OpEq, record.Int(3))})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if len(rows) != 1 || rows[0]["name"].S != "carol" {
		t.Fatalf("expected carol, got %+v", rows)
	}
	if ex.Diag.Strategy != "RowidAliasShortcut" {
		t.Fatalf("expected RowidAliasShortcut, got %s", ex.Diag.Strategy)
	}
}

func TestExecuteOrderByAndLimit(t *testing.T) {
	p, cat := seedTable(t)
	ex := New(p, cat)
	rows, err := ex.Execute(Query{
		Table:   "people",
		OrderBy: []OrderKey{{Column: "age", Dir: Asc}},
		Limit:   2,
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if len(rows) != 2 || rows[0]["age"].I != 25 {
		t.Fatalf("expected two youngest rows first, got %+v", rows)
	}
}

func TestExecuteGroupByCountAndSum(t *testing.T) {
	p, cat := seedTable(t)
	ex := New(p, cat)
	rows, err := ex.Execute(Query{
		Table:      "people",
		GroupBy:    []string{"city"},
		Aggregates: []Aggregate{{Func: AggCountStar, Alias: "n"}, {Func: AggSum, Column: "age", Alias: "total_age"}},
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 groups, got %d", len(rows))
	}
	byCity := map[string]Row{}
	for _, r := range rows {
		byCity[r["city"].S] = r
	}
	if byCity["nyc"]["n"].I != 2 || byCity["nyc"]["total_age"].I != 55 {
		t.Fatalf("unexpected nyc aggregate: %+v", byCity["nyc"])
	}
	if byCity["sf"]["n"].I != 2 || byCity["sf"]["total_age"].I != 65 {
		t.Fatalf("unexpected sf aggregate: %+v", byCity["sf"])
	}
}

func TestExecuteCountStarOverEmptyTableReturnsZero(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.db")
	p, err := pager.Open(path, pager.Options{Writable: true})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer p.Close()
	cat, err := catalog.Open(p)
	if err != nil {
		t.Fatalf("catalog.Open: %v", err)
	}
	w := writer.New(p, cat)
	if err := w.Begin(); err != nil {
		t.Fatalf("Begin: %v", err)
	}
	if _, err := w.CreateTable(`CREATE TABLE t (id INTEGER PRIMARY KEY)`); err != nil {
		t.Fatalf("CreateTable: %v", err)
	}
	if err := w.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	ex := New(p, cat)
	rows, err := ex.Execute(Query{Table: "t", Aggregates: []Aggregate{{Func: AggCountStar, Alias: "n"}}})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if len(rows) != 1 || rows[0]["n"].I != 0 {
		t.Fatalf("expected single row with n=0, got %+v", rows)
	}
}

func TestExecutePagination(t *testing.T) {
	p, cat := seedTable(t)
	ex := New(p, cat)
	rows, err := ex.Execute(Query{Table: "people", OrderBy: []OrderKey{{Column: "id", Dir: Asc}}, Offset: 1, Limit: 2})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if len(rows) != 2 || rows[0]["id"].I != 2 {
		t.Fatalf("expected rows 2,3, got %+v", rows)
	}
}

func TestCombineSetsUnionIntersectExcept(t *testing.T) {
	a := []Row{{"x": record.Int(1)}, {"x": record.Int(2)}}
	b := []Row{{"x": record.Int(2)}, {"x": record.Int(3)}}
	if u := CombineSets(Union, a, b); len(u) != 3 {
		t.Fatalf("expected 3 rows in union, got %d", len(u))
	}
	if i := CombineSets(Intersect, a, b); len(i) != 1 {
		t.Fatalf("expected 1 row in intersect, got %d", len(i))
	}
	if e := CombineSets(Except, a, b); len(e) != 1 || e[0]["x"].I != 1 {
		t.Fatalf("expected except to leave x=1, got %+v", e)
	}
}
