package filter

import (
	"testing"

	"github.com/revred/sharc-core/internal/catalog"
	"github.com/revred/sharc-core/internal/record"
)

func testDef(t *testing.T) *catalog.TableDef {
	t.Helper()
	def, err := catalog.ParseCreateTable(`CREATE TABLE t (id INTEGER PRIMARY KEY, name TEXT, age INTEGER)`)
	if err != nil {
		t.Fatalf("ParseCreateTable: %v", err)
	}
	return def
}

func TestCompileChoosesRowidShortcutForPKEquality(t *testing.T) {
	def := testDef(t)
	pred := Leaf("id", OpEq, record.Int(7))
	plan := Compile(def, pred, nil)
	if plan.Strategy != RowidAliasShortcut || plan.RowID != 7 {
		t.Fatalf("expected RowidAliasShortcut/7, got %+v", plan)
	}
}

func TestCompileFallsBackToTableScan(t *testing.T) {
	def := testDef(t)
	pred := Leaf("name", OpEq, record.Text("ada"))
	plan := Compile(def, pred, nil)
	if plan.Strategy != TableScan {
		t.Fatalf("expected TableScan, got %v", plan.Strategy)
	}
}

func TestEvaluateAndOrNot(t *testing.T) {
	def := testDef(t)
	pred := And(
		Leaf("age", OpGte, record.Int(18)),
		Or(Leaf("name", OpEq, record.Text("ada")), Leaf("name", OpEq, record.Text("bob"))),
	)
	plan := Compile(def, pred, nil)
	row := []record.Value{record.Int(1), record.Text("ada"), record.Int(30)}
	if !plan.Evaluate(row) {
		t.Fatalf("expected row to match")
	}
	row2 := []record.Value{record.Int(1), record.Text("carol"), record.Int(30)}
	if plan.Evaluate(row2) {
		t.Fatalf("expected row2 to not match")
	}
}

func TestEvaluateBetweenAndIn(t *testing.T) {
	def := testDef(t)
	between := Compile(def, Between("age", record.Int(10), record.Int(20)), nil)
	if !between.Evaluate([]record.Value{record.Int(1), record.Text("x"), record.Int(15)}) {
		t.Fatalf("expected 15 to be within [10,20]")
	}
	if between.Evaluate([]record.Value{record.Int(1), record.Text("x"), record.Int(25)}) {
		t.Fatalf("expected 25 to be outside [10,20]")
	}

	in := Compile(def, In("name", []record.Value{record.Text("a"), record.Text("b")}, false), nil)
	if !in.Evaluate([]record.Value{record.Int(1), record.Text("b"), record.Int(1)}) {
		t.Fatalf("expected name=b to be IN (a,b)")
	}
}

func TestEvaluateIsNull(t *testing.T) {
	def := testDef(t)
	plan := Compile(def, Leaf("name", OpIsNull, record.Value{}), nil)
	if !plan.Evaluate([]record.Value{record.Int(1), record.Null(), record.Int(1)}) {
		t.Fatalf("expected NULL name to satisfy IS NULL")
	}
}

func TestPlanCacheReusesEntry(t *testing.T) {
	cache := NewPlanCache(4)
	builds := 0
	build := func() *Plan {
		builds++
		return &Plan{Strategy: TableScan}
	}
	p1 := cache.GetOrCompile("k", build)
	p2 := cache.GetOrCompile("k", build)
	if p1 != p2 {
		t.Fatalf("expected cached plan identity to match")
	}
	if builds != 1 {
		t.Fatalf("expected exactly one build, got %d", builds)
	}
}

func TestPlanCacheEvictsLRU(t *testing.T) {
	cache := NewPlanCache(2)
	cache.GetOrCompile("a", func() *Plan { return &Plan{} })
	cache.GetOrCompile("b", func() *Plan { return &Plan{} })
	cache.GetOrCompile("c", func() *Plan { return &Plan{} })
	if cache.Size() != 2 {
		t.Fatalf("expected cache to hold 2 entries, got %d", cache.Size())
	}
}
