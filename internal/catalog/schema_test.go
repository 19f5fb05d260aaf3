package catalog

import (
	"path/filepath"
	"testing"

	"github.com/revred/sharc-core/internal/pager"
)

func openTestManager(t *testing.T) (*pager.Pager, *Manager) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cat.db")
	p, err := pager.Open(path, pager.Options{Writable: true})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { p.Close() })
	m, err := Open(p)
	if err != nil {
		t.Fatalf("catalog Open: %v", err)
	}
	return p, m
}

func TestCreateTableParsesColumnsAndPersists(t *testing.T) {
	p, m := openTestManager(t)
	if err := p.BeginTx(); err != nil {
		t.Fatalf("BeginTx: %v", err)
	}
	def, err := m.CreateTable(`CREATE TABLE users (id INTEGER PRIMARY KEY, name TEXT, balance FIX128, ext GUID)`)
	if err != nil {
		t.Fatalf("CreateTable: %v", err)
	}
	if err := p.CommitTx(); err != nil {
		t.Fatalf("CommitTx: %v", err)
	}
	if len(def.Columns) != 1+1+2+2 {
		t.Fatalf("expected 6 physical columns, got %d", len(def.Columns))
	}
	if len(def.Logical) != 4 {
		t.Fatalf("expected 4 logical columns, got %d", len(def.Logical))
	}
	lc, ok := def.PhysicalColumn("balance")
	if !ok || lc.Kind != LogicalFIX128 {
		t.Fatalf("expected balance to be a FIX128 logical column, got %+v ok=%v", lc, ok)
	}
}

func TestCreateTableDuplicateFails(t *testing.T) {
	p, m := openTestManager(t)
	if err := p.BeginTx(); err != nil {
		t.Fatalf("BeginTx: %v", err)
	}
	if _, err := m.CreateTable(`CREATE TABLE t (id INTEGER PRIMARY KEY)`); err != nil {
		t.Fatalf("CreateTable: %v", err)
	}
	if _, err := m.CreateTable(`CREATE TABLE t (id INTEGER PRIMARY KEY)`); err == nil {
		t.Fatalf("expected duplicate table creation to fail")
	}
	_ = p.CommitTx()
}

func TestSchemaSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cat.db")
	p, err := pager.Open(path, pager.Options{Writable: true})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	m, err := Open(p)
	if err != nil {
		t.Fatalf("catalog Open: %v", err)
	}
	if err := p.BeginTx(); err != nil {
		t.Fatalf("BeginTx: %v", err)
	}
	if _, err := m.CreateTable(`CREATE TABLE widgets (id INTEGER PRIMARY KEY, label TEXT)`); err != nil {
		t.Fatalf("CreateTable: %v", err)
	}
	if err := p.CommitTx(); err != nil {
		t.Fatalf("CommitTx: %v", err)
	}
	if err := p.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	p2, err := pager.Open(path, pager.Options{Writable: true})
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer p2.Close()
	m2, err := Open(p2)
	if err != nil {
		t.Fatalf("catalog reopen: %v", err)
	}
	def, ok := m2.Table("widgets")
	if !ok {
		t.Fatalf("expected widgets table to survive reopen")
	}
	if len(def.Columns) != 2 {
		t.Fatalf("expected 2 columns after reopen, got %d", len(def.Columns))
	}
}

func TestDropTableRemovesEntry(t *testing.T) {
	p, m := openTestManager(t)
	if err := p.BeginTx(); err != nil {
		t.Fatalf("BeginTx: %v", err)
	}
	if _, err := m.CreateTable(`CREATE TABLE t (id INTEGER PRIMARY KEY)`); err != nil {
		t.Fatalf("CreateTable: %v", err)
	}
	if err := m.DropTable("t"); err != nil {
		t.Fatalf("DropTable: %v", err)
	}
	if err := p.CommitTx(); err != nil {
		t.Fatalf("CommitTx: %v", err)
	}
	if _, ok := m.Table("t"); ok {
		t.Fatalf("expected t to be gone after DropTable")
	}
}
