// Package writer implements the single-writer mutation path: translating
// logical column values into physical column values (expanding GUID/FIX128
// merged columns), allocating rowids, maintaining the writer's lifecycle
// state machine, and committing/rolling back through the pager's
// transaction API.
//
// The state machine (Idle -> InTransaction -> Committing -> Idle, or
// InTransaction -> RollingBack -> Idle, with a terminal Disposed state that
// fails every subsequent call) is grounded on the teacher's own
// request-lifecycle discipline in storage/concurrency.go (WorkRequest ->
// WorkResult, with a Shutdown that fails further submissions), adapted from
// a worker-pool's request lifecycle to a single writer's transaction
// lifecycle.
package writer

import (
	"bytes"

	"github.com/revred/sharc-core/internal/btree"
	"github.com/revred/sharc-core/internal/catalog"
	"github.com/revred/sharc-core/internal/merged"
	"github.com/revred/sharc-core/internal/pager"
	"github.com/revred/sharc-core/internal/record"
	"github.com/revred/sharc-core/internal/sharcerr"
)

// State is the writer's current lifecycle state.
type State int

const (
	Idle State = iota
	InTransaction
	Committing
	RollingBack
	Disposed
)

// Row is one logical row keyed by column name, as supplied by a caller.
// Values absent from the map are stored as NULL.
type Row map[string]any

// Writer mutates exactly one database: it owns the pager's write
// transaction and the schema catalog, and exposes Insert/Update/Delete over
// logical rows.
type Writer struct {
	p     *pager.Pager
	cat   *catalog.Manager
	state State
}

// New returns a writer over an already-open, writable pager and its schema
// catalog.
func New(p *pager.Pager, cat *catalog.Manager) *Writer {
	return &Writer{p: p, cat: cat, state: Idle}
}

func (w *Writer) requireState(want State) error {
	if w.state == Disposed {
		return sharcerr.New(sharcerr.ObjectDisposed, "writer: disposed")
	}
	if w.state != want {
		return sharcerr.New(sharcerr.InvalidOperation, "writer: wrong state for operation")
	}
	return nil
}

// Begin starts a write transaction.
func (w *Writer) Begin() error {
	if err := w.requireState(Idle); err != nil {
		return err
	}
	if err := w.p.BeginTx(); err != nil {
		return err
	}
	w.state = InTransaction
	return nil
}

// Commit flushes and ends the current transaction.
func (w *Writer) Commit() error {
	if err := w.requireState(InTransaction); err != nil {
		return err
	}
	w.state = Committing
	if err := w.p.CommitTx(); err != nil {
		w.state = InTransaction
		return err
	}
	w.state = Idle
	return nil
}

// Rollback discards the current transaction's writes.
func (w *Writer) Rollback() error {
	if err := w.requireState(InTransaction); err != nil {
		return err
	}
	w.state = RollingBack
	if err := w.p.RollbackTx(); err != nil {
		w.state = InTransaction
		return err
	}
	w.state = Idle
	return nil
}

// Dispose permanently retires the writer; all further calls fail with
// sharcerr.ObjectDisposed.
func (w *Writer) Dispose() {
	w.state = Disposed
}

// CreateTable parses and persists a CREATE TABLE statement via the schema
// catalog, bumping the schema cookie on success.
func (w *Writer) CreateTable(ddl string) (*catalog.TableDef, error) {
	if err := w.requireState(InTransaction); err != nil {
		return nil, err
	}
	return w.cat.CreateTable(ddl)
}

// Insert writes row into table, allocating a rowid when the table declares
// no INTEGER PRIMARY KEY alias (or using the caller-supplied alias value
// otherwise), and maintains every secondary index built against table in
// the same transaction (spec §4.6 item 5). A WITHOUT ROWID table's own tree
// is clustered by its declared primary key instead of an internal rowid
// (spec §3.4/§4.3.3); the returned rowid is then a hidden bookkeeping value,
// not a column of the row.
func (w *Writer) Insert(table string, row Row) (int64, error) {
	if err := w.requireState(InTransaction); err != nil {
		return 0, err
	}
	def, ok := w.cat.Table(table)
	if !ok {
		return 0, sharcerr.New(sharcerr.NotFound, "writer: unknown table "+table)
	}
	phys, rowidAlias, haveRowIDAlias, err := buildPhysRow(def, row)
	if err != nil {
		return 0, err
	}

	tree := btree.Open(w.p, def.RootPage)
	if def.WithoutRowID {
		if _, _, err := lookupByKey(tree, def, row); err == nil {
			return 0, sharcerr.New(sharcerr.Constraint, "writer: duplicate primary key")
		} else if !sharcerr.Is(err, sharcerr.NotFound) {
			return 0, err
		}
		rowid := nextAutoRowIDClustered(tree)
		key, err := def.IndexKey(def.PrimaryKey, phys, rowid)
		if err != nil {
			return 0, err
		}
		if err := tree.InsertIndexEntryWithPayload(key, record.Encode(phys)); err != nil {
			return 0, err
		}
		return rowid, w.maintainIndexesInsert(def, phys, rowid)
	}

	rowid := rowidAlias
	if !haveRowIDAlias {
		rowid = nextAutoRowID(w.p, def)
	}
	if err := tree.Insert(rowid, record.Encode(phys)); err != nil {
		return 0, err
	}
	return rowid, w.maintainIndexesInsert(def, phys, rowid)
}

// InsertBatch inserts each of records into table, grouping them into
// transactions of commitInterval successful inserts and committing after
// every full group and once more at the end (spec §6.3). A non-positive
// commitInterval commits once, after the whole batch. An empty batch
// returns an empty slice without opening a transaction at all. Any insert
// failure rolls back the group it belongs to and returns the rowids
// committed so far alongside the error.
func (w *Writer) InsertBatch(table string, records []Row, commitInterval int) ([]int64, error) {
	if len(records) == 0 {
		return nil, nil
	}
	if commitInterval <= 0 {
		commitInterval = len(records)
	}

	rowids := make([]int64, 0, len(records))
	if err := w.Begin(); err != nil {
		return rowids, err
	}
	sinceCommit := 0
	committed := 0
	for _, rec := range records {
		rowid, err := w.Insert(table, rec)
		if err != nil {
			_ = w.Rollback()
			return rowids[:committed], err
		}
		rowids = append(rowids, rowid)
		sinceCommit++
		if sinceCommit == commitInterval {
			if err := w.Commit(); err != nil {
				return rowids, err
			}
			committed = len(rowids)
			sinceCommit = 0
			if err := w.Begin(); err != nil {
				return rowids, err
			}
		}
	}
	if sinceCommit > 0 {
		if err := w.Commit(); err != nil {
			return rowids, err
		}
	} else if err := w.Rollback(); err != nil {
		// The last group finished exactly on a commitInterval boundary;
		// the empty transaction opened for a next group still needs closing.
		return rowids, err
	}
	return rowids, nil
}

// Delete removes the row keyed by rowid from table. table must not be
// WITHOUT ROWID; use DeleteByKey for those.
func (w *Writer) Delete(table string, rowid int64) error {
	if err := w.requireState(InTransaction); err != nil {
		return err
	}
	def, ok := w.cat.Table(table)
	if !ok {
		return sharcerr.New(sharcerr.NotFound, "writer: unknown table "+table)
	}
	if def.WithoutRowID {
		return sharcerr.New(sharcerr.InvalidOperation, "writer: table is WITHOUT ROWID, use DeleteByKey")
	}
	tree := btree.Open(w.p, def.RootPage)
	c := btree.NewCursor(tree)
	found, err := c.SeekGE(rowid)
	if err != nil {
		return err
	}
	if !found {
		return sharcerr.New(sharcerr.NotFound, "writer: rowid not found")
	}
	current, err := c.Payload()
	if err != nil {
		return err
	}
	oldPhys, err := record.Decode(current)
	if err != nil {
		return err
	}
	if err := tree.Delete(rowid); err != nil {
		return err
	}
	return w.maintainIndexesDelete(def, oldPhys, rowid)
}

// Update rewrites the row keyed by rowid, merging changed into its current
// values (columns absent from changed are preserved), and keeps every
// secondary index on table consistent with the new values. table must not
// be WITHOUT ROWID; use UpdateByKey for those.
func (w *Writer) Update(table string, rowid int64, changed Row) error {
	if err := w.requireState(InTransaction); err != nil {
		return err
	}
	def, ok := w.cat.Table(table)
	if !ok {
		return sharcerr.New(sharcerr.NotFound, "writer: unknown table "+table)
	}
	if def.WithoutRowID {
		return sharcerr.New(sharcerr.InvalidOperation, "writer: table is WITHOUT ROWID, use UpdateByKey")
	}
	tree := btree.Open(w.p, def.RootPage)
	c := btree.NewCursor(tree)
	found, err := c.SeekGE(rowid)
	if err != nil {
		return err
	}
	if !found {
		return sharcerr.New(sharcerr.NotFound, "writer: rowid not found")
	}
	current, err := c.Payload()
	if err != nil {
		return err
	}
	oldPhys, err := record.Decode(current)
	if err != nil {
		return err
	}
	newPhys := append([]record.Value{}, oldPhys...)
	for _, lc := range def.Logical {
		v, present := changed[lc.Name]
		if !present {
			continue
		}
		if err := assignLogical(newPhys, lc, v); err != nil {
			return err
		}
	}
	if err := w.maintainIndexesDelete(def, oldPhys, rowid); err != nil {
		return err
	}
	if err := tree.Insert(rowid, record.Encode(newPhys)); err != nil {
		return err
	}
	return w.maintainIndexesInsert(def, newPhys, rowid)
}

// DeleteByKey removes the row matching keyValues's primary key columns from
// a WITHOUT ROWID table.
func (w *Writer) DeleteByKey(table string, keyValues Row) error {
	if err := w.requireState(InTransaction); err != nil {
		return err
	}
	def, ok := w.cat.Table(table)
	if !ok {
		return sharcerr.New(sharcerr.NotFound, "writer: unknown table "+table)
	}
	if !def.WithoutRowID {
		return sharcerr.New(sharcerr.InvalidOperation, "writer: table is not WITHOUT ROWID, use Delete")
	}
	tree := btree.Open(w.p, def.RootPage)
	storedKey, payload, err := lookupByKey(tree, def, keyValues)
	if err != nil {
		return err
	}
	rowPhys, err := record.Decode(payload)
	if err != nil {
		return err
	}
	rowid, _ := record.TrailingOrderedRowID(storedKey)
	if err := tree.DeleteIndexEntry(storedKey); err != nil {
		return err
	}
	return w.maintainIndexesDelete(def, rowPhys, rowid)
}

// UpdateByKey rewrites the row matching keyValues's primary key columns in a
// WITHOUT ROWID table, merging changed into its current values. Changing a
// primary key column moves the row to a new clustering position.
func (w *Writer) UpdateByKey(table string, keyValues Row, changed Row) error {
	if err := w.requireState(InTransaction); err != nil {
		return err
	}
	def, ok := w.cat.Table(table)
	if !ok {
		return sharcerr.New(sharcerr.NotFound, "writer: unknown table "+table)
	}
	if !def.WithoutRowID {
		return sharcerr.New(sharcerr.InvalidOperation, "writer: table is not WITHOUT ROWID, use Update")
	}
	tree := btree.Open(w.p, def.RootPage)
	storedKey, payload, err := lookupByKey(tree, def, keyValues)
	if err != nil {
		return err
	}
	oldPhys, err := record.Decode(payload)
	if err != nil {
		return err
	}
	rowid, _ := record.TrailingOrderedRowID(storedKey)
	newPhys := append([]record.Value{}, oldPhys...)
	for _, lc := range def.Logical {
		v, present := changed[lc.Name]
		if !present {
			continue
		}
		if err := assignLogical(newPhys, lc, v); err != nil {
			return err
		}
	}
	newKey, err := def.IndexKey(def.PrimaryKey, newPhys, rowid)
	if err != nil {
		return err
	}
	if err := w.maintainIndexesDelete(def, oldPhys, rowid); err != nil {
		return err
	}
	if err := tree.DeleteIndexEntry(storedKey); err != nil {
		return err
	}
	if err := tree.InsertIndexEntryWithPayload(newKey, record.Encode(newPhys)); err != nil {
		return err
	}
	return w.maintainIndexesInsert(def, newPhys, rowid)
}

// lookupByKey seeks a WITHOUT ROWID table's tree for the entry whose primary
// key matches keyValues, returning its full stored key (key prefix plus
// trailing hidden rowid) and row payload.
func lookupByKey(tree *btree.Tree, def *catalog.TableDef, keyValues Row) (storedKey, payload []byte, err error) {
	phys, _, _, err := buildPhysRow(def, keyValues)
	if err != nil {
		return nil, nil, err
	}
	prefix, err := def.IndexKeyPrefix(def.PrimaryKey, phys)
	if err != nil {
		return nil, nil, err
	}
	c := btree.NewCursor(tree)
	if _, err := c.SeekGEKey(prefix); err != nil {
		return nil, nil, err
	}
	if !c.Valid() {
		return nil, nil, sharcerr.New(sharcerr.NotFound, "writer: row not found")
	}
	storedKey, err = c.IndexKey()
	if err != nil {
		return nil, nil, err
	}
	if !bytes.HasPrefix(storedKey, prefix) {
		return nil, nil, sharcerr.New(sharcerr.NotFound, "writer: row not found")
	}
	payload, err = c.IndexPayload()
	if err != nil {
		return nil, nil, err
	}
	return storedKey, payload, nil
}

// buildPhysRow decodes row's logical column values into a freshly allocated
// physical column slice. rowidAlias/haveRowIDAlias report the table's
// INTEGER PRIMARY KEY alias value, if the table has one and row supplies it.
func buildPhysRow(def *catalog.TableDef, row Row) (phys []record.Value, rowidAlias int64, haveRowIDAlias bool, err error) {
	phys = make([]record.Value, len(def.Columns))
	for i := range phys {
		phys[i] = record.Null()
	}
	for _, lc := range def.Logical {
		v, present := row[lc.Name]
		if !present {
			continue
		}
		if err := assignLogical(phys, lc, v); err != nil {
			return nil, 0, false, err
		}
		if lc.IsRowIDAlias {
			rowidAlias = phys[lc.PhysIdx].I
			haveRowIDAlias = true
		}
	}
	return phys, rowidAlias, haveRowIDAlias, nil
}

// maintainIndexesInsert adds one index entry per index built against def to
// every secondary index, in the same transaction as the row's own write
// (spec §4.6 item 5).
func (w *Writer) maintainIndexesInsert(def *catalog.TableDef, phys []record.Value, rowid int64) error {
	for _, idx := range w.cat.IndexesFor(def.Name) {
		key, err := def.IndexKey(idx.Columns, phys, rowid)
		if err != nil {
			return err
		}
		tree := btree.Open(w.p, idx.RootPage)
		if err := tree.InsertIndexEntry(key); err != nil {
			return err
		}
	}
	return nil
}

// maintainIndexesDelete removes the entry a row contributed to every
// secondary index built against def.
func (w *Writer) maintainIndexesDelete(def *catalog.TableDef, phys []record.Value, rowid int64) error {
	for _, idx := range w.cat.IndexesFor(def.Name) {
		key, err := def.IndexKey(idx.Columns, phys, rowid)
		if err != nil {
			return err
		}
		tree := btree.Open(w.p, idx.RootPage)
		if err := tree.DeleteIndexEntry(key); err != nil {
			return err
		}
	}
	return nil
}

// assignLogical encodes v into phys's one or two physical slots backing lc.
func assignLogical(phys []record.Value, lc catalog.LogicalColumn, v any) error {
	switch lc.Kind {
	case catalog.LogicalGUID:
		s, ok := v.(string)
		if !ok {
			return sharcerr.New(sharcerr.InvalidArgument, "writer: GUID column requires a string value")
		}
		hi, lo, err := merged.ParseGUID(s)
		if err != nil {
			return err
		}
		phys[lc.PhysIdx] = record.Int(hi)
		phys[lc.PhysIdxLo] = record.Int(lo)
	case catalog.LogicalFIX128:
		s, ok := v.(string)
		if !ok {
			return sharcerr.New(sharcerr.InvalidArgument, "writer: FIX128 column requires a string value")
		}
		hi, lo, err := merged.ParseFIX128(s)
		if err != nil {
			return err
		}
		phys[lc.PhysIdx] = record.Int(hi)
		phys[lc.PhysIdxLo] = record.Int(lo)
	default:
		phys[lc.PhysIdx] = valueOf(v)
	}
	return nil
}

func valueOf(v any) record.Value {
	switch t := v.(type) {
	case nil:
		return record.Null()
	case int:
		return record.Int(int64(t))
	case int64:
		return record.Int(t)
	case float64:
		return record.Float(t)
	case string:
		return record.Text(t)
	case []byte:
		return record.Blob(t)
	default:
		return record.Null()
	}
}

// nextAutoRowID returns one past the current maximum rowid in table's tree
// (1 if empty), matching SQLite's default rowid allocation for tables
// without an explicit INTEGER PRIMARY KEY value supplied.
func nextAutoRowID(p *pager.Pager, def *catalog.TableDef) int64 {
	tree := btree.Open(p, def.RootPage)
	c := btree.NewCursor(tree)
	ok, err := c.Last()
	if err != nil || !ok {
		return 1
	}
	return c.RowID() + 1
}

// nextAutoRowIDClustered returns a hidden rowid to append to a WITHOUT ROWID
// table's clustering key, used only to totally order entries that share an
// identical declared primary key (which true uniqueness, enforced by the
// primary key itself, means never actually happens) -- so any monotonically
// increasing value serves, including one that collides after a delete.
// Walking to the tree's current last entry and decoding its trailing ordered
// rowid keeps the common case monotonic without a separate counter page.
func nextAutoRowIDClustered(tree *btree.Tree) int64 {
	c := btree.NewCursor(tree)
	ok, err := c.Last()
	if err != nil || !ok {
		return 1
	}
	key, err := c.IndexKey()
	if err != nil {
		return 1
	}
	rowid, ok := record.TrailingOrderedRowID(key)
	if !ok {
		return 1
	}
	return rowid + 1
}
