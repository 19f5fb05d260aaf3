// Package executor runs compiled filter plans over a table's B-tree and
// applies projection, ordering, grouping/aggregation, set operations, and
// pagination, collecting per-execution diagnostics counters.
//
// The diagnostics shape (reset per execution, counting scanned vs returned
// rows and the chosen strategy) is grounded on the teacher's
// ExecEnv/ResultSet pattern (internal/engine/exec.go), adapted from a
// SQL-statement executor to this engine's programmatic Query struct.
package executor

import (
	"bytes"
	"sort"
	"strconv"

	"github.com/revred/sharc-core/internal/btree"
	"github.com/revred/sharc-core/internal/catalog"
	"github.com/revred/sharc-core/internal/filter"
	"github.com/revred/sharc-core/internal/pager"
	"github.com/revred/sharc-core/internal/record"
	"github.com/revred/sharc-core/internal/sharcerr"
)

// Row is one result row keyed by logical column name.
type Row map[string]record.Value

// SortDir is an ORDER BY column's direction.
type SortDir int

const (
	Asc SortDir = iota
	Desc
)

// OrderKey is one ORDER BY term.
type OrderKey struct {
	Column string
	Dir    SortDir
}

// AggFunc names a supported aggregate function.
type AggFunc int

const (
	AggCount AggFunc = iota
	AggCountStar
	AggSum
	AggAvg
	AggMin
	AggMax
)

// Aggregate is one SELECT-list aggregate term.
type Aggregate struct {
	Func   AggFunc
	Column string
	Alias  string
}

// SetOp names a binary set combinator over two queries' results.
type SetOp int

const (
	Union SetOp = iota
	UnionAll
	Intersect
	Except
)

// Query describes one read over a single table.
type Query struct {
	Table      string
	Pred       *filter.Node
	Projection []string // logical columns to return; nil means all
	GroupBy    []string
	Aggregates []Aggregate
	OrderBy    []OrderKey
	Distinct   bool
	Limit      int // 0 means unbounded; combined with OrderBy, selected via a bounded Top-K heap (see topk.go)
	Offset     int
	AfterRowID *int64 // cursor pagination: only rows with RowID > *AfterRowID

	// Combine, when set, applies a set operator across this query's own
	// result set and CombineWith's (executed independently, over its own
	// table), before this query's own Distinct/OrderBy/Limit/Offset are
	// applied to the combined set.
	Combine     *SetOp
	CombineWith *Query
}

// Diagnostics records one execution's scan statistics, reset at the start
// of every Execute call.
type Diagnostics struct {
	ScannedRows         int64
	ReturnedRows        int64
	IndexEntriesScanned int64
	IndexHits           int64
	Strategy            string
}

// Executor runs queries against one open database.
type Executor struct {
	p    *pager.Pager
	cat  *catalog.Manager
	Diag Diagnostics
}

// New returns an executor bound to an open pager and schema catalog.
func New(p *pager.Pager, cat *catalog.Manager) *Executor {
	return &Executor{p: p, cat: cat}
}

type scanned struct {
	rowid int64
	row   Row
}

// Execute runs q and returns its result rows in final (ordered, grouped,
// paginated) order. If q.Combine is set, q's own rows are combined with
// q.CombineWith's (a fully independent sub-query, run and finished on its
// own terms) via the named set operator before q's Distinct/OrderBy/Limit
// are applied to the combined set (spec's UNION/INTERSECT/EXCEPT scenario).
func (e *Executor) Execute(q Query) ([]Row, error) {
	e.Diag = Diagnostics{}
	def, ok := e.cat.Table(q.Table)
	if !ok {
		return nil, sharcerr.New(sharcerr.NotFound, "executor: unknown table "+q.Table)
	}

	indexes := e.cat.IndexesFor(q.Table)
	plan := filter.Compile(def, q.Pred, indexes)
	e.Diag.Strategy = strategyName(plan.Strategy)

	rows, err := e.scan(def, plan, q.AfterRowID)
	if err != nil {
		return nil, err
	}

	var projected []Row
	if len(q.GroupBy) > 0 || len(q.Aggregates) > 0 {
		projected = groupAndAggregate(rows, q.GroupBy, q.Aggregates, def)
	} else {
		projected = make([]Row, len(rows))
		for i, r := range rows {
			projected[i] = project(r.row, q.Projection)
		}
	}

	if q.Combine != nil && q.CombineWith != nil {
		ownDiag := e.Diag
		right, err := e.Execute(*q.CombineWith)
		if err != nil {
			return nil, err
		}
		ownDiag.ScannedRows += e.Diag.ScannedRows
		ownDiag.IndexEntriesScanned += e.Diag.IndexEntriesScanned
		ownDiag.IndexHits += e.Diag.IndexHits
		e.Diag = ownDiag
		projected = CombineSets(*q.Combine, projected, right)
	}

	return e.finish(projected, q)
}

func strategyName(s filter.Strategy) string {
	switch s {
	case filter.RowidAliasShortcut:
		return "RowidAliasShortcut"
	case filter.SingleIndexSeek:
		return "SingleIndexSeek"
	case filter.RowIdIntersection:
		return "RowIdIntersection"
	default:
		return "TableScan"
	}
}

func (e *Executor) finish(rows []Row, q Query) ([]Row, error) {
	if q.Distinct {
		rows = dedupe(rows)
	}
	switch {
	case len(q.OrderBy) > 0 && q.Limit > 0 && q.Offset == 0:
		// A bounded Top-K heap avoids sorting every matched row when only
		// a small prefix of the ordering is wanted.
		rows = topK(rows, q.OrderBy, q.Limit)
	case len(q.OrderBy) > 0:
		sortRows(rows, q.OrderBy)
	}
	rows = paginate(rows, q.Limit, q.Offset)
	e.Diag.ReturnedRows = int64(len(rows))
	return rows, nil
}

func (e *Executor) scan(def *catalog.TableDef, plan *filter.Plan, afterRowID *int64) ([]scanned, error) {
	tree := btree.Open(e.p, def.RootPage)
	var out []scanned

	collect := func(rowid int64, payload []byte) error {
		if afterRowID != nil && rowid <= *afterRowID {
			return nil
		}
		e.Diag.ScannedRows++
		values, err := record.Decode(payload)
		if err != nil {
			return err
		}
		if !plan.Evaluate(values) {
			return nil
		}
		out = append(out, scanned{rowid: rowid, row: rowToLogical(values, def)})
		return nil
	}

	switch plan.Strategy {
	case filter.RowidAliasShortcut:
		c := btree.NewCursor(tree)
		found, err := c.SeekGE(plan.RowID)
		if err != nil {
			return nil, err
		}
		if found && c.RowID() == plan.RowID {
			payload, err := c.Payload()
			if err != nil {
				return nil, err
			}
			if err := collect(c.RowID(), payload); err != nil {
				return nil, err
			}
		}
		return out, nil
	case filter.SingleIndexSeek:
		rowids, err := e.seekIndexRowIDs(*plan.IndexSeek)
		if err != nil {
			return nil, err
		}
		if err := e.collectByRowIDs(tree, rowids, collect); err != nil {
			return nil, err
		}
		return out, nil
	case filter.RowIdIntersection:
		rowids, err := e.intersectIndexRowIDs(plan.Intersections)
		if err != nil {
			return nil, err
		}
		if err := e.collectByRowIDs(tree, rowids, collect); err != nil {
			return nil, err
		}
		return out, nil
	}

	c := btree.NewCursor(tree)
	var ok bool
	var err error
	if afterRowID != nil {
		_, err = c.SeekGE(*afterRowID + 1)
		ok = c.Valid()
	} else {
		ok, err = c.First()
	}
	if err != nil {
		return nil, err
	}
	for ok {
		payload, perr := c.Payload()
		if perr != nil {
			return nil, perr
		}
		if err := collect(c.RowID(), payload); err != nil {
			return nil, err
		}
		ok, err = c.Next()
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

// seekIndexRowIDs walks seek.Index's tree from seek.Key, collecting the
// rowid of every entry whose key carries seek.Key as a prefix (spec §4.3.3's
// index cursor seek, stopping at the first non-matching entry since index
// entries are byte-ordered).
func (e *Executor) seekIndexRowIDs(seek filter.IndexSeek) ([]int64, error) {
	idxTree := btree.Open(e.p, seek.Index.RootPage)
	c := btree.NewCursor(idxTree)
	if _, err := c.SeekGEKey(seek.Key); err != nil {
		return nil, err
	}
	var rowids []int64
	for c.Valid() {
		key, err := c.IndexKey()
		if err != nil {
			return nil, err
		}
		if !bytes.HasPrefix(key, seek.Key) {
			break
		}
		e.Diag.IndexEntriesScanned++
		if rowid, ok := record.TrailingOrderedRowID(key); ok {
			e.Diag.IndexHits++
			rowids = append(rowids, rowid)
		}
		ok, err := c.Next()
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
	}
	return rowids, nil
}

// intersectIndexRowIDs seeks every seek independently and returns the rowids
// common to all of them, in ascending order (RowIdIntersection strategy).
func (e *Executor) intersectIndexRowIDs(seeks []filter.IndexSeek) ([]int64, error) {
	if len(seeks) == 0 {
		return nil, nil
	}
	result := map[int64]bool{}
	first, err := e.seekIndexRowIDs(seeks[0])
	if err != nil {
		return nil, err
	}
	for _, r := range first {
		result[r] = true
	}
	for _, s := range seeks[1:] {
		rowids, err := e.seekIndexRowIDs(s)
		if err != nil {
			return nil, err
		}
		present := make(map[int64]bool, len(rowids))
		for _, r := range rowids {
			present[r] = true
		}
		for r := range result {
			if !present[r] {
				delete(result, r)
			}
		}
	}
	out := make([]int64, 0, len(result))
	for r := range result {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

// collectByRowIDs looks up each of rowids in tree (the table's own rowid-
// keyed tree) and feeds its payload to collect, skipping any rowid no
// longer present (a stale index entry from a concurrent modification is out
// of scope for this single-writer engine, but defensive all the same).
func (e *Executor) collectByRowIDs(tree *btree.Tree, rowids []int64, collect func(int64, []byte) error) error {
	c := btree.NewCursor(tree)
	for _, rowid := range rowids {
		found, err := c.SeekGE(rowid)
		if err != nil {
			return err
		}
		if !found || c.RowID() != rowid {
			continue
		}
		payload, err := c.Payload()
		if err != nil {
			return err
		}
		if err := collect(rowid, payload); err != nil {
			return err
		}
	}
	return nil
}

func rowToLogical(values []record.Value, def *catalog.TableDef) Row {
	row := make(Row, len(def.Logical))
	for _, lc := range def.Logical {
		switch lc.Kind {
		case catalog.LogicalGUID, catalog.LogicalFIX128:
			// Merged columns are exposed to callers pre-split; reassembly
			// into their textual form is the writer/sharc facade's job
			// (it owns the merged codec choice), so both physical halves
			// are surfaced here under synthetic names.
			row[lc.Name+"__hi"] = values[lc.PhysIdx]
			row[lc.Name+"__lo"] = values[lc.PhysIdxLo]
		default:
			row[lc.Name] = values[lc.PhysIdx]
		}
	}
	return row
}

func project(row Row, cols []string) Row {
	if cols == nil {
		return row
	}
	out := make(Row, len(cols))
	for _, c := range cols {
		out[c] = row[c]
	}
	return out
}

func dedupe(rows []Row) []Row {
	seen := map[string]bool{}
	out := rows[:0]
	for _, r := range rows {
		key := rowKey(r)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, r)
	}
	return out
}

func rowKey(r Row) string {
	cols := make([]string, 0, len(r))
	for c := range r {
		cols = append(cols, c)
	}
	sort.Strings(cols)
	key := ""
	for _, c := range cols {
		key += c + "=" + valueKey(r[c]) + "|"
	}
	return key
}

func valueKey(v record.Value) string {
	switch v.Kind {
	case record.KindNull:
		return "<null>"
	case record.KindInt:
		return "i:" + strconv.FormatInt(v.I, 10)
	case record.KindFloat:
		return "f:" + strconv.FormatFloat(v.F, 'g', -1, 64)
	case record.KindText:
		return "t:" + v.S
	case record.KindBlob:
		return "b:" + string(v.B)
	}
	return ""
}

func sortRows(rows []Row, keys []OrderKey) {
	sort.SliceStable(rows, func(i, j int) bool {
		for _, k := range keys {
			c := compareRowValues(rows[i][k.Column], rows[j][k.Column])
			if c == 0 {
				continue
			}
			if k.Dir == Desc {
				return c > 0
			}
			return c < 0
		}
		return false
	})
}

func compareRowValues(a, b record.Value) int {
	if a.Kind == record.KindNull && b.Kind == record.KindNull {
		return 0
	}
	if a.Kind == record.KindNull {
		return -1
	}
	if b.Kind == record.KindNull {
		return 1
	}
	switch a.Kind {
	case record.KindText:
		switch {
		case a.S < b.S:
			return -1
		case a.S > b.S:
			return 1
		}
		return 0
	default:
		af, bf := numeric(a), numeric(b)
		switch {
		case af < bf:
			return -1
		case af > bf:
			return 1
		}
		return 0
	}
}

func numeric(v record.Value) float64 {
	if v.Kind == record.KindInt {
		return float64(v.I)
	}
	return v.F
}

func paginate(rows []Row, limit, offset int) []Row {
	if offset > 0 {
		if offset >= len(rows) {
			return nil
		}
		rows = rows[offset:]
	}
	if limit > 0 && limit < len(rows) {
		rows = rows[:limit]
	}
	return rows
}
