package filter

import (
	"container/list"
	"strings"
	"sync"

	"github.com/revred/sharc-core/internal/catalog"
	"github.com/revred/sharc-core/internal/merged"
	"github.com/revred/sharc-core/internal/record"
)

// Strategy names the scan plan chosen for a compiled predicate.
type Strategy int

const (
	// TableScan walks every row, evaluating the predicate per row.
	TableScan Strategy = iota
	// RowidAliasShortcut seeks directly to the rowid implied by an
	// equality predicate on the table's INTEGER PRIMARY KEY alias column.
	RowidAliasShortcut
	// SingleIndexSeek seeks a single secondary index built against a lone
	// equality predicate's column (spec §4.8's sargability analysis).
	SingleIndexSeek
	// RowIdIntersection seeks two or more single-column indexes for an
	// AND of equality predicates and intersects their rowid sets.
	RowIdIntersection
)

// IndexSeek names one secondary index and the seek key built from a
// predicate's literal value(s), ready for btree.Cursor.SeekGEKey.
type IndexSeek struct {
	Index *catalog.IndexDef
	Key   []byte
}

// Plan is a compiled predicate ready for row-at-a-time evaluation.
type Plan struct {
	Strategy      Strategy
	RowID         int64      // valid when Strategy == RowidAliasShortcut
	IndexSeek     *IndexSeek // valid when Strategy == SingleIndexSeek
	Intersections []IndexSeek
	pred          *Node
	def           *catalog.TableDef
}

// Evaluate reports whether row (decoded physical column values) satisfies
// the plan's predicate. A nil predicate matches every row.
func (p *Plan) Evaluate(row []record.Value) bool {
	if p.pred == nil {
		return true
	}
	return evalNode(p.pred, row, p.def)
}

func evalNode(n *Node, row []record.Value, def *catalog.TableDef) bool {
	if n == nil {
		return true
	}
	if !n.IsLeaf {
		switch n.Logic {
		case LogicAnd:
			for _, c := range n.Children {
				if !evalNode(c, row, def) {
					return false
				}
			}
			return true
		case LogicOr:
			for _, c := range n.Children {
				if evalNode(c, row, def) {
					return true
				}
			}
			return false
		case LogicNot:
			return !evalNode(n.Children[0], row, def)
		}
		return false
	}
	lc, ok := def.PhysicalColumn(n.Column)
	if !ok {
		// Not a logical column name -- try a merged column's synthetic
		// half-column name (e.g. "id__hi"), which addresses a single
		// physical int64 slot directly (spec §4.8 step 1).
		physIdx, ok2 := def.ResolvePhysical(n.Column)
		if !ok2 {
			return false
		}
		return evalPlainOp(n, row[physIdx])
	}
	switch lc.Kind {
	case catalog.LogicalGUID, catalog.LogicalFIX128:
		return evalMergedNode(n, row, lc)
	default:
		return evalPlainOp(n, row[lc.PhysIdx])
	}
}

// evalPlainOp evaluates n against a single physical value: every column
// that isn't a merged GUID/FIX128 pair, or one explicit half of one.
func evalPlainOp(n *Node, v record.Value) bool {
	switch n.Op {
	case OpIsNull:
		return v.Kind == record.KindNull
	case OpIsNotNull:
		return v.Kind != record.KindNull
	case OpEq:
		return compareValues(v, n.Value) == 0
	case OpNeq:
		return compareValues(v, n.Value) != 0
	case OpLt:
		return compareValues(v, n.Value) < 0
	case OpLte:
		return compareValues(v, n.Value) <= 0
	case OpGt:
		return compareValues(v, n.Value) > 0
	case OpGte:
		return compareValues(v, n.Value) >= 0
	case OpBetween:
		return compareValues(v, n.Values[0]) >= 0 && compareValues(v, n.Values[1]) <= 0
	case OpIn:
		for _, want := range n.Values {
			if compareValues(v, want) == 0 {
				return true
			}
		}
		return false
	case OpNotIn:
		for _, want := range n.Values {
			if compareValues(v, want) == 0 {
				return false
			}
		}
		return true
	case OpStartsWith:
		return len(v.S) >= len(n.Value.S) && v.S[:len(n.Value.S)] == n.Value.S
	case OpEndsWith:
		return len(v.S) >= len(n.Value.S) && v.S[len(v.S)-len(n.Value.S):] == n.Value.S
	case OpContains:
		return contains(v.S, n.Value.S)
	}
	return false
}

// evalMergedNode evaluates n against a merged GUID/FIX128 logical column,
// comparing both physical halves as a single 128-bit value instead of only
// the hi half (spec §4.8 step 1). Predicate literals are the same textual
// form merged.ParseGUID/ParseFIX128 accept.
func evalMergedNode(n *Node, row []record.Value, lc catalog.LogicalColumn) bool {
	hiVal, loVal := row[lc.PhysIdx], row[lc.PhysIdxLo]
	switch n.Op {
	case OpIsNull:
		return hiVal.Kind == record.KindNull
	case OpIsNotNull:
		return hiVal.Kind != record.KindNull
	}
	parse := func(s string) (hi, lo int64, err error) {
		if lc.Kind == catalog.LogicalFIX128 {
			return merged.ParseFIX128(s)
		}
		return merged.ParseGUID(s)
	}
	cmp := func(whi, wlo int64) int { return compareMergedHiLo(lc.Kind, hiVal.I, loVal.I, whi, wlo) }
	switch n.Op {
	case OpEq, OpNeq, OpLt, OpLte, OpGt, OpGte:
		whi, wlo, err := parse(n.Value.S)
		if err != nil {
			return false
		}
		c := cmp(whi, wlo)
		switch n.Op {
		case OpEq:
			return c == 0
		case OpNeq:
			return c != 0
		case OpLt:
			return c < 0
		case OpLte:
			return c <= 0
		case OpGt:
			return c > 0
		default: // OpGte
			return c >= 0
		}
	case OpBetween:
		lhi, llo, err1 := parse(n.Values[0].S)
		hhi, hlo, err2 := parse(n.Values[1].S)
		if err1 != nil || err2 != nil {
			return false
		}
		return cmp(lhi, llo) >= 0 && cmp(hhi, hlo) <= 0
	case OpIn:
		for _, want := range n.Values {
			if whi, wlo, err := parse(want.S); err == nil && cmp(whi, wlo) == 0 {
				return true
			}
		}
		return false
	case OpNotIn:
		for _, want := range n.Values {
			if whi, wlo, err := parse(want.S); err == nil && cmp(whi, wlo) == 0 {
				return false
			}
		}
		return true
	}
	return false
}

// compareMergedHiLo orders two (hi, lo) physical pairs for logical kind
// kind. FIX128 is a signed two's-complement 128-bit integer: hi compares as
// signed, lo as unsigned once hi is equal. GUID halves are raw big-endian
// bit patterns with no sign: both compare unsigned.
func compareMergedHiLo(kind catalog.LogicalKind, ahi, alo, bhi, blo int64) int {
	if kind == catalog.LogicalFIX128 {
		switch {
		case ahi < bhi:
			return -1
		case ahi > bhi:
			return 1
		}
		return compareUint64(uint64(alo), uint64(blo))
	}
	if c := compareUint64(uint64(ahi), uint64(bhi)); c != 0 {
		return c
	}
	return compareUint64(uint64(alo), uint64(blo))
}

func compareUint64(a, b uint64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func contains(haystack, needle string) bool {
	if needle == "" {
		return true
	}
	for i := 0; i+len(needle) <= len(haystack); i++ {
		if haystack[i:i+len(needle)] == needle {
			return true
		}
	}
	return false
}

// compareValues orders two values of the same logical type. NULLs sort
// before every non-NULL value.
func compareValues(a, b record.Value) int {
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
	case record.KindInt:
		bf := toFloat(b)
		switch {
		case float64(a.I) < bf:
			return -1
		case float64(a.I) > bf:
			return 1
		default:
			return 0
		}
	case record.KindFloat:
		bf := toFloat(b)
		switch {
		case a.F < bf:
			return -1
		case a.F > bf:
			return 1
		default:
			return 0
		}
	case record.KindText:
		switch {
		case a.S < b.S:
			return -1
		case a.S > b.S:
			return 1
		default:
			return 0
		}
	case record.KindBlob:
		return compareBytes(a.B, b.B)
	}
	return 0
}

func toFloat(v record.Value) float64 {
	if v.Kind == record.KindInt {
		return float64(v.I)
	}
	return v.F
}

func compareBytes(a, b []byte) int {
	for i := 0; i < len(a) && i < len(b); i++ {
		if a[i] != b[i] {
			if a[i] < b[i] {
				return -1
			}
			return 1
		}
	}
	switch {
	case len(a) < len(b):
		return -1
	case len(a) > len(b):
		return 1
	default:
		return 0
	}
}

// Compile analyzes pred against def's schema and the table's secondary
// indexes, choosing the cheapest scan strategy available (spec §4.8): a
// single equality on the table's INTEGER PRIMARY KEY alias column seeks
// directly by rowid; a single equality on an indexed column seeks that
// index; an AND of equalities each covered by a distinct single-column
// index intersects their rowid sets; everything else falls back to a table
// scan.
func Compile(def *catalog.TableDef, pred *Node, indexes []*catalog.IndexDef) *Plan {
	if pred != nil && pred.IsLeaf && pred.Op == OpEq {
		if lc, ok := def.PhysicalColumn(pred.Column); ok && lc.IsRowIDAlias {
			return &Plan{Strategy: RowidAliasShortcut, RowID: pred.Value.I, pred: pred, def: def}
		}
	}
	if def.WithoutRowID {
		// Secondary-index seeks recover rows by table rowid
		// (executor.collectByRowIDs); a WITHOUT ROWID table's own tree has
		// no such rowid to seek by, so index-assisted plans are not
		// produced for it here. Point lookups on its declared primary key
		// go through writer.DeleteByKey/UpdateByKey instead. See DESIGN.md.
		return &Plan{Strategy: TableScan, pred: pred, def: def}
	}
	if seek := singleIndexSeek(def, pred, indexes); seek != nil {
		return &Plan{Strategy: SingleIndexSeek, IndexSeek: seek, pred: pred, def: def}
	}
	if seeks := intersectionSeeks(def, pred, indexes); len(seeks) >= 2 {
		return &Plan{Strategy: RowIdIntersection, Intersections: seeks, pred: pred, def: def}
	}
	return &Plan{Strategy: TableScan, pred: pred, def: def}
}

func eqLeaf(n *Node) bool { return n != nil && n.IsLeaf && n.Op == OpEq }

func findSingleColumnIndex(indexes []*catalog.IndexDef, column string) *catalog.IndexDef {
	for _, idx := range indexes {
		if len(idx.Columns) == 1 && strings.EqualFold(idx.Columns[0], column) {
			return idx
		}
	}
	return nil
}

// buildSeekPhys returns a physical-column-indexed row with only the columns
// named in columnValues populated, suitable for TableDef.IndexKeyPrefix
// (which addresses values by physical index, not by the seek's own column
// order).
func buildSeekPhys(def *catalog.TableDef, columnValues map[string]record.Value) []record.Value {
	phys := make([]record.Value, len(def.Columns))
	for i := range phys {
		phys[i] = record.Null()
	}
	for col, v := range columnValues {
		if lc, ok := def.PhysicalColumn(col); ok {
			phys[lc.PhysIdx] = v
		}
	}
	return phys
}

func singleIndexSeek(def *catalog.TableDef, pred *Node, indexes []*catalog.IndexDef) *IndexSeek {
	if !eqLeaf(pred) {
		return nil
	}
	idx := findSingleColumnIndex(indexes, pred.Column)
	if idx == nil {
		return nil
	}
	phys := buildSeekPhys(def, map[string]record.Value{pred.Column: pred.Value})
	key, err := def.IndexKeyPrefix(idx.Columns, phys)
	if err != nil {
		return nil
	}
	return &IndexSeek{Index: idx, Key: key}
}

func intersectionSeeks(def *catalog.TableDef, pred *Node, indexes []*catalog.IndexDef) []IndexSeek {
	if pred == nil || pred.IsLeaf || pred.Logic != LogicAnd {
		return nil
	}
	var seeks []IndexSeek
	for _, c := range pred.Children {
		if !eqLeaf(c) {
			continue
		}
		idx := findSingleColumnIndex(indexes, c.Column)
		if idx == nil {
			continue
		}
		phys := buildSeekPhys(def, map[string]record.Value{c.Column: c.Value})
		key, err := def.IndexKeyPrefix(idx.Columns, phys)
		if err != nil {
			continue
		}
		seeks = append(seeks, IndexSeek{Index: idx, Key: key})
	}
	return seeks
}

// cacheEntry pairs a plan-cache key with its compiled plan for LRU tracking.
type cacheEntry struct {
	key  string
	plan *Plan
}

// PlanCache caches compiled plans keyed by (table, predicate shape,
// projection), evicting least-recently-used entries once full. Grounded on
// the teacher's container/list-based QueryCache.
type PlanCache struct {
	mu      sync.RWMutex
	entries map[string]*list.Element
	order   *list.List
	maxSize int
}

// NewPlanCache returns a cache holding at most maxSize plans (a
// non-positive size defaults to 256).
func NewPlanCache(maxSize int) *PlanCache {
	if maxSize <= 0 {
		maxSize = 256
	}
	return &PlanCache{entries: make(map[string]*list.Element), order: list.New(), maxSize: maxSize}
}

// GetOrCompile returns the cached plan for key, compiling and caching a new
// one via build if absent.
func (c *PlanCache) GetOrCompile(key string, build func() *Plan) *Plan {
	c.mu.RLock()
	if elem, ok := c.entries[key]; ok {
		c.mu.RUnlock()
		c.mu.Lock()
		c.order.MoveToFront(elem)
		c.mu.Unlock()
		return elem.Value.(*cacheEntry).plan
	}
	c.mu.RUnlock()

	plan := build()

	c.mu.Lock()
	defer c.mu.Unlock()
	if elem, ok := c.entries[key]; ok {
		c.order.MoveToFront(elem)
		return elem.Value.(*cacheEntry).plan
	}
	if c.order.Len() >= c.maxSize {
		if tail := c.order.Back(); tail != nil {
			c.order.Remove(tail)
			delete(c.entries, tail.Value.(*cacheEntry).key)
		}
	}
	elem := c.order.PushFront(&cacheEntry{key: key, plan: plan})
	c.entries[key] = elem
	return plan
}

// Size reports how many plans are currently cached.
func (c *PlanCache) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
