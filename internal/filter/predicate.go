// Package filter implements the filter-star predicate AST, sargability
// analysis, and the compiled evaluators used by the executor. The evaluators
// test decoded record values; they do not compare a record's raw bytes.
//
// The cache shape (LRU over container/list, keyed by a composite hash) is
// grounded on the teacher's QueryCache (internal/engine/compile.go),
// adapted from caching parsed SQL statements to caching compiled plans
// keyed by (table, predicate shape, projection).
package filter

import "github.com/revred/sharc-core/internal/record"

// Op is a leaf comparison operator.
type Op int

const (
	OpEq Op = iota
	OpNeq
	OpLt
	OpLte
	OpGt
	OpGte
	OpBetween
	OpIn
	OpNotIn
	OpIsNull
	OpIsNotNull
	OpStartsWith
	OpEndsWith
	OpContains
)

// Logic is an internal AST node's boolean combinator.
type Logic int

const (
	LogicAnd Logic = iota
	LogicOr
	LogicNot
)

// Node is one node of the filter-star predicate tree: either a leaf
// comparison (Op set, Logic unused) or an internal boolean node (Logic set,
// Op unused).
type Node struct {
	IsLeaf bool

	// Leaf fields.
	Column string
	Op     Op
	Value  record.Value
	Values []record.Value // OpIn/OpNotIn/OpBetween (2 values: lo, hi)

	// Internal fields.
	Logic    Logic
	Children []*Node
}

// Leaf constructs a leaf comparison node.
func Leaf(column string, op Op, value record.Value) *Node {
	return &Node{IsLeaf: true, Column: column, Op: op, Value: value}
}

// Between constructs a BETWEEN leaf node.
func Between(column string, lo, hi record.Value) *Node {
	return &Node{IsLeaf: true, Column: column, Op: OpBetween, Values: []record.Value{lo, hi}}
}

// In constructs an IN (or NOT IN) leaf node.
func In(column string, values []record.Value, negate bool) *Node {
	op := OpIn
	if negate {
		op = OpNotIn
	}
	return &Node{IsLeaf: true, Column: column, Op: op, Values: values}
}

// And/Or/Not construct internal boolean nodes.
func And(children ...*Node) *Node { return &Node{Logic: LogicAnd, Children: children} }
func Or(children ...*Node) *Node  { return &Node{Logic: LogicOr, Children: children} }
func Not(child *Node) *Node       { return &Node{Logic: LogicNot, Children: []*Node{child}} }

// Columns returns every column name referenced anywhere in the tree,
// deduplicated, in first-seen order.
func (n *Node) Columns() []string {
	seen := map[string]bool{}
	var out []string
	var walk func(*Node)
	walk = func(n *Node) {
		if n == nil {
			return
		}
		if n.IsLeaf {
			if !seen[n.Column] {
				seen[n.Column] = true
				out = append(out, n.Column)
			}
			return
		}
		for _, c := range n.Children {
			walk(c)
		}
	}
	walk(n)
	return out
}
