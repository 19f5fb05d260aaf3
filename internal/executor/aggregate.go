package executor

import (
	"sort"

	"github.com/revred/sharc-core/internal/catalog"
	"github.com/revred/sharc-core/internal/record"
)

// groupAndAggregate partitions rows by their GroupBy column values (an
// empty GroupBy yields a single group over everything, matching plain
// aggregate queries with no GROUP BY clause) and computes each requested
// aggregate per group. NULLs are skipped by every aggregate except
// AggCountStar, and COUNT(*) over zero input rows still returns one row
// with count 0 (the redesigned zero-rows behavior this engine specifies,
// rather than returning no rows at all).
func groupAndAggregate(rows []scanned, groupBy []string, aggs []Aggregate, def *catalog.TableDef) []Row {
	if len(groupBy) == 0 {
		return []Row{aggregateGroup(extractRows(rows), aggs)}
	}

	order := []string{}
	groups := map[string][]Row{}
	keyToValues := map[string]Row{}
	for _, s := range rows {
		key := groupKey(s.row, groupBy)
		if _, seen := groups[key]; !seen {
			order = append(order, key)
			keyToValues[key] = project(s.row, groupBy)
		}
		groups[key] = append(groups[key], s.row)
	}
	sort.Strings(order)

	out := make([]Row, 0, len(order))
	for _, key := range order {
		result := aggregateGroup(groups[key], aggs)
		for col, v := range keyToValues[key] {
			result[col] = v
		}
		out = append(out, result)
	}
	return out
}

func extractRows(rows []scanned) []Row {
	out := make([]Row, len(rows))
	for i, s := range rows {
		out[i] = s.row
	}
	return out
}

func groupKey(row Row, cols []string) string {
	key := ""
	for _, c := range cols {
		key += c + "=" + valueKey(row[c]) + "|"
	}
	return key
}

func aggregateGroup(rows []Row, aggs []Aggregate) Row {
	out := Row{}
	for _, a := range aggs {
		name := a.Alias
		if name == "" {
			name = aggDefaultName(a)
		}
		out[name] = computeAggregate(a, rows)
	}
	return out
}

func aggDefaultName(a Aggregate) string {
	switch a.Func {
	case AggCountStar:
		return "count_star"
	case AggCount:
		return "count_" + a.Column
	case AggSum:
		return "sum_" + a.Column
	case AggAvg:
		return "avg_" + a.Column
	case AggMin:
		return "min_" + a.Column
	case AggMax:
		return "max_" + a.Column
	}
	return "agg"
}

func computeAggregate(a Aggregate, rows []Row) record.Value {
	switch a.Func {
	case AggCountStar:
		return record.Int(int64(len(rows)))
	case AggCount:
		n := int64(0)
		for _, r := range rows {
			if v, ok := r[a.Column]; ok && v.Kind != record.KindNull {
				n++
			}
		}
		return record.Int(n)
	case AggSum, AggAvg:
		sum := 0.0
		n := 0
		allInt := true
		for _, r := range rows {
			v, ok := r[a.Column]
			if !ok || v.Kind == record.KindNull {
				continue
			}
			n++
			if v.Kind == record.KindInt {
				sum += float64(v.I)
			} else {
				allInt = false
				sum += v.F
			}
		}
		if a.Func == AggSum {
			if allInt {
				return record.Int(int64(sum))
			}
			return record.Float(sum)
		}
		if n == 0 {
			return record.Null()
		}
		return record.Float(sum / float64(n))
	case AggMin, AggMax:
		var best *record.Value
		for _, r := range rows {
			v, ok := r[a.Column]
			if !ok || v.Kind == record.KindNull {
				continue
			}
			if best == nil {
				vv := v
				best = &vv
				continue
			}
			c := compareRowValues(v, *best)
			if (a.Func == AggMin && c < 0) || (a.Func == AggMax && c > 0) {
				vv := v
				best = &vv
			}
		}
		if best == nil {
			return record.Null()
		}
		return *best
	}
	return record.Null()
}

// CombineSets applies a binary set operator across two already-computed
// result sets (e.g. two queries' Execute output).
func CombineSets(op SetOp, a, b []Row) []Row {
	switch op {
	case UnionAll:
		return append(append([]Row{}, a...), b...)
	case Union:
		return dedupe(append(append([]Row{}, a...), b...))
	case Intersect:
		bKeys := map[string]bool{}
		for _, r := range b {
			bKeys[rowKey(r)] = true
		}
		var out []Row
		seen := map[string]bool{}
		for _, r := range a {
			k := rowKey(r)
			if bKeys[k] && !seen[k] {
				seen[k] = true
				out = append(out, r)
			}
		}
		return out
	case Except:
		bKeys := map[string]bool{}
		for _, r := range b {
			bKeys[rowKey(r)] = true
		}
		var out []Row
		seen := map[string]bool{}
		for _, r := range a {
			k := rowKey(r)
			if !bKeys[k] && !seen[k] {
				seen[k] = true
				out = append(out, r)
			}
		}
		return out
	}
	return nil
}
