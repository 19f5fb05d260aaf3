package executor

import "container/heap"

// rowLess reports whether a sorts before b per keys, using the same
// left-to-right tie-breaking as sortRows.
func rowLess(a, b Row, keys []OrderKey) bool {
	for _, k := range keys {
		c := compareRowValues(a[k.Column], b[k.Column])
		if c == 0 {
			continue
		}
		if k.Dir == Desc {
			return c > 0
		}
		return c < 0
	}
	return false
}

// rowHeap is a bounded max-heap over at most k rows, where "max" means
// worst-ranked per keys: the root (rows[0]) is always the current kept row
// that would sort last, so topK can evict it in O(log k) when a better row
// arrives instead of resorting the whole set.
type rowHeap struct {
	rows []Row
	keys []OrderKey
}

func (h *rowHeap) Len() int { return len(h.rows) }

// Less inverts rowLess: the worst-ranked row (the one that sorts last under
// keys) is the heap's minimum, so it lands at the root.
func (h *rowHeap) Less(i, j int) bool { return rowLess(h.rows[j], h.rows[i], h.keys) }
func (h *rowHeap) Swap(i, j int)      { h.rows[i], h.rows[j] = h.rows[j], h.rows[i] }
func (h *rowHeap) Push(x any)         { h.rows = append(h.rows, x.(Row)) }
func (h *rowHeap) Pop() any {
	old := h.rows
	n := len(old)
	item := old[n-1]
	h.rows = old[:n-1]
	return item
}

// topK returns the k rows that sort first per keys, using a bounded
// max-heap of size k rather than sorting every row in rows. Ties beyond the
// k-th position are broken arbitrarily by input order, same as a stable
// sort followed by a slice to k would not guarantee beyond k anyway.
func topK(rows []Row, keys []OrderKey, k int) []Row {
	if k <= 0 || k >= len(rows) {
		sorted := append([]Row{}, rows...)
		sortRows(sorted, keys)
		if k > 0 && k < len(sorted) {
			return sorted[:k]
		}
		return sorted
	}
	h := &rowHeap{keys: keys}
	for _, r := range rows {
		if h.Len() < k {
			heap.Push(h, r)
			continue
		}
		if rowLess(r, h.rows[0], keys) {
			h.rows[0] = r
			heap.Fix(h, 0)
		}
	}
	out := make([]Row, h.Len())
	copy(out, h.rows)
	sortRows(out, keys)
	return out
}
