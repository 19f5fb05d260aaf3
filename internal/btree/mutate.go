package btree

import (
	"github.com/revred/sharc-core/internal/btreefmt"
	"github.com/revred/sharc-core/internal/pager"
	"github.com/revred/sharc-core/internal/sharcerr"
)

// minFillNumerator/minFillDenominator set the floor, as a fraction of the
// page size (see minSize), below which a leaf (other than the root) tries
// to borrow from or merge with a sibling on delete, targeting the spec's
// >=40% fill discipline (§4.3) without needing an exact byte accounting.
const minFillNumerator, minFillDenominator = 2, 5

// sep is an interior separator key: either the int64 rowid a table
// interior cell carries, or the raw byte key an index interior cell
// carries. Carrying both kinds through one type lets the split/merge/
// borrow machinery below be shared verbatim between table and index
// trees instead of duplicated per key kind.
type sep struct {
	rowid int64
	key   []byte
}

// encodeInterior builds an interior cell of typ (table or index) pointing
// at leftChild with separator s.
func encodeInterior(typ pager.PageType, leftChild uint32, s sep, usable int) []byte {
	if typ == pager.PageInteriorIndex {
		return btreefmt.EncodeIndexInteriorCell(leftChild, s.key, usable)
	}
	return btreefmt.EncodeTableInteriorCell(leftChild, s.rowid)
}

// decodeInterior is the inverse of encodeInterior.
func decodeInterior(typ pager.PageType, cell []byte, usable int) (leftChild uint32, s sep) {
	if typ == pager.PageInteriorIndex {
		c, _, _ := btreefmt.DecodeIndexInteriorCell(cell, usable)
		return c.LeftChild, sep{key: c.Local}
	}
	c, _, _ := btreefmt.DecodeTableInteriorCell(cell)
	return c.LeftChild, sep{rowid: c.RowID}
}

// leafLastSep returns the separator a parent should use to describe n's
// current last cell (table rowid or index key, depending on n's type).
func leafLastSep(n *node) sep {
	last := len(n.cells) - 1
	if n.typ == pager.PageLeafIndex {
		return sep{key: n.indexKeyAt(last)}
	}
	return sep{rowid: n.rowIDAt(last)}
}

// interiorTypeFor returns the interior page type that roots a tree of leaf
// (or interior) type t.
func interiorTypeFor(t pager.PageType) pager.PageType {
	if t == pager.PageLeafIndex || t == pager.PageInteriorIndex {
		return pager.PageInteriorIndex
	}
	return pager.PageInteriorTable
}

// descend walks from the root to the leaf that would hold rowid, recording
// the interior frames taken along the way so splits/merges can propagate
// back up.
func (t *Tree) descend(rowid int64) ([]frame, *node, error) {
	n, err := t.loadRoot()
	if err != nil {
		return nil, nil, err
	}
	var path []frame
	for !n.typ.IsLeaf() {
		idx := n.findChildTable(rowid)
		path = append(path, frame{n: n, idx: idx})
		n, err = loadNode(t.p, n.childPage(idx))
		if err != nil {
			return nil, nil, err
		}
	}
	return path, n, nil
}

// descendIndex is descend for byte-ordered index keys.
func (t *Tree) descendIndex(key []byte) ([]frame, *node, error) {
	n, err := t.loadRoot()
	if err != nil {
		return nil, nil, err
	}
	var path []frame
	for !n.typ.IsLeaf() {
		idx := n.findChildIndex(key)
		path = append(path, frame{n: n, idx: idx})
		n, err = loadNode(t.p, n.childPage(idx))
		if err != nil {
			return nil, nil, err
		}
	}
	return path, n, nil
}

// Insert adds or replaces the row keyed by rowid with payload.
func (t *Tree) Insert(rowid int64, payload []byte) error {
	path, leaf, err := t.descend(rowid)
	if err != nil {
		return err
	}
	cellBytes, err := btreefmt.AssembleTableLeafCell(t.p, rowid, payload)
	if err != nil {
		return err
	}
	idx, found := leaf.leafFind(rowid)
	if found {
		old, _, err := btreefmt.DecodeTableLeafCell(leaf.cells[idx], leaf.usable)
		if err == nil && old.OverflowPage != 0 {
			_ = btreefmt.FreeOverflowChain(t.p, old.OverflowPage)
		}
		leaf.cells[idx] = cellBytes
	} else {
		leaf.cells = insertCellAt(leaf.cells, idx, cellBytes)
	}
	return t.rebalanceUp(path, leaf)
}

// InsertIndexEntry adds key to an index tree, with no associated payload.
// key is the full encoded index entry (indexed columns followed by the
// row's rowid, per internal/writer), which already makes every entry
// unique, so an exact duplicate indicates the same row was indexed twice.
func (t *Tree) InsertIndexEntry(key []byte) error {
	return t.insertIndexEntry(key, nil)
}

// InsertIndexEntryWithPayload adds key to an index tree with payload stored
// alongside it, retrievable via Cursor.IndexPayload. Used for WITHOUT ROWID
// clustering, where the tree is keyed by the declared primary key and each
// leaf entry's payload is the row's encoded non-key columns.
func (t *Tree) InsertIndexEntryWithPayload(key, payload []byte) error {
	return t.insertIndexEntry(key, payload)
}

func (t *Tree) insertIndexEntry(key, payload []byte) error {
	path, leaf, err := t.descendIndex(key)
	if err != nil {
		return err
	}
	idx, found := leaf.leafFindIndex(key)
	if found {
		return sharcerr.New(sharcerr.Constraint, "btree: duplicate index entry")
	}
	cellBytes, err := btreefmt.AssembleIndexLeafCell(t.p, frameIndexBlob(key, payload))
	if err != nil {
		return err
	}
	leaf.cells = insertCellAt(leaf.cells, idx, cellBytes)
	return t.rebalanceUp(path, leaf)
}

// DeleteIndexEntry removes key from an index tree.
func (t *Tree) DeleteIndexEntry(key []byte) error {
	path, leaf, err := t.descendIndex(key)
	if err != nil {
		return err
	}
	idx, found := leaf.leafFindIndex(key)
	if !found {
		return sharcerr.New(sharcerr.NotFound, "btree: index entry not present")
	}
	old, _, derr := btreefmt.DecodeIndexLeafCell(leaf.cells[idx], leaf.usable)
	if derr == nil && old.OverflowPage != 0 {
		_ = btreefmt.FreeOverflowChain(t.p, old.OverflowPage)
	}
	leaf.cells = removeCellAt(leaf.cells, idx)
	return t.rebalanceDown(path, leaf)
}

func insertCellAt(cells [][]byte, idx int, cell []byte) [][]byte {
	cells = append(cells, nil)
	copy(cells[idx+1:], cells[idx:])
	cells[idx] = cell
	return cells
}

func removeCellAt(cells [][]byte, idx int) [][]byte {
	return append(cells[:idx], cells[idx+1:]...)
}

// rebalanceUp writes leaf back to disk, splitting it (and propagating splits
// up through path) as many times as needed to fit every page within the
// configured page size.
func (t *Tree) rebalanceUp(path []frame, n *node) error {
	for {
		if n.size() <= int(t.p.PageSize()) {
			return n.store(t.p)
		}
		right, sp, err := t.splitNode(n)
		if err != nil {
			return err
		}
		if err := n.store(t.p); err != nil {
			return err
		}
		if err := right.store(t.p); err != nil {
			return err
		}
		if len(path) == 0 {
			return t.newRoot(n, right, sp)
		}
		parentFrame := path[len(path)-1]
		path = path[:len(path)-1]
		parent := parentFrame.n
		childIdx := parentFrame.idx
		newCell := encodeInterior(parent.typ, n.pageNum, sp, parent.usable)
		parent.cells = insertCellAt(parent.cells, childIdx, newCell)
		if childIdx == len(parent.cells)-1 {
			parent.rightmost = right.pageNum
		} else {
			parent.setChildPage(childIdx+1, right.pageNum)
		}
		n = parent
	}
}

// splitNode divides n's cells roughly in half. n is mutated in place to
// become the left half (keeping its page number); a freshly allocated right
// sibling is returned along with the separator key to promote to the
// parent. Works for both table and index nodes.
func (t *Tree) splitNode(n *node) (right *node, sp sep, err error) {
	mid := len(n.cells) / 2
	rightPageNum, err := t.p.AllocatePage()
	if err != nil {
		return nil, sep{}, err
	}

	if n.typ.IsLeaf() {
		rightCells := n.cells[mid:]
		n.cells = n.cells[:mid]
		right = &node{pageNum: rightPageNum, typ: n.typ, cells: append([][]byte{}, rightCells...), usable: n.usable}
		return right, leafLastSep(n), nil
	}

	// Interior split: promote the middle cell's key; its left-child pointer
	// becomes the left node's new rightmost pointer.
	leftChild, promoted := decodeInterior(n.typ, n.cells[mid], n.usable)
	rightCells := append([][]byte{}, n.cells[mid+1:]...)
	rightRightmost := n.rightmost
	n.rightmost = leftChild
	n.cells = n.cells[:mid]
	right = &node{pageNum: rightPageNum, typ: n.typ, cells: rightCells, rightmost: rightRightmost, usable: n.usable}
	return right, promoted, nil
}

// newRoot builds a fresh interior root over left and right. When left is
// page 1 (the catalog tree's root, which must remain the interior page
// holding the 100-byte file header, per spec §4.3.1/§9), left's contents are
// relocated to a freshly allocated page and page 1 itself becomes the new
// interior root instead. Index trees are never rooted at page 1, so this
// relocation path only ever fires for the catalog's own table tree.
func (t *Tree) newRoot(left, right *node, sp sep) error {
	interiorType := interiorTypeFor(left.typ)
	if left.pageNum != 1 {
		newRootPage, err := t.p.AllocatePage()
		if err != nil {
			return err
		}
		root := &node{
			pageNum:   newRootPage,
			typ:       interiorType,
			cells:     [][]byte{encodeInterior(interiorType, left.pageNum, sp, t.usable)},
			rightmost: right.pageNum,
			usable:    t.usable,
		}
		if err := root.store(t.p); err != nil {
			return err
		}
		t.root = newRootPage
		return nil
	}

	relocated, err := t.p.AllocatePage()
	if err != nil {
		return err
	}
	left.pageNum = relocated
	if err := left.store(t.p); err != nil {
		return err
	}
	root := &node{
		pageNum:   1,
		typ:       interiorType,
		cells:     [][]byte{encodeInterior(interiorType, relocated, sp, t.usable)},
		rightmost: right.pageNum,
		usable:    t.usable,
	}
	return root.store(t.p)
}

// collapseRoot shrinks the tree by one level when the root has been reduced
// to a single child (no separator cells, just rightmost). For an ordinary
// root this simply repoints t.root at that child and frees the old root
// page. Page 1 can never be freed or repointed away from, since it must
// remain the interior page holding the 100-byte file header (spec §4.3.1,
// §9): instead, the sole child's content is relocated into page 1 itself.
func (t *Tree) collapseRoot(n *node) error {
	child, err := loadNode(t.p, n.rightmost)
	if err != nil {
		return err
	}
	if n.pageNum != 1 {
		t.root = child.pageNum
		return t.p.FreePage(n.pageNum)
	}
	child.pageNum = 1
	if err := child.store(t.p); err != nil {
		return err
	}
	return t.p.FreePage(n.rightmost)
}

// Delete removes the row keyed by rowid, if present, rebalancing the tree
// (borrow-from-sibling or merge, recursing upward, shrinking an
// interior-with-single-child root) per spec §4.3.
func (t *Tree) Delete(rowid int64) error {
	path, leaf, err := t.descend(rowid)
	if err != nil {
		return err
	}
	idx, found := leaf.leafFind(rowid)
	if !found {
		return sharcerr.New(sharcerr.NotFound, "btree: rowid not present")
	}
	old, _, derr := btreefmt.DecodeTableLeafCell(leaf.cells[idx], leaf.usable)
	if derr == nil && old.OverflowPage != 0 {
		_ = btreefmt.FreeOverflowChain(t.p, old.OverflowPage)
	}
	leaf.cells = removeCellAt(leaf.cells, idx)
	return t.rebalanceDown(path, leaf)
}

func (t *Tree) minSize() int {
	return int(t.p.PageSize()) * minFillNumerator / minFillDenominator
}

// rebalanceDown writes n back after a deletion, borrowing from or merging
// with a sibling if n has fallen under the fill target, and propagating the
// resulting parent changes upward.
func (t *Tree) rebalanceDown(path []frame, n *node) error {
	for {
		if len(path) == 0 {
			// n is the root. An interior root left with a single child (no
			// cells, just rightmost) collapses to make that child the new
			// root, shrinking tree height.
			if !n.typ.IsLeaf() && len(n.cells) == 0 {
				return t.collapseRoot(n)
			}
			return n.store(t.p)
		}
		if n.size() >= t.minSize() || len(n.cells) == 0 && n.typ.IsLeaf() {
			return t.finishAndPropagate(path, n)
		}

		parentFrame := path[len(path)-1]
		parent := parentFrame.n
		childIdx := parentFrame.idx

		merged, err := t.tryBorrowOrMerge(parent, childIdx, n)
		if err != nil {
			return err
		}
		if merged {
			path = path[:len(path)-1]
			n = parent
			continue
		}
		return t.finishAndPropagate(path, n)
	}
}

// finishAndPropagate stores n (and nothing else changed) and then stores
// every ancestor on path, since descend()'s frames reference live node
// objects that may have been mutated by a sibling's borrow.
func (t *Tree) finishAndPropagate(path []frame, n *node) error {
	if err := n.store(t.p); err != nil {
		return err
	}
	for i := len(path) - 1; i >= 0; i-- {
		if err := path[i].n.store(t.p); err != nil {
			return err
		}
	}
	return nil
}

// tryBorrowOrMerge attempts to fix up an under-full child at childIdx within
// parent: first by borrowing one cell from an immediate sibling that holds
// more than one cell, falling back to merging the child into a sibling
// (freeing one page) when neither sibling has a cell to spare. The lending
// sibling's byte fill is not checked, so it can itself end up below the
// fill floor after lending. Reports whether a merge occurred
// (which changes parent's child count and must itself be checked for
// under-fill by the caller).
func (t *Tree) tryBorrowOrMerge(parent *node, childIdx int, child *node) (merged bool, err error) {
	// Prefer the left sibling, falling back to the right.
	if childIdx > 0 {
		leftSib, err := loadNode(t.p, parent.childPage(childIdx-1))
		if err != nil {
			return false, err
		}
		if len(leftSib.cells) > 1 {
			borrowFromLeft(parent, childIdx-1, leftSib, child)
			if err := leftSib.store(t.p); err != nil {
				return false, err
			}
			if err := child.store(t.p); err != nil {
				return false, err
			}
			return false, nil
		}
	}
	if childIdx < len(parent.cells) {
		rightSib, err := loadNode(t.p, parent.childPage(childIdx+1))
		if err != nil {
			return false, err
		}
		if len(rightSib.cells) > 1 {
			borrowFromRight(parent, childIdx, child, rightSib)
			if err := rightSib.store(t.p); err != nil {
				return false, err
			}
			if err := child.store(t.p); err != nil {
				return false, err
			}
			return false, nil
		}
	}

	// No sibling holds more than one cell: merge.
	// child already reflects the pending deletion in memory (not yet
	// flushed), so it must be used directly rather than reloaded from disk.
	if childIdx > 0 {
		leftSib, err := loadNode(t.p, parent.childPage(childIdx-1))
		if err != nil {
			return false, err
		}
		return true, t.mergeChildren(parent, childIdx-1, leftSib, child)
	}
	rightSib, err := loadNode(t.p, parent.childPage(childIdx+1))
	if err != nil {
		return false, err
	}
	return true, t.mergeChildren(parent, childIdx, child, rightSib)
}

// mergeChildren folds right's cells into left, frees right's now-empty page,
// and removes the separator between them from parent, shifting the
// following pointer down to close the gap. left and right must already be
// the live nodes occupying positions leftIdx and leftIdx+1.
func (t *Tree) mergeChildren(parent *node, leftIdx int, left, right *node) error {
	if left.typ.IsLeaf() {
		left.cells = append(left.cells, right.cells...)
	} else {
		bridgeSep := parentSeparator(parent, leftIdx)
		bridge := encodeInterior(left.typ, left.rightmost, bridgeSep, left.usable)
		left.cells = append(left.cells, bridge)
		left.cells = append(left.cells, right.cells...)
		left.rightmost = right.rightmost
	}
	if err := left.store(t.p); err != nil {
		return err
	}
	if err := t.p.FreePage(right.pageNum); err != nil {
		return err
	}

	if leftIdx+1 < len(parent.cells) {
		nextSep := parentSeparator(parent, leftIdx+1)
		parent.cells[leftIdx] = encodeInterior(parent.typ, left.pageNum, nextSep, parent.usable)
		parent.cells = removeCellAt(parent.cells, leftIdx+1)
	} else {
		parent.rightmost = left.pageNum
		parent.cells = removeCellAt(parent.cells, leftIdx)
	}
	return nil
}

// parentSeparator returns the key separating children at idx and idx+1.
func parentSeparator(parent *node, idx int) sep {
	_, s := decodeInterior(parent.typ, parent.cells[idx], parent.usable)
	return s
}

func borrowFromLeft(parent *node, leftIdx int, left, right *node) {
	if right.typ.IsLeaf() {
		moved := left.cells[len(left.cells)-1]
		left.cells = left.cells[:len(left.cells)-1]
		right.cells = insertCellAt(right.cells, 0, moved)
		parent.cells[leftIdx] = encodeInterior(parent.typ, left.pageNum, leafLastSep(left), parent.usable)
		return
	}
	sepLeftChild, sepSep := decodeInterior(parent.typ, parent.cells[leftIdx], parent.usable)
	demoted := encodeInterior(left.typ, left.rightmost, sepSep, left.usable)
	right.cells = insertCellAt(right.cells, 0, demoted)
	lastLeftChild, lastLeftSep := decodeInterior(left.typ, left.cells[len(left.cells)-1], left.usable)
	left.rightmost = lastLeftChild
	left.cells = left.cells[:len(left.cells)-1]
	parent.cells[leftIdx] = encodeInterior(parent.typ, sepLeftChild, lastLeftSep, parent.usable)
}

func borrowFromRight(parent *node, leftIdx int, left, right *node) {
	if left.typ.IsLeaf() {
		moved := right.cells[0]
		right.cells = right.cells[1:]
		left.cells = append(left.cells, moved)
		parent.cells[leftIdx] = encodeInterior(parent.typ, left.pageNum, leafLastSep(left), parent.usable)
		return
	}
	sepLeftChild, sepSep := decodeInterior(parent.typ, parent.cells[leftIdx], parent.usable)
	demoted := encodeInterior(left.typ, left.rightmost, sepSep, left.usable)
	left.cells = append(left.cells, demoted)
	firstRightChild, _ := decodeInterior(right.typ, right.cells[0], right.usable)
	left.rightmost = firstRightChild
	right.cells = right.cells[1:]
	_, newLeftSep := decodeInterior(left.typ, left.cells[len(left.cells)-1], left.usable)
	parent.cells[leftIdx] = encodeInterior(parent.typ, sepLeftChild, newLeftSep, parent.usable)
}
