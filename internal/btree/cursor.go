package btree

import "github.com/revred/sharc-core/internal/btreefmt"

// frame records one step of the path from root to the cursor's current
// leaf: the interior node visited and which child index was taken.
type frame struct {
	n   *node
	idx int
}

// Cursor walks a table B-tree in rowid order.
type Cursor struct {
	t     *Tree
	stack []frame // interior frames only; empty when tree is a single leaf
	leaf  *node
	idx   int
	ok    bool
}

// NewCursor returns an unpositioned cursor over t.
func NewCursor(t *Tree) *Cursor { return &Cursor{t: t} }

func (t *Tree) loadRoot() (*node, error) { return loadNode(t.p, t.root) }

func (c *Cursor) descendLeftmost(n *node) error {
	for !n.typ.IsLeaf() {
		c.stack = append(c.stack, frame{n: n, idx: 0})
		child, err := loadNode(c.t.p, n.childPage(0))
		if err != nil {
			return err
		}
		n = child
	}
	c.leaf = n
	c.idx = 0
	return nil
}

func (c *Cursor) descendRightmost(n *node) error {
	for !n.typ.IsLeaf() {
		last := len(n.cells)
		c.stack = append(c.stack, frame{n: n, idx: last})
		child, err := loadNode(c.t.p, n.childPage(last))
		if err != nil {
			return err
		}
		n = child
	}
	c.leaf = n
	c.idx = len(n.cells) - 1
	return nil
}

// First positions the cursor at the smallest rowid in the tree.
func (c *Cursor) First() (bool, error) {
	root, err := c.t.loadRoot()
	if err != nil {
		return false, err
	}
	c.stack = nil
	if err := c.descendLeftmost(root); err != nil {
		return false, err
	}
	c.ok = len(c.leaf.cells) > 0
	return c.ok, nil
}

// Last positions the cursor at the largest rowid in the tree.
func (c *Cursor) Last() (bool, error) {
	root, err := c.t.loadRoot()
	if err != nil {
		return false, err
	}
	c.stack = nil
	if err := c.descendRightmost(root); err != nil {
		return false, err
	}
	c.ok = len(c.leaf.cells) > 0
	return c.ok, nil
}

// SeekGE positions the cursor at the first entry with RowID >= rowid.
// found reports whether that entry is an exact match.
func (c *Cursor) SeekGE(rowid int64) (found bool, err error) {
	n, err := c.t.loadRoot()
	if err != nil {
		return false, err
	}
	c.stack = nil
	for !n.typ.IsLeaf() {
		childIdx := n.findChildTable(rowid)
		c.stack = append(c.stack, frame{n: n, idx: childIdx})
		n, err = loadNode(c.t.p, n.childPage(childIdx))
		if err != nil {
			return false, err
		}
	}
	c.leaf = n
	idx, exact := n.leafFind(rowid)
	c.idx = idx
	c.ok = idx < len(n.cells)
	if !c.ok {
		// No entry >= rowid in this leaf: advance to the next leaf, if any.
		return c.advanceLeafIfExhausted()
	}
	return exact, nil
}

// SeekGEKey positions the cursor at the first entry whose index key is >=
// key (spec §4.3.3's index cursor seek). found reports whether that entry
// is an exact match. Only meaningful over an index tree.
func (c *Cursor) SeekGEKey(key []byte) (found bool, err error) {
	n, err := c.t.loadRoot()
	if err != nil {
		return false, err
	}
	c.stack = nil
	for !n.typ.IsLeaf() {
		childIdx := n.findChildIndex(key)
		c.stack = append(c.stack, frame{n: n, idx: childIdx})
		n, err = loadNode(c.t.p, n.childPage(childIdx))
		if err != nil {
			return false, err
		}
	}
	c.leaf = n
	idx, exact := n.leafFindIndex(key)
	c.idx = idx
	c.ok = idx < len(n.cells)
	if !c.ok {
		return c.advanceLeafIfExhausted()
	}
	return exact, nil
}

func (c *Cursor) advanceLeafIfExhausted() (bool, error) {
	for c.idx >= len(c.leaf.cells) {
		if ok, err := c.ascendToNextSibling(); err != nil || !ok {
			c.ok = false
			return false, err
		}
	}
	c.ok = true
	return false, nil
}

// ascendToNextSibling moves up the stack to find the next unvisited child
// and descends back down its leftmost path, landing on a new leaf.
func (c *Cursor) ascendToNextSibling() (bool, error) {
	for len(c.stack) > 0 {
		top := &c.stack[len(c.stack)-1]
		top.idx++
		if top.idx <= len(top.n.cells) {
			child, err := loadNode(c.t.p, top.n.childPage(top.idx))
			if err != nil {
				return false, err
			}
			if err := c.descendLeftmost(child); err != nil {
				return false, err
			}
			return true, nil
		}
		c.stack = c.stack[:len(c.stack)-1]
	}
	return false, nil
}

func (c *Cursor) retreatToPrevSibling() (bool, error) {
	for len(c.stack) > 0 {
		top := &c.stack[len(c.stack)-1]
		top.idx--
		if top.idx >= 0 {
			child, err := loadNode(c.t.p, top.n.childPage(top.idx))
			if err != nil {
				return false, err
			}
			if err := c.descendRightmost(child); err != nil {
				return false, err
			}
			return true, nil
		}
		c.stack = c.stack[:len(c.stack)-1]
	}
	return false, nil
}

// Next advances the cursor to the next rowid in ascending order.
func (c *Cursor) Next() (bool, error) {
	if !c.ok {
		return false, nil
	}
	c.idx++
	if c.idx < len(c.leaf.cells) {
		return true, nil
	}
	ok, err := c.ascendToNextSibling()
	c.ok = ok
	return ok, err
}

// Prev retreats the cursor to the previous rowid in ascending order.
func (c *Cursor) Prev() (bool, error) {
	if !c.ok {
		return false, nil
	}
	c.idx--
	if c.idx >= 0 {
		return true, nil
	}
	ok, err := c.retreatToPrevSibling()
	c.ok = ok
	return ok, err
}

// Valid reports whether the cursor currently sits on an entry.
func (c *Cursor) Valid() bool { return c.ok && c.leaf != nil && c.idx < len(c.leaf.cells) && c.idx >= 0 }

// RowID returns the current entry's rowid. Valid must be true.
func (c *Cursor) RowID() int64 { return c.leaf.rowIDAt(c.idx) }

// Payload returns the current entry's full logical record payload,
// reassembling it from the overflow chain if necessary.
func (c *Cursor) Payload() ([]byte, error) {
	cell, _, err := btreefmt.DecodeTableLeafCell(c.leaf.cells[c.idx], c.leaf.usable)
	if err != nil {
		return nil, err
	}
	return btreefmt.FullPayload(c.t.p, cell.Local, cell.OverflowPage, cell.PayloadLen)
}

// IndexKey returns the current entry's full index key, reassembling it from
// the overflow chain if necessary. Unlike the in-node ordering comparisons
// in node.go (which only ever look at a cell's local bytes, see
// indexKeyAt), a matched cursor position can return the complete key.
func (c *Cursor) IndexKey() ([]byte, error) {
	key, _, err := c.indexEntry()
	return key, err
}

// IndexPayload returns the current index entry's associated row payload
// (empty for a plain secondary index; the row's encoded non-key columns for
// a WITHOUT ROWID table's clustering key -- see
// btree.Tree.InsertIndexEntryWithPayload).
func (c *Cursor) IndexPayload() ([]byte, error) {
	_, payload, err := c.indexEntry()
	return payload, err
}

func (c *Cursor) indexEntry() (key, payload []byte, err error) {
	cell, _, err := btreefmt.DecodeIndexLeafCell(c.leaf.cells[c.idx], c.leaf.usable)
	if err != nil {
		return nil, nil, err
	}
	full, err := btreefmt.FullPayload(c.t.p, cell.Local, cell.OverflowPage, cell.PayloadLen)
	if err != nil {
		return nil, nil, err
	}
	key, payload = splitIndexBlob(full)
	return key, payload, nil
}
