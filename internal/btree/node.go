// Package btree implements the B-tree cursor and mutation API over pages
// shaped by package btreefmt: seek/first/last/next/prev, insert-with-split,
// and delete-with-rebalance, including the page-1-root-split special case
// (spec §4.3, §9) and the LIFO freelist trunk allocator in package pager.
//
// The split/merge propagation shape is grounded on the teacher's own
// btree.go (insertIntoTree/insertIntoParent/splitInternal/createNewRoot,
// and the mirror-image delete path), adapted from tinySQL's generic
// key/value B+Tree onto SQLite's rowid-keyed, four-cell-type format.
//
// Rather than mutate a page's slotted layout incrementally, every mutation
// decodes a page into an ordered slice of cells, edits that slice, and
// repacks the whole page -- cells are written back to back from the end of
// the page towards the header, and the pointer array is rewritten to match
// the new cell order. This still produces a page whose bytes satisfy the
// on-disk format (header + pointer array + cell-content area), just with a
// simpler write path than SQLite's own in-place freeblock allocator, which
// the teacher's own slotted_page.Compact() effectively falls back to anyway
// whenever fragmentation accumulates.
package btree

import (
	"bytes"
	"sort"

	"github.com/revred/sharc-core/internal/btreefmt"
	"github.com/revred/sharc-core/internal/pager"
	"github.com/revred/sharc-core/internal/record"
	"github.com/revred/sharc-core/internal/sharcerr"
)

// node is the decoded, mutable in-memory form of one B-tree page.
type node struct {
	pageNum uint32
	typ     pager.PageType
	// cells holds one undecoded on-disk cell per entry, in ascending key
	// order. For interior pages, the page header's own RightmostChild
	// pointer is kept out of this slice and tracked separately.
	cells     [][]byte
	rightmost uint32
	usable    int
}

func loadNode(p *pager.Pager, pageNum uint32) (*node, error) {
	buf, err := pageBytes(p, pageNum)
	if err != nil {
		return nil, err
	}
	hdr := pager.DecodePageHeader(buf)
	hdrSize := hdr.Type.HeaderSize()
	ptrs := pager.NewCellPointerArray(buf, base(pageNum, hdrSize), int(hdr.CellCount))

	usable := btreefmt.UsablePageSize(p.PageSize())
	n := &node{pageNum: pageNum, typ: hdr.Type, rightmost: hdr.RightmostChild, usable: usable}
	for i := 0; i < ptrs.Len(); i++ {
		off := int(ptrs.Get(i))
		length, err := cellLength(hdr.Type, buf[off:], usable)
		if err != nil {
			return nil, err
		}
		cell := make([]byte, length)
		copy(cell, buf[off:off+length])
		n.cells = append(n.cells, cell)
	}
	return n, nil
}

// base returns the byte offset where the cell pointer array begins: right
// after the page header, plus the 100-byte file header on page 1.
func base(pageNum uint32, headerSize int) int {
	if pageNum == 1 {
		return pager.HeaderSize + headerSize
	}
	return headerSize
}

func pageBytes(p *pager.Pager, pageNum uint32) ([]byte, error) {
	return p.ReadPage(pageNum)
}

func cellLength(t pager.PageType, buf []byte, usable int) (int, error) {
	switch t {
	case pager.PageLeafTable:
		_, n, err := btreefmt.DecodeTableLeafCell(buf, usable)
		return n, err
	case pager.PageInteriorTable:
		_, n, err := btreefmt.DecodeTableInteriorCell(buf)
		return n, err
	case pager.PageLeafIndex:
		_, n, err := btreefmt.DecodeIndexLeafCell(buf, usable)
		return n, err
	case pager.PageInteriorIndex:
		_, n, err := btreefmt.DecodeIndexInteriorCell(buf, usable)
		return n, err
	default:
		return 0, sharcerr.New(sharcerr.CorruptPage, "btree: unknown page type")
	}
}

// size reports the total bytes this node's content would occupy on a page:
// the fixed header, the 2-byte pointer per cell, and the cells themselves.
func (n *node) size() int {
	total := n.typ.HeaderSize() + 2*len(n.cells)
	for _, c := range n.cells {
		total += len(c)
	}
	return total
}

// store repacks n and writes it to pageNum, which must be within an active
// write transaction.
func (n *node) store(p *pager.Pager) error {
	buf := make([]byte, p.PageSize())
	hdrSize := n.typ.HeaderSize()
	b := base(n.pageNum, hdrSize)
	ptrs := pager.NewCellPointerArray(buf, b, len(n.cells))

	contentEnd := int(p.PageSize())
	for i, cell := range n.cells {
		contentEnd -= len(cell)
		copy(buf[contentEnd:], cell)
		ptrs.Set(i, uint16(contentEnd))
	}

	hdr := pager.PageHeader{
		Type:            n.typ,
		CellCount:       uint16(len(n.cells)),
		CellContentArea: uint16(contentEnd % 65536),
		RightmostChild:  n.rightmost,
	}
	if contentEnd == 0 || contentEnd == 65536 {
		hdr.CellContentArea = 0
	}
	if n.pageNum == 1 {
		hdrBuf, err := p.ReadPage(1)
		if err != nil {
			return err
		}
		copy(buf[:pager.HeaderSize], hdrBuf[:pager.HeaderSize])
	}
	hdr.Encode(buf[b-hdrSize:])
	return p.WritePage(n.pageNum, buf)
}

// rowIDAt returns a cell's effective sort key for table pages.
func (n *node) rowIDAt(i int) int64 {
	switch n.typ {
	case pager.PageLeafTable:
		c, _, _ := btreefmt.DecodeTableLeafCell(n.cells[i], n.usable)
		return c.RowID
	case pager.PageInteriorTable:
		c, _, _ := btreefmt.DecodeTableInteriorCell(n.cells[i])
		return c.RowID
	}
	return 0
}

// findChildTable returns the index of the interior cell whose subtree may
// contain rowid (table trees only): the first cell whose RowID >= rowid, or
// len(cells) to mean "descend into RightmostChild".
func (n *node) findChildTable(rowid int64) int {
	return sort.Search(len(n.cells), func(i int) bool {
		return n.rowIDAt(i) >= rowid
	})
}

// childPage returns the page number of the i-th child pointer (0..len(cells)
// inclusive, where len(cells) means RightmostChild). Works for both table
// and index interior nodes.
func (n *node) childPage(i int) uint32 {
	if i == len(n.cells) {
		return n.rightmost
	}
	if n.typ == pager.PageInteriorIndex {
		c, _, _ := btreefmt.DecodeIndexInteriorCell(n.cells[i], n.usable)
		return c.LeftChild
	}
	c, _, _ := btreefmt.DecodeTableInteriorCell(n.cells[i])
	return c.LeftChild
}

func (n *node) setChildPage(i int, pageNum uint32) {
	if i == len(n.cells) {
		n.rightmost = pageNum
		return
	}
	if n.typ == pager.PageInteriorIndex {
		c, _, _ := btreefmt.DecodeIndexInteriorCell(n.cells[i], n.usable)
		n.cells[i] = btreefmt.EncodeIndexInteriorCell(pageNum, c.Local, n.usable)
		return
	}
	c, _, _ := btreefmt.DecodeTableInteriorCell(n.cells[i])
	n.cells[i] = btreefmt.EncodeTableInteriorCell(pageNum, c.RowID)
}

// leafFind returns the index of rowid in a table leaf node and true, or the
// index where rowid would be inserted and false if absent (sort.Search idiom).
func (n *node) leafFind(rowid int64) (idx int, found bool) {
	idx = sort.Search(len(n.cells), func(i int) bool { return n.rowIDAt(i) >= rowid })
	if idx < len(n.cells) && n.rowIDAt(idx) == rowid {
		return idx, true
	}
	return idx, false
}

// indexKeyAt returns a leaf index cell's ordering key (the framed blob's key
// portion, see frameIndexBlob/splitIndexBlob), or an interior cell's
// separator key directly, used both for ordering comparisons and as the
// separator promoted into an index interior node on split. Comparisons only
// ever look at a cell's local bytes (no overflow chain) -- a documented
// scope boundary, since every indexed key this engine builds is a small
// fixed-width composite (plain/GUID/FIX128 columns plus an int64 rowid),
// never a BLOB/TEXT-heavy key that could exceed a page's local limit. A
// cursor positioned on a matched entry can still retrieve the complete key
// (and, for a WITHOUT ROWID table's clustering key, its row payload) via
// Cursor.IndexKey/IndexPayload, which do reassemble overflow. See DESIGN.md.
func (n *node) indexKeyAt(i int) []byte {
	switch n.typ {
	case pager.PageLeafIndex:
		c, _, _ := btreefmt.DecodeIndexLeafCell(n.cells[i], n.usable)
		key, _ := splitIndexBlob(c.Local)
		return key
	case pager.PageInteriorIndex:
		c, _, _ := btreefmt.DecodeIndexInteriorCell(n.cells[i], n.usable)
		return c.Local
	}
	return nil
}

// frameIndexBlob combines an index entry's ordering key with an optional
// trailing row payload (used for WITHOUT ROWID clustering, spec §3.4/§4.3.3)
// into the one opaque blob an index leaf cell stores: a varint key length,
// the key bytes, then the payload bytes. A plain secondary index entry has
// no payload.
func frameIndexBlob(key, payload []byte) []byte {
	out := record.AppendVarint(make([]byte, 0, len(key)+len(payload)+2), uint64(len(key)))
	out = append(out, key...)
	return append(out, payload...)
}

// splitIndexBlob is the inverse of frameIndexBlob, given a full (local-only
// or overflow-reassembled) blob.
func splitIndexBlob(blob []byte) (key, payload []byte) {
	keyLen, n := record.GetVarint(blob)
	if n == 0 {
		return nil, nil
	}
	end := n + int(keyLen)
	if end > len(blob) {
		end = len(blob)
	}
	return blob[n:end], blob[end:]
}

// findChildIndex mirrors findChildTable for byte-ordered index keys: the
// first cell whose key is >= key, or len(cells) to descend into
// RightmostChild.
func (n *node) findChildIndex(key []byte) int {
	return sort.Search(len(n.cells), func(i int) bool {
		return bytes.Compare(n.indexKeyAt(i), key) >= 0
	})
}

// leafFindIndex mirrors leafFind for byte-ordered index keys.
func (n *node) leafFindIndex(key []byte) (idx int, found bool) {
	idx = sort.Search(len(n.cells), func(i int) bool { return bytes.Compare(n.indexKeyAt(i), key) >= 0 })
	if idx < len(n.cells) && bytes.Equal(n.indexKeyAt(idx), key) {
		return idx, true
	}
	return idx, false
}
