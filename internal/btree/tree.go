package btree

import (
	"github.com/revred/sharc-core/internal/btreefmt"
	"github.com/revred/sharc-core/internal/pager"
)

// Tree is a handle onto one table B-tree rooted at a known page.
type Tree struct {
	p      *pager.Pager
	root   uint32
	usable int
}

// Open returns a handle for the table B-tree rooted at rootPage.
func Open(p *pager.Pager, rootPage uint32) *Tree {
	return &Tree{p: p, root: rootPage, usable: btreefmt.UsablePageSize(p.PageSize())}
}

// Root reports the tree's current root page (it can change across
// transactions as the tree grows or shrinks).
func (t *Tree) Root() uint32 { return t.root }

// CreateEmpty allocates a fresh, empty leaf page to serve as a new table's
// root and returns its page number.
func CreateEmpty(p *pager.Pager) (uint32, error) {
	return createEmptyRoot(p, pager.PageLeafTable)
}

// CreateEmptyIndex allocates a fresh, empty leaf page to serve as a new
// secondary index's root (spec §4.3.3) and returns its page number.
func CreateEmptyIndex(p *pager.Pager) (uint32, error) {
	return createEmptyRoot(p, pager.PageLeafIndex)
}

func createEmptyRoot(p *pager.Pager, typ pager.PageType) (uint32, error) {
	pn, err := p.AllocatePage()
	if err != nil {
		return 0, err
	}
	n := &node{pageNum: pn, typ: typ, usable: btreefmt.UsablePageSize(p.PageSize())}
	if err := n.store(p); err != nil {
		return 0, err
	}
	return pn, nil
}
