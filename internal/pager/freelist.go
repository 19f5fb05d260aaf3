package pager

import "encoding/binary"

// Freelist trunk pages are the unit of free-page bookkeeping: each trunk
// holds a pointer to the next trunk (0 if none), a count of "leaf" entries
// it carries directly, and the leaf page numbers themselves. Allocation is
// LIFO: the most recently freed leaf page is handed out first, matching the
// real SQLite freelist discipline (spec §4.4) rather than the teacher's flat
// in-memory free-page set (internal/storage/pager/freelist.go).
type trunkPage struct {
	next    uint32
	leaves  []uint32
	maxLeaf int
}

func trunkCapacity(pageSize uint32) int {
	return (int(pageSize) - 8) / 4
}

func decodeTrunk(buf []byte, pageSize uint32) trunkPage {
	next := binary.BigEndian.Uint32(buf[0:4])
	count := binary.BigEndian.Uint32(buf[4:8])
	leaves := make([]uint32, 0, count)
	for i := uint32(0); i < count; i++ {
		off := 8 + i*4
		leaves = append(leaves, binary.BigEndian.Uint32(buf[off:off+4]))
	}
	return trunkPage{next: next, leaves: leaves, maxLeaf: trunkCapacity(pageSize)}
}

func (t trunkPage) encode(pageSize uint32) []byte {
	buf := make([]byte, pageSize)
	binary.BigEndian.PutUint32(buf[0:4], t.next)
	binary.BigEndian.PutUint32(buf[4:8], uint32(len(t.leaves)))
	for i, leaf := range t.leaves {
		off := 8 + i*4
		binary.BigEndian.PutUint32(buf[off:off+4], leaf)
	}
	return buf
}

// AllocatePage returns a page number for a new page, preferring a free page
// from the trunk chain (LIFO) and only extending the file when the
// freelist is empty.
func (p *Pager) AllocatePage() (uint32, error) {
	if p.header.FreelistTrunkPage != 0 {
		return p.popFreelist()
	}
	p.header.PageCount++
	pn := p.header.PageCount
	blank := make([]byte, p.pageSize)
	if err := p.writePageRaw(pn, blank); err != nil {
		return 0, err
	}
	return pn, nil
}

func (p *Pager) popFreelist() (uint32, error) {
	raw, err := p.readPageRaw(p.header.FreelistTrunkPage)
	if err != nil {
		return 0, err
	}
	trunk := decodeTrunk(raw, p.pageSize)
	if len(trunk.leaves) > 0 {
		pn := trunk.leaves[len(trunk.leaves)-1]
		trunk.leaves = trunk.leaves[:len(trunk.leaves)-1]
		if err := p.writePageRaw(p.header.FreelistTrunkPage, trunk.encode(p.pageSize)); err != nil {
			return 0, err
		}
		p.header.FreelistPageCount--
		return pn, nil
	}
	// Trunk itself is empty of leaves: hand out the trunk page and advance
	// to the next trunk in the chain.
	pn := p.header.FreelistTrunkPage
	p.header.FreelistTrunkPage = trunk.next
	p.header.FreelistPageCount--
	return pn, nil
}

// FreePage returns pageNum to the freelist, pushing it onto the current
// trunk's leaf array or starting a new trunk when the current one is full.
func (p *Pager) FreePage(pageNum uint32) error {
	if p.header.FreelistTrunkPage != 0 {
		raw, err := p.readPageRaw(p.header.FreelistTrunkPage)
		if err != nil {
			return err
		}
		trunk := decodeTrunk(raw, p.pageSize)
		if len(trunk.leaves) < trunk.maxLeaf {
			trunk.leaves = append(trunk.leaves, pageNum)
			p.header.FreelistPageCount++
			return p.writePageRaw(p.header.FreelistTrunkPage, trunk.encode(p.pageSize))
		}
	}
	// Promote pageNum itself to a new trunk page pointing at the old one.
	newTrunk := trunkPage{next: p.header.FreelistTrunkPage, maxLeaf: trunkCapacity(p.pageSize)}
	if err := p.writePageRaw(pageNum, newTrunk.encode(p.pageSize)); err != nil {
		return err
	}
	p.header.FreelistTrunkPage = pageNum
	p.header.FreelistPageCount++
	return nil
}
