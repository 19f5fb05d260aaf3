package btreefmt

import (
	"github.com/revred/sharc-core/internal/pager"
	"github.com/revred/sharc-core/internal/sharcerr"
)

// overflow pages store a 4-byte "next overflow page" pointer (0 = last page
// in the chain) followed by as much payload as fits in the remainder of the
// page, mirroring the local-prefix-then-chain idiom used for cells
// themselves (spec §3.2/§4.1).

// WriteOverflowChain allocates and writes however many overflow pages are
// needed to hold the bytes in payload beyond a cell's local prefix,
// returning the first page number in the chain.
func WriteOverflowChain(p *pager.Pager, payload []byte) (uint32, error) {
	if len(payload) == 0 {
		return 0, nil
	}
	capacity := int(p.PageSize()) - 4
	pages := make([]uint32, (len(payload)+capacity-1)/capacity)
	for i := range pages {
		pn, err := p.AllocatePage()
		if err != nil {
			return 0, err
		}
		pages[i] = pn
	}
	for i, pn := range pages {
		start := i * capacity
		end := start + capacity
		if end > len(payload) {
			end = len(payload)
		}
		buf := make([]byte, p.PageSize())
		var next uint32
		if i+1 < len(pages) {
			next = pages[i+1]
		}
		putU32(buf[0:4], next)
		copy(buf[4:], payload[start:end])
		if err := p.WritePage(pn, buf); err != nil {
			return 0, err
		}
	}
	return pages[0], nil
}

// ReadOverflowChain reads exactly remaining bytes of payload starting at
// firstPage, following next-pointers until satisfied.
func ReadOverflowChain(p *pager.Pager, firstPage uint32, remaining int) ([]byte, error) {
	out := make([]byte, 0, remaining)
	pn := firstPage
	capacity := int(p.PageSize()) - 4
	for len(out) < remaining {
		if pn == 0 {
			return nil, sharcerr.New(sharcerr.CorruptPage, "btreefmt: overflow chain ended early")
		}
		buf, err := p.ReadPage(pn)
		if err != nil {
			return nil, err
		}
		next := getU32(buf[0:4])
		want := remaining - len(out)
		if want > capacity {
			want = capacity
		}
		out = append(out, buf[4:4+want]...)
		pn = next
	}
	return out, nil
}

// FreeOverflowChain releases every page in the chain starting at firstPage
// back to the freelist.
func FreeOverflowChain(p *pager.Pager, firstPage uint32) error {
	pn := firstPage
	for pn != 0 {
		buf, err := p.ReadPage(pn)
		if err != nil {
			return err
		}
		next := getU32(buf[0:4])
		if err := p.FreePage(pn); err != nil {
			return err
		}
		pn = next
	}
	return nil
}
