package btreefmt

import "github.com/revred/sharc-core/internal/pager"

// FullPayload reassembles a cell's complete logical payload from its local
// prefix plus (if present) its overflow chain.
func FullPayload(p *pager.Pager, local []byte, overflowPage uint32, totalLen int) ([]byte, error) {
	if overflowPage == 0 {
		return local, nil
	}
	rest, err := ReadOverflowChain(p, overflowPage, totalLen-len(local))
	if err != nil {
		return nil, err
	}
	out := make([]byte, 0, totalLen)
	out = append(out, local...)
	out = append(out, rest...)
	return out, nil
}
