package btreefmt

import "github.com/revred/sharc-core/internal/pager"

// AssembleTableLeafCell encodes a table leaf cell for payload, allocating and
// writing an overflow chain through p when payload doesn't fit locally.
func AssembleTableLeafCell(p *pager.Pager, rowID int64, payload []byte) ([]byte, error) {
	usable := UsablePageSize(p.PageSize())
	cell := EncodeTableLeafCell(rowID, payload, usable)
	local, hasOverflow := splitPayload(usable, payload, false)
	if !hasOverflow {
		return cell, nil
	}
	first, err := WriteOverflowChain(p, payload[local:])
	if err != nil {
		return nil, err
	}
	PatchOverflowPointer(cell, first)
	return cell, nil
}

// AssembleIndexLeafCell is AssembleTableLeafCell for index leaf cells.
func AssembleIndexLeafCell(p *pager.Pager, payload []byte) ([]byte, error) {
	usable := UsablePageSize(p.PageSize())
	cell := EncodeIndexLeafCell(payload, usable)
	local, hasOverflow := splitPayload(usable, payload, true)
	if !hasOverflow {
		return cell, nil
	}
	first, err := WriteOverflowChain(p, payload[local:])
	if err != nil {
		return nil, err
	}
	PatchOverflowPointer(cell, first)
	return cell, nil
}
