// Package btreefmt implements the byte layout of B-tree cells: table and
// index, leaf and interior, including the local-prefix/overflow-chain split
// for payloads too large to fit on one page. The serial-type record body
// itself is handled by package record; this package is concerned with how a
// record (or an interior key) is framed as a cell inside a page.
//
// The four-page-type, rowid-based cell shapes are grounded on the byte
// format recovered in the Lindeneg sqlite-exploration pack (cell.go,
// page.go), since the teacher (tinySQL) uses a from-scratch generic B+Tree
// (internal/storage/pager/btree_page.go) with its own InternalEntry/
// LeafEntry framing rather than SQLite's actual cell bytes.
package btreefmt

import (
	"github.com/revred/sharc-core/internal/record"
	"github.com/revred/sharc-core/internal/sharcerr"
)

// OverflowPointerSize is the width of the trailing "next overflow page"
// pointer appended after a cell's local payload prefix.
const OverflowPointerSize = 4

// localLimits returns (maxLocal, minLocal) for a usable page size, per the
// SQLite payload-fraction formulas: up to maxLocal bytes stay entirely
// local; above that, the local fraction is rounded down to minLocal
// (rather than splitting off a single trailing byte) unless the rounded
// value still fits under maxLocal.
func localLimits(usable int, isIndex bool) (maxLocal, minLocal int) {
	minLocal = (usable-12)*32/255 - 23
	if isIndex {
		maxLocal = (usable-12)*64/255 - 23
	} else {
		maxLocal = usable - 35
	}
	return
}

// splitPayload decides how many bytes of payload stay local given the page's
// usable size, per spec §3.2/§4.1's overflow design.
func splitPayload(usable int, payload []byte, isIndex bool) (local int, hasOverflow bool) {
	return splitPayloadLen(usable, len(payload), isIndex)
}

// splitPayloadLen is splitPayload without requiring an actual payload slice,
// so decoding a cell never allocates proportional to an attacker-controlled
// on-disk length just to compute the local/overflow split.
func splitPayloadLen(usable, payloadLen int, isIndex bool) (local int, hasOverflow bool) {
	maxLocal, minLocal := localLimits(usable, isIndex)
	if payloadLen <= maxLocal {
		return payloadLen, false
	}
	surplus := minLocal + (payloadLen-minLocal)%(usable-4)
	if surplus <= maxLocal {
		return surplus, true
	}
	return minLocal, true
}

// TableLeafCell is a table B-tree leaf cell: payload length, rowid, then the
// record payload (possibly split across an overflow chain).
type TableLeafCell struct {
	RowID        int64
	PayloadLen   int    // total logical payload length
	Local        []byte // prefix actually stored on this page
	OverflowPage uint32 // 0 if payload fit entirely locally
}

// Encode serializes a table leaf cell for a page with the given usable size.
func EncodeTableLeafCell(rowID int64, payload []byte, usablePageSize int) []byte {
	local, overflow := splitPayload(usablePageSize, payload, false)
	out := make([]byte, 0, 9+9+local+OverflowPointerSize)
	out = record.AppendVarint(out, uint64(len(payload)))
	out = record.AppendVarint(out, zigzagEncodeRowID(rowID))
	out = append(out, payload[:local]...)
	if overflow {
		// The actual overflow page number is filled in once the chain has
		// been allocated (see AssembleTableLeafCell in assemble.go), using
		// PatchOverflowPointer below.
		out = append(out, make([]byte, OverflowPointerSize)...)
	}
	return out
}

// PatchOverflowPointer writes pageNum into the trailing 4-byte pointer of a
// cell produced by EncodeTableLeafCell/EncodeIndexLeafCell when it overflowed.
func PatchOverflowPointer(cell []byte, pageNum uint32) {
	off := len(cell) - OverflowPointerSize
	putU32(cell[off:], pageNum)
}

// DecodeTableLeafCell parses a table leaf cell at the start of buf.
func DecodeTableLeafCell(buf []byte, usablePageSize int) (TableLeafCell, int, error) {
	payloadLen, n1 := record.GetVarint(buf)
	if n1 == 0 {
		return TableLeafCell{}, 0, sharcerr.New(sharcerr.CorruptPage, "btreefmt: truncated payload length")
	}
	rowidZ, n2 := record.GetVarint(buf[n1:])
	if n2 == 0 {
		return TableLeafCell{}, 0, sharcerr.New(sharcerr.CorruptPage, "btreefmt: truncated rowid")
	}
	rowID := zigzagDecodeRowID(rowidZ)

	local, hasOverflow := splitPayloadLen(usablePageSize, int(payloadLen), false)
	off := n1 + n2
	if off+local > len(buf) {
		return TableLeafCell{}, 0, sharcerr.New(sharcerr.CorruptPage, "btreefmt: cell local payload truncated")
	}
	cell := TableLeafCell{RowID: rowID, PayloadLen: int(payloadLen)}
	cell.Local = append([]byte{}, buf[off:off+local]...)
	total := off + local
	if hasOverflow {
		if total+OverflowPointerSize > len(buf) {
			return TableLeafCell{}, 0, sharcerr.New(sharcerr.CorruptPage, "btreefmt: missing overflow pointer")
		}
		cell.OverflowPage = getU32(buf[total : total+OverflowPointerSize])
		total += OverflowPointerSize
	}
	return cell, total, nil
}

// TableInteriorCell is a table B-tree interior cell: a left-child page
// pointer and the largest rowid in that child's subtree.
type TableInteriorCell struct {
	LeftChild uint32
	RowID     int64
}

func EncodeTableInteriorCell(leftChild uint32, rowID int64) []byte {
	out := make([]byte, 4, 13)
	putU32(out, leftChild)
	return record.AppendVarint(out, zigzagEncodeRowID(rowID))
}

func DecodeTableInteriorCell(buf []byte) (TableInteriorCell, int, error) {
	if len(buf) < 5 {
		return TableInteriorCell{}, 0, sharcerr.New(sharcerr.CorruptPage, "btreefmt: truncated interior cell")
	}
	left := getU32(buf[:4])
	rowidZ, n := record.GetVarint(buf[4:])
	if n == 0 {
		return TableInteriorCell{}, 0, sharcerr.New(sharcerr.CorruptPage, "btreefmt: truncated interior rowid")
	}
	return TableInteriorCell{LeftChild: left, RowID: zigzagDecodeRowID(rowidZ)}, 4 + n, nil
}

// IndexLeafCell and IndexInteriorCell carry a full index-key payload
// (serialized index columns followed by the indexed row's rowid) instead of
// a bare rowid.
type IndexLeafCell struct {
	PayloadLen   int
	Local        []byte
	OverflowPage uint32
}

func EncodeIndexLeafCell(payload []byte, usablePageSize int) []byte {
	local, overflow := splitPayload(usablePageSize, payload, true)
	out := make([]byte, 0, 9+local+OverflowPointerSize)
	out = record.AppendVarint(out, uint64(len(payload)))
	out = append(out, payload[:local]...)
	if overflow {
		out = append(out, make([]byte, OverflowPointerSize)...)
	}
	return out
}

func DecodeIndexLeafCell(buf []byte, usablePageSize int) (IndexLeafCell, int, error) {
	payloadLen, n1 := record.GetVarint(buf)
	if n1 == 0 {
		return IndexLeafCell{}, 0, sharcerr.New(sharcerr.CorruptPage, "btreefmt: truncated index payload length")
	}
	local, hasOverflow := splitPayloadLen(usablePageSize, int(payloadLen), true)
	off := n1
	if off+local > len(buf) {
		return IndexLeafCell{}, 0, sharcerr.New(sharcerr.CorruptPage, "btreefmt: index cell local payload truncated")
	}
	cell := IndexLeafCell{PayloadLen: int(payloadLen), Local: append([]byte{}, buf[off:off+local]...)}
	total := off + local
	if hasOverflow {
		cell.OverflowPage = getU32(buf[total : total+OverflowPointerSize])
		total += OverflowPointerSize
	}
	return cell, total, nil
}

type IndexInteriorCell struct {
	LeftChild    uint32
	PayloadLen   int
	Local        []byte
	OverflowPage uint32
}

func EncodeIndexInteriorCell(leftChild uint32, payload []byte, usablePageSize int) []byte {
	local, overflow := splitPayload(usablePageSize, payload, true)
	out := make([]byte, 4, 13+local+OverflowPointerSize)
	putU32(out, leftChild)
	out = record.AppendVarint(out, uint64(len(payload)))
	out = append(out, payload[:local]...)
	if overflow {
		out = append(out, make([]byte, OverflowPointerSize)...)
	}
	return out
}

func DecodeIndexInteriorCell(buf []byte, usablePageSize int) (IndexInteriorCell, int, error) {
	if len(buf) < 5 {
		return IndexInteriorCell{}, 0, sharcerr.New(sharcerr.CorruptPage, "btreefmt: truncated index interior cell")
	}
	left := getU32(buf[:4])
	payloadLen, n1 := record.GetVarint(buf[4:])
	if n1 == 0 {
		return IndexInteriorCell{}, 0, sharcerr.New(sharcerr.CorruptPage, "btreefmt: truncated index interior length")
	}
	local, hasOverflow := splitPayloadLen(usablePageSize, int(payloadLen), true)
	off := 4 + n1
	cell := IndexInteriorCell{LeftChild: left, PayloadLen: int(payloadLen), Local: append([]byte{}, buf[off:off+local]...)}
	total := off + local
	if hasOverflow {
		cell.OverflowPage = getU32(buf[total : total+OverflowPointerSize])
		total += OverflowPointerSize
	}
	return cell, total, nil
}

func putU32(buf []byte, v uint32) {
	buf[0] = byte(v >> 24)
	buf[1] = byte(v >> 16)
	buf[2] = byte(v >> 8)
	buf[3] = byte(v)
}

func getU32(buf []byte) uint32 {
	return uint32(buf[0])<<24 | uint32(buf[1])<<16 | uint32(buf[2])<<8 | uint32(buf[3])
}

// zigzagEncodeRowID/zigzagDecodeRowID let negative rowids round-trip through
// the unsigned varint encoding used for every other integer on disk.
func zigzagEncodeRowID(v int64) uint64 {
	return uint64((v << 1) ^ (v >> 63))
}

func zigzagDecodeRowID(v uint64) int64 {
	return int64(v>>1) ^ -int64(v&1)
}

// UsablePageSize derives the usable page size from the pager's fixed page
// size (the full page minus any reserved trailer space; sharc-core reserves
// none at the page level, unlike per-page reserved regions some SQLite
// extensions use for codecs).
func UsablePageSize(pageSize uint32) int { return int(pageSize) }
