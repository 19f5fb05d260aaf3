package pager

import "encoding/binary"

// PageType identifies the role of a B-tree page, using SQLite's own type
// byte values so the on-disk bytes are format-compatible.
type PageType byte

const (
	PageInteriorIndex PageType = 2
	PageInteriorTable PageType = 5
	PageLeafIndex     PageType = 10
	PageLeafTable     PageType = 13
)

func (t PageType) IsLeaf() bool {
	return t == PageLeafIndex || t == PageLeafTable
}

func (t PageType) IsTable() bool {
	return t == PageInteriorTable || t == PageLeafTable
}

// HeaderSize returns the on-page header size: 12 bytes for interior
// pages (which carry a right-most child pointer), 8 for leaf pages.
func (t PageType) HeaderSize() int {
	if t == PageInteriorTable || t == PageInteriorIndex {
		return 12
	}
	return 8
}

// PageHeader is the decoded form of a B-tree page's fixed header, which sits
// at offset 100 on page 1 (right after the 100-byte file header) and at
// offset 0 on every other page.
type PageHeader struct {
	Type            PageType
	FirstFreeblock  uint16
	CellCount       uint16
	CellContentArea uint16 // 0 means 65536
	FragmentedFree  byte
	RightmostChild  uint32 // interior pages only
}

// Encode writes h at the start of buf, which must have at least
// h.Type.HeaderSize() bytes available.
func (h PageHeader) Encode(buf []byte) {
	buf[0] = byte(h.Type)
	binary.BigEndian.PutUint16(buf[1:3], h.FirstFreeblock)
	binary.BigEndian.PutUint16(buf[3:5], h.CellCount)
	binary.BigEndian.PutUint16(buf[5:7], h.CellContentArea)
	buf[7] = h.FragmentedFree
	if h.Type == PageInteriorTable || h.Type == PageInteriorIndex {
		binary.BigEndian.PutUint32(buf[8:12], h.RightmostChild)
	}
}

// DecodePageHeader reads a page header from the start of buf.
func DecodePageHeader(buf []byte) PageHeader {
	h := PageHeader{
		Type:            PageType(buf[0]),
		FirstFreeblock:  binary.BigEndian.Uint16(buf[1:3]),
		CellCount:       binary.BigEndian.Uint16(buf[3:5]),
		CellContentArea: binary.BigEndian.Uint16(buf[5:7]),
		FragmentedFree:  buf[7],
	}
	if h.Type == PageInteriorTable || h.Type == PageInteriorIndex {
		h.RightmostChild = binary.BigEndian.Uint32(buf[8:12])
	}
	return h
}

// ContentAreaStart returns the usable byte offset of the cell-content area,
// expanding the on-disk 0==65536 special case.
func (h PageHeader) ContentAreaStart() int {
	if h.CellContentArea == 0 {
		return 65536
	}
	return int(h.CellContentArea)
}

// CellPointerArray reads/writes the array of 2-byte cell offsets that
// immediately follows the page header and grows downward as cells are
// added, mirroring the slot-directory idiom in the teacher's slotted_page.go
// generalized to SQLite's flat pointer array (no length field per slot --
// lengths are read back out of the cell payload itself).
type CellPointerArray struct {
	buf    []byte
	base   int
	nCells int
}

func NewCellPointerArray(buf []byte, base, nCells int) CellPointerArray {
	return CellPointerArray{buf: buf, base: base, nCells: nCells}
}

func (a CellPointerArray) Get(i int) uint16 {
	off := a.base + i*2
	return binary.BigEndian.Uint16(a.buf[off : off+2])
}

func (a CellPointerArray) Set(i int, offset uint16) {
	off := a.base + i*2
	binary.BigEndian.PutUint16(a.buf[off:off+2], offset)
}

func (a CellPointerArray) Len() int { return a.nCells }
