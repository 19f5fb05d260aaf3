// Package pager implements the file-level pager: the 100-byte database
// header, page allocation, the page buffer cache, and (optionally) page
// encryption. Its shape mirrors tinySQL's own pager (internal/storage/pager
// in the teacher repo) -- a cache of pinned/dirty page frames backed by a
// single os.File -- but the header and page layout are the real SQLite
// on-disk format instead of the teacher's custom superblock.
package pager

import (
	"encoding/binary"

	"github.com/revred/sharc-core/internal/sharcerr"
)

const (
	HeaderSize = 100
	Magic      = "SQLite format 3\x00"

	DefaultPageSize = 4096
	MinPageSize     = 512
	MaxPageSize     = 65536
)

// Header is the 100-byte file header found at offset 0 of every database
// file, per spec §3.1/§6.1.
type Header struct {
	PageSize           uint32 // decoded; on disk 1 means 65536
	WriteVersion       byte
	ReadVersion        byte
	ReservedSpace      byte
	MaxEmbeddedPayload byte // always 64
	MinEmbeddedPayload byte // always 32
	LeafPayloadFrac    byte // always 32
	FileChangeCounter  uint32
	PageCount          uint32
	FreelistTrunkPage  uint32
	FreelistPageCount  uint32
	SchemaCookie       uint32
	SchemaFormat       uint32
	DefaultCacheSize   uint32
	LargestRootBTree   uint32
	TextEncoding       uint32 // 1=UTF-8, 2=UTF-16LE, 3=UTF-16BE
	UserVersion        uint32
	IncrementalVacuum  uint32
	ApplicationID      uint32
	VersionValidFor    uint32
	SQLiteVersion      uint32
}

// NewHeader returns a fresh header for a new database of the given page
// size, with the conventional defaults SQLite itself ships.
func NewHeader(pageSize uint32) Header {
	return Header{
		PageSize:           pageSize,
		WriteVersion:       1,
		ReadVersion:        1,
		MaxEmbeddedPayload: 64,
		MinEmbeddedPayload: 32,
		LeafPayloadFrac:    32,
		PageCount:          1,
		SchemaFormat:       4,
		TextEncoding:       1,
		SQLiteVersion:      3045000,
	}
}

// Encode writes h into a fresh 100-byte buffer.
func (h Header) Encode() []byte {
	buf := make([]byte, HeaderSize)
	copy(buf[0:16], Magic)
	binary.BigEndian.PutUint16(buf[16:18], encodePageSize(h.PageSize))
	buf[18] = h.WriteVersion
	buf[19] = h.ReadVersion
	buf[20] = h.ReservedSpace
	buf[21] = h.MaxEmbeddedPayload
	buf[22] = h.MinEmbeddedPayload
	buf[23] = h.LeafPayloadFrac
	binary.BigEndian.PutUint32(buf[24:28], h.FileChangeCounter)
	binary.BigEndian.PutUint32(buf[28:32], h.PageCount)
	binary.BigEndian.PutUint32(buf[32:36], h.FreelistTrunkPage)
	binary.BigEndian.PutUint32(buf[36:40], h.FreelistPageCount)
	binary.BigEndian.PutUint32(buf[40:44], h.SchemaCookie)
	binary.BigEndian.PutUint32(buf[44:48], h.SchemaFormat)
	binary.BigEndian.PutUint32(buf[48:52], h.DefaultCacheSize)
	binary.BigEndian.PutUint32(buf[52:56], h.LargestRootBTree)
	binary.BigEndian.PutUint32(buf[56:60], h.TextEncoding)
	binary.BigEndian.PutUint32(buf[60:64], h.UserVersion)
	binary.BigEndian.PutUint32(buf[64:68], h.IncrementalVacuum)
	binary.BigEndian.PutUint32(buf[68:72], h.ApplicationID)
	// 72:92 reserved/expansion, left zero.
	binary.BigEndian.PutUint32(buf[92:96], h.VersionValidFor)
	binary.BigEndian.PutUint32(buf[96:100], h.SQLiteVersion)
	return buf
}

// ParseHeader validates and decodes the 100-byte header at the start of buf.
func ParseHeader(buf []byte) (Header, error) {
	if len(buf) < HeaderSize {
		return Header{}, sharcerr.New(sharcerr.CorruptPage, "pager: file shorter than header")
	}
	if string(buf[0:16]) != Magic {
		return Header{}, sharcerr.New(sharcerr.CorruptPage, "pager: bad magic string")
	}
	ps := decodePageSize(binary.BigEndian.Uint16(buf[16:18]))
	if !validPageSize(ps) {
		return Header{}, sharcerr.New(sharcerr.CorruptPage, "pager: invalid page size")
	}
	h := Header{
		PageSize:           ps,
		WriteVersion:       buf[18],
		ReadVersion:        buf[19],
		ReservedSpace:      buf[20],
		MaxEmbeddedPayload: buf[21],
		MinEmbeddedPayload: buf[22],
		LeafPayloadFrac:    buf[23],
		FileChangeCounter:  binary.BigEndian.Uint32(buf[24:28]),
		PageCount:          binary.BigEndian.Uint32(buf[28:32]),
		FreelistTrunkPage:  binary.BigEndian.Uint32(buf[32:36]),
		FreelistPageCount:  binary.BigEndian.Uint32(buf[36:40]),
		SchemaCookie:       binary.BigEndian.Uint32(buf[40:44]),
		SchemaFormat:       binary.BigEndian.Uint32(buf[44:48]),
		DefaultCacheSize:   binary.BigEndian.Uint32(buf[48:52]),
		LargestRootBTree:   binary.BigEndian.Uint32(buf[52:56]),
		TextEncoding:       binary.BigEndian.Uint32(buf[56:60]),
		UserVersion:        binary.BigEndian.Uint32(buf[60:64]),
		IncrementalVacuum:  binary.BigEndian.Uint32(buf[64:68]),
		ApplicationID:      binary.BigEndian.Uint32(buf[68:72]),
		VersionValidFor:    binary.BigEndian.Uint32(buf[92:96]),
		SQLiteVersion:      binary.BigEndian.Uint32(buf[96:100]),
	}
	return h, nil
}

func validPageSize(ps uint32) bool {
	if ps == MaxPageSize {
		return true
	}
	if ps < MinPageSize || ps > MaxPageSize/2 {
		return false
	}
	return ps&(ps-1) == 0
}

// encodePageSize applies the special case: 65536 is stored as 1 because the
// header field is only 16 bits wide.
func encodePageSize(ps uint32) uint16 {
	if ps == MaxPageSize {
		return 1
	}
	return uint16(ps)
}

func decodePageSize(v uint16) uint32 {
	if v == 1 {
		return MaxPageSize
	}
	return uint32(v)
}
