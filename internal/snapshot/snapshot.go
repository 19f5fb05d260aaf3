// Package snapshot implements a copy-on-capture frozen read view of a
// database file: Capture copies every page into memory once, and reads
// against the snapshot never see subsequent writes to the live file.
//
// This simplifies the teacher's full row-versioned MVCC (internal/storage
// mvcc.go, which tracks per-row version chains and a transaction table) down
// to the single frozen-snapshot model this engine specifies: one full copy
// per Capture, bounded by a configurable byte ceiling so a pathologically
// large database fails fast instead of exhausting memory.
package snapshot

import (
	"github.com/revred/sharc-core/internal/pager"
	"github.com/revred/sharc-core/internal/sharcerr"
)

// Snapshot is a frozen, read-only copy of a database's pages as of the
// moment Capture ran.
type Snapshot struct {
	pageSize uint32
	header   pager.Header
	pages    map[uint32][]byte
}

// DefaultMaxBytes bounds how large a snapshot Capture will create before
// failing with sharcerr.InvalidOperation, guarding against an accidental
// full copy of a multi-gigabyte database.
const DefaultMaxBytes = 512 * 1024 * 1024

// Capture copies every page of p (1..PageCount) into a new Snapshot. maxBytes
// <= 0 uses DefaultMaxBytes.
func Capture(p *pager.Pager, maxBytes int64) (*Snapshot, error) {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	total := int64(p.PageCount()) * int64(p.PageSize())
	if total > maxBytes {
		return nil, sharcerr.New(sharcerr.InvalidOperation, "snapshot: database exceeds configured snapshot byte limit")
	}

	s := &Snapshot{pageSize: p.PageSize(), header: p.Header(), pages: make(map[uint32][]byte, p.PageCount())}
	for pn := uint32(1); pn <= p.PageCount(); pn++ {
		buf, err := p.ReadPage(pn)
		if err != nil {
			return nil, err
		}
		cp := make([]byte, len(buf))
		copy(cp, buf)
		s.pages[pn] = cp
	}
	return s, nil
}

// PageSize reports the snapshot's page size.
func (s *Snapshot) PageSize() uint32 { return s.pageSize }

// PageCount reports how many pages the snapshot holds.
func (s *Snapshot) PageCount() uint32 { return s.header.PageCount }

// ReadPage returns a copy of pageNum's bytes as captured, satisfying the
// same contract as pager.Pager.ReadPage for read-only callers (e.g. the
// executor scanning a frozen view instead of the live file).
func (s *Snapshot) ReadPage(pageNum uint32) ([]byte, error) {
	buf, ok := s.pages[pageNum]
	if !ok {
		return nil, sharcerr.New(sharcerr.OutOfRange, "snapshot: page not present")
	}
	cp := make([]byte, len(buf))
	copy(cp, buf)
	return cp, nil
}
