// Package merged implements the two merged-logical-column codecs used by
// the catalog: GUID (split into __hi/__lo int64 physical columns) and
// FIX128 fixed-point decimal (split into __dhi/__dlo). Both are grounded on
// the teacher's storage helpers (uuid_helpers.go, decimal.go), generalized
// from ad hoc any-typed helpers into the paired-physical-column codecs the
// catalog's logical/physical column mapping needs.
package merged

import (
	"encoding/binary"

	"github.com/google/uuid"

	"github.com/revred/sharc-core/internal/sharcerr"
)

// GUIDToHiLo splits a GUID into the two big-endian-ordered int64 halves
// stored as its physical __hi/__lo columns.
func GUIDToHiLo(id uuid.UUID) (hi, lo int64) {
	hi = int64(binary.BigEndian.Uint64(id[0:8]))
	lo = int64(binary.BigEndian.Uint64(id[8:16]))
	return hi, lo
}

// GUIDFromHiLo reassembles a GUID from its two physical columns.
func GUIDFromHiLo(hi, lo int64) uuid.UUID {
	var id uuid.UUID
	binary.BigEndian.PutUint64(id[0:8], uint64(hi))
	binary.BigEndian.PutUint64(id[8:16], uint64(lo))
	return id
}

// ParseGUID parses a textual GUID (hyphenated or not) into its two physical
// column values.
func ParseGUID(s string) (hi, lo int64, err error) {
	id, perr := uuid.Parse(s)
	if perr != nil {
		return 0, 0, sharcerr.Wrap(sharcerr.InvalidArgument, "merged: invalid guid literal", perr)
	}
	hi, lo = GUIDToHiLo(id)
	return hi, lo, nil
}

// FormatGUID renders the hi/lo physical pair back to its canonical textual
// form.
func FormatGUID(hi, lo int64) string {
	return GUIDFromHiLo(hi, lo).String()
}

// NewGUID generates a fresh random (v4) GUID's physical hi/lo pair.
func NewGUID() (hi, lo int64) {
	return GUIDToHiLo(uuid.New())
}
