package catalog

import (
	"github.com/revred/sharc-core/internal/record"
	"github.com/revred/sharc-core/internal/sharcerr"
)

// IndexKey builds the composite, order-preserving B-tree key for one row's
// entry in a secondary index (or a WITHOUT ROWID table's own clustering
// key): the encoded value of every column in columns, in order, followed by
// the row's rowid -- which both guarantees uniqueness across duplicate
// indexed values and lets a matched index entry be translated back to its
// table row without re-decoding the whole key (see
// record.TrailingOrderedRowID). A merged GUID/FIX128 column contributes
// both of its physical halves, hi then lo, so the composite key orders by
// the merged value as a whole rather than only its hi half (spec §4.8 step
// 1's concern for predicate evaluation applies equally to index ordering).
func (t *TableDef) IndexKey(columns []string, phys []record.Value, rowid int64) ([]byte, error) {
	key, err := t.IndexKeyPrefix(columns, phys)
	if err != nil {
		return nil, err
	}
	return record.AppendOrderedKey(key, record.Int(rowid)), nil
}

// IndexKeyPrefix builds the same ordered-key encoding as IndexKey but
// without the trailing rowid, for seeking a prefix match when the per-entry
// rowid isn't known ahead of time -- e.g. a WITHOUT ROWID table's point
// lookup or update by primary key.
func (t *TableDef) IndexKeyPrefix(columns []string, phys []record.Value) ([]byte, error) {
	var key []byte
	for _, col := range columns {
		if lc, ok := t.PhysicalColumn(col); ok {
			key = record.AppendOrderedKey(key, phys[lc.PhysIdx])
			if lc.Kind == LogicalGUID || lc.Kind == LogicalFIX128 {
				key = record.AppendOrderedKey(key, phys[lc.PhysIdxLo])
			}
			continue
		}
		physIdx, ok := t.ResolvePhysical(col)
		if !ok {
			return nil, sharcerr.New(sharcerr.InvalidArgument, "catalog: unknown indexed column "+col)
		}
		key = record.AppendOrderedKey(key, phys[physIdx])
	}
	return key, nil
}
