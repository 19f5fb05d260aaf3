package record

import "math"

// Ordered-key tags. Distinct from the serialType codes above: these order
// NULL before every other kind, which is all that's required since a single
// index column's values all share one declared type.
const (
	tagOrderedNull = 0
	tagOrderedInt  = 1
	tagOrderedReal = 2
	tagOrderedText = 3
	tagOrderedBlob = 4
)

// AppendOrderedKey appends v's order-preserving byte encoding to buf: the
// result of bytes.Compare over two such encodings always agrees with SQL
// comparison order for values of the same declared type. Used to build
// secondary-index keys (spec §4.3.3) and WITHOUT ROWID clustering keys,
// where the B-tree orders entries by raw key bytes rather than a decoded
// value.
//
// TEXT and BLOB are encoded as their raw bytes followed by a 0x00
// terminator, which is what gives two encodings sharing a common prefix
// (e.g. "ab" and "abc") their correct relative order; values containing an
// embedded 0x00 byte are out of scope (see DESIGN.md).
func AppendOrderedKey(buf []byte, v Value) []byte {
	switch v.Kind {
	case KindNull:
		return append(buf, tagOrderedNull)
	case KindInt:
		buf = append(buf, tagOrderedInt)
		return appendOrderedUint64(buf, uint64(v.I)^signBit)
	case KindFloat:
		buf = append(buf, tagOrderedReal)
		return appendOrderedUint64(buf, orderedFloatBits(v.F))
	case KindText:
		buf = append(buf, tagOrderedText)
		buf = append(buf, []byte(v.S)...)
		return append(buf, 0x00)
	case KindBlob:
		buf = append(buf, tagOrderedBlob)
		buf = append(buf, v.B...)
		return append(buf, 0x00)
	}
	return append(buf, tagOrderedNull)
}

const signBit = uint64(1) << 63

func appendOrderedUint64(buf []byte, u uint64) []byte {
	var tmp [8]byte
	for i := 7; i >= 0; i-- {
		tmp[i] = byte(u)
		u >>= 8
	}
	return append(buf, tmp[:]...)
}

// orderedFloatBits maps a float64's bit pattern so unsigned comparison of
// the result matches float comparison order: for non-negative floats, flip
// the sign bit; for negative floats, flip every bit.
func orderedFloatBits(f float64) uint64 {
	bits := math.Float64bits(f)
	if bits&signBit != 0 {
		return ^bits
	}
	return bits | signBit
}

// orderedIntWidth is the fixed width of an Int's ordered-key encoding: one
// tag byte plus 8 big-endian magnitude bytes.
const orderedIntWidth = 9

// TrailingOrderedRowID extracts the int64 rowid appended as the final
// component of a composite index key built by repeated AppendOrderedKey
// calls ending in AppendOrderedKey(buf, Int(rowid)) -- the representation
// used by internal/writer's secondary-index and WITHOUT ROWID key encoding.
// ok is false if key is too short to hold a trailing ordered int.
func TrailingOrderedRowID(key []byte) (rowid int64, ok bool) {
	if len(key) < orderedIntWidth {
		return 0, false
	}
	tail := key[len(key)-orderedIntWidth:]
	if tail[0] != tagOrderedInt {
		return 0, false
	}
	var u uint64
	for _, b := range tail[1:] {
		u = u<<8 | uint64(b)
	}
	return int64(u ^ signBit), true
}
