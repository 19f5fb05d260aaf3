package record

import (
	"fmt"
	"math"

	"github.com/revred/sharc-core/internal/sharcerr"
)

// Kind identifies the logical type a decoded Value holds.
type Kind int

const (
	KindNull Kind = iota
	KindInt
	KindFloat
	KindText
	KindBlob
)

// Value is a single column value as read off or written to a cell payload.
type Value struct {
	Kind Kind
	I    int64
	F    float64
	S    string
	B    []byte
}

func Null() Value          { return Value{Kind: KindNull} }
func Int(v int64) Value    { return Value{Kind: KindInt, I: v} }
func Float(v float64) Value { return Value{Kind: KindFloat, F: v} }
func Text(v string) Value  { return Value{Kind: KindText, S: v} }
func Blob(v []byte) Value  { return Value{Kind: KindBlob, B: v} }

// String renders v for display, e.g. in CLI table output.
func (v Value) String() string {
	switch v.Kind {
	case KindNull:
		return ""
	case KindInt:
		return fmt.Sprintf("%d", v.I)
	case KindFloat:
		return fmt.Sprintf("%g", v.F)
	case KindText:
		return v.S
	case KindBlob:
		return fmt.Sprintf("x'%x'", v.B)
	}
	return ""
}

// serialType computes the on-disk type code for v, per the spec's type-code
// table: 0=NULL, 1-6 signed ints of width 1/2/3/4/6/8, 7=double, 8/9=const
// 0/1, even>=12 BLOB of (N-12)/2 bytes, odd>=13 TEXT of (N-13)/2 bytes.
func serialType(v Value) (code uint64, payload []byte) {
	switch v.Kind {
	case KindNull:
		return 0, nil
	case KindInt:
		return intSerialType(v.I)
	case KindFloat:
		var buf [8]byte
		putBE64(buf[:], math.Float64bits(v.F))
		return 7, buf[:]
	case KindText:
		b := []byte(v.S)
		return uint64(len(b))*2 + 13, b
	case KindBlob:
		return uint64(len(v.B))*2 + 12, v.B
	}
	return 0, nil
}

func intSerialType(v int64) (uint64, []byte) {
	switch {
	case v == 0:
		return 8, nil
	case v == 1:
		return 9, nil
	case v >= -(1<<7) && v < 1<<7:
		return 1, beInt(v, 1)
	case v >= -(1<<15) && v < 1<<15:
		return 2, beInt(v, 2)
	case v >= -(1<<23) && v < 1<<23:
		return 3, beInt(v, 3)
	case v >= -(1<<31) && v < 1<<31:
		return 4, beInt(v, 4)
	case v >= -(1<<47) && v < 1<<47:
		return 5, beInt(v, 6)
	default:
		return 6, beInt(v, 8)
	}
}

func beInt(v int64, width int) []byte {
	buf := make([]byte, width)
	u := uint64(v)
	for i := width - 1; i >= 0; i-- {
		buf[i] = byte(u)
		u >>= 8
	}
	return buf
}

func decodeInt(buf []byte) int64 {
	var u uint64
	neg := buf[0]&0x80 != 0
	if neg {
		u = ^uint64(0)
	}
	for _, b := range buf {
		u = u<<8 | uint64(b)
	}
	return int64(u)
}

func putBE64(buf []byte, v uint64) {
	for i := 7; i >= 0; i-- {
		buf[i] = byte(v)
		v >>= 8
	}
}

// Encode serializes values into the cell payload format: a varint-length-
// prefixed header of per-column serial-type varints, followed by the
// concatenated column payload bytes.
func Encode(values []Value) []byte {
	codes := make([]uint64, len(values))
	payloads := make([][]byte, len(values))
	headerBody := 0
	bodyLen := 0
	for i, v := range values {
		code, payload := serialType(v)
		codes[i] = code
		payloads[i] = payload
		headerBody += VarintLen(code)
		bodyLen += len(payload)
	}

	// The header itself begins with a varint of the header's total length
	// (including that varint), so solve for a fixed point: most records need
	// only 1-2 bytes to express it.
	headerLen := headerBody + 1
	for {
		n := VarintLen(uint64(headerLen))
		if n+headerBody == headerLen {
			break
		}
		headerLen = n + headerBody
	}

	out := make([]byte, 0, headerLen+bodyLen)
	out = AppendVarint(out, uint64(headerLen))
	for _, c := range codes {
		out = AppendVarint(out, c)
	}
	for _, p := range payloads {
		out = append(out, p...)
	}
	return out
}

// Decode parses a cell payload back into Values, in column order.
func Decode(buf []byte) ([]Value, error) {
	headerLen, n := GetVarint(buf)
	if n == 0 {
		return nil, sharcerr.New(sharcerr.CorruptPage, "record: truncated header length varint")
	}
	if int(headerLen) > len(buf) {
		return nil, sharcerr.New(sharcerr.CorruptPage, "record: header length exceeds payload")
	}
	header := buf[n:headerLen]
	body := buf[headerLen:]

	var codes []uint64
	for len(header) > 0 {
		c, m := GetVarint(header)
		if m == 0 {
			return nil, sharcerr.New(sharcerr.CorruptPage, "record: truncated serial-type varint")
		}
		codes = append(codes, c)
		header = header[m:]
	}

	values := make([]Value, len(codes))
	off := 0
	for i, code := range codes {
		v, size, err := decodeOne(code, body[off:])
		if err != nil {
			return nil, err
		}
		values[i] = v
		off += size
	}
	return values, nil
}

func decodeOne(code uint64, buf []byte) (Value, int, error) {
	switch {
	case code == 0:
		return Null(), 0, nil
	case code >= 1 && code <= 6:
		widths := [...]int{1, 2, 3, 4, 6, 8}
		w := widths[code-1]
		if len(buf) < w {
			return Value{}, 0, sharcerr.New(sharcerr.CorruptPage, "record: truncated integer column")
		}
		return Int(decodeInt(buf[:w])), w, nil
	case code == 7:
		if len(buf) < 8 {
			return Value{}, 0, sharcerr.New(sharcerr.CorruptPage, "record: truncated float column")
		}
		var u uint64
		for _, b := range buf[:8] {
			u = u<<8 | uint64(b)
		}
		return Float(math.Float64frombits(u)), 8, nil
	case code == 8:
		return Int(0), 0, nil
	case code == 9:
		return Int(1), 0, nil
	case code >= 12 && code%2 == 0:
		n := int((code - 12) / 2)
		if len(buf) < n {
			return Value{}, 0, sharcerr.New(sharcerr.CorruptPage, "record: truncated blob column")
		}
		b := make([]byte, n)
		copy(b, buf[:n])
		return Blob(b), n, nil
	case code >= 13 && code%2 == 1:
		n := int((code - 13) / 2)
		if len(buf) < n {
			return Value{}, 0, sharcerr.New(sharcerr.CorruptPage, "record: truncated text column")
		}
		return Text(string(buf[:n])), n, nil
	default:
		return Value{}, 0, fmt.Errorf("record: unknown serial type %d", code)
	}
}
