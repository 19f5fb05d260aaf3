package record

import (
	"bytes"
	"testing"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	cases := []struct {
		name string
		vals []Value
	}{
		{"empty", nil},
		{"null", []Value{Null()}},
		{"small ints", []Value{Int(0), Int(1), Int(-1), Int(127), Int(-128)}},
		{"wide ints", []Value{Int(1 << 40), Int(-(1 << 40)), Int(1 << 62)}},
		{"float", []Value{Float(3.14159), Float(-0.0), Float(1e300)}},
		{"text", []Value{Text(""), Text("hello"), Text("unicode: é日")}},
		{"blob", []Value{Blob(nil), Blob([]byte{1, 2, 3, 0, 255})}},
		{"mixed", []Value{Int(42), Text("row"), Null(), Float(2.5), Blob([]byte("x"))}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			enc := Encode(tc.vals)
			got, err := Decode(enc)
			if err != nil {
				t.Fatalf("Decode: %v", err)
			}
			if len(got) != len(tc.vals) {
				t.Fatalf("len mismatch: got %d want %d", len(got), len(tc.vals))
			}
			for i := range tc.vals {
				want := tc.vals[i]
				have := got[i]
				if have.Kind != want.Kind {
					t.Fatalf("col %d kind: got %v want %v", i, have.Kind, want.Kind)
				}
				switch want.Kind {
				case KindInt:
					if have.I != want.I {
						t.Fatalf("col %d int: got %d want %d", i, have.I, want.I)
					}
				case KindFloat:
					if have.F != want.F && !(have.F == 0 && want.F == 0) {
						t.Fatalf("col %d float: got %v want %v", i, have.F, want.F)
					}
				case KindText:
					if have.S != want.S {
						t.Fatalf("col %d text: got %q want %q", i, have.S, want.S)
					}
				case KindBlob:
					if !bytes.Equal(have.B, want.B) {
						t.Fatalf("col %d blob: got %v want %v", i, have.B, want.B)
					}
				}
			}
		})
	}
}

func TestIntSerialTypeWidths(t *testing.T) {
	cases := []struct {
		v    int64
		code uint64
	}{
		{0, 8}, {1, 9}, {2, 1}, {-1, 1},
		{200, 2}, {-200, 2},
		{1 << 20, 3},
		{1 << 30, 4},
		{1 << 40, 5},
		{1 << 60, 6},
	}
	for _, tc := range cases {
		code, _ := serialType(Int(tc.v))
		if code != tc.code {
			t.Errorf("Int(%d): got code %d want %d", tc.v, code, tc.code)
		}
	}
}

func TestVarintRoundTrip(t *testing.T) {
	vals := []uint64{0, 1, 127, 128, 16383, 16384, 1 << 30, 1 << 40, ^uint64(0)}
	for _, v := range vals {
		var buf [MaxVarintLen]byte
		n := PutVarint(buf[:], v)
		got, m := GetVarint(buf[:n])
		if m != n {
			t.Fatalf("varint %d: consumed %d want %d", v, m, n)
		}
		if got != v {
			t.Fatalf("varint %d: got %d", v, got)
		}
	}
}
