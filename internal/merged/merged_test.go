package merged

import "testing"

func TestGUIDRoundTrip(t *testing.T) {
	hi, lo, err := ParseGUID("123e4567-e89b-12d3-a456-426614174000")
	if err != nil {
		t.Fatalf("ParseGUID: %v", err)
	}
	got := FormatGUID(hi, lo)
	if got != "123e4567-e89b-12d3-a456-426614174000" {
		t.Fatalf("round trip mismatch: got %q", got)
	}
}

func TestNewGUIDIsUnique(t *testing.T) {
	h1, l1 := NewGUID()
	h2, l2 := NewGUID()
	if h1 == h2 && l1 == l2 {
		t.Fatalf("two freshly generated GUIDs collided")
	}
}

func TestFIX128RoundTripPositiveAndNegative(t *testing.T) {
	cases := []string{"0", "1", "-1", "12.345", "-12.345", "99999999.999999999"}
	for _, s := range cases {
		hi, lo, err := ParseFIX128(s)
		if err != nil {
			t.Fatalf("ParseFIX128(%q): %v", s, err)
		}
		got := FormatFIX128(hi, lo)
		hi2, lo2, err := ParseFIX128(got)
		if err != nil {
			t.Fatalf("re-parse %q: %v", got, err)
		}
		if hi2 != hi || lo2 != lo {
			t.Fatalf("FIX128(%q): not stable under round trip, got %q", s, got)
		}
	}
}

func TestAddFIX128(t *testing.T) {
	ahi, alo, _ := ParseFIX128("1.5")
	bhi, blo, _ := ParseFIX128("2.25")
	hi, lo := AddFIX128(ahi, alo, bhi, blo)
	if got := FormatFIX128(hi, lo); got != "3.750000000" {
		t.Fatalf("expected 3.750000000, got %q", got)
	}
}
