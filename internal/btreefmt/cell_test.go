package btreefmt

import (
	"bytes"
	"testing"
)

func TestTableLeafCellRoundTripSmall(t *testing.T) {
	usable := 4096
	payload := []byte("a small record payload")
	enc := EncodeTableLeafCell(42, payload, usable)
	cell, n, err := DecodeTableLeafCell(enc, usable)
	if err != nil {
		t.Fatal(err)
	}
	if n != len(enc) {
		t.Fatalf("consumed %d of %d bytes", n, len(enc))
	}
	if cell.RowID != 42 {
		t.Fatalf("rowid: got %d", cell.RowID)
	}
	if cell.OverflowPage != 0 {
		t.Fatalf("expected no overflow for small payload")
	}
	if !bytes.Equal(cell.Local, payload) {
		t.Fatalf("payload mismatch: got %q want %q", cell.Local, payload)
	}
}

func TestTableLeafCellOverflowsLargePayload(t *testing.T) {
	usable := 512
	payload := bytes.Repeat([]byte("x"), 2000)
	enc := EncodeTableLeafCell(1, payload, usable)
	cell, _, err := DecodeTableLeafCell(enc, usable)
	if err != nil {
		t.Fatal(err)
	}
	if cell.OverflowPage != 0 {
		t.Fatalf("overflow page placeholder should start at 0 before patching")
	}
	if len(cell.Local) >= len(payload) {
		t.Fatalf("expected local prefix shorter than full payload")
	}
	PatchOverflowPointer(enc, 99)
	cell2, _, err := DecodeTableLeafCell(enc, usable)
	if err != nil {
		t.Fatal(err)
	}
	if cell2.OverflowPage != 99 {
		t.Fatalf("got overflow page %d want 99", cell2.OverflowPage)
	}
}

func TestTableInteriorCellRoundTrip(t *testing.T) {
	enc := EncodeTableInteriorCell(7, -12345)
	cell, n, err := DecodeTableInteriorCell(enc)
	if err != nil {
		t.Fatal(err)
	}
	if n != len(enc) || cell.LeftChild != 7 || cell.RowID != -12345 {
		t.Fatalf("got %+v", cell)
	}
}

func TestNegativeRowIDZigzagRoundTrip(t *testing.T) {
	for _, rid := range []int64{0, 1, -1, 1 << 40, -(1 << 40), -9223372036854775808} {
		enc := EncodeTableLeafCell(rid, []byte("p"), 4096)
		cell, _, err := DecodeTableLeafCell(enc, 4096)
		if err != nil {
			t.Fatal(err)
		}
		if cell.RowID != rid {
			t.Fatalf("rowid %d round-tripped as %d", rid, cell.RowID)
		}
	}
}
