package models

import "testing"

func TestIdCursorRoundTrip(t *testing.T) {
	encoded := EncodeIdCursor(42)
	id, err := DecodeIdCursor(&encoded)
	if err != nil {
		t.Fatalf("DecodeIdCursor: %v", err)
	}
	if id != 42 {
		t.Fatalf("expected 42, got %d", id)
	}
}

func TestIdCursorNilAndEmpty(t *testing.T) {
	if id, err := DecodeIdCursor(nil); err != nil || id != 0 {
		t.Fatalf("nil cursor must decode to 0, got %d err=%v", id, err)
	}
	empty := ""
	if id, err := DecodeIdCursor(&empty); err != nil || id != 0 {
		t.Fatalf("empty cursor must decode to 0, got %d err=%v", id, err)
	}
	garbage := "not-base64!!!"
	if _, err := DecodeIdCursor(&garbage); err == nil {
		t.Fatalf("garbage cursor must fail to decode")
	}
}

func TestCompositeCursorRoundTrip(t *testing.T) {
	encoded := EncodeCompositeCursor("2026-03-10 09:00:00", 17)
	value, id := DecodeCompositeCursor(&encoded)
	if value != "2026-03-10 09:00:00" || id != 17 {
		t.Fatalf("round trip mismatch: %q %d", value, id)
	}
}

func TestCompositeCursorMalformed(t *testing.T) {
	garbage := "%%%"
	if value, id := DecodeCompositeCursor(&garbage); value != "" || id != 0 {
		t.Fatalf("malformed cursor must decode to zero values, got %q %d", value, id)
	}
	if value, id := DecodeCompositeCursor(nil); value != "" || id != 0 {
		t.Fatalf("nil cursor must decode to zero values, got %q %d", value, id)
	}
}

func TestClampLimit(t *testing.T) {
	if got := clampLimit(0); got != defaultPageLimit {
		t.Fatalf("zero limit must default to %d, got %d", defaultPageLimit, got)
	}
	if got := clampLimit(-5); got != defaultPageLimit {
		t.Fatalf("negative limit must default, got %d", got)
	}
	if got := clampLimit(10_000); got != maxPageLimit {
		t.Fatalf("oversized limit must clamp to %d, got %d", maxPageLimit, got)
	}
	if got := clampLimit(7); got != 7 {
		t.Fatalf("in-range limit must pass through, got %d", got)
	}
}
