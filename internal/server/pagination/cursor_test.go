package pagination

import (
	"testing"
	"time"
)

func TestCursorRoundTrip(t *testing.T) {
	ts := time.Date(2026, 4, 10, 14, 30, 0, 123456789, time.UTC)
	cursor := EncodeCursor(ts, 42)

	gotTS, gotID, err := DecodeCursor(cursor)
	if err != nil {
		t.Fatalf("DecodeCursor: %v", err)
	}
	if !gotTS.Equal(ts) {
		t.Errorf("Timestamp = %v, want %v", gotTS, ts)
	}
	if gotID != 42 {
		t.Errorf("ID = %d, want 42", gotID)
	}
}

func TestDecodeCursorRejectsGarbage(t *testing.T) {
	for _, cursor := range []string{
		"not base64 at all!!!",
		"aGVsbG8=",             // decodes but has no separator
		"MjAyNnwxMjM=",         // separator present, bad timestamp
		"bm90LWEtdGltZXxhYmM=", // bad id
	} {
		if _, _, err := DecodeCursor(cursor); err == nil {
			t.Errorf("DecodeCursor(%q) should fail", cursor)
		}
	}
}
