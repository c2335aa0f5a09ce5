package schedule

import (
	"testing"
	"time"
)

func TestClockMinutesParsesValidValues(t *testing.T) {
	cases := []struct {
		clock   string
		minutes int
	}{
		{clock: "00:00", minutes: 0},
		{clock: "09:30", minutes: 570},
		{clock: "22:00", minutes: 1320},
		{clock: "23:59", minutes: 1439},
	}
	for _, testCase := range cases {
		minutes, err := ClockMinutes(testCase.clock)
		if err != nil {
			t.Fatalf("unexpected error for %q: %v", testCase.clock, err)
		}
		if minutes != testCase.minutes {
			t.Fatalf("expected %d minutes for %q, got %d", testCase.minutes, testCase.clock, minutes)
		}
	}
}

func TestClockMinutesRejectsMalformedValues(t *testing.T) {
	for _, clock := range []string{"", "22", "24:00", "12:60", "ab:cd", "12:5x"} {
		if _, err := ClockMinutes(clock); err == nil {
			t.Fatalf("expected error for %q", clock)
		}
	}
}

func TestWithinToleranceBoundaries(t *testing.T) {
	cases := []struct {
		left  string
		right string
		want  bool
	}{
		{left: "22:00", right: "22:00", want: true},
		{left: "22:00", right: "22:30", want: true},
		{left: "22:30", right: "22:00", want: true},
		{left: "22:00", right: "22:31", want: false},
		{left: "21:29", right: "22:00", want: false},
		{left: "bogus", right: "22:00", want: false},
	}
	for _, testCase := range cases {
		if got := WithinTolerance(testCase.left, testCase.right); got != testCase.want {
			t.Fatalf("WithinTolerance(%q, %q) = %v, want %v", testCase.left, testCase.right, got, testCase.want)
		}
	}
}

func TestFindMatchPrefersTimelessEntry(t *testing.T) {
	entries := []Entry{
		{EntryID: "e1", StartTime: "", Status: StatusUndecided},
		{EntryID: "e2", StartTime: "22:00", Status: StatusLive},
	}
	match := FindMatch(entries, "22:10")
	if match == nil || match.EntryID != "e1" {
		t.Fatalf("expected timeless entry to match first, got %#v", match)
	}
}

func TestFindMatchWithinWindow(t *testing.T) {
	entries := []Entry{
		{EntryID: "e1", StartTime: "20:00"},
		{EntryID: "e2", StartTime: "22:15"},
	}
	match := FindMatch(entries, "22:00")
	if match == nil || match.EntryID != "e2" {
		t.Fatalf("expected entry within tolerance to match, got %#v", match)
	}
	if FindMatch(entries, "18:00") != nil {
		t.Fatalf("expected no match outside tolerance")
	}
}

func TestInferBroadcastStartSubtractsDuration(t *testing.T) {
	location := time.FixedZone("UTC+9", 9*60*60)
	published := time.Date(2026, 2, 13, 15, 0, 0, 0, time.UTC).UnixMilli()

	date, clock := InferBroadcastStart(published, 7200, location)
	if date != "2026-02-13" {
		t.Fatalf("expected date 2026-02-13, got %s", date)
	}
	if clock != "22:00" {
		t.Fatalf("expected clock 22:00, got %s", clock)
	}
}

func TestInferBroadcastStartCrossesMidnight(t *testing.T) {
	location := time.FixedZone("UTC+9", 9*60*60)
	// Published 00:30 local on the 14th after a one hour stream: the
	// occurrence belongs to the 13th.
	published := time.Date(2026, 2, 13, 15, 30, 0, 0, time.UTC).UnixMilli()

	date, clock := InferBroadcastStart(published, 3600, location)
	if date != "2026-02-13" {
		t.Fatalf("expected date 2026-02-13, got %s", date)
	}
	if clock != "23:30" {
		t.Fatalf("expected clock 23:30, got %s", clock)
	}
}

func TestFingerprintAndOccurrenceKeyAreStable(t *testing.T) {
	if Fingerprint("abc123") != "video:abc123" {
		t.Fatalf("unexpected fingerprint: %s", Fingerprint("abc123"))
	}
	key := OccurrenceKey("creator-1", "2026-02-13", "22:00")
	if key != "creator-1|2026-02-13|22:00" {
		t.Fatalf("unexpected occurrence key: %s", key)
	}
}

func TestValidateIDRejectsEmptyAndOversized(t *testing.T) {
	if _, err := ValidateID("   "); err == nil {
		t.Fatalf("expected error for blank id")
	}
	long := make([]byte, maxIdentifierLength+1)
	for i := range long {
		long[i] = 'a'
	}
	if _, err := ValidateID(string(long)); err == nil {
		t.Fatalf("expected error for oversized id")
	}
	id, err := ValidateID("  p-1  ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id != "p-1" {
		t.Fatalf("expected trimmed id, got %q", id)
	}
}
