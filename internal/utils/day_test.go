package utils

import (
	"testing"
	"time"
)

func TestDayKey(t *testing.T) {
	ts := time.Date(2025, time.March, 7, 23, 59, 59, 0, time.UTC)
	if got := DayKey(ts); got != "2025-03-07" {
		t.Fatalf("DayKey = %q, want 2025-03-07", got)
	}
}

func TestDayWindow_HalfOpen(t *testing.T) {
	ts := time.Date(2025, time.March, 7, 13, 30, 0, 0, time.UTC)
	start, end := DayWindow(ts)

	if !start.Equal(time.Date(2025, time.March, 7, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("start = %v", start)
	}
	if !end.Equal(time.Date(2025, time.March, 8, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("end = %v", end)
	}
	if !ts.After(start) || !ts.Before(end) {
		t.Fatalf("window does not contain %v", ts)
	}
}

func TestEndOfDay_BeforeMidnight(t *testing.T) {
	ts := time.Date(2025, time.December, 31, 8, 0, 0, 0, time.UTC)
	eod := EndOfDay(ts)

	if !eod.Before(time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("EndOfDay crossed midnight: %v", eod)
	}
	if DayKey(eod) != DayKey(ts) {
		t.Fatalf("EndOfDay changed day: %v", eod)
	}
}
