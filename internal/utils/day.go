// Package utils provides small, generic helper functions used across
// different layers of the application. These utilities are independent
// of domain or business logic.
package utils

import "time"

// DayKey formats t as a calendar-day key ("2006-01-02") in t's location.
// The same key scopes code uniqueness and reminder idempotency windows.
func DayKey(t time.Time) string {
	return t.Format("2006-01-02")
}

// DayWindow returns the half-open interval [00:00, next 00:00) containing t,
// in t's location.
func DayWindow(t time.Time) (start, end time.Time) {
	start = time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	return start, start.AddDate(0, 0, 1)
}

// EndOfDay returns the last representable instant before midnight following t.
// Delivery-confirmation codes expire here.
func EndOfDay(t time.Time) time.Time {
	start, _ := DayWindow(t)
	return start.AddDate(0, 0, 1).Add(-time.Nanosecond)
}
