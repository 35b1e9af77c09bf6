package domain

import (
	"fmt"
	"strconv"
	"time"
)

// ReferenceSuffixDigits is the width of the per-day sequence suffix. A day
// with more than 9999 bookings produces a wider suffix instead of failing.
const ReferenceSuffixDigits = 4

// NormalizeDate truncates t to midnight UTC. Every stored AppointmentDate
// goes through this, so day queries and exact-date queries agree.
func NormalizeDate(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

// DayRange returns the half-open interval [midnight, next midnight) of the
// calendar day containing t.
func DayRange(t time.Time) (start, end time.Time) {
	start = NormalizeDate(t)
	return start, start.AddDate(0, 0, 1)
}

// ReferencePrefix renders the DDMMYY date prefix shared by every reference
// issued for the calendar day of date.
func ReferencePrefix(date time.Time) string {
	d := NormalizeDate(date)
	return fmt.Sprintf("%02d%02d%02d", d.Day(), int(d.Month()), d.Year()%100)
}

// FormatReference renders the human-readable reference number for the given
// appointment date and per-day sequence: DD, MM, two-digit year, then the
// zero-padded sequence. Day 15, month 04, year 25, first booking of the day
// gives "1504250001".
func FormatReference(date time.Time, seq int) string {
	return fmt.Sprintf("%s%0*d", ReferencePrefix(date), ReferenceSuffixDigits, seq)
}

// ReferenceSequence extracts the per-day sequence from a reference number.
func ReferenceSequence(ref string) (int, error) {
	if len(ref) < 6+ReferenceSuffixDigits {
		return 0, fmt.Errorf("reference %q too short", ref)
	}
	seq, err := strconv.Atoi(ref[6:])
	if err != nil {
		return 0, fmt.Errorf("reference %q has non-numeric sequence", ref)
	}
	return seq, nil
}
