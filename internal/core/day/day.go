package day

import (
	"fmt"
	"time"
)

// Layout is the canonical wire form of a day key.
const Layout = "2006-01-02"

// Key identifies one calendar day in a fixed location.
// It is the primary key of the daily snapshot table: exactly one snapshot
// row exists per Key. The zero value is not a valid key.
type Key struct {
	start time.Time // midnight at the start of the day
}

// Of returns the key for the calendar day containing t, in t's location.
func Of(t time.Time) Key {
	year, month, d := t.Date()
	return Key{start: time.Date(year, month, d, 0, 0, 0, 0, t.Location())}
}

// Parse parses a "2006-01-02" day string in the given location.
func Parse(s string, loc *time.Location) (Key, error) {
	if loc == nil {
		loc = time.Local
	}
	t, err := time.ParseInLocation(Layout, s, loc)
	if err != nil {
		return Key{}, fmt.Errorf("invalid day %q: %w", s, err)
	}
	return Key{start: t}, nil
}

// Start returns midnight at the start of the day.
func (k Key) Start() time.Time { return k.start }

// End returns midnight at the start of the following day.
// The day window is the half-open interval [Start, End).
func (k Key) End() time.Time { return k.start.AddDate(0, 0, 1) }

// Contains reports whether t falls within the day window [Start, End).
func (k Key) Contains(t time.Time) bool {
	return !t.Before(k.start) && t.Before(k.End())
}

// AddDays returns the key n days after k (n may be negative).
func (k Key) AddDays(n int) Key {
	return Key{start: k.start.AddDate(0, 0, n)}
}

// Before reports whether k is an earlier calendar day than other.
func (k Key) Before(other Key) bool { return k.start.Before(other.start) }

// Equal reports whether both keys name the same calendar day.
func (k Key) Equal(other Key) bool { return k.start.Equal(other.start) }

// IsZero reports whether k is the zero (invalid) key.
func (k Key) IsZero() bool { return k.start.IsZero() }

func (k Key) String() string { return k.start.Format(Layout) }
