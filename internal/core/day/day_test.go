package day

import (
	"testing"
	"time"
)

func mustParse(t *testing.T, s string, loc *time.Location) Key {
	t.Helper()
	k, err := Parse(s, loc)
	if err != nil {
		t.Fatal(err)
	}
	return k
}

func TestOfTruncatesToMidnight(t *testing.T) {
	moment := time.Date(2024, 5, 20, 23, 59, 59, 0, time.UTC)
	k := Of(moment)
	if got := k.Start(); !got.Equal(time.Date(2024, 5, 20, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("Start() = %v", got)
	}
	if k.String() != "2024-05-20" {
		t.Errorf("String() = %q", k.String())
	}
}

func TestParseRejectsBadInput(t *testing.T) {
	for _, s := range []string{"", "20-05-2024", "2024-13-01", "2024-05-20T10:00:00Z"} {
		if _, err := Parse(s, time.UTC); err == nil {
			t.Errorf("Parse(%q): expected error", s)
		}
	}
}

func TestWindowIsHalfOpen(t *testing.T) {
	k := mustParse(t, "2024-05-20", time.UTC)

	if !k.Contains(k.Start()) {
		t.Error("start of day must be inside the window")
	}
	if !k.Contains(k.End().Add(-time.Nanosecond)) {
		t.Error("last instant of the day must be inside the window")
	}
	if k.Contains(k.End()) {
		t.Error("next midnight must be outside the window")
	}
	if k.Contains(k.Start().Add(-time.Nanosecond)) {
		t.Error("previous day must be outside the window")
	}
}

func TestAddDaysAndOrdering(t *testing.T) {
	k := mustParse(t, "2024-05-20", time.UTC)

	prev := k.AddDays(-1)
	if prev.String() != "2024-05-19" {
		t.Errorf("AddDays(-1) = %s", prev)
	}
	if !prev.Before(k) || k.Before(prev) {
		t.Error("ordering broken")
	}
	if !k.AddDays(0).Equal(k) {
		t.Error("AddDays(0) must be identity")
	}

	// Month boundary.
	if got := mustParse(t, "2024-05-31", time.UTC).AddDays(1).String(); got != "2024-06-01" {
		t.Errorf("month rollover = %s", got)
	}
}

func TestKeysAreLocationAware(t *testing.T) {
	sp, err := time.LoadLocation("America/Sao_Paulo")
	if err != nil {
		t.Skip("tzdata unavailable")
	}

	// 01:00 UTC on the 21st is still the evening of the 20th in São Paulo.
	moment := time.Date(2024, 5, 21, 1, 0, 0, 0, time.UTC)
	if got := Of(moment.In(sp)).String(); got != "2024-05-20" {
		t.Errorf("Of() in São Paulo = %s", got)
	}
	if got := Of(moment).String(); got != "2024-05-21" {
		t.Errorf("Of() in UTC = %s", got)
	}
}

func TestZeroKey(t *testing.T) {
	var k Key
	if !k.IsZero() {
		t.Error("zero value must report IsZero")
	}
	if mustParse(t, "2024-05-20", time.UTC).IsZero() {
		t.Error("parsed key must not report IsZero")
	}
}
