package timeparse

import (
	"testing"
	"time"
)

var ref = time.Date(2026, time.August, 31, 10, 30, 0, 0, time.UTC)

func TestResolve_RelativeForms(t *testing.T) {
	cases := []struct {
		in   string
		want time.Time
	}{
		{"", ref},
		{"now", ref},
		{"Now!", ref},
		{"-30", ref.Add(-30 * time.Minute)},
		{"-2h", ref.Add(-2 * time.Hour)},
		{"-1 day", ref.Add(-24 * time.Hour)},
		{"2 hours ago", ref.Add(-2 * time.Hour)},
		{"90 mins ago", ref.Add(-90 * time.Minute)},
		{"1.5 hours ago", ref.Add(-90 * time.Minute)},
		{"1 day ago", ref.Add(-24 * time.Hour)},
		{"45m ago", ref.Add(-45 * time.Minute)},
	}
	for _, c := range cases {
		got, ok := Resolve(c.in, ref, ref)
		if !ok {
			t.Fatalf("Resolve(%q) failed", c.in)
		}
		if !got.Equal(c.want) {
			t.Fatalf("Resolve(%q)=%v want=%v", c.in, got, c.want)
		}
	}
}

func TestResolve_DayRelative(t *testing.T) {
	midnight := time.Date(2026, time.August, 31, 0, 0, 0, 0, time.UTC)
	cases := []struct {
		in   string
		want time.Time
	}{
		{"today", midnight},
		{"yesterday", midnight.AddDate(0, 0, -1)},
		{"tomorrow", midnight.AddDate(0, 0, 1)},
		{"yesterday at 9pm", midnight.AddDate(0, 0, -1).Add(21 * time.Hour)},
		{"today at 14:30", midnight.Add(14*time.Hour + 30*time.Minute)},
		{"tomorrow at 8am", midnight.AddDate(0, 0, 1).Add(8 * time.Hour)},
	}
	for _, c := range cases {
		got, ok := Resolve(c.in, ref, ref)
		if !ok {
			t.Fatalf("Resolve(%q) failed", c.in)
		}
		if !got.Equal(c.want) {
			t.Fatalf("Resolve(%q)=%v want=%v", c.in, got, c.want)
		}
	}
}

func TestResolve_TimeOnlyUsesReferenceDay(t *testing.T) {
	got, ok := Resolve("9:15pm", ref, ref)
	if !ok {
		t.Fatalf("Resolve failed")
	}
	want := time.Date(2026, time.August, 31, 21, 15, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("got=%v want=%v", got, want)
	}

	got, ok = Resolve("14:05", ref, ref)
	if !ok {
		t.Fatalf("Resolve failed")
	}
	want = time.Date(2026, time.August, 31, 14, 5, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("got=%v want=%v", got, want)
	}
}

func TestResolve_ExplicitDates(t *testing.T) {
	cases := []struct {
		in   string
		want time.Time
	}{
		{"2026-08-30 21:15:00", time.Date(2026, time.August, 30, 21, 15, 0, 0, time.UTC)},
		{"2026-08-30", time.Date(2026, time.August, 30, 0, 0, 0, 0, time.UTC)},
		{"8/30/2026 9:15 pm", time.Date(2026, time.August, 30, 21, 15, 0, 0, time.UTC)},
		{"aug 30 2026 9:15pm", time.Date(2026, time.August, 30, 21, 15, 0, 0, time.UTC)},
		{"August 30th, 2026", time.Date(2026, time.August, 30, 0, 0, 0, 0, time.UTC)},
		{"aug 30 2026 9:15 pm EST", time.Date(2026, time.August, 30, 21, 15, 0, 0, time.UTC)},
		{"Aug 30 2026 9:15 PM (after the raid)", time.Date(2026, time.August, 30, 21, 15, 0, 0, time.UTC)},
	}
	for _, c := range cases {
		got, ok := Resolve(c.in, ref, ref)
		if !ok {
			t.Fatalf("Resolve(%q) failed", c.in)
		}
		if !got.Equal(c.want) {
			t.Fatalf("Resolve(%q)=%v want=%v", c.in, got, c.want)
		}
	}
}

func TestResolve_RejectsGarbage(t *testing.T) {
	for _, in := range []string{"not a time", "naggy died", "25:00", "13pm", "99/99/2026 5pm"} {
		if got, ok := Resolve(in, ref, ref); ok {
			t.Fatalf("Resolve(%q) unexpectedly parsed as %v", in, got)
		}
	}
}

func TestResolve_ClockEdgeCases(t *testing.T) {
	// A bare 24 with no meridiem normalizes to midnight.
	got, ok := Resolve("24:00", ref, ref)
	if !ok {
		t.Fatalf("Resolve failed")
	}
	want := time.Date(2026, time.August, 31, 0, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("got=%v want=%v", got, want)
	}

	// 12am is midnight, 12pm is noon.
	got, _ = Resolve("12am", ref, ref)
	if got.Hour() != 0 {
		t.Fatalf("12am hour=%d want=0", got.Hour())
	}
	got, _ = Resolve("12pm", ref, ref)
	if got.Hour() != 12 {
		t.Fatalf("12pm hour=%d want=12", got.Hour())
	}
}

func TestResolve_ZeroReferenceFallsBackToNow(t *testing.T) {
	before := time.Now()
	got, ok := Resolve("now", time.Time{}, time.Time{})
	if !ok {
		t.Fatalf("Resolve failed")
	}
	if got.Before(before.Add(-time.Second)) || got.After(time.Now().Add(time.Second)) {
		t.Fatalf("expected roughly the current time, got %v", got)
	}
}
