package core

import (
	"testing"
	"time"
	_ "time/tzdata"
)

func TestPeriodAcrossDaylightSaving(t *testing.T) {
	ny, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Fatal(err)
	}
	utc := func(y int, m time.Month, d, h, min int) time.Time {
		return time.Date(y, m, d, h, min, 0, 0, time.UTC)
	}

	tests := []struct {
		name string
		at   time.Time
		want Period
	}{
		{"last minute before spring forward", utc(2025, 3, 9, 6, 59), Period{2025, time.March}},
		{"first minute after spring forward", utc(2025, 3, 9, 7, 0), Period{2025, time.March}},
		{"23:30 on March 31 in EDT", utc(2025, 4, 1, 3, 30), Period{2025, time.March}},
		{"midnight April 1 in EDT", utc(2025, 4, 1, 4, 0), Period{2025, time.April}},
		{"23:30 on February 28 in EST", utc(2025, 3, 1, 4, 30), Period{2025, time.February}},
		{"23:30 on October 31 in EDT", utc(2025, 11, 1, 3, 30), Period{2025, time.October}},
		{"01:30 EDT before fall back", utc(2025, 11, 2, 5, 30), Period{2025, time.November}},
		{"01:30 EST after fall back", utc(2025, 11, 2, 6, 30), Period{2025, time.November}},
		{"23:30 on November 30 in EST", utc(2025, 12, 1, 4, 30), Period{2025, time.November}},
		{"23:30 on New Year's Eve in EST", utc(2026, 1, 1, 4, 30), Period{2025, time.December}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := PeriodOf(tt.at, ny); got != tt.want {
				t.Fatalf("PeriodOf = %s, want %s", got, tt.want)
			}
			if !tt.want.Contains(tt.at, ny) {
				t.Fatalf("%s should contain %s", tt.want, tt.at.In(ny))
			}
			if tt.want.Prev().Contains(tt.at, ny) || tt.want.Next().Contains(tt.at, ny) {
				t.Fatalf("neighbouring months must not contain %s", tt.at.In(ny))
			}
			start, end := tt.want.Bounds(ny)
			if tt.at.Before(start) || !tt.at.Before(end) {
				t.Fatalf("%s outside bounds [%s, %s)", tt.at.In(ny), start, end)
			}
		})
	}
}

func TestBoundsLengthFollowsDaylightSaving(t *testing.T) {
	ny, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Fatal(err)
	}
	tests := []struct {
		p    Period
		want time.Duration
	}{
		{Period{2025, time.March}, 31*24*time.Hour - time.Hour},
		{Period{2025, time.November}, 30*24*time.Hour + time.Hour},
		{Period{2025, time.July}, 31 * 24 * time.Hour},
	}
	for _, tt := range tests {
		start, end := tt.p.Bounds(ny)
		if got := end.Sub(start); got != tt.want {
			t.Errorf("%s spans %v, want %v", tt.p, got, tt.want)
		}
		if prevStart, prevEnd := tt.p.Prev().Bounds(ny); !prevEnd.Equal(start) || !prevStart.Before(start) {
			t.Errorf("%s does not start where %s ends", tt.p, tt.p.Prev())
		}
	}
}
