package domain

import (
	"testing"
	"time"
)

func TestMonthlyStatsNeedsReset(t *testing.T) {
	base := time.Date(2025, time.March, 15, 10, 0, 0, 0, time.UTC)
	stats := MonthlyStats{LastReset: base}

	tests := []struct {
		name string
		now  time.Time
		want bool
	}{
		{name: "same month", now: time.Date(2025, time.March, 31, 23, 59, 0, 0, time.UTC), want: false},
		{name: "next month", now: time.Date(2025, time.April, 1, 0, 0, 0, 0, time.UTC), want: true},
		{name: "same month next year", now: time.Date(2026, time.March, 15, 10, 0, 0, 0, time.UTC), want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := stats.NeedsReset(tt.now); got != tt.want {
				t.Fatalf("NeedsReset(%s): expected %t, got %t", tt.now, tt.want, got)
			}
		})
	}
}

func TestClampScore(t *testing.T) {
	tests := []struct {
		in   int
		want int
	}{
		{in: -30, want: ScoreMin},
		{in: 0, want: 0},
		{in: 720, want: 720},
		{in: 1000, want: 1000},
		{in: 1020, want: ScoreMax},
	}

	for _, tt := range tests {
		if got := ClampScore(tt.in); got != tt.want {
			t.Fatalf("ClampScore(%d): expected %d, got %d", tt.in, tt.want, got)
		}
	}
}

func TestDefaultSpendingLimitsReturnsFreshCopy(t *testing.T) {
	first := DefaultSpendingLimits()
	first["Food"] = 1
	second := DefaultSpendingLimits()
	if second["Food"] == 1 {
		t.Fatal("expected DefaultSpendingLimits to return an independent map")
	}
	for _, category := range []string{"Food", "Travel", "Shopping", "Bills", "Others"} {
		if second[category] <= 0 {
			t.Fatalf("expected positive default limit for %s", category)
		}
	}
}
