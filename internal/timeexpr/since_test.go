package timeexpr

import (
	"testing"
	"time"
)

func TestParseSince(t *testing.T) {
	now := time.Date(2026, 1, 28, 15, 4, 5, 0, time.UTC) // Wednesday
	today := time.Date(2026, 1, 28, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		input string
		want  time.Time
	}{
		{"now", now},
		{"45s", now.Add(-45 * time.Second)},
		{"15m", now.Add(-15 * time.Minute)},
		{"2h ago", now.Add(-2 * time.Hour)},
		{"2 h ago", now.Add(-2 * time.Hour)},
		{"3d", now.AddDate(0, 0, -3)},
		{"1w ago", now.AddDate(0, 0, -7)},
		{"1mo", now.AddDate(0, -1, 0)},
		{"today", today},
		{"Yesterday", today.AddDate(0, 0, -1)},
		{"wed", today},
		{"last wednesday", today.AddDate(0, 0, -7)},
		{"mon", today.AddDate(0, 0, -2)},
		{"thu", today.AddDate(0, 0, -6)},
		{"2026-01-20", time.Date(2026, 1, 20, 0, 0, 0, 0, time.UTC)},
		{"2026-01-27T10:00:00Z", time.Date(2026, 1, 27, 10, 0, 0, 0, time.UTC)},
		{"1769612645000", time.UnixMilli(1769612645000)},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseSince(tt.input, now)
			if err != nil {
				t.Fatalf("ParseSince(%q) error: %v", tt.input, err)
			}
			if !got.Equal(tt.want) {
				t.Errorf("ParseSince(%q) = %s, want %s", tt.input, got, tt.want)
			}
		})
	}
}

func TestParseSinceInvalid(t *testing.T) {
	now := time.Now()
	for _, input := range []string{"", "   ", "0h", "soon", "next tue", "2x ago", "-5"} {
		if _, err := ParseSince(input, now); err == nil {
			t.Errorf("ParseSince(%q) should fail", input)
		}
	}
}
