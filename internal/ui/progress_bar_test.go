package ui

import (
	"strings"
	"testing"
)

func TestProgressBar(t *testing.T) {
	tests := []struct {
		name     string
		width    int
		progress float64
		dotAt    int
	}{
		{"start", 10, 0, 0},
		{"middle", 10, 0.5, 5},
		{"end", 10, 1, 9},
		{"clamped below", 10, -0.3, 0},
		{"clamped above", 10, 1.7, 9},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bar := ProgressBar(tt.width, tt.progress)
			runes := []rune(bar)
			if len(runes) != tt.width {
				t.Fatalf("width = %d, want %d", len(runes), tt.width)
			}
			if n := strings.Count(bar, "🔘"); n != 1 {
				t.Fatalf("dot count = %d, want 1", n)
			}
			if runes[tt.dotAt] != '🔘' {
				t.Errorf("dot at wrong position in %q, want index %d", bar, tt.dotAt)
			}
		})
	}
	if ProgressBar(0, 0.5) != "" {
		t.Errorf("zero width should yield empty bar")
	}
}
