package utils

import "testing"

func TestEscapeMd(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"plain title", "plain title"},
		{"stars *here*", "stars \\*here\\*"},
		{"under_score", "under\\_score"},
		{"tick `code`", "tick \\`code\\`"},
		{"~strike~", "\\~strike\\~"},
	}
	for _, tt := range tests {
		if got := EscapeMd(tt.in); got != tt.want {
			t.Errorf("EscapeMd(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestPrettyTime(t *testing.T) {
	tests := []struct {
		sec  int
		want string
	}{
		{0, "0:00"},
		{5, "0:05"},
		{65, "1:05"},
		{600, "10:00"},
		{3600, "1:00:00"},
		{3725, "1:02:05"},
	}
	for _, tt := range tests {
		if got := PrettyTime(tt.sec); got != tt.want {
			t.Errorf("PrettyTime(%d) = %q, want %q", tt.sec, got, tt.want)
		}
	}
}
