package resolver

import (
	"context"
	"errors"
	"testing"

	"github.com/minsulee/noraebot/internal/session"
)

func TestClassify(t *testing.T) {
	plain := errors.New("exit status 1")

	tests := []struct {
		name   string
		err    error
		stderr string
		want   session.ResolveErrorKind
	}{
		{"removed video", plain, "ERROR: [youtube] abc: Video unavailable. This video has been removed", session.ResolveNotFound},
		{"no search results", plain, "ERROR: [youtube:search] no video results", session.ResolveNotFound},
		{"age gate", plain, "ERROR: [youtube] abc: Sign in to confirm your age", session.ResolveRestricted},
		{"drm", plain, "ERROR: This video is DRM protected", session.ResolveRestricted},
		{"private", plain, "ERROR: [youtube] abc: Private video", session.ResolveRestricted},
		{"dns failure", plain, "ERROR: Unable to download webpage: <urlopen error [Errno -3] Temporary failure in name resolution>", session.ResolveNetwork},
		{"connection reset", plain, "ERROR: Connection reset by peer", session.ResolveNetwork},
		{"deadline", context.DeadlineExceeded, "", session.ResolveNetwork},
		{"cancelled", context.Canceled, "", session.ResolveNetwork},
		{"unknown failure", plain, "ERROR: some extractor exploded", session.ResolveUnplayable},
		{"empty stderr", plain, "", session.ResolveUnplayable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := classify(tt.err, tt.stderr)
			if got.Kind != tt.want {
				t.Errorf("kind = %v, want %v (reason %q)", got.Kind, tt.want, got.Reason)
			}
		})
	}
}

func TestClassifyKeepsErrorLine(t *testing.T) {
	err := errors.New("exit status 1")
	got := classify(err, "WARNING: something minor\nERROR: [youtube] abc: Video unavailable\n")
	if got.Reason != "[youtube] abc: Video unavailable" {
		t.Errorf("reason = %q", got.Reason)
	}
}

func TestParsePrinted(t *testing.T) {
	tests := []struct {
		name   string
		stdout string
		ok     bool
		want   printedMeta
	}{
		{
			name:   "full line",
			stdout: "Song Title\thttps://youtube.com/watch?v=abc\t213.42\thttps://i.ytimg.com/vi/abc/hq.jpg\n",
			ok:     true,
			want:   printedMeta{title: "Song Title", sourceURL: "https://youtube.com/watch?v=abc", durationSec: 213, thumbnail: "https://i.ytimg.com/vi/abc/hq.jpg"},
		},
		{
			name:   "missing duration and thumbnail",
			stdout: "Live Stream\thttps://example.com/live\tNA\tNA\n",
			ok:     true,
			want:   printedMeta{title: "Live Stream", sourceURL: "https://example.com/live"},
		},
		{
			name:   "missing title",
			stdout: "NA\thttps://example.com/x\t10\tNA\n",
			ok:     true,
			want:   printedMeta{title: "Unknown title", sourceURL: "https://example.com/x", durationSec: 10},
		},
		{
			name:   "skips malformed leading lines",
			stdout: "some stray output\nReal Title\thttps://example.com/y\t90\tNA\n",
			ok:     true,
			want:   printedMeta{title: "Real Title", sourceURL: "https://example.com/y", durationSec: 90},
		},
		{name: "empty", stdout: "", ok: false},
		{name: "only garbage", stdout: "no tabs here\n", ok: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := parsePrinted(tt.stdout)
			if ok != tt.ok {
				t.Fatalf("ok = %v, want %v", ok, tt.ok)
			}
			if !ok {
				return
			}
			if got != tt.want {
				t.Errorf("meta = %+v, want %+v", got, tt.want)
			}
		})
	}
}
