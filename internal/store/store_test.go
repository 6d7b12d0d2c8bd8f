package store

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/minsulee/noraebot/internal/config"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, "tmp"), 0o755); err != nil {
		t.Fatal(err)
	}
	cfg := &config.Config{DataDir: dir, DownloadDir: dir}
	return NewStore(cfg, nil)
}

func TestUniqueBase(t *testing.T) {
	s := newTestStore(t)
	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		b := s.UniqueBase("same query")
		if len(b) != 32 {
			t.Fatalf("base %q has length %d, want 32", b, len(b))
		}
		if seen[b] {
			t.Fatalf("base %q repeated for the same query", b)
		}
		seen[b] = true
	}
}

func TestOutputTemplateTargetsTmp(t *testing.T) {
	s := newTestStore(t)
	base := s.UniqueBase("q")

	tmpl := s.OutputTemplate(base)
	if !strings.Contains(tmpl, base) || !strings.HasSuffix(tmpl, ".%(ext)s") {
		t.Fatalf("template = %q", tmpl)
	}
	if filepath.Dir(tmpl) != filepath.Join(s.cfg.DownloadDir, "tmp") {
		t.Errorf("template writes outside tmp: %q", tmpl)
	}
}

func TestCommitPromotesDownload(t *testing.T) {
	s := newTestStore(t)
	base := s.UniqueBase("q")

	if _, err := s.Commit(base); err == nil {
		t.Fatalf("Commit succeeded with nothing on disk")
	}

	tmpPath := filepath.Join(s.cfg.DownloadDir, "tmp", base+".opus")
	if err := os.WriteFile(tmpPath, []byte("audio"), 0o644); err != nil {
		t.Fatal(err)
	}

	got, err := s.Commit(base)
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}
	want := filepath.Join(s.cfg.DownloadDir, base+".opus")
	if got != want {
		t.Errorf("committed to %q, want %q", got, want)
	}
	if _, err := os.Stat(got); err != nil {
		t.Errorf("committed file missing: %v", err)
	}
	if _, err := os.Stat(tmpPath); !os.IsNotExist(err) {
		t.Errorf("tmp file still present after commit: %v", err)
	}
}

func TestSweepRemovesStaleFiles(t *testing.T) {
	s := newTestStore(t)
	for _, name := range []string{"a.opus", "b.m4a"} {
		if err := os.WriteFile(filepath.Join(s.cfg.DownloadDir, name), []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	// Half-finished downloads from a previous run sit under tmp.
	if err := os.WriteFile(filepath.Join(s.cfg.DownloadDir, "tmp", "c.opus.part"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := s.Sweep(); err != nil {
		t.Fatalf("Sweep: %v", err)
	}

	for _, dir := range []string{s.cfg.DownloadDir, filepath.Join(s.cfg.DownloadDir, "tmp")} {
		entries, err := os.ReadDir(dir)
		if err != nil {
			t.Fatal(err)
		}
		for _, e := range entries {
			if !e.IsDir() {
				t.Errorf("stale file %s survived sweep in %s", e.Name(), dir)
			}
		}
	}
}
