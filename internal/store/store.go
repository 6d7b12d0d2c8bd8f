package store

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/minsulee/noraebot/internal/config"
	"github.com/minsulee/noraebot/internal/repository"
)

// Store owns the download directory. Every fetch gets a collision-free base
// name; files live only as long as the session that requested them, so
// anything found at startup is an orphan.
type Store struct {
	cfg  *config.Config
	repo *repository.Repo
}

func NewStore(cfg *config.Config, repo *repository.Repo) *Store {
	return &Store{cfg: cfg, repo: repo}
}

// UniqueBase derives a base file name for one fetch. The nanosecond component
// keeps repeated fetches of the same query from colliding.
func (s *Store) UniqueBase(query string) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s|%d", query, time.Now().UnixNano())))
	return hex.EncodeToString(sum[:16])
}

// OutputTemplate is the yt-dlp output template for a fetch. Downloads land in
// the tmp subdirectory first; Commit moves them to their final name, so a
// fetch that dies midway never leaves a file that looks finished.
func (s *Store) OutputTemplate(base string) string {
	return filepath.Join(s.cfg.DownloadDir, "tmp", base+".%(ext)s")
}

// Commit promotes a completed fetch out of the tmp directory and returns the
// final path.
func (s *Store) Commit(base string) (string, error) {
	matches, err := filepath.Glob(filepath.Join(s.cfg.DownloadDir, "tmp", base+".*"))
	if err != nil {
		return "", err
	}
	if len(matches) == 0 {
		return "", fmt.Errorf("no downloaded file for %s", base)
	}
	final := filepath.Join(s.cfg.DownloadDir, filepath.Base(matches[0]))
	if err := os.Rename(matches[0], final); err != nil {
		return "", err
	}
	return final, nil
}

// Record logs a finished fetch for the bookkeeping table.
func (s *Store) Record(ctx context.Context, title, sourceURL, path string) {
	if s.repo == nil {
		return
	}
	var size int64
	if info, err := os.Stat(path); err == nil {
		size = info.Size()
	}
	if err := s.repo.RecordDownload(ctx, title, sourceURL, size); err != nil {
		slog.Warn("failed to record download", "title", title, "err", err)
	}
}

// Sweep removes files left behind by a previous process, committed and
// in-flight alike. Sessions do not survive restarts, so every file in the
// download dir is stale.
func (s *Store) Sweep() error {
	removed := 0
	for _, dir := range []string{s.cfg.DownloadDir, filepath.Join(s.cfg.DownloadDir, "tmp")} {
		entries, err := os.ReadDir(dir)
		if err != nil {
			if dir == s.cfg.DownloadDir {
				return err
			}
			continue
		}
		for _, e := range entries {
			if e.IsDir() {
				continue
			}
			p := filepath.Join(dir, e.Name())
			if err := os.Remove(p); err != nil {
				slog.Warn("sweep: failed to remove stale file", "path", p, "err", err)
				continue
			}
			removed++
		}
	}
	if removed > 0 {
		slog.Info("swept stale downloads", "count", removed)
	}
	return nil
}
