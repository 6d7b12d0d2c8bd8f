package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestLoadConfigRequiresToken(t *testing.T) {
	t.Setenv("DISCORD_TOKEN", "")
	t.Setenv("DATA_DIR", t.TempDir())

	_, err := LoadConfig()
	var cerr ErrConfig
	if !errors.As(err, &cerr) {
		t.Fatalf("err = %v, want ErrConfig", err)
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("DISCORD_TOKEN", "token")
	t.Setenv("DATA_DIR", dir)
	t.Setenv("IDLE_TIMEOUT", "")
	t.Setenv("QUEUE_PAGE_SIZE", "")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.IdleTimeoutSec != DefaultIdleTimeoutSec {
		t.Errorf("idle timeout = %d, want %d", cfg.IdleTimeoutSec, DefaultIdleTimeoutSec)
	}
	if cfg.QueuePageSize != DefaultQueuePageSize {
		t.Errorf("page size = %d, want %d", cfg.QueuePageSize, DefaultQueuePageSize)
	}
	if cfg.DownloadDir != filepath.Join(dir, "downloads") {
		t.Errorf("download dir = %q", cfg.DownloadDir)
	}
	if _, err := os.Stat(cfg.DownloadDir); err != nil {
		t.Errorf("download dir not created: %v", err)
	}
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("DISCORD_TOKEN", "token")
	t.Setenv("DATA_DIR", t.TempDir())
	t.Setenv("IDLE_TIMEOUT", "60")
	t.Setenv("QUEUE_PAGE_SIZE", "20")
	t.Setenv("REGISTER_COMMANDS_ON_BOT", "true")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.IdleTimeoutSec != 60 {
		t.Errorf("idle timeout = %d, want 60", cfg.IdleTimeoutSec)
	}
	if cfg.QueuePageSize != 20 {
		t.Errorf("page size = %d, want 20", cfg.QueuePageSize)
	}
	if !cfg.RegisterCommandsOnBot {
		t.Errorf("RegisterCommandsOnBot not picked up")
	}
}

func TestLoadConfigRejectsNegativeIdleTimeout(t *testing.T) {
	t.Setenv("DISCORD_TOKEN", "token")
	t.Setenv("DATA_DIR", t.TempDir())
	t.Setenv("IDLE_TIMEOUT", "-5")

	if _, err := LoadConfig(); err == nil {
		t.Fatalf("negative idle timeout accepted")
	}
}
