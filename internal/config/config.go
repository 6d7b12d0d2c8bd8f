package config

import (
	"os"
	"path/filepath"
	"strconv"
)

// DefaultIdleTimeoutSec is how long a session sits connected with nothing to
// play before it disconnects on its own.
const DefaultIdleTimeoutSec = 300

const DefaultQueuePageSize = 10

func getenv(key, def string) string {
	val := os.Getenv(key)
	if val == "" {
		return def
	}
	return val
}

func atoiOr(s string, def int) int {
	v, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return v
}

func LoadConfig() (*Config, error) {
	dataDir := getenv("DATA_DIR", "./data")
	downloadDir := filepath.Join(dataDir, "downloads")

	cfg := &Config{
		DiscordToken:          os.Getenv("DISCORD_TOKEN"),
		SpotifyClientID:       os.Getenv("SPOTIFY_CLIENT_ID"),
		SpotifyClientSecret:   os.Getenv("SPOTIFY_CLIENT_SECRET"),
		DataDir:               dataDir,
		DownloadDir:           downloadDir,
		IdleTimeoutSec:        atoiOr(getenv("IDLE_TIMEOUT", ""), DefaultIdleTimeoutSec),
		QueuePageSize:         atoiOr(getenv("QUEUE_PAGE_SIZE", ""), DefaultQueuePageSize),
		BotStatus:             getenv("BOT_STATUS", "online"),
		BotActivity:           getenv("BOT_ACTIVITY", "music"),
		RegisterCommandsOnBot: getenv("REGISTER_COMMANDS_ON_BOT", "false") == "true",
	}

	if cfg.DiscordToken == "" {
		return nil, ErrConfig("DISCORD_TOKEN required")
	}
	if cfg.IdleTimeoutSec < 0 {
		return nil, ErrConfig("IDLE_TIMEOUT must not be negative")
	}
	_ = os.MkdirAll(cfg.DataDir, 0o755)
	_ = os.MkdirAll(cfg.DownloadDir, 0o755)
	_ = os.MkdirAll(filepath.Join(cfg.DownloadDir, "tmp"), 0o755)
	return cfg, nil
}

type ErrConfig string

func (e ErrConfig) Error() string { return string(e) }
