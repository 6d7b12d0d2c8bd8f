package config

type Config struct {
	DiscordToken          string
	SpotifyClientID       string
	SpotifyClientSecret   string
	DataDir               string
	DownloadDir           string
	IdleTimeoutSec        int
	QueuePageSize         int
	BotStatus             string // online/dnd/idle
	BotActivity           string
	RegisterCommandsOnBot bool
}
