package handlers

import (
	"context"
	"log/slog"
	"sync"

	"github.com/bwmarrin/discordgo"

	"github.com/minsulee/noraebot/internal/config"
	"github.com/minsulee/noraebot/internal/repository"
	"github.com/minsulee/noraebot/internal/session"
)

type Bot struct {
	cfg      *config.Config
	repo     *repository.Repo
	registry *session.Registry
	cmd      *CommandHandler
}

func NewBot(cfg *config.Config, repo *repository.Repo, registry *session.Registry) *Bot {
	cmd := NewCommandHandler(cfg, repo, registry)
	return &Bot{
		cfg: cfg, repo: repo, registry: registry, cmd: cmd,
	}
}

func (b *Bot) Run(ctx context.Context) error {
	dg, err := discordgo.New("Bot " + b.cfg.DiscordToken)
	if err != nil {
		return err
	}
	dg.Identify.Intents = discordgo.IntentsGuilds | discordgo.IntentsGuildVoiceStates

	// On ready: register commands depending on configuration
	dg.AddHandler(func(s *discordgo.Session, r *discordgo.Ready) {
		slog.Info("connected", "user", s.State.User.Username)
		appID := s.State.User.ID

		status := discordgo.UpdateStatusData{Status: b.cfg.BotStatus}
		if b.cfg.BotActivity != "" {
			status.Activities = []*discordgo.Activity{
				{Name: b.cfg.BotActivity, Type: discordgo.ActivityTypeListening},
			}
		}
		if err := s.UpdateStatusComplex(status); err != nil {
			slog.Warn("update status failed", "err", err)
		}

		if b.cfg.RegisterCommandsOnBot {
			if err := b.cmd.RegisterCommands(s, appID, ""); err != nil {
				slog.Error("register global commands", "err", err)
			} else {
				slog.Info("registered global application commands")
			}
		} else {
			var wg sync.WaitGroup
			for _, g := range s.State.Guilds {
				wg.Add(1)
				go func(guildID string) {
					defer wg.Done()
					if err := b.cmd.RegisterCommands(s, appID, guildID); err != nil {
						slog.Error("register guild commands", "guild", guildID, "err", err)
					}
				}(g.ID)
			}
			wg.Wait()

			_, err := s.ApplicationCommandBulkOverwrite(appID, "", []*discordgo.ApplicationCommand{})
			if err != nil {
				slog.Error("clear global commands", "err", err)
			} else {
				slog.Info("cleared global application commands")
			}

			slog.Info("registered commands on all guilds")
		}
	})

	// If registering per-guild, register on new guilds too
	dg.AddHandler(func(s *discordgo.Session, g *discordgo.GuildCreate) {
		if b.cfg.RegisterCommandsOnBot {
			return
		}
		appID := s.State.User.ID
		if err := b.cmd.RegisterCommands(s, appID, g.ID); err != nil {
			slog.Error("register guild commands on join", "guild", g.ID, "err", err)
		} else {
			slog.Info("registered commands on new guild", "guild", g.ID)
		}
	})

	// Interactions
	dg.AddHandler(b.cmd.HandleInteraction)

	// A kick or manual move-out reaches us as our own voice state going empty.
	// The session can't see that happen, so tear it down from here.
	dg.AddHandler(func(s *discordgo.Session, vs *discordgo.VoiceStateUpdate) {
		if s.State.User == nil || vs.UserID != s.State.User.ID {
			return
		}
		if vs.ChannelID != "" {
			return
		}
		sess := b.registry.Get(vs.GuildID)
		if sess == nil {
			return
		}
		slog.Info("voice connection dropped externally", "guildID", vs.GuildID)
		sess.Teardown(session.ReasonExternal)
	})

	if err := dg.Open(); err != nil {
		return err
	}
	defer dg.Close()

	<-ctx.Done()
	return nil
}

// getNonBotSize counts human members of a voice channel, leaving out the
// user given in excluding.
func getNonBotSize(s *discordgo.Session, guildID, channelID, excluding string) int {
	g, _ := s.State.Guild(guildID)
	if g == nil {
		return 0
	}
	n := 0
	for _, vs := range g.VoiceStates {
		if vs.ChannelID == channelID && vs.UserID != excluding {
			m, _ := s.State.Member(guildID, vs.UserID)
			if m != nil && m.User != nil && !m.User.Bot {
				n++
			}
		}
	}
	return n
}
