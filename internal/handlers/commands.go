package handlers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/minsulee/noraebot/internal/autocomplete"
	"github.com/minsulee/noraebot/internal/config"
	"github.com/minsulee/noraebot/internal/repository"
	"github.com/minsulee/noraebot/internal/session"
	"github.com/minsulee/noraebot/internal/spotify"
	"github.com/minsulee/noraebot/internal/ui"
	"github.com/minsulee/noraebot/internal/utils"
	"github.com/minsulee/noraebot/internal/voice"
)

type CommandHandler struct {
	cfg      *config.Config
	repo     *repository.Repo
	registry *session.Registry
	notify   *notifierSet
}

func NewCommandHandler(cfg *config.Config, repo *repository.Repo, registry *session.Registry) *CommandHandler {
	return &CommandHandler{cfg: cfg, repo: repo, registry: registry, notify: newNotifierSet()}
}

func (h *CommandHandler) RegisterCommands(s *discordgo.Session, appID string, guildID string) error {
	start := time.Now()
	slog.Info("registering application commands", "appID", appID, "guildID", guildID)

	cmds := []*discordgo.ApplicationCommand{
		{
			Name:        "play",
			Description: "Play a song (YouTube URL, Spotify track, or search)",
			Options: []*discordgo.ApplicationCommandOption{
				{Name: "query", Description: "query or URL", Type: discordgo.ApplicationCommandOptionString, Required: true, Autocomplete: true},
			},
		},
		{Name: "pause", Description: "pause the current song"},
		{Name: "resume", Description: "resume playback"},
		{Name: "skip", Description: "skip the current song"},
		{Name: "leave", Description: "disconnect and clear the queue"},
		{Name: "now-playing", Description: "Show currently playing"},
		{
			Name:        "queue",
			Description: "show the current queue",
			Options: []*discordgo.ApplicationCommandOption{
				{Name: "page", Description: "page of queue to show [default: 1]", Type: discordgo.ApplicationCommandOptionInteger},
				{Name: "page-size", Description: "how many items per page [default: 10, max: 30]", Type: discordgo.ApplicationCommandOptionInteger},
			},
		},
		{
			Name:        "config",
			Description: "Configure bot settings",
			Options: []*discordgo.ApplicationCommandOption{
				{Type: discordgo.ApplicationCommandOptionSubCommand, Name: "get", Description: "show settings"},
				{Type: discordgo.ApplicationCommandOptionSubCommand, Name: "set-wait-after-queue-empties", Description: "time to wait before leaving VC", Options: []*discordgo.ApplicationCommandOption{
					{Name: "delay", Description: "seconds (0 never leave)", Type: discordgo.ApplicationCommandOptionInteger, Required: true},
				}},
				{Type: discordgo.ApplicationCommandOptionSubCommand, Name: "set-default-queue-page-size", Description: "queue page size", Options: []*discordgo.ApplicationCommandOption{
					{Name: "page_size", Description: "1-30", Type: discordgo.ApplicationCommandOptionInteger, Required: true},
				}},
				{Type: discordgo.ApplicationCommandOptionSubCommand, Name: "set-queue-add-response-hidden", Description: "ephemeral queue add responses", Options: []*discordgo.ApplicationCommandOption{
					{Name: "value", Description: "true/false", Type: discordgo.ApplicationCommandOptionBoolean, Required: true},
				}},
			},
		},
	}

	for _, c := range cmds {
		if _, err := s.ApplicationCommandCreate(appID, guildID, c); err != nil {
			slog.Error("failed to create application command", "guildID", guildID, "command", c.Name, "err", err)
			return err
		}
		slog.Debug("registered command", "guildID", guildID, "command", c.Name)
	}

	slog.Info("finished registering commands", "guildID", guildID, "count", len(cmds), "took", time.Since(start))
	return nil
}

func (h *CommandHandler) HandleInteraction(s *discordgo.Session, i *discordgo.InteractionCreate) {
	switch i.Type {
	case discordgo.InteractionApplicationCommand:
		slog.Debug("interaction: application command", "guildID", i.GuildID, "userID", userIDOf(i), "command", i.ApplicationCommandData().Name)
		h.handleChatCommand(s, i)
	case discordgo.InteractionApplicationCommandAutocomplete:
		slog.Debug("interaction: autocomplete", "guildID", i.GuildID, "userID", userIDOf(i))
		h.handleAutocomplete(s, i)
	default:
		slog.Debug("interaction: ignored type", "type", i.Type, "guildID", i.GuildID)
	}
}

func (h *CommandHandler) handleAutocomplete(s *discordgo.Session, i *discordgo.InteractionCreate) {
	data := i.ApplicationCommandData()
	if data.Name != "play" {
		return
	}

	var query string
	for _, opt := range data.Options {
		if opt.Focused {
			query = opt.StringValue()
			break
		}
		if opt.Name == "query" {
			query = opt.StringValue()
		}
	}
	if strings.TrimSpace(query) == "" {
		_ = s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
			Type: discordgo.InteractionApplicationCommandAutocompleteResult,
			Data: &discordgo.InteractionResponseData{Choices: []*discordgo.ApplicationCommandOptionChoice{}},
		})
		return
	}

	slog.Debug("autocomplete: fetching suggestions", "guildID", i.GuildID, "userID", userIDOf(i), "query", query)
	choices, err := autocomplete.GetYouTubeAndSpotifySuggestions(context.Background(), query, h.spotifyClient(), 10)
	if err != nil {
		slog.Warn("autocomplete suggestions error", "guildID", i.GuildID, "err", err)
	}
	_ = s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionApplicationCommandAutocompleteResult,
		Data: &discordgo.InteractionResponseData{
			Choices: choices,
		},
	})
}

func (h *CommandHandler) handleChatCommand(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if i.Type != discordgo.InteractionApplicationCommand {
		return
	}
	data := i.ApplicationCommandData()
	switch data.Name {
	case "play":
		h.cmdPlay(s, i)
	case "pause":
		h.cmdPause(s, i)
	case "resume":
		h.cmdResume(s, i)
	case "skip":
		h.cmdSkip(s, i)
	case "leave":
		h.cmdLeave(s, i)
	case "now-playing":
		h.cmdNowPlaying(s, i)
	case "queue":
		h.cmdQueue(s, i)
	case "config":
		h.cmdConfig(s, i)
	default:
		slog.Debug("unknown command", "name", data.Name, "guildID", i.GuildID, "userID", userIDOf(i))
	}
}

func (h *CommandHandler) reply(s *discordgo.Session, i *discordgo.InteractionCreate, content string, ephemeral bool) {
	flags := uint64(0)
	if ephemeral {
		flags = 1 << 6
	}
	if err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: content,
			Flags:   discordgo.MessageFlags(flags),
		},
	}); err != nil {
		slog.Warn("reply failed", "guildID", i.GuildID, "userID", userIDOf(i), "err", err)
	}
}

func (h *CommandHandler) deferReply(s *discordgo.Session, i *discordgo.InteractionCreate, ephemeral bool) {
	flags := uint64(0)
	if ephemeral {
		flags = 1 << 6
	}
	if err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Flags: discordgo.MessageFlags(flags),
		},
	}); err != nil {
		slog.Warn("defer reply failed", "guildID", i.GuildID, "userID", userIDOf(i), "err", err)
	}
}

func (h *CommandHandler) editReply(s *discordgo.Session, i *discordgo.InteractionCreate, content string) {
	if _, err := s.InteractionResponseEdit(i.Interaction, &discordgo.WebhookEdit{
		Content: &content,
	}); err != nil {
		slog.Warn("edit reply failed", "guildID", i.GuildID, "userID", userIDOf(i), "err", err)
	}
}

func userInVoice(s *discordgo.Session, guildID, userID string) (channelID string, ok bool) {
	g, _ := s.State.Guild(guildID)
	if g == nil {
		g, _ = s.Guild(guildID)
	}
	if g == nil {
		return "", false
	}
	for _, vs := range g.VoiceStates {
		if vs.UserID == userID && vs.ChannelID != "" {
			return vs.ChannelID, true
		}
	}
	return "", false
}

func (h *CommandHandler) spotifyClient() *spotify.Client {
	if h.cfg.SpotifyClientID == "" || h.cfg.SpotifyClientSecret == "" {
		return nil
	}
	client, err := spotify.NewClientCredentials(h.cfg.SpotifyClientID, h.cfg.SpotifyClientSecret)
	if err != nil {
		slog.Debug("spotify client init failed", "err", err)
		return nil
	}
	return client
}

// expandQuery turns a Spotify track reference into a plain search query so
// the resolver can find the same song on YouTube. Anything else passes through.
func (h *CommandHandler) expandQuery(ctx context.Context, query string) string {
	if !strings.HasPrefix(query, "spotify:") && !strings.Contains(query, "open.spotify.com") {
		return query
	}
	typ, id, err := spotify.ParseID(query)
	if err != nil || typ != "track" {
		return query
	}
	sp := h.spotifyClient()
	if sp == nil {
		return query
	}
	t, err := sp.GetTrack(ctx, id)
	if err != nil {
		slog.Debug("spotify track lookup failed", "id", id, "err", err)
		return query
	}
	if t.Artist != "" {
		return t.Name + " " + t.Artist
	}
	return t.Name
}

func (h *CommandHandler) cmdPlay(s *discordgo.Session, i *discordgo.InteractionCreate) {
	var query string
	for _, o := range i.ApplicationCommandData().Options {
		if o.Name == "query" {
			query = o.StringValue()
		}
	}
	guildID := i.GuildID
	memberID := i.Member.User.ID
	slog.Info("cmd play", "guildID", guildID, "userID", memberID, "query", query)

	chID, ok := userInVoice(s, guildID, memberID)
	if !ok {
		slog.Debug("user not in voice", "guildID", guildID, "userID", memberID)
		h.reply(s, i, "gotta be in a voice channel", true)
		return
	}

	ctx := context.Background()
	if _, err := h.repo.UpsertSettings(ctx, guildID, h.cfg.IdleTimeoutSec, h.cfg.QueuePageSize); err != nil {
		slog.Warn("upsert settings failed", "guildID", guildID, "err", err)
	}
	set, err := h.repo.GetSettings(ctx, guildID)
	if err != nil {
		slog.Error("get settings failed", "guildID", guildID, "err", err)
		h.reply(s, i, "internal error", true)
		return
	}

	h.deferReply(s, i, set.QAddEphemeral)

	query = h.expandQuery(ctx, query)

	n := h.notify.forGuild(s, guildID)
	n.setChannel(i.ChannelID)
	n.setQuiet(set.QAddEphemeral)

	sess := h.registry.Get(guildID)
	if sess != nil {
		if sess.ChannelID() != chID {
			// Occupancy is judged at the destination: others already listening
			// there should not have the bot dropped on them.
			occupants := getNonBotSize(s, guildID, chID, memberID)
			if err := sess.MoveTo(chID, occupants); err != nil {
				slog.Debug("channel move refused", "guildID", guildID, "err", err)
				h.editReply(s, i, "that channel already has listeners")
				return
			}
		}
	} else {
		idleWait := time.Duration(set.SecondsWaitAfterEmpty) * time.Second
		sess, err = h.registry.GetOrCreate(guildID, n, idleWait, func() (session.VoiceConn, error) {
			return voice.Connect(s, guildID, chID)
		})
		if err != nil {
			slog.Warn("voice connect failed", "guildID", guildID, "channelID", chID, "err", err)
			h.editReply(s, i, "couldn't connect to channel")
			return
		}
	}

	track, err := sess.Enqueue(ctx, query, memberID)
	if err != nil {
		h.editReply(s, i, resolveFailureMessage(err))
		return
	}
	h.editReply(s, i, fmt.Sprintf("**%s** added to the queue", utils.EscapeMd(track.Title)))
}

func resolveFailureMessage(err error) string {
	var rerr *session.ResolveError
	if errors.As(err, &rerr) {
		switch rerr.Kind {
		case session.ResolveNotFound:
			return "couldn't find anything for that"
		case session.ResolveNetwork:
			return "network trouble fetching that, try again"
		case session.ResolveRestricted:
			return "that track is restricted and can't be played"
		}
		return "couldn't play that track"
	}
	if errors.Is(err, session.ErrClosed) {
		return "disconnected before the track was ready"
	}
	return "something went wrong fetching that"
}

func (h *CommandHandler) cmdPause(s *discordgo.Session, i *discordgo.InteractionCreate) {
	sess := h.registry.Get(i.GuildID)
	if sess == nil {
		h.reply(s, i, "not connected", true)
		return
	}
	if err := sess.Pause(); err != nil {
		slog.Debug("pause failed", "guildID", i.GuildID, "err", err)
		h.reply(s, i, "not currently playing", true)
		return
	}
	slog.Info("cmd pause", "guildID", i.GuildID, "userID", userIDOf(i))
	h.reply(s, i, "the stop-and-go light is now red", false)
}

func (h *CommandHandler) cmdResume(s *discordgo.Session, i *discordgo.InteractionCreate) {
	sess := h.registry.Get(i.GuildID)
	if sess == nil {
		h.reply(s, i, "not connected", true)
		return
	}
	if err := sess.Resume(); err != nil {
		slog.Debug("resume failed", "guildID", i.GuildID, "err", err)
		h.reply(s, i, "nothing is paused", true)
		return
	}
	slog.Info("cmd resume", "guildID", i.GuildID, "userID", userIDOf(i))
	h.reply(s, i, "the stop-and-go light is now green", false)
}

func (h *CommandHandler) cmdSkip(s *discordgo.Session, i *discordgo.InteractionCreate) {
	sess := h.registry.Get(i.GuildID)
	if sess == nil {
		h.reply(s, i, "not connected", true)
		return
	}
	if err := sess.Skip(); err != nil {
		slog.Debug("skip failed", "guildID", i.GuildID, "err", err)
		h.reply(s, i, "no song to skip", true)
		return
	}
	slog.Info("cmd skip", "guildID", i.GuildID, "userID", userIDOf(i))
	h.reply(s, i, "skipped", false)
}

func (h *CommandHandler) cmdLeave(s *discordgo.Session, i *discordgo.InteractionCreate) {
	sess := h.registry.Get(i.GuildID)
	if sess == nil {
		h.reply(s, i, "not connected", true)
		return
	}
	sess.Teardown(session.ReasonUser)
	slog.Info("cmd leave", "guildID", i.GuildID, "userID", userIDOf(i))
	h.reply(s, i, "u betcha, disconnected", false)
}

func (h *CommandHandler) cmdNowPlaying(s *discordgo.Session, i *discordgo.InteractionCreate) {
	sess := h.registry.Get(i.GuildID)
	if sess == nil || sess.Now() == nil {
		h.reply(s, i, "nothing is currently playing", true)
		return
	}

	slog.Debug("cmd now-playing", "guildID", i.GuildID, "userID", userIDOf(i), "title", sess.Now().Title)
	embed := ui.BuildPlayingEmbed(sess)
	if err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Embeds: []*discordgo.MessageEmbed{embed},
		},
	}); err != nil {
		slog.Warn("now-playing respond failed", "guildID", i.GuildID, "err", err)
	}
}

func (h *CommandHandler) cmdQueue(s *discordgo.Session, i *discordgo.InteractionCreate) {
	ctx := context.Background()
	if _, err := h.repo.UpsertSettings(ctx, i.GuildID, h.cfg.IdleTimeoutSec, h.cfg.QueuePageSize); err != nil {
		slog.Warn("upsert settings failed", "guildID", i.GuildID, "err", err)
	}
	set, err := h.repo.GetSettings(ctx, i.GuildID)
	if err != nil {
		slog.Error("get settings failed", "guildID", i.GuildID, "err", err)
		h.reply(s, i, "failed to fetch settings", true)
		return
	}

	page := 1
	pageSize := set.DefaultQueuePageSize
	for _, o := range i.ApplicationCommandData().Options {
		if o.Name == "page" {
			page = int(o.IntValue())
		} else if o.Name == "page-size" {
			pageSize = int(o.IntValue())
			if pageSize < 1 {
				pageSize = 1
			}
			if pageSize > 30 {
				pageSize = 30
			}
		}
	}
	if page < 1 {
		page = 1
	}

	sess := h.registry.Get(i.GuildID)
	if sess == nil {
		h.reply(s, i, "queue is empty", true)
		return
	}
	embed, err := ui.BuildQueueEmbed(sess, page, pageSize)
	if err != nil {
		slog.Debug("build queue embed failed", "guildID", i.GuildID, "page", page, "pageSize", pageSize, "err", err)
		h.reply(s, i, err.Error(), true)
		return
	}
	if err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Embeds: []*discordgo.MessageEmbed{embed},
		},
	}); err != nil {
		slog.Warn("queue respond failed", "guildID", i.GuildID, "err", err)
	}
	slog.Debug("cmd queue", "guildID", i.GuildID, "userID", userIDOf(i), "page", page, "pageSize", pageSize)
}

func (h *CommandHandler) cmdConfig(s *discordgo.Session, i *discordgo.InteractionCreate) {
	ctx := context.Background()
	if _, err := h.repo.UpsertSettings(ctx, i.GuildID, h.cfg.IdleTimeoutSec, h.cfg.QueuePageSize); err != nil {
		slog.Warn("upsert settings failed", "guildID", i.GuildID, "err", err)
	}
	sub := i.ApplicationCommandData().Options[0]
	switch sub.Name {
	case "get":
		set, err := h.repo.GetSettings(ctx, i.GuildID)
		if err != nil {
			slog.Error("get settings failed", "guildID", i.GuildID, "err", err)
			h.reply(s, i, "failed to fetch config", true)
			return
		}
		downloads, err := h.repo.CountDownloads(ctx)
		if err != nil {
			slog.Warn("count downloads failed", "err", err)
		}
		msg := fmt.Sprintf(
			"Config\n- Wait before leaving after queue empty: %s\n- Add to queue responses ephemeral: %t\n- Default queue page size: %d\n- Tracks fetched so far: %d",
			func() string {
				if set.SecondsWaitAfterEmpty == 0 {
					return "never leave"
				}
				return fmt.Sprintf("%ds", set.SecondsWaitAfterEmpty)
			}(),
			set.QAddEphemeral,
			set.DefaultQueuePageSize,
			downloads,
		)
		slog.Debug("config get", "guildID", i.GuildID)
		h.reply(s, i, msg, false)
	case "set-wait-after-queue-empties":
		delay := int(sub.Options[0].IntValue())
		if delay < 0 {
			h.reply(s, i, "delay can't be negative", true)
			return
		}
		set, _ := h.repo.GetSettings(ctx, i.GuildID)
		set.SecondsWaitAfterEmpty = delay
		_ = h.repo.UpdateSettings(ctx, set)
		slog.Info("config updated", "guildID", i.GuildID, "key", "SecondsWaitAfterEmpty", "value", delay)
		h.reply(s, i, "👍 wait delay updated", false)
	case "set-default-queue-page-size":
		val := int(sub.Options[0].IntValue())
		if val < 1 || val > 30 {
			h.reply(s, i, "page size must be between 1 and 30", true)
			return
		}
		set, _ := h.repo.GetSettings(ctx, i.GuildID)
		set.DefaultQueuePageSize = val
		_ = h.repo.UpdateSettings(ctx, set)
		slog.Info("config updated", "guildID", i.GuildID, "key", "DefaultQueuePageSize", "value", val)
		h.reply(s, i, "👍 default queue page size updated", false)
	case "set-queue-add-response-hidden":
		val := sub.Options[0].BoolValue()
		set, _ := h.repo.GetSettings(ctx, i.GuildID)
		set.QAddEphemeral = val
		_ = h.repo.UpdateSettings(ctx, set)
		slog.Info("config updated", "guildID", i.GuildID, "key", "QAddEphemeral", "value", val)
		h.reply(s, i, "👍 queue add notification setting updated", false)
	}
}

func userIDOf(i *discordgo.InteractionCreate) string {
	if i == nil || i.Member == nil || i.Member.User == nil {
		return ""
	}
	return i.Member.User.ID
}
