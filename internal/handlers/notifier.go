package handlers

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/bwmarrin/discordgo"

	"github.com/minsulee/noraebot/internal/session"
	"github.com/minsulee/noraebot/internal/ui"
	"github.com/minsulee/noraebot/internal/utils"
)

// guildNotifier posts session announcements to the text channel the last
// play command came from.
type guildNotifier struct {
	dg      *discordgo.Session
	guildID string

	mu        sync.Mutex
	channelID string

	quiet atomic.Bool // suppress queue-add posts when responses are ephemeral
}

func (n *guildNotifier) setChannel(channelID string) {
	n.mu.Lock()
	n.channelID = channelID
	n.mu.Unlock()
}

func (n *guildNotifier) setQuiet(v bool) {
	n.quiet.Store(v)
}

func (n *guildNotifier) channel() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.channelID
}

func (n *guildNotifier) NowPlaying(t *session.Track) {
	ch := n.channel()
	if ch == "" {
		return
	}
	embed := ui.BuildAnnounceEmbed(t)
	if _, err := n.dg.ChannelMessageSendEmbed(ch, embed); err != nil {
		slog.Warn("now playing announce failed", "guildID", n.guildID, "err", err)
	}
}

func (n *guildNotifier) QueueAdded(t *session.Track, queuedAhead int) {
	if n.quiet.Load() {
		return
	}
	ch := n.channel()
	if ch == "" {
		return
	}
	msg := fmt.Sprintf("➕ **%s** queued, %d ahead", utils.EscapeMd(t.Title), queuedAhead)
	if _, err := n.dg.ChannelMessageSend(ch, msg); err != nil {
		slog.Warn("queue add announce failed", "guildID", n.guildID, "err", err)
	}
}

func (n *guildNotifier) Notice(text string) {
	ch := n.channel()
	if ch == "" {
		return
	}
	if _, err := n.dg.ChannelMessageSend(ch, text); err != nil {
		slog.Warn("notice send failed", "guildID", n.guildID, "err", err)
	}
}

type notifierSet struct {
	mu    sync.Mutex
	byGID map[string]*guildNotifier
}

func newNotifierSet() *notifierSet {
	return &notifierSet{byGID: make(map[string]*guildNotifier)}
}

func (ns *notifierSet) forGuild(dg *discordgo.Session, guildID string) *guildNotifier {
	ns.mu.Lock()
	defer ns.mu.Unlock()
	if n, ok := ns.byGID[guildID]; ok {
		return n
	}
	n := &guildNotifier{dg: dg, guildID: guildID}
	ns.byGID[guildID] = n
	return n
}
