package ui

import (
	"fmt"

	"github.com/bwmarrin/discordgo"

	"github.com/minsulee/noraebot/internal/session"
	"github.com/minsulee/noraebot/internal/utils"
)

func trackLink(t *session.Track) string {
	if t.SourceURL == "" {
		return utils.EscapeMd(t.Title)
	}
	return fmt.Sprintf("[%s](%s)", utils.EscapeMd(t.Title), t.SourceURL)
}

// BuildAnnounceEmbed is the channel post made when a track starts, where no
// playback position exists yet.
func BuildAnnounceEmbed(t *session.Track) *discordgo.MessageEmbed {
	desc := fmt.Sprintf("**%s**\nRequested by: <@%s>\n\n`[ %s ]`",
		trackLink(t),
		t.RequestedBy,
		utils.PrettyTime(t.DurationSec),
	)
	embed := &discordgo.MessageEmbed{
		Title:       "Now Playing",
		Description: desc,
		Color:       0x006400,
	}
	if t.Thumbnail != "" {
		embed.Thumbnail = &discordgo.MessageEmbedThumbnail{URL: t.Thumbnail}
	}
	return embed
}

func BuildPlayingEmbed(s *session.Session) *discordgo.MessageEmbed {
	cur := s.Now()
	if cur == nil {
		return &discordgo.MessageEmbed{
			Title:       "Nothing Playing",
			Description: "No playing track found",
			Color:       0x992222,
		}
	}
	pos := s.Position()
	progress := 0.0
	if cur.DurationSec > 0 {
		progress = float64(pos) / float64(cur.DurationSec)
	}
	bar := ProgressBar(10, progress)
	elapsed := fmt.Sprintf("%s/%s", utils.PrettyTime(pos), utils.PrettyTime(cur.DurationSec))

	button := "▶️"
	color := 0x006400
	title := "Now Playing"
	if s.Status() == session.StatusPaused {
		button = "⏸️"
		color = 0x8B0000
		title = "Paused"
	}

	desc := fmt.Sprintf("**%s**\nRequested by: <@%s>\n\n%s %s `[ %s ]`",
		trackLink(cur),
		cur.RequestedBy,
		button, bar, elapsed,
	)

	embed := &discordgo.MessageEmbed{
		Title:       title,
		Description: desc,
		Color:       color,
	}
	if cur.Thumbnail != "" {
		embed.Thumbnail = &discordgo.MessageEmbedThumbnail{URL: cur.Thumbnail}
	}
	return embed
}

func BuildQueueEmbed(s *session.Session, page, pageSize int) (*discordgo.MessageEmbed, error) {
	cur := s.Now()
	total := s.QueueLen()
	if cur == nil && total == 0 {
		return nil, fmt.Errorf("queue is empty")
	}
	maxPage := (total + pageSize - 1) / pageSize
	if maxPage == 0 {
		maxPage = 1
	}
	if page > maxPage {
		return nil, fmt.Errorf("the queue isn't that big")
	}
	items, _ := s.QueuePage(page, pageSize)

	desc := ""
	if cur != nil {
		pos := s.Position()
		progress := 0.0
		if cur.DurationSec > 0 {
			progress = float64(pos) / float64(cur.DurationSec)
		}
		desc += fmt.Sprintf("**%s**\nRequested by: <@%s>\n\n%s `[ %s/%s ]`\n\n",
			trackLink(cur),
			cur.RequestedBy,
			ProgressBar(10, progress),
			utils.PrettyTime(pos), utils.PrettyTime(cur.DurationSec),
		)
	}

	if len(items) > 0 {
		desc += "**Up next:**\n"
		begin := (page - 1) * pageSize
		for idx, t := range items {
			desc += fmt.Sprintf("`%d.` %s `[ %s ]`\n", begin+idx+1, trackLink(t), utils.PrettyTime(t.DurationSec))
		}
	}

	embed := &discordgo.MessageEmbed{
		Title:       "Queue",
		Description: desc,
		Color:       0x006400,
		Footer: &discordgo.MessageEmbedFooter{
			Text: fmt.Sprintf("Page %d of %d • %d in queue", page, maxPage, total),
		},
	}
	return embed, nil
}
