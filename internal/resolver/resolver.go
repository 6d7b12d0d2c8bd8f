package resolver

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"strings"
	"sync"

	ytdlp "github.com/lrstanley/go-ytdlp"

	"github.com/minsulee/noraebot/internal/config"
	"github.com/minsulee/noraebot/internal/session"
	"github.com/minsulee/noraebot/internal/store"
)

// Resolver turns a query (URL or search text) into track metadata plus a
// downloaded audio file in the store. One call, one file; a failed fetch
// leaves no finished file behind, and anything partial is caught by the
// store sweep on the next start.
type Resolver struct {
	cfg   *config.Config
	store *store.Store

	installOnce sync.Once
}

func New(cfg *config.Config, st *store.Store) *Resolver {
	return &Resolver{cfg: cfg, store: st}
}

func (r *Resolver) Resolve(ctx context.Context, query string) (*session.Track, error) {
	// Ensure yt-dlp is installed once; availability issues surface on Run.
	r.installOnce.Do(func() {
		ytdlp.MustInstall(ctx, nil)
	})

	base := r.store.UniqueBase(query)
	cmd := ytdlp.New().
		Format("ba[acodec^=opus]/ba[ext=m4a]/bestaudio/best").
		NoCheckCertificates().
		NoPlaylist().
		RestrictFilenames().
		DefaultSearch("auto").
		Output(r.store.OutputTemplate(base)).
		NoSimulate().
		NoWarnings().
		Print("%(title)s\t%(webpage_url)s\t%(duration)s\t%(thumbnail)s")

	res, err := cmd.Run(ctx, query)
	if err != nil {
		stderr := ""
		if res != nil {
			stderr = res.Stderr
		}
		return nil, classify(err, stderr)
	}

	meta, ok := parsePrinted(res.Stdout)
	if !ok {
		return nil, &session.ResolveError{Kind: session.ResolveUnplayable, Reason: "could not parse media metadata"}
	}

	path, err := r.store.Commit(base)
	if err != nil {
		return nil, &session.ResolveError{Kind: session.ResolveUnplayable, Reason: "download produced no audio file"}
	}

	track := &session.Track{
		Title:       meta.title,
		SourceURL:   meta.sourceURL,
		DurationSec: meta.durationSec,
		Thumbnail:   meta.thumbnail,
		LocalPath:   path,
	}
	r.store.Record(ctx, track.Title, track.SourceURL, path)
	slog.Debug("resolved track", "query", query, "title", track.Title, "path", path)
	return track, nil
}

type printedMeta struct {
	title       string
	sourceURL   string
	durationSec int
	thumbnail   string
}

func parsePrinted(stdout string) (printedMeta, bool) {
	for _, line := range strings.Split(strings.TrimSpace(stdout), "\n") {
		parts := strings.Split(line, "\t")
		if len(parts) < 4 {
			continue
		}
		m := printedMeta{
			title:     parts[0],
			sourceURL: parts[1],
			thumbnail: parts[3],
		}
		if m.title == "" || m.title == "NA" {
			m.title = "Unknown title"
		}
		if m.thumbnail == "NA" {
			m.thumbnail = ""
		}
		if d, err := strconv.ParseFloat(parts[2], 64); err == nil && d > 0 {
			m.durationSec = int(d)
		}
		return m, true
	}
	return printedMeta{}, false
}

// classify maps a yt-dlp failure onto the session error taxonomy based on
// what the extractor wrote to stderr.
func classify(err error, stderr string) *session.ResolveError {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return &session.ResolveError{Kind: session.ResolveNetwork, Reason: "fetch timed out"}
	}

	hay := strings.ToLower(stderr + " " + err.Error())

	for _, p := range []string{"sign in to confirm your age", "age-restricted", "age restricted", "drm", "private video", "members-only", "login required"} {
		if strings.Contains(hay, p) {
			return &session.ResolveError{Kind: session.ResolveRestricted, Reason: firstErrorLine(stderr, err)}
		}
	}
	for _, p := range []string{"video unavailable", "not found", "no video results", "does not exist", "404", "this video has been removed"} {
		if strings.Contains(hay, p) {
			return &session.ResolveError{Kind: session.ResolveNotFound, Reason: firstErrorLine(stderr, err)}
		}
	}
	for _, p := range []string{"unable to download webpage", "network", "timed out", "timeout", "connection refused", "connection reset", "getaddrinfo", "temporary failure"} {
		if strings.Contains(hay, p) {
			return &session.ResolveError{Kind: session.ResolveNetwork, Reason: firstErrorLine(stderr, err)}
		}
	}
	return &session.ResolveError{Kind: session.ResolveUnplayable, Reason: firstErrorLine(stderr, err)}
}

// firstErrorLine picks the most useful single line to show the requester.
func firstErrorLine(stderr string, err error) string {
	for _, line := range strings.Split(stderr, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(strings.ToLower(line), "error:") {
			return strings.TrimSpace(line[len("ERROR:"):])
		}
	}
	return err.Error()
}
