package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Resolver turns a query into track metadata plus a downloaded local file.
// Failures are reported as *ResolveError.
type Resolver interface {
	Resolve(ctx context.Context, query string) (*Track, error)
}

// VoiceConn is the session's exclusively owned voice connection. Play opens a
// stream for a local file and starts output; onDone fires exactly once when
// output ends, whether it ran to completion, failed mid-stream, or was
// stopped.
type VoiceConn interface {
	ChannelID() string
	Play(path string, onDone func(err error)) error
	Pause() error
	Resume() error
	Stop()
	Move(channelID string) error
	Disconnect()
	Position() int // seconds into the current stream
}

// Notifier is the session's view of its guild text channel.
type Notifier interface {
	NowPlaying(t *Track)
	QueueAdded(t *Track, queuedAhead int)
	Notice(text string)
}

// Session owns one voice connection, one queue and one now-playing slot for a
// guild. All state transitions happen under mu; blocking work (resolving,
// stream opening, Discord I/O) runs outside it and re-validates afterwards.
type Session struct {
	guildID  string
	conn     VoiceConn
	notify   Notifier
	resolver Resolver
	registry *Registry
	idleWait time.Duration

	// gate serializes resolver fetches for this session. A second enqueue
	// arriving mid-fetch waits here; outcome (play now vs queue) is decided by
	// session state at acquisition time.
	gate sync.Mutex

	mu         sync.Mutex
	status     Status
	queue      queue
	nowPlaying *Track
	idleTimer  *time.Timer
	closed     bool
}

func newSession(reg *Registry, guildID string, conn VoiceConn, notify Notifier, idleWait time.Duration) *Session {
	s := &Session{
		guildID:  guildID,
		conn:     conn,
		notify:   notify,
		resolver: reg.resolver,
		registry: reg,
		idleWait: idleWait,
		status:   StatusIdle,
	}
	s.mu.Lock()
	s.armIdleTimerLocked()
	s.mu.Unlock()
	return s
}

func (s *Session) GuildID() string { return s.guildID }

func (s *Session) ChannelID() string { return s.conn.ChannelID() }

func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

func (s *Session) Now() *Track {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nowPlaying
}

func (s *Session) Position() int {
	return s.conn.Position()
}

func (s *Session) QueueLen() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queue.len()
}

// QueuePage returns one page of the pending queue without mutating it.
func (s *Session) QueuePage(page, pageSize int) ([]*Track, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queue.page(page, pageSize)
}

// Enqueue resolves a query and appends the fetched track to the queue,
// starting playback when nothing is on. Concurrent calls serialize on the
// download gate in acquisition order; a resolver failure leaves the session
// exactly as it was.
func (s *Session) Enqueue(ctx context.Context, query, requestedBy string) (*Track, error) {
	s.gate.Lock()
	defer s.gate.Unlock()

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrClosed
	}
	if s.status == StatusIdle {
		s.status = StatusDownloading
	}
	s.mu.Unlock()

	track, err := s.resolver.Resolve(ctx, query)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		if track != nil {
			_ = track.removeFile()
		}
		return nil, ErrClosed
	}
	if err != nil {
		if s.status == StatusDownloading {
			s.status = StatusIdle
			// A timer that fired during the fetch was consumed by its
			// re-validation; going back to idle needs a fresh one.
			if s.nowPlaying == nil && s.queue.len() == 0 {
				s.armIdleTimerLocked()
			}
		}
		s.mu.Unlock()
		slog.Warn("resolve failed", "guildID", s.guildID, "query", query, "err", err)
		return nil, err
	}

	track.RequestedBy = requestedBy
	s.queue.push(track)
	// Draining means another chain is already picking the next track up.
	if s.status == StatusPlaying || s.status == StatusPaused || s.status == StatusDraining {
		ahead := s.queue.len() - 1
		s.mu.Unlock()
		slog.Info("track queued", "guildID", s.guildID, "title", track.Title)
		s.notify.QueueAdded(track, ahead)
		return track, nil
	}
	s.status = StatusDraining
	s.mu.Unlock()

	slog.Info("track fetched, starting playback", "guildID", s.guildID, "title", track.Title)
	s.startNext()
	return track, nil
}

// startNext pops the queue head and begins output for it. An empty queue puts
// the session back to idle and arms the disconnect timer; a track whose
// stream cannot be opened is reported, cleaned up and skipped.
func (s *Session) startNext() {
	for {
		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			return
		}
		next, ok := s.queue.popFront()
		if !ok {
			s.status = StatusIdle
			s.nowPlaying = nil
			s.armIdleTimerLocked()
			s.mu.Unlock()
			return
		}
		// Publish before Play so a fast completion callback finds the track in
		// the now-playing slot.
		next.markPlaying()
		s.nowPlaying = next
		s.status = StatusDraining
		s.cancelIdleTimerLocked()
		s.mu.Unlock()

		err := s.conn.Play(next.LocalPath, func(perr error) {
			s.handlePlaybackDone(playbackDone{track: next, err: perr})
		})
		if err != nil {
			slog.Warn("stream open failed, skipping track",
				"guildID", s.guildID, "title", next.Title, "err", err)
			s.notify.Notice(fmt.Sprintf("Couldn't play %s, skipping it.", next.Title))
			s.mu.Lock()
			if s.nowPlaying == next {
				s.nowPlaying = nil
			}
			closed := s.closed
			s.mu.Unlock()
			if rerr := next.removeFile(); rerr != nil {
				slog.Error("failed to remove track file", "guildID", s.guildID, "path", next.LocalPath, "err", rerr)
			}
			if closed {
				return
			}
			continue
		}

		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			s.conn.Stop()
			return
		}
		if s.nowPlaying != next {
			// The track already completed and its handler advanced the chain;
			// committing or announcing here would belong to a finished track.
			s.mu.Unlock()
			return
		}
		if s.status == StatusDraining {
			s.status = StatusPlaying
		}
		s.mu.Unlock()

		slog.Info("now playing", "guildID", s.guildID, "title", next.Title, "durationSec", next.DurationSec)
		s.notify.NowPlaying(next)
		return
	}
}

// playbackDone is the completion event delivered by the voice connection at
// the end of each started track.
type playbackDone struct {
	track *Track
	err   error
}

func (s *Session) handlePlaybackDone(ev playbackDone) {
	s.mu.Lock()
	if s.closed {
		// Teardown owns the remaining cleanup.
		s.mu.Unlock()
		return
	}
	if ev.track != s.nowPlaying {
		s.mu.Unlock()
		slog.Error("playback completion for a track that is not playing",
			"guildID", s.guildID, "title", ev.track.Title)
		return
	}
	s.nowPlaying = nil
	s.status = StatusDraining
	s.mu.Unlock()

	if ev.err != nil {
		slog.Warn("playback ended with error", "guildID", s.guildID, "title", ev.track.Title, "err", ev.err)
		s.notify.Notice(fmt.Sprintf("Playback of %s stopped: %v", ev.track.Title, ev.err))
	}
	if err := ev.track.removeFile(); err != nil {
		slog.Error("failed to remove finished track file",
			"guildID", s.guildID, "path", ev.track.LocalPath, "err", err)
	}
	s.startNext()
}

func (s *Session) Pause() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if s.status != StatusPlaying {
		return ErrNotPlaying
	}
	if err := s.conn.Pause(); err != nil {
		return err
	}
	s.status = StatusPaused
	return nil
}

func (s *Session) Resume() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if s.status != StatusPaused {
		return ErrNotPaused
	}
	if err := s.conn.Resume(); err != nil {
		return err
	}
	s.status = StatusPlaying
	return nil
}

// Skip stops the current output; the completion event then advances the
// queue as if the track had finished.
func (s *Session) Skip() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	if s.status != StatusPlaying && s.status != StatusPaused {
		s.mu.Unlock()
		return ErrNotPlaying
	}
	conn := s.conn
	s.mu.Unlock()
	conn.Stop()
	return nil
}

// MoveTo relocates the voice connection. A target channel that already holds
// human listeners other than the requester refuses the move rather than
// barging in on them; nonBotListeners is that count as observed by the
// caller.
func (s *Session) MoveTo(channelID string, nonBotListeners int) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	conn := s.conn
	s.mu.Unlock()

	if conn.ChannelID() == channelID {
		return nil
	}
	if nonBotListeners > 0 {
		return ErrChannelOccupied
	}
	return conn.Move(channelID)
}

// Teardown closes the session: cancels the idle timer, releases the voice
// connection, deletes every remaining track file and removes the session from
// the registry. Safe to call more than once.
func (s *Session) Teardown(reason TeardownReason) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.status = StatusDisconnecting
	s.cancelIdleTimerLocked()
	conn := s.conn
	leftovers := s.queue.drain()
	if s.nowPlaying != nil {
		leftovers = append([]*Track{s.nowPlaying}, leftovers...)
		s.nowPlaying = nil
	}
	s.mu.Unlock()

	conn.Stop()
	conn.Disconnect()

	for _, t := range leftovers {
		if err := t.removeFile(); err != nil {
			slog.Error("failed to remove track file during teardown",
				"guildID", s.guildID, "path", t.LocalPath, "err", err)
		}
	}

	s.registry.remove(s.guildID)
	slog.Info("session closed", "guildID", s.guildID, "reason", string(reason))
}

// armIdleTimerLocked (re)schedules the disconnect check; any previous pending
// timer is cancelled first so at most one is outstanding. Caller holds mu.
func (s *Session) armIdleTimerLocked() {
	if s.idleWait <= 0 || s.closed {
		return
	}
	if s.idleTimer != nil {
		s.idleTimer.Stop()
	}
	s.idleTimer = time.AfterFunc(s.idleWait, s.idleTimerFired)
}

func (s *Session) cancelIdleTimerLocked() {
	if s.idleTimer != nil {
		s.idleTimer.Stop()
		s.idleTimer = nil
	}
}

// idleTimerFired re-validates before acting: a timer that lost the race with
// an enqueue or playback start does nothing.
func (s *Session) idleTimerFired() {
	s.mu.Lock()
	quiet := !s.closed && s.status == StatusIdle && s.nowPlaying == nil && s.queue.len() == 0
	s.mu.Unlock()
	if !quiet {
		return
	}
	s.Teardown(ReasonIdle)
	s.notify.Notice("Left the voice channel after sitting idle.")
}
