package voice

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/minsulee/noraebot/internal/stream"
)

// Conn drives one guild's Discord voice connection: it opens local audio
// files, encodes them to Opus and paces packets onto the wire. Exactly one
// stream is active at a time; its completion callback fires once.
type Conn struct {
	dg      *discordgo.Session
	guildID string

	mu        sync.Mutex
	vc        *discordgo.VoiceConnection
	channelID string
	cur       *playback

	posSec atomic.Int64
}

type playback struct {
	ctx    context.Context
	cancel context.CancelFunc
	paused atomic.Bool
	doneCh chan struct{}
	onDone func(error)
	once   sync.Once
}

func (p *playback) finish(err error) {
	p.once.Do(func() { p.onDone(err) })
}

// Connect joins the voice channel and returns a connection ready to play.
func Connect(dg *discordgo.Session, guildID, channelID string) (*Conn, error) {
	vc, err := dg.ChannelVoiceJoin(context.Background(), guildID, channelID, false, true)
	if err != nil {
		return nil, err
	}
	ensureChannels(vc)
	return &Conn{dg: dg, guildID: guildID, vc: vc, channelID: channelID}, nil
}

// ensureChannels prevents the panic in Kill() when discordgo closes nil
// channels.
func ensureChannels(vc *discordgo.VoiceConnection) {
	if vc.OpusSend == nil {
		vc.OpusSend = make(chan []byte, 2)
	}
	if vc.OpusRecv == nil {
		vc.OpusRecv = make(chan *discordgo.Packet, 2)
	}
}

func (c *Conn) ChannelID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.channelID
}

func (c *Conn) Position() int {
	return int(c.posSec.Load())
}

// Play opens the file and starts the send loop. A failure to open the stream
// is returned synchronously and onDone is never called for it.
func (c *Conn) Play(path string, onDone func(err error)) error {
	dec, err := stream.OpenDecoder(path)
	if err != nil {
		return err
	}
	enc, err := stream.NewEncoder()
	if err != nil {
		dec.Close()
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	pb := &playback{
		ctx:    ctx,
		cancel: cancel,
		doneCh: make(chan struct{}),
		onDone: onDone,
	}

	c.mu.Lock()
	if c.vc == nil {
		c.mu.Unlock()
		cancel()
		enc.Close()
		dec.Close()
		return errors.New("not connected")
	}
	if c.cur != nil {
		c.mu.Unlock()
		cancel()
		enc.Close()
		dec.Close()
		return errors.New("a stream is already active")
	}
	c.cur = pb
	vc := c.vc
	c.mu.Unlock()

	c.posSec.Store(0)
	go c.sendLoop(vc, dec, enc, pb)
	return nil
}

func (c *Conn) sendLoop(vc *discordgo.VoiceConnection, dec *stream.Decoder, enc *stream.Encoder, pb *playback) {
	var endErr error
	defer func() {
		_ = vc.Speaking(false)
		enc.Close()
		dec.Close()
		pb.cancel()
		c.mu.Lock()
		if c.cur == pb {
			c.cur = nil
		}
		c.mu.Unlock()
		close(pb.doneCh)
		pb.finish(endErr)
	}()

	// Wait for voice ready.
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) && !vc.Ready {
		select {
		case <-pb.ctx.Done():
			return
		case <-time.After(100 * time.Millisecond):
		}
	}
	if !vc.Ready {
		endErr = errors.New("voice connection not ready")
		return
	}

	_ = vc.Speaking(true)

	ticker := time.NewTicker(20 * time.Millisecond)
	defer ticker.Stop()

	frames := int64(0)
	for {
		select {
		case <-pb.ctx.Done():
			return
		default:
		}

		if pb.paused.Load() {
			select {
			case <-pb.ctx.Done():
				return
			case <-time.After(100 * time.Millisecond):
			}
			continue
		}

		frame, err := dec.ReadFrame()
		if err != nil {
			if err != io.EOF {
				endErr = err
			}
			return
		}

		var pkt []byte
		if err := enc.EncodeFrame(frame, func(p []byte) error {
			pkt = append(pkt[:0], p...)
			return nil
		}); err != nil {
			endErr = err
			return
		}
		if len(pkt) == 0 {
			continue
		}

		<-ticker.C
		select {
		case <-pb.ctx.Done():
			return
		case vc.OpusSend <- pkt:
			frames++
			c.posSec.Store(frames * stream.FrameSamples / stream.SampleRate)
		case <-time.After(200 * time.Millisecond):
			slog.Warn("opus send timeout", "guildID", c.guildID)
			endErr = errors.New("opus send timeout")
			return
		}
	}
}

func (c *Conn) Pause() error {
	c.mu.Lock()
	pb := c.cur
	vc := c.vc
	c.mu.Unlock()
	if pb == nil {
		return errors.New("no active stream")
	}
	pb.paused.Store(true)
	if vc != nil {
		_ = vc.Speaking(false)
	}
	return nil
}

func (c *Conn) Resume() error {
	c.mu.Lock()
	pb := c.cur
	vc := c.vc
	c.mu.Unlock()
	if pb == nil {
		return errors.New("no active stream")
	}
	pb.paused.Store(false)
	if vc != nil {
		_ = vc.Speaking(true)
	}
	return nil
}

// Stop cancels the active stream, if any, and waits briefly for its
// completion callback to run.
func (c *Conn) Stop() {
	c.mu.Lock()
	pb := c.cur
	c.mu.Unlock()
	if pb == nil {
		return
	}
	pb.cancel()
	select {
	case <-pb.doneCh:
	case <-time.After(2 * time.Second):
	}
}

// Move rejoins on a different channel of the same guild.
func (c *Conn) Move(channelID string) error {
	vc, err := c.dg.ChannelVoiceJoin(context.Background(), c.guildID, channelID, false, true)
	if err != nil {
		return err
	}
	ensureChannels(vc)
	c.mu.Lock()
	c.vc = vc
	c.channelID = channelID
	c.mu.Unlock()
	return nil
}

// Disconnect releases the voice connection with the same care the gateway
// needs to not panic on half-initialized channels.
func (c *Conn) Disconnect() {
	c.mu.Lock()
	vc := c.vc
	c.vc = nil
	c.channelID = ""
	c.mu.Unlock()

	if vc == nil {
		return
	}

	defer func() {
		if r := recover(); r != nil {
			slog.Error("voice disconnect panic recovered", "panic", r, "guildID", c.guildID)
		}
	}()

	ensureChannels(vc)
	_ = vc.Speaking(false)

	// Let pending sends settle before tearing the UDP connection down.
	time.Sleep(150 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := vc.Disconnect(ctx); err != nil {
		slog.Warn("voice disconnect failed", "guildID", c.guildID, "err", err)
	}
}
