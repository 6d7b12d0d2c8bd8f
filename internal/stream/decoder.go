package stream

import (
	"errors"
	"fmt"
	"io"

	"github.com/asticode/go-astiav"
)

const (
	SampleRate   = 48000
	Channels     = 2
	FrameSamples = 960 // 20 ms at 48 kHz
	FrameBytes   = FrameSamples * Channels * 2
)

// Decoder reads a local audio file and produces interleaved s16le stereo 48k
// PCM in fixed 20 ms frames.
type Decoder struct {
	fc          *astiav.FormatContext
	audioStream *astiav.Stream
	decCtx      *astiav.CodecContext
	swr         *astiav.SoftwareResampleContext
	srcFrame    *astiav.Frame
	dstFrame    *astiav.Frame

	pending []byte
	eof     bool
	closed  bool
}

// OpenDecoder probes the file and sets up decode plus resampling to the
// Discord voice target format. An error here means the file is unplayable.
func OpenDecoder(path string) (*Decoder, error) {
	fc := astiav.AllocFormatContext()
	if fc == nil {
		return nil, errors.New("alloc format context")
	}

	if err := fc.OpenInput(path, nil, nil); err != nil {
		fc.Free()
		return nil, fmt.Errorf("open input: %w", err)
	}

	if err := fc.FindStreamInfo(nil); err != nil {
		fc.CloseInput()
		fc.Free()
		return nil, fmt.Errorf("find stream info: %w", err)
	}

	st, codec, err := fc.FindBestStream(astiav.MediaTypeAudio, -1, -1)
	if err != nil || st == nil || codec == nil {
		fc.CloseInput()
		fc.Free()
		if err != nil {
			return nil, fmt.Errorf("find best audio stream: %w", err)
		}
		return nil, errors.New("no audio stream found")
	}

	decCtx := astiav.AllocCodecContext(codec)
	if decCtx == nil {
		fc.CloseInput()
		fc.Free()
		return nil, errors.New("alloc codec context")
	}
	if err := decCtx.FromCodecParameters(st.CodecParameters()); err != nil {
		decCtx.Free()
		fc.CloseInput()
		fc.Free()
		return nil, fmt.Errorf("codec from params: %w", err)
	}
	decCtx.SetTimeBase(st.TimeBase())

	if err := decCtx.Open(codec, nil); err != nil {
		decCtx.Free()
		fc.CloseInput()
		fc.Free()
		return nil, fmt.Errorf("open decoder: %w", err)
	}

	swr := astiav.AllocSoftwareResampleContext()
	if swr == nil {
		decCtx.Free()
		fc.CloseInput()
		fc.Free()
		return nil, errors.New("alloc swr")
	}

	srcFrame := astiav.AllocFrame()
	dstFrame := astiav.AllocFrame()
	if srcFrame == nil || dstFrame == nil {
		if srcFrame != nil {
			srcFrame.Free()
		}
		if dstFrame != nil {
			dstFrame.Free()
		}
		swr.Free()
		decCtx.Free()
		fc.CloseInput()
		fc.Free()
		return nil, errors.New("alloc frames")
	}

	return &Decoder{
		fc:          fc,
		audioStream: st,
		decCtx:      decCtx,
		swr:         swr,
		srcFrame:    srcFrame,
		dstFrame:    dstFrame,
	}, nil
}

// ReadFrame returns the next 20 ms PCM frame. The final frame is padded with
// silence; after that it returns io.EOF.
func (d *Decoder) ReadFrame() ([]byte, error) {
	for len(d.pending) < FrameBytes && !d.eof {
		if err := d.decodeMore(); err != nil {
			if err == io.EOF {
				d.eof = true
				break
			}
			return nil, err
		}
	}
	if len(d.pending) == 0 {
		return nil, io.EOF
	}
	frame := make([]byte, FrameBytes)
	n := copy(frame, d.pending)
	if n < len(d.pending) {
		d.pending = d.pending[n:]
	} else {
		d.pending = nil
	}
	return frame, nil
}

// decodeMore demuxes one packet, decodes it and appends resampled PCM to the
// pending buffer. Returns io.EOF once the decoder is fully drained.
func (d *Decoder) decodeMore() error {
	packet := astiav.AllocPacket()
	defer packet.Free()

	for {
		packet.Unref()
		if err := d.fc.ReadFrame(packet); err != nil {
			if astErr, ok := err.(astiav.Error); ok && astErr.Is(io.EOF) {
				// Flush the decoder.
				_ = d.decCtx.SendPacket(nil)
				for {
					d.srcFrame.Unref()
					if err := d.decCtx.ReceiveFrame(d.srcFrame); err != nil {
						return io.EOF
					}
					if err := d.convert(d.srcFrame); err != nil {
						return err
					}
				}
			}
			if astErr, ok := err.(astiav.Error); ok && astErr.Is(astiav.ErrorAgain) {
				continue
			}
			return fmt.Errorf("read frame: %w", err)
		}

		if packet.StreamIndex() != d.audioStream.Index() {
			continue
		}

		if err := d.decCtx.SendPacket(packet); err != nil {
			if astErr, ok := err.(astiav.Error); !ok || !astErr.Is(astiav.ErrorAgain) {
				return fmt.Errorf("send packet: %w", err)
			}
		}

		got := false
		for {
			d.srcFrame.Unref()
			if err := d.decCtx.ReceiveFrame(d.srcFrame); err != nil {
				if astErr, ok := err.(astiav.Error); ok && (astErr.Is(astiav.ErrorAgain) || astErr.Is(io.EOF)) {
					break
				}
				return fmt.Errorf("receive frame: %w", err)
			}
			if err := d.convert(d.srcFrame); err != nil {
				return err
			}
			got = true
		}
		if got {
			return nil
		}
	}
}

func (d *Decoder) convert(src *astiav.Frame) error {
	d.dstFrame.Unref()
	d.dstFrame.SetNbSamples(src.NbSamples())
	d.dstFrame.SetChannelLayout(astiav.ChannelLayoutStereo)
	d.dstFrame.SetSampleRate(SampleRate)
	d.dstFrame.SetSampleFormat(astiav.SampleFormatS16)
	if err := d.dstFrame.AllocBuffer(0); err != nil {
		return fmt.Errorf("dst alloc buffer: %w", err)
	}

	if err := d.swr.ConvertFrame(src, d.dstFrame); err != nil {
		return fmt.Errorf("swr convert: %w", err)
	}

	b, err := d.dstFrame.Data().Bytes(0)
	if err != nil {
		return fmt.Errorf("dst bytes: %w", err)
	}
	d.pending = append(d.pending, b...)
	return nil
}

func (d *Decoder) Close() {
	if d.closed {
		return
	}
	d.closed = true
	if d.srcFrame != nil {
		d.srcFrame.Free()
	}
	if d.dstFrame != nil {
		d.dstFrame.Free()
	}
	if d.swr != nil {
		d.swr.Free()
	}
	if d.decCtx != nil {
		d.decCtx.Free()
	}
	if d.fc != nil {
		d.fc.CloseInput()
		d.fc.Free()
	}
}
