package oggopus

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"log/slog"

	"github.com/haivivi/oggopus/pkg/audio/codec/ogg"
	"github.com/haivivi/oggopus/pkg/audio/codec/opus"
)

var (
	// ErrNoOpusStream is returned when no logical stream starts with an
	// identification header.
	ErrNoOpusStream = errors.New("oggopus: no opus stream found")

	// ErrHeadersNotRead is returned by Next and Resume before ReadHeaders.
	ErrHeadersNotRead = errors.New("oggopus: headers not read")
)

// AudioPacket is one audio packet with its timing.
type AudioPacket struct {
	Data []byte `json:"-" yaml:"-"`

	DurationUs   int64 `json:"duration_us" yaml:"duration_us"`
	GranuleDelta int64 `json:"granule_delta" yaml:"granule_delta"`

	// Granule is the stream position after this packet.
	Granule int64 `json:"granule" yaml:"granule"`
	// TimeUs is the start time of this packet.
	TimeUs int64 `json:"time_us" yaml:"time_us"`

	// PageOffset is the byte offset of the page on which the packet begins.
	PageOffset int64 `json:"page_offset" yaml:"page_offset"`
	// PacketNo numbers the audio packets of the stream from 0. After Resume
	// it continues from the seek point's PacketNo.
	PacketNo int64 `json:"packet_no" yaml:"packet_no"`
}

// Frame returns the packet data as an opus.Frame.
func (p *AudioPacket) Frame() opus.Frame {
	return opus.Frame(p.Data)
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(e *Extractor) {
		e.log = l
	}
}

// WithSkipMalformed makes Next log and skip audio packets whose duration
// cannot be computed instead of failing.
func WithSkipMalformed(skip bool) Option {
	return func(e *Extractor) {
		e.skipMalformed = skip
	}
}

// WithClock overrides the granule clock. Defaults to OpusClock.
func WithClock(c Clock) Option {
	return func(e *Extractor) {
		e.clock = c
	}
}

// WithBaseOffset sets the stream offset of the reader's first byte.
func WithBaseOffset(offset int64) Option {
	return func(e *Extractor) {
		e.baseOffset = offset
	}
}

// Extractor reads the first Ogg Opus stream from a byte source and yields
// its audio packets with duration and granule position. It records a seek
// table as it goes.
//
// An Extractor is not safe for concurrent use.
type Extractor struct {
	log           *slog.Logger
	clock         Clock
	skipMalformed bool
	baseOffset    int64

	dec    *ogg.Decoder
	stream *ogg.StreamState
	serial uint32

	state   State
	config  *CodecConfig
	pending *ogg.Packet

	granule   int64
	count     int64
	table     SeekTable
	lastPoint int64
	resumed   bool
}

// NewExtractor creates an extractor reading pages from r.
func NewExtractor(r io.Reader, opts ...Option) *Extractor {
	e := &Extractor{
		log:       slog.Default(),
		clock:     OpusClock,
		lastPoint: -1,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.dec = ogg.NewDecoder(r, ogg.WithBaseOffset(e.baseOffset))
	e.table.SampleRate = e.clock.Rate
	return e
}

// Config returns the codec config, or nil before ReadHeaders succeeds.
func (e *Extractor) Config() *CodecConfig {
	return e.config
}

// SerialNo returns the serial number of the selected stream.
func (e *Extractor) SerialNo() uint32 {
	return e.serial
}

// Granule returns the stream position after the last packet returned.
func (e *Extractor) Granule() int64 {
	return e.granule
}

// SeekTable returns a copy of the seek table recorded so far.
func (e *Extractor) SeekTable() SeekTable {
	return e.table.clone()
}

// ReadHeaders runs the header phase and returns the codec config. The
// packet that ends the header phase is kept for the first call to Next.
func (e *Extractor) ReadHeaders(ctx context.Context) (*CodecConfig, error) {
	if e.config != nil {
		return e.config, nil
	}
	for {
		pkt, err := e.nextPacket(ctx)
		if err == io.EOF {
			if e.state.Config() == nil {
				return nil, fmt.Errorf("oggopus: stream ended before identification header: %w", io.ErrUnexpectedEOF)
			}
			// A stream with headers and no audio.
			e.config = e.state.Config()
			return e.config, nil
		}
		if err != nil {
			return nil, err
		}

		more, err := ReadHeader(NewPacket(pkt.Data), &e.state)
		if err != nil {
			return nil, fmt.Errorf("packet %d at offset %d: %w", pkt.PacketNo, pkt.PageOffset, err)
		}
		if !more {
			e.pending = pkt
			e.config = e.state.Config()
			e.log.Debug("oggopus: headers read",
				"serial", e.serial,
				"channels", e.config.Channels,
				"pre_skip", e.clock.Duration(int64(e.config.Header.PreSkip)),
				"metadata", len(e.config.Metadata))
			return e.config, nil
		}
	}
}

// Next returns the next audio packet, or io.EOF at the end of the stream.
func (e *Extractor) Next(ctx context.Context) (*AudioPacket, error) {
	if e.config == nil {
		return nil, ErrHeadersNotRead
	}
	for {
		pkt := e.pending
		e.pending = nil
		if pkt == nil {
			var err error
			if pkt, err = e.nextPacket(ctx); err != nil {
				return nil, err
			}
		}

		if e.resumed && isHeaderPacket(pkt.Data) {
			e.log.Debug("oggopus: skipping header packet after resume", "offset", pkt.PageOffset)
			continue
		}
		if len(pkt.Data) == 0 && pkt.EOS {
			// Some muxers close the stream with an empty packet.
			continue
		}

		us, err := opus.PacketDurationUs(pkt.Data)
		if err != nil {
			if e.skipMalformed {
				e.log.Warn("oggopus: skipping malformed packet",
					"packet", pkt.PacketNo, "offset", pkt.PageOffset, "error", err)
				continue
			}
			return nil, fmt.Errorf("packet %d at offset %d: %w", pkt.PacketNo, pkt.PageOffset, err)
		}
		return e.account(pkt, us), nil
	}
}

// Packets returns an iterator over the remaining audio packets. Headers are
// read first if needed. Iteration stops after the first error.
func (e *Extractor) Packets(ctx context.Context) iter.Seq2[*AudioPacket, error] {
	return func(yield func(*AudioPacket, error) bool) {
		if e.config == nil {
			if _, err := e.ReadHeaders(ctx); err != nil {
				yield(nil, err)
				return
			}
		}
		for {
			pkt, err := e.Next(ctx)
			if err == io.EOF {
				return
			}
			if err != nil {
				yield(nil, err)
				return
			}
			if !yield(pkt, nil) {
				return
			}
		}
	}
}

// Resume continues reading from r, which must be positioned at p.Offset of
// the same stream. Headers must already have been read on this extractor.
// Data continuing a packet from before p.Offset is dropped.
func (e *Extractor) Resume(r io.Reader, p SeekPoint) error {
	if e.config == nil || e.stream == nil {
		return ErrHeadersNotRead
	}
	e.dec = ogg.NewDecoder(r, ogg.WithBaseOffset(p.Offset))
	e.stream.Reset()
	e.pending = nil
	e.granule = p.Granule
	e.count = p.PacketNo
	e.lastPoint = -1
	e.resumed = true
	e.log.Debug("oggopus: resumed",
		"offset", p.Offset, "granule", p.Granule, "packet", p.PacketNo, "at", e.clock.Duration(p.Granule))
	return nil
}

func (e *Extractor) account(pkt *ogg.Packet, us int64) *AudioPacket {
	delta := e.clock.Granules(us)
	ap := &AudioPacket{
		Data:         pkt.Data,
		DurationUs:   us,
		GranuleDelta: delta,
		TimeUs:       e.clock.Micros(e.granule),
		PageOffset:   pkt.PageOffset,
		PacketNo:     e.count,
	}
	if pkt.PageOffset != e.lastPoint {
		e.table.add(SeekPoint{TimeUs: ap.TimeUs, Granule: e.granule, Offset: pkt.PageOffset, PacketNo: e.count})
		e.lastPoint = pkt.PageOffset
	}

	e.granule += delta
	e.count++
	ap.Granule = e.granule
	if e.granule > e.table.Granule {
		e.table.Granule = e.granule
		e.table.DurationUs = e.clock.Micros(e.granule)
	}
	return ap
}

// nextPacket returns the next packet of the selected stream, selecting
// the stream on the first identification header page.
func (e *Extractor) nextPacket(ctx context.Context) (*ogg.Packet, error) {
	for {
		if e.stream != nil {
			var pkt ogg.Packet
			err := e.stream.PacketOut(&pkt)
			if err == nil {
				return &pkt, nil
			}
			if err == ogg.ErrHole {
				e.log.Warn("oggopus: hole in stream",
					"serial", e.serial, "offset", e.dec.Offset(), "skipped_bytes", e.dec.Skipped())
				continue
			}
			if e.stream.EOS() {
				return nil, io.EOF
			}
		}

		if err := ctx.Err(); err != nil {
			return nil, err
		}
		page, err := e.dec.ReadPage()
		if err == io.EOF {
			if e.stream == nil {
				return nil, ErrNoOpusStream
			}
			return nil, io.EOF
		}
		if err != nil {
			return nil, err
		}

		if e.stream == nil {
			if !page.IsBOS() || !bytes.HasPrefix(page.Body, idSignature) {
				e.log.Debug("oggopus: skipping page", "serial", page.SerialNo, "offset", page.Offset)
				continue
			}
			e.serial = page.SerialNo
			e.stream = ogg.NewStreamState(page.SerialNo)
		} else if page.SerialNo != e.serial {
			e.log.Debug("oggopus: skipping page of other stream", "serial", page.SerialNo, "offset", page.Offset)
			continue
		}

		if err := e.stream.PageIn(page); err != nil {
			return nil, err
		}
	}
}

func isHeaderPacket(data []byte) bool {
	return bytes.HasPrefix(data, idSignature) || bytes.HasPrefix(data, commentSignature)
}
