package ogg

import (
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/haivivi/oggopus/pkg/audio/codec/opus"
	"github.com/haivivi/oggopus/pkg/audio/codec/vorbiscomment"
)

const (
	// defaultPreSkip is the 80 ms pre-skip RFC 7845 section 5.1 recommends.
	defaultPreSkip = 3840
	defaultVendor  = "oggopus"
)

var (
	// ErrWriterClosed is returned when writing to a closed writer.
	ErrWriterClosed = errors.New("ogg: writer is closed")
	// ErrNilWriter is returned when the underlying writer is nil.
	ErrNilWriter = errors.New("ogg: nil writer")
)

// OpusWriterOptions configures the headers written by an OpusWriter.
type OpusWriterOptions struct {
	// Channels is 1 or 2. Defaults to 1.
	Channels int
	// PreSkip in 48 kHz samples. Defaults to 3840.
	PreSkip *uint16
	// InputSampleRate is informational. Defaults to 48000.
	InputSampleRate uint32
	OutputGain      int16

	// Vendor and Comments populate the OpusTags packet.
	Vendor   string
	Comments []string

	// SerialNo fixes the stream serial. A random serial is used when nil.
	SerialNo *uint32
}

// OpusWriter writes Opus packets to an Ogg Opus stream, one packet per page.
type OpusWriter struct {
	mu      sync.Mutex
	w       io.Writer
	enc     *Encoder
	header  opus.IDHeader
	granule int64
	closed  bool
}

// NewOpusWriter creates a writer and emits the OpusHead and OpusTags pages.
func NewOpusWriter(w io.Writer, opts OpusWriterOptions) (*OpusWriter, error) {
	if w == nil {
		return nil, ErrNilWriter
	}

	var enc *Encoder
	if opts.SerialNo != nil {
		enc = NewEncoderWithSerial(w, *opts.SerialNo)
	} else {
		var err error
		if enc, err = NewEncoder(w); err != nil {
			return nil, err
		}
	}

	ow := &OpusWriter{
		w:   w,
		enc: enc,
		header: opus.IDHeader{
			Version:         1,
			Channels:        1,
			PreSkip:         defaultPreSkip,
			InputSampleRate: opus.SampleRate,
			OutputGain:      opts.OutputGain,
			MappingFamily:   opus.MappingFamilyRTP,
		},
	}
	if opts.Channels != 0 {
		if opts.Channels < 0 || opts.Channels > 2 {
			return nil, fmt.Errorf("ogg: %d channels not supported by mapping family 0", opts.Channels)
		}
		ow.header.Channels = uint8(opts.Channels)
	}
	if opts.PreSkip != nil {
		ow.header.PreSkip = *opts.PreSkip
	}
	if opts.InputSampleRate != 0 {
		ow.header.InputSampleRate = opts.InputSampleRate
	}
	vendor := opts.Vendor
	if vendor == "" {
		vendor = defaultVendor
	}

	if err := enc.WritePacket(ow.header.Encode(), 0, true, false); err != nil {
		return nil, err
	}
	tags := append([]byte(opus.CommentHeaderSignature), vorbiscomment.Encode(vendor, opts.Comments, vorbiscomment.Options{})...)
	if err := enc.WritePacket(tags, 0, false, false); err != nil {
		return nil, err
	}
	if err := enc.Flush(); err != nil {
		return nil, err
	}
	return ow, nil
}

// Header returns the identification header written at the stream start.
func (w *OpusWriter) Header() opus.IDHeader {
	return w.header
}

// SerialNo returns the stream serial number.
func (w *OpusWriter) SerialNo() uint32 {
	return w.enc.SerialNo()
}

// Write writes an Opus packet on its own page. The granule position
// advances by the packet duration read from its TOC byte.
func (w *OpusWriter) Write(frame opus.Frame) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return ErrWriterClosed
	}

	us, err := opus.PacketDurationUs(frame)
	if err != nil {
		return err
	}
	w.granule += us * opus.SampleRate / 1_000_000

	if err := w.enc.WritePacket(frame, w.granule, false, false); err != nil {
		return err
	}
	return w.enc.Flush()
}

// Granule returns the current granule position.
func (w *OpusWriter) Granule() int64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.granule
}

// SetGranule sets the granule position.
func (w *OpusWriter) SetGranule(g int64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.granule = g
}

// Close writes the EOS page and closes the underlying writer if it
// implements io.Closer.
func (w *OpusWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}
	w.closed = true

	if err := w.enc.Close(); err != nil {
		return err
	}
	if closer, ok := w.w.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}
