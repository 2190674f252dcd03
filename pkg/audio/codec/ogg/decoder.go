package ogg

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	gogg "github.com/thesyncim/gopus/container/ogg"
)

// Decoder reads Ogg pages from an io.Reader.
//
// Like libogg's sync layer it recovers from damage: bytes that do not form a
// valid page, including a page whose checksum fails, are skipped up to the
// next capture pattern. The gap then shows up as a sequence hole in
// StreamState.
type Decoder struct {
	r       *bufio.Reader
	offset  int64
	skipped int64
	pages   int64
}

// DecoderOption configures a Decoder.
type DecoderOption func(*Decoder)

// WithBaseOffset sets the stream offset of the reader's first byte, for
// readers opened in the middle of a stream.
func WithBaseOffset(offset int64) DecoderOption {
	return func(d *Decoder) {
		d.offset = offset
	}
}

// NewDecoder creates a new Ogg decoder.
func NewDecoder(r io.Reader, opts ...DecoderOption) *Decoder {
	d := &Decoder{r: bufio.NewReaderSize(r, MaxPageSize)}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Offset returns the stream offset of the next unread byte.
func (d *Decoder) Offset() int64 {
	return d.offset
}

// Skipped returns the number of bytes discarded while resynchronizing.
func (d *Decoder) Skipped() int64 {
	return d.skipped
}

// ReadPage returns the next valid page. It returns io.EOF at the end of the
// stream, ErrUnexpectedEOS when the stream ends inside a page, and
// ErrInvalidPage when the whole input held no page at all.
func (d *Decoder) ReadPage() (*Page, error) {
	for {
		data, err := d.peekPage()
		switch {
		case err == io.EOF:
			if d.pages == 0 && d.skipped > 0 {
				return nil, fmt.Errorf("%w: no capture pattern in %d bytes", ErrInvalidPage, d.skipped)
			}
			return nil, io.EOF
		case errors.Is(err, ErrUnexpectedEOS):
			// A capture pattern inside the truncated data may still
			// start a complete page.
			if i := bytes.Index(data[1:], []byte(capturePattern)); i >= 0 {
				d.skip(i + 1)
				continue
			}
			return nil, err
		case err != nil:
			return nil, err
		case data == nil:
			continue
		}

		gp, n, perr := gogg.ParsePage(data)
		if perr != nil || gp.Version != 0 {
			d.skip(1)
			continue
		}
		p := &Page{
			Version:    gp.Version,
			HeaderType: gp.HeaderType,
			GranulePos: int64(gp.GranulePos),
			SerialNo:   gp.SerialNumber,
			Sequence:   gp.PageSequence,
			Checksum:   binary.LittleEndian.Uint32(data[22:26]),
			Segments:   gp.Segments,
			Body:       gp.Payload,
			Offset:     d.offset,
		}
		d.discard(n)
		d.pages++
		return p, nil
	}
}

// peekPage returns the buffered bytes of the page at the read position.
// It returns nil data after skipping bytes that cannot start a page.
func (d *Decoder) peekPage() ([]byte, error) {
	hdr, err := d.r.Peek(pageHeaderSize)
	if len(hdr) == 0 && err == io.EOF {
		return nil, io.EOF
	}
	if !bytes.HasPrefix(hdr, []byte(capturePattern)) {
		// Keep the last three bytes, they may begin a pattern.
		skip := len(hdr) - len(capturePattern) + 1
		if i := bytes.Index(hdr, []byte(capturePattern)); i > 0 {
			skip = i
		}
		d.skip(max(skip, 1))
		return nil, nil
	}
	if err != nil {
		return hdr, truncated(err)
	}
	size := pageHeaderSize + int(hdr[26])
	seg, err := d.r.Peek(size)
	if err != nil {
		return seg, truncated(err)
	}
	for _, lv := range seg[pageHeaderSize:] {
		size += int(lv)
	}
	data, err := d.r.Peek(size)
	if err != nil {
		return data, truncated(err)
	}
	return data, nil
}

func (d *Decoder) skip(n int) {
	d.discard(n)
	d.skipped += int64(n)
}

func (d *Decoder) discard(n int) {
	n, _ = d.r.Discard(n)
	d.offset += int64(n)
}

func truncated(err error) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return ErrUnexpectedEOS
	}
	return err
}
