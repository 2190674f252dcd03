// Package vorbiscomment decodes and encodes Vorbis comment blocks, the
// vendor string plus key/value list shared by Vorbis, FLAC and Ogg Opus.
//
// Ogg Opus carries the block directly after the "OpusTags" signature, with
// no Vorbis packet-type header and no trailing framing bit, so both are
// optional here.
package vorbiscomment

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

// Sentinel errors.
var (
	// ErrTruncated is returned when a length field points past the data.
	ErrTruncated = errors.New("vorbiscomment: truncated comment block")

	// ErrBadCapturePattern is returned when the Vorbis packet header is wrong.
	ErrBadCapturePattern = errors.New("vorbiscomment: bad capture pattern")

	// ErrFramingBit is returned when a required framing bit is not set.
	ErrFramingBit = errors.New("vorbiscomment: framing bit not set")
)

const (
	// headerType is the Vorbis packet type of a comment header.
	headerType = 0x03

	// capturePattern follows the packet type in every Vorbis header.
	capturePattern = "vorbis"
)

// Options selects the framing around the comment block.
type Options struct {
	// HasMetadataHeader expects the 7-byte Vorbis packet header (type 0x03
	// followed by "vorbis") before the vendor string.
	HasMetadataHeader bool

	// HasFramingBit expects a trailing byte whose low bit is set.
	HasFramingBit bool
}

// Header is a decoded comment block.
type Header struct {
	Vendor   string
	Comments []string

	// Length is the number of bytes consumed, framing included.
	Length int
}

// Read decodes a comment block from data.
func Read(data []byte, opts Options) (*Header, error) {
	r := reader{data: data}

	if opts.HasMetadataHeader {
		hdr, err := r.next(1 + len(capturePattern))
		if err != nil {
			return nil, err
		}
		if hdr[0] != headerType || !bytes.Equal(hdr[1:], []byte(capturePattern)) {
			return nil, fmt.Errorf("%w: % x", ErrBadCapturePattern, hdr)
		}
	}

	vendor, err := r.string()
	if err != nil {
		return nil, fmt.Errorf("vendor: %w", err)
	}

	count, err := r.uint32()
	if err != nil {
		return nil, fmt.Errorf("comment count: %w", err)
	}
	// Each comment needs at least its 4-byte length.
	if uint64(count)*4 > uint64(len(data)-r.pos) {
		return nil, fmt.Errorf("%w: %d comments in %d bytes", ErrTruncated, count, len(data)-r.pos)
	}

	h := &Header{
		Vendor:   vendor,
		Comments: make([]string, 0, count),
	}
	for i := range count {
		c, err := r.string()
		if err != nil {
			return nil, fmt.Errorf("comment %d: %w", i, err)
		}
		h.Comments = append(h.Comments, c)
	}

	if opts.HasFramingBit {
		b, err := r.next(1)
		if err != nil {
			return nil, fmt.Errorf("framing bit: %w", err)
		}
		if b[0]&0x01 == 0 {
			return nil, ErrFramingBit
		}
	}

	h.Length = r.pos
	return h, nil
}

// Comment is a single KEY=value entry.
type Comment struct {
	Key   string
	Value string
}

// String returns the comment in KEY=value form.
func (c Comment) String() string {
	return c.Key + "=" + c.Value
}

// ParseComments splits raw comments into key/value pairs, keeping their
// order. Comments without a '=' are skipped. It returns nil when no comment
// is usable.
func ParseComments(comments []string) []Comment {
	var out []Comment
	for _, raw := range comments {
		key, value, ok := strings.Cut(raw, "=")
		if !ok {
			slog.Warn("vorbiscomment: skipping comment without '='", "comment", raw)
			continue
		}
		out = append(out, Comment{Key: key, Value: value})
	}
	return out
}

// Encode serializes a comment block.
func Encode(vendor string, comments []string, opts Options) []byte {
	size := 4 + len(vendor) + 4
	for _, c := range comments {
		size += 4 + len(c)
	}
	if opts.HasMetadataHeader {
		size += 1 + len(capturePattern)
	}
	if opts.HasFramingBit {
		size++
	}

	buf := make([]byte, 0, size)
	if opts.HasMetadataHeader {
		buf = append(buf, headerType)
		buf = append(buf, capturePattern...)
	}
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(vendor)))
	buf = append(buf, vendor...)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(comments)))
	for _, c := range comments {
		buf = binary.LittleEndian.AppendUint32(buf, uint32(len(c)))
		buf = append(buf, c...)
	}
	if opts.HasFramingBit {
		buf = append(buf, 0x01)
	}
	return buf
}

type reader struct {
	data []byte
	pos  int
}

func (r *reader) next(n int) ([]byte, error) {
	if n < 0 || n > len(r.data)-r.pos {
		return nil, fmt.Errorf("%w: need %d bytes at offset %d, have %d", ErrTruncated, n, r.pos, len(r.data)-r.pos)
	}
	b := r.data[r.pos : r.pos+n]
	r.pos += n
	return b, nil
}

func (r *reader) uint32() (uint32, error) {
	b, err := r.next(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

func (r *reader) string() (string, error) {
	n, err := r.uint32()
	if err != nil {
		return "", err
	}
	if uint64(n) > uint64(len(r.data)-r.pos) {
		return "", fmt.Errorf("%w: length %d at offset %d, have %d", ErrTruncated, n, r.pos, len(r.data)-r.pos)
	}
	b, err := r.next(int(n))
	if err != nil {
		return "", err
	}
	return string(b), nil
}
