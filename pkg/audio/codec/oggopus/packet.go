package oggopus

import (
	"bytes"
	"fmt"
	"io"
)

// Packet is a read cursor over one demuxed packet body. The body itself is
// never modified.
type Packet struct {
	data []byte
	pos  int
}

// NewPacket returns a cursor positioned at the start of data.
func NewPacket(data []byte) *Packet {
	return &Packet{data: data}
}

// Bytes returns the whole packet body regardless of the cursor.
func (p *Packet) Bytes() []byte {
	return p.data
}

// Position returns the cursor offset.
func (p *Packet) Position() int {
	return p.pos
}

// SetPosition moves the cursor to an absolute offset within the body.
func (p *Packet) SetPosition(pos int) error {
	if pos < 0 || pos > len(p.data) {
		return fmt.Errorf("oggopus: position %d out of range [0, %d]", pos, len(p.data))
	}
	p.pos = pos
	return nil
}

// BytesLeft returns the number of bytes after the cursor.
func (p *Packet) BytesLeft() int {
	return len(p.data) - p.pos
}

// Remaining returns the bytes after the cursor without advancing it.
func (p *Packet) Remaining() []byte {
	return p.data[p.pos:]
}

// Read returns the next n bytes and advances the cursor.
func (p *Packet) Read(n int) ([]byte, error) {
	if n < 0 || n > p.BytesLeft() {
		return nil, io.ErrUnexpectedEOF
	}
	b := p.data[p.pos : p.pos+n]
	p.pos += n
	return b, nil
}

// Skip advances the cursor by n bytes.
func (p *Packet) Skip(n int) error {
	_, err := p.Read(n)
	return err
}

// HasPrefix reports whether the bytes at the cursor begin with sig. The
// cursor is left where it was. Fewer than len(sig) remaining bytes is a
// plain mismatch.
func (p *Packet) HasPrefix(sig []byte) bool {
	pos := p.pos
	defer func() { p.pos = pos }()

	b, err := p.Read(len(sig))
	if err != nil {
		return false
	}
	return bytes.Equal(b, sig)
}
