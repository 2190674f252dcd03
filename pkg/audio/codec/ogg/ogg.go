// Package ogg implements the Ogg container framing (RFC 3533) in pure Go.
//
// It provides page decoding with CRC verification and resynchronization,
// reassembly of packets that span pages, and a page encoder. Only the
// framing layer is handled here; codec specific interpretation of packets
// lives in the codec packages.
package ogg

import (
	"encoding/binary"
	"errors"

	gogg "github.com/thesyncim/gopus/container/ogg"
)

// Page header type flags
const (
	// Continued indicates this page contains data from a packet continued from the previous page
	Continued = 0x01
	// BOS indicates beginning of stream
	BOS = 0x02
	// EOS indicates end of stream
	EOS = 0x04
)

const (
	capturePattern = "OggS"
	pageHeaderSize = 27

	// MaxSegments is the largest segment table a page can carry.
	MaxSegments = 255

	// MaxPageSize is the largest possible page, header included.
	MaxPageSize = pageHeaderSize + MaxSegments + MaxSegments*255
)

var (
	// ErrInvalidPage indicates input that holds no valid page at all.
	ErrInvalidPage = errors.New("ogg: invalid page")
	// ErrUnexpectedEOS indicates the data ended in the middle of a page.
	ErrUnexpectedEOS = errors.New("ogg: unexpected end of stream")
	// ErrStream indicates a page was submitted to the wrong logical stream.
	ErrStream = errors.New("ogg: stream error")
	// ErrNoPacket indicates no packet is available.
	ErrNoPacket = errors.New("ogg: no packet available")
	// ErrHole indicates a gap in the data (lost or skipped pages).
	ErrHole = errors.New("ogg: hole in data")
)

// Page represents an Ogg page.
type Page struct {
	Version    uint8
	HeaderType uint8
	GranulePos int64
	SerialNo   uint32
	Sequence   uint32
	Checksum   uint32

	// Segments is the lacing table.
	Segments []byte
	Body     []byte

	// Offset is the byte offset of the page's capture pattern in the
	// underlying stream.
	Offset int64
}

// IsBOS returns true if this is a beginning of stream page.
func (p *Page) IsBOS() bool { return p.HeaderType&BOS != 0 }

// IsEOS returns true if this is an end of stream page.
func (p *Page) IsEOS() bool { return p.HeaderType&EOS != 0 }

// IsContinued returns true if the page starts with the tail of a packet
// begun on an earlier page.
func (p *Page) IsContinued() bool { return p.HeaderType&Continued != 0 }

// Size returns the encoded size of the page in bytes.
func (p *Page) Size() int {
	return pageHeaderSize + len(p.Segments) + len(p.Body)
}

// Packets returns the number of packets that complete on this page.
func (p *Page) Packets() int {
	n := 0
	for _, lv := range p.Segments {
		if lv < 255 {
			n++
		}
	}
	return n
}

// Encode serializes the page and fills in its checksum.
func (p *Page) Encode() []byte {
	buf := (&gogg.Page{
		Version:      p.Version,
		HeaderType:   p.HeaderType,
		GranulePos:   uint64(p.GranulePos),
		SerialNumber: p.SerialNo,
		PageSequence: p.Sequence,
		Segments:     p.Segments,
		Payload:      p.Body,
	}).Encode()
	p.Checksum = binary.LittleEndian.Uint32(buf[22:26])
	return buf
}

// Packet represents an Ogg packet.
type Packet struct {
	Data []byte

	// GranulePos is the page granule position when this packet is the last
	// one completed on its page, and -1 otherwise.
	GranulePos int64
	PacketNo   int64
	BOS        bool
	EOS        bool

	// PageOffset is the offset of the page on which the packet begins.
	PageOffset int64
}
