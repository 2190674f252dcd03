package ogg

import (
	"crypto/rand"
	"encoding/binary"
	"errors"
	"io"
)

// pageFillBytes is the body size at which the encoder closes a page.
const pageFillBytes = 4096

// ErrStreamEnded is returned when writing to a stream after its EOS page.
var ErrStreamEnded = errors.New("ogg: stream already ended")

// Encoder writes the packets of one logical stream as Ogg pages.
//
// Packets are buffered into pages. A page is emitted after a BOS or EOS
// packet, when its lacing table is full, or when its body reaches 4 KiB.
// Flush forces out a partially filled page.
type Encoder struct {
	w        io.Writer
	serialNo uint32
	sequence uint32

	segs []byte
	body []byte

	// granule of the last packet completed on the pending page
	granule   int64
	completed bool
	inPacket  bool
	continued bool

	lastGranule int64
	ended       bool
}

// NewEncoder creates a new Ogg encoder with a random serial number.
func NewEncoder(w io.Writer) (*Encoder, error) {
	var b [4]byte
	if _, err := rand.Read(b[:]); err != nil {
		return nil, err
	}
	return NewEncoderWithSerial(w, binary.LittleEndian.Uint32(b[:])), nil
}

// NewEncoderWithSerial creates a new Ogg encoder with a specific serial number.
func NewEncoderWithSerial(w io.Writer, serialNo uint32) *Encoder {
	return &Encoder{w: w, serialNo: serialNo}
}

// SerialNo returns the stream serial number.
func (e *Encoder) SerialNo() uint32 {
	return e.serialNo
}

// PageCount returns the number of pages written so far.
func (e *Encoder) PageCount() uint32 {
	return e.sequence
}

// WritePacket writes a packet to the stream.
// Set bos=true for beginning of stream, eos=true for end of stream.
func (e *Encoder) WritePacket(data []byte, granulePos int64, bos, eos bool) error {
	if e.ended {
		return ErrStreamEnded
	}
	if bos && (e.sequence != 0 || len(e.segs) != 0) {
		// The BOS packet must sit alone on the first page.
		if err := e.flushPage(false); err != nil {
			return err
		}
	}

	e.inPacket = true
	rest := data
	for {
		if len(e.segs) == MaxSegments {
			if err := e.flushPage(false); err != nil {
				return err
			}
		}
		n := min(len(rest), 255)
		e.segs = append(e.segs, byte(n))
		e.body = append(e.body, rest[:n]...)
		rest = rest[n:]
		if n < 255 {
			break
		}
	}
	e.inPacket = false
	e.completed = true
	e.granule = granulePos
	e.lastGranule = granulePos

	if bos || eos || len(e.body) >= pageFillBytes {
		return e.flushPage(eos)
	}
	return nil
}

// Flush forces any buffered packets into a page.
func (e *Encoder) Flush() error {
	if e.ended {
		return nil
	}
	return e.flushPage(false)
}

// Close ends the stream. Buffered packets go out on an EOS page; if none
// are buffered an empty EOS page is written.
func (e *Encoder) Close() error {
	if e.ended {
		return nil
	}
	if len(e.segs) == 0 {
		e.granule = e.lastGranule
		e.completed = true
	}
	return e.flushPageForce(true)
}

func (e *Encoder) flushPage(eos bool) error {
	if len(e.segs) == 0 && !eos {
		return nil
	}
	return e.flushPageForce(eos)
}

func (e *Encoder) flushPageForce(eos bool) error {
	p := &Page{
		GranulePos: -1,
		SerialNo:   e.serialNo,
		Sequence:   e.sequence,
		Segments:   e.segs,
		Body:       e.body,
	}
	if e.completed {
		p.GranulePos = e.granule
	}
	if e.sequence == 0 {
		p.HeaderType |= BOS
	}
	if e.continued {
		p.HeaderType |= Continued
	}
	if eos {
		p.HeaderType |= EOS
	}

	if _, err := e.w.Write(p.Encode()); err != nil {
		return err
	}
	e.sequence++
	e.segs = nil
	e.body = nil
	e.completed = false
	e.continued = e.inPacket
	if eos {
		e.ended = true
	}
	return nil
}
