package ogg

import "fmt"

// StreamState reassembles the packets of one logical stream from its pages.
type StreamState struct {
	serialNo uint32

	started bool
	lastSeq uint32

	partial       []byte
	partialOffset int64
	inPacket      bool

	// queue holds complete packets; a nil entry marks a hole.
	queue    []*Packet
	packetNo int64
	eos      bool
}

// NewStreamState creates a stream state for the given serial number.
func NewStreamState(serialNo uint32) *StreamState {
	return &StreamState{serialNo: serialNo}
}

// SerialNo returns the stream serial number.
func (s *StreamState) SerialNo() uint32 {
	return s.serialNo
}

// EOS reports whether a page with the EOS flag has been submitted.
func (s *StreamState) EOS() bool {
	return s.eos
}

// Reset drops all buffered data. The next page is accepted without a
// sequence check, and a leading continuation on it is discarded silently.
func (s *StreamState) Reset() {
	*s = StreamState{serialNo: s.serialNo}
}

// PageIn submits a page to the stream.
func (s *StreamState) PageIn(p *Page) error {
	if p.SerialNo != s.serialNo {
		return fmt.Errorf("%w: page serial %08x, stream serial %08x", ErrStream, p.SerialNo, s.serialNo)
	}

	wasStarted := s.started
	if s.started && p.Sequence != s.lastSeq+1 {
		s.markHole()
	}
	s.started = true
	s.lastSeq = p.Sequence
	if p.IsEOS() {
		s.eos = true
	}

	segs := p.Segments
	body := p.Body

	// Skip the tail of a packet whose head we never saw.
	if p.IsContinued() && !s.inPacket {
		if wasStarted {
			s.markHole()
		}
		for len(segs) > 0 {
			lv := int(segs[0])
			segs = segs[1:]
			body = body[lv:]
			if lv < 255 {
				break
			}
		}
	} else if !p.IsContinued() && s.inPacket {
		// The previous page promised a continuation that never came.
		s.markHole()
	}

	lastComplete := -1
	for i, lv := range segs {
		if lv < 255 {
			lastComplete = i
		}
	}

	start := 0
	for i, lv := range segs {
		if !s.inPacket {
			s.inPacket = true
			s.partial = nil
			s.partialOffset = p.Offset
		}
		end := start + int(lv)
		s.partial = append(s.partial, body[start:end]...)
		start = end
		if lv == 255 {
			continue
		}

		pkt := Packet{
			Data:       s.partial,
			GranulePos: -1,
			PacketNo:   s.packetNo,
			BOS:        p.IsBOS() && s.packetNo == 0,
			PageOffset: s.partialOffset,
		}
		if i == lastComplete {
			pkt.GranulePos = p.GranulePos
			pkt.EOS = p.IsEOS()
		}
		if pkt.Data == nil {
			pkt.Data = []byte{}
		}
		s.queue = append(s.queue, &pkt)
		s.packetNo++
		s.inPacket = false
		s.partial = nil
	}
	return nil
}

// PacketOut returns the next complete packet.
// Returns ErrNoPacket if no complete packet is available.
// Returns ErrHole once at the position where a gap in the data was detected.
func (s *StreamState) PacketOut(packet *Packet) error {
	if len(s.queue) == 0 {
		return ErrNoPacket
	}
	next := s.queue[0]
	s.queue[0] = nil
	s.queue = s.queue[1:]
	if next == nil {
		return ErrHole
	}
	*packet = *next
	return nil
}

func (s *StreamState) markHole() {
	s.partial = nil
	s.inPacket = false
	if n := len(s.queue); n > 0 && s.queue[n-1] == nil {
		return
	}
	s.queue = append(s.queue, nil)
}
