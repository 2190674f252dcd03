package opus

import "time"

// Frame is one encoded Opus packet as carried in an Ogg stream.
type Frame []byte

// TOC returns the leading TOC byte, or 0 for an empty frame.
func (f Frame) TOC() TOC {
	if len(f) > 0 {
		return TOC(f[0])
	}
	return 0
}

// Configuration is shorthand for f.TOC().Configuration().
func (f Frame) Configuration() Configuration { return f.TOC().Configuration() }

// Duration is the playback length of the frame. Malformed frames report 0.
func (f Frame) Duration() time.Duration {
	us, err := PacketDurationUs(f)
	if err != nil {
		return 0
	}
	return time.Duration(us) * time.Microsecond
}

// Samples is Duration expressed in 48 kHz samples, the unit of Ogg granule
// positions.
func (f Frame) Samples() int {
	return int(f.Duration() * SampleRate / time.Second)
}
