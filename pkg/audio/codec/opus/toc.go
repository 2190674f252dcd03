// Package opus provides Opus bitstream helpers that need no decoder.
//
// It reads the RFC 6716 TOC byte, computes packet durations from it, and
// handles the RFC 7845 identification header (OpusHead) a downstream
// decoder is initialized from.
package opus

import "fmt"

// TOC is the first byte of every Opus packet (RFC 6716 section 3.1).
//
//	 0 1 2 3 4 5 6 7
//	+-+-+-+-+-+-+-+-+
//	| config  |s| c |
//	+-+-+-+-+-+-+-+-+
type TOC byte

// Configuration returns the upper five bits.
func (t TOC) Configuration() Configuration { return Configuration(t >> 3) }

// IsStereo reports whether the s bit is set.
func (t TOC) IsStereo() bool { return t&0x04 != 0 }

// FrameCode returns the lower two bits.
func (t TOC) FrameCode() FrameCode { return FrameCode(t & 0x03) }

func (t TOC) String() string {
	c := t.Configuration()
	channels := "mono"
	if t.IsStereo() {
		channels = "stereo"
	}
	return fmt.Sprintf("config %d (%s %s, %dus) %s, %s",
		c, c.Mode(), c.Bandwidth(), c.FrameDurationUs(), channels, t.FrameCode())
}

// FrameCode says how many frames a packet carries.
type FrameCode byte

const (
	OneFrame           FrameCode = 0 // a single frame
	TwoEqualFrames     FrameCode = 1 // two frames of equal size
	TwoDifferentFrames FrameCode = 2 // two frames, first size coded
	ArbitraryFrames    FrameCode = 3 // count in the following byte
)

var frameCodeNames = [4]string{"One Frame", "Two Equal Frames", "Two Different Frames", "Arbitrary Frames"}

func (c FrameCode) String() string {
	if int(c) < len(frameCodeNames) {
		return frameCodeNames[c]
	}
	return fmt.Sprintf("FrameCode(%d)", byte(c))
}

// ConfigurationMode is the codec layer a configuration selects.
type ConfigurationMode byte

const (
	Silk ConfigurationMode = iota + 1
	CELT
	Hybrid
)

func (m ConfigurationMode) String() string {
	switch m {
	case Silk:
		return "Silk"
	case CELT:
		return "CELT"
	case Hybrid:
		return "Hybrid"
	}
	return fmt.Sprintf("ConfigurationMode(%d)", byte(m))
}

// Bandwidth is the audio bandwidth a configuration selects.
type Bandwidth byte

const (
	NB  Bandwidth = iota + 1 // narrowband, 4 kHz
	MB                       // medium-band, 6 kHz
	WB                       // wideband, 8 kHz
	SWB                      // super-wideband, 12 kHz
	FB                       // fullband, 20 kHz
)

var bandwidthInfo = [...]struct {
	name string
	rate int
}{
	NB:  {"Narrowband", 8000},
	MB:  {"Mediumband", 12000},
	WB:  {"Wideband", 16000},
	SWB: {"Superwideband", 24000},
	FB:  {"Fullband", 48000},
}

func (b Bandwidth) valid() bool { return b >= NB && b <= FB }

func (b Bandwidth) String() string {
	if !b.valid() {
		return fmt.Sprintf("Bandwidth(%d)", byte(b))
	}
	return bandwidthInfo[b].name
}

// SampleRate is the lowest sample rate that covers the bandwidth. It is 0
// for an unknown bandwidth.
func (b Bandwidth) SampleRate() int {
	if !b.valid() {
		return 0
	}
	return bandwidthInfo[b].rate
}

// Configuration is the 5-bit config number of a TOC byte.
//
//	config   mode    bandwidth  frame sizes
//	0..11    SILK    NB/MB/WB   10, 20, 40, 60 ms
//	12..15   Hybrid  SWB/FB     10, 20 ms
//	16..31   CELT    NB/WB/SWB/FB  2.5, 5, 10, 20 ms
type Configuration byte

// Mode returns 0 for values outside 0..31.
func (c Configuration) Mode() ConfigurationMode {
	switch {
	case c > 31:
		return 0
	case c >= 16:
		return CELT
	case c >= 12:
		return Hybrid
	}
	return Silk
}

// Configurations share a bandwidth in groups of four, except the hybrid
// block which splits into SWB and FB pairs.
var groupBandwidth = [8]Bandwidth{NB, MB, WB, SWB, NB, WB, SWB, FB}

// Bandwidth returns 0 for values outside 0..31.
func (c Configuration) Bandwidth() Bandwidth {
	switch {
	case c > 31:
		return 0
	case c == 14, c == 15:
		return FB
	}
	return groupBandwidth[c/4]
}

// FrameDurationUs returns the length of one frame in microseconds. Only the
// low five bits are considered.
func (c Configuration) FrameDurationUs() int64 {
	c &= 0x1f
	step := c & 0x3
	switch {
	case c >= 16:
		return 2500 << step
	case c >= 12:
		return 10000 << (step & 1)
	case step == 3:
		return 60000
	}
	return 10000 << step
}

// FrameCountByte follows the TOC byte of a code 3 packet
// (RFC 6716 section 3.2.5).
//
//	 0 1 2 3 4 5 6 7
//	+-+-+-+-+-+-+-+-+
//	|v|p|     M     |
//	+-+-+-+-+-+-+-+-+
type FrameCountByte byte

// VBR reports whether each frame carries its own size.
func (b FrameCountByte) VBR() bool { return b&0x80 != 0 }

// Padding reports whether padding length bytes follow.
func (b FrameCountByte) Padding() bool { return b&0x40 != 0 }

// Count is M, the number of frames.
func (b FrameCountByte) Count() int { return int(b & 0x3f) }
