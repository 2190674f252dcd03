package opus

import (
	"errors"
	"fmt"
)

// ErrMalformedPacket is returned when an audio packet is too short to carry
// the bytes its TOC byte requires.
var ErrMalformedPacket = errors.New("opus: malformed packet")

// FrameCount returns the number of frames signalled by the packet's TOC
// byte and, for code 3 packets, by the frame count byte that follows it.
func FrameCount(packet []byte) (int, error) {
	if len(packet) == 0 {
		return 0, fmt.Errorf("%w: empty packet", ErrMalformedPacket)
	}
	switch TOC(packet[0]).FrameCode() {
	case OneFrame:
		return 1, nil
	case TwoEqualFrames, TwoDifferentFrames:
		return 2, nil
	default:
		if len(packet) < 2 {
			return 0, fmt.Errorf("%w: missing frame count byte", ErrMalformedPacket)
		}
		return FrameCountByte(packet[1]).Count(), nil
	}
}

// PacketDurationUs returns the playback duration of an audio packet in
// microseconds, computed from its TOC byte alone.
func PacketDurationUs(packet []byte) (int64, error) {
	frames, err := FrameCount(packet)
	if err != nil {
		return 0, err
	}
	return int64(frames) * TOC(packet[0]).Configuration().FrameDurationUs(), nil
}
