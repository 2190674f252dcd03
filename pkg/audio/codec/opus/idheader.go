package opus

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"slices"
)

// Opus identification header constants per RFC 7845.
const (
	// SampleRate is the clock rate of every Ogg Opus stream, regardless of
	// the bandwidth or input sample rate of the encoded audio.
	SampleRate = 48000

	// DefaultSeekPreRollSamples is the 80 ms decoder pre-roll recommended
	// after a seek (RFC 7845 section 4.6).
	DefaultSeekPreRollSamples = 3840

	// IDHeaderSignature opens the identification header packet.
	IDHeaderSignature = "OpusHead"

	// CommentHeaderSignature opens the comment header packet.
	CommentHeaderSignature = "OpusTags"

	idHeaderMinSize = 19
)

// Channel mapping families per RFC 7845 and RFC 8486.
const (
	MappingFamilyRTP        = 0
	MappingFamilyVorbis     = 1
	MappingFamilyAmbisonics = 2
	MappingFamilyProjection = 3
	MappingFamilyDiscrete   = 255
)

// ErrInvalidIDHeader is returned when an OpusHead packet cannot be decoded.
var ErrInvalidIDHeader = errors.New("opus: invalid identification header")

// IDHeader is the decoded identification header (OpusHead).
//
//	 0                   1                   2                   3
//	 0 1 2 3 4 5 6 7 8 9 0 1 2 3 4 5 6 7 8 9 0 1 2 3 4 5 6 7 8 9 0 1
//	+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
//	|      'O'      |      'p'      |      'u'      |      's'      |
//	+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
//	|      'H'      |      'e'      |      'a'      |      'd'      |
//	+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
//	|  Version = 1  | Channel Count |           Pre-skip            |
//	+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
//	|                     Input Sample Rate (Hz)                    |
//	+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
//	|   Output Gain (Q7.8 in dB)    | Mapping Family|               |
//	+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+               :
//	|                                                               |
//	:               Optional Channel Mapping Table...               :
//	|                                                               |
//	+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
//
// https://datatracker.ietf.org/doc/html/rfc7845#section-5.1
type IDHeader struct {
	Version         uint8  `json:"version" yaml:"version"`
	Channels        uint8  `json:"channels" yaml:"channels"`
	PreSkip         uint16 `json:"pre_skip" yaml:"pre_skip"`
	InputSampleRate uint32 `json:"input_sample_rate" yaml:"input_sample_rate"`
	OutputGain      int16  `json:"output_gain" yaml:"output_gain"`
	MappingFamily   uint8  `json:"mapping_family" yaml:"mapping_family"`

	// Present only when MappingFamily != 0.
	StreamCount    uint8  `json:"stream_count,omitempty" yaml:"stream_count,omitempty"`
	CoupledCount   uint8  `json:"coupled_count,omitempty" yaml:"coupled_count,omitempty"`
	ChannelMapping []byte `json:"channel_mapping,omitempty" yaml:"channel_mapping,omitempty"`
	DemixingMatrix []byte `json:"-" yaml:"-"`
}

// ParseIDHeader decodes an OpusHead packet, signature included.
func ParseIDHeader(data []byte) (*IDHeader, error) {
	if len(data) < idHeaderMinSize {
		return nil, fmt.Errorf("%w: %d bytes, need at least %d", ErrInvalidIDHeader, len(data), idHeaderMinSize)
	}
	if !bytes.HasPrefix(data, []byte(IDHeaderSignature)) {
		return nil, fmt.Errorf("%w: missing %s signature", ErrInvalidIDHeader, IDHeaderSignature)
	}
	h := &IDHeader{
		Version:         data[8],
		Channels:        data[9],
		PreSkip:         binary.LittleEndian.Uint16(data[10:12]),
		InputSampleRate: binary.LittleEndian.Uint32(data[12:16]),
		OutputGain:      int16(binary.LittleEndian.Uint16(data[16:18])),
		MappingFamily:   data[18],
	}
	// Only the minor version may change compatibly.
	if h.Version>>4 != 0 {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrInvalidIDHeader, h.Version)
	}
	if h.Channels == 0 {
		return nil, fmt.Errorf("%w: zero channels", ErrInvalidIDHeader)
	}

	if h.MappingFamily == MappingFamilyRTP {
		if h.Channels > 2 {
			return nil, fmt.Errorf("%w: mapping family 0 with %d channels", ErrInvalidIDHeader, h.Channels)
		}
		h.StreamCount = 1
		h.CoupledCount = h.Channels - 1
		return h, nil
	}

	if len(data) < idHeaderMinSize+2 {
		return nil, fmt.Errorf("%w: truncated channel mapping table", ErrInvalidIDHeader)
	}
	h.StreamCount = data[19]
	h.CoupledCount = data[20]
	if h.StreamCount == 0 || h.CoupledCount > h.StreamCount {
		return nil, fmt.Errorf("%w: %d streams, %d coupled", ErrInvalidIDHeader, h.StreamCount, h.CoupledCount)
	}
	table := data[21:]

	if h.MappingFamily == MappingFamilyProjection {
		size := 2 * int(h.Channels) * int(h.StreamCount+h.CoupledCount)
		if len(table) < size {
			return nil, fmt.Errorf("%w: demixing matrix needs %d bytes, have %d", ErrInvalidIDHeader, size, len(table))
		}
		h.DemixingMatrix = slices.Clone(table[:size])
		return h, nil
	}

	if len(table) < int(h.Channels) {
		return nil, fmt.Errorf("%w: channel mapping needs %d bytes, have %d", ErrInvalidIDHeader, h.Channels, len(table))
	}
	h.ChannelMapping = slices.Clone(table[:h.Channels])
	return h, nil
}

// Encode serializes the header, signature included.
func (h *IDHeader) Encode() []byte {
	size := idHeaderMinSize
	if h.MappingFamily != MappingFamilyRTP {
		size += 2 + len(h.ChannelMapping) + len(h.DemixingMatrix)
	}
	data := make([]byte, size)
	copy(data[0:8], IDHeaderSignature)
	data[8] = h.Version
	data[9] = h.Channels
	binary.LittleEndian.PutUint16(data[10:12], h.PreSkip)
	binary.LittleEndian.PutUint32(data[12:16], h.InputSampleRate)
	binary.LittleEndian.PutUint16(data[16:18], uint16(h.OutputGain))
	data[18] = h.MappingFamily
	if h.MappingFamily != MappingFamilyRTP {
		data[19] = h.StreamCount
		data[20] = h.CoupledCount
		n := copy(data[21:], h.ChannelMapping)
		copy(data[21+n:], h.DemixingMatrix)
	}
	return data
}

// ChannelCount returns the channel count carried by an OpusHead packet.
func ChannelCount(header []byte) (int, error) {
	h, err := ParseIDHeader(header)
	if err != nil {
		return 0, err
	}
	return int(h.Channels), nil
}

// InitializationData builds the decoder initialization blob for an OpusHead
// packet: the header bytes themselves, followed by the pre-skip and the
// default seek pre-roll, each as a little-endian int64 nanosecond count.
func InitializationData(header []byte) ([][]byte, error) {
	h, err := ParseIDHeader(header)
	if err != nil {
		return nil, err
	}
	return h.InitializationData(header), nil
}

// InitializationData is the package-level InitializationData for a header
// already parsed from raw.
func (h *IDHeader) InitializationData(raw []byte) [][]byte {
	return [][]byte{
		slices.Clone(raw),
		nanosBlob(SamplesToNanos(int64(h.PreSkip))),
		nanosBlob(SamplesToNanos(DefaultSeekPreRollSamples)),
	}
}

// SamplesToNanos converts a 48 kHz sample count to nanoseconds.
func SamplesToNanos(samples int64) int64 {
	return samples * 1_000_000_000 / SampleRate
}

func nanosBlob(ns int64) []byte {
	return binary.LittleEndian.AppendUint64(make([]byte, 0, 8), uint64(ns))
}
