package opus

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"
)

func stereoHead() []byte {
	h := &IDHeader{
		Version:         1,
		Channels:        2,
		PreSkip:         312,
		InputSampleRate: 44100,
		OutputGain:      -256,
	}
	return h.Encode()
}

func TestParseIDHeader(t *testing.T) {
	data := stereoHead()
	if len(data) != 19 {
		t.Fatalf("encoded size = %d, want 19", len(data))
	}

	h, err := ParseIDHeader(data)
	if err != nil {
		t.Fatalf("ParseIDHeader: %v", err)
	}
	if h.Channels != 2 || h.PreSkip != 312 || h.InputSampleRate != 44100 || h.OutputGain != -256 {
		t.Errorf("unexpected header: %+v", h)
	}
	if h.StreamCount != 1 || h.CoupledCount != 1 {
		t.Errorf("streams = %d/%d, want 1/1", h.StreamCount, h.CoupledCount)
	}
}

func TestParseIDHeaderSurround(t *testing.T) {
	in := &IDHeader{
		Version:        1,
		Channels:       6,
		PreSkip:        3840,
		MappingFamily:  MappingFamilyVorbis,
		StreamCount:    4,
		CoupledCount:   2,
		ChannelMapping: []byte{0, 4, 1, 2, 3, 5},
	}
	h, err := ParseIDHeader(in.Encode())
	if err != nil {
		t.Fatalf("ParseIDHeader: %v", err)
	}
	if !bytes.Equal(h.ChannelMapping, in.ChannelMapping) {
		t.Errorf("ChannelMapping = %v, want %v", h.ChannelMapping, in.ChannelMapping)
	}
	if h.StreamCount != 4 || h.CoupledCount != 2 {
		t.Errorf("streams = %d/%d, want 4/2", h.StreamCount, h.CoupledCount)
	}
}

func TestParseIDHeaderInvalid(t *testing.T) {
	valid := stereoHead()

	mutate := func(f func(b []byte) []byte) []byte {
		b := append([]byte(nil), valid...)
		return f(b)
	}

	tests := []struct {
		name string
		data []byte
	}{
		{"too short", valid[:18]},
		{"wrong signature", mutate(func(b []byte) []byte { b[4] = 'X'; return b })},
		{"major version", mutate(func(b []byte) []byte { b[8] = 0x10; return b })},
		{"zero channels", mutate(func(b []byte) []byte { b[9] = 0; return b })},
		{"family 0 surround", mutate(func(b []byte) []byte { b[9] = 3; return b })},
		{"family 1 no table", mutate(func(b []byte) []byte { b[18] = 1; return b })},
		{"family 1 short mapping", mutate(func(b []byte) []byte { b[18] = 1; return append(b, 1, 1, 0) })},
		{"family 1 coupled > streams", mutate(func(b []byte) []byte { b[18] = 1; return append(b, 1, 2, 0, 1) })},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseIDHeader(tt.data)
			if !errors.Is(err, ErrInvalidIDHeader) {
				t.Fatalf("err = %v, want ErrInvalidIDHeader", err)
			}
		})
	}
}

func TestInitializationData(t *testing.T) {
	data := stereoHead()
	blob, err := InitializationData(data)
	if err != nil {
		t.Fatalf("InitializationData: %v", err)
	}
	if len(blob) != 3 {
		t.Fatalf("len(blob) = %d, want 3", len(blob))
	}
	if !bytes.Equal(blob[0], data) {
		t.Error("blob[0] should be the header bytes")
	}
	data[9] = 7
	if blob[0][9] != 2 {
		t.Error("blob[0] must not alias the input")
	}

	// 312 samples at 48kHz = 6.5ms
	if got := int64(binary.LittleEndian.Uint64(blob[1])); got != 6_500_000 {
		t.Errorf("pre-skip = %dns, want 6500000", got)
	}
	// 3840 samples at 48kHz = 80ms
	if got := int64(binary.LittleEndian.Uint64(blob[2])); got != 80_000_000 {
		t.Errorf("seek pre-roll = %dns, want 80000000", got)
	}
}

func TestIDHeaderInitializationData(t *testing.T) {
	data := stereoHead()
	h, err := ParseIDHeader(data)
	if err != nil {
		t.Fatal(err)
	}
	want, err := InitializationData(data)
	if err != nil {
		t.Fatal(err)
	}
	got := h.InitializationData(data)
	for i := range want {
		if !bytes.Equal(got[i], want[i]) {
			t.Errorf("blob[%d] = %x, want %x", i, got[i], want[i])
		}
	}

	// The parsed header is the source of the timing fields; raw is only
	// copied.
	h.PreSkip = 960
	got = h.InitializationData(data)
	if ns := int64(binary.LittleEndian.Uint64(got[1])); ns != 20_000_000 {
		t.Errorf("pre-skip = %dns, want 20000000", ns)
	}
	data[0] = 'X'
	if got[0][0] != 'O' {
		t.Error("blob[0] must not alias raw")
	}
}

func TestChannelCount(t *testing.T) {
	n, err := ChannelCount(stereoHead())
	if err != nil {
		t.Fatalf("ChannelCount: %v", err)
	}
	if n != 2 {
		t.Errorf("ChannelCount = %d, want 2", n)
	}
	if _, err := ChannelCount([]byte("OpusHead")); !errors.Is(err, ErrInvalidIDHeader) {
		t.Errorf("short header err = %v, want ErrInvalidIDHeader", err)
	}
}
