package opus

import (
	"strings"
	"testing"
	"time"
)

func TestConfigurationLayout(t *testing.T) {
	// RFC 6716 table 2, one row per config number.
	rows := [32]struct {
		mode ConfigurationMode
		bw   Bandwidth
		us   int64
	}{
		{Silk, NB, 10000}, {Silk, NB, 20000}, {Silk, NB, 40000}, {Silk, NB, 60000},
		{Silk, MB, 10000}, {Silk, MB, 20000}, {Silk, MB, 40000}, {Silk, MB, 60000},
		{Silk, WB, 10000}, {Silk, WB, 20000}, {Silk, WB, 40000}, {Silk, WB, 60000},
		{Hybrid, SWB, 10000}, {Hybrid, SWB, 20000},
		{Hybrid, FB, 10000}, {Hybrid, FB, 20000},
		{CELT, NB, 2500}, {CELT, NB, 5000}, {CELT, NB, 10000}, {CELT, NB, 20000},
		{CELT, WB, 2500}, {CELT, WB, 5000}, {CELT, WB, 10000}, {CELT, WB, 20000},
		{CELT, SWB, 2500}, {CELT, SWB, 5000}, {CELT, SWB, 10000}, {CELT, SWB, 20000},
		{CELT, FB, 2500}, {CELT, FB, 5000}, {CELT, FB, 10000}, {CELT, FB, 20000},
	}
	for i, want := range rows {
		toc := TOC(i<<3 | 0x07)
		c := toc.Configuration()
		if int(c) != i {
			t.Fatalf("TOC(%#x).Configuration() = %d, want %d", byte(toc), c, i)
		}
		if c.Mode() != want.mode || c.Bandwidth() != want.bw || c.FrameDurationUs() != want.us {
			t.Errorf("config %d = %v/%v/%dus, want %v/%v/%dus",
				i, c.Mode(), c.Bandwidth(), c.FrameDurationUs(), want.mode, want.bw, want.us)
		}
	}
}

func TestConfigurationOutOfRange(t *testing.T) {
	c := Configuration(40)
	if c.Mode() != 0 || c.Bandwidth() != 0 {
		t.Errorf("config 40 = %v/%v, want zero values", c.Mode(), c.Bandwidth())
	}
	// Only the low five bits select the duration.
	if got := c.FrameDurationUs(); got != Configuration(8).FrameDurationUs() {
		t.Errorf("config 40 duration = %d", got)
	}
}

func TestTOCBits(t *testing.T) {
	tests := []struct {
		toc    TOC
		stereo bool
		code   FrameCode
	}{
		{0xF8, false, OneFrame},
		{0xFD, true, TwoEqualFrames},
		{0x02, false, TwoDifferentFrames},
		{0x07, true, ArbitraryFrames},
	}
	for _, tt := range tests {
		if got := tt.toc.IsStereo(); got != tt.stereo {
			t.Errorf("TOC(%#x).IsStereo() = %v", byte(tt.toc), got)
		}
		if got := tt.toc.FrameCode(); got != tt.code {
			t.Errorf("TOC(%#x).FrameCode() = %v, want %v", byte(tt.toc), got, tt.code)
		}
	}
}

func TestTOCString(t *testing.T) {
	s := TOC(0xFC).String()
	for _, part := range []string{"config 31", "CELT", "Fullband", "20000us", "stereo", "One Frame"} {
		if !strings.Contains(s, part) {
			t.Errorf("String() = %q, missing %q", s, part)
		}
	}
	if got := FrameCode(7).String(); got != "FrameCode(7)" {
		t.Errorf("FrameCode(7).String() = %q", got)
	}
}

func TestBandwidthSampleRate(t *testing.T) {
	want := map[Bandwidth]int{NB: 8000, MB: 12000, WB: 16000, SWB: 24000, FB: 48000, 0: 0, 9: 0}
	for bw, rate := range want {
		if got := bw.SampleRate(); got != rate {
			t.Errorf("%v.SampleRate() = %d, want %d", bw, got, rate)
		}
	}
	if got := Bandwidth(9).String(); got != "Bandwidth(9)" {
		t.Errorf("Bandwidth(9).String() = %q", got)
	}
}

func TestFrameCountByte(t *testing.T) {
	tests := []struct {
		b       FrameCountByte
		vbr     bool
		padding bool
		count   int
	}{
		{0x8A, true, false, 10},
		{0x45, false, true, 5},
		{0xFF, true, true, 63},
		{0x00, false, false, 0},
	}
	for _, tt := range tests {
		if tt.b.VBR() != tt.vbr || tt.b.Padding() != tt.padding || tt.b.Count() != tt.count {
			t.Errorf("%#x = vbr %v padding %v count %d", byte(tt.b), tt.b.VBR(), tt.b.Padding(), tt.b.Count())
		}
	}
}

func TestFrame(t *testing.T) {
	tests := []struct {
		name    string
		frame   Frame
		dur     time.Duration
		samples int
	}{
		{"silk nb 20ms", Frame{1 << 3, 0x00}, 20 * time.Millisecond, 960},
		{"celt 2.5ms", Frame{16 << 3}, 2500 * time.Microsecond, 120},
		{"silk 60ms x2", Frame{3<<3 | 1, 0x00}, 120 * time.Millisecond, 5760},
		{"code 3 missing count", Frame{0x03}, 0, 0},
		{"empty", nil, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.frame.Duration(); got != tt.dur {
				t.Errorf("Duration() = %v, want %v", got, tt.dur)
			}
			if got := tt.frame.Samples(); got != tt.samples {
				t.Errorf("Samples() = %d, want %d", got, tt.samples)
			}
		})
	}
	if c := (Frame{0xFC}).Configuration(); c != 31 {
		t.Errorf("Configuration() = %d, want 31", c)
	}
}
