package oggopus

import (
	"strings"

	"github.com/haivivi/oggopus/pkg/audio/codec/opus"
)

// MimeType is the sample MIME type of every config built by ReadHeader.
const MimeType = "audio/opus"

// CodecConfig describes an Opus stream to a downstream decoder.
//
// It is created once from the identification header. Comment headers
// only ever update Metadata.
type CodecConfig struct {
	MimeType   string `json:"mime_type" yaml:"mime_type"`
	Channels   int    `json:"channels" yaml:"channels"`
	SampleRate int    `json:"sample_rate" yaml:"sample_rate"`

	// InitializationData is the OpusHead packet, then the pre-skip and the
	// seek pre-roll as little-endian int64 nanosecond counts.
	InitializationData [][]byte `json:"-" yaml:"-"`

	// Metadata is nil when no comment header contributed an entry.
	Metadata Metadata `json:"metadata,omitempty" yaml:"metadata,omitempty"`

	Header opus.IDHeader `json:"header" yaml:"header"`
}

// PreSkipUs returns the decoder pre-skip in microseconds.
func (c *CodecConfig) PreSkipUs() int64 {
	return OpusClock.Micros(int64(c.Header.PreSkip))
}

// MetadataEntry is one KEY=value comment.
type MetadataEntry struct {
	Key   string `json:"key" yaml:"key" msgpack:"k"`
	Value string `json:"value" yaml:"value" msgpack:"v"`
}

// Metadata is an ordered list of comment entries.
type Metadata []MetadataEntry

// Get returns the first value for key. Keys compare case-insensitively,
// as Vorbis comment field names do.
func (m Metadata) Get(key string) (string, bool) {
	for _, e := range m {
		if strings.EqualFold(e.Key, key) {
			return e.Value, true
		}
	}
	return "", false
}

// Strings returns the entries in KEY=value form.
func (m Metadata) Strings() []string {
	if m == nil {
		return nil
	}
	out := make([]string, len(m))
	for i, e := range m {
		out[i] = e.Key + "=" + e.Value
	}
	return out
}
