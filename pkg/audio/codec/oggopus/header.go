package oggopus

import (
	"errors"
	"fmt"
	"slices"

	"github.com/haivivi/oggopus/pkg/audio/codec/opus"
	"github.com/haivivi/oggopus/pkg/audio/codec/vorbiscomment"
)

var (
	// ErrOutOfOrderHeader is returned when a comment header or an audio
	// packet arrives before the identification header.
	ErrOutOfOrderHeader = errors.New("oggopus: identification header must come first")

	// ErrDuplicateIDHeader is returned for a second identification header.
	ErrDuplicateIDHeader = errors.New("oggopus: duplicate identification header")

	// ErrBadHeaderContent is returned when a header signature matches but
	// its body cannot be decoded.
	ErrBadHeaderContent = errors.New("oggopus: bad header content")
)

var (
	idSignature      = []byte(opus.IDHeaderSignature)
	commentSignature = []byte(opus.CommentHeaderSignature)
)

type phase uint8

const (
	awaitingID phase = iota
	awaitingCommentOrAudio
)

func (p phase) String() string {
	switch p {
	case awaitingID:
		return "awaiting-id"
	case awaitingCommentOrAudio:
		return "awaiting-comment-or-audio"
	}
	return fmt.Sprintf("phase(%d)", uint8(p))
}

// State accumulates the header phase of one stream. The zero value is ready
// to use. A State must not be shared between streams.
type State struct {
	phase  phase
	config *CodecConfig
}

// Config returns the configuration built so far, or nil before the
// identification header.
func (s *State) Config() *CodecConfig {
	return s.config
}

// Reset returns the state to its initial phase, dropping the config.
func (s *State) Reset() {
	*s = State{}
}

// ReadHeader consumes one packet of the header phase.
//
// It returns true when the packet was a header. It returns false when the
// packet is not a header; that packet is the first audio packet and the
// caller must hand it on rather than drop it. The packet is not retained.
func ReadHeader(pkt *Packet, st *State) (bool, error) {
	switch {
	case pkt.HasPrefix(idSignature):
		if st.phase != awaitingID {
			return false, ErrDuplicateIDHeader
		}
		return true, readIDHeader(pkt, st)

	case pkt.HasPrefix(commentSignature):
		if st.phase != awaitingCommentOrAudio {
			return false, fmt.Errorf("%w: got comment header", ErrOutOfOrderHeader)
		}
		return true, readCommentHeader(pkt, st)

	default:
		if st.phase != awaitingCommentOrAudio {
			return false, fmt.Errorf("%w: got non-header packet", ErrOutOfOrderHeader)
		}
		return false, nil
	}
}

func readIDHeader(pkt *Packet, st *State) error {
	body := slices.Clone(pkt.Bytes())
	h, err := opus.ParseIDHeader(body)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrBadHeaderContent, err)
	}
	st.config = &CodecConfig{
		MimeType:           MimeType,
		Channels:           int(h.Channels),
		SampleRate:         opus.SampleRate,
		InitializationData: h.InitializationData(body),
		Header:             *h,
	}
	st.phase = awaitingCommentOrAudio
	return nil
}

func readCommentHeader(pkt *Packet, st *State) error {
	if err := pkt.Skip(len(commentSignature)); err != nil {
		return fmt.Errorf("%w: %w", ErrBadHeaderContent, err)
	}
	block, err := vorbiscomment.Read(pkt.Remaining(), vorbiscomment.Options{})
	if err != nil {
		return fmt.Errorf("%w: %w", ErrBadHeaderContent, err)
	}

	comments := vorbiscomment.ParseComments(block.Comments)
	if len(comments) == 0 {
		return nil
	}
	entries := make(Metadata, 0, len(comments)+len(st.config.Metadata))
	for _, c := range comments {
		entries = append(entries, MetadataEntry{Key: c.Key, Value: c.Value})
	}
	// Entries from this header go before any already present.
	st.config.Metadata = append(entries, st.config.Metadata...)
	return nil
}
