// Package seekindex persists Ogg Opus seek tables so that a stream can be
// entered at a time offset without scanning it from the start.
//
// Records are msgpack encoded and stored under two keys:
//
//	idx:rec:{id}      → msgpack Record
//	idx:src:{source}  → record id
//
// A source has at most one record; putting a new record for a source
// replaces the old one.
//
// The package includes a BadgerDB-backed implementation for production use and
// an in-memory implementation for testing.
package seekindex

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"time"

	"github.com/google/uuid"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/haivivi/oggopus/pkg/audio/codec/oggopus"
)

// ErrNotFound is returned when no record matches.
var ErrNotFound = errors.New("seekindex: not found")

const (
	recPrefix = "idx:rec:"
	srcPrefix = "idx:src:"
)

func recKey(id string) []byte     { return []byte(recPrefix + id) }
func srcKey(source string) []byte { return []byte(srcPrefix + source) }

// Summary is the part of a CodecConfig worth keeping next to a seek table.
type Summary struct {
	Serial          uint32           `json:"serial" yaml:"serial" msgpack:"serial"`
	Channels        int              `json:"channels" yaml:"channels" msgpack:"channels"`
	PreSkip         uint16           `json:"pre_skip" yaml:"pre_skip" msgpack:"pre_skip"`
	InputSampleRate uint32           `json:"input_sample_rate" yaml:"input_sample_rate" msgpack:"input_rate"`
	Packets         int64            `json:"packets" yaml:"packets" msgpack:"packets"`
	Metadata        oggopus.Metadata `json:"metadata,omitempty" yaml:"metadata,omitempty" msgpack:"metadata,omitempty"`
}

// Record is the seek index of one stream.
type Record struct {
	ID        string            `json:"id" yaml:"id" msgpack:"id"`
	Source    string            `json:"source" yaml:"source" msgpack:"source"`
	CreatedAt time.Time         `json:"created_at" yaml:"created_at" msgpack:"created_at"`
	Summary   Summary           `json:"summary" yaml:"summary" msgpack:"summary"`
	Table     oggopus.SeekTable `json:"table" yaml:"table" msgpack:"table"`
}

// Store is the interface for a seek index store.
type Store interface {
	// Put stores a record, replacing any record with the same ID or Source.
	// An empty ID is filled in with a new UUID.
	Put(ctx context.Context, rec *Record) error

	// Get retrieves a record by ID. Returns ErrNotFound if not present.
	Get(ctx context.Context, id string) (*Record, error)

	// Lookup retrieves the record of a source. Returns ErrNotFound if not present.
	Lookup(ctx context.Context, source string) (*Record, error)

	// Delete removes a record by ID. Returns ErrNotFound if not present.
	Delete(ctx context.Context, id string) error

	// List iterates over all records in ID order.
	List(ctx context.Context) iter.Seq2[*Record, error]

	// Close releases any resources held by the store.
	Close() error
}

// Build reads a whole stream from r and returns its record. The record is
// not stored.
func Build(ctx context.Context, source string, r io.Reader, opts ...oggopus.Option) (*Record, error) {
	x := oggopus.NewExtractor(r, opts...)
	cfg, err := x.ReadHeaders(ctx)
	if err != nil {
		return nil, fmt.Errorf("seekindex: %s: %w", source, err)
	}
	var n int64
	for _, err := range x.Packets(ctx) {
		if err != nil {
			return nil, fmt.Errorf("seekindex: %s: %w", source, err)
		}
		n++
	}
	return &Record{
		ID:        uuid.New().String(),
		Source:    source,
		CreatedAt: time.Now(),
		Summary: Summary{
			Serial:          x.SerialNo(),
			Channels:        cfg.Channels,
			PreSkip:         cfg.Header.PreSkip,
			InputSampleRate: cfg.Header.InputSampleRate,
			Packets:         n,
			Metadata:        cfg.Metadata,
		},
		Table: x.SeekTable(),
	}, nil
}

func encodeRecord(rec *Record) ([]byte, error) {
	data, err := msgpack.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("seekindex: encode record %s: %w", rec.ID, err)
	}
	return data, nil
}

func decodeRecord(data []byte) (*Record, error) {
	var rec Record
	if err := msgpack.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("seekindex: decode record: %w", err)
	}
	return &rec, nil
}

func prepare(rec *Record) error {
	if rec.Source == "" {
		return errors.New("seekindex: record source is required")
	}
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	return nil
}
