package oggopus

import (
	"slices"
	"time"
)

// SeekPoint is a position at which reading can resume: the byte offset of
// a page on which an audio packet begins, and the stream position and
// audio packet number of that packet.
type SeekPoint struct {
	TimeUs   int64 `json:"time_us" yaml:"time_us" msgpack:"t"`
	Granule  int64 `json:"granule" yaml:"granule" msgpack:"g"`
	Offset   int64 `json:"offset" yaml:"offset" msgpack:"o"`
	PacketNo int64 `json:"packet_no" yaml:"packet_no" msgpack:"n"`
}

// SeekTable lists seek points in stream order. Offsets are strictly
// increasing and granules never decrease.
type SeekTable struct {
	SampleRate int64       `json:"sample_rate" yaml:"sample_rate" msgpack:"rate"`
	Points     []SeekPoint `json:"points" yaml:"points" msgpack:"points"`

	// DurationUs and Granule describe the end of the last packet read.
	DurationUs int64 `json:"duration_us" yaml:"duration_us" msgpack:"dur"`
	Granule    int64 `json:"granule" yaml:"granule" msgpack:"gran"`
}

// Duration returns the covered duration.
func (t *SeekTable) Duration() time.Duration {
	return time.Duration(t.DurationUs) * time.Microsecond
}

// Lookup returns the last point at or before timeUs. A time before the
// first point resolves to the first point. ok is false for an empty table.
func (t *SeekTable) Lookup(timeUs int64) (p SeekPoint, ok bool) {
	if len(t.Points) == 0 {
		return SeekPoint{}, false
	}
	i, found := slices.BinarySearchFunc(t.Points, timeUs, func(p SeekPoint, us int64) int {
		switch {
		case p.TimeUs < us:
			return -1
		case p.TimeUs > us:
			return 1
		}
		return 0
	})
	if found {
		// Several points can share a time; take the last.
		for i+1 < len(t.Points) && t.Points[i+1].TimeUs == timeUs {
			i++
		}
		return t.Points[i], true
	}
	if i == 0 {
		return t.Points[0], true
	}
	return t.Points[i-1], true
}

// add appends p unless it does not move past the last point.
func (t *SeekTable) add(p SeekPoint) bool {
	if n := len(t.Points); n > 0 {
		last := t.Points[n-1]
		if p.Offset <= last.Offset || p.Granule < last.Granule {
			return false
		}
	}
	t.Points = append(t.Points, p)
	return true
}

func (t *SeekTable) clone() SeekTable {
	c := *t
	c.Points = slices.Clone(t.Points)
	return c
}
