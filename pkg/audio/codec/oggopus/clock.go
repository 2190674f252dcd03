package oggopus

import (
	"time"

	"github.com/haivivi/oggopus/pkg/audio/codec/opus"
)

// Clock converts between microseconds and granule positions at a fixed rate.
type Clock struct {
	Rate int64
}

// OpusClock is the 48 kHz clock every Ogg Opus stream uses.
var OpusClock = Clock{Rate: opus.SampleRate}

// Granules converts a duration in microseconds to granules, rounding down.
func (c Clock) Granules(us int64) int64 {
	return us * c.Rate / 1_000_000
}

// Micros converts granules to microseconds, rounding down.
func (c Clock) Micros(granule int64) int64 {
	return granule * 1_000_000 / c.Rate
}

// Duration converts granules to a time.Duration.
func (c Clock) Duration(granule int64) time.Duration {
	return time.Duration(c.Micros(granule)) * time.Microsecond
}
