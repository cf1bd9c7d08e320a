package tempo

import (
	"time"

	"cv-recorder/debug"
)

// Tempo limits: 3s per beat (20 bpm) down to 142ms per beat (about 420 bpm)
const (
	DefaultSlow         = 3000 * time.Millisecond
	DefaultFast         = 142 * time.Millisecond
	DefaultHysteresis   = 20 * time.Millisecond
	DefaultReadInterval = 100 * time.Millisecond
	DefaultInitialDelay = 500 * time.Millisecond
	DefaultMax          = 4095
)

// Range maps tempo pot codes to beat half-periods
type Range struct {
	Fast, Slow time.Duration
	Max        uint16
	Invert     bool // true: a higher code gives a faster tempo
}

// DefaultRange returns the stock range with the pot inverted
func DefaultRange() Range {
	return Range{Fast: DefaultFast, Slow: DefaultSlow, Max: DefaultMax, Invert: true}
}

// HalfPeriodMs maps raw linearly onto [Fast, Slow] and halves it,
// since every beat has two phases.
func (r Range) HalfPeriodMs(raw uint16) uint32 {
	if raw > r.Max {
		raw = r.Max
	}
	pos := uint32(raw)
	if !r.Invert {
		pos = uint32(r.Max) - pos
	}
	// pos == 0 is slowest
	fast := uint32(r.Fast / time.Millisecond)
	slow := uint32(r.Slow / time.Millisecond)
	span := slow - fast
	return ((span*(uint32(r.Max)-pos))/uint32(r.Max) + fast) / 2
}

// Reader holds the current half-period and filters pot jitter
type Reader struct {
	rng        Range
	hysteresis uint32
	delayMs    uint32
}

// NewReader creates a reader starting at initial
func NewReader(rng Range, hysteresis, initial time.Duration) *Reader {
	return &Reader{
		rng:        rng,
		hysteresis: uint32(hysteresis / time.Millisecond),
		delayMs:    uint32(initial / time.Millisecond),
	}
}

// Update takes a new pot reading. The half-period only changes when the
// new value is further than the hysteresis band from the current one.
func (r *Reader) Update(raw uint16) bool {
	next := r.rng.HalfPeriodMs(raw)
	if next > r.delayMs+r.hysteresis || next+r.hysteresis < r.delayMs {
		debug.Log("tempo", "delay %dms -> %dms (raw=%d)", r.delayMs, next, raw)
		r.delayMs = next
		return true
	}
	return false
}

// DelayMs returns the current half-period in milliseconds
func (r *Reader) DelayMs() uint32 {
	return r.delayMs
}

// Delay returns the current half-period
func (r *Reader) Delay() time.Duration {
	return time.Duration(r.delayMs) * time.Millisecond
}

// BPM returns the beat rate for the current half-period
func (r *Reader) BPM() float64 {
	return BPMFromHalfPeriod(r.delayMs)
}

// BPMFromHalfPeriod converts a half-period in milliseconds to beats per minute
func BPMFromHalfPeriod(ms uint32) float64 {
	if ms == 0 {
		return 0
	}
	return 60000.0 / float64(2*ms)
}
