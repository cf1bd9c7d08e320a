// Package tempo generates the internal beat and reads the tempo pot.
//
// The beat is a two-phase state machine with a single pending deadline:
// the trigger phase raises a step and lights the status LED, the
// anticipate phase turns the LED off. Each phase lasts one half-period.
package tempo

import (
	"time"

	"cv-recorder/debug"
	"cv-recorder/sched"
)

// Phase names the deadline the clock is waiting on
type Phase int

const (
	PhaseIdle       Phase = iota // external clocking, nothing pending
	PhaseTrigger                 // next deadline fires the trigger phase
	PhaseAnticipate              // next deadline fires the anticipate phase
)

func (p Phase) String() string {
	switch p {
	case PhaseTrigger:
		return "trigger"
	case PhaseAnticipate:
		return "anticipate"
	}
	return "idle"
}

// Scheduler is the deadline source the clock chains on
type Scheduler interface {
	Schedule(delay time.Duration, ev sched.Event) sched.Handle
	Cancel(h sched.Handle) bool
}

// Clock is the internal beat. Only the main loop calls it.
type Clock struct {
	sched     Scheduler
	halfBeat  func() time.Duration
	onTrigger func()
	indicator func(on bool)

	external bool
	phase    Phase
	handle   sched.Handle
	beats    uint64
}

// NewClock creates a stopped clock. onTrigger is called from the trigger
// phase; indicator drives the status LED.
func NewClock(s Scheduler, halfBeat func() time.Duration, onTrigger func(), indicator func(on bool)) *Clock {
	return &Clock{
		sched:     s,
		halfBeat:  halfBeat,
		onTrigger: onTrigger,
		indicator: indicator,
	}
}

// Reset cancels any pending phase and, unless externally clocked,
// fires the trigger phase immediately to resynchronize.
func (c *Clock) Reset() {
	if c.handle != 0 {
		c.sched.Cancel(c.handle)
		c.handle = 0
	}
	c.phase = PhaseIdle
	c.indicator(false)
	if !c.external {
		c.schedule(0, PhaseTrigger)
	}
	debug.Log("clock", "reset external=%v", c.external)
}

// SetExternal switches between internal and external clocking
func (c *Clock) SetExternal(on bool) {
	c.external = on
	c.Reset()
}

// External reports whether the internal chain is suppressed
func (c *Clock) External() bool {
	return c.external
}

// Phase returns the pending phase
func (c *Clock) Phase() Phase {
	return c.phase
}

// Handle returns the pending deadline's handle, 0 when idle
func (c *Clock) Handle() sched.Handle {
	return c.handle
}

// Beats returns how many trigger phases have fired
func (c *Clock) Beats() uint64 {
	return c.beats
}

// Fire runs the phase for a due scheduler event. Events that are not the
// clock's current deadline are stale and ignored.
func (c *Clock) Fire(ev sched.Event) {
	if ev.Handle != c.handle {
		return
	}
	c.handle = 0
	c.phase = PhaseIdle

	switch ev.Kind {
	case sched.BeatTrigger:
		c.beats++
		c.onTrigger()
		c.indicator(true)
		if !c.external {
			c.schedule(c.halfBeat(), PhaseAnticipate)
		}
	case sched.BeatAnticipate:
		c.indicator(false)
		c.schedule(c.halfBeat(), PhaseTrigger)
	}
}

func (c *Clock) schedule(delay time.Duration, next Phase) {
	kind := sched.BeatTrigger
	if next == PhaseAnticipate {
		kind = sched.BeatAnticipate
	}
	c.handle = c.sched.Schedule(delay, sched.Event{Kind: kind})
	c.phase = next
}
