// Package input turns raw pin edges into logical front-panel events.
//
// Pulse inputs come from other modules and are clean, so a rising edge is an
// event straight away. Buttons bounce: a rising edge masks the pin and
// schedules a re-check after the debounce window. A long-press pin watches
// both edges and classifies the hold time on release.
package input

import (
	"time"

	"cv-recorder/debug"
	"cv-recorder/hw"
	"cv-recorder/sched"
)

// Defaults for button timing
const (
	DefaultDebounce  = 20 * time.Millisecond
	DefaultLongPress = 600 * time.Millisecond
)

// Kind is how a pin's edges are decoded
type Kind int

const (
	KindPulse Kind = iota
	KindButton
	KindLongPress
)

// Type is the logical event produced
type Type int

const (
	Pulse Type = iota
	Press
	LongPress
)

func (t Type) String() string {
	switch t {
	case Pulse:
		return "pulse"
	case Press:
		return "press"
	case LongPress:
		return "long"
	}
	return "?"
}

// Event is a decoded front-panel event
type Event struct {
	Pin  hw.Pin
	Type Type
	At   uint64
}

// PinReader reads current pin levels for the debounce re-check
type PinReader interface {
	ReadPin(p hw.Pin) bool
}

// Scheduler queues the debounce re-check
type Scheduler interface {
	Schedule(delay time.Duration, ev sched.Event) sched.Handle
}

type pinState struct {
	kind      Kind
	enabled   bool
	pressed   bool
	pressedAt uint64
}

// Decoder holds per-pin decode state. Only the main loop calls it.
type Decoder struct {
	pins      PinReader
	sched     Scheduler
	debounce  time.Duration
	longPress time.Duration
	state     map[hw.Pin]*pinState
	emit      func(Event)
}

// NewDecoder creates a decoder that reports events to emit.
// Zero durations use the defaults.
func NewDecoder(pins PinReader, s Scheduler, debounce, longPress time.Duration, emit func(Event)) *Decoder {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	if longPress <= 0 {
		longPress = DefaultLongPress
	}
	return &Decoder{
		pins:      pins,
		sched:     s,
		debounce:  debounce,
		longPress: longPress,
		state:     make(map[hw.Pin]*pinState),
		emit:      emit,
	}
}

// Register sets how pin is decoded and enables it
func (d *Decoder) Register(pin hw.Pin, kind Kind) {
	d.state[pin] = &pinState{kind: kind, enabled: true}
}

// SetEnabled turns edge notification for pin on or off
func (d *Decoder) SetEnabled(pin hw.Pin, on bool) {
	if ps, ok := d.state[pin]; ok {
		ps.enabled = on
		if !on {
			ps.pressed = false
		}
	}
}

// Enabled reports whether edges on pin are currently observed
func (d *Decoder) Enabled(pin hw.Pin) bool {
	ps, ok := d.state[pin]
	return ok && ps.enabled
}

// PressTime returns when the current hold on a long-press pin began
func (d *Decoder) PressTime(pin hw.Pin) uint64 {
	if ps, ok := d.state[pin]; ok && ps.pressed {
		return ps.pressedAt
	}
	return 0
}

// HandleEdge decodes one raw edge
func (d *Decoder) HandleEdge(e hw.Edge) {
	ps, ok := d.state[e.Pin]
	if !ok || !ps.enabled {
		return
	}

	switch ps.kind {
	case KindPulse:
		if e.Rising {
			d.fire(Event{Pin: e.Pin, Type: Pulse, At: e.At})
		}

	case KindButton:
		if e.Rising {
			// mask until the re-check decides
			ps.enabled = false
			d.sched.Schedule(d.debounce, sched.Event{Kind: sched.DebounceCheck, Pin: e.Pin})
		}

	case KindLongPress:
		if e.Rising {
			if !ps.pressed {
				ps.pressed = true
				ps.pressedAt = e.At
			}
			return
		}
		if !ps.pressed {
			return
		}
		ps.pressed = false
		held := time.Duration(e.At-ps.pressedAt) * time.Microsecond
		switch {
		case held > d.longPress:
			d.fire(Event{Pin: e.Pin, Type: LongPress, At: e.At})
		case held >= d.debounce:
			d.fire(Event{Pin: e.Pin, Type: Press, At: e.At})
		default:
			debug.Log("input", "%s bounce ignored (%v)", e.Pin, held)
		}
	}
}

// HandleDebounce runs the re-check scheduled by a button's rising edge
func (d *Decoder) HandleDebounce(pin hw.Pin, now uint64) {
	ps, ok := d.state[pin]
	if !ok {
		return
	}
	if d.pins.ReadPin(pin) {
		d.fire(Event{Pin: pin, Type: Press, At: now})
	} else {
		debug.Log("input", "%s bounce ignored", pin)
	}
	ps.enabled = true
}

func (d *Decoder) fire(e Event) {
	debug.Log("input", "%s %s", e.Pin, e.Type)
	if d.emit != nil {
		d.emit(e)
	}
}
