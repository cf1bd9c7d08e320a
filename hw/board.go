// Package hw defines the hardware capabilities the control core depends on.
// Backends live in hw/sim (tests, front-panel simulator) and hw/rpi.
package hw

import (
	"errors"
	"fmt"
)

// Channel identifies an analog input
type Channel int

const (
	ChannelCV    Channel = iota // sampled voltage (or the pot bank through the mux)
	ChannelTempo                // tempo potentiometer
)

func (c Channel) String() string {
	switch c {
	case ChannelCV:
		return "cv"
	case ChannelTempo:
		return "tempo"
	}
	return fmt.Sprintf("adc%d", int(c))
}

// Pin identifies a digital input or output
type Pin int

const (
	// inputs
	PinTriggerButton Pin = iota
	PinModeButton
	PinTriggerPulse
	PinModePulse
	PinExtClock
	PinPotMode
	PinQuantizeA // chromatic
	PinQuantizeB // scale

	// outputs
	PinMuxAddr0
	PinMuxAddr1
	PinMuxAddr2
	PinMuxInhibit0
	PinMuxInhibit1
	PinTriggerOut
	PinStatusLED
	PinRecordLED

	NumPins
)

var pinNames = [NumPins]string{
	"trigbutton", "modebutton", "trigpulse", "modepulse",
	"extclock", "potmode", "quanta", "quantb",
	"muxaddr0", "muxaddr1", "muxaddr2", "muxinh0", "muxinh1",
	"trigout", "statusled", "recled",
}

func (p Pin) String() string {
	if p < 0 || p >= NumPins {
		return fmt.Sprintf("pin%d", int(p))
	}
	return pinNames[p]
}

// IsInput reports whether p is read rather than driven
func (p Pin) IsInput() bool {
	return p >= PinTriggerButton && p <= PinQuantizeB
}

// IsPulse reports whether p is a clock-style input where only the rising
// edge matters
func (p Pin) IsPulse() bool {
	return p == PinTriggerPulse || p == PinModePulse
}

// ParsePin looks a pin up by name
func ParsePin(name string) (Pin, error) {
	for i, n := range pinNames {
		if n == name {
			return Pin(i), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownPin, name)
}

// PinNames returns every pin name in id order
func PinNames() []string {
	return pinNames[:]
}

// ErrUnknownPin is returned for pins a backend does not wire
var ErrUnknownPin = errors.New("hw: unknown pin")

// Edge is a level transition reported by an edge notification
type Edge struct {
	Pin    Pin
	Rising bool
	At     uint64 // microseconds, captured when the edge was seen
}

// Board is the capability set of the sequencer hardware.
// Watch handlers may run on any goroutine and must only hand the edge off.
type Board interface {
	ReadAnalog(ch Channel) (uint16, error)
	WriteDAC(code uint16) error
	ReadPin(p Pin) bool
	WritePin(p Pin, high bool)
	Watch(p Pin, fn func(Edge)) error
	NowMicros() uint64
}
