package midi

import "cv-recorder/quantizer"

// MIDI message types
const (
	NoteOn  uint8 = 0x90
	NoteOff uint8 = 0x80
)

// MiddleC is the note sent for the DAC midpoint (0V)
const MiddleC = 60

// Event is a note the bridge sends for a step
type Event struct {
	Type     uint8 // NoteOn, NoteOff
	Channel  uint8 // 0-15
	Note     uint8
	Velocity uint8
}

// StepNote maps a DAC code to the nearest MIDI note, middle C at the midpoint
func StepNote(q quantizer.Quantizer, code uint16) uint8 {
	n := MiddleC + q.Semitones(code)
	switch {
	case n < 0:
		return 0
	case n > 127:
		return 127
	}
	return uint8(n)
}

// Step velocities: recorded steps are accented
const (
	VelocityRecorded uint8 = 110
	VelocityPlayback uint8 = 90
)

// StepEvents returns the messages that move the sounding note from prev
// to next. prev < 0 means nothing is sounding.
func StepEvents(channel uint8, prev int, next uint8, recorded bool) []Event {
	vel := VelocityPlayback
	if recorded {
		vel = VelocityRecorded
	}
	var evs []Event
	if prev >= 0 {
		evs = append(evs, Event{Type: NoteOff, Channel: channel, Note: uint8(prev)})
	}
	return append(evs, Event{Type: NoteOn, Channel: channel, Note: next, Velocity: vel})
}
