package midi

import (
	"fmt"

	gomidi "gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"

	"cv-recorder/debug"
)

// KeyboardController is a MIDI input whose notes drive the clock and mode
// pulses
type KeyboardController struct {
	id       string
	inPort   drivers.In
	channel  int // 0-15, or -1 for any
	stopFunc func()

	padChan  chan PadEvent
	noteChan chan NoteEvent
}

// NewKeyboardController opens inPort and forwards note-ons with a non-zero
// velocity on channel (0-15, -1 for omni).
func NewKeyboardController(id string, inPort drivers.In, channel int) (*KeyboardController, error) {
	kb := &KeyboardController{
		id:       id,
		inPort:   inPort,
		channel:  channel,
		padChan:  make(chan PadEvent),
		noteChan: make(chan NoteEvent, 32),
	}

	if inPort != nil {
		stop, err := gomidi.ListenTo(inPort, kb.receive)
		if err != nil {
			return nil, fmt.Errorf("open input %s: %w", id, err)
		}
		kb.stopFunc = stop
	}
	return kb, nil
}

func (kb *KeyboardController) receive(msg gomidi.Message, timestampms int32) {
	var channel, note, velocity uint8
	if !msg.GetNoteOn(&channel, &note, &velocity) || velocity == 0 {
		return
	}
	if kb.channel >= 0 && int(channel) != kb.channel {
		return
	}
	select {
	case kb.noteChan <- NoteEvent{Note: note, Velocity: velocity, Channel: channel}:
	default:
		debug.Log("midi", "%s note %d dropped", kb.id, note)
	}
}

func (kb *KeyboardController) ID() string {
	return kb.id
}

func (kb *KeyboardController) Type() ControllerType {
	return ControllerKeyboard
}

func (kb *KeyboardController) PadEvents() <-chan PadEvent {
	return kb.padChan // never sends
}

func (kb *KeyboardController) NoteEvents() <-chan NoteEvent {
	return kb.noteChan
}

// SetLEDBatch is a no-op for keyboards
func (kb *KeyboardController) SetLEDBatch(updates []LEDUpdate) error {
	return nil
}

func (kb *KeyboardController) Close() error {
	if kb.stopFunc != nil {
		kb.stopFunc()
	}
	close(kb.padChan)
	close(kb.noteChan)
	return nil
}
