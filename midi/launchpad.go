package midi

import (
	"fmt"

	gomidi "gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"

	"cv-recorder/debug"
)

// LaunchpadController drives a Novation Launchpad X as a remote front panel
type LaunchpadController struct {
	id       string
	outPort  drivers.Out
	inPort   drivers.In
	send     func(msg gomidi.Message) error
	stopFunc func()

	padChan  chan PadEvent
	noteChan chan NoteEvent
}

// Programmer-mode setup: programmer layout, full brightness, external LED feedback
var launchpadSetup = [][]byte{
	{0x00, 0x20, 0x29, 0x02, 0x0C, 0x00, 0x7F},
	{0x00, 0x20, 0x29, 0x02, 0x0C, 0x08, 0x7F},
	{0x00, 0x20, 0x29, 0x02, 0x0C, 0x0A, 0x01, 0x01},
}

// NewLaunchpadController opens the ports and switches to programmer mode
func NewLaunchpadController(id string, inPort drivers.In, outPort drivers.Out) (*LaunchpadController, error) {
	lp := &LaunchpadController{
		id:       id,
		inPort:   inPort,
		outPort:  outPort,
		padChan:  make(chan PadEvent, 32),
		noteChan: make(chan NoteEvent),
	}

	if outPort != nil {
		send, err := gomidi.SendTo(outPort)
		if err != nil {
			return nil, fmt.Errorf("open output %s: %w", id, err)
		}
		lp.send = send
		for _, sx := range launchpadSetup {
			if err := lp.send(gomidi.SysEx(sx)); err != nil {
				return nil, fmt.Errorf("programmer mode %s: %w", id, err)
			}
		}
	}

	if inPort != nil {
		stop, err := gomidi.ListenTo(inPort, lp.receive)
		if err != nil {
			return nil, fmt.Errorf("open input %s: %w", id, err)
		}
		lp.stopFunc = stop
	}
	return lp, nil
}

// receive turns grid notes and top-row CCs into pad presses
func (lp *LaunchpadController) receive(msg gomidi.Message, timestampms int32) {
	var channel, key, value uint8
	row, col := -1, -1
	switch {
	case msg.GetNoteOn(&channel, &key, &value) && value > 0:
		row, col = noteToRowCol(key)
	case msg.GetControlChange(&channel, &key, &value) && value > 0:
		row, col = ccToRowCol(key)
	}
	if row < 0 {
		return
	}
	select {
	case lp.padChan <- PadEvent{Row: row, Col: col, Velocity: value}:
	default:
		debug.Log("midi", "launchpad pad %d,%d dropped", row, col)
	}
}

func (lp *LaunchpadController) ID() string {
	return lp.id
}

func (lp *LaunchpadController) Type() ControllerType {
	return ControllerLaunchpad
}

func (lp *LaunchpadController) PadEvents() <-chan PadEvent {
	return lp.padChan
}

func (lp *LaunchpadController) NoteEvents() <-chan NoteEvent {
	return lp.noteChan // never sends
}

// SetLEDBatch sends one NoteOn per update
func (lp *LaunchpadController) SetLEDBatch(updates []LEDUpdate) error {
	if lp.send == nil {
		return nil
	}
	for _, u := range updates {
		if err := lp.send(gomidi.NoteOn(u.Channel, rowColToNote(u.Row, u.Col), nearestPaletteColor(u.Color))); err != nil {
			return fmt.Errorf("launchpad led %d,%d: %w", u.Row, u.Col, err)
		}
	}
	debug.LogEvery(50, "midi", "launchpad batch of %d", len(updates))
	return nil
}

func (lp *LaunchpadController) Close() error {
	if lp.send != nil {
		var off []LEDUpdate
		for row := 0; row < 9; row++ {
			for col := 0; col < 9; col++ {
				if row == 8 && col == 8 {
					continue // no LED at 8,8
				}
				off = append(off, LEDUpdate{Row: row, Col: col})
			}
		}
		lp.SetLEDBatch(off)
	}
	if lp.stopFunc != nil {
		lp.stopFunc()
	}
	close(lp.padChan)
	close(lp.noteChan)
	return nil
}

// Approximate Launchpad X palette: velocity, R, G, B
var launchpadPalette = [][4]uint8{
	{0, 0, 0, 0},
	{5, 255, 0, 0},
	{6, 255, 80, 80},
	{7, 180, 60, 60},
	{9, 255, 100, 0},
	{13, 255, 200, 0},
	{19, 0, 100, 0},
	{21, 0, 255, 0},
	{37, 0, 200, 200},
	{43, 40, 60, 120},
	{45, 0, 100, 255},
	{49, 150, 0, 200},
	{53, 255, 80, 180},
	{71, 30, 30, 30},
	{84, 255, 150, 50},
	{119, 255, 255, 255},
}

// nearestPaletteColor returns the palette velocity closest to rgb
func nearestPaletteColor(rgb [3]uint8) uint8 {
	best, bestDist := uint8(0), -1
	for _, p := range launchpadPalette {
		dist := 0
		for i := 0; i < 3; i++ {
			d := int(rgb[i]) - int(p[i+1])
			dist += d * d
		}
		if bestDist < 0 || dist < bestDist {
			best, bestDist = p[0], dist
		}
	}
	return best
}

// Launchpad X programmer layout:
// grid row 0 (bottom) = notes 11-18, row 7 = notes 81-88, right column = x9,
// top row (row 8) = CC 91-98.

func rowColToNote(row, col int) uint8 {
	if row == 8 {
		return uint8(91 + col)
	}
	return uint8((row+1)*10 + col + 1)
}

func noteToRowCol(note uint8) (row, col int) {
	if note >= 91 && note <= 98 {
		return 8, int(note - 91)
	}
	row = int(note/10) - 1
	col = int(note%10) - 1
	if row < 0 || row > 7 || col < 0 || col > 8 {
		return -1, -1
	}
	return row, col
}

func ccToRowCol(cc uint8) (row, col int) {
	if cc >= 91 && cc <= 98 {
		return 8, int(cc - 91)
	}
	return -1, -1
}
