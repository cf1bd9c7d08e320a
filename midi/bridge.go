package midi

import (
	"context"
	"fmt"
	"time"

	gomidi "gitlab.com/gomidi/midi/v2"

	"cv-recorder/debug"
	"cv-recorder/hw"
	"cv-recorder/quantizer"
	"cv-recorder/sequencer"
)

// Engine is the part of the sequencer the bridge drives
type Engine interface {
	Snapshot() sequencer.Snapshot
	Quantizer() quantizer.Quantizer
	PostEdge(e hw.Edge)
	RequestStep()
	RequestModeToggle()
	RequestScaleToggle()
	RequestRangeToggle()
}

// Options configures the bridge
type Options struct {
	Out       string // output port name, empty disables the step mirror
	Channel   uint8  // 0-15
	ClockNote uint8  // incoming note that acts as a trigger pulse
	ModeNote  uint8  // incoming note that acts as a mode pulse
	Refresh   time.Duration
}

// Bridge mirrors every step as a note, turns incoming notes into pulse
// edges and runs a Launchpad as a remote front panel.
type Bridge struct {
	eng  Engine
	now  func() uint64
	opts Options

	sendEvent func(Event) error
	sounding  int // note currently on, -1 for none

	steps chan sequencer.StepResult
	pads  chan PadEvent
	notes chan NoteEvent

	panels map[string]Controller
	leds   map[string]map[[2]int]LEDUpdate
}

// NewBridge creates a bridge. now timestamps injected edges.
func NewBridge(eng Engine, now func() uint64, opts Options) *Bridge {
	if opts.Refresh <= 0 {
		opts.Refresh = 50 * time.Millisecond
	}
	return &Bridge{
		eng:      eng,
		now:      now,
		opts:     opts,
		sounding: -1,
		steps:    make(chan sequencer.StepResult, 16),
		pads:     make(chan PadEvent, 32),
		notes:    make(chan NoteEvent, 32),
		panels:   make(map[string]Controller),
		leds:     make(map[string]map[[2]int]LEDUpdate),
	}
}

// OpenOut opens the configured output port
func (b *Bridge) OpenOut() error {
	if b.opts.Out == "" {
		return nil
	}
	out, err := gomidi.FindOutPort(b.opts.Out)
	if err != nil {
		return fmt.Errorf("midi out %q: %w", b.opts.Out, err)
	}
	send, err := gomidi.SendTo(out)
	if err != nil {
		return fmt.Errorf("midi out %q: %w", b.opts.Out, err)
	}
	b.sendEvent = func(ev Event) error { return send(toMessage(ev)) }
	debug.Log("midi", "step mirror on %s", out)
	return nil
}

func toMessage(ev Event) gomidi.Message {
	if ev.Type == NoteOff {
		return gomidi.NoteOff(ev.Channel, ev.Note)
	}
	return gomidi.NoteOn(ev.Channel, ev.Note, ev.Velocity)
}

// OnStep queues a completed step for mirroring. It is registered as an
// engine step listener and never blocks.
func (b *Bridge) OnStep(r sequencer.StepResult) {
	select {
	case b.steps <- r:
	default:
		debug.Log("midi", "step %d not mirrored, queue full", r.Index)
	}
}

// Run services the bridge until ctx is done. dm may be nil.
func (b *Bridge) Run(ctx context.Context, dm *DeviceManager) {
	ticker := time.NewTicker(b.opts.Refresh)
	defer ticker.Stop()

	var devices <-chan DeviceEvent
	if dm != nil {
		devices = dm.Events()
	}

	for {
		select {
		case <-ctx.Done():
			b.silence()
			return
		case r := <-b.steps:
			b.mirror(r)
		case n := <-b.notes:
			b.HandleNote(n)
		case p := <-b.pads:
			b.HandlePad(p)
		case ev, ok := <-devices:
			if !ok {
				devices = nil
				continue
			}
			b.handleDevice(ev)
		case <-ticker.C:
			b.refreshPanels()
		}
	}
}

// mirror sends the note for a step, releasing the previous one
func (b *Bridge) mirror(r sequencer.StepResult) {
	if b.sendEvent == nil {
		return
	}
	note := StepNote(b.eng.Quantizer(), r.Output)
	for _, ev := range StepEvents(b.opts.Channel, b.sounding, note, r.Recorded) {
		if err := b.sendEvent(ev); err != nil {
			debug.Log("midi", "send: %v", err)
			return
		}
	}
	b.sounding = int(note)
}

func (b *Bridge) silence() {
	if b.sendEvent == nil || b.sounding < 0 {
		return
	}
	b.sendEvent(Event{Type: NoteOff, Channel: b.opts.Channel, Note: uint8(b.sounding)})
	b.sounding = -1
}

// HandleNote turns the clock and mode notes into pulse edges
func (b *Bridge) HandleNote(n NoteEvent) {
	var pin hw.Pin
	switch n.Note {
	case b.opts.ClockNote:
		pin = hw.PinTriggerPulse
	case b.opts.ModeNote:
		pin = hw.PinModePulse
	default:
		return
	}
	at := b.now()
	b.eng.PostEdge(hw.Edge{Pin: pin, Rising: true, At: at})
	b.eng.PostEdge(hw.Edge{Pin: pin, Rising: false, At: at})
}

// HandlePad runs the action of a panel pad
func (b *Bridge) HandlePad(p PadEvent) {
	a := PadAction(p.Row, p.Col)
	switch a {
	case ActionStep:
		b.eng.RequestStep()
	case ActionMode:
		b.eng.RequestModeToggle()
	case ActionScale:
		b.eng.RequestScaleToggle()
	case ActionRange:
		b.eng.RequestRangeToggle()
	default:
		return
	}
	debug.Log("midi", "pad %d,%d -> %s", p.Row, p.Col, a)
}

func (b *Bridge) handleDevice(ev DeviceEvent) {
	switch ev.Type {
	case DeviceConnected:
		b.panels[ev.ID] = ev.Controller
		b.leds[ev.ID] = make(map[[2]int]LEDUpdate)
		go forward(ev.Controller.PadEvents(), b.pads)
		go forward(ev.Controller.NoteEvents(), b.notes)
	case DeviceDisconnected:
		delete(b.panels, ev.ID)
		delete(b.leds, ev.ID)
	}
}

// forward copies until src closes
func forward[T any](src <-chan T, dst chan<- T) {
	for v := range src {
		select {
		case dst <- v:
		default:
		}
	}
}

func (b *Bridge) refreshPanels() {
	if len(b.panels) == 0 {
		return
	}
	snap := b.eng.Snapshot()
	all := PanelUpdates(snap.RenderLEDs(b.eng.Quantizer()))
	for id, c := range b.panels {
		if c.Type() != ControllerLaunchpad {
			continue
		}
		changed := diffUpdates(b.leds[id], all)
		if len(changed) == 0 {
			continue
		}
		if err := c.SetLEDBatch(changed); err != nil {
			debug.Log("midi", "%s: %v", id, err)
			// resend everything next time
			b.leds[id] = make(map[[2]int]LEDUpdate)
		}
	}
}
