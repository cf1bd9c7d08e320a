package sequencer

import (
	"context"
	"errors"
	"testing"
	"time"

	"cv-recorder/hw"
	"cv-recorder/hw/sim"
	"cv-recorder/mux"
	"cv-recorder/quantizer"
	"cv-recorder/tempo"
)

type rig struct {
	t     *testing.T
	board *sim.Board
	eng   *Engine
	steps []StepResult
}

// newRig builds a started engine on a manual-clock board. Tempo reads are
// pushed out of the way so beat timing stays at the initial delay.
func newRig(t *testing.T, setup func(b *sim.Board, o *Options)) *rig {
	t.Helper()
	b := sim.New()
	opts := DefaultOptions()
	opts.TempoInterval = time.Hour
	if setup != nil {
		setup(b, &opts)
	}
	e, err := NewEngine(b, opts)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	r := &rig{t: t, board: b, eng: e}
	e.OnStep(func(s StepResult) { r.steps = append(r.steps, s) })
	e.Start()
	r.run(time.Millisecond)
	return r
}

// run ticks the engine every millisecond for d
func (r *rig) run(d time.Duration) {
	for elapsed := time.Duration(0); elapsed < d; elapsed += time.Millisecond {
		r.board.Advance(time.Millisecond)
		r.eng.Tick()
	}
}

// step requests one step and lets it complete
func (r *rig) step() {
	r.eng.RequestStep()
	r.eng.Tick()
	r.run(2 * time.Millisecond)
}

func (r *rig) pulse(p hw.Pin) {
	r.board.SetInput(p, true)
	r.run(time.Millisecond)
	r.board.SetInput(p, false)
	r.run(time.Millisecond)
}

func externalClock(b *sim.Board, _ *Options) {
	b.SetInput(hw.PinExtClock, true)
}

func TestRecordThenPlayback(t *testing.T) {
	r := newRig(t, externalClock)

	for i := 0; i < MemoryLength; i++ {
		r.board.SetCV(uint16(100 * (i + 1)))
		r.step()
	}
	if got := r.eng.Snapshot().MemoryIndex; got != 0 {
		t.Fatalf("index after 16 steps = %d, want 0", got)
	}

	r.pulse(hw.PinModePulse)
	if r.eng.Snapshot().Recording {
		t.Fatal("mode pulse should switch to playback")
	}
	if r.board.ReadPin(hw.PinRecordLED) {
		t.Error("record LED should follow playback")
	}

	r.board.SetCV(0)
	for i := 0; i < MemoryLength; i++ {
		r.step()
	}

	writes := r.board.DACWrites()
	if len(writes) != 2*MemoryLength {
		t.Fatalf("got %d DAC writes, want %d", len(writes), 2*MemoryLength)
	}
	for i, code := range writes[MemoryLength:] {
		if want := uint16(100 * (i + 1)); code != want {
			t.Errorf("playback step %d = %d, want %d", i, code, want)
		}
	}
	snap := r.eng.Snapshot()
	if snap.Steps != 2*MemoryLength {
		t.Errorf("Steps = %d", snap.Steps)
	}
	if len(r.steps) != 2*MemoryLength || r.steps[MemoryLength].Recorded {
		t.Errorf("listener saw %d steps", len(r.steps))
	}
}

func TestIndexWraps(t *testing.T) {
	r := newRig(t, externalClock)
	for n := 1; n <= 40; n++ {
		r.step()
		if got, want := r.eng.Snapshot().MemoryIndex, n%MemoryLength; got != want {
			t.Fatalf("after %d steps index = %d, want %d", n, got, want)
		}
	}
}

func TestPlaybackQuantizes(t *testing.T) {
	r := newRig(t, externalClock)
	r.board.SetCV(2150)
	r.step()

	r.board.SetInput(hw.PinQuantizeA, true)
	r.pulse(hw.PinModePulse)
	for i := 1; i < MemoryLength; i++ {
		r.step()
	}
	r.step()

	if got := r.steps[len(r.steps)-1]; got.Index != 0 || got.Output != 2151 {
		t.Errorf("chromatic playback = %+v, want index 0 output 2151", got)
	}
}

func TestInternalClock(t *testing.T) {
	r := newRig(t, nil)

	r.run(2 * time.Millisecond)
	if len(r.steps) != 1 {
		t.Fatalf("steps after start = %d, want 1", len(r.steps))
	}
	if r.eng.Snapshot().Phase != tempo.PhaseAnticipate {
		t.Errorf("phase = %v, want anticipate", r.eng.Snapshot().Phase)
	}
	if !r.board.ReadPin(hw.PinStatusLED) {
		t.Error("status LED should be on during the trigger half")
	}

	r.run(500 * time.Millisecond)
	if r.board.ReadPin(hw.PinStatusLED) {
		t.Error("status LED should be off during the anticipate half")
	}
	if len(r.steps) != 1 {
		t.Errorf("steps at 500ms = %d, want 1", len(r.steps))
	}

	r.run(502 * time.Millisecond)
	if len(r.steps) != 2 {
		t.Errorf("steps at 1s = %d, want 2", len(r.steps))
	}
	if n := r.eng.Scheduler().Len(); n > 3 {
		t.Errorf("%d pending deadlines, beat chain duplicated?", n)
	}
}

func TestExternalClockSuppressesBeat(t *testing.T) {
	r := newRig(t, externalClock)
	r.run(3 * time.Second)
	if len(r.steps) != 0 {
		t.Errorf("internal beat produced %d steps in external mode", len(r.steps))
	}
	if r.eng.Clock().Phase() != tempo.PhaseIdle {
		t.Errorf("phase = %v, want idle", r.eng.Clock().Phase())
	}

	r.pulse(hw.PinTriggerPulse)
	if len(r.steps) != 1 {
		t.Errorf("trigger pulse produced %d steps, want 1", len(r.steps))
	}
}

func TestTriggerPulseIgnoredWhenInternal(t *testing.T) {
	r := newRig(t, nil)
	r.run(10 * time.Millisecond)
	before := len(r.steps)
	r.pulse(hw.PinTriggerPulse)
	if len(r.steps) != before {
		t.Error("trigger pulse should be ignored on the internal clock")
	}
}

func TestSwitchToExternalCancelsChain(t *testing.T) {
	r := newRig(t, nil)
	r.run(10 * time.Millisecond)
	r.board.SetInput(hw.PinExtClock, true)
	r.run(time.Millisecond)

	if r.eng.Clock().Handle() != 0 {
		t.Error("beat chain still pending after switching to external")
	}
	before := len(r.steps)
	r.run(2 * time.Second)
	if len(r.steps) != before {
		t.Error("internal beats continued in external mode")
	}
}

func TestTriggerOutPulse(t *testing.T) {
	r := newRig(t, externalClock)
	r.step()
	if !r.board.ReadPin(hw.PinTriggerOut) {
		t.Fatal("trigger out should be high after a step")
	}
	r.run(5 * time.Millisecond)
	if !r.board.ReadPin(hw.PinTriggerOut) {
		t.Error("trigger out dropped early")
	}
	r.run(10 * time.Millisecond)
	if r.board.ReadPin(hw.PinTriggerOut) {
		t.Error("trigger out should drop after the pulse width")
	}
}

func TestRecordFlashExternal(t *testing.T) {
	r := newRig(t, externalClock)
	r.step()
	if !r.board.ReadPin(hw.PinStatusLED) {
		t.Fatal("status LED should flash on a recorded step")
	}
	r.run(25 * time.Millisecond)
	if r.board.ReadPin(hw.PinStatusLED) {
		t.Error("flash should end")
	}
}

func TestButtonDebounce(t *testing.T) {
	r := newRig(t, externalClock)

	// bounce shorter than the debounce window
	r.board.SetInput(hw.PinTriggerButton, true)
	r.run(5 * time.Millisecond)
	r.board.SetInput(hw.PinTriggerButton, false)
	r.run(30 * time.Millisecond)
	if len(r.steps) != 0 {
		t.Fatalf("bounce produced %d steps", len(r.steps))
	}

	// a held press with chatter counts once
	r.board.SetInput(hw.PinTriggerButton, true)
	r.board.SetInput(hw.PinTriggerButton, false)
	r.board.SetInput(hw.PinTriggerButton, true)
	r.run(30 * time.Millisecond)
	r.board.SetInput(hw.PinTriggerButton, false)
	r.run(5 * time.Millisecond)
	if len(r.steps) != 1 {
		t.Errorf("press produced %d steps, want 1", len(r.steps))
	}
}

func TestPotModeRangeToggle(t *testing.T) {
	r := newRig(t, func(b *sim.Board, o *Options) {
		externalClock(b, o)
		b.SetInput(hw.PinPotMode, true)
	})
	if got := r.eng.Snapshot().PotRange; got != quantizer.Range2Octaves {
		t.Fatalf("initial range = %v", got)
	}

	r.board.SetInput(hw.PinTriggerButton, true)
	r.run(25 * time.Millisecond)
	r.board.SetInput(hw.PinTriggerButton, false)
	r.run(time.Millisecond)

	snap := r.eng.Snapshot()
	if snap.PotRange != quantizer.Range5Octaves {
		t.Errorf("range = %v, want 5 oct", snap.PotRange)
	}
	if len(r.steps) != 0 {
		t.Error("trigger button in pot mode should not step")
	}
}

func TestPotBankRecording(t *testing.T) {
	var pots [mux.Channels]uint16
	for i := range pots {
		pots[i] = uint16(250 * i)
	}
	r := newRig(t, func(b *sim.Board, o *Options) {
		externalClock(b, o)
		b.SetInput(hw.PinPotMode, true)
		b.AttachPots(pots)
	})

	for i := 0; i < MemoryLength; i++ {
		r.step()
	}
	q := quantizer.Default()
	mem := r.eng.Snapshot().Memory
	for i, code := range mem {
		if want := q.Rescale(pots[i], quantizer.Range2Octaves); code != want {
			t.Errorf("memory[%d] = %d, want %d", i, code, want)
		}
	}
}

func TestModeButtonLongPress(t *testing.T) {
	r := newRig(t, externalClock)

	r.board.SetInput(hw.PinModeButton, true)
	r.run(100 * time.Millisecond)
	if r.eng.Snapshot().ModeButtonPressTime == 0 {
		t.Error("press time should be held while the button is down")
	}
	r.board.SetInput(hw.PinModeButton, false)
	r.run(time.Millisecond)
	snap := r.eng.Snapshot()
	if snap.Recording {
		t.Error("short press should toggle to playback")
	}
	if snap.ModeButtonPressTime != 0 {
		t.Error("press time should clear on release")
	}

	r.board.SetInput(hw.PinModeButton, true)
	r.run(700 * time.Millisecond)
	r.board.SetInput(hw.PinModeButton, false)
	r.run(time.Millisecond)
	snap = r.eng.Snapshot()
	if snap.ActiveScale != quantizer.ScalePentatonic {
		t.Errorf("scale = %v, want pentatonic", snap.ActiveScale)
	}
	if snap.Recording {
		t.Error("long press should not toggle recording")
	}
}

func TestModeButtonPlain(t *testing.T) {
	r := newRig(t, func(b *sim.Board, o *Options) {
		externalClock(b, o)
		o.ModeLongPress = false
	})
	r.board.SetInput(hw.PinModeButton, true)
	r.run(900 * time.Millisecond)
	r.board.SetInput(hw.PinModeButton, false)
	r.run(time.Millisecond)

	snap := r.eng.Snapshot()
	if snap.Recording || snap.ActiveScale != quantizer.ScaleMajor {
		t.Errorf("plain mode button: recording=%v scale=%v", snap.Recording, snap.ActiveScale)
	}
}

func TestDACFaultCounted(t *testing.T) {
	r := newRig(t, externalClock)
	r.board.InjectBusFault(true)
	r.step()
	r.board.InjectBusFault(false)
	r.step()

	snap := r.eng.Snapshot()
	if snap.DACErrors != 1 {
		t.Errorf("DACErrors = %d, want 1", snap.DACErrors)
	}
	if snap.MemoryIndex != 2 {
		t.Errorf("index = %d, a failed write should still advance", snap.MemoryIndex)
	}
	if !errors.Is(r.steps[0].Err, sim.ErrBus) || r.steps[1].Err != nil {
		t.Errorf("step errors = %v, %v", r.steps[0].Err, r.steps[1].Err)
	}
}

func TestEdgeQueueDropsWhenFull(t *testing.T) {
	r := newRig(t, externalClock)
	for i := 0; i < edgeQueueSize+8; i++ {
		r.eng.PostEdge(hw.Edge{Pin: hw.PinModePulse, Rising: i%2 == 0})
	}
	if got := r.eng.Snapshot().DroppedEdges; got != 8 {
		t.Errorf("dropped = %d, want 8", got)
	}
	r.eng.Tick()
}

func TestOneStepInFlight(t *testing.T) {
	r := newRig(t, externalClock)
	r.eng.RequestStep()
	r.eng.Tick()
	if !r.eng.Snapshot().StepInFlight {
		t.Fatal("step should wait for the mux to settle")
	}
	r.eng.RequestStep()
	r.eng.Tick()
	if !r.eng.Snapshot().Pending.Trigger {
		t.Error("second trigger should stay pending while a step is in flight")
	}
	r.run(3 * time.Millisecond)
	if len(r.steps) != 2 {
		t.Errorf("steps = %d, want 2", len(r.steps))
	}
}

func TestTempoPot(t *testing.T) {
	b := sim.New()
	b.SetTempo(4095)
	opts := DefaultOptions()
	e, err := NewEngine(b, opts)
	if err != nil {
		t.Fatal(err)
	}
	e.Start()
	for i := 0; i < 150; i++ {
		b.Advance(time.Millisecond)
		e.Tick()
	}
	if got := e.Snapshot().TempoDelayMs; got != 71 {
		t.Errorf("TempoDelayMs = %d, want 71", got)
	}
}

func TestRenderLEDs(t *testing.T) {
	r := newRig(t, externalClock)
	r.board.SetCV(4095)
	r.step()

	leds := r.eng.Snapshot().RenderLEDs(quantizer.Default())
	if len(leds) != MemoryLength+3 {
		t.Fatalf("got %d LEDs", len(leds))
	}
	if leds[1].Channel != 2 || leds[1].Color != colorCursor {
		t.Errorf("cursor LED = %+v", leds[1])
	}
	if leds[0].Color != colorRecord {
		t.Errorf("full-scale recorded step = %v, want %v", leds[0].Color, colorRecord)
	}
	if leds[IndicatorRecord].Color != colorRecord || leds[IndicatorClock].Color != colorExternal {
		t.Errorf("panel = %+v %+v", leds[IndicatorRecord], leds[IndicatorClock])
	}
}

// Snapshot is read from UI goroutines while Run drives the loop; run with -race
func TestSnapshotWhileRunning(t *testing.T) {
	b := sim.NewRealtime()
	opts := DefaultOptions()
	opts.InitialDelay = 2 * time.Millisecond
	opts.TempoInterval = time.Hour
	e, err := NewEngine(b, opts)
	if err != nil {
		t.Fatal(err)
	}
	e.Start()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		e.Run(ctx)
		close(done)
	}()
	defer func() {
		cancel()
		<-done
	}()

	deadline := time.Now().Add(5 * time.Second)
	var phases, inFlight int
	for time.Now().Before(deadline) {
		snap := e.Snapshot()
		if snap.Phase != tempo.PhaseIdle {
			phases++
		}
		if snap.StepInFlight {
			inFlight++
		}
		if snap.Steps >= 4 {
			return
		}
		time.Sleep(100 * time.Microsecond)
	}
	t.Fatalf("no steps from the internal clock in 5s (phase reads %d, in flight %d)", phases, inFlight)
}
