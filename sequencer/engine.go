package sequencer

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"cv-recorder/debug"
	"cv-recorder/hw"
	"cv-recorder/input"
	"cv-recorder/mux"
	"cv-recorder/quantizer"
	"cv-recorder/sched"
	"cv-recorder/tempo"
)

// Options are the engine's timing and scaling parameters
type Options struct {
	Quantizer quantizer.Quantizer

	TempoRange    tempo.Range
	Hysteresis    time.Duration
	InitialDelay  time.Duration
	TempoInterval time.Duration

	Debounce  time.Duration
	LongPress time.Duration
	// ModeLongPress decodes the mode button by hold time (short: record/play,
	// long: next scale). Off, it is a plain debounced button.
	ModeLongPress bool

	Settle       time.Duration // mux settle before sampling
	TriggerPulse time.Duration // trigger output width
	RecordFlash  time.Duration // status LED flash on recorded steps when externally clocked

	LoopInterval time.Duration
}

// DefaultOptions returns the stock hardware timing
func DefaultOptions() Options {
	return Options{
		Quantizer:     quantizer.Default(),
		TempoRange:    tempo.DefaultRange(),
		Hysteresis:    tempo.DefaultHysteresis,
		InitialDelay:  tempo.DefaultInitialDelay,
		TempoInterval: tempo.DefaultReadInterval,
		Debounce:      input.DefaultDebounce,
		LongPress:     input.DefaultLongPress,
		ModeLongPress: true,
		Settle:        mux.DefaultSettle,
		TriggerPulse:  10 * time.Millisecond,
		RecordFlash:   20 * time.Millisecond,
		LoopInterval:  time.Millisecond,
	}
}

// edgeQueueSize bounds edges waiting for the main loop
const edgeQueueSize = 32

// StepResult describes one completed step
type StepResult struct {
	Index    int
	Sample   uint16 // after pot rescaling
	Output   uint16 // code sent to the DAC
	Recorded bool
	Err      error // DAC write failure, not retried
}

// Snapshot is a copy of the engine state for observers
type Snapshot struct {
	State
	Pending      PendingFlags
	Phase        tempo.Phase
	StepInFlight bool
	DroppedEdges uint64
}

// Engine is the main control loop. Edge handlers only queue edges; every
// other method runs on the goroutine calling Tick or Run.
type Engine struct {
	board hw.Board
	opts  Options
	quant quantizer.Quantizer

	sched   *sched.Scheduler
	clock   *tempo.Clock
	tempo   *tempo.Reader
	decoder *input.Decoder
	mux     *mux.Controller

	mu    sync.RWMutex // guards state and published for Snapshot readers
	state State
	flags Flags

	// loop-only values copied for observers at the end of each tick
	published struct {
		phase        tempo.Phase
		stepInFlight bool
	}

	edges   chan hw.Edge
	dropped atomic.Uint64

	stepInFlight bool
	stepIndex    int
	trigOff      sched.Handle
	flashOff     sched.Handle

	listeners []func(StepResult)

	// Notify UI of updates
	UpdateChan chan struct{}
}

// NewEngine wires the engine to a board. Call Start before ticking.
func NewEngine(board hw.Board, opts Options) (*Engine, error) {
	e := &Engine{
		board:      board,
		opts:       opts,
		quant:      opts.Quantizer,
		state:      NewState(),
		edges:      make(chan hw.Edge, edgeQueueSize),
		UpdateChan: make(chan struct{}, 1),
	}
	if opts.InitialDelay > 0 {
		e.state.TempoDelayMs = uint32(opts.InitialDelay / time.Millisecond)
	}

	e.sched = sched.New(board.NowMicros)
	e.tempo = tempo.NewReader(opts.TempoRange, opts.Hysteresis, time.Duration(e.state.TempoDelayMs)*time.Millisecond)
	e.clock = tempo.NewClock(e.sched, e.tempo.Delay, e.onBeat, func(on bool) {
		e.board.WritePin(hw.PinStatusLED, on)
	})
	e.mux = mux.NewController(board, opts.Settle)
	e.decoder = input.NewDecoder(board, e.sched, opts.Debounce, opts.LongPress, e.handleInput)

	modeKind := input.KindButton
	if opts.ModeLongPress {
		modeKind = input.KindLongPress
	}
	e.decoder.Register(hw.PinTriggerButton, input.KindButton)
	e.decoder.Register(hw.PinModeButton, modeKind)
	e.decoder.Register(hw.PinTriggerPulse, input.KindPulse)
	e.decoder.Register(hw.PinModePulse, input.KindPulse)
	// trigger pulses only count while externally clocked
	e.decoder.SetEnabled(hw.PinTriggerPulse, false)

	for _, p := range []hw.Pin{hw.PinTriggerButton, hw.PinModeButton, hw.PinTriggerPulse, hw.PinModePulse} {
		if err := board.Watch(p, e.PostEdge); err != nil {
			return nil, fmt.Errorf("watch %s: %w", p, err)
		}
	}
	return e, nil
}

// OnStep registers a listener for completed steps. Listeners run on the
// main loop and must return quickly. Register before Run.
func (e *Engine) OnStep(fn func(StepResult)) {
	e.listeners = append(e.listeners, fn)
}

// Start puts outputs in their power-up state and starts the clocks
func (e *Engine) Start() {
	e.board.WritePin(hw.PinTriggerOut, false)
	e.board.WritePin(hw.PinStatusLED, false)
	e.board.WritePin(hw.PinRecordLED, e.state.Recording)
	e.mux.Reset()

	e.pollSwitches()
	e.clock.Reset()
	e.sched.Schedule(e.opts.TempoInterval, sched.Event{Kind: sched.TempoRead})
	e.publish()
	debug.Log("step", "engine started recording=%v external=%v", e.state.Recording, e.state.ExternalTrigger)
}

// PostEdge queues an edge for the main loop. Safe from any goroutine;
// edges are dropped when the queue is full.
func (e *Engine) PostEdge(edge hw.Edge) {
	select {
	case e.edges <- edge:
	default:
		e.dropped.Add(1)
		debug.Log("input", "edge queue full, dropped %s", edge.Pin)
	}
}

// RequestStep raises the trigger flag directly. Safe from any goroutine,
// as are the other Request methods.
func (e *Engine) RequestStep() {
	e.flags.Trigger.Store(true)
}

// RequestModeToggle switches between recording and playback
func (e *Engine) RequestModeToggle() {
	e.flags.ModeToggle.Store(true)
}

// RequestScaleToggle selects the next scale
func (e *Engine) RequestScaleToggle() {
	e.flags.ScaleToggle.Store(true)
}

// RequestRangeToggle selects the next pot range
func (e *Engine) RequestRangeToggle() {
	e.flags.RangeToggle.Store(true)
}

// Quantizer returns the engine's code scaling
func (e *Engine) Quantizer() quantizer.Quantizer {
	return e.quant
}

// Run ticks the main loop until ctx is done
func (e *Engine) Run(ctx context.Context) {
	interval := e.opts.LoopInterval
	if interval <= 0 {
		interval = time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.Tick()
		}
	}
}

// Tick runs one main-loop iteration
func (e *Engine) Tick() {
	e.drainEdges()

	now := e.board.NowMicros()
	for _, ev := range e.sched.Due(now) {
		e.dispatch(ev, now)
	}

	e.pollSwitches()
	e.service()
	e.publish()
}

// publish copies the clock phase and step progress for Snapshot. Both are
// written only by the loop goroutine.
func (e *Engine) publish() {
	phase := e.clock.Phase()
	e.mu.Lock()
	e.published.phase = phase
	e.published.stepInFlight = e.stepInFlight
	e.mu.Unlock()
}

func (e *Engine) drainEdges() {
	for {
		select {
		case edge := <-e.edges:
			e.decoder.HandleEdge(edge)
			if edge.Pin == hw.PinModeButton {
				e.mu.Lock()
				e.state.ModeButtonPressTime = e.decoder.PressTime(hw.PinModeButton)
				e.mu.Unlock()
			}
		default:
			return
		}
	}
}

func (e *Engine) dispatch(ev sched.Event, now uint64) {
	switch ev.Kind {
	case sched.BeatTrigger, sched.BeatAnticipate:
		e.clock.Fire(ev)
	case sched.DebounceCheck:
		e.decoder.HandleDebounce(ev.Pin, now)
	case sched.PinOff:
		e.board.WritePin(ev.Pin, false)
	case sched.TempoRead:
		e.readTempo()
		e.sched.Schedule(e.opts.TempoInterval, sched.Event{Kind: sched.TempoRead})
	case sched.MuxSettled:
		e.completeStep()
	}
}

// onBeat is the clock's trigger phase
func (e *Engine) onBeat() {
	e.flags.Trigger.Store(true)
}

// handleInput turns decoded front-panel events into pending flags
func (e *Engine) handleInput(ev input.Event) {
	switch ev.Pin {
	case hw.PinTriggerButton:
		// the trigger button cycles the pot range while in pot mode
		if e.state.PotMode {
			e.flags.RangeToggle.Store(true)
		} else {
			e.flags.Trigger.Store(true)
		}
	case hw.PinTriggerPulse:
		e.flags.Trigger.Store(true)
	case hw.PinModeButton:
		if ev.Type == input.LongPress {
			e.flags.ScaleToggle.Store(true)
		} else {
			e.flags.ModeToggle.Store(true)
		}
	case hw.PinModePulse:
		e.flags.ModeToggle.Store(true)
	}
}

func (e *Engine) readTempo() {
	raw, err := e.board.ReadAnalog(hw.ChannelTempo)
	if err != nil {
		debug.Log("tempo", "read failed: %v", err)
		return
	}
	if e.tempo.Update(raw) {
		e.mu.Lock()
		e.state.TempoDelayMs = e.tempo.DelayMs()
		e.mu.Unlock()
	}
}

// pollSwitches reads the latched front-panel switches
func (e *Engine) pollSwitches() {
	ext := e.board.ReadPin(hw.PinExtClock)
	potMode := e.board.ReadPin(hw.PinPotMode)
	mode := quantizer.ModeUnquantized
	switch {
	case e.board.ReadPin(hw.PinQuantizeB):
		mode = quantizer.ModeScale
	case e.board.ReadPin(hw.PinQuantizeA):
		mode = quantizer.ModeChromatic
	}

	e.mu.Lock()
	extChanged := ext != e.state.ExternalTrigger
	e.state.ExternalTrigger = ext
	e.state.PotMode = potMode
	e.state.QuantizeMode = mode
	e.mu.Unlock()

	if extChanged {
		debug.Log("clock", "external clock %v", ext)
		e.decoder.SetEnabled(hw.PinTriggerPulse, ext)
		e.clock.SetExternal(ext)
		e.notify()
	}
}

// service acts on pending flags, clearing each as its action starts
func (e *Engine) service() {
	if !e.stepInFlight && e.flags.Trigger.Swap(false) {
		e.beginStep()
	}
	if e.flags.ModeToggle.Swap(false) {
		e.toggleRecording()
	}
	if e.flags.ScaleToggle.Swap(false) {
		e.mu.Lock()
		e.state.ActiveScale = e.state.ActiveScale.Next()
		scale := e.state.ActiveScale
		e.mu.Unlock()
		debug.Log("step", "scale -> %s", scale)
		e.notify()
	}
	if e.flags.RangeToggle.Swap(false) {
		e.mu.Lock()
		e.state.PotRange = e.state.PotRange.Next()
		r := e.state.PotRange
		e.mu.Unlock()
		debug.Log("step", "pot range -> %s", r)
		e.notify()
	}
}

func (e *Engine) toggleRecording() {
	e.mu.Lock()
	e.state.Recording = !e.state.Recording
	rec := e.state.Recording
	e.mu.Unlock()

	e.board.WritePin(hw.PinRecordLED, rec)
	e.clock.Reset()
	debug.Log("step", "recording=%v", rec)
	e.notify()
}

// Snapshot returns a copy of the current state. Safe from any goroutine.
func (e *Engine) Snapshot() Snapshot {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return Snapshot{
		State:        e.state,
		Pending:      e.flags.snapshot(),
		Phase:        e.published.phase,
		StepInFlight: e.published.stepInFlight,
		DroppedEdges: e.dropped.Load(),
	}
}

// Scheduler exposes the deadline queue for inspection
func (e *Engine) Scheduler() *sched.Scheduler {
	return e.sched
}

// Clock exposes the beat clock for inspection
func (e *Engine) Clock() *tempo.Clock {
	return e.clock
}

// notify wakes the UI without blocking
func (e *Engine) notify() {
	select {
	case e.UpdateChan <- struct{}{}:
	default:
	}
}
