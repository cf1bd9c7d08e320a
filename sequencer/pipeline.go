package sequencer

import (
	"cv-recorder/debug"
	"cv-recorder/hw"
	"cv-recorder/sched"
)

// beginStep selects the mux channel for the current index. Sampling waits
// for MuxSettled so the analog path can settle.
func (e *Engine) beginStep() {
	e.mu.RLock()
	idx := e.state.MemoryIndex
	e.mu.RUnlock()

	e.stepInFlight = true
	e.stepIndex = idx
	e.mux.Select(idx)
	e.sched.Schedule(e.mux.Settle(), sched.Event{Kind: sched.MuxSettled})
}

// completeStep samples, records, quantizes and outputs the current step
func (e *Engine) completeStep() {
	if !e.stepInFlight {
		return
	}
	e.stepInFlight = false

	raw, err := e.board.ReadAnalog(hw.ChannelCV)
	if err != nil {
		debug.Log("step", "cv read failed: %v", err)
	}

	e.mu.Lock()
	idx := e.stepIndex
	sample := raw
	if e.state.PotMode {
		sample = e.quant.Rescale(raw, e.state.PotRange)
	}
	recorded := e.state.Recording && err == nil
	if recorded {
		e.state.Memory[idx] = sample
	}
	out := e.quant.Quantize(e.state.Memory[idx], e.state.QuantizeMode, e.state.ActiveScale)
	external := e.state.ExternalTrigger
	e.state.LastSample = sample
	e.state.LastOutput = out
	e.mu.Unlock()

	if recorded && external {
		// no beat LED when externally clocked; flash on the recorded step
		e.board.WritePin(hw.PinStatusLED, true)
		e.sched.Cancel(e.flashOff)
		e.flashOff = e.sched.Schedule(e.opts.RecordFlash, sched.Event{Kind: sched.PinOff, Pin: hw.PinStatusLED})
	}

	werr := e.board.WriteDAC(out)
	if werr != nil {
		debug.Log("step", "dac write failed at %d: %v", idx, werr)
	}

	e.board.WritePin(hw.PinTriggerOut, true)
	e.sched.Cancel(e.trigOff)
	e.trigOff = e.sched.Schedule(e.opts.TriggerPulse, sched.Event{Kind: sched.PinOff, Pin: hw.PinTriggerOut})

	e.mu.Lock()
	if werr != nil {
		e.state.DACErrors++
	}
	e.state.Advance()
	e.state.Steps++
	e.mu.Unlock()

	debug.LogEvery(16, "step", "step %d sample=%d out=%d rec=%v", idx, sample, out, recorded)

	res := StepResult{Index: idx, Sample: sample, Output: out, Recorded: recorded, Err: werr}
	for _, fn := range e.listeners {
		fn(res)
	}
	e.notify()
}
