package config

import (
	"cv-recorder/quantizer"
	"cv-recorder/sequencer"
	"cv-recorder/tempo"
)

// EngineOptions maps the config onto engine options
func (c *Config) EngineOptions() sequencer.Options {
	o := sequencer.DefaultOptions()
	o.Quantizer = quantizer.New(c.Quant.Midpoint, c.Quant.Octave, c.Quant.Max)
	o.TempoRange = tempo.Range{
		Fast:   c.Tempo.Fast.Std(),
		Slow:   c.Tempo.Slow.Std(),
		Max:    uint16(c.Quant.Max),
		Invert: c.Tempo.Invert,
	}
	o.Hysteresis = c.Tempo.Hysteresis.Std()
	o.InitialDelay = c.Tempo.Initial.Std()
	o.TempoInterval = c.Tempo.Interval.Std()
	o.Debounce = c.Input.Debounce.Std()
	o.LongPress = c.Input.LongPressMs.Std()
	o.ModeLongPress = c.Input.LongPress
	o.Settle = c.Step.Settle.Std()
	o.TriggerPulse = c.Step.Pulse.Std()
	o.RecordFlash = c.Step.Flash.Std()
	o.LoopInterval = c.Loop.Std()
	return o
}
