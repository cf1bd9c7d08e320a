package sequencer

import (
	"cv-recorder/quantizer"
	"cv-recorder/tempo"
)

// LEDState describes the state of a single indicator
type LEDState struct {
	Index   int      // step index, or one of the panel indicators below
	Color   [3]uint8 // RGB color, renderers map it to their palette
	Channel uint8    // 0=static, 2=pulse
}

// Panel indicator indices, after the step row
const (
	IndicatorStatus = MemoryLength + iota
	IndicatorRecord
	IndicatorClock
)

var (
	colorOff      = [3]uint8{0, 0, 0}
	colorRecord   = [3]uint8{255, 40, 40}
	colorPlayback = [3]uint8{40, 220, 80}
	colorExternal = [3]uint8{255, 170, 0}
	colorInternal = [3]uint8{60, 60, 60}
	colorCursor   = [3]uint8{255, 255, 255}

	// status LED color per scale
	scaleColors = map[quantizer.Scale][3]uint8{
		quantizer.ScaleMajor:           {80, 160, 255},
		quantizer.ScalePentatonic:      {200, 80, 255},
		quantizer.ScaleMinor:           {0, 220, 220},
		quantizer.ScaleMinorPentatonic: {255, 120, 200},
	}
)

// ScaleColor returns the status LED color for a scale
func ScaleColor(s quantizer.Scale) [3]uint8 {
	if c, ok := scaleColors[s]; ok {
		return c
	}
	return scaleColors[quantizer.ScaleMajor]
}

// ModeColor is red while recording, green in playback
func ModeColor(recording bool) [3]uint8 {
	if recording {
		return colorRecord
	}
	return colorPlayback
}

// RenderLEDs returns the step row followed by the panel indicators.
// Step brightness follows the stored code; the cursor marks the next step.
func (s Snapshot) RenderLEDs(q quantizer.Quantizer) []LEDState {
	leds := make([]LEDState, 0, MemoryLength+3)
	mode := ModeColor(s.Recording)
	for i, code := range s.Memory {
		led := LEDState{Index: i, Color: dim(mode, code, q.Max)}
		if i == s.MemoryIndex {
			led.Color = colorCursor
			led.Channel = 2
		}
		leds = append(leds, led)
	}

	status := colorOff
	if s.Phase == tempo.PhaseTrigger || (s.ExternalTrigger && s.StepInFlight) {
		status = ScaleColor(s.ActiveScale)
	}
	clock := colorInternal
	if s.ExternalTrigger {
		clock = colorExternal
	}
	leds = append(leds,
		LEDState{Index: IndicatorStatus, Color: status},
		LEDState{Index: IndicatorRecord, Color: mode},
		LEDState{Index: IndicatorClock, Color: clock},
	)
	return leds
}

// dim scales c by code/max, keeping a floor so empty steps stay visible
func dim(c [3]uint8, code uint16, max int32) [3]uint8 {
	if max <= 0 {
		return c
	}
	const floor = 24
	var out [3]uint8
	for i, v := range c {
		out[i] = uint8(floor + (int32(v)-floor)*int32(code)/max)
		if int32(v) < floor {
			out[i] = v
		}
	}
	return out
}
