package rpi

import (
	"testing"

	"github.com/warthog618/gpio"

	"cv-recorder/hw"
)

func TestPulseInputsWatchRisingOnly(t *testing.T) {
	for _, p := range []hw.Pin{hw.PinTriggerPulse, hw.PinModePulse} {
		if watchEdge(p) != gpio.EdgeRising {
			t.Errorf("%s: watched edge = %v, want rising", p, watchEdge(p))
		}
		// the pulse may already be over when the level is read
		if !isRising(p, gpio.Low) {
			t.Errorf("%s: edge seen at low level should still report rising", p)
		}
	}
}

func TestButtonsWatchBothEdges(t *testing.T) {
	for _, p := range []hw.Pin{hw.PinTriggerButton, hw.PinModeButton} {
		if watchEdge(p) != gpio.EdgeBoth {
			t.Errorf("%s: watched edge = %v, want both", p, watchEdge(p))
		}
		if isRising(p, gpio.Low) || !isRising(p, gpio.High) {
			t.Errorf("%s: direction should follow the level", p)
		}
	}
}
