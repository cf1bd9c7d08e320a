package widgets

import (
	"strings"
	"testing"
)

func TestRenderMeter(t *testing.T) {
	tests := []struct {
		value, max, width int
		want              string
	}{
		{0, 4095, 4, "[    ]"},
		{4095, 4095, 4, "[====]"},
		{2048, 4095, 4, "[==  ]"},
		{9000, 4095, 2, "[==]"},
		{1, 0, 4, ""},
	}
	for _, tt := range tests {
		if got := RenderMeter(tt.value, tt.max, tt.width); got != tt.want {
			t.Errorf("RenderMeter(%d, %d, %d) = %q, want %q", tt.value, tt.max, tt.width, got, tt.want)
		}
	}
}

func TestRenderKeyHelp(t *testing.T) {
	out := RenderKeyHelp([]KeySection{{
		Title: "Panel",
		Keys:  []KeyBinding{{Key: "t", Desc: "trigger"}},
	}})
	if !strings.HasPrefix(out, "Panel\n") || !strings.Contains(out, "trigger") {
		t.Errorf("help = %q", out)
	}
}

func TestRGBToHex(t *testing.T) {
	if got := rgbToHex([3]uint8{255, 16, 0}); got != "#ff1000" {
		t.Errorf("rgbToHex = %s", got)
	}
}
