package theme

import (
	"strings"
	"testing"
)

const gpl = `GIMP Palette
Name: test
Columns: 2
# comment
  0   0   0	black
255 255 255	white
300 0 0	out of range
12 x 3	junk
`

func TestParseGPL(t *testing.T) {
	p, err := ParseGPL(strings.NewReader(gpl))
	if err != nil {
		t.Fatalf("ParseGPL: %v", err)
	}
	if p.Name != "test" {
		t.Errorf("name = %q", p.Name)
	}
	if len(p.Colors) != 2 {
		t.Fatalf("got %d colors, want 2", len(p.Colors))
	}
	if got := p.Lookup(0.5); got != (RGB{127, 127, 127}) {
		t.Errorf("Lookup(0.5) = %v", got)
	}
	if p.Lookup(-1) != p.Colors[0] || p.Lookup(2) != p.Colors[1] {
		t.Error("Lookup should clamp")
	}
}

func TestParseGPLTooFew(t *testing.T) {
	if _, err := ParseGPL(strings.NewReader("GIMP Palette\n1 2 3\n")); err == nil {
		t.Error("one color should be rejected")
	}
}

func TestThemeRoles(t *testing.T) {
	th := New(nil)
	if th.Mode(true) == th.Mode(false) {
		t.Error("record and playback colors should differ")
	}
	if th.BG() != "#121218" {
		t.Errorf("BG = %s", th.BG())
	}
}
