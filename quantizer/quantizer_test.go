package quantizer

import "testing"

func TestStepsToSemitonesRounding(t *testing.T) {
	q := Default()
	tests := []struct {
		steps int32
		want  int32
	}{
		{0, 0},
		{8, 0},
		{9, 1},
		{-8, 0},
		{-9, -1},
		{102, 6},
		{-102, -6},
		{205, 12},
		{-205, -12},
	}
	for _, tt := range tests {
		if got := q.StepsToSemitones(tt.steps); got != tt.want {
			t.Errorf("StepsToSemitones(%d) = %d, want %d", tt.steps, got, tt.want)
		}
	}
}

func TestSemitonesToStepsSymmetric(t *testing.T) {
	q := Default()
	for s := int32(0); s <= 120; s++ {
		up := q.SemitonesToSteps(s)
		down := q.SemitonesToSteps(-s)
		if up != -down {
			t.Fatalf("SemitonesToSteps(%d)=%d but SemitonesToSteps(%d)=%d", s, up, -s, down)
		}
	}
	if got := q.SemitonesToSteps(6); got != 103 {
		t.Errorf("SemitonesToSteps(6) = %d, want 103", got)
	}
}

func TestChromaticKnownValues(t *testing.T) {
	q := Default()
	tests := []struct {
		in, want uint16
	}{
		{2048, 2048},
		{2150, 2151},
		{2047, 2048},
		{1000, 1006},
		{3000, 3005},
		{0, 0},
		{4095, 4095},
	}
	for _, tt := range tests {
		if got := q.Chromatic(tt.in); got != tt.want {
			t.Errorf("Chromatic(%d) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestChromaticIdempotent(t *testing.T) {
	q := Default()
	for x := 0; x <= DefaultMax; x++ {
		once := q.Chromatic(uint16(x))
		if twice := q.Chromatic(once); twice != once {
			t.Fatalf("Chromatic not idempotent at %d: %d then %d", x, once, twice)
		}
	}
}

func TestSplitOctave(t *testing.T) {
	tests := []struct {
		semitones    int32
		octave, note int32
	}{
		{0, 0, 0},
		{11, 0, 11},
		{12, 1, 0},
		{-1, -1, 11},
		{-12, -1, 0},
		{-13, -2, 11},
		{-120, -10, 0},
	}
	for _, tt := range tests {
		octave, note := SplitOctave(tt.semitones)
		if octave != tt.octave || note != tt.note {
			t.Errorf("SplitOctave(%d) = (%d, %d), want (%d, %d)", tt.semitones, octave, note, tt.octave, tt.note)
		}
	}
}

func TestSnapLandsOnScaleMembers(t *testing.T) {
	q := Default()
	for _, scale := range Scales() {
		members := make(map[int32]bool)
		for _, m := range scale.Members() {
			members[int32(m)] = true
		}
		for x := 0; x <= DefaultMax; x++ {
			out := q.Snap(uint16(x), scale)
			_, note := SplitOctave(q.Semitones(out))
			if note < 0 || note > 11 {
				t.Fatalf("%s: Snap(%d) note %d outside [0,11]", scale, x, note)
			}
			if !members[note] {
				t.Fatalf("%s: Snap(%d) = %d has note %d not in scale", scale, x, out, note)
			}
		}
	}
}

func TestSnapTopStepWrap(t *testing.T) {
	q := Default()
	// 2236 is semitone 11 above the midpoint
	tests := []struct {
		scale Scale
		want  uint16
	}{
		{ScalePentatonic, 2253}, // wraps to next root
		{ScaleMajor, 2236},      // 11 is a member
		{ScaleMinor, 2219},      // rounds down to 10
	}
	for _, tt := range tests {
		if got := q.Snap(2236, tt.scale); got != tt.want {
			t.Errorf("Snap(2236, %s) = %d, want %d", tt.scale, got, tt.want)
		}
	}

	// one semitone below the midpoint is note 11 of octave -1
	if got := q.Snap(2031, ScalePentatonic); got != 2048 {
		t.Errorf("Snap(2031, Pentatonic) = %d, want 2048", got)
	}
	if got := q.Snap(2031, ScaleMajor); got != 2031 {
		t.Errorf("Snap(2031, Major) = %d, want 2031", got)
	}
}

func TestQuantizeModes(t *testing.T) {
	q := Default()
	if got := q.Quantize(100, ModeUnquantized, ScaleMajor); got != 100 {
		t.Errorf("unquantized changed value: %d", got)
	}
	if got := q.Quantize(100, ModeChromatic, ScaleMajor); got != q.Chromatic(100) {
		t.Errorf("chromatic mode = %d, want %d", got, q.Chromatic(100))
	}
	if got := q.Quantize(100, ModeScale, ScalePentatonic); got != 118 {
		t.Errorf("scale mode pentatonic = %d, want 118", got)
	}
	if got := q.Quantize(100, ModeScale, ScaleMajor); got != 83 {
		t.Errorf("scale mode major = %d, want 83", got)
	}
}

func TestScaleCycle(t *testing.T) {
	s := ScaleMajor
	seen := make(map[Scale]bool)
	for i := 0; i < len(Scales()); i++ {
		seen[s] = true
		s = s.Next()
	}
	if s != ScaleMajor {
		t.Errorf("cycle did not return to major, got %s", s)
	}
	if len(seen) != len(Scales()) {
		t.Errorf("cycle visited %d scales, want %d", len(seen), len(Scales()))
	}
	if Scale(99).Table() != ScaleMajor.Table() {
		t.Error("unknown scale should fall back to major table")
	}
}
