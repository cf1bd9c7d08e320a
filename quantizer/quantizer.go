package quantizer

// Hardware constants for a +/-10V expander on a 12-bit converter
const (
	DefaultMax            = 4095
	DefaultMidpoint       = 2048
	DefaultStepsPerOctave = 205 // 4095 steps / 20V span = 204.8 steps per 1V
)

// Mode selects how a stored code is quantized on output
type Mode int

const (
	ModeUnquantized Mode = iota
	ModeChromatic
	ModeScale
)

var modeNames = []string{"Off", "Chromatic", "Scale"}

func (m Mode) String() string {
	if m < 0 || int(m) >= len(modeNames) {
		return "?"
	}
	return modeNames[m]
}

// Quantizer maps raw analog codes to musically quantized codes.
// The zero value is not usable; use New or Default.
type Quantizer struct {
	Midpoint       int32
	StepsPerOctave int32
	Max            int32
}

// Default returns a quantizer for the stock hardware constants
func Default() Quantizer {
	return New(DefaultMidpoint, DefaultStepsPerOctave, DefaultMax)
}

// New creates a quantizer around midpoint with the given octave size
func New(midpoint, stepsPerOctave, max int) Quantizer {
	return Quantizer{
		Midpoint:       int32(midpoint),
		StepsPerOctave: int32(stepsPerOctave),
		Max:            int32(max),
	}
}

// StepsToSemitones converts a deviation in raw steps to the nearest semitone.
// Rounding is symmetric around zero.
func (q Quantizer) StepsToSemitones(steps int32) int32 {
	half := q.StepsPerOctave / 2
	if steps >= 0 {
		return (steps*12 + half) / q.StepsPerOctave
	}
	return (steps*12 - half) / q.StepsPerOctave
}

// SemitonesToSteps converts a semitone count back to the nearest raw step deviation
func (q Quantizer) SemitonesToSteps(semitones int32) int32 {
	if semitones >= 0 {
		return (semitones*q.StepsPerOctave + 6) / 12
	}
	return (semitones*q.StepsPerOctave - 6) / 12
}

// Chromatic snaps code to the nearest semitone
func (q Quantizer) Chromatic(code uint16) uint16 {
	semitones := q.StepsToSemitones(int32(code) - q.Midpoint)
	return q.clamp(q.Midpoint + q.SemitonesToSteps(semitones))
}

// Snap snaps code to the nearest member of scale
func (q Quantizer) Snap(code uint16, scale Scale) uint16 {
	table := scale.Table()
	semitones := q.StepsToSemitones(int32(code) - q.Midpoint)

	octave, note := SplitOctave(semitones)
	snapped := table[note]

	// top chromatic step rounding up into the next octave's root
	if note == 11 && snapped == 0 {
		octave++
	}

	final := octave*12 + int32(snapped)
	return q.clamp(q.Midpoint + q.SemitonesToSteps(final))
}

// Quantize applies mode (and scale for ModeScale) to code
func (q Quantizer) Quantize(code uint16, mode Mode, scale Scale) uint16 {
	switch mode {
	case ModeChromatic:
		return q.Chromatic(code)
	case ModeScale:
		return q.Snap(code, scale)
	default:
		return code
	}
}

// Semitones returns the semitone offset of code from the midpoint
func (q Quantizer) Semitones(code uint16) int32 {
	return q.StepsToSemitones(int32(code) - q.Midpoint)
}

// SplitOctave splits a semitone count into octave and note-within-octave
// using floor division, so note is always in [0,11] even below the reference.
func SplitOctave(semitones int32) (octave int32, note int32) {
	if semitones >= 0 {
		octave = semitones / 12
	} else {
		octave = (semitones - 11) / 12
	}
	return octave, semitones - octave*12
}

func (q Quantizer) clamp(v int32) uint16 {
	if v < 0 {
		return 0
	}
	if v > q.Max {
		return uint16(q.Max)
	}
	return uint16(v)
}
