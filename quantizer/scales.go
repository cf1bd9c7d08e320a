package quantizer

// Scale identifies a snap table
type Scale int

const (
	ScaleMajor Scale = iota
	ScalePentatonic
	ScaleMinor
	ScaleMinorPentatonic
	numScales
)

// Snap tables: each chromatic semitone maps to the nearest member of the scale.
// Ties round down. A 0 at index 11 means the top step rounds up to the next root.
var snapTables = [numScales][12]int{
	ScaleMajor:           {0, 0, 2, 2, 4, 5, 5, 7, 7, 9, 9, 11},
	ScalePentatonic:      {0, 0, 2, 2, 4, 4, 7, 7, 7, 9, 9, 0},
	ScaleMinor:           {0, 0, 2, 3, 3, 5, 5, 7, 8, 8, 10, 10},
	ScaleMinorPentatonic: {0, 0, 3, 3, 3, 5, 5, 7, 7, 10, 10, 10},
}

var scaleNames = [numScales]string{"Major", "Pentatonic", "Minor", "Min Pent"}

// Scales lists every scale in cycle order
func Scales() []Scale {
	out := make([]Scale, numScales)
	for i := range out {
		out[i] = Scale(i)
	}
	return out
}

// Table returns the 12-entry snap table (major for unknown scales)
func (s Scale) Table() [12]int {
	if !s.Valid() {
		return snapTables[ScaleMajor]
	}
	return snapTables[s]
}

// Members returns the distinct scale degrees reachable through the table
func (s Scale) Members() []int {
	seen := make(map[int]bool)
	var out []int
	for _, n := range s.Table() {
		if !seen[n] {
			seen[n] = true
			out = append(out, n)
		}
	}
	return out
}

// Next returns the scale after s, wrapping around
func (s Scale) Next() Scale {
	return Scale((int(s) + 1) % int(numScales))
}

// Valid reports whether s names a known table
func (s Scale) Valid() bool {
	return s >= 0 && s < numScales
}

func (s Scale) String() string {
	if !s.Valid() {
		return "?"
	}
	return scaleNames[s]
}
