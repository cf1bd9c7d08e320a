package quantizer

// PotRange is the octave span a pot sweep is rescaled to
type PotRange int

const (
	Range1Octave PotRange = iota
	Range2Octaves
	Range5Octaves
	numRanges
)

var rangeOctaves = [numRanges]int32{1, 2, 5}

// Octaves returns the span of r in octaves
func (r PotRange) Octaves() int {
	if r < 0 || r >= numRanges {
		return 0
	}
	return int(rangeOctaves[r])
}

// Next cycles 1 -> 2 -> 5 -> 1
func (r PotRange) Next() PotRange {
	return PotRange((int(r) + 1) % int(numRanges))
}

func (r PotRange) String() string {
	switch r {
	case Range1Octave:
		return "1 oct"
	case Range2Octaves:
		return "2 oct"
	case Range5Octaves:
		return "5 oct"
	}
	return "full"
}

// Rescale maps a full-range pot sweep onto the span of r around the midpoint.
// Unknown ranges keep the full span.
func (q Quantizer) Rescale(raw uint16, r PotRange) uint16 {
	target := q.Max
	if r >= 0 && r < numRanges {
		target = q.StepsPerOctave * rangeOctaves[r]
	}
	deviation := int32(raw) - q.Midpoint
	return q.clamp(q.Midpoint + deviation*target/q.Max)
}
