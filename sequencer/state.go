package sequencer

import (
	"sync/atomic"

	"cv-recorder/quantizer"
	"cv-recorder/tempo"
)

// MemoryLength is the number of steps in the circular memory
const MemoryLength = 16

// State is the single source of truth for the sequencer. The main loop is
// its only writer; observers read copies through Engine.Snapshot.
type State struct {
	// Sequence memory
	Memory      [MemoryLength]uint16 `json:"memory"`
	MemoryIndex int                  `json:"memoryIndex"`

	// Modes
	Recording       bool   `json:"recording"`
	ExternalTrigger bool   `json:"externalTrigger"`
	TempoDelayMs    uint32 `json:"tempoDelayMs"`

	// Front panel
	QuantizeMode quantizer.Mode     `json:"quantizeMode"`
	ActiveScale  quantizer.Scale    `json:"activeScale"`
	PotMode      bool               `json:"potMode"`
	PotRange     quantizer.PotRange `json:"potRange"`

	ModeButtonPressTime uint64 `json:"-"` // runtime only

	// Last step
	LastSample uint16 `json:"lastSample"`
	LastOutput uint16 `json:"lastOutput"`
	Steps      uint64 `json:"steps"`
	DACErrors  uint64 `json:"dacErrors"`
}

// NewState returns the power-up state: recording, internal clock,
// unquantized, major scale, 2-octave pot range.
func NewState() State {
	return State{
		Recording:    true,
		TempoDelayMs: uint32(tempo.DefaultInitialDelay.Milliseconds()),
		QuantizeMode: quantizer.ModeUnquantized,
		ActiveScale:  quantizer.ScaleMajor,
		PotRange:     quantizer.Range2Octaves,
	}
}

// Advance moves the memory index on by one, wrapping at MemoryLength
func (s *State) Advance() {
	s.MemoryIndex = (s.MemoryIndex + 1) % MemoryLength
}

// Flags are the pending-event flags. Event handlers set them; the main loop
// clears each one as it starts the matching action.
type Flags struct {
	Trigger     atomic.Bool
	ModeToggle  atomic.Bool
	ScaleToggle atomic.Bool
	RangeToggle atomic.Bool
}

// PendingFlags is a copy of Flags for observers
type PendingFlags struct {
	Trigger, ModeToggle, ScaleToggle, RangeToggle bool
}

func (f *Flags) snapshot() PendingFlags {
	return PendingFlags{
		Trigger:     f.Trigger.Load(),
		ModeToggle:  f.ModeToggle.Load(),
		ScaleToggle: f.ScaleToggle.Load(),
		RangeToggle: f.RangeToggle.Load(),
	}
}
