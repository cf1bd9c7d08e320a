// Package sim is an in-memory sequencer board. It backs the engine tests
// and the front-panel simulator.
package sim

import (
	"errors"
	"sync"
	"time"

	"cv-recorder/hw"
	"cv-recorder/mux"
)

// DACHistory is how many DAC codes a board remembers
const DACHistory = 1024

// ErrBus is returned by WriteDAC when a bus fault is injected
var ErrBus = errors.New("sim: bus write not acknowledged")

// Board is a simulated board. The clock is manual unless created with NewRealtime.
type Board struct {
	mu sync.Mutex

	realtime bool
	start    time.Time
	now      uint64

	cv       uint16
	tempo    uint16
	pots     [mux.Channels]uint16
	usePots  bool
	levels   [hw.NumPins]bool
	watchers map[hw.Pin][]func(hw.Edge)

	dacWrites []uint16 // most recent codes, at most DACHistory
	dacCount  int
	dacFault  bool
	pinWrites map[hw.Pin]int
	reads     map[hw.Channel]int
}

// New creates a board with a manual clock at zero
func New() *Board {
	return &Board{
		watchers:  make(map[hw.Pin][]func(hw.Edge)),
		pinWrites: make(map[hw.Pin]int),
		reads:     make(map[hw.Channel]int),
		tempo:     2048,
		cv:        2048,
	}
}

// NewRealtime creates a board whose clock follows wall time
func NewRealtime() *Board {
	b := New()
	b.realtime = true
	b.start = time.Now()
	return b
}

// NowMicros returns the board clock
func (b *Board) NowMicros() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.nowLocked()
}

func (b *Board) nowLocked() uint64 {
	if b.realtime {
		return uint64(time.Since(b.start) / time.Microsecond)
	}
	return b.now
}

// Advance moves a manual clock forward
func (b *Board) Advance(d time.Duration) {
	b.mu.Lock()
	b.now += uint64(d / time.Microsecond)
	b.mu.Unlock()
}

// ReadAnalog samples a channel. With the pot bank attached the CV channel
// reads whichever pot the mux lines select.
func (b *Board) ReadAnalog(ch hw.Channel) (uint16, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.reads[ch]++
	switch ch {
	case hw.ChannelCV:
		if b.usePots {
			return b.pots[b.muxIndexLocked()], nil
		}
		return b.cv, nil
	case hw.ChannelTempo:
		return b.tempo, nil
	}
	return 0, hw.ErrUnknownPin
}

func (b *Board) muxIndexLocked() int {
	idx := 0
	if b.levels[hw.PinMuxAddr0] {
		idx |= 0x01
	}
	if b.levels[hw.PinMuxAddr1] {
		idx |= 0x02
	}
	if b.levels[hw.PinMuxAddr2] {
		idx |= 0x04
	}
	if b.levels[hw.PinMuxInhibit0] {
		idx |= 0x08
	}
	return idx
}

// WriteDAC records a DAC code
func (b *Board) WriteDAC(code uint16) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.dacFault {
		return ErrBus
	}
	if len(b.dacWrites) == DACHistory {
		n := copy(b.dacWrites, b.dacWrites[DACHistory/2:])
		b.dacWrites = b.dacWrites[:n]
	}
	b.dacWrites = append(b.dacWrites, code)
	b.dacCount++
	return nil
}

// ReadPin returns a pin level
func (b *Board) ReadPin(p hw.Pin) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if p < 0 || p >= hw.NumPins {
		return false
	}
	return b.levels[p]
}

// WritePin drives an output
func (b *Board) WritePin(p hw.Pin, high bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if p < 0 || p >= hw.NumPins {
		return
	}
	b.levels[p] = high
	b.pinWrites[p]++
}

// Watch registers an edge handler
func (b *Board) Watch(p hw.Pin, fn func(hw.Edge)) error {
	if p < 0 || p >= hw.NumPins || !p.IsInput() {
		return hw.ErrUnknownPin
	}
	b.mu.Lock()
	b.watchers[p] = append(b.watchers[p], fn)
	b.mu.Unlock()
	return nil
}

// SetInput changes an input level, reporting an edge on change
func (b *Board) SetInput(p hw.Pin, high bool) {
	b.mu.Lock()
	if p < 0 || p >= hw.NumPins || b.levels[p] == high {
		b.mu.Unlock()
		return
	}
	b.levels[p] = high
	edge := hw.Edge{Pin: p, Rising: high, At: b.nowLocked()}
	fns := append([]func(hw.Edge){}, b.watchers[p]...)
	b.mu.Unlock()

	for _, fn := range fns {
		fn(edge)
	}
}

// Toggle flips a latched switch input
func (b *Board) Toggle(p hw.Pin) {
	b.SetInput(p, !b.ReadPin(p))
}

// Press holds an input high for hold of wall time. Only for realtime boards.
func (b *Board) Press(p hw.Pin, hold time.Duration) {
	b.SetInput(p, true)
	time.AfterFunc(hold, func() { b.SetInput(p, false) })
}

// SetCV sets the sampled input voltage code
func (b *Board) SetCV(code uint16) {
	b.mu.Lock()
	b.cv = code
	b.mu.Unlock()
}

// CV returns the sampled input code
func (b *Board) CV() uint16 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.cv
}

// SetTempo sets the tempo pot code
func (b *Board) SetTempo(code uint16) {
	b.mu.Lock()
	b.tempo = code
	b.mu.Unlock()
}

// Tempo returns the tempo pot code
func (b *Board) Tempo() uint16 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.tempo
}

// AttachPots connects a pot bank to the CV input through the mux
func (b *Board) AttachPots(pots [mux.Channels]uint16) {
	b.mu.Lock()
	b.pots = pots
	b.usePots = true
	b.mu.Unlock()
}

// DetachPots reconnects the CV jack
func (b *Board) DetachPots() {
	b.mu.Lock()
	b.usePots = false
	b.mu.Unlock()
}

// SetPot changes one pot of an attached bank
func (b *Board) SetPot(i int, code uint16) {
	b.mu.Lock()
	if i >= 0 && i < mux.Channels {
		b.pots[i] = code
	}
	b.mu.Unlock()
}

// InjectBusFault makes DAC writes fail until cleared
func (b *Board) InjectBusFault(on bool) {
	b.mu.Lock()
	b.dacFault = on
	b.mu.Unlock()
}

// DACWrites returns the codes written so far, oldest first. Only the most
// recent DACHistory are kept.
func (b *Board) DACWrites() []uint16 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]uint16(nil), b.dacWrites...)
}

// DACCount returns how many codes were written in total
func (b *Board) DACCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dacCount
}

// LastDAC returns the most recent DAC code
func (b *Board) LastDAC() (uint16, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.dacWrites) == 0 {
		return 0, false
	}
	return b.dacWrites[len(b.dacWrites)-1], true
}

// PinWrites returns how many times an output was driven
func (b *Board) PinWrites(p hw.Pin) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.pinWrites[p]
}

// Reads returns how many times a channel was sampled
func (b *Board) Reads(ch hw.Channel) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.reads[ch]
}
