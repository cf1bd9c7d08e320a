// Package mux drives the address and inhibit lines of the pot board
// multiplexers: two 8-channel analog switches sharing 3 address lines.
package mux

import (
	"fmt"
	"time"

	"cv-recorder/debug"
	"cv-recorder/hw"
)

// Channels is the number of addressable pot channels across both banks
const Channels = 16

// DefaultSettle is the wait between asserting an address and sampling
const DefaultSettle = 50 * time.Microsecond

// Address is the line state for one channel
type Address struct {
	Bits     uint8 // A0..A2
	Inhibit0 bool  // high disables bank 0
	Inhibit1 bool  // high disables bank 1
}

// Bank returns which bank is enabled
func (a Address) Bank() int {
	if a.Inhibit0 {
		return 1
	}
	return 0
}

// AddressFor computes the lines for index. Indices 0-7 enable bank 0,
// 8-15 enable bank 1. An index outside [0,16) is a fatal precondition violation.
func AddressFor(index int) Address {
	if index < 0 || index >= Channels {
		panic(fmt.Sprintf("mux: index %d out of range", index))
	}
	upper := index&0x08 != 0
	return Address{
		Bits:     uint8(index & 0x07),
		Inhibit0: upper,
		Inhibit1: !upper,
	}
}

// PinWriter is the subset of hw.Board the controller needs
type PinWriter interface {
	WritePin(p hw.Pin, high bool)
}

// Controller asserts addresses on the board
type Controller struct {
	pins   PinWriter
	settle time.Duration
	last   Address
}

// NewController creates a controller. A zero settle uses DefaultSettle.
func NewController(pins PinWriter, settle time.Duration) *Controller {
	if settle <= 0 {
		settle = DefaultSettle
	}
	return &Controller{pins: pins, settle: settle}
}

// Reset puts the lines in their power-up state: channel 0 selected
func (c *Controller) Reset() {
	c.Select(0)
}

// Select asserts the lines for index. The caller must wait Settle()
// before sampling.
func (c *Controller) Select(index int) Address {
	a := AddressFor(index)
	c.pins.WritePin(hw.PinMuxAddr0, a.Bits&0x01 != 0)
	c.pins.WritePin(hw.PinMuxAddr1, a.Bits&0x02 != 0)
	c.pins.WritePin(hw.PinMuxAddr2, a.Bits&0x04 != 0)
	c.pins.WritePin(hw.PinMuxInhibit0, a.Inhibit0)
	c.pins.WritePin(hw.PinMuxInhibit1, a.Inhibit1)
	c.last = a
	debug.LogEvery(16, "mux", "select index=%d bits=%03b bank=%d", index, a.Bits, a.Bank())
	return a
}

// Settle returns the required wait after Select
func (c *Controller) Settle() time.Duration {
	return c.settle
}

// Current returns the last asserted address
func (c *Controller) Current() Address {
	return c.last
}
