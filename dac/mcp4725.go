// Package dac drives an MCP4725 12-bit DAC over I²C.
//
// # Datasheet
//
// https://ww1.microchip.com/downloads/en/devicedoc/22039d.pdf
package dac

import (
	"errors"
	"fmt"

	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/physic"
)

const (
	// DefaultAddress is the Adafruit breakout's address
	DefaultAddress uint16 = 0x62
	// MaxCode is the largest 12-bit code
	MaxCode = 1<<12 - 1

	cmdWriteDAC byte = 0x40 // write DAC register, normal power mode
)

// ErrRange is returned for codes wider than 12 bits
var ErrRange = errors.New("dac: code out of range")

// Frame encodes value as the 3-byte write: command, high 8 bits, low 4 bits
// in the top nibble.
func Frame(value uint16) ([3]byte, error) {
	if value > MaxCode {
		return [3]byte{}, fmt.Errorf("%w: %d", ErrRange, value)
	}
	return [3]byte{
		cmdWriteDAC,
		byte(value / 16),
		byte((value % 16) << 4),
	}, nil
}

// Dev is an MCP4725 on a bus
type Dev struct {
	d      i2c.Dev
	span   Span
	last   uint16
	writes uint64
}

// New creates a device at addr on bus
func New(bus i2c.Bus, addr uint16, span Span) *Dev {
	return &Dev{d: i2c.Dev{Bus: bus, Addr: addr}, span: span}
}

// Write sends a code. Failed transfers are returned, never retried.
func (d *Dev) Write(value uint16) error {
	frame, err := Frame(value)
	if err != nil {
		return err
	}
	if err := d.d.Tx(frame[:], nil); err != nil {
		return fmt.Errorf("dac: %w", err)
	}
	d.last = value
	d.writes++
	return nil
}

// Last returns the last code written successfully
func (d *Dev) Last() uint16 {
	return d.last
}

// Writes counts successful transfers
func (d *Dev) Writes() uint64 {
	return d.writes
}

// Output returns the voltage of the last code after the expander
func (d *Dev) Output() physic.ElectricPotential {
	return d.span.Voltage(d.last)
}

func (d *Dev) String() string {
	return fmt.Sprintf("mcp4725(%s@%#x)", d.d.Bus, d.d.Addr)
}

// Span is the output voltage range the 12-bit code covers after analog
// processing. The stock expander covers -10V..+10V.
type Span struct {
	Min, Max physic.ElectricPotential
}

// DefaultSpan is the +/-10V expander
var DefaultSpan = Span{Min: -10 * physic.Volt, Max: 10 * physic.Volt}

// Voltage converts a code to the expander's output voltage
func (s Span) Voltage(code uint16) physic.ElectricPotential {
	if code > MaxCode {
		code = MaxCode
	}
	return s.Min + (s.Max-s.Min)*physic.ElectricPotential(code)/MaxCode
}
