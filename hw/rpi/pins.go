// Package rpi is the Raspberry Pi board: front-panel pins through /dev/gpiomem,
// an MCP3208 ADC on bit-banged SPI and the MCP4725 DAC on the Linux I2C
// bus.
package rpi

import (
	"errors"
	"fmt"

	"cv-recorder/hw"
)

// ErrUnsupported is returned by Open off Linux
var ErrUnsupported = errors.New("rpi: board needs linux")

// PinMap resolves every board pin to a BCM GPIO number
func PinMap(names map[string]int) ([hw.NumPins]int, error) {
	var m [hw.NumPins]int
	used := make(map[int]hw.Pin, hw.NumPins)
	for i := hw.Pin(0); i < hw.NumPins; i++ {
		n, ok := names[i.String()]
		if !ok {
			return m, fmt.Errorf("rpi: %w: %s not wired", hw.ErrUnknownPin, i)
		}
		if n < 0 || n > 27 {
			return m, fmt.Errorf("rpi: %s on GPIO%d, want 0..27", i, n)
		}
		if other, dup := used[n]; dup {
			return m, fmt.Errorf("rpi: GPIO%d used by %s and %s", n, other, i)
		}
		used[n] = i
		m[i] = n
	}
	return m, nil
}
