package rpi

import (
	"fmt"
	"sync"

	i2c "github.com/d2r2/go-i2c"
	logger "github.com/d2r2/go-logger"
	"periph.io/x/conn/v3/physic"
)

func init() {
	// go-i2c logs every transfer at debug level
	logger.ChangePackageLogLevel("i2c", logger.InfoLevel)
}

// Bus adapts a Linux /dev/i2c-N bus to periph's i2c.Bus. go-i2c binds a
// handle to one address, so handles are opened per address on first use.
type Bus struct {
	mu      sync.Mutex
	bus     int
	handles map[uint16]*i2c.I2C
}

// OpenBus opens /dev/i2c-bus
func OpenBus(bus int) *Bus {
	return &Bus{bus: bus, handles: make(map[uint16]*i2c.I2C)}
}

func (b *Bus) String() string {
	return fmt.Sprintf("i2c-%d", b.bus)
}

// Tx writes w then reads into r
func (b *Bus) Tx(addr uint16, w, r []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	h, ok := b.handles[addr]
	if !ok {
		var err error
		h, err = i2c.NewI2C(uint8(addr), b.bus)
		if err != nil {
			return fmt.Errorf("%s open %#x: %w", b, addr, err)
		}
		b.handles[addr] = h
	}
	if len(w) > 0 {
		if n, err := h.WriteBytes(w); err != nil {
			return fmt.Errorf("%s write %#x: %w", b, addr, err)
		} else if n != len(w) {
			return fmt.Errorf("%s write %#x: short write %d/%d", b, addr, n, len(w))
		}
	}
	if len(r) > 0 {
		if _, err := h.ReadBytes(r); err != nil {
			return fmt.Errorf("%s read %#x: %w", b, addr, err)
		}
	}
	return nil
}

// SetSpeed is fixed by the kernel driver
func (b *Bus) SetSpeed(f physic.Frequency) error {
	return fmt.Errorf("%s: bus speed is set by the kernel (dtparam i2c_arm_baudrate)", b)
}

// Close releases every handle
func (b *Bus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	var first error
	for addr, h := range b.handles {
		if err := h.Close(); err != nil && first == nil {
			first = err
		}
		delete(b.handles, addr)
	}
	return first
}
