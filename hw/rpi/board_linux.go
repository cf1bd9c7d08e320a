package rpi

import (
	"fmt"
	"sync"
	"time"

	"github.com/warthog618/gpio"
	"github.com/warthog618/gpio/spi/mcp3w0c"

	"cv-recorder/config"
	"cv-recorder/dac"
	"cv-recorder/debug"
	"cv-recorder/hw"
)

// Board is the Raspberry Pi sequencer board
type Board struct {
	start time.Time

	pins  [hw.NumPins]*gpio.Pin
	adcMu sync.Mutex
	adc   *mcp3w0c.MCP3w0c
	adcCh [2]int // by hw.Channel

	bus *Bus
	dac *dac.Dev
}

// Open maps the GPIO block, configures pin directions and opens the
// converters. Close releases everything.
func Open(c config.BoardConfig) (*Board, error) {
	gpioNums, err := PinMap(c.Pins)
	if err != nil {
		return nil, err
	}
	if err := gpio.Open(); err != nil {
		return nil, fmt.Errorf("rpi: open gpio: %w", err)
	}

	b := &Board{start: time.Now(), adcCh: [2]int{c.ADC.CV, c.ADC.Tempo}}
	for p := hw.Pin(0); p < hw.NumPins; p++ {
		pin := gpio.NewPin(gpioNums[p])
		if p.IsInput() {
			pin.Input()
			pin.PullDown()
		} else {
			pin.Low()
			pin.Output()
		}
		b.pins[p] = pin
	}

	b.adc = mcp3w0c.NewMCP3208(c.ADC.Tclk.Std(), c.ADC.Sclk, c.ADC.Ssz, c.ADC.Mosi, c.ADC.Miso)
	b.bus = OpenBus(c.I2CBus)
	b.dac = dac.New(b.bus, uint16(c.DACAddr), dac.DefaultSpan)
	debug.Log("board", "rpi open: %s, adc cv=%d tempo=%d", b.dac, c.ADC.CV, c.ADC.Tempo)
	return b, nil
}

// NowMicros is microseconds since Open
func (b *Board) NowMicros() uint64 {
	return uint64(time.Since(b.start).Microseconds())
}

// ReadAnalog samples an ADC channel
func (b *Board) ReadAnalog(ch hw.Channel) (uint16, error) {
	if ch < 0 || int(ch) >= len(b.adcCh) {
		return 0, fmt.Errorf("rpi: %w: %s", hw.ErrUnknownPin, ch)
	}
	b.adcMu.Lock()
	defer b.adcMu.Unlock()
	return b.adc.Read(b.adcCh[ch]), nil
}

// WriteDAC sends a code to the MCP4725
func (b *Board) WriteDAC(code uint16) error {
	return b.dac.Write(code)
}

// DAC returns the output converter
func (b *Board) DAC() *dac.Dev {
	return b.dac
}

// ReadPin returns a pin level
func (b *Board) ReadPin(p hw.Pin) bool {
	if p < 0 || p >= hw.NumPins {
		return false
	}
	return b.pins[p].Read() == gpio.High
}

// WritePin drives an output
func (b *Board) WritePin(p hw.Pin, high bool) {
	if p < 0 || p >= hw.NumPins || p.IsInput() {
		return
	}
	if high {
		b.pins[p].High()
	} else {
		b.pins[p].Low()
	}
}

// Watch reports edges of an input. Buttons report both edges with the level
// read when the interrupt is serviced. Pulse inputs report rising edges only:
// a short pulse can be low again by the time the level is read.
func (b *Board) Watch(p hw.Pin, fn func(hw.Edge)) error {
	if p < 0 || p >= hw.NumPins || !p.IsInput() {
		return hw.ErrUnknownPin
	}
	err := b.pins[p].Watch(watchEdge(p), func(pin *gpio.Pin) {
		fn(hw.Edge{Pin: p, Rising: isRising(p, pin.Read()), At: b.NowMicros()})
	})
	if err != nil {
		return fmt.Errorf("rpi: watch %s: %w", p, err)
	}
	return nil
}

func watchEdge(p hw.Pin) gpio.Edge {
	if p.IsPulse() {
		return gpio.EdgeRising
	}
	return gpio.EdgeBoth
}

func isRising(p hw.Pin, level gpio.Level) bool {
	return p.IsPulse() || level == gpio.High
}

// Close stops watches, floats the outputs and releases the buses
func (b *Board) Close() error {
	for p, pin := range b.pins {
		if hw.Pin(p).IsInput() {
			pin.Unwatch()
		} else {
			pin.Low()
			pin.Input()
		}
	}
	b.adc.Close()
	err := b.bus.Close()
	gpio.Close()
	return err
}
