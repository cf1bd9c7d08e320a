package dac

import (
	"bytes"
	"errors"
	"testing"

	"periph.io/x/conn/v3/i2c/i2ctest"
	"periph.io/x/conn/v3/physic"
)

func TestFrame(t *testing.T) {
	tests := []struct {
		value uint16
		want  [3]byte
	}{
		{0, [3]byte{0x40, 0x00, 0x00}},
		{0xABC, [3]byte{0x40, 0xAB, 0xC0}},
		{2048, [3]byte{0x40, 0x80, 0x00}},
		{4095, [3]byte{0x40, 0xFF, 0xF0}},
		{17, [3]byte{0x40, 0x01, 0x10}},
	}
	for _, tt := range tests {
		got, err := Frame(tt.value)
		if err != nil {
			t.Fatalf("Frame(%d): %v", tt.value, err)
		}
		if got != tt.want {
			t.Errorf("Frame(%d) = % x, want % x", tt.value, got, tt.want)
		}
	}

	if _, err := Frame(4096); !errors.Is(err, ErrRange) {
		t.Errorf("Frame(4096) error = %v, want ErrRange", err)
	}
}

func TestDevWrite(t *testing.T) {
	rec := &i2ctest.Record{}
	d := New(rec, DefaultAddress, DefaultSpan)

	if err := d.Write(0xABC); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if len(rec.Ops) != 1 {
		t.Fatalf("recorded %d transfers, want 1", len(rec.Ops))
	}
	op := rec.Ops[0]
	if op.Addr != DefaultAddress {
		t.Errorf("addr = %#x, want %#x", op.Addr, DefaultAddress)
	}
	if !bytes.Equal(op.W, []byte{0x40, 0xAB, 0xC0}) {
		t.Errorf("frame = % x", op.W)
	}
	if d.Last() != 0xABC || d.Writes() != 1 {
		t.Errorf("Last=%d Writes=%d", d.Last(), d.Writes())
	}
}

type failingBus struct{}

var errNack = errors.New("nack")

func (failingBus) String() string                    { return "failing" }
func (failingBus) Tx(addr uint16, w, r []byte) error { return errNack }
func (failingBus) SetSpeed(physic.Frequency) error   { return nil }

func TestDevWriteErrorNotRetried(t *testing.T) {
	d := New(failingBus{}, DefaultAddress, DefaultSpan)
	err := d.Write(100)
	if !errors.Is(err, errNack) {
		t.Fatalf("Write error = %v, want wrapped nack", err)
	}
	if d.Writes() != 0 || d.Last() != 0 {
		t.Error("failed write should not update state")
	}
}

func TestSpanVoltage(t *testing.T) {
	if got := DefaultSpan.Voltage(0); got != -10*physic.Volt {
		t.Errorf("Voltage(0) = %s", got)
	}
	if got := DefaultSpan.Voltage(MaxCode); got != 10*physic.Volt {
		t.Errorf("Voltage(max) = %s", got)
	}
	mid := DefaultSpan.Voltage(2048)
	if mid < 0 || mid > 5*physic.MilliVolt {
		t.Errorf("Voltage(2048) = %s, want just above 0V", mid)
	}
}
