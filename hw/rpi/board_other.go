//go:build !linux

package rpi

import (
	"cv-recorder/config"
	"cv-recorder/dac"
	"cv-recorder/hw"
)

// Board is unavailable off Linux
type Board struct{}

// Open always fails off Linux
func Open(c config.BoardConfig) (*Board, error) {
	return nil, ErrUnsupported
}

func (b *Board) NowMicros() uint64                     { return 0 }
func (b *Board) ReadAnalog(hw.Channel) (uint16, error) { return 0, ErrUnsupported }
func (b *Board) WriteDAC(uint16) error                 { return ErrUnsupported }
func (b *Board) DAC() *dac.Dev                         { return nil }
func (b *Board) ReadPin(hw.Pin) bool                   { return false }
func (b *Board) WritePin(hw.Pin, bool)                 {}
func (b *Board) Watch(hw.Pin, func(hw.Edge)) error     { return ErrUnsupported }
func (b *Board) Close() error                          { return nil }
