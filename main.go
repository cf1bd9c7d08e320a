package main

import (
	"context"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	gomidi "gitlab.com/gomidi/midi/v2"
	_ "gitlab.com/gomidi/midi/v2/drivers/rtmididrv"

	"cv-recorder/config"
	"cv-recorder/debug"
	"cv-recorder/hw"
	"cv-recorder/hw/rpi"
	"cv-recorder/hw/sim"
	"cv-recorder/midi"
	"cv-recorder/sequencer"
	"cv-recorder/theme"
	"cv-recorder/tui"
)

func main() {
	if err := run(); err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load(nil)
	if err != nil {
		return err
	}
	if cfg.Debug {
		if err := debug.Enable(); err != nil {
			return err
		}
		defer debug.Disable()
	}

	th := theme.New(nil)
	if cfg.Palette != "" {
		palette, err := theme.LoadGPL(cfg.Palette)
		if err != nil {
			return err
		}
		th = theme.New(palette)
	}

	// Board: the simulator gets an on-screen panel, real hardware is monitor only
	var (
		board hw.Board
		panel tui.Panel
	)
	switch cfg.Board.Backend {
	case config.BackendRPi:
		b, err := rpi.Open(cfg.Board)
		if err != nil {
			return err
		}
		defer b.Close()
		board = b
	default:
		b := sim.NewRealtime()
		board, panel = b, b
	}

	eng, err := sequencer.NewEngine(board, cfg.EngineOptions())
	if err != nil {
		return err
	}

	// MIDI step mirror, clock keyboard and Launchpad panel
	bridge := midi.NewBridge(eng, board.NowMicros, midi.Options{
		Out:       cfg.MIDI.Out,
		Channel:   uint8(cfg.MIDI.Channel - 1),
		ClockNote: uint8(cfg.MIDI.ClockNote),
		ModeNote:  uint8(cfg.MIDI.ModeNote),
	})
	status := "midi: launchpad panel on hot-plug"
	if err := bridge.OpenOut(); err != nil {
		status = err.Error()
	} else if cfg.MIDI.Out != "" {
		status = fmt.Sprintf("midi: mirroring steps to %s ch %d", cfg.MIDI.Out, cfg.MIDI.Channel)
	}
	eng.OnStep(bridge.OnStep)
	defer gomidi.CloseDriver()

	keyboardChannel := cfg.MIDI.Channel - 1
	deviceMgr := midi.NewDeviceManager(cfg.MIDI.In, keyboardChannel)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	eng.Start()
	go eng.Run(ctx)
	go deviceMgr.Run(ctx)
	go bridge.Run(ctx, deviceMgr)

	debug.Log("main", "backend=%s out=%q in=%q", cfg.Board.Backend, cfg.MIDI.Out, cfg.MIDI.In)

	m := tui.NewModel(eng, panel, th)
	m.Status = status
	p := tea.NewProgram(m, tea.WithAltScreen())
	_, err = p.Run()
	return err
}
