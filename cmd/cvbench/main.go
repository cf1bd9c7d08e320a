package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
	_ "gitlab.com/gomidi/midi/v2/drivers/rtmididrv"

	"cv-recorder/config"
	"cv-recorder/dac"
	"cv-recorder/hw"
	"cv-recorder/hw/rpi"
	"cv-recorder/hw/sim"
	cvmidi "cv-recorder/midi"
	"cv-recorder/mux"
	"cv-recorder/sequencer"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		return
	}

	var err error
	switch os.Args[1] {
	case "list":
		listPorts()
	case "leds":
		err = testLEDs()
	case "dac":
		err = sweepDAC()
	case "adc":
		err = readADC()
	case "mux":
		err = scanMux()
	case "init":
		err = initConfig()
	case "sim":
		err = simulate()
	default:
		usage()
	}
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Println("cv-recorder bench tools")
	fmt.Println("")
	fmt.Println("Commands:")
	fmt.Println("  list  - List all MIDI ports")
	fmt.Println("  leds  - Show the panel layout on a Launchpad")
	fmt.Println("  dac   - Sweep the DAC from 0 to full scale")
	fmt.Println("  adc   - Print the CV and tempo inputs")
	fmt.Println("  mux   - Read every pot through the multiplexers")
	fmt.Println("  init  - Write the default config file")
	fmt.Println("  sim   - Record and play back a ramp on the simulator, print the state")
	fmt.Println("")
	fmt.Println("Hardware commands use board.backend from the config (CVREC_BOARD_BACKEND=rpi).")
}

func listPorts() {
	fmt.Println("=== MIDI Input Ports ===")
	fmt.Println("(waiting up to 3 seconds...)")

	type result struct {
		ins  []drivers.In
		outs []drivers.Out
	}
	ch := make(chan result, 1)
	go func() {
		ch <- result{ins: midi.GetInPorts(), outs: midi.GetOutPorts()}
	}()

	select {
	case r := <-ch:
		for i, p := range r.ins {
			fmt.Printf("  %d: %s\n", i, p.String())
		}
		fmt.Println("\n=== MIDI Output Ports ===")
		for i, p := range r.outs {
			fmt.Printf("  %d: %s\n", i, p.String())
		}
	case <-time.After(3 * time.Second):
		fmt.Println("\nTIMEOUT! The MIDI driver is not answering.")
	}
}

// testLEDs lights the panel for a fresh engine on the first Launchpad
func testLEDs() error {
	var in drivers.In
	var out drivers.Out
	for _, p := range midi.GetInPorts() {
		if isLaunchpad(p.String()) {
			in = p
			break
		}
	}
	for _, p := range midi.GetOutPorts() {
		if isLaunchpad(p.String()) {
			out = p
			break
		}
	}
	if in == nil || out == nil {
		fmt.Println("No Launchpad found")
		return nil
	}
	defer midi.CloseDriver()

	lp, err := cvmidi.NewLaunchpadController(out.String(), in, out)
	if err != nil {
		return err
	}
	defer lp.Close()

	eng, err := sequencer.NewEngine(sim.New(), sequencer.DefaultOptions())
	if err != nil {
		return err
	}
	eng.Start()
	snap := eng.Snapshot()
	if err := lp.SetLEDBatch(cvmidi.PanelUpdates(snap.RenderLEDs(eng.Quantizer()))); err != nil {
		return err
	}

	fmt.Printf("Panel shown on %s. Press pads, Enter to clear...\n", out.String())
	go func() {
		for p := range lp.PadEvents() {
			if p.Velocity > 0 {
				fmt.Printf("  pad %d,%d -> %s\n", p.Row, p.Col, cvmidi.PadAction(p.Row, p.Col))
			}
		}
	}()
	fmt.Scanln()
	return nil
}

func isLaunchpad(name string) bool {
	name = strings.ToLower(name)
	return strings.Contains(name, "launchpad") && strings.Contains(name, "midi")
}

// openBoard opens the configured backend. The simulator is only useful
// for dry runs of the bench commands.
func openBoard() (hw.Board, func(), error) {
	cfg, err := config.Load(nil)
	if err != nil {
		return nil, nil, err
	}
	if cfg.Board.Backend != config.BackendRPi {
		fmt.Println("(simulator backend)")
		return sim.New(), func() {}, nil
	}
	b, err := rpi.Open(cfg.Board)
	if err != nil {
		return nil, nil, err
	}
	return b, func() { b.Close() }, nil
}

// dacStep sweeps full scale in about 40 writes
const dacStep = 104

func sweepDAC() error {
	board, closeBoard, err := openBoard()
	if err != nil {
		return err
	}
	defer closeBoard()

	for code := 0; code <= dac.MaxCode; code += dacStep {
		if err := board.WriteDAC(uint16(code)); err != nil {
			return fmt.Errorf("code %d: %w", code, err)
		}
		fmt.Printf("  %4d  %s\n", code, dac.DefaultSpan.Voltage(uint16(code)))
		time.Sleep(250 * time.Millisecond)
	}
	return board.WriteDAC(dac.MaxCode / 2)
}

func readADC() error {
	board, closeBoard, err := openBoard()
	if err != nil {
		return err
	}
	defer closeBoard()

	for i := 0; i < 20; i++ {
		cv, err := board.ReadAnalog(hw.ChannelCV)
		if err != nil {
			return err
		}
		tp, err := board.ReadAnalog(hw.ChannelTempo)
		if err != nil {
			return err
		}
		fmt.Printf("  cv %4d  tempo %4d\n", cv, tp)
		time.Sleep(200 * time.Millisecond)
	}
	return nil
}

func scanMux() error {
	board, closeBoard, err := openBoard()
	if err != nil {
		return err
	}
	defer closeBoard()

	m := mux.NewController(board, mux.DefaultSettle)
	defer m.Reset()
	for i := 0; i < mux.Channels; i++ {
		addr := m.Select(i)
		time.Sleep(m.Settle())
		v, err := board.ReadAnalog(hw.ChannelCV)
		if err != nil {
			return err
		}
		fmt.Printf("  pot %2d (bank %d) %4d\n", i, addr.Bank(), v)
	}
	return nil
}

func initConfig() error {
	path, err := config.ConfigPath()
	if err != nil {
		return err
	}
	if _, err := os.Stat(path); err == nil {
		fmt.Printf("%s already exists\n", path)
		return nil
	}
	if err := config.DefaultConfig().Save(); err != nil {
		return err
	}
	fmt.Printf("Wrote %s\n", path)
	return nil
}

// simulate records a rising ramp on an external clock, plays it back and
// prints the resulting state
func simulate() error {
	b := sim.New()
	b.SetInput(hw.PinExtClock, true)
	eng, err := sequencer.NewEngine(b, sequencer.DefaultOptions())
	if err != nil {
		return err
	}
	eng.Start()

	tick := func(d time.Duration) {
		for t := time.Duration(0); t < d; t += time.Millisecond {
			b.Advance(time.Millisecond)
			eng.Tick()
		}
	}
	pulse := func(p hw.Pin) {
		b.SetInput(p, true)
		tick(time.Millisecond)
		b.SetInput(p, false)
		tick(15 * time.Millisecond)
	}

	tick(time.Millisecond)
	for i := 0; i < sequencer.MemoryLength; i++ {
		b.SetCV(uint16(i * 256))
		pulse(hw.PinTriggerPulse)
	}
	pulse(hw.PinModePulse)
	for i := 0; i < sequencer.MemoryLength; i++ {
		pulse(hw.PinTriggerPulse)
	}

	snap := eng.Snapshot()
	out, err := json.MarshalIndent(snap.State, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	fmt.Printf("dac writes: %d\n", b.DACCount())
	return nil
}
