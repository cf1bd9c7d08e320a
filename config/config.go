package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/warthog618/config"
	"github.com/warthog618/config/blob"
	cfgjson "github.com/warthog618/config/blob/decoder/json"
	"github.com/warthog618/config/blob/loader/file"
	"github.com/warthog618/config/dict"
	"github.com/warthog618/config/env"
	"github.com/warthog618/config/pflag"

	"cv-recorder/hw"
)

// Backend selects the board implementation
type Backend string

const (
	BackendSim Backend = "sim"
	BackendRPi Backend = "rpi"
)

// EnvPrefix prefixes environment overrides, e.g. CVREC_TEMPO_FAST=100ms
const EnvPrefix = "CVREC_"

// Duration is a time.Duration stored as a string like "20ms"
type Duration time.Duration

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

func (d *Duration) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// Std returns d as a time.Duration
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// ADCConfig wires the MCP3208 over bit-banged SPI
type ADCConfig struct {
	Tclk  Duration `json:"tclk"`
	Sclk  int      `json:"sclk"`
	Ssz   int      `json:"ssz"`
	Mosi  int      `json:"mosi"`
	Miso  int      `json:"miso"`
	CV    int      `json:"cv"`    // ADC channel of the sampled input
	Tempo int      `json:"tempo"` // ADC channel of the tempo pot
}

// BoardConfig selects and wires the hardware
type BoardConfig struct {
	Backend Backend        `json:"backend"`
	I2CBus  int            `json:"i2cbus"`
	DACAddr int            `json:"dacaddr"`
	Pins    map[string]int `json:"pins"` // pin name -> BCM number
	ADC     ADCConfig      `json:"adc"`
}

// TempoConfig sets the internal clock range
type TempoConfig struct {
	Fast       Duration `json:"fast"`
	Slow       Duration `json:"slow"`
	Hysteresis Duration `json:"hysteresis"`
	Interval   Duration `json:"interval"`
	Initial    Duration `json:"initial"`
	Invert     bool     `json:"invert"`
}

// InputConfig sets edge decoding
type InputConfig struct {
	Debounce    Duration `json:"debounce"`
	LongPress   bool     `json:"longpress"`
	LongPressMs Duration `json:"longpressms"`
}

// StepConfig sets step pipeline timing
type StepConfig struct {
	Settle Duration `json:"settle"`
	Pulse  Duration `json:"pulse"`
	Flash  Duration `json:"flash"`
}

// QuantConfig sets the DAC scaling
type QuantConfig struct {
	Midpoint int `json:"midpoint"`
	Octave   int `json:"octave"` // codes per octave
	Max      int `json:"max"`
}

// MIDIConfig names the MIDI ports. Empty ports disable that direction.
type MIDIConfig struct {
	Out       string `json:"out,omitempty"`
	In        string `json:"in,omitempty"`
	Channel   int    `json:"channel"` // 1-16
	ClockNote int    `json:"clocknote"`
	ModeNote  int    `json:"modenote"`
}

// Config is the main configuration structure
type Config struct {
	Board   BoardConfig `json:"board"`
	Tempo   TempoConfig `json:"tempo"`
	Input   InputConfig `json:"input"`
	Step    StepConfig  `json:"step"`
	Quant   QuantConfig `json:"quant"`
	MIDI    MIDIConfig  `json:"midi"`
	Loop    Duration    `json:"loop"`
	Palette string      `json:"palette,omitempty"` // GIMP palette for the simulator, empty for built-in
	Debug   bool        `json:"debug"`
}

// DefaultPins is the stock Raspberry Pi wiring
var DefaultPins = map[string]int{
	"trigbutton": 17, "modebutton": 27, "trigpulse": 22, "modepulse": 23,
	"extclock": 24, "potmode": 25, "quanta": 5, "quantb": 6,
	"muxaddr0": 12, "muxaddr1": 13, "muxaddr2": 16, "muxinh0": 19, "muxinh1": 20,
	"trigout": 21, "statusled": 26, "recled": 4,
}

// defaults is the lowest-priority config layer
func defaults() map[string]interface{} {
	pins := make(map[string]interface{}, len(DefaultPins))
	for k, v := range DefaultPins {
		pins[k] = v
	}
	return map[string]interface{}{
		"board": map[string]interface{}{
			"backend": string(BackendSim),
			"i2cbus":  1,
			"dacaddr": 0x62,
			"pins":    pins,
			"adc": map[string]interface{}{
				"tclk":  "500ns",
				"sclk":  11,
				"ssz":   8,
				"mosi":  10,
				"miso":  9,
				"cv":    0,
				"tempo": 1,
			},
		},
		"tempo": map[string]interface{}{
			"fast":       "142ms",
			"slow":       "3s",
			"hysteresis": "20ms",
			"interval":   "100ms",
			"initial":    "500ms",
			"invert":     true,
		},
		"input": map[string]interface{}{
			"debounce":    "20ms",
			"longpress":   true,
			"longpressms": "600ms",
		},
		"step": map[string]interface{}{
			"settle": "50us",
			"pulse":  "10ms",
			"flash":  "20ms",
		},
		"quant": map[string]interface{}{
			"midpoint": 2048,
			"octave":   205,
			"max":      4095,
		},
		"midi": map[string]interface{}{
			"out":       "",
			"in":        "",
			"channel":   1,
			"clocknote": 36,
			"modenote":  37,
		},
		"loop":    "1ms",
		"palette": "",
		"debug":   false,
	}
}

// DefaultConfig returns the built-in defaults
func DefaultConfig() *Config {
	c, err := fromConfig(config.New(dict.New(dict.WithMap(defaults()))))
	if err != nil {
		// the defaults are static and always decode
		panic(err)
	}
	return c
}

// ConfigDir returns the config directory path
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "cv-recorder"), nil
}

// ConfigPath returns the full path to config.json
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

// wholeValue keeps flag and environment values as single strings. MIDI port
// names contain both ':' and ','.
type wholeValue struct{}

func (wholeValue) Split(v string) interface{} { return v }

// Load layers flags over environment over a JSON file over defaults.
// args are the command line without the program name; nil uses os.Args.
// An explicit --config-file must exist, the default file is optional.
func Load(args []string) (*Config, error) {
	def := dict.New(dict.WithMap(defaults()))

	popts := []pflag.Option{
		pflag.WithFlags([]pflag.Flag{
			{Short: 'c', Name: "config-file"},
			{Short: 'd', Name: "debug", Options: pflag.IsBool},
		}),
		pflag.WithListSplitter(wholeValue{}),
	}
	if args != nil {
		popts = append(popts, pflag.WithCommandLine(args))
	}

	// highest priority sources first
	cfg := config.New(
		config.NewStack(
			pflag.New(popts...),
			env.New(env.WithEnvPrefix(EnvPrefix), env.WithListSplitter(wholeValue{}))),
		config.WithDefault(def))

	if v, err := cfg.Get("config.file"); err == nil {
		path := v.String()
		fget, err := loadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config file %s: %w", path, err)
		}
		cfg.Append(fget)
	} else if path, err := ConfigPath(); err == nil {
		fget, err := loadFile(path)
		switch {
		case err == nil:
			cfg.Append(fget)
		case !errors.Is(err, fs.ErrNotExist):
			return nil, fmt.Errorf("config file %s: %w", path, err)
		}
	}

	return fromConfig(cfg)
}

// loadFile reads a JSON config file, reporting load and decode errors
func loadFile(path string) (config.Getter, error) {
	var lerr error
	g := blob.New(file.New(path), cfgjson.NewDecoder(),
		blob.WithErrorHandler(func(err error) { lerr = err }))
	if lerr != nil {
		return nil, lerr
	}
	return g, nil
}

// fromConfig decodes every known key; a missing or malformed value is an error
func fromConfig(cfg *config.Config) (c *Config, err error) {
	defer func() {
		if r := recover(); r != nil {
			c = nil
			err = fmt.Errorf("config: %v", r)
		}
	}()

	m := cfg.GetConfig("", config.WithMust)
	dur := func(k string) Duration { return Duration(m.MustGet(k).Duration()) }
	num := func(k string) int { return m.MustGet(k).Int() }
	str := func(k string) string { return m.MustGet(k).String() }
	flag := func(k string) bool { return m.MustGet(k).Bool() }

	c = &Config{
		Board: BoardConfig{
			Backend: Backend(str("board.backend")),
			I2CBus:  num("board.i2cbus"),
			DACAddr: num("board.dacaddr"),
			Pins:    make(map[string]int, hw.NumPins),
			ADC: ADCConfig{
				Tclk:  dur("board.adc.tclk"),
				Sclk:  num("board.adc.sclk"),
				Ssz:   num("board.adc.ssz"),
				Mosi:  num("board.adc.mosi"),
				Miso:  num("board.adc.miso"),
				CV:    num("board.adc.cv"),
				Tempo: num("board.adc.tempo"),
			},
		},
		Tempo: TempoConfig{
			Fast:       dur("tempo.fast"),
			Slow:       dur("tempo.slow"),
			Hysteresis: dur("tempo.hysteresis"),
			Interval:   dur("tempo.interval"),
			Initial:    dur("tempo.initial"),
			Invert:     flag("tempo.invert"),
		},
		Input: InputConfig{
			Debounce:    dur("input.debounce"),
			LongPress:   flag("input.longpress"),
			LongPressMs: dur("input.longpressms"),
		},
		Step: StepConfig{
			Settle: dur("step.settle"),
			Pulse:  dur("step.pulse"),
			Flash:  dur("step.flash"),
		},
		Quant: QuantConfig{
			Midpoint: num("quant.midpoint"),
			Octave:   num("quant.octave"),
			Max:      num("quant.max"),
		},
		MIDI: MIDIConfig{
			Out:       str("midi.out"),
			In:        str("midi.in"),
			Channel:   num("midi.channel"),
			ClockNote: num("midi.clocknote"),
			ModeNote:  num("midi.modenote"),
		},
		Loop:    dur("loop"),
		Palette: str("palette"),
		Debug:   flag("debug"),
	}
	for _, name := range hw.PinNames() {
		c.Board.Pins[name] = num("board.pins." + name)
	}
	return c, c.Validate()
}

// ErrInvalid is wrapped by Validate failures
var ErrInvalid = errors.New("invalid config")

// Validate checks values the engine cannot work with
func (c *Config) Validate() error {
	switch {
	case c.Board.Backend != BackendSim && c.Board.Backend != BackendRPi:
		return fmt.Errorf("%w: board.backend %q", ErrInvalid, c.Board.Backend)
	case c.Tempo.Fast <= 0 || c.Tempo.Slow <= c.Tempo.Fast:
		return fmt.Errorf("%w: tempo.fast %v must be below tempo.slow %v", ErrInvalid, c.Tempo.Fast.Std(), c.Tempo.Slow.Std())
	case c.Tempo.Initial < c.Tempo.Fast/2 || c.Tempo.Initial > c.Tempo.Slow/2:
		// the tempo delay is half a beat
		return fmt.Errorf("%w: tempo.initial %v outside %v..%v", ErrInvalid,
			c.Tempo.Initial.Std(), (c.Tempo.Fast / 2).Std(), (c.Tempo.Slow / 2).Std())
	case c.Tempo.Interval <= 0:
		return fmt.Errorf("%w: tempo.interval %v", ErrInvalid, c.Tempo.Interval.Std())
	case c.Tempo.Hysteresis < 0:
		return fmt.Errorf("%w: tempo.hysteresis %v", ErrInvalid, c.Tempo.Hysteresis.Std())
	case c.Input.Debounce <= 0 || c.Input.LongPressMs <= c.Input.Debounce:
		return fmt.Errorf("%w: input.debounce %v must be positive and below input.longpressms %v",
			ErrInvalid, c.Input.Debounce.Std(), c.Input.LongPressMs.Std())
	case c.Step.Settle < 0 || c.Step.Pulse <= 0 || c.Step.Flash <= 0:
		return fmt.Errorf("%w: step timing settle=%v pulse=%v flash=%v", ErrInvalid,
			c.Step.Settle.Std(), c.Step.Pulse.Std(), c.Step.Flash.Std())
	case c.Quant.Max <= 0 || c.Quant.Midpoint < 0 || c.Quant.Midpoint > c.Quant.Max:
		return fmt.Errorf("%w: quant.midpoint %d outside 0..%d", ErrInvalid, c.Quant.Midpoint, c.Quant.Max)
	case c.Quant.Octave <= 0:
		return fmt.Errorf("%w: quant.octave %d", ErrInvalid, c.Quant.Octave)
	case c.MIDI.Channel < 1 || c.MIDI.Channel > 16:
		return fmt.Errorf("%w: midi.channel %d", ErrInvalid, c.MIDI.Channel)
	case c.Loop <= 0:
		return fmt.Errorf("%w: loop %v", ErrInvalid, c.Loop.Std())
	}
	return nil
}

// Save writes the config to disk
func (c *Config) Save() error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	return c.SaveAs(path)
}

// SaveAs writes the config to path
func (c *Config) SaveAs(path string) error {
	// Create directory if it doesn't exist
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}
