package tui

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"cv-recorder/dac"
	"cv-recorder/hw"
	"cv-recorder/quantizer"
	"cv-recorder/sequencer"
	"cv-recorder/tempo"
	"cv-recorder/theme"
	"cv-recorder/widgets"
)

// Panel is the simulated front panel: switches, buttons and pots.
// hw/sim.Board implements it.
type Panel interface {
	Press(p hw.Pin, hold time.Duration)
	Toggle(p hw.Pin)
	SetInput(p hw.Pin, high bool)
	ReadPin(p hw.Pin) bool
	SetCV(code uint16)
	CV() uint16
	SetTempo(code uint16)
	Tempo() uint16
}

// Hold times for simulated presses
const (
	shortPress = 80 * time.Millisecond
	longPress  = 900 * time.Millisecond
	pulseWidth = 5 * time.Millisecond

	potStep = 64
)

type Model struct {
	Engine *sequencer.Engine
	Panel  Panel // nil when running on real hardware: monitor only
	Theme  *theme.Theme
	Span   dac.Span
	Status string // MIDI status line

	quant    quantizer.Quantizer
	quitting bool
}

type UpdateMsg struct{}

type tickMsg time.Time

func NewModel(eng *sequencer.Engine, panel Panel, th *theme.Theme) Model {
	return Model{
		Engine: eng,
		Panel:  panel,
		Theme:  th,
		Span:   dac.DefaultSpan,
		quant:  eng.Quantizer(),
	}
}

func ListenForUpdates(eng *sequencer.Engine) tea.Cmd {
	return func() tea.Msg {
		<-eng.UpdateChan
		return UpdateMsg{}
	}
}

// refresh redraws the beat LED between engine updates
func refresh() tea.Cmd {
	return tea.Tick(50*time.Millisecond, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(ListenForUpdates(m.Engine), refresh())
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			m.quitting = true
			return m, tea.Quit
		default:
			m.handleKey(msg.String())
		}

	case UpdateMsg:
		return m, ListenForUpdates(m.Engine)

	case tickMsg:
		return m, refresh()
	}

	return m, nil
}

// handleKey works the panel. Without a panel only the engine requests work.
func (m Model) handleKey(key string) {
	if m.Panel == nil {
		switch key {
		case "t", " ":
			m.Engine.RequestStep()
		case "m", "p":
			m.Engine.RequestModeToggle()
		case "M":
			m.Engine.RequestScaleToggle()
		case "r":
			m.Engine.RequestRangeToggle()
		}
		return
	}

	switch key {
	case "t":
		m.Panel.Press(hw.PinTriggerButton, shortPress)
	case "m":
		m.Panel.Press(hw.PinModeButton, shortPress)
	case "M":
		m.Panel.Press(hw.PinModeButton, longPress)
	case " ":
		m.Panel.Press(hw.PinTriggerPulse, pulseWidth)
	case "p":
		m.Panel.Press(hw.PinModePulse, pulseWidth)
	case "e":
		m.Panel.Toggle(hw.PinExtClock)
	case "o":
		m.Panel.Toggle(hw.PinPotMode)
	case "z":
		m.cycleQuantize()
	case "up", "k":
		m.Panel.SetCV(nudge(m.Panel.CV(), potStep, m.quant.Max))
	case "down", "j":
		m.Panel.SetCV(nudge(m.Panel.CV(), -potStep, m.quant.Max))
	case "right", "l":
		m.Panel.SetTempo(nudge(m.Panel.Tempo(), 2*potStep, m.quant.Max))
	case "left", "h":
		m.Panel.SetTempo(nudge(m.Panel.Tempo(), -2*potStep, m.quant.Max))
	case "0":
		m.Panel.SetCV(uint16(m.quant.Midpoint))
	}
}

// cycleQuantize steps the 3-position selector: off, chromatic, scale
func (m Model) cycleQuantize() {
	a, b := m.Panel.ReadPin(hw.PinQuantizeA), m.Panel.ReadPin(hw.PinQuantizeB)
	switch {
	case !a && !b:
		m.Panel.SetInput(hw.PinQuantizeA, true)
	case a:
		m.Panel.SetInput(hw.PinQuantizeA, false)
		m.Panel.SetInput(hw.PinQuantizeB, true)
	default:
		m.Panel.SetInput(hw.PinQuantizeB, false)
	}
}

func nudge(v uint16, d int, max int32) uint16 {
	n := int32(v) + int32(d)
	if n < 0 {
		return 0
	}
	if n > max {
		return uint16(max)
	}
	return uint16(n)
}

func (m Model) View() string {
	if m.quitting {
		return ""
	}
	snap := m.Engine.Snapshot()

	headerStyle := lipgloss.NewStyle().Foreground(m.Theme.Accent())
	dimStyle := lipgloss.NewStyle().Foreground(m.Theme.Muted())
	modeStyle := lipgloss.NewStyle().Bold(true).Foreground(m.Theme.Mode(snap.Recording))

	mode := "PLAY"
	if snap.Recording {
		mode = "REC "
	}
	clock := fmt.Sprintf("INT %3.0fbpm", bpm(snap.TempoDelayMs))
	if snap.ExternalTrigger {
		clock = "EXT clock  "
	}
	header := headerStyle.Render("cv-recorder  ") + modeStyle.Render(mode) +
		headerStyle.Render(fmt.Sprintf("  %s  step:%02d", clock, snap.MemoryIndex))

	var out strings.Builder
	out.WriteString("\n")
	out.WriteString(header)
	out.WriteString("\n\n")
	out.WriteString(m.renderSteps(snap))
	out.WriteString("\n\n")
	out.WriteString(m.renderPanel(snap))
	out.WriteString("\n\n")
	if m.Panel != nil {
		out.WriteString(dimStyle.Render(m.renderPots()))
		out.WriteString("\n\n")
	}
	out.WriteString(dimStyle.Render(widgets.RenderKeyHelp(m.keyHelp())))
	if m.Status != "" {
		out.WriteString("\n\n")
		out.WriteString(dimStyle.Render(m.Status))
	}
	return out.String()
}

// renderSteps draws the step LEDs over the stored codes and their notes
func (m Model) renderSteps(snap sequencer.Snapshot) string {
	leds := snap.RenderLEDs(m.quant)
	var row, codes, notes strings.Builder
	for i := 0; i < sequencer.MemoryLength; i++ {
		sym := m.Theme.Symbols.StepStored
		switch {
		case i == snap.MemoryIndex:
			sym = m.Theme.Symbols.StepCursor
		case snap.Memory[i] == 0:
			sym = m.Theme.Symbols.StepEmpty
		}
		row.WriteString(fmt.Sprintf("%5s", widgets.RenderSymbol(leds[i].Color, sym)))
		codes.WriteString(fmt.Sprintf("%5d", snap.Memory[i]))
		notes.WriteString(fmt.Sprintf("%5s", noteName(m.quant.Semitones(snap.Memory[i]))))
	}
	return row.String() + "\n" + codes.String() + "\n" + notes.String()
}

func (m Model) renderPanel(snap sequencer.Snapshot) string {
	leds := snap.RenderLEDs(m.quant)
	led := func(idx int, label string) string {
		sym := m.Theme.Symbols.LEDOff
		if leds[idx].Color != ([3]uint8{}) {
			sym = m.Theme.Symbols.LEDOn
		}
		return widgets.RenderSymbol(leds[idx].Color, sym) + " " + label
	}

	potMode := "cv"
	if snap.PotMode {
		potMode = "pots " + snap.PotRange.String()
	}
	lines := []string{
		fmt.Sprintf("%s   %s   %s", led(sequencer.IndicatorStatus, "status"),
			led(sequencer.IndicatorRecord, "rec"), led(sequencer.IndicatorClock, "clock")),
		fmt.Sprintf("quantize %-10s scale %-14s input %s", snap.QuantizeMode, snap.ActiveScale, potMode),
		fmt.Sprintf("in %4d  out %4d  %s   steps %d  dac errors %d  dropped edges %d",
			snap.LastSample, snap.LastOutput, m.Span.Voltage(snap.LastOutput),
			snap.Steps, snap.DACErrors, snap.DroppedEdges),
	}
	return strings.Join(lines, "\n")
}

func (m Model) renderPots() string {
	max := int(m.quant.Max)
	return fmt.Sprintf("cv    %s %4d\ntempo %s %4d",
		widgets.RenderMeter(int(m.Panel.CV()), max, 32), m.Panel.CV(),
		widgets.RenderMeter(int(m.Panel.Tempo()), max, 32), m.Panel.Tempo())
}

func (m Model) keyHelp() []widgets.KeySection {
	if m.Panel == nil {
		return []widgets.KeySection{{Keys: []widgets.KeyBinding{
			{Key: "t / space", Desc: "step"},
			{Key: "m / p", Desc: "record / play"},
			{Key: "M", Desc: "next scale"},
			{Key: "r", Desc: "next pot range"},
			{Key: "esc", Desc: "quit"},
		}}}
	}
	return []widgets.KeySection{
		{Title: "Buttons", Keys: []widgets.KeyBinding{
			{Key: "t", Desc: "trigger button (pot mode: range)"},
			{Key: "m / M", Desc: "mode button short / long"},
			{Key: "space / p", Desc: "trigger / mode pulse"},
		}},
		{Title: "Switches", Keys: []widgets.KeyBinding{
			{Key: "e", Desc: "external clock"},
			{Key: "o", Desc: "pot mode"},
			{Key: "z", Desc: "quantize off/chromatic/scale"},
		}},
		{Title: "Pots", Keys: []widgets.KeyBinding{
			{Key: "up/down", Desc: "cv (0 centers)"},
			{Key: "left/right", Desc: "tempo"},
			{Key: "esc", Desc: "quit"},
		}},
	}
}

var noteNames = [12]string{"C", "C#", "D", "D#", "E", "F", "F#", "G", "G#", "A", "A#", "B"}

// noteName names a semitone offset from C4
func noteName(semitones int32) string {
	octave, note := quantizer.SplitOctave(semitones)
	return fmt.Sprintf("%s%d", noteNames[note], octave+4)
}

func bpm(halfPeriodMs uint32) float64 {
	return tempo.BPMFromHalfPeriod(halfPeriodMs)
}
