package midi

import "cv-recorder/sequencer"

// Action is what a panel pad does
type Action int

const (
	ActionNone Action = iota
	ActionStep
	ActionMode
	ActionScale
	ActionRange
)

func (a Action) String() string {
	switch a {
	case ActionStep:
		return "step"
	case ActionMode:
		return "mode"
	case ActionScale:
		return "scale"
	case ActionRange:
		return "range"
	}
	return "none"
}

// Launchpad panel layout: steps 0-7 on grid row 1, steps 8-15 on row 0,
// panel indicators down the right column, actions along the top row.
const (
	panelStepRowHigh = 1
	panelStepRowLow  = 0
	panelTopRow      = 8
	panelSideCol     = 8
)

var topRowActions = [8]Action{ActionStep, ActionMode, ActionScale, ActionRange}

// PadAction returns the action for a pad press
func PadAction(row, col int) Action {
	if row == panelTopRow && col >= 0 && col < len(topRowActions) {
		return topRowActions[col]
	}
	return ActionNone
}

// StepPad returns the grid position of a step index
func StepPad(index int) (row, col int) {
	if index < 8 {
		return panelStepRowHigh, index
	}
	return panelStepRowLow, index - 8
}

// PanelUpdates maps engine indicators onto grid LEDs
func PanelUpdates(leds []sequencer.LEDState) []LEDUpdate {
	updates := make([]LEDUpdate, 0, len(leds)+len(topRowActions))
	for _, l := range leds {
		u := LEDUpdate{Color: l.Color, Channel: l.Channel}
		switch {
		case l.Index < sequencer.MemoryLength:
			u.Row, u.Col = StepPad(l.Index)
		default:
			// status, record, clock from the top of the right column
			u.Row, u.Col = 7-(l.Index-sequencer.MemoryLength), panelSideCol
		}
		updates = append(updates, u)
	}
	for col, a := range topRowActions {
		if a == ActionNone {
			continue
		}
		updates = append(updates, LEDUpdate{Row: panelTopRow, Col: col, Color: [3]uint8{30, 30, 30}})
	}
	return updates
}

// diffUpdates returns the updates in next that differ from prev
func diffUpdates(prev map[[2]int]LEDUpdate, next []LEDUpdate) []LEDUpdate {
	var changed []LEDUpdate
	for _, u := range next {
		key := [2]int{u.Row, u.Col}
		if old, ok := prev[key]; ok && old == u {
			continue
		}
		prev[key] = u
		changed = append(changed, u)
	}
	return changed
}
