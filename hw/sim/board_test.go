package sim

import (
	"testing"
	"time"

	"cv-recorder/hw"
	"cv-recorder/mux"
)

func TestSetInputReportsEdges(t *testing.T) {
	b := New()
	var edges []hw.Edge
	if err := b.Watch(hw.PinTriggerButton, func(e hw.Edge) { edges = append(edges, e) }); err != nil {
		t.Fatalf("Watch: %v", err)
	}

	b.Advance(3 * time.Millisecond)
	b.SetInput(hw.PinTriggerButton, true)
	b.SetInput(hw.PinTriggerButton, true) // no change, no edge
	b.Advance(time.Millisecond)
	b.SetInput(hw.PinTriggerButton, false)

	if len(edges) != 2 {
		t.Fatalf("got %d edges, want 2", len(edges))
	}
	if !edges[0].Rising || edges[0].At != 3000 {
		t.Errorf("first edge = %+v", edges[0])
	}
	if edges[1].Rising || edges[1].At != 4000 {
		t.Errorf("second edge = %+v", edges[1])
	}
}

func TestWatchRejectsOutputs(t *testing.T) {
	b := New()
	if err := b.Watch(hw.PinTriggerOut, func(hw.Edge) {}); err == nil {
		t.Error("watching an output should fail")
	}
}

func TestPotBankFollowsMux(t *testing.T) {
	b := New()
	var pots [mux.Channels]uint16
	for i := range pots {
		pots[i] = uint16(100 * (i + 1))
	}
	b.AttachPots(pots)

	c := mux.NewController(b, 0)
	for i := 0; i < mux.Channels; i++ {
		c.Select(i)
		got, err := b.ReadAnalog(hw.ChannelCV)
		if err != nil {
			t.Fatalf("ReadAnalog: %v", err)
		}
		if got != pots[i] {
			t.Errorf("index %d read %d, want %d", i, got, pots[i])
		}
	}
}

func TestBusFault(t *testing.T) {
	b := New()
	b.InjectBusFault(true)
	if err := b.WriteDAC(100); err != ErrBus {
		t.Errorf("WriteDAC error = %v, want ErrBus", err)
	}
	b.InjectBusFault(false)
	if err := b.WriteDAC(100); err != nil {
		t.Errorf("WriteDAC: %v", err)
	}
	if code, ok := b.LastDAC(); !ok || code != 100 {
		t.Errorf("LastDAC = %d, %v", code, ok)
	}
}

func TestDACHistoryBounded(t *testing.T) {
	b := NewRealtime()
	total := 3*DACHistory + 5
	for i := 0; i < total; i++ {
		if err := b.WriteDAC(uint16(i % 4096)); err != nil {
			t.Fatal(err)
		}
	}
	writes := b.DACWrites()
	if len(writes) > DACHistory {
		t.Fatalf("kept %d codes, want at most %d", len(writes), DACHistory)
	}
	if b.DACCount() != total {
		t.Errorf("DACCount = %d, want %d", b.DACCount(), total)
	}
	last := uint16((total - 1) % 4096)
	if writes[len(writes)-1] != last {
		t.Errorf("newest = %d, want %d", writes[len(writes)-1], last)
	}
	if int(writes[len(writes)-1]-writes[0]) != len(writes)-1 {
		t.Errorf("history not contiguous: %d..%d over %d codes", writes[0], writes[len(writes)-1], len(writes))
	}
}
