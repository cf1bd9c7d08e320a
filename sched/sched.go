// Package sched is a cooperative deadline scheduler evaluated once per
// main-loop tick. It replaces chained one-shot timer callbacks.
package sched

import (
	"sort"
	"time"

	"cv-recorder/hw"
)

// Kind identifies what a scheduled event does when it fires
type Kind int

const (
	BeatTrigger Kind = iota
	BeatAnticipate
	DebounceCheck
	PinOff
	TempoRead
	MuxSettled
)

var kindNames = []string{"trigger", "anticipate", "debounce", "pinoff", "tempo", "settled"}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return "?"
	}
	return kindNames[k]
}

// Event is a scheduled action. Pin is meaningful for DebounceCheck and PinOff.
type Event struct {
	Kind   Kind
	Pin    hw.Pin
	Handle Handle
}

// Handle names one scheduled event; handles are never reused
type Handle uint64

type entry struct {
	at  uint64
	seq uint64
	ev  Event
}

// Scheduler holds pending deadlines against a microsecond clock.
// It is not safe for concurrent use; only the main loop touches it.
type Scheduler struct {
	now     func() uint64
	pending []entry
	next    Handle
	seq     uint64
}

// New creates a scheduler reading time from now
func New(now func() uint64) *Scheduler {
	return &Scheduler{now: now}
}

// Schedule queues ev to fire after delay and returns its handle
func (s *Scheduler) Schedule(delay time.Duration, ev Event) Handle {
	if delay < 0 {
		delay = 0
	}
	s.next++
	s.seq++
	ev.Handle = s.next
	s.pending = append(s.pending, entry{
		at:  s.now() + uint64(delay/time.Microsecond),
		seq: s.seq,
		ev:  ev,
	})
	return ev.Handle
}

// Cancel drops a pending event. Returns false if it already fired or never existed.
func (s *Scheduler) Cancel(h Handle) bool {
	if h == 0 {
		return false
	}
	for i, e := range s.pending {
		if e.ev.Handle == h {
			s.pending = append(s.pending[:i], s.pending[i+1:]...)
			return true
		}
	}
	return false
}

// Pending reports whether h is still waiting to fire
func (s *Scheduler) Pending(h Handle) bool {
	for _, e := range s.pending {
		if e.ev.Handle == h {
			return true
		}
	}
	return false
}

// Len returns the number of pending events
func (s *Scheduler) Len() int {
	return len(s.pending)
}

// Due removes and returns every event whose deadline is at or before now,
// earliest first, ties in schedule order.
func (s *Scheduler) Due(now uint64) []Event {
	var due []entry
	kept := s.pending[:0]
	for _, e := range s.pending {
		if e.at <= now {
			due = append(due, e)
		} else {
			kept = append(kept, e)
		}
	}
	s.pending = kept
	if len(due) == 0 {
		return nil
	}

	sort.Slice(due, func(i, j int) bool {
		if due[i].at != due[j].at {
			return due[i].at < due[j].at
		}
		return due[i].seq < due[j].seq
	})
	out := make([]Event, len(due))
	for i, e := range due {
		out[i] = e.ev
	}
	return out
}

// NextDeadline returns the earliest pending deadline
func (s *Scheduler) NextDeadline() (uint64, bool) {
	if len(s.pending) == 0 {
		return 0, false
	}
	min := s.pending[0].at
	for _, e := range s.pending[1:] {
		if e.at < min {
			min = e.at
		}
	}
	return min, true
}
