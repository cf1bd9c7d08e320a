package midi

import (
	"context"
	"strings"
	"sync"
	"time"

	gomidi "gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"

	"cv-recorder/debug"
)

// DeviceEvent is emitted when controllers connect/disconnect
type DeviceEvent struct {
	Type       DeviceEventType
	Controller Controller
	ID         string
}

type DeviceEventType int

const (
	DeviceConnected DeviceEventType = iota
	DeviceDisconnected
)

// DeviceManager handles hot-plug detection of the Launchpad panel and the
// clock keyboard input
type DeviceManager struct {
	keyboard string // input port name to match, empty disables
	channel  int

	controllers map[string]Controller
	mu          sync.RWMutex
	events      chan DeviceEvent
	pollRate    time.Duration
}

// NewDeviceManager creates a device manager. keyboard is matched against
// input port names, case-insensitively; channel is 0-15 or -1 for omni.
func NewDeviceManager(keyboard string, channel int) *DeviceManager {
	return &DeviceManager{
		keyboard:    keyboard,
		channel:     channel,
		controllers: make(map[string]Controller),
		events:      make(chan DeviceEvent, 16),
		pollRate:    time.Second,
	}
}

// Events returns a channel of device connect/disconnect events
func (dm *DeviceManager) Events() <-chan DeviceEvent {
	return dm.events
}

// Controllers returns a snapshot of connected controllers
func (dm *DeviceManager) Controllers() map[string]Controller {
	dm.mu.RLock()
	defer dm.mu.RUnlock()
	out := make(map[string]Controller, len(dm.controllers))
	for k, v := range dm.controllers {
		out[k] = v
	}
	return out
}

// Run starts the polling loop (blocking - run in goroutine)
func (dm *DeviceManager) Run(ctx context.Context) {
	ticker := time.NewTicker(dm.pollRate)
	defer ticker.Stop()

	dm.scan(ctx)

	for {
		select {
		case <-ctx.Done():
			dm.closeAll()
			close(dm.events)
			return
		case <-ticker.C:
			dm.scan(ctx)
		}
	}
}

func (dm *DeviceManager) scan(ctx context.Context) {
	type portsResult struct {
		inPorts  []drivers.In
		outPorts []drivers.Out
	}

	// CoreMIDI can hang listing ports
	ch := make(chan portsResult, 1)
	go func() {
		ch <- portsResult{inPorts: gomidi.GetInPorts(), outPorts: gomidi.GetOutPorts()}
	}()

	var res portsResult
	select {
	case res = <-ch:
	case <-time.After(3 * time.Second):
		debug.Log("midi", "port scan timed out")
		return
	case <-ctx.Done():
		return
	}

	seen := make(map[string]bool)
	for _, in := range res.inPorts {
		id := in.String()
		var (
			c   Controller
			err error
		)
		switch {
		case isLaunchpad(id):
			seen[id] = true
			if dm.has(id) {
				continue
			}
			c, err = NewLaunchpadController(id, in, matchingOut(id, res.outPorts))
		case matchesPort(id, dm.keyboard):
			seen[id] = true
			if dm.has(id) {
				continue
			}
			c, err = NewKeyboardController(id, in, dm.channel)
		default:
			continue
		}
		if err != nil {
			debug.Log("midi", "connect %s: %v", id, err)
			continue
		}

		dm.mu.Lock()
		dm.controllers[id] = c
		dm.mu.Unlock()
		debug.Log("midi", "connected %s", id)
		if !dm.emit(ctx, DeviceEvent{Type: DeviceConnected, Controller: c, ID: id}) {
			return
		}
	}

	dm.dropMissing(ctx, seen)
}

// dropMissing closes controllers whose ports have gone. Events are sent
// after the lock is released.
func (dm *DeviceManager) dropMissing(ctx context.Context, seen map[string]bool) {
	var gone []string
	dm.mu.Lock()
	for id, c := range dm.controllers {
		if seen[id] {
			continue
		}
		c.Close()
		delete(dm.controllers, id)
		gone = append(gone, id)
	}
	dm.mu.Unlock()

	for _, id := range gone {
		debug.Log("midi", "disconnected %s", id)
		if !dm.emit(ctx, DeviceEvent{Type: DeviceDisconnected, ID: id}) {
			return
		}
	}
}

// emit delivers an event unless ctx ends first
func (dm *DeviceManager) emit(ctx context.Context, ev DeviceEvent) bool {
	select {
	case dm.events <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}

func (dm *DeviceManager) has(id string) bool {
	dm.mu.RLock()
	defer dm.mu.RUnlock()
	_, ok := dm.controllers[id]
	return ok
}

func (dm *DeviceManager) closeAll() {
	dm.mu.Lock()
	defer dm.mu.Unlock()
	for _, c := range dm.controllers {
		c.Close()
	}
	dm.controllers = make(map[string]Controller)
}

func matchingOut(name string, outs []drivers.Out) drivers.Out {
	for _, op := range outs {
		if strings.EqualFold(op.String(), name) {
			return op
		}
	}
	return nil
}

func isLaunchpad(name string) bool {
	name = strings.ToLower(name)
	return strings.Contains(name, "launchpad") && strings.Contains(name, "midi")
}

// matchesPort reports whether a port name contains want, ignoring case
func matchesPort(name, want string) bool {
	if want == "" {
		return false
	}
	return strings.Contains(strings.ToLower(name), strings.ToLower(want))
}
