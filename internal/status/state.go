package status

import (
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/madhurmehta007/Chatalyst-AI-sub000/internal/bus"
)

// State represents the sync session state.
type State string

const (
	Idle     State = "IDLE"
	Syncing  State = "SYNCING"
	Live     State = "LIVE"
	Degraded State = "DEGRADED"
	Stopped  State = "STOPPED"
)

// validTransitions defines allowed state transitions. DEGRADED is left only
// by an explicit restart or stop.
var validTransitions = map[State][]State{
	Idle:     {Syncing, Stopped},
	Syncing:  {Live, Degraded, Idle, Stopped},
	Live:     {Degraded, Idle, Stopped},
	Degraded: {Idle, Stopped},
	Stopped:  {Idle},
}

// Machine tracks and enforces sync state transitions.
type Machine struct {
	mu      sync.RWMutex
	current State
	since   time.Time
	bus     *bus.Bus
}

// NewMachine creates a new state machine starting in Idle state.
func NewMachine(b *bus.Bus) *Machine {
	return &Machine{
		current: Idle,
		since:   time.Now(),
		bus:     b,
	}
}

// Current returns the current state.
func (m *Machine) Current() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// Since returns when the current state was entered.
func (m *Machine) Since() time.Time {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.since
}

// Transition attempts to move to a new state. Returns error if transition is invalid.
func (m *Machine) Transition(to State) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !slices.Contains(validTransitions[m.current], to) {
		return fmt.Errorf("invalid transition from %s to %s", m.current, to)
	}
	from := m.current
	m.current = to
	m.since = time.Now()
	if m.bus != nil {
		m.bus.Publish(bus.Event{
			Kind:      bus.StatusChanged,
			Timestamp: m.since,
			Payload:   StatusChange{From: from, To: to},
		})
	}
	return nil
}

// StatusChange is the payload for status change events.
type StatusChange struct {
	From State `json:"from"`
	To   State `json:"to"`
}
