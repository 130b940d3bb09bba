// Package state provides an explicit state machine for streaming
// connection states.
//
// The state machine validates transitions between Disconnected and
// Connected and runs hooks after each transition.
package state

import (
	"fmt"
	"sync"

	"github.com/pkg/errors"

	ews "github.com/meszmate/ews-go"
)

// TransitionHook is a function called after a state transition. Hooks run
// with the machine locked and must not call back into it.
type TransitionHook func(from, to ews.ConnState) error

// Machine manages connection state transitions.
type Machine struct {
	mu          sync.RWMutex
	state       ews.ConnState
	transitions map[ews.ConnState][]ews.ConnState
	afterHooks  []TransitionHook
}

// New creates a new state machine starting in the given state.
func New(initial ews.ConnState) *Machine {
	return &Machine{
		state:       initial,
		transitions: DefaultTransitions(),
	}
}

// State returns the current state.
func (m *Machine) State() ews.ConnState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// Transition attempts to transition to the target state.
// Returns an *ews.InvalidOperationError if the transition is not allowed.
func (m *Machine) Transition(target ews.ConnState) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.canTransition(m.state, target) {
		return &ews.InvalidOperationError{
			Op:     "transition",
			Reason: fmt.Sprintf("cannot go from %s to %s", m.state, target),
		}
	}

	from := m.state
	m.state = target

	// The transition stands even if an after hook fails.
	for _, hook := range m.afterHooks {
		if err := hook(from, target); err != nil {
			return errors.Wrap(err, "after hook")
		}
	}

	return nil
}

// RequireState checks that the current state is one of the allowed states
// for op.
func (m *Machine) RequireState(op string, allowed ...ews.ConnState) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, s := range allowed {
		if m.state == s {
			return nil
		}
	}

	return &ews.InvalidOperationError{
		Op:     op,
		Reason: fmt.Sprintf("not allowed while %s", m.state),
	}
}

// OnAfter registers a hook that runs after each state transition.
func (m *Machine) OnAfter(hook TransitionHook) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.afterHooks = append(m.afterHooks, hook)
}

func (m *Machine) canTransition(from, to ews.ConnState) bool {
	for _, s := range m.transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}
