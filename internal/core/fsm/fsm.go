// Package fsm provides a small table-driven finite-state machine shared by
// every status lifecycle in the domain.
// This is part of the Functional Core - all functions are pure with no I/O.
package fsm

import (
	"errors"
	"fmt"
	"slices"
)

// ErrInvalidTransition is returned when a transition is not in the table.
var ErrInvalidTransition = errors.New("invalid status transition")

// TransitionError describes a rejected transition.
type TransitionError[S ~string] struct {
	Machine string
	From    S
	To      S
}

func (e *TransitionError[S]) Error() string {
	return fmt.Sprintf("%s: cannot transition from %q to %q", e.Machine, e.From, e.To)
}

func (e *TransitionError[S]) Unwrap() error {
	return ErrInvalidTransition
}

// =============================================================================
// Machine
// =============================================================================

// Machine is an immutable transition table over the state type S.
// States that appear in the table with no outgoing edges are terminal.
type Machine[S ~string] struct {
	name        string
	initial     S
	transitions map[S][]S
	states      []S
}

// New builds a machine. The table is copied, so later mutation by the caller
// has no effect. States are recorded in first-seen order of the table keys as
// given by order.
func New[S ~string](name string, initial S, order []S, transitions map[S][]S) *Machine[S] {
	m := &Machine[S]{
		name:        name,
		initial:     initial,
		transitions: make(map[S][]S, len(transitions)),
	}
	for from, tos := range transitions {
		m.transitions[from] = slices.Clone(tos)
	}

	seen := make(map[S]bool)
	add := func(s S) {
		if !seen[s] {
			seen[s] = true
			m.states = append(m.states, s)
		}
	}
	for _, s := range order {
		add(s)
	}
	for _, s := range order {
		for _, to := range m.transitions[s] {
			add(to)
		}
	}
	return m
}

// Name returns the machine name used in error messages and metrics.
func (m *Machine[S]) Name() string { return m.name }

// Initial returns the state new records start in.
func (m *Machine[S]) Initial() S { return m.initial }

// States returns every known state.
func (m *Machine[S]) States() []S { return slices.Clone(m.states) }

// Known reports whether s is a state of this machine.
func (m *Machine[S]) Known(s S) bool {
	return slices.Contains(m.states, s)
}

// Can reports whether from -> to is in the table.
func (m *Machine[S]) Can(from, to S) bool {
	return slices.Contains(m.transitions[from], to)
}

// Validate returns nil when from -> to is allowed, and a *TransitionError
// otherwise.
func (m *Machine[S]) Validate(from, to S) error {
	if m.Can(from, to) {
		return nil
	}
	return &TransitionError[S]{Machine: m.name, From: from, To: to}
}

// Next returns the states reachable from s in one step.
func (m *Machine[S]) Next(s S) []S {
	return slices.Clone(m.transitions[s])
}

// Terminal reports whether s has no outgoing transitions.
func (m *Machine[S]) Terminal(s S) bool {
	return m.Known(s) && len(m.transitions[s]) == 0
}
