package workflow

import (
	"context"
	"fmt"
	"sort"

	"github.com/garyjia/hr-approval/internal/domain/identity"
)

// StateMachine represents a state machine that tracks current state and validates transitions
type StateMachine interface {
	// State returns the current state
	State() State

	// IsTerminal returns true if the current state admits no further transitions
	IsTerminal() bool

	// CanFire returns true if the trigger has at least one transition from the current state
	CanFire(trigger Trigger) bool

	// Fire attempts to execute the trigger for the actor against the subject,
	// transitioning to the new state if a permitted transition authorizes it
	Fire(ctx context.Context, trigger Trigger, actor identity.Identity, subject Subject, opts ...FireOption) (Transition, error)

	// PermittedTriggers returns all triggers that can be fired in the current state
	PermittedTriggers() []Trigger

	// Transitions returns every configured transition of the machine
	Transitions() []Transition
}

// FireOption narrows how Fire selects among candidate transitions
type FireOption func(*fireOptions)

type fireOptions struct {
	asRole identity.Role
}

// AsRole restricts Fire to transitions performed as the given role
func AsRole(role identity.Role) FireOption {
	return func(o *fireOptions) {
		o.asRole = role
	}
}

// stateMachine implements StateMachine
type stateMachine struct {
	currentState   State
	states         StateSet
	configurations map[State]*stateConfig
}

// State returns the current state
func (m *stateMachine) State() State {
	return m.currentState
}

// IsTerminal returns true if the current state is terminal
func (m *stateMachine) IsTerminal() bool {
	return m.states.IsTerminal(m.currentState)
}

// CanFire returns true if the trigger is permitted in the current state
func (m *stateMachine) CanFire(trigger Trigger) bool {
	config, exists := m.configurations[m.currentState]
	if !exists {
		return false
	}

	transitions, exists := config.transitions[trigger]
	return exists && len(transitions) > 0
}

// Fire attempts to execute the trigger, transitioning to the new state if allowed
func (m *stateMachine) Fire(ctx context.Context, trigger Trigger, actor identity.Identity, subject Subject, opts ...FireOption) (Transition, error) {
	var o fireOptions
	for _, opt := range opts {
		opt(&o)
	}

	if !m.states.IsValid(m.currentState) {
		return Transition{}, fmt.Errorf("%w: %s", ErrInvalidState, m.currentState)
	}
	if m.states.IsTerminal(m.currentState) {
		return Transition{}, fmt.Errorf("%w: %s is terminal", ErrInvalidTransition, m.currentState)
	}

	config, exists := m.configurations[m.currentState]
	if !exists {
		return Transition{}, fmt.Errorf("%w: cannot %s from state %s (no configuration)", ErrInvalidTransition, trigger, m.currentState)
	}

	transitions, exists := config.transitions[trigger]
	if !exists || len(transitions) == 0 {
		return Transition{}, fmt.Errorf("%w: cannot %s from state %s", ErrInvalidTransition, trigger, m.currentState)
	}

	if o.asRole != "" {
		filtered := make([]Transition, 0, len(transitions))
		for _, t := range transitions {
			if t.Role == o.asRole {
				filtered = append(filtered, t)
			}
		}
		if len(filtered) == 0 {
			return Transition{}, fmt.Errorf("%w: %s cannot %s from state %s", ErrUnauthorized, o.asRole, trigger, m.currentState)
		}
		transitions = filtered
	}

	// Try each transition in order until one authorizes the actor
	for _, t := range transitions {
		if t.Authorize(ctx, actor, subject) {
			m.currentState = t.To
			return t, nil
		}
	}

	return Transition{}, fmt.Errorf("%w: user %d cannot %s from state %s", ErrUnauthorized, actor.UserID, trigger, m.currentState)
}

// PermittedTriggers returns all triggers that can be fired in the current state
func (m *stateMachine) PermittedTriggers() []Trigger {
	config, exists := m.configurations[m.currentState]
	if !exists {
		return []Trigger{}
	}

	triggers := make([]Trigger, 0, len(config.transitions))
	for trigger := range config.transitions {
		triggers = append(triggers, trigger)
	}
	sort.Slice(triggers, func(i, j int) bool { return triggers[i] < triggers[j] })

	return triggers
}

// Transitions returns every configured transition, ordered by declared state
func (m *stateMachine) Transitions() []Transition {
	var out []Transition
	for _, state := range m.states.States() {
		config, exists := m.configurations[state]
		if !exists {
			continue
		}
		triggers := make([]Trigger, 0, len(config.transitions))
		for trigger := range config.transitions {
			triggers = append(triggers, trigger)
		}
		sort.Slice(triggers, func(i, j int) bool { return triggers[i] < triggers[j] })
		for _, trigger := range triggers {
			out = append(out, config.transitions[trigger]...)
		}
	}
	return out
}
