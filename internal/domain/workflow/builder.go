package workflow

import (
	"fmt"

	"github.com/garyjia/hr-approval/internal/domain/identity"
)

// StateMachineBuilder builds a configured state machine
type StateMachineBuilder interface {
	// Configure returns a state configuration for the given state
	Configure(state State) StateConfiguration

	// Build creates a new state machine instance with the given initial state
	Build(initialState State) StateMachine

	// States returns the declared state set
	States() StateSet
}

// StateConfiguration configures transitions for a specific state
type StateConfiguration interface {
	// Permit allows a trigger performed as role to transition to the target state
	Permit(trigger Trigger, toState State, role identity.Role, opts ...TransitionOption) StateConfiguration

	// PermitIf allows a trigger performed as role to transition to the target state if the guard condition passes
	PermitIf(trigger Trigger, toState State, role identity.Role, guard GuardFunc) StateConfiguration
}

// stateConfig implements StateConfiguration
type stateConfig struct {
	builder     *stateMachineBuilder
	fromState   State
	transitions map[Trigger][]Transition
}

// stateMachineBuilder implements StateMachineBuilder
type stateMachineBuilder struct {
	states         StateSet
	configurations map[State]*stateConfig
}

// NewBuilder creates a new state machine builder over a declared state set
func NewBuilder(states StateSet) StateMachineBuilder {
	return &stateMachineBuilder{
		states:         states,
		configurations: make(map[State]*stateConfig),
	}
}

// Configure returns a state configuration for the given state
func (b *stateMachineBuilder) Configure(state State) StateConfiguration {
	if !b.states.IsValid(state) {
		panic(fmt.Sprintf("invalid state: %s", state))
	}
	if b.states.IsTerminal(state) {
		panic(fmt.Sprintf("terminal state cannot have transitions: %s", state))
	}

	config, exists := b.configurations[state]
	if !exists {
		config = &stateConfig{
			builder:     b,
			fromState:   state,
			transitions: make(map[Trigger][]Transition),
		}
		b.configurations[state] = config
	}

	return config
}

// States returns the declared state set
func (b *stateMachineBuilder) States() StateSet {
	return b.states
}

// Build creates a new state machine instance with the given initial state
func (b *stateMachineBuilder) Build(initialState State) StateMachine {
	if !b.states.IsValid(initialState) {
		panic(fmt.Sprintf("invalid initial state: %s", initialState))
	}

	// Deep copy configurations to ensure immutability
	configsCopy := make(map[State]*stateConfig)
	for state, config := range b.configurations {
		transitionsCopy := make(map[Trigger][]Transition)
		for trigger, transitions := range config.transitions {
			transitionsCopy[trigger] = append([]Transition{}, transitions...)
		}
		configsCopy[state] = &stateConfig{
			fromState:   state,
			transitions: transitionsCopy,
		}
	}

	return &stateMachine{
		currentState:   initialState,
		states:         b.states,
		configurations: configsCopy,
	}
}

// Permit allows a trigger performed as role to transition to the target state
func (c *stateConfig) Permit(trigger Trigger, toState State, role identity.Role, opts ...TransitionOption) StateConfiguration {
	if !c.builder.states.IsValid(toState) {
		panic(fmt.Sprintf("invalid target state: %s", toState))
	}

	t := Transition{
		From:    c.fromState,
		To:      toState,
		Trigger: trigger,
		Role:    role,
	}
	for _, opt := range opts {
		opt(&t)
	}

	c.transitions[trigger] = append(c.transitions[trigger], t)
	return c
}

// PermitIf allows a trigger performed as role to transition to the target state if the guard condition passes
func (c *stateConfig) PermitIf(trigger Trigger, toState State, role identity.Role, guard GuardFunc) StateConfiguration {
	return c.Permit(trigger, toState, role, When(guard))
}
