package workflow

import (
	"context"
	"fmt"
)

// GuardFunc decides whether a configured transition may be taken
type GuardFunc func(ctx context.Context) bool

// StateMachineBuilder collects state configurations and builds machines from them
type StateMachineBuilder interface {
	// Configure returns the configuration for the given state
	Configure(state State) StateConfiguration

	// Build creates a machine starting in initialState
	Build(initialState State) StateMachine
}

// StateConfiguration configures the outgoing transitions of one state
type StateConfiguration interface {
	// Permit allows trigger to move to toState
	Permit(trigger Trigger, toState State) StateConfiguration

	// PermitIf allows trigger to move to toState when guard passes
	PermitIf(trigger Trigger, toState State, guard GuardFunc) StateConfiguration

	// PermitReentry allows trigger without leaving the state
	PermitReentry(trigger Trigger) StateConfiguration
}

type transition struct {
	to    State
	guard GuardFunc
}

type stateConfig struct {
	from        State
	order       []Trigger
	transitions map[Trigger][]transition
}

func newStateConfig(from State) *stateConfig {
	return &stateConfig{
		from:        from,
		transitions: make(map[Trigger][]transition),
	}
}

func (c *stateConfig) clone() *stateConfig {
	cp := newStateConfig(c.from)
	cp.order = append([]Trigger(nil), c.order...)
	for trigger, ts := range c.transitions {
		cp.transitions[trigger] = append([]transition(nil), ts...)
	}
	return cp
}

type stateMachineBuilder struct {
	configurations map[State]*stateConfig
}

type stateMachine struct {
	current        State
	configurations map[State]*stateConfig
}

// NewBuilder creates a new state machine builder
func NewBuilder() StateMachineBuilder {
	return &stateMachineBuilder{
		configurations: make(map[State]*stateConfig),
	}
}

// Configure panics on an unknown state; configuration is static program setup.
func (b *stateMachineBuilder) Configure(state State) StateConfiguration {
	if !state.IsValid() {
		panic(fmt.Sprintf("invalid state: %s", state))
	}

	cfg, ok := b.configurations[state]
	if !ok {
		cfg = newStateConfig(state)
		b.configurations[state] = cfg
	}
	return cfg
}

// Build copies the configuration so later Configure calls do not leak into built machines.
func (b *stateMachineBuilder) Build(initialState State) StateMachine {
	if !initialState.IsValid() {
		panic(fmt.Sprintf("invalid initial state: %s", initialState))
	}

	configs := make(map[State]*stateConfig, len(b.configurations))
	for state, cfg := range b.configurations {
		configs[state] = cfg.clone()
	}

	return &stateMachine{
		current:        initialState,
		configurations: configs,
	}
}

func (c *stateConfig) Permit(trigger Trigger, toState State) StateConfiguration {
	return c.PermitIf(trigger, toState, nil)
}

func (c *stateConfig) PermitIf(trigger Trigger, toState State, guard GuardFunc) StateConfiguration {
	if !toState.IsValid() {
		panic(fmt.Sprintf("invalid target state: %s", toState))
	}

	if _, seen := c.transitions[trigger]; !seen {
		c.order = append(c.order, trigger)
	}
	c.transitions[trigger] = append(c.transitions[trigger], transition{to: toState, guard: guard})
	return c
}

func (c *stateConfig) PermitReentry(trigger Trigger) StateConfiguration {
	return c.PermitIf(trigger, c.from, nil)
}

func (m *stateMachine) State() State {
	return m.current
}

// CanFire does not evaluate guards; it only reports whether the trigger is configured.
func (m *stateMachine) CanFire(trigger Trigger) bool {
	cfg, ok := m.configurations[m.current]
	if !ok {
		return false
	}
	return len(cfg.transitions[trigger]) > 0
}

func (m *stateMachine) Fire(ctx context.Context, trigger Trigger) error {
	cfg, ok := m.configurations[m.current]
	if !ok || len(cfg.transitions[trigger]) == 0 {
		return fmt.Errorf("%w: cannot fire %s from %s", ErrInvalidStateTransition, trigger, m.current)
	}

	for _, t := range cfg.transitions[trigger] {
		if t.guard == nil || t.guard(ctx) {
			m.current = t.to
			return nil
		}
	}

	return fmt.Errorf("%w: %s from %s", ErrGuardFailed, trigger, m.current)
}

// PermittedTriggers returns triggers in the order they were configured.
func (m *stateMachine) PermittedTriggers() []Trigger {
	cfg, ok := m.configurations[m.current]
	if !ok {
		return []Trigger{}
	}
	return append([]Trigger{}, cfg.order...)
}
