package workflow

import (
	"context"
	"time"
)

// Transition describes one state change performed by Fire
type Transition struct {
	From    State
	To      State
	Trigger Trigger
	At      time.Time
}

// StateMachine tracks the current state of one invoice and validates transitions
type StateMachine interface {
	// State returns the current state
	State() State

	// CanFire returns true if the trigger is configured for the current state
	CanFire(trigger Trigger) bool

	// Fire executes the trigger and returns the transition it performed
	Fire(ctx context.Context, trigger Trigger) (Transition, error)

	// PermittedTriggers returns all triggers configured for the current state
	PermittedTriggers() []Trigger

	// History returns the transitions fired on this machine, oldest first
	History() []Transition
}
