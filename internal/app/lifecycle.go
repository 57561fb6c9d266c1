package app

import (
	"fmt"

	"github.com/bft-labs/recship/internal/domain"
	"github.com/bft-labs/recship/internal/ports"
)

// State represents where a feed source is in its dispatch.
type State int

const (
	// StateGathering reads, filters and batches records.
	StateGathering State = iota
	// StateDispatching hands a batch (async) or the gathered list (sync) on.
	StateDispatching
	// StateDone means the feed is exhausted and everything was dispatched.
	StateDone
	// StateFailed means an infrastructure fault aborted the source.
	StateFailed
)

// String returns a human-readable representation of the state.
func (s State) String() string {
	switch s {
	case StateGathering:
		return "Gathering"
	case StateDispatching:
		return "Dispatching"
	case StateDone:
		return "Done"
	case StateFailed:
		return "Failed"
	default:
		return "Unknown"
	}
}

// EventEmitter is called when a source changes state.
type EventEmitter interface {
	OnStateChange(source string, previous, current State)
}

// SourceLifecycle is the state machine of one source.
//
//	Gathering -> Dispatching -> Gathering   (async, after each batch)
//	Gathering -> Dispatching -> Done        (final batch or sync hand-off)
//	Gathering -> Done                       (nothing left to dispatch)
//	any non-terminal -> Failed
type SourceLifecycle struct {
	source  string
	state   State
	logger  ports.Logger
	emitter EventEmitter
}

// NewSourceLifecycle creates a lifecycle starting in StateGathering.
func NewSourceLifecycle(source string, logger ports.Logger, emitter EventEmitter) *SourceLifecycle {
	return &SourceLifecycle{
		source:  source,
		state:   StateGathering,
		logger:  logger,
		emitter: emitter,
	}
}

// State returns the current state.
func (l *SourceLifecycle) State() State {
	return l.state
}

// TransitionTo moves to newState.
// Returns domain.ErrInvalidTransition if the move is not allowed.
func (l *SourceLifecycle) TransitionTo(newState State) error {
	oldState := l.state
	if !validTransition(oldState, newState) {
		return fmt.Errorf("%w: %s -> %s", domain.ErrInvalidTransition, oldState, newState)
	}
	l.state = newState

	if l.emitter != nil {
		l.emitter.OnStateChange(l.source, oldState, newState)
	}

	l.logger.Debug("source state transition",
		ports.String("source", l.source),
		ports.String("from", oldState.String()),
		ports.String("to", newState.String()),
	)
	return nil
}

// Fail moves to StateFailed unless the source already finished.
func (l *SourceLifecycle) Fail() {
	if l.state == StateDone || l.state == StateFailed {
		return
	}
	_ = l.TransitionTo(StateFailed)
}

// Terminal returns true once the source is Done or Failed.
func (l *SourceLifecycle) Terminal() bool {
	return l.state == StateDone || l.state == StateFailed
}

func validTransition(from, to State) bool {
	switch from {
	case StateGathering:
		return to == StateDispatching || to == StateDone || to == StateFailed
	case StateDispatching:
		return to == StateGathering || to == StateDone || to == StateFailed
	default:
		return false
	}
}
