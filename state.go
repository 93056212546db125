package crossthread

import (
	"sync/atomic"
)

// LoopState represents the current state of a [Loop].
//
// State Machine:
//
//	StateAwake (0) → StateRunning (3)        [Run()]
//	StateRunning (3) → StateSleeping (2)     [park via CAS]
//	StateRunning (3) → StateTerminating (4)  [Shutdown() / Close()]
//	StateSleeping (2) → StateRunning (3)     [wake via CAS]
//	StateSleeping (2) → StateTerminating (4) [Shutdown() / Close()]
//	StateTerminating (4) → StateTerminated (1)
//	StateTerminated (1) → (terminal)
//
// Transition Rules:
//   - Use TryTransition() (CAS) for the reversible states (Running, Sleeping)
//   - Use Store() only for the irreversible StateTerminated
type LoopState uint64

const (
	// StateAwake indicates the loop has been created but not started.
	StateAwake LoopState = 0
	// StateTerminated indicates the loop has been stopped and is fully shut down.
	StateTerminated LoopState = 1
	// StateSleeping indicates the loop is parked waiting for work.
	StateSleeping LoopState = 2
	// StateRunning indicates the loop is actively processing tasks.
	StateRunning LoopState = 3
	// StateTerminating indicates shutdown has been requested but not completed.
	StateTerminating LoopState = 4
)

// String returns a human-readable representation of the state.
func (s LoopState) String() string {
	switch s {
	case StateAwake:
		return "Awake"
	case StateRunning:
		return "Running"
	case StateSleeping:
		return "Sleeping"
	case StateTerminating:
		return "Terminating"
	case StateTerminated:
		return "Terminated"
	default:
		return "Unknown"
	}
}

// loopStateCell is a lock-free state machine with cache-line padding to
// prevent false sharing between cores.
type loopStateCell struct {
	_ [64]byte      //nolint:unused
	v atomic.Uint64 // State value
	_ [56]byte      //nolint:unused
}

func newLoopStateCell() *loopStateCell {
	s := &loopStateCell{}
	s.v.Store(uint64(StateAwake))
	return s
}

// Load returns the current state atomically.
func (s *loopStateCell) Load() LoopState {
	return LoopState(s.v.Load())
}

// Store atomically stores a new state. No transition validation.
func (s *loopStateCell) Store(state LoopState) {
	s.v.Store(uint64(state))
}

// TryTransition attempts to atomically transition from one state to another.
// Returns true if the transition was successful.
func (s *loopStateCell) TryTransition(from, to LoopState) bool {
	return s.v.CompareAndSwap(uint64(from), uint64(to))
}

// IsRunning returns true if the loop is currently running or sleeping.
func (s *loopStateCell) IsRunning() bool {
	state := s.Load()
	return state == StateRunning || state == StateSleeping
}
