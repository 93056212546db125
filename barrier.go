package crossthread

import (
	"sync"
)

// Barrier is a reusable rendezvous point for a fixed number of goroutines:
// each participant calls [Barrier.Wait], which blocks until all of them
// have, at which point every waiter is released and the barrier resets for
// the next cycle. The reset is atomic with the release, so the same
// goroutines can immediately re-enter the next cycle.
//
// There is no timeout and no abort: a barrier configured for more
// participants than actually call Wait deadlocks permanently. That is a
// caller contract violation, not a recoverable condition.
type Barrier struct {
	mu   sync.Mutex
	cond *sync.Cond

	// required is immutable after construction.
	required int
	// remaining counts unarrived participants in the current cycle;
	// invariant under mu: 0 < remaining <= required.
	remaining int
	// generation distinguishes cycles, closing the reuse race where a waiter
	// observes the reset counter and slips into the next cycle before slower
	// waiters have left the previous one.
	generation uint64
}

// NewBarrier creates a barrier for exactly count participants. A count below
// one is a malformed configuration and fails with an [InternalError] rather
// than silently creating a barrier that never blocks.
func NewBarrier(count int) (*Barrier, error) {
	if count < 1 {
		return nil, newInternalError("barrier requires a participant count of at least 1", nil)
	}
	b := &Barrier{
		required:  count,
		remaining: count,
	}
	b.cond = sync.NewCond(&b.mu)
	return b, nil
}

// Count returns the number of participants the barrier synchronizes.
func (b *Barrier) Count() int {
	return b.required
}

// Wait blocks until all participants of the current cycle have called Wait,
// then returns in every participant. The last arrival resets the barrier and
// wakes the others; no Wait call returns before all of the cycle's calls
// have been issued.
func (b *Barrier) Wait() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.remaining--
	if b.remaining > 0 {
		// Wait for the cycle we arrived in; a Broadcast alone is not enough,
		// cond waits can wake spuriously.
		generation := b.generation
		for generation == b.generation {
			b.cond.Wait()
		}
		return
	}

	// Last arrival: reset and release, atomically under the mutex.
	b.remaining = b.required
	b.generation++
	b.cond.Broadcast()
}
