package crossthread

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestBarrier_InvalidCount(t *testing.T) {
	for _, count := range []int{0, -1, -100} {
		b, err := NewBarrier(count)
		if b != nil {
			t.Errorf("count %d: expected nil barrier", count)
		}
		var internalErr *InternalError
		if !errors.As(err, &internalErr) {
			t.Errorf("count %d: expected InternalError, got %v", count, err)
		}
	}
}

func TestBarrier_SingleParticipant(t *testing.T) {
	b, err := NewBarrier(1)
	if err != nil {
		t.Fatal(err)
	}

	// Must return immediately, repeatedly.
	done := make(chan struct{})
	go func() {
		defer close(done)
		b.Wait()
		b.Wait()
		b.Wait()
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Wait blocked with a single participant")
	}
}

// TestBarrier_ReleaseRequiresAllArrivals verifies that no Wait call returns
// until every participant has arrived.
func TestBarrier_ReleaseRequiresAllArrivals(t *testing.T) {
	const n = 8

	b, err := NewBarrier(n)
	if err != nil {
		t.Fatal(err)
	}

	var arrived atomic.Int64
	results := make(chan int64, n)

	var wg sync.WaitGroup
	for i := 0; i < n-1; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			arrived.Add(1)
			b.Wait()
			results <- arrived.Load()
		}()
	}

	// Give the early arrivals every chance to (incorrectly) pass.
	time.Sleep(50 * time.Millisecond)
	select {
	case observed := <-results:
		t.Fatalf("a Wait returned with only %d arrivals", observed)
	default:
	}

	arrived.Add(1)
	b.Wait()
	wg.Wait()

	close(results)
	for observed := range results {
		if observed != n {
			t.Errorf("a Wait returned having observed %d arrivals, want %d", observed, n)
		}
	}
}

// TestBarrier_Reusable runs the same participants through many consecutive
// cycles, exercising the generation counter that guards against a fast
// waiter lapping a slow one.
func TestBarrier_Reusable(t *testing.T) {
	const (
		n      = 4
		cycles = 200
	)

	b, err := NewBarrier(n)
	if err != nil {
		t.Fatal(err)
	}

	var inCycle atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for c := 0; c < cycles; c++ {
				if v := inCycle.Add(1); v > n {
					t.Errorf("cycle %d: %d participants inside one cycle", c, v)
				}
				b.Wait()
				inCycle.Add(-1)
				b.Wait() // second rendezvous separates the cycles
			}
		}()
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("barrier cycles did not complete, likely a reuse race")
	}
}

func TestBarrier_Count(t *testing.T) {
	b, err := NewBarrier(3)
	if err != nil {
		t.Fatal(err)
	}
	if b.Count() != 3 {
		t.Errorf("Count() = %d, want 3", b.Count())
	}
}
