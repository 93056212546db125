package crossthread

import (
	"strings"
	"sync"
	"testing"
)

func TestSignal_ConnectEmitDisconnect(t *testing.T) {
	var sig Signal

	var got [][]any
	id := sig.Connect(func(args ...any) {
		got = append(got, args)
	})
	if id == 0 {
		t.Fatal("Connect returned zero ID")
	}

	sig.Emit(1, 2)
	sig.Emit("three")

	if !sig.Disconnect(id) {
		t.Error("Disconnect reported no removal")
	}
	sig.Emit("unobserved")

	if len(got) != 2 {
		t.Fatalf("received %d emissions, want 2", len(got))
	}
	if got[0][0] != 1 || got[0][1] != 2 || got[1][0] != "three" {
		t.Errorf("emissions = %v", got)
	}
}

func TestSignal_DirectDeliveryOrder(t *testing.T) {
	var sig Signal

	var order []int
	for i := 0; i < 5; i++ {
		i := i
		sig.Connect(func(...any) {
			order = append(order, i)
		})
	}
	sig.Emit()

	if len(order) != 5 {
		t.Fatalf("delivered to %d listeners, want 5", len(order))
	}
	for i, v := range order {
		if v != i {
			t.Fatalf("delivery order = %v", order)
		}
	}
}

func TestSignal_ConnectOnce(t *testing.T) {
	var sig Signal

	deliveries := 0
	sig.ConnectOnce(func(...any) {
		deliveries++
	})

	sig.Emit()
	sig.Emit()

	if deliveries != 1 {
		t.Errorf("delivered %d times, want 1", deliveries)
	}
	if n := sig.ConnectionCount(); n != 0 {
		t.Errorf("ConnectionCount() = %d after once-delivery, want 0", n)
	}
}

func TestSignal_ConnectQueued(t *testing.T) {
	l, err := NewLoop()
	if err != nil {
		t.Fatal(err)
	}
	startLoop(t, l)

	var sig Signal

	var (
		mu       sync.Mutex
		gotArgs  []any
		queueGID uint64
	)
	if id := sig.ConnectQueued(l, func(args ...any) {
		mu.Lock()
		defer mu.Unlock()
		gotArgs = args
		queueGID = goroutineID()
	}); id == 0 {
		t.Fatal("ConnectQueued returned zero ID")
	}

	sig.Emit("payload", 9)

	// Flush the queue; the emission was submitted before this.
	if err := l.SubmitAndWait(Task{Runnable: func() {}}); err != nil {
		t.Fatal(err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(gotArgs) != 2 || gotArgs[0] != "payload" || gotArgs[1] != 9 {
		t.Errorf("args = %v", gotArgs)
	}
	if queueGID == goroutineID() {
		t.Error("queued delivery executed on the emitting goroutine")
	}
}

func TestSignal_QueuedDropOnTerminatedLoop(t *testing.T) {
	// The warning must go through the target loop's logger, honoring a
	// WithLogger override, not the package-level logger.
	logger, fetch := captureLogger()
	l, err := NewLoop(WithLogger(logger))
	if err != nil {
		t.Fatal(err)
	}
	if err := l.Close(); err != nil {
		t.Fatal(err)
	}

	var sig Signal
	sig.ConnectQueued(l, func(...any) {
		t.Error("delivery to a terminated loop executed")
	})
	sig.Emit()

	if out := fetch(); !strings.Contains(out, "dropped queued signal delivery") {
		t.Errorf("expected drop warning, got %q", out)
	}
}

func TestSignal_ReentrantListener(t *testing.T) {
	var sig Signal

	// A listener disconnecting itself and connecting another listener
	// mid-emission must not deadlock or corrupt delivery.
	var id ConnectionID
	lateDeliveries := 0
	id = sig.Connect(func(...any) {
		sig.Disconnect(id)
		sig.Connect(func(...any) {
			lateDeliveries++
		})
	})

	sig.Emit()
	if n := sig.ConnectionCount(); n != 1 {
		t.Fatalf("ConnectionCount() = %d, want 1", n)
	}
	if lateDeliveries != 0 {
		t.Error("listener connected mid-emission observed that emission")
	}

	sig.Emit()
	if lateDeliveries != 1 {
		t.Errorf("late listener delivered %d times, want 1", lateDeliveries)
	}
}

func TestSignal_Close(t *testing.T) {
	var sig Signal

	sig.Connect(func(...any) {
		t.Error("delivered after Close")
	})
	sig.Close()

	if !sig.Closed() {
		t.Error("Closed() = false after Close")
	}
	if n := sig.ConnectionCount(); n != 0 {
		t.Errorf("ConnectionCount() = %d after Close, want 0", n)
	}

	sig.Emit()

	if id := sig.Connect(func(...any) {}); id != 0 {
		t.Errorf("Connect on closed signal returned %d, want 0", id)
	}
}

func TestSignal_NilListener(t *testing.T) {
	var sig Signal
	if id := sig.Connect(nil); id != 0 {
		t.Errorf("Connect(nil) = %d, want 0", id)
	}
	if id := sig.ConnectQueued(nil, func(...any) {}); id != 0 {
		t.Errorf("ConnectQueued(nil, fn) = %d, want 0", id)
	}
	if sig.Disconnect(0) {
		t.Error("Disconnect(0) reported a removal")
	}
}

func TestSignal_ConcurrentEmitters(t *testing.T) {
	var sig Signal

	var (
		mu         sync.Mutex
		deliveries int
	)
	sig.Connect(func(...any) {
		mu.Lock()
		deliveries++
		mu.Unlock()
	})

	const emitters = 8
	const perEmitter = 100

	var wg sync.WaitGroup
	for i := 0; i < emitters; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perEmitter; j++ {
				sig.Emit(j)
			}
		}()
	}
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	if deliveries != emitters*perEmitter {
		t.Errorf("deliveries = %d, want %d", deliveries, emitters*perEmitter)
	}
}
