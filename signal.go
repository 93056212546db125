package crossthread

import (
	"sync"
)

// SignalListenerFunc is a callback invoked with the arguments of a
// [Signal.Emit].
type SignalListenerFunc func(args ...any)

// ConnectionID uniquely identifies a signal connection for removal purposes.
// Go functions cannot be reliably compared for equality, so connections are
// identified by ID instead.
type ConnectionID uint64

// signalConn pairs a listener with its delivery configuration.
type signalConn struct {
	id       ConnectionID
	listener SignalListenerFunc
	loop     *Loop // nil for direct delivery
	once     bool  // remove after first delivery
}

// Signal is a minimal asynchronous event source: listeners connect to it,
// and every [Signal.Emit] delivers the emission's arguments to each
// connected listener. Direct connections run synchronously on the emitting
// goroutine; queued connections ([Signal.ConnectQueued]) are marshaled onto
// a target loop, which is how [WaitFor] observes emissions from its own
// goroutine.
//
// Safe for concurrent use. The zero value is ready to use.
type Signal struct {
	mu     sync.RWMutex
	conns  []signalConn
	nextID ConnectionID
	closed bool
}

// Connect registers a listener delivered synchronously on the emitting
// goroutine. Returns zero if the listener is nil or the signal is closed.
func (s *Signal) Connect(listener SignalListenerFunc) ConnectionID {
	return s.connect(listener, nil, false)
}

// ConnectQueued registers a listener whose deliveries are marshaled onto
// loop's ordinary queue, one task per emission. Returns zero if listener or
// loop is nil, or the signal is closed.
func (s *Signal) ConnectQueued(loop *Loop, listener SignalListenerFunc) ConnectionID {
	if loop == nil {
		return 0
	}
	return s.connect(listener, loop, false)
}

// ConnectOnce registers a direct listener removed after its first delivery.
func (s *Signal) ConnectOnce(listener SignalListenerFunc) ConnectionID {
	return s.connect(listener, nil, true)
}

func (s *Signal) connect(listener SignalListenerFunc, loop *Loop, once bool) ConnectionID {
	if listener == nil {
		return 0
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0
	}

	s.nextID++
	id := s.nextID
	s.conns = append(s.conns, signalConn{
		id:       id,
		listener: listener,
		loop:     loop,
		once:     once,
	})
	return id
}

// Disconnect removes a connection by its ID, reporting whether one was
// removed. Removing an already-removed (or zero) ID is a harmless no-op, so
// every-exit-path cleanup can disconnect unconditionally.
func (s *Signal) Disconnect(id ConnectionID) bool {
	if id == 0 {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for i, conn := range s.conns {
		if conn.id == id {
			s.conns = append(s.conns[:i], s.conns[i+1:]...)
			return true
		}
	}
	return false
}

// Emit delivers args to every connection. Direct listeners are called
// synchronously, in connection order; queued listeners are submitted to
// their loops and run later, on those loops' goroutines. A queued delivery
// whose loop refuses the task is dropped and logged, consistent with the
// no-retry delivery contract.
func (s *Signal) Emit(args ...any) {
	// Copy under lock; deliver without it, so listeners may connect,
	// disconnect, emit, or close reentrantly.
	s.mu.RLock()
	conns := make([]signalConn, len(s.conns))
	copy(conns, s.conns)
	s.mu.RUnlock()

	var removeIDs []ConnectionID
	for _, conn := range conns {
		if conn.loop != nil {
			listener := conn.listener
			if err := conn.loop.Submit(Task{Runnable: func() {
				listener(args...)
			}}); err != nil {
				if b := conn.loop.log().Warning(); b.Enabled() {
					b.Uint64("loop", conn.loop.ID()).
						Err(err).
						Log("dropped queued signal delivery")
				}
			}
		} else {
			conn.listener(args...)
		}

		if conn.once {
			removeIDs = append(removeIDs, conn.id)
		}
	}

	for _, id := range removeIDs {
		s.Disconnect(id)
	}
}

// Close tears the signal down: all connections are dropped and subsequent
// Connect calls fail (return zero). Emit on a closed signal is a no-op.
func (s *Signal) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.conns = nil
}

// Closed reports whether Close has been called.
func (s *Signal) Closed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.closed
}

// ConnectionCount returns the number of live connections.
func (s *Signal) ConnectionCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.conns)
}
