package crossthread

import (
	"runtime"
	"sync/atomic"
)

// Process-wide primary goroutine identity, established once at process start
// and read-only thereafter.
var mainGoroutineID atomic.Uint64

// MarkMainGoroutine designates the calling goroutine as the process's
// primary goroutine, against which [IsMainGoroutine] and
// [AssertMainGoroutine] check. Call it once, from main, before spawning
// workers; subsequent calls have no effect.
func MarkMainGoroutine() {
	mainGoroutineID.CompareAndSwap(0, goroutineID())
}

// IsMainGoroutine reports whether the calling goroutine is the designated
// primary goroutine. In a process that never called [MarkMainGoroutine]
// there is no affinity convention to violate, so it reports true.
func IsMainGoroutine() bool {
	main := mainGoroutineID.Load()
	return main == 0 || goroutineID() == main
}

// AssertMainGoroutine returns an [InternalError] when a non-thread-safe
// operation is invoked off the designated primary goroutine.
func AssertMainGoroutine() error {
	if !IsMainGoroutine() {
		return newInternalError("non-thread-safe operation invoked off the main goroutine", nil)
	}
	return nil
}

// goroutineID returns the current goroutine's ID.
func goroutineID() uint64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	var id uint64
	for i := len("goroutine "); i < n; i++ {
		if buf[i] >= '0' && buf[i] <= '9' {
			id = id*10 + uint64(buf[i]-'0')
		} else {
			break
		}
	}
	return id
}
