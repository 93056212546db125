// Package crossthread provides a small set of cross-goroutine coordination
// primitives for applications that pin object state to a single owning
// goroutine: a deferred cross-goroutine method invocation mechanism, a
// reusable rendezvous barrier, and a blocking "wait for a signal" helper that
// keeps pumping the waiting goroutine's run loop.
//
// # Architecture
//
// Each owning goroutine runs a [Loop], a cooperative dispatcher that executes
// queued tasks one at a time. [Invoke] marshals a bound callable (a [Method])
// onto its owner's loop under one of several delivery policies ([Direct],
// [Queued], [BlockingQueued], [Idle]). [Signal] is a minimal connect/emit
// event source whose queued connections are delivered through the same
// mechanism, and [WaitFor] blocks the calling goroutine on a signal emission
// while pumping that goroutine's loop so marshaled work keeps making
// progress. [Barrier] is an orthogonal, reusable N-way rendezvous point.
//
// # Thread Safety
//
//   - [Loop.Submit], [Loop.SubmitAndWait], and [Loop.ScheduleIdle] are safe
//     to call from any goroutine.
//   - Tasks submitted to a given loop execute in FIFO order on that loop's
//     goroutine; ordering across source goroutines is not specified.
//   - [Signal] is safe for concurrent connect/disconnect/emit.
//   - [Barrier.Wait] is, by its nature, called concurrently.
//
// # Execution Model
//
// A loop is either driven by [Loop.Run] on a dedicated goroutine, or pumped
// cooperatively by its owning goroutine via [Loop.Pump]. Within one tick,
// ordinary tasks run before idle tasks; idle tasks run only once the
// ordinary queue has drained. A panic escaping any dispatched task is
// recovered at the dispatch boundary, logged, and does not stop the loop.
//
// # Usage
//
//	owner, _ := crossthread.NewLoop()
//	go owner.Run(context.Background())
//	defer owner.Close()
//
//	err := crossthread.Invoke(crossthread.BindTo(owner, func(args ...any) {
//	    fmt.Println("ran on the owning goroutine:", args[0])
//	}, 42), crossthread.BlockingQueued)
//
// # Error Types
//
// Failures surface as typed errors matched via [errors.As]:
//   - [InternalError]: contract violations (wrong goroutine, closed signal,
//     malformed barrier)
//   - [TimeoutError]: [WaitFor] deadline elapsed (expected, recoverable)
//   - [DeliveryError]: target loop unavailable; the invocation is dropped,
//     never retried
package crossthread
