package crossthread

import (
	"context"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/joeycumines/logiface"
)

// maxParkInterval bounds how long the loop parks without re-checking its
// queues. Wakeups make this a backstop, not the scheduling mechanism.
const maxParkInterval = 10 * time.Second

// Task is a bound unit of work dispatched on a [Loop]. A task is owned
// exclusively by its invocation record until executed, and is executed at
// most once.
type Task struct {
	Runnable func()
}

// Loop is a single-goroutine cooperative dispatcher: it processes queued
// tasks one at a time on the goroutine that owns it. It is the "run loop"
// that [Invoke] marshals calls onto, and that [WaitFor] pumps while waiting.
//
// A loop is driven in one of two ways, never both:
//   - [Loop.Run] dedicates the calling goroutine to the loop until shutdown.
//   - [Loop.Pump] processes pending work cooperatively from the owning
//     goroutine, for contexts that interleave loop work with other logic.
//
// Ordinary tasks ([Loop.Submit], [Loop.SubmitAndWait]) execute in FIFO order.
// Idle tasks ([Loop.ScheduleIdle]) execute only once the ordinary queue has
// drained within a tick.
type Loop struct {
	// Prevent copying
	_ [0]func()

	// State machine (cache-line padded internally)
	state *loopStateCell

	// Ordinary FIFO queue. Double-buffered so the loop goroutine can execute
	// a batch without holding the mutex.
	queueMu  sync.Mutex
	queue    []Task
	queueBuf []Task

	// Idle (zero-delay deferred) queue.
	idleMu  sync.Mutex
	idleQ   []Task
	idleBuf []Task

	// Wake-up mechanism: a single buffered token is sufficient, sends are
	// dropped when one is already pending.
	wake chan struct{}

	// Loop termination signaling
	loopDone chan struct{}
	stopOnce sync.Once

	// Goroutine tracking; nonzero while the loop is being driven (Run, or an
	// active Pump claim).
	loopGoroutineID atomic.Uint64

	// In-flight submit counter for shutdown synchronization
	inflight atomic.Int64

	logger    *logiface.Logger[logiface.Event]
	loggerSet bool
	onPanic   func(v any)

	id        uint64
	tickCount uint64
}

var loopIDCounter atomic.Uint64

// NewLoop creates a new loop in the Awake state.
func NewLoop(opts ...LoopOption) (*Loop, error) {
	cfg, err := resolveLoopOptions(opts)
	if err != nil {
		return nil, err
	}
	return &Loop{
		id:        loopIDCounter.Add(1),
		state:     newLoopStateCell(),
		wake:      make(chan struct{}, 1),
		loopDone:  make(chan struct{}),
		logger:    cfg.logger,
		loggerSet: cfg.loggerSet,
		onPanic:   cfg.onPanic,
	}, nil
}

// Run drives the loop on the calling goroutine and blocks until fully
// stopped (via [Loop.Shutdown], [Loop.Close], or ctx cancellation).
//
// To run in a separate goroutine, use: `go loop.Run(ctx)`.
func (l *Loop) Run(ctx context.Context) error {
	gid := goroutineID()
	if l.loopGoroutineID.Load() == gid {
		return ErrReentrantRun
	}

	if !l.state.TryTransition(StateAwake, StateRunning) {
		if l.state.Load() == StateTerminated {
			return ErrLoopTerminated
		}
		return ErrLoopAlreadyRunning
	}

	// An active Pump claim means another goroutine owns the queues right now.
	if !l.loopGoroutineID.CompareAndSwap(0, gid) {
		l.state.TryTransition(StateRunning, StateAwake)
		return ErrLoopAlreadyRunning
	}

	// Close loopDone when run exits to signal completion to Shutdown waiters
	defer close(l.loopDone)

	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	defer l.loopGoroutineID.Store(0)

	// Watcher goroutine: wake the loop on context cancellation.
	ctxDone := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			l.wakeup()
		case <-ctxDone:
		}
	}()
	defer close(ctxDone)

	for {
		select {
		case <-ctx.Done():
			for {
				current := l.state.Load()
				if current == StateTerminating || current == StateTerminated {
					break
				}
				if l.state.TryTransition(current, StateTerminating) {
					break
				}
			}
			l.drainAndTerminate()
			return ctx.Err()
		default:
		}

		if state := l.state.Load(); state == StateTerminating || state == StateTerminated {
			l.drainAndTerminate()
			return nil
		}

		l.tick(true)
	}
}

// Shutdown gracefully shuts down the loop. On a loop that is being driven,
// queued tasks are drained (executed) before termination; a loop that never
// ran has no goroutine to drain it, and pending tasks are discarded. It
// blocks until termination completes or ctx expires.
func (l *Loop) Shutdown(ctx context.Context) error {
	var result error
	l.stopOnce.Do(func() {
		result = l.shutdownImpl(ctx)
	})
	if result == nil && l.state.Load() != StateTerminated {
		return ErrLoopTerminated
	}
	return result
}

// shutdownImpl contains the actual Shutdown implementation.
func (l *Loop) shutdownImpl(ctx context.Context) error {
	for {
		currentState := l.state.Load()
		if currentState == StateTerminated || currentState == StateTerminating {
			return ErrLoopTerminated
		}

		if l.state.TryTransition(currentState, StateTerminating) {
			if currentState == StateAwake {
				// Never ran; nothing to drain and nobody to do it.
				l.state.Store(StateTerminated)
				return nil
			}
			if currentState == StateSleeping {
				l.wakeup()
			}
			break
		}
	}

	// Wait for termination via channel, NOT polling
	select {
	case <-l.loopDone:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close terminates the loop without waiting for the run goroutine to finish
// draining. On a loop that is being driven, queued tasks are still executed
// before the loop goroutine exits; a loop that never ran has no goroutine to
// drain it, and pending tasks are discarded.
func (l *Loop) Close() error {
	for {
		currentState := l.state.Load()
		if currentState == StateTerminated {
			return ErrLoopTerminated
		}

		if l.state.TryTransition(currentState, StateTerminating) {
			if currentState == StateAwake {
				l.state.Store(StateTerminated)
				return nil
			}
			if currentState == StateSleeping {
				l.wakeup()
			}
			return nil
		}
	}
}

// drainAndTerminate performs the shutdown sequence on the loop goroutine.
func (l *Loop) drainAndTerminate() {
	// Terminated FIRST so new submissions are rejected; anything that raced
	// a state check and already pushed is caught by the drain below.
	l.state.Store(StateTerminated)

	// Drain until no in-flight submits remain and several consecutive checks
	// find the queues empty (a submit may be between its state check and its
	// push).
	emptyChecks := 0
	const requiredEmptyChecks = 3
	for emptyChecks < requiredEmptyChecks {
		spinCount := 0
		for l.inflight.Load() > 0 {
			spinCount++
			if spinCount > 1000 {
				time.Sleep(100 * time.Microsecond)
			} else {
				runtime.Gosched()
			}
		}

		drained := l.processQueue()
		if l.processIdle() {
			drained = true
		}

		if drained || l.inflight.Load() > 0 {
			emptyChecks = 0
		} else {
			emptyChecks++
			runtime.Gosched()
		}
	}
}

// tick is a single iteration of the loop. When park is true and no work was
// found, the goroutine parks until woken.
func (l *Loop) tick(park bool) {
	l.tickCount++

	ran := l.processQueue()

	// Idle tasks fire only once the ordinary queue is drained.
	if !l.hasQueued() {
		if l.processIdle() {
			ran = true
		}
	}

	if park && !ran {
		l.park()
	}
}

// processQueue executes the currently queued batch of ordinary tasks.
func (l *Loop) processQueue() bool {
	l.queueMu.Lock()
	if len(l.queue) == 0 {
		l.queueMu.Unlock()
		return false
	}
	tasks := l.queue
	l.queue = l.queueBuf[:0]
	l.queueBuf = tasks[:0]
	l.queueMu.Unlock()

	for i, t := range tasks {
		l.safeExecute(t)
		tasks[i] = Task{}
	}
	return true
}

// processIdle executes the currently queued batch of idle tasks.
func (l *Loop) processIdle() bool {
	l.idleMu.Lock()
	if len(l.idleQ) == 0 {
		l.idleMu.Unlock()
		return false
	}
	tasks := l.idleQ
	l.idleQ = l.idleBuf[:0]
	l.idleBuf = tasks[:0]
	l.idleMu.Unlock()

	for i, t := range tasks {
		l.safeExecute(t)
		tasks[i] = Task{}
	}
	return true
}

func (l *Loop) hasQueued() bool {
	l.queueMu.Lock()
	n := len(l.queue)
	l.queueMu.Unlock()
	return n > 0
}

// hasWork reports whether any ordinary or idle task is pending.
func (l *Loop) hasWork() bool {
	if l.hasQueued() {
		return true
	}
	l.idleMu.Lock()
	n := len(l.idleQ)
	l.idleMu.Unlock()
	return n > 0
}

// park blocks the loop goroutine until work arrives or shutdown begins.
func (l *Loop) park() {
	if !l.state.TryTransition(StateRunning, StateSleeping) {
		return
	}

	// Re-check for work that raced the transition.
	if l.hasWork() {
		l.state.TryTransition(StateSleeping, StateRunning)
		return
	}

	timer := time.NewTimer(maxParkInterval)
	select {
	case <-l.wake:
	case <-timer.C:
	}
	timer.Stop()

	l.state.TryTransition(StateSleeping, StateRunning)
}

// wakeup delivers a wake token, deduplicating against one already pending.
func (l *Loop) wakeup() {
	select {
	case l.wake <- struct{}{}:
	default:
	}
}

// Submit enqueues a task on the loop's ordinary FIFO queue. It never blocks
// on execution.
//
// State policy during shutdown: submissions are rejected once fully
// Terminated, but still accepted while Terminating so in-flight work can
// drain (the drain executes them).
func (l *Loop) Submit(task Task) error {
	// Increment inflight counter FIRST, before checking state
	l.inflight.Add(1)
	defer l.inflight.Add(-1)

	if l.state.Load() == StateTerminated {
		return ErrLoopTerminated
	}

	l.queueMu.Lock()
	l.queue = append(l.queue, task)
	l.queueMu.Unlock()

	l.wakeup()
	return nil
}

// ScheduleIdle enqueues a task on the loop's zero-delay deferred queue. The
// task executes exactly once, the next time the loop finds its ordinary
// queue drained. Never blocks.
func (l *Loop) ScheduleIdle(task Task) error {
	l.inflight.Add(1)
	defer l.inflight.Add(-1)

	if l.state.Load() == StateTerminated {
		return ErrLoopTerminated
	}

	l.idleMu.Lock()
	l.idleQ = append(l.idleQ, task)
	l.idleMu.Unlock()

	l.wakeup()
	return nil
}

// SubmitAndWait enqueues a task and blocks the calling goroutine until the
// loop has finished executing it. The happens-before edge of the returned
// call makes the task's writes visible to the caller without further
// synchronization. No result value is propagated.
//
// Calling this from the target loop's own goroutine would deadlock and is
// rejected with [ErrSelfDelivery]. The loop must be running (or draining);
// otherwise [ErrLoopNotRunning] / [ErrLoopTerminated] is returned and the
// task is not executed.
func (l *Loop) SubmitAndWait(task Task) error {
	if l.loopGoroutineID.Load() == goroutineID() {
		return ErrSelfDelivery
	}

	if !l.state.IsRunning() {
		if l.state.Load() == StateTerminated {
			return ErrLoopTerminated
		}
		return ErrLoopNotRunning
	}

	done := make(chan struct{})
	fn := task.Runnable
	if err := l.Submit(Task{Runnable: func() {
		// Closed during unwinding too, so a panicking task (contained at the
		// dispatch boundary) still releases the waiter.
		defer close(done)
		if fn != nil {
			fn()
		}
	}}); err != nil {
		return err
	}

	<-done
	return nil
}

// Pump processes the loop's currently pending work on the calling goroutine,
// without parking. It is the cooperative alternative to [Loop.Run]: the
// first goroutine to pump an un-run loop becomes its owner for the duration
// of the call, and nested pumps (from within a dispatched task) are allowed.
//
// Pumping a loop that is being driven by another goroutine returns
// [ErrNotLoopGoroutine].
func (l *Loop) Pump() error {
	release, err := l.acquirePump()
	if err != nil {
		return err
	}
	if release {
		defer l.loopGoroutineID.Store(0)
	}

	l.tick(false)
	return nil
}

// acquirePump claims the loop for the calling goroutine, unless it already
// holds it (nested pump, or pump from within Run's dispatch).
func (l *Loop) acquirePump() (release bool, _ error) {
	if l.state.Load() == StateTerminated {
		return false, ErrLoopTerminated
	}
	gid := goroutineID()
	current := l.loopGoroutineID.Load()
	if current == gid {
		return false, nil
	}
	if current != 0 || !l.loopGoroutineID.CompareAndSwap(0, gid) {
		return false, ErrNotLoopGoroutine
	}
	return true, nil
}

// waitWork parks the calling goroutine until work arrives, the loop is
// woken, or d elapses. Callers re-check their own conditions afterwards;
// spurious returns are fine.
func (l *Loop) waitWork(d time.Duration) {
	if l.hasWork() {
		return
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-l.wake:
	case <-timer.C:
	}
}

// State returns the current loop state.
func (l *Loop) State() LoopState {
	return l.state.Load()
}

// ID returns the loop's process-unique identifier. Used in log context.
func (l *Loop) ID() uint64 {
	return l.id
}

// log resolves the loop's logger, falling back to the package-level one.
func (l *Loop) log() *logiface.Logger[logiface.Event] {
	if l.loggerSet {
		return l.logger
	}
	return getLogger()
}

// safeExecute executes a task, containing panics at the dispatch boundary so
// the loop keeps processing subsequent tasks.
func (l *Loop) safeExecute(t Task) {
	if t.Runnable == nil {
		return
	}

	defer func() {
		if r := recover(); r != nil {
			l.handlePanic(r)
		}
	}()

	t.Runnable()
}

// handlePanic logs a recovered panic with loop and goroutine context, then
// invokes the OnPanic hook, if any. A panicking hook is itself contained.
func (l *Loop) handlePanic(v any) {
	if b := l.log().Err(); b.Enabled() {
		b = b.Uint64("loop", l.id).Uint64("goroutine", goroutineID())
		if err, ok := v.(error); ok {
			b = b.Err(err)
		} else {
			b = b.Field("panic", v)
		}
		b.Log("uncaught panic in dispatched task")
	}

	if l.onPanic != nil {
		defer func() { _ = recover() }()
		l.onPanic(v)
	}
}
