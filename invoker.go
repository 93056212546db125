package crossthread

// Policy selects how an invocation reaches its target loop.
type Policy int

const (
	// Direct executes the call synchronously on the calling goroutine. No
	// marshaling, no thread hop.
	Direct Policy = iota

	// Queued enqueues the call on the owner loop's FIFO queue; the caller
	// does not block.
	Queued

	// BlockingQueued enqueues the call and blocks the caller until the owner
	// loop has finished executing it. No return value is propagated; the
	// call is for side effects only. Must not target the caller's own loop.
	BlockingQueued

	// Idle schedules the call for the owner loop's next idle slot,
	// fire-and-forget.
	Idle
)

// String returns a human-readable representation of the policy.
func (p Policy) String() string {
	switch p {
	case Direct:
		return "Direct"
	case Queued:
		return "Queued"
	case BlockingQueued:
		return "BlockingQueued"
	case Idle:
		return "Idle"
	default:
		return "Unknown"
	}
}

// Method is a bound unit of work for cross-goroutine invocation: a function,
// its positional arguments, and the loop owning the state it touches. It is
// immutable once constructed; each [Invoke] of it produces an independent
// invocation record executed exactly once.
//
// Owner may be nil for callables with no goroutine affinity, but delivering
// such a method under any policy other than [Direct] cannot guarantee which
// goroutine runs it (see [Invoke]).
type Method struct {
	Owner *Loop
	Fn    func(args ...any)
	Args  []any
}

// Bind packages a bare function and arguments into a [Method] with no
// goroutine affinity.
func Bind(fn func(args ...any), args ...any) Method {
	return Method{Fn: fn, Args: args}
}

// BindTo packages a function and arguments into a [Method] owned by loop.
func BindTo(loop *Loop, fn func(args ...any), args ...any) Method {
	return Method{Owner: loop, Fn: fn, Args: args}
}

// Invoke executes m.Fn(m.Args...) on m's owning loop under the given
// delivery policy. It is safe to call concurrently from many goroutines
// targeting the same or different loops; each call is an independent
// invocation record, executed at most once, never retried.
//
// A method without an owner under a non-Direct policy is a recognized
// degraded-safety path, not a failure: a warning is logged that goroutine
// affinity cannot be guaranteed, and the call executes synchronously in the
// calling goroutine's context.
//
// Failed marshaling (owner loop terminated, or not running for
// [BlockingQueued]) is terminal for the invocation: the call is dropped,
// logged, and a [DeliveryError] returned. [BlockingQueued] from the owner
// loop's own goroutine would deadlock and is rejected with an
// [InternalError] wrapping [ErrSelfDelivery].
func Invoke(m Method, policy Policy) error {
	if m.Fn == nil {
		return newInternalError("invoke of a method with no function", nil)
	}

	if policy == Direct {
		m.Fn(m.Args...)
		return nil
	}

	if m.Owner == nil {
		if b := getLogger().Warning(); b.Enabled() {
			b.Stringer("policy", policy).
				Log("method has no owning loop, goroutine affinity cannot be guaranteed")
		}
		m.Fn(m.Args...)
		return nil
	}

	fn, args := m.Fn, m.Args
	task := Task{Runnable: func() {
		fn(args...)
	}}

	switch policy {
	case Queued:
		if err := m.Owner.Submit(task); err != nil {
			return m.deliveryFailed(policy, err)
		}
		return nil

	case BlockingQueued:
		err := m.Owner.SubmitAndWait(task)
		switch err {
		case nil:
			return nil
		case ErrSelfDelivery:
			return newInternalError("blocking-queued invocation targeting the calling goroutine's own loop", err)
		default:
			return m.deliveryFailed(policy, err)
		}

	case Idle:
		if err := m.Owner.ScheduleIdle(task); err != nil {
			return m.deliveryFailed(policy, err)
		}
		return nil

	default:
		return newInternalError("unknown delivery policy", nil)
	}
}

// deliveryFailed logs and wraps a terminal marshaling failure.
func (m Method) deliveryFailed(policy Policy, cause error) error {
	if b := m.Owner.log().Warning(); b.Enabled() {
		b.Uint64("loop", m.Owner.ID()).
			Stringer("policy", policy).
			Err(cause).
			Log("invocation dropped, target loop unavailable")
	}
	return newDeliveryError("invocation dropped, target loop unavailable", cause)
}
