package crossthread

import (
	"time"
)

// waitParkInterval bounds each park between pump passes while waiting.
const waitParkInterval = 10 * time.Millisecond

// waitOptions holds configuration options for WaitFor.
type waitOptions struct {
	predicate  func(args ...any) bool
	timeout    time.Duration
	hasTimeout bool
}

// WaitOption configures a [WaitFor] call.
type WaitOption interface {
	applyWait(*waitOptions) error
}

// waitOptionImpl implements WaitOption.
type waitOptionImpl struct {
	applyWaitFunc func(*waitOptions) error
}

func (w *waitOptionImpl) applyWait(opts *waitOptions) error {
	return w.applyWaitFunc(opts)
}

// WithPredicate makes [WaitFor] keep waiting until an emission whose
// arguments satisfy fn; non-matching emissions leave the subscription in
// place. The predicate runs on the waiting goroutine.
func WithPredicate(fn func(args ...any) bool) WaitOption {
	return &waitOptionImpl{func(opts *waitOptions) error {
		opts.predicate = fn
		return nil
	}}
}

// WithTimeout bounds the wait. The deadline is measured from WaitFor's
// entry, against the monotonic clock; on expiry the wait fails with a
// [TimeoutError].
func WithTimeout(d time.Duration) WaitOption {
	return &waitOptionImpl{func(opts *waitOptions) error {
		opts.timeout = d
		opts.hasTimeout = true
		return nil
	}}
}

// resolveWaitOptions applies WaitOption instances to waitOptions.
func resolveWaitOptions(opts []WaitOption) (*waitOptions, error) {
	cfg := &waitOptions{}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt.applyWait(cfg); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// WaitFor blocks the calling goroutine until sig emits (an emission
// accepted by the predicate, if one is configured), returning that
// emission's arguments. While waiting it pumps loop — the calling
// goroutine's own run loop — so queued cross-goroutine invocations, which
// may themselves be what eventually emits the signal, keep making progress.
//
// The subscription is delivered through loop's queue, and is removed on
// every exit path exactly once: success, timeout, or early failure. An
// emission after WaitFor has returned is not observed.
//
// Fails with an [InternalError] when the subscription cannot be established
// (nil or closed signal, nil loop) or when the calling goroutine may not
// pump loop, and with a [TimeoutError] when a [WithTimeout] deadline
// elapses first.
func WaitFor(loop *Loop, sig *Signal, opts ...WaitOption) ([]any, error) {
	cfg, err := resolveWaitOptions(opts)
	if err != nil {
		return nil, err
	}
	if loop == nil || sig == nil {
		return nil, newInternalError("wait requires a loop and a signal", nil)
	}

	start := time.Now()

	// received/result are only written by the listener, which runs on the
	// calling goroutine via the pump below.
	var (
		received bool
		result   []any
	)
	id := sig.ConnectQueued(loop, func(args ...any) {
		if received {
			return
		}
		if cfg.predicate == nil || cfg.predicate(args...) {
			received = true
			result = args
		}
	})
	if id == 0 {
		return nil, newInternalError("cannot connect the signal", ErrSignalClosed)
	}
	defer sig.Disconnect(id)

	for {
		if err := loop.Pump(); err != nil {
			return nil, newInternalError("cannot pump the waiting goroutine's loop", err)
		}
		if received {
			return result, nil
		}

		park := waitParkInterval
		if cfg.hasTimeout {
			remaining := cfg.timeout - time.Since(start)
			if remaining <= 0 {
				return nil, &TimeoutError{Message: "crossthread: signal wait timed out"}
			}
			if remaining < park {
				park = remaining
			}
		}
		loop.waitWork(park)
	}
}
