// Package loop provides the single logical thread the playback engine runs on.
//
// Every controller operation, provider callback, timer expiry and channel
// message is executed as a task on one goroutine, so engine state never needs
// a lock. Code running on the loop must never block on the loop itself.
package loop

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrClosed is returned when a task is submitted to a closed loop.
var ErrClosed = errors.New("loop closed")

// Loop serializes tasks onto a single goroutine.
type Loop struct {
	mu    sync.Mutex
	queue []func()
	wake  chan struct{}
	done  chan struct{}
	exit  chan struct{}
}

// New creates and starts a loop.
func New() *Loop {
	l := &Loop{
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
		exit: make(chan struct{}),
	}
	go l.run()
	return l
}

func (l *Loop) run() {
	defer close(l.exit)
	for {
		select {
		case <-l.wake:
		case <-l.done:
			return
		}
		for {
			fn, ok := l.next()
			if !ok {
				break
			}
			fn()
			select {
			case <-l.done:
				return
			default:
			}
		}
	}
}

func (l *Loop) next() (func(), bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.queue) == 0 {
		return nil, false
	}
	fn := l.queue[0]
	l.queue[0] = nil
	l.queue = l.queue[1:]
	return fn, true
}

// Post queues fn for execution on the loop without waiting.
// The queue is unbounded, so Post never blocks and is safe to call from a
// task running on the loop. Returns false if the loop is closed.
func (l *Loop) Post(fn func()) bool {
	select {
	case <-l.done:
		return false
	default:
	}
	l.mu.Lock()
	l.queue = append(l.queue, fn)
	l.mu.Unlock()
	select {
	case l.wake <- struct{}{}:
	default:
	}
	return true
}

// Do runs fn on the loop and waits for it to complete.
// Must not be called from a task running on the loop: use Post there.
func (l *Loop) Do(ctx context.Context, fn func()) error {
	finished := make(chan struct{})
	if !l.Post(func() {
		defer close(finished)
		fn()
	}) {
		return ErrClosed
	}
	select {
	case <-finished:
		return nil
	case <-l.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops the loop and waits for the running task to return.
// Queued tasks that have not started are dropped. Safe to call twice.
func (l *Loop) Close() {
	select {
	case <-l.done:
	default:
		close(l.done)
	}
	<-l.exit
}

// Done is closed when the loop is closed.
func (l *Loop) Done() <-chan struct{} {
	return l.done
}

// Timer is a one-shot timer whose callback runs on the loop.
//
// Stop and the callback both run on the loop, so once Stop returns the
// callback is guaranteed not to run, even if its wake-up was already queued.
type Timer struct {
	t       *time.Timer
	stopped bool
	fired   bool
}

// AfterFunc schedules fn to run on the loop after d.
// The returned timer must only be stopped from the loop.
func (l *Loop) AfterFunc(d time.Duration, fn func()) *Timer {
	tm := &Timer{}
	tm.t = time.AfterFunc(d, func() {
		l.Post(func() {
			if tm.stopped {
				return
			}
			tm.fired = true
			fn()
		})
	})
	return tm
}

// Stop cancels the timer. Returns true if the callback had not run yet.
// Calling Stop on a nil timer is a no-op.
func (t *Timer) Stop() bool {
	if t == nil || t.stopped {
		return false
	}
	t.stopped = true
	t.t.Stop()
	return !t.fired
}

// Active reports whether the timer is still pending.
func (t *Timer) Active() bool {
	return t != nil && !t.stopped && !t.fired
}
