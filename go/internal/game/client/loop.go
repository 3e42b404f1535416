package client

import (
	"context"
	"sync"
)

// loop serializes every state change of a session onto one goroutine.
// Timers and transport callbacks never touch session state directly: they
// post a closure here.
type loop struct {
	inbox    chan func()
	done     chan struct{}
	doneOnce sync.Once
	stopped  bool
}

func newLoop(buffer int) *loop {
	return &loop{
		inbox: make(chan func(), buffer),
		done:  make(chan struct{}),
	}
}

// post queues fn for the loop goroutine. It reports false once the loop has
// exited; fn is then dropped. post must not be called from inside the loop.
func (l *loop) post(fn func()) bool {
	select {
	case <-l.done:
		return false
	default:
	}
	select {
	case l.inbox <- fn:
		return true
	case <-l.done:
		return false
	}
}

// stop asks the loop to exit after the current closure. Loop goroutine only.
func (l *loop) stop() {
	l.stopped = true
}

// run executes posted closures until ctx is cancelled or stop is called.
// onExit runs on the loop goroutine before done is closed.
func (l *loop) run(ctx context.Context, onExit func()) {
	defer l.doneOnce.Do(func() { close(l.done) })
	for {
		select {
		case <-ctx.Done():
			if onExit != nil {
				onExit()
			}
			return
		case fn := <-l.inbox:
			fn()
			if l.stopped {
				if onExit != nil {
					onExit()
				}
				return
			}
		}
	}
}

// call runs fn on the loop and waits for it.
func (l *loop) call(ctx context.Context, fn func()) error {
	finished := make(chan struct{})
	if !l.post(func() {
		defer close(finished)
		fn()
	}) {
		return ErrSessionClosed
	}
	select {
	case <-finished:
		return nil
	case <-l.done:
		select {
		case <-finished:
			return nil
		default:
			return ErrSessionClosed
		}
	case <-ctx.Done():
		return ctx.Err()
	}
}
