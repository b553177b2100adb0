// Package loop provides the controlling-goroutine run loop that owns a
// pool's completion side. Run executes posted functions, timer
// callbacks and all pool done callbacks on one goroutine, which is what
// makes the pool's callback contract useful: calling code never needs
// its own locking inside callbacks.
package loop

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/offloadio/offload/pkg/pool"
)

// Loop is a single-goroutine event loop over a pool's wakeup channel
// and a mailbox of posted functions.
type Loop struct {
	pool *pool.Pool
	fns  chan func()
	stop chan struct{}
	done chan struct{}
	once sync.Once
	log  *zap.Logger
}

// Timer is a pending callback scheduled with After.
type Timer struct {
	t *time.Timer
}

// Stop cancels the timer. Reports whether it fired first.
func (t *Timer) Stop() bool { return t.t.Stop() }

// New creates a loop bound to p. Call Run to start it.
func New(p *pool.Pool, opts ...Option) *Loop {
	l := &Loop{
		pool: p,
		fns:  make(chan func(), 128),
		stop: make(chan struct{}),
		done: make(chan struct{}),
		log:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Option customizes a Loop.
type Option func(*Loop)

// WithLogger sets the loop's logger.
func WithLogger(log *zap.Logger) Option {
	return func(l *Loop) {
		if log != nil {
			l.log = log.Named("loop")
		}
	}
}

// Run blocks, draining pool completions whenever the pool signals its
// wakeup channel and executing posted functions, until Close is called.
// Wakeup signals are treated as at-least-once: every pass drains until
// the completion queue is empty.
func (l *Loop) Run() {
	defer close(l.done)
	l.log.Debug("loop running")
	for {
		select {
		case <-l.stop:
			// Final drain so completions that raced Close are still
			// delivered before the loop goroutine exits.
			l.pool.Poll()
			l.log.Debug("loop stopped")
			return
		case <-l.pool.Wakeup():
			l.pool.Poll()
		case fn := <-l.fns:
			fn()
		}
	}
}

// Post schedules fn to run on the loop goroutine. Safe to call from any
// goroutine. Posts after Close are dropped.
func (l *Loop) Post(fn func()) {
	select {
	case l.fns <- fn:
	case <-l.stop:
	}
}

// After schedules fn to run on the loop goroutine once d has elapsed.
// Pairing After with pool.Cancel is how callers put a deadline on
// still-queued work: the pool itself has no timeouts.
func (l *Loop) After(d time.Duration, fn func()) *Timer {
	return &Timer{t: time.AfterFunc(d, func() { l.Post(fn) })}
}

// Close stops the loop and waits for Run to return. It does not shut
// down the pool; shut the pool down first if its completions must all
// be delivered through this loop.
func (l *Loop) Close() {
	l.once.Do(func() { close(l.stop) })
	<-l.done
}
