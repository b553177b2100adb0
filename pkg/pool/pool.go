// Package pool implements a fixed-size background worker pool with
// best-effort cancellation of requests that have not started executing.
//
// The controlling goroutine submits work and gets back a *Request
// handle. Workers pull requests off a FIFO wait queue, run them, and
// push them onto a completion queue. The controlling goroutine drains
// completions with Poll, which invokes each request's done callback
// exactly once — cancelled or not — on the polling goroutine, never on
// a worker. A capacity-1 wakeup channel lets an event loop block until
// completions are pending instead of polling.
//
// Cancel is synchronous and never blocks: it either excises a
// still-queued request (its work function will never run), or reports
// that the request was picked up or already finished. Work that has
// begun always runs to completion.
package pool

import (
	"context"
	"fmt"
	"sync"

	"github.com/eapache/queue"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Config holds the pool's construction parameters.
type Config struct {
	// Workers is the fixed number of worker goroutines, started eagerly.
	// Must be at least 1.
	Workers int `yaml:"workers"`
}

// Stats is a point-in-time snapshot of pool counters.
type Stats struct {
	Workers   int    `json:"workers"`
	Queued    int    `json:"queued"`
	Active    int    `json:"active"`
	Submitted uint64 `json:"submitted"`
	Completed uint64 `json:"completed"`
	Cancelled uint64 `json:"cancelled"`
}

// Pool is a fixed set of worker goroutines executing submitted requests.
type Pool struct {
	// mu is the single lock of the cancellation protocol: it guards the
	// wait queue, every request state transition, and the counters. The
	// pickup transition and Cancel serialize on it, so whichever
	// acquires it first wins and the other observes the result.
	mu     sync.Mutex
	cond   *sync.Cond
	wq     waitQueue
	closed bool

	workers   int
	active    int
	submitted uint64
	completed uint64
	cancelled uint64

	// Completion side, under its own lock: workers produce, Poll is the
	// sole consumer. Kept separate from mu so pushing a completion never
	// contends with submission or cancellation.
	cmu         sync.Mutex
	completions *queue.Queue
	wake        chan struct{}

	wg      sync.WaitGroup
	baseCtx context.Context
	log     *zap.Logger
	tracer  trace.Tracer
}

// New validates cfg, starts cfg.Workers worker goroutines and returns
// the running pool.
func New(cfg Config, opts ...Option) (*Pool, error) {
	if cfg.Workers < 1 {
		return nil, fmt.Errorf("pool: worker count must be at least 1, got %d", cfg.Workers)
	}
	p := &Pool{
		workers:     cfg.Workers,
		completions: queue.New(),
		wake:        make(chan struct{}, 1),
		baseCtx:     context.Background(),
		log:         zap.NewNop(),
	}
	p.cond = sync.NewCond(&p.mu)
	for _, opt := range opts {
		opt(p)
	}
	p.wg.Add(cfg.Workers)
	for i := 0; i < cfg.Workers; i++ {
		go p.worker()
	}
	p.log.Info("worker pool started", zap.Int("workers", cfg.Workers))
	return p, nil
}

// Submit enqueues a plain work function. See SubmitTask.
func (p *Pool) Submit(work WorkFunc, done DoneFunc) (*Request, error) {
	return p.SubmitTask(work, done)
}

// SubmitTask appends a request to the tail of the wait queue and
// returns immediately. Requests are picked up in submission order.
// Fails only with ErrPoolClosed once Shutdown has begun.
func (p *Pool) SubmitTask(task Task, done DoneFunc) (*Request, error) {
	if task == nil {
		return nil, fmt.Errorf("pool: nil task")
	}
	r := &Request{
		id:    uuid.New(),
		task:  task,
		done:  done,
		state: StateQueued,
		pool:  p,
	}
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, ErrPoolClosed
	}
	p.wq.push(r)
	p.submitted++
	p.mu.Unlock()
	p.cond.Signal()
	p.log.Debug("request queued", zap.String("request", r.id.String()))
	return r, nil
}

// Cancel attempts to cancel r before a worker picks it up. It never
// blocks beyond the lock hold time and always returns a definitive
// outcome. On Cancelled the request skips execution entirely and is
// routed through the completion queue with ErrCancelled, so its done
// callback still fires exactly once.
func (p *Pool) Cancel(r *Request) Outcome {
	p.mu.Lock()
	switch r.state {
	case StateQueued:
		p.wq.remove(r)
		r.state = StateCancelled
		r.result = Result{Err: ErrCancelled}
		p.cancelled++
		p.mu.Unlock()
		p.complete(r)
		p.log.Debug("request cancelled", zap.String("request", r.id.String()))
		return Cancelled
	case StateActive:
		p.mu.Unlock()
		return TooLate
	default:
		p.mu.Unlock()
		return AlreadyFinished
	}
}

// Poll drains all currently pending completions and invokes each done
// callback, in drain order, with no pool locks held. Callbacks may
// submit new requests. Returns the number delivered. Call it from the
// single controlling goroutine, woken via Wakeup.
func (p *Pool) Poll() int {
	n := 0
	for {
		p.cmu.Lock()
		if p.completions.Length() == 0 {
			p.cmu.Unlock()
			return n
		}
		r := p.completions.Remove().(*Request)
		p.cmu.Unlock()

		p.mu.Lock()
		p.completed++
		p.mu.Unlock()
		if r.done != nil {
			r.done(r.result)
		}
		n++
	}
}

// Wakeup returns the channel signalled when completions become
// pending. The signal is at-least-once and idempotent: receivers must
// drain with Poll until empty rather than assume one completion per
// signal.
func (p *Pool) Wakeup() <-chan struct{} { return p.wake }

// Shutdown stops accepting new work and blocks until every worker has
// exited. Requests still queued are executed first: workers drain the
// wait queue before exiting, so every accepted request is delivered.
// Completions produced during shutdown are delivered on the caller's
// next Poll; Shutdown signals the wakeup channel once more so a loop
// blocked on it notices them.
func (p *Pool) Shutdown() {
	p.mu.Lock()
	already := p.closed
	p.closed = true
	p.mu.Unlock()
	p.cond.Broadcast()
	p.wg.Wait()
	if !already {
		p.log.Info("worker pool stopped")
	}
	select {
	case p.wake <- struct{}{}:
	default:
	}
}

// Stats returns a snapshot of the pool's counters.
func (p *Pool) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Stats{
		Workers:   p.workers,
		Queued:    p.wq.size,
		Active:    p.active,
		Submitted: p.submitted,
		Completed: p.completed,
		Cancelled: p.cancelled,
	}
}

// worker is the loop run by each worker goroutine: block for a request,
// mark it active inside the dequeue critical section, run it, mark it
// done and hand it to the completion queue.
func (p *Pool) worker() {
	defer p.wg.Done()
	for {
		p.mu.Lock()
		for p.wq.size == 0 && !p.closed {
			p.cond.Wait()
		}
		r := p.wq.pop()
		if r == nil {
			// Closed and drained.
			p.mu.Unlock()
			return
		}
		// Atomic with the removal above: a concurrent Cancel that lost
		// the race for mu now observes StateActive and reports TooLate.
		r.state = StateActive
		p.active++
		p.mu.Unlock()

		res := p.run(r)

		p.mu.Lock()
		r.state = StateDone
		r.result = res
		p.active--
		p.mu.Unlock()
		p.complete(r)
	}
}

// run executes the request's work function, recovering panics into a
// result error so a misbehaving task cannot take a worker down.
func (p *Pool) run(r *Request) (res Result) {
	ctx := p.baseCtx
	var span trace.Span
	if p.tracer != nil {
		ctx, span = p.tracer.Start(ctx, "pool.execute",
			trace.WithAttributes(attribute.String("request.id", r.id.String())))
	}
	defer func() {
		if rec := recover(); rec != nil {
			res = Result{Err: fmt.Errorf("pool: work function panicked: %v", rec)}
			p.log.Error("work function panicked", zap.String("request", r.id.String()), zap.Any("panic", rec))
		}
		if span != nil {
			if res.Err != nil {
				span.RecordError(res.Err)
				span.SetStatus(codes.Error, res.Err.Error())
			}
			span.End()
		}
	}()
	v, err := r.task.Execute(ctx)
	return Result{Value: v, Err: err}
}

// complete moves a finished request onto the completion queue and
// signals the wakeup channel. Non-blocking: a signal already pending
// covers this completion too.
func (p *Pool) complete(r *Request) {
	p.cmu.Lock()
	p.completions.Add(r)
	p.cmu.Unlock()
	select {
	case p.wake <- struct{}{}:
	default:
	}
}
