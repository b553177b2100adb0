package pool

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var (
	// ErrPoolClosed is returned by Submit after Shutdown has begun.
	ErrPoolClosed = errors.New("pool: pool is closed")

	// ErrCancelled is the result error carried by a request that was
	// cancelled before a worker picked it up. Callbacks use it to tell
	// cancellation apart from a genuine empty work result.
	ErrCancelled = errors.New("pool: request cancelled")
)

// Task is the unit of work executed on a worker goroutine. Execute may
// block arbitrarily; the pool never interrupts it.
type Task interface {
	Execute(ctx context.Context) (any, error)
}

// WorkFunc adapts a plain function to the Task interface.
type WorkFunc func(ctx context.Context) (any, error)

func (f WorkFunc) Execute(ctx context.Context) (any, error) { return f(ctx) }

// Result is what a finished request hands to its done callback.
type Result struct {
	Value any
	Err   error
}

// Cancelled reports whether the result stems from cancellation rather
// than from running the work function.
func (r Result) Cancelled() bool { return errors.Is(r.Err, ErrCancelled) }

// DoneFunc is invoked exactly once per request, on the goroutine that
// calls Poll, never on a worker.
type DoneFunc func(res Result)

// State is the lifecycle tag of a request.
type State int32

const (
	// StateQueued: waiting in the pool's wait queue, not yet picked up.
	StateQueued State = iota
	// StateActive: a worker is running the work function.
	StateActive
	// StateDone: finished, result pending or already delivered.
	StateDone
	// StateCancelled: removed from the queue before pickup; terminal
	// like StateDone but carrying ErrCancelled instead of a work result.
	StateCancelled
)

func (s State) String() string {
	switch s {
	case StateQueued:
		return "queued"
	case StateActive:
		return "active"
	case StateDone:
		return "done"
	case StateCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Outcome is the three-way answer of Cancel. It is informational, not
// an error.
type Outcome int

const (
	// Cancelled: the request was still queued and has been excised; its
	// work function will never run.
	Cancelled Outcome = iota
	// TooLate: a worker already picked the request up; it runs to
	// completion and delivers its real result.
	TooLate
	// AlreadyFinished: the request had already finished or was already
	// cancelled.
	AlreadyFinished
)

func (o Outcome) String() string {
	switch o {
	case Cancelled:
		return "cancelled"
	case TooLate:
		return "too late"
	case AlreadyFinished:
		return "already finished"
	default:
		return "unknown"
	}
}

// Request is one submitted unit of work plus its lifecycle state. It is
// created by Submit and owned by the pool until its done callback
// returns, at which point ownership reverts to the submitter.
type Request struct {
	id   uuid.UUID
	task Task
	done DoneFunc

	// state, result and the queue links are guarded by the pool mutex.
	state      State
	result     Result
	prev, next *Request

	pool *Pool
}

// ID returns the request's identifier, for logs and traces. Handle
// identity is the *Request pointer itself.
func (r *Request) ID() uuid.UUID { return r.id }

// State reports the request's current lifecycle state. It is a racy
// snapshot by nature: a queued request may be picked up the instant
// after State returns.
func (r *Request) State() State {
	r.pool.mu.Lock()
	defer r.pool.mu.Unlock()
	return r.state
}
