package pool_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/offloadio/offload/pkg/pool"
)

// drain polls the pool until want callbacks have been delivered,
// blocking on the wakeup channel between passes.
func drain(t *testing.T, p *pool.Pool, want int) {
	t.Helper()
	deadline := time.After(5 * time.Second)
	delivered := 0
	for delivered < want {
		select {
		case <-p.Wakeup():
			delivered += p.Poll()
		case <-deadline:
			t.Fatalf("timed out draining completions: got %d, want %d", delivered, want)
		}
	}
	if delivered != want {
		t.Fatalf("delivered %d callbacks, want %d", delivered, want)
	}
}

func TestNewRejectsInvalidSize(t *testing.T) {
	if _, err := pool.New(pool.Config{Workers: 0}); err == nil {
		t.Error("expected error for zero workers")
	}
	if _, err := pool.New(pool.Config{Workers: -3}); err == nil {
		t.Error("expected error for negative workers")
	}
}

func TestExactlyOnceDelivery(t *testing.T) {
	p, err := pool.New(pool.Config{Workers: 4})
	if err != nil {
		t.Fatal(err)
	}
	defer p.Shutdown()

	const n = 50
	var calls int32
	for i := 0; i < n; i++ {
		_, err := p.Submit(
			func(ctx context.Context) (any, error) { return nil, nil },
			func(res pool.Result) { atomic.AddInt32(&calls, 1) },
		)
		if err != nil {
			t.Fatal(err)
		}
	}
	drain(t, p, n)
	if got := atomic.LoadInt32(&calls); got != n {
		t.Errorf("callback fired %d times, want %d", got, n)
	}
}

func TestResultPassThrough(t *testing.T) {
	p, err := pool.New(pool.Config{Workers: 1})
	if err != nil {
		t.Fatal(err)
	}
	defer p.Shutdown()

	wantErr := errors.New("boom")
	var got pool.Result
	p.Submit(
		func(ctx context.Context) (any, error) { return 42, wantErr },
		func(res pool.Result) { got = res },
	)
	drain(t, p, 1)

	if got.Value != 42 {
		t.Errorf("result value = %v, want 42", got.Value)
	}
	if !errors.Is(got.Err, wantErr) {
		t.Errorf("result err = %v, want %v", got.Err, wantErr)
	}
	if got.Cancelled() {
		t.Error("work failure must not read as cancellation")
	}
}

// The concrete scenario from the cancellation protocol: pool size 1,
// request A blocks on a gate, request B is cancelled while still
// queued. B's work function must never run, its callback must report
// cancellation, and A must complete normally once released.
func TestCancelQueuedRequest(t *testing.T) {
	p, err := pool.New(pool.Config{Workers: 1})
	if err != nil {
		t.Fatal(err)
	}
	defer p.Shutdown()

	gate := make(chan struct{})
	started := make(chan struct{})
	var aRes, bRes pool.Result
	var bRan int32

	p.Submit(func(ctx context.Context) (any, error) {
		close(started)
		<-gate
		return "a", nil
	}, func(res pool.Result) { aRes = res })

	<-started // A is active, the only worker is busy
	b, _ := p.Submit(func(ctx context.Context) (any, error) {
		atomic.AddInt32(&bRan, 1)
		return "b", nil
	}, func(res pool.Result) { bRes = res })

	if got := b.State(); got != pool.StateQueued {
		t.Fatalf("B state = %v, want queued", got)
	}
	if out := p.Cancel(b); out != pool.Cancelled {
		t.Fatalf("Cancel(B) = %v, want Cancelled", out)
	}
	drain(t, p, 1) // B's cancellation result
	if !bRes.Cancelled() {
		t.Errorf("B result = %+v, want cancellation", bRes)
	}
	if atomic.LoadInt32(&bRan) != 0 {
		t.Error("cancelled request's work function ran")
	}
	if got := b.State(); got != pool.StateCancelled {
		t.Errorf("B state = %v, want cancelled", got)
	}

	close(gate)
	drain(t, p, 1) // A's real result
	if aRes.Err != nil || aRes.Value != "a" {
		t.Errorf("A result = %+v, want value \"a\"", aRes)
	}
}

func TestCancelActiveIsTooLate(t *testing.T) {
	p, err := pool.New(pool.Config{Workers: 1})
	if err != nil {
		t.Fatal(err)
	}
	defer p.Shutdown()

	gate := make(chan struct{})
	started := make(chan struct{})
	var res pool.Result
	r, _ := p.Submit(func(ctx context.Context) (any, error) {
		close(started)
		<-gate
		return "real", nil
	}, func(got pool.Result) { res = got })

	<-started
	if out := p.Cancel(r); out != pool.TooLate {
		t.Fatalf("Cancel(active) = %v, want TooLate", out)
	}
	close(gate)
	drain(t, p, 1)

	// Too-late cancellation must not taint the real result.
	if res.Err != nil || res.Value != "real" {
		t.Errorf("result = %+v, want real result", res)
	}
}

func TestCancelFinishedIsAlreadyFinished(t *testing.T) {
	p, err := pool.New(pool.Config{Workers: 1})
	if err != nil {
		t.Fatal(err)
	}
	defer p.Shutdown()

	r, _ := p.Submit(func(ctx context.Context) (any, error) { return nil, nil }, nil)
	drain(t, p, 1)
	if out := p.Cancel(r); out != pool.AlreadyFinished {
		t.Errorf("Cancel(done) = %v, want AlreadyFinished", out)
	}
	// Cancelling a cancelled request is also a no-op.
	gate := make(chan struct{})
	started := make(chan struct{})
	p.Submit(func(ctx context.Context) (any, error) { close(started); <-gate; return nil, nil }, nil)
	<-started
	q, _ := p.Submit(func(ctx context.Context) (any, error) { return nil, nil }, nil)
	if out := p.Cancel(q); out != pool.Cancelled {
		t.Fatalf("first Cancel = %v, want Cancelled", out)
	}
	if out := p.Cancel(q); out != pool.AlreadyFinished {
		t.Errorf("second Cancel = %v, want AlreadyFinished", out)
	}
	close(gate)
	drain(t, p, 2)
}

func TestFIFOPickupOrder(t *testing.T) {
	p, err := pool.New(pool.Config{Workers: 1})
	if err != nil {
		t.Fatal(err)
	}
	defer p.Shutdown()

	gate := make(chan struct{})
	started := make(chan struct{})
	p.Submit(func(ctx context.Context) (any, error) { close(started); <-gate; return nil, nil }, nil)
	<-started

	const n = 10
	var mu sync.Mutex
	var order []int
	for i := 0; i < n; i++ {
		i := i
		p.Submit(func(ctx context.Context) (any, error) {
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
			return nil, nil
		}, nil)
	}
	close(gate)
	drain(t, p, n+1)

	mu.Lock()
	defer mu.Unlock()
	if len(order) != n {
		t.Fatalf("ran %d requests, want %d", len(order), n)
	}
	for i, got := range order {
		if got != i {
			t.Fatalf("pickup order %v does not match submission order", order)
		}
	}
}

func TestSaturationKeepsExcessQueued(t *testing.T) {
	const workers = 3
	p, err := pool.New(pool.Config{Workers: workers})
	if err != nil {
		t.Fatal(err)
	}
	defer p.Shutdown()

	gate := make(chan struct{})
	started := make(chan struct{}, workers)
	for i := 0; i < workers; i++ {
		p.Submit(func(ctx context.Context) (any, error) {
			started <- struct{}{}
			<-gate
			return nil, nil
		}, nil)
	}
	for i := 0; i < workers; i++ {
		<-started
	}

	var ran int32
	excess, _ := p.Submit(func(ctx context.Context) (any, error) {
		atomic.AddInt32(&ran, 1)
		return nil, nil
	}, nil)

	if got := excess.State(); got != pool.StateQueued {
		t.Fatalf("excess request state = %v, want queued", got)
	}
	if s := p.Stats(); s.Queued != 1 || s.Active != workers {
		t.Errorf("stats = %+v, want 1 queued and %d active", s, workers)
	}

	if out := p.Cancel(excess); out != pool.Cancelled {
		t.Fatalf("Cancel(queued under saturation) = %v, want Cancelled", out)
	}
	close(gate)
	drain(t, p, workers+1)
	if atomic.LoadInt32(&ran) != 0 {
		t.Error("work function of a request cancelled while queued was invoked")
	}
}

func TestShutdownDrainsQueuedWork(t *testing.T) {
	p, err := pool.New(pool.Config{Workers: 2})
	if err != nil {
		t.Fatal(err)
	}

	gate := make(chan struct{})
	started := make(chan struct{}, 2)
	var calls int32
	done := func(res pool.Result) { atomic.AddInt32(&calls, 1) }

	// Two active, three queued behind them.
	for i := 0; i < 2; i++ {
		p.Submit(func(ctx context.Context) (any, error) {
			started <- struct{}{}
			<-gate
			return nil, nil
		}, done)
	}
	<-started
	<-started
	for i := 0; i < 3; i++ {
		p.Submit(func(ctx context.Context) (any, error) { return nil, nil }, done)
	}

	close(gate)
	p.Shutdown()

	// Everything accepted before shutdown is executed and delivered.
	drain(t, p, 5)
	if got := atomic.LoadInt32(&calls); got != 5 {
		t.Errorf("callbacks after shutdown drain = %d, want 5", got)
	}
}

func TestSubmitAfterShutdownFails(t *testing.T) {
	p, err := pool.New(pool.Config{Workers: 1})
	if err != nil {
		t.Fatal(err)
	}
	p.Shutdown()
	if _, err := p.Submit(func(ctx context.Context) (any, error) { return nil, nil }, nil); !errors.Is(err, pool.ErrPoolClosed) {
		t.Errorf("Submit after Shutdown = %v, want ErrPoolClosed", err)
	}
}

func TestWorkPanicBecomesResultError(t *testing.T) {
	p, err := pool.New(pool.Config{Workers: 1})
	if err != nil {
		t.Fatal(err)
	}
	defer p.Shutdown()

	var res pool.Result
	p.Submit(func(ctx context.Context) (any, error) { panic("kaboom") }, func(got pool.Result) { res = got })
	drain(t, p, 1)
	if res.Err == nil {
		t.Fatal("panic did not surface as a result error")
	}
	if res.Cancelled() {
		t.Error("panic result must not read as cancellation")
	}

	// The worker survives and keeps executing.
	var ok bool
	p.Submit(func(ctx context.Context) (any, error) { return nil, nil }, func(pool.Result) { ok = true })
	drain(t, p, 1)
	if !ok {
		t.Error("worker did not recover after a panicking task")
	}
}

func TestCallbackMaySubmit(t *testing.T) {
	p, err := pool.New(pool.Config{Workers: 1})
	if err != nil {
		t.Fatal(err)
	}
	defer p.Shutdown()

	var second int32
	p.Submit(func(ctx context.Context) (any, error) { return nil, nil }, func(pool.Result) {
		p.Submit(func(ctx context.Context) (any, error) { return nil, nil }, func(pool.Result) {
			atomic.AddInt32(&second, 1)
		})
	})
	drain(t, p, 2)
	if atomic.LoadInt32(&second) != 1 {
		t.Error("request submitted from a done callback was not delivered")
	}
}

// Race cancellation against pickup under churn: every request must get
// exactly one callback, and every Cancelled outcome must imply the work
// function never ran.
func TestCancelRacesPickup(t *testing.T) {
	p, err := pool.New(pool.Config{Workers: 4})
	if err != nil {
		t.Fatal(err)
	}
	defer p.Shutdown()

	const n = 200
	var callbacks, executed, won int32
	reqs := make([]*pool.Request, 0, n)
	ran := make([]int32, n)
	for i := 0; i < n; i++ {
		i := i
		r, err := p.Submit(func(ctx context.Context) (any, error) {
			atomic.AddInt32(&executed, 1)
			atomic.AddInt32(&ran[i], 1)
			return nil, nil
		}, func(res pool.Result) { atomic.AddInt32(&callbacks, 1) })
		if err != nil {
			t.Fatal(err)
		}
		reqs = append(reqs, r)
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i, r := range reqs {
			if p.Cancel(r) == pool.Cancelled {
				atomic.AddInt32(&won, 1)
				if atomic.LoadInt32(&ran[i]) != 0 {
					t.Errorf("request %d executed despite Cancelled outcome", i)
				}
			}
		}
	}()

	drain(t, p, n)
	wg.Wait()

	if got := atomic.LoadInt32(&callbacks); got != n {
		t.Errorf("callbacks = %d, want exactly %d", got, n)
	}
	if exec, cancelled := atomic.LoadInt32(&executed), atomic.LoadInt32(&won); exec+cancelled != n {
		t.Errorf("executed (%d) + cancelled (%d) = %d, want %d", exec, cancelled, exec+cancelled, n)
	}
}

func TestStatsCounters(t *testing.T) {
	p, err := pool.New(pool.Config{Workers: 2})
	if err != nil {
		t.Fatal(err)
	}
	defer p.Shutdown()

	gate := make(chan struct{})
	started := make(chan struct{}, 2)
	for i := 0; i < 2; i++ {
		p.Submit(func(ctx context.Context) (any, error) {
			started <- struct{}{}
			<-gate
			return nil, nil
		}, nil)
	}
	<-started
	<-started
	r, _ := p.Submit(func(ctx context.Context) (any, error) { return nil, nil }, nil)
	p.Cancel(r)
	close(gate)
	drain(t, p, 3)

	s := p.Stats()
	if s.Submitted != 3 || s.Completed != 3 || s.Cancelled != 1 {
		t.Errorf("stats = %+v, want submitted=3 completed=3 cancelled=1", s)
	}
	if s.Queued != 0 || s.Active != 0 {
		t.Errorf("stats = %+v, want idle pool", s)
	}
}
