package integration_tests

import (
	"context"
	"sync"
	"testing"
	"time"
)

// barrier blocks each arriving step until n steps have arrived. A step that
// waits longer than the timeout reports a failure and moves on, so a broken
// scheduler fails the test instead of hanging it.
type barrier struct {
	t       *testing.T
	wg      sync.WaitGroup
	done    chan struct{}
	once    sync.Once
	timeout time.Duration
}

func newBarrier(t *testing.T, n int) *barrier {
	b := &barrier{t: t, done: make(chan struct{}), timeout: 5 * time.Second}
	b.wg.Add(n)
	go func() {
		b.wg.Wait()
		close(b.done)
	}()
	return b
}

// arrive is used as a testutil.Response hook.
func (b *barrier) arrive(ctx context.Context) {
	b.wg.Done()
	select {
	case <-b.done:
	case <-ctx.Done():
	case <-time.After(b.timeout):
		b.once.Do(func() { b.t.Errorf("steps did not run concurrently: barrier timed out") })
	}
}
