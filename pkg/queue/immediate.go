package queue

import (
	"context"

	"github.com/qworkerhq/qworker/internal/metrics"
	"github.com/qworkerhq/qworker/pkg/envelope"
	"github.com/qworkerhq/qworker/pkg/handler"
)

// ImmediateRunner executes items off the server's accept loop on a
// bounded pool of goroutines, each given its own child context — the
// Go analogue of "a fresh scheduler context per task" that never shares
// state with the server's own scheduler.
type ImmediateRunner struct {
	sem           chan struct{}
	handlers      *handler.Registry
	domainFactory envelope.DomainRunnerFactory
}

// NewImmediateRunner bounds concurrent immediate-mode executions to size.
func NewImmediateRunner(size int, handlers *handler.Registry, domainFactory envelope.DomainRunnerFactory) *ImmediateRunner {
	return &ImmediateRunner{
		sem:           make(chan struct{}, size),
		handlers:      handlers,
		domainFactory: domainFactory,
	}
}

// Run blocks the caller until item has executed on an isolated
// goroutine, or until ctx is done while waiting for a free slot. The
// caller is expected to be a per-connection handler goroutine, already
// disjoint from the accept loop; the semaphore only bounds concurrent
// CPU-bound work the way a fixed thread pool would.
func (r *ImmediateRunner) Run(ctx context.Context, item Item) (any, error) {
	select {
	case r.sem <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	defer func() { <-r.sem }()

	metrics.ImmediateInFlight.Inc()
	defer metrics.ImmediateInFlight.Dec()

	taskCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	type outcome struct {
		result any
		err    error
	}
	done := make(chan outcome, 1)

	go func() {
		result, err := Dispatch(taskCtx, item, r.handlers, r.domainFactory)
		done <- outcome{result: result, err: err}
	}()

	o := <-done
	return o.result, o.err
}
