package queue

import (
	"context"
	"time"

	"github.com/qworkerhq/qworker/internal/codec"
	"github.com/qworkerhq/qworker/internal/log"
	"github.com/qworkerhq/qworker/internal/metrics"
	"github.com/qworkerhq/qworker/pkg/envelope"
	"github.com/qworkerhq/qworker/pkg/handler"
)

// Dispatch runs one Item to completion: a DomainTask goes through
// Create/Run/Close, with Close always invoked on every exit path and its
// failure only logged; a Func item runs the registered handler. An
// unresolvable handler_id or domain task produces an error, never a
// panic, regardless of caller (consumer goroutine or immediate runner).
func Dispatch(ctx context.Context, item Item, handlers *handler.Registry, domainFactory envelope.DomainRunnerFactory) (any, error) {
	if item.Domain != nil {
		return dispatchDomain(ctx, item, domainFactory)
	}
	return dispatchFunc(ctx, item, handlers)
}

func dispatchFunc(ctx context.Context, item Item, handlers *handler.Registry) (any, error) {
	fn, ok := handlers.Lookup(item.HandlerID)
	if !ok {
		err := &handler.ErrUnknownHandler{HandlerID: item.HandlerID}
		metrics.HandlerRequestsTotal.WithLabelValues(item.HandlerID, "unknown").Inc()
		return nil, err
	}

	handlerLog := log.WithHandler(item.HandlerID)

	timer := metrics.NewTimer()
	result, err := fn(ctx, item.Args, item.Kwargs)
	metrics.HandlerDuration.WithLabelValues(item.HandlerID).Observe(timer.Duration().Seconds())

	outcome := "ok"
	if err != nil {
		outcome = "error"
		handlerLog.Error().Err(err).Str("correlation_id", item.CorrelationID).Msg("handler returned an error")
	}
	metrics.HandlerRequestsTotal.WithLabelValues(item.HandlerID, outcome).Inc()

	return result, err
}

func dispatchDomain(ctx context.Context, item Item, domainFactory envelope.DomainRunnerFactory) (result any, err error) {
	if domainFactory == nil {
		return nil, &envelope.NotFoundError{Program: item.Domain.Program, Task: item.Domain.Task}
	}

	runner, err := domainFactory(item.Domain)
	if err != nil {
		return nil, err
	}

	closeLog := log.WithComponent("queue").With().
		Str("program", item.Domain.Program).
		Str("task", item.Domain.Task).
		Logger()

	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if cerr := runner.Close(closeCtx); cerr != nil {
			closeLog.Warn().Err(cerr).Msg("domain task close failed")
		}
	}()

	if err := runner.Create(ctx); err != nil {
		return nil, err
	}

	return runner.Run(ctx)
}

// ResultToReply normalizes a Dispatch outcome into a wire Reply: a
// returned error becomes an exception value, never a transport failure.
func ResultToReply(result any, err error) *codec.Reply {
	if err != nil {
		return codec.ExceptionReply(err)
	}
	return codec.ValueReply(result)
}
