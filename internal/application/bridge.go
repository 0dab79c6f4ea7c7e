package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var ErrBridgeTimeout = errors.New("bridged operation timed out")

type BridgeObserver interface {
	OnOperationStarted(op string)
	OnOperationFinished(op string, elapsed time.Duration, err error)
}

// Bridge runs chain and wallet work off the request goroutine and hands the
// result back through a one-shot channel. Operations are detached from caller
// cancellation and bounded only by the bridge timeout.
type Bridge struct {
	timeout  time.Duration
	observer BridgeObserver
	tracer   trace.Tracer
}

// NewBridge returns a bridge that aborts operations after timeout. A zero
// timeout leaves operations unbounded.
func NewBridge(timeout time.Duration, observer BridgeObserver) *Bridge {
	if timeout < 0 {
		timeout = 0
	}
	return &Bridge{
		timeout:  timeout,
		observer: observer,
		tracer:   otel.Tracer("dspacegw/bridge"),
	}
}

type outcome[T any] struct {
	value T
	err   error
}

// Await submits op to its own goroutine and blocks until it completes or the
// bridge timeout elapses. Each call owns its result channel, so a slow
// operation never delays an unrelated one.
func Await[T any](ctx context.Context, b *Bridge, name string, op func(context.Context) (T, error)) (T, error) {
	var zero T
	if b == nil {
		return zero, errors.New("bridge is not configured")
	}

	opCtx := context.WithoutCancel(ctx)
	var cancel context.CancelFunc
	if b.timeout > 0 {
		opCtx, cancel = context.WithTimeout(opCtx, b.timeout)
	} else {
		opCtx, cancel = context.WithCancel(opCtx)
	}
	defer cancel()

	opCtx, span := b.tracer.Start(opCtx, "bridge."+name, trace.WithAttributes(
		attribute.String("bridge.operation", name),
	))
	defer span.End()

	if b.observer != nil {
		b.observer.OnOperationStarted(name)
	}
	started := time.Now()

	done := make(chan outcome[T], 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- outcome[T]{err: fmt.Errorf("%s panicked: %v", name, r)}
			}
		}()
		value, err := op(opCtx)
		done <- outcome[T]{value: value, err: err}
	}()

	var result outcome[T]
	select {
	case result = <-done:
	case <-opCtx.Done():
		result.err = fmt.Errorf("%w: %s after %s", ErrBridgeTimeout, name, b.timeout)
	}
	if result.err != nil && errors.Is(result.err, context.DeadlineExceeded) && !errors.Is(result.err, ErrBridgeTimeout) {
		result.err = fmt.Errorf("%w: %s: %w", ErrBridgeTimeout, name, result.err)
	}

	if b.observer != nil {
		b.observer.OnOperationFinished(name, time.Since(started), result.err)
	}
	if result.err != nil {
		span.RecordError(result.err)
		span.SetStatus(codes.Error, result.err.Error())
		return zero, result.err
	}
	return result.value, nil
}
