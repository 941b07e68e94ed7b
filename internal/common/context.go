package common

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

var interruptSignals = []os.Signal{os.Interrupt, syscall.SIGTERM}

// WithInterrupt returns a context cancelled on SIGINT or SIGTERM. Call the
// returned function once done to stop listening.
func WithInterrupt(parent context.Context) (context.Context, func()) {
	ctx, stop := signal.NotifyContext(parent, interruptSignals...)
	return ctx, stop
}

// NewInterruptChannel is for callers that shut down in steps and need the
// signal itself, e.g. the web service.
func NewInterruptChannel() (<-chan os.Signal, func()) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, interruptSignals...)

	return sigChan, func() {
		signal.Stop(sigChan)
	}
}

type correlationKey struct{}

// WithCorrelationID attaches a request correlation ID so outbound calls to
// the backend can carry it.
func WithCorrelationID(parent context.Context, id string) context.Context {
	if len(id) == 0 {
		return parent
	}
	return context.WithValue(parent, correlationKey{}, id)
}

// CorrelationID returns the ID set by WithCorrelationID, or "".
func CorrelationID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(correlationKey{}).(string)
	return id
}
