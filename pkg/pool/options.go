package pool

import (
	"context"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Option customizes a Pool at construction time.
type Option func(*Pool)

// WithLogger sets the pool's logger. Defaults to a nop logger.
func WithLogger(log *zap.Logger) Option {
	return func(p *Pool) {
		if log != nil {
			p.log = log.Named("pool")
		}
	}
}

// WithTracer wraps every work execution in a span carrying the request
// id. No spans are emitted without it.
func WithTracer(tracer trace.Tracer) Option {
	return func(p *Pool) { p.tracer = tracer }
}

// WithBaseContext sets the context passed to work functions. The pool
// never cancels it: cancellation only ever prevents execution from
// starting. Defaults to context.Background().
func WithBaseContext(ctx context.Context) Option {
	return func(p *Pool) {
		if ctx != nil {
			p.baseCtx = ctx
		}
	}
}
