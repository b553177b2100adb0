// Package inspector serves a debug HTTP endpoint for a running pool:
// GET /status returns the pool's counters as JSON, GET /metrics serves
// the Prometheus registry.
package inspector

import (
	"context"
	"encoding/json"
	"net"

	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"
	"go.uber.org/zap"

	"github.com/offloadio/offload/pkg/metrics"
	"github.com/offloadio/offload/pkg/pool"
)

// Inspector exposes pool state over HTTP.
type Inspector struct {
	pool   *pool.Pool
	addr   string
	log    *zap.Logger
	server *fasthttp.Server
	ln     net.Listener
}

// Option customizes an Inspector.
type Option func(*Inspector)

// WithLogger sets the inspector's logger.
func WithLogger(log *zap.Logger) Option {
	return func(i *Inspector) {
		if log != nil {
			i.log = log.Named("inspector")
		}
	}
}

// New creates an inspector for p listening on addr.
func New(addr string, p *pool.Pool, opts ...Option) *Inspector {
	i := &Inspector{
		pool: p,
		addr: addr,
		log:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Start binds the listener and serves in the background.
func (i *Inspector) Start() error {
	ln, err := net.Listen("tcp", i.addr)
	if err != nil {
		return err
	}
	i.ln = ln

	metricsHandler := fasthttpadaptor.NewFastHTTPHandler(metrics.Handler())
	i.server = &fasthttp.Server{
		Name: "offload-inspector",
		Handler: func(ctx *fasthttp.RequestCtx) {
			switch string(ctx.Path()) {
			case "/status":
				i.handleStatus(ctx)
			case "/metrics":
				metricsHandler(ctx)
			default:
				ctx.SetStatusCode(fasthttp.StatusNotFound)
			}
		},
	}

	go func() {
		if err := i.server.Serve(ln); err != nil {
			i.log.Error("inspector server stopped", zap.Error(err))
		}
	}()
	i.log.Info("inspector listening", zap.String("addr", ln.Addr().String()))
	return nil
}

// Addr returns the bound address, useful when addr was ":0".
func (i *Inspector) Addr() string {
	if i.ln == nil {
		return i.addr
	}
	return i.ln.Addr().String()
}

// Stop gracefully shuts the server down.
func (i *Inspector) Stop(ctx context.Context) error {
	if i.server == nil {
		return nil
	}
	return i.server.ShutdownWithContext(ctx)
}

func (i *Inspector) handleStatus(ctx *fasthttp.RequestCtx) {
	ctx.SetContentType("application/json")
	if err := json.NewEncoder(ctx).Encode(i.pool.Stats()); err != nil {
		ctx.SetStatusCode(fasthttp.StatusInternalServerError)
	}
}
