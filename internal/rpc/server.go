// Package rpc serves the engine over gRPC. Messages travel as JSON under
// the "json" content subtype, so the service descriptors here are written
// by hand rather than generated.
package rpc

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"time"

	"google.golang.org/grpc"

	"github.com/guardquote/ml-engine/internal/domain"
	"github.com/guardquote/ml-engine/internal/quote"
)

// Server is the gRPC front end of a quote.Service.
type Server struct {
	grpc   *grpc.Server
	config domain.RPCConfig
	logger *slog.Logger
}

// Option configures a Server.
type Option func(*options)

type options struct {
	logger  *slog.Logger
	version string
	tracing domain.TracingConfig
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithVersion sets the build version reported by HealthCheck.
func WithVersion(v string) Option {
	return func(o *options) { o.version = v }
}

// WithTracing records a span per call when cfg.Enabled.
func WithTracing(cfg domain.TracingConfig) Option {
	return func(o *options) { o.tracing = cfg }
}

// NewServer creates a gRPC server exposing the quote, risk and model services.
func NewServer(cfg domain.RPCConfig, service *quote.Service, opts ...Option) *Server {
	o := options{logger: slog.Default(), version: "dev"}
	for _, opt := range opts {
		opt(&o)
	}

	serverOpts := []grpc.ServerOption{
		grpc.ForceServerCodec(codec{}),
		grpc.ChainUnaryInterceptor(UnaryInterceptor(o.logger, o.tracing)),
		grpc.ChainStreamInterceptor(StreamInterceptor(o.logger, o.tracing)),
	}
	if cfg.MaxConcurrentStreams > 0 {
		serverOpts = append(serverOpts, grpc.MaxConcurrentStreams(cfg.MaxConcurrentStreams))
	}

	gs := grpc.NewServer(serverOpts...)
	impl := &engineService{service: service, version: o.version}
	gs.RegisterService(&quoteServiceDesc, impl)
	gs.RegisterService(&riskServiceDesc, impl)
	gs.RegisterService(&modelServiceDesc, impl)

	return &Server{grpc: gs, config: cfg, logger: o.logger}
}

// Addr returns the configured listen address.
func (s *Server) Addr() string {
	return fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
}

// Start listens on the configured address and serves until Shutdown.
func (s *Server) Start() error {
	l, err := net.Listen("tcp", s.Addr())
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.Addr(), err)
	}
	return s.Serve(l)
}

// Serve serves on an existing listener until Shutdown.
func (s *Server) Serve(l net.Listener) error {
	s.logger.Info("rpc server listening", "addr", l.Addr().String())
	return s.grpc.Serve(l)
}

// Shutdown stops accepting calls and waits for in-flight ones. When ctx ends
// or the configured shutdown timeout passes first, remaining calls are cut off.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.config.ShutdownTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(s.config.ShutdownTimeout)*time.Second)
		defer cancel()
	}

	done := make(chan struct{})
	go func() {
		s.grpc.GracefulStop()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		s.grpc.Stop()
		<-done
		return ctx.Err()
	}
}

// GRPCServer returns the underlying server for testing.
func (s *Server) GRPCServer() *grpc.Server {
	return s.grpc
}
