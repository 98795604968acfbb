package rpc

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/guardquote/ml-engine/internal/domain"
	"github.com/guardquote/ml-engine/internal/quote"
)

// RequestIDMetadataKey carries the caller's request ID in both directions.
const RequestIDMetadataKey = "x-request-id"

type requestIDKey struct{}

// requestIDFrom returns the call's request ID, or a fresh one outside an
// intercepted call.
func requestIDFrom(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey{}).(string); ok && id != "" {
		return id
	}
	return uuid.New().String()
}

// callContext tags ctx with the RPC transport and the request ID taken
// from incoming metadata. The returned header echoes the ID to the caller.
func callContext(ctx context.Context) (context.Context, metadata.MD) {
	id := ""
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if vals := md.Get(RequestIDMetadataKey); len(vals) > 0 {
			id = vals[0]
		}
	}
	if id == "" {
		id = uuid.New().String()
	}
	ctx = context.WithValue(ctx, requestIDKey{}, id)
	return quote.WithTransport(ctx, quote.TransportRPC), metadata.Pairs(RequestIDMetadataKey, id)
}

// UnaryInterceptor traces, logs and recovers unary calls. Spans are recorded
// only when tracing.Enabled.
func UnaryInterceptor(logger *slog.Logger, tracing domain.TracingConfig) grpc.UnaryServerInterceptor {
	spans := newSpanner(tracing)
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (resp any, err error) {
		start := time.Now()
		ctx, header := callContext(ctx)
		_ = grpc.SetHeader(ctx, header)
		ctx, span := spans.start(ctx, info.FullMethod, false)
		defer func() {
			if r := recover(); r != nil {
				logger.Error("panic recovered",
					"method", info.FullMethod,
					"error", r,
					"stack", string(debug.Stack()),
				)
				resp, err = nil, status.Error(codes.Internal, fmt.Sprintf("internal error: %v", r))
			}
			finishCall(logger, span, info.FullMethod, requestIDFrom(ctx), start, err)
		}()
		return handler(ctx, req)
	}
}

// StreamInterceptor traces, logs and recovers streaming calls.
func StreamInterceptor(logger *slog.Logger, tracing domain.TracingConfig) grpc.StreamServerInterceptor {
	spans := newSpanner(tracing)
	return func(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) (err error) {
		start := time.Now()
		ctx, header := callContext(ss.Context())
		_ = ss.SetHeader(header)
		ctx, span := spans.start(ctx, info.FullMethod, true)
		defer func() {
			if r := recover(); r != nil {
				logger.Error("panic recovered",
					"method", info.FullMethod,
					"error", r,
					"stack", string(debug.Stack()),
				)
				err = status.Error(codes.Internal, fmt.Sprintf("internal error: %v", r))
			}
			finishCall(logger, span, info.FullMethod, requestIDFrom(ctx), start, err)
		}()
		return handler(srv, &serverStream{ServerStream: ss, ctx: ctx})
	}
}

type spanner struct {
	tracer trace.Tracer
	attrs  []attribute.KeyValue
}

func newSpanner(cfg domain.TracingConfig) spanner {
	s := spanner{tracer: noop.NewTracerProvider().Tracer("")}
	if cfg.Enabled {
		s.tracer = otel.Tracer("guardquote-ml/rpc")
	}
	if cfg.ServiceName != "" {
		s.attrs = append(s.attrs, attribute.String("service.name", cfg.ServiceName))
	}
	return s
}

func (s spanner) start(ctx context.Context, method string, streaming bool) (context.Context, trace.Span) {
	return s.tracer.Start(ctx, method,
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(
			attribute.String("rpc.system", "grpc"),
			attribute.String("rpc.method", method),
			attribute.Bool("rpc.streaming", streaming),
			attribute.String("request.id", requestIDFrom(ctx)),
		),
		trace.WithAttributes(s.attrs...),
	)
}

func finishCall(logger *slog.Logger, span trace.Span, method, requestID string, start time.Time, err error) {
	code := status.Code(err)
	span.SetAttributes(attribute.String("rpc.grpc.status_code", code.String()))
	if code != codes.OK && code != codes.InvalidArgument {
		span.SetStatus(otelcodes.Error, err.Error())
	}
	span.End()

	attrs := []any{
		"method", method,
		"code", code.String(),
		"duration_ms", time.Since(start).Milliseconds(),
		"request_id", requestID,
	}
	if err != nil {
		attrs = append(attrs, "error", err)
	}
	switch code {
	case codes.OK, codes.InvalidArgument, codes.Canceled:
		logger.Info("rpc call", attrs...)
	default:
		logger.Error("rpc call", attrs...)
	}
}

// serverStream overrides the stream context with the intercepted one.
type serverStream struct {
	grpc.ServerStream
	ctx context.Context
}

func (s *serverStream) Context() context.Context { return s.ctx }
