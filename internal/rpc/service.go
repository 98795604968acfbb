package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"iter"
	"strconv"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/guardquote/ml-engine/internal/domain"
	"github.com/guardquote/ml-engine/internal/quote"
)

// Fully qualified service names.
const (
	QuoteServiceName = "guardquote.ml.v1.QuoteService"
	RiskServiceName  = "guardquote.ml.v1.RiskService"
	ModelServiceName = "guardquote.ml.v1.ModelService"
)

const protoFile = "guardquote/ml/v1/ml_engine.proto"

// QuoteServiceServer prices quotes.
type QuoteServiceServer interface {
	GenerateQuote(context.Context, *QuoteRequest) (*QuoteResponse, error)
	GenerateQuoteRuleBased(context.Context, *QuoteRequest) (*QuoteResponse, error)
	GenerateQuotesBatch(grpc.ServerStream) error
}

// RiskServiceServer assesses risk.
type RiskServiceServer interface {
	AssessRisk(context.Context, *RiskRequest) (*RiskResponse, error)
	AssessRiskBatch(grpc.ServerStream) error
}

// ModelServiceServer reports engine and model state.
type ModelServiceServer interface {
	HealthCheck(context.Context, *HealthRequest) (*HealthResponse, error)
	GetModelInfo(context.Context, *ModelInfoRequest) (*ModelInfoResponse, error)
	GetEventTypes(context.Context, *EventTypesRequest) (*EventTypesResponse, error)
}

var quoteServiceDesc = grpc.ServiceDesc{
	ServiceName: QuoteServiceName,
	HandlerType: (*QuoteServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "GenerateQuote", Handler: unaryHandler(QuoteServiceName, "GenerateQuote", QuoteServiceServer.GenerateQuote)},
		{MethodName: "GenerateQuoteRuleBased", Handler: unaryHandler(QuoteServiceName, "GenerateQuoteRuleBased", QuoteServiceServer.GenerateQuoteRuleBased)},
	},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "GenerateQuotesBatch",
			Handler:       func(srv any, stream grpc.ServerStream) error { return srv.(QuoteServiceServer).GenerateQuotesBatch(stream) },
			ServerStreams: true,
			ClientStreams: true,
		},
	},
	Metadata: protoFile,
}

var riskServiceDesc = grpc.ServiceDesc{
	ServiceName: RiskServiceName,
	HandlerType: (*RiskServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "AssessRisk", Handler: unaryHandler(RiskServiceName, "AssessRisk", RiskServiceServer.AssessRisk)},
	},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "AssessRiskBatch",
			Handler:       func(srv any, stream grpc.ServerStream) error { return srv.(RiskServiceServer).AssessRiskBatch(stream) },
			ServerStreams: true,
			ClientStreams: true,
		},
	},
	Metadata: protoFile,
}

var modelServiceDesc = grpc.ServiceDesc{
	ServiceName: ModelServiceName,
	HandlerType: (*ModelServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "HealthCheck", Handler: unaryHandler(ModelServiceName, "HealthCheck", ModelServiceServer.HealthCheck)},
		{MethodName: "GetModelInfo", Handler: unaryHandler(ModelServiceName, "GetModelInfo", ModelServiceServer.GetModelInfo)},
		{MethodName: "GetEventTypes", Handler: unaryHandler(ModelServiceName, "GetEventTypes", ModelServiceServer.GetEventTypes)},
	},
	Metadata: protoFile,
}

// unaryHandler adapts a typed method expression to grpc.MethodDesc.Handler.
func unaryHandler[S, Req, Resp any](service, method string, fn func(S, context.Context, *Req) (*Resp, error)) func(any, context.Context, func(any) error, grpc.UnaryServerInterceptor) (any, error) {
	fullMethod := "/" + service + "/" + method
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return fn(srv.(S), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req any) (any, error) {
			return fn(srv.(S), ctx, req.(*Req))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// engineService implements the three services over one quote.Service.
type engineService struct {
	service *quote.Service
	version string
}

func (s *engineService) GenerateQuote(ctx context.Context, in *QuoteRequest) (*QuoteResponse, error) {
	resp, err := s.service.GenerateQuote(ctx, in.toDomain(requestIDFrom(ctx)))
	if err != nil {
		return nil, toStatus(err)
	}
	return newQuoteResponse(resp), nil
}

func (s *engineService) GenerateQuoteRuleBased(ctx context.Context, in *QuoteRequest) (*QuoteResponse, error) {
	resp, err := s.service.GenerateQuoteRuleBased(ctx, in.toDomain(requestIDFrom(ctx)))
	if err != nil {
		return nil, toStatus(err)
	}
	return newQuoteResponse(resp), nil
}

func (s *engineService) AssessRisk(ctx context.Context, in *RiskRequest) (*RiskResponse, error) {
	resp, err := s.service.AssessRisk(ctx, in.toDomain(requestIDFrom(ctx)))
	if err != nil {
		return nil, toStatus(err)
	}
	return newRiskResponse(resp), nil
}

// GenerateQuotesBatch answers each received request with one response, in
// order. A failed element is answered with its error and the stream goes on.
func (s *engineService) GenerateQuotesBatch(stream grpc.ServerStream) error {
	ctx := stream.Context()
	in := &receiver{stream: stream, fallbackID: requestIDFrom(ctx)}
	for res := range s.service.QuoteStream(ctx, in.requests()) {
		out := &QuoteResponse{RequestID: in.lastID}
		if res.Err != nil {
			out.Error = res.Err.Error()
		} else {
			out = newQuoteResponse(res.Value)
		}
		if err := stream.SendMsg(out); err != nil {
			return err
		}
	}
	return in.finish(ctx)
}

// AssessRiskBatch is the risk counterpart of GenerateQuotesBatch.
func (s *engineService) AssessRiskBatch(stream grpc.ServerStream) error {
	ctx := stream.Context()
	in := &receiver{stream: stream, fallbackID: requestIDFrom(ctx)}
	for res := range s.service.RiskStream(ctx, in.requests()) {
		out := &RiskResponse{RequestID: in.lastID}
		if res.Err != nil {
			out.Error = res.Err.Error()
		} else {
			out = newRiskResponse(res.Value)
		}
		if err := stream.SendMsg(out); err != nil {
			return err
		}
	}
	return in.finish(ctx)
}

func (s *engineService) HealthCheck(ctx context.Context, _ *HealthRequest) (*HealthResponse, error) {
	h := s.service.Health()
	return &HealthResponse{
		Status:       h.Status,
		Version:      s.version,
		ModelLoaded:  h.ModelLoaded,
		ModelVersion: h.ModelVersion,
		Mode:         h.Mode,
	}, nil
}

func (s *engineService) GetModelInfo(ctx context.Context, _ *ModelInfoRequest) (*ModelInfoResponse, error) {
	return newModelInfoResponse(s.service.ModelInfo()), nil
}

func (s *engineService) GetEventTypes(ctx context.Context, _ *EventTypesRequest) (*EventTypesResponse, error) {
	types := s.service.EventTypes()
	out := &EventTypesResponse{EventTypes: make([]EventTypeInfo, 0, len(types))}
	for _, et := range types {
		out.EventTypes = append(out.EventTypes, EventTypeInfo{
			Type:        eventTypes.ToWire(et.Code),
			Code:        string(et.Code),
			Name:        et.Name,
			Description: et.Description,
			BaseRate:    et.BaseRate,
			RiskWeight:  et.RiskWeight,
			MinGuards:   int32(et.MinGuards),
		})
	}
	return out, nil
}

// receiver turns the inbound half of a batch stream into a request sequence.
// Each message is decoded here rather than by the codec, so an undecodable
// message becomes an error element and the stream goes on.
type receiver struct {
	stream     grpc.ServerStream
	fallbackID string
	count      int
	lastID     string
	err        error
}

func (r *receiver) requests() iter.Seq2[*domain.QuoteRequest, error] {
	return func(yield func(*domain.QuoteRequest, error) bool) {
		for {
			var raw frame
			if err := r.stream.RecvMsg(&raw); err != nil {
				if !errors.Is(err, io.EOF) {
					r.err = err
				}
				return
			}
			idx := r.count
			r.count++

			var msg QuoteRequest
			if err := json.Unmarshal(raw, &msg); err != nil {
				r.lastID = r.elementID(idx)
				err = fmt.Errorf("%w: invalid message %d: %v", domain.ErrInvalidRequest, idx+1, err)
				if !yield(nil, err) {
					return
				}
				continue
			}

			req := msg.toDomain(r.elementID(idx))
			r.lastID = req.RequestID
			if !yield(req, nil) {
				return
			}
		}
	}
}

func (r *receiver) elementID(idx int) string {
	if r.fallbackID == "" {
		return ""
	}
	return r.fallbackID + "-" + strconv.Itoa(idx)
}

func (r *receiver) finish(ctx context.Context) error {
	if r.err != nil {
		return r.err
	}
	if err := ctx.Err(); err != nil {
		return status.FromContextError(err).Err()
	}
	return nil
}

// toStatus maps service errors onto gRPC status codes.
func toStatus(err error) error {
	if _, ok := status.FromError(err); ok {
		return err
	}
	switch {
	case errors.Is(err, domain.ErrInvalidRequest):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return status.FromContextError(err).Err()
	default:
		return status.Error(codes.Internal, err.Error())
	}
}
