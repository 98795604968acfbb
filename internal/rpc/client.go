package rpc

import (
	"context"
	"errors"
	"fmt"
	"io"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// Client calls a remote engine over gRPC.
type Client struct {
	conn *grpc.ClientConn
	own  bool
}

// Dial connects to target without transport security.
func Dial(target string, opts ...grpc.DialOption) (*Client, error) {
	opts = append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.ForceCodec(codec{})),
	}, opts...)
	conn, err := grpc.NewClient(target, opts...)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", target, err)
	}
	return &Client{conn: conn, own: true}, nil
}

// NewClient wraps an existing connection. Calls force the JSON codec, so
// conn needs no codec options of its own. Close leaves conn open.
func NewClient(conn *grpc.ClientConn) *Client {
	return &Client{conn: conn}
}

// Close closes the connection if the client opened it.
func (c *Client) Close() error {
	if !c.own {
		return nil
	}
	return c.conn.Close()
}

func (c *Client) invoke(ctx context.Context, service, method string, in, out any, opts ...grpc.CallOption) error {
	opts = append([]grpc.CallOption{grpc.ForceCodec(codec{})}, opts...)
	return c.conn.Invoke(ctx, "/"+service+"/"+method, in, out, opts...)
}

func (c *Client) GenerateQuote(ctx context.Context, in *QuoteRequest, opts ...grpc.CallOption) (*QuoteResponse, error) {
	out := new(QuoteResponse)
	if err := c.invoke(ctx, QuoteServiceName, "GenerateQuote", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) GenerateQuoteRuleBased(ctx context.Context, in *QuoteRequest, opts ...grpc.CallOption) (*QuoteResponse, error) {
	out := new(QuoteResponse)
	if err := c.invoke(ctx, QuoteServiceName, "GenerateQuoteRuleBased", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) AssessRisk(ctx context.Context, in *RiskRequest, opts ...grpc.CallOption) (*RiskResponse, error) {
	out := new(RiskResponse)
	if err := c.invoke(ctx, RiskServiceName, "AssessRisk", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) HealthCheck(ctx context.Context, opts ...grpc.CallOption) (*HealthResponse, error) {
	out := new(HealthResponse)
	if err := c.invoke(ctx, ModelServiceName, "HealthCheck", &HealthRequest{}, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) GetModelInfo(ctx context.Context, opts ...grpc.CallOption) (*ModelInfoResponse, error) {
	out := new(ModelInfoResponse)
	if err := c.invoke(ctx, ModelServiceName, "GetModelInfo", &ModelInfoRequest{}, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) GetEventTypes(ctx context.Context, opts ...grpc.CallOption) (*EventTypesResponse, error) {
	out := new(EventTypesResponse)
	if err := c.invoke(ctx, ModelServiceName, "GetEventTypes", &EventTypesRequest{}, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// GenerateQuotesBatch streams reqs and collects one response per request.
func (c *Client) GenerateQuotesBatch(ctx context.Context, reqs []*QuoteRequest, opts ...grpc.CallOption) ([]*QuoteResponse, error) {
	return batch[QuoteResponse](ctx, c, &quoteServiceDesc.Streams[0], QuoteServiceName, reqs, opts)
}

// AssessRiskBatch streams reqs and collects one assessment per request.
func (c *Client) AssessRiskBatch(ctx context.Context, reqs []*RiskRequest, opts ...grpc.CallOption) ([]*RiskResponse, error) {
	return batch[RiskResponse](ctx, c, &riskServiceDesc.Streams[0], RiskServiceName, reqs, opts)
}

func batch[Resp any](ctx context.Context, c *Client, desc *grpc.StreamDesc, service string, reqs []*QuoteRequest, opts []grpc.CallOption) ([]*Resp, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	opts = append([]grpc.CallOption{grpc.ForceCodec(codec{})}, opts...)
	stream, err := c.conn.NewStream(ctx, desc, "/"+service+"/"+desc.StreamName, opts...)
	if err != nil {
		return nil, err
	}

	sendErr := make(chan error, 1)
	go func() {
		for _, req := range reqs {
			if err := stream.SendMsg(req); err != nil {
				// the receive loop reports the stream's status
				sendErr <- nil
				return
			}
		}
		sendErr <- stream.CloseSend()
	}()

	out := make([]*Resp, 0, len(reqs))
	for {
		resp := new(Resp)
		if err := stream.RecvMsg(resp); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return out, err
		}
		out = append(out, resp)
	}
	if err := <-sendErr; err != nil {
		return out, err
	}
	return out, nil
}
