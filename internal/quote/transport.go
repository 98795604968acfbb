package quote

import (
	"context"
	"errors"
)

var (
	// ErrAuditDisabled is returned by GetPrediction when no repository is configured.
	ErrAuditDisabled = errors.New("prediction log is not configured")

	// ErrRulesReadOnly is returned when saving a rule without a repository.
	ErrRulesReadOnly = errors.New("recommendation rules are read-only without a repository")
)

// Transport names recorded with each prediction.
const (
	TransportREST     = "rest"
	TransportRPC      = "rpc"
	TransportBus      = "bus"
	TransportInternal = "internal"
)

type transportKey struct{}

// WithTransport tags ctx with the transport serving the call.
func WithTransport(ctx context.Context, transport string) context.Context {
	return context.WithValue(ctx, transportKey{}, transport)
}

// TransportFrom returns the transport tag, or TransportInternal.
func TransportFrom(ctx context.Context) string {
	if t, ok := ctx.Value(transportKey{}).(string); ok {
		return t
	}
	return TransportInternal
}
