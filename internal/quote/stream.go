package quote

import (
	"context"
	"fmt"
	"iter"

	"github.com/guardquote/ml-engine/internal/domain"
)

// Result is one element of a batch. Exactly one of Value and Err is set.
type Result[T any] struct {
	Index int
	Value T
	Err   error
}

// Requests adapts a plain request sequence for QuoteStream and RiskStream.
func Requests(reqs iter.Seq[*domain.QuoteRequest]) iter.Seq2[*domain.QuoteRequest, error] {
	return func(yield func(*domain.QuoteRequest, error) bool) {
		for req := range reqs {
			if !yield(req, nil) {
				return
			}
		}
	}
}

// QuoteStream lazily prices each request in order. A failing element yields
// an error result and the stream continues. An element that arrives with a
// non-nil error, such as an undecodable input line, is reported as that
// error without being priced. The stream ends early only when ctx is
// cancelled or the consumer stops.
func (s *Service) QuoteStream(ctx context.Context, reqs iter.Seq2[*domain.QuoteRequest, error]) iter.Seq[Result[*domain.QuoteResponse]] {
	return stream(ctx, reqs, s.GenerateQuote)
}

// RiskStream lazily assesses each request in order, with the same failure
// semantics as QuoteStream.
func (s *Service) RiskStream(ctx context.Context, reqs iter.Seq2[*domain.QuoteRequest, error]) iter.Seq[Result[*domain.RiskAssessment]] {
	return stream(ctx, reqs, s.AssessRisk)
}

func stream[T any](ctx context.Context, reqs iter.Seq2[*domain.QuoteRequest, error], fn func(context.Context, *domain.QuoteRequest) (T, error)) iter.Seq[Result[T]] {
	return func(yield func(Result[T]) bool) {
		i := 0
		for req, err := range reqs {
			if ctx.Err() != nil {
				return
			}
			var v T
			if err == nil {
				v, err = safeCall(ctx, req, fn)
			}
			if !yield(Result[T]{Index: i, Value: v, Err: err}) {
				return
			}
			i++
		}
	}
}

func safeCall[T any](ctx context.Context, req *domain.QuoteRequest, fn func(context.Context, *domain.QuoteRequest) (T, error)) (v T, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("batch element failed: %v", r)
		}
	}()
	return fn(ctx, req)
}
