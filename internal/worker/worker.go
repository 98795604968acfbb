// Package worker answers quote and risk requests arriving on the event bus.
package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/guardquote/ml-engine/internal/domain"
	"github.com/guardquote/ml-engine/internal/quote"
)

// Service is the subset of the quote service the worker calls.
type Service interface {
	GenerateQuote(ctx context.Context, req *domain.QuoteRequest) (*domain.QuoteResponse, error)
	GenerateQuoteRuleBased(ctx context.Context, req *domain.QuoteRequest) (*domain.QuoteResponse, error)
	AssessRisk(ctx context.Context, req *domain.QuoteRequest) (*domain.RiskAssessment, error)
}

// Request is the payload published to domain.TopicQuoteRequested.
type Request struct {
	// Kind is quote.OpQuote, quote.OpQuoteRuleBased or quote.OpRisk
	Kind    string              `json:"kind"`
	Request domain.QuoteRequest `json:"request"`
}

// Reply answers a Request. Exactly one of Quote, Risk and Error is set.
type Reply struct {
	Kind  string                 `json:"kind"`
	Quote *domain.QuoteResponse  `json:"quote,omitempty"`
	Risk  *domain.RiskAssessment `json:"risk,omitempty"`
	Error string                 `json:"error,omitempty"`
}

// Worker processes bus requests on a bounded pool of goroutines.
type Worker struct {
	bus     domain.EventBus
	service Service
	logger  *slog.Logger

	mu            sync.Mutex
	subscriptions []domain.Subscription
	group         *errgroup.Group
	ctx           context.Context
	cancel        context.CancelFunc

	processed atomic.Int64
	failed    atomic.Int64
}

// NewWorker creates a worker. Call Start to begin consuming.
func NewWorker(bus domain.EventBus, service Service, logger *slog.Logger) *Worker {
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Worker{
		bus:     bus,
		service: service,
		logger:  logger,
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Start subscribes to quote requests and handles at most concurrency at once.
func (w *Worker) Start(concurrency int) error {
	if concurrency <= 0 {
		concurrency = 1
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	w.group = &errgroup.Group{}
	w.group.SetLimit(concurrency)

	sub, err := w.bus.Subscribe(w.ctx, domain.TopicQuoteRequested, w.dispatch)
	if err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", domain.TopicQuoteRequested, err)
	}
	w.subscriptions = append(w.subscriptions, sub)

	w.logger.Info("quote worker started",
		"topic", domain.TopicQuoteRequested,
		"concurrency", concurrency,
	)
	return nil
}

// dispatch hands the message to the pool. It blocks while the pool is full,
// which pushes back on the bus subscription. Requests run on the worker
// context so Stop can drain them after unsubscribing.
func (w *Worker) dispatch(_ context.Context, msg *domain.Message) error {
	w.group.Go(func() error {
		w.handle(w.ctx, msg)
		return nil
	})
	return nil
}

func (w *Worker) handle(ctx context.Context, msg *domain.Message) {
	start := time.Now()
	ctx = quote.WithTransport(ctx, quote.TransportBus)

	reply := w.process(ctx, msg)
	if reply.Error != "" {
		w.failed.Add(1)
	} else {
		w.processed.Add(1)
	}

	if msg.ReplyTo != "" {
		payload, err := json.Marshal(reply)
		if err == nil {
			err = w.bus.Respond(ctx, msg, payload)
		}
		if err != nil {
			w.logger.Error("failed to respond",
				"message_id", msg.ID,
				"error", err,
			)
		}
	}

	w.logger.Debug("bus request processed",
		"message_id", msg.ID,
		"kind", reply.Kind,
		"error", reply.Error,
		"duration_ms", time.Since(start).Milliseconds(),
	)
}

func (w *Worker) process(ctx context.Context, msg *domain.Message) (reply Reply) {
	defer func() {
		if r := recover(); r != nil {
			w.logger.Error("panic processing bus request", "message_id", msg.ID, "panic", r)
			reply.Quote, reply.Risk = nil, nil
			reply.Error = fmt.Sprintf("internal error: %v", r)
		}
	}()

	var req Request
	if err := json.Unmarshal(msg.Payload, &req); err != nil {
		return Reply{Error: fmt.Sprintf("invalid request payload: %v", err)}
	}
	if req.Request.RequestID == "" {
		req.Request.RequestID = msg.ID
	}

	reply.Kind = req.Kind
	var err error
	switch req.Kind {
	case quote.OpQuote, "":
		reply.Kind = quote.OpQuote
		reply.Quote, err = w.service.GenerateQuote(ctx, &req.Request)
	case quote.OpQuoteRuleBased:
		reply.Quote, err = w.service.GenerateQuoteRuleBased(ctx, &req.Request)
	case quote.OpRisk:
		reply.Risk, err = w.service.AssessRisk(ctx, &req.Request)
	default:
		err = fmt.Errorf("unknown request kind %q", req.Kind)
	}
	if err != nil {
		reply.Error = err.Error()
	}
	return reply
}

// Stop unsubscribes and waits for in-flight requests.
func (w *Worker) Stop() error {
	w.mu.Lock()
	subs := w.subscriptions
	w.subscriptions = nil
	group := w.group
	w.mu.Unlock()

	for _, sub := range subs {
		if err := sub.Unsubscribe(); err != nil {
			w.logger.Error("failed to unsubscribe",
				"topic", sub.Topic(),
				"error", err,
			)
		}
	}

	if group != nil {
		_ = group.Wait()
	}
	w.cancel()

	w.logger.Info("quote worker stopped",
		"processed", w.processed.Load(),
		"failed", w.failed.Load(),
	)
	return nil
}

// Stats is a point-in-time view of the worker.
type Stats struct {
	SubscriptionCount int      `json:"subscription_count"`
	Topics            []string `json:"topics"`
	Processed         int64    `json:"processed"`
	Failed            int64    `json:"failed"`
}

// GetStats returns current worker statistics.
func (w *Worker) GetStats() Stats {
	w.mu.Lock()
	defer w.mu.Unlock()

	topics := make([]string, len(w.subscriptions))
	for i, sub := range w.subscriptions {
		topics[i] = sub.Topic()
	}
	return Stats{
		SubscriptionCount: len(w.subscriptions),
		Topics:            topics,
		Processed:         w.processed.Load(),
		Failed:            w.failed.Load(),
	}
}

// Call sends a request over the bus and waits for the worker's reply.
func Call(ctx context.Context, bus domain.EventBus, kind string, req *domain.QuoteRequest) (*Reply, error) {
	payload, err := json.Marshal(Request{Kind: kind, Request: *req})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	data, err := bus.Request(ctx, domain.TopicQuoteRequested, payload)
	if err != nil {
		return nil, err
	}

	var reply Reply
	if err := json.Unmarshal(data, &reply); err != nil {
		return nil, fmt.Errorf("failed to unmarshal reply: %w", err)
	}
	return &reply, nil
}
