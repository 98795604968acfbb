package main

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/guardquote/ml-engine/internal/domain"
	"github.com/guardquote/ml-engine/internal/rpc"
)

type quoteFlags struct {
	addr      string
	timeout   time.Duration
	eventType string
	zip       string
	guards    int32
	hours     float64
	date      string
	armed     bool
	vehicle   bool
	crowd     int32
	ruleBased bool
	risk      bool
}

func newQuoteCommand(a *app) *cobra.Command {
	f := &quoteFlags{}

	cmd := &cobra.Command{
		Use:   "quote",
		Short: "Request a quote from a running server over RPC",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if f.addr == "" {
				f.addr = fmt.Sprintf("localhost:%d", a.cfg.RPC.Port)
			}
			req, err := f.request()
			if err != nil {
				return err
			}

			client, err := rpc.Dial(f.addr)
			if err != nil {
				return err
			}
			defer client.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), f.timeout)
			defer cancel()

			var resp any
			switch {
			case f.risk:
				resp, err = client.AssessRisk(ctx, req)
			case f.ruleBased:
				resp, err = client.GenerateQuoteRuleBased(ctx, req)
			default:
				resp, err = client.GenerateQuote(ctx, req)
			}
			if err != nil {
				return err
			}

			out, err := json.MarshalIndent(resp, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(out))
			return nil
		},
	}

	fl := cmd.Flags()
	fl.StringVar(&f.addr, "addr", "", "RPC server address (default localhost:<rpc.port>)")
	fl.DurationVar(&f.timeout, "timeout", 10*time.Second, "call timeout")
	fl.StringVar(&f.eventType, "event-type", string(domain.EventCorporate), "event type code")
	fl.StringVar(&f.zip, "zip", "94102", "location ZIP code")
	fl.Int32Var(&f.guards, "guards", 2, "number of guards")
	fl.Float64Var(&f.hours, "hours", 8, "hours per guard")
	fl.StringVar(&f.date, "date", "", "event start, RFC 3339 (default one week from now)")
	fl.BoolVar(&f.armed, "armed", false, "armed guards")
	fl.BoolVar(&f.vehicle, "vehicle", false, "patrol vehicle required")
	fl.Int32Var(&f.crowd, "crowd", 0, "expected crowd size")
	fl.BoolVar(&f.ruleBased, "rule-based", false, "price with the rule engine only")
	fl.BoolVar(&f.risk, "risk", false, "assess risk instead of pricing")
	cmd.MarkFlagsMutuallyExclusive("rule-based", "risk")

	return cmd
}

func (f *quoteFlags) request() (*rpc.QuoteRequest, error) {
	date := time.Now().Add(7 * 24 * time.Hour)
	if f.date != "" {
		var err error
		if date, err = time.Parse(time.RFC3339, f.date); err != nil {
			return nil, fmt.Errorf("invalid --date: %w", err)
		}
	}
	return &rpc.QuoteRequest{
		EventType:       rpc.WireEventType(domain.EventType(f.eventType)),
		LocationZip:     f.zip,
		NumGuards:       f.guards,
		Hours:           f.hours,
		EventDate:       rpc.NewTimestamp(date),
		IsArmed:         f.armed,
		RequiresVehicle: f.vehicle,
		CrowdSize:       f.crowd,
	}, nil
}
