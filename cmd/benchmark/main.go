// Benchmark tool for measuring GuardQuote pricing against historical quotes.
//
// Usage:
//
//	go run ./cmd/benchmark --csv /path/to/quotes.csv --url http://localhost:8000 --rpc localhost:50051
//
// This tool:
//  1. Reads historical quote requests, optionally labelled with the price that was accepted
//  2. Sends each request to the REST API, and to the RPC API when --rpc is set
//  3. Flags requests where the two transports disagree
//  4. Reports latency percentiles, price error against the labels and the serving path mix
package main

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"os"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/guardquote/ml-engine/internal/api"
	"github.com/guardquote/ml-engine/internal/domain"
	"github.com/guardquote/ml-engine/internal/rpc"
)

// Sample is one row of the benchmark dataset.
type Sample struct {
	Request  api.QuoteRequest
	Price    float64 // accepted price, when labelled
	Labelled bool
}

// Metrics tracks benchmark results
type Metrics struct {
	mu sync.Mutex

	Processed  int
	Errors     int
	Mismatches int
	Labelled   int

	AbsError    float64 // sum of |predicted - accepted|
	AbsPctError float64 // sum of |predicted - accepted| / accepted

	Paths     map[domain.PredictionPath]int
	Latencies []time.Duration
}

type options struct {
	csvPath  string
	baseURL  string
	rpcAddr  string
	limit    int
	workers  int
	ruleOnly bool
	verbose  bool
}

func main() {
	var o options

	cmd := &cobra.Command{
		Use:          "benchmark",
		Short:        "Replay historical quotes against a running GuardQuote engine",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), o)
		},
	}
	fl := cmd.Flags()
	fl.StringVar(&o.csvPath, "csv", "", "path to the quotes CSV file")
	fl.StringVar(&o.baseURL, "url", "http://localhost:8000", "REST base URL")
	fl.StringVar(&o.rpcAddr, "rpc", "", "RPC address to compare against (disabled when empty)")
	fl.IntVar(&o.limit, "limit", 10000, "maximum rows to process (0 = all)")
	fl.IntVar(&o.workers, "workers", 10, "number of concurrent workers")
	fl.BoolVar(&o.ruleOnly, "rule-based", false, "benchmark the rule-based endpoint")
	fl.BoolVar(&o.verbose, "verbose", false, "print each result")
	_ = cmd.MarkFlagRequired("csv")

	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(ctx context.Context, o options) error {
	fmt.Println("╔═══════════════════════════════════════════════════════════════╗")
	fmt.Println("║           GUARDQUOTE BENCHMARK - Historical Quotes            ║")
	fmt.Println("╚═══════════════════════════════════════════════════════════════╝")
	fmt.Printf("\nCSV File:    %s\n", o.csvPath)
	fmt.Printf("REST URL:    %s\n", o.baseURL)
	fmt.Printf("RPC Addr:    %s\n", valueOr(o.rpcAddr, "(disabled)"))
	fmt.Printf("Workers:     %d\n", o.workers)
	fmt.Printf("Limit:       %d\n", o.limit)
	fmt.Printf("Rule-based:  %v\n", o.ruleOnly)
	fmt.Println()

	if err := checkHealth(o.baseURL); err != nil {
		return fmt.Errorf("engine not reachable at %s: %w", o.baseURL, err)
	}
	fmt.Println("✓ Engine is healthy")

	samples, err := readSamples(o.csvPath, o.limit)
	if err != nil {
		return fmt.Errorf("failed to read CSV: %w", err)
	}
	fmt.Printf("✓ Loaded %d requests\n", len(samples))

	var client *rpc.Client
	if o.rpcAddr != "" {
		if client, err = rpc.Dial(o.rpcAddr); err != nil {
			return err
		}
		defer client.Close()
	}

	fmt.Printf("\nRunning benchmark with %d workers...\n", o.workers)
	start := time.Now()
	m := runBenchmark(ctx, samples, o, client)
	printResults(m, time.Since(start))
	return nil
}

func valueOr(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

func checkHealth(baseURL string) error {
	resp, err := http.Get(baseURL + "/api/v1/health")
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unhealthy: status %d", resp.StatusCode)
	}
	return nil
}

// readSamples reads a CSV with a header row. Columns are matched by name:
// event_type, location_zip, num_guards, hours, event_date (RFC 3339),
// is_armed, requires_vehicle, crowd_size and the optional label price.
func readSamples(path string, limit int) ([]Sample, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	return parseSamples(file, limit)
}

func parseSamples(r io.Reader, limit int) ([]Sample, error) {
	reader := csv.NewReader(r)

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}
	colIndex := make(map[string]int)
	for i, col := range header {
		colIndex[strings.ToLower(strings.TrimSpace(col))] = i
	}
	for _, required := range []string{"event_type", "location_zip", "num_guards", "hours", "event_date"} {
		if _, ok := colIndex[required]; !ok {
			return nil, fmt.Errorf("missing column %q", required)
		}
	}

	field := func(record []string, name string) string {
		if i, ok := colIndex[name]; ok && i < len(record) {
			return strings.TrimSpace(record[i])
		}
		return ""
	}

	var samples []Sample
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			continue // Skip malformed rows
		}

		date, err := time.Parse(time.RFC3339, field(record, "event_date"))
		if err != nil {
			continue
		}
		guards, _ := strconv.Atoi(field(record, "num_guards"))
		hours, _ := strconv.ParseFloat(field(record, "hours"), 64)
		crowd, _ := strconv.Atoi(field(record, "crowd_size"))
		armed, _ := strconv.ParseBool(valueOr(field(record, "is_armed"), "false"))
		vehicle, _ := strconv.ParseBool(valueOr(field(record, "requires_vehicle"), "false"))

		s := Sample{Request: api.QuoteRequest{
			EventType:       field(record, "event_type"),
			LocationZip:     field(record, "location_zip"),
			NumGuards:       guards,
			Hours:           hours,
			EventDate:       date,
			IsArmed:         armed,
			RequiresVehicle: vehicle,
			CrowdSize:       crowd,
		}}
		if price, err := strconv.ParseFloat(field(record, "price"), 64); err == nil && price > 0 {
			s.Price, s.Labelled = price, true
		}
		samples = append(samples, s)

		if limit > 0 && len(samples) >= limit {
			break
		}
	}
	return samples, nil
}

func runBenchmark(ctx context.Context, samples []Sample, o options, client *rpc.Client) *Metrics {
	m := &Metrics{Paths: make(map[domain.PredictionPath]int)}
	httpClient := &http.Client{Timeout: 10 * time.Second}

	path := "/api/v1/quote"
	if o.ruleOnly {
		path = "/api/v1/quote/rule-based"
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(max(o.workers, 1))
	for i, s := range samples {
		g.Go(func() error {
			start := time.Now()
			resp, err := postQuote(ctx, httpClient, o.baseURL+path, s.Request)
			elapsed := time.Since(start)

			mismatch := ""
			if err == nil && client != nil {
				mismatch, err = compareRPC(ctx, client, s.Request, resp, o.ruleOnly)
			}
			m.record(s, resp, err, mismatch != "", elapsed)

			if o.verbose {
				switch {
				case err != nil:
					fmt.Printf("ERROR  #%-6d %v\n", i, err)
				case mismatch != "":
					fmt.Printf("DIFF   #%-6d %s\n", i, mismatch)
				default:
					fmt.Printf("OK     #%-6d %-14s | $%10.2f | %-8s | %-9s | %4dms\n",
						i, s.Request.EventType, resp.FinalPrice, resp.RiskLevel, resp.Path, elapsed.Milliseconds())
				}
			}
			return nil
		})
	}
	_ = g.Wait()
	return m
}

func (m *Metrics) record(s Sample, resp *api.QuoteResponse, err error, mismatch bool, elapsed time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Processed++
	m.Latencies = append(m.Latencies, elapsed)
	if err != nil {
		m.Errors++
		return
	}
	if mismatch {
		m.Mismatches++
	}
	m.Paths[resp.Path]++
	if s.Labelled {
		diff := math.Abs(resp.FinalPrice - s.Price)
		m.Labelled++
		m.AbsError += diff
		m.AbsPctError += diff / s.Price
	}
}

func postQuote(ctx context.Context, client *http.Client, url string, req api.QuoteRequest) (*api.QuoteResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var apiErr api.ErrorResponse
		_ = json.NewDecoder(resp.Body).Decode(&apiErr)
		return nil, fmt.Errorf("status %d: %s", resp.StatusCode, apiErr.Error)
	}

	var result api.QuoteResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, err
	}
	return &result, nil
}

// compareRPC prices the same request over RPC and describes any difference
// from the REST answer.
func compareRPC(ctx context.Context, client *rpc.Client, req api.QuoteRequest, rest *api.QuoteResponse, ruleOnly bool) (string, error) {
	in := &rpc.QuoteRequest{
		EventType:       rpc.WireEventType(domain.EventType(req.EventType)),
		LocationZip:     req.LocationZip,
		NumGuards:       int32(req.NumGuards),
		Hours:           req.Hours,
		EventDate:       rpc.NewTimestamp(req.EventDate),
		IsArmed:         req.IsArmed,
		RequiresVehicle: req.RequiresVehicle,
		CrowdSize:       int32(req.CrowdSize),
	}

	var got *rpc.QuoteResponse
	var err error
	if ruleOnly {
		got, err = client.GenerateQuoteRuleBased(ctx, in)
	} else {
		got, err = client.GenerateQuote(ctx, in)
	}
	if err != nil {
		return "", fmt.Errorf("rpc: %w", err)
	}

	level := string(rpc.DomainRiskLevel(got.RiskLevel))
	if got.FinalPrice != rest.FinalPrice || level != rest.RiskLevel {
		return fmt.Sprintf("rest $%.2f/%s, rpc $%.2f/%s", rest.FinalPrice, rest.RiskLevel, got.FinalPrice, level), nil
	}
	return "", nil
}

func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	i := int(math.Ceil(p/100*float64(len(sorted)))) - 1
	return sorted[min(max(i, 0), len(sorted)-1)]
}

func printResults(m *Metrics, duration time.Duration) {
	fmt.Println("\n╔═══════════════════════════════════════════════════════════════╗")
	fmt.Println("║                      BENCHMARK RESULTS                        ║")
	fmt.Println("╚═══════════════════════════════════════════════════════════════╝")

	fmt.Printf("\nDATASET\n")
	fmt.Printf("   Total Processed:  %d\n", m.Processed)
	fmt.Printf("   Labelled:         %d\n", m.Labelled)
	fmt.Printf("   Errors:           %d\n", m.Errors)
	fmt.Printf("   RPC Mismatches:   %d\n", m.Mismatches)

	fmt.Printf("\nSERVING PATH\n")
	for _, path := range []domain.PredictionPath{domain.PathModel, domain.PathFallback, domain.PathRuleBased} {
		if n := m.Paths[path]; n > 0 {
			fmt.Printf("   %-10s %d\n", path, n)
		}
	}

	if m.Labelled > 0 {
		fmt.Printf("\nPRICE ACCURACY\n")
		fmt.Printf("   MAE:   $%.2f\n", m.AbsError/float64(m.Labelled))
		fmt.Printf("   MAPE:  %.2f%%\n", 100*m.AbsPctError/float64(m.Labelled))
	}

	slices.Sort(m.Latencies)
	fmt.Printf("\nPERFORMANCE\n")
	fmt.Printf("   Total Duration:   %v\n", duration.Round(time.Millisecond))
	if m.Processed > 0 {
		fmt.Printf("   p50 Latency:      %v\n", percentile(m.Latencies, 50).Round(time.Microsecond))
		fmt.Printf("   p95 Latency:      %v\n", percentile(m.Latencies, 95).Round(time.Microsecond))
		fmt.Printf("   p99 Latency:      %v\n", percentile(m.Latencies, 99).Round(time.Microsecond))
		fmt.Printf("   Throughput:       %.2f quotes/sec\n", float64(m.Processed)/duration.Seconds())
	}

	if m.Mismatches > 0 {
		fmt.Println("\n   REST and RPC disagreed on some requests; rerun with --verbose for details")
	}
	fmt.Println()
}
