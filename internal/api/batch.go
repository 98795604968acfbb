package api

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"iter"
	"net/http"

	"github.com/guardquote/ml-engine/internal/domain"
	"github.com/guardquote/ml-engine/internal/quote"
)

// NDJSONContentType is the media type of batch requests and responses.
const NDJSONContentType = "application/x-ndjson"

// QuotesBatch handles POST /quotes/batch. The body is one QuoteRequest per
// line; each result is written and flushed as soon as it is computed.
func (h *Handler) QuotesBatch(w http.ResponseWriter, r *http.Request) {
	stream := newBatchReader(w, r, h.maxBatchSize)
	results := h.service.QuoteStream(restContext(r), stream.requests())

	writeBatch(w, stream, results, func(line *BatchLine, resp *domain.QuoteResponse) {
		line.Quote = newQuoteResponse(resp)
	})
}

// RiskBatch handles POST /risk-assessment/batch with the same framing as QuotesBatch.
func (h *Handler) RiskBatch(w http.ResponseWriter, r *http.Request) {
	stream := newBatchReader(w, r, h.maxBatchSize)
	results := h.service.RiskStream(restContext(r), stream.requests())

	writeBatch(w, stream, results, func(line *BatchLine, resp *domain.RiskAssessment) {
		line.Risk = newRiskResponse(resp)
	})
}

// maxBatchLine bounds a single NDJSON request line.
const maxBatchLine = 1 << 20

// batchReader decodes request lines lazily. A malformed line becomes an
// error element and reading goes on. An oversized batch or an unreadable
// body ends the input; that error is reported as a final line.
type batchReader struct {
	sc       *bufio.Scanner
	fallback string
	max      int
	n        int
	err      error
}

func newBatchReader(w http.ResponseWriter, r *http.Request, limit int) *batchReader {
	// lets results stream back while the body is still being read
	_ = http.NewResponseController(w).EnableFullDuplex()
	sc := bufio.NewScanner(r.Body)
	sc.Buffer(make([]byte, 0, 64*1024), maxBatchLine)
	return &batchReader{
		sc:       sc,
		fallback: GetRequestID(r.Context()),
		max:      limit,
	}
}

func (b *batchReader) requests() iter.Seq2[*domain.QuoteRequest, error] {
	return func(yield func(*domain.QuoteRequest, error) bool) {
		for b.sc.Scan() {
			line := bytes.TrimSpace(b.sc.Bytes())
			if len(line) == 0 {
				continue
			}
			if b.n >= b.max {
				b.err = fmt.Errorf("batch exceeds the maximum of %d requests", b.max)
				return
			}
			b.n++

			var body QuoteRequest
			if err := json.Unmarshal(line, &body); err != nil {
				err = fmt.Errorf("%w: invalid batch line %d: %v", domain.ErrInvalidRequest, b.n, err)
				if !yield(nil, err) {
					return
				}
				continue
			}
			if !yield(body.toDomain(fmt.Sprintf("%s-%d", b.fallback, b.n-1)), nil) {
				return
			}
		}
		if err := b.sc.Err(); err != nil {
			b.err = fmt.Errorf("reading batch after line %d: %w", b.n, err)
		}
	}
}

func writeBatch[T any](w http.ResponseWriter, in *batchReader, results iter.Seq[quote.Result[T]], set func(*BatchLine, T)) {
	rc := http.NewResponseController(w)
	w.Header().Set("Content-Type", NDJSONContentType)
	w.WriteHeader(http.StatusOK)

	enc := json.NewEncoder(w)
	for res := range results {
		line := BatchLine{Index: res.Index}
		if res.Err != nil {
			line.Error = res.Err.Error()
		} else {
			set(&line, res.Value)
		}
		if err := enc.Encode(&line); err != nil {
			return
		}
		_ = rc.Flush()
	}

	if in.err != nil {
		_ = enc.Encode(&BatchLine{Index: in.n, Error: in.err.Error()})
	}
}
