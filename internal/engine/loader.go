package engine

import (
	"brainapi/internal/config"
	"brainapi/internal/logging"
	"brainapi/internal/metrics"
	"brainapi/internal/models"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"
)

// Source produces the records of one ingestion run.
type Source interface {
	Fetch(ctx context.Context) ([]models.Record, error)
}

// --- 1. PROJECTION ---

// DecodeHits parses an upstream body and projects its "hits" array.
// A missing or non-array "hits" yields an empty slice, not an error.
// Numbers are kept as their literal text.
func DecodeHits(body []byte) ([]models.Record, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, &ParseError{Err: err}
	}
	if dec.More() {
		return nil, &ParseError{Err: errors.New("unexpected data after top-level value")}
	}

	obj, _ := v.(map[string]any)
	hits, _ := obj["hits"].([]any)

	records := make([]models.Record, 0, len(hits))
	for _, hit := range hits {
		records = append(records, RecordFromHit(hit))
	}
	return records, nil
}

// RecordFromHit copies the five retained fields out of one hit.
// It never fails: anything that is not an object maps to an all-null Record.
func RecordFromHit(hit any) models.Record {
	obj, ok := hit.(map[string]any)
	if !ok {
		return models.Record{}
	}
	return models.Record{
		Country:  textField(obj, "country"),
		Category: textField(obj, "category"),
		Currency: textField(obj, "currency"),
		Name:     textField(obj, "name"),
		Type:     textField(obj, "type"),
	}
}

// textField returns strings as-is and other non-null values as compact JSON text.
func textField(obj map[string]any, key string) *string {
	switch v := obj[key].(type) {
	case nil:
		return nil
	case string:
		return &v
	case json.Number:
		s := v.String()
		return &s
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return nil
		}
		s := string(b)
		return &s
	}
}

// --- 2. UPSTREAM CLIENT ---

const breakerName = "upstream"

// Client fetches the comtrade search endpoint. It performs exactly one
// request per Fetch; failed requests are not retried.
type Client struct {
	url     string
	maxBody int64
	http    *http.Client
	breaker *gobreaker.CircuitBreaker[[]byte] // nil when disabled
}

type ClientOption func(*Client)

// WithHTTPClient swaps the transport, e.g. for tests.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) { c.http = hc }
}

// NewClient builds a client for cfg.SearchURL(). When cfg.BreakerFailures
// is positive, a circuit breaker opens after that many consecutive
// transport failures and rejects fetches until cfg.BreakerTimeout passes.
func NewClient(cfg config.UpstreamConfig, opts ...ClientOption) *Client {
	c := &Client{
		url:     cfg.SearchURL(),
		maxBody: cfg.MaxBodyBytes,
		http:    &http.Client{},
	}
	for _, opt := range opts {
		opt(c)
	}

	failures := cfg.BreakerFailures
	if failures == 0 {
		return c
	}
	metrics.BreakerState.WithLabelValues(breakerName).Set(float64(gobreaker.StateClosed))

	c.breaker = gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:        breakerName,
		MaxRequests: 1,
		Timeout:     cfg.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		// A caller giving up says nothing about upstream health.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("upstream circuit breaker state change")
			metrics.BreakerState.WithLabelValues(name).Set(float64(to))
		},
	})
	return c
}

// URL returns the fetch target.
func (c *Client) URL() string { return c.url }

// Fetch runs one ingestion: GET, parse, project.
func (c *Client) Fetch(ctx context.Context) ([]models.Record, error) {
	start := time.Now()

	body, err := c.do(ctx)
	if err != nil {
		var netErr *NetworkError
		if !errors.As(err, &netErr) {
			// rejected by the breaker before any request was made
			err = &NetworkError{URL: c.url, Err: err}
		}
		return nil, err
	}

	records, err := DecodeHits(body)
	if err != nil {
		return nil, err
	}

	logging.Debug().Int("rows", len(records)).Int("bytes", len(body)).Dur("took", time.Since(start)).Msg("upstream fetch complete")
	return records, nil
}

func (c *Client) do(ctx context.Context) ([]byte, error) {
	if c.breaker == nil {
		return c.get(ctx)
	}
	return c.breaker.Execute(func() ([]byte, error) {
		return c.get(ctx)
	})
}

func (c *Client) get(ctx context.Context) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, &NetworkError{URL: c.url, Err: err}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &NetworkError{URL: c.url, Err: err}
	}
	defer resp.Body.Close()

	body, err := readLimited(resp.Body, c.maxBody)
	if err != nil {
		return nil, &NetworkError{URL: c.url, StatusCode: resp.StatusCode, Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &NetworkError{URL: c.url, StatusCode: resp.StatusCode, Err: fmt.Errorf("unexpected status %s", resp.Status)}
	}
	return body, nil
}

// readLimited reads r fully, failing once more than limit bytes arrive.
// A limit <= 0 means unlimited.
func readLimited(r io.Reader, limit int64) ([]byte, error) {
	if limit <= 0 {
		body, err := io.ReadAll(r)
		if err != nil {
			return nil, fmt.Errorf("read error: %w", err)
		}
		return body, nil
	}
	body, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, fmt.Errorf("read error: %w", err)
	}
	if int64(len(body)) > limit {
		return nil, fmt.Errorf("response body exceeds %d bytes", limit)
	}
	return body, nil
}
