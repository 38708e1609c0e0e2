package engine

import (
	"brainapi/internal/config"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testUpstream(baseURL string) config.UpstreamConfig {
	return config.UpstreamConfig{
		BaseURL:         baseURL,
		Path:            "/v2/search/comtrade",
		Query:           "ukraine",
		PageSize:        50,
		Page:            0,
		MaxBodyBytes:    1 << 20,
		BreakerTimeout:  time.Minute,
	}
}

func TestDecodeHits(t *testing.T) {
	body := []byte(`{
		"total": 3,
		"hits": [
			{"country":"Ukraine","category":"Imports","currency":"USD","name":"Ukraine Imports of Cereals","type":"comtrade","symbol":"UKRIMP10","value":12.5},
			{"country":"Ukraine","category":null,"name":"No category"},
			{"country":"Sweden","category":"Exports","currency":12,"name":"Exports","type":true},
			"not an object",
			{"name":{"nested":1}}
		]
	}`)

	records, err := DecodeHits(body)
	require.NoError(t, err)
	require.Len(t, records, 5)

	r0 := records[0]
	assert.Equal(t, "Ukraine", *r0.Country)
	assert.Equal(t, "Imports", *r0.Category)
	assert.Equal(t, "USD", *r0.Currency)
	assert.Equal(t, "Ukraine Imports of Cereals", *r0.Name)
	assert.Equal(t, "comtrade", *r0.Type)

	// explicit null and missing fields both become nil
	r1 := records[1]
	assert.Nil(t, r1.Category)
	assert.Nil(t, r1.Currency)
	assert.Nil(t, r1.Type)
	assert.Equal(t, "No category", *r1.Name)

	// non-string scalars are kept as their JSON text
	r2 := records[2]
	assert.Equal(t, "12", *r2.Currency)
	assert.Equal(t, "true", *r2.Type)

	assert.Equal(t, [5]*string{}, records[3].Values())
	assert.Equal(t, `{"nested":1}`, *records[4].Name)
}

func TestDecodeHitsWithoutHitsArray(t *testing.T) {
	for _, body := range []string{`{}`, `{"hits":{"a":1}}`, `{"hits":null}`, `[]`, `null`, `"hits"`} {
		records, err := DecodeHits([]byte(body))
		require.NoError(t, err, body)
		assert.Empty(t, records, body)
	}
}

func TestDecodeHitsKeepsNumberText(t *testing.T) {
	records, err := DecodeHits([]byte(`{"hits":[{"currency":12345678901234567890,"type":1.50,"name":{"id":12345678901234567890}}]}`))
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "12345678901234567890", *records[0].Currency)
	assert.Equal(t, "1.50", *records[0].Type)
	assert.Equal(t, `{"id":12345678901234567890}`, *records[0].Name)
}

func TestDecodeHitsTrailingData(t *testing.T) {
	_, err := DecodeHits([]byte(`{"hits":[]} {"hits":[]}`))
	var parseErr *ParseError
	assert.True(t, errors.As(err, &parseErr))
}

func TestDecodeHitsInvalidJSON(t *testing.T) {
	_, err := DecodeHits([]byte(`<html>bad gateway</html>`))
	require.Error(t, err)

	var parseErr *ParseError
	assert.True(t, errors.As(err, &parseErr))
}

func TestClientFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v2/search/comtrade", r.URL.Path)
		assert.Equal(t, "ukraine", r.URL.Query().Get("q"))
		assert.Equal(t, "50", r.URL.Query().Get("pp"))
		assert.Equal(t, "0", r.URL.Query().Get("p"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"hits":[{"category":"Imports","name":"A"},{"category":"Exports","name":"B"}]}`))
	}))
	defer srv.Close()

	c := NewClient(testUpstream(srv.URL), WithHTTPClient(srv.Client()))
	records, err := c.Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "A", *records[0].Name)
	assert.Equal(t, "Exports", *records[1].Category)
}

func TestClientFetchBadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"hits":[]}`))
	}))
	defer srv.Close()

	_, err := NewClient(testUpstream(srv.URL)).Fetch(context.Background())
	var netErr *NetworkError
	require.True(t, errors.As(err, &netErr))
	assert.Equal(t, http.StatusInternalServerError, netErr.StatusCode)
}

func TestClientFetchUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := NewClient(testUpstream(url)).Fetch(context.Background())
	var netErr *NetworkError
	assert.True(t, errors.As(err, &netErr))
}

func TestClientFetchParseErrorDoesNotTripBreaker(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`not json`))
	}))
	defer srv.Close()

	cfg := testUpstream(srv.URL)
	cfg.BreakerFailures = 1
	c := NewClient(cfg)

	for i := 0; i < 3; i++ {
		_, err := c.Fetch(context.Background())
		var parseErr *ParseError
		require.True(t, errors.As(err, &parseErr), "attempt %d: %v", i, err)
	}
}

func TestClientBreakerOpens(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	cfg := testUpstream(srv.URL)
	cfg.BreakerFailures = 2
	c := NewClient(cfg)

	for i := 0; i < 2; i++ {
		_, err := c.Fetch(context.Background())
		require.Error(t, err)
	}

	_, err := c.Fetch(context.Background())
	var netErr *NetworkError
	require.True(t, errors.As(err, &netErr))
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.Equal(t, int32(2), calls.Load(), "open breaker must not reach upstream")
}

func TestClientFetchBodyLimit(t *testing.T) {
	body := `{"hits":[{"name":"` + strings.Repeat("x", 256) + `"}]}`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(body))
	}))
	defer srv.Close()

	cfg := testUpstream(srv.URL)
	cfg.MaxBodyBytes = 64
	_, err := NewClient(cfg).Fetch(context.Background())
	var netErr *NetworkError
	require.True(t, errors.As(err, &netErr))
	assert.Contains(t, err.Error(), "exceeds 64 bytes")

	cfg.MaxBodyBytes = int64(len(body))
	records, err := NewClient(cfg).Fetch(context.Background())
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestClientWithoutBreakerAlwaysReachesUpstream(t *testing.T) {
	var calls atomic.Int32
	var healthy atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if !healthy.Load() {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`{"hits":[{"name":"A"}]}`))
	}))
	defer srv.Close()

	cfg := testUpstream(srv.URL)
	require.Zero(t, cfg.BreakerFailures)
	c := NewClient(cfg)

	for i := 0; i < 10; i++ {
		_, err := c.Fetch(context.Background())
		require.Error(t, err)
		assert.NotErrorIs(t, err, gobreaker.ErrOpenState)
	}

	healthy.Store(true)
	records, err := c.Fetch(context.Background())
	require.NoError(t, err)
	assert.Len(t, records, 1)
	assert.Equal(t, int32(11), calls.Load())
}
