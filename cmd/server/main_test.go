package main

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// runCLI executes the root command with args and returns its combined output.
func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("CONFIG_PATH", "")
	t.Setenv("LOG_LEVEL", "disabled")

	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestUnknownFlagIsReported(t *testing.T) {
	out, err := runCLI(t, "--bogus")
	require.Error(t, err)
	assert.Contains(t, out, "unknown flag: --bogus")
}

func TestFetchReportsUpstreamFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()
	t.Setenv("BASE_URL", srv.URL)

	out, err := runCLI(t, "fetch")
	require.Error(t, err)
	assert.Contains(t, out, "Error:")
	assert.Contains(t, out, "returned 502")
}

func TestFetchPrintsRows(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"hits":[{"country":"Ukraine","category":"Imports","name":"A"}]}`))
	}))
	defer srv.Close()
	t.Setenv("BASE_URL", srv.URL)

	out, err := runCLI(t, "fetch")
	require.NoError(t, err)

	var rows []map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &rows))
	require.Len(t, rows, 1)
	assert.Equal(t, "Ukraine", rows[0]["country"])
	assert.Nil(t, rows[0]["currency"])
}
