package httpserver

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nbari/pg-exporter/internal/collector"
	"github.com/nbari/pg-exporter/internal/store"
)

func newTestRegistry(t *testing.T) *collector.Registry {
	t.Helper()

	db := store.NewTest(t)
	t.Cleanup(db.Close)

	reg, err := collector.NewRegistry(
		[]string{"database"},
		collector.NewFactories(),
		collector.CollectConfig{DB: db, Excluded: store.NewExcludedDatabases(nil)},
		collector.BuildInfo{Version: "1.2.3", Commit: "abcdef0123456789", Arch: "amd64"},
	)
	require.NoError(t, err)

	return reg
}

func TestMetricsHandler(t *testing.T) {
	reg := newTestRegistry(t)
	cfg := Config{Name: "pg_exporter", Version: "1.2.3", Commit: "abcdef0123456789"}

	srv := httptest.NewServer(withMiddleware(cfg, metricsHandler(reg)))
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/plain; charset=utf-8", resp.Header.Get("Content-Type"))
	assert.NotEmpty(t, resp.Header.Get("X-Request-Id"))
	assert.NotEmpty(t, resp.Header.Get("X-App"))
}

func TestHealthHandler_Success(t *testing.T) {
	reg := newTestRegistry(t)
	cfg := Config{Name: "pg_exporter", Version: "1.2.3", Commit: "abcdef0123456789"}

	srv := httptest.NewServer(withMiddleware(cfg, healthHandler(cfg, reg)))
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "pg_exporter:1.2.3:abcdef0", resp.Header.Get("X-App"))
}

func TestHealthHandler_OptionsNoBody(t *testing.T) {
	reg := newTestRegistry(t)
	cfg := Config{Name: "pg_exporter", Version: "1.2.3", Commit: "abcdef0123456789"}

	srv := httptest.NewServer(withMiddleware(cfg, healthHandler(cfg, reg)))
	defer srv.Close()

	req, err := http.NewRequest(http.MethodOptions, srv.URL, nil)
	require.NoError(t, err)
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Empty(t, body)
}

func TestHealthHandler_MethodNotAllowed(t *testing.T) {
	reg := newTestRegistry(t)
	cfg := Config{Name: "pg_exporter", Version: "1.2.3", Commit: "abcdef0123456789"}

	srv := httptest.NewServer(withMiddleware(cfg, healthHandler(cfg, reg)))
	defer srv.Close()

	resp, err := http.Post(srv.URL, "text/plain", nil)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestTraceIDFromHeaders(t *testing.T) {
	h := http.Header{}
	h.Set("traceparent", "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01")

	id, ok := traceIDFromHeaders(h)
	assert.True(t, ok)
	assert.Equal(t, "4bf92f3577b34da6a3ce929d0e0e4736", id)

	_, ok = traceIDFromHeaders(http.Header{})
	assert.False(t, ok)
}
