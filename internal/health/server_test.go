package health

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) (*Server, *httptest.Server) {
	t.Helper()

	reg := prometheus.NewRegistry()
	gauge := prometheus.NewGauge(prometheus.GaugeOpts{Name: "coldwatch_buffer_depth", Help: "test"})
	reg.MustRegister(gauge)
	gauge.Set(7)

	s := NewServer(slog.New(slog.NewTextHandler(io.Discard, nil)), ":0", reg)
	ts := httptest.NewServer(s.Router())
	t.Cleanup(ts.Close)
	return s, ts
}

func getHealth(t *testing.T, url string) (int, HealthResponse) {
	t.Helper()
	resp, err := http.Get(url + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()

	var body HealthResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return resp.StatusCode, body
}

func count(n int64, err error) func(context.Context) (int64, error) {
	return func(context.Context) (int64, error) { return n, err }
}

func TestHealthHealthy(t *testing.T) {
	s, ts := newTestServer(t)
	s.AddChecker(NewSenderHealthChecker(func(context.Context) error { return nil }))
	s.AddChecker(NewBufferHealthChecker(count(3, nil), 100))

	code, body := getHealth(t, ts.URL)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, StatusHealthy, body.Status)
	assert.Len(t, body.Components, 2)
}

func TestHealthDegradedWhenBufferDeep(t *testing.T) {
	s, ts := newTestServer(t)
	s.AddChecker(NewBufferHealthChecker(count(101, nil), 100))

	code, body := getHealth(t, ts.URL)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, StatusDegraded, body.Status)
	assert.Equal(t, "101 readings buffered", body.Components[0].Message)
}

func TestHealthUnhealthyWhenBufferUnreadable(t *testing.T) {
	s, ts := newTestServer(t)
	s.AddChecker(NewSenderHealthChecker(func(context.Context) error { return errors.New("sink down") }))
	s.AddChecker(NewBufferHealthChecker(count(0, errors.New("disk gone")), 100))

	code, body := getHealth(t, ts.URL)
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, StatusUnhealthy, body.Status)
}

func TestReadiness(t *testing.T) {
	s, ts := newTestServer(t)

	var ready atomic.Bool
	s.SetReadiness(ready.Load)

	resp, err := http.Get(ts.URL + "/ready")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	ready.Store(true)
	resp, err = http.Get(ts.URL + "/ready")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestMetricsEndpoint(t *testing.T) {
	_, ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(body), "coldwatch_buffer_depth 7"))
}

func TestSensorHealthChecker(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	var last time.Time

	c := NewSensorHealthChecker(func() time.Time { return last }, time.Minute)
	c.now = func() time.Time { return now }

	status, msg := c.Check(context.Background())
	assert.Equal(t, StatusDegraded, status)
	assert.Equal(t, "no valid reading yet", msg)

	last = now.Add(-30 * time.Second)
	status, _ = c.Check(context.Background())
	assert.Equal(t, StatusHealthy, status)

	last = now.Add(-5 * time.Minute)
	status, msg = c.Check(context.Background())
	assert.Equal(t, StatusDegraded, status)
	assert.Equal(t, "last valid reading 5m0s ago", msg)
}
