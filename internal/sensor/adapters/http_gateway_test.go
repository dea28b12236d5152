package adapters

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/speedwagon-io/coldwatch/internal/config"
	"github.com/speedwagon-io/coldwatch/internal/sensor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newGateway(t *testing.T, handler http.HandlerFunc, fields config.FieldsConfig) *HTTPGateway {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	g := NewHTTPGateway(slog.New(slog.NewTextHandler(io.Discard, nil)), config.GatewayConfig{
		BaseURL:      srv.URL,
		Endpoint:     "reading",
		RequestParam: "dht11",
		Timeout:      time.Second,
		Fields:       fields,
	})
	t.Cleanup(func() { _ = g.Close() })
	return g
}

var defaultFields = config.FieldsConfig{
	Temperature: "temperature",
	Humidity:    "humidity",
	Light:       "light",
}

func TestHTTPGatewayRead(t *testing.T) {
	g := newGateway(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/reading", r.URL.Path)

		var body map[string]string
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "dht11", body["parameter"])

		_, _ = w.Write([]byte(`{"temperature":"4.5","humidity":61,"light":True}`))
	}, defaultFields)

	r, err := g.Read(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4.5, r.Temperature)
	assert.Equal(t, 61.0, r.Humidity)
	assert.True(t, r.IsLight)
	assert.False(t, r.Timestamp.IsZero())
}

func TestHTTPGatewayFieldMappingAndInvertedLight(t *testing.T) {
	fields := config.FieldsConfig{
		Temperature:   "t",
		Humidity:      "h",
		Light:         "ldr",
		LightInverted: true,
	}
	g := newGateway(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"t":-2,"h":"40.5","ldr":0}`))
	}, fields)

	r, err := g.Read(context.Background())
	require.NoError(t, err)
	assert.Equal(t, -2.0, r.Temperature)
	assert.Equal(t, 40.5, r.Humidity)
	assert.True(t, r.IsLight)
}

func TestHTTPGatewayUnparsableLightIsDark(t *testing.T) {
	fields := defaultFields
	fields.LightInverted = true
	g := newGateway(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"temperature":4,"humidity":50,"light":"dim"}`))
	}, fields)

	r, err := g.Read(context.Background())
	require.NoError(t, err)
	assert.False(t, r.IsLight)
}

func TestHTTPGatewayNotYetValid(t *testing.T) {
	for _, body := range []string{"False", "True", `{"valid":false,"temperature":1,"humidity":2}`} {
		g := newGateway(t, func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(body))
		}, defaultFields)

		_, err := g.Read(context.Background())
		assert.True(t, errors.Is(err, sensor.ErrNotYetValid), "body %q: %v", body, err)
	}
}

func TestHTTPGatewayDeviceErrors(t *testing.T) {
	cases := map[string]http.HandlerFunc{
		"status": func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		},
		"malformed": func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"temperature":`))
		},
		"missing field": func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"humidity":50}`))
		},
		"nan temperature": func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"temperature":"NaN","humidity":50}`))
		},
		"infinite humidity": func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"temperature":4,"humidity":"+Inf"}`))
		},
	}

	for name, handler := range cases {
		t.Run(name, func(t *testing.T) {
			g := newGateway(t, handler, defaultFields)
			_, err := g.Read(context.Background())
			require.Error(t, err)
			assert.True(t, errors.Is(err, sensor.ErrDevice))
			assert.False(t, errors.Is(err, sensor.ErrNotYetValid))
		})
	}
}
