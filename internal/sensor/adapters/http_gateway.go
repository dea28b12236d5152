package adapters

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/speedwagon-io/coldwatch/internal/config"
	"github.com/speedwagon-io/coldwatch/internal/lib/logger/sl"
	"github.com/speedwagon-io/coldwatch/internal/model"
	"github.com/speedwagon-io/coldwatch/internal/sensor"
)

// HTTPGateway reads a sensor through a small HTTP gateway (for example a
// microcontroller that owns the DHT11 and LDR pins).
type HTTPGateway struct {
	log    *slog.Logger
	cfg    config.GatewayConfig
	client *http.Client
	now    func() time.Time
}

func NewHTTPGateway(log *slog.Logger, cfg config.GatewayConfig) *HTTPGateway {
	return &HTTPGateway{
		log: log,
		cfg: cfg,
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
		now: time.Now,
	}
}

func (a *HTTPGateway) Name() string {
	return "http_gateway"
}

func (a *HTTPGateway) Close() error {
	a.client.CloseIdleConnections()
	return nil
}

func (a *HTTPGateway) Read(ctx context.Context) (model.Reading, error) {
	url := fmt.Sprintf("%s/%s", strings.TrimRight(a.cfg.BaseURL, "/"), a.cfg.Endpoint)

	// Request body: {"parameter": "dht11"}
	requestBody := map[string]string{
		"parameter": a.cfg.RequestParam,
	}
	bodyBytes, err := json.Marshal(requestBody)
	if err != nil {
		return model.Reading{}, fmt.Errorf("failed to marshal request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(bodyBytes))
	if err != nil {
		return model.Reading{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return model.Reading{}, fmt.Errorf("%w: failed to execute request: %v", sensor.ErrDevice, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return model.Reading{}, fmt.Errorf("%w: unexpected status code: %d", sensor.ErrDevice, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return model.Reading{}, fmt.Errorf("%w: failed to read response body: %v", sensor.ErrDevice, err)
	}

	// The gateway answers a bare "False" while the sensor is still settling
	bodyStr := string(bytes.TrimSpace(body))
	switch bodyStr {
	case "True", "False", "true", "false", "":
		a.log.Debug("gateway returned no sample",
			slog.String("endpoint", a.cfg.Endpoint),
			slog.String("response", bodyStr),
		)
		return model.Reading{}, sensor.ErrNotYetValid
	}

	// Fix Python-style booleans (True/False -> true/false)
	bodyStr = strings.ReplaceAll(bodyStr, ":True,", ":true,")
	bodyStr = strings.ReplaceAll(bodyStr, ":True}", ":true}")
	bodyStr = strings.ReplaceAll(bodyStr, ":False,", ":false,")
	bodyStr = strings.ReplaceAll(bodyStr, ":False}", ":false}")

	var rawData map[string]any
	if err := json.Unmarshal([]byte(bodyStr), &rawData); err != nil {
		return model.Reading{}, fmt.Errorf("%w: failed to unmarshal response: %v", sensor.ErrDevice, err)
	}

	return a.transformData(rawData)
}

func (a *HTTPGateway) transformData(rawData map[string]any) (model.Reading, error) {
	fields := a.cfg.Fields

	if valid, ok := rawData["valid"]; ok {
		if b, ok := a.toBool(valid); ok && !b {
			return model.Reading{}, sensor.ErrNotYetValid
		}
	}

	temperature, ok := a.toFloat(rawData[fields.Temperature])
	if !ok {
		return model.Reading{}, fmt.Errorf("%w: field %q missing or not a finite number", sensor.ErrDevice, fields.Temperature)
	}

	humidity, ok := a.toFloat(rawData[fields.Humidity])
	if !ok {
		return model.Reading{}, fmt.Errorf("%w: field %q missing or not a finite number", sensor.ErrDevice, fields.Humidity)
	}

	// A gateway without a light sensor still yields a usable reading.
	isLight := false
	if raw, exists := rawData[fields.Light]; exists {
		if light, ok := a.toBool(raw); ok {
			isLight = light != fields.LightInverted
		} else {
			a.log.Debug("failed to parse light value", slog.Any("value", raw))
		}
	}

	return model.Reading{
		Temperature: temperature,
		Humidity:    humidity,
		IsLight:     isLight,
		Timestamp:   a.now().UTC(),
	}, nil
}

// toFloat accepts JSON numbers and numeric strings. NaN and infinities are
// refused so they never reach the alert window.
func (a *HTTPGateway) toFloat(v any) (float64, bool) {
	var f float64
	switch val := v.(type) {
	case float64:
		f = val
	case float32:
		f = float64(val)
	case int:
		f = float64(val)
	case int64:
		f = float64(val)
	case string:
		parsed, err := strconv.ParseFloat(val, 64)
		if err != nil {
			a.log.Debug("failed to parse float", slog.String("value", val), sl.Err(err))
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}

	if math.IsNaN(f) || math.IsInf(f, 0) {
		a.log.Debug("non-finite sensor value", slog.Any("value", v))
		return 0, false
	}
	return f, true
}

func (a *HTTPGateway) toBool(v any) (bool, bool) {
	switch val := v.(type) {
	case bool:
		return val, true
	case int:
		return val != 0, true
	case float64:
		return val != 0, true
	case string:
		b, err := strconv.ParseBool(val)
		if err != nil {
			return val == "on", val == "on" || val == "off"
		}
		return b, true
	default:
		return false, false
	}
}
