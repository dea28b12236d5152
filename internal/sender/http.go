package sender

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/speedwagon-io/coldwatch/internal/config"
	"github.com/speedwagon-io/coldwatch/internal/lib/logger/sl"
	"github.com/speedwagon-io/coldwatch/internal/model"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/time/rate"
)

type HTTPSender struct {
	log         *slog.Logger
	url         string
	token       string
	client      *http.Client
	limit       *rate.Limiter
	maxAttempts int
	backoff     *ExponentialBackoff
}

func NewHTTPSender(log *slog.Logger, cfg *config.SenderConfig) *HTTPSender {
	limit := rate.Inf
	if cfg.HTTP.RateLimit > 0 {
		limit = rate.Limit(cfg.HTTP.RateLimit)
	}
	burst := cfg.HTTP.Burst
	if burst < 1 {
		burst = 1
	}

	maxAttempts := cfg.Retry.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	return &HTTPSender{
		log:   log,
		url:   cfg.HTTP.URL,
		token: cfg.HTTP.Token,
		client: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		limit:       rate.NewLimiter(limit, burst),
		maxAttempts: maxAttempts,
		backoff:     NewExponentialBackoff(cfg.Retry.InitialDelay, cfg.Retry.MaxDelay),
	}
}

func (s *HTTPSender) Send(ctx context.Context, envelope *model.Envelope) error {
	data, err := json.Marshal(envelope)
	if err != nil {
		return rejectedError("failed to marshal envelope: %v", err)
	}

	return s.sendWithRetry(ctx, data)
}

func (s *HTTPSender) sendWithRetry(ctx context.Context, data []byte) error {
	var lastErr error

	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		err := s.doSend(ctx, data)
		if err == nil || isRejected(err) {
			return err
		}

		lastErr = err
		s.log.Warn("send attempt failed",
			slog.Int("attempt", attempt),
			slog.Int("max_attempts", s.maxAttempts),
			sl.Err(err),
		)

		if attempt < s.maxAttempts {
			select {
			case <-ctx.Done():
				return deliveryError("%v", ctx.Err())
			case <-time.After(s.backoff.NextDelay(attempt - 1)):
			}
		}
	}

	return fmt.Errorf("all %d attempts failed: %w", s.maxAttempts, lastErr)
}

func (s *HTTPSender) doSend(ctx context.Context, data []byte) error {
	// Replays after an outage come in bursts.
	if err := s.limit.Wait(ctx); err != nil {
		return deliveryError("rate limit wait: %v", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(data))
	if err != nil {
		return rejectedError("failed to create request: %v", err)
	}

	req.Header.Set("Content-Type", "application/json")
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return deliveryError("failed to execute request: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
	if permanentStatus(resp.StatusCode) {
		return rejectedError("status code %d: %s", resp.StatusCode, string(body))
	}
	return deliveryError("unexpected status code %d: %s", resp.StatusCode, string(body))
}

// permanentStatus reports client errors that a resend cannot fix. Auth
// failures are not among them: a rotated token fixes those.
func permanentStatus(code int) bool {
	switch code {
	case http.StatusRequestTimeout, http.StatusTooManyRequests,
		http.StatusUnauthorized, http.StatusForbidden:
		return false
	}
	return code >= 400 && code < 500
}

func (s *HTTPSender) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return fmt.Errorf("failed to create health request: %w", err)
	}

	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return fmt.Errorf("server unhealthy: status %d", resp.StatusCode)
	}

	return nil
}

func (s *HTTPSender) Close() error {
	s.client.CloseIdleConnections()
	return nil
}
