package sender

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/speedwagon-io/coldwatch/internal/model"
)

var (
	// ErrDelivery marks a recoverable failure: the sink could not be reached
	// or did not accept the envelope right now.
	ErrDelivery = errors.New("telemetry delivery failed")

	// ErrRejected marks an envelope the sink will never accept. Retrying it
	// is pointless.
	ErrRejected = errors.New("telemetry rejected by sink")
)

type Sender interface {
	Send(ctx context.Context, envelope *model.Envelope) error
	Health(ctx context.Context) error
	Close() error
}

func deliveryError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrDelivery, fmt.Sprintf(format, args...))
}

func rejectedError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrRejected, fmt.Sprintf(format, args...))
}

// LogSender logs envelopes instead of sending them (for dry runs)
type LogSender struct {
	log *slog.Logger
}

func NewLogSender(log *slog.Logger) *LogSender {
	return &LogSender{log: log}
}

func (s *LogSender) Send(ctx context.Context, envelope *model.Envelope) error {
	data, err := json.Marshal(envelope)
	if err != nil {
		return rejectedError("failed to marshal envelope: %v", err)
	}

	s.log.Info("SEND",
		slog.String("id", envelope.ID),
		slog.String("device", envelope.Device),
		slog.Int("values_count", len(envelope.Values)),
		slog.String("payload", string(data)),
	)

	return nil
}

func (s *LogSender) Health(ctx context.Context) error {
	return nil
}

func (s *LogSender) Close() error {
	return nil
}
