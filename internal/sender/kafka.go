package sender

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/speedwagon-io/coldwatch/internal/config"
	"github.com/speedwagon-io/coldwatch/internal/model"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaSender writes one message per envelope, keyed by device so a
// device's readings stay on one partition in order.
type KafkaSender struct {
	log     *slog.Logger
	brokers []string
	writer  messageWriter
}

func NewKafkaSender(log *slog.Logger, cfg config.KafkaConfig, timeout time.Duration) *KafkaSender {
	return &KafkaSender{
		log:     log,
		brokers: cfg.Brokers,
		writer: &kafka.Writer{
			Addr:         kafka.TCP(cfg.Brokers...),
			Topic:        cfg.Topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireAll,
			MaxAttempts:  1,
			WriteTimeout: timeout,
			BatchSize:    1,
		},
	}
}

func (s *KafkaSender) Send(ctx context.Context, envelope *model.Envelope) error {
	payload, err := json.Marshal(envelope)
	if err != nil {
		return rejectedError("failed to marshal envelope: %v", err)
	}

	err = s.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(envelope.Device),
		Value: payload,
		Time:  envelope.Timestamp,
		Headers: []kafka.Header{
			{Key: "id", Value: []byte(envelope.ID)},
			{Key: "content-type", Value: []byte("application/json")},
		},
	})
	if err != nil {
		if errors.Is(err, kafka.MessageSizeTooLarge) {
			return rejectedError("%v", err)
		}
		return deliveryError("failed to write message: %v", err)
	}

	return nil
}

func (s *KafkaSender) Health(ctx context.Context) error {
	if len(s.brokers) == 0 {
		return fmt.Errorf("no kafka brokers configured")
	}

	conn, err := kafka.DialContext(ctx, "tcp", s.brokers[0])
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	return conn.Close()
}

func (s *KafkaSender) Close() error {
	return s.writer.Close()
}
