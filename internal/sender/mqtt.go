package sender

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"sync"

	"github.com/eclipse/paho.golang/paho"
	"github.com/google/uuid"
	"github.com/speedwagon-io/coldwatch/internal/config"
	"github.com/speedwagon-io/coldwatch/internal/lib/logger/sl"
	"github.com/speedwagon-io/coldwatch/internal/model"
)

// MQTTSender publishes each envelope with QoS 1 to
// <topic_prefix>/<device>/telemetry. The connection is made on first use and
// dropped after any failure, so the next send reconnects.
type MQTTSender struct {
	log *slog.Logger
	cfg config.MQTTConfig

	mu     sync.Mutex
	client *paho.Client
}

func NewMQTTSender(log *slog.Logger, cfg config.MQTTConfig) *MQTTSender {
	if cfg.ClientID == "" {
		cfg.ClientID = "coldwatch-" + uuid.NewString()
	}
	return &MQTTSender{log: log, cfg: cfg}
}

func (s *MQTTSender) Topic(device string) string {
	return fmt.Sprintf("%s/%s/telemetry", s.cfg.TopicPrefix, device)
}

func (s *MQTTSender) Send(ctx context.Context, envelope *model.Envelope) error {
	payload, err := json.Marshal(envelope)
	if err != nil {
		return rejectedError("failed to marshal envelope: %v", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	client, err := s.connect(ctx)
	if err != nil {
		return err
	}

	resp, err := client.Publish(ctx, &paho.Publish{
		QoS:     1,
		Topic:   s.Topic(envelope.Device),
		Payload: payload,
		Properties: &paho.PublishProperties{
			ContentType: "application/json",
			User: paho.UserProperties{
				{Key: "id", Value: envelope.ID},
			},
		},
	})
	if err != nil {
		s.dropLocked()
		return deliveryError("failed to publish: %v", err)
	}
	if resp != nil && resp.ReasonCode >= 0x80 {
		return deliveryError("publish refused with reason code %#x", resp.ReasonCode)
	}

	return nil
}

func (s *MQTTSender) connect(ctx context.Context) (*paho.Client, error) {
	if s.client != nil {
		return s.client, nil
	}

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", s.cfg.Broker)
	if err != nil {
		return nil, deliveryError("failed to dial broker %s: %v", s.cfg.Broker, err)
	}

	client := paho.NewClient(paho.ClientConfig{
		ClientID: s.cfg.ClientID,
		Conn:     conn,
		OnClientError: func(err error) {
			s.log.Warn("mqtt client error", sl.Err(err))
		},
	})

	cp := &paho.Connect{
		ClientID:   s.cfg.ClientID,
		KeepAlive:  s.cfg.KeepAlive,
		CleanStart: true,
	}
	if s.cfg.Username != "" {
		cp.Username = s.cfg.Username
		cp.UsernameFlag = true
	}
	if s.cfg.Password != "" {
		cp.Password = []byte(s.cfg.Password)
		cp.PasswordFlag = true
	}

	ca, err := client.Connect(ctx, cp)
	if err != nil {
		conn.Close()
		return nil, deliveryError("failed to connect to broker: %v", err)
	}
	if ca.ReasonCode != 0 {
		conn.Close()
		return nil, deliveryError("broker refused connection with reason code %d", ca.ReasonCode)
	}

	s.log.Info("connected to mqtt broker", slog.String("broker", s.cfg.Broker))
	s.client = client
	return client, nil
}

func (s *MQTTSender) dropLocked() {
	if s.client == nil {
		return
	}
	_ = s.client.Disconnect(&paho.Disconnect{ReasonCode: 0})
	s.client = nil
}

func (s *MQTTSender) Health(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.connect(ctx); err != nil {
		return err
	}
	return nil
}

func (s *MQTTSender) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.dropLocked()
	return nil
}
