package sender

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/speedwagon-io/coldwatch/internal/config"
	"github.com/speedwagon-io/coldwatch/internal/model"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.opentelemetry.io/otel/sdk/resource"
)

const meterName = "github.com/speedwagon-io/coldwatch"

// OTLPSender records each envelope as gauges and flushes them right away, so
// an export failure surfaces as a delivery error for that envelope.
//
// The SDK stamps points with the export time. The time the reading was taken
// travels in the reading.timestamp attribute, which matters for replayed
// readings. Delta temporality drops each reading's series after export.
type OTLPSender struct {
	log      *slog.Logger
	provider *sdkmetric.MeterProvider

	mu     sync.Mutex
	gauges map[string]metric.Float64Gauge
}

func NewOTLPSender(ctx context.Context, log *slog.Logger, device string, cfg config.OTLPConfig) (*OTLPSender, error) {
	opts := []otlpmetrichttp.Option{}
	if cfg.Endpoint != "" {
		opts = append(opts, otlpmetrichttp.WithEndpointURL(cfg.Endpoint))
	}
	if cfg.Insecure {
		opts = append(opts, otlpmetrichttp.WithInsecure())
	}
	opts = append(opts, otlpmetrichttp.WithTemporalitySelector(deltaTemporality))

	exporter, err := otlpmetrichttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create otlp exporter: %w", err)
	}

	res, err := resource.Merge(resource.Default(), resource.NewSchemaless(
		attribute.String("service.name", "coldwatch"),
		attribute.String("device", device),
	))
	if err != nil {
		return nil, fmt.Errorf("failed to build resource: %w", err)
	}

	return newOTLPSender(log, exporter, res), nil
}

func deltaTemporality(sdkmetric.InstrumentKind) metricdata.Temporality {
	return metricdata.DeltaTemporality
}

func newOTLPSender(log *slog.Logger, exporter sdkmetric.Exporter, res *resource.Resource) *OTLPSender {
	provider := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		// Flushed on every send; the periodic export only has to be rare.
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(time.Hour))),
	)

	return &OTLPSender{
		log:      log,
		provider: provider,
		gauges:   make(map[string]metric.Float64Gauge),
	}
}

func (s *OTLPSender) gauge(dp model.DataPoint) (metric.Float64Gauge, error) {
	if g, ok := s.gauges[dp.Name]; ok {
		return g, nil
	}

	g, err := s.provider.Meter(meterName).Float64Gauge("sensor."+dp.Name, metric.WithUnit(dp.Unit))
	if err != nil {
		return nil, err
	}
	s.gauges[dp.Name] = g
	return g, nil
}

func (s *OTLPSender) Send(ctx context.Context, envelope *model.Envelope) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, dp := range envelope.Values {
		g, err := s.gauge(dp)
		if err != nil {
			return rejectedError("failed to create gauge %s: %v", dp.Name, err)
		}

		attrs := make([]attribute.KeyValue, 0, len(dp.Dimensions)+2)
		for k, v := range dp.Dimensions {
			attrs = append(attrs, attribute.String(k, v))
		}
		attrs = append(attrs,
			attribute.String("reading.id", envelope.ID),
			attribute.String("reading.timestamp", envelope.Timestamp.UTC().Format(time.RFC3339Nano)),
		)
		g.Record(ctx, dp.Value, metric.WithAttributes(attrs...))
	}

	if err := s.provider.ForceFlush(ctx); err != nil {
		return deliveryError("failed to export metrics: %v", err)
	}
	return nil
}

func (s *OTLPSender) Health(ctx context.Context) error {
	return nil
}

func (s *OTLPSender) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.provider.Shutdown(ctx)
}
