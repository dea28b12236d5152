package sender

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.opentelemetry.io/otel/sdk/resource"
)

type exportedPoint struct {
	metric    string
	readingID string
	takenAt   string
}

type stubExporter struct {
	mu     sync.Mutex
	fail   bool
	names  []string
	points []exportedPoint
}

func (e *stubExporter) Temporality(k sdkmetric.InstrumentKind) metricdata.Temporality {
	return deltaTemporality(k)
}

func (e *stubExporter) Aggregation(k sdkmetric.InstrumentKind) sdkmetric.Aggregation {
	return sdkmetric.DefaultAggregationSelector(k)
}

func (e *stubExporter) Export(ctx context.Context, rm *metricdata.ResourceMetrics) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.fail {
		return errors.New("collector unreachable")
	}
	// the reader reuses rm between collections
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			e.names = append(e.names, m.Name)

			gauge, ok := m.Data.(metricdata.Gauge[float64])
			if !ok {
				continue
			}
			for _, dp := range gauge.DataPoints {
				id, _ := dp.Attributes.Value("reading.id")
				ts, _ := dp.Attributes.Value("reading.timestamp")
				e.points = append(e.points, exportedPoint{
					metric:    m.Name,
					readingID: id.AsString(),
					takenAt:   ts.AsString(),
				})
			}
		}
	}
	return nil
}

func (e *stubExporter) ForceFlush(ctx context.Context) error { return nil }

func (e *stubExporter) Shutdown(ctx context.Context) error { return nil }

func (e *stubExporter) pointsFor(metric string) []exportedPoint {
	e.mu.Lock()
	defer e.mu.Unlock()

	var out []exportedPoint
	for _, p := range e.points {
		if p.metric == metric {
			out = append(out, p)
		}
	}
	return out
}

func (e *stubExporter) metricNames() []string {
	e.mu.Lock()
	defer e.mu.Unlock()

	return append([]string(nil), e.names...)
}

func TestOTLPSenderExportsGauges(t *testing.T) {
	exp := &stubExporter{}
	s := newOTLPSender(discardLogger(), exp, resource.Empty())
	defer s.Close()

	require.NoError(t, s.Send(context.Background(), testEnvelope("r1")))

	names := exp.metricNames()
	assert.Contains(t, names, "sensor.temperature")
	assert.Contains(t, names, "sensor.humidity")
	assert.Contains(t, names, "sensor.light")
}

func TestOTLPSenderKeepsReadingTime(t *testing.T) {
	exp := &stubExporter{}
	s := newOTLPSender(discardLogger(), exp, resource.Empty())
	defer s.Close()

	// a replayed reading taken long before the export
	old := testEnvelope("old")
	old.Timestamp = time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC)
	require.NoError(t, s.Send(context.Background(), old))

	live := testEnvelope("live")
	live.Timestamp = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, s.Send(context.Background(), live))

	// each export carries only the reading just sent
	assert.Equal(t, []exportedPoint{
		{metric: "sensor.temperature", readingID: "old", takenAt: "2024-05-01T09:30:00Z"},
		{metric: "sensor.temperature", readingID: "live", takenAt: "2024-05-01T12:00:00Z"},
	}, exp.pointsFor("sensor.temperature"))
}

func TestOTLPSenderExportFailure(t *testing.T) {
	exp := &stubExporter{fail: true}
	s := newOTLPSender(discardLogger(), exp, resource.Empty())
	defer s.Close()

	err := s.Send(context.Background(), testEnvelope("r1"))
	assert.ErrorIs(t, err, ErrDelivery)
}
