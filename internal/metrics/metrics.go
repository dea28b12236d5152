package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "coldwatch"

const (
	ResultValid      = "valid"
	ResultNotYet     = "not_yet_valid"
	ResultError      = "error"
	PathLive         = "live"
	PathReplay       = "replay"
	ReasonRejected   = "rejected"
	ReasonPersisting = "persist_failed"
)

type Metrics struct {
	Readings    *prometheus.CounterVec
	Delivered   *prometheus.CounterVec
	Buffered    prometheus.Counter
	Dropped     *prometheus.CounterVec
	Alerts      prometheus.Counter
	BufferDepth prometheus.Gauge
	Temperature prometheus.Gauge
	Humidity    prometheus.Gauge
	Light       prometheus.Gauge
}

func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)

	return &Metrics{
		Readings: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "readings_total",
			Help:      "Sensor reads by result.",
		}, []string{"result"}),
		Delivered: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "delivered_total",
			Help:      "Readings confirmed by the telemetry sink, live or replayed from the buffer.",
		}, []string{"path"}),
		Buffered: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "buffered_total",
			Help:      "Readings written to the local buffer after a failed send.",
		}),
		Dropped: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dropped_total",
			Help:      "Readings given up on, by reason.",
		}, []string{"reason"}),
		Alerts: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alerts_total",
			Help:      "Sustained temperature breaches reported.",
		}),
		BufferDepth: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "buffer_depth",
			Help:      "Readings waiting in the local buffer.",
		}),
		Temperature: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "temperature_celsius",
			Help:      "Last valid temperature.",
		}),
		Humidity: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "humidity_percent",
			Help:      "Last valid relative humidity.",
		}),
		Light: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "light",
			Help:      "1 if light was detected in the last valid reading.",
		}),
	}
}
