// Package monitor runs the poll loop: sample the sensor, check the alert
// window, deliver the reading or buffer it.
package monitor

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/speedwagon-io/coldwatch/internal/alert"
	"github.com/speedwagon-io/coldwatch/internal/buffer"
	"github.com/speedwagon-io/coldwatch/internal/config"
	"github.com/speedwagon-io/coldwatch/internal/lib/logger/sl"
	"github.com/speedwagon-io/coldwatch/internal/metrics"
	"github.com/speedwagon-io/coldwatch/internal/model"
	"github.com/speedwagon-io/coldwatch/internal/sender"
	"github.com/speedwagon-io/coldwatch/internal/sensor"
)

// Monitor owns the alert window and the buffer. Everything except alert
// actions runs on the goroutine that calls Start.
type Monitor struct {
	log     *slog.Logger
	cfg     *config.Config
	source  sensor.Source
	sender  sender.Sender
	buffer  buffer.Buffer
	action  alert.Action
	window  *alert.Window
	metrics *metrics.Metrics

	state     atomic.Int32
	lastValid atomic.Int64
	alerts    sync.WaitGroup
	newID     func() string
}

func New(
	log *slog.Logger,
	cfg *config.Config,
	source sensor.Source,
	sender sender.Sender,
	buffer buffer.Buffer,
	action alert.Action,
	m *metrics.Metrics,
) *Monitor {
	return &Monitor{
		log:     log,
		cfg:     cfg,
		source:  source,
		sender:  sender,
		buffer:  buffer,
		action:  action,
		window:  alert.NewWindow(cfg.Monitor.WindowSize, cfg.Monitor.Ceiling),
		metrics: m,
		newID:   uuid.NewString,
	}
}

func (m *Monitor) State() State {
	return State(m.state.Load())
}

// LastValidReading returns when the last valid reading was taken, or the zero
// time if there has been none.
func (m *Monitor) LastValidReading() time.Time {
	ns := m.lastValid.Load()
	if ns == 0 {
		return time.Time{}
	}
	return time.Unix(0, ns).UTC()
}

func (m *Monitor) setState(s State) {
	m.state.Store(int32(s))
}

// Start polls until ctx is cancelled. The wait between iterations is the
// only place it blocks on ctx.
func (m *Monitor) Start(ctx context.Context) {
	m.log.Info("starting monitor",
		slog.String("device", m.cfg.Device.Name),
		slog.String("source", m.source.Name()),
		slog.Duration("interval", m.cfg.Monitor.Interval),
		slog.Int("window_size", m.window.Len()),
		slog.Float64("ceiling", m.window.Ceiling()),
	)

	m.updateDepth(ctx)

	for {
		m.step(ctx)
		m.setState(StateIdle)

		select {
		case <-ctx.Done():
			m.log.Info("context cancelled, stopping monitor")
			return
		case <-time.After(m.cfg.Monitor.Interval):
		}
	}
}

// Stop waits for in-flight alert actions and closes the sensor.
func (m *Monitor) Stop() {
	m.alerts.Wait()
	if err := m.source.Close(); err != nil {
		m.log.Error("failed to close sensor source", sl.Err(err))
	}
}

func (m *Monitor) step(ctx context.Context) {
	m.setState(StateSampling)

	reading, err := m.source.Read(ctx)
	if err != nil {
		m.setState(StateInvalid)
		m.readFailed(ctx, err)
		return
	}

	m.setState(StateValid)
	reading.ID = m.newID()
	if reading.Timestamp.IsZero() {
		reading.Timestamp = time.Now().UTC()
	}
	m.observe(&reading)

	if m.window.Push(reading.Temperature) {
		m.fireAlert(reading)
	}

	m.setState(StateDelivering)
	m.deliver(ctx, &reading)
}

func (m *Monitor) readFailed(ctx context.Context, err error) {
	switch {
	case ctx.Err() != nil:
		return
	case errors.Is(err, sensor.ErrNotYetValid):
		m.metrics.Readings.WithLabelValues(metrics.ResultNotYet).Inc()
		m.log.Debug("reading not yet valid")
	default:
		m.metrics.Readings.WithLabelValues(metrics.ResultError).Inc()
		m.log.Error("failed to read sensor",
			slog.String("source", m.source.Name()),
			sl.Err(err),
		)
	}
}

func (m *Monitor) observe(r *model.Reading) {
	m.lastValid.Store(r.Timestamp.UnixNano())
	m.metrics.Readings.WithLabelValues(metrics.ResultValid).Inc()
	m.metrics.Temperature.Set(r.Temperature)
	m.metrics.Humidity.Set(r.Humidity)
	if r.IsLight {
		m.metrics.Light.Set(1)
	} else {
		m.metrics.Light.Set(0)
	}

	m.log.Info("reading",
		slog.String("reading_id", r.ID),
		slog.Float64("temperature", r.Temperature),
		slog.Float64("humidity", r.Humidity),
		slog.Bool("light", r.IsLight),
		slog.Time("timestamp", r.Timestamp),
	)
}

// fireAlert runs the alert action on its own goroutine. Its errors and
// panics are logged and never reach the loop.
func (m *Monitor) fireAlert(r model.Reading) {
	m.metrics.Alerts.Inc()

	event := alert.Event{
		Device:  m.cfg.Device.Name,
		Reading: r,
		Ceiling: m.window.Ceiling(),
		Window:  m.window.Values(),
		FiredAt: time.Now().UTC(),
	}

	m.alerts.Add(1)
	go func() {
		defer m.alerts.Done()
		defer func() {
			if p := recover(); p != nil {
				m.log.Error("alert action panicked",
					slog.String("reading_id", r.ID),
					slog.Any("panic", p),
				)
			}
		}()

		ctx := context.Background()
		if m.cfg.Monitor.AlertTimeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, m.cfg.Monitor.AlertTimeout)
			defer cancel()
		}

		if err := m.action.Notify(ctx, event); err != nil {
			m.log.Error("alert action failed",
				slog.String("reading_id", r.ID),
				sl.Err(err),
			)
		}
	}()
}
