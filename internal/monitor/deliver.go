package monitor

import (
	"context"
	"errors"
	"log/slog"

	"github.com/speedwagon-io/coldwatch/internal/lib/logger/sl"
	"github.com/speedwagon-io/coldwatch/internal/metrics"
	"github.com/speedwagon-io/coldwatch/internal/model"
	"github.com/speedwagon-io/coldwatch/internal/sender"
)

// deliver sends the reading and, on success, replays the buffer. A reading
// that cannot be sent is buffered. Nothing is returned: every outcome ends
// in a log line and a counter.
func (m *Monitor) deliver(ctx context.Context, reading *model.Reading) {
	err := m.send(ctx, reading)
	switch {
	case err == nil:
		m.metrics.Delivered.WithLabelValues(metrics.PathLive).Inc()
		m.log.Debug("reading sent", slog.String("reading_id", reading.ID))
		m.drain(ctx)

	case errors.Is(err, sender.ErrRejected):
		m.metrics.Dropped.WithLabelValues(metrics.ReasonRejected).Inc()
		m.log.Error("reading rejected by sink, dropping",
			slog.String("reading_id", reading.ID),
			sl.Err(err),
		)

	default:
		m.log.Warn("failed to send reading",
			slog.String("reading_id", reading.ID),
			sl.Err(err),
		)
		m.store(ctx, reading)
	}
}

func (m *Monitor) send(ctx context.Context, reading *model.Reading) error {
	if m.cfg.Sender.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.cfg.Sender.Timeout)
		defer cancel()
	}

	return m.sender.Send(ctx, model.NewEnvelope(m.cfg.Device.Name, reading))
}

func (m *Monitor) store(ctx context.Context, reading *model.Reading) {
	// A shutdown in the middle of a failed send must still persist the reading.
	ctx = context.WithoutCancel(ctx)

	if err := m.buffer.Store(ctx, reading); err != nil {
		m.metrics.Dropped.WithLabelValues(metrics.ReasonPersisting).Inc()
		m.log.Error("failed to buffer reading, dropping",
			slog.String("reading_id", reading.ID),
			sl.Err(err),
		)
		return
	}

	m.metrics.Buffered.Inc()
	m.log.Info("reading buffered for later delivery", slog.String("reading_id", reading.ID))
	m.updateDepth(ctx)
}

// drain replays up to buffer.replay_limit buffered readings oldest first and
// stops at the first one that fails. Only confirmed readings are removed, so a drain interrupted at
// any point can resend but never lose a reading.
func (m *Monitor) drain(ctx context.Context) {
	pending, err := m.buffer.GetPending(ctx)
	if err != nil {
		m.log.Error("failed to get pending readings from buffer", sl.Err(err))
		return
	}

	if len(pending) == 0 {
		return
	}

	total := len(pending)
	if limit := m.cfg.Buffer.ReplayLimit; limit > 0 && total > limit {
		pending = pending[:limit]
	}

	m.log.Info("replaying buffered readings",
		slog.Int("count", len(pending)),
		slog.Int("buffered", total),
	)

	var (
		done      []string
		delivered int
	)
	for _, reading := range pending {
		err := m.send(ctx, reading)
		if err == nil {
			done = append(done, reading.ID)
			delivered++
			continue
		}

		if errors.Is(err, sender.ErrRejected) {
			m.metrics.Dropped.WithLabelValues(metrics.ReasonRejected).Inc()
			m.log.Error("buffered reading rejected by sink, dropping",
				slog.String("reading_id", reading.ID),
				sl.Err(err),
			)
			done = append(done, reading.ID)
			continue
		}

		m.log.Debug("failed to send buffered reading",
			slog.String("reading_id", reading.ID),
			sl.Err(err),
		)
		break
	}

	m.metrics.Delivered.WithLabelValues(metrics.PathReplay).Add(float64(delivered))

	if len(done) > 0 {
		if err := m.buffer.MarkSent(context.WithoutCancel(ctx), done); err != nil {
			m.log.Error("failed to mark buffered readings as sent", sl.Err(err))
		} else {
			m.log.Info("buffered readings sent",
				slog.Int("count", delivered),
				slog.Int("remaining", total-len(done)),
			)
		}
	}

	m.updateDepth(ctx)
}

func (m *Monitor) updateDepth(ctx context.Context) {
	count, err := m.buffer.Count(context.WithoutCancel(ctx))
	if err != nil {
		m.log.Error("failed to count buffered readings", sl.Err(err))
		return
	}
	m.metrics.BufferDepth.Set(float64(count))
}
