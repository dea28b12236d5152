package alert

import (
	"context"
	"log/slog"
	"time"

	"github.com/speedwagon-io/coldwatch/internal/model"
)

type Event struct {
	Device  string
	Reading model.Reading
	Ceiling float64
	Window  []float64
	FiredAt time.Time
}

// Action is invoked on a sustained breach. The monitor does not wait on it
// and only logs its error.
type Action interface {
	Notify(ctx context.Context, event Event) error
}

type Func func(ctx context.Context, event Event) error

func (f Func) Notify(ctx context.Context, event Event) error {
	return f(ctx, event)
}

type LogAction struct {
	log *slog.Logger
}

func NewLogAction(log *slog.Logger) *LogAction {
	return &LogAction{log: log}
}

func (a *LogAction) Notify(ctx context.Context, event Event) error {
	a.log.Warn("ALERT: temperature above threshold",
		slog.String("device", event.Device),
		slog.String("reading_id", event.Reading.ID),
		slog.Float64("temperature", event.Reading.Temperature),
		slog.Float64("ceiling", event.Ceiling),
		slog.Any("window", event.Window),
	)
	return nil
}
