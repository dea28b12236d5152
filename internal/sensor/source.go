package sensor

import (
	"context"
	"errors"

	"github.com/speedwagon-io/coldwatch/internal/model"
)

var (
	// ErrNotYetValid means the sensor has no fresh sample yet. DHT11 style
	// sensors report this often; callers retry on the next cycle.
	ErrNotYetValid = errors.New("reading not yet valid")

	ErrDevice = errors.New("sensor device error")
)

// Source produces one reading per call. The returned reading has no ID.
type Source interface {
	Read(ctx context.Context) (model.Reading, error)
	Name() string
	Close() error
}
