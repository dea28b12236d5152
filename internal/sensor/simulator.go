package sensor

import (
	"context"
	"math/rand"
	"time"

	"github.com/speedwagon-io/coldwatch/internal/config"
	"github.com/speedwagon-io/coldwatch/internal/model"
)

// Simulator is a random-walk stand-in for a real sensor, used for dry runs
// and bench testing.
type Simulator struct {
	cfg         config.SimulatorConfig
	rnd         *rand.Rand
	temperature float64
	now         func() time.Time
}

func NewSimulator(cfg config.SimulatorConfig) *Simulator {
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	return &Simulator{
		cfg: cfg,
		// #nosec G404
		rnd:         rand.New(rand.NewSource(seed)),
		temperature: cfg.BaseTemperature,
		now:         time.Now,
	}
}

func (s *Simulator) Name() string {
	return "simulator"
}

func (s *Simulator) Close() error {
	return nil
}

func (s *Simulator) Read(ctx context.Context) (model.Reading, error) {
	if err := ctx.Err(); err != nil {
		return model.Reading{}, err
	}

	if s.rnd.Float64() < s.cfg.InvalidRate {
		return model.Reading{}, ErrNotYetValid
	}

	s.temperature += s.cfg.Drift + s.cfg.Noise*(2*s.rnd.Float64()-1)
	humidity := s.cfg.BaseHumidity + 5*(2*s.rnd.Float64()-1)

	return model.Reading{
		Temperature: s.temperature,
		Humidity:    min(max(humidity, 0), 100),
		IsLight:     s.rnd.Float64() < s.cfg.LightRate,
		Timestamp:   s.now().UTC(),
	}, nil
}
