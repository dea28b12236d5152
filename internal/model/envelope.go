package model

import (
	"encoding/json"
	"time"
)

// Envelope is what a sender puts on the wire for one reading. Its ID is the
// reading ID, so a replayed reading produces the same envelope.
type Envelope struct {
	ID        string      `json:"id"`
	Device    string      `json:"device"`
	Timestamp time.Time   `json:"timestamp"`
	Values    []DataPoint `json:"values"`
}

func NewEnvelope(device string, r *Reading) *Envelope {
	light := 0.0
	if r.IsLight {
		light = 1
	}

	return &Envelope{
		ID:        r.ID,
		Device:    device,
		Timestamp: r.Timestamp.UTC(),
		Values: []DataPoint{
			{
				Name:       MetricTemperature,
				Value:      r.Temperature,
				Unit:       UnitCelsius,
				Dimensions: dimensions(device, SensorDHT11),
			},
			{
				Name:       MetricHumidity,
				Value:      r.Humidity,
				Unit:       UnitPercent,
				Dimensions: dimensions(device, SensorDHT11),
			},
			{
				Name:       MetricLight,
				Value:      light,
				Unit:       UnitBits,
				Dimensions: dimensions(device, SensorLDR),
			},
		},
	}
}

func dimensions(device, sensor string) map[string]string {
	return map[string]string{
		"device": device,
		"sensor": sensor,
	}
}

func (e *Envelope) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

func EnvelopeFromJSON(data []byte) (*Envelope, error) {
	var e Envelope
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, err
	}
	return &e, nil
}

// Value returns the value of the named data point.
func (e *Envelope) Value(name string) (float64, bool) {
	for _, dp := range e.Values {
		if dp.Name == name {
			return dp.Value, true
		}
	}
	return 0, false
}
