package model

import (
	"encoding/json"
	"fmt"
	"time"
)

// Reading is a single valid sample from the sensor. It is never mutated
// after the monitor assigns its ID.
type Reading struct {
	ID          string    `json:"id"`
	Temperature float64   `json:"temperature"`
	Humidity    float64   `json:"humidity"`
	IsLight     bool      `json:"is_light"`
	Timestamp   time.Time `json:"timestamp"`
}

func (r *Reading) String() string {
	return fmt.Sprintf("Temperature: %.1f°C, Humidity: %.1f%%, Light: %t, Timestamp: %s",
		r.Temperature,
		r.Humidity,
		r.IsLight,
		r.Timestamp.Format(time.RFC3339),
	)
}

func (r *Reading) ToJSON() ([]byte, error) {
	return json.Marshal(r)
}

func ReadingFromJSON(data []byte) (*Reading, error) {
	var r Reading
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, err
	}
	if r.ID == "" {
		return nil, fmt.Errorf("reading has no id")
	}
	if r.Timestamp.IsZero() {
		return nil, fmt.Errorf("reading %s has no timestamp", r.ID)
	}
	return &r, nil
}
