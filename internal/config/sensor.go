package config

import "time"

type SensorConfig struct {
	Adapter   string          `yaml:"adapter" env:"SENSOR_ADAPTER" env-default:"simulator"`
	Gateway   GatewayConfig   `yaml:"gateway"`
	Simulator SimulatorConfig `yaml:"simulator"`
}

type GatewayConfig struct {
	BaseURL      string        `yaml:"base_url" env:"SENSOR_GATEWAY_URL"`
	Endpoint     string        `yaml:"endpoint" env-default:"reading"`
	RequestParam string        `yaml:"request_param" env-default:"dht11"`
	Timeout      time.Duration `yaml:"timeout" env-default:"5s"`
	Fields       FieldsConfig  `yaml:"fields"`
}

// FieldsConfig names the gateway response keys that carry each measurement.
type FieldsConfig struct {
	Temperature string `yaml:"temperature" env-default:"temperature"`
	Humidity    string `yaml:"humidity" env-default:"humidity"`
	Light       string `yaml:"light" env-default:"light"`
	// LightInverted treats a low value as light, for a raw LDR pin that is
	// pulled low when lit.
	LightInverted bool `yaml:"light_inverted"`
}

type SimulatorConfig struct {
	BaseTemperature float64 `yaml:"base_temperature" env-default:"4"`
	Drift           float64 `yaml:"drift" env-default:"0"`
	Noise           float64 `yaml:"noise" env-default:"0.3"`
	BaseHumidity    float64 `yaml:"base_humidity" env-default:"55"`
	InvalidRate     float64 `yaml:"invalid_rate" env-default:"0.3"`
	LightRate       float64 `yaml:"light_rate" env-default:"0.05"`
	Seed            int64   `yaml:"seed"`
}
