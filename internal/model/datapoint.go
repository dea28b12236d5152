package model

type DataPoint struct {
	Name       string            `json:"name"`
	Value      float64           `json:"value"`
	Unit       string            `json:"unit,omitempty"`
	Dimensions map[string]string `json:"dimensions,omitempty"`
}

const (
	MetricTemperature = "temperature"
	MetricHumidity    = "humidity"
	MetricLight       = "light"
)

const (
	UnitCelsius = "Celsius"
	UnitPercent = "Percent"
	UnitBits    = "Bits"
)

const (
	SensorDHT11 = "DHT11"
	SensorLDR   = "LDR"
)
