package config

import (
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

type Config struct {
	Env     string        `yaml:"env" env-default:"prod"`
	Device  DeviceConfig  `yaml:"device"`
	Monitor MonitorConfig `yaml:"monitor"`
	Sensor  SensorConfig  `yaml:"sensor"`
	Sender  SenderConfig  `yaml:"sender"`
	Buffer  BufferConfig  `yaml:"buffer"`
	Health  HealthConfig  `yaml:"health"`
	Log     LogConfig     `yaml:"log"`
}

type DeviceConfig struct {
	Name string `yaml:"name" env:"FRIDGE_NAME" env-required:"true"`
}

type MonitorConfig struct {
	Interval     time.Duration `yaml:"interval" env:"MONITOR_INTERVAL" env-default:"2s"`
	WindowSize   int           `yaml:"window_size" env:"MONITOR_WINDOW_SIZE" env-default:"10"`
	Ceiling      float64       `yaml:"ceiling" env:"MONITOR_CEILING" env-default:"10"`
	AlertTimeout time.Duration `yaml:"alert_timeout" env-default:"30s"`
}

type SenderConfig struct {
	Kind    string        `yaml:"kind" env:"SENDER_KIND" env-default:"http"`
	Timeout time.Duration `yaml:"timeout" env-default:"10s"`
	Retry   RetryConfig   `yaml:"retry"`
	HTTP    HTTPConfig    `yaml:"http"`
	MQTT    MQTTConfig    `yaml:"mqtt"`
	Kafka   KafkaConfig   `yaml:"kafka"`
	OTLP    OTLPConfig    `yaml:"otlp"`
}

type RetryConfig struct {
	MaxAttempts  int           `yaml:"max_attempts" env-default:"3"`
	InitialDelay time.Duration `yaml:"initial_delay" env-default:"200ms"`
	MaxDelay     time.Duration `yaml:"max_delay" env-default:"2s"`
}

type HTTPConfig struct {
	URL       string  `yaml:"url" env:"SENDER_URL"`
	Token     string  `yaml:"token" env:"SENDER_TOKEN"`
	RateLimit float64 `yaml:"rate_limit" env-default:"5"`
	Burst     int     `yaml:"burst" env-default:"10"`
}

type MQTTConfig struct {
	Broker      string `yaml:"broker" env:"MQTT_BROKER" env-default:"localhost:1883"`
	ClientID    string `yaml:"client_id" env:"MQTT_CLIENT_ID"`
	Username    string `yaml:"username" env:"MQTT_USERNAME"`
	Password    string `yaml:"password" env:"MQTT_PASSWORD"`
	TopicPrefix string `yaml:"topic_prefix" env-default:"coldwatch"`
	KeepAlive   uint16 `yaml:"keep_alive" env-default:"30"`
}

type KafkaConfig struct {
	Brokers []string `yaml:"brokers" env:"KAFKA_BROKERS" env-separator:","`
	Topic   string   `yaml:"topic" env-default:"coldwatch.telemetry"`
}

type OTLPConfig struct {
	Endpoint string `yaml:"endpoint" env:"OTEL_EXPORTER_OTLP_METRICS_ENDPOINT"`
	Insecure bool   `yaml:"insecure"`
}

type BufferConfig struct {
	Backend           string `yaml:"backend" env-default:"file"`
	Path              string `yaml:"path" env:"BUFFER_PATH" env-default:"/var/lib/coldwatch/data.log"`
	DegradedThreshold int64  `yaml:"degraded_threshold" env-default:"1000"`
	// ReplayLimit caps how many buffered readings one drain sends, so a deep
	// backlog cannot hold up sampling. 0 replays everything.
	ReplayLimit       int    `yaml:"replay_limit" env:"BUFFER_REPLAY_LIMIT" env-default:"100"`
}

type HealthConfig struct {
	Address string `yaml:"address" env-default:":8080"`
}

type LogConfig struct {
	Level  string `yaml:"level" env:"LOG_LEVEL" env-default:"info"`
	Format string `yaml:"format" env-default:"json"`
}

func MustLoad(configPath string) *Config {
	if configPath == "" {
		configPath = os.Getenv("CONFIG_PATH")
	}

	if configPath == "" {
		configPath = "config/config.yaml"
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		panic("config file not found: " + configPath)
	}

	cfg, err := Load(configPath)
	if err != nil {
		panic("failed to read config: " + err.Error())
	}

	return cfg
}

func Load(configPath string) (*Config, error) {
	var cfg Config
	if err := cleanenv.ReadConfig(configPath, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
