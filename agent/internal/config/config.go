package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Default values applied when fields are absent from the config file.
const (
	DefaultSampleInterval = 30 * time.Second
	DefaultShipInterval   = 15 * time.Second
	DefaultBufferSize     = 1000
	DefaultRisingPerHour  = 0.5
	DefaultFallingPerHour = -0.5
	DefaultMetricsListen  = ":9464"
	DefaultTopicPrefix    = "tempslope"
	DefaultLogLevel       = "info"
)

// Config is the top-level agent configuration.
// Fields map 1:1 to config.example.yaml; the server: section is ignored.
type Config struct {
	Agent AgentConfig `yaml:"agent"`
}

// AgentConfig holds all agent-side settings.
type AgentConfig struct {
	// ServerEndpoint is the base URL of tempslope-server (http://host:port).
	ServerEndpoint string `yaml:"server_endpoint"`

	// SampleInterval controls how often each sensor is read.
	SampleInterval time.Duration `yaml:"sample_interval"`

	// ShipInterval bounds how long a snapshot may wait in the buffer before
	// the shipper retries a stalled connection.
	ShipInterval time.Duration `yaml:"ship_interval"`

	// BufferSize is the maximum number of snapshots held in memory when
	// the server is unreachable.
	BufferSize int `yaml:"buffer_size"`

	// LogLevel is one of: debug | info | warn | error.
	LogLevel string `yaml:"log_level"`

	// Sensors is the list of temperature sources to sample.
	Sensors []Sensor `yaml:"sensors"`

	// ServerAuth configures how the agent authenticates to tempslope-server.
	ServerAuth AuthConfig `yaml:"server_auth"`

	// Trend holds the slope thresholds used to classify a sensor as rising
	// or falling. Hot-reloadable.
	Trend TrendConfig `yaml:"trend"`

	// Metrics configures the local Prometheus exposition endpoint.
	Metrics MetricsConfig `yaml:"metrics"`

	// MQTT optionally publishes snapshots to a broker instead of the server.
	MQTT MQTTConfig `yaml:"mqtt"`
}

// Sensor describes one sampled temperature source.
type Sensor struct {
	// ID is a unique, human-readable identifier for this sensor.
	ID string `yaml:"id"`

	// Type is the reader type: prometheus | w1 | file.
	Type string `yaml:"type"`

	// Endpoint is the exposition URL (prometheus) or the file path (w1, file).
	Endpoint string `yaml:"endpoint"`

	// Metric is the metric family to read (prometheus only).
	Metric string `yaml:"metric"`

	// Labels selects one series of Metric; every listed label must match.
	Labels map[string]string `yaml:"labels"`

	// Unit is the value unit of a file sensor: milli | degrees. When empty,
	// integer content is read as millidegrees and decimal content as degrees.
	Unit string `yaml:"unit"`

	// Auth configures how the agent authenticates to this sensor endpoint.
	Auth AuthConfig `yaml:"auth"`

	// TLS holds optional TLS dial options.
	TLS TLSConfig `yaml:"tls"`
}

// File sensor units.
const (
	UnitMilli   = "milli"
	UnitDegrees = "degrees"
)

// AuthConfig specifies the authentication mode for an HTTP endpoint.
type AuthConfig struct {
	// Mode is one of: mtls | apikey | bearer | basic | none.
	Mode string `yaml:"mode"`

	// mTLS fields, used when Mode == "mtls".
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
	CAFile   string `yaml:"ca_file"`

	// Header is the HTTP header name the API key is sent in.
	// Defaults to "x-api-key".
	Header string `yaml:"header"`
	// KeyEnv is the name of the environment variable that holds the key value.
	KeyEnv string `yaml:"key_env"`

	// TokenEnv is the name of the environment variable that holds the bearer token.
	TokenEnv string `yaml:"token_env"`

	// Username is the literal basic-auth username (safe to store in config).
	Username string `yaml:"username"`
	// PasswordEnv is the name of the environment variable that holds the password.
	PasswordEnv string `yaml:"password_env"`
}

// Key returns the API key value resolved from the environment.
// Returns empty string if KeyEnv is unset or the variable is not found.
func (a AuthConfig) Key() string {
	if a.KeyEnv == "" {
		return ""
	}
	return os.Getenv(a.KeyEnv)
}

// Token returns the bearer token value resolved from the environment.
func (a AuthConfig) Token() string {
	if a.TokenEnv == "" {
		return ""
	}
	return os.Getenv(a.TokenEnv)
}

// Password returns the basic-auth password resolved from the environment.
func (a AuthConfig) Password() string {
	if a.PasswordEnv == "" {
		return ""
	}
	return os.Getenv(a.PasswordEnv)
}

// EffectiveHeader returns the configured API key header, or "x-api-key".
func (a AuthConfig) EffectiveHeader() string {
	if a.Header != "" {
		return a.Header
	}
	return "x-api-key"
}

// TLSConfig holds per-sensor TLS dial options.
type TLSConfig struct {
	// InsecureSkipVerify disables TLS certificate verification.
	// Only use this for internal CAs in development environments.
	InsecureSkipVerify bool `yaml:"insecure_skip_verify"`
}

// TrendConfig holds the slope thresholds, in degrees per hour.
type TrendConfig struct {
	// RisingPerHour is the slope at or above which a sensor is "rising".
	RisingPerHour float64 `yaml:"rising_per_hour"`

	// FallingPerHour is the slope at or below which a sensor is "falling".
	// Must be lower than RisingPerHour.
	FallingPerHour float64 `yaml:"falling_per_hour"`
}

// MetricsConfig configures the Prometheus /metrics listener.
type MetricsConfig struct {
	// Listen is the address for /metrics and /healthz. Empty disables it.
	Listen string `yaml:"listen"`
}

// MQTTConfig configures the optional MQTT snapshot publisher.
type MQTTConfig struct {
	// Broker is host:port of an MQTT v5 broker. Empty disables MQTT.
	Broker string `yaml:"broker"`

	// TopicPrefix is prepended to "<sensor_id>/snapshot".
	TopicPrefix string `yaml:"topic_prefix"`

	// ClientID defaults to "tempslope-agent-<hostname>".
	ClientID string `yaml:"client_id"`

	// QoS is 0 or 1.
	QoS byte `yaml:"qos"`
}

// Enabled reports whether MQTT publishing is configured.
func (m MQTTConfig) Enabled() bool { return m.Broker != "" }

// Load reads and parses the YAML config file at path.
// Missing optional fields are filled with sensible defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read file: %w", err)
	}

	cfg := defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse yaml: %w", err)
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	return cfg, nil
}

// defaults returns a Config pre-populated with default values.
func defaults() *Config {
	return &Config{
		Agent: AgentConfig{
			SampleInterval: DefaultSampleInterval,
			ShipInterval:   DefaultShipInterval,
			BufferSize:     DefaultBufferSize,
			LogLevel:       DefaultLogLevel,
			Trend: TrendConfig{
				RisingPerHour:  DefaultRisingPerHour,
				FallingPerHour: DefaultFallingPerHour,
			},
			Metrics: MetricsConfig{Listen: DefaultMetricsListen},
			MQTT:    MQTTConfig{TopicPrefix: DefaultTopicPrefix},
		},
	}
}

// validate checks required fields and structural constraints.
func validate(cfg *Config) error {
	a := cfg.Agent
	if a.ServerEndpoint == "" && !a.MQTT.Enabled() {
		return fmt.Errorf("agent.server_endpoint or agent.mqtt.broker is required")
	}
	if a.SampleInterval <= 0 {
		return fmt.Errorf("agent.sample_interval must be positive")
	}
	if a.SampleInterval < time.Second {
		return fmt.Errorf("agent.sample_interval must be at least 1s, history time resolution is one second")
	}
	if a.ShipInterval <= 0 {
		return fmt.Errorf("agent.ship_interval must be positive")
	}
	if a.BufferSize <= 0 {
		return fmt.Errorf("agent.buffer_size must be positive")
	}
	switch a.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("agent.log_level %q unknown: want debug|info|warn|error", a.LogLevel)
	}
	if a.Trend.FallingPerHour >= a.Trend.RisingPerHour {
		return fmt.Errorf("agent.trend.falling_per_hour (%.3f) must be below rising_per_hour (%.3f)",
			a.Trend.FallingPerHour, a.Trend.RisingPerHour)
	}
	if a.MQTT.QoS > 1 {
		return fmt.Errorf("agent.mqtt.qos %d unsupported: want 0|1", a.MQTT.QoS)
	}

	seen := make(map[string]bool, len(a.Sensors))
	for i, s := range a.Sensors {
		if s.ID == "" {
			return fmt.Errorf("sensors[%d]: id is required", i)
		}
		if seen[s.ID] {
			return fmt.Errorf("sensors[%d]: duplicate id %q", i, s.ID)
		}
		seen[s.ID] = true
		if s.Endpoint == "" {
			return fmt.Errorf("sensors[%d] %q: endpoint is required", i, s.ID)
		}
		switch s.Type {
		case "prometheus":
			if s.Metric == "" {
				return fmt.Errorf("sensors[%d] %q: metric is required for type prometheus", i, s.ID)
			}
		case "w1", "file":
		default:
			return fmt.Errorf("sensors[%d] %q: unknown type %q", i, s.ID, s.Type)
		}
		switch {
		case s.Unit == "":
		case s.Type != "file":
			return fmt.Errorf("sensors[%d] %q: unit only applies to type file", i, s.ID)
		case s.Unit != UnitMilli && s.Unit != UnitDegrees:
			return fmt.Errorf("sensors[%d] %q: unknown unit %q: want milli|degrees", i, s.ID, s.Unit)
		}
		switch s.Auth.Mode {
		case "mtls", "apikey", "bearer", "basic", "none", "":
		default:
			return fmt.Errorf("sensors[%d] %q: unknown auth mode %q", i, s.ID, s.Auth.Mode)
		}
	}
	return nil
}
