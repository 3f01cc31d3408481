package config

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/nerrad567/mqttmon/internal/session"
)

// Config is the root configuration structure for mqttmon.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	MQTT     MQTTConfig     `yaml:"mqtt"`
	Display  DisplayConfig  `yaml:"display"`
	Logging  LoggingConfig  `yaml:"logging"`
	InfluxDB InfluxDBConfig `yaml:"influxdb"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Broker MQTTBrokerConfig `yaml:"broker"`
	Auth   MQTTAuthConfig   `yaml:"auth"`

	// KeepAlive is the protocol keep-alive interval in seconds.
	KeepAlive int `yaml:"keep_alive" validate:"gte=1,lte=65535"`

	// WindowSize bounds in-flight outbound publish operations.
	WindowSize int `yaml:"window_size" validate:"gte=1,lte=65535"`

	// ConnectTimeout bounds one connection attempt, in seconds.
	ConnectTimeout int `yaml:"connect_timeout" validate:"gte=1"`

	Subscription MQTTSubscriptionConfig `yaml:"subscription"`
	Reconnect    MQTTReconnectConfig    `yaml:"reconnect"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Scheme   string `yaml:"scheme" validate:"oneof=tcp ssl ws wss"`
	Host     string `yaml:"host" validate:"required"`
	Port     int    `yaml:"port" validate:"gte=1,lte=65535"`
	ClientID string `yaml:"client_id" validate:"required"`

	// UniqueClientID appends a random suffix to ClientID so several
	// monitors can watch the same broker without evicting each other.
	UniqueClientID bool `yaml:"unique_client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTSubscriptionConfig is the subscription issued on every connection.
type MQTTSubscriptionConfig struct {
	Topic string `yaml:"topic" validate:"required,topicfilter"`
	QoS   int    `yaml:"qos" validate:"gte=0,lte=2"`
}

// MQTTReconnectConfig contains reconnection backoff settings, in seconds.
type MQTTReconnectConfig struct {
	InitialDelay int    `yaml:"initial_delay" validate:"gte=1"`
	MaxDelay     int    `yaml:"max_delay" validate:"gtefield=InitialDelay"`
	Jitter       string `yaml:"jitter" validate:"oneof=full equal none"`
}

// DisplayConfig contains terminal output settings.
type DisplayConfig struct {
	// Color is one of auto, always, never.
	Color string `yaml:"color" validate:"oneof=auto always never"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level" validate:"oneof=debug info warn warning error"`
	Format string `yaml:"format" validate:"oneof=json text"`
	Output string `yaml:"output" validate:"oneof=stdout stderr"`
}

// InfluxDBConfig contains the optional traffic statistics export settings.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url" validate:"required_if=Enabled true,omitempty,url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org" validate:"required_if=Enabled true"`
	Bucket        string `yaml:"bucket" validate:"required_if=Enabled true"`
	BatchSize     int    `yaml:"batch_size" validate:"gte=0"`
	FlushInterval int    `yaml:"flush_interval" validate:"gte=0"`

	// ReportInterval is how often a statistics point is written, in seconds.
	ReportInterval int `yaml:"report_interval" validate:"gte=0"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults), skipped when path is empty
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: MQTTMON_SECTION_KEY
// For example: MQTTMON_MQTT_HOST, MQTTMON_LOG_LEVEL
//
// Parameters:
//   - path: Path to the YAML configuration file, or "" for defaults
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}

		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, fmt.Errorf("applying environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// Default returns a Config with the built-in defaults.
func Default() *Config {
	return &Config{
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Scheme:   "tcp",
				Host:     "localhost",
				Port:     1883,
				ClientID: "mqtt-monitor",
			},
			KeepAlive:      60,
			WindowSize:     3,
			ConnectTimeout: 10,
			Subscription: MQTTSubscriptionConfig{
				Topic: "#",
				QoS:   2,
			},
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
				Jitter:       "full",
			},
		},
		Display: DisplayConfig{
			Color: "auto",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: "stdout",
		},
		InfluxDB: InfluxDBConfig{
			BatchSize:      100,
			FlushInterval:  10,
			ReportInterval: 10,
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: MQTTMON_SECTION_KEY
func applyEnvOverrides(cfg *Config) error {
	// MQTT
	if v := os.Getenv("MQTTMON_MQTT_SCHEME"); v != "" {
		cfg.MQTT.Broker.Scheme = v
	}
	if v := os.Getenv("MQTTMON_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("MQTTMON_MQTT_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("MQTTMON_MQTT_PORT: %w", err)
		}
		cfg.MQTT.Broker.Port = port
	}
	if v := os.Getenv("MQTTMON_MQTT_CLIENT_ID"); v != "" {
		cfg.MQTT.Broker.ClientID = v
	}
	if v := os.Getenv("MQTTMON_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("MQTTMON_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// InfluxDB
	if v := os.Getenv("MQTTMON_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	// Logging
	if v := os.Getenv("MQTTMON_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = strings.ToLower(v)
	}

	return nil
}

var validate = newValidator()

// newValidator builds a validator that reports fields by their YAML names
// and understands MQTT topic filters.
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name, _, _ := strings.Cut(field.Tag.Get("yaml"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	if err := v.RegisterValidation("topicfilter", func(fl validator.FieldLevel) bool {
		return session.ValidateFilter(fl.Field().String()) == nil
	}); err != nil {
		panic(err)
	}
	return v
}

// Validate checks the configuration for errors.
//
// Returns:
//   - error: Description of every validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	if err := validate.Struct(c); err != nil {
		var fieldErrs validator.ValidationErrors
		if !errors.As(err, &fieldErrs) {
			return fmt.Errorf("configuration errors: %w", err)
		}
		for _, fe := range fieldErrs {
			errs = append(errs, describe(fe))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// describe turns one validator failure into a config-path message such as
// "mqtt.broker.port must satisfy lte=65535 (got 70000)".
func describe(fe validator.FieldError) string {
	path := fe.Namespace()
	if _, rest, ok := strings.Cut(path, "."); ok {
		path = rest
	}

	rule := fe.Tag()
	if fe.Param() != "" {
		rule += "=" + fe.Param()
	}

	switch fe.Tag() {
	case "required", "required_if":
		return path + " is required"
	case "topicfilter":
		return fmt.Sprintf("%s %q is not a valid topic filter", path, fe.Value())
	default:
		return fmt.Sprintf("%s must satisfy %s (got %v)", path, rule, fe.Value())
	}
}

// BrokerTarget returns the broker endpoint described by the configuration.
func (c MQTTConfig) BrokerTarget() session.Target {
	return session.Target{
		Scheme: c.Broker.Scheme,
		Host:   c.Broker.Host,
		Port:   c.Broker.Port,
	}
}

// GetKeepAlive returns the keep-alive interval as a Duration.
func (c MQTTConfig) GetKeepAlive() time.Duration {
	return time.Duration(c.KeepAlive) * time.Second
}

// GetConnectTimeout returns the connection attempt timeout as a Duration.
func (c MQTTConfig) GetConnectTimeout() time.Duration {
	return time.Duration(c.ConnectTimeout) * time.Second
}

// GetInitialDelay returns the first retry ceiling as a Duration.
func (c MQTTReconnectConfig) GetInitialDelay() time.Duration {
	return time.Duration(c.InitialDelay) * time.Second
}

// GetMaxDelay returns the retry ceiling cap as a Duration.
func (c MQTTReconnectConfig) GetMaxDelay() time.Duration {
	return time.Duration(c.MaxDelay) * time.Second
}

// GetReportInterval returns the statistics report interval as a Duration.
func (c InfluxDBConfig) GetReportInterval() time.Duration {
	return time.Duration(c.ReportInterval) * time.Second
}
