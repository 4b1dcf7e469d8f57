package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Broker    BrokerConfig  `json:"broker" yaml:"broker"`
	Logging   LogConfig     `json:"logging" yaml:"logging"`
	Metrics   MetricsConfig `json:"metrics" yaml:"metrics"`
	Execution ExecConfig    `json:"execution" yaml:"execution"`
	RulesPath string        `json:"rulesPath" yaml:"rulesPath"`
}

// BrokerConfig selects and configures the message broker backend
type BrokerConfig struct {
	Type string     `json:"type" yaml:"type"` // "mqtt" or "nats"
	MQTT MQTTConfig `json:"mqtt" yaml:"mqtt"`
	NATS NATSConfig `json:"nats" yaml:"nats"`
}

type MQTTConfig struct {
	Broker    string `json:"broker" yaml:"broker"`
	ClientID  string `json:"clientId" yaml:"clientId"`
	Username  string `json:"username" yaml:"username"`
	Password  string `json:"password" yaml:"password"`
	KeepAlive int    `json:"keepAlive" yaml:"keepAlive"` // seconds
	TLS       struct {
		Enable   bool   `json:"enable" yaml:"enable"`
		CertFile string `json:"certFile" yaml:"certFile"`
		KeyFile  string `json:"keyFile" yaml:"keyFile"`
		CAFile   string `json:"caFile" yaml:"caFile"`
	} `json:"tls" yaml:"tls"`
}

type NATSConfig struct {
	URL      string `json:"url" yaml:"url"`
	Username string `json:"username" yaml:"username"`
	Password string `json:"password" yaml:"password"`
}

type LogConfig struct {
	Level      string `json:"level" yaml:"level"`           // debug, info, warn, error
	Encoding   string `json:"encoding" yaml:"encoding"`     // json or console
	OutputPath string `json:"outputPath" yaml:"outputPath"` // file path or "stdout"
	MaxSize    int    `json:"maxSize" yaml:"maxSize"`       // megabytes before rotation
	MaxAge     int    `json:"maxAge" yaml:"maxAge"`         // days to retain rotated files
	MaxBackups int    `json:"maxBackups" yaml:"maxBackups"`
	Compress   bool   `json:"compress" yaml:"compress"`
}

type MetricsConfig struct {
	Enabled        bool   `json:"enabled" yaml:"enabled"`
	Address        string `json:"address" yaml:"address"`
	Path           string `json:"path" yaml:"path"`
	UpdateInterval string `json:"updateInterval" yaml:"updateInterval"` // Duration string
}

// ExecConfig controls the action execution pool
type ExecConfig struct {
	Workers     int    `json:"workers" yaml:"workers"`
	QueueSize   int    `json:"queueSize" yaml:"queueSize"`
	Timeout     string `json:"timeout" yaml:"timeout"`         // per-action wall-clock limit
	GracePeriod string `json:"gracePeriod" yaml:"gracePeriod"` // shutdown drain window
}

// TimeoutDuration returns the parsed per-action timeout. Validation at load
// time guarantees the string parses.
func (e *ExecConfig) TimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(e.Timeout)
	return d
}

// GracePeriodDuration returns the parsed shutdown grace period.
func (e *ExecConfig) GracePeriodDuration() time.Duration {
	d, _ := time.ParseDuration(e.GracePeriod)
	return d
}

// Load reads and parses the configuration file. YAML is selected by file
// extension, everything else is treated as JSON.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	switch filepath.Ext(path) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	default:
		if err := json.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	applyDefaults(&config)

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

func applyDefaults(config *Config) {
	if config.Broker.Type == "" {
		config.Broker.Type = "mqtt"
	}
	if config.Broker.MQTT.ClientID == "" {
		config.Broker.MQTT.ClientID = "mqtt-action-runner"
	}
	if config.Broker.MQTT.KeepAlive <= 0 {
		config.Broker.MQTT.KeepAlive = 60
	}

	if config.Logging.Level == "" {
		config.Logging.Level = "info"
	}
	if config.Logging.Encoding == "" {
		config.Logging.Encoding = "json"
	}
	if config.Logging.OutputPath == "" {
		config.Logging.OutputPath = "stdout"
	}
	if config.Logging.MaxSize <= 0 {
		config.Logging.MaxSize = 100
	}
	if config.Logging.MaxBackups <= 0 {
		config.Logging.MaxBackups = 5
	}

	if config.Metrics.Address == "" {
		config.Metrics.Address = ":2112"
	}
	if config.Metrics.Path == "" {
		config.Metrics.Path = "/metrics"
	}
	if config.Metrics.UpdateInterval == "" {
		config.Metrics.UpdateInterval = "15s"
	}

	if config.Execution.Workers <= 0 {
		config.Execution.Workers = runtime.NumCPU()
	}
	if config.Execution.QueueSize <= 0 {
		config.Execution.QueueSize = 1000
	}
	if config.Execution.Timeout == "" {
		config.Execution.Timeout = "30s"
	}
	if config.Execution.GracePeriod == "" {
		config.Execution.GracePeriod = "10s"
	}

	if config.RulesPath == "" {
		config.RulesPath = "rules"
	}
}

// validateConfig performs validation of all configuration values
func validateConfig(cfg *Config) error {
	switch cfg.Broker.Type {
	case "mqtt":
		if cfg.Broker.MQTT.Broker == "" {
			return fmt.Errorf("mqtt broker address is required")
		}
		if cfg.Broker.MQTT.TLS.Enable {
			if cfg.Broker.MQTT.TLS.CertFile == "" {
				return fmt.Errorf("tls cert file is required when tls is enabled")
			}
			if cfg.Broker.MQTT.TLS.KeyFile == "" {
				return fmt.Errorf("tls key file is required when tls is enabled")
			}
			if cfg.Broker.MQTT.TLS.CAFile == "" {
				return fmt.Errorf("tls ca file is required when tls is enabled")
			}
		}
	case "nats":
		if cfg.Broker.NATS.URL == "" {
			return fmt.Errorf("nats url is required")
		}
	default:
		return fmt.Errorf("invalid broker type: %s", cfg.Broker.Type)
	}

	switch cfg.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level: %s", cfg.Logging.Level)
	}

	switch cfg.Logging.Encoding {
	case "json", "console":
	default:
		return fmt.Errorf("invalid log encoding: %s", cfg.Logging.Encoding)
	}

	if cfg.Metrics.Enabled {
		if _, err := time.ParseDuration(cfg.Metrics.UpdateInterval); err != nil {
			return fmt.Errorf("invalid metrics update interval: %w", err)
		}
	}

	if cfg.Execution.Workers < 1 {
		return fmt.Errorf("workers must be greater than 0")
	}
	if cfg.Execution.QueueSize < 1 {
		return fmt.Errorf("queue size must be greater than 0")
	}
	if d, err := time.ParseDuration(cfg.Execution.Timeout); err != nil || d <= 0 {
		return fmt.Errorf("invalid execution timeout: %s", cfg.Execution.Timeout)
	}
	if d, err := time.ParseDuration(cfg.Execution.GracePeriod); err != nil || d < 0 {
		return fmt.Errorf("invalid shutdown grace period: %s", cfg.Execution.GracePeriod)
	}

	return nil
}

// ApplyOverrides applies command line flag overrides to the configuration
func (c *Config) ApplyOverrides(workers, queueSize int, timeout time.Duration, metricsAddr, metricsPath string) {
	if workers > 0 {
		c.Execution.Workers = workers
	}
	if queueSize > 0 {
		c.Execution.QueueSize = queueSize
	}
	if timeout > 0 {
		c.Execution.Timeout = timeout.String()
	}
	if metricsAddr != "" {
		c.Metrics.Address = metricsAddr
	}
	if metricsPath != "" {
		c.Metrics.Path = metricsPath
	}
}
