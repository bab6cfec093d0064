package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all client configuration
type Config struct {
	API     APIConfig     `yaml:"api"`
	Log     LogConfig     `yaml:"log"`
	Session SessionConfig `yaml:"session"`
	Live    LiveConfig    `yaml:"live"`
	Influx  InfluxConfig  `yaml:"influx"`
	Kafka   KafkaConfig   `yaml:"kafka"`
	Mock    MockConfig    `yaml:"mock"`
}

// APIConfig addresses the backend
type APIConfig struct {
	URL     string        `yaml:"url"`
	Timeout time.Duration `yaml:"timeout"`
	// StreamTokenInQuery also sends the token as ?token= on the stream request
	StreamTokenInQuery bool `yaml:"stream_token_in_query"`
}

// LogConfig controls structured logging
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// SessionConfig controls session persistence
type SessionConfig struct {
	File        string        `yaml:"file"`
	FallbackTTL time.Duration `yaml:"fallback_ttl"`
}

// LiveConfig controls the live view
type LiveConfig struct {
	BufferSize       int           `yaml:"buffer_size"`
	WeeklyInterval   time.Duration `yaml:"weekly_interval"`
	ReconnectInitial time.Duration `yaml:"reconnect_initial"`
	ReconnectMax     time.Duration `yaml:"reconnect_max"`
	ReconnectRetries int           `yaml:"reconnect_retries"`
}

// InfluxConfig is the optional InfluxDB sink
type InfluxConfig struct {
	URL    string `yaml:"url"`
	Token  string `yaml:"token"`
	Org    string `yaml:"org"`
	Bucket string `yaml:"bucket"`
}

// KafkaConfig is the optional Kafka sink
type KafkaConfig struct {
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
}

// MockConfig configures `mock serve`
type MockConfig struct {
	Host   string `yaml:"host"`
	Port   int    `yaml:"port"`
	Secret string `yaml:"secret"`
	Rate   string `yaml:"rate"`
}

// ValidationError represents an invalid configuration value
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid config %s: %s", e.Field, e.Message)
}

// Dir returns the directory holding config and session files
func Dir() string {
	base, err := os.UserConfigDir()
	if err != nil {
		base = "."
	}
	return filepath.Join(base, "nexus")
}

// DefaultPath returns $NEXUS_CONFIG or <user config dir>/nexus/config.yaml
func DefaultPath() string {
	if p := os.Getenv("NEXUS_CONFIG"); p != "" {
		return p
	}
	return filepath.Join(Dir(), "config.yaml")
}

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		API: APIConfig{
			URL:     "http://localhost:8081/api",
			Timeout: 15 * time.Second,
		},
		Log: LogConfig{
			Level:  "warn",
			Format: "text",
		},
		Session: SessionConfig{
			File:        filepath.Join(Dir(), "session.json"),
			FallbackTTL: 24 * time.Hour,
		},
		Live: LiveConfig{
			BufferSize:       30,
			WeeklyInterval:   10 * time.Second,
			ReconnectInitial: time.Second,
			ReconnectMax:     30 * time.Second,
			ReconnectRetries: 5,
		},
		Influx: InfluxConfig{
			Org:    "nexus",
			Bucket: "building-energy",
		},
		Kafka: KafkaConfig{
			Topic: "building-energy-readings",
		},
		Mock: MockConfig{
			Host:   "127.0.0.1",
			Port:   8081,
			Secret: "nexus-mock-secret",
			Rate:   "0.5hz",
		},
	}
}

// Load reads path over the defaults, then applies .env and environment
// overrides. An empty path uses DefaultPath and tolerates a missing file.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	explicit := path != ""
	if !explicit {
		path = DefaultPath()
	}

	cfg := Default()
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	case errors.Is(err, fs.ErrNotExist) && !explicit:
	default:
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.API.URL = getEnv("NEXUS_API_URL", c.API.URL)
	c.API.Timeout = getEnvDuration("NEXUS_API_TIMEOUT", c.API.Timeout)
	c.API.StreamTokenInQuery = getEnvBool("NEXUS_STREAM_TOKEN_IN_QUERY", c.API.StreamTokenInQuery)
	c.Log.Level = getEnv("NEXUS_LOG_LEVEL", c.Log.Level)
	c.Log.Format = getEnv("NEXUS_LOG_FORMAT", c.Log.Format)
	c.Session.File = getEnv("NEXUS_SESSION_FILE", c.Session.File)
	c.Live.BufferSize = getEnvInt("NEXUS_BUFFER_SIZE", c.Live.BufferSize)
	c.Live.WeeklyInterval = getEnvDuration("NEXUS_WEEKLY_INTERVAL", c.Live.WeeklyInterval)
	c.Influx.URL = getEnv("NEXUS_INFLUX_URL", c.Influx.URL)
	c.Influx.Token = getEnv("NEXUS_INFLUX_TOKEN", c.Influx.Token)
	c.Influx.Org = getEnv("NEXUS_INFLUX_ORG", c.Influx.Org)
	c.Influx.Bucket = getEnv("NEXUS_INFLUX_BUCKET", c.Influx.Bucket)
	c.Kafka.Brokers = getEnvStringSlice("NEXUS_KAFKA_BROKERS", c.Kafka.Brokers)
	c.Kafka.Topic = getEnv("NEXUS_KAFKA_TOPIC", c.Kafka.Topic)
}

// Validate checks the configuration for values the client cannot use
func (c *Config) Validate() error {
	u, err := url.Parse(c.API.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return &ValidationError{Field: "api.url", Message: fmt.Sprintf("%q is not an http(s) URL", c.API.URL)}
	}
	if c.API.Timeout <= 0 {
		return &ValidationError{Field: "api.timeout", Message: "must be positive"}
	}
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return &ValidationError{Field: "log.level", Message: fmt.Sprintf("unknown level %q", c.Log.Level)}
	}
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		return &ValidationError{Field: "log.format", Message: "must be text or json"}
	}
	if c.Live.BufferSize <= 0 {
		return &ValidationError{Field: "live.buffer_size", Message: "must be positive"}
	}
	if c.Live.ReconnectRetries < 0 {
		return &ValidationError{Field: "live.reconnect_retries", Message: "must not be negative"}
	}
	if c.Mock.Port < 0 || c.Mock.Port > 65535 {
		return &ValidationError{Field: "mock.port", Message: "out of range"}
	}
	return nil
}

// Marshal renders the configuration as YAML, with the influx token masked
func (c *Config) Marshal() ([]byte, error) {
	masked := *c
	if masked.Influx.Token != "" {
		masked.Influx.Token = "********"
	}
	return yaml.Marshal(&masked)
}

// Write saves the configuration to path, creating its directory
func (c *Config) Write(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvStringSlice(key string, defaultValue []string) []string {
	value, exists := os.LookupEnv(key)
	if !exists || strings.TrimSpace(value) == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
