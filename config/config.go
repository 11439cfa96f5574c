// Package config provides configuration loading and management for the
// vocabularies toolkit.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration for YAML unmarshaling.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler for Duration.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler for Duration.
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Duration returns the underlying time.Duration.
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// Config represents the complete toolkit configuration.
type Config struct {
	NATS     NATSConfig     `yaml:"nats"`
	Pipeline PipelineConfig `yaml:"pipeline"`
	Uploads  UploadsConfig  `yaml:"uploads"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

// NATSConfig configures the NATS connection backing the task store, the
// registry and the index sink.
type NATSConfig struct {
	// URL is the NATS server URL (empty = use embedded server)
	URL string `yaml:"url"`
	// Embedded indicates whether to use an embedded NATS server
	Embedded bool `yaml:"embedded"`
}

// PipelineConfig configures the task runner.
type PipelineConfig struct {
	// WorkRoot is the base directory for run workspaces
	WorkRoot string `yaml:"work_root"`
	// CompleteRetryWindow bounds how long result persistence is retried
	CompleteRetryWindow Duration `yaml:"complete_retry_window"`
	// IngestSubject is the sink subject index documents are published to
	IngestSubject string `yaml:"ingest_subject"`
	// AbandonedAfter is the age after which an uncompleted task record is
	// reconciled as failed at startup
	AbandonedAfter Duration `yaml:"abandoned_after"`
}

// UploadsConfig configures the uploads watcher.
type UploadsConfig struct {
	// Dir is the directory watched for uploaded vocabulary files
	Dir string `yaml:"dir"`
	// DebounceDelay is how long to wait for more writes before submitting
	DebounceDelay Duration `yaml:"debounce_delay"`
	// FileExtensions lists the accepted upload extensions
	FileExtensions []string `yaml:"file_extensions"`
}

// MetricsConfig configures the metrics endpoint of serve mode.
type MetricsConfig struct {
	// Addr is the listen address for /metrics and /healthz
	Addr string `yaml:"addr"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		NATS: NATSConfig{
			URL:      "",
			Embedded: true,
		},
		Pipeline: PipelineConfig{
			WorkRoot:            os.TempDir(),
			CompleteRetryWindow: Duration(15 * time.Second),
			IngestSubject:       "vocabs.index.ingest",
			AbandonedAfter:      Duration(24 * time.Hour),
		},
		Uploads: UploadsConfig{
			Dir:            "uploads",
			DebounceDelay:  Duration(500 * time.Millisecond),
			FileExtensions: []string{".json", ".ttl", ".rdf"},
		},
		Metrics: MetricsConfig{
			Addr: ":9090",
		},
	}
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	if c.Pipeline.WorkRoot == "" {
		return fmt.Errorf("pipeline.work_root is required")
	}
	if c.Pipeline.CompleteRetryWindow <= 0 {
		return fmt.Errorf("pipeline.complete_retry_window must be positive")
	}
	if c.Uploads.DebounceDelay <= 0 {
		return fmt.Errorf("uploads.debounce_delay must be positive")
	}
	return nil
}

// Merge overlays non-zero fields of other onto c.
func (c *Config) Merge(other *Config) {
	if other == nil {
		return
	}
	if other.NATS.URL != "" {
		c.NATS.URL = other.NATS.URL
		c.NATS.Embedded = other.NATS.Embedded
	}
	if other.Pipeline.WorkRoot != "" {
		c.Pipeline.WorkRoot = other.Pipeline.WorkRoot
	}
	if other.Pipeline.CompleteRetryWindow > 0 {
		c.Pipeline.CompleteRetryWindow = other.Pipeline.CompleteRetryWindow
	}
	if other.Pipeline.IngestSubject != "" {
		c.Pipeline.IngestSubject = other.Pipeline.IngestSubject
	}
	if other.Pipeline.AbandonedAfter > 0 {
		c.Pipeline.AbandonedAfter = other.Pipeline.AbandonedAfter
	}
	if other.Uploads.Dir != "" {
		c.Uploads.Dir = other.Uploads.Dir
	}
	if other.Uploads.DebounceDelay > 0 {
		c.Uploads.DebounceDelay = other.Uploads.DebounceDelay
	}
	if len(other.Uploads.FileExtensions) > 0 {
		c.Uploads.FileExtensions = other.Uploads.FileExtensions
	}
	if other.Metrics.Addr != "" {
		c.Metrics.Addr = other.Metrics.Addr
	}
}

// LoadFromFile loads configuration from a YAML file.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	config := &Config{}
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	return config, nil
}
