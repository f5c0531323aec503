// Package config provides configuration management for the converter and its HTTP front end.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"
	"unicode/utf8"

	"gopkg.in/yaml.v3"
)

// Configuration validation errors.
var (
	ErrNoColumns              = errors.New("normalizer.columns must list at least one column")
	ErrDuplicateColumn        = errors.New("normalizer.columns contains a duplicate")
	ErrMissingTimestampColumn = errors.New("normalizer.timestamp_column is required")
	ErrTimestampNotSelected   = errors.New("normalizer.columns must include the timestamp column")
	ErrMissingDateLayout      = errors.New("normalizer.date_layout is required")
	ErrMissingOutputLayout    = errors.New("normalizer.output_timestamp_layout is required")
	ErrInvalidDefaultDate     = errors.New("defaults date does not match normalizer.date_layout")
	ErrMissingFileName        = errors.New("output.file_name is required")
	ErrInvalidDelimiter       = errors.New("output.delimiter must be a single character other than quote or newline")
	ErrInvalidPreviewRows     = errors.New("output.preview_rows must be non-negative")
	ErrMissingAddr            = errors.New("server.addr is required")
	ErrInvalidMaxUpload       = errors.New("server.max_upload_mb must be at least 1")
	ErrInvalidRateLimit       = errors.New("server.rate_limit requires requests_per_second > 0 and burst >= 1")
	ErrInvalidLogLevel        = errors.New("logging.level must be one of: debug, info, warn, error")
	ErrInvalidLogFormat       = errors.New("logging.format must be 'text' or 'json'")
	ErrInvalidRetry           = errors.New("retry requires max_attempts >= 1, backoff_multiplier >= 1 and timeout_sec >= 1")
)

// DefaultColumns is the allow-list of columns kept in the exported CSV, in output order.
var DefaultColumns = []string{"custumerPhone", "error", "name", "idHubNegocio", "chip_resgate", "logged_at"}

// Config represents the complete converter configuration.
type Config struct {
	Normalizer NormalizerConfig `yaml:"normalizer"`
	Defaults   DefaultsConfig   `yaml:"defaults"`
	Output     OutputConfig     `yaml:"output"`
	Server     ServerConfig     `yaml:"server"`
	Logging    LoggingConfig    `yaml:"logging"`
	Retry      RetryPolicy      `yaml:"retry"`
}

// NormalizerConfig controls how log entries are reshaped into rows.
type NormalizerConfig struct {
	Columns               []string `yaml:"columns"`
	TimestampColumn       string   `yaml:"timestamp_column"`
	TimestampAltColumn    string   `yaml:"timestamp_alt_column"`
	VariablesColumn       string   `yaml:"variables_column"`
	DateLayout            string   `yaml:"date_layout"`
	OutputTimestampLayout string   `yaml:"output_timestamp_layout"`
	InclusiveEndDay       bool     `yaml:"inclusive_end_day"`
}

// DefaultsConfig holds the date range used when the caller gives none.
type DefaultsConfig struct {
	StartDate string `yaml:"start_date"`
	EndDate   string `yaml:"end_date"`
}

// OutputConfig defines output behavior.
type OutputConfig struct {
	FileName      string `yaml:"file_name"`
	Delimiter     string `yaml:"delimiter"`
	WriteManifest bool   `yaml:"write_manifest"`
	PreviewRows   int    `yaml:"preview_rows"`
}

// ServerConfig defines the HTTP upload form.
type ServerConfig struct {
	Addr        string          `yaml:"addr"`
	MaxUploadMb int             `yaml:"max_upload_mb"`
	RateLimit   RateLimitConfig `yaml:"rate_limit"`
}

// RateLimitConfig defines request throttling for the HTTP front end.
type RateLimitConfig struct {
	Enabled           bool    `yaml:"enabled"`
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	Burst             int     `yaml:"burst"`
}

// RetryPolicy defines retry behavior when fetching a remote export.
type RetryPolicy struct {
	MaxAttempts       int     `yaml:"max_attempts"`
	InitialDelayMs    int     `yaml:"initial_delay_ms"`
	MaxDelayMs        int     `yaml:"max_delay_ms"`
	BackoffMultiplier float64 `yaml:"backoff_multiplier"`
	TimeoutSec        int     `yaml:"timeout_sec"`
}

// LoggingConfig defines logging behavior.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Normalizer: NormalizerConfig{
			Columns:               append([]string(nil), DefaultColumns...),
			TimestampColumn:       "logged_at",
			TimestampAltColumn:    "logged_at.$date",
			VariablesColumn:       "variables",
			DateLayout:            "2/1/2006",
			OutputTimestampLayout: "2006-01-02 15:04:05",
		},
		Defaults: DefaultsConfig{
			StartDate: "25/11/2024",
			EndDate:   "27/11/2024",
		},
		Output: OutputConfig{
			FileName:    "cleaned_data.csv",
			Delimiter:   ",",
			PreviewRows: 20,
		},
		Server: ServerConfig{
			Addr:        ":8501",
			MaxUploadMb: 32,
			RateLimit: RateLimitConfig{
				Enabled:           true,
				RequestsPerSecond: 5,
				Burst:             10,
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Retry: RetryPolicy{
			MaxAttempts:       3,
			InitialDelayMs:    500,
			MaxDelayMs:        30000,
			BackoffMultiplier: 2.0,
			TimeoutSec:        30,
		},
	}
}

// LoadConfig loads configuration from a YAML file on top of the defaults.
func LoadConfig(filepath string) (*Config, error) {
	data, err := os.ReadFile(filepath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// SaveConfig saves configuration to YAML file.
func (c *Config) SaveConfig(filepath string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(filepath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.Normalizer.Validate(); err != nil {
		return err
	}

	// Defaults must be usable as-is by the front ends
	for _, d := range []string{c.Defaults.StartDate, c.Defaults.EndDate} {
		if d == "" {
			continue
		}

		if _, err := time.Parse(c.Normalizer.DateLayout, d); err != nil {
			return fmt.Errorf("%w: %q", ErrInvalidDefaultDate, d)
		}
	}

	// Validate output config
	if c.Output.FileName == "" {
		return ErrMissingFileName
	}

	if _, err := c.Output.Comma(); err != nil {
		return err
	}

	if c.Output.PreviewRows < 0 {
		return ErrInvalidPreviewRows
	}

	// Validate server config
	if c.Server.Addr == "" {
		return ErrMissingAddr
	}

	if c.Server.MaxUploadMb < 1 {
		return ErrInvalidMaxUpload
	}

	if c.Server.RateLimit.Enabled && (c.Server.RateLimit.RequestsPerSecond <= 0 || c.Server.RateLimit.Burst < 1) {
		return ErrInvalidRateLimit
	}

	// Validate logging config
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		return ErrInvalidLogLevel
	}

	if c.Logging.Format != "text" && c.Logging.Format != "json" {
		return ErrInvalidLogFormat
	}

	// Validate retry policy
	if c.Retry.MaxAttempts < 1 || c.Retry.BackoffMultiplier < 1 || c.Retry.TimeoutSec < 1 {
		return ErrInvalidRetry
	}

	return nil
}

// Validate checks the normalizer section on its own.
func (n *NormalizerConfig) Validate() error {
	if len(n.Columns) == 0 {
		return ErrNoColumns
	}

	if n.TimestampColumn == "" {
		return ErrMissingTimestampColumn
	}

	seen := make(map[string]bool, len(n.Columns))
	hasTimestamp := false

	for _, col := range n.Columns {
		if seen[col] {
			return fmt.Errorf("%w: %s", ErrDuplicateColumn, col)
		}

		seen[col] = true

		if col == n.TimestampColumn {
			hasTimestamp = true
		}
	}

	if !hasTimestamp {
		return ErrTimestampNotSelected
	}

	if n.DateLayout == "" {
		return ErrMissingDateLayout
	}

	if n.OutputTimestampLayout == "" {
		return ErrMissingOutputLayout
	}

	return nil
}

// Comma returns the CSV field delimiter as a rune.
func (o *OutputConfig) Comma() (rune, error) {
	if o.Delimiter == "" {
		return ',', nil
	}

	r, size := utf8.DecodeRuneInString(o.Delimiter)
	if size != len(o.Delimiter) || r == utf8.RuneError || r == '"' || r == '\r' || r == '\n' {
		return 0, fmt.Errorf("%w: %q", ErrInvalidDelimiter, o.Delimiter)
	}

	return r, nil
}

// MaxUploadBytes returns the upload limit in bytes.
func (s *ServerConfig) MaxUploadBytes() int {
	return s.MaxUploadMb << 20
}

// GetRetryDelay returns the wait before the given attempt. The first attempt is immediate.
func (rp *RetryPolicy) GetRetryDelay(attempt int) time.Duration {
	if attempt <= 1 {
		return 0
	}

	delayMs := float64(rp.InitialDelayMs)
	for i := 2; i < attempt; i++ {
		delayMs *= rp.BackoffMultiplier
	}

	// Cap at max delay
	if int(delayMs) > rp.MaxDelayMs {
		delayMs = float64(rp.MaxDelayMs)
	}

	return time.Duration(int(delayMs)) * time.Millisecond
}

// GetTimeout returns the per-request timeout.
func (rp *RetryPolicy) GetTimeout() time.Duration {
	return time.Duration(rp.TimeoutSec) * time.Second
}

// String returns a string representation of the config.
func (c *Config) String() string {
	return fmt.Sprintf(
		"Config{Columns: %d, Range: %s-%s, Output: %s}",
		len(c.Normalizer.Columns),
		c.Defaults.StartDate,
		c.Defaults.EndDate,
		c.Output.FileName,
	)
}
