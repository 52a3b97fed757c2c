// Package config loads the board tracker configuration from YAML.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Environment variables consulted by FromEnv.
const (
	EnvConfigPath = "BOARD_TRACKER_CONFIG"
	EnvLogLevel   = "BOARD_TRACKER_LOG_LEVEL"
	EnvLogFormat  = "BOARD_TRACKER_LOG_FORMAT"
)

// Log formats accepted by LogFormat.
const (
	LogFormatJSON    = "json"
	LogFormatConsole = "console"
	LogFormatNone    = "none"
)

// Config holds runtime configuration for the pipeline, detectors and server.
type Config struct {
	LogLevel  string `yaml:"logLevel"`
	LogFormat string `yaml:"logFormat"`

	// Board acquisition
	GridSize          int      `yaml:"gridSize"`
	ClassifyThreshold float64  `yaml:"classifyThreshold"`
	ClassifyTopN      int      `yaml:"classifyTopN"`
	BoardKeywords     []string `yaml:"boardKeywords"`
	MinBoardFraction  float64  `yaml:"minBoardFraction"`

	// Orchestration
	MaxInFlight int           `yaml:"maxInFlight"`
	EventBuffer int           `yaml:"eventBuffer"`
	CallTimeout time.Duration `yaml:"callTimeout"`
	SettleWait  time.Duration `yaml:"settleWait"`
	FrameCache  int           `yaml:"frameCache"`

	// Region scanning
	MinAreaFraction float64 `yaml:"minAreaFraction"`
	Rectangularity  float64 `yaml:"rectangularity"`
	TileColor       string  `yaml:"tileColor"`
	TileColorWeight float64 `yaml:"tileColorWeight"`

	// Tracking
	TrackMargin float64 `yaml:"trackMargin"`
	MinOverlap  float64 `yaml:"minOverlap"`

	// Optional subsystems; empty disables.
	RecordPath     string `yaml:"recordPath"`
	MetricsAddr    string `yaml:"metricsAddr"`
	TessdataPrefix string `yaml:"tessdataPrefix"`
	OCRLanguage    string `yaml:"ocrLanguage"`
}

// Default returns a Config populated with standard defaults.
func Default() *Config {
	return &Config{
		LogLevel:          "info",
		LogFormat:         LogFormatJSON,
		GridSize:          15,
		ClassifyThreshold: 0.2,
		ClassifyTopN:      5,
		BoardKeywords:     []string{"crossword"},
		MinBoardFraction:  0.2,
		MaxInFlight:       1,
		EventBuffer:       64,
		CallTimeout:       2 * time.Second,
		SettleWait:        500 * time.Millisecond,
		FrameCache:        4,
		MinAreaFraction:   0.15,
		Rectangularity:    0.6,
		TileColor:         "#E8D3A9",
		TileColorWeight:   0.25,
		TrackMargin:       0.25,
		MinOverlap:        0.3,
		OCRLanguage:       "eng",
	}
}

// Validate clamps out-of-range values back to their defaults.
func (c *Config) Validate() error {
	d := Default()
	if c.GridSize < 1 {
		c.GridSize = d.GridSize
	}
	if c.ClassifyThreshold < 0 || c.ClassifyThreshold >= 1 {
		c.ClassifyThreshold = d.ClassifyThreshold
	}
	if c.ClassifyTopN < 1 {
		c.ClassifyTopN = d.ClassifyTopN
	}
	if len(c.BoardKeywords) == 0 {
		c.BoardKeywords = d.BoardKeywords
	}
	if c.MinBoardFraction <= 0 || c.MinBoardFraction > 1 {
		c.MinBoardFraction = d.MinBoardFraction
	}
	if c.MaxInFlight < 1 {
		c.MaxInFlight = d.MaxInFlight
	}
	if c.EventBuffer < 1 {
		c.EventBuffer = d.EventBuffer
	}
	if c.CallTimeout <= 0 {
		c.CallTimeout = d.CallTimeout
	}
	if c.SettleWait < 0 {
		c.SettleWait = d.SettleWait
	}
	if c.FrameCache < 1 {
		c.FrameCache = d.FrameCache
	}
	switch c.LogFormat = strings.ToLower(strings.TrimSpace(c.LogFormat)); c.LogFormat {
	case LogFormatJSON, LogFormatConsole, LogFormatNone:
	default:
		c.LogFormat = d.LogFormat
	}
	if c.MinAreaFraction <= 0 || c.MinAreaFraction > 1 {
		c.MinAreaFraction = d.MinAreaFraction
	}
	if c.Rectangularity < 0 || c.Rectangularity > 1 {
		c.Rectangularity = d.Rectangularity
	}
	if c.TileColorWeight < 0 || c.TileColorWeight > 1 {
		c.TileColorWeight = d.TileColorWeight
	}
	if c.TrackMargin < 0 {
		c.TrackMargin = d.TrackMargin
	}
	if c.MinOverlap <= 0 || c.MinOverlap > 1 {
		c.MinOverlap = d.MinOverlap
	}
	if c.OCRLanguage == "" {
		c.OCRLanguage = d.OCRLanguage
	}
	if c.TileColor != "" && !strings.HasPrefix(c.TileColor, "#") {
		return fmt.Errorf("tileColor must be a #RRGGBB hex string, got %q", c.TileColor)
	}
	return nil
}

// Load reads configuration from a YAML file. A missing file yields the
// defaults; fields omitted from the file keep their default values.
func Load(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// FromEnv loads the file named by BOARD_TRACKER_CONFIG (default
// "config.yaml") and applies BOARD_TRACKER_LOG_LEVEL and
// BOARD_TRACKER_LOG_FORMAT on top.
func FromEnv() (*Config, error) {
	path := os.Getenv(EnvConfigPath)
	if path == "" {
		path = "config.yaml"
	}
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	if lvl := os.Getenv(EnvLogLevel); lvl != "" {
		cfg.LogLevel = lvl
	}
	if format := os.Getenv(EnvLogFormat); format != "" {
		cfg.LogFormat = format
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}
