// Package config loads the JSON settings shared by the preprocess and server
// commands.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"roadnet/pkg/bitmap"
	"roadnet/pkg/geo"
	"roadnet/pkg/network"
	"roadnet/pkg/smooth"
)

const maxFileSize = 1 * 1024 * 1024 // 1MB

// Config is the root configuration. Fields omitted from a file keep the
// values from Default.
type Config struct {
	MapPath      string        `json:"map"`
	SensorsPath  string        `json:"sensors"`
	CachePath    string        `json:"cache"`
	Threshold    uint8         `json:"threshold"`
	Workers      int           `json:"workers"` // <= 0 means one per CPU
	Smoothing    smooth.Params `json:"smoothing"`
	Georef       geo.Georef    `json:"georef"`
	SnapDistance float64       `json:"snap_distance"` // pixels
	Server       Server        `json:"server"`
}

// Server holds HTTP settings.
type Server struct {
	Addr           string `json:"addr"`
	MaxConcurrent  int    `json:"max_concurrent"` // <= 0 means 2 per CPU
	RequestTimeout string `json:"request_timeout"`
	CORSOrigin     string `json:"cors_origin"`
}

// Default returns the settings used when no file is given.
func Default() *Config {
	return &Config{
		MapPath:      "data/map.bmp",
		SensorsPath:  "data/sensors.csv",
		CachePath:    "network.bin",
		Threshold:    bitmap.DefaultThreshold,
		Smoothing:    smooth.DefaultParams(),
		SnapDistance: 10,
		Server: Server{
			Addr:           ":8080",
			RequestTimeout: "5s",
		},
	}
}

// Load reads a Config from a JSON file on top of Default. The file must have
// a .json extension and be under 1MB.
func Load(path string) (*Config, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Default()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// LoadOrDefault loads path, or returns Default when path is empty.
func LoadOrDefault(path string) (*Config, error) {
	if path == "" {
		return Default(), nil
	}
	return Load(path)
}

// Validate checks that the configuration values are usable.
func (c *Config) Validate() error {
	if err := c.Smoothing.Validate(); err != nil {
		return err
	}
	if err := c.Georef.Validate(); err != nil {
		return err
	}
	if c.Threshold == 0 {
		return fmt.Errorf("threshold must be positive, got 0")
	}
	if c.SnapDistance <= 0 {
		return fmt.Errorf("snap_distance must be positive, got %g", c.SnapDistance)
	}
	if c.Server.RequestTimeout != "" {
		if _, err := time.ParseDuration(c.Server.RequestTimeout); err != nil {
			return fmt.Errorf("invalid request_timeout '%s': %w", c.Server.RequestTimeout, err)
		}
	}
	return nil
}

// Options returns the network build options.
func (c *Config) Options() network.Options {
	return network.Options{
		Workers:   c.Workers,
		Threshold: c.Threshold,
		Params:    c.Smoothing,
	}
}

// Timeout returns the per-request timeout, 5s when unset.
func (c *Config) Timeout() time.Duration {
	d, err := time.ParseDuration(c.Server.RequestTimeout)
	if err != nil || d <= 0 {
		return 5 * time.Second
	}
	return d
}
