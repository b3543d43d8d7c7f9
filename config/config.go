// Package config loads the client configuration from YAML.
package config

import (
	"os"
	"time"

	"VpsClient/acquire"
	"VpsClient/camera"
	iface "VpsClient/interface"
	"VpsClient/logger"
	"VpsClient/vps"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

const DefaultPath = "config.yaml"

type Accessory struct {
	BaseURL        string `yaml:"base_url"`
	MaxAttempts    int    `yaml:"max_attempts"`
	RetryDelayMs   int    `yaml:"retry_delay_ms"`
	FetchTimeoutMs int    `yaml:"fetch_timeout_ms"`
	StopStream     *bool  `yaml:"stop_stream"`
}

type Image struct {
	LandscapeWidth  int `yaml:"landscape_width"`
	LandscapeHeight int `yaml:"landscape_height"`
	JPEGQuality     int `yaml:"jpeg_quality"`
}

type Config struct {
	AuthURL           string    `yaml:"auth_url"`
	QueryURL          string    `yaml:"query_url"`
	ClientID          string    `yaml:"client_id"`
	ClientSecret      string    `yaml:"client_secret"`
	MapCode           string    `yaml:"map_code"`
	MapSetCode        string    `yaml:"map_set_code"`
	RequestTimeoutSec int       `yaml:"request_timeout_sec"`
	AuthTimeoutSec    int       `yaml:"auth_timeout_sec"`
	Accessory         Accessory `yaml:"accessory"`
	Image             Image     `yaml:"image"`
	APIPort           int       `yaml:"api_port"`
	MetricsPort       int       `yaml:"metrics_port"`
	DevelopmentLog    bool      `yaml:"development_log"`
	LogLevel          string    `yaml:"log_level"`
}

// Load reads and parses path, then fills defaults. It does not validate;
// credentials may be supplied later through the API.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, iface.NewError(iface.KindConfig, "load", errors.Wrap(err, "read config"))
	}
	return Parse(data)
}

func Parse(data []byte) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, iface.NewError(iface.KindConfig, "parse", errors.Wrap(err, "parse config"))
	}
	cfg.ApplyDefaults()
	return cfg, nil
}

// ApplyDefaults replaces zero or invalid values.
func (c *Config) ApplyDefaults() {
	log := logger.Named("config")
	if c.AuthURL == "" {
		c.AuthURL = vps.DefaultAuthURL
	}
	if c.QueryURL == "" {
		c.QueryURL = vps.DefaultQueryURL
	}
	if c.RequestTimeoutSec <= 0 {
		c.RequestTimeoutSec = int(vps.DefaultQueryTimeout / time.Second)
	}
	if c.AuthTimeoutSec <= 0 {
		c.AuthTimeoutSec = int(vps.DefaultAuthTimeout / time.Second)
	}
	if c.Accessory.MaxAttempts <= 0 {
		c.Accessory.MaxAttempts = acquire.DefaultMaxAttempts
	}
	if c.Accessory.RetryDelayMs <= 0 {
		c.Accessory.RetryDelayMs = int(acquire.DefaultDelay / time.Millisecond)
	}
	if c.Accessory.FetchTimeoutMs <= 0 {
		c.Accessory.FetchTimeoutMs = int(acquire.DefaultFetchTimeout / time.Millisecond)
	} else if c.Accessory.FetchTimeoutMs < 3000 || c.Accessory.FetchTimeoutMs > 5000 {
		log.Warn("fetch_timeout_ms outside 3000-5000", zap.Int("fetch_timeout_ms", c.Accessory.FetchTimeoutMs))
	}
	if c.Accessory.StopStream == nil {
		on := true
		c.Accessory.StopStream = &on
	}
	if c.Image.LandscapeWidth <= 0 || c.Image.LandscapeHeight <= 0 {
		c.Image.LandscapeWidth = camera.DefaultLandscape.Width
		c.Image.LandscapeHeight = camera.DefaultLandscape.Height
	}
	if c.Image.JPEGQuality <= 0 || c.Image.JPEGQuality > 100 {
		if c.Image.JPEGQuality != 0 {
			log.Warn("invalid jpeg_quality, using default", zap.Int("jpeg_quality", c.Image.JPEGQuality))
		}
		c.Image.JPEGQuality = camera.DefaultJPEGQuality
	}
	if c.APIPort <= 0 {
		c.APIPort = 8080
	}
	if c.MetricsPort <= 0 {
		c.MetricsPort = 9090
	}
}

// Validate collects every problem into one ConfigError.
func (c *Config) Validate() error {
	var err error
	if c.ClientID == "" {
		err = multierr.Append(err, errors.New("client_id is required"))
	}
	if c.ClientSecret == "" {
		err = multierr.Append(err, errors.New("client_secret is required"))
	}
	if c.MapCode == "" && c.MapSetCode == "" {
		err = multierr.Append(err, errors.New("map_code or map_set_code is required"))
	}
	if c.APIPort == c.MetricsPort {
		err = multierr.Append(err, errors.Errorf("api_port and metrics_port are both %d", c.APIPort))
	}
	if err != nil {
		return iface.NewError(iface.KindConfig, "validate", err)
	}
	return nil
}

func (c *Config) Credentials() iface.Credentials {
	return iface.Credentials{ClientID: c.ClientID, ClientSecret: c.ClientSecret}
}

// MapSelection prefers the map code and falls back to the map set code.
func (c *Config) MapSelection() iface.MapSelection {
	if c.MapCode != "" {
		return iface.MapSelection{MapCode: c.MapCode}
	}
	return iface.MapSelection{MapSetCode: c.MapSetCode}
}

func (c *Config) VPSOptions() vps.Options {
	return vps.Options{
		AuthURL:      c.AuthURL,
		QueryURL:     c.QueryURL,
		AuthTimeout:  time.Duration(c.AuthTimeoutSec) * time.Second,
		QueryTimeout: time.Duration(c.RequestTimeoutSec) * time.Second,
	}
}

func (c *Config) RetryDelay() time.Duration {
	return time.Duration(c.Accessory.RetryDelayMs) * time.Millisecond
}

func (c *Config) FetchTimeout() time.Duration {
	return time.Duration(c.Accessory.FetchTimeoutMs) * time.Millisecond
}

func (c *Config) LandscapeSize() camera.Size {
	return camera.Size{Width: c.Image.LandscapeWidth, Height: c.Image.LandscapeHeight}
}
