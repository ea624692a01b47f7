package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/August26/nidsclient-go/internal/model"
	"github.com/August26/nidsclient-go/internal/transport"
)

// Config holds nidsclient configuration.
type Config struct {
	Server       ServerConfig       `yaml:"server"`
	Proxy        ProxyConfig        `yaml:"proxy"`
	Surveillance SurveillanceConfig `yaml:"surveillance"`
	Output       OutputConfig       `yaml:"output"`
	Logging      LoggingConfig      `yaml:"logging"`
	Metrics      MetricsConfig      `yaml:"metrics"`
}

type ServerConfig struct {
	BaseURL          string        `yaml:"base_url"`           // e.g. "http://localhost:5000"
	Timeout          time.Duration `yaml:"timeout"`            // per batch submission, e.g. "15m"
	MaxResponseBytes int64         `yaml:"max_response_bytes"` // cap on a result body
}

type ProxyConfig struct {
	URL string `yaml:"url"` // "", http://, https:// or socks5://
}

type SurveillanceConfig struct {
	ReconnectAttempts int           `yaml:"reconnect_attempts"`
	ReconnectDelay    time.Duration `yaml:"reconnect_delay"`
}

type OutputConfig struct {
	Dir    string `yaml:"dir"`    // where charts and reports go
	Format string `yaml:"format"` // json | csv
}

type LoggingConfig struct {
	Verbose bool   `yaml:"verbose"`
	Format  string `yaml:"format"` // json | text
}

type MetricsConfig struct {
	Addr string `yaml:"addr"` // e.g. ":9090"; empty disables the endpoint
}

// Load reads configuration from a YAML file.
// If the file doesn't exist, it returns a default config and no error.
func Load(path string) (*Config, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, err
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	applyDefaults(cfg)
	return cfg, nil
}

// Default is the configuration used when no file is given.
func Default() *Config {
	policy := model.DefaultReconnectPolicy()
	return &Config{
		Server: ServerConfig{
			BaseURL:          "http://localhost:5000",
			Timeout:          900 * time.Second,
			MaxResponseBytes: 64 << 20,
		},
		Surveillance: SurveillanceConfig{
			ReconnectAttempts: policy.Attempts,
			ReconnectDelay:    policy.Delay,
		},
		Output: OutputConfig{
			Dir:    ".",
			Format: "json",
		},
		Logging: LoggingConfig{
			Format: "json",
		},
	}
}

func applyDefaults(cfg *Config) {
	def := Default()
	if cfg.Server.BaseURL == "" {
		cfg.Server.BaseURL = def.Server.BaseURL
	}
	if cfg.Server.Timeout <= 0 {
		cfg.Server.Timeout = def.Server.Timeout
	}
	if cfg.Server.MaxResponseBytes <= 0 {
		cfg.Server.MaxResponseBytes = def.Server.MaxResponseBytes
	}
	if cfg.Surveillance.ReconnectDelay <= 0 {
		cfg.Surveillance.ReconnectDelay = def.Surveillance.ReconnectDelay
	}
	if cfg.Output.Dir == "" {
		cfg.Output.Dir = def.Output.Dir
	}
	if cfg.Output.Format == "" {
		cfg.Output.Format = def.Output.Format
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = def.Logging.Format
	}
}

// Validate reports every problem found, joined.
func (c *Config) Validate() error {
	var errs []error

	u, err := url.Parse(c.Server.BaseURL)
	switch {
	case err != nil:
		errs = append(errs, fmt.Errorf("server.base_url: %w", err))
	case u.Scheme != "http" && u.Scheme != "https":
		errs = append(errs, fmt.Errorf("server.base_url: scheme must be http or https, got %q", u.Scheme))
	case u.Host == "":
		errs = append(errs, errors.New("server.base_url: missing host"))
	}

	if c.Proxy.URL != "" {
		if _, err := transport.ParseProxyURL(c.Proxy.URL); err != nil {
			errs = append(errs, fmt.Errorf("proxy.url: %w", err))
		}
	}
	if c.Surveillance.ReconnectAttempts < 0 {
		errs = append(errs, errors.New("surveillance.reconnect_attempts: must be >= 0"))
	}
	switch c.Output.Format {
	case "json", "csv":
	default:
		errs = append(errs, fmt.Errorf("output.format: must be json or csv, got %q", c.Output.Format))
	}
	switch c.Logging.Format {
	case "json", "text":
	default:
		errs = append(errs, fmt.Errorf("logging.format: must be json or text, got %q", c.Logging.Format))
	}
	return errors.Join(errs...)
}

// ProxyConfig converts the proxy section for the transport layer.
func (c *Config) ProxyConfig() model.ProxyConfig {
	return model.ProxyConfig{URL: c.Proxy.URL}
}

// ReconnectPolicy converts the surveillance section.
func (c *Config) ReconnectPolicy() model.ReconnectPolicy {
	return model.ReconnectPolicy{
		Attempts: c.Surveillance.ReconnectAttempts,
		Delay:    c.Surveillance.ReconnectDelay,
	}
}
