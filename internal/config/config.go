// Package config provides configuration management for mmdesk.
package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/mudamudi/mmdesk/internal/metrics"
	deskerr "github.com/mudamudi/mmdesk/pkg/errors"
)

// Config represents the application configuration.
type Config struct {
	Version int           `yaml:"version" json:"version"`
	Home    string        `yaml:"home" json:"home"`
	API     APIConfig     `yaml:"api" json:"api"`
	Session SessionConfig `yaml:"session" json:"session"`
	Catalog CatalogConfig `yaml:"catalog" json:"catalog"`
	Output  OutputConfig  `yaml:"output" json:"output"`
	Logging LoggingConfig `yaml:"logging" json:"logging"`
}

// APIConfig defines how the remote membership API is reached.
type APIConfig struct {
	BaseURL        string  `yaml:"base_url" json:"base_url"`
	TimeoutSeconds int     `yaml:"timeout_seconds" json:"timeout_seconds"`
	DeviceType     string  `yaml:"device_type" json:"device_type"`
	DeviceInfo     string  `yaml:"device_info" json:"device_info"`
	RatePerSecond  float64 `yaml:"rate_per_second" json:"rate_per_second"`
	RateBurst      int     `yaml:"rate_burst" json:"rate_burst"`

	// Limits overrides RatePerSecond and RateBurst for single endpoints,
	// keyed by endpoint name.
	Limits map[string]RateLimit `yaml:"limits" json:"limits"`
}

// RateLimit is a token bucket refilled at PerSecond holding at most Burst.
type RateLimit struct {
	PerSecond float64 `yaml:"per_second" json:"per_second"`
	Burst     int     `yaml:"burst" json:"burst"`
}

// String renders the limit the way config get prints and config set reads it.
func (r RateLimit) String() string {
	return fmt.Sprintf("%g/%d", r.PerSecond, r.Burst)
}

func (r RateLimit) valid() bool {
	return r.PerSecond > 0 && r.Burst >= 1
}

// ParseRateLimit reads "<per_second>/<burst>", e.g. "0.5/2".
func ParseRateLimit(s string) (RateLimit, error) {
	rateStr, burstStr, ok := strings.Cut(strings.TrimSpace(s), "/")
	if !ok {
		return RateLimit{}, deskerr.WithSuggestion(deskerr.ErrInvalidFormat, "expected <per_second>/<burst>, e.g. 0.5/2")
	}
	perSecond, err := strconv.ParseFloat(strings.TrimSpace(rateStr), 64)
	if err != nil {
		return RateLimit{}, deskerr.WithDetails(deskerr.ErrInvalidFormat, map[string]string{"per_second": rateStr})
	}
	burst, err := strconv.Atoi(strings.TrimSpace(burstStr))
	if err != nil {
		return RateLimit{}, deskerr.WithDetails(deskerr.ErrInvalidFormat, map[string]string{"burst": burstStr})
	}
	r := RateLimit{PerSecond: perSecond, Burst: burst}
	if !r.valid() {
		return RateLimit{}, deskerr.WithSuggestion(deskerr.ErrInvalidFormat, "per_second must be positive and burst at least 1")
	}
	return r, nil
}

// LimitFor returns the limit applied to endpoint.
func (a APIConfig) LimitFor(endpoint metrics.Endpoint) RateLimit {
	if r, ok := a.Limits[string(endpoint)]; ok {
		return r
	}
	return RateLimit{PerSecond: a.RatePerSecond, Burst: a.RateBurst}
}

// SessionConfig defines token cache settings.
type SessionConfig struct {
	CacheFile   string `yaml:"cache_file" json:"cache_file"`
	KeyFile     string `yaml:"key_file" json:"key_file"`
	MaxAgeHours int    `yaml:"max_age_hours" json:"max_age_hours"`
}

// CatalogConfig is the reference list of every desa and kelompok. Users with
// unrestricted access see the whole catalog.
type CatalogConfig struct {
	Desa     []string `yaml:"desa" json:"desa"`
	Kelompok []string `yaml:"kelompok" json:"kelompok"`
}

// OutputConfig defines output formatting settings.
type OutputConfig struct {
	DefaultFormat string `yaml:"default_format" json:"default_format"`
	Color         string `yaml:"color" json:"color"`
	Verbose       bool   `yaml:"verbose" json:"verbose"`
}

// LoggingConfig defines logging settings.
type LoggingConfig struct {
	Level string `yaml:"level" json:"level"`
	File  string `yaml:"file" json:"file"`
}

// Load reads configuration from the specified file.
func Load(path string) (*Config, error) {
	// #nosec G304 -- config file path is from validated user input
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := Defaults()

	// A limits map in the file replaces the default one instead of merging.
	var explicit struct {
		API struct {
			Limits map[string]RateLimit `yaml:"limits"`
		} `yaml:"api"`
	}
	if err := yaml.Unmarshal(data, &explicit); err == nil && explicit.API.Limits != nil {
		cfg.API.Limits = nil
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, deskerr.Wrap(deskerr.WithCause(deskerr.ErrConfigInvalid, err), "parsing %s", filepath.Base(path))
	}

	return cfg, nil
}

// Save writes configuration to the specified file.
func Save(cfg *Config, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0o600)
}

// Path returns the default config file path.
func Path(home string) string {
	return filepath.Join(home, "config.yaml")
}

// Validate checks the values a session cannot work without.
func (c *Config) Validate() error {
	u, err := url.Parse(c.API.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return deskerr.WithDetails(deskerr.ErrConfigInvalid, map[string]string{
			"api.base_url": c.API.BaseURL,
		})
	}
	if c.API.TimeoutSeconds <= 0 {
		return deskerr.WithDetails(deskerr.ErrConfigInvalid, map[string]string{
			"api.timeout_seconds": fmt.Sprintf("%d", c.API.TimeoutSeconds),
		})
	}
	if base := (RateLimit{PerSecond: c.API.RatePerSecond, Burst: c.API.RateBurst}); !base.valid() {
		return deskerr.WithDetails(deskerr.ErrConfigInvalid, map[string]string{
			"api.rate_per_second": strconv.FormatFloat(c.API.RatePerSecond, 'f', -1, 64),
			"api.rate_burst":      strconv.Itoa(c.API.RateBurst),
		})
	}
	for name, r := range c.API.Limits {
		if _, ok := metrics.ParseEndpoint(name); !ok || !r.valid() {
			return deskerr.WithDetails(deskerr.ErrConfigInvalid, map[string]string{
				"api.limits." + name: r.String(),
			})
		}
	}
	if c.Session.MaxAgeHours <= 0 {
		return deskerr.WithDetails(deskerr.ErrConfigInvalid, map[string]string{
			"session.max_age_hours": fmt.Sprintf("%d", c.Session.MaxAgeHours),
		})
	}
	return nil
}

// APITimeout returns the per-request timeout.
func (c *Config) APITimeout() time.Duration {
	return time.Duration(c.API.TimeoutSeconds) * time.Second
}

// SessionMaxAge returns how long a persisted session stays valid.
func (c *Config) SessionMaxAge() time.Duration {
	return time.Duration(c.Session.MaxAgeHours) * time.Hour
}

// CacheFilePath returns the token cache location, resolved against Home.
func (c *Config) CacheFilePath() string {
	return c.resolve(c.Session.CacheFile)
}

// KeyFilePath returns the encryption key location, resolved against Home.
func (c *Config) KeyFilePath() string {
	return c.resolve(c.Session.KeyFile)
}

// LogFilePath returns the log file location, resolved against Home. It is
// empty when file logging is disabled.
func (c *Config) LogFilePath() string {
	if c.Logging.File == "" {
		return ""
	}
	return c.resolve(c.Logging.File)
}

// resolve makes a relative path relative to Home and expands "~/".
func (c *Config) resolve(p string) string {
	if expanded, err := ExpandHome(p); err == nil {
		p = expanded
	}
	if filepath.IsAbs(p) {
		return p
	}
	home, err := ExpandHome(c.Home)
	if err != nil {
		home = c.Home
	}
	return filepath.Join(home, p)
}

// GetLoggingLevel returns the configured logging level.
func (c *Config) GetLoggingLevel() string {
	return c.Logging.Level
}

// GetOutputFormat returns the default output format.
func (c *Config) GetOutputFormat() string {
	return c.Output.DefaultFormat
}

// IsVerbose returns true if verbose output is enabled.
func (c *Config) IsVerbose() bool {
	return c.Output.Verbose
}

// DefaultHome returns the default mmdesk home directory.
func DefaultHome() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".mmdesk"
	}
	return filepath.Join(home, ".mmdesk")
}

// ExpandHome replaces a leading "~/" with the user's home directory.
func ExpandHome(p string) (string, error) {
	if !strings.HasPrefix(p, "~/") {
		return p, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, p[2:]), nil
}
