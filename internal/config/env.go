package config

import (
	"os"
	"strconv"
	"strings"
)

// Environment variable names.
const (
	EnvHome          = "MMDESK_HOME"
	EnvAPIURL        = "MMDESK_API_URL"
	EnvOutputFormat  = "MMDESK_OUTPUT_FORMAT"
	EnvVerbose       = "MMDESK_VERBOSE"
	EnvLogLevel      = "MMDESK_LOG_LEVEL"
	EnvNoColor       = "NO_COLOR"
	EnvSessionMaxAge = "MMDESK_SESSION_MAX_AGE_HOURS"
)

// ApplyEnvironment applies environment variable overrides to the configuration.
func ApplyEnvironment(cfg *Config) {
	if v := os.Getenv(EnvHome); v != "" {
		cfg.Home = v
	}

	if v := os.Getenv(EnvAPIURL); v != "" {
		cfg.API.BaseURL = CleanURL(v)
	}

	if v := os.Getenv(EnvOutputFormat); v != "" {
		cfg.Output.DefaultFormat = strings.ToLower(v)
	}

	if v := os.Getenv(EnvVerbose); v != "" {
		cfg.Output.Verbose = parseBool(v)
	}

	if v := os.Getenv(EnvLogLevel); v != "" {
		cfg.Logging.Level = strings.ToLower(v)
	}

	// NO_COLOR disables colored output
	if _, ok := os.LookupEnv(EnvNoColor); ok {
		cfg.Output.Color = "never"
	}

	if v := os.Getenv(EnvSessionMaxAge); v != "" {
		if hours, err := strconv.Atoi(v); err == nil && hours > 0 {
			cfg.Session.MaxAgeHours = hours
		}
	}
}

// parseBool parses a boolean string value.
func parseBool(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "1" || s == "true" || s == "yes" || s == "on" {
		return true
	}
	b, _ := strconv.ParseBool(s)
	return b
}

// CleanURL trims whitespace, control characters and trailing slashes from a
// user-supplied base URL.
func CleanURL(raw string) string {
	cleaned := strings.Map(func(r rune) rune {
		if r < 0x20 || r == 0x7f || r == ' ' {
			return -1
		}
		return r
	}, strings.TrimSpace(raw))
	return strings.TrimRight(cleaned, "/")
}
