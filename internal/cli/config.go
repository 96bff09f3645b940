package cli

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mudamudi/mmdesk/internal/config"
	"github.com/mudamudi/mmdesk/internal/metrics"
	"github.com/mudamudi/mmdesk/internal/output"
	deskerr "github.com/mudamudi/mmdesk/pkg/errors"
)

// configCmd is the parent command for configuration operations.
//
//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
	Long:  `View and modify mmdesk configuration settings.`,
}

// configInitCmd initializes the configuration.
//
//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration",
	Long: `Create a default configuration file at ~/.mmdesk/config.yaml.

If a configuration file already exists, this command will not overwrite it
unless --force is specified.`,
	Example: `  mmdesk config init
  mmdesk config init --force`,
	RunE: runConfigInit,
}

// configShowCmd shows the current configuration.
//
//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	Long:  `Display the effective configuration, after environment overrides.`,
	Example: `  mmdesk config show
  mmdesk config show -o json`,
	RunE: runConfigShow,
}

// configGetCmd gets a specific configuration value.
//
//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var configGetCmd = &cobra.Command{
	Use:   "get <path>",
	Short: "Get a configuration value",
	Long: `Get a specific configuration value by its path.

The path uses dot notation to navigate the configuration tree. Catalog lists
are printed comma separated. api.limits.<endpoint> prints the limit in force
for login, verify, refresh or permissions as <per_second>/<burst>.`,
	Example: `  mmdesk config get api.base_url
  mmdesk config get api.limits.login
  mmdesk config get catalog.desa`,
	Args: cobra.ExactArgs(1),
	RunE: runConfigGet,
}

// configSetCmd sets a configuration value.
//
//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var configSetCmd = &cobra.Command{
	Use:   "set <path> <value>",
	Short: "Set a configuration value",
	Long: `Set a specific configuration value by its path.

The path uses dot notation to navigate the configuration tree.
The configuration file will be updated immediately. Catalog lists take a
comma separated value. api.limits.<endpoint> takes <per_second>/<burst>, or
"default" to follow api.rate_per_second and api.rate_burst again.`,
	Example: `  mmdesk config set api.base_url https://members.example.org
  mmdesk config set api.limits.refresh 0.5/2
  mmdesk config set catalog.kelompok "Kelompok 1,Kelompok 2"`,
	Args: cobra.ExactArgs(2),
	RunE: runConfigSet,
}

//nolint:gochecknoglobals // Cobra CLI pattern requires package-level flag variables
var configForce bool

//nolint:gochecknoinits // Cobra CLI pattern requires init for command registration
func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configGetCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.GroupID = "config"

	configInitCmd.Flags().BoolVar(&configForce, "force", false, "overwrite existing configuration")
}

func runConfigInit(cmd *cobra.Command, _ []string) error {
	configPath := config.Path(cfg.Home)

	if _, err := os.Stat(configPath); err == nil && !configForce {
		return deskerr.WithSuggestion(
			deskerr.ErrGeneral,
			fmt.Sprintf("configuration already exists at %s. Use --force to overwrite.", configPath),
		)
	}

	if err := os.MkdirAll(filepath.Dir(configPath), 0o750); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	defaultCfg := config.Defaults()
	defaultCfg.Home = cfg.Home

	if err := config.Save(defaultCfg, configPath); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	w := cmd.OutOrStdout()
	out(w, "Configuration initialized at %s\n", configPath)
	outln(w)
	outln(w, "Edit this file to configure:")
	outln(w, "  - api.base_url: Membership service address")
	outln(w, "  - api.limits: Per-endpoint request rates (login, verify, refresh, permissions)")
	outln(w, "  - session.max_age_hours: How long a saved session is kept")
	outln(w, "  - catalog.desa / catalog.kelompok: Area lists shown to super admins")
	outln(w, "  - output.default_format: Output format (text/json)")
	outln(w, "  - logging.level: Log level (off/error/debug)")

	return nil
}

func runConfigShow(cmd *cobra.Command, _ []string) error {
	w := cmd.OutOrStdout()
	if formatter.Format() == output.FormatJSON {
		return output.WriteJSON(w, cfg)
	}
	return displayConfigText(w, cfg)
}

func runConfigGet(cmd *cobra.Command, args []string) error {
	path := args[0]

	value, err := getConfigValue(cfg, path)
	if err != nil {
		return deskerr.WithSuggestion(
			deskerr.ErrNotFound,
			fmt.Sprintf("configuration path '%s' not found", path),
		)
	}

	outln(cmd.OutOrStdout(), value)
	return nil
}

func runConfigSet(cmd *cobra.Command, args []string) error {
	path := args[0]
	value := args[1]

	if _, err := getConfigValue(cfg, path); err != nil {
		return deskerr.WithSuggestion(
			deskerr.ErrNotFound,
			fmt.Sprintf("configuration path '%s' not found", path),
		)
	}

	configPath := config.Path(cfg.Home)
	currentCfg, err := config.Load(configPath)
	if err != nil {
		currentCfg = config.Defaults()
		currentCfg.Home = cfg.Home
	}

	if err := setConfigValue(currentCfg, path, value); err != nil {
		return err
	}
	if err := currentCfg.Validate(); err != nil {
		return err
	}

	if err := config.Save(currentCfg, configPath); err != nil {
		return fmt.Errorf("saving config: %w", err)
	}

	out(cmd.OutOrStdout(), "Set %s = %s\n", path, value)
	return nil
}

func unknownKey(section, key string) error {
	return deskerr.WithDetails(deskerr.ErrUnknownConfigKey, map[string]string{"section": section, "key": key})
}

func invalidValue(value, valid string) error {
	return deskerr.WithDetails(deskerr.ErrInvalidFormat, map[string]string{"value": value, "valid": valid})
}

// getConfigValue retrieves a value from the config using dot notation.
func getConfigValue(c *config.Config, path string) (string, error) {
	parts := strings.Split(path, ".")

	switch len(parts) {
	case 1:
		if parts[0] == "home" {
			return c.Home, nil
		}
		return "", deskerr.WithDetails(deskerr.ErrUnknownConfigKey, map[string]string{"key": parts[0]})
	case 2:
		switch parts[0] {
		case "api":
			return getAPIValue(c, parts[1])
		case "session":
			return getSessionValue(c, parts[1])
		case "catalog":
			return getCatalogValue(c, parts[1])
		case "output":
			return getOutputValue(c, parts[1])
		case "logging":
			return getLoggingValue(c, parts[1])
		default:
			return "", deskerr.WithDetails(deskerr.ErrUnknownConfigKey, map[string]string{"section": parts[0]})
		}
	case 3:
		if parts[0] == "api" && parts[1] == "limits" {
			e, err := limitEndpoint(parts[2])
			if err != nil {
				return "", err
			}
			return c.API.LimitFor(e).String(), nil
		}
		return "", deskerr.WithDetails(deskerr.ErrUnknownConfigKey, map[string]string{"path": path})
	default:
		return "", deskerr.WithDetails(deskerr.ErrUnknownConfigKey, map[string]string{"path": path})
	}
}

func getAPIValue(c *config.Config, key string) (string, error) {
	switch key {
	case "base_url":
		return c.API.BaseURL, nil
	case "timeout_seconds":
		return strconv.Itoa(c.API.TimeoutSeconds), nil
	case "device_type":
		return c.API.DeviceType, nil
	case "device_info":
		return c.API.DeviceInfo, nil
	case "rate_per_second":
		return strconv.FormatFloat(c.API.RatePerSecond, 'f', -1, 64), nil
	case "rate_burst":
		return strconv.Itoa(c.API.RateBurst), nil
	default:
		return "", unknownKey("api", key)
	}
}

func getSessionValue(c *config.Config, key string) (string, error) {
	switch key {
	case "cache_file":
		return c.Session.CacheFile, nil
	case "key_file":
		return c.Session.KeyFile, nil
	case "max_age_hours":
		return strconv.Itoa(c.Session.MaxAgeHours), nil
	default:
		return "", unknownKey("session", key)
	}
}

func getCatalogValue(c *config.Config, key string) (string, error) {
	switch key {
	case "desa":
		return strings.Join(c.Catalog.Desa, ","), nil
	case "kelompok":
		return strings.Join(c.Catalog.Kelompok, ","), nil
	default:
		return "", unknownKey("catalog", key)
	}
}

func getOutputValue(c *config.Config, key string) (string, error) {
	switch key {
	case "default_format":
		return c.Output.DefaultFormat, nil
	case "verbose":
		return strconv.FormatBool(c.Output.Verbose), nil
	case "color":
		return c.Output.Color, nil
	default:
		return "", unknownKey("output", key)
	}
}

func getLoggingValue(c *config.Config, key string) (string, error) {
	switch key {
	case "level":
		return c.Logging.Level, nil
	case "file":
		return c.Logging.File, nil
	default:
		return "", unknownKey("logging", key)
	}
}

// setConfigValue sets a value in the config using dot notation.
func setConfigValue(c *config.Config, path, value string) error {
	parts := strings.Split(path, ".")

	switch len(parts) {
	case 1:
		if parts[0] == "home" {
			c.Home = value
			return nil
		}
		return deskerr.WithDetails(deskerr.ErrUnknownConfigKey, map[string]string{"key": parts[0]})
	case 2:
		switch parts[0] {
		case "api":
			return setAPIValue(c, parts[1], value)
		case "session":
			return setSessionValue(c, parts[1], value)
		case "catalog":
			return setCatalogValue(c, parts[1], value)
		case "output":
			return setOutputValue(c, parts[1], value)
		case "logging":
			return setLoggingValue(c, parts[1], value)
		default:
			return deskerr.WithDetails(deskerr.ErrUnknownConfigKey, map[string]string{"section": parts[0]})
		}
	case 3:
		if parts[0] == "api" && parts[1] == "limits" {
			return setEndpointLimit(c, parts[2], value)
		}
		return deskerr.WithDetails(deskerr.ErrUnknownConfigKey, map[string]string{"path": path})
	default:
		return deskerr.WithDetails(deskerr.ErrUnknownConfigKey, map[string]string{"path": path})
	}
}

func setAPIValue(c *config.Config, key, value string) error {
	switch key {
	case "base_url":
		c.API.BaseURL = config.CleanURL(value)
	case "timeout_seconds":
		n, err := positiveInt(value)
		if err != nil {
			return err
		}
		c.API.TimeoutSeconds = n
	case "device_type":
		c.API.DeviceType = value
	case "device_info":
		c.API.DeviceInfo = value
	case "rate_per_second":
		f, err := strconv.ParseFloat(value, 64)
		if err != nil || f <= 0 {
			return invalidValue(value, "a positive number")
		}
		c.API.RatePerSecond = f
	case "rate_burst":
		n, err := positiveInt(value)
		if err != nil {
			return err
		}
		c.API.RateBurst = n
	default:
		return unknownKey("api", key)
	}
	return nil
}

func limitEndpoint(name string) (metrics.Endpoint, error) {
	e, ok := metrics.ParseEndpoint(name)
	if !ok {
		return "", unknownKey("api.limits", name)
	}
	return e, nil
}

// setEndpointLimit stores "<per_second>/<burst>" for one endpoint. "default"
// drops the override so the endpoint follows api.rate_per_second again.
func setEndpointLimit(c *config.Config, name, value string) error {
	e, err := limitEndpoint(name)
	if err != nil {
		return err
	}
	if strings.EqualFold(strings.TrimSpace(value), "default") {
		delete(c.API.Limits, string(e))
		return nil
	}
	r, err := config.ParseRateLimit(value)
	if err != nil {
		return err
	}
	if c.API.Limits == nil {
		c.API.Limits = make(map[string]config.RateLimit)
	}
	c.API.Limits[string(e)] = r
	return nil
}

func setSessionValue(c *config.Config, key, value string) error {
	switch key {
	case "cache_file":
		c.Session.CacheFile = value
	case "key_file":
		c.Session.KeyFile = value
	case "max_age_hours":
		n, err := positiveInt(value)
		if err != nil {
			return err
		}
		c.Session.MaxAgeHours = n
	default:
		return unknownKey("session", key)
	}
	return nil
}

func setCatalogValue(c *config.Config, key, value string) error {
	var items []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}

	switch key {
	case "desa":
		c.Catalog.Desa = items
	case "kelompok":
		c.Catalog.Kelompok = items
	default:
		return unknownKey("catalog", key)
	}
	return nil
}

func setOutputValue(c *config.Config, key, value string) error {
	switch key {
	case "default_format":
		if value != "text" && value != "json" && value != "auto" {
			return invalidValue(value, "text, json, or auto")
		}
		c.Output.DefaultFormat = value
	case "verbose":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return invalidValue(value, "true or false")
		}
		c.Output.Verbose = b
	case "color":
		if value != "auto" && value != "always" && value != "never" {
			return invalidValue(value, "auto, always, or never")
		}
		c.Output.Color = value
	default:
		return unknownKey("output", key)
	}
	return nil
}

func setLoggingValue(c *config.Config, key, value string) error {
	switch key {
	case "level":
		if value != "off" && value != "error" && value != "debug" {
			return invalidValue(value, "off, error, or debug")
		}
		c.Logging.Level = value
	case "file":
		c.Logging.File = value
	default:
		return unknownKey("logging", key)
	}
	return nil
}

func positiveInt(value string) (int, error) {
	n, err := strconv.Atoi(value)
	if err != nil || n <= 0 {
		return 0, invalidValue(value, "a positive integer")
	}
	return n, nil
}

// displayConfigText shows the config in text format.
func displayConfigText(w io.Writer, c *config.Config) error {
	outln(w, "Configuration:")
	outln(w)
	out(w, "  Home: %s\n", c.Home)
	outln(w)
	outln(w, "  API:")
	out(w, "    base_url: %s\n", c.API.BaseURL)
	out(w, "    timeout_seconds: %d\n", c.API.TimeoutSeconds)
	out(w, "    device: %s (%s)\n", c.API.DeviceType, c.API.DeviceInfo)
	out(w, "    rate: %g/s, burst %d\n", c.API.RatePerSecond, c.API.RateBurst)
	for _, e := range metrics.Endpoints() {
		if r, ok := c.API.Limits[string(e)]; ok {
			out(w, "    rate %s: %g/s, burst %d\n", e, r.PerSecond, r.Burst)
		}
	}
	outln(w)
	outln(w, "  Session:")
	out(w, "    cache_file: %s\n", c.CacheFilePath())
	out(w, "    key_file: %s\n", c.KeyFilePath())
	out(w, "    max_age_hours: %d\n", c.Session.MaxAgeHours)
	outln(w)
	outln(w, "  Catalog:")
	out(w, "    desa: %d entries\n", len(c.Catalog.Desa))
	out(w, "    kelompok: %d entries\n", len(c.Catalog.Kelompok))
	outln(w)
	outln(w, "  Output:")
	out(w, "    default_format: %s\n", c.Output.DefaultFormat)
	out(w, "    verbose: %t\n", c.Output.Verbose)
	out(w, "    color: %s\n", c.Output.Color)
	outln(w)
	outln(w, "  Logging:")
	out(w, "    level: %s\n", c.Logging.Level)
	logFile := c.LogFilePath()
	if logFile == "" {
		logFile = "(disabled)"
	}
	out(w, "    file: %s\n", logFile)

	return nil
}
