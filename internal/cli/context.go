package cli

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/mudamudi/mmdesk/internal/api"
	"github.com/mudamudi/mmdesk/internal/config"
	"github.com/mudamudi/mmdesk/internal/metrics"
	"github.com/mudamudi/mmdesk/internal/output"
	"github.com/mudamudi/mmdesk/internal/permission"
	"github.com/mudamudi/mmdesk/internal/secretstore"
	"github.com/mudamudi/mmdesk/internal/session"
	"github.com/mudamudi/mmdesk/internal/version"
)

// callsPerCommand bounds the API round trips one command makes: login plus
// permissions, or verify plus refresh, with one spare.
const callsPerCommand = 3

// CommandContext holds dependencies for CLI commands.
type CommandContext struct {
	Config    *config.Config
	Logger    *config.Logger
	Formatter *output.Formatter
	Client    *api.Client
	Manager   *session.Manager
	Resolver  *permission.Resolver
}

// NewCommandContext wires the secret store, token cache, API client, session
// manager and resolver from configuration. Building it restores any cached
// session; it does not touch the network.
func NewCommandContext(c *config.Config, l *config.Logger, f *output.Formatter) (*CommandContext, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}

	store, err := secretstore.Open(c.KeyFilePath())
	if err != nil {
		return nil, err
	}

	cache := session.NewTokenCache(c.CacheFilePath(), store,
		session.WithMaxAge(c.SessionMaxAge()),
		session.WithCacheLogger(l),
		session.WithCacheMetrics(metrics.Global),
	)

	limits := make(map[metrics.Endpoint]config.RateLimit, len(metrics.Endpoints()))
	for _, e := range metrics.Endpoints() {
		limits[e] = c.API.LimitFor(e)
	}

	client, err := api.NewClient(c.API.BaseURL, &api.ClientOptions{
		Timeout:    c.APITimeout(),
		RateLimits: limits,
		Metrics:    metrics.Global,
		Logger:     l,
		UserAgent:  version.UserAgent(),
	})
	if err != nil {
		return nil, err
	}

	manager := session.NewManager(client, cache,
		session.WithCatalog(session.Catalog{Desa: c.Catalog.Desa, Kelompok: c.Catalog.Kelompok}),
		session.WithDevice(session.Device{Type: c.API.DeviceType, Info: c.API.DeviceInfo}),
		session.WithLogger(l),
	)

	return &CommandContext{
		Config:    c,
		Logger:    l,
		Formatter: f,
		Client:    client,
		Manager:   manager,
		Resolver:  permission.NewResolver(manager),
	}, nil
}

// commandContext builds a CommandContext from the globals set up by the root
// command.
func commandContext() (*CommandContext, error) {
	return NewCommandContext(cfg, logger, formatter)
}

// Output returns a formatter in the configured format that writes to cmd's
// output stream.
func (c *CommandContext) Output(cmd *cobra.Command) *output.Formatter {
	return output.NewFormatter(c.Formatter.Format(), cmd.OutOrStdout())
}

// Messenger returns a status-line printer for cmd, plain unless color is
// enabled and stdout is a terminal.
func (c *CommandContext) Messenger(cmd *cobra.Command) *output.Messenger {
	return output.NewMessenger(cmd.OutOrStdout(), cmd.ErrOrStderr(), plainOutput(c.Config))
}

// RequestContext returns a context bounding every API call a command makes.
func (c *CommandContext) RequestContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return contextWithTimeout(cmd, callsPerCommand*c.Config.APITimeout())
}

// contextWithTimeout returns a timeout context rooted in the command context.
func contextWithTimeout(cmd *cobra.Command, d time.Duration) (context.Context, context.CancelFunc) {
	base := cmd.Context()
	if base == nil {
		base = context.Background()
	}
	return context.WithTimeout(base, d)
}
