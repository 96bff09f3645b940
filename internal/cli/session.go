package cli

import (
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/mudamudi/mmdesk/internal/output"
	"github.com/mudamudi/mmdesk/internal/session"
	deskerr "github.com/mudamudi/mmdesk/pkg/errors"
)

// loginCmd signs in and stores the session.
//
//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign in to the membership service",
	Long: `Sign in with a username and password. The tokens, permissions and assigned
areas are kept in an encrypted cache so later commands reuse the session.

The password is read from the terminal without echo. For scripts, pipe it on
stdin with --password-stdin.`,
	Example: `  mmdesk login -u budi
  echo "$PASSWORD" | mmdesk login -u budi --password-stdin`,
	Args: cobra.NoArgs,
	RunE: runLogin,
}

// logoutCmd drops the session and its cache.
//
//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Sign out and delete the cached session",
	Long: `Forget the session and delete the encrypted token cache. The server is
not contacted.`,
	Example: `  mmdesk logout`,
	Args:    cobra.NoArgs,
	RunE:    runLogout,
}

// statusCmd shows who is signed in.
//
//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the signed-in user and their access",
	Long: `Show the signed-in user, their role and the areas they can access.

The session is checked with the server first. An expired access token is
refreshed; when that also fails the cached session is removed.`,
	Example: `  mmdesk status
  mmdesk status -o json`,
	Args: cobra.NoArgs,
	RunE: runStatus,
}

// verifyCmd asks the server whether the access token is still accepted.
//
//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Check the access token with the server",
	Long: `Ask the server whether the current access token is still accepted. The
session is left as it is either way; use refresh or status to renew it.`,
	Example: `  mmdesk verify
  mmdesk verify -o json`,
	Args: cobra.NoArgs,
	RunE: runVerify,
}

// refreshCmd mints a new access token.
//
//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var refreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Get a new access token using the refresh token",
	Long: `Exchange the refresh token for a new access token. Permissions and areas
are kept from the last login.`,
	Example: `  mmdesk refresh`,
	Args:    cobra.NoArgs,
	RunE:    runRefresh,
}

//nolint:gochecknoglobals // Cobra CLI pattern requires package-level flag variables
var (
	loginUsername      string
	loginPasswordStdin bool
)

//nolint:gochecknoinits // Cobra CLI pattern requires init for command registration
func init() {
	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(logoutCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(verifyCmd)
	rootCmd.AddCommand(refreshCmd)

	for _, c := range []*cobra.Command{loginCmd, logoutCmd, statusCmd, verifyCmd, refreshCmd} {
		c.GroupID = "session"
	}

	loginCmd.Flags().StringVarP(&loginUsername, "username", "u", "", "username (prompted when omitted)")
	loginCmd.Flags().BoolVar(&loginPasswordStdin, "password-stdin", false, "read the password from stdin")
}

// statusReport is the JSON shape shared by the session commands.
type statusReport struct {
	State              string     `json:"state"`
	Username           string     `json:"username,omitempty"`
	Role               string     `json:"role,omitempty"`
	RoleLabel          string     `json:"role_label,omitempty"`
	SuperAdmin         bool       `json:"super_admin"`
	AccessibleDesa     []string   `json:"accessible_desa"`
	AccessibleKelompok []string   `json:"accessible_kelompok"`
	TokenExpiresAt     *time.Time `json:"token_expires_at,omitempty"`
	CacheFile          string     `json:"cache_file"`
}

// newStatusReport reads the manager's current state. It does not touch the
// network.
func newStatusReport(m *session.Manager) statusReport {
	r := statusReport{
		State:              m.State().String(),
		AccessibleDesa:     []string{},
		AccessibleKelompok: []string{},
		CacheFile:          m.CachePath(),
	}

	user := m.CurrentUser()
	if user == nil {
		return r
	}

	r.Username = user.Username
	r.Role = string(user.Role)
	r.RoleLabel = user.Role.Label()
	r.SuperAdmin = m.IsSuperAdmin()
	r.AccessibleDesa = nonNil(m.AccessibleDesa())
	r.AccessibleKelompok = nonNil(m.AccessibleKelompok())
	if exp, ok := m.AccessTokenExpiry(); ok {
		r.TokenExpiresAt = &exp
	}
	return r
}

func runLogin(cmd *cobra.Command, _ []string) error {
	cc, err := commandContext()
	if err != nil {
		return err
	}

	username, password, err := readCredentials(cmd)
	if err != nil {
		return err
	}

	ctx, cancel := cc.RequestContext(cmd)
	defer cancel()

	if err := cc.Manager.Login(ctx, username, password); err != nil {
		return err
	}

	report := newStatusReport(cc.Manager)
	return cc.Output(cmd).Render(report, func(w io.Writer) error {
		cc.Messenger(cmd).Successf("Logged in as %s (%s)", report.Username, report.RoleLabel)
		displayReportText(w, report)
		return nil
	})
}

// readCredentials collects the username and password from flags, stdin or
// the terminal.
func readCredentials(cmd *cobra.Command) (string, string, error) {
	username := strings.TrimSpace(loginUsername)

	if loginPasswordStdin {
		if username == "" {
			return "", "", deskerr.WithSuggestion(deskerr.ErrInvalidInput,
				"--username is required with --password-stdin")
		}
		password, err := readLine(cmd.InOrStdin())
		return username, password, err
	}

	if username == "" {
		var err error
		if username, err = promptUsernameFn("Username: "); err != nil {
			return "", "", err
		}
	}

	password, err := promptPasswordFn("Password: ")
	if err != nil {
		return "", "", err
	}
	return username, password, nil
}

func runLogout(cmd *cobra.Command, _ []string) error {
	cc, err := commandContext()
	if err != nil {
		return err
	}

	cc.Manager.Logout()

	if cc.Formatter.IsJSON() {
		return output.FormatSuccess(cmd.OutOrStdout(), "logged out", output.FormatJSON)
	}
	cc.Messenger(cmd).Success("Logged out")
	return nil
}

func runStatus(cmd *cobra.Command, _ []string) error {
	cc, err := commandContext()
	if err != nil {
		return err
	}

	ctx, cancel := cc.RequestContext(cmd)
	defer cancel()

	if cc.Formatter.IsJSON() {
		cc.Manager.EnsureAuthenticated(ctx)
		return output.WriteJSON(cmd.OutOrStdout(), newStatusReport(cc.Manager))
	}

	w := cmd.OutOrStdout()
	if !cc.Manager.EnsureAuthenticated(ctx) {
		outln(w, "Not logged in")
		return nil
	}
	outln(w, cc.Resolver.UserInfo())
	if areas := cc.Resolver.AreasSummary(); areas != "" {
		outln(w, areas)
	}
	if exp, ok := cc.Manager.AccessTokenExpiry(); ok {
		out(w, "Token expires: %s\n", exp.Local().Format(time.DateTime))
	}
	return nil
}

func runVerify(cmd *cobra.Command, _ []string) error {
	cc, err := commandContext()
	if err != nil {
		return err
	}
	if cc.Manager.State() != session.StateAuthenticated {
		return deskerr.ErrNotAuthenticated
	}

	ctx, cancel := cc.RequestContext(cmd)
	defer cancel()

	if !cc.Manager.Verify(ctx) {
		return deskerr.WithSuggestion(deskerr.ErrSessionExpired,
			"run 'mmdesk refresh' or 'mmdesk login'")
	}

	return cc.Output(cmd).Render(map[string]bool{"valid": true}, func(_ io.Writer) error {
		cc.Messenger(cmd).Success("Access token is valid")
		return nil
	})
}

func runRefresh(cmd *cobra.Command, _ []string) error {
	cc, err := commandContext()
	if err != nil {
		return err
	}
	if cc.Manager.State() != session.StateAuthenticated {
		return deskerr.ErrNotAuthenticated
	}

	ctx, cancel := cc.RequestContext(cmd)
	defer cancel()

	if !cc.Manager.Refresh(ctx) {
		return deskerr.WithSuggestion(deskerr.ErrSessionExpired, "run 'mmdesk login'")
	}

	report := newStatusReport(cc.Manager)
	return cc.Output(cmd).Render(report, func(w io.Writer) error {
		cc.Messenger(cmd).Success("Access token refreshed")
		displayReportText(w, report)
		return nil
	})
}

// displayReportText writes the report as aligned key/value lines.
func displayReportText(w io.Writer, r statusReport) {
	table := output.NewTable("", "")
	table.SetNoHeader(true)
	table.AddRow("User:", r.Username+" ("+r.RoleLabel+")")
	switch {
	case r.SuperAdmin:
		table.AddRow("Areas:", "all")
	default:
		table.AddRow("Desa:", joinOrDash(r.AccessibleDesa))
		table.AddRow("Kelompok:", joinOrDash(r.AccessibleKelompok))
	}
	if r.TokenExpiresAt != nil {
		table.AddRow("Expires:", r.TokenExpiresAt.Local().Format(time.DateTime))
	}
	_ = table.Render(w)
}

func joinOrDash(items []string) string {
	if len(items) == 0 {
		return "-"
	}
	return strings.Join(items, ", ")
}
