package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mudamudi/mmdesk/internal/output"
	"github.com/mudamudi/mmdesk/internal/permission"
	"github.com/mudamudi/mmdesk/internal/session"
	deskerr "github.com/mudamudi/mmdesk/pkg/errors"
)

// canCmd checks one menu capability.
//
//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var canCmd = &cobra.Command{
	Use:   "can <menu>",
	Short: "Check whether the signed-in user may use a menu",
	Long: `Check one capability of the signed-in user on a menu.

Exits with status 5 when the action is not allowed. Menu keys that mmdesk
does not know are allowed for any signed-in user.`,
	Example: `  mmdesk can dashboard
  mmdesk can input_data --action create`,
	Args:              cobra.ExactArgs(1),
	ValidArgsFunction: completeMenuKeys,
	RunE:              runCan,
}

// menusCmd lists every menu with the user's flags.
//
//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var menusCmd = &cobra.Command{
	Use:   "menus",
	Short: "List menus and the actions allowed on each",
	Long: `List every known menu with the view, create, edit and delete flags the
server granted to the signed-in user.`,
	Example: `  mmdesk menus
  mmdesk menus -o json`,
	Args: cobra.NoArgs,
	RunE: runMenus,
}

// areasCmd lists the accessible desa and kelompok.
//
//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var areasCmd = &cobra.Command{
	Use:   "areas",
	Short: "List the desa and kelompok the user can access",
	Long: `List the desa and kelompok assigned to the signed-in user. A super admin
sees the whole configured catalog.`,
	Example: `  mmdesk areas`,
	Args:    cobra.NoArgs,
	RunE:    runAreas,
}

// filterCmd narrows a list of options to the user's areas.
//
//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var filterCmd = &cobra.Command{
	Use:   "filter <desa|kelompok> [option...]",
	Short: "Filter area options by the user's access",
	Long: `Print the options the signed-in user may choose, in input order.

Without options the configured catalog is filtered. A user with no assigned
areas of the given kind sees every option.`,
	Example: `  mmdesk filter desa
  mmdesk filter kelompok "Kelompok 1" "Kelompok 9"`,
	Args:      cobra.MinimumNArgs(1),
	ValidArgs: []string{"desa", "kelompok"},
	RunE:      runFilter,
}

// scopeCmd shows the record filter for the user.
//
//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var scopeCmd = &cobra.Command{
	Use:   "scope",
	Short: "Show the participant record filter for the user",
	Long: `Show which participant records the signed-in user may see.

With --sql the filter is printed as a parameterized WHERE clause followed by
its arguments, one per line.`,
	Example: `  mmdesk scope
  mmdesk scope --sql`,
	Args: cobra.NoArgs,
	RunE: runScope,
}

// participantCmd checks one participant record's location.
//
//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var participantCmd = &cobra.Command{
	Use:   "participant",
	Short: "Check whether a participant record is within the user's areas",
	Long: `Check whether a record located in the given desa and kelompok is within the
signed-in user's areas. Exits with status 5 when it is not.`,
	Example: `  mmdesk participant --desa "Desa A" --kelompok "Kelompok 1"`,
	Args: cobra.NoArgs,
	RunE: runParticipant,
}

//nolint:gochecknoglobals // Cobra CLI pattern requires package-level flag variables
var (
	canAction           string
	scopeSQL            bool
	participantDesa     string
	participantKelompok string
)

//nolint:gochecknoinits // Cobra CLI pattern requires init for command registration
func init() {
	rootCmd.AddCommand(canCmd)
	rootCmd.AddCommand(menusCmd)
	rootCmd.AddCommand(areasCmd)
	rootCmd.AddCommand(filterCmd)
	rootCmd.AddCommand(scopeCmd)
	rootCmd.AddCommand(participantCmd)

	for _, c := range []*cobra.Command{canCmd, menusCmd, areasCmd, filterCmd, scopeCmd, participantCmd} {
		c.GroupID = "access"
	}

	canCmd.Flags().StringVarP(&canAction, "action", "a", string(session.ActionView), "action: view, create, edit, delete")
	scopeCmd.Flags().BoolVar(&scopeSQL, "sql", false, "print the filter as SQL")
	participantCmd.Flags().StringVar(&participantDesa, "desa", "", "desa of the record")
	participantCmd.Flags().StringVar(&participantKelompok, "kelompok", "", "kelompok of the record")
}

// requireSession fails when the last resolver call left no session.
func requireSession(cc *CommandContext) error {
	if cc.Manager.State() != session.StateAuthenticated {
		return deskerr.ErrNotAuthenticated
	}
	return nil
}

type canResult struct {
	Menu    string `json:"menu"`
	Name    string `json:"name,omitempty"`
	Action  string `json:"action"`
	Known   bool   `json:"known"`
	Allowed bool   `json:"allowed"`
}

func runCan(cmd *cobra.Command, args []string) error {
	action, ok := session.ParseAction(strings.ToLower(canAction))
	if !ok {
		return deskerr.WithDetails(deskerr.ErrInvalidFormat, map[string]string{
			"action": canAction,
			"valid":  "view, create, edit, or delete",
		})
	}

	cc, err := commandContext()
	if err != nil {
		return err
	}

	key := args[0]
	name, known := permission.MenuName(key)
	if !known {
		if suggestion, found := permission.SuggestMenuKey(key); found {
			cc.Messenger(cmd).Warnf("unknown menu %q, did you mean %q?", key, suggestion)
		}
	}

	ctx, cancel := cc.RequestContext(cmd)
	defer cancel()

	allowed := cc.Resolver.Can(ctx, key, action)
	if err := requireSession(cc); err != nil {
		return err
	}
	if !allowed {
		return deskerr.WithDetails(deskerr.ErrPermission, map[string]string{
			"menu":   key,
			"action": string(action),
		})
	}

	res := canResult{Menu: key, Name: name, Action: string(action), Known: known, Allowed: true}
	return cc.Output(cmd).Render(res, func(w io.Writer) error {
		out(w, "%s: %s allowed\n", key, action)
		return nil
	})
}

type menuRow struct {
	Menu   string `json:"menu"`
	Name   string `json:"name"`
	View   bool   `json:"view"`
	Create bool   `json:"create"`
	Edit   bool   `json:"edit"`
	Delete bool   `json:"delete"`
}

func runMenus(cmd *cobra.Command, _ []string) error {
	cc, err := commandContext()
	if err != nil {
		return err
	}

	ctx, cancel := cc.RequestContext(cmd)
	defer cancel()

	if !cc.Manager.EnsureAuthenticated(ctx) {
		return deskerr.ErrNotAuthenticated
	}

	rows := make([]menuRow, 0, len(permission.MenuKeys()))
	for _, key := range permission.MenuKeys() {
		name, _ := permission.MenuName(key)
		rows = append(rows, menuRow{
			Menu:   key,
			Name:   name,
			View:   cc.Manager.HasPermission(name, session.ActionView),
			Create: cc.Manager.HasPermission(name, session.ActionCreate),
			Edit:   cc.Manager.HasPermission(name, session.ActionEdit),
			Delete: cc.Manager.HasPermission(name, session.ActionDelete),
		})
	}

	return cc.Output(cmd).Render(rows, func(w io.Writer) error {
		table := output.NewTable("MENU", "NAME", "VIEW", "CREATE", "EDIT", "DELETE")
		for _, r := range rows {
			table.AddRow(r.Menu, r.Name, yesNo(r.View), yesNo(r.Create), yesNo(r.Edit), yesNo(r.Delete))
		}
		return table.Render(w)
	})
}

type areasResult struct {
	All      bool     `json:"all"`
	Desa     []string `json:"desa"`
	Kelompok []string `json:"kelompok"`
}

func runAreas(cmd *cobra.Command, _ []string) error {
	cc, err := commandContext()
	if err != nil {
		return err
	}

	ctx, cancel := cc.RequestContext(cmd)
	defer cancel()

	if !cc.Manager.EnsureAuthenticated(ctx) {
		return deskerr.ErrNotAuthenticated
	}

	res := areasResult{
		All:      cc.Manager.IsSuperAdmin(),
		Desa:     nonNil(cc.Manager.AccessibleDesa()),
		Kelompok: nonNil(cc.Manager.AccessibleKelompok()),
	}
	return cc.Output(cmd).Render(res, func(w io.Writer) error {
		table := output.NewTable("KIND", "NAME")
		for _, d := range res.Desa {
			table.AddRow("desa", d)
		}
		for _, k := range res.Kelompok {
			table.AddRow("kelompok", k)
		}
		if table.Len() == 0 {
			outln(w, "No areas assigned")
			return nil
		}
		return table.Render(w)
	})
}

func runFilter(cmd *cobra.Command, args []string) error {
	kind, options := strings.ToLower(args[0]), args[1:]
	if kind != "desa" && kind != "kelompok" {
		return deskerr.WithDetails(deskerr.ErrInvalidInput, map[string]string{
			"kind":  args[0],
			"valid": "desa or kelompok",
		})
	}

	cc, err := commandContext()
	if err != nil {
		return err
	}

	ctx, cancel := cc.RequestContext(cmd)
	defer cancel()

	var filtered []string
	if kind == "desa" {
		if len(options) == 0 {
			options = cc.Config.Catalog.Desa
		}
		filtered = cc.Resolver.FilterDesaOptions(ctx, options)
	} else {
		if len(options) == 0 {
			options = cc.Config.Catalog.Kelompok
		}
		filtered = cc.Resolver.FilterKelompokOptions(ctx, options)
	}
	if err := requireSession(cc); err != nil {
		return err
	}

	filtered = nonNil(filtered)
	return cc.Output(cmd).Render(filtered, func(w io.Writer) error {
		for _, o := range filtered {
			outln(w, o)
		}
		return nil
	})
}

type scopeResult struct {
	Mode     string   `json:"mode"`
	Desa     []string `json:"desa"`
	Kelompok []string `json:"kelompok"`
	SQL      string   `json:"sql"`
	Args     []any    `json:"args"`
}

func runScope(cmd *cobra.Command, _ []string) error {
	cc, err := commandContext()
	if err != nil {
		return err
	}

	ctx, cancel := cc.RequestContext(cmd)
	defer cancel()

	pred := cc.Resolver.DataFilter(ctx)
	if err := requireSession(cc); err != nil {
		return err
	}

	clause, sqlArgs := pred.SQL()
	res := scopeResult{
		Mode:     pred.Mode.String(),
		Desa:     nonNil(pred.Desa),
		Kelompok: nonNil(pred.Kelompok),
		SQL:      clause,
		Args:     sqlArgs,
	}
	if res.Args == nil {
		res.Args = []any{}
	}

	return cc.Output(cmd).Render(res, func(w io.Writer) error {
		if !scopeSQL {
			outln(w, pred.String())
			return nil
		}
		outln(w, clause)
		for _, a := range sqlArgs {
			outln(w, fmt.Sprint(a))
		}
		return nil
	})
}

type participantResult struct {
	Desa     string `json:"desa"`
	Kelompok string `json:"kelompok"`
	Allowed  bool   `json:"allowed"`
}

func runParticipant(cmd *cobra.Command, _ []string) error {
	if participantDesa == "" && participantKelompok == "" {
		return deskerr.WithSuggestion(deskerr.ErrInvalidInput, "pass --desa, --kelompok or both")
	}

	cc, err := commandContext()
	if err != nil {
		return err
	}

	ctx, cancel := cc.RequestContext(cmd)
	defer cancel()

	allowed := cc.Resolver.CanAccessParticipant(ctx, participantDesa, participantKelompok)
	if err := requireSession(cc); err != nil {
		return err
	}
	if !allowed {
		return deskerr.WithDetails(deskerr.ErrPermission, map[string]string{
			"desa":     participantDesa,
			"kelompok": participantKelompok,
		})
	}

	res := participantResult{Desa: participantDesa, Kelompok: participantKelompok, Allowed: true}
	return cc.Output(cmd).Render(res, func(w io.Writer) error {
		outln(w, "Record is within your areas")
		return nil
	})
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
