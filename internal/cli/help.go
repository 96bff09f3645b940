package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

// fallbackHeading files subcommands that neither they nor their parent put in
// a group.
const fallbackHeading = "Commands:"

// visitCommands calls fn for cmd and every command below it, parents first.
func visitCommands(cmd *cobra.Command, fn func(*cobra.Command)) {
	fn(cmd)
	for _, sub := range cmd.Commands() {
		visitCommands(sub, fn)
	}
}

// headingFor returns the root group title sub is listed under. A subcommand
// without a group inherits its parent's.
func headingFor(sub *cobra.Command) string {
	id := sub.GroupID
	if id == "" && sub.HasParent() {
		id = sub.Parent().GroupID
	}
	for _, g := range sub.Root().Groups() {
		if g.ID == id {
			return g.Title
		}
	}
	return fallbackHeading
}

// enrichParentLong appends the subcommands of a nested parent such as
// "config" to its Long text, with their arguments, under the headings root
// help uses. Root is skipped; cobra already groups its listing.
func enrichParentLong(cmd *cobra.Command) {
	if !cmd.HasParent() || !cmd.HasAvailableSubCommands() {
		return
	}

	var headings []string
	listed := make(map[string][]*cobra.Command)
	width := 0
	for _, sub := range cmd.Commands() {
		if !sub.IsAvailableCommand() {
			continue
		}
		h := headingFor(sub)
		if _, seen := listed[h]; !seen {
			headings = append(headings, h)
		}
		listed[h] = append(listed[h], sub)
		width = max(width, len(sub.Use))
	}

	var sb strings.Builder
	sb.WriteString(strings.TrimRight(cmd.Long, "\n"))
	for _, h := range headings {
		sb.WriteString("\n\n" + h + "\n")
		for _, sub := range listed[h] {
			fmt.Fprintf(&sb, "  %-*s  %s\n", width, sub.Use, sub.Short)
		}
	}

	cmd.Long = strings.TrimRight(sb.String(), "\n")
}
