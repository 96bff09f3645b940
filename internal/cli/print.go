package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/mudamudi/mmdesk/internal/config"
	"github.com/mudamudi/mmdesk/internal/output"
)

// out is a helper for CLI output that ignores write errors.
//
//nolint:errcheck // CLI output writes to stdout are intentionally unchecked
func out(w io.Writer, format string, args ...any) {
	fmt.Fprintf(w, format, args...)
}

// outln is a helper for CLI output with newline.
//
//nolint:errcheck // CLI output writes to stdout are intentionally unchecked
func outln(w io.Writer, args ...any) {
	fmt.Fprintln(w, args...)
}

// plainOutput reports whether status lines should drop their emoji prefixes.
func plainOutput(c *config.Config) bool {
	switch c.Output.Color {
	case "always":
		return false
	case "never":
		return true
	default:
		return !output.IsTerminal(os.Stdout)
	}
}

// yesNo renders a flag for tables.
func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
