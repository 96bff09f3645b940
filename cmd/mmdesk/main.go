// Package main is the entry point for the mmdesk CLI.
package main

import (
	"os"

	"github.com/mudamudi/mmdesk/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(cli.ExitCode(err))
	}
}
