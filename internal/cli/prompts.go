package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"

	deskerr "github.com/mudamudi/mmdesk/pkg/errors"
)

// Prompt functions are variables so tests can replace them.
//
//nolint:gochecknoglobals // Swappable for tests
var (
	promptPasswordFn = promptPassword
	promptUsernameFn = promptUsername
)

// promptPassword prompts for a password with hidden input.
func promptPassword(prompt string) (string, error) {
	fd := int(os.Stdin.Fd()) //nolint:gosec // G115: Fd() returns uintptr, safe conversion for term
	if !term.IsTerminal(fd) {
		return "", deskerr.WithSuggestion(deskerr.ErrInvalidInput,
			"no terminal for the password prompt; use --password-stdin")
	}

	out(os.Stderr, "%s", prompt)
	password, err := term.ReadPassword(fd)
	outln(os.Stderr)

	if err != nil {
		return "", fmt.Errorf("reading password: %w", err)
	}
	return string(password), nil
}

// promptUsername reads a username from the terminal.
func promptUsername(prompt string) (string, error) {
	out(os.Stderr, "%s", prompt)
	return readLine(os.Stdin)
}

// readLine returns the first line of r without its line ending.
func readLine(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	switch {
	case err == nil:
	case errors.Is(err, io.EOF):
		if line == "" {
			return "", deskerr.WithSuggestion(deskerr.ErrInvalidInput, "no input provided")
		}
	default:
		return "", fmt.Errorf("reading input: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}
