package output

import (
	"fmt"
	"io"
)

// Message prefixes. Plain prefixes are used when color is disabled.
const (
	prefixInfo    = "ℹ️  "
	prefixWarn    = "⚠️  "
	prefixSuccess = "✅ "

	plainInfo    = "info: "
	plainWarn    = "warning: "
	plainSuccess = "ok: "
)

// Messenger prints status lines for a human reader.
type Messenger struct {
	out   io.Writer
	err   io.Writer
	plain bool
}

// NewMessenger writes info and success lines to out and warnings to errw.
// plain drops the emoji prefixes.
func NewMessenger(out, errw io.Writer, plain bool) *Messenger {
	return &Messenger{out: out, err: errw, plain: plain}
}

// Info prints an informational line.
func (m *Messenger) Info(msg string) {
	m.line(m.out, prefixInfo, plainInfo, msg)
}

// Infof prints a formatted informational line.
func (m *Messenger) Infof(format string, args ...any) {
	m.Info(fmt.Sprintf(format, args...))
}

// Warn prints a warning line.
func (m *Messenger) Warn(msg string) {
	m.line(m.err, prefixWarn, plainWarn, msg)
}

// Warnf prints a formatted warning line.
func (m *Messenger) Warnf(format string, args ...any) {
	m.Warn(fmt.Sprintf(format, args...))
}

// Success prints a success line.
func (m *Messenger) Success(msg string) {
	m.line(m.out, prefixSuccess, plainSuccess, msg)
}

// Successf prints a formatted success line.
func (m *Messenger) Successf(format string, args ...any) {
	m.Success(fmt.Sprintf(format, args...))
}

func (m *Messenger) line(w io.Writer, prefix, plain, msg string) {
	if m.plain {
		prefix = plain
	}
	_, _ = fmt.Fprintln(w, prefix+msg)
}
