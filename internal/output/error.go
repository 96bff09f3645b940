package output

import (
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"

	deskerr "github.com/mudamudi/mmdesk/pkg/errors"
)

// ErrorOutput represents a structured error for JSON output.
type ErrorOutput struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains error details.
type ErrorDetail struct {
	Code       string            `json:"code"`
	Message    string            `json:"message"`
	Details    map[string]string `json:"details,omitempty"`
	Suggestion string            `json:"suggestion,omitempty"`
	ExitCode   int               `json:"exit_code"`
}

// NewErrorDetail describes err for display. Errors that are not a DeskError
// are reported as GENERAL_ERROR.
func NewErrorDetail(err error) ErrorDetail {
	var de *deskerr.DeskError
	if errors.As(err, &de) {
		return ErrorDetail{
			Code:       de.Code,
			Message:    de.Message,
			Details:    de.Details,
			Suggestion: de.Suggestion,
			ExitCode:   de.ExitCode,
		}
	}

	return ErrorDetail{
		Code:     deskerr.ErrGeneral.Code,
		Message:  err.Error(),
		ExitCode: deskerr.ExitGeneral,
	}
}

// FormatError formats an error for display. The cause chain is never shown;
// it belongs in the log.
func FormatError(w io.Writer, err error, format Format) error {
	if err == nil {
		return nil
	}

	detail := NewErrorDetail(err)
	if format == FormatJSON {
		return WriteJSON(w, ErrorOutput{Error: detail})
	}
	return formatErrorText(w, detail)
}

func formatErrorText(w io.Writer, detail ErrorDetail) error {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Error: %s\n", detail.Message)

	if len(detail.Details) > 0 {
		sb.WriteString("\nDetails:\n")
		keys := make([]string, 0, len(detail.Details))
		for k := range detail.Details {
			keys = append(keys, k)
		}
		slices.Sort(keys)
		for _, k := range keys {
			fmt.Fprintf(&sb, "  %s: %s\n", k, detail.Details[k])
		}
	}

	if detail.Suggestion != "" {
		fmt.Fprintf(&sb, "\nSuggestion: %s\n", detail.Suggestion)
	}

	_, writeErr := io.WriteString(w, sb.String())
	return writeErr
}

// FormatSuccess formats a success message.
func FormatSuccess(w io.Writer, message string, format Format) error {
	if format == FormatJSON {
		return WriteJSON(w, map[string]string{"status": "success", "message": message})
	}
	_, err := fmt.Fprintln(w, message)
	return err
}
