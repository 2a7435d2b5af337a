// Package output provides the JSON envelope and exit codes shared by all
// commands.
package output

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/klytics/xlreport/cmd/version"
	"github.com/klytics/xlreport/internal/etl"
)

// Exit codes for consistent error reporting.
const (
	ExitOK          = 0 // success
	ExitUserError   = 1 // bad flags, bad range, missing file or column
	ExitSystemError = 2 // IO error, cancelled run
)

// ErrUsage marks errors caused by bad flags or configuration.
var ErrUsage = errors.New("usage error")

// Usagef returns a formatted error that maps to ExitUserError.
func Usagef(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrUsage, fmt.Sprintf(format, args...))
}

// ExitError ends the process with Code after the command has already
// reported the failure itself.
type ExitError struct {
	Code int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("exit status %d", e.Code)
}

// JSONResult is the standard JSON output envelope for all commands.
type JSONResult struct {
	OK      bool        `json:"ok"`
	Command string      `json:"command"`
	Version string      `json:"version"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
	Code    int         `json:"code,omitempty"`
}

// ExitCode maps err to a process exit code.
func ExitCode(err error) int {
	var exitErr *ExitError
	switch {
	case err == nil:
		return ExitOK
	case errors.As(err, &exitErr):
		return exitErr.Code
	case errors.Is(err, ErrUsage), etl.IsUserError(err):
		return ExitUserError
	default:
		return ExitSystemError
	}
}

// PrintJSON writes a standard success JSON result to w.
func PrintJSON(w io.Writer, cmd string, data interface{}) error {
	return encode(w, JSONResult{
		OK:      true,
		Command: cmd,
		Version: version.Version,
		Data:    data,
	})
}

// PrintJSONError writes a standard error JSON result to w. data may carry a
// partial result and is omitted when nil.
func PrintJSONError(w io.Writer, cmd string, err error, data interface{}) error {
	result := JSONResult{
		OK:      false,
		Command: cmd,
		Version: version.Version,
		Data:    data,
		Error:   err.Error(),
		Code:    ExitCode(err),
	}
	if encErr := encode(w, result); encErr != nil {
		return fmt.Errorf("could not encode JSON error: %w", encErr)
	}
	return nil
}

// PrintJSONLine writes one compact envelope per line, for commands that
// stream results. A nil err gives a success envelope.
func PrintJSONLine(w io.Writer, cmd string, data interface{}, err error) error {
	result := JSONResult{
		OK:      err == nil,
		Command: cmd,
		Version: version.Version,
		Data:    data,
	}
	if err != nil {
		result.Error = err.Error()
		result.Code = ExitCode(err)
	}
	return json.NewEncoder(w).Encode(result)
}

// Message returns the single user-facing line for err, without the stage
// prefix a run adds internally.
func Message(err error) string {
	var se *etl.StageError
	if errors.As(err, &se) {
		return "Error: " + se.Err.Error()
	}
	return "Error: " + err.Error()
}

func encode(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
