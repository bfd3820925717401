package cli

import (
	"errors"
	"strings"

	"github.com/JonMunkholm/lending/internal/core"
	"github.com/JonMunkholm/lending/internal/pipeline"
	"github.com/JonMunkholm/lending/internal/procedure"
	"github.com/JonMunkholm/lending/internal/report"
	"github.com/JonMunkholm/lending/internal/sheet"
)

// Exit codes of lendctl.
const (
	ExitSuccess         = 0  // Command completed
	ExitGeneralError    = 1  // Unknown or unclassified error
	ExitUsageError      = 2  // Missing arguments or invalid flags
	ExitPanic           = 3  // Internal panic
	ExitConfigError     = 10 // Invalid configuration, constants or properties
	ExitConnectionError = 11 // Database unreachable
	ExitInputError      = 12 // Rejected input file, segment key or date
	ExitJobFailed       = 13 // SQL, procedure or jar failure
	ExitNoData          = 14 // Report query returned no rows
	ExitBusy            = 15 // Job limiter saturated
)

var (
	// ErrInvalidConfig wraps configuration load failures.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrConnectionFailed wraps database connection failures.
	ErrConnectionFailed = errors.New("database connection failed")

	// ErrJobFailed is returned when a job reported failure in its message.
	ErrJobFailed = errors.New("job failed")

	// ErrUsage is returned for invalid arguments.
	ErrUsage = errors.New("usage error")
)

// ExitCodeForError maps err to a process exit code.
func ExitCodeForError(err error) int {
	if err == nil {
		return ExitSuccess
	}

	switch {
	case errors.Is(err, ErrUsage):
		return ExitUsageError
	case errors.Is(err, ErrInvalidConfig),
		errors.Is(err, procedure.ErrScriptNotFound),
		errors.Is(err, report.ErrQueryNotFound),
		errors.Is(err, pipeline.ErrMissingProperty):
		return ExitConfigError
	case errors.Is(err, ErrConnectionFailed):
		return ExitConnectionError
	case errors.Is(err, core.ErrNoFiles),
		errors.Is(err, core.ErrEmptyFile),
		errors.Is(err, core.ErrNoColumns),
		errors.Is(err, core.ErrEmptyColumnName),
		errors.Is(err, core.ErrDuplicateColumn),
		errors.Is(err, core.ErrUnknownSegment),
		errors.Is(err, sheet.ErrInvalidWorkbook),
		errors.Is(err, pipeline.ErrInvalidDate):
		return ExitInputError
	case errors.Is(err, report.ErrNoData):
		return ExitNoData
	case errors.Is(err, core.ErrTooManyJobs):
		return ExitBusy
	case errors.Is(err, ErrJobFailed):
		return ExitJobFailed
	}

	errStr := err.Error()
	if strings.HasPrefix(errStr, "unknown command") {
		return ExitUsageError
	}
	if strings.Contains(errStr, "connection refused") ||
		strings.Contains(errStr, "no such host") ||
		strings.Contains(errStr, "failed to connect") {
		return ExitConnectionError
	}
	if strings.Contains(errStr, "SQLSTATE") {
		return ExitJobFailed
	}

	return ExitGeneralError
}
