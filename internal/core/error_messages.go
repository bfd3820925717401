// Package core provides the CSV loading logic of the lending migration backend.
//
// # Error Codes Reference
//
// This file maps technical errors to user-facing messages with codes for
// support reference. Operators quote the code; support looks it up here.
//
// # Database Errors (DB001-DB099)
//
//	DB001 - Missing object: A table, function or procedure does not exist
//	        Patterns: "does not exist"
//
//	DB002 - Bad SQL: A generated or configured statement is invalid
//	        Patterns: "syntax error"
//
//	DB003 - Value too long: A cell is longer than the generated column type
//	        Patterns: "value too long"
//
//	DB004 - Connection refused: Unable to connect to database
//	        Patterns: "connection refused"
//
//	DB005 - Connection reset: Database connection was interrupted
//	        Patterns: "connection reset"
//
//	DB006 - Timeout: Statement timed out in the database
//	        Patterns: "statement timeout", "timeout"
//
//	DB007 - Deadlock: Database was busy with conflicting operations
//	        Patterns: "deadlock"
//
// # File Errors (FILE001-FILE099)
//
//	FILE001 - File too large: Request exceeds the upload size limit
//	          Patterns: "file too large", "request body too large"
//
//	FILE002 - Bad header: The CSV header row cannot form a table
//	          Patterns: "invalid csv header"
//
//	FILE003 - Encoding error: File contains invalid characters
//	          Patterns: "encoding error"
//
//	FILE004 - No file: No file was selected
//	          Patterns: "no file provided"
//
//	FILE005 - Empty file: The uploaded file has no header line
//	          Patterns: "empty file"
//
//	FILE006 - Bad workbook: The spreadsheet could not be read
//	          Patterns: "invalid workbook"
//
// # Job Errors (JOB001-JOB099)
//
//	JOB001 - Busy: Too many jobs running
//	         Patterns: "too many jobs"
//
//	JOB002 - Cancelled: The request was cancelled
//	         Patterns: "context canceled"
//
//	JOB003 - Timed out: The job exceeded its time limit
//	         Patterns: "context deadline exceeded"
//
//	JOB004 - External jar: The batch jar could not be started
//	         Patterns: "start jar"
//
//	JOB005 - Unknown segment: The segment key is not configured
//	         Patterns: "unknown segment"
//
// # Configuration Errors (CFG001-CFG099)
//
//	CFG001 - Missing script: A SQL script is missing from SQL_DIR
//	         Patterns: "script not found"
//
//	CFG002 - Missing query: The report query is not configured
//	         Patterns: "query not found"
//
//	CFG003 - Bad properties: A properties file is missing or incomplete
//	         Patterns: "properties"
//
// # Rate Limiting (RATE001)
//
//	RATE001 - Rate limited: Too many requests
//	          Patterns: "rate limit"
//
// # Default Error (ERR000)
//
// Fallback when no pattern matches; the technical error is in the logs.
//
// Patterns are matched case-insensitively with strings.Contains and the
// first match wins, so specific patterns precede general ones.
package core

import (
	"fmt"
	"strings"
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string // What happened (user-friendly)
	Action  string // What to do about it
	Code    string // Error code for support reference
}

// errorPattern defines a pattern to match and its corresponding user message.
type errorPattern struct {
	pattern string
	msg     UserMessage
}

// errorPatterns maps technical error patterns (case-insensitive) to user messages.
// The first matching pattern wins.
var errorPatterns = []errorPattern{
	// =========================================================================
	// File Errors (FILE001-FILE006)
	// Checked first: wrapped file errors often mention a table name.
	// =========================================================================
	{
		pattern: "file too large",
		msg: UserMessage{
			Message: "Upload exceeds the maximum size limit",
			Action:  "Split the file into smaller chunks",
			Code:    "FILE001",
		},
	},
	{
		pattern: "request body too large",
		msg: UserMessage{
			Message: "Upload exceeds the maximum size limit",
			Action:  "Split the file into smaller chunks",
			Code:    "FILE001",
		},
	},
	{
		pattern: "invalid csv header",
		msg: UserMessage{
			Message: "The CSV header row cannot be turned into a table",
			Action:  "Give every column a distinct, non-empty name",
			Code:    "FILE002",
		},
	},
	{
		pattern: "encoding error",
		msg: UserMessage{
			Message: "File contains invalid characters",
			Action:  "Save file as UTF-8 encoding",
			Code:    "FILE003",
		},
	},
	{
		pattern: "no file provided",
		msg: UserMessage{
			Message: "No file was selected",
			Action:  "Please select at least one CSV file to upload",
			Code:    "FILE004",
		},
	},
	{
		pattern: "empty file",
		msg: UserMessage{
			Message: "The uploaded file is empty",
			Action:  "Upload a CSV file with a header row",
			Code:    "FILE005",
		},
	},
	{
		pattern: "invalid workbook",
		msg: UserMessage{
			Message: "The spreadsheet could not be read",
			Action:  "Save the workbook as .xlsx and try again",
			Code:    "FILE006",
		},
	},

	// =========================================================================
	// Configuration Errors (CFG001-CFG003)
	// =========================================================================
	{
		pattern: "script not found",
		msg: UserMessage{
			Message: "A SQL script is missing",
			Action:  "Check SQL_DIR and the script names in the constants file",
			Code:    "CFG001",
		},
	},
	{
		pattern: "query not found",
		msg: UserMessage{
			Message: "The report query is not configured",
			Action:  "Add the query to queries.properties",
			Code:    "CFG002",
		},
	},
	{
		pattern: "properties",
		msg: UserMessage{
			Message: "A properties file is missing or incomplete",
			Action:  "Check the files in CONFIG_DIR",
			Code:    "CFG003",
		},
	},

	// =========================================================================
	// Job Errors (JOB001-JOB005)
	// =========================================================================
	{
		pattern: "too many jobs",
		msg: UserMessage{
			Message: "System is busy running other jobs",
			Action:  "Please wait a moment and try again",
			Code:    "JOB001",
		},
	},
	{
		pattern: "context canceled",
		msg: UserMessage{
			Message: "Request was cancelled",
			Action:  "Please try again",
			Code:    "JOB002",
		},
	},
	{
		pattern: "context deadline exceeded",
		msg: UserMessage{
			Message: "The job exceeded its time limit",
			Action:  "Try smaller files or raise the timeout",
			Code:    "JOB003",
		},
	},
	{
		pattern: "start jar",
		msg: UserMessage{
			Message: "The batch jar could not be started",
			Action:  "Check JAR_FILE_PATH and the java installation",
			Code:    "JOB004",
		},
	},
	{
		pattern: "unknown segment",
		msg: UserMessage{
			Message: "Unknown segment",
			Action:  "Use one of the keys listed by /api/segments",
			Code:    "JOB005",
		},
	},

	// =========================================================================
	// Database Errors (DB001-DB007)
	// =========================================================================
	{
		pattern: "does not exist",
		msg: UserMessage{
			Message: "A table, function or procedure does not exist",
			Action:  "Check the configured table and procedure names",
			Code:    "DB001",
		},
	},
	{
		pattern: "syntax error",
		msg: UserMessage{
			Message: "A SQL statement is invalid",
			Action:  "Check the SQL scripts and the CSV column headers",
			Code:    "DB002",
		},
	},
	{
		pattern: "value too long",
		msg: UserMessage{
			Message: "A value is longer than the column allows",
			Action:  "Shorten the value or widen UPLOAD_COLUMN_TYPE",
			Code:    "DB003",
		},
	},
	{
		pattern: "connection refused",
		msg: UserMessage{
			Message: "Unable to connect to database",
			Action:  "Please try again in a few moments",
			Code:    "DB004",
		},
	},
	{
		pattern: "connection reset",
		msg: UserMessage{
			Message: "Database connection was interrupted",
			Action:  "Please try again",
			Code:    "DB005",
		},
	},
	{
		pattern: "timeout",
		msg: UserMessage{
			Message: "Operation timed out",
			Action:  "Try again later",
			Code:    "DB006",
		},
	},
	{
		pattern: "deadlock",
		msg: UserMessage{
			Message: "Database was busy with conflicting operations",
			Action:  "Please try again",
			Code:    "DB007",
		},
	},

	// =========================================================================
	// Rate Limiting (RATE001)
	// =========================================================================
	{
		pattern: "rate limit",
		msg: UserMessage{
			Message: "Too many requests",
			Action:  "Please wait a moment before trying again",
			Code:    "RATE001",
		},
	},
}

// defaultMessage is returned when no pattern matches (ERR000).
var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-friendly message.
// It returns the first pattern match, or the ERR000 fallback.
//
// Example:
//
//	err := errors.New(`relation "bs" does not exist`)
//	msg := MapError(err)
//	// msg.Code == "DB001"
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	errStr := strings.ToLower(err.Error())

	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
	}

	return defaultMessage
}

// FormatUserError creates a formatted error string for display.
// The format is: "Message (Code: XXX). Action"
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing reports whether err matches a known pattern rather than the
// ERR000 fallback.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}

// UserError pairs a technical error with its user-facing message.
// Error returns the user message; Unwrap returns the technical error.
type UserError struct {
	Technical error
	User      UserMessage
}

func (e *UserError) Error() string {
	return e.User.Message
}

func (e *UserError) Unwrap() error {
	return e.Technical
}

// NewUserError maps err to a UserError. Returns nil if err is nil.
func NewUserError(err error) *UserError {
	if err == nil {
		return nil
	}
	return &UserError{
		Technical: err,
		User:      MapError(err),
	}
}
