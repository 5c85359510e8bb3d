package core

// error_messages.go maps technical errors to user-facing messages with a
// code support staff can look up.
//
// Codes by category:
//
//	FILE001-FILE005  dataset uploads (size, type, parse, empty)
//	DS001            dataset lookups
//	VAR001-VAR003    variable registry
//	TPL001-TPL004    template store and editor state
//	RND001-RND002    PDF rendering
//	EXP001-EXP005    batch exports and their output
//	STO001-STO002    storage backend connectivity
//	REQ001-REQ003    cancelled, timed out or unreadable requests
//	RATE001          request throttling
//	ERR000           fallback, check the logs for the technical error
//
// Patterns are matched case-insensitively with strings.Contains and the first
// match wins, so specific patterns must precede general ones.

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

type errorPattern struct {
	pattern string
	msg     UserMessage
}

var errorPatterns = []errorPattern{
	// Dataset uploads
	{"file too large", UserMessage{"File exceeds the maximum upload size", "Split the file into smaller chunks", "FILE001"}},
	{"invalid file type", UserMessage{"Please upload a CSV file", "Choose a file with a .csv extension", "FILE002"}},
	{"malformed csv", UserMessage{"The CSV file could not be parsed", "Check that every row has the same number of columns as the header", "FILE003"}},
	{"no file provided", UserMessage{"No file was selected", "Please select a CSV file to upload", "FILE004"}},
	{"empty file", UserMessage{"The uploaded file is empty", "Upload a CSV file with a header row", "FILE005"}},
	{"dataset not found", UserMessage{"Dataset not found", "Upload the CSV file again", "DS001"}},

	// Variables
	{"variable already exists", UserMessage{"A variable with this name already exists", "Choose a different name", "VAR001"}},
	{"variable name is required", UserMessage{"Variable name cannot be empty", "Enter a name for the variable", "VAR002"}},
	{"variable not found", UserMessage{"Variable not found", "Refresh the page to see the current variables", "VAR003"}},

	// Templates
	{"template not found", UserMessage{"Template not found", "It may have been deleted. Refresh the template list", "TPL001"}},
	{"template name is required", UserMessage{"Template name cannot be empty", "Enter a name for the template", "TPL002"}},
	{"invalid paper size", UserMessage{"Unsupported paper size", "Choose letter, a4 or legal", "TPL003"}},
	{"invalid editor state", UserMessage{"The document could not be saved", "Reload the editor and try again", "TPL004"}},

	// Rendering
	{"render timed out", UserMessage{"PDF generation timed out", "Simplify the template or try again later", "RND002"}},
	{"render failed", UserMessage{"PDF generation failed", "Please try again or contact support", "RND001"}},

	// Exports
	{"too many exports", UserMessage{"System is busy generating other documents", "Please wait a moment and try again", "EXP001"}},
	{"export not found", UserMessage{"Export not found", "The export may have expired. Please start a new export", "EXP002"}},
	{"invalid export mode", UserMessage{"Unsupported export mode", "Choose individual or zip", "EXP003"}},
	{"delivery failed", UserMessage{"Generated documents could not be saved", "Please try again or contact support", "EXP004"}},
	{"export file not found", UserMessage{"File not found", "The export output may have been cleaned up. Please export again", "EXP005"}},

	// Storage
	{"connection refused", UserMessage{"Unable to connect to template storage", "Please try again in a few moments", "STO001"}},
	{"connection reset", UserMessage{"Template storage connection was interrupted", "Please try again", "STO002"}},

	// Requests
	{"context canceled", UserMessage{"Request was cancelled", "Please try again", "REQ001"}},
	{"context deadline exceeded", UserMessage{"Request timed out", "Try again with fewer rows", "REQ002"}},
	{"invalid request body", UserMessage{"The request could not be read", "Check the request format and try again", "REQ003"}},

	{"rate limit", UserMessage{"Too many requests", "Please wait a moment before trying again", "RATE001"}},
}

// defaultMessage is returned when no pattern matches.
var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-friendly message.
// If no pattern matches, the ERR000 fallback is returned.
//
//	msg := MapError(fmt.Errorf("upload: %w", ErrNotCSV))
//	// msg.Code == "FILE002"
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

// FormatUserError formats err as "Message (Code: XXX). Action".
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing reports whether err maps to a specific message rather than
// the ERR000 fallback.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}

// UserError pairs a technical error, kept for logging, with the message
// shown to users.
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
