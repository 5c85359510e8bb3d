package core

import "errors"

// Sentinel errors returned by the core package. Their messages are the
// patterns MapError matches on, so keep the two in sync.
var (
	ErrNoFile         = errors.New("no file provided")
	ErrNotCSV         = errors.New("invalid file type: expected a .csv file")
	ErrFileTooLarge   = errors.New("file too large")
	ErrEmptyFile      = errors.New("empty file")
	ErrMalformedCSV   = errors.New("malformed csv")
	ErrDatasetMissing = errors.New("dataset not found")

	ErrEmptyVariableName = errors.New("variable name is required")
	ErrDuplicateVariable = errors.New("variable already exists")
	ErrVariableNotFound  = errors.New("variable not found")

	ErrTemplateNotFound  = errors.New("template not found")
	ErrTemplateName      = errors.New("template name is required")
	ErrInvalidPaperSize  = errors.New("invalid paper size")
	ErrInvalidEditorData = errors.New("invalid editor state")

	ErrRenderTimeout     = errors.New("render timed out")
	ErrRenderFailed      = errors.New("render failed")
	ErrDeliveryFailed    = errors.New("delivery failed")
	ErrTooManyExports    = errors.New("too many exports in progress")
	ErrExportNotFound    = errors.New("export not found")
	ErrInvalidExportMode = errors.New("invalid export mode")
	ErrExportFileMissing = errors.New("export file not found")
)
