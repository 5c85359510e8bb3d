package core

import (
	"encoding/json"
	"strings"
	"time"
)

// ColumnType is the inferred kind of a dataset column.
type ColumnType string

const (
	ColumnText   ColumnType = "text"
	ColumnNumber ColumnType = "number"
	ColumnDate   ColumnType = "date"
)

// DataKind classifies a dataset by the mix of its column types.
type DataKind string

const (
	DataTabular     DataKind = "tabular"
	DataTimeSeries  DataKind = "time-series"
	DataCategorical DataKind = "categorical"
	DataNumerical   DataKind = "numerical"
)

// Column describes one CSV header and the type inferred from the first row.
type Column struct {
	Name   string     `json:"name"`
	Type   ColumnType `json:"type"`
	Sample string     `json:"sample,omitempty"`
}

// Row maps header names to raw cell values.
type Row map[string]string

// Statistics summarises an ingested dataset.
type Statistics struct {
	ColumnCount int      `json:"columnCount"`
	RowCount    int      `json:"rowCount"`
	DataType    DataKind `json:"dataType"`
	Format      string   `json:"format"`
}

// Dataset is a parsed CSV file. Rows are in file order and every row has
// exactly one entry per column.
type Dataset struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	Columns    []Column   `json:"columns"`
	Rows       []Row      `json:"rows"`
	Statistics Statistics `json:"statistics"`
	UploadedAt time.Time  `json:"uploadedAt"`
}

// ColumnNames returns the header names in file order.
func (d *Dataset) ColumnNames() []string {
	names := make([]string, len(d.Columns))
	for i, c := range d.Columns {
		names[i] = c.Name
	}
	return names
}

// Samples maps each column to its first-row value.
func (d *Dataset) Samples() map[string]string {
	out := make(map[string]string, len(d.Columns))
	for _, c := range d.Columns {
		out[c.Name] = c.Sample
	}
	return out
}

// VariableKind records where a template variable came from.
type VariableKind string

const (
	VariableCustom VariableKind = "custom"
	VariableCSV    VariableKind = "csv"
)

// Variable is a named placeholder registered on a template.
type Variable struct {
	Name string       `json:"name"`
	Type VariableKind `json:"type"`
}

// PaperSize is the page format of a template.
type PaperSize string

const (
	PaperLetter PaperSize = "letter"
	PaperA4     PaperSize = "a4"
	PaperLegal  PaperSize = "legal"
)

// DefaultPaperSize is used when a template is created without one.
const DefaultPaperSize = PaperA4

// ParsePaperSize normalises s. The empty string yields DefaultPaperSize.
func ParsePaperSize(s string) (PaperSize, error) {
	switch p := PaperSize(strings.ToLower(strings.TrimSpace(s))); p {
	case "":
		return DefaultPaperSize, nil
	case PaperLetter, PaperA4, PaperLegal:
		return p, nil
	default:
		return "", ErrInvalidPaperSize
	}
}

// EmptyEditorState is the serialized state of a document holding a single
// empty paragraph.
var EmptyEditorState = json.RawMessage(`{"root":{"children":[{"children":[],"direction":null,"format":"","indent":0,"type":"paragraph","version":1}],"direction":null,"format":"","indent":0,"type":"root","version":1}}`)

// Template is a persisted document template. Content is the editor's
// serialized state and is stored verbatim; HTML is the last rendering the
// editor reported for it.
type Template struct {
	ID                 string          `json:"id"`
	Name               string          `json:"name"`
	Description        string          `json:"description"`
	PaperSize          PaperSize       `json:"paperSize"`
	Content            json.RawMessage `json:"content"`
	HTML               string          `json:"html"`
	Variables          []Variable      `json:"variables"`
	DatasetID          string          `json:"datasetId,omitempty"`
	DocumentsGenerated int             `json:"documentsGenerated"`
	LastUsed           *time.Time      `json:"lastUsed,omitempty"`
	CreatedAt          time.Time       `json:"createdAt"`
	UpdatedAt          time.Time       `json:"updatedAt"`
}

// VariableNames returns the registered variable names in registration order.
func (t *Template) VariableNames() []string {
	names := make([]string, len(t.Variables))
	for i, v := range t.Variables {
		names[i] = v.Name
	}
	return names
}

// ExportMode selects how a batch export delivers its files.
type ExportMode string

const (
	ExportIndividual ExportMode = "individual"
	ExportZip        ExportMode = "zip"
)

// ParseExportMode normalises s. The empty string yields ExportIndividual.
func ParseExportMode(s string) (ExportMode, error) {
	switch m := ExportMode(strings.ToLower(strings.TrimSpace(s))); m {
	case "":
		return ExportIndividual, nil
	case ExportIndividual, ExportZip:
		return m, nil
	default:
		return "", ErrInvalidExportMode
	}
}

// ExportPhase is the lifecycle state of an export.
type ExportPhase string

const (
	PhasePending   ExportPhase = "pending"
	PhaseRendering ExportPhase = "rendering"
	PhasePackaging ExportPhase = "packaging"
	PhaseComplete  ExportPhase = "complete"
	PhaseFailed    ExportPhase = "failed"
)

// ExportProgress is reported after every rendered document.
type ExportProgress struct {
	Phase     ExportPhase `json:"phase"`
	Completed int         `json:"completed"`
	Total     int         `json:"total"`
	Percent   float64     `json:"percent"`
	Error     string      `json:"error,omitempty"`
}

// ExportResult describes the files a finished export delivered.
type ExportResult struct {
	Files    []string      `json:"files"`
	Count    int           `json:"count"`
	Duration time.Duration `json:"duration"`
}
