// Package core provides the business logic for CSV-driven document generation.
//
// It has no UI or transport dependencies and is used by the web handlers,
// the docgen CLI and tests alike.
//
// # Pipeline
//
//  1. [IngestCSV] parses an upload into a [Dataset] and infers a type for
//     each column from its first row.
//  2. A [Template] carries the editor's serialized state, the HTML the editor
//     rendered for it, and a [Registry] of variables.
//  3. [Substitute] replaces {{name}} placeholders with row values; [Shell]
//     wraps the result in the fixed print document.
//  4. [Exporter] renders one PDF per row through a [Renderer], one at a time
//     and in row order, and hands the files to a [Sink], optionally as a
//     single documents.zip.
//
// [Service] wraps these steps for the HTTP layer: datasets live in memory,
// templates go through a [TemplateRepository], and exports run as background
// jobs whose progress can be followed with [Service.SubscribeExport].
//
// # Error Handling
//
// Technical errors are mapped to user-friendly messages using [MapError].
// Each category has a code for support reference:
//
//   - FILE001-FILE005, DS001: dataset uploads
//   - VAR001-VAR003: variables
//   - TPL001-TPL004: templates
//   - RND001-RND002: rendering
//   - EXP001-EXP005: exports
//   - STO001-STO002: template storage
//   - REQ001-REQ003, RATE001: requests
package core
