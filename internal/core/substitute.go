package core

import (
	"html"
	"regexp"
	"slices"
	"strings"
)

// Substitute replaces every case-insensitive occurrence of {{key}} in
// content with row[key]. Keys are applied in sorted order so the result
// does not depend on map iteration. Placeholders with no matching key are
// left as they are, as are placeholders broken up by markup.
func Substitute(content string, row Row) string {
	if len(row) == 0 || !strings.Contains(content, "{{") {
		return content
	}
	return NewSubstituter(RowKeys(row)).Apply(content, row)
}

// Substituter holds compiled placeholder patterns for a fixed key set so a
// batch of rows sharing the same columns compiles each pattern once.
type Substituter struct {
	keys     []string
	patterns []*regexp.Regexp
}

// NewSubstituter compiles a pattern per distinct key, in sorted order.
func NewSubstituter(keys []string) *Substituter {
	sorted := slices.Clone(keys)
	slices.Sort(sorted)
	sorted = slices.Compact(sorted)

	s := &Substituter{keys: sorted, patterns: make([]*regexp.Regexp, len(sorted))}
	for i, k := range sorted {
		s.patterns[i] = placeholderPattern(k)
	}
	return s
}

// Apply substitutes row into content with the same rules as Substitute.
// Keys the row does not carry leave their placeholders untouched; keys the
// Substituter was not built with are ignored.
func (s *Substituter) Apply(content string, row Row) string {
	if len(row) == 0 || !strings.Contains(content, "{{") {
		return content
	}
	for i, k := range s.keys {
		v, ok := row[k]
		if !ok {
			continue
		}
		content = s.patterns[i].ReplaceAllLiteralString(content, v)
	}
	return content
}

// RowKeys returns the union of the keys of rows.
func RowKeys(rows ...Row) []string {
	seen := make(map[string]struct{})
	var keys []string
	for _, r := range rows {
		for k := range r {
			if _, ok := seen[k]; !ok {
				seen[k] = struct{}{}
				keys = append(keys, k)
			}
		}
	}
	return keys
}

func placeholderPattern(key string) *regexp.Regexp {
	return regexp.MustCompile("(?i)" + regexp.QuoteMeta(Placeholder(key)))
}

// PaperSizeMeta is the meta tag name Shell uses to record the page format.
// Renderers that cannot evaluate @page rules read it instead.
const PaperSizeMeta = "paper-size"

var cssPageSize = map[PaperSize]string{
	PaperLetter: "letter",
	PaperA4:     "A4",
	PaperLegal:  "legal",
}

// Shell wraps a substituted fragment in the fixed document every render
// receives. An empty paper size leaves page sizing to the renderer.
func Shell(fragment string, paper PaperSize) string {
	var b strings.Builder
	b.WriteString("<!DOCTYPE html>\n<html>\n<head>\n<meta charset=\"utf-8\">\n")
	size, ok := cssPageSize[paper]
	if ok {
		b.WriteString(`<meta name="` + PaperSizeMeta + `" content="` + html.EscapeString(string(paper)) + "\">\n")
	}
	b.WriteString("<style>\n")
	if ok {
		b.WriteString("@page { size: " + size + "; }\n")
	}
	b.WriteString(shellCSS)
	b.WriteString("</style>\n</head>\n<body>\n<div class=\"pdf-export-container\">\n")
	b.WriteString(fragment)
	b.WriteString("\n</div>\n</body>\n</html>\n")
	return b.String()
}

const shellCSS = `body { margin: 0; padding: 0; }
.pdf-export-container { padding: 40px; font-family: Arial, sans-serif; width: 8.5in; box-sizing: border-box; background: white; color: black; }
.pdf-export-container h1 { font-size: 24px; font-weight: bold; margin-bottom: 16px; }
.pdf-export-container h2 { font-size: 20px; font-weight: bold; margin-bottom: 14px; }
.pdf-export-container h3 { font-size: 16px; font-weight: bold; margin-bottom: 12px; }
.pdf-export-container p { font-size: 12px; line-height: 1.5; margin-bottom: 12px; }
.pdf-export-container ul, .pdf-export-container ol { margin-left: 20px; margin-bottom: 12px; }
.pdf-export-container ul { list-style-type: disc; }
.pdf-export-container li { font-size: 12px; line-height: 1.5; margin-bottom: 4px; }
.pdf-export-container table { border-collapse: collapse; width: 100%; margin-bottom: 12px; }
.pdf-export-container th, .pdf-export-container td { border: 1px solid #ccc; padding: 6px; font-size: 12px; text-align: left; }
.pdf-export-container .bold { font-weight: bold; }
.pdf-export-container .italic { font-style: italic; }
.pdf-export-container .underline { text-decoration: underline; }
`
