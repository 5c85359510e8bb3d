package core

import (
	"strings"
	"testing"
)

func TestSubstitute(t *testing.T) {
	tests := []struct {
		name    string
		content string
		row     Row
		want    string
	}{
		{"case insensitive", "Hello {{Name}}", Row{"name": "Ann"}, "Hello Ann"},
		{"every occurrence", "{{a}} and {{A}}", Row{"a": "x"}, "x and x"},
		{"unknown placeholder untouched", "{{unknown}}", Row{"other": "x"}, "{{unknown}}"},
		{"empty value", "[{{a}}]", Row{"a": ""}, "[]"},
		{"metacharacters in key", "{{a.b}} {{axb}}", Row{"a.b": "1"}, "1 {{axb}}"},
		{"dollar in value is literal", "{{price}}", Row{"price": "$1 $&"}, "$1 $&"},
		{"split by markup not matched", "{{<b>name</b>}}", Row{"name": "Ann"}, "{{<b>name</b>}}"},
		{"nil row", "{{a}}", nil, "{{a}}"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Substitute(tt.content, tt.row); got != tt.want {
				t.Errorf("Substitute() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSubstitute_Idempotent(t *testing.T) {
	row := Row{"name": "Ann", "city": "Oslo"}
	s := "<p>{{name}} lives in {{CITY}}, see {{other}}</p>"

	once := Substitute(s, row)
	twice := Substitute(once, row)
	if once != twice {
		t.Errorf("Substitute not idempotent: %q vs %q", once, twice)
	}
}

func TestSubstitute_Deterministic(t *testing.T) {
	row := Row{"a": "{{b}}", "b": "B"}
	first := Substitute("{{a}}", row)
	for i := 0; i < 20; i++ {
		if got := Substitute("{{a}}", row); got != first {
			t.Fatalf("Substitute() = %q on run %d, first run gave %q", got, i, first)
		}
	}
}

func TestSubstituter_Apply(t *testing.T) {
	rows := []Row{
		{"name": "Ann", "city": "Oslo"},
		{"name": "Bo"},
		{"name": "Cy", "city": "Rome"},
	}
	sub := NewSubstituter(RowKeys(rows...))
	if len(sub.patterns) != 2 {
		t.Fatalf("compiled %d patterns, want 2", len(sub.patterns))
	}

	content := "{{Name}} from {{city}}"
	for i, row := range rows {
		if got, want := sub.Apply(content, row), Substitute(content, row); got != want {
			t.Errorf("row %d: Apply() = %q, want %q", i, got, want)
		}
	}
	if got := sub.Apply(content, rows[1]); got != "Bo from {{city}}" {
		t.Errorf("Apply() = %q, want missing key left untouched", got)
	}
	if got := sub.Apply(content, Row{"zip": "1"}); got != content {
		t.Errorf("Apply() = %q, want unknown keys ignored", got)
	}
}

func TestNewSubstituter_Dedupes(t *testing.T) {
	sub := NewSubstituter([]string{"b", "a", "b"})
	if strings.Join(sub.keys, ",") != "a,b" {
		t.Errorf("keys = %v, want [a b]", sub.keys)
	}
}

func TestShell(t *testing.T) {
	out := Shell("<p>Hi</p>", PaperLegal)

	for _, want := range []string{
		`<div class="pdf-export-container">`,
		"<p>Hi</p>",
		`<meta name="paper-size" content="legal">`,
		"@page { size: legal; }",
		"width: 8.5in",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("Shell() missing %q", want)
		}
	}

	if Shell("<p>x</p>", PaperA4) != Shell("<p>x</p>", PaperA4) {
		t.Error("Shell() should be deterministic")
	}
	if strings.Contains(Shell("x", ""), "@page") {
		t.Error("Shell() with no paper size should not set @page")
	}
}
