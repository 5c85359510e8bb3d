package templates

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/JonMunkholm/docmerge/internal/core"
)

func TestErrorAlert(t *testing.T) {
	tests := []struct {
		name           string
		message        string
		action         string
		code           string
		want, wantNone []string
	}{
		{
			name:    "all fields",
			message: "Template not found",
			action:  "Refresh the page",
			code:    "TPL001",
			want:    []string{`<p class="alert-message">Template not found</p>`, `<p class="alert-action">Refresh the page</p>`, `<span class="alert-code">TPL001</span>`},
		},
		{
			name:     "message only",
			message:  "Something went wrong",
			want:     []string{`<div class="alert alert-error" role="alert">`},
			wantNone: []string{"alert-action", "alert-code"},
		},
		{
			name:    "escapes markup",
			message: "<script>x</script>",
			want:    []string{"&lt;script&gt;x&lt;/script&gt;"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			if err := ErrorAlert(tt.message, tt.action, tt.code).Render(context.Background(), &buf); err != nil {
				t.Fatalf("Render() error = %v", err)
			}
			got := buf.String()
			for _, w := range tt.want {
				if !strings.Contains(got, w) {
					t.Errorf("output missing %q: %s", w, got)
				}
			}
			for _, w := range tt.wantNone {
				if strings.Contains(got, w) {
					t.Errorf("output contains %q: %s", w, got)
				}
			}
		})
	}
}

func TestDashboard(t *testing.T) {
	used := time.Date(2025, 3, 4, 9, 30, 0, 0, time.UTC)
	data := DashboardData{
		Templates: []core.Template{{
			Name:               "Offer <letter>",
			Description:        "Sent to new hires",
			PaperSize:          core.PaperA4,
			Variables:          []core.Variable{{Name: "name", Type: core.VariableCSV}},
			DocumentsGenerated: 3,
			LastUsed:           &used,
		}},
		Datasets: []*core.Dataset{{
			Name:       "hires.csv",
			UploadedAt: used,
			Statistics: core.Statistics{RowCount: 12, ColumnCount: 4, DataType: core.DataCategorical},
		}},
		Exports: core.ExportLimiterStatus{Active: 1, MaxConcurrent: 2},
		Query:   `a"b`,
	}

	var buf bytes.Buffer
	if err := Dashboard(data).Render(context.Background(), &buf); err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	got := buf.String()

	for _, want := range []string{
		"<!doctype html>",
		"Exports running: 1 of 2",
		"<strong>Offer &lt;letter&gt;</strong>",
		`<div class="muted">Sent to new hires</div>`,
		"<td>a4</td>",
		"<td>hires.csv</td>",
		"<td>12</td>",
		"Mar 4, 2025 09:30",
		`value="a&#34;b"`,
	} {
		if !strings.Contains(got, want) {
			t.Errorf("dashboard missing %q", want)
		}
	}
}

func TestDashboard_Empty(t *testing.T) {
	var buf bytes.Buffer
	if err := Dashboard(DashboardData{}).Render(context.Background(), &buf); err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	got := buf.String()
	for _, want := range []string{"No templates yet.", "No datasets uploaded."} {
		if !strings.Contains(got, want) {
			t.Errorf("dashboard missing %q", want)
		}
	}
}

func TestFormatTime(t *testing.T) {
	if got := formatTime(nil); got != "never" {
		t.Errorf("formatTime(nil) = %q, want never", got)
	}
	var zero time.Time
	if got := formatTime(&zero); got != "never" {
		t.Errorf("formatTime(zero) = %q, want never", got)
	}
}
