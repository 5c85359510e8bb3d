package core

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestMapError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode string
	}{
		{"nil error returns empty", nil, ""},
		{"not csv", fmt.Errorf("upload people.txt: %w", ErrNotCSV), "FILE002"},
		{"too large", ErrFileTooLarge, "FILE001"},
		{"malformed", fmt.Errorf("%w: record on line 3: wrong number of fields", ErrMalformedCSV), "FILE003"},
		{"empty", ErrEmptyFile, "FILE005"},
		{"duplicate variable", fmt.Errorf("add %q: %w", "name", ErrDuplicateVariable), "VAR001"},
		{"empty variable", ErrEmptyVariableName, "VAR002"},
		{"template missing", ErrTemplateNotFound, "TPL001"},
		{
			"render timeout wins over deadline",
			fmt.Errorf("%w: document_2.pdf: %w", ErrRenderTimeout, context.DeadlineExceeded),
			"RND002",
		},
		{"render failure", fmt.Errorf("%w: document_1.pdf: chrome crashed", ErrRenderFailed), "RND001"},
		{"busy", ErrTooManyExports, "EXP001"},
		{"plain deadline", context.DeadlineExceeded, "REQ002"},
		{"postgres down", errors.New("dial tcp 127.0.0.1:5432: connect: connection refused"), "STO001"},
		{"case insensitive", errors.New("MALFORMED CSV"), "FILE003"},
		{"unknown error returns default", errors.New("some random internal error"), "ERR000"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MapError(tt.err)
			if got.Code != tt.wantCode {
				t.Errorf("MapError() code = %q, want %q", got.Code, tt.wantCode)
			}
		})
	}
}

func TestFormatUserError(t *testing.T) {
	result := FormatUserError(ErrDuplicateVariable)

	expected := "A variable with this name already exists (Code: VAR001). Choose a different name"
	if result != expected {
		t.Errorf("FormatUserError() = %q, want %q", result, expected)
	}
	if got := FormatUserError(nil); got != "" {
		t.Errorf("FormatUserError(nil) = %q, want empty", got)
	}
}

func TestIsUserFacing(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil error is not user facing", nil, false},
		{"known error is user facing", ErrEmptyFile, true},
		{"unknown error is not user facing", errors.New("random internal error xyz"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsUserFacing(tt.err); got != tt.want {
				t.Errorf("IsUserFacing() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNewUserError(t *testing.T) {
	t.Run("nil error returns nil", func(t *testing.T) {
		if got := NewUserError(nil); got != nil {
			t.Errorf("NewUserError(nil) = %v, want nil", got)
		}
	})

	t.Run("wraps technical error with user message", func(t *testing.T) {
		techErr := fmt.Errorf("%w: document_4.pdf: boom", ErrRenderFailed)
		userErr := NewUserError(techErr)

		if userErr.Error() != "PDF generation failed" {
			t.Errorf("Error() = %q, want user message", userErr.Error())
		}
		if !errors.Is(userErr, ErrRenderFailed) {
			t.Error("Unwrap() should expose the original error chain")
		}
	})
}
