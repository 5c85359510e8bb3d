package main

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDotenv(t *testing.T) {
	dir := t.TempDir()

	t.Run("missing file", func(t *testing.T) {
		if err := loadDotenv(filepath.Join(dir, "absent.env")); err != nil {
			t.Errorf("loadDotenv() error = %v, want nil", err)
		}
	})

	t.Run("sets unset variables", func(t *testing.T) {
		path := filepath.Join(dir, "render.env")
		if err := os.WriteFile(path, []byte("DOCGEN_TEST_DRIVER=chrome\n"), 0o644); err != nil {
			t.Fatal(err)
		}
		t.Setenv("DOCGEN_TEST_DRIVER", "")
		os.Unsetenv("DOCGEN_TEST_DRIVER")

		if err := loadDotenv(path); err != nil {
			t.Fatalf("loadDotenv() error = %v", err)
		}
		if got := os.Getenv("DOCGEN_TEST_DRIVER"); got != "chrome" {
			t.Errorf("DOCGEN_TEST_DRIVER = %q, want chrome", got)
		}
	})

	t.Run("unreadable path", func(t *testing.T) {
		// A directory exists but cannot be parsed as an env file.
		if err := loadDotenv(dir); err == nil {
			t.Error("loadDotenv() error = nil for a directory")
		}
	})
}

func TestEnvOr(t *testing.T) {
	t.Setenv("DOCGEN_TEST_LEVEL", "debug")
	if got := envOr("DOCGEN_TEST_LEVEL", "info"); got != "debug" {
		t.Errorf("envOr() = %q, want debug", got)
	}
	t.Setenv("DOCGEN_TEST_LEVEL", "")
	if got := envOr("DOCGEN_TEST_LEVEL", "info"); got != "info" {
		t.Errorf("envOr() = %q, want info", got)
	}
}
