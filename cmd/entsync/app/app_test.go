package app

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/viper"

	"github.com/agentstation/entsync/pkg/errors"
)

func testdata(t *testing.T, name string) string {
	t.Helper()
	path, err := filepath.Abs(filepath.Join("..", "cmd", "testdata", name))
	if err != nil {
		t.Fatalf("resolving %s: %v", name, err)
	}
	return path
}

// isolate runs the test in an empty directory with an empty home so no
// config file or .env leaks in.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("HOME", t.TempDir())
	t.Chdir(dir)
	return dir
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var buf bytes.Buffer
	a := New("1.0.0", "abc123", "2025-01-01", WithOutput(&buf), WithViper(viper.New()))
	err := a.Execute(context.Background(), args)
	return buf.String(), err
}

// TestApp_New verifies app initialization.
func TestApp_New(t *testing.T) {
	a := New("1.0.0", "abc123", "2025-01-01")

	if a.Version() != "1.0.0" {
		t.Errorf("Version() = %s, want 1.0.0", a.Version())
	}
	if a.Commit() != "abc123" {
		t.Errorf("Commit() = %s, want abc123", a.Commit())
	}
	if a.Date() != "2025-01-01" {
		t.Errorf("Date() = %s, want 2025-01-01", a.Date())
	}
	if a.Logger() == nil {
		t.Error("Logger() returned nil")
	}
	if a.Config() == nil {
		t.Error("Config() returned nil")
	}
}

// TestApp_SchemaRequiresPath verifies Schema fails without a configured file.
func TestApp_SchemaRequiresPath(t *testing.T) {
	a := New("1.0.0", "abc123", "2025-01-01")

	_, err := a.Schema()
	if err == nil {
		t.Fatal("Schema() succeeded without a schema file")
	}
	if !errors.IsConfigError(err) {
		t.Errorf("Schema() error = %v, want a config error", err)
	}
}

// TestApp_SchemaCached verifies the schema is loaded once.
func TestApp_SchemaCached(t *testing.T) {
	a := New("1.0.0", "abc123", "2025-01-01")
	a.config.Schema = testdata(t, "schema.yaml")

	s1, err := a.Schema()
	if err != nil {
		t.Fatalf("Schema() failed: %v", err)
	}
	s2, err := a.Schema()
	if err != nil {
		t.Fatalf("Schema() failed on second call: %v", err)
	}
	if s1 != s2 {
		t.Error("Schema() returned different instances")
	}
}

// TestExecute_Diff runs a diff through the full command tree.
func TestExecute_Diff(t *testing.T) {
	edited, stored, schemaFile := testdata(t, "edited.yaml"), testdata(t, "stored.yaml"), testdata(t, "schema.yaml")
	isolate(t)

	out, err := run(t, "diff", "-s", schemaFile, "-o", "json", edited, stored)
	if err != nil {
		t.Fatalf("diff failed: %v", err)
	}
	if !strings.Contains(out, `"$ref": "t1"`) && !strings.Contains(out, `"$ref":"t1"`) {
		t.Errorf("diff output missing update of t1:\n%s", out)
	}
}

// TestExecute_ConfigFile verifies settings are read from .entsync.yaml.
func TestExecute_ConfigFile(t *testing.T) {
	schemaFile := testdata(t, "schema.yaml")
	dir := isolate(t)

	content := "schema: " + schemaFile + "\noutput: yaml\n"
	if err := os.WriteFile(filepath.Join(dir, ".entsync.yaml"), []byte(content), 0o644); err != nil {
		t.Fatalf("writing config: %v", err)
	}

	out, err := run(t, "classify")
	if err != nil {
		t.Fatalf("classify failed: %v", err)
	}
	if !strings.Contains(out, "title:") {
		t.Errorf("classify output is not YAML:\n%s", out)
	}
}

// TestExecute_Environment verifies ENTSYNC_ variables configure the CLI.
func TestExecute_Environment(t *testing.T) {
	schemaFile := testdata(t, "schema.yaml")
	isolate(t)
	t.Setenv("ENTSYNC_SCHEMA", schemaFile)
	t.Setenv("ENTSYNC_OUTPUT", "md")

	out, err := run(t, "classify")
	if err != nil {
		t.Fatalf("classify failed: %v", err)
	}
	if !strings.Contains(out, "# Field classifications") {
		t.Errorf("classify output is not markdown:\n%s", out)
	}
}

// TestExecute_InvalidOutput verifies an unknown format is rejected.
func TestExecute_InvalidOutput(t *testing.T) {
	isolate(t)

	if _, err := run(t, "version", "-o", "xml"); err == nil {
		t.Error("expected an error for output format xml")
	}
}

// TestExecute_Version verifies version output goes to the configured writer.
func TestExecute_Version(t *testing.T) {
	isolate(t)

	out, err := run(t, "version")
	if err != nil {
		t.Fatalf("version failed: %v", err)
	}
	if !strings.Contains(out, "entsync version 1.0.0") {
		t.Errorf("version output = %q", out)
	}
}
