package main

import (
	"bytes"
	"encoding/json"
	"os"
	"strings"
	"testing"

	"github.com/joshuapare/famkit/internal/config"
)

// useTempConfig points the global configuration at a fresh directory and
// resets the output flags.
func useTempConfig(t *testing.T) {
	t.Helper()
	cfg = config.Config{ShelfBase: t.TempDir(), ShelfUser: "tester", LogLevel: "info"}
	quiet = false
	verbose = false
	jsonOut = false
}

// captureOutput captures stdout while running a function
func captureOutput(t *testing.T, fn func() error) (string, error) {
	t.Helper()

	origStdout := os.Stdout
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("failed to create pipe: %v", err)
	}
	os.Stdout = w

	fnErr := fn()

	w.Close()
	os.Stdout = origStdout

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(r); err != nil {
		t.Fatalf("failed to read output: %v", err)
	}
	return buf.String(), fnErr
}

// assertJSON checks that output is valid JSON and decodes it into v
func assertJSON(t *testing.T, output string, v any) {
	t.Helper()
	if err := json.Unmarshal([]byte(output), v); err != nil {
		t.Errorf("output is not valid JSON: %v\nOutput: %s", err, output)
	}
}

// assertContains checks that output contains all expected strings
func assertContains(t *testing.T, output string, expected []string) {
	t.Helper()
	for _, exp := range expected {
		if !strings.Contains(output, exp) {
			t.Errorf("output missing expected string %q\nOutput: %s", exp, output)
		}
	}
}
