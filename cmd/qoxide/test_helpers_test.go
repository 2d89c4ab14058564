package main

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"
)

type cliEnv struct {
	dbPath string
	home   string
}

func setupCLIEnv(t *testing.T) *cliEnv {
	t.Helper()
	base := t.TempDir()
	home := filepath.Join(base, "home")
	t.Setenv("HOME", home)
	t.Setenv("QOXIDE_DB", "")
	t.Setenv("QOXIDE_POSTGRES_DSN", "")
	return &cliEnv{dbPath: filepath.Join(base, "queue.db"), home: home}
}

// run executes the CLI against the env database.
func (e *cliEnv) run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	return runCLI(t, append([]string{"--db", e.dbPath}, args...))
}

func runCLI(t *testing.T, args []string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}

func lines(output string) []string {
	return strings.Split(strings.TrimRight(output, "\n"), "\n")
}
