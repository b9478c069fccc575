package cli

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/opencode-ai/cadence/internal/models"
	"github.com/stretchr/testify/require"
)

const quickSequence = `name: quick
description: Two fast steps
tags: [test]
variables:
  - name: who
    default: world
steps:
  - name: hello
    message: "hello {{.who}}"
  - name: bye
    delay: 10ms
    message: "bye {{.who}}"
`

func setupProject(t *testing.T) string {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	t.Setenv("NO_COLOR", "1")

	project := t.TempDir()
	dir := filepath.Join(project, ".cadence", "sequences")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "quick.yaml"), []byte(quickSequence), 0o644))
	return project
}

func executeCommand(t *testing.T, args ...string) (string, string, error) {
	t.Helper()

	var stdout, stderr bytes.Buffer
	rootCmd.SetOut(&stdout)
	rootCmd.SetErr(&stderr)
	rootCmd.SetIn(strings.NewReader(""))
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetIn(nil)
		rootCmd.SetArgs(nil)
	})

	err := rootCmd.Execute()
	return stdout.String(), stderr.String(), err
}

func TestSequencesListCommand(t *testing.T) {
	project := setupProject(t)

	out, _, err := executeCommand(t, "sequences", "list", "--project", project, "--no-history", "--log-level", "error")
	require.NoError(t, err)
	require.Contains(t, out, "quick")
	require.Contains(t, out, "coroutine-time")
	require.Contains(t, out, "+9s")
}

func TestSequencesShowCommand(t *testing.T) {
	project := setupProject(t)

	out, _, err := executeCommand(t, "sequences", "show", "coroutine-time", "--project", project, "--no-history", "--log-level", "error")
	require.NoError(t, err)
	require.Contains(t, out, "coroutine-time (concurrent)")
	require.Contains(t, out, "+4s")
	require.Contains(t, out, "+9s")
	require.Contains(t, out, "5 more seconds passed")

	_, _, err = executeCommand(t, "sequences", "show", "missing", "--project", project, "--no-history", "--log-level", "error")
	require.ErrorContains(t, err, "not found")
}

func TestRunCommandPrintsMessages(t *testing.T) {
	project := setupProject(t)

	out, stderr, err := executeCommand(t, "run", "quick", "--project", project, "--no-history", "--log-level", "error", "--var", "who=cadence")
	require.NoError(t, err)
	require.Equal(t, "[quick] hello cadence\n[quick] bye cadence\n", out)
	require.Contains(t, stderr, "completed")
}

func TestRunCommandRecordsHistory(t *testing.T) {
	project := setupProject(t)
	dbFile := filepath.Join(t.TempDir(), "history.db")

	_, _, err := executeCommand(t, "run", "quick", "--project", project, "--db", dbFile, "--no-history=false", "--log-level", "error", "--var", "who=db")
	require.NoError(t, err)

	out, _, err := executeCommand(t, "history", "--project", project, "--db", dbFile, "--no-history=false", "--log-level", "error", "--sequence", "quick")
	require.NoError(t, err)
	require.Contains(t, out, "quick")
	require.Contains(t, out, string(models.RunStateCompleted))

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)
	runID := strings.Fields(lines[1])[0]

	out, _, err = executeCommand(t, "history", runID, "--project", project, "--db", dbFile, "--no-history=false", "--log-level", "error", "--sequence", "")
	require.NoError(t, err)
	require.Contains(t, out, "run.started")
	require.Contains(t, out, "run.step")
	require.Contains(t, out, "run.completed")
}

// syncBuffer is a bytes.Buffer safe for a writer goroutine and a polling test.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestWatchCommandTriggersOnKey(t *testing.T) {
	project := setupProject(t)

	in, keys := io.Pipe()
	stdout := &syncBuffer{}
	stderr := &syncBuffer{}
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)
	rootCmd.SetIn(in)
	rootCmd.SetArgs([]string{"watch", "quick", "--project", project, "--no-history", "--log-level", "error"})
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetIn(nil)
		rootCmd.SetArgs(nil)
	})

	done := make(chan error, 1)
	go func() {
		done <- rootCmd.Execute()
	}()

	_, err := keys.Write([]byte(" "))
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		return strings.Contains(stdout.String(), "[quick] hello world")
	}, 5*time.Second, 5*time.Millisecond)

	require.NoError(t, keys.Close())
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watch did not exit after input closed")
	}
	require.Contains(t, stderr.String(), "to quit")
}

func TestRunCommandUnknownOutput(t *testing.T) {
	project := setupProject(t)
	t.Cleanup(func() { runOutput = outputText })

	_, _, err := executeCommand(t, "run", "quick", "--project", project, "--no-history", "--log-level", "error", "--output", "carrier-pigeon")
	require.ErrorContains(t, err, "unknown output")
}
