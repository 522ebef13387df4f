package main

import (
	"bytes"
	"encoding/json"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/bbservices/bbservices/internal/config"
	"github.com/bbservices/bbservices/internal/model"
	"github.com/bbservices/bbservices/internal/workflow"
)

const helloWorkflow = `
version: 0
name: hello
params:
  who: gopher
steps:
  - name: greet
    command:
      path: SH
      args: ["-c", "echo hello $BBS_PARAM_WHO"]
  - name: gate
    signal: true
`

const failingWorkflow = `
version: 0
name: broken
steps:
  - name: fail
    command:
      path: SH
      args: ["-c", "exit 3"]
  - name: never
    signal: true
`

// execute runs the root command in process, with an empty settings file.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	dir := t.TempDir()
	settingsPath := filepath.Join(dir, "bbservices.yaml")
	require.NoError(t, os.WriteFile(settingsPath, []byte("parallelism: 2\n"), 0o600))
	t.Setenv(config.EnvConfig, settingsPath)

	var stdout bytes.Buffer
	cmd := newRootCmd(&stdout)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(t.Context())
	return stdout.String(), err
}

func writeWorkflow(t *testing.T, content string) string {
	t.Helper()
	sh, err := exec.LookPath("sh")
	if err != nil {
		t.Skipf("skipped, binary sh not available: %v", err)
	}
	path := filepath.Join(t.TempDir(), "workflow.yaml")
	require.NoError(t, os.WriteFile(path, []byte(strings.ReplaceAll(content, "SH", sh)), 0o600))
	return path
}

func TestValidate(t *testing.T) {
	path := writeWorkflow(t, helloWorkflow)
	out, err := execute(t, "validate", path)
	require.NoError(t, err)
	require.Equal(t, path+": ok (hello, 2 steps)\n", out)

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("version: 0\nname: x\nsteps: []\n"), 0o600))
	_, err = execute(t, "validate", path, bad)
	require.Error(t, err)
	require.ErrorContains(t, err, bad)
}

func TestRun(t *testing.T) {
	path := writeWorkflow(t, helloWorkflow)
	out, err := execute(t, "run", path)
	require.NoError(t, err)

	var report model.Report
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	require.Equal(t, "hello", report.Workflow)
	require.Equal(t, path, report.Source)
	require.True(t, report.Successful)
	require.Equal(t, "hello gopher\n", report.Steps[0].Stdout)
	require.Equal(t, model.StepSignal, report.Steps[1].Status)
}

func TestRun_Failed(t *testing.T) {
	path := writeWorkflow(t, failingWorkflow)
	out, err := execute(t, "run", "--format", "yaml", path)
	require.ErrorIs(t, err, workflow.ErrWorkflowFailed)
	require.Contains(t, out, "workflow: broken")
	require.Contains(t, out, "status: failed")
	require.Contains(t, out, "status: skipped")
}

func TestRun_ReportDir(t *testing.T) {
	path := writeWorkflow(t, helloWorkflow)
	dir := t.TempDir()
	t.Setenv("BBSERVICES_REPORT_DIR", dir)

	out, err := execute(t, "run", path)
	require.NoError(t, err)
	require.Empty(t, out)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.True(t, strings.HasPrefix(entries[0].Name(), "bbservices-hello-"))
}

func TestRun_NoArgs(t *testing.T) {
	_, err := execute(t, "run")
	require.Error(t, err)
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	require.Contains(t, out, "go:")
}

func TestRun_Dir(t *testing.T) {
	path := writeWorkflow(t, helloWorkflow)
	out, err := execute(t, "validate", filepath.Dir(path))
	require.NoError(t, err)
	require.Equal(t, path+": ok (hello, 2 steps)\n", out)
}
