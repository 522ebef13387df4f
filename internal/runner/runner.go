// Package runner executes processes and exposes them as service routines.
//
// Runner is a thin, opinionated wrapper around os/exec:
//   - starts the process with an optional timeout
//   - captures stdout
//   - captures the last lines of stderr, optionally streaming them to a callback
//   - waits for the process and returns a Result
//
// Routine turns a Command into a service.Routine whose produced object is the
// Result: the service succeeds iff the process exited with code 0.
package runner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"os"
	"os/exec"
	"slices"
	"strings"
	"time"
)

var (
	ErrNotStarted = errors.New("command not started")
	ErrNoPath     = errors.New("command path is empty")
)

// StderrFunc receives each line written to stderr.
type StderrFunc func(ctx context.Context, line string)

// Command describes a process to run.
type Command struct {
	Path    string
	Args    []string
	Env     []string
	Dir     string
	Timeout time.Duration
}

// Result is the outcome of a process execution.
type Result struct {
	Path     string
	Args     []string
	Started  time.Time
	Stopped  time.Time
	ExitCode int
	Stdout   *bytes.Buffer
	Stderr   []string
	Err      error
}

// Duration returns how long the process ran.
func (r Result) Duration() time.Duration {
	if r.Started.IsZero() || r.Stopped.IsZero() {
		return 0
	}
	return r.Stopped.Sub(r.Started)
}

// Runner runs commands. The zero value is usable.
type Runner struct {
	// Stderr, when set, receives stderr lines in addition to Result.Stderr.
	Stderr StderrFunc
	// MaxStderrLines bounds Result.Stderr, 0 means 100.
	MaxStderrLines int
}

// NotStarted returns the result of a command which never ran.
func NotStarted(cmd Command) Result {
	return Result{Path: cmd.Path, Args: cmd.Args, ExitCode: -1, Err: ErrNotStarted}
}

// Run executes cmd and waits for it. Result.Err is set when the process could
// not be started, was killed by the timeout or exited with a non zero code.
// The returned error is only set when the process could not be started.
func (r Runner) Run(ctx context.Context, proto Command) (Result, error) {
	result := Result{
		Path:     proto.Path,
		Args:     append([]string(nil), proto.Args...),
		ExitCode: -1,
	}
	if proto.Path == "" {
		result.Err = ErrNoPath
		return result, ErrNoPath
	}

	if proto.Timeout == 0 {
		slog.DebugContext(ctx, "command has no timeout", "path", proto.Path)
	} else {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, proto.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, result.Path, result.Args...)
	if len(proto.Env) > 0 {
		cmd.Env = append(os.Environ(), proto.Env...)
	}
	cmd.Dir = proto.Dir

	// bounds Wait when a killed process left children holding the pipes
	cmd.WaitDelay = time.Second
	stderr := r.lineWriter(ctx)
	cmd.Stderr = stderr
	var buf bytes.Buffer
	result.Stdout = &buf
	cmd.Stdout = &buf

	result.Started = time.Now().UTC()
	if err := cmd.Start(); err != nil {
		result.Stopped = time.Now().UTC()
		result.Err = err
		return result, err
	}

	err := cmd.Wait()
	result.Stopped = time.Now().UTC()
	result.Stderr = stderr.flush()
	if cmd.ProcessState != nil {
		result.ExitCode = cmd.ProcessState.ExitCode()
	}
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			err = fmt.Errorf("%w: %w", ctxErr, err)
		}
		result.Err = err
	}
	return result, nil
}

func (r Runner) lineWriter(ctx context.Context) *lineWriter {
	limit := r.MaxStderrLines
	if limit <= 0 {
		limit = 100
	}
	return &lineWriter{ctx: ctx, fn: r.Stderr, limit: limit}
}

// lineWriter splits stderr into lines, keeping the last limit ones. exec
// copies into it from a single goroutine, which is done once Wait returns.
type lineWriter struct {
	ctx     context.Context
	fn      StderrFunc
	limit   int
	partial []byte
	lines   []string
}

func (w *lineWriter) Write(p []byte) (int, error) {
	w.partial = append(w.partial, p...)
	for {
		i := bytes.IndexByte(w.partial, '\n')
		if i < 0 {
			break
		}
		w.line(string(bytes.TrimSuffix(w.partial[:i], []byte{'\r'})))
		w.partial = w.partial[i+1:]
	}
	return len(p), nil
}

func (w *lineWriter) line(line string) {
	if w.fn != nil {
		w.fn(w.ctx, line)
	}
	if len(w.lines) == w.limit {
		w.lines = w.lines[1:]
	}
	w.lines = append(w.lines, line)
}

func (w *lineWriter) flush() []string {
	if len(w.partial) > 0 {
		w.line(string(w.partial))
		w.partial = nil
	}
	return w.lines
}

// Env converts a map into KEY=value pairs sorted by key, expanding values
// starting with $.
func Env(m map[string]string) []string {
	env := make([]string, 0, len(m))
	for _, k := range slices.Sorted(maps.Keys(m)) {
		v := m[k]
		if strings.HasPrefix(v, "$") {
			v = os.ExpandEnv(v)
		}
		env = append(env, k+"="+v)
	}
	return env
}
