// Package workflow executes workflow definitions as chains of services.
//
// Every command step is a service built from a Blueprint running the command
// through internal/runner. Steps are sequenced with a chain.Chain: the first
// failed step halts the workflow and the remaining steps are reported as
// skipped. A step with allow_failure continues the chain as a successful
// signal while its failure is still recorded in the report.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/bbservices/bbservices/internal/log"
	"github.com/bbservices/bbservices/internal/model"
	"github.com/bbservices/bbservices/internal/runner"
	"github.com/bbservices/bbservices/pkg/chain"
	"github.com/bbservices/bbservices/pkg/service"
	"golang.org/x/sync/errgroup"
)

var ErrWorkflowFailed = errors.New("workflow failed")

// Workflow is a compiled workflow definition. It can be run many times.
type Workflow struct {
	def     model.Workflow
	runner  runner.Runner
	timeout time.Duration
	steps   []step
}

type step struct {
	name         string
	signal       *bool
	allowFailure bool
	blueprint    *service.Blueprint[runner.Result]
}

// Option configures a Workflow.
type Option func(*Workflow)

// WithRunner sets the runner executing command steps.
func WithRunner(r runner.Runner) Option {
	return func(w *Workflow) { w.runner = r }
}

// WithDefaultTimeout applies to the steps without a timeout.
func WithDefaultTimeout(d time.Duration) Option {
	return func(w *Workflow) { w.timeout = d }
}

// New compiles def into a runnable Workflow.
func New(def model.Workflow, opts ...Option) (*Workflow, error) {
	if err := def.Validate(); err != nil {
		return nil, fmt.Errorf("workflow %s: %w", def.Name, err)
	}
	w := &Workflow{def: def}
	for _, opt := range opts {
		opt(w)
	}

	w.steps = make([]step, 0, len(def.Steps))
	for _, s := range def.Steps {
		st := step{name: s.Name, signal: s.Signal, allowFailure: s.AllowFailure}
		if s.Command != nil {
			cmd, err := w.command(*s.Command)
			if err != nil {
				return nil, fmt.Errorf("workflow %s: step %s: %w", def.Name, s.Name, err)
			}
			st.blueprint = service.Define(s.Name, w.routine(cmd), service.WithClass(service.ClassOf[runner.Result]()))
		}
		w.steps = append(w.steps, st)
	}
	return w, nil
}

func (w *Workflow) command(c model.Command) (runner.Command, error) {
	timeout, err := c.TimeoutDuration()
	if err != nil {
		return runner.Command{}, err
	}
	if timeout == 0 {
		timeout = w.timeout
	}
	return runner.Command{
		Path:    c.Path,
		Args:    c.Args,
		Env:     runner.Env(c.Env),
		Dir:     c.Dir,
		Timeout: timeout,
	}, nil
}

// routine runs cmd with the service params exported to its environment.
func (w *Workflow) routine(cmd runner.Command) service.Routine[runner.Result] {
	return service.RoutineFunc[runner.Result](func(ctx context.Context, s *service.Service[runner.Result]) error {
		cmd := cmd
		cmd.Env = append(slices.Clone(cmd.Env), ParamsEnv(s.Params())...)
		return runner.Routine(w.runner, cmd).Work(ctx, s)
	})
}

// ParamsEnv returns params as BBS_PARAM_<KEY>=value pairs sorted by key.
func ParamsEnv(params service.Params) []string {
	env := make([]string, 0, len(params))
	for _, k := range slices.Sorted(maps.Keys(params)) {
		env = append(env, model.ParamEnvKey(k)+"="+fmt.Sprint(params[k]))
	}
	return env
}

// Name returns the workflow name.
func (w *Workflow) Name() string { return w.def.Name }

// Schedule returns the workflow schedule, empty when unscheduled.
func (w *Workflow) Schedule() string { return w.def.Schedule }

// Run executes the steps in order and reports the outcome of each of them.
func (w *Workflow) Run(ctx context.Context) model.Report {
	c := chain.New(chain.WithParams(service.Params(w.def.Params)))
	ctx = log.ContextAttrs(ctx, slog.Group("workflow",
		slog.String("name", w.def.Name),
		slog.String("run_id", c.ID()),
	))
	slog.InfoContext(ctx, "workflow started", "steps", len(w.steps))

	report := model.Report{
		ID:       c.ID(),
		Workflow: w.def.Name,
		Source:   w.def.Source,
		Started:  time.Now().UTC(),
		Steps:    make([]model.StepReport, 0, len(w.steps)),
	}
	for _, st := range w.steps {
		sr := model.StepReport{Name: st.name, Status: model.StepSkipped}
		c.Chain(ctx, func(ctx context.Context, c *chain.Chain, _ service.Outcome) chain.Step {
			return w.step(ctx, c, st, &sr)
		})
		report.Steps = append(report.Steps, sr)
	}
	report.Stopped = time.Now().UTC()
	report.Successful = c.Successful()

	if report.Successful {
		slog.InfoContext(ctx, "workflow succeeded", "duration", report.Stopped.Sub(report.Started))
	} else {
		slog.ErrorContext(ctx, "workflow failed", "failed", report.Failed(), "error", c.Err())
	}
	return report
}

func (w *Workflow) step(ctx context.Context, c *chain.Chain, st step, sr *model.StepReport) chain.Step {
	if st.signal != nil {
		sr.Status = model.StepSignal
		if !*st.signal {
			sr.Status = model.StepFailed
			sr.Errors = []string{"signal false"}
		}
		return chain.Signal(*st.signal)
	}

	svc := st.blueprint.Run(ctx, c.Params())
	res := svc.Object()
	sr.ID = svc.ID()
	sr.ExitCode = res.ExitCode
	sr.Duration = res.Duration()
	if res.Stdout != nil {
		sr.Stdout = res.Stdout.String()
	}
	for _, err := range svc.Errors() {
		sr.Errors = append(sr.Errors, err.Error())
	}
	sr.Stderr = res.Stderr

	switch {
	case svc.Succeeded():
		sr.Status = model.StepSucceeded
	case st.allowFailure:
		sr.Status = model.StepAllowedFailure
		slog.WarnContext(ctx, "step failed: continuing", "step", st.name, "error", svc.Err())
		return chain.Signal(true)
	default:
		sr.Status = model.StepFailed
	}
	return chain.Service(svc)
}

// RunAll runs workflows concurrently, at most limit at once when limit is
// positive. Reports are returned in the order of workflows. The error wraps
// ErrWorkflowFailed and names every failed workflow.
func RunAll(ctx context.Context, limit int, workflows ...*Workflow) ([]model.Report, error) {
	reports := make([]model.Report, len(workflows))
	var g errgroup.Group
	if limit > 0 {
		g.SetLimit(limit)
	}
	for i, w := range workflows {
		g.Go(func() error {
			reports[i] = w.Run(ctx)
			return nil
		})
	}
	_ = g.Wait() // goroutines do not return an error

	var failed []string
	for _, r := range reports {
		if !r.Successful {
			failed = append(failed, r.Workflow)
		}
	}
	if len(failed) > 0 {
		return reports, fmt.Errorf("%w: %s", ErrWorkflowFailed, strings.Join(failed, ", "))
	}
	return reports, nil
}
