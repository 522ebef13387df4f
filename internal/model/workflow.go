package model

import (
	"errors"
	"fmt"
	"io"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/encoding/yaml"

	_ "embed"
)

//go:embed workflow.cue
var cueSource []byte

var (
	cueCtx *cue.Context
	schema cue.Value
)

func init() {
	if len(cueSource) == 0 {
		panic("variable cueSource is empty")
	}
	cueCtx = cuecontext.New()
	compiled := cueCtx.CompileBytes(cueSource, cue.Filename("workflow.cue"))
	if compiled.Err() != nil {
		panic(compiled.Err())
	}

	if err := compiled.Validate(); err != nil {
		panic(err)
	}

	schema = compiled.LookupPath(cue.ParsePath("#Workflow"))
	if schema.Err() != nil {
		panic(schema.Err())
	}
	if err := schema.Validate(); err != nil {
		panic(err)
	}
}

// Workflow is a named chain of steps.
type Workflow struct {
	Version  int            `json:"version" yaml:"version"` // fixed 0 for now
	Name     string         `json:"name" yaml:"name"`
	Schedule string         `json:"schedule,omitempty" yaml:"schedule,omitempty"`
	Params   map[string]any `json:"params,omitempty" yaml:"params,omitempty"`
	Steps    []Step         `json:"steps" yaml:"steps"`

	// Source is the file the workflow was loaded from, if any.
	Source string `json:"-" yaml:"-"`
}

// Step is either a command to execute or a plain signal.
type Step struct {
	Name         string   `json:"name" yaml:"name"`
	Command      *Command `json:"command,omitempty" yaml:"command,omitempty"`
	Signal       *bool    `json:"signal,omitempty" yaml:"signal,omitempty"`
	AllowFailure bool     `json:"allow_failure,omitempty" yaml:"allow_failure,omitempty"`
}

// Command describes a process to execute.
type Command struct {
	Path    string            `json:"path" yaml:"path"`
	Args    []string          `json:"args,omitempty" yaml:"args,omitempty"`
	Env     map[string]string `json:"env,omitempty" yaml:"env,omitempty"`
	Dir     string            `json:"dir,omitempty" yaml:"dir,omitempty"`
	Timeout string            `json:"timeout,omitempty" yaml:"timeout,omitempty"`
}

// TimeoutDuration parses Timeout. Zero means no timeout.
func (c Command) TimeoutDuration() (time.Duration, error) {
	if c.Timeout == "" {
		return 0, nil
	}
	return ParseDuration(c.Timeout)
}

// LoadWorkflow validates YAML from r against the CUE schema, decodes it and
// checks the constraints the schema can't express.
func LoadWorkflow(r io.Reader) (*Workflow, error) {
	return loadWorkflow("workflow.yaml", r)
}

// LoadWorkflowFile loads the workflow stored in path.
func LoadWorkflowFile(path string) (*Workflow, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening workflow file: %w", err)
	}
	defer func() {
		_ = f.Close()
	}()
	wf, err := loadWorkflow(filepath.Base(path), f)
	if err != nil {
		return nil, err
	}
	wf.Source = path
	return wf, nil
}

func loadWorkflow(name string, r io.Reader) (*Workflow, error) {
	yamlFile, err := yaml.Extract(name, r)
	if err != nil {
		return nil, err
	}
	yamlValue := cueCtx.BuildFile(yamlFile)

	unified := schema.Unify(yamlValue)
	if err := unified.Validate(
		cue.All(),          // all constraints
		cue.Concrete(true), // no incomplete values
	); err != nil {
		return nil, err
	}

	var out Workflow
	if err := unified.Decode(&out); err != nil {
		return nil, err
	}

	if err := out.Validate(); err != nil {
		return nil, err
	}
	return &out, nil
}

// ParamEnvKey returns the environment variable name carrying the param key.
func ParamEnvKey(key string) string {
	return ParamEnvPrefix + strings.ToUpper(paramKeyReplacer.Replace(key))
}

// ParamEnvPrefix prefixes the environment variables carrying workflow params.
const ParamEnvPrefix = "BBS_PARAM_"

var paramKeyReplacer = strings.NewReplacer("-", "_", ".", "_")

// Validate checks the rules the schema does not cover.
func (w Workflow) Validate() error {
	if w.Version != 0 {
		return fmt.Errorf("%w: %d", ErrUnsupportedVersion, w.Version)
	}
	if len(w.Steps) == 0 {
		return ErrNoSteps
	}

	var errs []error
	if w.Schedule != "" {
		if _, err := ParseSchedule(w.Schedule); err != nil {
			errs = append(errs, fmt.Errorf("schedule: %w", err))
		}
	}

	envKeys := make(map[string]string, len(w.Params))
	for _, k := range slices.Sorted(maps.Keys(w.Params)) {
		env := ParamEnvKey(k)
		if other, ok := envKeys[env]; ok {
			errs = append(errs, fmt.Errorf("params %q and %q: %w: %s", other, k, ErrParamCollision, env))
			continue
		}
		envKeys[env] = k
	}

	seen := make(map[string]struct{}, len(w.Steps))
	for i, step := range w.Steps {
		if _, ok := seen[step.Name]; ok {
			errs = append(errs, fmt.Errorf("steps[%d]: %w: %s", i, ErrDuplicateStep, step.Name))
		}
		seen[step.Name] = struct{}{}

		switch {
		case step.Command != nil && step.Signal != nil:
			errs = append(errs, fmt.Errorf("steps[%d] %s: %w", i, step.Name, ErrAmbiguousStep))
		case step.Command == nil && step.Signal == nil:
			errs = append(errs, fmt.Errorf("steps[%d] %s: %w", i, step.Name, ErrEmptyStep))
		case step.Command != nil:
			if _, err := step.Command.TimeoutDuration(); err != nil {
				errs = append(errs, fmt.Errorf("steps[%d] %s: timeout: %w", i, step.Name, err))
			}
		}
	}
	return errors.Join(errs...)
}
