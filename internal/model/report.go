package model

import "time"

// StepStatus is the outcome of a single workflow step.
type StepStatus string

const (
	StepSucceeded      StepStatus = "succeeded"
	StepFailed         StepStatus = "failed"
	StepAllowedFailure StepStatus = "allowed_failure"
	StepSignal         StepStatus = "signal"
	StepSkipped        StepStatus = "skipped"
)

// Report describes one execution of a workflow.
type Report struct {
	ID         string       `json:"id" yaml:"id"`
	Workflow   string       `json:"workflow" yaml:"workflow"`
	Source     string       `json:"source,omitempty" yaml:"source,omitempty"`
	Successful bool         `json:"successful" yaml:"successful"`
	Started    time.Time    `json:"started" yaml:"started"`
	Stopped    time.Time    `json:"stopped" yaml:"stopped"`
	Steps      []StepReport `json:"steps" yaml:"steps"`
}

// StepReport describes one step of a workflow execution.
type StepReport struct {
	Name     string        `json:"name" yaml:"name"`
	ID       string        `json:"id,omitempty" yaml:"id,omitempty"`
	Status   StepStatus    `json:"status" yaml:"status"`
	ExitCode int           `json:"exit_code,omitempty" yaml:"exit_code,omitempty"`
	Duration time.Duration `json:"duration,omitempty" yaml:"duration,omitempty"`
	Stdout   string        `json:"stdout,omitempty" yaml:"stdout,omitempty"`
	Stderr   []string      `json:"stderr,omitempty" yaml:"stderr,omitempty"`
	Errors   []string      `json:"errors,omitempty" yaml:"errors,omitempty"`
}

// Failed returns the names of the failed steps.
func (r Report) Failed() []string {
	var names []string
	for _, s := range r.Steps {
		if s.Status == StepFailed {
			names = append(names, s.Name)
		}
	}
	return names
}
