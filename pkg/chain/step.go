package chain

import (
	"context"
	"reflect"

	"github.com/bbservices/bbservices/pkg/service"
)

// Step is the result of a StepFunc: either a completed service or a signal.
// The zero Step is a failed signal.
type Step struct {
	outcome service.Outcome
	signal  bool
}

// Service returns a step carrying a completed service. A nil service is a
// failed signal.
func Service(s service.Outcome) Step {
	if isNil(s) {
		return Step{}
	}
	return Step{outcome: s}
}

// Signal returns a step carrying a plain outcome. The chain records the
// outcome but appends nothing.
func Signal(ok bool) Step {
	return Step{signal: ok}
}

// IsService reports whether the step carries a service.
func IsService(s Step) bool {
	return s.outcome != nil
}

// Outcome returns the service carried by the step, nil for a signal.
func (s Step) Outcome() service.Outcome { return s.outcome }

// Then adapts fn, which only needs the previous service, to a StepFunc.
func Then(fn func(ctx context.Context, prev service.Outcome) service.Outcome) StepFunc {
	return func(ctx context.Context, _ *Chain, prev service.Outcome) Step {
		return Service(fn(ctx, prev))
	}
}

// isNil catches typed nil pointers stored in the interface.
func isNil(s service.Outcome) bool {
	if s == nil {
		return true
	}
	v := reflect.ValueOf(s)
	return v.Kind() == reflect.Pointer && v.IsNil()
}
