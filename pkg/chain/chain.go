// Package chain sequences services, short-circuiting on the first failure.
//
// Each call to Chain invokes the given step function at most once, strictly in
// call order, and only while the chain has not failed. A step returns either a
// completed service (Service) or a plain outcome (Signal):
//
//	c := chain.New().
//	    Chain(ctx, func(ctx context.Context, c *chain.Chain, _ service.Outcome) chain.Step {
//	        return chain.Service(validate.Run(ctx, c.Params()))
//	    }).
//	    Chain(ctx, func(ctx context.Context, c *chain.Chain, prev service.Outcome) chain.Step {
//	        return chain.Service(create.Run(ctx, c.Params()))
//	    })
//	if c.Failed() {
//	    return c.Err()
//	}
//
// Services are appended to Steps, signals only change the aggregate outcome.
// Errors and Err delegate to the last appended service.
package chain

import (
	"context"
	"log/slog"
	"slices"

	"github.com/bbservices/bbservices/internal/log"
	"github.com/bbservices/bbservices/pkg/service"
	"github.com/google/uuid"
)

// StepFunc is one step of a chain. It receives the chain and the last
// appended service, nil when there is none yet.
type StepFunc func(ctx context.Context, c *Chain, prev service.Outcome) Step

// Chain holds the services ran by its steps. A Chain is not safe for
// concurrent use.
type Chain struct {
	id         string
	params     service.Params
	steps      []service.Outcome
	successful *bool
}

// Option configures a Chain.
type Option func(*Chain)

// WithParams sets the parameters shared by every step.
func WithParams(params service.Params) Option {
	return func(c *Chain) { c.params = params }
}

// WithID overrides the generated chain identifier.
func WithID(id string) Option {
	return func(c *Chain) { c.id = id }
}

// New returns an empty chain.
func New(opts ...Option) *Chain {
	c := &Chain{}
	for _, opt := range opts {
		opt(c)
	}
	if c.id == "" {
		c.id = uuid.NewString()
	}
	return c
}

// Start returns a new chain with params after running its first step.
func Start(ctx context.Context, params service.Params, fn StepFunc) *Chain {
	return New(WithParams(params)).Chain(ctx, fn)
}

// Chain invokes fn unless the chain already failed.
func (c *Chain) Chain(ctx context.Context, fn StepFunc) *Chain {
	if c.Failed() {
		slog.DebugContext(ctx, "chain failed: skipping step", "chain_id", c.id, "steps", len(c.steps))
		return c
	}
	if fn == nil {
		return c
	}

	ctx = log.ContextAttrs(ctx, slog.String("chain_id", c.id))
	step := fn(ctx, c, c.Previous())
	ok := step.signal
	if step.outcome != nil {
		c.steps = append(c.steps, step.outcome)
		ok = step.outcome.Succeeded()
	}
	c.successful = &ok
	slog.DebugContext(ctx, "chain step completed", "service", IsService(step), "successful", ok)
	return c
}

// ID returns the chain identifier.
func (c *Chain) ID() string { return c.id }

// Params returns the parameters shared by the steps.
func (c *Chain) Params() service.Params { return c.params }

// Steps returns the appended services in order.
func (c *Chain) Steps() []service.Outcome { return slices.Clone(c.steps) }

// Len returns the number of appended services.
func (c *Chain) Len() int { return len(c.steps) }

// Previous returns the last appended service or nil.
func (c *Chain) Previous() service.Outcome {
	if len(c.steps) == 0 {
		return nil
	}
	return c.steps[len(c.steps)-1]
}

// Successful reports the aggregate outcome. It is false until a step
// completed.
func (c *Chain) Successful() bool {
	return c.successful != nil && *c.successful
}

// Succeeded is an alias of Successful.
func (c *Chain) Succeeded() bool { return c.Successful() }

// Failed reports whether a completed step failed. An empty chain has not
// failed.
func (c *Chain) Failed() bool {
	return c.successful != nil && !*c.successful
}

// Determined reports whether any step completed.
func (c *Chain) Determined() bool { return c.successful != nil }

// Success calls fn when the chain succeeded.
func (c *Chain) Success(fn func(*Chain)) *Chain {
	if fn != nil && c.Successful() {
		fn(c)
	}
	return c
}

// Failure calls fn when the chain failed.
func (c *Chain) Failure(fn func(*Chain)) *Chain {
	if fn != nil && c.Failed() {
		fn(c)
	}
	return c
}

// On calls success when the chain succeeded and failure otherwise.
func (c *Chain) On(success, failure func(*Chain)) *Chain {
	cb := failure
	if c.Successful() {
		cb = success
	}
	if cb != nil {
		cb(c)
	}
	return c
}

// Errors returns the errors of the last appended service.
func (c *Chain) Errors() []error {
	if prev := c.Previous(); prev != nil {
		return prev.Errors()
	}
	return []error{}
}

// Err returns the first error of the last appended service or nil.
func (c *Chain) Err() error {
	if prev := c.Previous(); prev != nil {
		return prev.Err()
	}
	return nil
}

// HasErrors reports whether the last appended service recorded an error.
func (c *Chain) HasErrors() bool {
	return c.Err() != nil
}
