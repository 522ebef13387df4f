package service

import (
	"context"
	"log/slog"
	"runtime/debug"
	"slices"

	"github.com/bbservices/bbservices/internal/log"
	"github.com/google/uuid"
)

// Outcome is the read side of a service, independent of its produced type.
// It is what a chain records and inspects.
type Outcome interface {
	ID() string
	Name() string
	Ran() bool
	Succeeded() bool
	Failed() bool
	Errors() []error
	Err() error
}

// Callback is invoked with the service once its lifecycle completed.
type Callback[T any] func(s *Service[T])

// Service is a unit of work producing a value of type T. A Service is not
// safe for concurrent use.
type Service[T any] struct {
	id        string
	name      string
	blueprint *Blueprint[T]
	routine   Routine[T]

	params Params
	class  Class
	object T

	ran        bool
	successful bool
	errs       []error
}

type options struct {
	id     string
	name   string
	params Params
	class  Class
}

// Option configures a Service or a Blueprint.
type Option func(*options)

// WithParams sets the service parameters.
func WithParams(params Params) Option {
	return func(o *options) { o.params = params }
}

// WithClass sets the class. Given to a Blueprint it becomes the default for
// every instance, given to an instance it is the instance override.
func WithClass(class Class) Option {
	return func(o *options) { o.class = class }
}

// WithName overrides the name used in logs.
func WithName(name string) Option {
	return func(o *options) { o.name = name }
}

// WithID overrides the generated instance identifier.
func WithID(id string) Option {
	return func(o *options) { o.id = id }
}

func apply(opts []Option) options {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// New returns a service which will execute routine. A nil routine succeeds
// without doing anything.
func New[T any](routine Routine[T], opts ...Option) *Service[T] {
	return newService(nil, routine, apply(opts))
}

func newService[T any](bp *Blueprint[T], routine Routine[T], o options) *Service[T] {
	id := o.id
	if id == "" {
		id = uuid.NewString()
	}
	name := o.name
	if name == "" && bp != nil {
		name = bp.name
	}
	if name == "" {
		name = "service"
	}
	return &Service[T]{
		id:        id,
		name:      name,
		blueprint: bp,
		routine:   routine,
		params:    o.params,
		class:     o.class,
	}
}

// Run drives the lifecycle: the initialize hook, then the work routine.
// Errors and panics of the routine are recorded on the service, they never
// escape Run. Callbacks are called once the lifecycle completed, whatever
// its outcome.
//
// Run on a service which already ran does nothing.
func (s *Service[T]) Run(ctx context.Context, callbacks ...Callback[T]) *Service[T] {
	if s.ran {
		slog.WarnContext(ctx, "service already ran: ignoring", "service", s.name, "service_id", s.id)
		return s
	}
	ctx = s.begin(ctx)
	defer s.call(callbacks)

	if err := s.execute(ctx); err != nil {
		s.fail(ctx, err)
		return s
	}
	s.done(ctx)
	return s
}

// RunE drives the same lifecycle as Run, but returns the routine error after
// recording it. Callbacks are only called when the routine returned no error.
func (s *Service[T]) RunE(ctx context.Context, callbacks ...Callback[T]) (*Service[T], error) {
	if s.ran {
		return s, ErrAlreadyRan
	}
	ctx = s.begin(ctx)

	if err := s.execute(ctx); err != nil {
		s.fail(ctx, err)
		return s, err
	}
	s.done(ctx)
	s.call(callbacks)
	return s, nil
}

func (s *Service[T]) begin(ctx context.Context) context.Context {
	s.ran = true
	ctx = log.ContextAttrs(ctx, slog.Group("service",
		slog.String("name", s.name),
		slog.String("id", s.id),
	))
	slog.DebugContext(ctx, "running service")
	return ctx
}

func (s *Service[T]) execute(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Value: r, Stack: debug.Stack()}
		}
	}()

	routine := s.routine
	if routine == nil {
		routine = noop[T]{}
	}
	if init, ok := routine.(Initializer[T]); ok {
		if err := init.Initialize(ctx, s); err != nil {
			return err
		}
	}
	return routine.Work(ctx, s)
}

func (s *Service[T]) fail(ctx context.Context, err error) {
	s.successful = false
	s.errs = append(s.errs, err)
	slog.DebugContext(ctx, "service failed", "error", err)
}

func (s *Service[T]) done(ctx context.Context) {
	slog.DebugContext(ctx, "service completed", "succeeded", s.Succeeded())
}

func (s *Service[T]) call(callbacks []Callback[T]) {
	for _, cb := range callbacks {
		if cb != nil {
			cb(s)
		}
	}
}

// ID returns the instance identifier.
func (s *Service[T]) ID() string { return s.id }

// Name returns the service name.
func (s *Service[T]) Name() string { return s.name }

// Ran reports whether the lifecycle was driven.
func (s *Service[T]) Ran() bool { return s.ran }

// Succeeded reports whether the service ran, was marked successful and
// recorded no error.
func (s *Service[T]) Succeeded() bool {
	return s.ran && s.successful && len(s.errs) == 0
}

// Successful is an alias of Succeeded.
func (s *Service[T]) Successful() bool { return s.Succeeded() }

// Failed reports whether the service ran without succeeding. A service which
// has not run yet is neither succeeded nor failed.
func (s *Service[T]) Failed() bool {
	return s.ran && !s.Succeeded()
}

// Success calls fn when the service succeeded.
func (s *Service[T]) Success(fn Callback[T]) *Service[T] {
	if fn != nil && s.Succeeded() {
		fn(s)
	}
	return s
}

// Failure calls fn when the service failed.
func (s *Service[T]) Failure(fn Callback[T]) *Service[T] {
	if fn != nil && s.Failed() {
		fn(s)
	}
	return s
}

// On calls success when the service succeeded and failure otherwise,
// including when it did not run yet.
func (s *Service[T]) On(success, failure Callback[T]) *Service[T] {
	cb := failure
	if s.Succeeded() {
		cb = success
	}
	if cb != nil {
		cb(s)
	}
	return s
}

// Object returns the produced value. It may be partially initialized when the
// service failed.
func (s *Service[T]) Object() T { return s.object }

// Errors returns the recorded errors in the order they occurred.
func (s *Service[T]) Errors() []error { return slices.Clone(s.errs) }

// Err returns the first recorded error or nil.
func (s *Service[T]) Err() error {
	if len(s.errs) == 0 {
		return nil
	}
	return s.errs[0]
}

// HasErrors reports whether any error was recorded.
func (s *Service[T]) HasErrors() bool { return len(s.errs) > 0 }

// Params returns the service parameters.
func (s *Service[T]) Params() Params { return s.params }

// SetParams replaces the service parameters.
func (s *Service[T]) SetParams(params Params) { s.params = params }

// Param returns the parameter stored under key.
func (s *Service[T]) Param(key string) (any, bool) {
	if s.params == nil {
		return nil, false
	}
	v, ok := s.params[key]
	return v, ok
}

// ParamFor returns the parameter stored under key or nil.
func (s *Service[T]) ParamFor(key string) any {
	v, _ := s.Param(key)
	return v
}

// HasParams reports whether any parameter was given.
func (s *Service[T]) HasParams() bool { return len(s.params) > 0 }

// NumberOfParams returns the number of parameters.
func (s *Service[T]) NumberOfParams() int { return len(s.params) }

// Class returns the instance class, or the blueprint default when unset.
func (s *Service[T]) Class() Class {
	if s.class != nil {
		return s.class
	}
	if s.blueprint != nil {
		return s.blueprint.class
	}
	return nil
}

// SetClass sets the instance class.
func (s *Service[T]) SetClass(class Class) { s.class = class }

// SetObject assigns the produced value. Meant to be called by routines.
func (s *Service[T]) SetObject(obj T) { s.object = obj }

// SetSuccessful sets the success flag. Meant to be called by routines.
func (s *Service[T]) SetSuccessful(successful bool) { s.successful = successful }

// AddError records err without interrupting the routine. A service with a
// recorded error never succeeds.
func (s *Service[T]) AddError(err error) {
	if err == nil {
		return
	}
	s.errs = append(s.errs, err)
}
