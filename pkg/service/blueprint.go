package service

import "context"

// Blueprint is the immutable definition of a kind of service. It replaces
// class level state: the default Class lives here and every instance built
// from the blueprint resolves to it unless overridden.
type Blueprint[T any] struct {
	name    string
	class   Class
	routine Routine[T]
}

// Define returns a blueprint named name executing routine. Only WithClass is
// meaningful here.
func Define[T any](name string, routine Routine[T], opts ...Option) *Blueprint[T] {
	o := apply(opts)
	return &Blueprint[T]{
		name:    name,
		class:   o.class,
		routine: routine,
	}
}

// Name returns the blueprint name.
func (b *Blueprint[T]) Name() string { return b.name }

// Class returns the default class.
func (b *Blueprint[T]) Class() Class { return b.class }

// New returns an unrun service. WithClass sets the instance override.
func (b *Blueprint[T]) New(params Params, opts ...Option) *Service[T] {
	o := apply(opts)
	if params != nil {
		o.params = params
	}
	return newService(b, b.routine, o)
}

// Run builds a service with params and runs it.
func (b *Blueprint[T]) Run(ctx context.Context, params Params, callbacks ...Callback[T]) *Service[T] {
	return b.New(params).Run(ctx, callbacks...)
}

// RunE builds a service with params and runs it with RunE.
func (b *Blueprint[T]) RunE(ctx context.Context, params Params, callbacks ...Callback[T]) (*Service[T], error) {
	return b.New(params).RunE(ctx, callbacks...)
}
