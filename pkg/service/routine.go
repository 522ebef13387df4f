package service

import "context"

// Routine is the work performed by a Service. It may assign the produced
// object and must mark the service successful via SetSuccessful once the work
// completed. Returning an error records it on the service.
type Routine[T any] interface {
	Work(ctx context.Context, s *Service[T]) error
}

// Initializer is an optional pre-work hook of a Routine, typically used to
// initialize the produced object before Work is called.
type Initializer[T any] interface {
	Initialize(ctx context.Context, s *Service[T]) error
}

// RoutineFunc adapts a function to a Routine.
type RoutineFunc[T any] func(ctx context.Context, s *Service[T]) error

func (f RoutineFunc[T]) Work(ctx context.Context, s *Service[T]) error {
	return f(ctx, s)
}

// Produce returns a Routine which assigns the value returned by fn as the
// service object and marks the service successful when fn returns no error.
func Produce[T any](fn func(ctx context.Context, params Params) (T, error)) Routine[T] {
	return RoutineFunc[T](func(ctx context.Context, s *Service[T]) error {
		obj, err := fn(ctx, s.Params())
		if err != nil {
			return err
		}
		s.SetObject(obj)
		s.SetSuccessful(true)
		return nil
	})
}

// noop is the default routine: it succeeds without side effects.
type noop[T any] struct{}

func (noop[T]) Work(_ context.Context, s *Service[T]) error {
	var zero T
	s.SetObject(zero)
	s.SetSuccessful(true)
	return nil
}
