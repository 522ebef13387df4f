package service

import "reflect"

// Params is the input of a service. The keys and values are opaque to the
// lifecycle, only routines interpret them.
type Params map[string]any

// Class is a type token a routine may use to parameterize generic work, for
// example the kind of resource it operates on.
type Class = reflect.Type

// ClassOf returns the Class of type M.
func ClassOf[M any]() Class {
	return reflect.TypeFor[M]()
}

// Param returns the value stored under key converted to V. The second result
// is false when the key is missing or holds a value of another type.
func Param[V any, T any](s *Service[T], key string) (V, bool) {
	var zero V
	raw, ok := s.Param(key)
	if !ok {
		return zero, false
	}
	v, ok := raw.(V)
	if !ok {
		return zero, false
	}
	return v, true
}
