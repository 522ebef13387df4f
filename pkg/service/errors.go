package service

import (
	"errors"
	"fmt"
)

// ErrAlreadyRan is returned by RunE when the lifecycle was already driven.
var ErrAlreadyRan = errors.New("service already ran")

// PanicError is the error recorded when a routine panics.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("service panicked: %v", e.Value)
}

// Unwrap exposes the panic value when it was an error itself.
func (e *PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}
