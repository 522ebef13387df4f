package model

import (
	"errors"
)

var (
	ErrUnsupportedVersion = errors.New("workflow version is not supported, expected 0")
	ErrNoSteps            = errors.New("workflow has no steps")
	ErrDuplicateStep      = errors.New("duplicate step name")
	ErrAmbiguousStep      = errors.New("step defines both command and signal")
	ErrEmptyStep          = errors.New("step defines neither command nor signal")
	ErrParamCollision     = errors.New("params map to the same environment variable")
)
