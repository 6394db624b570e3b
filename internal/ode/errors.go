package ode

import "errors"

var (
	ErrInvalidSpan       = errors.New("ode: evaluation times must be non-decreasing and start at t0")
	ErrInvalidSettings   = errors.New("ode: invalid settings")
	ErrStepSizeUnderflow = errors.New("ode: step size underflow")
	ErrTooManySteps      = errors.New("ode: maximum number of steps exceeded")
	ErrNonFinite         = errors.New("ode: non-finite state or derivative")
)
