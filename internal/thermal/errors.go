package thermal

import (
	"errors"
	"fmt"
)

// Error kinds. Every error returned by this package wraps exactly one of them.
var (
	ErrInsufficientData = errors.New("insufficient data")
	ErrDomain           = errors.New("domain error")
	ErrConfiguration    = errors.New("configuration error")
	ErrIntegration      = errors.New("integration error")
)

var (
	ErrNoCOPSamples          = fmt.Errorf("%w: no COP samples", ErrInsufficientData)
	ErrTooFewCOPTemperatures = fmt.Errorf("%w: COP fit needs at least 2 distinct temperatures", ErrInsufficientData)
	ErrSingularCOPSample     = fmt.Errorf("%w: COP sample at the reference temperature", ErrDomain)
	ErrNonFiniteParameter    = fmt.Errorf("%w: non-finite value", ErrDomain)
	ErrNonPositiveCOP        = fmt.Errorf("%w: non-positive COP while heat source active", ErrDomain)
	ErrNonPositiveCapacity   = fmt.Errorf("%w: tank thermal capacity must be positive", ErrConfiguration)
	ErrThresholdOrder        = fmt.Errorf("%w: on-threshold must be below off-threshold", ErrConfiguration)
	ErrEmptyAmbientSeries    = fmt.Errorf("%w: ambient series is empty", ErrConfiguration)
	ErrAmbientNotIncreasing  = fmt.Errorf("%w: ambient time offsets must be strictly increasing", ErrConfiguration)
	ErrAmbientLength         = fmt.Errorf("%w: ambient times and temperatures differ in length", ErrConfiguration)
	ErrInvalidHorizon        = fmt.Errorf("%w: horizon must be positive", ErrConfiguration)
	ErrInvalidReporting      = fmt.Errorf("%w: at least 2 reporting points are required", ErrConfiguration)
	ErrInvalidInitial        = fmt.Errorf("%w: initial tank temperature must be positive (K)", ErrConfiguration)
	ErrInvalidSolver         = fmt.Errorf("%w: invalid solver settings", ErrConfiguration)
	ErrUnknownPreset         = fmt.Errorf("%w: unknown preset", ErrConfiguration)
	ErrInvalidHeatSource     = fmt.Errorf("%w: invalid heat source state", ErrConfiguration)
)
