package thermal

import (
	"fmt"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/interp"
)

// AmbientSeries is the outdoor temperature (°C) as a continuous function of time, built from
// samples at strictly increasing time offsets (s). Outside the sampled range it is clamped to the
// first or last sample.
type AmbientSeries struct {
	times []float64
	temps []float64
	pl    *interp.PiecewiseLinear
}

func NewAmbientSeries(times, temperatures []float64) (AmbientSeries, error) {
	if len(times) != len(temperatures) {
		return AmbientSeries{}, ErrAmbientLength
	}
	if len(times) == 0 {
		return AmbientSeries{}, ErrEmptyAmbientSeries
	}
	if !finite(times...) || !finite(temperatures...) {
		return AmbientSeries{}, fmt.Errorf("ambient series: %w", ErrNonFiniteParameter)
	}
	for i := 1; i < len(times); i++ {
		if times[i] <= times[i-1] {
			return AmbientSeries{}, fmt.Errorf("%w (index %d)", ErrAmbientNotIncreasing, i)
		}
	}

	s := AmbientSeries{
		times: append([]float64(nil), times...),
		temps: append([]float64(nil), temperatures...),
	}
	if len(times) > 1 {
		s.pl = &interp.PiecewiseLinear{}
		if err := s.pl.Fit(s.times, s.temps); err != nil {
			return AmbientSeries{}, fmt.Errorf("%w: %v", ErrConfiguration, err)
		}
	}
	return s, nil
}

// UniformAmbientSeries spreads temperatures evenly over [0, horizon], the way an hourly
// list is mapped onto a day.
func UniformAmbientSeries(temperatures []float64, horizon float64) (AmbientSeries, error) {
	switch len(temperatures) {
	case 0:
		return AmbientSeries{}, ErrEmptyAmbientSeries
	case 1:
		return NewAmbientSeries([]float64{0}, temperatures)
	}
	if !(horizon > 0) {
		return AmbientSeries{}, ErrInvalidHorizon
	}
	return NewAmbientSeries(floats.Span(make([]float64, len(temperatures)), 0, horizon), temperatures)
}

// ConstantAmbientSeries is a series holding temperatureC at all times.
func ConstantAmbientSeries(temperatureC float64) AmbientSeries {
	s, _ := NewAmbientSeries([]float64{0}, []float64{temperatureC})
	return s
}

func (s AmbientSeries) Len() int { return len(s.times) }

// Samples returns copies of the sample times and temperatures.
func (s AmbientSeries) Samples() (times, temperatures []float64) {
	return append([]float64(nil), s.times...), append([]float64(nil), s.temps...)
}

func (s AmbientSeries) Validate() error {
	if len(s.times) == 0 {
		return ErrEmptyAmbientSeries
	}
	return nil
}

// At returns the temperature (°C) at time t.
func (s AmbientSeries) At(t float64) float64 {
	if s.pl == nil {
		return s.temps[0]
	}
	return s.pl.Predict(t)
}

// AtTimes evaluates the series at every t in ts.
func (s AmbientSeries) AtTimes(ts []float64) []float64 {
	out := make([]float64, len(ts))
	for i, t := range ts {
		out[i] = s.At(t)
	}
	return out
}

// Bounds returns the smallest and largest sampled temperature.
func (s AmbientSeries) Bounds() (lo, hi float64) {
	return floats.Min(s.temps), floats.Max(s.temps)
}
