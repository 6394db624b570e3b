package thermal

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// COPSample is one measured (outdoor temperature °C, COP) pair.
type COPSample struct {
	OutdoorTemperature float64
	COP                float64
}

// COPModel is COP(T) = A + B / (60 - T), T in °C.
type COPModel struct {
	A float64
	B float64

	// Goodness of fit against the samples it was fitted to.
	RSquared float64
	Samples  int
}

// At evaluates the model at outdoor temperature tempC.
func (m COPModel) At(tempC float64) (float64, error) {
	d := COPReferenceTemperature - tempC
	if d == 0 {
		return 0, fmt.Errorf("%w: COP at %.2f °C", ErrSingularCOPSample, tempC)
	}
	v := m.A + m.B/d
	if !finite(v) {
		return 0, fmt.Errorf("COP at %.2f °C: %w", tempC, ErrNonFiniteParameter)
	}
	return v, nil
}

// FitCOP fits (A, B) to samples by least squares. The model is linear in A and B over the
// regressor x = 1/(60 - T), so the fit is a QR solve of the two-column design matrix.
func FitCOP(samples []COPSample) (COPModel, error) {
	if len(samples) == 0 {
		return COPModel{}, ErrNoCOPSamples
	}

	n := len(samples)
	design := mat.NewDense(n, 2, nil)
	xs := make([]float64, n)
	ys := make([]float64, n)
	distinct := make(map[float64]struct{}, n)
	for i, s := range samples {
		if !finite(s.OutdoorTemperature, s.COP) {
			return COPModel{}, fmt.Errorf("COP sample %d: %w", i, ErrNonFiniteParameter)
		}
		d := COPReferenceTemperature - s.OutdoorTemperature
		if d == 0 {
			return COPModel{}, fmt.Errorf("%w (sample %d)", ErrSingularCOPSample, i)
		}
		xs[i] = 1 / d
		ys[i] = s.COP
		design.Set(i, 0, 1)
		design.Set(i, 1, xs[i])
		distinct[s.OutdoorTemperature] = struct{}{}
	}
	if len(distinct) < 2 {
		return COPModel{}, ErrTooFewCOPTemperatures
	}

	var coef mat.VecDense
	if err := coef.SolveVec(design, mat.NewVecDense(n, ys)); err != nil {
		return COPModel{}, fmt.Errorf("%w: COP least squares: %v", ErrDomain, err)
	}

	m := COPModel{A: coef.AtVec(0), B: coef.AtVec(1), Samples: n}
	if !finite(m.A, m.B) {
		return COPModel{}, fmt.Errorf("COP coefficients: %w", ErrNonFiniteParameter)
	}

	estimates := make([]float64, n)
	for i, x := range xs {
		estimates[i] = m.A + m.B*x
	}
	m.RSquared = stat.RSquaredFrom(estimates, ys, nil)
	if math.IsNaN(m.RSquared) {
		// constant observations, reproduced exactly
		m.RSquared = 1
	}
	return m, nil
}
