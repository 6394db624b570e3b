// Package ode integrates scalar initial value problems with an adaptive
// Dormand–Prince 5(4) Runge–Kutta scheme.
package ode

import (
	"fmt"
	"math"
)

// Func is the right-hand side dy/dt = f(t, y).
type Func func(t, y float64) float64

// Problem is an initial value problem reported on TEval. The integration runs from TEval[0]
// to TEval[len-1]; Y0 is the state at TEval[0].
type Problem struct {
	F     Func
	Y0    float64
	TEval []float64
}

type Settings struct {
	RelTol      float64
	AbsTol      float64
	MaxStep     float64 // upper bound on any internal step; 0 means the whole span
	InitialStep float64 // 0 picks one from the derivative at t0
	MaxSteps    int     // 0 means unlimited

	// BeforeStep runs before each attempted step with the step's start point. Anything the
	// right-hand side depends on besides (t, y) may only change here, so it is constant
	// across the stages of one step.
	BeforeStep func(t, y float64)

	// Report runs once per evaluation time, in order, with the interpolated state.
	Report func(i int, t, y float64)
}

func (s *Settings) Validate() error {
	if !(s.RelTol > 0) || s.AbsTol < 0 || s.MaxStep < 0 || s.InitialStep < 0 || s.MaxSteps < 0 {
		return ErrInvalidSettings
	}
	return nil
}

type Stats struct {
	Accepted    int
	Rejected    int
	Evaluations int
}

type Solution struct {
	T     []float64
	Y     []float64
	Stats Stats
}

// Dormand–Prince coefficients.
const (
	c2, c3, c4, c5 = 1.0 / 5, 3.0 / 10, 4.0 / 5, 8.0 / 9

	a21 = 1.0 / 5
	a31 = 3.0 / 40
	a32 = 9.0 / 40
	a41 = 44.0 / 45
	a42 = -56.0 / 15
	a43 = 32.0 / 9
	a51 = 19372.0 / 6561
	a52 = -25360.0 / 2187
	a53 = 64448.0 / 6561
	a54 = -212.0 / 729
	a61 = 9017.0 / 3168
	a62 = -355.0 / 33
	a63 = 46732.0 / 5247
	a64 = 49.0 / 176
	a65 = -5103.0 / 18656
	b1  = 35.0 / 384
	b3  = 500.0 / 1113
	b4  = 125.0 / 192
	b5  = -2187.0 / 6784
	b6  = 11.0 / 84

	// fifth minus fourth order weights
	e1 = 71.0 / 57600
	e3 = -71.0 / 16695
	e4 = 71.0 / 1920
	e5 = -17253.0 / 339200
	e6 = 22.0 / 525
	e7 = -1.0 / 40

	safety    = 0.9
	minFactor = 0.2
	maxFactor = 10.0
)

// Solve integrates p and returns the state at every evaluation time.
func Solve(p Problem, s Settings) (Solution, error) {
	if err := s.Validate(); err != nil {
		return Solution{}, err
	}
	if p.F == nil || len(p.TEval) == 0 {
		return Solution{}, ErrInvalidSpan
	}
	for i := 1; i < len(p.TEval); i++ {
		if !(p.TEval[i] >= p.TEval[i-1]) {
			return Solution{}, ErrInvalidSpan
		}
	}
	if !isFinite(p.Y0) || !isFinite(p.TEval[0]) || !isFinite(p.TEval[len(p.TEval)-1]) {
		return Solution{}, ErrNonFinite
	}

	sol := Solution{
		T: append([]float64(nil), p.TEval...),
		Y: make([]float64, len(p.TEval)),
	}
	t0 := p.TEval[0]
	tEnd := p.TEval[len(p.TEval)-1]
	maxStep := s.MaxStep
	if maxStep == 0 {
		maxStep = math.Max(tEnd-t0, 0)
	}

	f := func(t, y float64) (float64, error) {
		sol.Stats.Evaluations++
		d := p.F(t, y)
		if !isFinite(d) {
			return 0, fmt.Errorf("%w at t=%g", ErrNonFinite, t)
		}
		return d, nil
	}
	report := func(i int, t, y float64) {
		sol.Y[i] = y
		if s.Report != nil {
			s.Report(i, t, y)
		}
	}

	t, y := t0, p.Y0
	if s.BeforeStep != nil {
		s.BeforeStep(t, y)
	}
	next := 0
	for next < len(p.TEval) && p.TEval[next] == t0 {
		report(next, t0, y)
		next++
	}
	if next == len(p.TEval) {
		return sol, nil
	}

	h := s.InitialStep
	for t < tEnd {
		if s.BeforeStep != nil {
			s.BeforeStep(t, y)
		}
		k1, err := f(t, y)
		if err != nil {
			return sol, err
		}
		if h == 0 {
			h = initialStep(k1, y, s)
		}
		h = math.Min(h, maxStep)

		for {
			if s.MaxSteps > 0 && sol.Stats.Accepted+sol.Stats.Rejected >= s.MaxSteps {
				return sol, ErrTooManySteps
			}
			last := false
			if t+h >= tEnd {
				h = tEnd - t
				last = true
			}
			if h <= 16*eps*math.Max(math.Abs(t), 1) {
				return sol, fmt.Errorf("%w at t=%g", ErrStepSizeUnderflow, t)
			}

			yNew, k, errEst, err := step(f, t, y, h, k1)
			if err != nil {
				return sol, err
			}
			scale := s.AbsTol + s.RelTol*math.Max(math.Abs(y), math.Abs(yNew))
			if scale == 0 {
				scale = eps
			}
			norm := math.Abs(errEst) / scale

			if norm <= 1 {
				tNew := t + h
				if last {
					tNew = tEnd
				}
				for next < len(p.TEval) && p.TEval[next] <= tNew {
					report(next, p.TEval[next], dense(t, y, tNew-t, &k, p.TEval[next]))
					next++
				}
				sol.Stats.Accepted++
				t, y = tNew, yNew
				h *= grow(norm)
				break
			}
			sol.Stats.Rejected++
			h *= math.Max(minFactor, safety*math.Pow(norm, -0.2))
		}
	}
	return sol, nil
}

// step advances one Dormand–Prince step of size h and returns the seven stage derivatives,
// the last one being f(t+h, yNew).
func step(f func(t, y float64) (float64, error), t, y, h, k1 float64) (yNew float64, k [7]float64, errEst float64, err error) {
	k[0] = k1
	stages := []struct {
		c float64
		a []float64
	}{
		{c2, []float64{a21}},
		{c3, []float64{a31, a32}},
		{c4, []float64{a41, a42, a43}},
		{c5, []float64{a51, a52, a53, a54}},
		{1, []float64{a61, a62, a63, a64, a65}},
	}
	for i, st := range stages {
		var sum float64
		for j, a := range st.a {
			sum += a * k[j]
		}
		if k[i+1], err = f(t+st.c*h, y+h*sum); err != nil {
			return 0, k, 0, err
		}
	}
	yNew = y + h*(b1*k[0]+b3*k[2]+b4*k[3]+b5*k[4]+b6*k[5])
	if !isFinite(yNew) {
		return 0, k, 0, fmt.Errorf("%w at t=%g", ErrNonFinite, t+h)
	}
	if k[6], err = f(t+h, yNew); err != nil {
		return 0, k, 0, err
	}
	errEst = h * (e1*k[0] + e3*k[2] + e4*k[3] + e5*k[4] + e6*k[5] + e7*k[6])
	return yNew, k, errEst, nil
}

func grow(norm float64) float64 {
	if norm == 0 {
		return maxFactor
	}
	return math.Min(maxFactor, math.Max(minFactor, safety*math.Pow(norm, -0.2)))
}

// initialStep picks a first step that changes the state by about 1%.
func initialStep(d0, y0 float64, s Settings) float64 {
	scale := s.AbsTol + s.RelTol*math.Abs(y0)
	if scale == 0 {
		scale = eps
	}
	ny, nd := math.Abs(y0)/scale, math.Abs(d0)/scale
	if ny < 1e-5 || nd < 1e-5 {
		return 1e-6
	}
	return 0.01 * ny / nd
}

// Fourth-order continuous extension of Dormand–Prince: row i weights stage k[i] in the
// coefficients of θ, θ², θ³ and θ⁴.
var denseP = [7][4]float64{
	{1, -8048581381.0 / 2820520608, 8663915743.0 / 2820520608, -12715105075.0 / 11282082432},
	{0, 0, 0, 0},
	{0, 131558114200.0 / 32700410799, -68118460800.0 / 10900136933, 87487479700.0 / 32700410799},
	{0, -1754552775.0 / 470086768, 14199869525.0 / 1410260304, -10690763975.0 / 1880347072},
	{0, 127303824393.0 / 49829197408, -318862633887.0 / 49829197408, 701980252875.0 / 199316789632},
	{0, -282668133.0 / 205662961, 2019193451.0 / 616988883, -1453857185.0 / 822651844},
	{0, 40617522.0 / 29380423, -110615467.0 / 29380423, 69997945.0 / 29380423},
}

// dense evaluates the accepted step starting at (t0, y0) of size h at time t.
func dense(t0, y0, h float64, k *[7]float64, t float64) float64 {
	if h == 0 {
		return y0
	}
	theta := (t - t0) / h
	var sum, pow float64 = 0, 1
	for j := 0; j < 4; j++ {
		pow *= theta
		var q float64
		for i := range k {
			q += k[i] * denseP[i][j]
		}
		sum += q * pow
	}
	return y0 + h*sum
}

const eps = 2.220446049250313e-16

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
