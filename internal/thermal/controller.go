package thermal

// HysteresisParams are the tank temperatures (K) that switch the heat source.
type HysteresisParams struct {
	On  float64 // activate at or below
	Off float64 // deactivate at or above
}

func (params *HysteresisParams) Validate() error {
	if !finite(params.On, params.Off) {
		return ErrNonFiniteParameter
	}
	if params.On >= params.Off {
		return ErrThresholdOrder
	}
	return nil
}

// HysteresisController is the on/off thermostat of the heat source. It carries the only mutable
// state of a run and must not be shared between runs.
type HysteresisController struct {
	params      HysteresisParams
	active      bool
	observed    bool
	lastTime    float64
	activations int
}

func NewHysteresisController(params HysteresisParams, initiallyActive bool) (*HysteresisController, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	return &HysteresisController{params: params, active: initiallyActive}, nil
}

// HeatSourceActive reports the current state without evaluating any transition.
func (c *HysteresisController) HeatSourceActive() bool {
	return c.active
}

func (c *HysteresisController) State() HeatSource {
	if c.active {
		return HeatSourceActive
	}
	return HeatSourceInactive
}

// Activations counts INACTIVE -> ACTIVE transitions.
func (c *HysteresisController) Activations() int {
	return c.activations
}

// Evaluate applies the transition rule for tank temperature tankK.
// Between the thresholds the state is kept.
func (c *HysteresisController) Evaluate(tankK float64) bool {
	switch {
	case !c.active && tankK <= c.params.On:
		c.active = true
		c.activations++
	case c.active && tankK >= c.params.Off:
		c.active = false
	}
	return c.active
}

// Observe evaluates the transition rule at most once per time t. Calls with a time not after
// the last observed one return the current state unchanged.
func (c *HysteresisController) Observe(t, tankK float64) bool {
	if c.observed && t <= c.lastTime {
		return c.active
	}
	c.observed = true
	c.lastTime = t
	return c.Evaluate(tankK)
}
