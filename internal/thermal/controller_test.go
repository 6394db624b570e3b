package thermal

import (
	"errors"
	"testing"
)

var testHysteresis = HysteresisParams{On: 313.15, Off: 333.15}

func TestValidateHysteresisParams(t *testing.T) {
	tests := []struct {
		name   string
		params HysteresisParams
		want   error
	}{
		{"ordered", HysteresisParams{On: 313.15, Off: 333.15}, nil},
		{"equal", HysteresisParams{On: 320, Off: 320}, ErrThresholdOrder},
		{"inverted", HysteresisParams{On: 333.15, Off: 313.15}, ErrThresholdOrder},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.params.Validate()
			if !errors.Is(err, tt.want) {
				t.Errorf("Validate() = %v, want %v", err, tt.want)
			}
			if tt.want != nil && !errors.Is(err, ErrConfiguration) {
				t.Errorf("Validate() = %v, want a configuration error", err)
			}
		})
	}
}

func assertControllerState(t testing.TB, c *HysteresisController, wantActive bool) {
	t.Helper()
	if c.HeatSourceActive() != wantActive {
		t.Errorf("HeatSourceActive() = %v, want %v", c.HeatSourceActive(), wantActive)
	}
}

func TestControllerTransitions(t *testing.T) {
	tests := []struct {
		name            string
		initiallyActive bool
		tank            float64
		wantActive      bool
	}{
		{"Stay off in the dead band", false, 320, false},
		{"Stay off just above the on threshold", false, 313.16, false},
		{"Switch on at the on threshold", false, 313.15, true},
		{"Switch on below the on threshold", false, 300, true},
		{"Stay off above the off threshold", false, 340, false},
		{"Stay on in the dead band", true, 320, true},
		{"Stay on just below the off threshold", true, 333.14, true},
		{"Switch off at the off threshold", true, 333.15, false},
		{"Switch off above the off threshold", true, 350, false},
		{"Stay on below the on threshold", true, 300, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := NewHysteresisController(testHysteresis, tt.initiallyActive)
			if err != nil {
				t.Fatalf("NewHysteresisController() failed: %v", err)
			}
			c.Evaluate(tt.tank)
			assertControllerState(t, c, tt.wantActive)
		})
	}
}

func TestControllerStartsInactiveByDefault(t *testing.T) {
	c, err := NewHysteresisController(testHysteresis, false)
	if err != nil {
		t.Fatal(err)
	}
	if c.State() != HeatSourceInactive {
		t.Errorf("State() = %v, want %v", c.State(), HeatSourceInactive)
	}
	if c.Activations() != 0 {
		t.Errorf("Activations() = %d, want 0", c.Activations())
	}
}

func TestControllerRepeatedQueriesAreIdempotent(t *testing.T) {
	for _, tank := range []float64{300, 313.15, 320, 333.15, 350} {
		c, _ := NewHysteresisController(testHysteresis, false)
		first := c.Evaluate(tank)
		for range 10 {
			if got := c.HeatSourceActive(); got != first {
				t.Fatalf("HeatSourceActive() at %v changed from %v to %v", tank, first, got)
			}
			if got := c.Evaluate(tank); got != first {
				t.Fatalf("Evaluate(%v) changed from %v to %v", tank, first, got)
			}
		}
		if c.Activations() > 1 {
			t.Errorf("Activations() = %d at fixed %v, want at most 1", c.Activations(), tank)
		}
	}
}

func TestControllerHysteresisBand(t *testing.T) {
	c, _ := NewHysteresisController(testHysteresis, false)

	// Cooling down from above the off threshold: off for all of (on, off].
	for tank := 340.0; tank > testHysteresis.On; tank -= 0.5 {
		if c.Evaluate(tank) {
			t.Fatalf("became active at %v, above the on threshold", tank)
		}
	}
	if !c.Evaluate(testHysteresis.On) {
		t.Fatal("expected active at the on threshold")
	}
	// Heating back up: on for all of [on, off).
	for tank := testHysteresis.On; tank < testHysteresis.Off; tank += 0.5 {
		if !c.Evaluate(tank) {
			t.Fatalf("became inactive at %v, below the off threshold", tank)
		}
	}
	if c.Evaluate(testHysteresis.Off) {
		t.Fatal("expected inactive at the off threshold")
	}
	if c.Activations() != 1 {
		t.Errorf("Activations() = %d, want 1", c.Activations())
	}
}

func TestControllerObserveOncePerTime(t *testing.T) {
	c, _ := NewHysteresisController(testHysteresis, false)

	if !c.Observe(10, 300) {
		t.Fatal("expected activation at t=10")
	}
	// Same time and an earlier time are ignored, even at a temperature that would switch off.
	if !c.Observe(10, 340) {
		t.Error("re-observing t=10 must not change the state")
	}
	if !c.Observe(5, 340) {
		t.Error("observing an earlier time must not change the state")
	}
	if c.Observe(11, 340) {
		t.Error("expected deactivation at t=11")
	}
	if c.Activations() != 1 {
		t.Errorf("Activations() = %d, want 1", c.Activations())
	}
}

func TestNewControllerRejectsInvertedThresholds(t *testing.T) {
	_, err := NewHysteresisController(HysteresisParams{On: 333.15, Off: 313.15}, false)
	if !errors.Is(err, ErrThresholdOrder) {
		t.Fatalf("expected ErrThresholdOrder, got %v", err)
	}
}
