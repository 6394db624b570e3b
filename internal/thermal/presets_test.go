package thermal

import (
	"errors"
	"testing"
)

func TestLookupPreset(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		want     string
		wantErr  error
		wantArea float64
	}{
		{"Upper case", "A", "A", nil, 85},
		{"Lower case", "b", "B", nil, 135},
		{"Padded", " c ", "C", nil, 180},
		{"Default", DefaultPreset, "D", nil, 132},
		{"Unknown", "E", "", ErrUnknownPreset, 0},
		{"Empty", "", "", ErrUnknownPreset, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := LookupPreset(tt.input)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("LookupPreset(%q) error = %v, want %v", tt.input, err, tt.wantErr)
			}
			if tt.wantErr != nil {
				if !errors.Is(err, ErrConfiguration) {
					t.Errorf("LookupPreset(%q) error = %v, want a configuration error", tt.input, err)
				}
				return
			}
			if p.Name != tt.want {
				t.Errorf("Name = %q, want %q", p.Name, tt.want)
			}
			if p.Building.WallArea != tt.wantArea {
				t.Errorf("WallArea = %v, want %v", p.Building.WallArea, tt.wantArea)
			}
		})
	}
}

func TestPresetsAreValid(t *testing.T) {
	for _, name := range PresetNames() {
		t.Run(name, func(t *testing.T) {
			p, err := LookupPreset(name)
			if err != nil {
				t.Fatal(err)
			}
			if err := p.Building.Validate(); err != nil {
				t.Errorf("building: %v", err)
			}
			if err := p.Tank.Validate(); err != nil {
				t.Errorf("tank: %v", err)
			}
			if got := CapacityFromWaterMass(p.WaterMass); got != p.Tank.Capacity {
				t.Errorf("Capacity = %v, want %v", p.Tank.Capacity, got)
			}
		})
	}
}

func TestPresetNamesSorted(t *testing.T) {
	got := PresetNames()
	want := []string{"A", "B", "C", "D"}
	if len(got) != len(want) {
		t.Fatalf("PresetNames() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("PresetNames() = %v, want %v", got, want)
		}
	}
}
