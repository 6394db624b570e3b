package dataset

import (
	"fmt"
	"io"
	"os"

	"github.com/Agrid-Dev/heatpumpsim/internal/thermal"
)

type quantity struct {
	Value *float64 `yaml:"value"`
	Unit  string   `yaml:"unit,omitempty"`
}

type buildingDocument struct {
	Properties struct {
		WallArea  quantity `yaml:"wall_area"`
		WallU     quantity `yaml:"wall_U_value"`
		RoofArea  quantity `yaml:"roof_area"`
		RoofU     quantity `yaml:"roof_U_value"`
		SetpointK quantity `yaml:"indoor_setpoint_temperature_K"`
	} `yaml:"building_properties"`
}

// ReadBuildingInputs decodes a building_properties document. Every property is a
// {value, unit} mapping; the setpoint is in kelvin.
func ReadBuildingInputs(r io.Reader) (thermal.BuildingParameters, error) {
	var doc buildingDocument
	if err := decodeYAML(r, &doc); err != nil {
		return thermal.BuildingParameters{}, err
	}

	p := doc.Properties
	fields := []struct {
		name string
		q    quantity
	}{
		{"wall_area", p.WallArea},
		{"wall_U_value", p.WallU},
		{"roof_area", p.RoofArea},
		{"roof_U_value", p.RoofU},
		{"indoor_setpoint_temperature_K", p.SetpointK},
	}
	for _, f := range fields {
		if f.q.Value == nil {
			return thermal.BuildingParameters{}, fmt.Errorf("%w: building_properties.%s.value", ErrMissingField, f.name)
		}
	}

	return thermal.BuildingParameters{
		WallArea:            *p.WallArea.Value,
		WallUValue:          *p.WallU.Value,
		RoofArea:            *p.RoofArea.Value,
		RoofUValue:          *p.RoofU.Value,
		SetpointTemperature: *p.SetpointK.Value,
	}, nil
}

func LoadBuildingInputs(path string) (thermal.BuildingParameters, error) {
	f, err := os.Open(path)
	if err != nil {
		return thermal.BuildingParameters{}, err
	}
	defer f.Close()

	b, err := ReadBuildingInputs(f)
	if err != nil {
		return thermal.BuildingParameters{}, fmt.Errorf("%s: %w", path, err)
	}
	return b, nil
}
