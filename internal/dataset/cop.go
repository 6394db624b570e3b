// Package dataset reads the external inputs of a simulation: measured COP samples, outdoor
// temperature series and building properties.
package dataset

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/Agrid-Dev/heatpumpsim/internal/thermal"
	"gopkg.in/yaml.v3"
)

type copDocument struct {
	Data []copRecord `yaml:"heat_pump_cop_data"`
}

type copRecord struct {
	OutdoorTemperature *float64 `yaml:"outdoor_temp_C"`
	COPNoisy           *float64 `yaml:"COP_noisy"`
	COPIdeal           *float64 `yaml:"COP_ideal"`
}

// ReadCOPSamples decodes a heat_pump_cop_data document. The measured COP_noisy column is the
// one the model is fitted to; COP_ideal is informative and ignored.
func ReadCOPSamples(r io.Reader) ([]thermal.COPSample, error) {
	var doc copDocument
	if err := decodeYAML(r, &doc); err != nil {
		return nil, err
	}

	samples := make([]thermal.COPSample, 0, len(doc.Data))
	for i, rec := range doc.Data {
		if rec.OutdoorTemperature == nil {
			return nil, fmt.Errorf("%w: heat_pump_cop_data[%d].outdoor_temp_C", ErrMissingField, i)
		}
		if rec.COPNoisy == nil {
			return nil, fmt.Errorf("%w: heat_pump_cop_data[%d].COP_noisy", ErrMissingField, i)
		}
		samples = append(samples, thermal.COPSample{
			OutdoorTemperature: *rec.OutdoorTemperature,
			COP:                *rec.COPNoisy,
		})
	}
	return samples, nil
}

func LoadCOPSamples(path string) ([]thermal.COPSample, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	samples, err := ReadCOPSamples(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return samples, nil
}

func decodeYAML(r io.Reader, v any) error {
	if err := yaml.NewDecoder(r).Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("%w: %v", ErrMalformed, errEmptyDocument)
		}
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return nil
}
