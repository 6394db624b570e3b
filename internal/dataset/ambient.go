package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/Agrid-Dev/heatpumpsim/internal/thermal"
)

const (
	colTime        = "time_s"
	colTemperature = "temperature_c"
)

// ReadAmbientCSV reads an outdoor temperature series. With a time_s column the samples are
// placed at those offsets; with only temperature_c they are spread uniformly over horizon,
// the way an hourly list covers a day.
func ReadAmbientCSV(r io.Reader, horizon float64) (thermal.AmbientSeries, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	cr.Comment = '#'

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return thermal.AmbientSeries{}, fmt.Errorf("%w: %v", ErrMalformed, errEmptyDocument)
		}
		return thermal.AmbientSeries{}, fmt.Errorf("%w: reading CSV header: %v", ErrMalformed, err)
	}
	cols := make(map[string]int, len(header))
	for i, h := range header {
		cols[strings.ToLower(strings.TrimSpace(h))] = i
	}
	tempCol, ok := cols[colTemperature]
	if !ok {
		return thermal.AmbientSeries{}, fmt.Errorf("%w: CSV column %q", ErrMissingField, colTemperature)
	}
	timeCol, timed := cols[colTime]

	var times, temps []float64
	line := 1
	for {
		line++
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return thermal.AmbientSeries{}, fmt.Errorf("%w: reading CSV line %d: %v", ErrMalformed, line, err)
		}
		temp, err := parseField(record, tempCol, line)
		if err != nil {
			return thermal.AmbientSeries{}, err
		}
		temps = append(temps, temp)
		if timed {
			ts, err := parseField(record, timeCol, line)
			if err != nil {
				return thermal.AmbientSeries{}, err
			}
			times = append(times, ts)
		}
	}

	if timed {
		return thermal.NewAmbientSeries(times, temps)
	}
	return thermal.UniformAmbientSeries(temps, horizon)
}

func parseField(record []string, col, line int) (float64, error) {
	if col >= len(record) {
		return 0, fmt.Errorf("%w: line %d has %d fields", ErrMalformed, line, len(record))
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(record[col]), 64)
	if err != nil {
		return 0, fmt.Errorf("%w: line %d: parsing %q: %v", ErrMalformed, line, record[col], err)
	}
	return v, nil
}

type ambientDocument struct {
	Ambient struct {
		Horizon      *float64        `yaml:"horizon_s"`
		Temperatures []float64       `yaml:"temperatures_c"`
		Samples      []ambientSample `yaml:"samples"`
	} `yaml:"ambient"`
}

type ambientSample struct {
	Time        float64 `yaml:"time_s"`
	Temperature float64 `yaml:"temperature_c"`
}

// ReadAmbientYAML reads either an evenly spread list (ambient.temperatures_c, over
// ambient.horizon_s or horizon) or explicit ambient.samples.
func ReadAmbientYAML(r io.Reader, horizon float64) (thermal.AmbientSeries, error) {
	var doc ambientDocument
	if err := decodeYAML(r, &doc); err != nil {
		return thermal.AmbientSeries{}, err
	}

	a := doc.Ambient
	switch {
	case len(a.Samples) > 0 && len(a.Temperatures) > 0:
		return thermal.AmbientSeries{}, fmt.Errorf("%w: ambient has both samples and temperatures_c", ErrMalformed)
	case len(a.Samples) > 0:
		times := make([]float64, len(a.Samples))
		temps := make([]float64, len(a.Samples))
		for i, s := range a.Samples {
			times[i], temps[i] = s.Time, s.Temperature
		}
		return thermal.NewAmbientSeries(times, temps)
	case len(a.Temperatures) > 0:
		if a.Horizon != nil {
			horizon = *a.Horizon
		}
		return thermal.UniformAmbientSeries(a.Temperatures, horizon)
	}
	return thermal.AmbientSeries{}, fmt.Errorf("%w: ambient.samples or ambient.temperatures_c", ErrMissingField)
}

// LoadAmbient reads an ambient series file, choosing the format by extension.
func LoadAmbient(path string, horizon float64) (thermal.AmbientSeries, error) {
	var read func(io.Reader, float64) (thermal.AmbientSeries, error)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		read = ReadAmbientCSV
	case ".yaml", ".yml":
		read = ReadAmbientYAML
	default:
		return thermal.AmbientSeries{}, fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
	}

	f, err := os.Open(path)
	if err != nil {
		return thermal.AmbientSeries{}, err
	}
	defer f.Close()

	s, err := read(f, horizon)
	if err != nil {
		return thermal.AmbientSeries{}, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}
